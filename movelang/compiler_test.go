// Copyright 2025 The MoveChain Authors
// This file is part of the go-move library.

package movelang

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movechain/go-move/common"
	"github.com/movechain/go-move/movelang/model"
)

func twoModuleModel() *model.Model {
	callee := &model.Function{
		Name:       "answer",
		Returns:    []model.Type{model.U64Type()},
		LocalTypes: []model.Type{model.U64Type()},
		Code: []model.Bytecode{
			model.Load(0, model.ConstU64(42)),
			model.Ret(0),
		},
	}
	main := &model.Function{
		Name:       "main",
		IsEntry:    true,
		LocalTypes: []model.Type{model.U64Type()},
		Code: []model.Bytecode{
			model.Call(&model.Operation{
				Kind: model.OpFunction, Module: "lib", Function: "answer",
			}, []model.TempIndex{0}, nil),
			model.Ret(),
		},
	}
	return &model.Model{Modules: []*model.Module{
		{
			Address:   common.HexToAddress("0x2"),
			Name:      "app",
			Functions: []*model.Function{main},
		},
		{
			Address:   common.HexToAddress("0x3"),
			Name:      "lib",
			Functions: []*model.Function{callee},
		},
	}}
}

// TestTranslateMultiModule exercises cross-module declaration and call
// mangling: main in one module calls into a second module.
func TestTranslateMultiModule(t *testing.T) {
	arts, err := Translate(twoModuleModel(), &Options{})
	require.NoError(t, err)
	require.Len(t, arts.Modules, 2)

	appIR := arts.Modules[0].Emit()
	libIR := arts.Modules[1].Emit()

	// The app module declares the foreign callee and calls it through
	// the shared mangling; the body lives in the callee's own module.
	assert.Contains(t, appIR, "declare i64 @_ZN3lib6answer17h")
	assert.Contains(t, appIR, "call i64 @_ZN3lib6answer17h")
	assert.Contains(t, libIR, "define i64 @_ZN3lib6answer17h")
}

// TestRuntimeCoversTranslatorCalls checks symbol-set completeness: every
// runtime entry point the translated modules reference is published by the
// generated native runtime module.
func TestRuntimeCoversTranslatorCalls(t *testing.T) {
	g := twoModuleModel()
	// Force vector, comparison and global traffic into the translation.
	g.Modules[0].Structs = []*model.Struct{{
		Name:      "Box",
		Abilities: model.AbilityKey | model.AbilityStore,
		Fields:    []model.Field{{Name: "v", Type: model.U64Type()}},
	}}
	g.Modules[0].Functions = append(g.Modules[0].Functions, &model.Function{
		Name:   "publish",
		Params: []model.Type{model.SignerType()},
		LocalTypes: []model.Type{
			model.SignerType(),
			model.U64Type(),
			model.StructOf("app", "Box"),
			model.ByteVectorType(),
			model.ByteVectorType(),
			model.BoolType(),
		},
		Code: []model.Bytecode{
			model.Load(1, model.ConstU64(1)),
			model.Call(&model.Operation{Kind: model.OpPack, Module: "app", Struct: "Box"},
				[]model.TempIndex{2}, []model.TempIndex{1}),
			model.Call(&model.Operation{Kind: model.OpMoveTo, Module: "app", Struct: "Box"},
				nil, []model.TempIndex{0, 2}),
			model.Load(3, model.ConstBytes([]byte("a"))),
			model.Assign(model.AssignCopy, 4, 3),
			model.Binary(model.OpEq, 5, 3, 4),
			model.Ret(),
		},
	})

	arts, err := Translate(g, &Options{})
	require.NoError(t, err)

	for _, m := range arts.Modules {
		for _, fn := range m.Functions() {
			if !fn.IsDeclaration() || !strings.HasPrefix(fn.Name, "move_rt_") {
				continue
			}
			published := arts.Native.NamedFunction(fn.Name)
			require.NotNil(t, published, "runtime does not publish %s", fn.Name)
			assert.False(t, published.IsDeclaration(), "%s has no body in the runtime", fn.Name)
		}
	}
}

// TestTranslateIdempotent compiles the same model twice and expects
// byte-identical IR, the front half of the compile-idempotence property.
func TestTranslateIdempotent(t *testing.T) {
	first, err := Translate(twoModuleModel(), &Options{})
	require.NoError(t, err)
	second, err := Translate(twoModuleModel(), &Options{})
	require.NoError(t, err)

	require.Equal(t, len(first.Modules), len(second.Modules))
	for i := range first.Modules {
		assert.Equal(t, first.Modules[i].Emit(), second.Modules[i].Emit())
	}
	assert.Equal(t, first.Native.Emit(), second.Native.Emit())
}

func TestSignerProviderBounds(t *testing.T) {
	opts := &Options{Signers: []common.Address{common.HexToAddress("0x1")}}
	_, err := opts.Signer(0)
	require.NoError(t, err)
	_, err = opts.Signer(1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCompileSource)
}
