// Copyright 2025 The MoveChain Authors
// This file is part of the go-move library.

package stackless

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movechain/go-move/common"
	"github.com/movechain/go-move/crypto"
	"github.com/movechain/go-move/movelang/llvm"
	"github.com/movechain/go-move/movelang/model"
)

// storageModel builds the canonical test model: a storage module with a
// keyed resource and entry functions around it.
func storageModel() *model.Model {
	value := &model.Struct{
		Name:      "Value",
		Abilities: model.AbilityKey | model.AbilityStore,
		Fields:    []model.Field{{Name: "v", Type: model.U64Type()}},
	}
	valueRef := &model.Operation{Kind: model.OpMoveTo, Module: "storage", Struct: "Value"}

	store := &model.Function{
		Name:    "store",
		IsEntry: true,
		Params:  []model.Type{model.SignerType()},
		LocalTypes: []model.Type{
			model.SignerType(),
			model.U64Type(),
			model.StructOf("storage", "Value"),
		},
		Code: []model.Bytecode{
			model.Load(1, model.ConstU64(42)),
			model.Call(&model.Operation{Kind: model.OpPack, Module: "storage", Struct: "Value"},
				[]model.TempIndex{2}, []model.TempIndex{1}),
			model.Call(valueRef, nil, []model.TempIndex{0, 2}),
			model.Ret(),
		},
	}
	call := &model.Function{
		Name:       "call",
		IsEntry:    true,
		Params:     []model.Type{model.SignerType()},
		LocalTypes: []model.Type{model.SignerType()},
		Code:       []model.Bytecode{model.Ret()},
	}
	return &model.Model{Modules: []*model.Module{{
		Address:   common.HexToAddress("0x2"),
		Name:      "storage",
		Structs:   []*model.Struct{value},
		Functions: []*model.Function{store, call},
	}}}
}

func translateModel(t *testing.T, g *model.Model) *llvm.Module {
	t.Helper()
	ctx := llvm.NewContext()
	mc := NewModuleContext(ctx, g, g.Modules[0], NewExports(), nil)
	require.NoError(t, mc.Translate())
	return mc.IRModule()
}

func TestTranslateStorageModule(t *testing.T) {
	m := translateModel(t, storageModel())
	ir := m.Emit()

	// Mangled symbols for both entries.
	assert.Contains(t, ir, "@"+MangleFunction("storage", "store"))
	assert.Contains(t, ir, "@"+MangleFunction("storage", "call"))

	// Struct lowered under its qualified aggregate name.
	assert.Contains(t, ir, "%storage__Value = type { i64 }")

	// The struct tag constant carries the SHA-256 of the full name.
	tag := crypto.StructTag("0x2::storage::Value")
	assert.NotNil(t, m.NamedGlobal("__move_structtag_storage__Value"))
	assert.Contains(t, ir, (&llvm.ConstString{Data: tag[:]}).Ident())

	// move_to lowers onto the runtime entry point.
	assert.Contains(t, ir, "call void @move_rt_move_to(ptr @__move_rttydesc_s_storage__Value")
}

func TestCallSelectorDispatch(t *testing.T) {
	m := translateModel(t, storageModel())
	ir := m.Emit()

	fn := m.NamedFunction("call_selector")
	require.NotNil(t, fn, "entry module must carry a dispatcher")
	require.False(t, fn.IsDeclaration())

	// One switch case per entry function, keyed by the little-endian
	// selector value.
	for _, name := range []string{"storage::store", "storage::call"} {
		assert.Contains(t, ir, fmt.Sprintf("i64 %d, label %%case_", crypto.Selector(name)))
	}
	// The default arm aborts with the bad-selector code.
	assert.Contains(t, ir, "call void @move_rt_abort(i64 2)")
	// The signer pointer is the buffer past the selector.
	assert.Contains(t, ir, "getelementptr inbounds i8, ptr %buf, i32 4")
}

func TestExportMetadataEmittedOncePerSymbol(t *testing.T) {
	g := storageModel()
	ctx := llvm.NewContext()
	exports := NewExports()
	mc := NewModuleContext(ctx, g, g.Modules[0], exports, nil)
	require.NoError(t, mc.Translate())

	ir := mc.IRModule().Emit()
	meta := MangleMetadata("storage", "store")
	assert.Equal(t, 1, strings.Count(ir, "@"+meta+" ="), "metadata record emitted once")
	assert.Equal(t, 1, strings.Count(ir, ".8byte "+MangleFunction("storage", "store")),
		"export note emitted once")
	assert.Contains(t, ir, ".pushsection .polkavm_exports")
	assert.Contains(t, ir, `section ".polkavm_metadata"`)

	// The shared export set remembers both entries and the dispatcher.
	assert.True(t, exports.Contains("call_selector"))
	assert.True(t, exports.Contains(MangleFunction("storage", "store")))
}

func TestMangleFunctionShape(t *testing.T) {
	symbol := MangleFunction("storage", "store")
	assert.True(t, strings.HasPrefix(symbol, "_ZN7storage5store17h"))
	assert.True(t, strings.HasSuffix(symbol, "E"))
	assert.Len(t, symbol, len("_ZN7storage5store17h")+16+1)
	// Stable across invocations.
	assert.Equal(t, symbol, MangleFunction("storage", "store"))
}

func TestMonomorphization(t *testing.T) {
	id := &model.Function{
		Name:       "id",
		TypeParams: 1,
		Params:     []model.Type{&model.TypeParam{Index: 0}},
		Returns:    []model.Type{&model.TypeParam{Index: 0}},
		LocalTypes: []model.Type{&model.TypeParam{Index: 0}},
		Code:       []model.Bytecode{model.Ret(0)},
	}
	main := &model.Function{
		Name:       "main",
		IsEntry:    true,
		LocalTypes: []model.Type{model.U64Type(), model.U64Type()},
		Code: []model.Bytecode{
			model.Load(0, model.ConstU64(7)),
			model.Call(&model.Operation{
				Kind: model.OpFunction, Module: "m", Function: "id",
				TypeArgs: []model.Type{model.U64Type()},
			}, []model.TempIndex{1}, []model.TempIndex{0}),
			model.Ret(1),
		},
	}
	g := &model.Model{Modules: []*model.Module{{
		Address:   common.HexToAddress("0x1"),
		Name:      "m",
		Functions: []*model.Function{main, id},
	}}}
	m := translateModel(t, g)
	ir := m.Emit()

	// The generic skeleton is not emitted; the concrete instantiation is.
	assert.NotContains(t, ir, MangleFunction("m", "id")+"(")
	inst := MangleFunction("m", "id_u64")
	assert.Contains(t, ir, "define")
	fn := m.NamedFunction(inst)
	require.NotNil(t, fn, "monomorphized instantiation declared")
	assert.False(t, fn.IsDeclaration(), "monomorphized body emitted")
}

func TestSelectorInjectivityHolds(t *testing.T) {
	g := storageModel()
	seen := make(map[uint32]bool)
	for _, fn := range g.Modules[0].Functions {
		if !fn.IsEntry {
			continue
		}
		sel := crypto.Selector(qualifiedName("storage", fn.Name))
		require.False(t, seen[sel])
		seen[sel] = true
	}
}

func TestTranslateFailsOnUndefinedCallee(t *testing.T) {
	g := &model.Model{Modules: []*model.Module{{
		Address: common.HexToAddress("0x1"),
		Name:    "m",
		Functions: []*model.Function{{
			Name:       "f",
			LocalTypes: []model.Type{},
			Code: []model.Bytecode{
				model.Call(&model.Operation{
					Kind: model.OpFunction, Module: "nowhere", Function: "g",
				}, nil, nil),
				model.Ret(),
			},
		}},
	}}}
	ctx := llvm.NewContext()
	mc := NewModuleContext(ctx, g, g.Modules[0], NewExports(), nil)
	err := mc.Translate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undefined function")
}
