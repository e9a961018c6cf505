// Copyright 2025 The MoveChain Authors
// This file is part of the go-move library.

package rttydesc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movechain/go-move/movelang/llvm"
	"github.com/movechain/go-move/movelang/model"
)

// fixedResolver hands out one prebuilt struct for descriptor tests.
type fixedResolver struct {
	decl    *model.Struct
	lowered *llvm.StructType
}

func (r *fixedResolver) ResolveStruct(*model.StructRef) (*model.Struct, *llvm.StructType, error) {
	return r.decl, r.lowered, nil
}

func TestDescribeIsIdempotent(t *testing.T) {
	m := llvm.NewContext().NewModule("test")
	b := NewBuilder(m, nil)

	first, err := b.Describe(model.U64Type())
	require.NoError(t, err)
	second, err := b.Describe(model.U64Type())
	require.NoError(t, err)
	assert.Same(t, first, second, "one descriptor global per type per module")
}

func TestDescribeVectorLinksElement(t *testing.T) {
	m := llvm.NewContext().NewModule("test")
	b := NewBuilder(m, nil)

	_, err := b.Describe(model.VectorOf(model.U8Type()))
	require.NoError(t, err)
	assert.NotNil(t, m.NamedGlobal("__move_rttydesc_vec_u8"))
	assert.NotNil(t, m.NamedGlobal("__move_rttydesc_u8"), "element descriptor emitted alongside")

	ir := m.Emit()
	assert.Contains(t, ir, `section ".rodata"`)
}

func TestDescribeStructEmitsFieldTable(t *testing.T) {
	m := llvm.NewContext().NewModule("test")
	lowered := m.DeclareStruct("acct__Coin")
	lowered.SetBody([]llvm.Type{llvm.I64})
	resolver := &fixedResolver{
		decl: &model.Struct{
			Name:   "Coin",
			Fields: []model.Field{{Name: "value", Type: model.U64Type()}},
		},
		lowered: lowered,
	}
	b := NewBuilder(m, resolver)

	_, err := b.Describe(model.StructOf("acct", "Coin"))
	require.NoError(t, err)
	assert.NotNil(t, m.NamedGlobal("__move_rttydesc_s_acct__Coin"))
	assert.NotNil(t, m.NamedGlobal("__move_rttydesc_s_acct__Coin_fields"))

	ir := m.Emit()
	// Field record: embedded u64 descriptor, offset 0, field name.
	assert.Contains(t, ir, "i64 0") // offset of the only field
	assert.Contains(t, ir, `c"value"`)
	// Struct info carries size and alignment of the lowered aggregate.
	assert.Contains(t, ir, "i64 8, i64 8")
}

func TestTypeMangleStability(t *testing.T) {
	tests := []struct {
		ty   model.Type
		want string
	}{
		{model.U64Type(), "u64"},
		{model.VectorOf(model.U8Type()), "vec_u8"},
		{model.RefTo(model.U64Type()), "ref_u64"},
		{model.MutRefTo(model.U64Type()), "mref_u64"},
		{model.StructOf("acct", "Coin", model.U64Type()), "s_acct__Coin_u64"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TypeMangle(tt.ty))
	}
}

func TestDescriptorNamesAreReadable(t *testing.T) {
	m := llvm.NewContext().NewModule("test")
	b := NewBuilder(m, nil)
	_, err := b.Describe(model.VectorOf(model.U64Type()))
	require.NoError(t, err)
	ir := m.Emit()
	assert.True(t, strings.Contains(ir, `c"vector<u64>"`), "diagnostic name emitted:\n%s", ir)
}
