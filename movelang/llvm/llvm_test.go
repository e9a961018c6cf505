// Copyright 2025 The MoveChain Authors
// This file is part of the go-move library.

package llvm

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayoutPrimitives(t *testing.T) {
	var d DataLayout
	tests := []struct {
		ty    Type
		size  int
		align int
	}{
		{I8, 1, 1},
		{I16, 2, 2},
		{I32, 4, 4},
		{I64, 8, 8},
		{I128, 16, 8},
		{I256, 32, 8},
		{Ptr, 4, 4},
		{Array(32, I8), 32, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.size, d.SizeOf(tt.ty), "size of %s", tt.ty)
		assert.Equal(t, tt.align, d.AlignOf(tt.ty), "align of %s", tt.ty)
	}
}

func TestLayoutRuntimeRecords(t *testing.T) {
	var d DataLayout
	// The vector header: { ptr, i64, i64 } with the pointer padded out to
	// the i64 alignment.
	vec := Struct(Ptr, I64, I64)
	assert.Equal(t, 24, d.SizeOf(vec))
	if diff := cmp.Diff([]int{0, 8, 16}, d.Offsets(vec)); diff != "" {
		t.Errorf("vector offsets mismatch (-want +got):\n%s", diff)
	}

	// The descriptor record: { {ptr, i64}, i64, ptr }.
	moveType := Struct(Struct(Ptr, I64), I64, Ptr)
	assert.Equal(t, 32, d.SizeOf(moveType))

	// The field record embeds the descriptor by value.
	fieldRec := Struct(moveType, I64, Struct(Ptr, I64))
	assert.Equal(t, 56, d.SizeOf(fieldRec))
	if diff := cmp.Diff([]int{0, 32, 40}, d.Offsets(fieldRec)); diff != "" {
		t.Errorf("field record offsets mismatch (-want +got):\n%s", diff)
	}
}

func TestStructLayoutPadding(t *testing.T) {
	var d DataLayout
	st := Struct(I8, I64, I16)
	assert.Equal(t, []int{0, 8, 16}, d.Offsets(st))
	assert.Equal(t, 24, d.SizeOf(st))
	assert.Equal(t, 8, d.AlignOf(st))

	packed := PackedStruct(I8, I64, I16)
	assert.Equal(t, []int{0, 1, 9}, d.Offsets(packed))
	assert.Equal(t, 11, d.SizeOf(packed))
}

func TestBuilderEmitsFunction(t *testing.T) {
	ctx := NewContext()
	m := ctx.NewModule("test")
	fn := m.AddFunction("add_one", Func(I64, I64))
	fn.SetParamName(0, "x")
	b := NewBuilder()
	b.PositionAtEnd(fn.AppendBlock("entry"))
	sum := b.Add(fn.Param(0), ConstIntVal(I64, 1), "sum")
	b.Ret(sum)

	require.NoError(t, m.Verify())
	ir := m.Emit()
	assert.Contains(t, ir, "define i64 @add_one(i64 %x)")
	assert.Contains(t, ir, "add i64 %x, 1")
	assert.Contains(t, ir, "ret i64 %sum.0")
	assert.Contains(t, ir, `target datalayout = "`+RV32DataLayout+`"`)
}

func TestBuilderBranchAndSwitch(t *testing.T) {
	ctx := NewContext()
	m := ctx.NewModule("test")
	fn := m.AddFunction("dispatch", Func(Void, I64))
	b := NewBuilder()
	entry := fn.AppendBlock("entry")
	def := fn.AppendBlock("default")
	one := fn.AppendBlock("one")
	b.PositionAtEnd(entry)
	b.Switch(fn.Param(0), def, []SwitchCase{{Val: ConstIntVal(I64, 1), Dest: one}})
	b.PositionAtEnd(def)
	b.Unreachable()
	b.PositionAtEnd(one)
	b.RetVoid()

	require.NoError(t, m.Verify())
	ir := m.Emit()
	assert.Contains(t, ir, "switch i64 %0, label %default [ i64 1, label %one ]")
}

func TestVerifyRejectsUnterminatedBlock(t *testing.T) {
	ctx := NewContext()
	m := ctx.NewModule("test")
	fn := m.AddFunction("open_ended", Func(Void))
	fn.AppendBlock("entry")
	err := m.Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no terminator")
}

func TestVerifyRejectsOpaqueStruct(t *testing.T) {
	ctx := NewContext()
	m := ctx.NewModule("test")
	m.DeclareStruct("never_defined")
	err := m.Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opaque")
}

func TestAllocaLandsInEntryBlock(t *testing.T) {
	ctx := NewContext()
	m := ctx.NewModule("test")
	fn := m.AddFunction("f", Func(Void))
	b := NewBuilder()
	entry := fn.AppendBlock("entry")
	later := fn.AppendBlock("later")
	b.PositionAtEnd(entry)
	b.Br(later)
	b.PositionAtEnd(later)
	b.Alloca(I64, "slot")
	b.RetVoid()

	ir := m.Emit()
	entryIdx := strings.Index(ir, "entry:")
	laterIdx := strings.Index(ir, "later:")
	allocaIdx := strings.Index(ir, "alloca i64")
	require.True(t, entryIdx >= 0 && laterIdx >= 0 && allocaIdx >= 0)
	assert.Less(t, allocaIdx, laterIdx, "alloca must sit in the entry block")
	assert.Greater(t, allocaIdx, entryIdx)
}

func TestGlobalEmission(t *testing.T) {
	ctx := NewContext()
	m := ctx.NewModule("test")
	m.AddGlobal(&GlobalVar{
		Name:        "tag",
		Elem:        Array(4, I8),
		Init:        &ConstString{Data: []byte{0xde, 0xad, 0xbe, 0xef}},
		Linkage:     "private",
		Section:     ".rodata",
		Align:       1,
		Const:       true,
		UnnamedAddr: true,
	})
	ir := m.Emit()
	assert.Contains(t, ir, `@tag = private unnamed_addr constant [4 x i8] c"\DE\AD\BE\EF", section ".rodata", align 1`)
}
