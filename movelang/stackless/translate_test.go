// Copyright 2025 The MoveChain Authors
// This file is part of the go-move library.

package stackless

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movechain/go-move/common"
	"github.com/movechain/go-move/movelang/llvm"
	"github.com/movechain/go-move/movelang/model"
)

// singleFunctionModel wraps one function body into a translatable module.
func singleFunctionModel(fn *model.Function) *model.Model {
	return &model.Model{Modules: []*model.Module{{
		Address:   common.HexToAddress("0x1"),
		Name:      "m",
		Functions: []*model.Function{fn},
	}}}
}

func translateFunction(t *testing.T, fn *model.Function) string {
	t.Helper()
	g := singleFunctionModel(fn)
	ctx := llvm.NewContext()
	mc := NewModuleContext(ctx, g, g.Modules[0], NewExports(), nil)
	require.NoError(t, mc.Translate())
	return mc.IRModule().Emit()
}

func binaryFn(op model.OpKind, a, b *model.Constant) *model.Function {
	return &model.Function{
		Name:       "f",
		Returns:    []model.Type{a.Type},
		LocalTypes: []model.Type{a.Type, b.Type, a.Type},
		Code: []model.Bytecode{
			model.Load(0, a),
			model.Load(1, b),
			model.Binary(op, 2, 0, 1),
			model.Ret(2),
		},
	}
}

func TestDivEmitsZeroCheck(t *testing.T) {
	ir := translateFunction(t, binaryFn(model.OpDiv, model.ConstU64(10), model.ConstU64(0)))
	assert.Contains(t, ir, "icmp eq i64")
	assert.Contains(t, ir, "zerocond")
	assert.Contains(t, ir, "call void @move_rt_abort(i64 4004)")
	assert.Contains(t, ir, "unreachable")
	assert.Contains(t, ir, "udiv i64")
}

func TestModEmitsZeroCheck(t *testing.T) {
	ir := translateFunction(t, binaryFn(model.OpMod, model.ConstU32(10), model.ConstU32(3)))
	assert.Contains(t, ir, "zerocond")
	assert.Contains(t, ir, "urem i32")
}

func TestSubEmitsOverflowPostCheck(t *testing.T) {
	ir := translateFunction(t, binaryFn(model.OpSub, model.ConstU64(1), model.ConstU64(2)))
	// Post-check: diff > lhs means unsigned wrap.
	assert.Contains(t, ir, "icmp ugt i64")
	assert.Contains(t, ir, "ovfcond")
}

func TestAddEmitsOverflowPostCheck(t *testing.T) {
	ir := translateFunction(t, binaryFn(model.OpAdd, model.ConstU8(255), model.ConstU8(1)))
	assert.Contains(t, ir, "icmp ult i8")
	assert.Contains(t, ir, "ovfcond")
}

func TestMulUsesOverflowIntrinsic(t *testing.T) {
	ir := translateFunction(t, binaryFn(model.OpMul, model.ConstU64(3), model.ConstU64(4)))
	assert.Contains(t, ir, "@llvm.umul.with.overflow.i64")
	assert.Contains(t, ir, "extractvalue")
	assert.Contains(t, ir, "mul_ovf")
}

func TestShiftEmitsRangeCheckAndWidensCount(t *testing.T) {
	fn := &model.Function{
		Name:       "f",
		Returns:    []model.Type{model.U64Type()},
		LocalTypes: []model.Type{model.U64Type(), model.U8Type(), model.U64Type()},
		Code: []model.Bytecode{
			model.Load(0, model.ConstU64(1)),
			model.Load(1, model.ConstU8(65)),
			model.Binary(model.OpShl, 2, 0, 1),
			model.Ret(2),
		},
	}
	ir := translateFunction(t, fn)
	assert.Contains(t, ir, "icmp uge i8")
	assert.Contains(t, ir, "rangecond")
	assert.Contains(t, ir, "zext i8")
	assert.Contains(t, ir, "shl i64")
}

func TestNarrowingCastEmitsRangeCheck(t *testing.T) {
	fn := &model.Function{
		Name:       "f",
		Returns:    []model.Type{model.U8Type()},
		LocalTypes: []model.Type{model.U64Type(), model.U8Type()},
		Code: []model.Bytecode{
			model.Load(0, model.ConstU64(300)),
			model.Unary(model.OpCastU8, 1, 0),
			model.Ret(1),
		},
	}
	ir := translateFunction(t, fn)
	assert.Contains(t, ir, "icmp ugt i64")
	assert.Contains(t, ir, "castcond")
	assert.Contains(t, ir, "255")
	assert.Contains(t, ir, "trunc i64")
}

func TestWideningCastZeroExtends(t *testing.T) {
	fn := &model.Function{
		Name:       "f",
		Returns:    []model.Type{model.U256Type()},
		LocalTypes: []model.Type{model.U64Type(), model.U256Type()},
		Code: []model.Bytecode{
			model.Load(0, model.ConstU64(5)),
			model.Unary(model.OpCastU256, 1, 0),
			model.Ret(1),
		},
	}
	ir := translateFunction(t, fn)
	assert.Contains(t, ir, "zext i64")
	assert.NotContains(t, ir, "castcond")
}

func TestVectorLiteralUsesRodataAndVecCopy(t *testing.T) {
	fn := &model.Function{
		Name:       "f",
		LocalTypes: []model.Type{model.ByteVectorType()},
		Code: []model.Bytecode{
			model.Load(0, model.ConstBytes([]byte("hello"))),
			model.Ret(),
		},
	}
	ir := translateFunction(t, fn)
	assert.Contains(t, ir, "__move_vecdata_")
	assert.Contains(t, ir, "__move_vechdr_")
	assert.Contains(t, ir, `c"hello"`)
	assert.Contains(t, ir, "call %move_untyped_vector @move_rt_vec_empty(ptr @__move_rttydesc_u8)")
	assert.Contains(t, ir, "@move_rt_vec_copy")
}

func TestVectorComparisonLowersToRuntime(t *testing.T) {
	fn := &model.Function{
		Name:    "f",
		Returns: []model.Type{model.BoolType()},
		LocalTypes: []model.Type{
			model.ByteVectorType(), model.ByteVectorType(), model.BoolType(),
		},
		Code: []model.Bytecode{
			model.Load(0, model.ConstBytes([]byte{1})),
			model.Load(1, model.ConstBytes([]byte{1})),
			model.Binary(model.OpNeq, 2, 0, 1),
			model.Ret(2),
		},
	}
	ir := translateFunction(t, fn)
	assert.Contains(t, ir, "@move_rt_vec_cmp_eq")
	// Neq negates the equality result.
	assert.Contains(t, ir, "xor i8")
}

func TestAddressCompareIsSingleWideCompare(t *testing.T) {
	fn := &model.Function{
		Name:    "f",
		Returns: []model.Type{model.BoolType()},
		LocalTypes: []model.Type{
			model.AddressType(), model.AddressType(), model.BoolType(),
		},
		Code: []model.Bytecode{
			model.Load(0, model.ConstAddress(common.HexToAddress("0x1"))),
			model.Load(1, model.ConstAddress(common.HexToAddress("0x2"))),
			model.Binary(model.OpEq, 2, 0, 1),
			model.Ret(2),
		},
	}
	ir := translateFunction(t, fn)
	assert.Contains(t, ir, "load i256")
	assert.Contains(t, ir, "icmp eq i256")
	assert.NotContains(t, ir, "memcmp")
}

func TestBranchAndLabels(t *testing.T) {
	fn := &model.Function{
		Name:       "f",
		Returns:    []model.Type{model.U64Type()},
		LocalTypes: []model.Type{model.BoolType(), model.U64Type()},
		Code: []model.Bytecode{
			model.Load(0, model.ConstBool(true)),
			model.Branch(0, 1, 2),
			model.MarkLabel(1),
			model.Load(1, model.ConstU64(1)),
			model.Ret(1),
			model.MarkLabel(2),
			model.Load(1, model.ConstU64(2)),
			model.Ret(1),
		},
	}
	ir := translateFunction(t, fn)
	assert.Contains(t, ir, "label_1:")
	assert.Contains(t, ir, "label_2:")
	assert.Contains(t, ir, "br i1")
}

func TestAbortLowering(t *testing.T) {
	fn := &model.Function{
		Name:       "f",
		LocalTypes: []model.Type{model.U64Type()},
		Code: []model.Bytecode{
			model.Load(0, model.ConstU64(77)),
			model.Abort(0),
		},
	}
	ir := translateFunction(t, fn)
	assert.Contains(t, ir, "call void @move_rt_abort(i64 %abort_code")
	assert.Contains(t, ir, "unreachable")
}

func TestNamedLocalsFromPack(t *testing.T) {
	value := &model.Struct{
		Name:   "Value",
		Fields: []model.Field{{Name: "amount", Type: model.U64Type()}},
	}
	fn := &model.Function{
		Name: "f",
		LocalTypes: []model.Type{
			model.U64Type(),
			model.StructOf("m", "Value"),
		},
		Code: []model.Bytecode{
			model.Load(0, model.ConstU64(1)),
			model.Call(&model.Operation{Kind: model.OpPack, Module: "m", Struct: "Value"},
				[]model.TempIndex{1}, []model.TempIndex{0}),
			model.Ret(),
		},
	}
	g := &model.Model{Modules: []*model.Module{{
		Address:   common.HexToAddress("0x1"),
		Name:      "m",
		Structs:   []*model.Struct{value},
		Functions: []*model.Function{fn},
	}}}
	ctx := llvm.NewContext()
	mc := NewModuleContext(ctx, g, g.Modules[0], NewExports(), nil)
	require.NoError(t, mc.Translate())
	ir := mc.IRModule().Emit()
	assert.True(t, strings.Contains(ir, "local_0__amount"),
		"pack source refined with the field name:\n%s", ir)
}

func TestMultiReturnPacksAggregate(t *testing.T) {
	fn := &model.Function{
		Name:       "f",
		Returns:    []model.Type{model.U64Type(), model.BoolType()},
		LocalTypes: []model.Type{model.U64Type(), model.BoolType()},
		Code: []model.Bytecode{
			model.Load(0, model.ConstU64(1)),
			model.Load(1, model.ConstBool(true)),
			model.Ret(0, 1),
		},
	}
	ir := translateFunction(t, fn)
	assert.Contains(t, ir, "insertvalue { i64, i8 }")
	assert.Contains(t, ir, "ret { i64, i8 }")
}

func TestStructMoveAliasesSlot(t *testing.T) {
	value := &model.Struct{
		Name:   "Value",
		Fields: []model.Field{{Name: "v", Type: model.U64Type()}},
	}
	fn := &model.Function{
		Name: "f",
		LocalTypes: []model.Type{
			model.StructOf("m", "Value"),
			model.StructOf("m", "Value"),
			model.U64Type(),
		},
		Code: []model.Bytecode{
			model.Load(2, model.ConstU64(9)),
			model.Call(&model.Operation{Kind: model.OpPack, Module: "m", Struct: "Value"},
				[]model.TempIndex{0}, []model.TempIndex{2}),
			model.Assign(model.AssignMove, 1, 0),
			model.Ret(),
		},
	}
	g := &model.Model{Modules: []*model.Module{{
		Address:   common.HexToAddress("0x1"),
		Name:      "m",
		Structs:   []*model.Struct{value},
		Functions: []*model.Function{fn},
	}}}
	ctx := llvm.NewContext()
	mc := NewModuleContext(ctx, g, g.Modules[0], NewExports(), nil)
	require.NoError(t, mc.Translate())
	ir := mc.IRModule().Emit()
	// Rebinding produces no copy: no memcpy between the two struct slots.
	assert.NotContains(t, ir, "llvm.memcpy.p0.p0.i32(ptr %local_1")
}
