// Copyright 2025 The MoveChain Authors
// This file is part of the go-move library.

package llvm

import (
	"fmt"
	"strings"
)

// IntPredicate is an icmp condition code.
type IntPredicate string

const (
	IntEQ  IntPredicate = "eq"
	IntNE  IntPredicate = "ne"
	IntULT IntPredicate = "ult"
	IntULE IntPredicate = "ule"
	IntUGT IntPredicate = "ugt"
	IntUGE IntPredicate = "uge"
	IntSLT IntPredicate = "slt"
	IntSLE IntPredicate = "sle"
)

// Builder emits instructions into a basic block. The insertion point moves
// with PositionAtEnd, matching the usual IR-builder discipline.
type Builder struct {
	bb *BasicBlock
}

// NewBuilder creates a builder with no insertion point.
func NewBuilder() *Builder {
	return &Builder{}
}

// PositionAtEnd moves the insertion point to the end of bb.
func (b *Builder) PositionAtEnd(bb *BasicBlock) { b.bb = bb }

// InsertBlock returns the current insertion block.
func (b *Builder) InsertBlock() *BasicBlock { return b.bb }

func (b *Builder) fn() *Function { return b.bb.parent }

func typed(v Value) string { return fmt.Sprintf("%s %s", v.Type(), v.Ident()) }

// Alloca emits a stack slot in the entry block of the current function. Slots
// stay in the entry block so the backend treats them as static frame
// allocations rather than dynamic stack growth.
func (b *Builder) Alloca(ty Type, name string) *Register {
	fn := b.fn()
	r := fn.newReg(Ptr, name)
	entry := fn.EntryBlock()
	line := fmt.Sprintf("%s = alloca %s", r.Ident(), ty)
	// Allocas are inserted before any terminator already present.
	entry.lines = append([]string{"  " + line}, entry.lines...)
	return r
}

// Load reads ty through ptr.
func (b *Builder) Load(ty Type, ptr Value, name string) *Register {
	r := b.fn().newReg(ty, name)
	b.bb.add(fmt.Sprintf("%s = load %s, %s", r.Ident(), ty, typed(ptr)))
	return r
}

// Store writes val through ptr.
func (b *Builder) Store(val, ptr Value) {
	b.bb.add(fmt.Sprintf("store %s, %s", typed(val), typed(ptr)))
}

// Memcpy copies n bytes between two pointers via the llvm.memcpy intrinsic.
func (b *Builder) Memcpy(dst, src Value, n int) {
	b.bb.add(fmt.Sprintf(
		"call void @llvm.memcpy.p0.p0.i32(%s, %s, i32 %d, i1 false)",
		typed(dst), typed(src), n))
}

// MemcpyVal copies a run-time number of bytes (an i32 value) between two
// pointers.
func (b *Builder) MemcpyVal(dst, src, n Value) {
	b.bb.add(fmt.Sprintf(
		"call void @llvm.memcpy.p0.p0.i32(%s, %s, %s, i1 false)",
		typed(dst), typed(src), typed(n)))
}

// GEP computes an address with explicit indices over baseTy.
func (b *Builder) GEP(baseTy Type, ptr Value, indices []Value, name string) *Register {
	r := b.fn().newReg(Ptr, name)
	parts := make([]string, 0, len(indices)+2)
	parts = append(parts, baseTy.String(), typed(ptr))
	for _, idx := range indices {
		parts = append(parts, typed(idx))
	}
	b.bb.add(fmt.Sprintf("%s = getelementptr inbounds %s", r.Ident(), strings.Join(parts, ", ")))
	return r
}

// StructGEP addresses field idx of the named struct st.
func (b *Builder) StructGEP(st *StructType, ptr Value, idx int, name string) *Register {
	return b.GEP(st, ptr, []Value{ConstIntVal(I32, 0), ConstIntVal(I32, uint64(idx))}, name)
}

// ByteGEP advances a byte pointer by a constant offset.
func (b *Builder) ByteGEP(ptr Value, offset uint64, name string) *Register {
	return b.GEP(I8, ptr, []Value{ConstIntVal(I32, offset)}, name)
}

func (b *Builder) binary(op string, lhs, rhs Value, name string) *Register {
	r := b.fn().newReg(lhs.Type(), name)
	b.bb.add(fmt.Sprintf("%s = %s %s, %s", r.Ident(), op, typed(lhs), rhs.Ident()))
	return r
}

// Integer arithmetic. Operands must share a type.

func (b *Builder) Add(lhs, rhs Value, name string) *Register { return b.binary("add", lhs, rhs, name) }
func (b *Builder) Sub(lhs, rhs Value, name string) *Register { return b.binary("sub", lhs, rhs, name) }
func (b *Builder) Mul(lhs, rhs Value, name string) *Register { return b.binary("mul", lhs, rhs, name) }
func (b *Builder) UDiv(lhs, rhs Value, name string) *Register {
	return b.binary("udiv", lhs, rhs, name)
}
func (b *Builder) URem(lhs, rhs Value, name string) *Register {
	return b.binary("urem", lhs, rhs, name)
}
func (b *Builder) And(lhs, rhs Value, name string) *Register { return b.binary("and", lhs, rhs, name) }
func (b *Builder) Or(lhs, rhs Value, name string) *Register  { return b.binary("or", lhs, rhs, name) }
func (b *Builder) Xor(lhs, rhs Value, name string) *Register { return b.binary("xor", lhs, rhs, name) }
func (b *Builder) Shl(lhs, rhs Value, name string) *Register { return b.binary("shl", lhs, rhs, name) }
func (b *Builder) LShr(lhs, rhs Value, name string) *Register {
	return b.binary("lshr", lhs, rhs, name)
}

// Select picks between two values of one type.
func (b *Builder) Select(cond, t, f Value, name string) *Register {
	r := b.fn().newReg(t.Type(), name)
	b.bb.add(fmt.Sprintf("%s = select %s, %s, %s", r.Ident(), typed(cond), typed(t), typed(f)))
	return r
}

// ICmp compares two integers or pointers.
func (b *Builder) ICmp(pred IntPredicate, lhs, rhs Value, name string) *Register {
	r := b.fn().newReg(I1, name)
	b.bb.add(fmt.Sprintf("%s = icmp %s %s, %s", r.Ident(), pred, typed(lhs), rhs.Ident()))
	return r
}

// ZExt widens an integer.
func (b *Builder) ZExt(v Value, to *IntType, name string) *Register {
	r := b.fn().newReg(to, name)
	b.bb.add(fmt.Sprintf("%s = zext %s to %s", r.Ident(), typed(v), to))
	return r
}

// Trunc narrows an integer.
func (b *Builder) Trunc(v Value, to *IntType, name string) *Register {
	r := b.fn().newReg(to, name)
	b.bb.add(fmt.Sprintf("%s = trunc %s to %s", r.Ident(), typed(v), to))
	return r
}

// IntToPtr reinterprets a 32-bit integer as a guest pointer.
func (b *Builder) IntToPtr(v Value, name string) *Register {
	r := b.fn().newReg(Ptr, name)
	b.bb.add(fmt.Sprintf("%s = inttoptr %s to ptr", r.Ident(), typed(v)))
	return r
}

// PtrToInt reinterprets a pointer as an integer.
func (b *Builder) PtrToInt(v Value, to *IntType, name string) *Register {
	r := b.fn().newReg(to, name)
	b.bb.add(fmt.Sprintf("%s = ptrtoint %s to %s", r.Ident(), typed(v), to))
	return r
}

// ExtractValue pulls a member out of an aggregate value.
func (b *Builder) ExtractValue(agg Value, idx int, ty Type, name string) *Register {
	r := b.fn().newReg(ty, name)
	b.bb.add(fmt.Sprintf("%s = extractvalue %s, %d", r.Ident(), typed(agg), idx))
	return r
}

// InsertValue writes a member into an aggregate value.
func (b *Builder) InsertValue(agg, elem Value, idx int, name string) *Register {
	r := b.fn().newReg(agg.Type(), name)
	b.bb.add(fmt.Sprintf("%s = insertvalue %s, %s, %d", r.Ident(), typed(agg), typed(elem), idx))
	return r
}

// Call emits a direct call. A void callee yields nil.
func (b *Builder) Call(callee *Function, args ...Value) *Register {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = typed(a)
	}
	if _, ok := callee.Ty.Ret.(*VoidType); ok {
		b.bb.add(fmt.Sprintf("call void %s(%s)", callee.Ident(), strings.Join(parts, ", ")))
		return nil
	}
	r := b.fn().newReg(callee.Ty.Ret, "")
	b.bb.add(fmt.Sprintf("%s = call %s %s(%s)", r.Ident(), callee.Ty.Ret, callee.Ident(), strings.Join(parts, ", ")))
	return r
}

// MulWithOverflow emits the unsigned overflow-checking multiply intrinsic and
// returns the {result, overflow} pair value.
func (b *Builder) MulWithOverflow(m *Module, lhs, rhs Value, name string) *Register {
	ity := lhs.Type().(*IntType)
	retTy := Struct(ity, I1)
	intrinsic := fmt.Sprintf("llvm.umul.with.overflow.i%d", ity.Bits)
	m.AddFunction(intrinsic, Func(retTy, ity, ity))
	r := b.fn().newReg(retTy, name)
	b.bb.add(fmt.Sprintf("%s = call %s @%s(%s, %s)",
		r.Ident(), retTy, intrinsic, typed(lhs), typed(rhs)))
	return r
}

// Br emits an unconditional branch.
func (b *Builder) Br(target *BasicBlock) {
	b.bb.terminate(fmt.Sprintf("br label %%%s", target.name))
}

// CondBr emits a conditional branch.
func (b *Builder) CondBr(cond Value, t, f *BasicBlock) {
	b.bb.terminate(fmt.Sprintf("br %s, label %%%s, label %%%s", typed(cond), t.name, f.name))
}

// SwitchCase is one (value, destination) arm of a switch terminator.
type SwitchCase struct {
	Val  *ConstInt
	Dest *BasicBlock
}

// Switch emits a switch terminator.
func (b *Builder) Switch(v Value, def *BasicBlock, cases []SwitchCase) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "switch %s, label %%%s [", typed(v), def.name)
	for _, c := range cases {
		fmt.Fprintf(&sb, " %s %s, label %%%s", c.Val.Type(), c.Val.Ident(), c.Dest.name)
	}
	sb.WriteString(" ]")
	b.bb.terminate(sb.String())
}

// Ret emits a value return.
func (b *Builder) Ret(v Value) {
	b.bb.terminate(fmt.Sprintf("ret %s", typed(v)))
}

// RetVoid emits a void return.
func (b *Builder) RetVoid() {
	b.bb.terminate("ret void")
}

// Unreachable terminates the block as unreachable.
func (b *Builder) Unreachable() {
	b.bb.terminate("unreachable")
}

// DeclareMemcpy ensures the memcpy intrinsic used by Memcpy is declared.
func DeclareMemcpy(m *Module) {
	m.AddFunction("llvm.memcpy.p0.p0.i32", Func(Void, Ptr, Ptr, I32, I1))
}
