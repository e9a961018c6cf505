// Copyright 2025 The MoveChain Authors
// This file is part of the go-move library.

package runtime

import (
	"github.com/movechain/go-move/movelang/llvm"
	"github.com/movechain/go-move/movelang/rttydesc"
)

// abortArithmetic is the code bounds violations abort with.
const abortArithmetic = 4004

// vector header field indices.
const (
	vecData = 0
	vecCap  = 1
	vecLen  = 2
)

// callAbort emits the divergence path with the given code.
func (g *Generator) callAbort(code uint64) {
	g.b.Call(g.imported("abort"), llvm.ConstIntVal(llvm.I64, code))
	g.b.Unreachable()
}

// checkAbort branches to an abort block when cond holds and continues in the
// join block.
func (g *Generator) checkAbort(fn *llvm.Function, cond llvm.Value, code uint64) {
	thenBB := fn.AppendBlock("then_bb")
	joinBB := fn.AppendBlock("join_bb")
	g.b.CondBr(cond, thenBB, joinBB)
	g.b.PositionAtEnd(thenBB)
	g.callAbort(code)
	g.b.PositionAtEnd(joinBB)
}

// loop emits a counted loop [0, n) with an i64 induction slot. body is
// invoked positioned inside the loop body with the current index; it must
// not terminate the block. The builder ends positioned after the loop.
func (g *Generator) loop(fn *llvm.Function, n llvm.Value, name string, body func(i llvm.Value)) {
	b := g.b
	slot := b.Alloca(llvm.I64, name+"_i")
	b.Store(llvm.ConstIntVal(llvm.I64, 0), slot)
	head := fn.AppendBlock(name + "_head")
	bodyBB := fn.AppendBlock(name + "_body")
	exit := fn.AppendBlock(name + "_exit")
	b.Br(head)
	b.PositionAtEnd(head)
	i := b.Load(llvm.I64, slot, name+"_idx")
	b.CondBr(b.ICmp(llvm.IntULT, i, n, name+"_cond"), bodyBB, exit)
	b.PositionAtEnd(bodyBB)
	body(i)
	next := b.Add(i, llvm.ConstIntVal(llvm.I64, 1), name+"_next")
	b.Store(next, slot)
	b.Br(head)
	b.PositionAtEnd(exit)
}

// eltPtr addresses element i of a buffer with the given element size.
func (g *Generator) eltPtr(data, i, size llvm.Value, name string) llvm.Value {
	off := g.b.Mul(i, size, name+"_off")
	off32 := g.b.Trunc(off, llvm.I32, name+"_off32")
	return g.b.GEP(llvm.I8, data, []llvm.Value{off32}, name)
}

func (g *Generator) loadVecField(v llvm.Value, field int, name string) *llvm.Register {
	ty := llvm.I64
	if field == vecData {
		ty = llvm.Ptr
	}
	ptr := g.b.StructGEP(g.vecTy(), v, field, name+"_ptr")
	return g.b.Load(ty, ptr, name)
}

func (g *Generator) storeVecField(v llvm.Value, field int, val llvm.Value) {
	ptr := g.b.StructGEP(g.vecTy(), v, field, "vf_ptr")
	g.b.Store(val, ptr)
}

func (g *Generator) typeSize(td llvm.Value) *llvm.Register {
	return g.b.Call(g.m.NamedFunction("move_type_size"), td)
}

func (g *Generator) typeAlign(td llvm.Value) *llvm.Register {
	return g.b.Call(g.m.NamedFunction("move_type_align"), td)
}

// ---- Vector operations ------------------------------------------------------

func (g *Generator) emitVectorOps() {
	g.emitBytesEq()
	g.emitVecEmpty()
	g.emitVecLength()
	g.emitVecBorrow("move_native_vector_borrow")
	g.emitVecBorrow("move_native_vector_borrow_mut")
	g.emitVecPushBack()
	g.emitVecPopBack()
	g.emitVecSwap()
	g.emitVecCopy()
	g.emitVecDestroy()
}

// emitBytesEq emits the internal byte-run equality loop.
func (g *Generator) emitBytesEq() {
	fn := g.m.AddFunction("move_bytes_eq", llvm.Func(llvm.I1, llvm.Ptr, llvm.Ptr, llvm.I64))
	fn.Linkage = "internal"
	b := g.b
	b.PositionAtEnd(fn.AppendBlock("entry"))
	neBB := fn.AppendBlock("ne")
	g.loop(fn, fn.Param(2), "cmp", func(i llvm.Value) {
		i32 := b.Trunc(i, llvm.I32, "i32")
		pa := b.GEP(llvm.I8, fn.Param(0), []llvm.Value{i32}, "pa")
		pb := b.GEP(llvm.I8, fn.Param(1), []llvm.Value{i32}, "pb")
		ba := b.Load(llvm.I8, pa, "ba")
		bb := b.Load(llvm.I8, pb, "bb")
		diff := b.ICmp(llvm.IntNE, ba, bb, "diff")
		contBB := fn.AppendBlock("cmp_cont")
		b.CondBr(diff, neBB, contBB)
		b.PositionAtEnd(contBB)
	})
	b.Ret(llvm.True)
	b.PositionAtEnd(neBB)
	b.Ret(llvm.False)
}

// emitVecEmpty publishes both spellings of the empty constructor. Even an
// empty vector carries a non-null buffer pointer aligned for its element
// type.
func (g *Generator) emitVecEmpty() {
	for _, name := range []string{"move_rt_vec_empty", "move_native_vector_empty"} {
		fn := g.m.AddFunction(name, llvm.Func(g.vecTy(), llvm.Ptr))
		fn.SetParamName(0, "td")
		b := g.b
		b.PositionAtEnd(fn.AppendBlock("entry"))
		align := g.typeAlign(fn.Param(0))
		align32 := b.Trunc(align, llvm.I32, "align32")
		sentinel := b.IntToPtr(align32, "sentinel")
		var vec llvm.Value = &llvm.Undef{Ty: g.vecTy()}
		vec = b.InsertValue(vec, sentinel, vecData, "vec")
		vec = b.InsertValue(vec, llvm.ConstIntVal(llvm.I64, 0), vecCap, "vec")
		vec = b.InsertValue(vec, llvm.ConstIntVal(llvm.I64, 0), vecLen, "vec")
		b.Ret(vec)
	}
}

func (g *Generator) emitVecLength() {
	fn := g.m.AddFunction("move_native_vector_length", llvm.Func(llvm.I64, llvm.Ptr, llvm.Ptr))
	b := g.b
	b.PositionAtEnd(fn.AppendBlock("entry"))
	b.Ret(g.loadVecField(fn.Param(1), vecLen, "len"))
}

// emitVecBorrow emits the bounds-checked element address computation shared
// by the shared and exclusive flavors.
func (g *Generator) emitVecBorrow(name string) {
	fn := g.m.AddFunction(name, llvm.Func(llvm.Ptr, llvm.Ptr, llvm.Ptr, llvm.I64))
	b := g.b
	b.PositionAtEnd(fn.AppendBlock("entry"))
	length := g.loadVecField(fn.Param(1), vecLen, "len")
	g.checkAbort(fn, b.ICmp(llvm.IntUGE, fn.Param(2), length, "oob"), abortArithmetic)
	data := g.loadVecField(fn.Param(1), vecData, "data")
	b.Ret(g.eltPtr(data, fn.Param(2), g.typeSize(fn.Param(0)), "elt"))
}

func (g *Generator) emitVecPushBack() {
	fn := g.m.AddFunction("move_native_vector_push_back", llvm.Func(llvm.Void, llvm.Ptr, llvm.Ptr, llvm.Ptr))
	b := g.b
	b.PositionAtEnd(fn.AppendBlock("entry"))
	td, v, elt := fn.Param(0), fn.Param(1), fn.Param(2)
	size := g.typeSize(td)
	length := g.loadVecField(v, vecLen, "len")
	capacity := g.loadVecField(v, vecCap, "cap")

	growBB := fn.AppendBlock("grow")
	storeBB := fn.AppendBlock("store_elt")
	full := b.ICmp(llvm.IntEQ, length, capacity, "full")
	b.CondBr(full, growBB, storeBB)

	// Grow: doubled capacity (4 when it was 0), fresh aux-data buffer, element
	// run copied over. The old buffer is abandoned to the bump allocator.
	b.PositionAtEnd(growBB)
	doubled := b.Shl(capacity, llvm.ConstIntVal(llvm.I64, 1), "doubled")
	wasEmpty := b.ICmp(llvm.IntEQ, capacity, llvm.ConstIntVal(llvm.I64, 0), "was_empty")
	newCap := b.Select(wasEmpty, llvm.ConstIntVal(llvm.I64, 4), doubled, "new_cap")
	bytes := b.Mul(newCap, size, "grow_bytes")
	buf32 := b.Call(g.imported("guest_alloc"),
		b.Trunc(bytes, llvm.I32, "grow_bytes32"),
		b.Trunc(g.typeAlign(td), llvm.I32, "grow_align32"))
	newBuf := b.IntToPtr(buf32, "new_buf")
	oldData := g.loadVecField(v, vecData, "old_data")
	used := b.Mul(length, size, "used_bytes")
	b.MemcpyVal(newBuf, oldData, b.Trunc(used, llvm.I32, "used32"))
	g.storeVecField(v, vecData, newBuf)
	g.storeVecField(v, vecCap, newCap)
	b.Br(storeBB)

	b.PositionAtEnd(storeBB)
	data := g.loadVecField(v, vecData, "data")
	dst := g.eltPtr(data, length, size, "dst")
	b.MemcpyVal(dst, elt, b.Trunc(size, llvm.I32, "size32"))
	g.storeVecField(v, vecLen, b.Add(length, llvm.ConstIntVal(llvm.I64, 1), "new_len"))
	b.RetVoid()
}

func (g *Generator) emitVecPopBack() {
	fn := g.m.AddFunction("move_native_vector_pop_back", llvm.Func(llvm.Void, llvm.Ptr, llvm.Ptr, llvm.Ptr))
	b := g.b
	b.PositionAtEnd(fn.AppendBlock("entry"))
	td, v, out := fn.Param(0), fn.Param(1), fn.Param(2)
	length := g.loadVecField(v, vecLen, "len")
	g.checkAbort(fn, b.ICmp(llvm.IntEQ, length, llvm.ConstIntVal(llvm.I64, 0), "empty"), abortArithmetic)
	size := g.typeSize(td)
	last := b.Sub(length, llvm.ConstIntVal(llvm.I64, 1), "last")
	data := g.loadVecField(v, vecData, "data")
	src := g.eltPtr(data, last, size, "src")
	b.MemcpyVal(out, src, b.Trunc(size, llvm.I32, "size32"))
	g.storeVecField(v, vecLen, last)
	b.RetVoid()
}

func (g *Generator) emitVecSwap() {
	fn := g.m.AddFunction("move_native_vector_swap", llvm.Func(llvm.Void, llvm.Ptr, llvm.Ptr, llvm.I64, llvm.I64))
	b := g.b
	b.PositionAtEnd(fn.AppendBlock("entry"))
	td, v, i, j := fn.Param(0), fn.Param(1), fn.Param(2), fn.Param(3)
	length := g.loadVecField(v, vecLen, "len")
	oob := b.Or(
		b.ZExt(b.ICmp(llvm.IntUGE, i, length, "i_oob"), llvm.I8, "i_oob8"),
		b.ZExt(b.ICmp(llvm.IntUGE, j, length, "j_oob"), llvm.I8, "j_oob8"),
		"oob")
	g.checkAbort(fn, b.ICmp(llvm.IntNE, oob, llvm.ConstIntVal(llvm.I8, 0), "oob_any"), abortArithmetic)

	size := g.typeSize(td)
	size32 := b.Trunc(size, llvm.I32, "size32")
	data := g.loadVecField(v, vecData, "data")
	pi := g.eltPtr(data, i, size, "pi")
	pj := g.eltPtr(data, j, size, "pj")
	// Scratch space comes from the aux-data region; the bump allocator has
	// no free, so a swap leaks one element of scratch by design of the
	// allocator, not of this routine.
	tmp32 := b.Call(g.imported("guest_alloc"), size32, b.Trunc(g.typeAlign(td), llvm.I32, "align32"))
	tmp := b.IntToPtr(tmp32, "tmp")
	b.MemcpyVal(tmp, pi, size32)
	b.MemcpyVal(pi, pj, size32)
	b.MemcpyVal(pj, tmp, size32)
	b.RetVoid()
}

// emitVecCopy clones the source element run into the destination, which must
// have been created with vec_empty.
func (g *Generator) emitVecCopy() {
	fn := g.m.AddFunction("move_rt_vec_copy", llvm.Func(llvm.Void, llvm.Ptr, llvm.Ptr, llvm.Ptr))
	b := g.b
	b.PositionAtEnd(fn.AppendBlock("entry"))
	td, dst, src := fn.Param(0), fn.Param(1), fn.Param(2)
	size := g.typeSize(td)
	length := g.loadVecField(src, vecLen, "len")
	bytes := b.Mul(length, size, "bytes")
	bytes32 := b.Trunc(bytes, llvm.I32, "bytes32")

	emptyBB := fn.AppendBlock("src_empty")
	copyBB := fn.AppendBlock("copy")
	b.CondBr(b.ICmp(llvm.IntEQ, length, llvm.ConstIntVal(llvm.I64, 0), "is_empty"), emptyBB, copyBB)
	b.PositionAtEnd(emptyBB)
	b.RetVoid()

	b.PositionAtEnd(copyBB)
	buf32 := b.Call(g.imported("guest_alloc"), bytes32, b.Trunc(g.typeAlign(td), llvm.I32, "align32"))
	buf := b.IntToPtr(buf32, "buf")
	srcData := g.loadVecField(src, vecData, "src_data")
	b.MemcpyVal(buf, srcData, bytes32)
	g.storeVecField(dst, vecData, buf)
	g.storeVecField(dst, vecCap, length)
	g.storeVecField(dst, vecLen, length)
	b.RetVoid()
}

func (g *Generator) emitVecDestroy() {
	// Unconditional destroy: the bump allocator has no free, so dropping
	// the header is all there is to do.
	fn := g.m.AddFunction("move_rt_vec_destroy", llvm.Func(llvm.Void, llvm.Ptr, llvm.Ptr))
	b := g.b
	b.PositionAtEnd(fn.AppendBlock("entry"))
	b.RetVoid()

	// destroy_empty additionally requires length zero.
	fn = g.m.AddFunction("move_native_vector_destroy_empty", llvm.Func(llvm.Void, llvm.Ptr, llvm.Ptr))
	b.PositionAtEnd(fn.AppendBlock("entry"))
	length := g.loadVecField(fn.Param(1), vecLen, "len")
	g.checkAbort(fn, b.ICmp(llvm.IntNE, length, llvm.ConstIntVal(llvm.I64, 0), "nonempty"), PanicCode)
	b.RetVoid()
}

// ---- Equality ---------------------------------------------------------------

// emitCompare emits value_cmp_eq (the kind switch), the vector and struct
// equality entry points, and string equality.
func (g *Generator) emitCompare() {
	// Declare the mutually recursive set up front.
	valueCmp := g.m.AddFunction("move_value_cmp_eq", llvm.Func(llvm.I1, llvm.Ptr, llvm.Ptr, llvm.Ptr))
	valueCmp.Linkage = "internal"
	vecCmp := g.m.AddFunction("move_rt_vec_cmp_eq", llvm.Func(llvm.I1, llvm.Ptr, llvm.Ptr, llvm.Ptr))
	structCmp := g.m.AddFunction("move_rt_struct_cmp_eq", llvm.Func(llvm.I1, llvm.Ptr, llvm.Ptr, llvm.Ptr))
	bytesEq := g.m.NamedFunction("move_bytes_eq")
	b := g.b

	// value_cmp_eq(td, a, b): dispatch on the descriptor kind.
	b.PositionAtEnd(valueCmp.AppendBlock("entry"))
	td, va, vb := valueCmp.Param(0), valueCmp.Param(1), valueCmp.Param(2)
	kind := b.Load(llvm.I64, b.StructGEP(g.typeTy(), td, 1, "kind_ptr"), "kind")

	primBB := valueCmp.AppendBlock("prim")
	vecBB := valueCmp.AppendBlock("vec")
	structBB := valueCmp.AppendBlock("struct")
	refBB := valueCmp.AppendBlock("ref")
	b.Switch(kind, primBB, []llvm.SwitchCase{
		{Val: llvm.ConstIntVal(llvm.I64, rttydesc.KindVector), Dest: vecBB},
		{Val: llvm.ConstIntVal(llvm.I64, rttydesc.KindStruct), Dest: structBB},
		{Val: llvm.ConstIntVal(llvm.I64, rttydesc.KindReference), Dest: refBB},
	})

	b.PositionAtEnd(primBB)
	b.Ret(b.Call(bytesEq, va, vb, g.typeSize(td)))

	b.PositionAtEnd(vecBB)
	info := b.Load(llvm.Ptr, b.StructGEP(g.typeTy(), td, 2, "info_ptr"), "info")
	elemTd := b.Load(llvm.Ptr, info, "elem_td")
	b.Ret(b.Call(vecCmp, elemTd, va, vb))

	b.PositionAtEnd(structBB)
	b.Ret(b.Call(structCmp, td, va, vb))

	b.PositionAtEnd(refBB)
	rinfo := b.Load(llvm.Ptr, b.StructGEP(g.typeTy(), td, 2, "rinfo_ptr"), "rinfo")
	refTd := b.Load(llvm.Ptr, rinfo, "ref_td")
	pa := b.Load(llvm.Ptr, va, "ref_a")
	pb := b.Load(llvm.Ptr, vb, "ref_b")
	b.Ret(b.Call(valueCmp, refTd, pa, pb))

	// vec_cmp_eq(elem_td, v1, v2): lexicographic equality, element-wise
	// through value_cmp_eq.
	b.PositionAtEnd(vecCmp.AppendBlock("entry"))
	etd, v1, v2 := vecCmp.Param(0), vecCmp.Param(1), vecCmp.Param(2)
	l1 := g.loadVecField(v1, vecLen, "l1")
	l2 := g.loadVecField(v2, vecLen, "l2")
	neBB := vecCmp.AppendBlock("ne")
	lenOkBB := vecCmp.AppendBlock("len_ok")
	b.CondBr(b.ICmp(llvm.IntNE, l1, l2, "len_ne"), neBB, lenOkBB)
	b.PositionAtEnd(lenOkBB)
	size := g.typeSize(etd)
	d1 := g.loadVecField(v1, vecData, "d1")
	d2 := g.loadVecField(v2, vecData, "d2")
	g.loop(vecCmp, l1, "vcmp", func(i llvm.Value) {
		p1 := g.eltPtr(d1, i, size, "p1")
		p2 := g.eltPtr(d2, i, size, "p2")
		eq := b.Call(valueCmp, etd, p1, p2)
		contBB := vecCmp.AppendBlock("vcmp_cont")
		b.CondBr(b.ICmp(llvm.IntEQ, eq, llvm.False, "elt_ne"), neBB, contBB)
		b.PositionAtEnd(contBB)
	})
	b.Ret(llvm.True)
	b.PositionAtEnd(neBB)
	b.Ret(llvm.False)

	// struct_cmp_eq(td, s1, s2): field-wise through the descriptor's field
	// table.
	b.PositionAtEnd(structCmp.AppendBlock("entry"))
	std, s1, s2 := structCmp.Param(0), structCmp.Param(1), structCmp.Param(2)
	sinfo := b.Load(llvm.Ptr, b.StructGEP(g.typeTy(), std, 2, "sinfo_ptr"), "sinfo")
	structInfoTy := llvm.Struct(llvm.Ptr, llvm.I64, llvm.I64, llvm.I64)
	fieldsPtr := b.Load(llvm.Ptr, b.StructGEP(structInfoTy, sinfo, 0, "fields_ptr"), "fields")
	fieldCount := b.Load(llvm.I64, b.StructGEP(structInfoTy, sinfo, 1, "count_ptr"), "count")

	fieldRecordTy := llvm.Struct(g.typeTy(), llvm.I64, llvm.Struct(llvm.Ptr, llvm.I64))
	layout := llvm.DataLayout{}
	recSize := layout.SizeOf(fieldRecordTy)
	offOffset := layout.Offsets(fieldRecordTy)[1]

	sneBB := structCmp.AppendBlock("ne")
	g.loop(structCmp, fieldCount, "fcmp", func(i llvm.Value) {
		rec := g.eltPtr(fieldsPtr, i, llvm.ConstIntVal(llvm.I64, uint64(recSize)), "rec")
		fieldTd := rec // the embedded descriptor sits at offset 0
		offPtr := b.GEP(llvm.I8, rec, []llvm.Value{llvm.ConstIntVal(llvm.I32, uint64(offOffset))}, "off_ptr")
		off := b.Load(llvm.I64, offPtr, "off")
		off32 := b.Trunc(off, llvm.I32, "off32")
		f1 := b.GEP(llvm.I8, s1, []llvm.Value{off32}, "f1")
		f2 := b.GEP(llvm.I8, s2, []llvm.Value{off32}, "f2")
		eq := b.Call(valueCmp, fieldTd, f1, f2)
		contBB := structCmp.AppendBlock("fcmp_cont")
		b.CondBr(b.ICmp(llvm.IntEQ, eq, llvm.False, "field_ne"), sneBB, contBB)
		b.PositionAtEnd(contBB)
	})
	b.Ret(llvm.True)
	b.PositionAtEnd(sneBB)
	b.Ret(llvm.False)

	// str_cmp_eq(p1, l1, p2, l2): byte equality over UTF-8 slices.
	strCmp := g.m.AddFunction("move_rt_str_cmp_eq", llvm.Func(llvm.I1, llvm.Ptr, llvm.I64, llvm.Ptr, llvm.I64))
	b.PositionAtEnd(strCmp.AppendBlock("entry"))
	lneBB := strCmp.AppendBlock("len_ne")
	sameBB := strCmp.AppendBlock("len_eq")
	b.CondBr(b.ICmp(llvm.IntNE, strCmp.Param(1), strCmp.Param(3), "len_ne"), lneBB, sameBB)
	b.PositionAtEnd(lneBB)
	b.Ret(llvm.False)
	b.PositionAtEnd(sameBB)
	b.Ret(b.Call(bytesEq, strCmp.Param(0), strCmp.Param(2), strCmp.Param(1)))
}
