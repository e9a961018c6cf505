// Copyright 2025 The MoveChain Authors
// This file is part of the go-move library.

package runtime

import (
	"github.com/movechain/go-move/movelang/llvm"
)

// emitStringOps publishes the std::string internals: UTF-8 validation,
// char-boundary probing, substring extraction and substring search. Strings
// are byte vectors at the representation level.
func (g *Generator) emitStringOps() {
	g.emitCheckUtf8()
	g.emitIsCharBoundary()
	g.emitSubString()
	g.emitIndexOf()
}

// emitCheckUtf8 validates a byte vector as UTF-8, rejecting overlong
// encodings, surrogates and out-of-range code points the way the usual
// range-table validator does.
func (g *Generator) emitCheckUtf8() {
	fn := g.m.AddFunction("move_native_string_internal_check_utf8", llvm.Func(llvm.I1, llvm.Ptr))
	fn.SetParamName(0, "v")
	b := g.b
	b.PositionAtEnd(fn.AppendBlock("entry"))
	data := g.loadVecField(fn.Param(0), vecData, "data")
	length := g.loadVecField(fn.Param(0), vecLen, "len")

	iSlot := b.Alloca(llvm.I64, "i")
	loSlot := b.Alloca(llvm.I8, "lo")
	hiSlot := b.Alloca(llvm.I8, "hi")
	nSlot := b.Alloca(llvm.I64, "n")
	b.Store(llvm.ConstIntVal(llvm.I64, 0), iSlot)

	head := fn.AppendBlock("head")
	body := fn.AppendBlock("body")
	okBB := fn.AppendBlock("ok")
	failBB := fn.AppendBlock("fail")
	multi := fn.AppendBlock("multi")
	next := fn.AppendBlock("next")

	loadByte := func(idx llvm.Value, name string) *llvm.Register {
		idx32 := b.Trunc(idx, llvm.I32, name+"_i32")
		p := b.GEP(llvm.I8, data, []llvm.Value{idx32}, name+"_p")
		return b.Load(llvm.I8, p, name)
	}

	b.Br(head)
	b.PositionAtEnd(head)
	i := b.Load(llvm.I64, iSlot, "idx")
	b.CondBr(b.ICmp(llvm.IntULT, i, length, "more"), body, okBB)

	b.PositionAtEnd(body)
	b0 := loadByte(i, "b0")

	// classify the lead byte: each arm records the count of continuation
	// bytes and the admissible range of the first one.
	ascii := fn.AppendBlock("ascii")
	notAscii := fn.AppendBlock("not_ascii")
	b.CondBr(b.ICmp(llvm.IntULE, b0, llvm.ConstIntVal(llvm.I8, 0x7F), "is_ascii"), ascii, notAscii)

	b.PositionAtEnd(ascii)
	b.Store(b.Add(i, llvm.ConstIntVal(llvm.I64, 1), "i1"), iSlot)
	b.Br(head)

	classify := func(cur *llvm.BasicBlock, cond llvm.Value, n uint64, lo, hi uint64) *llvm.BasicBlock {
		hit := fn.AppendBlock("lead_hit")
		miss := fn.AppendBlock("lead_miss")
		b.CondBr(cond, hit, miss)
		b.PositionAtEnd(hit)
		b.Store(llvm.ConstIntVal(llvm.I64, n), nSlot)
		b.Store(llvm.ConstIntVal(llvm.I8, lo), loSlot)
		b.Store(llvm.ConstIntVal(llvm.I8, hi), hiSlot)
		b.Br(multi)
		b.PositionAtEnd(miss)
		return miss
	}

	b.PositionAtEnd(notAscii)
	// Bytes 0x80..0xC1 never lead a sequence.
	cont := fn.AppendBlock("lead2")
	b.CondBr(b.ICmp(llvm.IntULT, b0, llvm.ConstIntVal(llvm.I8, 0xC2), "bad_lead"), failBB, cont)
	b.PositionAtEnd(cont)
	cur := classify(cont, b.ICmp(llvm.IntULE, b0, llvm.ConstIntVal(llvm.I8, 0xDF), "is2"), 1, 0x80, 0xBF)
	cur = classify(cur, b.ICmp(llvm.IntEQ, b0, llvm.ConstIntVal(llvm.I8, 0xE0), "isE0"), 2, 0xA0, 0xBF)
	cur = classify(cur, b.ICmp(llvm.IntEQ, b0, llvm.ConstIntVal(llvm.I8, 0xED), "isED"), 2, 0x80, 0x9F)
	cur = classify(cur, b.ICmp(llvm.IntULE, b0, llvm.ConstIntVal(llvm.I8, 0xEF), "is3"), 2, 0x80, 0xBF)
	cur = classify(cur, b.ICmp(llvm.IntEQ, b0, llvm.ConstIntVal(llvm.I8, 0xF0), "isF0"), 3, 0x90, 0xBF)
	cur = classify(cur, b.ICmp(llvm.IntULE, b0, llvm.ConstIntVal(llvm.I8, 0xF3), "is4"), 3, 0x80, 0xBF)
	cur = classify(cur, b.ICmp(llvm.IntEQ, b0, llvm.ConstIntVal(llvm.I8, 0xF4), "isF4"), 3, 0x80, 0x8F)
	b.Br(failBB) // 0xF5..0xFF

	// Shared continuation check: the first continuation honors [lo, hi],
	// the rest 0x80..0xBF.
	b.PositionAtEnd(multi)
	n := b.Load(llvm.I64, nSlot, "n")
	end := b.Add(i, n, "end")
	inBounds := fn.AppendBlock("cont_bounds_ok")
	b.CondBr(b.ICmp(llvm.IntUGE, end, length, "trunc_seq"), failBB, inBounds)

	b.PositionAtEnd(inBounds)
	b1 := loadByte(b.Add(i, llvm.ConstIntVal(llvm.I64, 1), "i_c1"), "b1")
	lo := b.Load(llvm.I8, loSlot, "lo")
	hi := b.Load(llvm.I8, hiSlot, "hi")
	firstOk := fn.AppendBlock("first_ok")
	bad1 := b.Or(
		b.ZExt(b.ICmp(llvm.IntULT, b1, lo, "b1_lo"), llvm.I8, "b1_lo8"),
		b.ZExt(b.ICmp(llvm.IntUGT, b1, hi, "b1_hi"), llvm.I8, "b1_hi8"),
		"b1_bad")
	b.CondBr(b.ICmp(llvm.IntNE, bad1, llvm.ConstIntVal(llvm.I8, 0), "b1_bad_any"), failBB, firstOk)

	b.PositionAtEnd(firstOk)
	// Trailing continuations (offsets 2..n).
	kSlot := b.Alloca(llvm.I64, "k")
	b.Store(llvm.ConstIntVal(llvm.I64, 2), kSlot)
	tailHead := fn.AppendBlock("tail_head")
	tailBody := fn.AppendBlock("tail_body")
	b.Br(tailHead)
	b.PositionAtEnd(tailHead)
	k := b.Load(llvm.I64, kSlot, "kidx")
	b.CondBr(b.ICmp(llvm.IntULE, k, n, "tail_more"), tailBody, next)
	b.PositionAtEnd(tailBody)
	bk := loadByte(b.Add(i, k, "i_ck"), "bk")
	masked := b.And(bk, llvm.ConstIntVal(llvm.I8, 0xC0), "bk_masked")
	tailOk := fn.AppendBlock("tail_ok")
	b.CondBr(b.ICmp(llvm.IntNE, masked, llvm.ConstIntVal(llvm.I8, 0x80), "bk_bad"), failBB, tailOk)
	b.PositionAtEnd(tailOk)
	b.Store(b.Add(k, llvm.ConstIntVal(llvm.I64, 1), "k1"), kSlot)
	b.Br(tailHead)

	b.PositionAtEnd(next)
	b.Store(b.Add(end, llvm.ConstIntVal(llvm.I64, 1), "i_next"), iSlot)
	b.Br(head)

	b.PositionAtEnd(okBB)
	b.Ret(llvm.True)
	b.PositionAtEnd(failBB)
	b.Ret(llvm.False)
}

// emitIsCharBoundary reports whether index i falls on a UTF-8 character
// boundary of the byte vector: the ends always do, continuation bytes never.
func (g *Generator) emitIsCharBoundary() {
	fn := g.m.AddFunction("move_native_string_internal_is_char_boundary", llvm.Func(llvm.I1, llvm.Ptr, llvm.I64))
	b := g.b
	b.PositionAtEnd(fn.AppendBlock("entry"))
	v, i := fn.Param(0), fn.Param(1)
	length := g.loadVecField(v, vecLen, "len")

	atEnd := fn.AppendBlock("at_end")
	inRange := fn.AppendBlock("in_range")
	past := fn.AppendBlock("past")
	b.CondBr(b.ICmp(llvm.IntEQ, i, length, "is_end"), atEnd, inRange)
	b.PositionAtEnd(atEnd)
	b.Ret(llvm.True)

	b.PositionAtEnd(inRange)
	inBounds := fn.AppendBlock("in_bounds")
	b.CondBr(b.ICmp(llvm.IntUGT, i, length, "past_end"), past, inBounds)
	b.PositionAtEnd(past)
	b.Ret(llvm.False)

	b.PositionAtEnd(inBounds)
	data := g.loadVecField(v, vecData, "data")
	i32 := b.Trunc(i, llvm.I32, "i32")
	p := b.GEP(llvm.I8, data, []llvm.Value{i32}, "p")
	byteVal := b.Load(llvm.I8, p, "b")
	masked := b.And(byteVal, llvm.ConstIntVal(llvm.I8, 0xC0), "masked")
	b.Ret(b.ICmp(llvm.IntNE, masked, llvm.ConstIntVal(llvm.I8, 0x80), "boundary"))
}

// emitSubString extracts bytes [i, j) into a fresh vector; out-of-order or
// out-of-range indices abort.
func (g *Generator) emitSubString() {
	fn := g.m.AddFunction("move_native_string_internal_sub_string", llvm.Func(g.vecTy(), llvm.Ptr, llvm.I64, llvm.I64))
	b := g.b
	b.PositionAtEnd(fn.AppendBlock("entry"))
	s, i, j := fn.Param(0), fn.Param(1), fn.Param(2)
	length := g.loadVecField(s, vecLen, "len")

	bad := b.Or(
		b.ZExt(b.ICmp(llvm.IntUGT, j, length, "j_oob"), llvm.I8, "j_oob8"),
		b.ZExt(b.ICmp(llvm.IntUGT, i, j, "order"), llvm.I8, "order8"),
		"bad")
	g.checkAbort(fn, b.ICmp(llvm.IntNE, bad, llvm.ConstIntVal(llvm.I8, 0), "bad_any"), abortArithmetic)

	n := b.Sub(j, i, "n")
	n32 := b.Trunc(n, llvm.I32, "n32")
	emptyBB := fn.AppendBlock("empty")
	copyBB := fn.AppendBlock("copy")
	b.CondBr(b.ICmp(llvm.IntEQ, n, llvm.ConstIntVal(llvm.I64, 0), "is_empty"), emptyBB, copyBB)

	b.PositionAtEnd(emptyBB)
	var empty llvm.Value = &llvm.Undef{Ty: g.vecTy()}
	empty = b.InsertValue(empty, b.IntToPtr(llvm.ConstIntVal(llvm.I32, 1), "sentinel"), vecData, "sub")
	empty = b.InsertValue(empty, llvm.ConstIntVal(llvm.I64, 0), vecCap, "sub")
	empty = b.InsertValue(empty, llvm.ConstIntVal(llvm.I64, 0), vecLen, "sub")
	b.Ret(empty)

	b.PositionAtEnd(copyBB)
	buf32 := b.Call(g.imported("guest_alloc"), n32, llvm.ConstIntVal(llvm.I32, 1))
	buf := b.IntToPtr(buf32, "buf")
	data := g.loadVecField(s, vecData, "data")
	i32 := b.Trunc(i, llvm.I32, "i32")
	src := b.GEP(llvm.I8, data, []llvm.Value{i32}, "src")
	b.MemcpyVal(buf, src, n32)
	var out llvm.Value = &llvm.Undef{Ty: g.vecTy()}
	out = b.InsertValue(out, buf, vecData, "sub")
	out = b.InsertValue(out, n, vecCap, "sub")
	out = b.InsertValue(out, n, vecLen, "sub")
	b.Ret(out)
}

// emitIndexOf finds the first occurrence of r within s, returning len(s)
// when absent.
func (g *Generator) emitIndexOf() {
	fn := g.m.AddFunction("move_native_string_internal_index_of", llvm.Func(llvm.I64, llvm.Ptr, llvm.Ptr))
	b := g.b
	b.PositionAtEnd(fn.AppendBlock("entry"))
	s, r := fn.Param(0), fn.Param(1)
	ls := g.loadVecField(s, vecLen, "ls")
	lr := g.loadVecField(r, vecLen, "lr")

	missBB := fn.AppendBlock("miss")
	searchBB := fn.AppendBlock("search")
	b.CondBr(b.ICmp(llvm.IntUGT, lr, ls, "too_long"), missBB, searchBB)

	b.PositionAtEnd(searchBB)
	ds := g.loadVecField(s, vecData, "ds")
	dr := g.loadVecField(r, vecData, "dr")
	limit := b.Add(b.Sub(ls, lr, "span"), llvm.ConstIntVal(llvm.I64, 1), "limit")
	bytesEq := g.m.NamedFunction("move_bytes_eq")
	g.loop(fn, limit, "find", func(i llvm.Value) {
		i32 := b.Trunc(i, llvm.I32, "i32")
		p := b.GEP(llvm.I8, ds, []llvm.Value{i32}, "p")
		eq := b.Call(bytesEq, p, dr, lr)
		hitBB := fn.AppendBlock("hit")
		contBB := fn.AppendBlock("find_cont")
		b.CondBr(eq, hitBB, contBB)
		b.PositionAtEnd(hitBB)
		b.Ret(i)
		b.PositionAtEnd(contBB)
	})
	b.Br(missBB)

	b.PositionAtEnd(missBB)
	b.Ret(ls)
}
