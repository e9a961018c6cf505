// Copyright 2025 The MoveChain Authors
// This file is part of the go-move library.

package stackless

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/movechain/go-move/movelang/llvm"
	"github.com/movechain/go-move/movelang/model"
)

// translateCall dispatches the operation payload of a Call instruction.
func (fc *FunctionContext) translateCall(bc model.Bytecode) error {
	op := bc.Op
	switch op.Kind {
	case model.OpFunction:
		return fc.translateFunctionCall(bc)

	case model.OpPack:
		return fc.translatePack(bc)
	case model.OpUnpack:
		return fc.translateUnpack(bc)
	case model.OpBorrowLoc:
		fc.storeLocal(bc.Dsts[0], fc.locals[bc.Srcs[0]].slot)
		return nil
	case model.OpBorrowField:
		return fc.translateBorrowField(bc)
	case model.OpReadRef:
		ptr := fc.loadLocal(bc.Srcs[0], "ref")
		val := fc.b.Load(fc.locals[bc.Dsts[0]].llty, ptr, "deref")
		fc.storeLocal(bc.Dsts[0], val)
		return nil
	case model.OpWriteRef:
		ptr := fc.loadLocal(bc.Srcs[0], "ref")
		val := fc.loadLocal(bc.Srcs[1], "wrval")
		fc.b.Store(val, ptr)
		return nil
	case model.OpFreezeRef:
		fc.storeLocal(bc.Dsts[0], fc.loadLocal(bc.Srcs[0], "frozen"))
		return nil

	case model.OpMoveTo:
		return fc.translateMoveTo(bc)
	case model.OpMoveFrom:
		return fc.translateMoveFrom(bc)
	case model.OpBorrowGlobal:
		return fc.translateBorrowGlobal(bc)
	case model.OpExists:
		return fc.translateExists(bc)
	case model.OpRelease:
		return fc.translateRelease(bc)

	case model.OpAdd, model.OpSub, model.OpMul, model.OpDiv, model.OpMod,
		model.OpBitOr, model.OpBitAnd, model.OpBitXor, model.OpShl, model.OpShr,
		model.OpOr, model.OpAnd:
		return fc.translateArith(bc)
	case model.OpNot:
		// Logical not: XOR with 1 on the 8-bit representation.
		v := fc.loadLocal(bc.Srcs[0], "notsrc")
		fc.storeLocal(bc.Dsts[0], fc.b.Xor(v, llvm.ConstIntVal(llvm.I8, 1), "not"))
		return nil

	case model.OpEq, model.OpNeq, model.OpLt, model.OpLe, model.OpGt, model.OpGe:
		return fc.translateCompare(bc)

	case model.OpCastU8, model.OpCastU16, model.OpCastU32,
		model.OpCastU64, model.OpCastU128, model.OpCastU256:
		return fc.translateCast(bc)

	case model.OpDestroy:
		return fc.translateDestroy(bc)
	}
	return fmt.Errorf("stackless: unsupported operation %s", op.Kind)
}

// ---- Arithmetic -------------------------------------------------------------

func (fc *FunctionContext) translateArith(bc model.Bytecode) error {
	lhs := fc.loadLocal(bc.Srcs[0], "lhs")
	rhs := fc.loadLocal(bc.Srcs[1], "rhs")
	dst := bc.Dsts[0]

	switch bc.Op.Kind {
	case model.OpAdd:
		sum := fc.b.Add(lhs, rhs, "add")
		fc.storeLocal(dst, sum)
		// Unsigned wrap shows as sum < lhs.
		fc.emitCheckAbort(fc.b.ICmp(llvm.IntULT, sum, lhs, "ovfcond"))
	case model.OpSub:
		diff := fc.b.Sub(lhs, rhs, "sub")
		fc.storeLocal(dst, diff)
		// Unsigned wrap shows as diff > lhs.
		fc.emitCheckAbort(fc.b.ICmp(llvm.IntUGT, diff, lhs, "ovfcond"))
	case model.OpMul:
		pair := fc.b.MulWithOverflow(fc.mc.llmod, lhs, rhs, "mul_pair")
		ity := lhs.Type().(*llvm.IntType)
		prod := fc.b.ExtractValue(pair, 0, ity, "mul")
		ovf := fc.b.ExtractValue(pair, 1, llvm.I1, "mul_ovf")
		fc.storeLocal(dst, prod)
		fc.emitCheckAbort(ovf)
	case model.OpDiv, model.OpMod:
		zero := llvm.ConstIntVal(rhs.Type().(*llvm.IntType), 0)
		fc.emitCheckAbort(fc.b.ICmp(llvm.IntEQ, rhs, zero, "zerocond"))
		if bc.Op.Kind == model.OpDiv {
			fc.storeLocal(dst, fc.b.UDiv(lhs, rhs, "div"))
		} else {
			fc.storeLocal(dst, fc.b.URem(lhs, rhs, "mod"))
		}
	case model.OpBitOr, model.OpOr:
		fc.storeLocal(dst, fc.b.Or(lhs, rhs, "or"))
	case model.OpBitAnd, model.OpAnd:
		fc.storeLocal(dst, fc.b.And(lhs, rhs, "and"))
	case model.OpBitXor:
		fc.storeLocal(dst, fc.b.Xor(lhs, rhs, "xor"))
	case model.OpShl, model.OpShr:
		width := lhs.Type().(*llvm.IntType).Bits
		// u256 shift counts are already limited to u8 by Move; no
		// range test there.
		if width != 256 {
			limit := llvm.ConstIntVal(rhs.Type().(*llvm.IntType), uint64(width))
			fc.emitCheckAbort(fc.b.ICmp(llvm.IntUGE, rhs, limit, "rangecond"))
		}
		// Widen the 8-bit count to the operand width for the same-type
		// requirement.
		count := llvm.Value(rhs)
		if rhs.Type().(*llvm.IntType).Bits < width {
			count = fc.b.ZExt(rhs, llvm.Int(width), "count")
		}
		if bc.Op.Kind == model.OpShl {
			fc.storeLocal(dst, fc.b.Shl(lhs, count, "shl"))
		} else {
			fc.storeLocal(dst, fc.b.LShr(lhs, count, "shr"))
		}
	}
	return nil
}

// ---- Comparison -------------------------------------------------------------

var comparePreds = map[model.OpKind]llvm.IntPredicate{
	model.OpEq: llvm.IntEQ, model.OpNeq: llvm.IntNE,
	model.OpLt: llvm.IntULT, model.OpLe: llvm.IntULE,
	model.OpGt: llvm.IntUGT, model.OpGe: llvm.IntUGE,
}

func (fc *FunctionContext) translateCompare(bc model.Bytecode) error {
	dst := bc.Dsts[0]
	a, b := bc.Srcs[0], bc.Srcs[1]

	// References are transparently dereferenced before comparison.
	aTy := fc.locals[a].mty
	if ref, ok := aTy.(*model.Reference); ok {
		aTy = ref.Elem
	}

	switch t := aTy.(type) {
	case *model.Primitive:
		if t.Kind == model.Address || t.Kind == model.Signer {
			return fc.compareAddresses(bc, dst, a, b)
		}
		lhs := fc.comparand(a, t)
		rhs := fc.comparand(b, t)
		bit := fc.b.ICmp(comparePreds[bc.Op.Kind], lhs, rhs, "cmp")
		fc.storeLocal(dst, fc.b.ZExt(bit, llvm.I8, "cmp8"))
		return nil
	case *model.Vector:
		return fc.compareByRuntime(bc, "move_rt_vec_cmp_eq", t.Elem, dst, a, b)
	case *model.StructRef:
		return fc.compareByRuntime(bc, "move_rt_struct_cmp_eq", t, dst, a, b)
	}
	return fmt.Errorf("stackless: cannot compare values of type %s", aTy)
}

// comparand loads a primitive value, following one reference indirection.
func (fc *FunctionContext) comparand(idx model.TempIndex, elem *model.Primitive) llvm.Value {
	if _, ok := fc.locals[idx].mty.(*model.Reference); ok {
		ptr := fc.loadLocal(idx, "cmpref")
		return fc.b.Load(llvm.Int(elem.BitWidth()), ptr, "cmpval")
	}
	return fc.loadLocal(idx, "cmpval")
}

// compareAddresses compares two 32-byte addresses as single wide integers.
// One code path only; the memcmp-shaped runtime helper stays unused.
func (fc *FunctionContext) compareAddresses(bc model.Bytecode, dst, a, b model.TempIndex) error {
	if bc.Op.Kind != model.OpEq && bc.Op.Kind != model.OpNeq {
		return fmt.Errorf("stackless: addresses only compare for equality")
	}
	lp := fc.addrPtr(a)
	rp := fc.addrPtr(b)
	lhs := fc.b.Load(llvm.I256, lp, "addr_l")
	rhs := fc.b.Load(llvm.I256, rp, "addr_r")
	bit := fc.b.ICmp(comparePreds[bc.Op.Kind], lhs, rhs, "addrcmp")
	fc.storeLocal(dst, fc.b.ZExt(bit, llvm.I8, "cmp8"))
	return nil
}

// addrPtr returns a pointer to the 32 address bytes of a local, following a
// reference if present.
func (fc *FunctionContext) addrPtr(idx model.TempIndex) llvm.Value {
	if _, ok := fc.locals[idx].mty.(*model.Reference); ok {
		return fc.loadLocal(idx, "addrref")
	}
	return fc.locals[idx].slot
}

// compareByRuntime lowers vector and struct comparison onto the runtime
// equality helpers, negating for Neq.
func (fc *FunctionContext) compareByRuntime(bc model.Bytecode, runtime string, descTy model.Type, dst, a, b model.TempIndex) error {
	if bc.Op.Kind != model.OpEq && bc.Op.Kind != model.OpNeq {
		return fmt.Errorf("stackless: %s only compares for equality", fc.locals[a].mty)
	}
	tydesc, err := fc.mc.rtty.Describe(descTy)
	if err != nil {
		return err
	}
	eq := fc.b.Call(fc.mc.runtimeFunction(runtime), tydesc, fc.valuePtr(a), fc.valuePtr(b))
	res := fc.b.ZExt(eq, llvm.I8, "eq8")
	if bc.Op.Kind == model.OpNeq {
		fc.storeLocal(dst, fc.b.Xor(res, llvm.ConstIntVal(llvm.I8, 1), "neq"))
		return nil
	}
	fc.storeLocal(dst, res)
	return nil
}

// valuePtr returns a pointer to a local's storage, following a reference if
// the local holds one.
func (fc *FunctionContext) valuePtr(idx model.TempIndex) llvm.Value {
	if _, ok := fc.locals[idx].mty.(*model.Reference); ok {
		return fc.loadLocal(idx, "byref")
	}
	return fc.locals[idx].slot
}

// ---- Casts -----------------------------------------------------------------

func (fc *FunctionContext) translateCast(bc model.Bytecode) error {
	src := fc.loadLocal(bc.Srcs[0], "castsrc")
	srcW := src.Type().(*llvm.IntType).Bits
	dstW := bc.Op.CastWidth()
	switch {
	case dstW > srcW:
		fc.storeLocal(bc.Dsts[0], fc.b.ZExt(src, llvm.Int(dstW), "cast"))
	case dstW < srcW:
		// Pre-check value <= max of the destination before truncating.
		max := maxOfWidth(dstW, srcW)
		fc.emitCheckAbort(fc.b.ICmp(llvm.IntUGT, src, max, "castcond"))
		fc.storeLocal(bc.Dsts[0], fc.b.Trunc(src, llvm.Int(dstW), "cast"))
	default:
		fc.storeLocal(bc.Dsts[0], src)
	}
	return nil
}

// maxOfWidth builds the destination maximum as a constant of the source
// width.
func maxOfWidth(dstBits, srcBits int) *llvm.ConstInt {
	one := uint256.NewInt(1)
	max := new(uint256.Int).Lsh(one, uint(dstBits))
	max.Sub(max, one)
	return llvm.ConstIntBig(llvm.Int(srcBits), max)
}

// ---- Structs ---------------------------------------------------------------

func (fc *FunctionContext) translatePack(bc model.Bytecode) error {
	ref := fc.opStructRef(bc.Op)
	_, st, err := fc.mc.ResolveStruct(ref)
	if err != nil {
		return err
	}
	dst := bc.Dsts[0]
	for i, src := range bc.Srcs {
		fieldPtr := fc.b.StructGEP(st, fc.locals[dst].slot, i, "pack_field")
		fc.b.Store(fc.loadLocal(src, ""), fieldPtr)
	}
	return nil
}

func (fc *FunctionContext) translateUnpack(bc model.Bytecode) error {
	ref := fc.opStructRef(bc.Op)
	_, st, err := fc.mc.ResolveStruct(ref)
	if err != nil {
		return err
	}
	src := bc.Srcs[0]
	for i, dst := range bc.Dsts {
		fieldPtr := fc.b.StructGEP(st, fc.locals[src].slot, i, "unpack_field")
		val := fc.b.Load(fc.locals[dst].llty, fieldPtr, "unpack")
		fc.storeLocal(dst, val)
	}
	return nil
}

func (fc *FunctionContext) translateBorrowField(bc model.Bytecode) error {
	ref := fc.opStructRef(bc.Op)
	_, st, err := fc.mc.ResolveStruct(ref)
	if err != nil {
		return err
	}
	base := fc.valuePtr(bc.Srcs[0])
	fieldPtr := fc.b.StructGEP(st, base, bc.Op.FieldIndex, "borrow_field")
	fc.storeLocal(bc.Dsts[0], fieldPtr)
	return nil
}

// ---- Globals ---------------------------------------------------------------

func (fc *FunctionContext) globalCallPieces(op *model.Operation) (tydesc, tag llvm.Value, err error) {
	ref := fc.opStructRef(op)
	tydesc, err = fc.mc.rtty.Describe(ref)
	if err != nil {
		return nil, nil, err
	}
	tagGlobal, err := fc.tagGlobal(ref)
	if err != nil {
		return nil, nil, err
	}
	return tydesc, tagGlobal, nil
}

// translateMoveTo publishes a resource under the signer's address:
// srcs = [signer_ref, value].
func (fc *FunctionContext) translateMoveTo(bc model.Bytecode) error {
	tydesc, tag, err := fc.globalCallPieces(bc.Op)
	if err != nil {
		return err
	}
	signer := fc.valuePtr(bc.Srcs[0])
	value := fc.valuePtr(bc.Srcs[1])
	fc.b.Call(fc.mc.runtimeFunction("move_rt_move_to"), tydesc, signer, value, tag)
	return nil
}

// translateMoveFrom removes a resource: dsts = [value], srcs = [address_ref].
func (fc *FunctionContext) translateMoveFrom(bc model.Bytecode) error {
	tydesc, tag, err := fc.globalCallPieces(bc.Op)
	if err != nil {
		return err
	}
	addr := fc.valuePtr(bc.Srcs[0])
	out := fc.locals[bc.Dsts[0]].slot
	fc.b.Call(fc.mc.runtimeFunction("move_rt_move_from"), tydesc, addr, out, tag)
	return nil
}

// translateBorrowGlobal borrows a resource in place: dsts = [ref],
// srcs = [address_ref]; Op.Mut selects the exclusive flavor.
func (fc *FunctionContext) translateBorrowGlobal(bc model.Bytecode) error {
	tydesc, tag, err := fc.globalCallPieces(bc.Op)
	if err != nil {
		return err
	}
	addr := fc.valuePtr(bc.Srcs[0])
	out := fc.locals[bc.Dsts[0]].slot
	isMut := uint64(0)
	if bc.Op.Mut {
		isMut = 1
	}
	fc.b.Call(fc.mc.runtimeFunction("move_rt_borrow_global"),
		tydesc, addr, out, tag, llvm.ConstIntVal(llvm.I32, isMut))
	return nil
}

// translateRelease ends a global borrow, writing back the current value:
// srcs = [address_ref, value_ref].
func (fc *FunctionContext) translateRelease(bc model.Bytecode) error {
	tydesc, tag, err := fc.globalCallPieces(bc.Op)
	if err != nil {
		return err
	}
	addr := fc.valuePtr(bc.Srcs[0])
	value := fc.valuePtr(bc.Srcs[1])
	fc.b.Call(fc.mc.runtimeFunction("move_rt_release"), tydesc, addr, value, tag)
	return nil
}

func (fc *FunctionContext) translateExists(bc model.Bytecode) error {
	tydesc, tag, err := fc.globalCallPieces(bc.Op)
	if err != nil {
		return err
	}
	addr := fc.valuePtr(bc.Srcs[0])
	res := fc.b.Call(fc.mc.runtimeFunction("move_rt_exists"), tydesc, addr, tag)
	bit := fc.b.ICmp(llvm.IntNE, res, llvm.ConstIntVal(llvm.I32, 0), "exists")
	fc.storeLocal(bc.Dsts[0], fc.b.ZExt(bit, llvm.I8, "exists8"))
	return nil
}

// translateDestroy releases a value whose scope ends: vectors free their
// buffer, everything else is a no-op at this level.
func (fc *FunctionContext) translateDestroy(bc model.Bytecode) error {
	src := bc.Srcs[0]
	if vt, ok := fc.locals[src].mty.(*model.Vector); ok {
		tydesc, err := fc.mc.rtty.Describe(vt.Elem)
		if err != nil {
			return err
		}
		fc.b.Call(fc.mc.runtimeFunction("move_rt_vec_destroy"), tydesc, fc.locals[src].slot)
	}
	return nil
}

// ---- Function calls ---------------------------------------------------------

func (fc *FunctionContext) translateFunctionCall(bc model.Bytecode) error {
	op := bc.Op
	calleeModule, callee := fc.mc.Model.FindFunction(op.Module, op.Function)
	if callee == nil {
		return fmt.Errorf("stackless: call to undefined function %s::%s", op.Module, op.Function)
	}
	if callee.IsInline {
		return fmt.Errorf("stackless: inline function %s::%s reached translation", op.Module, op.Function)
	}
	typeArgs := fc.substOp(op)
	if callee.IsNative {
		return fc.translateNativeCall(bc, calleeModule, callee, typeArgs)
	}
	return fc.translateMoveCall(bc, calleeModule, callee, typeArgs)
}

// translateMoveCall calls a Move-defined function: values by value, multiple
// results unpacked from the anonymous aggregate.
func (fc *FunctionContext) translateMoveCall(bc model.Bytecode, m *model.Module, callee *model.Function, typeArgs []model.Type) error {
	key := instantiationKey(m.Name, callee.Name, typeArgs)
	llcallee := fc.mc.fnDecls[key]
	if llcallee == nil {
		return fmt.Errorf("stackless: missing declaration for %s", key)
	}
	args := make([]llvm.Value, len(bc.Srcs))
	for i, src := range bc.Srcs {
		pty := model.Substitute(callee.Params[i], typeArgs)
		if isByPointerParam(pty) {
			args[i] = fc.valuePtr(src)
			continue
		}
		args[i] = fc.loadLocal(src, "")
	}
	res := fc.b.Call(llcallee, args...)
	switch len(bc.Dsts) {
	case 0:
	case 1:
		fc.storeLocal(bc.Dsts[0], res)
	default:
		for i, dst := range bc.Dsts {
			fc.storeLocal(dst, fc.b.ExtractValue(res, i, fc.locals[dst].llty, "mret"))
		}
	}
	return nil
}

// translateNativeCall calls a native function under the C ABI: a leading
// descriptor pointer per type argument, generic values by pointer, a generic
// result through the destination slot as out pointer.
func (fc *FunctionContext) translateNativeCall(bc model.Bytecode, m *model.Module, callee *model.Function, typeArgs []model.Type) error {
	llcallee := fc.mc.llmod.NamedFunction(nativeSymbol(m.Name, callee.Name))
	if llcallee == nil {
		return fmt.Errorf("stackless: native %s::%s not declared", m.Name, callee.Name)
	}
	var args []llvm.Value
	for _, ta := range typeArgs {
		tydesc, err := fc.mc.rtty.Describe(ta)
		if err != nil {
			return err
		}
		args = append(args, tydesc)
	}
	for i, src := range bc.Srcs {
		pty := callee.Params[i]
		if hasTypeParams(pty) || isByPointerParam(pty) {
			args = append(args, fc.valuePtr(src))
			continue
		}
		args = append(args, fc.loadLocal(src, ""))
	}
	genericRet := false
	for _, r := range callee.Returns {
		if hasTypeParams(r) {
			genericRet = true
		}
	}
	if genericRet {
		args = append(args, fc.locals[bc.Dsts[0]].slot)
		fc.b.Call(llcallee, args...)
		return nil
	}
	res := fc.b.Call(llcallee, args...)
	if len(bc.Dsts) == 1 {
		fc.storeLocal(bc.Dsts[0], res)
	}
	return nil
}
