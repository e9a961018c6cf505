// Copyright 2025 The MoveChain Authors
// This file is part of the go-move library.

package stackless

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	log "github.com/sirupsen/logrus"

	"github.com/movechain/go-move/common"
	"github.com/movechain/go-move/crypto"
	"github.com/movechain/go-move/movelang/llvm"
	"github.com/movechain/go-move/movelang/model"
)

// local is one stackless slot: its Move type, lowered type, and stack
// storage. Assigning a struct by move retargets the destination's slot to
// the source's storage instead of copying; the producer guarantees the
// source is not touched again.
type local struct {
	mty  model.Type
	llty llvm.Type
	slot llvm.Value
}

// FunctionContext translates one concrete Move function body.
type FunctionContext struct {
	mc       *ModuleContext
	module   *model.Module
	fn       *model.Function
	typeArgs []model.Type

	llfn   *llvm.Function
	b      *llvm.Builder
	locals []local
	labels map[model.Label]*llvm.BasicBlock
}

func newFunctionContext(mc *ModuleContext, inst instantiation) (*FunctionContext, error) {
	key := instantiationKey(inst.module.Name, inst.fn.Name, inst.typeArgs)
	llfn := mc.fnDecls[key]
	if llfn == nil {
		return nil, fmt.Errorf("stackless: missing declaration for %s", key)
	}
	return &FunctionContext{
		mc:       mc,
		module:   inst.module,
		fn:       inst.fn,
		typeArgs: inst.typeArgs,
		llfn:     llfn,
		b:        mc.builder,
		labels:   make(map[model.Label]*llvm.BasicBlock),
	}, nil
}

// translate lowers the function: entry block, one named block per label, a
// typed stack slot per local, parameter spill, then the instruction walk.
func (fc *FunctionContext) translate() error {
	log.WithFields(log.Fields{
		"module":   fc.module.Name,
		"function": fc.fn.Name,
	}).Debug("translating function")

	entry := fc.llfn.AppendBlock("entry")
	fc.b.PositionAtEnd(entry)

	for _, bc := range fc.fn.Code {
		if bc.Kind == model.KindLabel {
			fc.labels[bc.Label] = fc.llfn.AppendBlock(fmt.Sprintf("label_%d", bc.Label))
		}
	}

	if err := fc.allocLocals(); err != nil {
		return err
	}
	if err := fc.spillParams(); err != nil {
		return err
	}

	for i, bc := range fc.fn.Code {
		if err := fc.translateInstruction(bc); err != nil {
			return fmt.Errorf("instruction %d: %w", i, err)
		}
	}

	// A body falling off the end of a void function still needs a
	// terminator.
	if !fc.b.InsertBlock().Terminated() {
		if _, ok := fc.llfn.Ty.Ret.(*llvm.VoidType); ok {
			fc.b.RetVoid()
		} else {
			fc.b.Unreachable()
		}
	}
	return nil
}

// allocLocals creates one slot per local. Anonymous names local_i are refined
// to local_i__field when the local feeds or drains a struct operation.
func (fc *FunctionContext) allocLocals() error {
	names := fc.namedLocals()
	fc.locals = make([]local, len(fc.fn.LocalTypes))
	for i, t := range fc.fn.LocalTypes {
		t = model.Substitute(t, fc.typeArgs)
		llty, err := fc.mc.lowerType(t)
		if err != nil {
			return err
		}
		name := fmt.Sprintf("local_%d", i)
		if field, ok := names[i]; ok {
			name = fmt.Sprintf("local_%d__%s", i, field)
		}
		fc.locals[i] = local{mty: t, llty: llty, slot: fc.b.Alloca(llty, name)}
	}
	return nil
}

// namedLocals maps locals that are sources, sinks or field targets of struct
// pack/unpack/borrow-field operations to the field name involved.
func (fc *FunctionContext) namedLocals() map[model.TempIndex]string {
	names := make(map[model.TempIndex]string)
	for _, bc := range fc.fn.Code {
		if bc.Kind != model.KindCall || bc.Op == nil {
			continue
		}
		switch bc.Op.Kind {
		case model.OpPack:
			_, decl := fc.mc.Model.FindStruct(bc.Op.Module, bc.Op.Struct)
			if decl == nil || len(bc.Srcs) != len(decl.Fields) {
				continue
			}
			for offset, tmp := range bc.Srcs {
				names[tmp] = decl.Fields[offset].Name
			}
		case model.OpUnpack:
			_, decl := fc.mc.Model.FindStruct(bc.Op.Module, bc.Op.Struct)
			if decl == nil || len(bc.Dsts) != len(decl.Fields) {
				continue
			}
			for offset, tmp := range bc.Dsts {
				names[tmp] = decl.Fields[offset].Name
			}
		case model.OpBorrowField:
			_, decl := fc.mc.Model.FindStruct(bc.Op.Module, bc.Op.Struct)
			if decl == nil || bc.Op.FieldIndex >= len(decl.Fields) {
				continue
			}
			for _, tmp := range bc.Dsts {
				names[tmp] = decl.Fields[bc.Op.FieldIndex].Name
			}
		}
	}
	return names
}

// spillParams copies the incoming parameters into their slots. References
// land as pointers; signers arrive by pointer and are copied by value, or are
// materialized from the numbered signer provider when translating a script.
func (fc *FunctionContext) spillParams() error {
	signerIdx := 0
	for i, pty := range fc.fn.Params {
		pty = model.Substitute(pty, fc.typeArgs)
		param := fc.llfn.Param(i)
		switch {
		case isSignerType(pty):
			if fc.module.IsScript && fc.mc.signers != nil {
				addr, err := fc.mc.signers.Signer(signerIdx)
				if err != nil {
					return err
				}
				signerIdx++
				g := fc.addressGlobal(addr)
				fc.b.Memcpy(fc.locals[i].slot, g, common.AddressLength)
				continue
			}
			fc.b.Memcpy(fc.locals[i].slot, param, common.AddressLength)
		default:
			fc.b.Store(param, fc.locals[i].slot)
		}
	}
	return nil
}

func isSignerType(t model.Type) bool {
	p, ok := t.(*model.Primitive)
	return ok && p.Kind == model.Signer
}

// ---- Instruction dispatch ---------------------------------------------------

func (fc *FunctionContext) translateInstruction(bc model.Bytecode) error {
	switch bc.Kind {
	case model.KindLabel:
		bb := fc.labels[bc.Label]
		if !fc.b.InsertBlock().Terminated() {
			fc.b.Br(bb) // fallthrough from the preceding block
		}
		fc.b.PositionAtEnd(bb)
		return nil
	case model.KindJump:
		fc.b.Br(fc.labels[bc.Label])
		return nil
	case model.KindBranch:
		cond := fc.loadLocal(bc.Srcs[0], "cond")
		nz := fc.b.ICmp(llvm.IntNE, cond, llvm.ConstIntVal(llvm.I8, 0), "brcond")
		fc.b.CondBr(nz, fc.labels[bc.TrueLabel], fc.labels[bc.FalseLabel])
		return nil
	case model.KindRet:
		return fc.translateRet(bc.Srcs)
	case model.KindAbort:
		code := fc.loadLocal(bc.Srcs[0], "abort_code")
		fc.callAbort(fc.widenToI64(code))
		return nil
	case model.KindAssign:
		return fc.translateAssign(bc)
	case model.KindLoad:
		return fc.translateLoadConst(bc.Dsts[0], bc.Const)
	case model.KindCall:
		return fc.translateCall(bc)
	case model.KindNop:
		return nil
	}
	return fmt.Errorf("stackless: unknown instruction kind %d", bc.Kind)
}

func (fc *FunctionContext) translateRet(srcs []model.TempIndex) error {
	switch len(srcs) {
	case 0:
		fc.b.RetVoid()
	case 1:
		fc.b.Ret(fc.loadLocal(srcs[0], "retval"))
	default:
		// Multiple returns pack field-wise into an anonymous aggregate.
		retTy, ok := fc.llfn.Ty.Ret.(*llvm.StructType)
		if !ok {
			return fmt.Errorf("stackless: multi-return without aggregate return type")
		}
		var agg llvm.Value = &llvm.Undef{Ty: retTy}
		for i, src := range srcs {
			agg = fc.b.InsertValue(agg, fc.loadLocal(src, ""), i, "ret_agg")
		}
		fc.b.Ret(agg)
	}
	return nil
}

// ---- Assign ----------------------------------------------------------------

func (fc *FunctionContext) translateAssign(bc model.Bytecode) error {
	dst, src := bc.Dsts[0], bc.Srcs[0]
	switch fc.locals[src].mty.(type) {
	case *model.Primitive:
		if isWideValue(fc.locals[src].mty) {
			// Addresses and signers are memory-shaped.
			return fc.assignAggregate(bc.AssignKind, dst, src)
		}
		fc.storeLocal(dst, fc.loadLocal(src, ""))
		return nil
	case *model.Reference:
		fc.storeLocal(dst, fc.loadLocal(src, ""))
		return nil
	case *model.Vector:
		if bc.AssignKind == model.AssignCopy {
			return fc.vectorCopyInto(dst, src)
		}
		fc.rebind(dst, src)
		return nil
	case *model.StructRef:
		return fc.assignAggregate(bc.AssignKind, dst, src)
	}
	return fmt.Errorf("stackless: cannot assign type %s", fc.locals[src].mty)
}

// isWideValue reports memory-shaped primitives (address, signer).
func isWideValue(t model.Type) bool {
	p, ok := t.(*model.Primitive)
	return ok && (p.Kind == model.Address || p.Kind == model.Signer)
}

func (fc *FunctionContext) assignAggregate(kind model.AssignKind, dst, src model.TempIndex) error {
	if kind == model.AssignCopy {
		size := fc.mc.layout.SizeOf(fc.locals[src].llty)
		fc.b.Memcpy(fc.locals[dst].slot, fc.locals[src].slot, size)
		return nil
	}
	// Move (and the producer's store form): retarget the destination slot
	// onto the source storage, aliasing it. Move's single-owner semantics
	// make the source dead from here on.
	fc.rebind(dst, src)
	return nil
}

func (fc *FunctionContext) rebind(dst, src model.TempIndex) {
	fc.locals[dst].slot = fc.locals[src].slot
}

// vectorCopyInto deep-copies a vector local: fresh empty vector of the
// element type, then element-wise clone.
func (fc *FunctionContext) vectorCopyInto(dst, src model.TempIndex) error {
	elem := fc.locals[src].mty.(*model.Vector).Elem
	tydesc, err := fc.mc.rtty.Describe(elem)
	if err != nil {
		return err
	}
	empty := fc.b.Call(fc.mc.runtimeFunction("move_rt_vec_empty"), tydesc)
	fc.b.Store(empty, fc.locals[dst].slot)
	fc.b.Call(fc.mc.runtimeFunction("move_rt_vec_copy"),
		tydesc, fc.locals[dst].slot, fc.locals[src].slot)
	return nil
}

// ---- Constants -------------------------------------------------------------

func (fc *FunctionContext) translateLoadConst(dst model.TempIndex, c *model.Constant) error {
	switch t := c.Type.(type) {
	case *model.Primitive:
		switch t.Kind {
		case model.Bool:
			v := uint64(0)
			if c.Bool {
				v = 1
			}
			fc.storeLocal(dst, llvm.ConstIntVal(llvm.I8, v))
		case model.U8, model.U16, model.U32, model.U64:
			fc.storeLocal(dst, llvm.ConstIntVal(llvm.Int(t.BitWidth()), c.U64))
		case model.U128, model.U256:
			v := c.U256
			if v == nil {
				v = uint256.NewInt(c.U64)
			}
			fc.storeLocal(dst, llvm.ConstIntBig(llvm.Int(t.BitWidth()), v))
		case model.Address:
			g := fc.addressGlobal(c.Address)
			fc.b.Memcpy(fc.locals[dst].slot, g, common.AddressLength)
		default:
			return fmt.Errorf("stackless: cannot load constant of type %s", t)
		}
		return nil
	case *model.Vector:
		return fc.loadVectorConst(dst, c, t)
	}
	return fmt.Errorf("stackless: cannot load constant of type %s", c.Type)
}

// addressGlobal interns a 32-byte little-endian address literal in read-only
// memory.
func (fc *FunctionContext) addressGlobal(addr common.Address) *llvm.GlobalVar {
	name := "__move_addr_" + common.Bytes2Hex(addr[:8]) + "_" + hashString(string(addr[:]))
	if g := fc.mc.llmod.NamedGlobal(name); g != nil {
		return g
	}
	return fc.mc.llmod.AddGlobal(&llvm.GlobalVar{
		Name:        name,
		Elem:        llvm.Array(common.AddressLength, llvm.I8),
		Init:        &llvm.ConstString{Data: addr[:]},
		Linkage:     "private",
		Section:     ".rodata",
		Align:       1,
		Const:       true,
		UnnamedAddr: true,
	})
}

// loadVectorConst materializes a vector literal: the element data goes into
// read-only memory together with a constant vector header; the destination is
// built with vec_empty and filled with vec_copy. The destination slot already
// exists in the entry block, so no dynamic stack allocation appears here.
func (fc *FunctionContext) loadVectorConst(dst model.TempIndex, c *model.Constant, vt *model.Vector) error {
	elemTy, err := fc.mc.lowerType(vt.Elem)
	if err != nil {
		return err
	}
	var data llvm.Value
	var count int
	if c.Bytes != nil || isByteElem(vt.Elem) {
		data = &llvm.ConstString{Data: c.Bytes}
		count = len(c.Bytes)
	} else {
		vals := make([]llvm.Value, len(c.Vector))
		for i, e := range c.Vector {
			w := e.U256
			if w == nil {
				w = uint256.NewInt(e.U64)
			}
			ity, ok := elemTy.(*llvm.IntType)
			if !ok {
				return fmt.Errorf("stackless: unsupported vector literal element %s", vt.Elem)
			}
			vals[i] = llvm.ConstIntBig(ity, w)
		}
		data = &llvm.ConstArray{Elem: elemTy, Vals: vals}
		count = len(c.Vector)
	}
	if count == 0 {
		data = &llvm.ZeroInit{Ty: llvm.Array(0, elemTy)}
	}

	seq := fmt.Sprintf("%s_%d", hashString(fmt.Sprintf("%v", c)), count)
	dataGlobal := fc.mc.llmod.NamedGlobal("__move_vecdata_" + seq)
	if dataGlobal == nil {
		dataGlobal = fc.mc.llmod.AddGlobal(&llvm.GlobalVar{
			Name:        "__move_vecdata_" + seq,
			Elem:        data.Type(),
			Init:        data,
			Linkage:     "private",
			Section:     ".rodata",
			Const:       true,
			UnnamedAddr: true,
		})
	}
	headerName := "__move_vechdr_" + seq
	header := fc.mc.llmod.NamedGlobal(headerName)
	if header == nil {
		header = fc.mc.llmod.AddGlobal(&llvm.GlobalVar{
			Name: headerName,
			Elem: fc.mc.rtty.VectorTy(),
			Init: &llvm.ConstStruct{
				Ty: fc.mc.rtty.VectorTy(),
				Vals: []llvm.Value{
					dataGlobal,
					llvm.ConstIntVal(llvm.I64, uint64(count)),
					llvm.ConstIntVal(llvm.I64, uint64(count)),
				},
			},
			Linkage:     "private",
			Section:     ".rodata",
			Const:       true,
			UnnamedAddr: true,
		})
	}

	tydesc, err := fc.mc.rtty.Describe(vt.Elem)
	if err != nil {
		return err
	}
	empty := fc.b.Call(fc.mc.runtimeFunction("move_rt_vec_empty"), tydesc)
	fc.b.Store(empty, fc.locals[dst].slot)
	fc.b.Call(fc.mc.runtimeFunction("move_rt_vec_copy"), tydesc, fc.locals[dst].slot, header)
	return nil
}

func isByteElem(t model.Type) bool {
	p, ok := t.(*model.Primitive)
	return ok && p.Kind == model.U8
}

// ---- Helpers ---------------------------------------------------------------

func (fc *FunctionContext) loadLocal(idx model.TempIndex, name string) *llvm.Register {
	return fc.b.Load(fc.locals[idx].llty, fc.locals[idx].slot, name)
}

func (fc *FunctionContext) storeLocal(idx model.TempIndex, v llvm.Value) {
	fc.b.Store(v, fc.locals[idx].slot)
}

func (fc *FunctionContext) widenToI64(v llvm.Value) llvm.Value {
	ity, ok := v.Type().(*llvm.IntType)
	if !ok || ity.Bits == 64 {
		return v
	}
	if ity.Bits < 64 {
		return fc.b.ZExt(v, llvm.I64, "wide")
	}
	return fc.b.Trunc(v, llvm.I64, "narrow")
}

// callAbort diverges through the runtime abort entry point.
func (fc *FunctionContext) callAbort(code llvm.Value) {
	fc.b.Call(fc.mc.runtimeFunction("move_rt_abort"), code)
	fc.b.Unreachable()
}

// emitCheckAbort branches to a fresh abort block when cond holds and
// continues translation in the join block. Every arithmetic check funnels
// through here with the arithmetic error code.
func (fc *FunctionContext) emitCheckAbort(cond llvm.Value) {
	cur := fc.b.InsertBlock()
	thenBB := fc.llfn.InsertBlockAfter(cur, "then_bb")
	joinBB := fc.llfn.InsertBlockAfter(thenBB, "join_bb")
	fc.b.CondBr(cond, thenBB, joinBB)
	fc.b.PositionAtEnd(thenBB)
	fc.callAbort(llvm.ConstIntVal(llvm.I64, abortCodeArithmetic))
	fc.b.PositionAtEnd(joinBB)
}

// tagGlobal interns the 32-byte struct tag (SHA-256 of the fully qualified
// struct name) global resources are keyed by.
func (fc *FunctionContext) tagGlobal(ref *model.StructRef) (*llvm.GlobalVar, error) {
	declModule := fc.mc.Model.FindModule(ref.Module)
	if declModule == nil {
		return nil, fmt.Errorf("stackless: undefined module %s", ref.Module)
	}
	fullName := declModule.FullName() + "::" + ref.Name
	if len(ref.TypeArgs) > 0 {
		args := make([]string, len(ref.TypeArgs))
		for i, a := range ref.TypeArgs {
			args[i] = a.String()
		}
		fullName += "<" + strings.Join(args, ", ") + ">"
	}
	tag := crypto.StructTag(fullName)
	name := "__move_structtag_" + StructTypeName(ref.Module, ref.Name, ref.TypeArgs)
	if g := fc.mc.llmod.NamedGlobal(name); g != nil {
		return g, nil
	}
	return fc.mc.llmod.AddGlobal(&llvm.GlobalVar{
		Name:        name,
		Elem:        llvm.Array(common.HashLength, llvm.I8),
		Init:        &llvm.ConstString{Data: tag[:]},
		Linkage:     "private",
		Section:     ".rodata",
		Align:       1,
		Const:       true,
		UnnamedAddr: true,
	}), nil
}

func (fc *FunctionContext) substOp(op *model.Operation) []model.Type {
	args := make([]model.Type, len(op.TypeArgs))
	for i, a := range op.TypeArgs {
		args[i] = model.Substitute(a, fc.typeArgs)
	}
	return args
}

func (fc *FunctionContext) opStructRef(op *model.Operation) *model.StructRef {
	return &model.StructRef{Module: op.Module, Name: op.Struct, TypeArgs: fc.substOp(op)}
}
