// Copyright 2025 The MoveChain Authors
// This file is part of the go-move library.

package model

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/movechain/go-move/common"
)

// TempIndex names a local slot of a stackless function. Parameters occupy the
// lowest indices.
type TempIndex = int

// Label names a jump target within one function body.
type Label = int

// BytecodeKind discriminates the stackless instruction forms.
type BytecodeKind uint8

const (
	KindAssign BytecodeKind = iota
	KindLoad
	KindCall
	KindLabel
	KindJump
	KindBranch
	KindRet
	KindAbort
	KindNop
)

// AssignKind is the flavor of an Assign instruction.
type AssignKind uint8

const (
	AssignMove AssignKind = iota
	AssignCopy
	AssignStore
)

// Bytecode is one stackless instruction. The populated fields depend on Kind:
//
//	Assign: Dsts[0] = Srcs[0], per AssignKind
//	Load:   Dsts[0] = Const
//	Call:   Dsts = Op(Srcs)
//	Label:  Label
//	Jump:   Label
//	Branch: Srcs[0] ? TrueLabel : FalseLabel
//	Ret:    Srcs
//	Abort:  Srcs[0]
type Bytecode struct {
	Kind       BytecodeKind
	AssignKind AssignKind
	Dsts       []TempIndex
	Srcs       []TempIndex
	Const      *Constant
	Op         *Operation
	Label      Label
	TrueLabel  Label
	FalseLabel Label
}

// OpKind enumerates the operations a Call instruction can carry.
type OpKind uint8

const (
	// Calls
	OpFunction OpKind = iota

	// Structs
	OpPack
	OpUnpack
	OpBorrowLoc
	OpBorrowField
	OpReadRef
	OpWriteRef
	OpFreezeRef

	// Globals
	OpMoveTo
	OpMoveFrom
	OpBorrowGlobal
	OpExists
	OpRelease

	// Arithmetic
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpBitOr
	OpBitAnd
	OpBitXor
	OpShl
	OpShr
	OpOr
	OpAnd
	OpNot

	// Comparison
	OpEq
	OpNeq
	OpLt
	OpLe
	OpGt
	OpGe

	// Conversion
	OpCastU8
	OpCastU16
	OpCastU32
	OpCastU64
	OpCastU128
	OpCastU256

	// Value lifecycle
	OpDestroy
)

var opNames = map[OpKind]string{
	OpFunction: "call", OpPack: "pack", OpUnpack: "unpack",
	OpBorrowLoc: "borrow_local", OpBorrowField: "borrow_field",
	OpReadRef: "read_ref", OpWriteRef: "write_ref", OpFreezeRef: "freeze_ref",
	OpMoveTo: "move_to", OpMoveFrom: "move_from",
	OpBorrowGlobal: "borrow_global", OpExists: "exists", OpRelease: "release",
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpMod: "%",
	OpBitOr: "|", OpBitAnd: "&", OpBitXor: "^", OpShl: "<<", OpShr: ">>",
	OpOr: "||", OpAnd: "&&", OpNot: "!",
	OpEq: "==", OpNeq: "!=", OpLt: "<", OpLe: "<=", OpGt: ">", OpGe: ">=",
	OpCastU8: "(u8)", OpCastU16: "(u16)", OpCastU32: "(u32)",
	OpCastU64: "(u64)", OpCastU128: "(u128)", OpCastU256: "(u256)",
	OpDestroy: "destroy",
}

func (k OpKind) String() string {
	if n, ok := opNames[k]; ok {
		return n
	}
	return fmt.Sprintf("op(%d)", uint8(k))
}

// Operation is the payload of a Call instruction.
//
// OpFunction names Module::Function with TypeArgs. Struct operations name
// Module::Struct with TypeArgs; OpBorrowField additionally carries FieldIndex.
// Global operations name the resource struct the same way. Casts derive the
// destination width from the kind.
type Operation struct {
	Kind       OpKind
	Module     string
	Function   string
	Struct     string
	TypeArgs   []Type
	FieldIndex int
	Mut        bool // exclusive flavor of OpBorrowGlobal
}

// CastWidth returns the destination bit width of a cast operation.
func (op *Operation) CastWidth() int {
	switch op.Kind {
	case OpCastU8:
		return 8
	case OpCastU16:
		return 16
	case OpCastU32:
		return 32
	case OpCastU64:
		return 64
	case OpCastU128:
		return 128
	case OpCastU256:
		return 256
	}
	return 0
}

// Constant is a stackless literal.
type Constant struct {
	Type    Type
	Bool    bool
	U64     uint64         // u8..u64 payload
	U256    *uint256.Int   // u128/u256 payload
	Address common.Address // address payload
	Bytes   []byte         // vector<u8> payload
	Vector  []Constant     // general vector payload
}

// Constructors for the common literal shapes.

func ConstBool(v bool) *Constant { return &Constant{Type: BoolType(), Bool: v} }

func ConstU8(v uint8) *Constant   { return &Constant{Type: U8Type(), U64: uint64(v)} }
func ConstU16(v uint16) *Constant { return &Constant{Type: U16Type(), U64: uint64(v)} }
func ConstU32(v uint32) *Constant { return &Constant{Type: U32Type(), U64: uint64(v)} }
func ConstU64(v uint64) *Constant { return &Constant{Type: U64Type(), U64: v} }

func ConstU128(v *uint256.Int) *Constant { return &Constant{Type: U128Type(), U256: v} }
func ConstU256(v *uint256.Int) *Constant { return &Constant{Type: U256Type(), U256: v} }

func ConstAddress(a common.Address) *Constant {
	return &Constant{Type: AddressType(), Address: a}
}

func ConstBytes(b []byte) *Constant {
	return &Constant{Type: ByteVectorType(), Bytes: b}
}

// Instruction constructors, mirroring the forms the stackless generator
// produces.

func Assign(kind AssignKind, dst, src TempIndex) Bytecode {
	return Bytecode{Kind: KindAssign, AssignKind: kind, Dsts: []TempIndex{dst}, Srcs: []TempIndex{src}}
}

func Load(dst TempIndex, c *Constant) Bytecode {
	return Bytecode{Kind: KindLoad, Dsts: []TempIndex{dst}, Const: c}
}

func Call(op *Operation, dsts, srcs []TempIndex) Bytecode {
	return Bytecode{Kind: KindCall, Op: op, Dsts: dsts, Srcs: srcs}
}

func MarkLabel(l Label) Bytecode  { return Bytecode{Kind: KindLabel, Label: l} }
func Jump(l Label) Bytecode       { return Bytecode{Kind: KindJump, Label: l} }
func Ret(srcs ...TempIndex) Bytecode {
	return Bytecode{Kind: KindRet, Srcs: srcs}
}

func Branch(cond TempIndex, t, f Label) Bytecode {
	return Bytecode{Kind: KindBranch, Srcs: []TempIndex{cond}, TrueLabel: t, FalseLabel: f}
}

func Abort(code TempIndex) Bytecode {
	return Bytecode{Kind: KindAbort, Srcs: []TempIndex{code}}
}

// Binary builds the common two-operand arithmetic/comparison call.
func Binary(kind OpKind, dst, a, b TempIndex) Bytecode {
	return Call(&Operation{Kind: kind}, []TempIndex{dst}, []TempIndex{a, b})
}

// Unary builds a one-operand call (Not, casts, Destroy, ReadRef...).
func Unary(kind OpKind, dst, src TempIndex) Bytecode {
	return Call(&Operation{Kind: kind}, []TempIndex{dst}, []TempIndex{src})
}
