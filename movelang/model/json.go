// Copyright 2025 The MoveChain Authors
// This file is part of the go-move library.

package model

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/holiman/uint256"

	"github.com/movechain/go-move/common"
)

// The JSON model format is the hand-off point from the Move front-end: a
// verified model serialized with kind-discriminated type nodes. The
// front-end itself is a separate tool; the compiler only consumes this.

type jsonModel struct {
	Modules []*jsonModule `json:"modules"`
}

type jsonModule struct {
	Address   string          `json:"address"`
	Name      string          `json:"name"`
	IsScript  bool            `json:"is_script,omitempty"`
	Structs   []*jsonStruct   `json:"structs,omitempty"`
	Functions []*jsonFunction `json:"functions,omitempty"`
}

type jsonStruct struct {
	Name       string      `json:"name"`
	Abilities  uint8       `json:"abilities,omitempty"`
	TypeParams int         `json:"type_params,omitempty"`
	Fields     []jsonField `json:"fields,omitempty"`
}

type jsonField struct {
	Name string   `json:"name"`
	Type jsonType `json:"type"`
}

type jsonFunction struct {
	Name       string         `json:"name"`
	Params     []jsonType     `json:"params,omitempty"`
	Returns    []jsonType     `json:"returns,omitempty"`
	TypeParams int            `json:"type_params,omitempty"`
	IsEntry    bool           `json:"is_entry,omitempty"`
	IsNative   bool           `json:"is_native,omitempty"`
	IsInline   bool           `json:"is_inline,omitempty"`
	Locals     []jsonType     `json:"locals,omitempty"`
	Code       []jsonBytecode `json:"code,omitempty"`
}

// jsonType is a kind-discriminated type node: {"kind":"u64"},
// {"kind":"vector","elem":...}, {"kind":"struct","module":"m","name":"S",
// "args":[...]}, {"kind":"ref","mut":true,"elem":...}, {"kind":"tparam",
// "index":0}.
type jsonType struct {
	Kind   string     `json:"kind"`
	Elem   *jsonType  `json:"elem,omitempty"`
	Mut    bool       `json:"mut,omitempty"`
	Module string     `json:"module,omitempty"`
	Name   string     `json:"name,omitempty"`
	Args   []jsonType `json:"args,omitempty"`
	Index  int        `json:"index,omitempty"`
}

type jsonBytecode struct {
	Op         string         `json:"op"`
	Dsts       []int          `json:"dsts,omitempty"`
	Srcs       []int          `json:"srcs,omitempty"`
	Label      int            `json:"label,omitempty"`
	True       int            `json:"true,omitempty"`
	False      int            `json:"false,omitempty"`
	AssignKind string         `json:"assign_kind,omitempty"`
	Const      *jsonConstant  `json:"const,omitempty"`
	Call       *jsonOperation `json:"call,omitempty"`
}

type jsonConstant struct {
	Type    jsonType       `json:"type"`
	Bool    bool           `json:"bool,omitempty"`
	U64     uint64         `json:"u64,omitempty"`
	Wide    string         `json:"wide,omitempty"` // decimal u128/u256
	Address string         `json:"address,omitempty"`
	Bytes   string         `json:"bytes,omitempty"` // hex
	Vector  []jsonConstant `json:"vector,omitempty"`
}

type jsonOperation struct {
	Kind     string     `json:"kind"`
	Module   string     `json:"module,omitempty"`
	Function string     `json:"function,omitempty"`
	Struct   string     `json:"struct,omitempty"`
	Args     []jsonType `json:"args,omitempty"`
	Field    int        `json:"field,omitempty"`
	Mut      bool       `json:"mut,omitempty"`
}

// LoadJSON reads a serialized model from path.
func LoadJSON(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("model: reading %s: %w", path, err)
	}
	return DecodeJSON(data)
}

// DecodeJSON decodes a serialized model.
func DecodeJSON(data []byte) (*Model, error) {
	var jm jsonModel
	if err := json.Unmarshal(data, &jm); err != nil {
		return nil, fmt.Errorf("model: decoding: %w", err)
	}
	out := &Model{}
	for _, m := range jm.Modules {
		mod := &Module{
			Address:  common.HexToAddress(m.Address),
			Name:     m.Name,
			IsScript: m.IsScript,
		}
		for _, s := range m.Structs {
			st := &Struct{Name: s.Name, Abilities: Ability(s.Abilities), TypeParams: s.TypeParams}
			for _, f := range s.Fields {
				ft, err := f.Type.decode()
				if err != nil {
					return nil, err
				}
				st.Fields = append(st.Fields, Field{Name: f.Name, Type: ft})
			}
			mod.Structs = append(mod.Structs, st)
		}
		for _, f := range m.Functions {
			fn, err := f.decode()
			if err != nil {
				return nil, fmt.Errorf("model: function %s::%s: %w", m.Name, f.Name, err)
			}
			mod.Functions = append(mod.Functions, fn)
		}
		out.Modules = append(out.Modules, mod)
	}
	return out, nil
}

func (t *jsonType) decode() (Type, error) {
	switch t.Kind {
	case "bool":
		return BoolType(), nil
	case "u8":
		return U8Type(), nil
	case "u16":
		return U16Type(), nil
	case "u32":
		return U32Type(), nil
	case "u64":
		return U64Type(), nil
	case "u128":
		return U128Type(), nil
	case "u256":
		return U256Type(), nil
	case "address":
		return AddressType(), nil
	case "signer":
		return SignerType(), nil
	case "vector":
		elem, err := t.Elem.decode()
		if err != nil {
			return nil, err
		}
		return VectorOf(elem), nil
	case "ref":
		elem, err := t.Elem.decode()
		if err != nil {
			return nil, err
		}
		return &Reference{Mut: t.Mut, Elem: elem}, nil
	case "struct":
		args := make([]Type, len(t.Args))
		for i := range t.Args {
			a, err := t.Args[i].decode()
			if err != nil {
				return nil, err
			}
			args[i] = a
		}
		return &StructRef{Module: t.Module, Name: t.Name, TypeArgs: args}, nil
	case "tparam":
		return &TypeParam{Index: t.Index}, nil
	}
	return nil, fmt.Errorf("model: unknown type kind %q", t.Kind)
}

func (f *jsonFunction) decode() (*Function, error) {
	fn := &Function{
		Name:       f.Name,
		TypeParams: f.TypeParams,
		IsEntry:    f.IsEntry,
		IsNative:   f.IsNative,
		IsInline:   f.IsInline,
	}
	decodeList := func(in []jsonType) ([]Type, error) {
		out := make([]Type, len(in))
		for i := range in {
			t, err := in[i].decode()
			if err != nil {
				return nil, err
			}
			out[i] = t
		}
		return out, nil
	}
	var err error
	if fn.Params, err = decodeList(f.Params); err != nil {
		return nil, err
	}
	if fn.Returns, err = decodeList(f.Returns); err != nil {
		return nil, err
	}
	if fn.LocalTypes, err = decodeList(f.Locals); err != nil {
		return nil, err
	}
	for i, bc := range f.Code {
		decoded, err := bc.decode()
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		fn.Code = append(fn.Code, decoded)
	}
	return fn, nil
}

var assignKinds = map[string]AssignKind{
	"": AssignMove, "move": AssignMove, "copy": AssignCopy, "store": AssignStore,
}

var opKinds = map[string]OpKind{
	"function": OpFunction, "pack": OpPack, "unpack": OpUnpack,
	"borrow_local": OpBorrowLoc, "borrow_field": OpBorrowField,
	"read_ref": OpReadRef, "write_ref": OpWriteRef, "freeze_ref": OpFreezeRef,
	"move_to": OpMoveTo, "move_from": OpMoveFrom,
	"borrow_global": OpBorrowGlobal, "exists": OpExists, "release": OpRelease,
	"add": OpAdd, "sub": OpSub, "mul": OpMul, "div": OpDiv, "mod": OpMod,
	"bitor": OpBitOr, "bitand": OpBitAnd, "bitxor": OpBitXor,
	"shl": OpShl, "shr": OpShr, "or": OpOr, "and": OpAnd, "not": OpNot,
	"eq": OpEq, "neq": OpNeq, "lt": OpLt, "le": OpLe, "gt": OpGt, "ge": OpGe,
	"cast_u8": OpCastU8, "cast_u16": OpCastU16, "cast_u32": OpCastU32,
	"cast_u64": OpCastU64, "cast_u128": OpCastU128, "cast_u256": OpCastU256,
	"destroy": OpDestroy,
}

func (bc *jsonBytecode) decode() (Bytecode, error) {
	switch bc.Op {
	case "assign":
		kind, ok := assignKinds[bc.AssignKind]
		if !ok {
			return Bytecode{}, fmt.Errorf("model: unknown assign kind %q", bc.AssignKind)
		}
		return Assign(kind, bc.Dsts[0], bc.Srcs[0]), nil
	case "load":
		c, err := bc.Const.decode()
		if err != nil {
			return Bytecode{}, err
		}
		return Load(bc.Dsts[0], c), nil
	case "label":
		return MarkLabel(bc.Label), nil
	case "jump":
		return Jump(bc.Label), nil
	case "branch":
		return Branch(bc.Srcs[0], bc.True, bc.False), nil
	case "ret":
		return Ret(bc.Srcs...), nil
	case "abort":
		return Abort(bc.Srcs[0]), nil
	case "nop":
		return Bytecode{Kind: KindNop}, nil
	case "call":
		if bc.Call == nil {
			return Bytecode{}, fmt.Errorf("model: call without operation")
		}
		kind, ok := opKinds[bc.Call.Kind]
		if !ok {
			return Bytecode{}, fmt.Errorf("model: unknown operation %q", bc.Call.Kind)
		}
		op := &Operation{
			Kind:       kind,
			Module:     bc.Call.Module,
			Function:   bc.Call.Function,
			Struct:     bc.Call.Struct,
			FieldIndex: bc.Call.Field,
			Mut:        bc.Call.Mut,
		}
		for i := range bc.Call.Args {
			t, err := bc.Call.Args[i].decode()
			if err != nil {
				return Bytecode{}, err
			}
			op.TypeArgs = append(op.TypeArgs, t)
		}
		return Call(op, bc.Dsts, bc.Srcs), nil
	}
	return Bytecode{}, fmt.Errorf("model: unknown instruction %q", bc.Op)
}

func (c *jsonConstant) decode() (*Constant, error) {
	ty, err := c.Type.decode()
	if err != nil {
		return nil, err
	}
	out := &Constant{Type: ty, Bool: c.Bool, U64: c.U64}
	if c.Wide != "" {
		wide, err := uint256.FromDecimal(c.Wide)
		if err != nil {
			return nil, fmt.Errorf("model: wide literal %q: %w", c.Wide, err)
		}
		out.U256 = wide
	}
	if c.Address != "" {
		out.Address = common.HexToAddress(c.Address)
	}
	if c.Bytes != "" {
		out.Bytes = common.FromHex(c.Bytes)
	}
	for i := range c.Vector {
		elem, err := c.Vector[i].decode()
		if err != nil {
			return nil, err
		}
		out.Vector = append(out.Vector, *elem)
	}
	return out, nil
}
