// Copyright 2025 The MoveChain Authors
// This file is part of the go-move library.

package model

import (
	"fmt"
	"strings"
)

// Type is a Move type as seen by the compiler.
type Type interface {
	// String renders the type the way the Move model prints it.
	String() string
	typ()
}

// PrimKind enumerates the primitive Move types.
type PrimKind uint8

const (
	Bool PrimKind = iota
	U8
	U16
	U32
	U64
	U128
	U256
	Address
	Signer
)

var primNames = map[PrimKind]string{
	Bool: "bool", U8: "u8", U16: "u16", U32: "u32", U64: "u64",
	U128: "u128", U256: "u256", Address: "address", Signer: "signer",
}

// Primitive is a primitive Move type.
type Primitive struct {
	Kind PrimKind
}

func (p *Primitive) typ() {}
func (p *Primitive) String() string {
	return primNames[p.Kind]
}

// BitWidth returns the width of an integer primitive; bool counts as 8 bits
// at the representation level.
func (p *Primitive) BitWidth() int {
	switch p.Kind {
	case Bool, U8:
		return 8
	case U16:
		return 16
	case U32:
		return 32
	case U64:
		return 64
	case U128:
		return 128
	case U256:
		return 256
	default:
		return 0
	}
}

// Vector is vector<Elem>.
type Vector struct {
	Elem Type
}

func (v *Vector) typ()           {}
func (v *Vector) String() string { return fmt.Sprintf("vector<%s>", v.Elem) }

// StructRef names a struct declared in Module, instantiated with TypeArgs
// when the declaration is generic.
type StructRef struct {
	Module   string
	Name     string
	TypeArgs []Type
}

func (s *StructRef) typ() {}
func (s *StructRef) String() string {
	if len(s.TypeArgs) == 0 {
		return fmt.Sprintf("%s::%s", s.Module, s.Name)
	}
	args := make([]string, len(s.TypeArgs))
	for i, t := range s.TypeArgs {
		args[i] = t.String()
	}
	return fmt.Sprintf("%s::%s<%s>", s.Module, s.Name, strings.Join(args, ", "))
}

// Reference is &Elem or &mut Elem.
type Reference struct {
	Mut  bool
	Elem Type
}

func (r *Reference) typ() {}
func (r *Reference) String() string {
	if r.Mut {
		return fmt.Sprintf("&mut %s", r.Elem)
	}
	return fmt.Sprintf("&%s", r.Elem)
}

// TypeParam is the index of a type parameter of the enclosing declaration.
type TypeParam struct {
	Index int
}

func (t *TypeParam) typ()           {}
func (t *TypeParam) String() string { return fmt.Sprintf("T%d", t.Index) }

// Substitute rewrites every TypeParam in t using the concrete argument vector
// args. Types without parameters are returned unchanged.
func Substitute(t Type, args []Type) Type {
	switch t := t.(type) {
	case *TypeParam:
		if t.Index < 0 || t.Index >= len(args) {
			panic(fmt.Sprintf("model: type parameter T%d out of range (have %d args)", t.Index, len(args)))
		}
		return args[t.Index]
	case *Vector:
		return &Vector{Elem: Substitute(t.Elem, args)}
	case *Reference:
		return &Reference{Mut: t.Mut, Elem: Substitute(t.Elem, args)}
	case *StructRef:
		if len(t.TypeArgs) == 0 {
			return t
		}
		sub := make([]Type, len(t.TypeArgs))
		for i, a := range t.TypeArgs {
			sub[i] = Substitute(a, args)
		}
		return &StructRef{Module: t.Module, Name: t.Name, TypeArgs: sub}
	default:
		return t
	}
}

// TypesEqual reports structural equality of two types.
func TypesEqual(a, b Type) bool {
	switch a := a.(type) {
	case *Primitive:
		b, ok := b.(*Primitive)
		return ok && a.Kind == b.Kind
	case *Vector:
		b, ok := b.(*Vector)
		return ok && TypesEqual(a.Elem, b.Elem)
	case *Reference:
		b, ok := b.(*Reference)
		return ok && a.Mut == b.Mut && TypesEqual(a.Elem, b.Elem)
	case *TypeParam:
		b, ok := b.(*TypeParam)
		return ok && a.Index == b.Index
	case *StructRef:
		b, ok := b.(*StructRef)
		if !ok || a.Module != b.Module || a.Name != b.Name || len(a.TypeArgs) != len(b.TypeArgs) {
			return false
		}
		for i := range a.TypeArgs {
			if !TypesEqual(a.TypeArgs[i], b.TypeArgs[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Convenience constructors used throughout the compiler and its tests.

func BoolType() Type    { return &Primitive{Kind: Bool} }
func U8Type() Type      { return &Primitive{Kind: U8} }
func U16Type() Type     { return &Primitive{Kind: U16} }
func U32Type() Type     { return &Primitive{Kind: U32} }
func U64Type() Type     { return &Primitive{Kind: U64} }
func U128Type() Type    { return &Primitive{Kind: U128} }
func U256Type() Type    { return &Primitive{Kind: U256} }
func AddressType() Type { return &Primitive{Kind: Address} }
func SignerType() Type  { return &Primitive{Kind: Signer} }

func VectorOf(elem Type) Type         { return &Vector{Elem: elem} }
func RefTo(elem Type) Type            { return &Reference{Elem: elem} }
func MutRefTo(elem Type) Type         { return &Reference{Mut: true, Elem: elem} }
func ByteVectorType() Type            { return VectorOf(U8Type()) }
func StructOf(mod, name string, args ...Type) Type {
	return &StructRef{Module: mod, Name: name, TypeArgs: args}
}
