// Copyright 2025 The MoveChain Authors
// This file is part of the go-move library.

// Package llvm is a self-contained textual LLVM IR builder: enough of the
// type system, constant language, module structure and instruction set for
// the Move compiler to target, emitted as .ll text for an external code
// generator. The data layout mirrors the 32-bit RISC-V profile the programs
// run on.
package llvm

import (
	"fmt"
	"strings"
)

// Type is an LLVM first-class type.
type Type interface {
	// String renders the type reference as it appears in instructions.
	String() string
	isType()
}

// IntType is an arbitrary-width integer type iN.
type IntType struct {
	Bits int
}

func (t *IntType) isType()        {}
func (t *IntType) String() string { return fmt.Sprintf("i%d", t.Bits) }

// PtrType is the opaque pointer type.
type PtrType struct{}

func (t *PtrType) isType()        {}
func (t *PtrType) String() string { return "ptr" }

// VoidType is the type of functions returning nothing.
type VoidType struct{}

func (t *VoidType) isType()        {}
func (t *VoidType) String() string { return "void" }

// ArrayType is [N x Elem].
type ArrayType struct {
	N    int
	Elem Type
}

func (t *ArrayType) isType()        {}
func (t *ArrayType) String() string { return fmt.Sprintf("[%d x %s]", t.N, t.Elem) }

// StructType is a literal or named aggregate. Named structs render as
// %name references and carry their body in the module's type table; a nil
// Fields slice with Opaque set declares a forward reference.
type StructType struct {
	Name   string
	Fields []Type
	Packed bool
	Opaque bool
}

func (t *StructType) isType() {}

func (t *StructType) String() string {
	if t.Name != "" {
		return "%" + t.Name
	}
	return t.Body()
}

// Body renders the struct body literally, regardless of naming.
func (t *StructType) Body() string {
	if t.Opaque {
		return "opaque"
	}
	parts := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		parts[i] = f.String()
	}
	if t.Packed {
		return "<{ " + strings.Join(parts, ", ") + " }>"
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

// SetBody fills in the fields of a previously opaque struct.
func (t *StructType) SetBody(fields []Type) {
	t.Fields = fields
	t.Opaque = false
}

// FuncType is a function signature.
type FuncType struct {
	Ret    Type
	Params []Type
}

func (t *FuncType) isType() {}

func (t *FuncType) String() string {
	parts := make([]string, len(t.Params))
	for i, p := range t.Params {
		parts[i] = p.String()
	}
	return fmt.Sprintf("%s (%s)", t.Ret, strings.Join(parts, ", "))
}

// Shared singleton types.
var (
	Void = &VoidType{}
	Ptr  = &PtrType{}
	I1   = &IntType{Bits: 1}
	I8   = &IntType{Bits: 8}
	I16  = &IntType{Bits: 16}
	I32  = &IntType{Bits: 32}
	I64  = &IntType{Bits: 64}
	I128 = &IntType{Bits: 128}
	I256 = &IntType{Bits: 256}
)

// Int returns the integer type of the given bit width.
func Int(bits int) *IntType {
	switch bits {
	case 1:
		return I1
	case 8:
		return I8
	case 16:
		return I16
	case 32:
		return I32
	case 64:
		return I64
	case 128:
		return I128
	case 256:
		return I256
	}
	return &IntType{Bits: bits}
}

// Array returns [n x elem].
func Array(n int, elem Type) *ArrayType { return &ArrayType{N: n, Elem: elem} }

// Struct returns an anonymous literal struct type.
func Struct(fields ...Type) *StructType { return &StructType{Fields: fields} }

// PackedStruct returns an anonymous packed literal struct type.
func PackedStruct(fields ...Type) *StructType {
	return &StructType{Fields: fields, Packed: true}
}

// Func returns the signature ret(params...).
func Func(ret Type, params ...Type) *FuncType {
	return &FuncType{Ret: ret, Params: params}
}
