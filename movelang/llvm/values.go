// Copyright 2025 The MoveChain Authors
// This file is part of the go-move library.

package llvm

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// Value is any operand: a virtual register, a constant, a global or a
// function. Ident renders the operand without its type; instructions print
// "<type> <ident>" pairs.
type Value interface {
	Ident() string
	Type() Type
}

// Register is a virtual register produced by an instruction or a parameter.
type Register struct {
	name string
	ty   Type
}

func (r *Register) Ident() string { return "%" + r.name }
func (r *Register) Type() Type    { return r.ty }

// ConstInt is an integer constant of arbitrary width.
type ConstInt struct {
	ty *IntType
	v  *uint256.Int
}

// ConstIntVal builds an integer constant from a uint64.
func ConstIntVal(ty *IntType, v uint64) *ConstInt {
	return &ConstInt{ty: ty, v: uint256.NewInt(v)}
}

// ConstIntBig builds an integer constant from a 256-bit value.
func ConstIntBig(ty *IntType, v *uint256.Int) *ConstInt {
	return &ConstInt{ty: ty, v: v}
}

func (c *ConstInt) Ident() string { return c.v.Dec() }
func (c *ConstInt) Type() Type    { return c.ty }

// Uint64 returns the low word of the constant.
func (c *ConstInt) Uint64() uint64 { return c.v.Uint64() }

// True and False are the i1 constants.
var (
	True  = ConstIntVal(I1, 1)
	False = ConstIntVal(I1, 0)
)

// Null is the null pointer constant.
type Null struct{}

func (Null) Ident() string { return "null" }
func (Null) Type() Type    { return Ptr }

// Undef is an undefined value of a given type.
type Undef struct {
	Ty Type
}

func (u *Undef) Ident() string { return "undef" }
func (u *Undef) Type() Type    { return u.Ty }

// ZeroInit is the zeroinitializer constant for aggregates.
type ZeroInit struct {
	Ty Type
}

func (z *ZeroInit) Ident() string { return "zeroinitializer" }
func (z *ZeroInit) Type() Type    { return z.Ty }

// ConstString is a byte-array string constant (not NUL-terminated).
type ConstString struct {
	Data []byte
}

func (c *ConstString) Ident() string {
	var sb strings.Builder
	sb.WriteString(`c"`)
	for _, b := range c.Data {
		if b >= 0x20 && b < 0x7f && b != '"' && b != '\\' {
			sb.WriteByte(b)
		} else {
			fmt.Fprintf(&sb, "\\%02X", b)
		}
	}
	sb.WriteString(`"`)
	return sb.String()
}

func (c *ConstString) Type() Type { return Array(len(c.Data), I8) }

// ConstArray is a constant array aggregate.
type ConstArray struct {
	Elem Type
	Vals []Value
}

func (c *ConstArray) Ident() string {
	parts := make([]string, len(c.Vals))
	for i, v := range c.Vals {
		parts[i] = fmt.Sprintf("%s %s", v.Type(), v.Ident())
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (c *ConstArray) Type() Type { return Array(len(c.Vals), c.Elem) }

// ConstStruct is a constant struct aggregate. Ty may be a named struct; the
// value list must match its body.
type ConstStruct struct {
	Ty   *StructType
	Vals []Value
}

func (c *ConstStruct) Ident() string {
	parts := make([]string, len(c.Vals))
	for i, v := range c.Vals {
		parts[i] = fmt.Sprintf("%s %s", v.Type(), v.Ident())
	}
	body := "{ " + strings.Join(parts, ", ") + " }"
	if c.Ty != nil && c.Ty.Packed {
		return "<" + body + ">"
	}
	return body
}

func (c *ConstStruct) Type() Type {
	if c.Ty != nil {
		return c.Ty
	}
	fields := make([]Type, len(c.Vals))
	for i, v := range c.Vals {
		fields[i] = v.Type()
	}
	return Struct(fields...)
}

// GlobalVar is a module-level global variable or constant. As a Value it is
// the pointer to its storage.
type GlobalVar struct {
	Name        string
	Elem        Type // pointee type
	Init        Value
	Linkage     string // "", "private", "internal", "external"
	Section     string
	Align       int
	Const       bool
	UnnamedAddr bool
}

func (g *GlobalVar) Ident() string { return "@" + g.Name }
func (g *GlobalVar) Type() Type    { return Ptr }

func (g *GlobalVar) define() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "@%s = ", g.Name)
	if g.Linkage != "" && g.Linkage != "external" {
		sb.WriteString(g.Linkage + " ")
	}
	if g.UnnamedAddr {
		sb.WriteString("unnamed_addr ")
	}
	if g.Const {
		sb.WriteString("constant ")
	} else {
		sb.WriteString("global ")
	}
	if g.Init != nil {
		fmt.Fprintf(&sb, "%s %s", g.Elem, g.Init.Ident())
	} else {
		fmt.Fprintf(&sb, "%s zeroinitializer", g.Elem)
	}
	if g.Section != "" {
		fmt.Fprintf(&sb, ", section %q", g.Section)
	}
	if g.Align > 0 {
		fmt.Fprintf(&sb, ", align %d", g.Align)
	}
	return sb.String()
}
