// Copyright 2025 The MoveChain Authors
// This file is part of the go-move library.

// Package rttydesc emits the runtime type descriptors compiled programs and
// the host read at run time. Every lowered Move type gets one
// content-addressed constant global per module describing its name, kind and
// shape; struct descriptors carry a field table with per-field descriptors,
// byte offsets and names.
package rttydesc

import (
	"fmt"
	"strings"

	"github.com/movechain/go-move/movelang/llvm"
	"github.com/movechain/go-move/movelang/model"
)

// TypeKind codes of the wire enum, 64 bits wide in the descriptor record.
const (
	KindBool      = 1
	KindU8        = 2
	KindU16       = 3
	KindU32       = 4
	KindU64       = 5
	KindU128      = 6
	KindU256      = 7
	KindAddress   = 8
	KindSigner    = 9
	KindVector    = 10
	KindStruct    = 11
	KindReference = 12
)

// StructResolver resolves a concrete struct instantiation to its declaration
// (with substituted field types) and its lowered named aggregate.
type StructResolver interface {
	ResolveStruct(ref *model.StructRef) (*model.Struct, *llvm.StructType, error)
}

// Builder emits descriptors into one IR module.
type Builder struct {
	m        *llvm.Module
	resolver StructResolver
	layout   llvm.DataLayout
}

// NewBuilder creates a descriptor builder for module m.
func NewBuilder(m *llvm.Module, resolver StructResolver) *Builder {
	return &Builder{m: m, resolver: resolver}
}

// MoveTypeTy returns the named %move_type aggregate:
// { { ptr, i64 } name, i64 kind, ptr info }.
func (b *Builder) MoveTypeTy() *llvm.StructType {
	st := b.m.DeclareStruct("move_type")
	if st.Opaque {
		st.SetBody([]llvm.Type{llvm.Struct(llvm.Ptr, llvm.I64), llvm.I64, llvm.Ptr})
	}
	return st
}

// VectorTy returns the named %move_untyped_vector aggregate:
// { ptr data, i64 capacity, i64 length }, counters in elements.
func (b *Builder) VectorTy() *llvm.StructType {
	st := b.m.DeclareStruct("move_untyped_vector")
	if st.Opaque {
		st.SetBody([]llvm.Type{llvm.Ptr, llvm.I64, llvm.I64})
	}
	return st
}

// Describe returns the descriptor global for t, creating it on first use.
// Descriptors are content addressed by the type mangling, so repeated calls
// are idempotent. t must be fully substituted.
func (b *Builder) Describe(t model.Type) (*llvm.GlobalVar, error) {
	d, err := b.describe(t)
	if err != nil {
		return nil, err
	}
	return d.global, nil
}

// desc couples a descriptor global with its initializer, so the initializer
// can be embedded by value into struct field tables.
type desc struct {
	global *llvm.GlobalVar
	init   *llvm.ConstStruct
}

func (b *Builder) describe(t model.Type) (desc, error) {
	mangled := TypeMangle(t)
	globalName := "__move_rttydesc_" + mangled
	if g := b.m.NamedGlobal(globalName); g != nil {
		// Rebuild the initializer view from the cached global.
		return desc{global: g, init: g.Init.(*llvm.ConstStruct)}, nil
	}

	namePtr, nameLen := b.nameString(mangled, t.String())
	var kind uint64
	info := llvm.Value(llvm.Null{})

	switch t := t.(type) {
	case *model.Primitive:
		switch t.Kind {
		case model.Bool:
			kind = KindBool
		case model.U8:
			kind = KindU8
		case model.U16:
			kind = KindU16
		case model.U32:
			kind = KindU32
		case model.U64:
			kind = KindU64
		case model.U128:
			kind = KindU128
		case model.U256:
			kind = KindU256
		case model.Address:
			kind = KindAddress
		case model.Signer:
			kind = KindSigner
		default:
			return desc{}, fmt.Errorf("rttydesc: unknown primitive kind %d", t.Kind)
		}
	case *model.Vector:
		kind = KindVector
		elem, err := b.describe(t.Elem)
		if err != nil {
			return desc{}, err
		}
		info = b.infoGlobal(mangled, &llvm.ConstStruct{
			Ty:   llvm.Struct(llvm.Ptr),
			Vals: []llvm.Value{elem.global},
		})
	case *model.Reference:
		kind = KindReference
		elem, err := b.describe(t.Elem)
		if err != nil {
			return desc{}, err
		}
		info = b.infoGlobal(mangled, &llvm.ConstStruct{
			Ty:   llvm.Struct(llvm.Ptr),
			Vals: []llvm.Value{elem.global},
		})
	case *model.StructRef:
		kind = KindStruct
		structInfo, err := b.structInfo(mangled, t)
		if err != nil {
			return desc{}, err
		}
		info = structInfo
	default:
		return desc{}, fmt.Errorf("rttydesc: cannot describe type %s", t)
	}

	init := &llvm.ConstStruct{
		Ty: b.MoveTypeTy(),
		Vals: []llvm.Value{
			&llvm.ConstStruct{Vals: []llvm.Value{namePtr, nameLen}},
			llvm.ConstIntVal(llvm.I64, kind),
			info,
		},
	}
	g := b.m.AddGlobal(&llvm.GlobalVar{
		Name:        globalName,
		Elem:        b.MoveTypeTy(),
		Init:        init,
		Linkage:     "private",
		Section:     ".rodata",
		Const:       true,
		UnnamedAddr: true,
	})
	return desc{global: g, init: init}, nil
}

// nameString interns the diagnostic name of a type and returns its pointer
// and length constants.
func (b *Builder) nameString(mangled, display string) (llvm.Value, llvm.Value) {
	gname := "__move_rttydesc_" + mangled + "_name"
	g := b.m.NamedGlobal(gname)
	if g == nil {
		g = b.m.AddGlobal(&llvm.GlobalVar{
			Name:        gname,
			Elem:        llvm.Array(len(display), llvm.I8),
			Init:        &llvm.ConstString{Data: []byte(display)},
			Linkage:     "private",
			Section:     ".rodata",
			Align:       1,
			Const:       true,
			UnnamedAddr: true,
		})
	}
	return g, llvm.ConstIntVal(llvm.I64, uint64(len(display)))
}

// infoGlobal places an info record in read-only memory and returns it.
func (b *Builder) infoGlobal(mangled string, init *llvm.ConstStruct) *llvm.GlobalVar {
	return b.m.AddGlobal(&llvm.GlobalVar{
		Name:        "__move_rttydesc_" + mangled + "_info",
		Elem:        init.Type(),
		Init:        init,
		Linkage:     "private",
		Section:     ".rodata",
		Const:       true,
		UnnamedAddr: true,
	})
}

// structInfo emits the field table of a struct descriptor:
// info = { ptr fields, i64 field_count, i64 size, i64 align }, with each
// field record { %move_type, i64 offset, { ptr, i64 } name }.
func (b *Builder) structInfo(mangled string, ref *model.StructRef) (llvm.Value, error) {
	decl, lowered, err := b.resolver.ResolveStruct(ref)
	if err != nil {
		return nil, err
	}
	offsets := b.layout.Offsets(lowered)
	fieldTy := llvm.Struct(b.MoveTypeTy(), llvm.I64, llvm.Struct(llvm.Ptr, llvm.I64))

	records := make([]llvm.Value, len(decl.Fields))
	for i, f := range decl.Fields {
		fd, err := b.describe(model.Substitute(f.Type, ref.TypeArgs))
		if err != nil {
			return nil, err
		}
		fnamePtr, fnameLen := b.nameString(mangled+"_f"+f.Name, f.Name)
		records[i] = &llvm.ConstStruct{
			Ty: fieldTy,
			Vals: []llvm.Value{
				fd.init,
				llvm.ConstIntVal(llvm.I64, uint64(offsets[i])),
				&llvm.ConstStruct{Vals: []llvm.Value{fnamePtr, fnameLen}},
			},
		}
	}
	fieldsGlobal := b.m.AddGlobal(&llvm.GlobalVar{
		Name:        "__move_rttydesc_" + mangled + "_fields",
		Elem:        llvm.Array(len(records), fieldTy),
		Init:        &llvm.ConstArray{Elem: fieldTy, Vals: records},
		Linkage:     "private",
		Section:     ".rodata",
		Const:       true,
		UnnamedAddr: true,
	})
	return b.infoGlobal(mangled, &llvm.ConstStruct{
		Ty: llvm.Struct(llvm.Ptr, llvm.I64, llvm.I64, llvm.I64),
		Vals: []llvm.Value{
			fieldsGlobal,
			llvm.ConstIntVal(llvm.I64, uint64(len(records))),
			llvm.ConstIntVal(llvm.I64, uint64(b.layout.SizeOf(lowered))),
			llvm.ConstIntVal(llvm.I64, uint64(b.layout.AlignOf(lowered))),
		},
	}), nil
}

// TypeMangle produces the stable mangling a type is content addressed by.
func TypeMangle(t model.Type) string {
	switch t := t.(type) {
	case *model.Primitive:
		return t.String()
	case *model.Vector:
		return "vec_" + TypeMangle(t.Elem)
	case *model.Reference:
		if t.Mut {
			return "mref_" + TypeMangle(t.Elem)
		}
		return "ref_" + TypeMangle(t.Elem)
	case *model.StructRef:
		var sb strings.Builder
		sb.WriteString("s_")
		sb.WriteString(t.Module)
		sb.WriteString("__")
		sb.WriteString(t.Name)
		for _, a := range t.TypeArgs {
			sb.WriteString("_")
			sb.WriteString(TypeMangle(a))
		}
		return sb.String()
	case *model.TypeParam:
		return fmt.Sprintf("tp%d", t.Index)
	}
	return "unknown"
}
