// Copyright 2025 The MoveChain Authors
// This file is part of the go-move library.

package llvm

import (
	"fmt"
	"sort"
	"strings"
)

// Context owns the modules of one compilation. It carries the data layout so
// every module of the build agrees on sizes and offsets.
type Context struct {
	Layout DataLayout
}

// NewContext creates a fresh compilation context.
func NewContext() *Context {
	return &Context{}
}

// NewModule creates an empty IR module under this context.
func (c *Context) NewModule(name string) *Module {
	return &Module{
		ctx:     c,
		Name:    name,
		structs: make(map[string]*StructType),
		globals: make(map[string]*GlobalVar),
		funcs:   make(map[string]*Function),
	}
}

// Module is one IR translation unit: named types, globals, functions and
// module-level asm, emitted in declaration order.
type Module struct {
	ctx        *Context
	Name       string
	SourceFile string
	Triple     string

	structOrder []*StructType
	structs     map[string]*StructType
	globalOrder []*GlobalVar
	globals     map[string]*GlobalVar
	funcOrder   []*Function
	funcs       map[string]*Function
	asm         []string
}

// Context returns the owning context.
func (m *Module) Context() *Context { return m.ctx }

// DeclareStruct registers an opaque named struct, or returns the existing one.
func (m *Module) DeclareStruct(name string) *StructType {
	if st, ok := m.structs[name]; ok {
		return st
	}
	st := &StructType{Name: name, Opaque: true}
	m.structs[name] = st
	m.structOrder = append(m.structOrder, st)
	return st
}

// NamedStruct returns the named struct, or nil.
func (m *Module) NamedStruct(name string) *StructType { return m.structs[name] }

// AddGlobal installs a global; the name must be unused.
func (m *Module) AddGlobal(g *GlobalVar) *GlobalVar {
	if _, ok := m.globals[g.Name]; ok {
		panic(fmt.Sprintf("llvm: duplicate global @%s", g.Name))
	}
	m.globals[g.Name] = g
	m.globalOrder = append(m.globalOrder, g)
	return g
}

// NamedGlobal returns the global with the given name, or nil.
func (m *Module) NamedGlobal(name string) *GlobalVar { return m.globals[name] }

// AppendModuleAsm adds a line of module-level assembly.
func (m *Module) AppendModuleAsm(line string) {
	m.asm = append(m.asm, line)
}

// ParamAttr is an attribute attached to one function parameter.
type ParamAttr struct {
	Index int // 0-based
	Attr  string
}

// Function is a declared or defined function.
type Function struct {
	Name       string
	Ty         *FuncType
	Linkage    string // "", "internal", "private"
	CallConv   string // "", "ccc" (default) — kept for readability only
	ParamAttrs []ParamAttr
	FnAttrs    []string

	params []*Register
	blocks []*BasicBlock
	tmp    int
}

// AddFunction declares a function; repeated declarations return the existing
// handle. The signature of a repeated declaration must match.
func (m *Module) AddFunction(name string, ty *FuncType) *Function {
	if f, ok := m.funcs[name]; ok {
		if f.Ty.String() != ty.String() {
			panic(fmt.Sprintf("llvm: conflicting signatures for @%s: %s vs %s", name, f.Ty, ty))
		}
		return f
	}
	f := &Function{Name: name, Ty: ty}
	f.params = make([]*Register, len(ty.Params))
	for i, p := range ty.Params {
		f.params[i] = &Register{name: fmt.Sprintf("%d", i), ty: p}
	}
	m.funcs[name] = f
	m.funcOrder = append(m.funcOrder, f)
	return f
}

// NamedFunction returns the function with the given symbol, or nil.
func (m *Module) NamedFunction(name string) *Function { return m.funcs[name] }

// Functions returns the functions in declaration order.
func (m *Module) Functions() []*Function { return m.funcOrder }

// Ident renders the function as a call operand.
func (f *Function) Ident() string { return "@" + f.Name }

// Type returns the pointer type (functions are referenced through pointers).
func (f *Function) Type() Type { return Ptr }

// Param returns the i-th parameter register.
func (f *Function) Param(i int) *Register { return f.params[i] }

// SetParamName renames a parameter for readability.
func (f *Function) SetParamName(i int, name string) {
	f.params[i].name = sanitizeIdent(name)
}

// AddParamAttr attaches a parameter attribute (readonly, noalias, nonnull...).
func (f *Function) AddParamAttr(index int, attr string) {
	for _, a := range f.ParamAttrs {
		if a.Index == index && a.Attr == attr {
			return
		}
	}
	f.ParamAttrs = append(f.ParamAttrs, ParamAttr{Index: index, Attr: attr})
}

// IsDeclaration reports whether the function has no body.
func (f *Function) IsDeclaration() bool { return len(f.blocks) == 0 }

// AppendBlock creates a new basic block at the end of the function. Block
// names are made unique by suffixing.
func (f *Function) AppendBlock(name string) *BasicBlock {
	bb := &BasicBlock{name: f.uniqueBlockName(name), parent: f}
	f.blocks = append(f.blocks, bb)
	return bb
}

// InsertBlockAfter creates a new basic block right after prev, keeping the
// textual order of check/abort block pairs readable.
func (f *Function) InsertBlockAfter(prev *BasicBlock, name string) *BasicBlock {
	bb := &BasicBlock{name: f.uniqueBlockName(name), parent: f}
	for i, b := range f.blocks {
		if b == prev {
			f.blocks = append(f.blocks[:i+1], append([]*BasicBlock{bb}, f.blocks[i+1:]...)...)
			return bb
		}
	}
	f.blocks = append(f.blocks, bb)
	return bb
}

// EntryBlock returns the first block, or nil for declarations.
func (f *Function) EntryBlock() *BasicBlock {
	if len(f.blocks) == 0 {
		return nil
	}
	return f.blocks[0]
}

func (f *Function) uniqueBlockName(name string) string {
	if name == "" {
		name = "bb"
	}
	name = sanitizeIdent(name)
	used := false
	for _, b := range f.blocks {
		if b.name == name {
			used = true
			break
		}
	}
	if !used {
		return name
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s.%d", name, i)
		clash := false
		for _, b := range f.blocks {
			if b.name == candidate {
				clash = true
				break
			}
		}
		if !clash {
			return candidate
		}
	}
}

func (f *Function) newReg(ty Type, name string) *Register {
	if name == "" {
		name = fmt.Sprintf("t%d", f.tmp)
		f.tmp++
	} else {
		name = sanitizeIdent(name)
		name = fmt.Sprintf("%s.%d", name, f.tmp)
		f.tmp++
	}
	return &Register{name: name, ty: ty}
}

// BasicBlock is a named straight-line instruction sequence ending in a
// terminator.
type BasicBlock struct {
	name       string
	parent     *Function
	lines      []string
	terminated bool
}

// Name returns the block label.
func (b *BasicBlock) Name() string { return b.name }

// Parent returns the enclosing function.
func (b *BasicBlock) Parent() *Function { return b.parent }

// Terminated reports whether the block already has a terminator.
func (b *BasicBlock) Terminated() bool { return b.terminated }

func (b *BasicBlock) add(line string) {
	if b.terminated {
		// Instructions after a terminator are unreachable filler the
		// translator may legally produce after Abort; drop them.
		return
	}
	b.lines = append(b.lines, "  "+line)
}

func (b *BasicBlock) terminate(line string) {
	if b.terminated {
		return
	}
	b.lines = append(b.lines, "  "+line)
	b.terminated = true
}

func (f *Function) define() string {
	var sb strings.Builder
	keyword := "define"
	if f.IsDeclaration() {
		keyword = "declare"
	}
	sb.WriteString(keyword + " ")
	if f.Linkage != "" {
		sb.WriteString(f.Linkage + " ")
	}
	sb.WriteString(f.Ty.Ret.String() + " @" + f.Name + "(")
	for i, p := range f.Ty.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.String())
		for _, a := range f.paramAttrsFor(i) {
			sb.WriteString(" " + a)
		}
		if !f.IsDeclaration() {
			sb.WriteString(" " + f.params[i].Ident())
		}
	}
	sb.WriteString(")")
	for _, a := range f.FnAttrs {
		sb.WriteString(" " + a)
	}
	if f.IsDeclaration() {
		return sb.String()
	}
	sb.WriteString(" {\n")
	for _, bb := range f.blocks {
		sb.WriteString(bb.name + ":\n")
		for _, line := range bb.lines {
			sb.WriteString(line + "\n")
		}
	}
	sb.WriteString("}")
	return sb.String()
}

func (f *Function) paramAttrsFor(i int) []string {
	var attrs []string
	for _, a := range f.ParamAttrs {
		if a.Index == i {
			attrs = append(attrs, a.Attr)
		}
	}
	sort.Strings(attrs)
	return attrs
}

// Emit renders the whole module as textual IR.
func (m *Module) Emit() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "; ModuleID = '%s'\n", m.Name)
	if m.SourceFile != "" {
		fmt.Fprintf(&sb, "source_filename = %q\n", m.SourceFile)
	}
	fmt.Fprintf(&sb, "target datalayout = %q\n", RV32DataLayout)
	if m.Triple != "" {
		fmt.Fprintf(&sb, "target triple = %q\n", m.Triple)
	}
	sb.WriteString("\n")
	for _, st := range m.structOrder {
		fmt.Fprintf(&sb, "%%%s = type %s\n", st.Name, st.Body())
	}
	if len(m.structOrder) > 0 {
		sb.WriteString("\n")
	}
	for _, g := range m.globalOrder {
		sb.WriteString(g.define() + "\n")
	}
	if len(m.globalOrder) > 0 {
		sb.WriteString("\n")
	}
	for _, f := range m.funcOrder {
		sb.WriteString(f.define() + "\n\n")
	}
	for _, line := range m.asm {
		fmt.Fprintf(&sb, "module asm %q\n", line)
	}
	return sb.String()
}

// Verify runs the structural checks an emitted module must pass: every named
// struct of the module has a body and every defined block is terminated.
// Call targets are not checked against the module's declarations.
func (m *Module) Verify() error {
	for _, st := range m.structOrder {
		if st.Opaque {
			return fmt.Errorf("llvm: struct %%%s left opaque in module %s", st.Name, m.Name)
		}
	}
	for _, f := range m.funcOrder {
		for _, bb := range f.blocks {
			if !bb.terminated {
				return fmt.Errorf("llvm: block %s in @%s has no terminator", bb.name, f.Name)
			}
		}
	}
	return nil
}

// sanitizeIdent rewrites a candidate identifier so it satisfies the LLVM
// unquoted identifier grammar.
func sanitizeIdent(name string) string {
	var sb strings.Builder
	for i, r := range name {
		ok := r == '_' || r == '$' || r == '.' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9' && i > 0)
		if ok {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('_')
		}
	}
	if sb.Len() == 0 {
		return "_"
	}
	return sb.String()
}
