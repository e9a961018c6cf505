// Copyright 2025 The MoveChain Authors
// This file is part of the go-move library.

// Package stackless translates verified Move modules, in their stackless
// bytecode form, into IR modules targeting the PolkaVM RISC-V profile.
//
// Translation of one module runs in three passes: struct declaration
// (including every concrete generic instantiation reachable from the module),
// function declaration (a work list seeded with the local functions, growing
// as call edges are discovered), and body translation. Modules with entry
// functions additionally receive a synthetic call_selector dispatcher.
package stackless

import (
	"errors"
	"fmt"
	"sort"

	mapset "github.com/deckarep/golang-set"
	log "github.com/sirupsen/logrus"

	"github.com/movechain/go-move/common"
	"github.com/movechain/go-move/crypto"
	"github.com/movechain/go-move/movelang/llvm"
	"github.com/movechain/go-move/movelang/model"
	"github.com/movechain/go-move/movelang/rttydesc"
)

// ErrSelectorCollision is returned when two entry functions of one module
// share the same dispatch selector.
var ErrSelectorCollision = errors.New("stackless: entry selector collision")

// abortCodeArithmetic is the Move status code arithmetic check failures abort
// with.
const abortCodeArithmetic = 4004

// abortCodeBadSelector is the code call_selector aborts with when no entry
// function matches.
const abortCodeBadSelector = 2

// Exports tracks which symbols already carry PolkaVM export metadata. The set
// is shared by every module of a build so each symbol is recorded exactly
// once.
type Exports struct {
	set   mapset.Set
	Order []string
}

// NewExports creates an empty export set.
func NewExports() *Exports {
	return &Exports{set: mapset.NewThreadUnsafeSet()}
}

// Contains reports whether symbol already has metadata.
func (e *Exports) Contains(symbol string) bool { return e.set.Contains(symbol) }

// Add records symbol; reports false if it was already present.
func (e *Exports) Add(symbol string) bool {
	if !e.set.Add(symbol) {
		return false
	}
	e.Order = append(e.Order, symbol)
	return true
}

// instantiation is one concrete Move function scheduled for body translation.
type instantiation struct {
	module   *model.Module
	fn       *model.Function
	typeArgs []model.Type
}

// SignerProvider supplies the numbered signer values a script's signer
// parameters are bound to. The command-line driver implements it.
type SignerProvider interface {
	Signer(i int) (common.Address, error)
}

// ModuleContext drives the translation of a single Move module into one IR
// module. The per-build tables (fn_decls, fn_is_entry, expanded_functions,
// exports) live for the duration of the walk and are consumed by Translate.
type ModuleContext struct {
	Model  *model.Model
	Module *model.Module

	llmod   *llvm.Module
	builder *llvm.Builder
	rtty    *rttydesc.Builder
	layout  llvm.DataLayout
	exports *Exports
	signers SignerProvider

	fnDecls   map[string]*llvm.Function
	fnIsEntry map[string]bool
	expanded  []instantiation
	seen      map[string]bool // instantiation keys already declared
}

// NewModuleContext prepares the translation of module within model, emitting
// into a fresh IR module under ctx. exports is shared across the build.
func NewModuleContext(ctx *llvm.Context, g *model.Model, m *model.Module, exports *Exports, signers SignerProvider) *ModuleContext {
	llmod := ctx.NewModule(m.Name)
	mc := &ModuleContext{
		Model:     g,
		Module:    m,
		llmod:     llmod,
		builder:   llvm.NewBuilder(),
		exports:   exports,
		signers:   signers,
		fnDecls:   make(map[string]*llvm.Function),
		fnIsEntry: make(map[string]bool),
		seen:      make(map[string]bool),
	}
	mc.rtty = rttydesc.NewBuilder(llmod, mc)
	llvm.DeclareMemcpy(llmod)
	return mc
}

// IRModule returns the IR module being built.
func (mc *ModuleContext) IRModule() *llvm.Module { return mc.llmod }

// Translate runs the three passes and, when the module declares entry
// functions, generates the call selector. Any discrepancy is fatal to the
// whole compile; no partial IR is handed to later phases.
func (mc *ModuleContext) Translate() error {
	log.WithField("module", mc.Module.FullName()).Debug("translating module")
	mc.llmod.SourceFile = mc.Module.Name + ".move"

	if err := mc.declareStructs(); err != nil {
		return err
	}
	if err := mc.declareFunctions(); err != nil {
		return err
	}

	hasEntry := false
	for _, inst := range mc.expanded {
		if inst.fn.IsEntry {
			hasEntry = true
		}
		fc, err := newFunctionContext(mc, inst)
		if err != nil {
			return err
		}
		if err := fc.translate(); err != nil {
			return fmt.Errorf("function %s: %w", qualifiedName(inst.module.Name, inst.fn.Name), err)
		}
	}

	if hasEntry {
		// Assumption carried over from the dispatch design: only one
		// module of a program declares entry functions.
		if err := mc.generateCallSelector(); err != nil {
			return err
		}
	}
	return mc.llmod.Verify()
}

// ---- Pass 1: struct declaration -------------------------------------------

// declareStructs collects every struct instantiation reachable from the
// module (field declarations, signatures, instruction type arguments, and
// the same transitively through imported modules) and lowers each one:
// opaque named aggregate first, body in a second pass once the field types
// exist.
func (mc *ModuleContext) declareStructs() error {
	visited := mapset.NewThreadUnsafeSet()
	worklist := []*model.Module{mc.Module}
	visited.Add(mc.Module.Name)

	var refs []*model.StructRef
	for len(worklist) > 0 {
		m := worklist[0]
		worklist = worklist[1:]
		for _, ref := range moduleStructRefs(m) {
			refs = append(refs, ref)
			if dep := mc.Model.FindModule(ref.Module); dep != nil && !visited.Contains(dep.Name) {
				visited.Add(dep.Name)
				worklist = append(worklist, dep)
			}
		}
	}
	for _, ref := range refs {
		if hasTypeParams(ref) {
			continue // generic skeleton; only concrete instantiations lower
		}
		if _, _, err := mc.ResolveStruct(ref); err != nil {
			return err
		}
	}
	return nil
}

// moduleStructRefs scans one module for struct references in field
// declarations, function signatures and bytecode operations.
func moduleStructRefs(m *model.Module) []*model.StructRef {
	var refs []*model.StructRef
	var walk func(t model.Type)
	walk = func(t model.Type) {
		switch t := t.(type) {
		case *model.StructRef:
			refs = append(refs, t)
			for _, a := range t.TypeArgs {
				walk(a)
			}
		case *model.Vector:
			walk(t.Elem)
		case *model.Reference:
			walk(t.Elem)
		}
	}
	for _, s := range m.Structs {
		for _, f := range s.Fields {
			walk(f.Type)
		}
	}
	for _, f := range m.Functions {
		for _, t := range f.Params {
			walk(t)
		}
		for _, t := range f.Returns {
			walk(t)
		}
		for _, t := range f.LocalTypes {
			walk(t)
		}
		for _, bc := range f.Code {
			if bc.Op == nil {
				continue
			}
			if bc.Op.Struct != "" {
				refs = append(refs, &model.StructRef{
					Module: bc.Op.Module, Name: bc.Op.Struct, TypeArgs: bc.Op.TypeArgs,
				})
			}
			for _, t := range bc.Op.TypeArgs {
				walk(t)
			}
		}
	}
	return refs
}

func hasTypeParams(t model.Type) bool {
	switch t := t.(type) {
	case *model.TypeParam:
		return true
	case *model.Vector:
		return hasTypeParams(t.Elem)
	case *model.Reference:
		return hasTypeParams(t.Elem)
	case *model.StructRef:
		for _, a := range t.TypeArgs {
			if hasTypeParams(a) {
				return true
			}
		}
	}
	return false
}

// ResolveStruct lowers a concrete struct instantiation to its named
// aggregate, declaring it opaque first so mutually referential field chains
// terminate. It also hands the descriptor builder the declaration with
// substituted field types.
func (mc *ModuleContext) ResolveStruct(ref *model.StructRef) (*model.Struct, *llvm.StructType, error) {
	_, decl := mc.Model.FindStruct(ref.Module, ref.Name)
	if decl == nil {
		return nil, nil, fmt.Errorf("stackless: undefined struct %s::%s", ref.Module, ref.Name)
	}
	if decl.TypeParams != len(ref.TypeArgs) {
		return nil, nil, fmt.Errorf("stackless: struct %s::%s expects %d type arguments, got %d",
			ref.Module, ref.Name, decl.TypeParams, len(ref.TypeArgs))
	}
	name := StructTypeName(ref.Module, ref.Name, ref.TypeArgs)
	st := mc.llmod.NamedStruct(name)
	if st != nil && !st.Opaque {
		return instantiatedDecl(decl, ref), st, nil
	}
	st = mc.llmod.DeclareStruct(name)
	fields := make([]llvm.Type, len(decl.Fields))
	for i, f := range decl.Fields {
		ft, err := mc.lowerType(model.Substitute(f.Type, ref.TypeArgs))
		if err != nil {
			return nil, nil, err
		}
		fields[i] = ft
	}
	st.SetBody(fields)
	return instantiatedDecl(decl, ref), st, nil
}

// instantiatedDecl returns a copy of decl with field types substituted.
func instantiatedDecl(decl *model.Struct, ref *model.StructRef) *model.Struct {
	out := &model.Struct{Name: decl.Name, Abilities: decl.Abilities}
	out.Fields = make([]model.Field, len(decl.Fields))
	for i, f := range decl.Fields {
		out.Fields[i] = model.Field{Name: f.Name, Type: model.Substitute(f.Type, ref.TypeArgs)}
	}
	return out
}

// lowerType maps a concrete Move type onto its IR representation.
func (mc *ModuleContext) lowerType(t model.Type) (llvm.Type, error) {
	switch t := t.(type) {
	case *model.Primitive:
		switch t.Kind {
		case model.Bool, model.U8:
			return llvm.I8, nil
		case model.U16:
			return llvm.I16, nil
		case model.U32:
			return llvm.I32, nil
		case model.U64:
			return llvm.I64, nil
		case model.U128:
			return llvm.I128, nil
		case model.U256:
			return llvm.I256, nil
		case model.Address, model.Signer:
			return llvm.Array(common.AddressLength, llvm.I8), nil
		}
	case *model.Vector:
		return mc.rtty.VectorTy(), nil
	case *model.Reference:
		return llvm.Ptr, nil
	case *model.StructRef:
		_, st, err := mc.ResolveStruct(t)
		return st, err
	case *model.TypeParam:
		return nil, fmt.Errorf("stackless: unsubstituted type parameter T%d", t.Index)
	}
	return nil, fmt.Errorf("stackless: cannot lower type %s", t)
}

// ---- Pass 2: function declaration ------------------------------------------

// declareFunctions seeds the work list with every concrete local function and
// walks call edges, declaring Move callees under their mangled symbols and
// native callees under their raw names. Discovered generic instantiations are
// scheduled for body translation; foreign monomorphizations become private in
// this module. Inline functions never reach the object.
func (mc *ModuleContext) declareFunctions() error {
	type workItem struct {
		module   *model.Module
		fn       *model.Function
		typeArgs []model.Type
	}
	var worklist []workItem

	for _, fn := range mc.Module.Functions {
		if fn.IsInline || fn.IsNative || fn.TypeParams > 0 {
			// Generic bodies are only emitted per concrete
			// instantiation; natives come from the runtime object.
			continue
		}
		worklist = append(worklist, workItem{module: mc.Module, fn: fn})
	}

	for len(worklist) > 0 {
		item := worklist[0]
		worklist = worklist[1:]
		key := instantiationKey(item.module.Name, item.fn.Name, item.typeArgs)
		if mc.seen[key] {
			continue
		}
		mc.seen[key] = true

		if item.fn.IsNative {
			if err := mc.declareNativeFunction(item.module, item.fn, item.typeArgs); err != nil {
				return err
			}
			continue
		}
		if err := mc.declareMoveFunction(item.module, item.fn, item.typeArgs); err != nil {
			return err
		}
		// Bodies are emitted for local functions and for every generic
		// instantiation (which has no home module object of its own);
		// foreign concrete functions stay declarations here.
		emitBody := item.module == mc.Module || len(item.typeArgs) > 0
		if !emitBody {
			continue
		}
		mc.expanded = append(mc.expanded, instantiation(item))

		// Discover callees, substituting the current type arguments.
		for _, bc := range item.fn.Code {
			if bc.Op == nil || bc.Op.Kind != model.OpFunction {
				continue
			}
			calleeModule, callee := mc.Model.FindFunction(bc.Op.Module, bc.Op.Function)
			if callee == nil {
				return fmt.Errorf("stackless: call to undefined function %s::%s",
					bc.Op.Module, bc.Op.Function)
			}
			if callee.IsInline {
				continue
			}
			args := make([]model.Type, len(bc.Op.TypeArgs))
			for i, a := range bc.Op.TypeArgs {
				args[i] = model.Substitute(a, item.typeArgs)
			}
			if callee.TypeParams != len(args) {
				return fmt.Errorf("stackless: %s::%s expects %d type arguments, got %d",
					bc.Op.Module, bc.Op.Function, callee.TypeParams, len(args))
			}
			worklist = append(worklist, workItem{module: calleeModule, fn: callee, typeArgs: args})
		}
	}
	return nil
}

// moveABI computes the IR signature of a Move-defined function: values in and
// out by value, multi-returns packed into an anonymous aggregate, references
// and signers as pointers.
func (mc *ModuleContext) moveABI(fn *model.Function, typeArgs []model.Type) (*llvm.FuncType, error) {
	params := make([]llvm.Type, len(fn.Params))
	for i, p := range fn.Params {
		p = model.Substitute(p, typeArgs)
		if isByPointerParam(p) {
			params[i] = llvm.Ptr
			continue
		}
		lt, err := mc.lowerType(p)
		if err != nil {
			return nil, err
		}
		params[i] = lt
	}
	ret, err := mc.returnType(fn, typeArgs)
	if err != nil {
		return nil, err
	}
	return &llvm.FuncType{Ret: ret, Params: params}, nil
}

func (mc *ModuleContext) returnType(fn *model.Function, typeArgs []model.Type) (llvm.Type, error) {
	switch len(fn.Returns) {
	case 0:
		return llvm.Void, nil
	case 1:
		return mc.lowerType(model.Substitute(fn.Returns[0], typeArgs))
	default:
		fields := make([]llvm.Type, len(fn.Returns))
		for i, r := range fn.Returns {
			lt, err := mc.lowerType(model.Substitute(r, typeArgs))
			if err != nil {
				return nil, err
			}
			fields[i] = lt
		}
		return llvm.Struct(fields...), nil
	}
}

// isByPointerParam reports whether a Move parameter travels as a pointer
// under the Move ABI: references, and the signer handed to entry points.
func isByPointerParam(t model.Type) bool {
	if _, ok := t.(*model.Reference); ok {
		return true
	}
	if p, ok := t.(*model.Primitive); ok && p.Kind == model.Signer {
		return true
	}
	return false
}

// declareMoveFunction declares a Move function under its mangled symbol and
// records it in fn_decls. Entry functions force external linkage and export
// metadata; foreign monomorphizations stay private to this module.
func (mc *ModuleContext) declareMoveFunction(m *model.Module, fn *model.Function, typeArgs []model.Type) error {
	ty, err := mc.moveABI(fn, typeArgs)
	if err != nil {
		return err
	}
	symbol := MangleFunction(m.Name, instantiatedName(fn.Name, typeArgs))
	f := mc.llmod.AddFunction(symbol, ty)
	for i, p := range fn.Params {
		p = model.Substitute(p, typeArgs)
		if ref, ok := p.(*model.Reference); ok {
			if ref.Mut {
				f.AddParamAttr(i, "noalias")
			} else {
				f.AddParamAttr(i, "readonly")
			}
			f.AddParamAttr(i, "nonnull")
		}
	}
	switch {
	case fn.IsEntry:
		f.Linkage = "" // external
	case m != mc.Module && len(typeArgs) > 0:
		f.Linkage = "private"
	case m != mc.Module:
		f.Linkage = ""
	}

	key := instantiationKey(m.Name, fn.Name, typeArgs)
	mc.fnDecls[key] = f
	mc.fnIsEntry[key] = fn.IsEntry

	mc.emitExportMetadata(m.Name, instantiatedName(fn.Name, typeArgs), symbol, len(ty.Params))
	return nil
}

// instantiatedName suffixes a generic function name with its concrete type
// arguments so every monomorphization owns a distinct symbol.
func instantiatedName(name string, typeArgs []model.Type) string {
	for _, a := range typeArgs {
		name += "_" + rttydesc.TypeMangle(a)
	}
	return name
}

// declareNativeFunction declares a native function under its raw name with
// the C calling convention: a leading type-descriptor pointer per type
// argument, generic values by pointer, generic returns through a trailing
// out pointer.
func (mc *ModuleContext) declareNativeFunction(m *model.Module, fn *model.Function, typeArgs []model.Type) error {
	var params []llvm.Type
	for range typeArgs {
		params = append(params, llvm.Ptr)
	}
	genericRet := false
	for _, r := range fn.Returns {
		if hasTypeParams(r) {
			genericRet = true
		}
	}
	for _, p := range fn.Params {
		if hasTypeParams(p) || isByPointerParam(p) {
			params = append(params, llvm.Ptr)
			continue
		}
		lt, err := mc.lowerType(p)
		if err != nil {
			return err
		}
		params = append(params, lt)
	}
	var ret llvm.Type = llvm.Void
	if genericRet {
		params = append(params, llvm.Ptr) // caller-provided out pointer
	} else if len(fn.Returns) == 1 {
		lt, err := mc.lowerType(fn.Returns[0])
		if err != nil {
			return err
		}
		ret = lt
	}
	mc.llmod.AddFunction(nativeSymbol(m.Name, fn.Name), &llvm.FuncType{Ret: ret, Params: params})
	return nil
}

// nativeSymbol maps a Move-declared native onto its runtime symbol.
func nativeSymbol(module, name string) string {
	return fmt.Sprintf("move_native_%s_%s", module, name)
}

// ---- Runtime function signatures -------------------------------------------

// runtimeFunction declares (on first use) and returns one of the runtime
// entry points the translator lowers onto.
func (mc *ModuleContext) runtimeFunction(name string) *llvm.Function {
	vecTy := mc.rtty.VectorTy()
	sigs := map[string]*llvm.FuncType{
		"move_rt_abort":         llvm.Func(llvm.Void, llvm.I64),
		"move_rt_vec_empty":     llvm.Func(vecTy, llvm.Ptr),
		"move_rt_vec_destroy":   llvm.Func(llvm.Void, llvm.Ptr, llvm.Ptr),
		"move_rt_vec_copy":      llvm.Func(llvm.Void, llvm.Ptr, llvm.Ptr, llvm.Ptr),
		"move_rt_vec_cmp_eq":    llvm.Func(llvm.I1, llvm.Ptr, llvm.Ptr, llvm.Ptr),
		"move_rt_str_cmp_eq":    llvm.Func(llvm.I1, llvm.Ptr, llvm.I64, llvm.Ptr, llvm.I64),
		"move_rt_struct_cmp_eq": llvm.Func(llvm.I1, llvm.Ptr, llvm.Ptr, llvm.Ptr),
		"move_rt_move_to":       llvm.Func(llvm.Void, llvm.Ptr, llvm.Ptr, llvm.Ptr, llvm.Ptr),
		"move_rt_move_from":     llvm.Func(llvm.Void, llvm.Ptr, llvm.Ptr, llvm.Ptr, llvm.Ptr),
		"move_rt_borrow_global": llvm.Func(llvm.Void, llvm.Ptr, llvm.Ptr, llvm.Ptr, llvm.Ptr, llvm.I32),
		"move_rt_exists":        llvm.Func(llvm.I32, llvm.Ptr, llvm.Ptr, llvm.Ptr),
		"move_rt_release":       llvm.Func(llvm.Void, llvm.Ptr, llvm.Ptr, llvm.Ptr, llvm.Ptr),
	}
	ty, ok := sigs[name]
	if !ok {
		panic(fmt.Sprintf("stackless: unknown runtime function %s", name))
	}
	return mc.llmod.AddFunction(name, ty)
}

// ---- Export metadata --------------------------------------------------------

// emitExportMetadata attaches the PolkaVM export records to a symbol: a name
// global, a metadata record ({9 x i8} header, name pointer, in/out arity) in
// .polkavm_metadata, and a note in .polkavm_exports referencing both. Each
// symbol is recorded exactly once per build.
func (mc *ModuleContext) emitExportMetadata(module, name, symbol string, numArgs int) {
	if !mc.exports.Add(symbol) {
		return
	}
	nameGlobal := mc.llmod.AddGlobal(&llvm.GlobalVar{
		Name:        fmt.Sprintf("alloc_%s", hashString(name)),
		Elem:        llvm.Array(len(name), llvm.I8),
		Init:        &llvm.ConstString{Data: []byte(name)},
		Linkage:     "private",
		Section:     fmt.Sprintf(".rodata..Lalloc_%s", hashString(name)),
		Align:       1,
		Const:       true,
		UnnamedAddr: true,
	})

	// Header: version=1, flags=0 (4 bytes), name length as little-endian u32.
	header := make([]llvm.Value, 0, 9)
	header = append(header, llvm.ConstIntVal(llvm.I8, 1))
	for i := 0; i < 4; i++ {
		header = append(header, llvm.ConstIntVal(llvm.I8, 0))
	}
	nameLen := uint32(len(name))
	for i := 0; i < 4; i++ {
		header = append(header, llvm.ConstIntVal(llvm.I8, uint64(nameLen>>(8*i))&0xff))
	}
	arity := []llvm.Value{
		llvm.ConstIntVal(llvm.I8, uint64(numArgs)),
		llvm.ConstIntVal(llvm.I8, 1),
	}
	recordTy := llvm.PackedStruct(llvm.Array(9, llvm.I8), llvm.Ptr, llvm.Array(2, llvm.I8))
	metaSymbol := MangleMetadata(module, name)
	mc.llmod.AddGlobal(&llvm.GlobalVar{
		Name: metaSymbol,
		Elem: recordTy,
		Init: &llvm.ConstStruct{
			Ty: recordTy,
			Vals: []llvm.Value{
				&llvm.ConstArray{Elem: llvm.I8, Vals: header},
				nameGlobal,
				&llvm.ConstArray{Elem: llvm.I8, Vals: arity},
			},
		},
		Linkage: "internal",
		Section: ".polkavm_metadata",
		Align:   1,
		Const:   true,
	})
	mc.llmod.AppendModuleAsm(fmt.Sprintf(
		".pushsection .polkavm_exports,\"R\",@note\n.byte 1\n.8byte %s\n.8byte %s\n.popsection\n",
		metaSymbol, symbol))
}

// ---- call_selector ----------------------------------------------------------

// generateCallSelector emits the synthetic dispatcher of a module with entry
// functions: read the 4-byte selector from the call buffer, switch over the
// entry selectors, pass buf+4 as the signer pointer. The default arm aborts.
func (mc *ModuleContext) generateCallSelector() error {
	if mc.exports.Contains("call_selector") {
		log.Debug("call_selector already declared, skipping")
		return nil
	}

	fnTy := llvm.Func(llvm.Void, llvm.Ptr, llvm.I64)
	fn := mc.llmod.AddFunction("call_selector", fnTy)
	fn.AddParamAttr(0, "readonly")
	fn.AddParamAttr(0, "nonnull")
	fn.SetParamName(0, "buf")
	fn.SetParamName(1, "len")

	b := mc.builder
	entry := fn.AppendBlock("entry")
	b.PositionAtEnd(entry)
	rawSel := b.Load(llvm.I32, fn.Param(0), "raw_sel")
	sel64 := b.ZExt(rawSel, llvm.I64, "sel64")

	defaultBB := fn.AppendBlock("default")

	type entryCase struct {
		qname string
		sel   uint32
		fn    *llvm.Function
	}
	var cases []entryCase
	seenSel := make(map[uint32]string)
	for _, qname := range sortedKeys(mc.fnDecls) {
		if !mc.fnIsEntry[qname] {
			continue
		}
		sel := crypto.Selector(qname)
		if prev, dup := seenSel[sel]; dup {
			return fmt.Errorf("%w: %s and %s both map to %08x", ErrSelectorCollision, prev, qname, sel)
		}
		seenSel[sel] = qname
		cases = append(cases, entryCase{qname: qname, sel: sel, fn: mc.fnDecls[qname]})
	}

	switchCases := make([]llvm.SwitchCase, len(cases))
	caseBlocks := make([]*llvm.BasicBlock, len(cases))
	for i, c := range cases {
		caseBlocks[i] = fn.AppendBlock("case_" + c.qname)
		switchCases[i] = llvm.SwitchCase{
			Val:  llvm.ConstIntVal(llvm.I64, uint64(c.sel)),
			Dest: caseBlocks[i],
		}
	}
	b.Switch(sel64, defaultBB, switchCases)

	for i, c := range cases {
		b.PositionAtEnd(caseBlocks[i])
		if len(c.fn.Ty.Params) > 0 {
			signer := b.ByteGEP(fn.Param(0), 4, "signer")
			b.Call(c.fn, signer)
		} else {
			b.Call(c.fn)
		}
		b.RetVoid()
	}

	b.PositionAtEnd(defaultBB)
	abortFn := mc.runtimeFunction("move_rt_abort")
	b.Call(abortFn, llvm.ConstIntVal(llvm.I64, abortCodeBadSelector))
	b.Unreachable()

	mc.exports.Add("call_selector")
	return nil
}

func sortedKeys(m map[string]*llvm.Function) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
