// Copyright 2025 The MoveChain Authors
// This file is part of the go-move library.

// Package runtime generates the guest-side native runtime: the IR module
// publishing every move_rt_* / move_native_* symbol compiled programs link
// against. Host-facing operations lower onto environment-call import stubs;
// vector and comparison helpers are implemented in place over the runtime
// type descriptors.
//
// The module is compiled once per build into the native object the link
// pipeline merges (with --gc-sections) behind the program objects.
package runtime

import (
	"fmt"
	"sort"

	"github.com/movechain/go-move/movelang/llvm"
	"github.com/movechain/go-move/movelang/rttydesc"
)

// Reserved abort codes carrying out-of-band signals from the runtime to the
// host. Never reuse these for Move program aborts.
const (
	// PanicCode marks a runtime-crate panic.
	PanicCode uint64 = 0xFFFFFFFFFFFFFFFF
	// AllocCode marks an unexpected allocator invocation.
	AllocCode uint64 = 0xFFFFFFFFFFFFFFFE
)

// HostImports is the complete set of environment calls the runtime issues,
// in ecall-index order. The host resolves them by this table; anything else
// traps.
var HostImports = []string{
	"debug_print",
	"hex_dump",
	"guest_alloc",
	"abort",
	"move_to",
	"move_from",
	"exists",
	"release",
	"bcs_to_bytes",
	"hash_sha2_256",
	"hash_sha3_256",
	"keccak256",
	"sha2_512",
	"sha3_512",
	"ripemd160",
	"blake2b_256",
	"sip_hash",
}

// Generator builds the native runtime module.
type Generator struct {
	m    *llvm.Module
	b    *llvm.Builder
	rtty *rttydesc.Builder
}

// NewGenerator prepares a generator emitting into a fresh module named
// "native" under ctx.
func NewGenerator(ctx *llvm.Context) *Generator {
	m := ctx.NewModule("native")
	g := &Generator{m: m, b: llvm.NewBuilder()}
	g.rtty = rttydesc.NewBuilder(m, nil)
	llvm.DeclareMemcpy(m)
	return g
}

// Module returns the generated IR module.
func (g *Generator) Module() *llvm.Module { return g.m }

// Generate emits the whole runtime symbol set.
func (g *Generator) Generate() error {
	g.declareImports()
	g.emitTypeHelpers()
	g.emitAbort()
	g.emitGlobalOps()
	g.emitHashes()
	g.emitSigner()
	g.emitDebug()
	g.emitVectorOps()
	g.emitStringOps()
	g.emitCompare()
	g.emitBcs()
	g.emitEntryShim()
	return g.m.Verify()
}

// emitEntryShim publishes the two functions the contract host invokes:
// deploy (a no-op for Move programs) and call, which hands the input buffer
// to the program's call_selector dispatcher.
func (g *Generator) emitEntryShim() {
	b := g.b
	deploy := g.m.AddFunction("deploy", llvm.Func(llvm.Void))
	b.PositionAtEnd(deploy.AppendBlock("entry"))
	b.RetVoid()

	selector := g.m.AddFunction("call_selector", llvm.Func(llvm.Void, llvm.Ptr, llvm.I64))
	call := g.m.AddFunction("call", llvm.Func(llvm.Void, llvm.Ptr, llvm.I64))
	call.SetParamName(0, "buf")
	call.SetParamName(1, "len")
	b.PositionAtEnd(call.AppendBlock("entry"))
	b.Call(selector, call.Param(0), call.Param(1))
	b.RetVoid()
}

func (g *Generator) vecTy() *llvm.StructType  { return g.rtty.VectorTy() }
func (g *Generator) typeTy() *llvm.StructType { return g.rtty.MoveTypeTy() }

// declareImports declares every host import as an external symbol and
// records it in the .polkavm_imports note section. The blob packer takes
// its import table from the undefined symbols of the linked object.
func (g *Generator) declareImports() {
	sigs := map[string]*llvm.FuncType{
		"debug_print":   llvm.Func(llvm.Void, llvm.Ptr, llvm.Ptr),
		"hex_dump":      llvm.Func(llvm.Void),
		"guest_alloc":   llvm.Func(llvm.I32, llvm.I32, llvm.I32),
		"abort":         llvm.Func(llvm.Void, llvm.I64),
		"move_to":       llvm.Func(llvm.Void, llvm.Ptr, llvm.Ptr, llvm.Ptr, llvm.Ptr),
		"move_from":     llvm.Func(llvm.I32, llvm.Ptr, llvm.Ptr, llvm.I32, llvm.Ptr, llvm.I32),
		"exists":        llvm.Func(llvm.I32, llvm.Ptr, llvm.Ptr, llvm.Ptr),
		"release":       llvm.Func(llvm.Void, llvm.Ptr, llvm.Ptr, llvm.Ptr, llvm.Ptr),
		"bcs_to_bytes":  llvm.Func(llvm.I32, llvm.Ptr, llvm.Ptr),
		"hash_sha2_256": llvm.Func(llvm.I32, llvm.Ptr),
		"hash_sha3_256": llvm.Func(llvm.I32, llvm.Ptr),
		"keccak256":     llvm.Func(llvm.I32, llvm.Ptr),
		"sha2_512":      llvm.Func(llvm.I32, llvm.Ptr),
		"sha3_512":      llvm.Func(llvm.I32, llvm.Ptr),
		"ripemd160":     llvm.Func(llvm.I32, llvm.Ptr),
		"blake2b_256":   llvm.Func(llvm.I32, llvm.Ptr),
		"sip_hash":      llvm.Func(llvm.I32, llvm.Ptr),
	}
	for _, name := range HostImports {
		g.m.AddFunction(name, sigs[name])
		g.m.AppendModuleAsm(fmt.Sprintf(
			".pushsection .polkavm_imports,\"R\",@note\n.byte 1\n.8byte %s\n.popsection\n", name))
	}
}

func (g *Generator) imported(name string) *llvm.Function {
	return g.m.NamedFunction(name)
}

// ---- Descriptor helpers -----------------------------------------------------

// emitTypeHelpers emits move_type_size and move_type_align, the switches over
// a descriptor's kind both the vector library and the copy helpers use.
func (g *Generator) emitTypeHelpers() {
	for _, helper := range []struct {
		name string
		// per-kind constants; struct case loads from the info record
		// at the given field index instead.
		prims      map[int]uint64
		structInfo int
	}{
		{
			name: "move_type_size",
			prims: map[int]uint64{
				rttydesc.KindBool: 1, rttydesc.KindU8: 1, rttydesc.KindU16: 2,
				rttydesc.KindU32: 4, rttydesc.KindU64: 8, rttydesc.KindU128: 16,
				rttydesc.KindU256: 32, rttydesc.KindAddress: 32, rttydesc.KindSigner: 32,
				rttydesc.KindVector: 24, rttydesc.KindReference: 4,
			},
			structInfo: 2,
		},
		{
			name: "move_type_align",
			prims: map[int]uint64{
				rttydesc.KindBool: 1, rttydesc.KindU8: 1, rttydesc.KindU16: 2,
				rttydesc.KindU32: 4, rttydesc.KindU64: 8, rttydesc.KindU128: 8,
				rttydesc.KindU256: 8, rttydesc.KindAddress: 1, rttydesc.KindSigner: 1,
				rttydesc.KindVector: 8, rttydesc.KindReference: 4,
			},
			structInfo: 3,
		},
	} {
		fn := g.m.AddFunction(helper.name, llvm.Func(llvm.I64, llvm.Ptr))
		fn.Linkage = "internal"
		fn.SetParamName(0, "td")
		b := g.b
		entry := fn.AppendBlock("entry")
		b.PositionAtEnd(entry)
		kindPtr := b.StructGEP(g.typeTy(), fn.Param(0), 1, "kind_ptr")
		kind := b.Load(llvm.I64, kindPtr, "kind")

		structBB := fn.AppendBlock("struct_kind")
		defaultBB := fn.AppendBlock("default")
		var cases []llvm.SwitchCase
		retBlocks := make(map[uint64]*llvm.BasicBlock)
		var retOrder []uint64
		for k := rttydesc.KindBool; k <= rttydesc.KindReference; k++ {
			if k == rttydesc.KindStruct {
				cases = append(cases, llvm.SwitchCase{
					Val: llvm.ConstIntVal(llvm.I64, uint64(k)), Dest: structBB,
				})
				continue
			}
			v := helper.prims[k]
			bb, ok := retBlocks[v]
			if !ok {
				bb = fn.AppendBlock(fmt.Sprintf("ret_%d", v))
				retBlocks[v] = bb
				retOrder = append(retOrder, v)
			}
			cases = append(cases, llvm.SwitchCase{
				Val: llvm.ConstIntVal(llvm.I64, uint64(k)), Dest: bb,
			})
		}
		b.Switch(kind, defaultBB, cases)

		for _, v := range retOrder {
			b.PositionAtEnd(retBlocks[v])
			b.Ret(llvm.ConstIntVal(llvm.I64, v))
		}

		b.PositionAtEnd(structBB)
		infoPtr := b.StructGEP(g.typeTy(), fn.Param(0), 2, "info_ptr")
		info := b.Load(llvm.Ptr, infoPtr, "info")
		structInfoTy := llvm.Struct(llvm.Ptr, llvm.I64, llvm.I64, llvm.I64)
		fieldPtr := b.StructGEP(structInfoTy, info, helper.structInfo, "field_ptr")
		b.Ret(b.Load(llvm.I64, fieldPtr, "val"))

		b.PositionAtEnd(defaultBB)
		b.Call(g.imported("abort"), llvm.ConstIntVal(llvm.I64, PanicCode))
		b.Unreachable()
	}
}

// ---- Abort ------------------------------------------------------------------

// emitAbort publishes move_rt_abort: the divergence path every failed check
// funnels into. The host classifies the full 64-bit code (vm.ClassifyAbort).
func (g *Generator) emitAbort() {
	fn := g.m.AddFunction("move_rt_abort", llvm.Func(llvm.Void, llvm.I64))
	fn.SetParamName(0, "code")
	entry := fn.AppendBlock("entry")
	g.b.PositionAtEnd(entry)
	g.b.Call(g.imported("abort"), fn.Param(0))
	g.b.Unreachable()
}

// ---- Global resource operations ---------------------------------------------

func (g *Generator) emitGlobalOps() {
	b := g.b

	// move_rt_move_to(ty, signer, value, tag): serialization happens host
	// side, straight from guest memory.
	moveTo := g.m.AddFunction("move_rt_move_to", llvm.Func(llvm.Void, llvm.Ptr, llvm.Ptr, llvm.Ptr, llvm.Ptr))
	b.PositionAtEnd(moveTo.AppendBlock("entry"))
	b.Call(g.imported("move_to"), moveTo.Param(0), moveTo.Param(1), moveTo.Param(2), moveTo.Param(3))
	b.RetVoid()

	// move_rt_move_from(ty, addr, out, tag): the host removes the entry,
	// decodes it into aux memory sized from the descriptor, and returns
	// the guest address; the value is copied out into the destination
	// slot.
	moveFrom := g.m.AddFunction("move_rt_move_from", llvm.Func(llvm.Void, llvm.Ptr, llvm.Ptr, llvm.Ptr, llvm.Ptr))
	b.PositionAtEnd(moveFrom.AppendBlock("entry"))
	addr := b.Call(g.imported("move_from"),
		moveFrom.Param(0), moveFrom.Param(1),
		llvm.ConstIntVal(llvm.I32, 1), moveFrom.Param(3), llvm.ConstIntVal(llvm.I32, 0))
	src := b.IntToPtr(addr, "src")
	size := b.Call(g.m.NamedFunction("move_type_size"), moveFrom.Param(0))
	size32 := b.Trunc(size, llvm.I32, "size32")
	b.MemcpyVal(moveFrom.Param(2), src, size32)
	b.RetVoid()

	// move_rt_borrow_global(ty, addr, out, tag, is_mut): same host path
	// without removal; the guest keeps the decoded value in place and
	// stores its address through out.
	borrow := g.m.AddFunction("move_rt_borrow_global", llvm.Func(llvm.Void, llvm.Ptr, llvm.Ptr, llvm.Ptr, llvm.Ptr, llvm.I32))
	b.PositionAtEnd(borrow.AppendBlock("entry"))
	baddr := b.Call(g.imported("move_from"),
		borrow.Param(0), borrow.Param(1),
		llvm.ConstIntVal(llvm.I32, 0), borrow.Param(3), borrow.Param(4))
	bptr := b.IntToPtr(baddr, "borrowed")
	b.Store(bptr, borrow.Param(2))
	b.RetVoid()

	// move_rt_exists(ty, addr, tag).
	exists := g.m.AddFunction("move_rt_exists", llvm.Func(llvm.I32, llvm.Ptr, llvm.Ptr, llvm.Ptr))
	b.PositionAtEnd(exists.AppendBlock("entry"))
	res := b.Call(g.imported("exists"), exists.Param(0), exists.Param(1), exists.Param(2))
	b.Ret(res)

	// move_rt_release(ty, addr, value, tag): write back and drop the
	// borrow.
	release := g.m.AddFunction("move_rt_release", llvm.Func(llvm.Void, llvm.Ptr, llvm.Ptr, llvm.Ptr, llvm.Ptr))
	b.PositionAtEnd(release.AppendBlock("entry"))
	b.Call(g.imported("release"), release.Param(0), release.Param(1), release.Param(2), release.Param(3))
	b.RetVoid()
}

// ---- Hashes -----------------------------------------------------------------

// hashExports maps the published native symbols onto their host imports. The
// sha2/sha3 pair comes from std::hash; the remaining algorithms surface
// through the aptos_hash extension module.
var hashExports = map[string]string{
	"move_native_hash_sha2_256":         "hash_sha2_256",
	"move_native_hash_sha3_256":         "hash_sha3_256",
	"move_native_aptos_hash_keccak256":  "keccak256",
	"move_native_aptos_hash_sha2_512":   "sha2_512",
	"move_native_aptos_hash_sha3_512":   "sha3_512",
	"move_native_aptos_hash_ripemd160":  "ripemd160",
	"move_native_aptos_hash_blake2b_256": "blake2b_256",
	"move_native_aptos_hash_sip_hash":    "sip_hash",
}

// emitHashes publishes the digest natives. The host computes the digest,
// places a fresh byte vector in aux memory and hands back its address; the
// wrapper returns the vector by value.
func (g *Generator) emitHashes() {
	b := g.b
	exports := make([]string, 0, len(hashExports))
	for export := range hashExports {
		exports = append(exports, export)
	}
	sort.Strings(exports)
	for _, export := range exports {
		imp := hashExports[export]
		fn := g.m.AddFunction(export, llvm.Func(g.vecTy(), llvm.Ptr))
		fn.SetParamName(0, "bytes")
		b.PositionAtEnd(fn.AppendBlock("entry"))
		addr := b.Call(g.imported(imp), fn.Param(0))
		vecPtr := b.IntToPtr(addr, "digest_vec")
		b.Ret(b.Load(g.vecTy(), vecPtr, "digest"))
	}
}

// ---- Signer / debug ---------------------------------------------------------

func (g *Generator) emitSigner() {
	// The signer is a newtype over the address; borrowing the address is
	// the identity on the pointer.
	fn := g.m.AddFunction("move_native_signer_borrow_address", llvm.Func(llvm.Ptr, llvm.Ptr))
	fn.SetParamName(0, "s")
	g.b.PositionAtEnd(fn.AppendBlock("entry"))
	g.b.Ret(fn.Param(0))
}

func (g *Generator) emitDebug() {
	b := g.b
	print := g.m.AddFunction("move_native_debug_print", llvm.Func(llvm.Void, llvm.Ptr, llvm.Ptr))
	b.PositionAtEnd(print.AppendBlock("entry"))
	b.Call(g.imported("debug_print"), print.Param(0), print.Param(1))
	b.RetVoid()

	dump := g.m.AddFunction("move_native_debug_hex_dump", llvm.Func(llvm.Void))
	b.PositionAtEnd(dump.AppendBlock("entry"))
	b.Call(g.imported("hex_dump"))
	b.RetVoid()
}

// ---- BCS --------------------------------------------------------------------

// emitBcs publishes move_native_bcs_to_bytes, delegating canonical
// serialization to the host, which reads the value through its descriptor.
func (g *Generator) emitBcs() {
	b := g.b
	fn := g.m.AddFunction("move_native_bcs_to_bytes", llvm.Func(g.vecTy(), llvm.Ptr, llvm.Ptr))
	b.PositionAtEnd(fn.AppendBlock("entry"))
	addr := b.Call(g.imported("bcs_to_bytes"), fn.Param(0), fn.Param(1))
	vecPtr := b.IntToPtr(addr, "bytes_vec")
	b.Ret(b.Load(g.vecTy(), vecPtr, "bytes"))
}
