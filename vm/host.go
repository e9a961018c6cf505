// Copyright 2025 The MoveChain Authors
// This file is part of the go-move library.

package vm

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/movechain/go-move/crypto"
	"github.com/movechain/go-move/movelang/runtime"
)

// Host drives one program execution: it owns the instance, the allocator and
// the resource store, runs the guest and services its environment calls one
// at a time.
//
// Every host mutation is sequentially ordered by the interrupt sequence:
// the guest is suspended while a handler runs and resumes only after the
// handler completed.
type Host struct {
	instance Instance
	alloc    *MemAllocator

	// imports maps the module's import indices onto syscall names. Only
	// names from the allowed import set are callable.
	imports map[uint32]string
}

// NewHost prepares a host around an engine instance. importNames is the
// module's import table in index order; entries outside the allowed set stay
// unmapped and trap when called.
func NewHost(instance Instance, alloc *MemAllocator, importNames []string) *Host {
	allowed := make(map[string]bool, len(runtime.HostImports))
	for _, name := range runtime.HostImports {
		allowed[name] = true
	}
	imports := make(map[uint32]string, len(importNames))
	for i, name := range importNames {
		if allowed[name] {
			imports[uint32(i)] = name
		}
	}
	return &Host{instance: instance, alloc: alloc, imports: imports}
}

// Allocator returns the allocator/store owned by this host.
func (h *Host) Allocator() *MemAllocator { return h.alloc }

// Run resumes the guest until a terminal outcome, servicing environment
// calls in between. Any terminal outcome (including errors) releases all
// outstanding global-resource borrows; the guest is not resumable
// afterwards.
func (h *Host) Run() error {
	defer h.alloc.ReleaseAll()
	for {
		interrupt, err := h.instance.Run()
		if err != nil {
			return err
		}
		switch interrupt.Kind {
		case InterruptFinished:
			log.Info("program finished successfully")
			return nil
		case InterruptEcalli:
			if err := h.handleEcalli(interrupt.Ecalli); err != nil {
				return err
			}
		case InterruptSegfault:
			log.WithField("addr", fmt.Sprintf("%#x", interrupt.SegfaultAddr)).
				Warn("guest segfault")
			return fmt.Errorf("%w: page %#x", ErrSegfault, interrupt.SegfaultAddr)
		case InterruptTrap:
			log.Info("trap occurred, releasing all resources")
			return ErrTrap
		case InterruptNotEnoughGas:
			log.Warn("not enough gas to continue execution")
			return ErrOutOfGas
		default:
			return fmt.Errorf("%w: unexpected interrupt %d", ErrTrap, interrupt.Kind)
		}
	}
}

// handleEcalli maps the import index onto its handler, reads the argument
// registers, performs the operation and writes the return register.
func (h *Host) handleEcalli(index uint32) error {
	name, ok := h.imports[index]
	if !ok {
		return fmt.Errorf("%w: ecall index %d", ErrUnknownSyscall, index)
	}
	log.WithFields(log.Fields{"index": index, "syscall": name}).Debug("ecalli")

	in := h.instance
	switch name {
	case "abort":
		return ClassifyAbort(in.Reg(RegA0))

	case "guest_alloc":
		addr, err := h.alloc.Alloc(uint32(in.Reg(RegA0)), uint32(in.Reg(RegA1)))
		if err != nil {
			return err
		}
		in.SetReg(RegA0, uint64(addr))

	case "debug_print":
		h.debugPrint(uint32(in.Reg(RegA0)), uint32(in.Reg(RegA1)))

	case "hex_dump":
		h.hexDump()

	case "move_to":
		return h.handleMoveTo()
	case "move_from":
		return h.handleMoveFrom()
	case "exists":
		return h.handleExists()
	case "release":
		return h.handleRelease()
	case "bcs_to_bytes":
		return h.handleBcsToBytes()

	case "hash_sha2_256":
		return h.handleHash(crypto.Sha2_256)
	case "hash_sha3_256":
		return h.handleHash(crypto.Sha3_256)
	case "keccak256":
		return h.handleHash(func(b []byte) []byte { return crypto.Keccak256(b) })
	case "sha2_512":
		return h.handleHash(crypto.Sha2_512)
	case "sha3_512":
		return h.handleHash(crypto.Sha3_512)
	case "ripemd160":
		return h.handleHash(crypto.Ripemd160)
	case "blake2b_256":
		return h.handleHash(crypto.Blake2b256)
	case "sip_hash":
		return h.handleHash(crypto.SipHash)

	default:
		return fmt.Errorf("%w: %s", ErrUnknownSyscall, name)
	}
	return nil
}

// handleHash reads the byte vector argument, computes the digest and
// returns a freshly allocated byte vector address.
func (h *Host) handleHash(digest func([]byte) []byte) error {
	bytes, err := readByteVector(h.instance, uint32(h.instance.Reg(RegA0)))
	if err != nil {
		return err
	}
	out := digest(bytes)
	addr, err := writeByteVector(h.instance, h.alloc, out)
	if err != nil {
		return err
	}
	h.instance.SetReg(RegA0, uint64(addr))
	return nil
}

// handleMoveTo serializes the value straight out of guest memory and
// publishes it under the signer's address.
func (h *Host) handleMoveTo() error {
	in := h.instance
	typeAddr := uint32(in.Reg(RegA0))
	signerPtr := uint32(in.Reg(RegA1))
	valuePtr := uint32(in.Reg(RegA2))
	tagPtr := uint32(in.Reg(RegA3))

	addr, err := readAddress(in, signerPtr)
	if err != nil {
		return err
	}
	tag, err := readTag(in, tagPtr)
	if err != nil {
		return err
	}
	bytes, err := Serialize(in, typeAddr, valuePtr)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"addr": addr, "tag": tag.TerminalString(), "len": len(bytes)}).
		Debug("move_to")
	return h.alloc.StoreGlobal(addr, tag, bytes)
}

// handleMoveFrom loads (optionally removing) the resource, decodes it into
// aux memory sized from its descriptor, and returns the guest address.
func (h *Host) handleMoveFrom() error {
	in := h.instance
	typeAddr := uint32(in.Reg(RegA0))
	addrPtr := uint32(in.Reg(RegA1))
	remove := uint32(in.Reg(RegA2)) != 0
	tagPtr := uint32(in.Reg(RegA3))
	isMut := uint32(in.Reg(RegA4)) != 0

	addr, err := readAddress(in, addrPtr)
	if err != nil {
		return err
	}
	tag, err := readTag(in, tagPtr)
	if err != nil {
		return err
	}
	bytes, err := h.alloc.LoadGlobal(addr, tag, remove, isMut)
	if err != nil {
		return err
	}
	valueAddr, err := Deserialize(in, h.alloc, typeAddr, bytes)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"addr": addr, "remove": remove, "is_mut": isMut}).
		Debug("move_from")
	in.SetReg(RegA0, uint64(valueAddr))
	return nil
}

func (h *Host) handleExists() error {
	in := h.instance
	addr, err := readAddress(in, uint32(in.Reg(RegA1)))
	if err != nil {
		return err
	}
	tag, err := readTag(in, uint32(in.Reg(RegA2)))
	if err != nil {
		return err
	}
	result := uint64(0)
	if h.alloc.Exists(addr, tag) {
		result = 1
	}
	in.SetReg(RegA0, result)
	return nil
}

// handleRelease writes a mutably borrowed value back and drops the borrow.
func (h *Host) handleRelease() error {
	in := h.instance
	typeAddr := uint32(in.Reg(RegA0))
	addrPtr := uint32(in.Reg(RegA1))
	valuePtr := uint32(in.Reg(RegA2))
	tagPtr := uint32(in.Reg(RegA3))

	addr, err := readAddress(in, addrPtr)
	if err != nil {
		return err
	}
	tag, err := readTag(in, tagPtr)
	if err != nil {
		return err
	}
	bytes, err := Serialize(in, typeAddr, valuePtr)
	if err != nil {
		return err
	}
	if err := h.alloc.Update(addr, tag, bytes); err != nil {
		return err
	}
	h.alloc.Release(addr, tag)
	return nil
}

// handleBcsToBytes serializes the value and hands back a byte vector.
func (h *Host) handleBcsToBytes() error {
	in := h.instance
	bytes, err := Serialize(in, uint32(in.Reg(RegA0)), uint32(in.Reg(RegA1)))
	if err != nil {
		return err
	}
	addr, err := writeByteVector(in, h.alloc, bytes)
	if err != nil {
		return err
	}
	in.SetReg(RegA0, uint64(addr))
	return nil
}
