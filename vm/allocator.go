// Copyright 2025 The MoveChain Authors
// This file is part of the go-move library.

package vm

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/movechain/go-move/common"
)

// Default aux-data placement used before a module memory map is known.
const (
	defaultAuxBase uint32 = 0xfffe0000
	defaultAuxSize uint32 = 4096
)

// MemoryMap describes where a loaded module's auxiliary data region sits in
// guest address space. The engine supplies it after module load.
type MemoryMap struct {
	AuxDataAddress uint32
	AuxDataSize    uint32
}

// MemAllocator backs guest allocations inside the module's auxiliary data
// region and owns the global resource store of the running program. The
// bump pointer only advances; ReleaseAll is the only reset.
type MemAllocator struct {
	base    uint32
	size    uint32
	offset  uint32
	storage *GlobalStorage
}

// NewMemAllocator creates an allocator over the default aux-data placement.
func NewMemAllocator() *MemAllocator {
	return &MemAllocator{
		base:    defaultAuxBase,
		size:    defaultAuxSize,
		storage: NewGlobalStorage(),
	}
}

// InitMemAllocator creates an allocator over the module's aux-data region.
// Must be called after module load and before any guest memory operation.
func InitMemAllocator(mm MemoryMap) *MemAllocator {
	return &MemAllocator{
		base:    mm.AuxDataAddress,
		size:    mm.AuxDataSize,
		storage: NewGlobalStorage(),
	}
}

// Base returns the first guest address of the managed region.
func (a *MemAllocator) Base() uint32 { return a.base }

// Offset returns the current bump position relative to the base.
func (a *MemAllocator) Offset() uint32 { return a.offset }

// Storage returns the resource store of the running program.
func (a *MemAllocator) Storage() *GlobalStorage { return a.storage }

// Alloc reserves size bytes with the requested alignment and returns the
// guest virtual address. Fails with an explicit out-of-range error when the
// request would exceed the reserved region.
func (a *MemAllocator) Alloc(size, align uint32) (uint32, error) {
	if align == 0 {
		align = 1
	}
	if align&(align-1) != 0 {
		return 0, fmt.Errorf("%w: alignment %d is not a power of two", ErrMemoryAccess, align)
	}
	alignMask := align - 1
	aligned := (a.offset + alignMask) &^ alignMask
	if aligned < a.offset { // wrapped
		return 0, fmt.Errorf("%w: aux data offset overflow", ErrMemoryAccess)
	}
	end := uint64(aligned) + uint64(size)
	if end > uint64(a.size) {
		return 0, fmt.Errorf("%w: aux data region exhausted (%d of %d bytes used, want %d)",
			ErrMemoryAccess, a.offset, a.size, size)
	}
	addr := a.base + aligned
	a.offset = uint32(end)
	log.WithFields(log.Fields{"size": size, "addr": fmt.Sprintf("%#x", addr)}).
		Trace("guest allocation")
	return addr, nil
}

// StoreGlobal publishes a resource value.
func (a *MemAllocator) StoreGlobal(addr common.Address, tag StructTagHash, value []byte) error {
	return a.storage.Store(addr, tag, value)
}

// LoadGlobal loads (and with remove set, deletes) a resource value.
func (a *MemAllocator) LoadGlobal(addr common.Address, tag StructTagHash, remove, isMut bool) ([]byte, error) {
	return a.storage.Load(addr, tag, remove, isMut)
}

// Exists reports whether a resource is present.
func (a *MemAllocator) Exists(addr common.Address, tag StructTagHash) bool {
	return a.storage.Exists(addr, tag)
}

// Update writes a mutably borrowed value back.
func (a *MemAllocator) Update(addr common.Address, tag StructTagHash, value []byte) error {
	return a.storage.Update(addr, tag, value)
}

// Release drops one borrow of a resource.
func (a *MemAllocator) Release(addr common.Address, tag StructTagHash) {
	a.storage.Release(addr, tag)
}

// IsBorrowed reports whether a resource has live borrows.
func (a *MemAllocator) IsBorrowed(addr common.Address, tag StructTagHash) bool {
	return a.storage.IsBorrowed(addr, tag)
}

// ReleaseAll drops every resource and its borrows. The bump pointer is left
// in place: aux memory has no per-allocation free and the instance is not
// resumable after a terminal outcome.
func (a *MemAllocator) ReleaseAll() {
	a.storage.ReleaseAll()
}
