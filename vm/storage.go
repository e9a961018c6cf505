// Copyright 2025 The MoveChain Authors
// This file is part of the go-move library.

package vm

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/movechain/go-move/common"
)

// StructTagHash keys a resource type: the SHA-256 of its fully qualified
// struct name.
type StructTagHash = common.Hash

// storageKey addresses one stored resource.
type storageKey struct {
	addr common.Address
	tag  StructTagHash
}

// resourceEntry is one stored resource with its borrow bookkeeping.
// Invariant on every mutation: exclusive implies sharedCount == 0.
type resourceEntry struct {
	data        []byte
	sharedCount uint32
	exclusive   bool
}

func (e *resourceEntry) borrowed() bool {
	return e.exclusive || e.sharedCount > 0
}

// GlobalStorage maps (address, struct tag) to serialized resource values
// with shared/exclusive borrow counts. It lives for one program execution;
// nothing persists across VM invocations.
type GlobalStorage struct {
	entries map[storageKey]*resourceEntry
}

// NewGlobalStorage creates an empty store.
func NewGlobalStorage() *GlobalStorage {
	return &GlobalStorage{entries: make(map[storageKey]*resourceEntry)}
}

// Store publishes a resource under (addr, tag). Fails if the key is already
// present.
func (s *GlobalStorage) Store(addr common.Address, tag StructTagHash, value []byte) error {
	key := storageKey{addr: addr, tag: tag}
	if _, ok := s.entries[key]; ok {
		log.WithFields(log.Fields{"addr": addr, "tag": tag.TerminalString()}).
			Debug("global already exists")
		return fmt.Errorf("%w: global already exists at %s", ErrBorrowViolation, addr)
	}
	s.entries[key] = &resourceEntry{data: common.CopyBytes(value)}
	return nil
}

// Load reads the resource under (addr, tag).
//
// With remove set the entry is deleted and its bytes returned; removal
// requires no live borrows. Otherwise the matching borrow counter is
// incremented: is_mut demands the entry be entirely unborrowed and takes it
// exclusively, a shared load only bumps the shared count. Failures leave the
// counters untouched.
func (s *GlobalStorage) Load(addr common.Address, tag StructTagHash, remove, isMut bool) ([]byte, error) {
	key := storageKey{addr: addr, tag: tag}
	entry, ok := s.entries[key]
	if !ok {
		return nil, fmt.Errorf("%w: global not found at %s", ErrBorrowViolation, addr)
	}
	if remove {
		if entry.borrowed() {
			return nil, fmt.Errorf("%w: cannot remove borrowed global at %s", ErrBorrowViolation, addr)
		}
		delete(s.entries, key)
		return entry.data, nil
	}
	if isMut {
		if entry.borrowed() {
			return nil, fmt.Errorf("%w: global at %s is borrowed", ErrBorrowViolation, addr)
		}
		entry.exclusive = true
	} else {
		if entry.exclusive {
			return nil, fmt.Errorf("%w: global at %s is exclusively borrowed", ErrBorrowViolation, addr)
		}
		entry.sharedCount++
	}
	return common.CopyBytes(entry.data), nil
}

// Exists reports whether (addr, tag) holds a resource. Pure predicate.
func (s *GlobalStorage) Exists(addr common.Address, tag StructTagHash) bool {
	_, ok := s.entries[storageKey{addr: addr, tag: tag}]
	return ok
}

// Update replaces the bytes of a present entry. Used by Release to write a
// mutably borrowed value back.
func (s *GlobalStorage) Update(addr common.Address, tag StructTagHash, value []byte) error {
	entry, ok := s.entries[storageKey{addr: addr, tag: tag}]
	if !ok {
		return fmt.Errorf("%w: global not found at %s", ErrBorrowViolation, addr)
	}
	entry.data = common.CopyBytes(value)
	return nil
}

// Release decrements the matching borrow of (addr, tag): the exclusive flag
// is cleared first, a shared count otherwise. Releasing an unborrowed entry
// is a no-op.
func (s *GlobalStorage) Release(addr common.Address, tag StructTagHash) {
	entry, ok := s.entries[storageKey{addr: addr, tag: tag}]
	if !ok {
		return
	}
	switch {
	case entry.exclusive:
		entry.exclusive = false
	case entry.sharedCount > 0:
		entry.sharedCount--
	}
}

// IsBorrowed reports whether (addr, tag) has any live borrow.
func (s *GlobalStorage) IsBorrowed(addr common.Address, tag StructTagHash) bool {
	entry, ok := s.entries[storageKey{addr: addr, tag: tag}]
	return ok && entry.borrowed()
}

// ReleaseAll drops every entry and zeroes all counters. Invoked on any
// terminal VM outcome.
func (s *GlobalStorage) ReleaseAll() {
	log.Debug("releasing all global storage")
	s.entries = make(map[storageKey]*resourceEntry)
}

// Len returns the number of stored resources.
func (s *GlobalStorage) Len() int { return len(s.entries) }
