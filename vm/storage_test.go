// Copyright 2025 The MoveChain Authors
// This file is part of the go-move library.

package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movechain/go-move/common"
	"github.com/movechain/go-move/crypto"
)

var (
	testAddr = common.HexToAddress("0xab01010101010101010101010101010101010101010101010101010101010101ce")
	testTag  = crypto.StructTag("0x2::storage::Value")
)

func TestStoreLoadRoundTrip(t *testing.T) {
	s := NewGlobalStorage()
	require.NoError(t, s.Store(testAddr, testTag, []byte{1, 2, 3}))

	got, err := s.Load(testAddr, testTag, false, false)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)
}

func TestStoreFailsOnPresentKey(t *testing.T) {
	s := NewGlobalStorage()
	require.NoError(t, s.Store(testAddr, testTag, []byte{1}))
	err := s.Store(testAddr, testTag, []byte{2})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBorrowViolation)
	assert.Contains(t, err.Error(), "already exists")
}

func TestLoadMissingKey(t *testing.T) {
	s := NewGlobalStorage()
	_, err := s.Load(testAddr, testTag, false, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "global not found")
}

func TestSharedBorrowCounting(t *testing.T) {
	s := NewGlobalStorage()
	require.NoError(t, s.Store(testAddr, testTag, []byte{1}))

	_, err := s.Load(testAddr, testTag, false, false)
	require.NoError(t, err)
	_, err = s.Load(testAddr, testTag, false, false)
	require.NoError(t, err)
	assert.True(t, s.IsBorrowed(testAddr, testTag))

	// A mutable borrow is refused while shared borrows are live.
	_, err = s.Load(testAddr, testTag, false, true)
	assert.ErrorIs(t, err, ErrBorrowViolation)

	s.Release(testAddr, testTag)
	assert.True(t, s.IsBorrowed(testAddr, testTag))
	s.Release(testAddr, testTag)
	assert.False(t, s.IsBorrowed(testAddr, testTag))

	// Now the exclusive borrow succeeds.
	_, err = s.Load(testAddr, testTag, false, true)
	require.NoError(t, err)
}

func TestExclusiveExcludesEverything(t *testing.T) {
	s := NewGlobalStorage()
	require.NoError(t, s.Store(testAddr, testTag, []byte{1}))
	_, err := s.Load(testAddr, testTag, false, true)
	require.NoError(t, err)

	_, err = s.Load(testAddr, testTag, false, false)
	assert.ErrorIs(t, err, ErrBorrowViolation)
	_, err = s.Load(testAddr, testTag, false, true)
	assert.ErrorIs(t, err, ErrBorrowViolation)
	_, err = s.Load(testAddr, testTag, true, false)
	assert.ErrorIs(t, err, ErrBorrowViolation)
}

func TestRemoveDeletesEntry(t *testing.T) {
	s := NewGlobalStorage()
	require.NoError(t, s.Store(testAddr, testTag, []byte{9}))
	got, err := s.Load(testAddr, testTag, true, false)
	require.NoError(t, err)
	assert.Equal(t, []byte{9}, got)
	assert.False(t, s.Exists(testAddr, testTag))

	// Removal failure leaves counters consistent: load+remove on a
	// borrowed entry fails without touching the borrow state.
	require.NoError(t, s.Store(testAddr, testTag, []byte{9}))
	_, err = s.Load(testAddr, testTag, false, false)
	require.NoError(t, err)
	_, err = s.Load(testAddr, testTag, true, false)
	assert.ErrorIs(t, err, ErrBorrowViolation)
	assert.True(t, s.Exists(testAddr, testTag))
	assert.True(t, s.IsBorrowed(testAddr, testTag))
}

func TestUpdateAndRelease(t *testing.T) {
	s := NewGlobalStorage()
	require.NoError(t, s.Store(testAddr, testTag, []byte{1}))
	_, err := s.Load(testAddr, testTag, false, true)
	require.NoError(t, err)

	require.NoError(t, s.Update(testAddr, testTag, []byte{7, 7}))
	s.Release(testAddr, testTag)
	assert.False(t, s.IsBorrowed(testAddr, testTag))

	got, err := s.Load(testAddr, testTag, false, false)
	require.NoError(t, err)
	assert.Equal(t, []byte{7, 7}, got)
}

func TestLoadReturnsCopy(t *testing.T) {
	s := NewGlobalStorage()
	require.NoError(t, s.Store(testAddr, testTag, []byte{5}))
	got, err := s.Load(testAddr, testTag, false, false)
	require.NoError(t, err)
	got[0] = 99
	again, err := s.Load(testAddr, testTag, false, false)
	require.NoError(t, err)
	assert.Equal(t, byte(5), again[0])
}

func TestReleaseAll(t *testing.T) {
	s := NewGlobalStorage()
	tag2 := crypto.StructTag("0x2::storage::Other")
	require.NoError(t, s.Store(testAddr, testTag, []byte{1}))
	require.NoError(t, s.Store(testAddr, tag2, []byte{2}))
	_, err := s.Load(testAddr, testTag, false, true)
	require.NoError(t, err)

	s.ReleaseAll()
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Exists(testAddr, testTag))
	assert.False(t, s.IsBorrowed(testAddr, testTag))
}

func TestDistinctTagsAreIndependent(t *testing.T) {
	s := NewGlobalStorage()
	tag2 := crypto.StructTag("0x2::storage::Other")
	require.NoError(t, s.Store(testAddr, testTag, []byte{1}))
	require.NoError(t, s.Store(testAddr, tag2, []byte{2}))
	got, err := s.Load(testAddr, tag2, false, false)
	require.NoError(t, err)
	assert.Equal(t, []byte{2}, got)
}
