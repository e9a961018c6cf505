// Copyright 2025 The MoveChain Authors
// This file is part of the go-move library.

package vm

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movechain/go-move/common"
	"github.com/movechain/go-move/crypto"
	"github.com/movechain/go-move/movelang/runtime"
)

func ecalliIndex(t *testing.T, name string) uint32 {
	t.Helper()
	for i, imp := range runtime.HostImports {
		if imp == name {
			return uint32(i)
		}
	}
	t.Fatalf("unknown import %s", name)
	return 0
}

// TestSerializeRoundTripPrimitives checks deserialize(serialize(v)) == v for
// every primitive kind, straight through guest memory.
func TestSerializeRoundTripPrimitives(t *testing.T) {
	tests := []struct {
		kind  uint64
		value []byte
	}{
		{KindBool, []byte{1}},
		{KindU8, []byte{0xAB}},
		{KindU16, []byte{0x34, 0x12}},
		{KindU32, []byte{1, 2, 3, 4}},
		{KindU64, []byte{1, 2, 3, 4, 5, 6, 7, 8}},
		{KindU128, bytesOfLen(16)},
		{KindU256, bytesOfLen(32)},
		{KindAddress, testAddr[:]},
		{KindSigner, testAddr[:]},
	}
	for _, tt := range tests {
		in := newFakeInstance()
		g := newGuestLayout(in)
		ty := g.primDesc(tt.kind)
		val := g.write(tt.value)
		h := testHost(in, runtime.HostImports)

		enc, err := Serialize(in, ty, val)
		require.NoError(t, err, "kind %d", tt.kind)
		assert.Equal(t, tt.value, enc, "kind %d serializes to its wire bytes", tt.kind)

		addr, err := Deserialize(in, h.Allocator(), ty, enc)
		require.NoError(t, err)
		back := make([]byte, len(tt.value))
		require.NoError(t, in.ReadMemory(addr, back))
		assert.Equal(t, tt.value, back, "kind %d round trips", tt.kind)
	}
}

func TestSerializeVectorLengthPrefixed(t *testing.T) {
	in := newFakeInstance()
	g := newGuestLayout(in)
	u8 := g.primDesc(KindU8)
	vec := g.vecDesc(u8)
	val := g.byteVector([]byte("abc"))

	enc, err := Serialize(in, vec, val)
	require.NoError(t, err)
	assert.Equal(t, append([]byte{3, 0, 0, 0}, []byte("abc")...), enc)

	h := testHost(in, runtime.HostImports)
	addr, err := Deserialize(in, h.Allocator(), vec, enc)
	require.NoError(t, err)
	back, err := readByteVector(in, addr)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), back)
}

func TestSerializeStructFieldConcat(t *testing.T) {
	in := newFakeInstance()
	g := newGuestLayout(in)
	u64 := g.primDesc(KindU64)
	u8 := g.primDesc(KindU8)
	// struct { v: u64 @0, b: u8 @8 }, size 16 align 8.
	st := g.structDesc(16, 8, []structField{{u64, 0}, {u8, 8}})

	raw := make([]byte, 16)
	binary.LittleEndian.PutUint64(raw, 777)
	raw[8] = 0x5A
	val := g.write(raw)

	enc, err := Serialize(in, st, val)
	require.NoError(t, err)
	require.Len(t, enc, 9, "padding bytes are not serialized")
	assert.Equal(t, uint64(777), binary.LittleEndian.Uint64(enc[:8]))
	assert.Equal(t, byte(0x5A), enc[8])

	h := testHost(in, runtime.HostImports)
	addr, err := Deserialize(in, h.Allocator(), st, enc)
	require.NoError(t, err)
	back := make([]byte, 9)
	require.NoError(t, in.ReadMemory(addr, back[:8]))
	require.NoError(t, in.ReadMemory(addr+8, back[8:]))
	assert.Equal(t, uint64(777), binary.LittleEndian.Uint64(back[:8]))
	assert.Equal(t, byte(0x5A), back[8])
}

// TestGlobalResourceLifecycle drives the storage scenario end to end through
// the handlers: store succeeds, load reads the same bytes back, a second
// store fails, loading a missing resource fails.
func TestGlobalResourceLifecycle(t *testing.T) {
	in := newFakeInstance()
	g := newGuestLayout(in)
	u64 := g.primDesc(KindU64)
	st := g.structDesc(8, 8, []structField{{u64, 0}})

	signerAddr := g.write(testAddr[:])
	tagAddr := g.write(testTag[:])
	raw := make([]byte, 8)
	binary.LittleEndian.PutUint64(raw, 42)
	valAddr := g.write(raw)

	h := testHost(in, runtime.HostImports)

	// store(signer)
	in.SetReg(RegA0, uint64(st))
	in.SetReg(RegA1, uint64(signerAddr))
	in.SetReg(RegA2, uint64(valAddr))
	in.SetReg(RegA3, uint64(tagAddr))
	require.NoError(t, h.handleMoveTo())
	assert.True(t, h.Allocator().Exists(testAddr, testTag))

	// store(signer) again → borrow violation
	err := h.handleMoveTo()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBorrowViolation)

	// exists → 1
	in.SetReg(RegA1, uint64(signerAddr))
	in.SetReg(RegA2, uint64(tagAddr))
	require.NoError(t, h.handleExists())
	assert.Equal(t, uint64(1), in.Reg(RegA0))

	// load(signer) with remove: bytes round trip through aux memory.
	in.SetReg(RegA0, uint64(st))
	in.SetReg(RegA1, uint64(signerAddr))
	in.SetReg(RegA2, 1) // remove
	in.SetReg(RegA3, uint64(tagAddr))
	in.SetReg(RegA4, 0)
	require.NoError(t, h.handleMoveFrom())
	out := make([]byte, 8)
	require.NoError(t, in.ReadMemory(uint32(in.Reg(RegA0)), out))
	assert.Equal(t, uint64(42), binary.LittleEndian.Uint64(out))

	// load_non_existent → error
	in.SetReg(RegA0, uint64(st))
	in.SetReg(RegA1, uint64(signerAddr))
	in.SetReg(RegA2, 1)
	in.SetReg(RegA3, uint64(tagAddr))
	in.SetReg(RegA4, 0)
	err = h.handleMoveFrom()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "global not found")
}

func TestBorrowGlobalAndRelease(t *testing.T) {
	in := newFakeInstance()
	g := newGuestLayout(in)
	u64 := g.primDesc(KindU64)
	st := g.structDesc(8, 8, []structField{{u64, 0}})
	signerAddr := g.write(testAddr[:])
	tagAddr := g.write(testTag[:])
	raw := make([]byte, 8)
	binary.LittleEndian.PutUint64(raw, 1)
	valAddr := g.write(raw)

	h := testHost(in, runtime.HostImports)
	in.SetReg(RegA0, uint64(st))
	in.SetReg(RegA1, uint64(signerAddr))
	in.SetReg(RegA2, uint64(valAddr))
	in.SetReg(RegA3, uint64(tagAddr))
	require.NoError(t, h.handleMoveTo())

	// Mutable borrow.
	in.SetReg(RegA2, 0) // no remove
	in.SetReg(RegA4, 1) // is_mut
	require.NoError(t, h.handleMoveFrom())
	assert.True(t, h.Allocator().IsBorrowed(testAddr, testTag))
	borrowed := uint32(in.Reg(RegA0))

	// Mutate the borrowed copy in aux memory and release it back.
	updated := make([]byte, 8)
	binary.LittleEndian.PutUint64(updated, 99)
	require.NoError(t, in.WriteMemory(borrowed, updated))
	in.SetReg(RegA0, uint64(st))
	in.SetReg(RegA1, uint64(signerAddr))
	in.SetReg(RegA2, uint64(borrowed))
	in.SetReg(RegA3, uint64(tagAddr))
	require.NoError(t, h.handleRelease())
	assert.False(t, h.Allocator().IsBorrowed(testAddr, testTag))

	bytes, err := h.Allocator().LoadGlobal(testAddr, testTag, false, false)
	require.NoError(t, err)
	assert.Equal(t, uint64(99), binary.LittleEndian.Uint64(bytes))
}

// TestHashHandler checks the digest path: a fixed byte vector hashes to its
// known SHA-256 digest, placed in a fresh guest byte vector.
func TestHashHandler(t *testing.T) {
	in := newFakeInstance()
	g := newGuestLayout(in)
	vec := g.byteVector([]byte("abc"))
	h := testHost(in, runtime.HostImports)

	in.SetReg(RegA0, uint64(vec))
	require.NoError(t, h.handleHash(crypto.Sha2_256))
	digest, err := readByteVector(in, uint32(in.Reg(RegA0)))
	require.NoError(t, err)
	assert.Equal(t,
		common.FromHex("ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"),
		digest)
}

// TestRunAbortReleasesBorrows drives the cancellation path: a guest abort
// surfaces as a typed error and every outstanding borrow is dropped.
func TestRunAbortReleasesBorrows(t *testing.T) {
	in := newFakeInstance()
	h := testHost(in, runtime.HostImports)
	require.NoError(t, h.Allocator().StoreGlobal(testAddr, testTag, []byte{1}))
	_, err := h.Allocator().LoadGlobal(testAddr, testTag, false, true)
	require.NoError(t, err)

	in.regs[RegA0] = 7
	in.interrupts = []Interrupt{{Kind: InterruptEcalli, Ecalli: ecalliIndex(t, "abort")}}

	err = h.Run()
	require.Error(t, err)
	var abort *AbortError
	require.ErrorAs(t, err, &abort)
	assert.Equal(t, uint64(7), abort.Code)
	assert.Equal(t, 0, h.Allocator().Storage().Len())
}

func TestRunTerminalInterrupts(t *testing.T) {
	tests := []struct {
		kind InterruptKind
		want error
	}{
		{InterruptTrap, ErrTrap},
		{InterruptSegfault, ErrSegfault},
		{InterruptNotEnoughGas, ErrOutOfGas},
	}
	for _, tt := range tests {
		in := newFakeInstance()
		h := testHost(in, runtime.HostImports)
		require.NoError(t, h.Allocator().StoreGlobal(testAddr, testTag, []byte{1}))
		in.interrupts = []Interrupt{{Kind: tt.kind}}
		err := h.Run()
		assert.ErrorIs(t, err, tt.want)
		assert.Equal(t, 0, h.Allocator().Storage().Len(), "borrows released on %v", tt.want)
	}
}

func TestRunUnknownSyscallTraps(t *testing.T) {
	in := newFakeInstance()
	h := testHost(in, []string{"debug_print"})
	in.interrupts = []Interrupt{{Kind: InterruptEcalli, Ecalli: 99}}
	err := h.Run()
	assert.ErrorIs(t, err, ErrUnknownSyscall)
}

func TestReservedAbortCodes(t *testing.T) {
	assert.ErrorIs(t, ClassifyAbort(PanicCode), ErrNativeLibPanic)
	assert.ErrorIs(t, ClassifyAbort(AllocCode), ErrNativeLibAllocatorCall)
	var abort *AbortError
	assert.ErrorAs(t, ClassifyAbort(4004), &abort)
}

func TestGuestAllocHandler(t *testing.T) {
	in := newFakeInstance()
	h := testHost(in, runtime.HostImports)
	in.SetReg(RegA0, 24)
	in.SetReg(RegA1, 8)
	in.interrupts = []Interrupt{{Kind: InterruptEcalli, Ecalli: ecalliIndex(t, "guest_alloc")}}
	require.NoError(t, h.Run())
	addr := uint32(in.Reg(RegA0))
	assert.Equal(t, h.Allocator().Base(), addr)
	assert.Zero(t, addr%8)
}

func bytesOfLen(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i + 1)
	}
	return out
}
