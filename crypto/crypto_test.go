// Copyright 2025 The MoveChain Authors
// This file is part of the go-move library.

package crypto

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movechain/go-move/common"
)

func TestDigestLengths(t *testing.T) {
	msg := []byte("move")
	tests := []struct {
		name   string
		digest func([]byte) []byte
		length int
	}{
		{"sha2_256", Sha2_256, 32},
		{"sha3_256", Sha3_256, 32},
		{"sha2_512", Sha2_512, 64},
		{"sha3_512", Sha3_512, 64},
		{"ripemd160", Ripemd160, 20},
		{"blake2b_256", Blake2b256, 32},
		{"sip_hash", SipHash, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, tt.digest(msg), tt.length)
		})
	}
}

func TestSha2KnownVector(t *testing.T) {
	// FIPS 180-2 test vector.
	digest := Sha2_256([]byte("abc"))
	assert.Equal(t,
		common.FromHex("ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"),
		digest)
}

func TestKeccakKnownVector(t *testing.T) {
	digest := Keccak256([]byte(""))
	assert.Equal(t,
		common.FromHex("c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"),
		digest)
}

func TestStructTagIsSha256OfFullName(t *testing.T) {
	name := "0x2::storage::Value"
	tag := StructTag(name)
	assert.Equal(t, common.Hash(sha256Of(name)), tag)
	// Memoized path returns the identical digest.
	assert.Equal(t, tag, StructTag(name))
}

func sha256Of(s string) [32]byte {
	var out [32]byte
	copy(out[:], Sha2_256([]byte(s)))
	return out
}

func TestSelectorMatchesWireBytes(t *testing.T) {
	name := "storage::call"
	sel := Selector(name)
	wire := SelectorBytes(name)
	// A little-endian load of the wire bytes yields the selector value.
	assert.Equal(t, sel, binary.LittleEndian.Uint32(wire[:]))
	// And the wire bytes are exactly the leading Keccak digest bytes.
	assert.Equal(t, Keccak256([]byte(name))[:4], wire[:])
}

func TestSelectorDistinctAcrossNames(t *testing.T) {
	seen := make(map[uint32]string)
	for _, name := range []string{"m::store", "m::load", "m::borrow", "m::call", "m::main"} {
		sel := Selector(name)
		prev, dup := seen[sel]
		require.False(t, dup, "selector collision between %s and %s", name, prev)
		seen[sel] = name
	}
}
