// Copyright 2025 The MoveChain Authors
// This file is part of the go-move library.
//
// The go-move library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-move library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-move library. If not, see <http://www.gnu.org/licenses/>.

// Package crypto implements the digest algorithms exposed to Move programs
// and the two derivations the compiler depends on: struct tags and entry
// selectors.
package crypto

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"hash"

	"github.com/dchest/siphash"
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/ripemd160"
	"golang.org/x/crypto/sha3"

	"github.com/movechain/go-move/common"
)

// DigestLength is the byte length of the 256-bit digests.
const DigestLength = 32

// SelectorLength is the byte length of an entry function selector.
const SelectorLength = 4

// KeccakState wraps sha3.state. In addition to the usual hash methods, it also
// supports Read to get a variable amount of data from the hash state. Read is
// faster than Sum because it doesn't copy the internal state, but also modifies
// the internal state.
type KeccakState interface {
	hash.Hash
	Read([]byte) (int, error)
}

// NewKeccakState creates a new KeccakState.
func NewKeccakState() KeccakState {
	return sha3.NewLegacyKeccak256().(KeccakState)
}

// Keccak256 calculates and returns the Keccak256 hash of the input data.
func Keccak256(data ...[]byte) []byte {
	b := make([]byte, 32)
	d := NewKeccakState()
	for _, b := range data {
		d.Write(b)
	}
	d.Read(b)
	return b
}

// Keccak256Hash calculates and returns the Keccak256 hash of the input data,
// converting it to an internal Hash data structure.
func Keccak256Hash(data ...[]byte) (h common.Hash) {
	d := NewKeccakState()
	for _, b := range data {
		d.Write(b)
	}
	d.Read(h[:])
	return h
}

// Sha2_256 returns the SHA-256 digest of data.
func Sha2_256(data []byte) []byte {
	d := sha256.Sum256(data)
	return d[:]
}

// Sha3_256 returns the SHA3-256 (FIPS 202) digest of data.
func Sha3_256(data []byte) []byte {
	d := sha3.Sum256(data)
	return d[:]
}

// Sha2_512 returns the SHA-512 digest of data.
func Sha2_512(data []byte) []byte {
	d := sha512.Sum512(data)
	return d[:]
}

// Sha3_512 returns the SHA3-512 (FIPS 202) digest of data.
func Sha3_512(data []byte) []byte {
	d := sha3.Sum512(data)
	return d[:]
}

// Ripemd160 returns the RIPEMD-160 digest of data (20 bytes).
func Ripemd160(data []byte) []byte {
	h := ripemd160.New()
	h.Write(data)
	return h.Sum(nil)
}

// Blake2b256 returns the BLAKE2b-256 digest of data.
func Blake2b256(data []byte) []byte {
	d := blake2b.Sum256(data)
	return d[:]
}

// SipHash returns the 8-byte little-endian SipHash-2-4 digest of data under
// the all-zero key. It backs the sip_hash native.
func SipHash(data []byte) []byte {
	sum := siphash.Hash(0, 0, data)
	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, sum)
	return out
}

// tagCache memoizes struct tag digests. Global resource operations recompute
// the tag of the same struct once per bytecode instruction otherwise.
var tagCache, _ = lru.New(1024)

// StructTag returns the SHA-256 digest of the fully qualified struct name
// (as produced by the Move model's full name with address). Global resources
// are keyed by (address, StructTag).
func StructTag(fullName string) common.Hash {
	if cached, ok := tagCache.Get(fullName); ok {
		return cached.(common.Hash)
	}
	tag := common.Hash(sha256.Sum256([]byte(fullName)))
	tagCache.Add(fullName, tag)
	return tag
}

// Selector derives the dispatch selector of an entry function: the first four
// bytes of the Keccak-256 of its fully qualified name, interpreted as a
// little-endian u32.
func Selector(fullName string) uint32 {
	digest := Keccak256([]byte(fullName))
	return binary.LittleEndian.Uint32(digest[:SelectorLength])
}

// SelectorBytes returns the four selector bytes in the order they travel on
// the wire at the front of an entry call buffer. A little-endian load of
// these bytes inside the guest yields the value returned by Selector.
func SelectorBytes(fullName string) [SelectorLength]byte {
	var b [SelectorLength]byte
	copy(b[:], Keccak256([]byte(fullName))[:SelectorLength])
	return b
}
