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

// Package common contains the shared value types of the Move compiler and
// the host runtime: account addresses, 32-byte hashes and hex helpers.
package common

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// Lengths of hashes and addresses in bytes.
const (
	// HashLength is the expected length of a hash.
	HashLength = 32
	// AddressLength is the expected length of a Move account address.
	AddressLength = 32
)

// Hash represents a 32 byte digest (Keccak-256, SHA-256, ...) of arbitrary data.
type Hash [HashLength]byte

// BytesToHash sets b to hash.
// If b is larger than len(h), b will be cropped from the left.
func BytesToHash(b []byte) Hash {
	var h Hash
	h.SetBytes(b)
	return h
}

// HexToHash sets byte representation of s to hash.
// If b is larger than len(h), b will be cropped from the left.
func HexToHash(s string) Hash { return BytesToHash(FromHex(s)) }

// Bytes gets the byte representation of the underlying hash.
func (h Hash) Bytes() []byte { return h[:] }

// Hex converts a hash to a hex string.
func (h Hash) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

// TerminalString formats the hash for console output during logging.
func (h Hash) TerminalString() string {
	return fmt.Sprintf("%x..%x", h[:3], h[29:])
}

// String implements the stringer interface and is used also by the logger when
// doing full logging into a file.
func (h Hash) String() string {
	return h.Hex()
}

// SetBytes sets the hash to the value of b.
// If b is larger than len(h), b will be cropped from the left.
func (h *Hash) SetBytes(b []byte) {
	if len(b) > len(h) {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
}

// Address represents a 32 byte Move account address.
//
// Bytes are stored in little-endian order: a short numerical Move address is
// padded with zero bytes at the high end of the array.
type Address [AddressLength]byte

// BytesToAddress returns Address with value b.
// If b is larger than len(a), b will be cropped from the left.
func BytesToAddress(b []byte) Address {
	var a Address
	a.SetBytes(b)
	return a
}

// BigToAddress converts the numerical Move address b into its little-endian
// 32-byte representation.
func BigToAddress(b *big.Int) Address {
	var a Address
	be := b.Bytes() // big-endian, minimal
	for i, j := 0, len(be)-1; j >= 0 && i < AddressLength; i, j = i+1, j-1 {
		a[i] = be[j]
	}
	return a
}

// HexToAddress parses a hexadecimal Move address, with or without the 0x
// prefix, into its little-endian representation.
func HexToAddress(s string) Address {
	n, ok := new(big.Int).SetString(strings.TrimPrefix(s, "0x"), 16)
	if !ok {
		return Address{}
	}
	return BigToAddress(n)
}

// Bytes gets the raw little-endian bytes of the underlying address.
func (a Address) Bytes() []byte { return a[:] }

// Equal reports whether two addresses carry the same bytes.
func (a Address) Equal(other Address) bool { return bytes.Equal(a[:], other[:]) }

// Big returns the numerical value of the address.
func (a Address) Big() *big.Int {
	be := make([]byte, AddressLength)
	for i := range a {
		be[AddressLength-1-i] = a[i]
	}
	return new(big.Int).SetBytes(be)
}

// Hex returns the canonical @-prefixed hexadecimal form, most significant
// byte first, as the Move tooling prints addresses.
func (a Address) Hex() string {
	var sb strings.Builder
	sb.WriteString("@")
	for i := AddressLength - 1; i >= 0; i-- {
		fmt.Fprintf(&sb, "%02X", a[i])
	}
	return sb.String()
}

// String implements fmt.Stringer.
func (a Address) String() string { return a.Hex() }

// SetBytes sets the address to the value of b.
// If b is larger than len(a), b will be cropped from the left.
func (a *Address) SetBytes(b []byte) {
	if len(b) > len(a) {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
}

// FromHex returns the bytes represented by the hexadecimal string s.
// s may be prefixed with "0x".
func FromHex(s string) []byte {
	if has0xPrefix(s) {
		s = s[2:]
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	return Hex2Bytes(s)
}

// has0xPrefix validates str begins with '0x' or '0X'.
func has0xPrefix(str string) bool {
	return len(str) >= 2 && str[0] == '0' && (str[1] == 'x' || str[1] == 'X')
}

// Hex2Bytes returns the bytes represented by the hexadecimal string str.
func Hex2Bytes(str string) []byte {
	h, _ := hex.DecodeString(str)
	return h
}

// Bytes2Hex returns the hexadecimal encoding of d.
func Bytes2Hex(d []byte) string {
	return hex.EncodeToString(d)
}

// CopyBytes returns an exact copy of the provided bytes.
func CopyBytes(b []byte) (copiedBytes []byte) {
	if b == nil {
		return nil
	}
	copiedBytes = make([]byte, len(b))
	copy(copiedBytes, b)
	return
}
