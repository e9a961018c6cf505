// Copyright 2025 The MoveChain Authors
// This file is part of the go-move library.

package common

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddressLittleEndian(t *testing.T) {
	// The numerical address 0x2 occupies the low byte; the high end is
	// zero padded.
	a := BigToAddress(big.NewInt(2))
	assert.Equal(t, byte(2), a[0])
	for i := 1; i < AddressLength; i++ {
		assert.Equal(t, byte(0), a[i], "byte %d", i)
	}
	assert.Equal(t, int64(2), a.Big().Int64())
}

func TestAddressHexRoundTrip(t *testing.T) {
	tests := []string{
		"0x1",
		"0x2",
		"0xcafe",
		"0xab01010101010101010101010101010101010101010101010101010101010101ce",
	}
	for _, tt := range tests {
		a := HexToAddress(tt)
		n, _ := new(big.Int).SetString(strings.TrimPrefix(tt, "0x"), 16)
		assert.Equal(t, 0, a.Big().Cmp(n), "address %s", tt)
	}
}

func TestAddressHexFormat(t *testing.T) {
	a := HexToAddress("0x2")
	hex := a.Hex()
	assert.True(t, strings.HasPrefix(hex, "@"))
	assert.Len(t, hex, 1+2*AddressLength)
	assert.True(t, strings.HasSuffix(hex, "02"))
}

func TestHashSetBytesCrop(t *testing.T) {
	long := make([]byte, 40)
	for i := range long {
		long[i] = byte(i)
	}
	h := BytesToHash(long)
	// Cropped from the left: the last 32 bytes survive.
	assert.Equal(t, long[8:], h.Bytes())
}

func TestCopyBytes(t *testing.T) {
	src := []byte{1, 2, 3}
	dst := CopyBytes(src)
	assert.Equal(t, src, dst)
	dst[0] = 9
	assert.Equal(t, byte(1), src[0])
	assert.Nil(t, CopyBytes(nil))
}
