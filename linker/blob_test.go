// Copyright 2025 The MoveChain Authors
// This file is part of the go-move library.

package linker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movechain/go-move/movelang/runtime"
	"github.com/movechain/go-move/movelang/stackless"
)

func sampleBlob() *ProgramBlob {
	return &ProgramBlob{
		ROData:      []byte{1, 2, 3},
		RWData:      []byte{4},
		Code:        []byte{0x13, 0x00, 0x00, 0x00}, // one nop word
		Imports:     []string{"abort", "guest_alloc", "move_to"},
		AuxDataSize: 1 << 16,
		Exports: []Export{
			{Symbol: stackless.MangleFunction("storage", "store"), Name: "store", Inputs: 1, Outputs: 1},
			{Symbol: "call_selector", Name: "call_selector", Inputs: 2, Outputs: 1},
		},
	}
}

func TestBlobEncodeParseRoundTrip(t *testing.T) {
	blob := sampleBlob()
	data := blob.Encode()
	assert.Equal(t, []byte{'P', 'V', 'M', 0}, data[:4])
	assert.Equal(t, byte(blobVersion), data[4])

	parsed, err := ParseBlob(data)
	require.NoError(t, err)
	assert.Equal(t, blob.ROData, parsed.ROData)
	assert.Equal(t, blob.RWData, parsed.RWData)
	assert.Equal(t, blob.Code, parsed.Code)
	assert.Equal(t, blob.Imports, parsed.Imports)
	assert.Equal(t, blob.Exports, parsed.Exports)
	assert.Equal(t, blob.AuxDataSize, parsed.AuxDataSize)
}

func TestBlobEncodeDeterministic(t *testing.T) {
	assert.Equal(t, sampleBlob().Encode(), sampleBlob().Encode())
}

func TestParseBlobRejectsGarbage(t *testing.T) {
	_, err := ParseBlob([]byte("ELF\x7f not a blob"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "magic")

	_, err = ParseBlob([]byte{'P', 'V', 'M', 0, 99})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version")
}

func TestVerifyBlobAcceptsGoodBlob(t *testing.T) {
	assert.Empty(t, VerifyBlob(sampleBlob().Encode()))
}

func TestVerifyBlobRejectsUnknownImport(t *testing.T) {
	blob := sampleBlob()
	blob.Imports = append(blob.Imports, "open_file")
	errs := VerifyBlob(blob.Encode())
	require.Len(t, errs, 1)
	assert.Equal(t, "imports", errs[0].Section)
	assert.Contains(t, errs[0].Message, "open_file")
}

func TestVerifyBlobRejectsDuplicateExport(t *testing.T) {
	blob := sampleBlob()
	blob.Exports = append(blob.Exports, blob.Exports[0])
	errs := VerifyBlob(blob.Encode())
	require.Len(t, errs, 1)
	assert.Equal(t, "exports", errs[0].Section)
}

func TestVerifyBlobRejectsEmptyCode(t *testing.T) {
	blob := sampleBlob()
	blob.Code = nil
	errs := VerifyBlob(blob.Encode())
	require.Len(t, errs, 1)
	assert.Equal(t, "code", errs[0].Section)
}

func TestVerifyBlobAllowsEveryHostImport(t *testing.T) {
	blob := sampleBlob()
	blob.Imports = append([]string{}, runtime.HostImports...)
	assert.Empty(t, VerifyBlob(blob.Encode()))
}

func TestMetadataBaseName(t *testing.T) {
	meta := stackless.MangleMetadata("storage", "store")
	base, ok := metadataBaseName(meta)
	require.True(t, ok)
	assert.Equal(t, "store", base.name)
	assert.Equal(t, "_ZN7storage5store", base.fnSymbolPrefix)

	_, ok = metadataBaseName("call_selector")
	assert.False(t, ok)
	_, ok = metadataBaseName(stackless.MangleFunction("storage", "store"))
	assert.False(t, ok)
}
