// Copyright 2025 The MoveChain Authors
// This file is part of the go-move library.

package linker

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"
	"strings"
)

// Program blob framing. The loader walks tagged sections until the end
// marker; lengths are little-endian u32.
var blobMagic = []byte{'P', 'V', 'M', 0}

const blobVersion = 1

// Section tags of the blob container.
const (
	secEnd     = 0
	secROData  = 1
	secRWData  = 2
	secImports = 3
	secExports = 4
	secCode    = 5
	secAuxData = 6
)

// defaultAuxDataSize is reserved for host-visible guest allocations when the
// program does not override it.
const defaultAuxDataSize = 1 << 16

// Export is one exported function of a program blob.
type Export struct {
	Symbol string // linker symbol
	Name   string // source-level function name
	Inputs uint8
	Outputs uint8
}

// ProgramBlob is the parsed form of a program blob.
type ProgramBlob struct {
	ROData      []byte
	RWData      []byte
	Code        []byte
	Imports     []string
	Exports     []Export
	AuxDataSize uint32
}

// BlobFromELF transforms a merged relocatable ELF into the program blob.
// Stripping and optimization are left off; the packer is authoritative about
// what it keeps.
func BlobFromELF(data []byte) ([]byte, error) {
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing ELF: %v", ErrLink, err)
	}
	defer f.Close()
	if f.Machine != elf.EM_RISCV {
		return nil, fmt.Errorf("%w: unexpected machine %v (want RISC-V)", ErrLink, f.Machine)
	}

	var ro, rw, code []byte
	for _, sec := range f.Sections {
		if sec.Type == elf.SHT_NOBITS {
			continue
		}
		raw, err := sec.Data()
		if err != nil {
			return nil, fmt.Errorf("%w: reading section %s: %v", ErrLink, sec.Name, err)
		}
		switch {
		case sec.Name == ".text" || strings.HasPrefix(sec.Name, ".text."):
			code = append(code, raw...)
		case sec.Name == ".rodata" || strings.HasPrefix(sec.Name, ".rodata."):
			ro = append(ro, raw...)
		case sec.Name == ".data" || strings.HasPrefix(sec.Name, ".data.") ||
			sec.Name == ".sdata" || strings.HasPrefix(sec.Name, ".sdata."):
			rw = append(rw, raw...)
		}
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("%w: merged object carries no code", ErrLink)
	}

	imports, err := collectImports(f)
	if err != nil {
		return nil, err
	}
	exports, err := collectExports(f)
	if err != nil {
		return nil, err
	}

	blob := &ProgramBlob{
		ROData:      ro,
		RWData:      rw,
		Code:        code,
		Imports:     imports,
		Exports:     exports,
		AuxDataSize: defaultAuxDataSize,
	}
	return blob.Encode(), nil
}

// collectImports lists the host imports of the merged object: every undefined
// symbol of the symbol table that is not a mangled Move symbol or an LLVM
// intrinsic.
func collectImports(f *elf.File) ([]string, error) {
	syms, err := f.Symbols()
	if err != nil {
		return nil, fmt.Errorf("%w: reading symbols: %v", ErrLink, err)
	}
	// The import notes reference the stub symbols; undefined globals with
	// a note entry are the host imports. With relocations unapplied in a
	// -r link, the robust source of truth is the undefined symbol set
	// filtered to non-mangled names.
	var imports []string
	seen := make(map[string]bool)
	for _, sym := range syms {
		if sym.Section != elf.SHN_UNDEF || sym.Name == "" {
			continue
		}
		if strings.HasPrefix(sym.Name, "_ZN") || strings.HasPrefix(sym.Name, "llvm.") {
			continue
		}
		if seen[sym.Name] {
			continue
		}
		seen[sym.Name] = true
		imports = append(imports, sym.Name)
	}
	return imports, nil
}

// collectExports pairs every METADATA record with its function symbol and
// decodes the record header (version, flags, name length, arity).
func collectExports(f *elf.File) ([]Export, error) {
	syms, err := f.Symbols()
	if err != nil {
		return nil, fmt.Errorf("%w: reading symbols: %v", ErrLink, err)
	}
	metaSection := sectionByName(f, ".polkavm_metadata")
	var metaData []byte
	if metaSection != nil {
		if metaData, err = metaSection.Data(); err != nil {
			return nil, fmt.Errorf("%w: reading metadata: %v", ErrLink, err)
		}
	}

	var exports []Export
	for _, sym := range syms {
		base, ok := metadataBaseName(sym.Name)
		if !ok {
			continue
		}
		rec := Export{Symbol: base.fnSymbolPrefix, Name: base.name, Outputs: 1}
		if metaSection != nil && sym.Value+11 <= uint64(len(metaData)) {
			record := metaData[sym.Value:]
			if record[0] != blobVersion {
				return nil, fmt.Errorf("%w: metadata version %d for %s", ErrLink, record[0], base.name)
			}
			nameLen := binary.LittleEndian.Uint32(record[5:9])
			_ = nameLen // the name global carries the same string
			// header (9) + pointer (4) + in/out arity
			if len(record) >= 15 {
				rec.Inputs = record[13]
				rec.Outputs = record[14]
			}
		}
		// Resolve the exported function symbol by its mangled prefix.
		for _, fsym := range syms {
			if fsym.Name != sym.Name && strings.HasPrefix(fsym.Name, base.fnSymbolPrefix) &&
				!strings.Contains(fsym.Name, "8METADATA") {
				rec.Symbol = fsym.Name
				break
			}
		}
		exports = append(exports, rec)
	}
	// call_selector carries no metadata record but is the program's front
	// door when present.
	for _, sym := range syms {
		if sym.Name == "call_selector" && sym.Section != elf.SHN_UNDEF {
			exports = append(exports, Export{Symbol: "call_selector", Name: "call_selector", Inputs: 2, Outputs: 1})
		}
	}
	return exports, nil
}

type metaName struct {
	name           string
	fnSymbolPrefix string
}

// metadataBaseName splits a _ZN{m}{mod}{n}{name}8METADATA17h...E symbol into
// the function name and the mangled prefix shared with the function symbol.
func metadataBaseName(symbol string) (metaName, bool) {
	idx := strings.Index(symbol, "8METADATA")
	if !strings.HasPrefix(symbol, "_ZN") || idx < 0 {
		return metaName{}, false
	}
	prefix := symbol[:idx]
	// prefix = _ZN{mlen}{mod}{nlen}{name}; peel the trailing name.
	rest := prefix[3:]
	mlen := 0
	for mlen < len(rest) && rest[mlen] >= '0' && rest[mlen] <= '9' {
		mlen++
	}
	var modLen int
	fmt.Sscanf(rest[:mlen], "%d", &modLen)
	rest = rest[mlen+modLen:]
	nlen := 0
	for nlen < len(rest) && rest[nlen] >= '0' && rest[nlen] <= '9' {
		nlen++
	}
	var nameLen int
	fmt.Sscanf(rest[:nlen], "%d", &nameLen)
	if nlen+nameLen > len(rest) {
		return metaName{}, false
	}
	return metaName{name: rest[nlen : nlen+nameLen], fnSymbolPrefix: prefix}, true
}

func sectionByName(f *elf.File, name string) *elf.Section {
	for _, sec := range f.Sections {
		if sec.Name == name {
			return sec
		}
	}
	return nil
}

// Encode renders the blob container.
func (b *ProgramBlob) Encode() []byte {
	var buf bytes.Buffer
	buf.Write(blobMagic)
	buf.WriteByte(blobVersion)

	section := func(tag byte, body []byte) {
		buf.WriteByte(tag)
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(body)))
		buf.Write(lenBuf[:])
		buf.Write(body)
	}

	section(secROData, b.ROData)
	section(secRWData, b.RWData)

	var imp bytes.Buffer
	writeU32(&imp, uint32(len(b.Imports)))
	for _, name := range b.Imports {
		writeStr(&imp, name)
	}
	section(secImports, imp.Bytes())

	var exp bytes.Buffer
	writeU32(&exp, uint32(len(b.Exports)))
	for _, e := range b.Exports {
		writeStr(&exp, e.Symbol)
		writeStr(&exp, e.Name)
		exp.WriteByte(e.Inputs)
		exp.WriteByte(e.Outputs)
	}
	section(secExports, exp.Bytes())

	section(secCode, b.Code)

	var aux bytes.Buffer
	writeU32(&aux, b.AuxDataSize)
	section(secAuxData, aux.Bytes())

	buf.WriteByte(secEnd)
	return buf.Bytes()
}

// ParseBlob decodes a program blob container.
func ParseBlob(data []byte) (*ProgramBlob, error) {
	if len(data) < len(blobMagic)+1 || !bytes.Equal(data[:4], blobMagic) {
		return nil, fmt.Errorf("%w: bad blob magic", ErrLink)
	}
	if data[4] != blobVersion {
		return nil, fmt.Errorf("%w: unsupported blob version %d", ErrLink, data[4])
	}
	blob := &ProgramBlob{}
	r := bytes.NewReader(data[5:])
	for {
		tag, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("%w: truncated blob", ErrLink)
		}
		if tag == secEnd {
			return blob, nil
		}
		var lenBuf [4]byte
		if _, err := r.Read(lenBuf[:]); err != nil {
			return nil, fmt.Errorf("%w: truncated section header", ErrLink)
		}
		body := make([]byte, binary.LittleEndian.Uint32(lenBuf[:]))
		if _, err := r.Read(body); err != nil && len(body) > 0 {
			return nil, fmt.Errorf("%w: truncated section body", ErrLink)
		}
		switch tag {
		case secROData:
			blob.ROData = body
		case secRWData:
			blob.RWData = body
		case secCode:
			blob.Code = body
		case secAuxData:
			if len(body) >= 4 {
				blob.AuxDataSize = binary.LittleEndian.Uint32(body)
			}
		case secImports:
			names, err := parseStrList(body)
			if err != nil {
				return nil, err
			}
			blob.Imports = names
		case secExports:
			exports, err := parseExports(body)
			if err != nil {
				return nil, err
			}
			blob.Exports = exports
		default:
			return nil, fmt.Errorf("%w: unknown section tag %d", ErrLink, tag)
		}
	}
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeStr(buf *bytes.Buffer, s string) {
	writeU32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func parseStrList(body []byte) ([]string, error) {
	if len(body) < 4 {
		return nil, fmt.Errorf("%w: truncated string list", ErrLink)
	}
	count := binary.LittleEndian.Uint32(body)
	body = body[4:]
	out := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(body) < 4 {
			return nil, fmt.Errorf("%w: truncated string entry", ErrLink)
		}
		n := binary.LittleEndian.Uint32(body)
		body = body[4:]
		if uint32(len(body)) < n {
			return nil, fmt.Errorf("%w: truncated string body", ErrLink)
		}
		out = append(out, string(body[:n]))
		body = body[n:]
	}
	return out, nil
}

func parseExports(body []byte) ([]Export, error) {
	if len(body) < 4 {
		return nil, fmt.Errorf("%w: truncated export list", ErrLink)
	}
	count := binary.LittleEndian.Uint32(body)
	body = body[4:]
	out := make([]Export, 0, count)
	readStr := func() (string, error) {
		if len(body) < 4 {
			return "", fmt.Errorf("%w: truncated export entry", ErrLink)
		}
		n := binary.LittleEndian.Uint32(body)
		body = body[4:]
		if uint32(len(body)) < n {
			return "", fmt.Errorf("%w: truncated export name", ErrLink)
		}
		s := string(body[:n])
		body = body[n:]
		return s, nil
	}
	for i := uint32(0); i < count; i++ {
		var e Export
		var err error
		if e.Symbol, err = readStr(); err != nil {
			return nil, err
		}
		if e.Name, err = readStr(); err != nil {
			return nil, err
		}
		if len(body) < 2 {
			return nil, fmt.Errorf("%w: truncated export arity", ErrLink)
		}
		e.Inputs, e.Outputs = body[0], body[1]
		body = body[2:]
		out = append(out, e)
	}
	return out, nil
}
