// Copyright 2025 The MoveChain Authors
// This file is part of the go-move library.

package vm

import (
	"encoding/binary"
	"fmt"

	"github.com/movechain/go-move/common"
)

// Descriptor kind codes, matching the compiler's emitted constants.
const (
	KindBool      = 1
	KindU8        = 2
	KindU16       = 3
	KindU32       = 4
	KindU64       = 5
	KindU128      = 6
	KindU256      = 7
	KindAddress   = 8
	KindSigner    = 9
	KindVector    = 10
	KindStruct    = 11
	KindReference = 12
)

// Guest-side layout constants of the descriptor records on the 32-bit
// target (pointers 4 bytes, i64 fields 8-aligned).
const (
	moveTypeSize  = 32 // { {ptr,pad,len}, kind, ptr,pad }
	byteVecSize   = 24 // { ptr,pad, cap, len }
	fieldInfoSize = 56 // { MoveType, offset, {ptr,pad,len} }
)

// Instance is the running engine instance a handler works against. The
// engine itself (scheduling, gas, page management) is external; the host only
// needs registers and memory.
type Instance interface {
	// Reg reads an argument/return register (A0..A5).
	Reg(reg Reg) uint64
	// SetReg writes a register.
	SetReg(reg Reg, v uint64)
	// ReadMemory fills buf from guest memory at addr.
	ReadMemory(addr uint32, buf []byte) error
	// WriteMemory copies data into guest memory at addr.
	WriteMemory(addr uint32, data []byte) error
	// Run resumes the guest until the next interrupt.
	Run() (Interrupt, error)
}

// Reg names the argument registers of the guest ABI.
type Reg int

// Argument/return registers.
const (
	RegA0 Reg = iota
	RegA1
	RegA2
	RegA3
	RegA4
	RegA5
)

// InterruptKind discriminates why the guest stopped.
type InterruptKind int

const (
	// InterruptFinished: the program returned to the host.
	InterruptFinished InterruptKind = iota
	// InterruptEcalli: an environment call; Ecalli holds the import index.
	InterruptEcalli
	// InterruptTrap: the guest executed an invalid or trapping instruction.
	InterruptTrap
	// InterruptSegfault: the guest touched an unmapped page.
	InterruptSegfault
	// InterruptNotEnoughGas: the gas budget ran out.
	InterruptNotEnoughGas
)

// Interrupt is one suspension of the guest.
type Interrupt struct {
	Kind        InterruptKind
	Ecalli      uint32 // import index for InterruptEcalli
	SegfaultAddr uint32
}

// ---- Guest memory decoding --------------------------------------------------

func readU32(in Instance, addr uint32) (uint32, error) {
	var buf [4]byte
	if err := in.ReadMemory(addr, buf[:]); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMemoryAccess, err)
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func readU64(in Instance, addr uint32) (uint64, error) {
	var buf [8]byte
	if err := in.ReadMemory(addr, buf[:]); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMemoryAccess, err)
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// TypeDesc is a host-side view of a guest type descriptor.
type TypeDesc struct {
	Kind uint64
	Name string

	// ElemAddr points at the element descriptor of vectors and
	// references.
	ElemAddr uint32

	// Struct shape, valid when Kind == KindStruct.
	FieldsAddr uint32
	FieldCount uint64
	Size       uint64
	Align      uint64
}

// ReadType decodes the descriptor at addr from guest memory.
func ReadType(in Instance, addr uint32) (*TypeDesc, error) {
	namePtr, err := readU32(in, addr)
	if err != nil {
		return nil, err
	}
	nameLen, err := readU64(in, addr+8)
	if err != nil {
		return nil, err
	}
	kind, err := readU64(in, addr+16)
	if err != nil {
		return nil, err
	}
	infoPtr, err := readU32(in, addr+24)
	if err != nil {
		return nil, err
	}

	td := &TypeDesc{Kind: kind}
	if nameLen > 0 && nameLen < 4096 {
		name := make([]byte, nameLen)
		if err := in.ReadMemory(namePtr, name); err == nil {
			td.Name = string(name)
		}
	}

	switch kind {
	case KindVector, KindReference:
		elem, err := readU32(in, infoPtr)
		if err != nil {
			return nil, err
		}
		td.ElemAddr = elem
	case KindStruct:
		if td.FieldsAddr, err = readU32(in, infoPtr); err != nil {
			return nil, err
		}
		if td.FieldCount, err = readU64(in, infoPtr+8); err != nil {
			return nil, err
		}
		if td.Size, err = readU64(in, infoPtr+16); err != nil {
			return nil, err
		}
		if td.Align, err = readU64(in, infoPtr+24); err != nil {
			return nil, err
		}
	}
	return td, nil
}

// FieldAt decodes field i of a struct descriptor: the embedded field
// descriptor address and the field's byte offset.
func (td *TypeDesc) FieldAt(in Instance, i uint64) (fieldType uint32, offset uint64, err error) {
	rec := td.FieldsAddr + uint32(i)*fieldInfoSize
	offset, err = readU64(in, rec+moveTypeSize)
	if err != nil {
		return 0, 0, err
	}
	return rec, offset, nil
}

// ValueSize returns the in-memory size of a value of this type.
func (td *TypeDesc) ValueSize() (uint64, error) {
	switch td.Kind {
	case KindBool, KindU8:
		return 1, nil
	case KindU16:
		return 2, nil
	case KindU32:
		return 4, nil
	case KindU64:
		return 8, nil
	case KindU128:
		return 16, nil
	case KindU256, KindAddress, KindSigner:
		return 32, nil
	case KindVector:
		return byteVecSize, nil
	case KindReference:
		return 4, nil
	case KindStruct:
		return td.Size, nil
	}
	return 0, fmt.Errorf("%w: unknown type kind %d", ErrMemoryAccess, td.Kind)
}

// ValueAlign returns the in-memory alignment of a value of this type.
func (td *TypeDesc) ValueAlign() (uint64, error) {
	switch td.Kind {
	case KindBool, KindU8, KindAddress, KindSigner:
		return 1, nil
	case KindU16:
		return 2, nil
	case KindU32, KindReference:
		return 4, nil
	case KindU64, KindU128, KindU256, KindVector:
		return 8, nil
	case KindStruct:
		if td.Align == 0 {
			return 1, nil
		}
		return td.Align, nil
	}
	return 0, fmt.Errorf("%w: unknown type kind %d", ErrMemoryAccess, td.Kind)
}

// readAddress copies a 32-byte account address out of guest memory.
func readAddress(in Instance, addr uint32) (common.Address, error) {
	var a common.Address
	if err := in.ReadMemory(addr, a[:]); err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrMemoryAccess, err)
	}
	return a, nil
}

// readTag copies a 32-byte struct tag out of guest memory.
func readTag(in Instance, addr uint32) (StructTagHash, error) {
	var t StructTagHash
	if err := in.ReadMemory(addr, t[:]); err != nil {
		return StructTagHash{}, fmt.Errorf("%w: %v", ErrMemoryAccess, err)
	}
	return t, nil
}

// readByteVector reads the vector header at addr and returns its byte
// contents.
func readByteVector(in Instance, addr uint32) ([]byte, error) {
	dataPtr, err := readU32(in, addr)
	if err != nil {
		return nil, err
	}
	length, err := readU64(in, addr+16)
	if err != nil {
		return nil, err
	}
	if length == 0 {
		return []byte{}, nil
	}
	buf := make([]byte, length)
	if err := in.ReadMemory(dataPtr, buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMemoryAccess, err)
	}
	return buf, nil
}

// writeByteVector allocates a byte vector in aux memory (buffer plus
// header) and returns the guest address of the header.
func writeByteVector(in Instance, alloc *MemAllocator, data []byte) (uint32, error) {
	dataAddr := uint32(0)
	if len(data) > 0 {
		var err error
		dataAddr, err = alloc.Alloc(uint32(len(data)), 1)
		if err != nil {
			return 0, err
		}
		if err := in.WriteMemory(dataAddr, data); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMemoryAccess, err)
		}
	} else {
		dataAddr = 1 // non-null sentinel
	}
	header := make([]byte, byteVecSize)
	binary.LittleEndian.PutUint32(header[0:], dataAddr)
	binary.LittleEndian.PutUint64(header[8:], uint64(len(data)))
	binary.LittleEndian.PutUint64(header[16:], uint64(len(data)))
	headerAddr, err := alloc.Alloc(byteVecSize, 8)
	if err != nil {
		return 0, err
	}
	if err := in.WriteMemory(headerAddr, header); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMemoryAccess, err)
	}
	return headerAddr, nil
}
