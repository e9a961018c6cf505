// Copyright 2025 The MoveChain Authors
// This file is part of the go-move library.

package vm

import (
	"encoding/binary"
	"fmt"
)

// Canonical serialization of resource values: little-endian primitives,
// vectors as u32-length-prefixed element runs, structs as field
// concatenation in declaration order. Deserialization is the exact inverse.
// Both directions work straight against guest memory through the type
// descriptors, so the guest runtime stays a thin shim.

// Serialize encodes the value at valAddr, typed by the descriptor at
// typeAddr, into canonical bytes.
func Serialize(in Instance, typeAddr, valAddr uint32) ([]byte, error) {
	td, err := ReadType(in, typeAddr)
	if err != nil {
		return nil, err
	}
	return serializeValue(in, td, valAddr)
}

func serializeValue(in Instance, td *TypeDesc, valAddr uint32) ([]byte, error) {
	switch td.Kind {
	case KindBool, KindU8, KindU16, KindU32, KindU64, KindU128, KindU256,
		KindAddress, KindSigner:
		size, err := td.ValueSize()
		if err != nil {
			return nil, err
		}
		buf := make([]byte, size)
		if err := in.ReadMemory(valAddr, buf); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMemoryAccess, err)
		}
		return buf, nil

	case KindVector:
		elem, err := ReadType(in, td.ElemAddr)
		if err != nil {
			return nil, err
		}
		dataPtr, err := readU32(in, valAddr)
		if err != nil {
			return nil, err
		}
		length, err := readU64(in, valAddr+16)
		if err != nil {
			return nil, err
		}
		out := make([]byte, 4, 4+length)
		binary.LittleEndian.PutUint32(out, uint32(length))
		elemSize, err := elem.ValueSize()
		if err != nil {
			return nil, err
		}
		for i := uint64(0); i < length; i++ {
			enc, err := serializeValue(in, elem, dataPtr+uint32(i*elemSize))
			if err != nil {
				return nil, err
			}
			out = append(out, enc...)
		}
		return out, nil

	case KindStruct:
		var out []byte
		for i := uint64(0); i < td.FieldCount; i++ {
			fieldTypeAddr, offset, err := td.FieldAt(in, i)
			if err != nil {
				return nil, err
			}
			fieldTd, err := ReadType(in, fieldTypeAddr)
			if err != nil {
				return nil, err
			}
			enc, err := serializeValue(in, fieldTd, valAddr+uint32(offset))
			if err != nil {
				return nil, err
			}
			out = append(out, enc...)
		}
		return out, nil

	case KindReference:
		elem, err := ReadType(in, td.ElemAddr)
		if err != nil {
			return nil, err
		}
		ptr, err := readU32(in, valAddr)
		if err != nil {
			return nil, err
		}
		return serializeValue(in, elem, ptr)
	}
	return nil, fmt.Errorf("%w: cannot serialize kind %d", ErrMemoryAccess, td.Kind)
}

// Deserialize decodes canonical bytes into a fresh guest value of the type
// described at typeAddr, allocating from the aux-data region, and returns
// the guest address of the value. Buffer sizes come from the descriptor, so
// the value lands exactly sized and aligned.
func Deserialize(in Instance, alloc *MemAllocator, typeAddr uint32, data []byte) (uint32, error) {
	td, err := ReadType(in, typeAddr)
	if err != nil {
		return 0, err
	}
	size, err := td.ValueSize()
	if err != nil {
		return 0, err
	}
	align, err := td.ValueAlign()
	if err != nil {
		return 0, err
	}
	dst, err := alloc.Alloc(uint32(size), uint32(align))
	if err != nil {
		return 0, err
	}
	rest, err := deserializeInto(in, alloc, td, dst, data)
	if err != nil {
		return 0, err
	}
	if len(rest) != 0 {
		return 0, fmt.Errorf("%w: %d trailing bytes after deserialization", ErrMemoryAccess, len(rest))
	}
	return dst, nil
}

// deserializeInto writes one value of type td at dst and returns the
// unconsumed remainder of data.
func deserializeInto(in Instance, alloc *MemAllocator, td *TypeDesc, dst uint32, data []byte) ([]byte, error) {
	switch td.Kind {
	case KindBool, KindU8, KindU16, KindU32, KindU64, KindU128, KindU256,
		KindAddress, KindSigner:
		size, err := td.ValueSize()
		if err != nil {
			return nil, err
		}
		if uint64(len(data)) < size {
			return nil, fmt.Errorf("%w: truncated input (need %d bytes, have %d)", ErrMemoryAccess, size, len(data))
		}
		if err := in.WriteMemory(dst, data[:size]); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMemoryAccess, err)
		}
		return data[size:], nil

	case KindVector:
		if len(data) < 4 {
			return nil, fmt.Errorf("%w: truncated vector length", ErrMemoryAccess)
		}
		length := uint64(binary.LittleEndian.Uint32(data))
		data = data[4:]
		elem, err := ReadType(in, td.ElemAddr)
		if err != nil {
			return nil, err
		}
		elemSize, err := elem.ValueSize()
		if err != nil {
			return nil, err
		}
		elemAlign, err := elem.ValueAlign()
		if err != nil {
			return nil, err
		}
		bufAddr := uint32(elemAlign) // aligned non-null sentinel for empty
		if length > 0 {
			bufAddr, err = alloc.Alloc(uint32(length*elemSize), uint32(elemAlign))
			if err != nil {
				return nil, err
			}
			for i := uint64(0); i < length; i++ {
				data, err = deserializeInto(in, alloc, elem, bufAddr+uint32(i*elemSize), data)
				if err != nil {
					return nil, err
				}
			}
		}
		header := make([]byte, byteVecSize)
		binary.LittleEndian.PutUint32(header[0:], bufAddr)
		binary.LittleEndian.PutUint64(header[8:], length)
		binary.LittleEndian.PutUint64(header[16:], length)
		if err := in.WriteMemory(dst, header); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMemoryAccess, err)
		}
		return data, nil

	case KindStruct:
		var err error
		for i := uint64(0); i < td.FieldCount; i++ {
			fieldTypeAddr, offset, ferr := td.FieldAt(in, i)
			if ferr != nil {
				return nil, ferr
			}
			fieldTd, ferr := ReadType(in, fieldTypeAddr)
			if ferr != nil {
				return nil, ferr
			}
			data, err = deserializeInto(in, alloc, fieldTd, dst+uint32(offset), data)
			if err != nil {
				return nil, err
			}
		}
		return data, nil
	}
	return nil, fmt.Errorf("%w: cannot deserialize kind %d", ErrMemoryAccess, td.Kind)
}
