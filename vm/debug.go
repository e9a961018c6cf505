// Copyright 2025 The MoveChain Authors
// This file is part of the go-move library.

package vm

import (
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/davecgh/go-spew/spew"
	log "github.com/sirupsen/logrus"

	"github.com/movechain/go-move/common"
)

// debugPrint renders the guest value at dataPtr through the descriptor at
// typePtr. An unreadable descriptor degrades to printing the raw 32-bit word
// at the data pointer.
func (h *Host) debugPrint(typePtr, dataPtr uint32) {
	td, err := ReadType(h.instance, typePtr)
	if err != nil {
		word, werr := readU32(h.instance, dataPtr)
		if werr != nil {
			log.Infof("debug_print: <unreadable value at %#x>", dataPtr)
			return
		}
		log.Infof("debug_print: %#x", word)
		return
	}
	log.Infof("debug_print: %s", h.renderValue(td, dataPtr, 0))
}

const maxRenderDepth = 8

// renderValue pretty-prints one value by type.
func (h *Host) renderValue(td *TypeDesc, addr uint32, depth int) string {
	if depth > maxRenderDepth {
		return "..."
	}
	in := h.instance
	switch td.Kind {
	case KindBool:
		var b [1]byte
		if err := in.ReadMemory(addr, b[:]); err != nil {
			return renderErr(err)
		}
		if b[0] != 0 {
			return "true"
		}
		return "false"
	case KindU8, KindU16, KindU32, KindU64:
		size, _ := td.ValueSize()
		buf := make([]byte, 8)
		if err := in.ReadMemory(addr, buf[:size]); err != nil {
			return renderErr(err)
		}
		return fmt.Sprintf("%d", binary.LittleEndian.Uint64(buf))
	case KindU128, KindU256:
		size, _ := td.ValueSize()
		buf := make([]byte, size)
		if err := in.ReadMemory(addr, buf); err != nil {
			return renderErr(err)
		}
		// Little-endian on the wire; print most significant first.
		var sb strings.Builder
		sb.WriteString("0x")
		for i := len(buf) - 1; i >= 0; i-- {
			fmt.Fprintf(&sb, "%02x", buf[i])
		}
		return sb.String()
	case KindAddress, KindSigner:
		a, err := readAddress(in, addr)
		if err != nil {
			return renderErr(err)
		}
		return a.Hex()
	case KindReference:
		ptr, err := readU32(in, addr)
		if err != nil {
			return renderErr(err)
		}
		elem, err := ReadType(in, td.ElemAddr)
		if err != nil {
			return renderErr(err)
		}
		return "&" + h.renderValue(elem, ptr, depth+1)
	case KindVector:
		return h.renderVector(td, addr, depth)
	case KindStruct:
		return h.renderStruct(td, addr, depth)
	}
	return fmt.Sprintf("<kind %d>", td.Kind)
}

// renderVector attempts UTF-8 rendering of byte vectors and falls back to an
// element listing.
func (h *Host) renderVector(td *TypeDesc, addr uint32, depth int) string {
	in := h.instance
	elem, err := ReadType(in, td.ElemAddr)
	if err != nil {
		return renderErr(err)
	}
	if elem.Kind == KindU8 {
		bytes, err := readByteVector(in, addr)
		if err != nil {
			return renderErr(err)
		}
		if utf8.Valid(bytes) {
			return fmt.Sprintf("%q", string(bytes))
		}
		return "0x" + common.Bytes2Hex(bytes)
	}
	dataPtr, err := readU32(in, addr)
	if err != nil {
		return renderErr(err)
	}
	length, err := readU64(in, addr+16)
	if err != nil {
		return renderErr(err)
	}
	elemSize, err := elem.ValueSize()
	if err != nil {
		return renderErr(err)
	}
	const maxElems = 16
	var parts []string
	for i := uint64(0); i < length && i < maxElems; i++ {
		parts = append(parts, h.renderValue(elem, dataPtr+uint32(i*elemSize), depth+1))
	}
	if length > maxElems {
		parts = append(parts, "...")
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (h *Host) renderStruct(td *TypeDesc, addr uint32, depth int) string {
	var parts []string
	for i := uint64(0); i < td.FieldCount; i++ {
		fieldTypeAddr, offset, err := td.FieldAt(h.instance, i)
		if err != nil {
			return renderErr(err)
		}
		fieldTd, err := ReadType(h.instance, fieldTypeAddr)
		if err != nil {
			return renderErr(err)
		}
		parts = append(parts, h.renderValue(fieldTd, addr+uint32(offset), depth+1))
	}
	name := td.Name
	if name == "" {
		name = "struct"
	}
	return name + " { " + strings.Join(parts, ", ") + " }"
}

// renderErr formats an unreadable payload.
func renderErr(err error) string {
	return fmt.Sprintf("<unreadable: %v>", err)
}

// hexDump logs the used part of the aux-data region.
func (h *Host) hexDump() {
	used := h.alloc.Offset()
	if used == 0 {
		log.Info("hex_dump: aux data empty")
		return
	}
	buf := make([]byte, used)
	if err := h.instance.ReadMemory(h.alloc.Base(), buf); err != nil {
		log.Infof("hex_dump: <unreadable aux region: %v>", err)
		return
	}
	log.Infof("hex_dump: base=%#x used=%d\n%s", h.alloc.Base(), used, spew.Sdump(buf))
}
