// Copyright 2025 The MoveChain Authors
// This file is part of the go-move library.

package vm

import (
	"encoding/binary"
	"fmt"
)

// fakeInstance is a register file plus sparse guest memory, standing in for
// the engine in handler tests. Run drains a scripted interrupt queue.
type fakeInstance struct {
	mem        map[uint32]byte
	regs       [6]uint64
	interrupts []Interrupt
}

func newFakeInstance() *fakeInstance {
	return &fakeInstance{mem: make(map[uint32]byte)}
}

func (f *fakeInstance) Reg(r Reg) uint64     { return f.regs[r] }
func (f *fakeInstance) SetReg(r Reg, v uint64) { f.regs[r] = v }

func (f *fakeInstance) ReadMemory(addr uint32, buf []byte) error {
	for i := range buf {
		b, ok := f.mem[addr+uint32(i)]
		if !ok {
			return fmt.Errorf("unmapped address %#x", addr+uint32(i))
		}
		buf[i] = b
	}
	return nil
}

func (f *fakeInstance) WriteMemory(addr uint32, data []byte) error {
	for i, b := range data {
		f.mem[addr+uint32(i)] = b
	}
	return nil
}

func (f *fakeInstance) Run() (Interrupt, error) {
	if len(f.interrupts) == 0 {
		return Interrupt{Kind: InterruptFinished}, nil
	}
	next := f.interrupts[0]
	f.interrupts = f.interrupts[1:]
	return next, nil
}

// mapRange premaps [addr, addr+size) with zeroes so handler writes land.
func (f *fakeInstance) mapRange(addr, size uint32) {
	for i := uint32(0); i < size; i++ {
		if _, ok := f.mem[addr+i]; !ok {
			f.mem[addr+i] = 0
		}
	}
}

// guestLayout lays descriptor records and values into low guest memory for
// tests, mirroring the compiler's emitted layout.
type guestLayout struct {
	in   *fakeInstance
	next uint32
}

func newGuestLayout(in *fakeInstance) *guestLayout {
	return &guestLayout{in: in, next: 0x1000}
}

func (g *guestLayout) write(data []byte) uint32 {
	addr := g.next
	g.in.WriteMemory(addr, data)
	g.next += uint32(len(data))
	// Keep 8-byte alignment for whatever follows.
	g.next = (g.next + 7) &^ 7
	return addr
}

func (g *guestLayout) writeU32(v uint32) uint32 {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return g.write(buf[:])
}

// primDesc writes a primitive descriptor (no name, no info).
func (g *guestLayout) primDesc(kind uint64) uint32 {
	return g.write(descriptorBytes(0, 0, kind, 0))
}

// vecDesc writes a vector descriptor over the element descriptor at elem.
func (g *guestLayout) vecDesc(elem uint32) uint32 {
	info := g.writeU32(elem)
	return g.write(descriptorBytes(0, 0, KindVector, info))
}

// structField pairs a field descriptor address with its byte offset.
type structField struct {
	typeAddr uint32
	offset   uint64
}

// structDesc writes a struct descriptor with the given size/alignment and
// field table. Field records embed the field descriptors by value.
func (g *guestLayout) structDesc(size, align uint64, fields []structField) uint32 {
	records := make([]byte, 0, len(fields)*fieldInfoSize)
	for _, f := range fields {
		desc := make([]byte, moveTypeSize)
		if err := g.in.ReadMemory(f.typeAddr, desc); err != nil {
			panic(err)
		}
		rec := make([]byte, fieldInfoSize)
		copy(rec, desc)
		binary.LittleEndian.PutUint64(rec[moveTypeSize:], f.offset)
		records = append(records, rec...)
	}
	fieldsAddr := g.write(records)

	info := make([]byte, 32)
	binary.LittleEndian.PutUint32(info[0:], fieldsAddr)
	binary.LittleEndian.PutUint64(info[8:], uint64(len(fields)))
	binary.LittleEndian.PutUint64(info[16:], size)
	binary.LittleEndian.PutUint64(info[24:], align)
	infoAddr := g.write(info)
	return g.write(descriptorBytes(0, 0, KindStruct, infoAddr))
}

// byteVector writes a buffer and its vector header, returning the header
// address.
func (g *guestLayout) byteVector(data []byte) uint32 {
	dataAddr := uint32(1)
	if len(data) > 0 {
		dataAddr = g.write(data)
	}
	header := make([]byte, byteVecSize)
	binary.LittleEndian.PutUint32(header[0:], dataAddr)
	binary.LittleEndian.PutUint64(header[8:], uint64(len(data)))
	binary.LittleEndian.PutUint64(header[16:], uint64(len(data)))
	return g.write(header)
}

// descriptorBytes renders one 32-byte descriptor record.
func descriptorBytes(namePtr uint32, nameLen, kind uint64, infoPtr uint32) []byte {
	buf := make([]byte, moveTypeSize)
	binary.LittleEndian.PutUint32(buf[0:], namePtr)
	binary.LittleEndian.PutUint64(buf[8:], nameLen)
	binary.LittleEndian.PutUint64(buf[16:], kind)
	binary.LittleEndian.PutUint32(buf[24:], infoPtr)
	return buf
}

// testHost wires a fake instance to a fresh allocator whose aux region is
// premapped in the fake memory.
func testHost(in *fakeInstance, importNames []string) *Host {
	alloc := InitMemAllocator(MemoryMap{AuxDataAddress: 0x10000, AuxDataSize: 0x10000})
	in.mapRange(0x10000, 0x10000)
	return NewHost(in, alloc, importNames)
}
