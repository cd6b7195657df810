package emu

import (
	"encoding/binary"
	"fmt"
)

// Addresses carry the region they point into in their high byte. Null is
// the zero address and lies in no region.
const (
	regionGlobal = 1
	regionString = 2
	regionStack  = 3
	regionHeap   = 4
	regionImport = 5

	offsetMask = 0x00ffffff

	// within the import region, the import index occupies the high bits of
	// the offset
	importShift = 16
	importMask  = 1<<importShift - 1
	importSize  = 256
)

func tag(region int, off int32) int32 {
	return int32(region)<<24 | off&offsetMask
}

func regionOf(addr int32) int { return int(uint32(addr) >> 24) }

// object is a heap allocation made by NEWUSEROBJECT, NEWARRAY or
// CREATESTRING.
type object struct {
	size int
	refs int
}

// region returns the backing store of addr and its offset there.
func (m *Machine) region(addr int32) ([]byte, int, error) {
	off := int(addr & offsetMask)
	switch regionOf(addr) {
	case regionGlobal:
		return m.globals, off, nil
	case regionString:
		return m.strings, off, nil
	case regionStack:
		return m.stack, off, nil
	case regionHeap:
		return m.heap, off, nil
	case regionImport:
		return m.importData(off >> importShift), off & importMask, nil
	}
	if addr == 0 {
		return nil, 0, m.errorf("null pointer dereference")
	}
	return nil, 0, m.errorf("invalid address 0x%08x", uint32(addr))
}

func (m *Machine) slice(addr int32, size int) ([]byte, error) {
	buf, off, err := m.region(addr)
	if err != nil {
		return nil, err
	}
	if off < 0 || off+size > len(buf) {
		return nil, m.errorf("address 0x%08x out of range", uint32(addr))
	}
	return buf[off : off+size], nil
}

func (m *Machine) read(addr int32, size int) (int32, error) {
	b, err := m.slice(addr, size)
	if err != nil {
		return 0, err
	}
	switch size {
	case 1:
		return int32(b[0]), nil
	case 2:
		return int32(int16(binary.LittleEndian.Uint16(b))), nil
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

func (m *Machine) write(addr int32, size int, v int32) error {
	b, err := m.slice(addr, size)
	if err != nil {
		return err
	}
	switch size {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(v))
	default:
		binary.LittleEndian.PutUint32(b, uint32(v))
	}
	return nil
}

// ReadInt32 returns the 32 bit value at addr.
func (m *Machine) ReadInt32(addr int32) (int32, error) { return m.read(addr, 4) }

// CString returns the NUL terminated string at addr.
func (m *Machine) CString(addr int32) (string, error) {
	buf, off, err := m.region(addr)
	if err != nil {
		return "", err
	}
	for end := off; end < len(buf); end++ {
		if buf[end] == 0 {
			return string(buf[off:end]), nil
		}
	}
	return "", m.errorf("unterminated string at 0x%08x", uint32(addr))
}

// alloc reserves zeroed heap space and returns its address.
func (m *Machine) alloc(size int) int32 {
	addr := tag(regionHeap, int32(len(m.heap)))
	// keep every object 4 byte aligned and distinct
	m.heap = append(m.heap, make([]byte, (size+4)&^3)...)
	m.objects[addr] = &object{size: size}
	return addr
}

// NewString allocates a string object holding s and returns its handle.
func (m *Machine) NewString(s string) int32 {
	addr := m.alloc(len(s) + 1)
	copy(m.heap[addr&offsetMask:], s)
	return addr
}

// Refs returns the number of pointer cells that hold the handle h.
func (m *Machine) Refs(h int32) int {
	if o, ok := m.objects[h]; ok {
		return o.refs
	}
	return 0
}

func (m *Machine) retain(h int32) {
	if o, ok := m.objects[h]; ok {
		o.refs++
	}
}

func (m *Machine) release(h int32) {
	if o, ok := m.objects[h]; ok && o.refs > 0 {
		o.refs--
	}
}

func (m *Machine) importData(idx int) []byte {
	if idx >= len(m.imports) {
		return nil
	}
	if m.imports[idx] == nil {
		m.imports[idx] = make([]byte, importSize)
	}
	return m.imports[idx]
}

// ImportData returns the storage that backs the imported variable name.
// Writes to the slice are visible to the script.
func (m *Machine) ImportData(name string) ([]byte, error) {
	for i, imp := range m.mod.Imports {
		if imp == name {
			return m.importData(i), nil
		}
	}
	return nil, fmt.Errorf("no import named %q", name)
}
