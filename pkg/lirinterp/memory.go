package lirinterp

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"sort"
)

// block is one allocation in the flat address space
type block struct {
	base     uint64
	data     []byte
	name     string
	freed    bool
	readonly bool
}

func (b *block) end() uint64 { return b.base + uint64(len(b.data)) }

// memory is a byte-addressed little-endian address space. Allocations are
// kept sorted by base and separated by unmapped guard bytes so that
// overruns fault instead of silently touching a neighbour.
type memory struct {
	blocks []*block
	start  uint64
	next   uint64
	limit  uint64
}

const guardBytes = 16

func newMemory(pointerBits int) *memory {
	if pointerBits <= 16 {
		return &memory{start: 0x100, next: 0x100, limit: 0xF000}
	}
	return &memory{start: 0x10000, next: 0x10000, limit: 0x70000000}
}

// alloc reserves size bytes aligned to align and returns the address.
func (m *memory) alloc(size, align int64, name string) (uint64, error) {
	if align < guardBytes {
		align = guardBytes
	}
	if size < 0 {
		return 0, &Panic{Msg: fmt.Sprintf("invalid allocation size %d", size)}
	}
	base := uint64(alignUp(int64(m.next), align))
	if base+uint64(size) >= m.limit {
		return 0, &Panic{Msg: "out of memory"}
	}
	m.blocks = append(m.blocks, &block{base: base, data: make([]byte, size), name: name})
	m.next = base + uint64(size) + guardBytes
	return base, nil
}

// find returns the block containing addr. Zero-sized blocks match their
// own base address.
func (m *memory) find(addr uint64) *block {
	i := sort.Search(len(m.blocks), func(i int) bool { return m.blocks[i].end() > addr })
	for ; i < len(m.blocks); i++ {
		b := m.blocks[i]
		if b.base > addr {
			break
		}
		if addr < b.end() || (len(b.data) == 0 && addr == b.base) {
			return b
		}
	}
	return nil
}

// span checks that [addr, addr+n) lies in one live block.
func (m *memory) span(addr uint64, n int64, write bool) ([]byte, error) {
	if addr == 0 {
		return nil, &Panic{Msg: "null pointer dereference"}
	}
	if n == 0 {
		return nil, nil
	}
	b := m.find(addr)
	if b == nil || addr+uint64(n) > b.end() {
		return nil, &Panic{Msg: fmt.Sprintf("out of bounds access of %d bytes at 0x%x", n, addr)}
	}
	if b.freed {
		return nil, &Panic{Msg: fmt.Sprintf("use after free of '%s'", b.name)}
	}
	if write && b.readonly {
		return nil, &Panic{Msg: fmt.Sprintf("write to read-only memory '%s'", b.name)}
	}
	off := addr - b.base
	return b.data[off : off+uint64(n)], nil
}

func (m *memory) read(addr uint64, n int64) ([]byte, error) {
	s, err := m.span(addr, n, false)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, s)
	return out, nil
}

func (m *memory) write(addr uint64, data []byte) error {
	s, err := m.span(addr, int64(len(data)), true)
	if err != nil {
		return err
	}
	copy(s, data)
	return nil
}

// free releases the block starting at addr.
func (m *memory) free(addr uint64) error {
	if addr == 0 {
		return nil
	}
	b := m.find(addr)
	if b == nil || b.base != addr {
		return &Panic{Msg: fmt.Sprintf("free of invalid pointer 0x%x", addr)}
	}
	if b.freed {
		return &Panic{Msg: fmt.Sprintf("double free of '%s'", b.name)}
	}
	b.freed = true
	// trailing freed blocks behave like a stack and are reclaimed
	for len(m.blocks) > 0 && m.blocks[len(m.blocks)-1].freed {
		m.blocks = m.blocks[:len(m.blocks)-1]
	}
	m.next = m.start
	if n := len(m.blocks); n > 0 {
		m.next = m.blocks[n-1].end() + guardBytes
	}
	return nil
}

// size returns the size of the live block starting at addr.
func (m *memory) size(addr uint64) (int64, bool) {
	b := m.find(addr)
	if b == nil || b.base != addr || b.freed {
		return 0, false
	}
	return int64(len(b.data)), true
}

// cstring reads a NUL-terminated string of elements of the given size.
func (m *memory) cstring(addr uint64, elemSize int64) ([]uint64, error) {
	var out []uint64
	for {
		b, err := m.read(addr, elemSize)
		if err != nil {
			return nil, err
		}
		c := decodeUint(b)
		if c == 0 {
			return out, nil
		}
		out = append(out, c)
		addr += uint64(elemSize)
	}
}

// readString reads a NUL-terminated byte string.
func (m *memory) readString(addr uint64) (string, error) {
	units, err := m.cstring(addr, 1)
	if err != nil {
		return "", err
	}
	b := make([]byte, len(units))
	for i, u := range units {
		b[i] = byte(u)
	}
	return string(b), nil
}

func decodeUint(b []byte) uint64 {
	var buf [8]byte
	copy(buf[:], b)
	return binary.LittleEndian.Uint64(buf[:])
}

func encodeUint(v uint64, n int64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	out := make([]byte, n)
	copy(out, buf[:])
	return out
}

// encodeWide is the little-endian two's complement of n in t.size bytes.
func encodeWide(n *big.Int, t *rtype) []byte {
	mod := new(big.Int).Lsh(big.NewInt(1), uint(t.size*8))
	be := new(big.Int).Mod(n, mod).FillBytes(make([]byte, t.size))
	out := make([]byte, t.size)
	for i := range be {
		out[len(be)-1-i] = be[i]
	}
	return out
}
