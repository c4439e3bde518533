package sim

import (
	"bytes"
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
)

// OverlapPolicy decides what Assemble does when two placements share bytes.
type OverlapPolicy string

const (
	// OverlapOverwrite lets later placements overwrite earlier ones, program
	// headers first and sections after, each in table order.
	OverlapOverwrite OverlapPolicy = "overwrite"
	// OverlapStrict accepts an overlap only when both placements agree on
	// every shared byte.
	OverlapStrict OverlapPolicy = "strict"
)

type AssembleOptions struct {
	Overlap      OverlapPolicy
	MaxImageSize uint64
}

// An addrRange is a half-open range of image addresses.
type addrRange struct {
	addr uint64
	size uint64
}

func (x addrRange) end() uint64 { return x.addr + x.size }

func (x addrRange) overlaps(y addrRange) bool {
	return x.end() > y.addr && y.end() > x.addr
}

// Image is a flat process image addressed by virtual address, starting at 0.
// It owns its bytes.
type Image struct {
	mem    []byte
	placed []addrRange
}

func (m *Image) Len() int { return len(m.mem) }

// Bytes returns the image contents. The slice aliases the image.
func (m *Image) Bytes() []byte { return m.mem }

// Digest is the xxHash64 of the image contents.
func (m *Image) Digest() uint64 { return xxhash.Sum64(m.mem) }

func (m *Image) Read8(addr uint32) (uint8, bool) {
	if uint64(addr) >= uint64(len(m.mem)) {
		return 0, false
	}
	return m.mem[addr], true
}

// Read32 reads a big-endian word.
func (m *Image) Read32(addr uint32) (uint32, bool) {
	if uint64(addr)+4 > uint64(len(m.mem)) {
		return 0, false
	}
	return binary.BigEndian.Uint32(m.mem[addr:]), true
}

// Word is Read32 with an error for addresses outside the image.
func (m *Image) Word(addr uint32) (uint32, error) {
	w, ok := m.Read32(addr)
	if !ok {
		return 0, errors.Errorf("word at 0x%08x is outside image of %d bytes", addr, len(m.mem))
	}
	return w, nil
}

func (m *Image) grow(need, max uint64) error {
	if need <= uint64(len(m.mem)) {
		return nil
	}
	if max != 0 && need > max {
		return newError(SizeLimitExceeded, 0, "image would need 0x%x bytes, limit is 0x%x", need, max)
	}
	if need <= uint64(cap(m.mem)) {
		m.mem = m.mem[:need]
		return nil
	}
	mem := make([]byte, need)
	copy(mem, m.mem)
	m.mem = mem
	return nil
}

// place copies data to addr, growing the image with zeros as needed.
func (m *Image) place(addr uint32, data []byte, opts AssembleOptions) error {
	r := addrRange{addr: uint64(addr), size: uint64(len(data))}
	if err := m.grow(r.end(), opts.MaxImageSize); err != nil {
		return err
	}
	if opts.Overlap == OverlapStrict {
		for _, p := range m.placed {
			if !r.overlaps(p) {
				continue
			}
			from, to := max(r.addr, p.addr), min(r.end(), p.end())
			if !bytes.Equal(m.mem[from:to], data[from-r.addr:to-r.addr]) {
				return newError(ConflictingPlacement, 0, "[0x%x, 0x%x) conflicts with earlier placement at [0x%x, 0x%x)", r.addr, r.end(), p.addr, p.end())
			}
		}
	}
	copy(m.mem[addr:], data)
	if r.size > 0 {
		m.placed = append(m.placed, r)
	}
	return nil
}

// Assemble scatters every loaded segment and every addressed section into one
// image: program headers first, then sections, each in table order.
func Assemble(progs []*ProgramHeader, sections []*SectionHeader, opts AssembleOptions) (*Image, error) {
	m := &Image{}
	for i, p := range progs {
		if p.Data == nil {
			continue
		}
		if err := m.place(p.Vaddr, p.Data, opts); err != nil {
			return nil, errors.Wrapf(err, "program header %d", i)
		}
	}
	for i, s := range sections {
		if s.Addr == 0 || s.Data == nil {
			continue
		}
		if err := m.place(s.Addr, s.Data, opts); err != nil {
			return nil, errors.Wrapf(err, "section %d %q", i, s.Name)
		}
	}
	return m, nil
}
