package sim

import (
	"bytes"

	"github.com/pkg/errors"
)

// Limits bounds the allocations a file can ask for. Sizes in a header are
// untrusted input.
type Limits struct {
	MaxSegmentSize uint32
	MaxImageSize   uint64
}

// LoadTables reads the program header table and then the section header
// table described by h, copies every payload out of the file and resolves
// section names. The cursor must sit right after the file header.
func LoadTables(c *Cursor, h Header, lim Limits) ([]*ProgramHeader, []*SectionHeader, error) {
	progs, err := loadProgramHeaders(c, h, lim)
	if err != nil {
		return nil, nil, err
	}
	sections, err := loadSectionHeaders(c, h, lim)
	if err != nil {
		return nil, nil, err
	}
	if err := resolveNames(sections, h.SectionNameTableIndex); err != nil {
		return nil, nil, err
	}
	return progs, sections, nil
}

func tableFits(c *Cursor, off uint32, count, entsize uint16, what string) error {
	end := uint64(off) + uint64(count)*uint64(entsize)
	if end > uint64(c.Len()) {
		return newError(Truncated, int64(off), "%s [0x%x, 0x%x) is out of bounds (file size %d)", what, off, end, c.Len())
	}
	return nil
}

func loadProgramHeaders(c *Cursor, h Header, lim Limits) ([]*ProgramHeader, error) {
	if err := c.Expect(int64(h.ProgramHeaderOffset), "start of program header table"); err != nil {
		return nil, err
	}
	if err := tableFits(c, h.ProgramHeaderOffset, h.ProgramHeaderCount, h.ProgramHeaderEntrySize, "program header table"); err != nil {
		return nil, err
	}
	progs := make([]*ProgramHeader, 0, h.ProgramHeaderCount)
	for i := 0; i < int(h.ProgramHeaderCount); i++ {
		start := int64(h.ProgramHeaderOffset) + int64(i)*int64(h.ProgramHeaderEntrySize)
		if err := c.Expect(start, "program header start"); err != nil {
			return nil, errors.Wrapf(err, "program header %d", i)
		}
		p, err := readProgramHeader(c, lim)
		if err != nil {
			return nil, errors.Wrapf(err, "program header %d", i)
		}
		if err := c.Expect(start+int64(h.ProgramHeaderEntrySize), "program header end"); err != nil {
			return nil, errors.Wrapf(err, "program header %d", i)
		}
		progs = append(progs, p)
	}
	return progs, nil
}

func readProgramHeader(c *Cursor, lim Limits) (*ProgramHeader, error) {
	at := c.Offset()
	r := fieldReader{c: c}
	rawType := r.u32()
	p := &ProgramHeader{
		Offset: r.u32(),
		Vaddr:  r.u32(),
		Paddr:  r.u32(),
		Filesz: r.u32(),
		Memsz:  r.u32(),
		Flags:  ProgFlag(r.u32()),
		Align:  r.u32(),
	}
	if r.err != nil {
		return nil, r.err
	}
	typ, ok := progTypeFromRaw(rawType)
	if !ok {
		return nil, newError(UnknownProgramHeaderType, at, "unknown program header type 0x%x", rawType)
	}
	p.Type = typ
	if p.Memsz < p.Filesz {
		return nil, newError(InvalidSegmentSizes, at, "memsz 0x%x is smaller than filesz 0x%x", p.Memsz, p.Filesz)
	}
	if p.Type != PT_LOAD {
		return p, nil
	}

	if lim.MaxSegmentSize != 0 && p.Memsz > lim.MaxSegmentSize {
		return nil, newError(SizeLimitExceeded, at, "segment memsz 0x%x exceeds limit 0x%x", p.Memsz, lim.MaxSegmentSize)
	}
	src, err := c.Slice(p.Offset, p.Filesz)
	if err != nil {
		return nil, err
	}
	// The tail past filesz stays zero: that is the segment's bss.
	p.Data = make([]byte, p.Memsz)
	copy(p.Data, src)
	return p, nil
}

func loadSectionHeaders(c *Cursor, h Header, lim Limits) ([]*SectionHeader, error) {
	if err := c.Seek(h.SectionHeaderOffset); err != nil {
		return nil, errors.Wrap(err, "section header table")
	}
	if err := tableFits(c, h.SectionHeaderOffset, h.SectionHeaderCount, h.SectionHeaderEntrySize, "section header table"); err != nil {
		return nil, err
	}
	sections := make([]*SectionHeader, 0, h.SectionHeaderCount)
	for i := 0; i < int(h.SectionHeaderCount); i++ {
		start := int64(h.SectionHeaderOffset) + int64(i)*int64(h.SectionHeaderEntrySize)
		if err := c.Expect(start, "section header start"); err != nil {
			return nil, errors.Wrapf(err, "section %d", i)
		}
		s, err := readSectionHeader(c, lim)
		if err != nil {
			return nil, errors.Wrapf(err, "section %d", i)
		}
		if err := c.Expect(start+int64(h.SectionHeaderEntrySize), "section header end"); err != nil {
			return nil, errors.Wrapf(err, "section %d", i)
		}
		sections = append(sections, s)
	}
	return sections, nil
}

func readSectionHeader(c *Cursor, lim Limits) (*SectionHeader, error) {
	at := c.Offset()
	r := fieldReader{c: c}
	s := &SectionHeader{
		NameOffset: r.u32(),
		Type:       SectionType(r.u32()),
		Flags:      SectionFlag(r.u32()),
		Addr:       r.u32(),
		Offset:     r.u32(),
		Size:       r.u32(),
		Link:       r.u32(),
		Info:       r.u32(),
		Addralign:  r.u32(),
		Entsize:    r.u32(),
	}
	if r.err != nil {
		return nil, r.err
	}

	switch s.Type {
	case SHT_NULL:
		if s.Addr != 0 || s.Offset != 0 || s.Size != 0 {
			return nil, newError(InconsistentNullSection, at, "null section has addr 0x%x offset 0x%x size 0x%x", s.Addr, s.Offset, s.Size)
		}
		return s, nil
	case SHT_NOBITS:
		if lim.MaxSegmentSize != 0 && s.Size > lim.MaxSegmentSize {
			return nil, newError(SizeLimitExceeded, at, "section size 0x%x exceeds limit 0x%x", s.Size, lim.MaxSegmentSize)
		}
		s.Data = make([]byte, s.Size)
		return s, nil
	}

	src, err := c.Slice(s.Offset, s.Size)
	if err != nil {
		return nil, err
	}
	s.Data = bytes.Clone(src)
	if s.Data == nil {
		s.Data = []byte{}
	}
	return s, nil
}

func resolveNames(sections []*SectionHeader, strndx uint16) error {
	strtab := sections[strndx]
	if strtab.Type == SHT_NULL {
		return newError(MalformedStringTable, 0, "section name table %d is a null section", strndx)
	}
	for i, s := range sections {
		name, err := stringAt(strtab.Data, s.NameOffset)
		if err != nil {
			return errors.Wrapf(err, "section %d", i)
		}
		s.Name = name
	}
	return nil
}

// stringAt returns the NUL-terminated string starting at off in a string
// table. Running off the end of the table is an error.
func stringAt(strtab []byte, off uint32) (string, error) {
	if uint64(off) >= uint64(len(strtab)) {
		return "", newError(MalformedStringTable, int64(off), "name offset 0x%x outside string table of %d bytes", off, len(strtab))
	}
	n := bytes.IndexByte(strtab[off:], 0)
	if n < 0 {
		return "", newError(MalformedStringTable, int64(off), "name at offset 0x%x is not NUL-terminated", off)
	}
	return string(strtab[off : int(off)+n]), nil
}
