package sim

// DecodeHeader reads and validates the 52-byte file header at the cursor.
// It stops at the first field outside the MIPS32 O32 big-endian executable
// profile and leaves the cursor just past the header on success.
func DecodeHeader(c *Cursor) (Header, error) {
	var h Header
	r := fieldReader{c: c}

	// Each magic byte is checked as it is read, so a short file that is not
	// an ELF at all is still reported as bad magic.
	for i, want := range elfMagic {
		b := r.u8()
		if r.err != nil {
			return Header{}, r.err
		}
		if b != want {
			return Header{}, newError(InvalidMagic, int64(i), "not an ELF file (byte %d is 0x%02x, want 0x%02x)", i, b, want)
		}
	}

	// Class and data encoding are single bytes, so they read the same under
	// any byte order.
	h.Class = r.u8()
	if r.err == nil && h.Class != ClassELF32 {
		return Header{}, newError(UnsupportedClass, 4, "can only handle 32 bit ELFs (expected %d but got %d)", ClassELF32, h.Class)
	}
	h.Encoding = r.u8()
	if r.err == nil && h.Encoding != DataMSB {
		return Header{}, newError(UnsupportedEndianness, 5, "can only handle big endian ELFs (expected %d but got %d)", DataMSB, h.Encoding)
	}
	h.IdentVersion = r.u8()
	if r.err == nil && h.IdentVersion != EVCurrent {
		return Header{}, newError(UnsupportedIdentification, 6, "can only handle version %d ELFs (got %d)", EVCurrent, h.IdentVersion)
	}
	h.OSABI = r.u8()
	if r.err == nil && h.OSABI != OSABISysV {
		return Header{}, newError(UnsupportedIdentification, 7, "can only handle System V ELFs (got OS ABI %d)", h.OSABI)
	}
	h.ABIVersion = r.u8()
	if r.err == nil && h.ABIVersion != 0 {
		return Header{}, newError(UnsupportedIdentification, 8, "can only handle ABI version 0 (got %d)", h.ABIVersion)
	}
	r.skip(7)

	h.Type = r.u16()
	if r.err == nil && h.Type != TypeExec {
		return Header{}, newError(UnsupportedObjectType, 16, "can only handle executable ELFs (expected %d but got %d)", TypeExec, h.Type)
	}
	h.Machine = r.u16()
	if r.err == nil && h.Machine != MachineMIPS {
		return Header{}, newError(UnsupportedMachine, 18, "can only handle MIPS ELFs (expected %d but got 0x%x)", MachineMIPS, h.Machine)
	}
	h.Version = r.u32()
	if r.err == nil && h.Version != EVCurrent {
		return Header{}, newError(UnsupportedVersion, 20, "can only handle version %d ELFs (got %d)", EVCurrent, h.Version)
	}

	h.Entry = r.u32()
	h.ProgramHeaderOffset = r.u32()
	h.SectionHeaderOffset = r.u32()

	h.Flags = r.u32()
	if r.err == nil {
		if h.Flags&EFMipsABIO32 == 0 {
			return Header{}, newError(UnsupportedAbiOrArch, 36, "can only read O32 MIPS ELFs (flags 0x%08x)", h.Flags)
		}
		if h.Flags&EFMipsArch32 == 0 {
			return Header{}, newError(UnsupportedAbiOrArch, 36, "can only read MIPS32 ELFs (flags 0x%08x)", h.Flags)
		}
	}

	h.HeaderSize = r.u16()
	if r.err == nil && h.HeaderSize != HeaderSize {
		return Header{}, newError(UnexpectedHeaderLayout, 40, "strange ELF header size (expected %d but got %d)", HeaderSize, h.HeaderSize)
	}
	h.ProgramHeaderEntrySize = r.u16()
	if r.err == nil && h.ProgramHeaderEntrySize != ProgEntrySize {
		return Header{}, newError(UnexpectedHeaderLayout, 42, "strange program header size (expected %d but got %d)", ProgEntrySize, h.ProgramHeaderEntrySize)
	}
	h.ProgramHeaderCount = r.u16()
	if r.err == nil && h.ProgramHeaderCount == PNXNum {
		return Header{}, newError(UnsupportedExtendedHeaderCount, 44, "program headers not in expected place (phnum was 0x%x)", PNXNum)
	}
	h.SectionHeaderEntrySize = r.u16()
	if r.err == nil && h.SectionHeaderEntrySize != SectEntrySize {
		return Header{}, newError(UnexpectedHeaderLayout, 46, "strange section header size (expected %d but got %d)", SectEntrySize, h.SectionHeaderEntrySize)
	}
	h.SectionHeaderCount = r.u16()
	if r.err == nil && h.SectionHeaderCount == 0 {
		return Header{}, newError(MissingSectionHeaders, 48, "section headers not in expected place (shnum was 0)")
	}
	h.SectionNameTableIndex = r.u16()
	if r.err != nil {
		return Header{}, r.err
	}
	switch {
	case h.SectionNameTableIndex == 0:
		return Header{}, newError(MissingStringTable, 50, "program must have a section name table (shstrndx was 0)")
	case h.SectionNameTableIndex == SHNXIdx:
		return Header{}, newError(MissingStringTable, 50, "section name table not in expected place (shstrndx was 0x%x)", SHNXIdx)
	case h.SectionNameTableIndex >= h.SectionHeaderCount:
		return Header{}, newError(MissingStringTable, 50, "section name table index %d out of range (shnum %d)", h.SectionNameTableIndex, h.SectionHeaderCount)
	}
	return h, nil
}

// fieldReader remembers the first read error so a run of fixed fields can be
// read without checking each one. Once err is set every read returns zero.
type fieldReader struct {
	c   *Cursor
	err error
}

func (r *fieldReader) u8() uint8 {
	if r.err != nil {
		return 0
	}
	v, err := r.c.ReadU8()
	r.err = err
	return v
}

func (r *fieldReader) u16() uint16 {
	if r.err != nil {
		return 0
	}
	v, err := r.c.ReadU16()
	r.err = err
	return v
}

func (r *fieldReader) u32() uint32 {
	if r.err != nil {
		return 0
	}
	v, err := r.c.ReadU32()
	r.err = err
	return v
}

func (r *fieldReader) skip(n int) {
	if r.err != nil {
		return
	}
	r.err = r.c.Skip(n)
}
