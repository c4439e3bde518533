package sim

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadTables(t *testing.T) {
	f := newFixture()
	b := f.build()
	file, err := decodeFixture(t, b)
	require.NoError(t, err)

	require.Len(t, file.Progs, 1)
	p := file.Progs[0]
	require.Equal(t, PT_LOAD, p.Type)
	require.Equal(t, f.textOff(), p.Offset)
	require.Equal(t, uint32(0x00400000), p.Vaddr)
	require.Equal(t, uint32(len(f.code)), p.Filesz)
	require.Equal(t, uint32(len(f.code))+f.bss, p.Memsz)
	require.Equal(t, PF_R|PF_X, p.Flags)

	// Loaded data is the file bytes followed by zeros up to memsz.
	require.Len(t, p.Data, int(p.Memsz))
	require.Equal(t, b[p.Offset:p.Offset+p.Filesz], p.Data[:p.Filesz])
	require.Equal(t, make([]byte, p.Memsz-p.Filesz), p.Data[p.Filesz:])

	require.Len(t, file.Sections, 4)
	names := []string{}
	for _, s := range file.Sections {
		names = append(names, s.Name)
	}
	require.Equal(t, []string{"", ".text", ".bss", ".shstrtab"}, names)

	null := file.Sections[0]
	require.Equal(t, SHT_NULL, null.Type)
	require.Nil(t, null.Data)

	text := file.Section(".text")
	require.NotNil(t, text)
	require.Equal(t, f.code, text.Data)

	bss := file.Section(".bss")
	require.Equal(t, SHT_NOBITS, bss.Type)
	require.Equal(t, make([]byte, f.bss), bss.Data)

	strtab := file.Section(".shstrtab")
	require.Equal(t, []byte(fixtureStrtab), strtab.Data)

	require.Nil(t, file.Section(".data"))
	require.Equal(t, file.Progs, file.LoadSegments())
}

func TestNobitsIgnoresFileBytes(t *testing.T) {
	f := newFixture()
	b := f.build()
	// Point .bss at the code, which is non-zero in the file.
	put32(b, f.shEntry(2)+16, f.textOff())
	require.NotEqual(t, make([]byte, f.bss), b[f.textOff():f.textOff()+f.bss])

	file, err := decodeFixture(t, b)
	require.NoError(t, err)
	bss := file.Section(".bss")
	require.Equal(t, f.textOff(), bss.Offset)
	require.Equal(t, make([]byte, f.bss), bss.Data)

	// The offset is never read, so it may lie past the end of the file.
	b = f.build()
	put32(b, f.shEntry(2)+16, uint32(len(b))+0x1000)
	file, err = decodeFixture(t, b)
	require.NoError(t, err)
	require.Equal(t, make([]byte, f.bss), file.Section(".bss").Data)
}

func TestLoadTablesNonLoadSegmentHasNoData(t *testing.T) {
	f := newFixture()
	f.extra = [][8]uint32{
		{uint32(PT_NOTE), 0, 0, 0, 4, 4, uint32(PF_R), 4},
		{uint32(PT_NULL), 0, 0, 0, 0, 0, 0, 0},
	}
	file, err := decodeFixture(t, f.build())
	require.NoError(t, err)
	require.Len(t, file.Progs, 3)
	require.Equal(t, PT_NOTE, file.Progs[1].Type)
	require.Nil(t, file.Progs[1].Data)
	require.Nil(t, file.Progs[2].Data)
	require.Len(t, file.LoadSegments(), 1)
}

func TestLoadTablesRejects(t *testing.T) {
	f := newFixture()
	ph := f.phEntry(0)
	for _, tc := range []struct {
		name  string
		patch func(b []byte)
		kind  ErrorKind
	}{
		{"phoff moved", func(b []byte) { put32(b, 28, HeaderSize+4) }, MisalignedTable},
		{"phoff before header end", func(b []byte) { put32(b, 28, 0) }, MisalignedTable},
		{"unknown segment type", func(b []byte) { put32(b, ph, 8) }, UnknownProgramHeaderType},
		{"gnu stack segment", func(b []byte) { put32(b, ph, 0x6474e551) }, UnknownProgramHeaderType},
		{"memsz below filesz", func(b []byte) { put32(b, ph+20, 1) }, InvalidSegmentSizes},
		{"segment past end of file", func(b []byte) { put32(b, ph+16, 0x10000); put32(b, ph+20, 0x10000) }, Truncated},
		{"segment over limit", func(b []byte) { put32(b, ph+20, 0x20000000) }, SizeLimitExceeded},
		{"null section with size", func(b []byte) { put32(b, f.shEntry(0)+20, 4) }, InconsistentNullSection},
		{"null section with addr", func(b []byte) { put32(b, f.shEntry(0)+12, 0x400000) }, InconsistentNullSection},
		{"section past end of file", func(b []byte) { put32(b, f.shEntry(1)+20, 0x10000) }, Truncated},
		{"nobits over limit", func(b []byte) { put32(b, f.shEntry(2)+20, 0x20000000) }, SizeLimitExceeded},
		{"section table past end of file", func(b []byte) { put32(b, 32, uint32(len(b))-8) }, Truncated},
		{"section table seek past end", func(b []byte) { put32(b, 32, 0xFFFFFF00) }, Truncated},
		{"name past string table", func(b []byte) { put32(b, f.shEntry(1), 0x100) }, MalformedStringTable},
		{"name table is null", func(b []byte) { put16(b, 50, 0) }, MissingStringTable},
		{"name table not terminated", func(b []byte) {
			put32(b, f.shEntry(3)+20, uint32(len(fixtureStrtab)-1))
		}, MalformedStringTable},
	} {
		t.Run(tc.name, func(t *testing.T) {
			b := f.build()
			tc.patch(b)
			_, err := decodeFixture(t, b)
			require.Error(t, err)
			require.Equal(t, tc.kind, KindOf(err), err.Error())
		})
	}
}

func TestMisalignedTableEntry(t *testing.T) {
	// A cursor that starts in the wrong place is caught before the first
	// entry is read.
	b := newFixture().build()
	c := NewCursor(b)
	h, err := DecodeHeader(c)
	require.NoError(t, err)
	require.NoError(t, c.Skip(4))
	_, _, err = LoadTables(c, h, testLimits())
	require.ErrorIs(t, err, MisalignedTable)
}

func TestNullNameTable(t *testing.T) {
	f := newFixture()
	b := f.build()
	// Point shstrndx at the null section's slot by making .bss the table and
	// turning it into a null section.
	put16(b, 50, 2)
	copy(b[f.shEntry(2):], make([]byte, SectEntrySize))
	_, err := decodeFixture(t, b)
	require.ErrorIs(t, err, MalformedStringTable)
}

func TestStringAt(t *testing.T) {
	strtab := []byte("\x00.text\x00.data\x00")
	for _, tc := range []struct {
		off  uint32
		want string
	}{
		{0, ""},
		{1, ".text"},
		{2, "text"},
		{7, ".data"},
		{12, ""},
	} {
		got, err := stringAt(strtab, tc.off)
		require.NoError(t, err)
		require.Equal(t, tc.want, got)
	}

	_, err := stringAt(strtab, 13)
	require.ErrorIs(t, err, MalformedStringTable)
	_, err = stringAt(strtab, 0xFFFFFFFF)
	require.ErrorIs(t, err, MalformedStringTable)
	_, err = stringAt([]byte(".text"), 1)
	require.ErrorIs(t, err, MalformedStringTable)
	_, err = stringAt(nil, 0)
	require.ErrorIs(t, err, MalformedStringTable)
}

func TestSectionDataIsCopied(t *testing.T) {
	b := newFixture().build()
	file, err := decodeFixture(t, b)
	require.NoError(t, err)
	orig := bytes.Clone(b)
	for i := range b {
		b[i] = 0xAA
	}
	text := file.Section(".text")
	require.Equal(t, orig[text.Offset:text.Offset+text.Size], text.Data)
	p := file.Progs[0]
	require.Equal(t, orig[p.Offset:p.Offset+p.Filesz], p.Data[:p.Filesz])
}
