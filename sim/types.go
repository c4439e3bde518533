package sim

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// Fixed layout of the one profile we accept: ELFCLASS32, ELFDATA2MSB,
// ET_EXEC, EM_MIPS, O32 ABI, MIPS32 architecture.
const (
	ClassELF32  = 1
	DataMSB     = 2
	EVCurrent   = 1
	OSABISysV   = 0
	TypeExec    = 2
	MachineMIPS = 8

	EFMipsABIO32  = 0x00001000
	EFMipsArch32  = 0x50000000
	HeaderSize    = 52
	ProgEntrySize = 32
	SectEntrySize = 40

	PNXNum  = 0xFFFF // e_phnum escape: real count lives in section 0
	SHNXIdx = 0xFFFF
)

var elfMagic = [4]byte{0x7F, 'E', 'L', 'F'}

// ProgType is a program header p_type. Only the eight base types are known.
type ProgType uint32

const (
	PT_NULL ProgType = iota
	PT_LOAD
	PT_DYNAMIC
	PT_INTERP
	PT_NOTE
	PT_SHLIB
	PT_PHDR
	PT_TLS
)

var progTypeNames = [...]string{"NULL", "LOAD", "DYNAMIC", "INTERP", "NOTE", "SHLIB", "PHDR", "TLS"}

func progTypeFromRaw(v uint32) (ProgType, bool) {
	if v >= uint32(len(progTypeNames)) {
		return 0, false
	}
	return ProgType(v), true
}

func (t ProgType) String() string {
	if int(t) < len(progTypeNames) {
		return "PT_" + progTypeNames[t]
	}
	return fmt.Sprintf("PT(0x%x)", uint32(t))
}

func (t ProgType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// ProgFlag is a program header p_flags bitmask.
type ProgFlag uint32

const (
	PF_X ProgFlag = 1 << iota
	PF_W
	PF_R
)

func (f ProgFlag) String() string {
	b := []byte("---")
	if f&PF_R != 0 {
		b[0] = 'R'
	}
	if f&PF_W != 0 {
		b[1] = 'W'
	}
	if f&PF_X != 0 {
		b[2] = 'X'
	}
	if rest := f &^ (PF_R | PF_W | PF_X); rest != 0 {
		return fmt.Sprintf("%s+0x%x", b, uint32(rest))
	}
	return string(b)
}

func (f ProgFlag) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// SectionType is a section header sh_type. Anything other than SHT_NULL
// carries data; SHT_NOBITS carries zeros.
type SectionType uint32

const (
	SHT_NULL     SectionType = 0
	SHT_PROGBITS SectionType = 1
	SHT_SYMTAB   SectionType = 2
	SHT_STRTAB   SectionType = 3
	SHT_RELA     SectionType = 4
	SHT_HASH     SectionType = 5
	SHT_DYNAMIC  SectionType = 6
	SHT_NOTE     SectionType = 7
	SHT_NOBITS   SectionType = 8
	SHT_REL      SectionType = 9

	SHT_MIPS_REGINFO  SectionType = 0x70000006
	SHT_MIPS_OPTIONS  SectionType = 0x7000000d
	SHT_MIPS_ABIFLAGS SectionType = 0x7000002a
)

var sectionTypeNames = map[SectionType]string{
	SHT_NULL:          "SHT_NULL",
	SHT_PROGBITS:      "SHT_PROGBITS",
	SHT_SYMTAB:        "SHT_SYMTAB",
	SHT_STRTAB:        "SHT_STRTAB",
	SHT_RELA:          "SHT_RELA",
	SHT_HASH:          "SHT_HASH",
	SHT_DYNAMIC:       "SHT_DYNAMIC",
	SHT_NOTE:          "SHT_NOTE",
	SHT_NOBITS:        "SHT_NOBITS",
	SHT_REL:           "SHT_REL",
	SHT_MIPS_REGINFO:  "SHT_MIPS_REGINFO",
	SHT_MIPS_OPTIONS:  "SHT_MIPS_OPTIONS",
	SHT_MIPS_ABIFLAGS: "SHT_MIPS_ABIFLAGS",
}

func (t SectionType) String() string {
	if s, ok := sectionTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("SHT(0x%x)", uint32(t))
}

func (t SectionType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// SectionFlag is a section header sh_flags bitmask.
type SectionFlag uint32

const (
	SHF_WRITE     SectionFlag = 0x1
	SHF_ALLOC     SectionFlag = 0x2
	SHF_EXECINSTR SectionFlag = 0x4
	SHF_MERGE     SectionFlag = 0x10
	SHF_STRINGS   SectionFlag = 0x20
)

func (f SectionFlag) String() string {
	names := lo.FilterMap([]lo.Tuple2[SectionFlag, string]{
		{A: SHF_WRITE, B: "W"},
		{A: SHF_ALLOC, B: "A"},
		{A: SHF_EXECINSTR, B: "X"},
		{A: SHF_MERGE, B: "M"},
		{A: SHF_STRINGS, B: "S"},
	}, func(t lo.Tuple2[SectionFlag, string], _ int) (string, bool) {
		return t.B, f&t.A != 0
	})
	s := strings.Join(names, "")
	if rest := f &^ (SHF_WRITE | SHF_ALLOC | SHF_EXECINSTR | SHF_MERGE | SHF_STRINGS); rest != 0 {
		s += fmt.Sprintf("+0x%x", uint32(rest))
	}
	return s
}

func (f SectionFlag) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// Header is the decoded ELF file header.
type Header struct {
	Class        uint8
	Encoding     uint8
	IdentVersion uint8
	OSABI        uint8
	ABIVersion   uint8
	Type         uint16
	Machine      uint16
	Version      uint32

	Entry                  uint32
	ProgramHeaderOffset    uint32
	SectionHeaderOffset    uint32
	Flags                  uint32
	HeaderSize             uint16
	ProgramHeaderEntrySize uint16
	ProgramHeaderCount     uint16
	SectionHeaderEntrySize uint16
	SectionHeaderCount     uint16
	SectionNameTableIndex  uint16
}

// ProgramHeader is one entry of the program header table. Data is only
// present for PT_LOAD and then has length Memsz.
type ProgramHeader struct {
	Type   ProgType
	Offset uint32
	Vaddr  uint32
	Paddr  uint32
	Filesz uint32
	Memsz  uint32
	Flags  ProgFlag
	Align  uint32

	Data []byte `json:"-"`
}

// SectionHeader is one entry of the section header table. Name is resolved
// from the section name string table once every header has been read.
type SectionHeader struct {
	Name       string
	NameOffset uint32
	Type       SectionType
	Flags      SectionFlag
	Addr       uint32
	Offset     uint32
	Size       uint32
	Link       uint32
	Info       uint32
	Addralign  uint32
	Entsize    uint32

	Data []byte `json:"-"`
}

// File is a fully decoded executable. It owns every header and payload
// buffer; nothing in it is shared with the input or with other Files.
type File struct {
	Header
	Progs    []*ProgramHeader
	Sections []*SectionHeader
}

// Section returns the first section with the given name, or nil.
func (f *File) Section(name string) *SectionHeader {
	s, _ := lo.Find(f.Sections, func(s *SectionHeader) bool { return s.Name == name })
	return s
}

// LoadSegments returns the PT_LOAD program headers in table order.
func (f *File) LoadSegments() []*ProgramHeader {
	return lo.Filter(f.Progs, func(p *ProgramHeader, _ int) bool { return p.Type == PT_LOAD })
}
