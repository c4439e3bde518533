package sim

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// fixture describes a minimal MIPS32 O32 big-endian executable: one PT_LOAD
// segment holding code (plus bss) and four sections: null, .text, .bss and
// .shstrtab.
type fixture struct {
	entry   uint32
	machine uint16
	flags   uint32
	vaddr   uint32
	code    []byte
	bss     uint32
	// extra program headers appended after the PT_LOAD entry, as raw fields
	extra [][8]uint32
}

const fixtureStrtab = "\x00.text\x00.bss\x00.shstrtab\x00"

func newFixture() *fixture {
	return &fixture{
		entry:   0x00400000,
		machine: MachineMIPS,
		flags:   EFMipsABIO32 | EFMipsArch32,
		vaddr:   0x00400000,
		code:    words(0x8FA40000, 0x27BD0008, 0x00000000),
		bss:     16,
	}
}

func words(ws ...uint32) []byte {
	buf := new(bytes.Buffer)
	for _, w := range ws {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], w)
		buf.Write(b[:])
	}
	return buf.Bytes()
}

func (f *fixture) phnum() int { return 1 + len(f.extra) }
func (f *fixture) textOff() uint32 { return HeaderSize + uint32(f.phnum())*ProgEntrySize }
func (f *fixture) strOff() uint32 { return f.textOff() + uint32(len(f.code)) }
func (f *fixture) shoff() uint32 { return (f.strOff() + uint32(len(fixtureStrtab)) + 3) &^ 3 }
func (f *fixture) phEntry(i int) int { return HeaderSize + i*ProgEntrySize }
func (f *fixture) shEntry(i int) int { return int(f.shoff()) + i*SectEntrySize }

func (f *fixture) build() []byte {
	buf := new(bytes.Buffer)
	w := func(v interface{}) {
		if err := binary.Write(buf, binary.BigEndian, v); err != nil {
			panic(err)
		}
	}

	buf.Write([]byte{0x7F, 'E', 'L', 'F', ClassELF32, DataMSB, EVCurrent, OSABISysV, 0})
	buf.Write(make([]byte, 7))
	w(uint16(TypeExec))
	w(f.machine)
	w(uint32(EVCurrent))
	w(f.entry)
	w(uint32(HeaderSize))
	w(f.shoff())
	w(f.flags)
	w(uint16(HeaderSize))
	w(uint16(ProgEntrySize))
	w(uint16(f.phnum()))
	w(uint16(SectEntrySize))
	w(uint16(4))
	w(uint16(3))

	filesz := uint32(len(f.code))
	w([8]uint32{uint32(PT_LOAD), f.textOff(), f.vaddr, f.vaddr, filesz, filesz + f.bss, uint32(PF_R | PF_X), 0x1000})
	for _, e := range f.extra {
		w(e)
	}
	buf.Write(f.code)
	buf.WriteString(fixtureStrtab)
	for uint32(buf.Len()) < f.shoff() {
		buf.WriteByte(0)
	}

	w([10]uint32{})
	w([10]uint32{1, uint32(SHT_PROGBITS), uint32(SHF_ALLOC | SHF_EXECINSTR), f.vaddr, f.textOff(), filesz, 0, 0, 4, 0})
	w([10]uint32{7, uint32(SHT_NOBITS), uint32(SHF_ALLOC | SHF_WRITE), f.vaddr + filesz, f.strOff(), f.bss, 0, 0, 4, 0})
	w([10]uint32{12, uint32(SHT_STRTAB), 0, 0, f.strOff(), uint32(len(fixtureStrtab)), 0, 0, 1, 0})
	return buf.Bytes()
}

func put16(buf []byte, off int, v uint16) { binary.BigEndian.PutUint16(buf[off:], v) }
func put32(buf []byte, off int, v uint32) { binary.BigEndian.PutUint32(buf[off:], v) }

func testLimits() Limits {
	cfg := DefaultConfig()
	return cfg.limits()
}

func decodeFixture(t *testing.T, buf []byte) (*File, error) {
	t.Helper()
	return decode(buf, testLimits())
}
