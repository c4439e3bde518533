package sim

import "fmt"

// Instruction is one big-endian MIPS32 instruction word.
type Instruction uint32

func signExtend(v uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(v<<shift) >> shift
}

func (i Instruction) Op() uint32 { return uint32(i) >> 26 }
func (i Instruction) Rs() uint32 { return (uint32(i) >> 21) & 0x1F }
func (i Instruction) Rt() uint32 { return (uint32(i) >> 16) & 0x1F }
func (i Instruction) Rd() uint32 { return (uint32(i) >> 11) & 0x1F }
func (i Instruction) Shamt() uint32 { return (uint32(i) >> 6) & 0x1F }
func (i Instruction) Funct() uint32 { return uint32(i) & 0x3F }

// Imm is the sign-extended 16-bit immediate of an I-type instruction.
func (i Instruction) Imm() int32 { return signExtend(uint32(i)&0xFFFF, 16) }

// Target is the 26-bit word index of a J-type instruction.
func (i Instruction) Target() uint32 { return uint32(i) & 0x03FFFFFF }

// Fields renders the raw fields, e.g. "op=0x23 rs=29 rt=4 imm=0".
func (i Instruction) Fields() string {
	switch op := i.Op(); op {
	case 0x00:
		return fmt.Sprintf("op=0x00 rs=%d rt=%d rd=%d shamt=%d funct=0x%02x", i.Rs(), i.Rt(), i.Rd(), i.Shamt(), i.Funct())
	case 0x02, 0x03:
		return fmt.Sprintf("op=0x%02x target=0x%07x", op, i.Target())
	default:
		return fmt.Sprintf("op=0x%02x rs=%d rt=%d imm=%d", op, i.Rs(), i.Rt(), i.Imm())
	}
}

func (i Instruction) String() string { return fmt.Sprintf("%08x", uint32(i)) }
