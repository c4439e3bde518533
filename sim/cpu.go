package sim

// CPU is the fetch side of a MIPS32 core: a program counter over a loaded
// image. It decodes instruction fields but executes nothing.
type CPU struct {
	PC  uint32
	Mem *Image
}

func NewCPU(mem *Image) *CPU { return &CPU{Mem: mem} }

// Reset points the CPU at the executable's entry point.
func (c *CPU) Reset(entry uint32) { c.PC = entry }

// Fetch reads the instruction at PC and advances PC by one word.
func (c *CPU) Fetch() (Instruction, bool) {
	w, ok := c.Mem.Read32(c.PC)
	if !ok {
		return 0, false
	}
	c.PC += 4
	return Instruction(w), true
}
