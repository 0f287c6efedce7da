package codegen

import "fmt"

// ARM64Target is the reference target: offset = bits [0,6), set = bits
// [6,13), tag = bits [13,32). Scratch registers are x2..x30; x1 is
// reserved for the store base address, x0 is the scratch result
// register used by every emitted instruction sequence.
type ARM64Target struct{}

const (
	arm64OffsetBits = 6
	arm64SetBits    = 7
	arm64TagBits    = 19
)

func (ARM64Target) OffsetBits() int { return arm64OffsetBits }
func (ARM64Target) SetBits() int    { return arm64SetBits }
func (ARM64Target) TagBits() int    { return arm64TagBits }

func (ARM64Target) SetPoolBounds() (int, int) {
	return 0, 1 << arm64SetBits
}

func (ARM64Target) TagPoolBounds() (int, int) {
	shift := uint(arm64OffsetBits + arm64SetBits)
	return 0x80000000 >> shift, 0xC0000000 >> shift
}

func (ARM64Target) ScratchRegisters() []string {
	regs := make([]string, 0, 29)
	for i := 2; i <= 30; i++ {
		regs = append(regs, fmt.Sprintf("x%d", i))
	}
	return regs
}

func (ARM64Target) StoreRegister() string { return "x1" }

func (ARM64Target) ComposeAddress(set, tag, offset int) uint64 {
	return uint64(tag)<<(arm64OffsetBits+arm64SetBits) | uint64(set)<<arm64OffsetBits | uint64(offset)
}

// EmitLoadLiteral loads a 64-bit literal via four movk instructions,
// one per 16-bit lane, prefixed by a comment carrying the literal in
// hex.
func (ARM64Target) EmitLoadLiteral(reg string, value uint64) []string {
	lines := []string{fmt.Sprintf("// load 0x%016x into %s", value, reg)}
	for shift := uint(0); shift < 64; shift += 16 {
		imm16 := (value >> shift) & 0xffff
		lines = append(lines, fmt.Sprintf("movk %s, #0x%x, lsl #%d", reg, imm16, shift))
	}
	return lines
}

func (ARM64Target) EmitMemoryLoad(reg string) string {
	return fmt.Sprintf("ldr x0, [%s]", reg)
}

func (ARM64Target) EmitArithmetic(mnemonic, u, v string) string {
	return fmt.Sprintf("%s x0, %s, %s", mnemonic, u, v)
}

func (ARM64Target) EmitNop() string { return "nop" }

func (ARM64Target) EmitStoreConditionZeroInit(storeReg string, offset int) string {
	return fmt.Sprintf("strb wzr, [%s, #%d] // zero-init condition slot", storeReg, offset)
}

func (ARM64Target) EmitStoreCondition(storeReg string, offset, value int) []string {
	return []string{
		fmt.Sprintf("mov w0, #%d", value),
		fmt.Sprintf("strb w0, [%s, #%d]", storeReg, offset),
	}
}

func (ARM64Target) EmitBranch(storeReg string, offset, cmpValue, distance int) []string {
	return []string{
		fmt.Sprintf("ldrb w0, [%s, #%d]", storeReg, offset),
		fmt.Sprintf("cmp w0, #%d", cmpValue),
		fmt.Sprintf("b.ne #%d", distance),
	}
}
