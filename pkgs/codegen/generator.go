// Package codegen allocates architectural resources — set/tag pool
// indices, scratch registers, store-region slots — for an expanded
// experiment and emits its setup and main assembly text.
package codegen

import (
	"math/rand/v2"

	"github.com/scy-phy/plumber-go/pkgs/ast"
	"github.com/scy-phy/plumber-go/pkgs/invariant"
)

// maxConditionOffset bounds how many 8-byte stored-boolean slots the
// store region can hold before condition allocation fails; chosen so
// the zero-init strb's immediate stays within AArch64's 12-bit unsigned
// byte-offset encoding.
const maxConditionOffset = 4088

// Generator implements ast.Generator (OffsetWidth/SetWidth) so it can be
// plugged into an ast.ExpansionState without the ast package importing
// codegen.
type Generator struct {
	Target Target

	setPool *Pool
	tagPool *Pool
	regFree []string

	setNameToNo           map[string]int
	tagNameToNo           map[string]int
	operandNameToValue    map[string]uint64
	conditionNameToOffset map[string]int
	valueToRegister       map[uint64]string

	storeBaseAddr    uint64
	storeReg         string
	storeInitialized bool
	nextConditionOff int

	deterministic bool

	poolRNG     *rand.Rand
	mnemonicRNG *rand.Rand
}

// NewGenerator builds a Generator for target, seeded from two
// independent streams: one for pool draws and operand values, one for
// arithmetic mnemonic choice, so tests can pin one while varying the
// other.
func NewGenerator(target Target, poolSeed, mnemonicSeed uint64) *Generator {
	setLower, setUpper := target.SetPoolBounds()
	tagLower, tagUpper := target.TagPoolBounds()
	return &Generator{
		Target:      target,
		setPool:     NewPool("set", setLower, setUpper, rand.New(rand.NewPCG(poolSeed, poolSeed))),
		tagPool:     NewPool("tag", tagLower, tagUpper, rand.New(rand.NewPCG(poolSeed, poolSeed^0xabcdef))),
		poolRNG:     rand.New(rand.NewPCG(poolSeed, poolSeed^0x5a5a5a5a)),
		mnemonicRNG: rand.New(rand.NewPCG(mnemonicSeed, mnemonicSeed^0x123456)),
	}
}

func (g *Generator) OffsetWidth() int { return g.Target.OffsetBits() }
func (g *Generator) SetWidth() int    { return g.Target.SetBits() }

// Reset prepares the generator for a new experiment. It always frees the
// scratch registers. Outside deterministic mode every placeholder mapping
// is cleared and a fresh store base address is drawn; in deterministic
// mode, which only LoadState enters, the mapping tables and store base
// carry forward unchanged.
func (g *Generator) Reset() error {
	g.regFree = append([]string(nil), g.Target.ScratchRegisters()...)
	g.valueToRegister = map[uint64]string{}

	if g.deterministic && g.storeInitialized {
		return nil
	}

	g.setPool.Reset()
	g.tagPool.Reset()

	g.setNameToNo = map[string]int{}
	g.tagNameToNo = map[string]int{}
	g.operandNameToValue = map[string]uint64{}
	g.conditionNameToOffset = map[string]int{}
	g.nextConditionOff = 0

	setIdx, err := g.setPool.PopRandom()
	if err != nil {
		return err
	}
	tagIdx, err := g.tagPool.PopRandom()
	if err != nil {
		return err
	}
	g.storeBaseAddr = g.Target.ComposeAddress(setIdx, tagIdx, 0)
	g.storeReg = g.Target.StoreRegister()
	g.storeInitialized = true
	return nil
}

// Generate emits the setup and main assembly lines for one fully
// expanded experiment, plus the final register_name -> value mapping
// the analyzer consumes. It returns *OffsetError when a computed set or
// tag index conflicts with the pool, letting the caller retry with
// fresh randomness, and *PoolExhaustionError when a pool has nothing
// left to give — which is fatal.
func (g *Generator) Generate(exp ast.Experiment) (setup, main []string, registers map[string]uint64, err error) {
	if !g.storeInitialized {
		if err := g.Reset(); err != nil {
			return nil, nil, nil, err
		}
	}
	setup = append(setup, g.Target.EmitLoadLiteral(g.storeReg, g.storeBaseAddr)...)

	dirSetup, dirMain, err := g.emitDirectives(exp)
	if err != nil {
		return nil, nil, nil, err
	}
	setup = append(setup, dirSetup...)
	main = dirMain

	return setup, main, g.collectRegisters(), nil
}

// GenerateSections emits a precondition block and a main experiment
// against a single shared setup section (the store-base register is
// loaded only once), formatted with the // SETUP / // PRECONDITION
// banners plumber/gts/codegen.py's generate_setup produces.
func (g *Generator) GenerateSections(precondition, exp ast.Experiment) (setupText, mainText string, registers map[string]uint64, err error) {
	if !g.storeInitialized {
		if err := g.Reset(); err != nil {
			return "", "", nil, err
		}
	}
	setupLines := append([]string(nil), g.Target.EmitLoadLiteral(g.storeReg, g.storeBaseAddr)...)

	preSetup, preMain, err := g.emitDirectives(precondition)
	if err != nil {
		return "", "", nil, err
	}
	setupLines = append(setupLines, preSetup...)

	mainSetup, mainMain, err := g.emitDirectives(exp)
	if err != nil {
		return "", "", nil, err
	}
	setupLines = append(setupLines, mainSetup...)

	setupText = "// SETUP\n" + joinLines(setupLines) + "\n// PRECONDITION\n" + joinLines(preMain)
	mainText = joinLines(mainMain)
	return setupText, mainText, g.collectRegisters(), nil
}

// emitDirectives code-generates exp's directives in order, without
// touching the store-base register: the caller is responsible for
// loading it exactly once per round.
func (g *Generator) emitDirectives(exp ast.Experiment) (setup, main []string, err error) {
	for _, d := range exp {
		var su, ma []string
		switch v := d.(type) {
		case *ast.Memory:
			su, ma, err = g.emitMemory(v)
		case *ast.Arithmetic:
			su, ma, err = g.emitArithmetic(v)
		case *ast.Branch:
			su, ma, err = g.emitBranch(v)
		case *ast.StoreCondition:
			su, ma, err = g.emitStoreCondition(v)
		case *ast.Nop:
			ma = []string{g.Target.EmitNop()}
		default:
			err = &OffsetError{Message: "unsupported directive in expanded experiment"}
		}
		if err != nil {
			return nil, nil, err
		}
		setup = append(setup, su...)
		main = append(main, ma...)
	}
	return setup, main, nil
}

func (g *Generator) collectRegisters() map[string]uint64 {
	registers := make(map[string]uint64, len(g.valueToRegister)+1)
	for val, reg := range g.valueToRegister {
		registers[reg] = val
	}
	registers[g.storeReg] = g.storeBaseAddr
	return registers
}

func joinLines(lines []string) string {
	out := ""
	for _, l := range lines {
		out += l + "\n"
	}
	return out
}

func (g *Generator) allocateSet(ph ast.Placeholder) (int, error) {
	if idx, ok := g.setNameToNo[ph.Name]; ok {
		return idx, nil
	}
	idx, err := g.setPool.PopRandom()
	if err != nil {
		return 0, err
	}
	g.setNameToNo[ph.Name] = idx
	return idx, nil
}

func (g *Generator) allocateTag(ph ast.Placeholder) (int, error) {
	if idx, ok := g.tagNameToNo[ph.Name]; ok {
		return idx, nil
	}
	idx, err := g.tagPool.PopRandom()
	if err != nil {
		return 0, err
	}
	g.tagNameToNo[ph.Name] = idx
	return idx, nil
}

func (g *Generator) allocateOperand(ph ast.Placeholder) uint64 {
	if v, ok := g.operandNameToValue[ph.Name]; ok {
		return v
	}
	v := g.poolRNG.Uint64()
	g.operandNameToValue[ph.Name] = v
	return v
}

// allocateCondition returns the placeholder's store-region byte offset
// and, on first allocation, the zero-init instruction for that slot.
func (g *Generator) allocateCondition(ph ast.Placeholder) (int, string, error) {
	if off, ok := g.conditionNameToOffset[ph.Name]; ok {
		return off, "", nil
	}
	off := g.nextConditionOff
	if off > maxConditionOffset {
		return 0, "", &PoolExhaustionError{Pool: "condition-offsets"}
	}
	g.conditionNameToOffset[ph.Name] = off
	g.nextConditionOff += 8
	return off, g.Target.EmitStoreConditionZeroInit(g.storeReg, off), nil
}

// registerFor pins value to a scratch register, reusing one already
// pinned to the same value. needsLoad reports whether the register was
// just allocated and so still needs its movk load sequence emitted.
func (g *Generator) registerFor(value uint64) (reg string, needsLoad bool, err error) {
	if r, ok := g.valueToRegister[value]; ok {
		return r, false, nil
	}
	if len(g.regFree) == 0 {
		return "", false, &PoolExhaustionError{Pool: "registers"}
	}
	r := g.regFree[0]
	g.regFree = g.regFree[1:]
	g.valueToRegister[value] = r
	return r, true, nil
}

func (g *Generator) emitMemory(m *ast.Memory) (setup, main []string, err error) {
	setIdx, err := g.allocateSet(m.SetAttr.Head)
	if err != nil {
		return nil, nil, err
	}
	tagIdx, err := g.allocateTag(m.TagAttr.Head)
	if err != nil {
		return nil, nil, err
	}

	finalSet := setIdx
	if m.OverrideSet != nil {
		finalSet = g.setPool.Lower() + *m.OverrideSet
		if !g.setPool.InBounds(finalSet) {
			return nil, nil, &OffsetError{Message: "set override out of pool bounds"}
		}
	} else if m.ComputedOffsetSet != 0 || m.FixedOffsetSet != 0 {
		finalSet = setIdx + m.ComputedOffsetSet + m.FixedOffsetSet
		if !g.setPool.InBounds(finalSet) || g.setPool.Taken(finalSet) {
			return nil, nil, &OffsetError{Message: "computed set index out of bounds or already taken"}
		}
	}

	finalTag := tagIdx
	if m.ComputedOffsetTag != 0 {
		finalTag = tagIdx + m.ComputedOffsetTag
		if !g.tagPool.InBounds(finalTag) || g.tagPool.Taken(finalTag) {
			return nil, nil, &OffsetError{Message: "computed tag index out of bounds or already taken"}
		}
	}

	offsetVal := 0
	if m.OverrideOffset != nil {
		offsetVal = *m.OverrideOffset
	}

	addr := g.Target.ComposeAddress(finalSet, finalTag, offsetVal)
	reg, needsLoad, err := g.registerFor(addr)
	if err != nil {
		return nil, nil, err
	}
	if needsLoad {
		setup = g.Target.EmitLoadLiteral(reg, addr)
	}
	main = []string{g.Target.EmitMemoryLoad(reg)}
	return setup, main, nil
}

func (g *Generator) emitArithmetic(a *ast.Arithmetic) (setup, main []string, err error) {
	uVal := g.allocateOperand(a.UAttr.Head)
	vVal := g.allocateOperand(a.VAttr.Head)

	uReg, uLoad, err := g.registerFor(uVal)
	if err != nil {
		return nil, nil, err
	}
	vReg, vLoad, err := g.registerFor(vVal)
	if err != nil {
		return nil, nil, err
	}
	if uLoad {
		setup = append(setup, g.Target.EmitLoadLiteral(uReg, uVal)...)
	}
	if vLoad {
		setup = append(setup, g.Target.EmitLoadLiteral(vReg, vVal)...)
	}

	mnemonic := "add"
	if g.mnemonicRNG.IntN(2) == 1 {
		mnemonic = "eor"
	}
	main = []string{g.Target.EmitArithmetic(mnemonic, uReg, vReg)}
	return setup, main, nil
}

func (g *Generator) emitStoreCondition(s *ast.StoreCondition) (setup, main []string, err error) {
	invariant.Precondition(g.storeInitialized, "store base register must be initialized before emitting a stored condition")
	off, zeroInit, err := g.allocateCondition(s.CondAttr.Head)
	if err != nil {
		return nil, nil, err
	}
	if zeroInit != "" {
		setup = []string{zeroInit}
	}
	// Inverted encoding: 0 means "branch taken on mismatch" (b is
	// True), 1 means "taken on match" (b is False).
	value := 1
	if bool(s.Value) {
		value = 0
	}
	main = g.Target.EmitStoreCondition(g.storeReg, off, value)
	return setup, main, nil
}

func (g *Generator) emitBranch(b *ast.Branch) (setup, main []string, err error) {
	invariant.Precondition(g.storeInitialized, "store base register must be initialized before emitting a branch")
	invariant.Precondition(b.Distance%4 == 0, "branch distance must be a multiple of 4, got %d", b.Distance)
	off, zeroInit, err := g.allocateCondition(b.CondAttr.Head)
	if err != nil {
		return nil, nil, err
	}
	if zeroInit != "" {
		setup = []string{zeroInit}
	}
	cmp := 0
	if bool(b.Taken) {
		cmp = 1
	}
	main = g.Target.EmitBranch(g.storeReg, off, cmp, b.Distance)
	return setup, main, nil
}
