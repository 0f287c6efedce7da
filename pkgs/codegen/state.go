package codegen

// DeterministicState is the JSON-serializable snapshot of a
// Generator's placeholder mapping tables and store base address,
// round-tripped across runs so a GTS re-run with the same state file
// produces identical addresses.
type DeterministicState struct {
	SetNameToSetNo        map[string]int    `json:"table_set_name_to_set_no"`
	TagNameToTagNo        map[string]int    `json:"table_tag_name_to_tag_no"`
	OperandNameToValue    map[string]uint64 `json:"table_operand_name_to_value"`
	ConditionNameToOffset map[string]int    `json:"table_condition_name_to_stored_operand_offset"`
	StoreBaseAddress      uint64            `json:"store_base_address"`
}

// DumpState captures the generator's current mapping tables.
func (g *Generator) DumpState() DeterministicState {
	return DeterministicState{
		SetNameToSetNo:        copyIntMap(g.setNameToNo),
		TagNameToTagNo:        copyIntMap(g.tagNameToNo),
		OperandNameToValue:    copyU64Map(g.operandNameToValue),
		ConditionNameToOffset: copyIntMap(g.conditionNameToOffset),
		StoreBaseAddress:      g.storeBaseAddr,
	}
}

// LoadState switches the generator into deterministic mode, restoring
// its mapping tables and pre-consuming the set/tag indices they
// reference so later allocations never collide with the replayed
// state. Stored conditions are already zero-initialized by the prior
// run's setup text, so LoadState does not re-emit their zero-init
// lines.
func (g *Generator) LoadState(s DeterministicState) error {
	g.deterministic = true
	g.setNameToNo = copyIntMap(s.SetNameToSetNo)
	g.tagNameToNo = copyIntMap(s.TagNameToTagNo)
	g.operandNameToValue = copyU64Map(s.OperandNameToValue)
	g.conditionNameToOffset = copyIntMap(s.ConditionNameToOffset)
	g.storeBaseAddr = s.StoreBaseAddress
	g.storeReg = g.Target.StoreRegister()
	g.storeInitialized = true

	maxOff := -1
	for _, off := range g.conditionNameToOffset {
		if off > maxOff {
			maxOff = off
		}
	}
	g.nextConditionOff = maxOff + 8

	for _, idx := range g.setNameToNo {
		if err := g.setPool.Reserve(idx); err != nil {
			return err
		}
	}
	for _, idx := range g.tagNameToNo {
		if err := g.tagPool.Reserve(idx); err != nil {
			return err
		}
	}
	return nil
}

func copyIntMap(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyU64Map(m map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
