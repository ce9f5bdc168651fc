package frame

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/Manu343726/framevars/pkg/arch"
	"github.com/samber/lo"
)

// Slot is one discovered [register ± displacement] access
type Slot struct {
	Register     int // index in the architecture register set
	Displacement int64
}

// SlotRow is a named slot as shown to the user
type SlotRow struct {
	Slot
	Name       string
	Expression string
	// Filled on every refresh, "???" when the expression cannot be evaluated
	Value string
}

// Shown when a slot value cannot be evaluated
const InvalidValue = "???"

// slotSet collects unique displacements per tracked register
type slotSet []map[int64]struct{}

func newSlotSet(registers int) slotSet {
	set := make(slotSet, registers)
	for i := range set {
		set[i] = make(map[int64]struct{})
	}
	return set
}

func (s slotSet) add(slot Slot) {
	s[slot.Register][slot.Displacement] = struct{}{}
}

func (s slotSet) len() int {
	return lo.SumBy(s, func(displacements map[int64]struct{}) int { return len(displacements) })
}

// sorted returns the slots register-major, each register's displacements in
// descending order. For the frame pointer that lists arguments above locals.
func (s slotSet) sorted() []Slot {
	slots := make([]Slot, 0, s.len())

	for register, displacements := range s {
		keys := lo.Keys(displacements)
		slices.SortFunc(keys, func(a, b int64) int { return cmp.Compare(b, a) })

		for _, displacement := range keys {
			slots = append(slots, Slot{Register: register, Displacement: displacement})
		}
	}

	return slots
}

// SlotName returns the default name of a slot. Frame pointer slots are named
// after the stack layout convention (EBP-C: Local3, EBP+C: Arg2); slots of any
// other register get a mechanical name (ECX-C: _ECX_C, ECX+C: ECX_C).
//
// Displacements that are not a multiple of the pointer size truncate: EBP-5
// is Local1.
func SlotName(a *arch.Arch, slot Slot) string {
	ptrSize := int64(a.PointerSize)

	if slot.Register == arch.FramePointerIndex {
		if slot.Displacement < 0 {
			return fmt.Sprintf("Local%d", -slot.Displacement/ptrSize)
		}
		return fmt.Sprintf("Arg%d", slot.Displacement/ptrSize-1)
	}

	register := a.Registers[slot.Register].Name
	if slot.Displacement < 0 {
		return fmt.Sprintf("_%s_%X", register, uint64(-slot.Displacement))
	}
	return fmt.Sprintf("%s_%X", register, uint64(slot.Displacement))
}

// SlotExpression renders the address expression of a slot, e.g. [EBP-0x8]
func SlotExpression(a *arch.Arch, slot Slot, p Presentation) string {
	sign := "+"
	magnitude := uint64(slot.Displacement)
	if slot.Displacement < 0 {
		sign = "-"
		magnitude = uint64(-slot.Displacement)
	}
	if p.MemorySpaces {
		sign = " " + sign + " "
	}

	text := fmt.Sprintf("%X", magnitude)
	if p.HexPrefix {
		text = "0x" + text
	}

	return "[" + a.Registers[slot.Register].Name + sign + text + "]"
}

// MakeSlotRow names and formats a slot
func MakeSlotRow(a *arch.Arch, slot Slot, p Presentation) SlotRow {
	return SlotRow{
		Slot:       slot,
		Name:       SlotName(a, slot),
		Expression: SlotExpression(a, slot, p),
	}
}
