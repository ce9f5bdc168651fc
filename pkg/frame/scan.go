package frame

import (
	"errors"

	"github.com/Manu343726/framevars/pkg/arch"
	"github.com/Manu343726/framevars/pkg/disasm"
	"github.com/Manu343726/framevars/pkg/utils"
)

var ErrUnreadableFunction = errors.New("cannot read function body")

// scanStats summarizes one pass over a function
type scanStats struct {
	instructions int
	noops        int
	dataBytes    uint64
	badBytes     uint64
}

// scanner walks one function once. It owns the byte window of the pass.
type scanner struct {
	arch       *arch.Arch
	decoder    Decoder
	classifier CodeClassifier
	mask       RegisterMask

	start  uint64
	end    uint64
	window []byte

	slots slotSet
	stats scanStats
}

// loadWindow reads the function body plus enough padding to decode an
// instruction that starts right before the end.
func (s *scanner) loadWindow(memory MemoryReader) error {
	size := int(s.end-s.start) + disasm.MaxInstructionLength

	window, err := memory.ReadMemory(s.start, size)
	if err != nil {
		return utils.MakeError(ErrUnreadableFunction, "[0x%X, 0x%X): %v", s.start, s.end, err)
	}
	if len(window) < size {
		return utils.MakeError(ErrUnreadableFunction, "[0x%X, 0x%X): short read of %d bytes", s.start, s.end, len(window))
	}

	s.window = window
	return nil
}

func (s *scanner) run() []Slot {
	s.slots = newSlotSet(len(s.arch.Registers))

	for address := s.start; address < s.end; {
		address += s.step(address)
	}

	return s.slots.sorted()
}

// step handles the bytes at address and returns how far to advance. Never
// returns zero.
func (s *scanner) step(address uint64) uint64 {
	span, err := s.classifier.Classify(address)
	if err != nil {
		s.stats.badBytes++
		return 1
	}
	if !span.Code {
		size := max(span.Size, 1)
		s.stats.dataBytes += size
		return size
	}

	inst, err := s.decoder.Decode(s.window[address-s.start:], address)
	if err != nil || inst.Len <= 0 {
		s.stats.badBytes++
		return 1
	}

	s.stats.instructions++
	if inst.NoOp {
		s.stats.noops++
		return uint64(inst.Len)
	}

	for _, op := range inst.Operands {
		if slot, ok := s.classify(op); ok {
			s.slots.add(slot)
		}
	}

	return uint64(inst.Len)
}

func (s *scanner) classify(op disasm.Operand) (Slot, bool) {
	return ClassifyOperand(s.arch, s.mask, op)
}

// ClassifyOperand returns the frame slot addressed by an operand, if any.
// Only [base ± disp] operands qualify: absolute addresses have no base and
// indexed operands describe a family of addresses rather than one slot.
func ClassifyOperand(a *arch.Arch, mask RegisterMask, op disasm.Operand) (Slot, bool) {
	if !op.IsMemory() {
		return Slot{}, false
	}
	if op.Base == 0 {
		return Slot{}, false
	}
	if op.Index != 0 {
		return Slot{}, false
	}

	register, ok := a.RegisterIndex(op.Base)
	if !ok || !mask.Has(register) {
		return Slot{}, false
	}

	return Slot{Register: register, Displacement: op.Displacement}, true
}
