package target

import (
	"cmp"
	"errors"
	"maps"
	"slices"
	"sort"

	"github.com/Manu343726/framevars/pkg/arch"
	"github.com/Manu343726/framevars/pkg/frame"
	"github.com/Manu343726/framevars/pkg/utils"
)

var (
	ErrUnknownRegister = arch.ErrUnknownRegister
	ErrNoFunction      = errors.New("no function at address")
	ErrNoStop          = errors.New("no such stop")
)

// Target is a debuggee restored from a snapshot. It serves the analyzer
// collaborators (memory, functions, code/data classification) and the
// debugger (registers, symbols, stops).
//
// A Target is not safe for concurrent use.
type Target struct {
	arch      *arch.Arch
	registers map[string]uint64
	initial   map[string]uint64
	memory    *memory
	pristine  []Segment
	functions []Function
	data      map[uint64]DataItem
	symbols   map[uint64]string
	addresses map[string]uint64
	stops     []Stop
}

func Load(path string) (*Target, error) {
	snapshot, err := LoadSnapshot(path)
	if err != nil {
		return nil, err
	}

	return New(snapshot)
}

func New(s *Snapshot) (*Target, error) {
	a, err := arch.ByName(s.Arch)
	if err != nil {
		return nil, err
	}

	t := &Target{
		arch:      a,
		memory:    makeMemory(s.Memory),
		pristine:  s.Memory,
		functions: slices.Clone(s.Functions),
		data:      make(map[uint64]DataItem, len(s.Data)),
		symbols:   maps.Clone(s.Symbols),
		stops:     s.Stops,
	}

	t.registers, err = t.canonicalRegisters(s.Registers)
	if err != nil {
		return nil, err
	}
	t.initial = maps.Clone(t.registers)

	slices.SortFunc(t.functions, func(a, b Function) int {
		return cmp.Compare(a.Start, b.Start)
	})

	for _, item := range s.Data {
		t.data[item.Address] = item
	}

	if t.symbols == nil {
		t.symbols = make(map[uint64]string)
	}
	t.addresses = utils.InvertedMap(t.symbols)

	for i, stop := range t.stops {
		if _, err := t.canonicalRegisters(stop.Registers); err != nil {
			return nil, utils.MakeError(ErrBadSnapshot, "stop %d: %v", i, err)
		}
	}

	return t, nil
}

func (t *Target) canonicalRegisters(values map[string]uint64) (map[string]uint64, error) {
	result := make(map[string]uint64, len(values))
	for name, value := range values {
		canonical, ok := t.arch.Canonical(name)
		if !ok {
			return nil, utils.MakeError(ErrUnknownRegister, "'%v' is not a %v register", name, t.arch.Name)
		}
		result[canonical] = t.arch.Mask(value)
	}
	return result, nil
}

func (t *Target) Arch() *arch.Arch {
	return t.arch
}

func (t *Target) ReadMemory(address uint64, size int) ([]byte, error) {
	return t.memory.ReadMemory(address, size)
}

func (t *Target) WriteMemory(address uint64, data []byte) error {
	return t.memory.WriteMemory(address, data)
}

// ReadPointer reads a pointer sized value
func (t *Target) ReadPointer(address uint64) (uint64, error) {
	if t.arch.PointerSize == 4 {
		value, err := ReadWord[uint32](t.memory, address)
		return uint64(value), err
	}
	return ReadWord[uint64](t.memory, address)
}

// WritePointer writes a pointer sized value
func (t *Target) WritePointer(address uint64, value uint64) error {
	if t.arch.PointerSize == 4 {
		return WriteWord(t.memory, address, uint32(value))
	}
	return WriteWord(t.memory, address, value)
}

// ReadRegister reads a register by name. Aliases such as CIP are accepted.
// Registers missing from the snapshot read as zero.
func (t *Target) ReadRegister(name string) (uint64, error) {
	canonical, ok := t.arch.Canonical(name)
	if !ok {
		return 0, utils.MakeError(ErrUnknownRegister, "'%v' is not a %v register", name, t.arch.Name)
	}
	return t.registers[canonical], nil
}

func (t *Target) WriteRegister(name string, value uint64) error {
	canonical, ok := t.arch.Canonical(name)
	if !ok {
		return utils.MakeError(ErrUnknownRegister, "'%v' is not a %v register", name, t.arch.Name)
	}
	t.registers[canonical] = t.arch.Mask(value)
	return nil
}

func (t *Target) InstructionPointer() uint64 {
	return t.registers[t.arch.InstructionPointer]
}

// FunctionAt returns the [start, end) range of the function containing
// address
func (t *Target) FunctionAt(address uint64) (uint64, uint64, bool) {
	f, err := t.Function(address)
	if err != nil {
		return 0, 0, false
	}
	return f.Start, f.End, true
}

func (t *Target) Function(address uint64) (*Function, error) {
	i := sort.Search(len(t.functions), func(i int) bool {
		return t.functions[i].Start > address
	})
	if i > 0 && t.functions[i-1].Contains(address) {
		return &t.functions[i-1], nil
	}
	return nil, utils.MakeError(ErrNoFunction, "0x%X", address)
}

func (t *Target) Functions() []Function {
	return slices.Clone(t.functions)
}

// Classify tells code from data at an address. Bytes without a data item are
// code.
func (t *Target) Classify(address uint64) (frame.Span, error) {
	if !t.memory.mapped(address) {
		return frame.Span{}, utils.MakeError(ErrSegfault, "address 0x%X is not mapped", address)
	}

	item, ok := t.data[address]
	if !ok || item.Type.IsCode() {
		return frame.Span{Code: true}, nil
	}

	return frame.Span{Size: item.Span()}, nil
}

func (t *Target) SymbolAt(address uint64) (string, bool) {
	name, ok := t.symbols[address]
	return name, ok
}

func (t *Target) SymbolAddress(name string) (uint64, bool) {
	address, ok := t.addresses[name]
	return address, ok
}

// Symbols returns symbol names sorted by address
func (t *Target) Symbols() []string {
	addresses := make([]uint64, 0, len(t.symbols))
	for address := range t.symbols {
		addresses = append(addresses, address)
	}
	slices.Sort(addresses)
	return utils.Map(addresses, func(address uint64) string { return t.symbols[address] })
}

func (t *Target) StopCount() int {
	return len(t.stops)
}

// ApplyStop moves the target to a replayed stop: its registers are updated
// and its memory writes applied
func (t *Target) ApplyStop(index int) error {
	if index < 0 || index >= len(t.stops) {
		return utils.MakeError(ErrNoStop, "%d (have %d stops)", index, len(t.stops))
	}

	stop := t.stops[index]
	for name, value := range stop.Registers {
		if err := t.WriteRegister(name, value); err != nil {
			return err
		}
	}
	for _, write := range stop.Writes {
		if err := t.WriteMemory(write.Address, write.Bytes); err != nil {
			return err
		}
	}

	return nil
}

// Reset restores the registers and memory of the snapshot
func (t *Target) Reset() {
	t.registers = maps.Clone(t.initial)
	t.memory = makeMemory(t.pristine)
}
