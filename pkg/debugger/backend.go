package debugger

import (
	"errors"
	"log/slog"

	"github.com/Manu343726/framevars/pkg/arch"
	"github.com/Manu343726/framevars/pkg/disasm"
	"github.com/Manu343726/framevars/pkg/frame"
	"github.com/Manu343726/framevars/pkg/target"
	"github.com/Manu343726/framevars/pkg/utils"
)

var ErrDebuggingEnded = errors.New("debugging ended")

// Backend replays the stops of a snapshot. Stop 0 is the snapshot state
// itself, stop i applies the first i recorded stops.
type Backend struct {
	target    *target.Target
	decoder   *disasm.X86Decoder
	evaluator *ExpressionEvaluator
	logger    *slog.Logger

	stop  int
	ended bool
}

func NewBackend(t *target.Target, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}

	b := &Backend{
		target:  t,
		decoder: disasm.NewX86Decoder(t.Arch()),
		logger:  logger.With("component", "backend"),
	}
	b.evaluator = NewExpressionEvaluator(b)
	return b
}

func (b *Backend) Target() *target.Target {
	return b.target
}

func (b *Backend) Arch() *arch.Arch {
	return b.target.Arch()
}

func (b *Backend) Evaluator() *ExpressionEvaluator {
	return b.evaluator
}

// Collaborators wires the backend into a frame analyzer. names may be nil.
func (b *Backend) Collaborators(names frame.NameStore) frame.Collaborators {
	return frame.Collaborators{
		Decoder:    b.decoder,
		Classifier: b.target,
		Functions:  b.target,
		Memory:     b.target,
		Evaluator:  b.evaluator,
		Writer:     b.target,
		Names:      names,
	}
}

// Stops returns the number of stops of the session, including the initial
// one
func (b *Backend) Stops() int {
	return b.target.StopCount() + 1
}

func (b *Backend) CurrentStop() int {
	return b.stop
}

// Stop moves the session to a stop
func (b *Backend) Stop(index int) error {
	if index < 0 || index >= b.Stops() {
		return utils.MakeError(target.ErrNoStop, "%d (have %d stops)", index, b.Stops())
	}

	b.target.Reset()
	for i := 0; i < index; i++ {
		if err := b.target.ApplyStop(i); err != nil {
			return err
		}
	}

	b.stop = index
	b.ended = false
	b.logger.Debug("stopped", "stop", index, "ip", b.Arch().FormatPointer(b.InstructionPointer()))
	return nil
}

// Next moves to the following stop. Returns false once the session ran
// out of stops, which ends it.
func (b *Backend) Next() (bool, error) {
	if b.ended {
		return false, ErrDebuggingEnded
	}

	if b.stop+1 >= b.Stops() {
		b.End()
		return false, nil
	}

	if err := b.target.ApplyStop(b.stop); err != nil {
		return false, err
	}
	b.stop++
	b.logger.Debug("stopped", "stop", b.stop, "ip", b.Arch().FormatPointer(b.InstructionPointer()))
	return true, nil
}

// Running returns true while the session has not ended
func (b *Backend) Running() bool {
	return !b.ended
}

func (b *Backend) End() {
	b.ended = true
	b.logger.Debug("debugging ended", "stop", b.stop)
}

func (b *Backend) InstructionPointer() uint64 {
	return b.target.InstructionPointer()
}

// SetInstructionPointer moves the instruction pointer, e.g. to inspect the
// frame of another function
func (b *Backend) SetInstructionPointer(address uint64) error {
	return b.target.WriteRegister(b.Arch().InstructionPointer, address)
}

func (b *Backend) ReadRegister(name string) (uint64, error) {
	return b.target.ReadRegister(name)
}

func (b *Backend) WriteRegister(name string, value uint64) error {
	return b.target.WriteRegister(name, value)
}

func (b *Backend) ReadMemory(address uint64, size int) ([]byte, error) {
	return b.target.ReadMemory(address, size)
}

func (b *Backend) WriteMemory(address uint64, data []byte) error {
	return b.target.WriteMemory(address, data)
}

func (b *Backend) SymbolAddress(name string) (uint64, bool) {
	return b.target.SymbolAddress(name)
}

func (b *Backend) SymbolAt(address uint64) (string, bool) {
	return b.target.SymbolAt(address)
}

// FunctionName returns the name of the function containing address
func (b *Backend) FunctionName(address uint64) (string, bool) {
	f, err := b.target.Function(address)
	if err != nil {
		return "", false
	}
	return f.Name, true
}

// Registers returns the general purpose registers followed by the
// instruction pointer and flags
func (b *Backend) Registers(tracked frame.RegisterMask) []RegisterInfo {
	names := b.Arch().RegisterNames()
	regs := make([]RegisterInfo, 0, len(names))

	for i, name := range names {
		value, err := b.target.ReadRegister(name)
		if err != nil {
			continue
		}
		regs = append(regs, RegisterInfo{
			Name:    name,
			Value:   value,
			Tracked: i < len(b.Arch().Registers) && tracked.Has(i),
		})
	}

	return regs
}

// Disassemble decodes count instructions starting at address. Bytes that do
// not decode are listed as data.
func (b *Backend) Disassemble(address uint64, count int) ([]InstructionInfo, error) {
	if count <= 0 {
		count = 1
	}

	code := b.readAvailable(address, count*disasm.MaxInstructionLength)
	if len(code) == 0 {
		return nil, utils.MakeError(target.ErrSegfault, "address 0x%X is not mapped", address)
	}

	lines := b.decoder.Disassemble(code, address)
	if len(lines) > count {
		lines = lines[:count]
	}

	ip := b.InstructionPointer()
	return utils.Map(lines, func(line disasm.Line) InstructionInfo {
		return InstructionInfo{
			Address:     line.Address,
			RawBytes:    line.Bytes,
			Text:        line.Text,
			Valid:       line.Valid,
			IsCurrentIP: line.Address == ip,
		}
	}), nil
}

// readAvailable reads up to size bytes, stopping at the first unmapped byte
func (b *Backend) readAvailable(address uint64, size int) []byte {
	for ; size > 0; size-- {
		if data, err := b.target.ReadMemory(address, size); err == nil {
			return data
		}
	}
	return nil
}

func (b *Backend) EvalExpression(expr string) (uint64, error) {
	return b.evaluator.Eval(expr)
}
