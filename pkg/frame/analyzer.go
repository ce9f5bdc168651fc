package frame

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/Manu343726/framevars/pkg/arch"
	"github.com/Manu343726/framevars/pkg/utils"
)

var (
	ErrNotStopped = errors.New("not stopped inside an analyzed function")
	ErrNoSuchRow  = errors.New("no such row")
	ErrReadOnly   = errors.New("memory is read only")
)

type cacheState int

const (
	cacheEmpty cacheState = iota
	cacheValid
	// Rows are kept but the next refresh rescans
	cacheStale
)

// Analyzer recovers the frame slots of the function the debuggee is stopped
// in. Analyses are cached by function start: refreshing inside the same
// function only re-evaluates values.
//
// An Analyzer is not safe for concurrent use.
type Analyzer struct {
	arch   *arch.Arch
	deps   Collaborators
	logger *slog.Logger

	mask         RegisterMask
	presentation Presentation

	state         cacheState
	functionStart uint64
	functionEnd   uint64
	slots         []Slot
	rows          []SlotRow
}

func NewAnalyzer(config Config, deps Collaborators) *Analyzer {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Analyzer{
		arch:         config.Arch,
		deps:         deps,
		logger:       logger.With("component", "frame"),
		mask:         config.Registers,
		presentation: config.Presentation,
	}
}

func (a *Analyzer) Arch() *arch.Arch {
	return a.arch
}

// Refresh updates the analysis for the instruction pointer the debuggee is
// stopped at and returns the rows with fresh values. It is safe to call on
// every stop or step event.
func (a *Analyzer) Refresh(ip uint64) []SlotRow {
	start, end, ok := a.deps.Functions.FunctionAt(ip)
	if !ok {
		if a.state != cacheEmpty {
			a.logger.Debug("left analyzed function", "ip", hex(ip))
		}
		a.reset()
		return nil
	}

	if a.state != cacheValid || start != a.functionStart {
		if err := a.analyze(start, end); err != nil {
			a.logger.Debug("analysis failed", "ip", hex(ip), "error", err)
			a.reset()
			return nil
		}
	}

	a.evaluate()
	return a.Rows()
}

// SetTrackedRegisters changes the registers slots are tracked for. The next
// Refresh rescans even if the function did not change.
func (a *Analyzer) SetTrackedRegisters(mask RegisterMask) {
	a.mask = mask
	if a.state == cacheValid {
		a.state = cacheStale
	}
}

func (a *Analyzer) TrackedRegisters() RegisterMask {
	return a.mask
}

// SetPresentation re-renders the cached rows. No rescan is needed.
func (a *Analyzer) SetPresentation(p Presentation) {
	a.presentation = p
	if a.state == cacheEmpty {
		return
	}

	a.rows = a.buildRows()
	a.evaluate()
}

func (a *Analyzer) Presentation() Presentation {
	return a.presentation
}

// OnDebuggingEnded drops the analysis
func (a *Analyzer) OnDebuggingEnded() {
	a.reset()
}

// Rows returns a copy of the current rows
func (a *Analyzer) Rows() []SlotRow {
	return slices.Clone(a.rows)
}

// FunctionStart returns the start of the analyzed function
func (a *Analyzer) FunctionStart() (uint64, bool) {
	return a.functionStart, a.state != cacheEmpty
}

// Function returns the [start, end) range of the analyzed function
func (a *Analyzer) Function() (uint64, uint64, bool) {
	return a.functionStart, a.functionEnd, a.state != cacheEmpty
}

func (a *Analyzer) reset() {
	a.state = cacheEmpty
	a.functionStart = 0
	a.functionEnd = 0
	a.slots = nil
	a.rows = nil
}

// analyze scans [start, end) and replaces the cache. The cache is only
// touched once the scan completed.
func (a *Analyzer) analyze(start, end uint64) error {
	s := &scanner{
		arch:       a.arch,
		decoder:    a.deps.Decoder,
		classifier: a.deps.Classifier,
		mask:       a.mask,
		start:      start,
		end:        end,
	}

	if err := s.loadWindow(a.deps.Memory); err != nil {
		return err
	}

	slots := s.run()

	a.state = cacheValid
	a.functionStart = start
	a.functionEnd = end
	a.slots = slots
	a.rows = a.buildRows()

	a.logger.Debug("analyzed function",
		"start", hex(start),
		"end", hex(end),
		"registers", utils.FormatSlice(a.mask.Names(a.arch), ","),
		"slots", len(slots),
		"instructions", s.stats.instructions,
		"noops", s.stats.noops,
		"data_bytes", s.stats.dataBytes,
		"bad_bytes", s.stats.badBytes)

	return nil
}

func (a *Analyzer) buildRows() []SlotRow {
	rows := make([]SlotRow, len(a.slots))

	for i, slot := range a.slots {
		rows[i] = MakeSlotRow(a.arch, slot, a.presentation)

		if a.deps.Names != nil {
			if name, ok := a.deps.Names.Name(a.functionStart, a.arch.Registers[slot.Register].Name, slot.Displacement); ok && name != "" {
				rows[i].Name = name
			}
		}
	}

	return rows
}

// Rename changes the name of a row. With a name store the name sticks to the
// slot for as long as the store keeps it. An empty name restores the default.
func (a *Analyzer) Rename(index int, name string) error {
	row, err := a.row(index)
	if err != nil {
		return err
	}

	if a.deps.Names != nil {
		register := a.arch.Registers[row.Register].Name
		if err := a.deps.Names.SetName(a.functionStart, register, row.Displacement, name); err != nil {
			return err
		}
	}

	if name == "" {
		name = SlotName(a.arch, row.Slot)
	}
	a.rows[index].Name = name
	return nil
}

func (a *Analyzer) row(index int) (*SlotRow, error) {
	if a.state == cacheEmpty {
		return nil, ErrNotStopped
	}
	if index < 0 || index >= len(a.rows) {
		return nil, utils.MakeError(ErrNoSuchRow, "%d (have %d rows)", index, len(a.rows))
	}

	return &a.rows[index], nil
}

func hex(value uint64) string {
	return fmt.Sprintf("0x%X", value)
}
