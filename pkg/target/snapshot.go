// Package target implements a debuggee backed by a YAML process snapshot:
// registers, mapped memory, function bounds, embedded data and symbols, plus
// a list of stops that replay a debugging session.
package target

import (
	"cmp"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/Manu343726/framevars/pkg/utils"
	"gopkg.in/yaml.v3"
)

var ErrBadSnapshot = errors.New("bad snapshot")

// Bytes is a byte string written as hex pairs, optionally separated by
// spaces: "55 8B EC"
type Bytes []byte

func (b *Bytes) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: byte string expected", node.Line)
	}

	decoded, err := hex.DecodeString(strings.Join(strings.Fields(node.Value), ""))
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}

	*b = decoded
	return nil
}

func (b Bytes) MarshalYAML() (any, error) {
	return FormatBytes(b), nil
}

// FormatBytes formats bytes as space separated hex pairs
func FormatBytes(b []byte) string {
	pairs := make([]string, len(b))
	for i, value := range b {
		pairs[i] = fmt.Sprintf("%02X", value)
	}
	return strings.Join(pairs, " ")
}

type Segment struct {
	Address uint64 `yaml:"address"`
	Bytes   Bytes  `yaml:"bytes"`
}

func (s *Segment) End() uint64 {
	return s.Address + uint64(len(s.Bytes))
}

func (s *Segment) Contains(address uint64) bool {
	return address >= s.Address && address < s.End()
}

type Function struct {
	Name  string `yaml:"name"`
	Start uint64 `yaml:"start"`
	End   uint64 `yaml:"end"`
}

func (f *Function) Contains(address uint64) bool {
	return address >= f.Start && address < f.End
}

// DataItem marks bytes inside a function as data
type DataItem struct {
	Address uint64     `yaml:"address"`
	Type    EncodeType `yaml:"type"`
	// Required for types without a natural size (ascii, unicode, junk)
	Size uint64 `yaml:"size,omitempty"`
}

// Span returns the number of bytes the item covers
func (d *DataItem) Span() uint64 {
	if d.Size > 0 {
		return d.Size
	}
	return d.Type.Size()
}

type Write struct {
	Address uint64 `yaml:"address"`
	Bytes   Bytes  `yaml:"bytes"`
}

// Stop is one replayed debugger stop: the registers that changed and the
// memory written since the previous stop
type Stop struct {
	Registers map[string]uint64 `yaml:"registers"`
	Writes    []Write           `yaml:"writes,omitempty"`
}

type Snapshot struct {
	Arch      string            `yaml:"arch"`
	Registers map[string]uint64 `yaml:"registers"`
	Memory    []Segment         `yaml:"memory"`
	Functions []Function        `yaml:"functions"`
	Data      []DataItem        `yaml:"data,omitempty"`
	Symbols   map[uint64]string `yaml:"symbols,omitempty"`
	Stops     []Stop            `yaml:"stops,omitempty"`
}

func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	snapshot, err := ParseSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return snapshot, nil
}

func ParseSnapshot(data []byte) (*Snapshot, error) {
	var snapshot Snapshot
	if err := yaml.Unmarshal(data, &snapshot); err != nil {
		return nil, utils.MakeError(ErrBadSnapshot, "%v", err)
	}

	if err := snapshot.Validate(); err != nil {
		return nil, err
	}

	return &snapshot, nil
}

// Validate checks the snapshot is consistent: functions are non empty and
// memory segments do not overlap
func (s *Snapshot) Validate() error {
	if s.Arch == "" {
		return utils.MakeError(ErrBadSnapshot, "missing arch")
	}

	for _, f := range s.Functions {
		if f.End <= f.Start {
			return utils.MakeError(ErrBadSnapshot, "function '%v' has empty range [0x%X, 0x%X)", f.Name, f.Start, f.End)
		}
	}

	segments := slices.Clone(s.Memory)
	slices.SortFunc(segments, func(a, b Segment) int {
		return cmp.Compare(a.Address, b.Address)
	})
	for i := 1; i < len(segments); i++ {
		if segments[i].Address < segments[i-1].End() {
			return utils.MakeError(ErrBadSnapshot, "memory segments at 0x%X and 0x%X overlap", segments[i-1].Address, segments[i].Address)
		}
	}

	for _, item := range s.Data {
		if item.Type.Known() && item.Span() == 0 {
			return utils.MakeError(ErrBadSnapshot, "data at 0x%X of type %v needs an explicit size", item.Address, item.Type)
		}
	}

	return nil
}

func (s *Snapshot) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}

// FormatReference documents the snapshot format
const FormatReference = `arch: x86                        # x86 or x64
registers:                       # initial register values
  EIP: 0x401005
  EBP: 0x19FF70
memory:                          # mapped segments, hex byte strings
  - {address: 0x401000, bytes: "55 8B EC 8B 45 F8"}
functions:                       # [start, end) ranges
  - {name: main, start: 0x401000, end: 0x401020}
data:                            # data embedded in code
  - {address: 0x401010, type: dword}
  - {address: 0x401014, type: ascii, size: 6}
symbols:
  0x402000: gCounter
stops:                           # replayed stops, applied in order
  - registers: {EIP: 0x401008}
    writes: [{address: 0x19FF68, bytes: "2A 00 00 00"}]
`
