package frame

import (
	"log/slog"
	"strings"

	"github.com/Manu343726/framevars/pkg/arch"
	"github.com/Manu343726/framevars/pkg/utils"
)

// RegisterMask selects tracked registers by their index in the architecture
// register set
type RegisterMask uint32

// FramePointerOnly is the default mask
const FramePointerOnly RegisterMask = 1 << arch.FramePointerIndex

func MaskOf(indices ...int) RegisterMask {
	var mask RegisterMask
	for _, index := range indices {
		mask |= 1 << index
	}
	return mask
}

func (m RegisterMask) Has(index int) bool {
	return index >= 0 && index < 32 && m&(1<<index) != 0
}

// Toggle flips one register
func (m RegisterMask) Toggle(index int) RegisterMask {
	return m ^ (1 << index)
}

// Names returns the names of the enabled registers of an architecture, in
// register set order
func (m RegisterMask) Names(a *arch.Arch) []string {
	var names []string
	for _, reg := range a.Registers {
		if m.Has(reg.Index) {
			names = append(names, reg.Name)
		}
	}
	return names
}

// ParseRegisterMask builds a mask from register names
func ParseRegisterMask(a *arch.Arch, names []string) (RegisterMask, error) {
	var mask RegisterMask
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		reg, err := a.Lookup(name)
		if err != nil {
			return 0, err
		}
		mask |= 1 << reg.Index
	}
	return mask, nil
}

// Presentation controls how slot expressions are rendered
type Presentation struct {
	// Prefix hex displacements with 0x
	HexPrefix bool
	// Surround the displacement sign with spaces: [EBP - 0x8]
	MemorySpaces bool
}

func DefaultPresentation() Presentation {
	return Presentation{HexPrefix: true}
}

type Config struct {
	Arch         *arch.Arch
	Registers    RegisterMask
	Presentation Presentation
	Logger       *slog.Logger
}

func DefaultConfig(a *arch.Arch) Config {
	return Config{
		Arch:         a,
		Registers:    FramePointerOnly,
		Presentation: DefaultPresentation(),
	}
}

// String returns a human readable summary of the enabled registers
func (c Config) String() string {
	return "[" + utils.FormatSlice(c.Registers.Names(c.Arch), ", ") + "]"
}
