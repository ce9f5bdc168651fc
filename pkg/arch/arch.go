// Package arch describes the x86 family targets the analyzer understands:
// pointer size, decoder mode and the ordered set of general purpose registers
// that can act as the base of a tracked frame slot.
package arch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Manu343726/framevars/pkg/utils"
	"golang.org/x/arch/x86/x86asm"
)

var (
	ErrUnknownArch     = errors.New("unknown architecture")
	ErrUnknownRegister = errors.New("unknown register")
)

// Index of the frame pointer within the tracked register set. Both targets
// share the same ordering for the first eight registers.
const FramePointerIndex = 4

type RegisterDescriptor struct {
	// Canonical (full width) register name, upper case
	Name string

	// Index within the tracked register set
	Index int

	// Register description (for documentation/debugging)
	Description string

	// Full width decoder register. Narrower registers reached through an
	// address size override are not tracked: they address the truncated value.
	Decoded x86asm.Reg
}

func (d *RegisterDescriptor) String() string {
	return d.Name
}

// Arch describes one target architecture.
type Arch struct {
	Name        string
	Mode        int // x86asm decode mode: 32 or 64
	PointerSize int

	// Tracked register set, in display order
	Registers []*RegisterDescriptor

	InstructionPointer string
	StackPointer       string
	Flags              string

	byDecoded map[x86asm.Reg]int
	byName    map[string]int
	aliases   map[string]string
}

func newArch(name string, mode int, pointerSize int, registers []*RegisterDescriptor, ip, sp, flags string) *Arch {
	a := &Arch{
		Name:               name,
		Mode:               mode,
		PointerSize:        pointerSize,
		Registers:          registers,
		InstructionPointer: ip,
		StackPointer:       sp,
		Flags:              flags,
		byDecoded:          make(map[x86asm.Reg]int, len(registers)),
		byName:             make(map[string]int, len(registers)),
	}

	for i, reg := range registers {
		reg.Index = i
		a.byName[reg.Name] = i
		a.byDecoded[reg.Decoded] = i
	}

	// width independent aliases (CIP, CSP, CBP, ...)
	prefix := registers[0].Name[:1]
	a.aliases = map[string]string{
		"CAX":    prefix + "AX",
		"CBX":    prefix + "BX",
		"CCX":    prefix + "CX",
		"CDX":    prefix + "DX",
		"CBP":    prefix + "BP",
		"CSP":    prefix + "SP",
		"CSI":    prefix + "SI",
		"CDI":    prefix + "DI",
		"CIP":    ip,
		"CFLAGS": flags,
	}

	return a
}

func (a *Arch) String() string {
	return a.Name
}

// FramePointer returns the descriptor of the frame pointer register
func (a *Arch) FramePointer() *RegisterDescriptor {
	return a.Registers[FramePointerIndex]
}

// RegisterIndex maps a decoded base register to its tracked set index
func (a *Arch) RegisterIndex(reg x86asm.Reg) (int, bool) {
	index, ok := a.byDecoded[reg]
	return index, ok
}

// Lookup finds a tracked register by name (case insensitive, aliases allowed)
func (a *Arch) Lookup(name string) (*RegisterDescriptor, error) {
	canonical, ok := a.Canonical(name)
	if ok {
		if index, tracked := a.byName[canonical]; tracked {
			return a.Registers[index], nil
		}
	}

	return nil, utils.MakeError(ErrUnknownRegister, "'%v' is not a general purpose %v register", name, a.Name)
}

// Canonical returns the canonical upper case name of any register the target
// exposes to expressions, resolving aliases.
func (a *Arch) Canonical(name string) (string, bool) {
	name = strings.ToUpper(name)

	if alias, ok := a.aliases[name]; ok {
		return alias, true
	}
	if _, ok := a.byName[name]; ok {
		return name, true
	}
	if name == a.InstructionPointer || name == a.Flags {
		return name, true
	}

	return "", false
}

// RegisterNames returns the names of every register an expression can read
func (a *Arch) RegisterNames() []string {
	names := utils.Map(a.Registers, func(r *RegisterDescriptor) string { return r.Name })
	return append(names, a.InstructionPointer, a.Flags)
}

// Mask truncates a value to the pointer width
func (a *Arch) Mask(value uint64) uint64 {
	if a.PointerSize >= 8 {
		return value
	}

	return value & utils.AllOnes[uint64](utils.Bits(a.PointerSize))
}

// FormatPointer formats a value as upper case hex padded to the pointer width
func (a *Arch) FormatPointer(value uint64) string {
	return fmt.Sprintf("%0*X", a.PointerSize*2, a.Mask(value))
}

var X86 = newArch("x86", 32, 4, []*RegisterDescriptor{
	{Name: "EAX", Description: "Accumulator", Decoded: x86asm.EAX},
	{Name: "EBX", Description: "Base", Decoded: x86asm.EBX},
	{Name: "ECX", Description: "Counter", Decoded: x86asm.ECX},
	{Name: "EDX", Description: "Data", Decoded: x86asm.EDX},
	{Name: "EBP", Description: "Frame pointer", Decoded: x86asm.EBP},
	{Name: "ESP", Description: "Stack pointer", Decoded: x86asm.ESP},
	{Name: "ESI", Description: "Source index", Decoded: x86asm.ESI},
	{Name: "EDI", Description: "Destination index", Decoded: x86asm.EDI},
}, "EIP", "ESP", "EFLAGS")

var X64 = newArch("x64", 64, 8, []*RegisterDescriptor{
	{Name: "RAX", Description: "Accumulator", Decoded: x86asm.RAX},
	{Name: "RBX", Description: "Base", Decoded: x86asm.RBX},
	{Name: "RCX", Description: "Counter", Decoded: x86asm.RCX},
	{Name: "RDX", Description: "Data", Decoded: x86asm.RDX},
	{Name: "RBP", Description: "Frame pointer", Decoded: x86asm.RBP},
	{Name: "RSP", Description: "Stack pointer", Decoded: x86asm.RSP},
	{Name: "RSI", Description: "Source index", Decoded: x86asm.RSI},
	{Name: "RDI", Description: "Destination index", Decoded: x86asm.RDI},
	{Name: "R8", Decoded: x86asm.R8},
	{Name: "R9", Decoded: x86asm.R9},
	{Name: "R10", Decoded: x86asm.R10},
	{Name: "R11", Decoded: x86asm.R11},
	{Name: "R12", Decoded: x86asm.R12},
	{Name: "R13", Decoded: x86asm.R13},
	{Name: "R14", Decoded: x86asm.R14},
	{Name: "R15", Decoded: x86asm.R15},
}, "RIP", "RSP", "RFLAGS")

var supported = map[string]*Arch{
	"x86":    X86,
	"i386":   X86,
	"x32":    X86,
	"x64":    X64,
	"amd64":  X64,
	"x86_64": X64,
}

// ByName returns a supported architecture
func ByName(name string) (*Arch, error) {
	if a, ok := supported[strings.ToLower(name)]; ok {
		return a, nil
	}

	return nil, utils.MakeError(ErrUnknownArch, "'%v' (supported: x86, x64)", name)
}
