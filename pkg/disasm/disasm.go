// Package disasm decodes x86 and x64 machine code into the small instruction
// model the frame analyzer works with.
package disasm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Manu343726/framevars/pkg/arch"
	"github.com/Manu343726/framevars/pkg/utils"
	"golang.org/x/arch/x86/x86asm"
)

// Longest legal x86 instruction is 15 bytes; windows are padded to 16.
const MaxInstructionLength = 16

var ErrDecode = errors.New("cannot decode instruction")

type OperandKind int

const (
	OperandOther OperandKind = iota
	OperandRegister
	OperandImmediate
	OperandMemory
	OperandRelative
)

func (k OperandKind) String() string {
	switch k {
	case OperandRegister:
		return "register"
	case OperandImmediate:
		return "immediate"
	case OperandMemory:
		return "memory"
	case OperandRelative:
		return "relative"
	default:
		return "other"
	}
}

// Operand is one decoded instruction operand. Base and Index are zero when
// the operand has no such register.
type Operand struct {
	Kind         OperandKind
	Register     x86asm.Reg // register operands
	Segment      x86asm.Reg
	Base         x86asm.Reg
	Index        x86asm.Reg
	Scale        uint8
	Displacement int64 // memory displacement or relative branch offset
	Immediate    int64
}

// IsMemory returns true for [base + index*scale + disp] operands
func (o Operand) IsMemory() bool {
	return o.Kind == OperandMemory
}

// Instruction is a decoded instruction
type Instruction struct {
	Address  uint64
	Len      int
	NoOp     bool
	Mnemonic string
	Text     string // Intel syntax
	Operands []Operand
}

// X86Decoder decodes instructions of an x86 family target
type X86Decoder struct {
	arch *arch.Arch
}

func NewX86Decoder(a *arch.Arch) *X86Decoder {
	return &X86Decoder{arch: a}
}

func (d *X86Decoder) Arch() *arch.Arch {
	return d.arch
}

// Decode decodes the instruction at the start of code, which lives at address
func (d *X86Decoder) Decode(code []byte, address uint64) (Instruction, error) {
	inst, err := x86asm.Decode(code, d.arch.Mode)
	if err != nil {
		return Instruction{}, utils.MakeError(ErrDecode, "at 0x%X: %v", address, err)
	}
	if inst.Len <= 0 {
		return Instruction{}, utils.MakeError(ErrDecode, "at 0x%X: zero length instruction", address)
	}

	result := Instruction{
		Address:  address,
		Len:      inst.Len,
		NoOp:     isNoOp(inst, d.arch.Mode),
		Mnemonic: strings.ToLower(inst.Op.String()),
		Text:     x86asm.IntelSyntax(inst, address, nil),
		Operands: make([]Operand, 0, len(inst.Args)),
	}

	for _, arg := range inst.Args {
		if arg == nil {
			break
		}
		result.Operands = append(result.Operands, makeOperand(arg, inst.AddrSize))
	}

	return result, nil
}

func makeOperand(arg x86asm.Arg, addrSize int) Operand {
	switch a := arg.(type) {
	case x86asm.Reg:
		return Operand{Kind: OperandRegister, Register: a}
	case x86asm.Imm:
		return Operand{Kind: OperandImmediate, Immediate: int64(a)}
	case x86asm.Rel:
		return Operand{Kind: OperandRelative, Displacement: int64(a)}
	case x86asm.Mem:
		disp := a.Disp
		if a.Base != 0 {
			disp = signExtendDisplacement(disp, addrSize)
		}
		return Operand{
			Kind:         OperandMemory,
			Segment:      a.Segment,
			Base:         a.Base,
			Index:        a.Index,
			Scale:        a.Scale,
			Displacement: disp,
		}
	default:
		return Operand{Kind: OperandOther}
	}
}

// Base relative displacements never exceed 32 bits; normalize them to the
// signed value the encoding means regardless of address size.
func signExtendDisplacement(disp int64, addrSize int) int64 {
	if addrSize == 16 {
		return int64(int16(disp))
	}
	return int64(int32(disp))
}

// Line is one line of a disassembly listing
type Line struct {
	Address uint64
	Bytes   []byte
	Text    string
	Valid   bool
}

func (l Line) String() string {
	hexBytes := utils.Map(l.Bytes, func(b byte) string { return fmt.Sprintf("%02X", b) })
	return fmt.Sprintf("0x%08X: %-24s %s", l.Address, strings.Join(hexBytes, " "), l.Text)
}

// Disassemble decodes code linearly. Undecodable bytes become single byte
// "db" lines and decoding resumes at the next byte.
func (d *X86Decoder) Disassemble(code []byte, address uint64) []Line {
	var lines []Line
	offset := 0

	for offset < len(code) {
		inst, err := d.Decode(code[offset:], address+uint64(offset))
		if err != nil {
			lines = append(lines, Line{
				Address: address + uint64(offset),
				Bytes:   code[offset : offset+1],
				Text:    fmt.Sprintf("db 0x%02X", code[offset]),
			})
			offset++
			continue
		}

		lines = append(lines, Line{
			Address: inst.Address,
			Bytes:   code[offset : offset+inst.Len],
			Text:    inst.Text,
			Valid:   true,
		})
		offset += inst.Len
	}

	return lines
}
