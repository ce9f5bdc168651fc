// Package frame recovers the frame slots ("local variables" and "arguments")
// a function touches by scanning its machine code for [reg ± disp] memory
// operands, and keeps their live values current while the debuggee is
// stopped inside that function.
//
// The analyzer does not know how instructions are decoded, how code is told
// apart from data, where functions begin and end or how expressions are
// evaluated. Those are collaborators described by the interfaces below.
package frame

import "github.com/Manu343726/framevars/pkg/disasm"

// Decoder decodes the instruction at the start of code, which is mapped at
// address. code may extend past the instruction.
type Decoder interface {
	Decode(code []byte, address uint64) (disasm.Instruction, error)
}

// Span classifies the bytes starting at an address
type Span struct {
	// Code is true if the address starts (or may start) an instruction
	Code bool
	// Size of the data span in bytes. Ignored for code.
	Size uint64
}

// CodeClassifier tells code from data embedded in functions
type CodeClassifier interface {
	Classify(address uint64) (Span, error)
}

// FunctionResolver returns the [start, end) range of the function enclosing
// an address
type FunctionResolver interface {
	FunctionAt(address uint64) (start uint64, end uint64, ok bool)
}

type MemoryReader interface {
	ReadMemory(address uint64, size int) ([]byte, error)
}

type MemoryWriter interface {
	WriteMemory(address uint64, data []byte) error
}

// Evaluator evaluates address expressions such as "[EBP-0x8]" against the
// current register and memory state of the debuggee.
type Evaluator interface {
	// Eval returns the numeric value of an expression
	Eval(expression string) (uint64, error)

	// Display returns the text shown for an expression value. The evaluator
	// may decorate the value (e.g. with a symbol name).
	Display(expression string) (string, error)
}

// NameStore keeps user given names for slots across analyses
type NameStore interface {
	Name(function uint64, register string, displacement int64) (string, bool)
	SetName(function uint64, register string, displacement int64, name string) error
}

// Collaborators groups everything the analyzer delegates to
type Collaborators struct {
	Decoder    Decoder
	Classifier CodeClassifier
	Functions  FunctionResolver
	Memory     MemoryReader
	Evaluator  Evaluator

	// Optional. Without a writer WriteValue fails with ErrReadOnly.
	Writer MemoryWriter
	// Optional. Without a store renames last until the next rescan.
	Names NameStore
}
