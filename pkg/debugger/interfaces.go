// Package debugger drives a replayed debugging session over a process
// snapshot and keeps the frame analysis in sync with it. It separates the
// session logic from the presentation layer, so the REPL and the TUI share
// the same core.
package debugger

import "github.com/Manu343726/framevars/pkg/frame"

// DebugEvent represents events that can be sent to the UI
type DebugEvent int

const (
	// EventStopped is fired when the debuggee stops (session start, next
	// stop, or a manual stop at an address)
	EventStopped DebugEvent = iota
	// EventDebuggingEnded is fired when the session runs out of stops or is
	// ended by the user
	EventDebuggingEnded
	// EventError is fired when a command fails
	EventError
)

// String returns the string representation of a DebugEvent
func (e DebugEvent) String() string {
	switch e {
	case EventStopped:
		return "stopped"
	case EventDebuggingEnded:
		return "debugging_ended"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// EventData contains data associated with a debug event
type EventData struct {
	Event DebugEvent
	// Index of the replayed stop
	Stop int
	// Instruction pointer at the stop
	Address uint64
	// Enclosing function name, empty if the address is outside any function
	Function string
	// Error if any
	Error error
}

// RegisterInfo contains information about a register
type RegisterInfo struct {
	Name    string
	Value   uint64
	Tracked bool // used as a frame slot base
}

// InstructionInfo contains information about an instruction
type InstructionInfo struct {
	Address     uint64
	RawBytes    []byte
	Text        string
	Valid       bool
	IsCurrentIP bool
}

// VariablesResult is the frame view at the current stop
type VariablesResult struct {
	Function  string
	Start     uint64
	End       uint64
	Analyzed  bool
	Registers []string
	Rows      []frame.SlotRow
}

// EvalResult contains expression evaluation results
type EvalResult struct {
	Expression string
	Value      uint64
	Display    string
	Error      error
}

// MessageLevel indicates the severity of a message
type MessageLevel int

const (
	LevelInfo MessageLevel = iota
	LevelSuccess
	LevelWarning
	LevelError
	LevelDebug
)

// CommandHelp contains help information for a command
type CommandHelp struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
}

// DebuggerUI is the interface that presentation layers must implement.
type DebuggerUI interface {
	// OnEvent is called when a debug event occurs
	OnEvent(event EventData)

	// ShowMessage displays a message to the user
	ShowMessage(level MessageLevel, format string, args ...any)

	// ShowVariables displays the frame slots of the current function
	ShowVariables(result VariablesResult)

	// ShowRegisters displays register values
	ShowRegisters(regs []RegisterInfo)

	// ShowDisassembly displays disassembled instructions
	ShowDisassembly(instructions []InstructionInfo)

	// ShowEvalResult displays the result of an expression evaluation
	ShowEvalResult(result EvalResult)

	// ShowHelp displays help information
	ShowHelp(commands []CommandHelp)
}
