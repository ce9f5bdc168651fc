package debugger

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Manu343726/framevars/pkg/frame"
	"github.com/Manu343726/framevars/pkg/utils"
)

var ErrUsage = errors.New("usage")

const defaultDisasmCount = 8

// Controller coordinates between the debugger backend, the frame analyzer
// and the UI. It implements the command processing logic while delegating
// presentation to the UI interface.
type Controller struct {
	backend     *Backend
	analyzer    *frame.Analyzer
	ui          DebuggerUI
	logger      *slog.Logger
	running     bool
	lastCommand string
}

func NewController(backend *Backend, analyzer *frame.Analyzer, ui DebuggerUI, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{
		backend:  backend,
		analyzer: analyzer,
		ui:       ui,
		logger:   logger.With("component", "controller"),
		running:  true,
	}
}

// Backend returns the underlying backend
func (c *Controller) Backend() *Backend {
	return c.backend
}

func (c *Controller) Analyzer() *frame.Analyzer {
	return c.analyzer
}

// UI returns the UI interface
func (c *Controller) UI() DebuggerUI {
	return c.ui
}

// IsRunning returns true until the user quits
func (c *Controller) IsRunning() bool {
	return c.running
}

// SetLastCommand sets the last command (for command repetition)
func (c *Controller) SetLastCommand(cmd string) {
	c.lastCommand = cmd
}

// LastCommand returns the last command
func (c *Controller) LastCommand() string {
	return c.lastCommand
}

// Start moves the session to its first stop
func (c *Controller) Start() {
	if err := c.backend.Stop(0); err != nil {
		c.fail(err)
		return
	}
	c.stopped()
}

// Variables refreshes the analysis at the current stop
func (c *Controller) Variables() VariablesResult {
	if !c.backend.Running() {
		return VariablesResult{Registers: c.analyzer.TrackedRegisters().Names(c.backend.Arch())}
	}

	ip := c.backend.InstructionPointer()
	rows := c.analyzer.Refresh(ip)
	return c.variablesResult(rows)
}

func (c *Controller) variablesResult(rows []frame.SlotRow) VariablesResult {
	result := VariablesResult{
		Registers: c.analyzer.TrackedRegisters().Names(c.backend.Arch()),
		Rows:      rows,
	}
	result.Start, result.End, result.Analyzed = c.analyzer.Function()
	if result.Analyzed {
		result.Function, _ = c.backend.FunctionName(result.Start)
	}
	return result
}

// stopped notifies a stop and shows the refreshed frame
func (c *Controller) stopped() {
	ip := c.backend.InstructionPointer()
	function, _ := c.backend.FunctionName(ip)

	c.ui.OnEvent(EventData{
		Event:    EventStopped,
		Stop:     c.backend.CurrentStop(),
		Address:  ip,
		Function: function,
	})
	c.ui.ShowVariables(c.Variables())
}

func (c *Controller) ended() {
	c.analyzer.OnDebuggingEnded()
	c.ui.OnEvent(EventData{
		Event: EventDebuggingEnded,
		Stop:  c.backend.CurrentStop(),
	})
}

func (c *Controller) fail(err error) {
	c.logger.Debug("command failed", "error", err)
	c.ui.OnEvent(EventData{Event: EventError, Error: err})
}

func (c *Controller) requireRunning() bool {
	if !c.backend.Running() {
		c.fail(ErrDebuggingEnded)
		return false
	}
	return true
}

// --- Command Implementations ---

// CmdNext moves to the next recorded stop
func (c *Controller) CmdNext() {
	if !c.requireRunning() {
		return
	}

	ok, err := c.backend.Next()
	if err != nil {
		c.fail(err)
		return
	}
	if !ok {
		c.ended()
		return
	}

	c.stopped()
}

// CmdStop stops the debuggee at an arbitrary address
func (c *Controller) CmdStop(expr string) {
	if !c.requireRunning() {
		return
	}

	address, err := c.backend.EvalExpression(expr)
	if err != nil {
		c.fail(err)
		return
	}
	if err := c.backend.SetInstructionPointer(address); err != nil {
		c.fail(err)
		return
	}

	c.stopped()
}

// CmdRestart replays the session from the first stop
func (c *Controller) CmdRestart() {
	c.analyzer.OnDebuggingEnded()
	c.Start()
}

func (c *Controller) CmdVars() {
	c.ui.ShowVariables(c.Variables())
}

func (c *Controller) CmdRegisters() {
	c.ui.ShowRegisters(c.backend.Registers(c.analyzer.TrackedRegisters()))
}

// CmdBase toggles a register as slot base. Without arguments it shows the
// tracked registers.
func (c *Controller) CmdBase(names []string) {
	mask := c.analyzer.TrackedRegisters()
	for _, name := range names {
		reg, err := c.backend.Arch().Lookup(name)
		if err != nil {
			c.fail(err)
			return
		}
		mask = mask.Toggle(reg.Index)
	}

	c.analyzer.SetTrackedRegisters(mask)
	c.ui.ShowMessage(LevelInfo, "tracked registers: %s", utils.FormatSlice(mask.Names(c.backend.Arch()), ", "))
	if len(names) > 0 && c.backend.Running() {
		c.CmdVars()
	}
}

// CmdRename renames a row of the frame view
func (c *Controller) CmdRename(row int, name string) {
	if err := c.analyzer.Rename(row, name); err != nil {
		c.fail(err)
		return
	}
	c.CmdVars()
}

// CmdEdit writes the value of an expression into a row slot
func (c *Controller) CmdEdit(row int, expr string) {
	value, err := c.backend.EvalExpression(expr)
	if err != nil {
		c.fail(err)
		return
	}

	if err := c.analyzer.WriteValue(row, value); err != nil {
		c.fail(err)
		return
	}
	c.CmdVars()
}

// CmdAddress shows the address of a row slot
func (c *Controller) CmdAddress(row int) {
	address, err := c.analyzer.RowAddress(row)
	rows := c.analyzer.Rows()

	result := EvalResult{Value: address, Error: err}
	if row >= 0 && row < len(rows) {
		result.Expression = "&" + rows[row].Name
	}
	if err == nil {
		result.Display = c.backend.Evaluator().Format(address)
	}
	c.ui.ShowEvalResult(result)
}

func (c *Controller) CmdEval(expr string) {
	value, err := c.backend.EvalExpression(expr)
	result := EvalResult{Expression: expr, Value: value, Error: err}
	if err == nil {
		result.Display = c.backend.Evaluator().Format(value)
	}
	c.ui.ShowEvalResult(result)
}

func (c *Controller) CmdDisasm(address uint64, count int) {
	instructions, err := c.backend.Disassemble(address, count)
	if err != nil {
		c.fail(err)
		return
	}
	c.ui.ShowDisassembly(instructions)
}

// CmdEnd ends the session
func (c *Controller) CmdEnd() {
	if !c.requireRunning() {
		return
	}
	c.backend.End()
	c.ended()
}

func (c *Controller) CmdHelp() {
	c.ui.ShowHelp(Commands())
}

// CmdQuit leaves the debugger
func (c *Controller) CmdQuit() {
	c.running = false
}

// Commands lists the commands understood by Execute
func Commands() []CommandHelp {
	return []CommandHelp{
		{Name: "next", Aliases: []string{"n"}, Description: "Go to the next recorded stop", Usage: "next"},
		{Name: "stop", Aliases: []string{"s"}, Description: "Stop at an address", Usage: "stop <expr>"},
		{Name: "restart", Description: "Replay from the first stop", Usage: "restart"},
		{Name: "end", Description: "End the debugging session", Usage: "end"},
		{Name: "vars", Aliases: []string{"v"}, Description: "Show the frame slots of the current function", Usage: "vars"},
		{Name: "base", Aliases: []string{"b"}, Description: "Toggle slot base registers", Usage: "base [reg...]"},
		{Name: "rename", Description: "Rename a frame slot", Usage: "rename <row> <name>"},
		{Name: "edit", Description: "Write a value into a frame slot", Usage: "edit <row> <expr>"},
		{Name: "addr", Description: "Show the address of a frame slot", Usage: "addr <row>"},
		{Name: "regs", Aliases: []string{"r"}, Description: "Show registers", Usage: "regs"},
		{Name: "eval", Aliases: []string{"e", "?"}, Description: "Evaluate expression", Usage: "eval <expr>"},
		{Name: "disasm", Aliases: []string{"x"}, Description: "Disassemble", Usage: "disasm [expr] [n]"},
		{Name: "help", Aliases: []string{"h"}, Description: "Show help", Usage: "help"},
		{Name: "quit", Aliases: []string{"q", "exit"}, Description: "Exit debugger", Usage: "quit"},
	}
}

// CommandNames returns every command name and alias, for completion
func CommandNames() []string {
	var names []string
	for _, cmd := range Commands() {
		names = append(names, cmd.Name)
		names = append(names, cmd.Aliases...)
	}
	return names
}

// Execute parses and runs one command line
func (c *Controller) Execute(line string) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return
	}

	cmd := strings.ToLower(parts[0])
	args := parts[1:]
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), parts[0]))

	switch cmd {
	case "next", "n":
		c.CmdNext()

	case "stop", "s":
		if rest == "" {
			c.usage("stop <expr>")
			return
		}
		c.CmdStop(rest)

	case "restart":
		c.CmdRestart()

	case "end":
		c.CmdEnd()

	case "vars", "v":
		c.CmdVars()

	case "base", "b":
		c.CmdBase(args)

	case "rename":
		row, ok := c.parseRow(args, 2, "rename <row> <name>")
		if !ok {
			return
		}
		c.CmdRename(row, strings.Join(args[1:], " "))

	case "edit":
		row, ok := c.parseRow(args, 2, "edit <row> <expr>")
		if !ok {
			return
		}
		c.CmdEdit(row, strings.Join(args[1:], " "))

	case "addr":
		row, ok := c.parseRow(args, 1, "addr <row>")
		if !ok {
			return
		}
		c.CmdAddress(row)

	case "regs", "r":
		c.CmdRegisters()

	case "eval", "e", "?":
		if rest == "" {
			c.usage("eval <expr>")
			return
		}
		c.CmdEval(rest)

	case "disasm", "x":
		address := c.backend.InstructionPointer()
		count := defaultDisasmCount
		if len(args) > 0 {
			var err error
			if address, err = c.backend.EvalExpression(args[0]); err != nil {
				c.fail(err)
				return
			}
		}
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n <= 0 {
				c.usage("disasm [expr] [n]")
				return
			}
			count = n
		}
		c.CmdDisasm(address, count)

	case "help", "h":
		c.CmdHelp()

	case "quit", "q", "exit":
		c.CmdQuit()

	default:
		c.ui.ShowMessage(LevelError, "Unknown command: %s. Type 'help' for available commands.", cmd)
	}
}

func (c *Controller) parseRow(args []string, required int, usage string) (int, bool) {
	if len(args) < required {
		c.usage(usage)
		return 0, false
	}

	row, err := strconv.Atoi(args[0])
	if err != nil {
		c.usage(usage)
		return 0, false
	}
	return row, true
}

func (c *Controller) usage(text string) {
	c.fail(utils.MakeError(ErrUsage, "%s", text))
}
