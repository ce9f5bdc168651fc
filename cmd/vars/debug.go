package vars

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Manu343726/framevars/pkg/arch"
	"github.com/Manu343726/framevars/pkg/debugger"
	"github.com/chzyer/readline"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// =============================================================================
// CLI UI Implementation - Implements debugger.DebuggerUI
// =============================================================================

// cliUI prints debugger output to a terminal
type cliUI struct {
	arch  *arch.Arch
	out   io.Writer
	stops int
}

var _ debugger.DebuggerUI = (*cliUI)(nil)

func (ui *cliUI) OnEvent(event debugger.EventData) {
	switch event.Event {
	case debugger.EventStopped:
		where := colorHiBlack.Sprint("outside any function")
		if event.Function != "" {
			where = "in " + colorFunc.Sprint(event.Function)
		}
		fmt.Fprintf(ui.out, "Stopped at %s %s %s\n",
			colorAddr.Sprint(ui.arch.FormatPointer(event.Address)),
			where,
			colorHiBlack.Sprintf("(stop %d/%d)", event.Stop, ui.stops-1))

	case debugger.EventDebuggingEnded:
		colorSuccess.Fprintf(ui.out, "Debugging ended after stop %d. Type 'restart' to replay.\n", event.Stop)

	case debugger.EventError:
		colorError.Fprintf(ui.out, "Error: %v\n", event.Error)
	}
}

func (ui *cliUI) ShowMessage(level debugger.MessageLevel, format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	switch level {
	case debugger.LevelError:
		colorError.Fprintln(ui.out, message)
	case debugger.LevelWarning:
		colorWarning.Fprintln(ui.out, message)
	case debugger.LevelSuccess:
		colorSuccess.Fprintln(ui.out, message)
	case debugger.LevelDebug:
		colorHiBlack.Fprintln(ui.out, message)
	default:
		fmt.Fprintln(ui.out, message)
	}
}

func (ui *cliUI) ShowVariables(result debugger.VariablesResult) {
	writeRows(ui.out, ui.arch, result)
}

func (ui *cliUI) ShowRegisters(regs []debugger.RegisterInfo) {
	colorHeader.Fprintln(ui.out, "Registers:")
	for _, reg := range regs {
		marker := "  "
		if reg.Tracked {
			marker = colorPC.Sprint("* ")
		}
		fmt.Fprintf(ui.out, "  %s%s = %s\n",
			marker,
			colorReg.Sprintf("%-6s", reg.Name),
			colorValue.Sprint(ui.arch.FormatPointer(reg.Value)))
	}
}

func (ui *cliUI) ShowDisassembly(instructions []debugger.InstructionInfo) {
	if len(instructions) == 0 {
		return
	}

	fmt.Fprintf(ui.out, "Disassembly at %s:\n", colorAddr.Sprint(ui.arch.FormatPointer(instructions[0].Address)))
	for _, instr := range instructions {
		marker := "  "
		if instr.IsCurrentIP {
			marker = colorPC.Sprint("=>")
		}

		bytes := strings.Join(lo.Map(instr.RawBytes, func(b byte, _ int) string { return fmt.Sprintf("%02X", b) }), " ")
		text := colorInstr.Sprint(instr.Text)
		if !instr.Valid {
			text = colorHiBlack.Sprint(instr.Text)
		}

		fmt.Fprintf(ui.out, "%s %s: %s %s\n",
			marker,
			colorAddr.Sprint(ui.arch.FormatPointer(instr.Address)),
			colorHiBlack.Sprintf("%-30s", bytes),
			text)
	}
}

func (ui *cliUI) ShowEvalResult(result debugger.EvalResult) {
	if result.Error != nil {
		colorError.Fprintf(ui.out, "Error: %v\n", result.Error)
		return
	}
	fmt.Fprintf(ui.out, "%s = %s (%s)\n",
		colorValue.Sprint(result.Expression),
		colorValue.Sprint(result.Display),
		colorHiBlack.Sprintf("%d", result.Value))
}

func (ui *cliUI) ShowHelp(commands []debugger.CommandHelp) {
	colorHeader.Fprintln(ui.out, "Framevars Debugger Commands:")
	fmt.Fprintln(ui.out)

	for _, cmd := range commands {
		aliases := ""
		if len(cmd.Aliases) > 0 {
			aliases = ", " + strings.Join(cmd.Aliases, ", ")
		}
		fmt.Fprintf(ui.out, "  %s - %s\n      %s\n",
			colorInstr.Sprint(cmd.Name+aliases),
			cmd.Description,
			colorHiBlack.Sprint(cmd.Usage))
	}

	fmt.Fprintln(ui.out)
	fmt.Fprintln(ui.out, "Rows are numbered as shown by 'vars'. Numbers are hex, prefix decimals with '.'.")
	fmt.Fprintln(ui.out, "Press Enter to repeat the last command.")
}

var debugCmd = &cobra.Command{
	Use:   "debug <snapshot>",
	Short: "Replay a snapshot in an interactive debugger",
	Long: `Interactive debugger over a process snapshot. The frame view is refreshed on
every stop.

Commands:
  next, n              - Go to the next recorded stop
  stop, s <expr>       - Stop at an address
  restart              - Replay from the first stop
  end                  - End the debugging session
  vars, v              - Show the frame slots of the current function
  base, b [reg...]     - Toggle slot base registers
  rename <row> <name>  - Rename a frame slot
  edit <row> <expr>    - Write a value into a frame slot
  addr <row>           - Show the address of a frame slot
  regs, r              - Show registers
  eval, e, ? <expr>    - Evaluate expression
  disasm, x [expr] [n] - Disassemble n instructions
  help, h              - Show help
  quit, q              - Exit debugger`,
	Args: cobra.ExactArgs(1),
	Run:  runDebug,
}

func init() {
	VarsCmd.AddCommand(debugCmd)
}

func runDebug(cmd *cobra.Command, args []string) {
	s, err := openSession(args[0])
	if err != nil {
		fatal(1, "loading snapshot: %v", err)
	}
	defer s.Close()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          colorPrompt.Sprint("(framevars) "),
		HistoryFile:     getHistoryFilePath(),
		AutoComplete:    commandCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		fatal(2, "starting readline: %v", err)
	}
	defer rl.Close()

	ui := &cliUI{arch: s.target.Arch(), out: rl.Stdout(), stops: s.backend.Stops()}
	controller := debugger.NewController(s.backend, s.analyzer, ui, nil)

	fmt.Fprintf(ui.out, "Loaded %s snapshot with %d functions and %d stops\n",
		colorValue.Sprint(s.target.Arch().Name),
		len(s.target.Functions()),
		s.backend.Stops())
	colorSuccess.Fprintln(ui.out, "Type 'help' for available commands.")
	fmt.Fprintln(ui.out)

	controller.Start()

	for controller.IsRunning() {
		input, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			colorWarning.Fprintln(ui.out, "Use 'quit' or 'exit' to leave the debugger.")
			continue
		}
		if errors.Is(err, io.EOF) {
			colorSuccess.Fprintln(ui.out, "Exiting debugger.")
			break
		}
		if err != nil {
			colorError.Fprintf(ui.out, "Error reading input: %v\n", err)
			break
		}

		input = strings.TrimSpace(input)
		if input == "" {
			input = controller.LastCommand()
		}
		if input != "" {
			controller.SetLastCommand(input)
			controller.Execute(input)
		}
	}
}

func commandCompleter() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(lo.Map(debugger.CommandNames(), func(name string, _ int) readline.PrefixCompleterInterface {
		return readline.PcItem(name)
	})...)
}

// getHistoryFilePath returns the path to the debugger history file
func getHistoryFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".framevars_history"
	}
	return filepath.Join(homeDir, ".framevars_history")
}
