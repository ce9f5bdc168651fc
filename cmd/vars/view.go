package vars

import (
	"fmt"
	"strings"

	"github.com/Manu343726/framevars/pkg/arch"
	"github.com/Manu343726/framevars/pkg/debugger"
	"github.com/Manu343726/framevars/pkg/frame"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/spf13/cobra"
)

const viewKeys = "[::b]n[::-] next  [::b]r[::-] restart  [::b]b[::-] next base register  [::b]a[::-] slot address  [::b]q[::-] quit"

// viewUI renders the debugger state into tview widgets. It is only touched
// from the application event loop.
type viewUI struct {
	arch  *arch.Arch
	stops int

	header *tview.TextView
	table  *tview.Table
	status *tview.TextView
}

var _ debugger.DebuggerUI = (*viewUI)(nil)

func newViewUI(a *arch.Arch, stops int) *viewUI {
	ui := &viewUI{
		arch:   a,
		stops:  stops,
		header: tview.NewTextView().SetDynamicColors(true),
		table:  tview.NewTable().SetSelectable(true, false).SetFixed(1, 0),
		status: tview.NewTextView().SetDynamicColors(true),
	}
	ui.table.SetBorder(true)
	ui.table.SetTitle(" Frame ")
	ui.status.SetText(viewKeys)
	return ui
}

func (ui *viewUI) OnEvent(event debugger.EventData) {
	switch event.Event {
	case debugger.EventStopped:
		function := "[gray]outside any function[-]"
		if event.Function != "" {
			function = "[fuchsia::b]" + tview.Escape(event.Function) + "[-::-]"
		}
		ui.header.SetText(fmt.Sprintf("Stop [::b]%d[::-]/%d  IP [aqua]%s[-]  %s",
			event.Stop, ui.stops-1, ui.arch.FormatPointer(event.Address), function))
		ui.status.SetText(viewKeys)

	case debugger.EventDebuggingEnded:
		ui.header.SetText(fmt.Sprintf("Stop [::b]%d[::-]/%d  [yellow]debugging ended[-]", event.Stop, ui.stops-1))
		ui.table.Clear()
		ui.status.SetText("[yellow]Debugging ended.[-] Press r to replay or q to quit.")

	case debugger.EventError:
		ui.status.SetText("[red::b]Error:[-::-] " + tview.Escape(event.Error.Error()))
	}
}

func (ui *viewUI) ShowMessage(level debugger.MessageLevel, format string, args ...any) {
	text := tview.Escape(fmt.Sprintf(format, args...))
	switch level {
	case debugger.LevelError:
		text = "[red]" + text + "[-]"
	case debugger.LevelWarning:
		text = "[yellow]" + text + "[-]"
	case debugger.LevelSuccess:
		text = "[green]" + text + "[-]"
	}
	ui.status.SetText(text)
}

func (ui *viewUI) ShowVariables(result debugger.VariablesResult) {
	ui.table.Clear()
	ui.table.SetTitle(" Frame ")

	if !result.Analyzed {
		return
	}
	ui.table.SetTitle(fmt.Sprintf(" %s  tracking %s ", functionTitle(ui.arch, result), strings.Join(result.Registers, ", ")))

	for col, title := range []string{"#", "Name", "Expression", "Value"} {
		ui.table.SetCell(0, col, tview.NewTableCell(title).
			SetTextColor(tcell.ColorWhite).
			SetAttributes(tcell.AttrBold|tcell.AttrUnderline).
			SetSelectable(false))
	}

	for i, row := range result.Rows {
		nameColor := tcell.ColorLightCyan
		if row.Register == ui.arch.FramePointer().Index {
			nameColor = tcell.ColorLightGreen
			if row.Displacement >= 0 {
				nameColor = tcell.ColorLightYellow
			}
		}
		valueColor := tcell.ColorWhite
		if row.Value == frame.InvalidValue {
			valueColor = tcell.ColorRed
		}

		ui.table.SetCell(i+1, 0, tview.NewTableCell(fmt.Sprint(i)).SetTextColor(tcell.ColorGray))
		ui.table.SetCell(i+1, 1, tview.NewTableCell(row.Name).SetTextColor(nameColor))
		ui.table.SetCell(i+1, 2, tview.NewTableCell(row.Expression).SetTextColor(tcell.ColorGreen))
		ui.table.SetCell(i+1, 3, tview.NewTableCell(row.Value).SetTextColor(valueColor).SetExpansion(1))
	}
}

func (ui *viewUI) ShowRegisters(regs []debugger.RegisterInfo) {
	parts := make([]string, len(regs))
	for i, reg := range regs {
		parts[i] = reg.Name + "=" + ui.arch.FormatPointer(reg.Value)
	}
	ui.status.SetText(strings.Join(parts, " "))
}

func (ui *viewUI) ShowDisassembly(instructions []debugger.InstructionInfo) {
	if len(instructions) > 0 {
		ui.status.SetText(ui.arch.FormatPointer(instructions[0].Address) + "  " + tview.Escape(instructions[0].Text))
	}
}

func (ui *viewUI) ShowEvalResult(result debugger.EvalResult) {
	if result.Error != nil {
		ui.status.SetText("[red::b]Error:[-::-] " + tview.Escape(result.Error.Error()))
		return
	}
	ui.status.SetText(fmt.Sprintf("%s = [::b]%s[::-]", tview.Escape(result.Expression), tview.Escape(result.Display)))
}

func (ui *viewUI) ShowHelp(commands []debugger.CommandHelp) {
	ui.status.SetText(viewKeys)
}

// selectedRow returns the frame row under the cursor
func (ui *viewUI) selectedRow() int {
	row, _ := ui.table.GetSelection()
	return row - 1
}

var viewCmd = &cobra.Command{
	Use:   "view <snapshot>",
	Short: "Browse the frame slots of a snapshot in a terminal UI",
	Long: `Full screen frame view over a process snapshot.

Keys:
  n    - Go to the next recorded stop
  r    - Replay from the first stop
  b    - Track the next register of the register set
  a    - Show the address of the selected slot
  q    - Quit`,
	Args: cobra.ExactArgs(1),
	Run:  runView,
}

func init() {
	VarsCmd.AddCommand(viewCmd)
}

// handleViewKey runs the command bound to a key. Returns false to quit.
func handleViewKey(c *debugger.Controller, ui *viewUI, key rune) bool {
	switch key {
	case 'n':
		c.Execute("next")
	case 'r':
		c.Execute("restart")
	case 'b':
		a := c.Backend().Arch()
		next := nextTrackedMask(a, c.Analyzer().TrackedRegisters())
		c.Analyzer().SetTrackedRegisters(next)
		c.CmdVars()
	case 'a':
		c.CmdAddress(ui.selectedRow())
	case 'q':
		c.CmdQuit()
	}
	return c.IsRunning()
}

func runView(cmd *cobra.Command, args []string) {
	s, err := openSession(args[0])
	if err != nil {
		fatal(1, "loading snapshot: %v", err)
	}
	defer s.Close()

	ui := newViewUI(s.target.Arch(), s.backend.Stops())
	controller := debugger.NewController(s.backend, s.analyzer, ui, nil)
	controller.Start()

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(ui.header, 1, 0, false).
		AddItem(ui.table, 0, 1, true).
		AddItem(ui.status, 1, 0, false)

	app := tview.NewApplication()
	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape {
			app.Stop()
			return nil
		}
		if event.Key() != tcell.KeyRune {
			return event
		}

		if !handleViewKey(controller, ui, event.Rune()) {
			app.Stop()
		}
		return nil
	})

	if err := app.SetRoot(layout, true).Run(); err != nil {
		fatal(3, "%v", err)
	}
}
