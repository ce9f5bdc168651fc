package debugger

import (
	"fmt"
	"testing"

	"github.com/Manu343726/framevars/pkg/frame"
	"github.com/Manu343726/framevars/pkg/target"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingUI keeps everything the controller shows
type recordingUI struct {
	events       []EventData
	messages     []string
	variables    []VariablesResult
	registers    [][]RegisterInfo
	disassembly  [][]InstructionInfo
	evalResults  []EvalResult
	helpCommands []CommandHelp
}

func (ui *recordingUI) OnEvent(event EventData) {
	ui.events = append(ui.events, event)
}

func (ui *recordingUI) ShowMessage(level MessageLevel, format string, args ...any) {
	ui.messages = append(ui.messages, fmt.Sprintf(format, args...))
}

func (ui *recordingUI) ShowVariables(result VariablesResult) {
	ui.variables = append(ui.variables, result)
}

func (ui *recordingUI) ShowRegisters(regs []RegisterInfo) {
	ui.registers = append(ui.registers, regs)
}

func (ui *recordingUI) ShowDisassembly(instructions []InstructionInfo) {
	ui.disassembly = append(ui.disassembly, instructions)
}

func (ui *recordingUI) ShowEvalResult(result EvalResult) {
	ui.evalResults = append(ui.evalResults, result)
}

func (ui *recordingUI) ShowHelp(commands []CommandHelp) {
	ui.helpCommands = commands
}

func (ui *recordingUI) lastEvent() EventData {
	return ui.events[len(ui.events)-1]
}

func (ui *recordingUI) lastVariables() VariablesResult {
	return ui.variables[len(ui.variables)-1]
}

var _ DebuggerUI = (*recordingUI)(nil)

func newTestController(t *testing.T) (*Controller, *recordingUI) {
	t.Helper()

	tgt, err := target.Load("../target/testdata/frame.yaml")
	require.NoError(t, err)

	backend := NewBackend(tgt, nil)
	analyzer := frame.NewAnalyzer(frame.DefaultConfig(tgt.Arch()), backend.Collaborators(nil))
	ui := &recordingUI{}
	c := NewController(backend, analyzer, ui, nil)
	c.Start()
	return c, ui
}

func rowSummary(rows []frame.SlotRow) []string {
	summary := make([]string, len(rows))
	for i, row := range rows {
		summary[i] = row.Name + "=" + row.Value
	}
	return summary
}

func TestControllerStart(t *testing.T) {
	_, ui := newTestController(t)

	require.Len(t, ui.events, 1)
	assert.Equal(t, EventStopped, ui.events[0].Event)
	assert.Equal(t, uint64(0x401006), ui.events[0].Address)
	assert.Equal(t, "main", ui.events[0].Function)

	vars := ui.lastVariables()
	assert.True(t, vars.Analyzed)
	assert.Equal(t, "main", vars.Function)
	assert.Equal(t, uint64(0x401000), vars.Start)
	assert.Equal(t, uint64(0x401021), vars.End)
	assert.Equal(t, []string{"EBP"}, vars.Registers)
	assert.Equal(t, []string{
		"Arg2=00000005",
		"Arg1=00000003",
		"Local1=00000000",
		"Local2=00000000",
	}, rowSummary(vars.Rows))
}

func TestControllerReplay(t *testing.T) {
	c, ui := newTestController(t)

	c.Execute("next")
	c.Execute("n")
	assert.Equal(t, []string{
		"Arg2=00000005",
		"Arg1=00000003",
		"Local1=00000003",
		"Local2=00000000",
	}, rowSummary(ui.lastVariables().Rows))

	c.Execute("next")
	assert.Equal(t, "Local2=00000005", rowSummary(ui.lastVariables().Rows)[3])

	// into helper, whose frame is not mapped
	c.Execute("next")
	vars := ui.lastVariables()
	assert.Equal(t, "helper", vars.Function)
	assert.Equal(t, []string{"Arg1=" + frame.InvalidValue}, rowSummary(vars.Rows))

	// outside any function
	c.Execute("next")
	assert.Equal(t, EventStopped, ui.lastEvent().Event)
	assert.Empty(t, ui.lastEvent().Function)
	assert.False(t, ui.lastVariables().Analyzed)
	assert.Empty(t, ui.lastVariables().Rows)

	c.Execute("next")
	assert.Equal(t, EventDebuggingEnded, ui.lastEvent().Event)
	assert.False(t, c.Backend().Running())

	c.Execute("next")
	assert.Equal(t, EventError, ui.lastEvent().Event)
	assert.ErrorIs(t, ui.lastEvent().Error, ErrDebuggingEnded)

	c.Execute("restart")
	assert.Equal(t, EventStopped, ui.lastEvent().Event)
	assert.Equal(t, 0, ui.lastEvent().Stop)
	assert.Len(t, ui.lastVariables().Rows, 4)
}

func TestControllerEnd(t *testing.T) {
	c, ui := newTestController(t)

	c.Execute("end")
	assert.Equal(t, EventDebuggingEnded, ui.lastEvent().Event)
	assert.Empty(t, c.Analyzer().Rows())

	c.Execute("vars")
	assert.Empty(t, ui.lastVariables().Rows)
}

func TestControllerStop(t *testing.T) {
	c, ui := newTestController(t)

	c.Execute("stop helper+3")
	assert.Equal(t, uint64(0x401103), ui.lastEvent().Address)
	assert.Equal(t, "helper", ui.lastVariables().Function)

	c.Execute("stop")
	assert.ErrorIs(t, ui.lastEvent().Error, ErrUsage)
}

func TestControllerBase(t *testing.T) {
	c, ui := newTestController(t)

	c.Execute("base ecx")
	assert.Equal(t, "tracked registers: ECX, EBP", ui.messages[len(ui.messages)-1])
	assert.Equal(t, []string{"ECX", "EBP"}, ui.lastVariables().Registers)

	c.Execute("base ECX EBP")
	assert.Empty(t, ui.lastVariables().Rows)

	c.Execute("base xmm0")
	assert.Equal(t, EventError, ui.lastEvent().Event)
}

func TestControllerRowCommands(t *testing.T) {
	c, ui := newTestController(t)

	c.Execute("rename 2 total")
	assert.Equal(t, "total=00000000", rowSummary(ui.lastVariables().Rows)[2])

	c.Execute("addr 2")
	result := ui.evalResults[len(ui.evalResults)-1]
	require.NoError(t, result.Error)
	assert.Equal(t, "&total", result.Expression)
	assert.Equal(t, uint64(0x19FF6C), result.Value)

	c.Execute("edit 2 .42")
	assert.Equal(t, "total=0000002A", rowSummary(ui.lastVariables().Rows)[2])
	value, err := c.Backend().Target().ReadPointer(0x19FF6C)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), value)

	c.Execute("edit 9 1")
	assert.ErrorIs(t, ui.lastEvent().Error, frame.ErrNoSuchRow)

	c.Execute("rename x y")
	assert.ErrorIs(t, ui.lastEvent().Error, ErrUsage)

	c.Execute("addr")
	assert.ErrorIs(t, ui.lastEvent().Error, ErrUsage)
}

func TestControllerInspection(t *testing.T) {
	c, ui := newTestController(t)

	c.Execute("eval [EBP+8] + 1")
	result := ui.evalResults[len(ui.evalResults)-1]
	require.NoError(t, result.Error)
	assert.Equal(t, uint64(4), result.Value)
	assert.Equal(t, "00000004", result.Display)

	c.Execute("? gCounter")
	assert.Equal(t, "00402000 <gCounter>", ui.evalResults[len(ui.evalResults)-1].Display)

	c.Execute("regs")
	regs := ui.registers[len(ui.registers)-1]
	require.Len(t, regs, 10)
	assert.Equal(t, RegisterInfo{Name: "EBP", Value: 0x19FF70, Tracked: true}, regs[4])
	assert.Equal(t, "EIP", regs[8].Name)

	c.Execute("disasm main 3")
	lines := ui.disassembly[len(ui.disassembly)-1]
	require.Len(t, lines, 3)
	assert.Equal(t, uint64(0x401000), lines[0].Address)
	assert.Equal(t, uint64(0x401001), lines[1].Address)
	assert.Equal(t, uint64(0x401003), lines[2].Address)

	c.Execute("x")
	lines = ui.disassembly[len(ui.disassembly)-1]
	require.NotEmpty(t, lines)
	assert.True(t, lines[0].IsCurrentIP)

	c.Execute("help")
	assert.Equal(t, Commands(), ui.helpCommands)

	c.Execute("frobnicate")
	assert.Contains(t, ui.messages[len(ui.messages)-1], "Unknown command")

	c.Execute("quit")
	assert.False(t, c.IsRunning())
}

func TestDebugEventString(t *testing.T) {
	assert.Equal(t, "stopped", EventStopped.String())
	assert.Equal(t, "debugging_ended", EventDebuggingEnded.String())
	assert.Equal(t, "error", EventError.String())
	assert.Equal(t, "unknown", DebugEvent(42).String())
}
