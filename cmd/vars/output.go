package vars

import (
	"fmt"
	"io"
	"strings"

	"github.com/Manu343726/framevars/pkg/arch"
	"github.com/Manu343726/framevars/pkg/debugger"
	"github.com/Manu343726/framevars/pkg/frame"
	"github.com/fatih/color"
	"github.com/samber/lo"
	"github.com/xlab/treeprint"
)

// =============================================================================
// Color definitions for CLI output
// =============================================================================

var (
	colorAddr    = color.New(color.FgCyan)
	colorInstr   = color.New(color.FgYellow)
	colorReg     = color.New(color.FgGreen)
	colorValue   = color.New(color.FgWhite, color.Bold)
	colorPrompt  = color.New(color.FgBlue, color.Bold)
	colorError   = color.New(color.FgRed, color.Bold)
	colorSuccess = color.New(color.FgGreen)
	colorWarning = color.New(color.FgYellow)
	colorHeader  = color.New(color.FgWhite, color.Bold, color.Underline)
	colorPC      = color.New(color.FgGreen, color.Bold)
	colorHiBlack = color.New(color.FgHiBlack)
	colorFunc    = color.New(color.FgHiMagenta, color.Bold)
	colorLocal   = color.New(color.FgHiGreen)
	colorArg     = color.New(color.FgHiYellow)
	colorSlot    = color.New(color.FgHiCyan)
	colorInvalid = color.New(color.FgHiRed)
)

// slotColor colors a row name by the kind of slot it is
func slotColor(a *arch.Arch, row frame.SlotRow) *color.Color {
	if row.Register != a.FramePointer().Index {
		return colorSlot
	}
	if row.Displacement < 0 {
		return colorLocal
	}
	return colorArg
}

func functionTitle(a *arch.Arch, result debugger.VariablesResult) string {
	name := result.Function
	if name == "" {
		name = "sub_" + a.FormatPointer(result.Start)
	}
	return fmt.Sprintf("%s [%s, %s)", name, a.FormatPointer(result.Start), a.FormatPointer(result.End))
}

// writeRows prints the frame view as an aligned table
func writeRows(w io.Writer, a *arch.Arch, result debugger.VariablesResult) {
	if !result.Analyzed {
		colorHiBlack.Fprintln(w, "Not stopped inside a known function.")
		return
	}

	fmt.Fprintf(w, "%s %s  %s\n",
		colorHeader.Sprint("Frame of"),
		colorFunc.Sprint(functionTitle(a, result)),
		colorHiBlack.Sprintf("tracking %s", strings.Join(result.Registers, ", ")))

	if len(result.Rows) == 0 {
		colorHiBlack.Fprintln(w, "  no frame slots")
		return
	}

	nameWidth := lo.Max(lo.Map(result.Rows, func(row frame.SlotRow, _ int) int { return len(row.Name) }))
	exprWidth := lo.Max(lo.Map(result.Rows, func(row frame.SlotRow, _ int) int { return len(row.Expression) }))

	for i, row := range result.Rows {
		value := colorValue.Sprint(row.Value)
		if row.Value == frame.InvalidValue {
			value = colorInvalid.Sprint(row.Value)
		}

		fmt.Fprintf(w, "  %s %s  %s  %s\n",
			colorHiBlack.Sprintf("%2d", i),
			slotColor(a, row).Sprintf("%-*s", nameWidth, row.Name),
			colorReg.Sprintf("%-*s", exprWidth, row.Expression),
			value)
	}
}

// rowsTree groups the frame view by base register
func rowsTree(a *arch.Arch, result debugger.VariablesResult) treeprint.Tree {
	tree := treeprint.New()
	tree.SetValue(functionTitle(a, result))

	groups := lo.GroupBy(result.Rows, func(row frame.SlotRow) int { return row.Register })
	for _, reg := range a.Registers {
		rows, ok := groups[reg.Index]
		if !ok {
			continue
		}

		branch := tree.AddBranch(reg.Name)
		for _, row := range rows {
			branch.AddNode(fmt.Sprintf("%s %s = %s", row.Expression, row.Name, row.Value))
		}
	}

	return tree
}

// jsonRow is the machine readable form of a row
type jsonRow struct {
	Name         string `json:"name"`
	Expression   string `json:"expression"`
	Value        string `json:"value"`
	Register     string `json:"register"`
	Displacement int64  `json:"displacement"`
}

type jsonFrame struct {
	Function  string    `json:"function,omitempty"`
	Start     string    `json:"start,omitempty"`
	End       string    `json:"end,omitempty"`
	IP        string    `json:"ip"`
	Registers []string  `json:"registers"`
	Rows      []jsonRow `json:"rows"`
}

func makeJSONFrame(a *arch.Arch, ip uint64, result debugger.VariablesResult) jsonFrame {
	f := jsonFrame{
		Function:  result.Function,
		IP:        a.FormatPointer(ip),
		Registers: result.Registers,
		Rows: lo.Map(result.Rows, func(row frame.SlotRow, _ int) jsonRow {
			return jsonRow{
				Name:         row.Name,
				Expression:   row.Expression,
				Value:        row.Value,
				Register:     a.Registers[row.Register].Name,
				Displacement: row.Displacement,
			}
		}),
	}

	if result.Analyzed {
		f.Start = a.FormatPointer(result.Start)
		f.End = a.FormatPointer(result.End)
	}
	return f
}
