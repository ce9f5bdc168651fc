package vars

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/Manu343726/framevars/pkg/arch"
	"github.com/Manu343726/framevars/pkg/debugger"
	"github.com/Manu343726/framevars/pkg/frame"
	"github.com/samber/lo"
)

// layoutField is one box of a frame layout diagram, in bytes relative to the
// base register
type layoutField struct {
	Name  string
	Begin int64
	Width int64
}

func (f layoutField) End() int64 {
	return f.Begin + f.Width
}

const unusedField = "(unused)"

// layoutFields returns the slots of one base register in ascending
// displacement order. A slot spans up to a pointer, clipped by the next slot.
// Holes between slots are filled with unused fields.
func layoutFields(a *arch.Arch, rows []frame.SlotRow, register int) []layoutField {
	rows = lo.Filter(rows, func(row frame.SlotRow, _ int) bool { return row.Register == register })
	slices.SortFunc(rows, func(x, y frame.SlotRow) int { return cmp.Compare(x.Displacement, y.Displacement) })

	var fields []layoutField
	for i, row := range rows {
		width := int64(a.PointerSize)
		if i+1 < len(rows) {
			width = min(width, rows[i+1].Displacement-row.Displacement)
		}

		if len(fields) > 0 {
			if last := fields[len(fields)-1]; last.End() < row.Displacement {
				fields = append(fields, layoutField{
					Name:  unusedField,
					Begin: last.End(),
					Width: row.Displacement - last.End(),
				})
			}
		}

		fields = append(fields, layoutField{Name: row.Name, Begin: row.Displacement, Width: width})
	}

	return fields
}

func formatDisplacement(value int64) string {
	if value < 0 {
		return fmt.Sprintf("-0x%X", uint64(-value))
	}
	return fmt.Sprintf("+0x%X", uint64(value))
}

// centered writes text padded with filler up to length, leaving room for
// decoration characters written by the caller
func centered(text string, decoration int, filler string, length int, builder *strings.Builder) {
	padding := length - len(text) - decoration
	left := padding / 2

	builder.WriteString(strings.Repeat(filler, left))
	builder.WriteString(text)
	builder.WriteString(strings.Repeat(filler, padding-left))
}

// drawLayout draws fields left to right as a row of boxes with the
// displacement of each box above it and its size under it:
//
//	-0x4          +0x0
//	+-------------+
//	|   Local1    |
//	+-------------+
//	 <- 4 bytes ->
func drawLayout(fields []layoutField) string {
	const (
		arrowLeft  = "<-"
		arrowRight = "->"
	)

	if len(fields) == 0 {
		return ""
	}

	var indices, border, body, widths strings.Builder

	for _, field := range fields {
		index := formatDisplacement(field.Begin)
		name := " " + field.Name + " "
		width := fmt.Sprintf(" %d bytes ", field.Width)
		length := lo.Max([]int{len(index), len(name), len(arrowLeft) + len(width) + len(arrowRight)})

		indices.WriteString(index)
		indices.WriteString(strings.Repeat(" ", length-len(index)+1))
		border.WriteString("+")
		border.WriteString(strings.Repeat("-", length))
		body.WriteString("|")
		centered(name, 0, " ", length, &body)
		widths.WriteString(" ")
		widths.WriteString(arrowLeft)
		centered(width, len(arrowLeft)+len(arrowRight), "-", length, &widths)
		widths.WriteString(arrowRight)
	}

	indices.WriteString(formatDisplacement(fields[len(fields)-1].End()))
	border.WriteString("+")
	body.WriteString("|")
	widths.WriteString(" ")

	return strings.Join([]string{indices.String(), border.String(), body.String(), border.String(), widths.String()}, "\n") + "\n"
}

// writeLayout draws one diagram per base register with slots
func writeLayout(w io.Writer, a *arch.Arch, result debugger.VariablesResult) {
	fmt.Fprintf(w, "Frame of %s\n", functionTitle(a, result))

	for _, reg := range a.Registers {
		fields := layoutFields(a, result.Rows, reg.Index)
		if len(fields) == 0 {
			continue
		}

		fmt.Fprintf(w, "\n%s\n", colorReg.Sprint(reg.Name))
		io.WriteString(w, drawLayout(fields))
	}
}
