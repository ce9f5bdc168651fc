package vars

import (
	"bytes"
	"strings"
	"testing"

	"github.com/Manu343726/framevars/pkg/arch"
	"github.com/Manu343726/framevars/pkg/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slotRows(a *arch.Arch, slots ...frame.Slot) []frame.SlotRow {
	rows := make([]frame.SlotRow, len(slots))
	for i, slot := range slots {
		rows[i] = frame.MakeSlotRow(a, slot, frame.DefaultPresentation())
	}
	return rows
}

func TestLayoutFields(t *testing.T) {
	rows := slotRows(arch.X86,
		frame.Slot{Register: 4, Displacement: 0xC},
		frame.Slot{Register: 4, Displacement: 8},
		frame.Slot{Register: 4, Displacement: -4},
		frame.Slot{Register: 4, Displacement: -8},
		frame.Slot{Register: 2, Displacement: 4},
	)

	assert.Equal(t, []layoutField{
		{Name: "Local2", Begin: -8, Width: 4},
		{Name: "Local1", Begin: -4, Width: 4},
		{Name: unusedField, Begin: 0, Width: 8},
		{Name: "Arg1", Begin: 8, Width: 4},
		{Name: "Arg2", Begin: 0xC, Width: 4},
	}, layoutFields(arch.X86, rows, 4))

	assert.Equal(t, []layoutField{
		{Name: "ECX_4", Begin: 4, Width: 4},
	}, layoutFields(arch.X86, rows, 2))

	assert.Empty(t, layoutFields(arch.X86, rows, 5))
}

func TestLayoutFieldsClipOverlaps(t *testing.T) {
	rows := slotRows(arch.X64,
		frame.Slot{Register: 4, Displacement: -0x10},
		frame.Slot{Register: 4, Displacement: -0xC},
	)

	assert.Equal(t, []layoutField{
		{Name: "Local2", Begin: -0x10, Width: 4},
		{Name: "Local1", Begin: -0xC, Width: 8},
	}, layoutFields(arch.X64, rows, 4))
}

func TestDrawLayout(t *testing.T) {
	assert.Empty(t, drawLayout(nil))

	assert.Equal(t, ""+
		`-0x4          +0x0
+-------------+
|   Local1    |
+-------------+
 <- 4 bytes -> 
`,
		drawLayout([]layoutField{{Name: "Local1", Begin: -4, Width: 4}}))
}

func TestDrawLayoutRowsLineUp(t *testing.T) {
	diagram := drawLayout([]layoutField{
		{Name: "Local2", Begin: -8, Width: 4},
		{Name: "Local1", Begin: -4, Width: 4},
		{Name: unusedField, Begin: 0, Width: 8},
		{Name: "a_very_long_argument_name", Begin: 8, Width: 4},
	})

	lines := strings.Split(strings.TrimSuffix(diagram, "\n"), "\n")
	require.Len(t, lines, 5)
	for _, line := range lines[1:] {
		assert.Len(t, line, len(lines[1]), "line %q", line)
	}
	assert.True(t, strings.HasPrefix(lines[0], "-0x8 "))
	assert.True(t, strings.HasSuffix(lines[0], "+0xC"))
	assert.Contains(t, lines[2], "(unused)")
	assert.Contains(t, lines[2], " a_very_long_argument_name |")
}

func TestAnalyzeLayout(t *testing.T) {
	resetFlags(t)
	analyzeLayout = true

	var out bytes.Buffer
	require.NoError(t, runAnalyze(&out, fixture))

	text := out.String()
	assert.True(t, strings.HasPrefix(text, "Frame of main [00401000, 00401021)\n\nEBP\n-0x8 "))
	assert.Contains(t, text, "Local2")
	assert.Contains(t, text, "(unused)")
	assert.Contains(t, text, " <- 8 bytes -> ")
}
