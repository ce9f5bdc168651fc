package tools

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/Manu343726/framevars/pkg/arch"
	"github.com/Manu343726/framevars/pkg/target"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModuleNames(t *testing.T) {
	assert.Equal(t, []string{
		"registers.x64",
		"registers.x86",
		"snapshot.encode_types",
		"snapshot.format",
	}, moduleNames())
}

func TestFormatReferenceParses(t *testing.T) {
	snapshot, err := target.ParseSnapshot([]byte(target.FormatReference))
	require.NoError(t, err)
	assert.Equal(t, "x86", snapshot.Arch)

	_, err = target.New(snapshot)
	require.NoError(t, err)
}

func TestRegistersDoc(t *testing.T) {
	doc := registersDoc(arch.X86)
	assert.Contains(t, doc, "x86: 32 bit, 4 byte pointers")
	assert.Contains(t, doc, "   4  EBP  Frame pointer\n")
	assert.Contains(t, doc, "Instruction pointer: EIP")

	doc = registersDoc(arch.X64)
	assert.Contains(t, doc, "  15  R15 ")
}

func TestEncodeTypesDoc(t *testing.T) {
	doc := encodeTypesDoc()
	assert.Contains(t, doc, "  code     instructions\n")
	assert.Contains(t, doc, "  dword    4 bytes\n")
	assert.Contains(t, doc, "  ascii    explicit size\n")
	assert.Contains(t, doc, "  middle   1 bytes\n")
}

func TestDocsCommand(t *testing.T) {
	var out bytes.Buffer
	ToolsCmd.SetOut(&out)
	ToolsCmd.SetArgs([]string{"docs", "registers.x86"})
	require.NoError(t, ToolsCmd.Execute())
	assert.Contains(t, out.String(), "EBP")

	path := filepath.Join(t.TempDir(), "format.yaml")
	ToolsCmd.SetArgs([]string{"docs", "snapshot.format", "--output", path})
	require.NoError(t, ToolsCmd.Execute())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, target.FormatReference+"\n", string(data))

	ToolsCmd.SetArgs([]string{"docs", "cpu.machine_code"})
	assert.Error(t, ToolsCmd.Execute())
}
