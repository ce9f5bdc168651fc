package target

import (
	"testing"

	"github.com/Manu343726/framevars/pkg/arch"
	"github.com/Manu343726/framevars/pkg/disasm"
	"github.com/Manu343726/framevars/pkg/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFrame(t *testing.T) *Target {
	t.Helper()

	target, err := Load("testdata/frame.yaml")
	require.NoError(t, err)
	return target
}

func TestLoad(t *testing.T) {
	target := loadFrame(t)

	assert.Equal(t, arch.X86, target.Arch())
	assert.Equal(t, uint64(0x401006), target.InstructionPointer())
	assert.Equal(t, []string{"main", "helper", "gCounter"}, target.Symbols())
	assert.Len(t, target.Functions(), 2)
	assert.Equal(t, 5, target.StopCount())
}

func TestParseSnapshotErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "not yaml", yaml: "arch: [x86"},
		{name: "missing arch", yaml: "registers: {EIP: 1}"},
		{name: "bad bytes", yaml: "arch: x86\nmemory: [{address: 0, bytes: \"XY\"}]"},
		{name: "empty function", yaml: "arch: x86\nfunctions: [{name: f, start: 0x10, end: 0x10}]"},
		{name: "overlapping memory", yaml: "arch: x86\nmemory: [{address: 0, bytes: \"00 00\"}, {address: 1, bytes: \"00\"}]"},
		{name: "sizeless string", yaml: "arch: x86\ndata: [{address: 0, type: ascii}]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSnapshot([]byte(tt.yaml))
			assert.ErrorIs(t, err, ErrBadSnapshot)
		})
	}
}

func TestNewErrors(t *testing.T) {
	_, err := New(&Snapshot{Arch: "mips"})
	assert.ErrorIs(t, err, arch.ErrUnknownArch)

	_, err = New(&Snapshot{Arch: "x86", Registers: map[string]uint64{"RAX": 1}})
	assert.ErrorIs(t, err, ErrUnknownRegister)

	_, err = New(&Snapshot{Arch: "x86", Stops: []Stop{{Registers: map[string]uint64{"XMM0": 1}}}})
	assert.ErrorIs(t, err, ErrBadSnapshot)
}

func TestMemory(t *testing.T) {
	target, err := New(&Snapshot{
		Arch: "x86",
		Memory: []Segment{
			{Address: 0x1004, Bytes: Bytes{5, 6, 7, 8}},
			{Address: 0x1000, Bytes: Bytes{1, 2, 3, 4}},
			{Address: 0x2000, Bytes: Bytes{0xAA}},
		},
	})
	require.NoError(t, err)

	t.Run("across contiguous segments", func(t *testing.T) {
		data, err := target.ReadMemory(0x1002, 4)
		require.NoError(t, err)
		assert.Equal(t, []byte{3, 4, 5, 6}, data)
	})

	t.Run("unmapped", func(t *testing.T) {
		_, err := target.ReadMemory(0x1006, 4)
		assert.ErrorIs(t, err, ErrSegfault)

		_, err = target.ReadMemory(0xFFF, 1)
		assert.ErrorIs(t, err, ErrSegfault)
	})

	t.Run("write", func(t *testing.T) {
		require.NoError(t, target.WriteMemory(0x1003, []byte{0x10, 0x20}))
		data, err := target.ReadMemory(0x1000, 8)
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 2, 3, 0x10, 0x20, 6, 7, 8}, data)
	})

	t.Run("partial writes are rejected", func(t *testing.T) {
		assert.ErrorIs(t, target.WriteMemory(0x1007, []byte{0xFF, 0xFF}), ErrSegfault)
		data, err := target.ReadMemory(0x1007, 1)
		require.NoError(t, err)
		assert.Equal(t, []byte{8}, data)
	})

	t.Run("pointers", func(t *testing.T) {
		require.NoError(t, target.WritePointer(0x1000, 0xDEADBEEF))
		value, err := target.ReadPointer(0x1000)
		require.NoError(t, err)
		assert.Equal(t, uint64(0xDEADBEEF), value)

		_, err = target.ReadPointer(0x2000)
		assert.ErrorIs(t, err, ErrSegfault)
	})

	t.Run("reset", func(t *testing.T) {
		target.Reset()
		data, err := target.ReadMemory(0x1000, 4)
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 2, 3, 4}, data)
	})
}

func TestRegisters(t *testing.T) {
	target := loadFrame(t)

	ebp, err := target.ReadRegister("ebp")
	require.NoError(t, err)
	assert.Equal(t, uint64(0x19FF70), ebp)

	cip, err := target.ReadRegister("CIP")
	require.NoError(t, err)
	assert.Equal(t, uint64(0x401006), cip)

	edx, err := target.ReadRegister("EDX")
	require.NoError(t, err)
	assert.Zero(t, edx)

	require.NoError(t, target.WriteRegister("ECX", 0x1_0000_0005))
	ecx, err := target.ReadRegister("ECX")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), ecx)

	_, err = target.ReadRegister("R8")
	assert.ErrorIs(t, err, ErrUnknownRegister)
	assert.ErrorIs(t, target.WriteRegister("R8", 0), ErrUnknownRegister)
}

func TestFunctionAt(t *testing.T) {
	target := loadFrame(t)

	tests := []struct {
		address uint64
		start   uint64
		end     uint64
		ok      bool
	}{
		{address: 0x401000, start: 0x401000, end: 0x401021, ok: true},
		{address: 0x401020, start: 0x401000, end: 0x401021, ok: true},
		{address: 0x401021},
		{address: 0x401104, start: 0x401100, end: 0x401108, ok: true},
		{address: 0x400FFF},
	}

	for _, tt := range tests {
		start, end, ok := target.FunctionAt(tt.address)
		assert.Equal(t, tt.ok, ok, "0x%X", tt.address)
		assert.Equal(t, tt.start, start, "0x%X", tt.address)
		assert.Equal(t, tt.end, end, "0x%X", tt.address)
	}

	_, err := target.Function(0x401500)
	assert.ErrorIs(t, err, ErrNoFunction)
}

func TestClassify(t *testing.T) {
	target := loadFrame(t)

	span, err := target.Classify(0x401012)
	require.NoError(t, err)
	assert.Equal(t, frame.Span{Code: true}, span)

	span, err = target.Classify(0x401014)
	require.NoError(t, err)
	assert.Equal(t, frame.Span{Size: 4}, span)

	_, err = target.Classify(0x500000)
	assert.ErrorIs(t, err, ErrSegfault)
}

func TestEncodeTypes(t *testing.T) {
	tests := []struct {
		name string
		want EncodeType
		size uint64
		code bool
	}{
		{name: "byte", want: EncodeByte, size: 1},
		{name: "DWORD", want: EncodeDword, size: 4},
		{name: "fword", want: EncodeFword, size: 6},
		{name: "tbyte", want: EncodeTbyte, size: 10},
		{name: "ymmword", want: EncodeYmmword, size: 32},
		{name: "real10", want: EncodeReal10, size: 10},
		{name: "ascii", want: EncodeAscii},
		{name: "code", want: EncodeCode, code: true},
		{name: "whatever", want: EncodeUnknown, code: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encodeType := ParseEncodeType(tt.name)
			assert.Equal(t, tt.want, encodeType)
			assert.Equal(t, tt.size, encodeType.Size())
			assert.Equal(t, tt.code, encodeType.IsCode())
		})
	}
}

func TestUnknownEncodeTypeIsCode(t *testing.T) {
	snapshot, err := ParseSnapshot([]byte("arch: x86\nmemory: [{address: 0x10, bytes: \"90 90\"}]\ndata: [{address: 0x10, type: hologram}]"))
	require.NoError(t, err)
	target, err := New(snapshot)
	require.NoError(t, err)

	span, err := target.Classify(0x10)
	require.NoError(t, err)
	assert.True(t, span.Code)
}

func TestApplyStop(t *testing.T) {
	target := loadFrame(t)

	require.NoError(t, target.ApplyStop(0))
	require.NoError(t, target.ApplyStop(1))
	assert.Equal(t, uint64(0x40100F), target.InstructionPointer())

	eax, err := target.ReadRegister("EAX")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), eax)

	local, err := target.ReadPointer(0x19FF6C)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), local)

	assert.ErrorIs(t, target.ApplyStop(5), ErrNoStop)

	target.Reset()
	assert.Equal(t, uint64(0x401006), target.InstructionPointer())
	local, err = target.ReadPointer(0x19FF6C)
	require.NoError(t, err)
	assert.Zero(t, local)
}

func TestSymbols(t *testing.T) {
	target := loadFrame(t)

	name, ok := target.SymbolAt(0x402000)
	require.True(t, ok)
	assert.Equal(t, "gCounter", name)

	address, ok := target.SymbolAddress("helper")
	require.True(t, ok)
	assert.Equal(t, uint64(0x401100), address)

	_, ok = target.SymbolAt(0x402004)
	assert.False(t, ok)
}

func TestAnalyzeSnapshot(t *testing.T) {
	target := loadFrame(t)

	analyzer := frame.NewAnalyzer(frame.DefaultConfig(target.Arch()), frame.Collaborators{
		Decoder:    disasm.NewX86Decoder(target.Arch()),
		Classifier: target,
		Functions:  target,
		Memory:     target,
	})

	rows := analyzer.Refresh(target.InstructionPointer())
	names := make([]string, len(rows))
	for i, row := range rows {
		names[i] = row.Name
	}

	assert.Equal(t, []string{"Arg2", "Arg1", "Local1", "Local2"}, names)
}

func TestSnapshotMarshal(t *testing.T) {
	snapshot, err := LoadSnapshot("testdata/frame.yaml")
	require.NoError(t, err)

	data, err := snapshot.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), "55 8B EC 83 EC 08")

	reparsed, err := ParseSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, snapshot.Memory, reparsed.Memory)
	assert.Equal(t, snapshot.Functions, reparsed.Functions)
	assert.Equal(t, snapshot.Data, reparsed.Data)
	assert.Equal(t, snapshot.Symbols, reparsed.Symbols)
	assert.Len(t, reparsed.Stops, len(snapshot.Stops))

	target, err := New(reparsed)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x401006), target.InstructionPointer())
}
