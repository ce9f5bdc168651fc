package arch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/arch/x86/x86asm"
)

func TestFramePointer(t *testing.T) {
	assert.Equal(t, "EBP", X86.FramePointer().Name)
	assert.Equal(t, "RBP", X64.FramePointer().Name)
	assert.Len(t, X86.Registers, 8)
	assert.Len(t, X64.Registers, 16)
}

func TestRegisterIndex(t *testing.T) {
	tests := []struct {
		name  string
		arch  *Arch
		reg   x86asm.Reg
		index int
		ok    bool
	}{
		{name: "x86 ebp", arch: X86, reg: x86asm.EBP, index: 4, ok: true},
		{name: "x86 esp", arch: X86, reg: x86asm.ESP, index: 5, ok: true},
		{name: "x86 16 bit bp", arch: X86, reg: x86asm.BP, ok: false},
		{name: "x64 rbp", arch: X64, reg: x86asm.RBP, index: 4, ok: true},
		{name: "x64 addr32 ebp", arch: X64, reg: x86asm.EBP, ok: false},
		{name: "x64 r15", arch: X64, reg: x86asm.R15, index: 15, ok: true},
		{name: "x64 rip", arch: X64, reg: x86asm.RIP, ok: false},
		{name: "x86 r8 not tracked", arch: X86, reg: x86asm.R8, ok: false},
		{name: "none", arch: X86, reg: 0, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			index, ok := tt.arch.RegisterIndex(tt.reg)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.index, index)
			}
		})
	}
}

func TestLookup(t *testing.T) {
	reg, err := X86.Lookup("ebp")
	require.NoError(t, err)
	assert.Equal(t, 4, reg.Index)

	reg, err = X64.Lookup("cbp")
	require.NoError(t, err)
	assert.Equal(t, "RBP", reg.Name)

	_, err = X86.Lookup("EIP")
	assert.ErrorIs(t, err, ErrUnknownRegister)

	_, err = X86.Lookup("R9")
	assert.ErrorIs(t, err, ErrUnknownRegister)
}

func TestCanonical(t *testing.T) {
	name, ok := X86.Canonical("cip")
	assert.True(t, ok)
	assert.Equal(t, "EIP", name)

	name, ok = X64.Canonical("Rflags")
	assert.True(t, ok)
	assert.Equal(t, "RFLAGS", name)

	_, ok = X86.Canonical("foo")
	assert.False(t, ok)
}

func TestFormatPointer(t *testing.T) {
	assert.Equal(t, "0000000C", X86.FormatPointer(0xC))
	assert.Equal(t, "FFFFFFFF", X86.FormatPointer(^uint64(0)))
	assert.Equal(t, "000000000019FF70", X64.FormatPointer(0x19FF70))
}

func TestByName(t *testing.T) {
	a, err := ByName("AMD64")
	require.NoError(t, err)
	assert.Same(t, X64, a)

	_, err = ByName("arm64")
	assert.ErrorIs(t, err, ErrUnknownArch)
}
