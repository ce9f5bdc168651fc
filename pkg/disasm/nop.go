package disasm

import "golang.org/x/arch/x86/x86asm"

// isNoOp reports instructions without semantic effect that compilers and
// packers emit as padding: nop/pause/fnop, register moves onto themselves,
// lea r, [r+0] and jumps to the next instruction.
func isNoOp(inst x86asm.Inst, mode int) bool {
	switch inst.Op {
	case x86asm.NOP, x86asm.PAUSE, x86asm.FNOP:
		return true

	case x86asm.MOV, x86asm.XCHG,
		x86asm.CMOVA, x86asm.CMOVAE, x86asm.CMOVB, x86asm.CMOVBE,
		x86asm.CMOVE, x86asm.CMOVNE, x86asm.CMOVG, x86asm.CMOVGE,
		x86asm.CMOVL, x86asm.CMOVLE, x86asm.CMOVO, x86asm.CMOVNO,
		x86asm.CMOVP, x86asm.CMOVNP, x86asm.CMOVS, x86asm.CMOVNS,
		x86asm.MOVAPS, x86asm.MOVAPD, x86asm.MOVUPS, x86asm.MOVUPD:
		dst, ok := inst.Args[0].(x86asm.Reg)
		if !ok {
			return false
		}
		src, ok := inst.Args[1].(x86asm.Reg)
		return ok && dst == src && safeNopRegister(dst, mode)

	case x86asm.LEA:
		dst, ok := inst.Args[0].(x86asm.Reg)
		if !ok {
			return false
		}
		mem, ok := inst.Args[1].(x86asm.Mem)
		if !ok || mem.Disp != 0 {
			return false
		}
		selfBase := mem.Index == 0 && mem.Base == dst
		selfIndex := mem.Base == 0 && mem.Index == dst && mem.Scale == 1
		return (selfBase || selfIndex) && safeNopRegister(dst, mode)

	case x86asm.JMP,
		x86asm.JA, x86asm.JAE, x86asm.JB, x86asm.JBE,
		x86asm.JE, x86asm.JNE, x86asm.JG, x86asm.JGE,
		x86asm.JL, x86asm.JLE, x86asm.JO, x86asm.JNO,
		x86asm.JP, x86asm.JNP, x86asm.JS, x86asm.JNS:
		rel, ok := inst.Args[0].(x86asm.Rel)
		return ok && rel == 0
	}

	return false
}

// In 64 bit mode writing a 32 bit register zero extends into the full
// register, so "mov eax, eax" is not a no-op there.
func safeNopRegister(reg x86asm.Reg, mode int) bool {
	if mode != 64 {
		return true
	}
	return reg < x86asm.EAX || reg > x86asm.R15L
}
