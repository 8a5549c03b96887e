package oakhook

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/arch/x86/x86asm"
)

func decodeAll(t *testing.T, code []byte) []x86asm.Inst {
	var out []x86asm.Inst
	for len(code) > 0 {
		inst, err := x86asm.Decode(code, 64)
		require.NoError(t, err)
		out = append(out, inst)
		code = code[inst.Len:]
	}
	return out
}

// requireFloatMoves checks a thunk is: mov rax, slot; four movq between
// XMM0-3 and the slot; mov rax, to; jmp rax.
func requireFloatMoves(t *testing.T, insts []x86asm.Inst, slot, to uintptr, save bool) {
	require.Len(t, insts, 7)
	require.Equal(t, x86asm.MOV, insts[0].Op)
	require.Equal(t, x86asm.RAX, insts[0].Args[0])
	require.Equal(t, x86asm.Imm(slot), insts[0].Args[1])
	for i := 0; i < 4; i++ {
		inst := insts[1+i]
		require.Equal(t, x86asm.MOVQ, inst.Op)
		mem := x86asm.Mem{Base: x86asm.RAX, Disp: int64(8 * i)}
		reg := x86asm.X0 + x86asm.Reg(i)
		if save {
			require.Equal(t, mem, inst.Args[0])
			require.Equal(t, reg, inst.Args[1])
		} else {
			require.Equal(t, reg, inst.Args[0])
			require.Equal(t, mem, inst.Args[1])
		}
	}
	require.Equal(t, x86asm.MOV, insts[5].Op)
	require.Equal(t, x86asm.Imm(to), insts[5].Args[1])
	require.Equal(t, x86asm.JMP, insts[6].Op)
	require.Equal(t, x86asm.RAX, insts[6].Args[0])
}

func Test_FloatThunks(t *testing.T) {
	mem, _ := newCode()
	const callback = uintptr(0x7ff612340000)

	entry, slot, err := floatEntry(mem, callback)
	require.NoError(t, err)
	require.Zero(t, slot%16)
	require.Equal(t, slot+floatSlot, entry)
	require.Equal(t, make([]byte, floatSlot), read(t, mem, slot, floatSlot))
	code := saveFloats(slot, callback)
	require.Equal(t, code, read(t, mem, entry, len(code)))
	requireFloatMoves(t, decodeAll(t, code), slot, callback, true)

	tramp := testBase + 0x40
	exit, err := floatExit(mem, slot, tramp)
	require.NoError(t, err)
	code = loadFloats(slot, tramp)
	require.Equal(t, code, read(t, mem, exit, len(code)))
	requireFloatMoves(t, decodeAll(t, code), slot, tramp, false)
}

// A hooked InputKey gets pressDuration in XMM3. The entry thunk must keep it
// without touching the integer argument registers or the stack.
func Test_FloatEntryKeepsArguments(t *testing.T) {
	for _, inst := range decodeAll(t, saveFloats(0x1000, 0x2000)) {
		for _, a := range inst.Args {
			if a == nil {
				break
			}
			switch a {
			case x86asm.RCX, x86asm.RDX, x86asm.R8, x86asm.R9, x86asm.RSP:
				t.Fatalf("%v touches %v", inst, a)
			}
		}
		require.NotEqual(t, x86asm.PUSH, inst.Op)
		require.NotEqual(t, x86asm.CALL, inst.Op)
	}
}
