// Copyright (C) 2022 K2 Cyber Security Inc.
/*
Detouring x86-64 code

TARGET FUNCTION
 - The first whole instructions covering the patch are saved
 - A JMP to the REPLACEMENT is written over them

TRAMPOLINE
 - Holds the saved instructions, relocated to their new address
 - Ends with a JMP back to the first instruction after the patch
 - Calling it runs the target as it was before the patch

A JMP rel32 is 5 bytes. When the destination is more than 2GiB away an
indirect JMP [RIP+0] followed by the 64-bit address is used, 14 bytes.
*/

package oakhook

import (
	"encoding/binary"
	"math"

	"golang.org/x/arch/x86/x86asm"
)

const (
	jmpRelLen  = 5
	jmpAbsLen  = 14
	maxInstLen = 15
)

type info struct {
	length      int
	relocatable bool
	insts       []x86asm.Inst
}

func overflowsS32(from, to uintptr) bool {
	diff := int64(to) - int64(from)
	return diff > math.MaxInt32 || diff < math.MinInt32
}

// jump encodes a JMP placed at from that lands on to.
func jump(from, to uintptr) []byte {
	if !overflowsS32(from+jmpRelLen, to) {
		addr := uint32(int32(int64(to) - int64(from+jmpRelLen)))
		return []byte{
			0xe9, // JMP rel32
			byte(addr), byte(addr >> 8), // .
			byte(addr >> 16), byte(addr >> 24), // .
		}
	}
	seq := []byte{
		0xff, 0x25, // JMP [RIP+0]
		0x00, 0x00, 0x00, 0x00,
	}
	return binary.LittleEndian.AppendUint64(seq, uint64(to))
}

// ensureLength decodes whole instructions until at least size bytes are
// covered.
func ensureLength(src []byte, size int) (info, error) {
	var inf info
	inf.relocatable = true
	for inf.length < size {
		inst, err := x86asm.Decode(src[inf.length:], 64)
		if err != nil {
			return inf, err
		}
		inf.relocatable = inf.relocatable && relocatable(inst)
		inf.insts = append(inf.insts, inst)
		inf.length += inst.Len
		if inf.length < size && terminates(inst) {
			return inf, ErrShortFunction
		}
	}
	if !inf.relocatable {
		return inf, ErrRelativeAddr
	}
	return inf, nil
}

// relocatable reports whether inst can run at another address once its
// 32-bit displacement is rewritten. rel8 and rel16 branches cannot.
func relocatable(inst x86asm.Inst) bool {
	if inst.PCRel == 4 {
		return true
	}
	for _, a := range inst.Args {
		if a == nil {
			break
		}
		if mem, ok := a.(x86asm.Mem); ok {
			if mem.Base == x86asm.RIP {
				return false
			}
		} else if _, ok := a.(x86asm.Rel); ok {
			return false
		}
	}
	return true
}

func terminates(inst x86asm.Inst) bool {
	switch inst.Op {
	case x86asm.RET, x86asm.JMP, x86asm.INT, x86asm.UD2:
		return true
	}
	return false
}

// relocate copies code from its address at from to run at to, rewriting
// every 32-bit PC-relative displacement so it keeps its absolute target.
func relocate(code []byte, insts []x86asm.Inst, from, to uintptr) ([]byte, error) {
	out := append([]byte(nil), code...)
	off := 0
	for _, inst := range insts {
		if inst.PCRel == 4 {
			at := off + inst.PCRelOff
			disp := int32(binary.LittleEndian.Uint32(out[at:]))
			end := uintptr(off + inst.Len)
			abs := uintptr(int64(from+end) + int64(disp))
			if overflowsS32(to+end, abs) {
				return nil, ErrRelativeAddr
			}
			binary.LittleEndian.PutUint32(out[at:], uint32(int32(int64(abs)-int64(to+end))))
		}
		off += inst.Len
	}
	return out, nil
}

// FloatThunk writes a routine that calls target and returns its XMM0 result
// in EAX. The first four arguments pass through untouched; stack arguments
// do not.
func FloatThunk(mem Memory, target uintptr) (uintptr, error) {
	code := []byte{
		0x48, 0x83, 0xec, 0x28, // sub rsp, 0x28
		0x48, 0xb8, // mov rax, imm64
	}
	code = binary.LittleEndian.AppendUint64(code, uint64(target))
	code = append(code,
		0xff, 0xd0, // call rax
		0x66, 0x0f, 0x7e, 0xc0, // movd eax, xmm0
		0x48, 0x83, 0xc4, 0x28, // add rsp, 0x28
		0xc3, // ret
	)
	thunk, err := mem.AllocExec(len(code))
	if err != nil {
		return 0, err
	}
	return thunk, mem.WriteAt(thunk, code)
}

// floatSlot holds the low quadwords of XMM0-3 of a hooked call.
const floatSlot = 4 * 8

func movRAX(code []byte, v uintptr) []byte {
	code = append(code, 0x48, 0xb8) // mov rax, imm64
	return binary.LittleEndian.AppendUint64(code, uint64(v))
}

func jmpRAX(code []byte, to uintptr) []byte {
	code = movRAX(code, to)
	return append(code, 0xff, 0xe0) // jmp rax
}

// saveFloats encodes a routine that stores XMM0-3 at slot and jumps to to.
// RAX is the only register it changes.
func saveFloats(slot, to uintptr) []byte {
	code := movRAX(nil, slot)
	code = append(code,
		0x66, 0x0f, 0xd6, 0x00,       // movq [rax], xmm0
		0x66, 0x0f, 0xd6, 0x48, 0x08, // movq [rax+0x8], xmm1
		0x66, 0x0f, 0xd6, 0x50, 0x10, // movq [rax+0x10], xmm2
		0x66, 0x0f, 0xd6, 0x58, 0x18, // movq [rax+0x18], xmm3
	)
	return jmpRAX(code, to)
}

// loadFloats encodes the reverse of saveFloats.
func loadFloats(slot, to uintptr) []byte {
	code := movRAX(nil, slot)
	code = append(code,
		0xf3, 0x0f, 0x7e, 0x00,       // movq xmm0, [rax]
		0xf3, 0x0f, 0x7e, 0x48, 0x08, // movq xmm1, [rax+0x8]
		0xf3, 0x0f, 0x7e, 0x50, 0x10, // movq xmm2, [rax+0x10]
		0xf3, 0x0f, 0x7e, 0x58, 0x18, // movq xmm3, [rax+0x18]
	)
	return jmpRAX(code, to)
}

// floatEntry writes a slot followed by a routine that saves XMM0-3 into it
// before jumping to to. The slot is shared by every call through the
// routine.
func floatEntry(mem Memory, to uintptr) (entry, slot uintptr, err error) {
	code := saveFloats(0, to)
	slot, err = mem.AllocExec(floatSlot + len(code))
	if err != nil {
		return 0, 0, err
	}
	entry = slot + floatSlot
	return entry, slot, mem.WriteAt(entry, saveFloats(slot, to))
}

// floatExit writes a routine that loads XMM0-3 back from slot and jumps to
// to.
func floatExit(mem Memory, slot, to uintptr) (uintptr, error) {
	code := loadFloats(slot, to)
	exit, err := mem.AllocExec(len(code))
	if err != nil {
		return 0, err
	}
	return exit, mem.WriteAt(exit, code)
}
