package oakhook

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_InstallFarFromMappings(t *testing.T) {
	// well below where the OS puts anonymous mappings
	const at = uintptr(0x200000000)
	if !mapAt(at, arenaAlign) {
		t.Skip("0x200000000 is in use")
	}
	prologue := []byte{
		0x48, 0x85, 0xd2, // test rdx, rdx
		0x0f, 0x84, 0x00, 0x01, 0x00, 0x00, // je +0x100
		0x56,                   // push rsi
		0x57,                   // push rdi
		0x48, 0x83, 0xec, 0x78, // sub rsp, 0x78
	}
	copy(makeSlice(at, uintptr(len(prologue))), prologue)

	mem := LiveMemory{}
	d, err := Install(mem, at, at+0x800, "CreateContentPanelItem")
	require.NoError(t, err)
	defer func() { require.NoError(t, d.Uninstall()) }()

	require.Less(t, distance(at, d.Trampoline), uintptr(nearRange))
	require.Equal(t, jump(at, at+0x800), read(t, mem, at, jmpRelLen))

	tramp := read(t, mem, d.Trampoline, 9+jmpRelLen)
	require.Equal(t, prologue[:5], tramp[:5])
	disp := int32(binary.LittleEndian.Uint32(tramp[5:9]))
	require.Equal(t, at+9+0x100, uintptr(int64(d.Trampoline)+9+int64(disp)))
	require.Equal(t, jump(d.Trampoline+9, at+9), tramp[9:])

	// code close by shares the block
	next, err := mem.AllocNear(at+0x100, 16)
	require.NoError(t, err)
	require.Less(t, distance(next, d.Trampoline), uintptr(arenaSize))
}
