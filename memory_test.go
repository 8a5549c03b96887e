package oakhook

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_MapNear(t *testing.T) {
	near := uintptr(0x140012345)
	var tried []uintptr
	got, err := mapNear(near, arenaSize, func(addr uintptr, size int) bool {
		require.Equal(t, arenaSize, size)
		tried = append(tried, addr)
		return len(tried) == 4
	})
	require.NoError(t, err)
	require.Equal(t, uintptr(0x140030000), got)
	require.Equal(t, []uintptr{0x140010000, 0x140020000, 0x140000000, 0x140030000}, tried)
}

func Test_MapNearExhausted(t *testing.T) {
	for _, near := range []uintptr{0x140012345, 0x30000} {
		var tried []uintptr
		_, err := mapNear(near, arenaSize, func(addr uintptr, size int) bool {
			tried = append(tried, addr)
			return false
		})
		require.ErrorIs(t, err, ErrNoNearMemory)
		require.NotEmpty(t, tried)
		for _, addr := range tried {
			require.GreaterOrEqual(t, addr, uintptr(arenaAlign))
			b := block{base: addr, size: arenaSize}
			require.True(t, b.reaches(near), "0x%x", addr)
		}
	}
}

func Test_BlockTake(t *testing.T) {
	b := block{base: 0x10000, size: 64}
	p, ok := b.take(20)
	require.True(t, ok)
	require.Equal(t, uintptr(0x10000), p)
	p, ok = b.take(30)
	require.True(t, ok)
	require.Equal(t, uintptr(0x10020), p)
	_, ok = b.take(1)
	require.False(t, ok)
}

type nearBuffer struct {
	Memory
	near []uintptr
}

func (m *nearBuffer) AllocNear(near uintptr, n int) (uintptr, error) {
	m.near = append(m.near, near)
	return m.AllocExec(n)
}

func Test_InstallAllocatesNearTarget(t *testing.T) {
	buf, target := newCode(0x48, 0x85, 0xd2, 0x0f, 0x84, 0x00, 0x01, 0x00, 0x00)
	mem := &nearBuffer{Memory: buf}
	d, err := Install(mem, target, testBase+0x80, "CreateContentPanelItem")
	require.NoError(t, err)
	require.Equal(t, []uintptr{target}, mem.near)
	require.NoError(t, d.Uninstall())
}
