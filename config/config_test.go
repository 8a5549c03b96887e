package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/k2io/oakhook/sigscan"
)

func Test_Default(t *testing.T) {
	c := Default()
	require.Equal(t, "info", c.Log.Level)
	require.Equal(t, "Borderlands3.exe", c.Focus.MenuExecutable)
	require.Equal(t, uint8(1), c.Focus.CursorMask)

	for _, name := range []string{
		InputKey, DisplayNATHelpDialog, ShowDialog, SetFirstOptions, SoftObjectOffset,
		StartMenuTransition, Refresh, OptionListOffset, CreateItem, GetOptionTitle,
		ScrollToPosition, SetupTitle, SetupSlider, SetupSpinner, SetupBoolSpinner,
		SetupDropdown, SetupButton, SetupControls, BindUFunction, AddMenuItem,
		BeginConfigureMenuItems, SetMenuState, MenuStateOffset, ComboBoxSelectedIndex,
		NumberValue, SpinnerSelectedIndex,
	} {
		_, ok := c.Signature(name)
		require.True(t, ok, name)
	}

	s, ok := c.Signature(StartMenuTransition)
	require.True(t, ok)
	require.Equal(t, sigscan.Signature{
		Name:   StartMenuTransition,
		Base:   "UGFxMainAndPauseBaseMenu::OnOptionsClicked",
		Offset: 51,
		Read:   sigscan.ReadRel32,
	}, s)

	s, _ = c.Signature(SetupSlider)
	require.NotEmpty(t, s.Fallback)
	s, _ = c.Signature(OptionListOffset)
	require.Equal(t, sigscan.ReadInt8, s.Read)
}

func Test_DefaultPatternOffsets(t *testing.T) {
	c := Default()
	for _, tc := range []struct {
		name string
		len  int
	}{
		{"UGFxMainAndPauseBaseMenu::OnOptionsClicked", 66},
		{Refresh, 63},
		{SetMenuState, 27},
		{SetupTitle, 36},
		{SetupSpinner, 106},
		{SetupDropdown, 163},
		{BindUFunction, 54},
		{AddMenuItem, 40},
		{NumberValue, 35},
		{SpinnerSelectedIndex, 41},
	} {
		s, ok := c.Signature(tc.name)
		require.True(t, ok, tc.name)
		p, err := sigscan.Parse(s.Pattern)
		require.NoError(t, err)
		require.Equal(t, tc.len, p.Len(), tc.name)
	}
}

func Test_Load(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "oakhook.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\ndebug: true\n"), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "debug", c.Log.Level)
	require.True(t, c.Debug)
	require.Equal(t, "Borderlands3.exe", c.Focus.MenuExecutable)
	require.Equal(t, len(Default().Signatures), len(c.Signatures))

	require.NoError(t, os.WriteFile(path, []byte(`
signatures:
  - name: a
    pattern: "E8 {????????}"
    read: rel32
  - name: b
    base: a
    offset: 4
    optional: true
`), 0o600))
	c, err = Load(path)
	require.NoError(t, err)
	require.Equal(t, []sigscan.Signature{
		{Name: "a", Pattern: "E8 {????????}", Read: sigscan.ReadRel32},
		{Name: "b", Base: "a", Offset: 4, Optional: true},
	}, c.Signatures)
}

func Test_LoadInvalid(t *testing.T) {
	for name, body := range map[string]string{
		"duplicate":   "signatures:\n  - {name: a, pattern: '90'}\n  - {name: a, pattern: '91'}\n",
		"bad pattern": "signatures:\n  - {name: a, pattern: 'XY'}\n",
		"no base":     "signatures:\n  - {name: a, base: b}\n",
		"both":        "signatures:\n  - {name: a, pattern: '90', base: a}\n",
		"bad read":    "signatures:\n  - {name: a, pattern: '90', read: float}\n",
		"focus":       "focus:\n  is_in_menu: nope\n",
	} {
		path := filepath.Join(t.TempDir(), "c.yaml")
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
		_, err := Load(path)
		require.ErrorIs(t, err, ErrInvalid, name)
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
