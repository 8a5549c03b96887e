package script

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/k2io/oakhook/bridge"
	"github.com/k2io/oakhook/keybinds"
	"github.com/k2io/oakhook/menu"
)

// fakeMenus stands in for the menu features. Like the real hooks, it calls
// back into the host synchronously with the context it was given.
type fakeMenus struct {
	host   *bridge.Host
	held   []bool
	titles []string
	added  []menu.Slider
	outer  bridge.Callable
	state  map[uintptr]int32
}

func (f *fakeMenus) Show(ctx context.Context, gameInstance uintptr, configure bridge.Callable) {
	f.held = append(f.held, f.host.Held(ctx))
	bridge.Call(ctx, f.host, menu.ShowDialogHook, configure,
		bridge.ObjectValue(bridge.Object{Class: "GbxGFxDialogBoxInfo", Addr: gameInstance + 1}))
}

func (f *fakeMenus) Open(ctx context.Context, m uintptr, name string, cb bridge.Callable) error {
	f.held = append(f.held, f.host.Held(ctx))
	f.titles = append(f.titles, name)
	_, err := bridge.Call(ctx, f.host, menu.CreateItemHook, cb, bridge.ObjectValue(bridge.Object{Class: "GFxOptionBase", Addr: m}))
	return err
}

func (f *fakeMenus) Refresh(ctx context.Context, m uintptr, cb bridge.Callable, preserveScroll bool) error {
	return f.Open(ctx, m, "refresh", cb)
}

func (f *fakeMenus) AddTitle(m uintptr, name string) error {
	f.titles = append(f.titles, name)
	return nil
}

func (f *fakeMenus) AddSlider(m uintptr, s menu.Slider) error {
	f.added = append(f.added, s)
	return nil
}

func (f *fakeMenus) AddSpinner(uintptr, menu.Spinner) error         { return nil }
func (f *fakeMenus) AddBoolSpinner(uintptr, menu.BoolSpinner) error { return nil }
func (f *fakeMenus) AddDropdown(uintptr, menu.Dropdown) error       { return nil }
func (f *fakeMenus) AddButton(uintptr, menu.Info) error             { return nil }
func (f *fakeMenus) AddBinding(uintptr, menu.Binding) error         { return nil }

func (f *fakeMenus) SetAddMenuItemCallback(cb bridge.Callable) { f.outer = cb }

func (f *fakeMenus) AddMenuItem(uintptr, string, string, bool, int32) (int32, error) {
	return 5, nil
}

func (f *fakeMenus) BeginConfigureMenuItems(ctx context.Context, m uintptr) {
	f.held = append(f.held, f.host.Held(ctx))
}

func (f *fakeMenus) SetMenuState(ctx context.Context, m uintptr, state int32) {
	f.state[m] = state
}

func (f *fakeMenus) GetMenuState(m uintptr) (int32, error) { return f.state[m], nil }

func newHost(t *testing.T) (*Host, *bridge.Host, *keybinds.Table, *fakeMenus) {
	t.Helper()
	host := &bridge.Host{}
	table := keybinds.NewTable(host, keybinds.FocusFunc(func(context.Context, uintptr) (bool, error) {
		return false, nil
	}))
	f := &fakeMenus{host: host, state: make(map[uintptr]int32)}
	h := New(host, Features{
		Keybinds: table,
		Dialogs:  f,
		Options:  f,
		Entries:  f,
		Outer:    f,
	})
	return h, host, table, f
}

func Test_Keybinds(t *testing.T) {
	h, _, table, _ := newHost(t)
	require.NoError(t, h.Load("binds", `package main

import (
	"fmt"

	"oakhook"
)

var Seen []string

func init() {
	_, err := oakhook.RegisterKeybind("F1", "Pressed", true, func(key, event string) oakhook.Result {
		Seen = append(Seen, key+" "+event)
		return oakhook.Block
	})
	if err != nil {
		panic(err)
	}
	oakhook.RegisterKeybind(oakhook.AnyKey, "", false, func(key, event string) oakhook.Result {
		Seen = append(Seen, fmt.Sprintf("any %s %s", key, event))
		return oakhook.Continue
	})
}
`))
	require.Equal(t, 2, table.Len())
	require.True(t, table.HandleEvent(context.Background(), 0x10, "F1", keybinds.Pressed))
	require.False(t, table.HandleEvent(context.Background(), 0x10, "F2", keybinds.Released))

	v, err := h.Eval("binds", "Seen")
	require.NoError(t, err)
	require.Equal(t, []string{"F1 IE_Pressed", "any F1 IE_Pressed", "any F2 IE_Released"}, v.Interface())
}

func Test_KeybindBadEvent(t *testing.T) {
	h, _, table, _ := newHost(t)
	require.NoError(t, h.Load("bad", `package main

import "oakhook"

var Err error

func init() {
	_, Err = oakhook.RegisterKeybind("F1", "IE_Held", false, func(key, event string) oakhook.Result {
		return oakhook.Continue
	})
}
`))
	require.Zero(t, table.Len())
	v, err := h.Eval("bad", "Err != nil")
	require.NoError(t, err)
	require.Equal(t, true, v.Interface())
}

func Test_NestedMenuCalls(t *testing.T) {
	h, host, _, f := newHost(t)
	require.NoError(t, h.Load("menus", `package main

import "oakhook"

var Log []string

func init() {
	oakhook.ShowDialogBox(0x100, func(info oakhook.Object) {
		Log = append(Log, info.Class)
		oakhook.OpenCustomOptions(info.Addr, "Nested", func(menu oakhook.Object) {
			Log = append(Log, menu.Class)
			oakhook.AddTitle(menu.Addr, "General")
			oakhook.AddSlider(menu.Addr, oakhook.Slider{
				Info:  oakhook.Info{Name: "Speed"},
				Value: 2,
				Max:   10,
			})
		})
	})
}
`))
	require.Equal(t, []bool{true, true}, f.held)
	require.Equal(t, []string{"Nested", "General"}, f.titles)
	require.Equal(t, []menu.Slider{{Info: menu.Info{Name: "Speed"}, Value: 2, Max: 10}}, f.added)
	require.Equal(t, int64(1), host.Acquisitions())

	v, err := h.Eval("menus", "Log")
	require.NoError(t, err)
	require.Equal(t, []string{"GbxGFxDialogBoxInfo", "GFxOptionBase"}, v.Interface())
}

func Test_OuterMenu(t *testing.T) {
	h, host, _, f := newHost(t)
	require.NoError(t, h.Load("outer", `package main

import "oakhook"

func init() {
	oakhook.SetAddMenuItemCallback(func(item oakhook.MenuItem) int {
		if item.Big {
			return 100 + item.AlwaysMinusOne
		}
		idx, _ := oakhook.AddMenuItem(item.Menu.Addr, "Mods", "OnModsClicked", false, -1)
		return idx
	})
	oakhook.SetMenuState(0x40, 3)
	oakhook.BeginConfigureMenuItems(0x40)
}
`))
	require.NotNil(t, f.outer)
	require.Equal(t, []bool{true}, f.held)
	require.Equal(t, int32(3), f.state[0x40])

	args := func(big bool) []bridge.Value {
		return []bridge.Value{
			bridge.ObjectValue(bridge.Object{Class: "GFxMainAndPauseBaseMenu", Addr: 0x40}),
			bridge.StringValue("Quit"),
			bridge.NameValue("OnQuitClicked"),
			bridge.BoolValue(big),
			bridge.IntValue(-1),
		}
	}
	v, err := bridge.Call(context.Background(), host, menu.AddMenuItemHook, f.outer, args(true)...)
	require.NoError(t, err)
	require.Equal(t, int64(99), v.Int())
	v, err = bridge.Call(context.Background(), host, menu.AddMenuItemHook, f.outer, args(false)...)
	require.NoError(t, err)
	require.Equal(t, int64(5), v.Int())

	state, err := h.Eval("outer", "func() int { s, _ := oakhook.GetMenuState(0x40); return s }()")
	require.NoError(t, err)
	require.Equal(t, 3, state.Interface())
}

func Test_Unavailable(t *testing.T) {
	host := &bridge.Host{}
	h := New(host, Features{})
	require.NoError(t, h.Load("none", `package main

import (
	"errors"

	"oakhook"
)

func init() {
	if err := oakhook.ShowDialogBox(1, func(oakhook.Object) {}); err == nil {
		panic(errors.New("dialog box should be unavailable"))
	}
	if _, err := oakhook.GetNumberValue(1); err == nil {
		panic(errors.New("getters should be unavailable"))
	}
	if _, err := oakhook.RegisterKeybind("F1", "", false, func(string, string) oakhook.Result { return oakhook.Continue }); err == nil {
		panic(errors.New("keybinds should be unavailable"))
	}
}
`))
}

func Test_LoadFailures(t *testing.T) {
	h, _, _, _ := newHost(t)
	require.Error(t, h.Load("syntax", "package main\nfunc init( {"))
	require.Error(t, h.Load("panics", "package main\nfunc init() { panic(\"boom\") }\n"))
	require.Error(t, h.Load("forbidden", "package main\nimport \"os\"\nfunc init() { os.Exit(1) }\n"))
	require.Empty(t, h.Scripts())

	_, err := h.Eval("missing", "1")
	require.Error(t, err)
}

func Test_LoadDir(t *testing.T) {
	h, _, _, _ := newHost(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.go"), []byte("package main\n\nvar X = 1\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.go"), []byte("package main\n\nvar X = \n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a script"), 0o600))

	n, err := h.LoadDir(dir)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, []string{"good"}, h.Scripts())
}
