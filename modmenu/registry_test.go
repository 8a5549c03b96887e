package modmenu

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/k2io/oakhook"
	"github.com/k2io/oakhook/config"
	"github.com/k2io/oakhook/image"
	"github.com/k2io/oakhook/internal/log"
	"github.com/k2io/oakhook/keybinds"
	"github.com/k2io/oakhook/menu/menutest"
	"github.com/k2io/oakhook/sigscan"
)

const codeBase uintptr = 0x140001000

const (
	softObjectOffset = 0x20
	optionListOffset = 0x38
	menuStateOffset  = 0x50
	cursorOffset     = 0x60
)

const blockScript = `package main

import "oakhook"

func init() {
	oakhook.RegisterKeybind("F1", "Pressed", false, func(key, event string) oakhook.Result {
		return oakhook.Block
	})
	oakhook.RegisterKeybind("F3", "", true, func(key, event string) oakhook.Result {
		return oakhook.Block
	})
}

func State(menu uintptr) int {
	s, err := oakhook.GetMenuState(menu)
	if err != nil {
		panic(err)
	}
	return s
}
`

// implant returns bytes matched by pattern: wildcards become zero, nibble
// wildcards keep their fixed nibble.
func implant(pattern string) []byte {
	var out []byte
	for _, tok := range strings.Fields(strings.NewReplacer("{", " ", "}", " ").Replace(pattern)) {
		if tok == "?" {
			out = append(out, 0)
			continue
		}
		for i := 0; i+1 < len(tok); i += 2 {
			v, err := strconv.ParseUint(strings.ReplaceAll(tok[i:i+2], "?", "0"), 16, 8)
			if err != nil {
				panic(err)
			}
			out = append(out, byte(v))
		}
	}
	return out
}

// fixture is a game whose code holds every built-in pattern once. Every
// resolved routine is a stub counting its calls.
type fixture struct {
	cfg   *config.Config
	code  *image.Buffer
	eng   *menutest.Engine
	table *oakhook.CallTable
	addrs sigscan.Addresses
	calls map[uintptr]int
	dir   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		cfg:   config.Default(),
		eng:   menutest.NewEngine(),
		table: oakhook.NewCallTable(),
		calls: make(map[uintptr]int),
		dir:   t.TempDir(),
	}
	// the test logger must not outlive its test
	t.Cleanup(func() { log.Set(nil) })
	gap := bytes.Repeat([]byte{0xCC}, 16)
	code := append([]byte(nil), gap...)
	at := make(map[string]int)
	for _, s := range f.cfg.Signatures {
		if s.Pattern == "" {
			continue
		}
		at[s.Name] = len(code)
		code = append(code, implant(s.Pattern)...)
		code = append(code, gap...)
	}
	for name, v := range map[string][]byte{
		config.SoftObjectOffset: binary.LittleEndian.AppendUint32(nil, softObjectOffset),
		config.OptionListOffset: {optionListOffset},
		config.MenuStateOffset:  binary.LittleEndian.AppendUint32(nil, menuStateOffset),
	} {
		s, ok := f.cfg.Signature(name)
		require.True(t, ok, name)
		copy(code[at[s.Base]+s.Offset:], v)
	}
	f.code = image.NewBuffer(codeBase, code)

	var err error
	f.addrs, err = sigscan.Resolve(f.code, f.cfg.Signatures)
	require.NoError(t, err)
	for _, addr := range f.addrs {
		if addr < codeBase {
			continue
		}
		addr := addr
		f.table.Define(addr, func(...uintptr) uintptr {
			f.calls[addr]++
			return 1
		})
	}
	return f
}

func (f *fixture) options(t *testing.T) Options {
	return Options{
		Config:     f.cfg,
		Image:      f.code,
		Memory:     f.eng.Mem,
		Binder:     f.table,
		Objects:    f.eng,
		Executable: `C:\Games\Wonderlands\Wonderlands.exe`,
		ScriptDir:  f.dir,
		Logger:     zaptest.NewLogger(t),
	}
}

// key returns an FKey for name.
func (f *fixture) key(t *testing.T, name string) uintptr {
	key, err := f.eng.Construct("Key")
	require.NoError(t, err)
	n, err := f.eng.Name(name)
	require.NoError(t, err)
	f.eng.Write(key, binary.LittleEndian.AppendUint64(nil, n))
	return key
}

func (f *fixture) inputKey(actor, key uintptr, event keybinds.Event) uintptr {
	return f.table.Call(f.addrs[config.InputKey], actor, key, uintptr(event), 0, 0)
}

func Test_Resolve(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, softObjectOffset, f.addrs.Int(config.SoftObjectOffset))
	require.Equal(t, optionListOffset, f.addrs.Int(config.OptionListOffset))
	require.Equal(t, menuStateOffset, f.addrs.Int(config.MenuStateOffset))
	for _, name := range []string{config.ComboBoxSelectedIndex, config.NumberValue, config.SpinnerSelectedIndex} {
		require.NotZero(t, f.addrs[name], name)
	}
}

func Test_Init(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "block.go"), []byte(blockScript), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "broken.go"), []byte("package main\n\nfunc init() {"), 0o644))
	// not a script
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "notes.txt"), []byte("hello"), 0o644))

	r, err := Init(f.options(t))
	require.NoError(t, err)
	defer r.Shutdown()

	require.NotNil(t, r.Dialogs)
	require.NotNil(t, r.Options)
	require.NotNil(t, r.Entries)
	require.NotNil(t, r.Outer)
	require.NotNil(t, r.Getters)
	require.Equal(t, []string{"block"}, r.Scripts.Scripts())
	require.Equal(t, 2, r.Keybinds.Len())
	require.Equal(t, 6, r.binder.len())

	actor, err := f.eng.Construct("OakPlayerController")
	require.NoError(t, err)
	inputKey := f.addrs[config.InputKey]

	require.Zero(t, f.inputKey(actor, f.key(t, "F1"), keybinds.Pressed))
	require.Zero(t, f.calls[inputKey])
	require.Equal(t, uintptr(1), f.inputKey(actor, f.key(t, "F1"), keybinds.Released))
	require.Equal(t, uintptr(1), f.inputKey(actor, f.key(t, "F2"), keybinds.Pressed))
	require.Equal(t, 2, f.calls[inputKey])

	// gameplay binds only run while the cursor is hidden
	f3 := f.key(t, "F3")
	require.Zero(t, f.inputKey(actor, f3, keybinds.Pressed))
	f.eng.Write(actor+cursorOffset, []byte{0x01})
	require.Equal(t, uintptr(1), f.inputKey(actor, f3, keybinds.Pressed))
	require.Equal(t, 3, f.calls[inputKey])

	m, err := f.eng.Construct("GFxMainMenu")
	require.NoError(t, err)
	f.eng.Write(m+menuStateOffset, binary.LittleEndian.AppendUint32(nil, 3))
	v, err := r.Scripts.Eval("block", fmt.Sprintf("State(%d)", m))
	require.NoError(t, err)
	require.Equal(t, 3, v.Interface())
}

func Test_Shutdown(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "block.go"), []byte(blockScript), 0o644))
	r, err := Init(f.options(t))
	require.NoError(t, err)

	_, err = Init(f.options(t))
	require.ErrorIs(t, err, ErrActive)

	require.NoError(t, r.Shutdown())
	require.NoError(t, r.Shutdown())
	require.Zero(t, r.Keybinds.Len())

	f1 := f.key(t, "F1")
	require.Equal(t, uintptr(1), f.inputKey(0, f1, keybinds.Pressed))
	require.Equal(t, 1, f.calls[f.addrs[config.InputKey]])

	// every target can be hooked again
	r, err = Init(f.options(t))
	require.NoError(t, err)
	require.Zero(t, f.inputKey(0, f1, keybinds.Pressed))
	require.NoError(t, r.Shutdown())
}

func Test_InitMissingSignature(t *testing.T) {
	f := newFixture(t)
	opts := f.options(t)
	cfg := *f.cfg
	cfg.Signatures = append([]sigscan.Signature(nil), f.cfg.Signatures...)
	for i := range cfg.Signatures {
		if cfg.Signatures[i].Name == config.InputKey {
			cfg.Signatures[i].Pattern = "DE AD BE EF"
		}
	}
	opts.Config = &cfg

	_, err := Init(opts)
	require.ErrorIs(t, err, sigscan.ErrPatternNotFound)
	require.ErrorContains(t, err, config.InputKey)

	r, err := Init(f.options(t))
	require.NoError(t, err)
	require.NoError(t, r.Shutdown())
}

func Test_InitUndoesHooks(t *testing.T) {
	f := newFixture(t)
	delete(f.eng.Offsets, "GbxGFxGridScrollingList.UiScroller")

	_, err := Init(f.options(t))
	require.Error(t, err)

	// the keybind and dialog hooks went in before options failed
	for _, name := range []string{config.InputKey, config.ShowDialog} {
		_, err := f.table.Hook(f.addrs[name], 1, func(...uintptr) uintptr { return 0 }, "probe")
		require.NoError(t, err, name)
		require.NoError(t, f.table.Unhook(f.addrs[name]))
	}

	f.eng.Offsets["GbxGFxGridScrollingList.UiScroller"] = 0x40
	r, err := Init(f.options(t))
	require.NoError(t, err)
	require.NoError(t, r.Shutdown())
}

func Test_InitNeedsObjects(t *testing.T) {
	f := newFixture(t)
	opts := f.options(t)
	opts.Objects = nil
	_, err := Init(opts)
	require.ErrorIs(t, err, ErrNoObjects)
}
