// Package modmenu wires the mod menu into the running game: it resolves the
// signature table, installs every hook and loads the mod scripts.
package modmenu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/k2io/oakhook"
	"github.com/k2io/oakhook/bridge"
	"github.com/k2io/oakhook/config"
	"github.com/k2io/oakhook/image"
	"github.com/k2io/oakhook/internal/log"
	"github.com/k2io/oakhook/keybinds"
	"github.com/k2io/oakhook/menu"
	"github.com/k2io/oakhook/script"
	"github.com/k2io/oakhook/sigscan"
)

var (
	// ErrActive means another registry has not been shut down
	ErrActive = errors.New("mod menu already initialised")
	// ErrNoObjects means Options.Objects was not set
	ErrNoObjects = errors.New("no engine object system")
)

// hooks install process wide, so only one registry may own them
var active atomic.Bool

// Options configure Init. Only Objects is required; everything else
// defaults to the live process.
type Options struct {
	// Config defaults to config.Default.
	Config *config.Config
	// Image is scanned for signatures. Defaults to the main module.
	Image  image.Image
	Memory oakhook.Memory
	Binder oakhook.Binder
	// Objects is the engine object system of the scripting SDK.
	Objects menu.Objects
	// Extension overrides how custom options get into the options menu.
	Extension menu.ExtensionPoint
	// Executable picks the menu focus query. Defaults to os.Executable.
	Executable string
	// ScriptDir holds the mod scripts to load, if set.
	ScriptDir string
	// Logger replaces the logger built from Config.Log.
	Logger *zap.Logger
}

// Registry owns everything Init installed.
type Registry struct {
	Config    *config.Config
	Addresses sigscan.Addresses
	Host      *bridge.Host
	Keybinds  *keybinds.Table
	Dialogs   *menu.DialogBox
	Options   *menu.Options
	Entries   *menu.Entries
	Outer     *menu.OuterMenu
	// Getters is nil when the build lacks one of the getter routines.
	Getters *menu.Getters
	Scripts *script.Host

	binder *trackedBinder
	mu     sync.Mutex
	closed bool
}

// Init resolves every signature and installs every hook. A failure at any
// step undoes the hooks already installed.
func Init(opts Options) (r *Registry, err error) {
	if !active.CompareAndSwap(false, true) {
		return nil, ErrActive
	}
	defer func() {
		if err != nil {
			active.Store(false)
		}
	}()

	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := setupLogging(cfg, opts.Logger); err != nil {
		return nil, err
	}
	oakhook.SetDebug(cfg.Debug)
	if opts.Objects == nil {
		return nil, ErrNoObjects
	}
	if opts.Image == nil {
		m, err := image.Self()
		if err != nil {
			return nil, fmt.Errorf("main module: %w", err)
		}
		opts.Image = m
	}
	if opts.Memory == nil {
		opts.Memory = oakhook.LiveMemory{}
	}
	if opts.Binder == nil {
		if opts.Binder, err = defaultBinder(opts.Memory); err != nil {
			return nil, err
		}
	}
	if opts.Executable == "" {
		// an unknown executable falls back to the cursor focus
		opts.Executable, _ = os.Executable()
	}

	addrs, err := sigscan.Resolve(opts.Image, cfg.Signatures)
	if err != nil {
		return nil, fmt.Errorf("resolve signatures: %w", err)
	}
	r = &Registry{
		Config:    cfg,
		Addresses: addrs,
		Host:      &bridge.Host{},
		binder:    &trackedBinder{Binder: opts.Binder},
	}
	defer func() {
		if err != nil {
			if uerr := r.binder.unhookAll(); uerr != nil {
				log.L().Error("undo hooks", zap.Error(uerr))
			}
		}
	}()

	if err := r.hookKeybinds(opts); err != nil {
		return nil, err
	}
	if err := r.buildMenus(opts); err != nil {
		return nil, err
	}
	r.Scripts = script.New(r.Host, r.features())
	if opts.ScriptDir != "" {
		n, err := r.Scripts.LoadDir(opts.ScriptDir)
		if err != nil {
			return nil, fmt.Errorf("load scripts: %w", err)
		}
		log.L().Info("loaded scripts", zap.Int("count", n), zap.String("dir", opts.ScriptDir))
	}
	log.L().Info("mod menu ready", zap.Int("hooks", r.binder.len()))
	return r, nil
}

func setupLogging(cfg *config.Config, logger *zap.Logger) error {
	if logger == nil {
		var err error
		if logger, err = log.New(cfg.Log.Level, cfg.Log.Paths...); err != nil {
			return fmt.Errorf("logger: %w", err)
		}
	}
	log.Set(logger)
	return nil
}

func (r *Registry) hookKeybinds(opts Options) error {
	offset, err := opts.Objects.PropertyOffset("PlayerController", "bShowMouseCursor")
	if err != nil {
		return fmt.Errorf("cursor focus: %w", err)
	}
	cursor := keybinds.CursorFocus{Mem: opts.Memory, Offset: offset, Mask: r.Config.Focus.CursorMask}
	var native keybinds.Focus
	if name := r.Config.Focus.IsInMenu; name != "" && r.Addresses[name] != 0 {
		native = keybinds.NativeFocus{IsInMenu: r.binder.Native(r.Addresses[name], 1)}
	}
	focus := keybinds.SelectFocus(opts.Executable, r.Config.Focus.MenuExecutable, native, cursor)

	r.Keybinds = keybinds.NewTable(r.Host, focus)
	return r.Keybinds.Hook(r.binder, r.Addresses[config.InputKey], keyReader(opts.Memory, opts.Objects))
}

// keyReader reads FKey::KeyName, the FName at the start of an FKey.
func keyReader(mem oakhook.Memory, objects menu.Objects) keybinds.KeyReader {
	return keybinds.KeyReaderFunc(func(key uintptr) (bridge.Name, error) {
		b, err := mem.ReadAt(key, 8)
		if err != nil {
			return "", err
		}
		s, err := objects.NameString(binary.LittleEndian.Uint64(b))
		return bridge.Name(s), err
	})
}

func (r *Registry) buildMenus(opts Options) error {
	a := r.Addresses
	var err error
	r.Dialogs, err = menu.NewDialogBox(r.Host, opts.Memory, opts.Objects, r.binder,
		a[config.ShowDialog], a[config.DisplayNATHelpDialog])
	if err != nil {
		return err
	}

	ext := opts.Extension
	if ext == nil {
		if ext, err = menu.NewAccessibility(opts.Memory, opts.Objects, r.binder, menu.AccessibilityAddrs{
			SetFirstOptions:     a[config.SetFirstOptions],
			StartMenuTransition: a[config.StartMenuTransition],
			SoftObjectOffset:    a.Int(config.SoftObjectOffset),
			OptionListOffset:    a.Int(config.OptionListOffset),
		}); err != nil {
			return err
		}
	}
	r.Options, err = menu.NewOptions(r.Host, opts.Memory, opts.Objects, ext, r.binder, menu.OptionsAddrs{
		Refresh:          a[config.Refresh],
		CreateItem:       a[config.CreateItem],
		GetOptionTitle:   a[config.GetOptionTitle],
		ScrollToPosition: a[config.ScrollToPosition],
	})
	if err != nil {
		return err
	}

	r.Entries, err = menu.NewEntries(opts.Memory, opts.Objects, r.binder, menu.EntryAddrs{
		Title:         a[config.SetupTitle],
		Slider:        a[config.SetupSlider],
		Spinner:       a[config.SetupSpinner],
		BoolSpinner:   a[config.SetupBoolSpinner],
		Dropdown:      a[config.SetupDropdown],
		Button:        a[config.SetupButton],
		Controls:      a[config.SetupControls],
		BindUFunction: a[config.BindUFunction],
	})
	if err != nil {
		return err
	}

	r.Outer, err = menu.NewOuterMenu(r.Host, opts.Memory, opts.Objects, r.binder, menu.OuterMenuAddrs{
		AddMenuItem:             a[config.AddMenuItem],
		BeginConfigureMenuItems: a[config.BeginConfigureMenuItems],
		SetMenuState:            a[config.SetMenuState],
		MenuStateOffset:         a.Int(config.MenuStateOffset),
	})
	if err != nil {
		return err
	}

	getters := menu.GetterAddrs{
		ComboBoxSelectedIndex: a[config.ComboBoxSelectedIndex],
		NumberValue:           a[config.NumberValue],
		SpinnerSelectedIndex:  a[config.SpinnerSelectedIndex],
	}
	if getters.ComboBoxSelectedIndex == 0 || getters.NumberValue == 0 || getters.SpinnerSelectedIndex == 0 {
		log.L().Warn("option getters unavailable")
		return nil
	}
	r.Getters, err = menu.NewGetters(r.binder, getters)
	return err
}

// features hands the built features to scripts. Each is only set when
// built, a typed nil would not read as unavailable.
func (r *Registry) features() script.Features {
	f := script.Features{
		Keybinds: r.Keybinds,
		Dialogs:  r.Dialogs,
		Options:  r.Options,
		Entries:  r.Entries,
		Outer:    r.Outer,
	}
	if r.Getters != nil {
		f.Getters = r.Getters
	}
	return f
}

// Shutdown removes every keybind and hook. The registry is unusable
// afterwards and a new one may be created.
func (r *Registry) Shutdown() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	r.Keybinds.DeregisterAll()
	r.Outer.SetAddMenuItemCallback(nil)
	err := r.binder.unhookAll()
	active.Store(false)
	log.L().Info("mod menu shut down", zap.Error(err))
	return err
}

// trackedBinder records the targets hooked through it so they can be
// undone, newest first.
type trackedBinder struct {
	oakhook.Binder

	mu      sync.Mutex
	targets []uintptr
}

func (b *trackedBinder) Hook(target uintptr, arity int, fn oakhook.Func, name string) (oakhook.Func, error) {
	orig, err := b.Binder.Hook(target, arity, fn, name)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.targets = append(b.targets, target)
	b.mu.Unlock()
	return orig, nil
}

func (b *trackedBinder) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.targets)
}

func (b *trackedBinder) unhookAll() error {
	b.mu.Lock()
	targets := b.targets
	b.targets = nil
	b.mu.Unlock()

	var err error
	for i := len(targets) - 1; i >= 0; i-- {
		err = multierr.Append(err, b.Binder.Unhook(targets[i]))
	}
	return err
}
