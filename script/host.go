// Package script runs mod scripts in a yaegi interpreter.
//
// Scripts import "oakhook" for the mod menu API. Everything a script does,
// at load time or inside a callback, runs under the bridge host lock; API
// calls made from there reuse the held context so hooks they trigger can
// call back into the script.
package script

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"go.uber.org/zap"

	"github.com/k2io/oakhook/bridge"
	"github.com/k2io/oakhook/internal/log"
	"github.com/k2io/oakhook/keybinds"
	"github.com/k2io/oakhook/menu"
)

// ImportPath is the path scripts import the API under.
const ImportPath = "oakhook"

// stdlib packages scripts may import
var allowedPkgs = []string{
	"errors/errors",
	"fmt/fmt",
	"math/math",
	"sort/sort",
	"strconv/strconv",
	"strings/strings",
}

// Keybinds is the part of keybinds.Table scripts use.
type Keybinds interface {
	Register(key bridge.Name, event *keybinds.Event, gameplay bool, cb bridge.Callable) keybinds.Handle
	Deregister(h keybinds.Handle)
}

type Dialogs interface {
	Show(ctx context.Context, gameInstance uintptr, configure bridge.Callable)
}

type Options interface {
	Open(ctx context.Context, menu uintptr, name string, cb bridge.Callable) error
	Refresh(ctx context.Context, menu uintptr, cb bridge.Callable, preserveScroll bool) error
}

type Entries interface {
	AddTitle(menu uintptr, name string) error
	AddSlider(menu uintptr, s menu.Slider) error
	AddSpinner(menu uintptr, s menu.Spinner) error
	AddBoolSpinner(menu uintptr, s menu.BoolSpinner) error
	AddDropdown(menu uintptr, d menu.Dropdown) error
	AddButton(menu uintptr, info menu.Info) error
	AddBinding(menu uintptr, b menu.Binding) error
}

type OuterMenu interface {
	SetAddMenuItemCallback(cb bridge.Callable)
	AddMenuItem(menu uintptr, text, callbackName string, big bool, alwaysMinusOne int32) (int32, error)
	BeginConfigureMenuItems(ctx context.Context, menu uintptr)
	SetMenuState(ctx context.Context, menu uintptr, state int32)
	GetMenuState(menu uintptr) (int32, error)
}

type Getters interface {
	ComboBoxIndex(item uintptr) int32
	NumberValue(item uintptr) float32
	SpinnerIndex(item uintptr) int32
}

// Features are the game features scripts drive. Nil features are reported
// to scripts as unavailable.
type Features struct {
	Keybinds Keybinds
	Dialogs  Dialogs
	Options  Options
	Entries  Entries
	Outer    OuterMenu
	Getters  Getters
}

// Host loads scripts and runs their callbacks.
type Host struct {
	host     *bridge.Host
	features Features

	mu      sync.Mutex
	ctx     context.Context
	scripts map[string]*interp.Interpreter
}

func New(host *bridge.Host, features Features) *Host {
	return &Host{
		host:     host,
		features: features,
		scripts:  make(map[string]*interp.Interpreter),
	}
}

// enter makes ctx the context API calls run under until the returned func
// is called.
func (h *Host) enter(ctx context.Context) func() {
	h.mu.Lock()
	prev := h.ctx
	h.ctx = ctx
	h.mu.Unlock()
	return func() {
		h.mu.Lock()
		h.ctx = prev
		h.mu.Unlock()
	}
}

func (h *Host) current() context.Context {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ctx == nil {
		return context.Background()
	}
	return h.ctx
}

// wrap turns a script callback into a bridge.Callable that runs it with
// the host context entered.
func (h *Host) wrap(fn func(args []bridge.Value) (bridge.Value, error)) bridge.Callable {
	return bridge.Func(func(ctx context.Context, args ...bridge.Value) (bridge.Value, error) {
		defer h.enter(ctx)()
		return fn(args)
	})
}

// Load evaluates src as the script called name, replacing any script
// loaded under that name.
func (h *Host) Load(name, src string) error {
	i := interp.New(interp.Options{})
	if err := i.Use(restrictedStdlib()); err != nil {
		return err
	}
	if err := i.Use(h.exports(name)); err != nil {
		return err
	}
	_, err := bridge.Call(context.Background(), h.host, "script "+name, h.wrap(func([]bridge.Value) (bridge.Value, error) {
		_, err := i.Eval(src)
		return bridge.None(), err
	}))
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.scripts[name] = i
	h.mu.Unlock()
	log.L().Info("loaded script", zap.String("script", name))
	return nil
}

// Eval runs src in the script called name and returns its value, as a
// debug console would.
func (h *Host) Eval(name, src string) (reflect.Value, error) {
	h.mu.Lock()
	i, ok := h.scripts[name]
	h.mu.Unlock()
	if !ok {
		return reflect.Value{}, fmt.Errorf("no script %q", name)
	}
	var v reflect.Value
	_, err := bridge.Call(context.Background(), h.host, "eval "+name, h.wrap(func([]bridge.Value) (bridge.Value, error) {
		var err error
		v, err = i.Eval(src)
		return bridge.None(), err
	}))
	return v, err
}

// LoadFile loads the script at path, named after its file.
func (h *Host) LoadFile(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if err := h.Load(name, string(src)); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// LoadDir loads every .go file in dir. A failing script is logged and
// skipped so one broken mod does not take the others down.
func (h *Host) LoadDir(dir string) (int, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.go"))
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range paths {
		if err := h.LoadFile(p); err != nil {
			log.L().Error("load script", zap.String("path", p), zap.Error(err))
			continue
		}
		n++
	}
	return n, nil
}

// Scripts lists the loaded scripts.
func (h *Host) Scripts() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(h.scripts))
	for n := range h.scripts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func restrictedStdlib() interp.Exports {
	restricted := interp.Exports{}
	for _, key := range allowedPkgs {
		if syms, ok := stdlib.Symbols[key]; ok {
			restricted[key] = syms
		}
	}
	return restricted
}
