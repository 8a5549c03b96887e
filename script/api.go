package script

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/traefik/yaegi/interp"
	"go.uber.org/zap"

	"github.com/k2io/oakhook/bridge"
	"github.com/k2io/oakhook/internal/log"
	"github.com/k2io/oakhook/keybinds"
	"github.com/k2io/oakhook/menu"
)

var (
	// ErrUnavailable means the game build lacks what a feature needs
	ErrUnavailable = errors.New("feature unavailable")
	ErrNilCallback = errors.New("nil callback")
)

// Result is returned by keybind callbacks.
type Result int

const (
	// Continue lets the game handle the key as well.
	Continue Result = iota
	// Block stops the game from seeing the key.
	Block
)

// Object is an engine object handed to a callback.
type Object = bridge.Object

// MenuItem is an outer menu entry the game is about to add.
type MenuItem struct {
	Menu           Object
	Text           string
	CallbackName   string
	Big            bool
	AlwaysMinusOne int
}

func unavailable(feature string) error {
	return fmt.Errorf("%s: %w", feature, ErrUnavailable)
}

// objectArg returns the object a menu hook passes its callback.
func objectArg(args []bridge.Value) (Object, error) {
	if len(args) == 0 || args[0].Kind() != bridge.KindObject {
		return Object{}, fmt.Errorf("callback expected an object, got %d args", len(args))
	}
	return args[0].Object(), nil
}

func (h *Host) objectCallback(fn func(Object)) bridge.Callable {
	return h.wrap(func(args []bridge.Value) (bridge.Value, error) {
		obj, err := objectArg(args)
		if err != nil {
			return bridge.None(), err
		}
		fn(obj)
		return bridge.None(), nil
	})
}

func (h *Host) registerKeybind(key, event string, gameplay bool, fn func(key, event string) Result) (uint64, error) {
	if h.features.Keybinds == nil {
		return 0, unavailable("keybinds")
	}
	if fn == nil {
		return 0, ErrNilCallback
	}
	var filter *keybinds.Event
	if event != "" {
		ev, err := keybinds.ParseEvent(event)
		if err != nil {
			return 0, err
		}
		filter = &ev
		event = ev.String()
	}
	cb := h.wrap(func(args []bridge.Value) (bridge.Value, error) {
		k, e := key, event
		for _, a := range args {
			switch a.Kind() {
			case bridge.KindName:
				k = string(a.Name())
			case bridge.KindEnum:
				e = keybinds.Event(a.Enum().Value).String()
			}
		}
		if fn(k, e) == Block {
			return bridge.Block, nil
		}
		return bridge.None(), nil
	})
	return uint64(h.features.Keybinds.Register(bridge.Name(key), filter, gameplay, cb)), nil
}

func (h *Host) showDialogBox(gameInstance uintptr, configure func(info Object)) error {
	if h.features.Dialogs == nil {
		return unavailable("dialog box")
	}
	if configure == nil {
		return ErrNilCallback
	}
	h.features.Dialogs.Show(h.current(), gameInstance, h.objectCallback(configure))
	return nil
}

func (h *Host) openCustomOptions(menu uintptr, name string, fn func(menu Object)) error {
	if h.features.Options == nil {
		return unavailable("custom options")
	}
	if fn == nil {
		return ErrNilCallback
	}
	return h.features.Options.Open(h.current(), menu, name, h.objectCallback(fn))
}

func (h *Host) refreshOptions(menu uintptr, fn func(menu Object), preserveScroll bool) error {
	if h.features.Options == nil {
		return unavailable("custom options")
	}
	if fn == nil {
		return ErrNilCallback
	}
	return h.features.Options.Refresh(h.current(), menu, h.objectCallback(fn), preserveScroll)
}

func (h *Host) setAddMenuItemCallback(fn func(item MenuItem) int) error {
	if h.features.Outer == nil {
		return unavailable("outer menu")
	}
	if fn == nil {
		h.features.Outer.SetAddMenuItemCallback(nil)
		return nil
	}
	h.features.Outer.SetAddMenuItemCallback(h.wrap(func(args []bridge.Value) (bridge.Value, error) {
		if len(args) != 5 {
			return bridge.None(), fmt.Errorf("AddMenuItem callback got %d args", len(args))
		}
		item := MenuItem{
			Menu:           args[0].Object(),
			Text:           args[1].Str(),
			CallbackName:   string(args[2].Name()),
			Big:            args[3].Bool(),
			AlwaysMinusOne: int(args[4].Int()),
		}
		return bridge.IntValue(int64(fn(item))), nil
	}))
	return nil
}

func (h *Host) outer() (OuterMenu, error) {
	if h.features.Outer == nil {
		return nil, unavailable("outer menu")
	}
	return h.features.Outer, nil
}

func (h *Host) entries() (Entries, error) {
	if h.features.Entries == nil {
		return nil, unavailable("option entries")
	}
	return h.features.Entries, nil
}

func (h *Host) getters() (Getters, error) {
	if h.features.Getters == nil {
		return nil, unavailable("option getters")
	}
	return h.features.Getters, nil
}

// exports is the "oakhook" package as seen by the script called name.
func (h *Host) exports(name string) interp.Exports {
	logger := func() *zap.Logger { return log.L().With(zap.String("script", name)) }

	return interp.Exports{
		ImportPath + "/" + ImportPath: {
			"Result":      reflect.ValueOf((*Result)(nil)),
			"Object":      reflect.ValueOf((*Object)(nil)),
			"MenuItem":    reflect.ValueOf((*MenuItem)(nil)),
			"Info":        reflect.ValueOf((*menu.Info)(nil)),
			"Slider":      reflect.ValueOf((*menu.Slider)(nil)),
			"Spinner":     reflect.ValueOf((*menu.Spinner)(nil)),
			"BoolSpinner": reflect.ValueOf((*menu.BoolSpinner)(nil)),
			"Dropdown":    reflect.ValueOf((*menu.Dropdown)(nil)),
			"Binding":     reflect.ValueOf((*menu.Binding)(nil)),

			"Block":       reflect.ValueOf(Block),
			"Continue":    reflect.ValueOf(Continue),
			"AnyKey":      reflect.ValueOf(string(keybinds.AnyKey)),
			"Pressed":     reflect.ValueOf(keybinds.Pressed.String()),
			"Released":    reflect.ValueOf(keybinds.Released.String()),
			"Repeat":      reflect.ValueOf(keybinds.Repeat.String()),
			"DoubleClick": reflect.ValueOf(keybinds.DoubleClick.String()),
			"Axis":        reflect.ValueOf(keybinds.Axis.String()),

			"Log": reflect.ValueOf(func(msg string) { logger().Info(msg) }),

			"RegisterKeybind": reflect.ValueOf(h.registerKeybind),
			"DeregisterKeybind": reflect.ValueOf(func(handle uint64) {
				if h.features.Keybinds != nil {
					h.features.Keybinds.Deregister(keybinds.Handle(handle))
				}
			}),

			"ShowDialogBox":     reflect.ValueOf(h.showDialogBox),
			"OpenCustomOptions": reflect.ValueOf(h.openCustomOptions),
			"RefreshOptions":    reflect.ValueOf(h.refreshOptions),

			"AddTitle": reflect.ValueOf(func(menu uintptr, title string) error {
				e, err := h.entries()
				if err != nil {
					return err
				}
				return e.AddTitle(menu, title)
			}),
			"AddSlider": reflect.ValueOf(func(m uintptr, s menu.Slider) error {
				e, err := h.entries()
				if err != nil {
					return err
				}
				return e.AddSlider(m, s)
			}),
			"AddSpinner": reflect.ValueOf(func(m uintptr, s menu.Spinner) error {
				e, err := h.entries()
				if err != nil {
					return err
				}
				return e.AddSpinner(m, s)
			}),
			"AddBoolSpinner": reflect.ValueOf(func(m uintptr, s menu.BoolSpinner) error {
				e, err := h.entries()
				if err != nil {
					return err
				}
				return e.AddBoolSpinner(m, s)
			}),
			"AddDropdown": reflect.ValueOf(func(m uintptr, d menu.Dropdown) error {
				e, err := h.entries()
				if err != nil {
					return err
				}
				return e.AddDropdown(m, d)
			}),
			"AddButton": reflect.ValueOf(func(m uintptr, info menu.Info) error {
				e, err := h.entries()
				if err != nil {
					return err
				}
				return e.AddButton(m, info)
			}),
			"AddBinding": reflect.ValueOf(func(m uintptr, b menu.Binding) error {
				e, err := h.entries()
				if err != nil {
					return err
				}
				return e.AddBinding(m, b)
			}),

			"SetAddMenuItemCallback": reflect.ValueOf(h.setAddMenuItemCallback),
			"AddMenuItem": reflect.ValueOf(func(menu uintptr, text, callbackName string, big bool, alwaysMinusOne int) (int, error) {
				o, err := h.outer()
				if err != nil {
					return 0, err
				}
				idx, err := o.AddMenuItem(menu, text, callbackName, big, int32(alwaysMinusOne))
				return int(idx), err
			}),
			"BeginConfigureMenuItems": reflect.ValueOf(func(menu uintptr) error {
				o, err := h.outer()
				if err != nil {
					return err
				}
				o.BeginConfigureMenuItems(h.current(), menu)
				return nil
			}),
			"GetMenuState": reflect.ValueOf(func(menu uintptr) (int, error) {
				o, err := h.outer()
				if err != nil {
					return 0, err
				}
				state, err := o.GetMenuState(menu)
				return int(state), err
			}),
			"SetMenuState": reflect.ValueOf(func(menu uintptr, state int) error {
				o, err := h.outer()
				if err != nil {
					return err
				}
				o.SetMenuState(h.current(), menu, int32(state))
				return nil
			}),

			"GetComboBoxIndex": reflect.ValueOf(func(item uintptr) (int, error) {
				g, err := h.getters()
				if err != nil {
					return 0, err
				}
				return int(g.ComboBoxIndex(item)), nil
			}),
			"GetNumberValue": reflect.ValueOf(func(item uintptr) (float32, error) {
				g, err := h.getters()
				if err != nil {
					return 0, err
				}
				return g.NumberValue(item), nil
			}),
			"GetSpinnerIndex": reflect.ValueOf(func(item uintptr) (int, error) {
				g, err := h.getters()
				if err != nil {
					return 0, err
				}
				return int(g.SpinnerIndex(item)), nil
			}),
		},
	}
}
