package menu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/k2io/oakhook"
	"github.com/k2io/oakhook/bridge"
)

const (
	// optionCallback is the UFunction every injected entry reports to.
	optionCallback = "OnUnimplementedOptionClicked"
	delegateSize   = 0x40
	bindingCommon  = 1
)

// Slider is a float slider entry.
type Slider struct {
	Info
	Value, Min, Max float32
	// Step defaults to 1
	Step      float32
	IsInteger bool
}

// Spinner cycles through Options.
type Spinner struct {
	Info
	Index   int32
	Options []string
	Wrap    bool
}

// BoolSpinner is an on/off spinner. Empty texts keep the game's.
type BoolSpinner struct {
	Info
	Value               bool
	TrueText, FalseText string
}

// Dropdown picks one of Options.
type Dropdown struct {
	Info
	Index   int32
	Options []string
}

// Binding shows a key binding; Display is usually an image tag.
type Binding struct {
	Info
	Display string
}

// EntryAddrs are the UGFxOptionBase::Setup*Item routines.
type EntryAddrs struct {
	Title, Slider, Spinner, BoolSpinner, Dropdown, Button, Controls, BindUFunction uintptr
}

// Entries adds items to an options menu while its injection callback runs.
type Entries struct {
	objects Objects

	title, slider, spinner, boolSpinner, dropdown, button, controls, bindUFunction oakhook.Func

	// FName of optionCallback in native memory
	callback uintptr
	// one delegate is shared, only one options menu is open at a time
	delegate uintptr
}

func NewEntries(mem oakhook.Memory, objects Objects, b oakhook.Binder, addrs EntryAddrs) (*Entries, error) {
	name, err := objects.Name(optionCallback)
	if err != nil {
		return nil, err
	}
	callback, err := scratch(mem, binary.LittleEndian.AppendUint64(nil, name))
	if err != nil {
		return nil, err
	}
	delegate, err := scratch(mem, make([]byte, delegateSize))
	if err != nil {
		return nil, err
	}
	return &Entries{
		objects:       objects,
		title:         b.Native(addrs.Title, 2),
		slider:        b.Native(addrs.Slider, 4),
		spinner:       b.Native(addrs.Spinner, 4),
		boolSpinner:   b.Native(addrs.BoolSpinner, 4),
		dropdown:      b.Native(addrs.Dropdown, 5),
		button:        b.Native(addrs.Button, 3),
		controls:      b.Native(addrs.Controls, 6),
		bindUFunction: b.Native(addrs.BindUFunction, 3),
		callback:      callback,
		delegate:      delegate,
	}, nil
}

func (e *Entries) set(obj uintptr, property string, v bridge.Value) error {
	if err := e.objects.SetProperty(obj, descriptionClass, property, v); err != nil {
		return fmt.Errorf("set %s: %w", property, err)
	}
	return nil
}

// describe creates the OptionDescriptionItem for an entry.
func (e *Entries) describe(info Info) (uintptr, error) {
	obj, err := e.objects.Construct(descriptionClass)
	if err != nil {
		return 0, err
	}
	title := info.Title
	if title == "" {
		title = info.Name
	}
	if err := e.set(obj, "OptionItemName", bridge.StringValue(info.Name)); err != nil {
		return 0, err
	}
	if err := e.set(obj, "OptionDescriptionTitle", bridge.StringValue(title)); err != nil {
		return 0, err
	}
	return obj, e.set(obj, "OptionDescriptionText", bridge.StringValue(info.Description))
}

func float(f float32) uintptr { return uintptr(math.Float32bits(f)) }

func (e *Entries) AddTitle(menu uintptr, name string) error {
	text, err := e.objects.NewText(name)
	if err != nil {
		return err
	}
	e.title(menu, text)
	return nil
}

func (e *Entries) AddSlider(menu uintptr, s Slider) error {
	if s.Step == 0 {
		s.Step = 1
	}
	desc, err := e.describe(s.Info)
	if err != nil {
		return err
	}
	for _, p := range []struct {
		name string
		v    bridge.Value
	}{
		{"SliderMin", bridge.FloatValue(float64(s.Min))},
		{"SliderMax", bridge.FloatValue(float64(s.Max))},
		{"SliderStep", bridge.FloatValue(float64(s.Step))},
		{"SliderIsInteger", bridge.BoolValue(s.IsInteger)},
	} {
		if err := e.set(desc, p.name, p.v); err != nil {
			return err
		}
	}
	// the value travels in XMM2
	e.slider(menu, desc, float(s.Value), e.callback)
	return nil
}

func (e *Entries) AddSpinner(menu uintptr, s Spinner) error {
	desc, err := e.describe(s.Info)
	if err != nil {
		return err
	}
	if err := e.set(desc, "SpinnerWrapEnabled", bridge.BoolValue(s.Wrap)); err != nil {
		return err
	}
	opts := make([]bridge.Value, len(s.Options))
	for i := range s.Options {
		opts[i] = bridge.StringValue(s.Options[i])
	}
	if err := e.set(desc, "SpinnerOptions", bridge.ArrayValue(opts...)); err != nil {
		return err
	}
	e.spinner(menu, desc, uintptr(uint32(s.Index)), e.callback)
	return nil
}

func (e *Entries) AddBoolSpinner(menu uintptr, s BoolSpinner) error {
	desc, err := e.describe(s.Info)
	if err != nil {
		return err
	}
	if s.TrueText != "" {
		if err := e.set(desc, "BooleanOnText", bridge.StringValue(s.TrueText)); err != nil {
			return err
		}
	}
	if s.FalseText != "" {
		if err := e.set(desc, "BooleanOffText", bridge.StringValue(s.FalseText)); err != nil {
			return err
		}
	}
	var idx uintptr
	if s.Value {
		idx = 1
	}
	e.boolSpinner(menu, desc, idx, e.callback)
	return nil
}

func (e *Entries) AddDropdown(menu uintptr, d Dropdown) error {
	desc, err := e.describe(d.Info)
	if err != nil {
		return err
	}
	// TArray<FText> is passed by value, which for a 16 byte struct means a
	// pointer to a copy
	opts, err := e.objects.NewTextArray(d.Options)
	if err != nil {
		return err
	}
	e.dropdown(menu, desc, opts, uintptr(uint32(d.Index)), e.callback)
	return nil
}

func (e *Entries) AddButton(menu uintptr, info Info) error {
	desc, err := e.describe(info)
	if err != nil {
		return err
	}
	e.button(menu, desc, e.callback)
	return nil
}

func (e *Entries) AddBinding(menu uintptr, b Binding) error {
	desc, err := e.describe(b.Info)
	if err != nil {
		return err
	}
	display, err := e.objects.NewText(b.Display)
	if err != nil {
		return err
	}
	e.bindUFunction(e.delegate, menu, e.callback)
	// both columns get the display text
	e.controls(menu, desc, display, display, bindingCommon, e.delegate)
	return nil
}
