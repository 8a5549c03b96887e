package menu

import (
	"context"
	"fmt"

	"github.com/k2io/oakhook"
	"github.com/k2io/oakhook/bridge"
)

// ExtensionPoint is how custom entries get into an options menu. It holds
// every assumption about which menu and which virtual routine are used, so
// a new game build only needs a new provider.
type ExtensionPoint interface {
	// Open starts a transition from menu into the options menu that will
	// receive the entries.
	Open(ctx context.Context, menu uintptr) error
	// Mark replaces the option descriptions of an options menu with a
	// single marker entry.
	Mark(ctx context.Context, optionsMenu uintptr) error
	// IsMarker reports whether description is a marker placed by Mark.
	IsMarker(ctx context.Context, description uintptr) (bool, error)
}

const (
	accessibilityMenu  = 16
	menuTransitionNone = 13
	controllerID       = 0
	// invalidOptionType marks the injected description; the accessibility
	// menu is the only one that passes an unknown type on to
	// UGFxOptionBase::CreateContentPanelItem.
	invalidOptionType = 0xff
)

// Accessibility injects through the accessibility options menu.
type Accessibility struct {
	mem     oakhook.Memory
	objects Objects

	setFirstOptions     oakhook.Func
	startMenuTransition oakhook.Func
	// offset of the soft object passed to StartMenuTransition
	softObject int
	// offset of the option description list in UGFxOptionBase
	optionList int
	// offset of OptionType in OptionDescriptionItem
	optionType int
	transition uintptr
}

// AccessibilityAddrs are the resolved pieces Accessibility needs.
type AccessibilityAddrs struct {
	SetFirstOptions     uintptr
	StartMenuTransition uintptr
	SoftObjectOffset    int
	OptionListOffset    int
}

func NewAccessibility(mem oakhook.Memory, objects Objects, b oakhook.Binder, addrs AccessibilityAddrs) (*Accessibility, error) {
	optionType, err := objects.PropertyOffset(descriptionClass, "OptionType")
	if err != nil {
		return nil, fmt.Errorf("accessibility: %w", err)
	}
	transition, err := scratch(mem, []byte{menuTransitionNone})
	if err != nil {
		return nil, err
	}
	return &Accessibility{
		mem:                 mem,
		objects:             objects,
		setFirstOptions:     b.Native(addrs.SetFirstOptions, 1),
		startMenuTransition: b.Native(addrs.StartMenuTransition, 4),
		softObject:          addrs.SoftObjectOffset,
		optionList:          addrs.OptionListOffset,
		optionType:          optionType,
		transition:          transition,
	}, nil
}

func (a *Accessibility) Open(_ context.Context, menu uintptr) error {
	a.setFirstOptions(accessibilityMenu)
	a.startMenuTransition(menu, a.transition, menu+uintptr(a.softObject), controllerID)
	return nil
}

func (a *Accessibility) Mark(_ context.Context, optionsMenu uintptr) error {
	desc, err := a.objects.Construct(descriptionClass)
	if err != nil {
		return err
	}
	marker := bridge.EnumValue(bridge.Enum{Type: "EOptionType", Value: invalidOptionType})
	if err := a.objects.SetProperty(desc, descriptionClass, "OptionType", marker); err != nil {
		return err
	}
	marker = bridge.EnumValue(bridge.Enum{Type: "EOptionItemType", Value: invalidOptionType})
	if err := a.objects.SetProperty(desc, descriptionClass, "OptionItemType", marker); err != nil {
		return err
	}

	list := optionsMenu + uintptr(a.optionList)
	if err := a.objects.ResizeArray(list, 8, 1); err != nil {
		return err
	}
	data, err := readPointer(a.mem, list)
	if err != nil {
		return err
	}
	return writePointer(a.mem, data, desc)
}

func (a *Accessibility) IsMarker(_ context.Context, description uintptr) (bool, error) {
	b, err := a.mem.ReadAt(description+uintptr(a.optionType), 1)
	if err != nil {
		return false, err
	}
	return b[0] == invalidOptionType, nil
}
