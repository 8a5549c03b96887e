// Package menu adds dialog boxes, custom option menus and outer menu entries
// to the game's own menus, on top of detoured engine routines.
//
// Struct layouts and property lookups come from the engine's reflection
// through Objects; raw offsets come from signatures. Either being wrong for
// the running build corrupts memory, nothing here can detect it.
package menu

import (
	"encoding/binary"
	"fmt"

	"github.com/k2io/oakhook"
	"github.com/k2io/oakhook/bridge"
)

// Objects is the engine object system as exposed by the scripting SDK.
type Objects interface {
	// Construct creates a transient object of class.
	Construct(class string) (uintptr, error)
	PropertyOffset(class, property string) (int, error)
	SetProperty(obj uintptr, class, property string, v bridge.Value) error
	// NewText creates an FText and returns its address.
	NewText(s string) (uintptr, error)
	// NewTextArray creates a TArray<FText> and returns its address.
	NewTextArray(items []string) (uintptr, error)
	Text(addr uintptr) (string, error)
	// Name returns the FName of s as the engine passes it by value.
	Name(s string) (uint64, error)
	NameString(name uint64) (string, error)
	// ResizeArray sets the count of the TArray at addr, reallocating its
	// data through the engine allocator when it grows.
	ResizeArray(addr uintptr, elemSize, n int) error
}

// Info is common to every option entry.
type Info struct {
	Name string
	// Title of the description panel. Defaults to Name.
	Title       string
	Description string
}

const (
	descriptionClass = "OptionDescriptionItem"
	// tarraySize is sizeof(TArray): data pointer, count, max.
	tarraySize = 16
)

func readInt32(mem oakhook.Memory, addr uintptr) (int32, error) {
	b, err := mem.ReadAt(addr, 4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

func readPointer(mem oakhook.Memory, addr uintptr) (uintptr, error) {
	b, err := mem.ReadAt(addr, 8)
	if err != nil {
		return 0, err
	}
	return uintptr(binary.LittleEndian.Uint64(b)), nil
}

func writePointer(mem oakhook.Memory, addr, v uintptr) error {
	return mem.WriteAt(addr, binary.LittleEndian.AppendUint64(nil, uint64(v)))
}

// scratch allocates native memory the engine is handed pointers into.
func scratch(mem oakhook.Memory, init []byte) (uintptr, error) {
	addr, err := mem.AllocExec(len(init))
	if err != nil {
		return 0, fmt.Errorf("allocate scratch: %w", err)
	}
	return addr, mem.WriteAt(addr, init)
}

func object(class string, addr uintptr) bridge.Value {
	return bridge.ObjectValue(bridge.Object{Class: class, Addr: addr})
}
