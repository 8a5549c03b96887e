// Package menutest provides a simulated engine object system for testing
// code built on the menu package.
package menutest

import (
	"encoding/binary"
	"fmt"

	"github.com/k2io/oakhook/bridge"
	"github.com/k2io/oakhook/image"
)

// tarraySize is sizeof(TArray): data pointer, count, max.
const tarraySize = 16

// Engine implements menu.Objects over a buffer of native memory. Objects
// live in the buffer's arena; property values are recorded by object, and
// enum properties with a known offset are also written to memory.
type Engine struct {
	Mem *image.Buffer
	// Offsets maps "Class.Property" to the property offset.
	Offsets map[string]int
	Props   map[uintptr]map[string]bridge.Value
	Texts   map[uintptr]string
	Arrays  map[uintptr][]string
	names   []string
}

// NewEngine returns an engine whose first 0x1000 bytes of memory are free
// for the test to place objects in. The offsets the menu package and the
// keybind focus look up are preset.
func NewEngine() *Engine {
	return &Engine{
		Mem: image.NewBuffer(0x20000000, make([]byte, 0x1000)),
		Offsets: map[string]int{
			"GbxGFxDialogBoxInfo.Choices":        0x10,
			"OptionDescriptionItem.OptionType":   0x30,
			"GFxOptionBase.ContentPanel":         0x80,
			"GbxGFxGridScrollingList.UiScroller": 0x40,
			"GbxGFxUiScroller.ScrollPosition":    0x8,
			"PlayerController.bShowMouseCursor":  0x60,
		},
		Props:  make(map[uintptr]map[string]bridge.Value),
		Texts:  make(map[uintptr]string),
		Arrays: make(map[uintptr][]string),
	}
}

func (e *Engine) alloc(n int) uintptr {
	addr, err := e.Mem.AllocExec(n)
	if err != nil {
		panic(err)
	}
	return addr
}

func (e *Engine) Construct(class string) (uintptr, error) {
	obj := e.alloc(0x100)
	e.Props[obj] = map[string]bridge.Value{"Class": bridge.StringValue(class)}
	return obj, nil
}

func (e *Engine) PropertyOffset(class, property string) (int, error) {
	off, ok := e.Offsets[class+"."+property]
	if !ok {
		return 0, fmt.Errorf("no property %s.%s", class, property)
	}
	return off, nil
}

func (e *Engine) SetProperty(obj uintptr, class, property string, v bridge.Value) error {
	props, ok := e.Props[obj]
	if !ok {
		return fmt.Errorf("no object at 0x%x", obj)
	}
	props[property] = v
	if off, ok := e.Offsets[class+"."+property]; ok && v.Kind() == bridge.KindEnum {
		return e.Mem.WriteAt(obj+uintptr(off), []byte{byte(v.Enum().Value)})
	}
	return nil
}

func (e *Engine) NewText(s string) (uintptr, error) {
	addr := e.alloc(0x18)
	e.Texts[addr] = s
	return addr, nil
}

func (e *Engine) NewTextArray(items []string) (uintptr, error) {
	addr := e.alloc(tarraySize)
	e.Arrays[addr] = items
	return addr, nil
}

func (e *Engine) Text(addr uintptr) (string, error) {
	s, ok := e.Texts[addr]
	if !ok {
		return "", fmt.Errorf("no text at 0x%x", addr)
	}
	return s, nil
}

func (e *Engine) Name(s string) (uint64, error) {
	for i, n := range e.names {
		if n == s {
			return uint64(i + 1), nil
		}
	}
	e.names = append(e.names, s)
	return uint64(len(e.names)), nil
}

func (e *Engine) NameString(name uint64) (string, error) {
	if name == 0 || name > uint64(len(e.names)) {
		return "", fmt.Errorf("bad name %d", name)
	}
	return e.names[name-1], nil
}

func (e *Engine) ResizeArray(addr uintptr, elemSize, n int) error {
	data := e.alloc(elemSize * n)
	arr := binary.LittleEndian.AppendUint64(nil, uint64(data))
	arr = binary.LittleEndian.AppendUint32(arr, uint32(n))
	arr = binary.LittleEndian.AppendUint32(arr, uint32(n))
	return e.Mem.WriteAt(addr, arr)
}

// Array reads the pointers held by the TArray at addr.
func (e *Engine) Array(addr uintptr) []uintptr {
	b, err := e.Mem.ReadAt(addr, tarraySize)
	if err != nil {
		panic(err)
	}
	data, n := uintptr(binary.LittleEndian.Uint64(b)), int(binary.LittleEndian.Uint32(b[8:]))
	out := make([]uintptr, n)
	for i := range out {
		p, err := e.Mem.ReadAt(data+uintptr(8*i), 8)
		if err != nil {
			panic(err)
		}
		out[i] = uintptr(binary.LittleEndian.Uint64(p))
	}
	return out
}

func (e *Engine) Write(addr uintptr, p []byte) {
	if err := e.Mem.WriteAt(addr, p); err != nil {
		panic(err)
	}
}

func (e *Engine) Read(addr uintptr, n int) []byte {
	b, err := e.Mem.ReadAt(addr, n)
	if err != nil {
		panic(err)
	}
	return b
}
