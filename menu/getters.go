package menu

import (
	"math"

	"github.com/k2io/oakhook"
)

// Getters read the current value of option items.
type Getters struct {
	comboBox, number, spinner oakhook.Func
}

type GetterAddrs struct {
	ComboBoxSelectedIndex, NumberValue, SpinnerSelectedIndex uintptr
}

func NewGetters(b oakhook.Binder, addrs GetterAddrs) (*Getters, error) {
	number, err := b.NativeFloat(addrs.NumberValue, 1)
	if err != nil {
		return nil, err
	}
	return &Getters{
		comboBox: b.Native(addrs.ComboBoxSelectedIndex, 1),
		number:   number,
		spinner:  b.Native(addrs.SpinnerSelectedIndex, 1),
	}, nil
}

// ComboBoxIndex is the selected index of a GbxGFxListItemComboBox.
func (g *Getters) ComboBoxIndex(item uintptr) int32 {
	return int32(g.comboBox(item))
}

// NumberValue is the value of a GbxGFxListItemNumber.
func (g *Getters) NumberValue(item uintptr) float32 {
	return math.Float32frombits(uint32(g.number(item)))
}

// SpinnerIndex is the selected index of a GbxGFxListItemSpinner.
func (g *Getters) SpinnerIndex(item uintptr) int32 {
	return int32(g.spinner(item))
}
