package keybinds

import "fmt"

// Event is an engine EInputEvent.
type Event uint32

const (
	Pressed Event = iota
	Released
	Repeat
	DoubleClick
	Axis
)

var eventNames = [...]string{"IE_Pressed", "IE_Released", "IE_Repeat", "IE_DoubleClick", "IE_Axis"}

func (e Event) String() string {
	if int(e) < len(eventNames) {
		return eventNames[e]
	}
	return fmt.Sprintf("EInputEvent(%d)", uint32(e))
}

// ParseEvent accepts the engine name with or without its IE_ prefix.
func ParseEvent(s string) (Event, error) {
	for i, n := range eventNames {
		if s == n || s == n[len("IE_"):] {
			return Event(i), nil
		}
	}
	return 0, fmt.Errorf("unknown input event %q", s)
}
