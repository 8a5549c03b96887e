// Package keybinds dispatches engine key events to host callbacks.
package keybinds

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/k2io/oakhook/bridge"
	"github.com/k2io/oakhook/internal/log"
)

// AnyKey registers a bind matching every key. Its callback gets the key
// name as first argument.
const AnyKey bridge.Name = ""

// Handle identifies a registration. The zero Handle is never issued.
type Handle uint64

type entry struct {
	handle   Handle
	key      bridge.Name
	event    *Event
	gameplay bool
	cb       bridge.Callable
}

func (e *entry) matches(ev Event) bool {
	return e.event == nil || *e.event == ev
}

// Table is the keybind multimap. Binds sharing a key keep their
// registration order.
type Table struct {
	host   *bridge.Host
	focus  Focus
	reader KeyReader

	mu      sync.Mutex
	binds   map[bridge.Name][]*entry
	handles map[Handle]bridge.Name
	last    Handle
}

func NewTable(host *bridge.Host, focus Focus) *Table {
	return &Table{
		host:    host,
		focus:   focus,
		binds:   make(map[bridge.Name][]*entry),
		handles: make(map[Handle]bridge.Name),
	}
}

// Register adds a bind. A nil event matches every event, and the callback
// then gets the event as its last argument. Gameplay binds do not fire
// while the player is in a menu.
func (t *Table) Register(key bridge.Name, event *Event, gameplay bool, cb bridge.Callable) Handle {
	if event != nil {
		ev := *event
		event = &ev
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last++
	e := &entry{handle: t.last, key: key, event: event, gameplay: gameplay, cb: cb}
	t.binds[key] = append(t.binds[key], e)
	t.handles[e.handle] = key
	return e.handle
}

// Deregister removes a bind. Unknown handles are ignored.
func (t *Table) Deregister(h Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key, ok := t.handles[h]
	if !ok {
		return
	}
	delete(t.handles, h)
	list := t.binds[key]
	out := make([]*entry, 0, len(list))
	for _, e := range list {
		if e.handle != h {
			out = append(out, e)
		}
	}
	t.set(key, out)
}

// DeregisterKey removes every bind on key, for recovering lost handles.
func (t *Table) DeregisterKey(key bridge.Name) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.binds[key] {
		delete(t.handles, e.handle)
	}
	delete(t.binds, key)
}

func (t *Table) DeregisterAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.binds = make(map[bridge.Name][]*entry)
	t.handles = make(map[Handle]bridge.Name)
}

// Len returns the number of registered binds.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.handles)
}

// set replaces the list for key. Dispatch snapshots may still hold the old
// slice, so lists are never modified in place.
func (t *Table) set(key bridge.Name, list []*entry) {
	if len(list) == 0 {
		delete(t.binds, key)
		return
	}
	t.binds[key] = list
}

// matching returns the binds for key and event in registration order.
func (t *Table) matching(key bridge.Name, event Event) []*entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	anyKey, specific := t.binds[AnyKey], t.binds[key]
	if key == AnyKey {
		specific = nil
	}
	var out []*entry
	for len(anyKey) > 0 || len(specific) > 0 {
		var e *entry
		if len(specific) == 0 || (len(anyKey) > 0 && anyKey[0].handle < specific[0].handle) {
			e, anyKey = anyKey[0], anyKey[1:]
		} else {
			e, specific = specific[0], specific[1:]
		}
		if e.matches(event) {
			out = append(out, e)
		}
	}
	return out
}

// HandleEvent runs the binds matching a key event of actor and reports
// whether the event should be blocked.
//
// When nothing will run, the host context is never taken. Raw binds run
// before gameplay binds; each group runs completely before a block is
// acted upon, and a block from the raw group skips the gameplay group.
func (t *Table) HandleEvent(ctx context.Context, actor uintptr, key bridge.Name, event Event) bool {
	matched := t.matching(key, event)
	if len(matched) == 0 {
		return false
	}

	var raw, gameplay []*entry
	for _, e := range matched {
		if e.gameplay {
			gameplay = append(gameplay, e)
		} else {
			raw = append(raw, e)
		}
	}
	if len(gameplay) > 0 && t.inMenu(ctx, actor) {
		gameplay = nil
	}
	if len(raw) == 0 && len(gameplay) == 0 {
		return false
	}

	ctx, release := t.host.Acquire(ctx)
	defer release()
	if t.run(ctx, raw, key, event) {
		return true
	}
	return t.run(ctx, gameplay, key, event)
}

func (t *Table) inMenu(ctx context.Context, actor uintptr) bool {
	if t.focus == nil {
		return false
	}
	in, err := t.focus.InMenu(ctx, actor)
	if err != nil {
		// only raw binds are safe to run
		log.L().Warn("menu focus query failed", zap.Error(err))
		return true
	}
	return in
}

func (t *Table) run(ctx context.Context, binds []*entry, key bridge.Name, event Event) bool {
	block := false
	for _, e := range binds {
		args := make([]bridge.Value, 0, 2)
		if e.key == AnyKey {
			args = append(args, bridge.NameValue(key))
		}
		if e.event == nil {
			args = append(args, bridge.EnumValue(bridge.Enum{Type: "EInputEvent", Value: int64(event)}))
		}
		v, err := bridge.Call(ctx, t.host, "keybind "+string(key), e.cb, args...)
		if err != nil {
			continue
		}
		if bridge.IsBlock(v) {
			block = true
		}
	}
	return block
}
