package menu

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/k2io/oakhook"
	"github.com/k2io/oakhook/bridge"
	"github.com/k2io/oakhook/internal/log"
)

const AddMenuItemHook = "UGFxMainAndPauseBaseMenu::AddMenuItem"

// OuterMenu controls the entries of the main and pause menus.
type OuterMenu struct {
	host    *bridge.Host
	mem     oakhook.Memory
	objects Objects

	addMenuItem    oakhook.Func
	beginConfigure oakhook.Func
	setMenuState   oakhook.Func
	// offset of the menu state in UGFxMainAndPauseBaseMenu
	stateOffset int

	mu       sync.Mutex
	callback bridge.Callable
	// ctx of the host call currently driving the menu, if any
	ctx context.Context
}

type OuterMenuAddrs struct {
	AddMenuItem, BeginConfigureMenuItems, SetMenuState uintptr
	MenuStateOffset                                    int
}

func NewOuterMenu(host *bridge.Host, mem oakhook.Memory, objects Objects, b oakhook.Binder, addrs OuterMenuAddrs) (*OuterMenu, error) {
	m := &OuterMenu{
		host:           host,
		mem:            mem,
		objects:        objects,
		beginConfigure: b.Native(addrs.BeginConfigureMenuItems, 1),
		setMenuState:   b.Native(addrs.SetMenuState, 2),
		stateOffset:    addrs.MenuStateOffset,
	}
	var err error
	m.addMenuItem, err = b.Hook(addrs.AddMenuItem, 5, func(args ...uintptr) uintptr {
		return uintptr(uint32(m.hook(args[0], args[1], uint64(args[2]), args[3]&0xff != 0, int32(args[4]))))
	}, AddMenuItemHook)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// SetAddMenuItemCallback routes every AddMenuItem call to cb, which gets
// (menu, text, callbackName, big, alwaysMinusOne) and returns the index of
// the item it added. nil restores the game's behaviour.
func (m *OuterMenu) SetAddMenuItemCallback(cb bridge.Callable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callback = cb
}

func (m *OuterMenu) hook(self, text uintptr, name uint64, big bool, alwaysMinusOne int32) int32 {
	m.mu.Lock()
	cb, ctx := m.callback, m.ctx
	m.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	if alwaysMinusOne != -1 {
		log.L().Warn("AddMenuItem called with unexpected last argument", zap.Int32("always_minus_one", alwaysMinusOne))
	}
	if cb != nil {
		idx, err := m.callHost(ctx, cb, self, text, name, big, alwaysMinusOne)
		if err == nil {
			return idx
		}
	}
	return m.call(self, text, name, big, alwaysMinusOne)
}

func (m *OuterMenu) callHost(ctx context.Context, cb bridge.Callable, self, text uintptr, name uint64, big bool, alwaysMinusOne int32) (int32, error) {
	s, err := m.objects.Text(text)
	if err != nil {
		return 0, err
	}
	n, err := m.objects.NameString(name)
	if err != nil {
		return 0, err
	}
	ret, err := bridge.Call(ctx, m.host, AddMenuItemHook, cb,
		object("GFxMainAndPauseBaseMenu", self),
		bridge.StringValue(s),
		bridge.NameValue(bridge.Name(n)),
		bridge.BoolValue(big),
		bridge.IntValue(int64(alwaysMinusOne)))
	if err != nil {
		return 0, err
	}
	if ret.Kind() != bridge.KindInt {
		err := fmt.Errorf("%s callback returned %s, not an index", AddMenuItemHook, ret.Kind())
		log.L().Error("bad callback result", zap.Error(err))
		return 0, err
	}
	return int32(ret.Int()), nil
}

func (m *OuterMenu) call(self, text uintptr, name uint64, big bool, alwaysMinusOne int32) int32 {
	var b uintptr
	if big {
		b = 1
	}
	return int32(m.addMenuItem(self, text, uintptr(name), b, uintptr(uint32(alwaysMinusOne))))
}

// AddMenuItem calls the game's AddMenuItem without going through the
// callback, and returns the index of the new item.
func (m *OuterMenu) AddMenuItem(menu uintptr, text, callbackName string, big bool, alwaysMinusOne int32) (int32, error) {
	t, err := m.objects.NewText(text)
	if err != nil {
		return 0, err
	}
	name, err := m.objects.Name(callbackName)
	if err != nil {
		return 0, err
	}
	return m.call(menu, t, name, big, alwaysMinusOne), nil
}

// within runs fn with ctx as the context of AddMenuItem callbacks it
// triggers.
func (m *OuterMenu) within(ctx context.Context, fn func()) {
	m.mu.Lock()
	prev := m.ctx
	m.ctx = ctx
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.ctx = prev
		m.mu.Unlock()
	}()
	fn()
}

// BeginConfigureMenuItems clears the menu; the game adds its items again
// through AddMenuItem.
func (m *OuterMenu) BeginConfigureMenuItems(ctx context.Context, menu uintptr) {
	m.within(ctx, func() { m.beginConfigure(menu) })
}

func (m *OuterMenu) SetMenuState(ctx context.Context, menu uintptr, state int32) {
	m.within(ctx, func() { m.setMenuState(menu, uintptr(uint32(state))) })
}

// GetMenuState returns the state last set by SetMenuState.
func (m *OuterMenu) GetMenuState(menu uintptr) (int32, error) {
	return readInt32(m.mem, menu+uintptr(m.stateOffset))
}
