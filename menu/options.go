package menu

import (
	"context"
	"encoding/binary"
	"sync"

	"go.uber.org/zap"

	"github.com/k2io/oakhook"
	"github.com/k2io/oakhook/bridge"
	"github.com/k2io/oakhook/internal/log"
	"github.com/k2io/oakhook/oneshot"
)

const (
	RefreshHook        = "UGFxOptionBase::Refresh"
	CreateItemHook     = "UGFxOptionBase::CreateContentPanelItem"
	GetOptionTitleHook = "UGFxOptionsMenu::GetOptionTitle"
)

type injection struct {
	pending
	title uintptr
}

// Options fills options menus from host callbacks.
//
// The game refreshes an options menu by clearing it and creating one item
// per option description. Refresh is hooked to replace the descriptions
// with a marker, which disarms the injection, and CreateContentPanelItem is
// hooked to run the callback when it meets the marker. GetOptionTitle
// returns the custom title while the injection is still armed.
type Options struct {
	host    *bridge.Host
	mem     oakhook.Memory
	objects Objects
	ext     ExtensionPoint

	refresh    oakhook.Func
	createItem oakhook.Func
	title      oakhook.Func
	scrollTo   oakhook.Func

	// offsets of ContentPanel in GFxOptionBase, UiScroller in the panel and
	// ScrollPosition in the scroller
	contentPanel, uiScroller, scrollPosition int

	next    oneshot.Injector[injection]
	mu      sync.Mutex
	current pending
}

// OptionsAddrs are the routines Options hooks or calls.
type OptionsAddrs struct {
	Refresh          uintptr
	CreateItem       uintptr
	GetOptionTitle   uintptr
	ScrollToPosition uintptr
}

func NewOptions(host *bridge.Host, mem oakhook.Memory, objects Objects, ext ExtensionPoint, b oakhook.Binder, addrs OptionsAddrs) (*Options, error) {
	o := &Options{
		host:     host,
		mem:      mem,
		objects:  objects,
		ext:      ext,
		scrollTo: b.Native(addrs.ScrollToPosition, 3),
	}
	var err error
	for _, p := range []struct {
		offset          *int
		class, property string
	}{
		{&o.contentPanel, "GFxOptionBase", "ContentPanel"},
		{&o.uiScroller, "GbxGFxGridScrollingList", "UiScroller"},
		{&o.scrollPosition, "GbxGFxUiScroller", "ScrollPosition"},
	} {
		if *p.offset, err = objects.PropertyOffset(p.class, p.property); err != nil {
			return nil, err
		}
	}

	if o.refresh, err = b.Hook(addrs.Refresh, 1, func(args ...uintptr) uintptr {
		return o.hookRefresh(args[0])
	}, RefreshHook); err != nil {
		return nil, err
	}
	if o.createItem, err = b.Hook(addrs.CreateItem, 2, func(args ...uintptr) uintptr {
		return o.hookCreateItem(args[0], args[1])
	}, CreateItemHook); err != nil {
		return nil, err
	}
	if o.title, err = b.Hook(addrs.GetOptionTitle, 1, func(args ...uintptr) uintptr {
		return o.hookTitle(args[0])
	}, GetOptionTitleHook); err != nil {
		return nil, err
	}
	return o, nil
}

// Open opens a custom options menu called name under menu. cb gets the
// options menu and adds the entries.
func (o *Options) Open(ctx context.Context, menu uintptr, name string, cb bridge.Callable) error {
	title, err := o.objects.NewText(name)
	if err != nil {
		return err
	}
	o.next.Arm(injection{pending: pending{ctx: ctx, cb: cb}, title: title})
	if err := o.ext.Open(ctx, menu); err != nil {
		o.next.Reset()
		return err
	}
	return nil
}

// Refresh rebuilds the entries of the open custom options menu.
func (o *Options) Refresh(ctx context.Context, menu uintptr, cb bridge.Callable, preserveScroll bool) error {
	var panel uintptr
	var pos uint32
	if preserveScroll {
		var err error
		if panel, err = readPointer(o.mem, menu+uintptr(o.contentPanel)); err != nil {
			return err
		}
		b, err := o.mem.ReadAt(panel+uintptr(o.uiScroller+o.scrollPosition), 4)
		if err != nil {
			return err
		}
		pos = binary.LittleEndian.Uint32(b)
	}

	o.next.Arm(injection{pending: pending{ctx: ctx, cb: cb}})
	o.hookRefresh(menu)

	if preserveScroll {
		// float32 position, passed as its bits
		o.scrollTo(panel, uintptr(pos), 0)
	}
	return nil
}

func (o *Options) hookRefresh(self uintptr) uintptr {
	if p, ok := o.next.Take(); ok {
		o.mu.Lock()
		o.current = p.pending
		o.mu.Unlock()
		if err := o.ext.Mark(p.ctx, self); err != nil {
			log.L().Error("mark options menu", zap.String("hook", RefreshHook), zap.Error(err))
		}
	}
	return o.refresh(self)
}

func (o *Options) hookCreateItem(self, description uintptr) uintptr {
	o.mu.Lock()
	p := o.current
	o.mu.Unlock()

	ctx := p.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	marker, err := o.ext.IsMarker(ctx, description)
	if err != nil {
		log.L().Error("check option description", zap.String("hook", CreateItemHook), zap.Error(err))
		return o.createItem(self, description)
	}
	if !marker {
		return o.createItem(self, description)
	}
	if p.cb != nil {
		if _, err := bridge.Call(ctx, o.host, CreateItemHook, p.cb, object("GFxOptionBase", self)); err != nil {
			log.L().Warn("custom options left empty", zap.String("hook", CreateItemHook), zap.Error(err))
		}
	}
	return 0
}

func (o *Options) hookTitle(menuType uintptr) uintptr {
	if p, ok := o.next.Peek(); ok && p.title != 0 {
		return p.title
	}
	return o.title(menuType)
}
