package menu

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/k2io/oakhook"
	"github.com/k2io/oakhook/bridge"
	"github.com/k2io/oakhook/internal/log"
	"github.com/k2io/oakhook/oneshot"
)

const ShowDialogHook = "UGbxGFxCoreDialogBoxHelpers::ShowDialog"

type pending struct {
	ctx context.Context
	cb  bridge.Callable
}

// DialogBox shows dialogs configured by host code. The game's NAT help
// dialog is opened, and the next ShowDialog call is intercepted to let the
// callback rewrite its GbxGFxDialogBoxInfo.
type DialogBox struct {
	host *bridge.Host
	mem  oakhook.Memory
	// offset of Choices in GbxGFxDialogBoxInfo
	choices int

	displayNATHelp oakhook.Func
	showDialog     oakhook.Func
	next           oneshot.Injector[pending]
}

// NewDialogBox hooks ShowDialog at showDialog. displayNATHelp is
// UOakGameInstance::DisplayNATHelpDialog.
func NewDialogBox(host *bridge.Host, mem oakhook.Memory, objects Objects, b oakhook.Binder, showDialog, displayNATHelp uintptr) (*DialogBox, error) {
	choices, err := objects.PropertyOffset("GbxGFxDialogBoxInfo", "Choices")
	if err != nil {
		return nil, fmt.Errorf("dialog box: %w", err)
	}
	d := &DialogBox{
		host:           host,
		mem:            mem,
		choices:        choices,
		displayNATHelp: b.Native(displayNATHelp, 1),
	}
	d.showDialog, err = b.Hook(showDialog, 2, func(args ...uintptr) uintptr {
		return d.hook(args[0], args[1])
	}, ShowDialogHook)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Show opens a dialog configured by configure, which gets the dialog info
// struct. Choices made are sent to OakGameInstance:OnNATHelpChoiceMade.
func (d *DialogBox) Show(ctx context.Context, gameInstance uintptr, configure bridge.Callable) {
	d.next.Arm(pending{ctx: ctx, cb: configure})
	d.displayNATHelp(gameInstance)
}

func (d *DialogBox) hook(pc, info uintptr) uintptr {
	p, ok := d.next.Take()
	if !ok {
		return d.showDialog(pc, info)
	}

	// Removing entries from the game's own Choices crashes the next time
	// this dialog is shown, so the callback gets an empty array instead.
	arr := info + uintptr(d.choices)
	backup, err := d.mem.ReadAt(arr, tarraySize)
	if err != nil {
		log.L().Error("read dialog choices", zap.Error(err))
		return d.showDialog(pc, info)
	}
	swap := func() func() {
		if err := d.mem.WriteAt(arr, make([]byte, tarraySize)); err != nil {
			log.L().Error("clear dialog choices", zap.Error(err))
		}
		return func() {
			if err := d.mem.WriteAt(arr, backup); err != nil {
				log.L().Error("restore dialog choices", zap.Error(err))
			}
		}
	}
	err = bridge.Restore(swap, func() error {
		_, err := bridge.Call(p.ctx, d.host, ShowDialogHook, p.cb, object("GbxGFxDialogBoxInfo", info))
		if err != nil {
			return err
		}
		d.showDialog(pc, info)
		return nil
	})
	if err != nil {
		log.L().Warn("dialog not shown", zap.String("hook", ShowDialogHook), zap.Error(err))
	}
	return 0
}
