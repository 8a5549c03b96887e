package keybinds

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/k2io/oakhook"
	"github.com/k2io/oakhook/bridge"
	"github.com/k2io/oakhook/internal/log"
)

// HookName is the debug name of the InputKey detour.
const HookName = "OakPlayerController::InputKey"

// KeyReader reads the KeyName of an engine FKey.
type KeyReader interface {
	KeyName(key uintptr) (bridge.Name, error)
}

// KeyReaderFunc adapts a func to KeyReader.
type KeyReaderFunc func(key uintptr) (bridge.Name, error)

func (f KeyReaderFunc) KeyName(key uintptr) (bridge.Name, error) { return f(key) }

// Hook detours OakPlayerController::InputKey at addr so every key event goes
// through t.
//
// InputKey(self, key, event, pressDuration, gamepadID). pressDuration is a
// float in XMM3, which Func cannot see; the binder carries it over to the
// call of the original.
func (t *Table) Hook(b oakhook.Binder, addr uintptr, keys KeyReader) error {
	t.reader = keys
	var orig oakhook.Func
	orig, err := b.Hook(addr, 5, func(args ...uintptr) uintptr {
		if t.hookInputKey(args[0], args[1], Event(args[2])) {
			return 0
		}
		return orig(args...)
	}, HookName)
	return err
}

func (t *Table) hookInputKey(self, key uintptr, event Event) (block bool) {
	defer func() {
		if r := recover(); r != nil {
			log.L().Error("input key hook failed", zap.Any("panic", r), zap.Stack("stack"))
			block = false
		}
	}()
	name, err := t.reader.KeyName(key)
	if err != nil {
		log.L().Error("read key name", zap.String("key", fmt.Sprintf("0x%x", key)), zap.Error(err))
		return false
	}
	return t.HandleEvent(context.Background(), self, name, event)
}
