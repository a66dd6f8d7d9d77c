package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// Event identifies the origin of a UI→host message.
type Event struct {
	Sender  WindowID
	Channel string
}

// InvokeHandler answers a request/response call. The result is sent back
// as JSON.
type InvokeHandler func(ctx context.Context, ev Event, args json.RawMessage) (any, error)

// Listener receives a fire-and-forget message.
type Listener func(ctx context.Context, ev Event, payload json.RawMessage)

// Host is the privileged endpoint. Its handlers run one at a time on the
// host goroutine.
type Host struct {
	bus *Bus
	box *mailbox

	mu        sync.RWMutex
	handlers  map[string]InvokeHandler
	listeners map[string]Listener
}

func newHost(b *Bus) *Host {
	return &Host{
		bus:       b,
		box:       newMailbox(),
		handlers:  make(map[string]InvokeHandler),
		listeners: make(map[string]Listener),
	}
}

// Handle registers the invoke handler for channel, replacing any previous one.
func (h *Host) Handle(channel string, fn InvokeHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[channel] = fn
}

// On registers the listener for channel, replacing any previous one.
func (h *Host) On(channel string, fn Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners[channel] = fn
}

// Send delivers payload to one window.
func (h *Host) Send(to WindowID, channel string, payload any) error {
	data, err := encode(payload)
	if err != nil {
		return err
	}
	return h.bus.toWindow(delivery{to: to, msg: Message{Channel: channel, Payload: data}})
}

// SendActive delivers payload to the most recently focused window. It is
// dropped when no window is open.
func (h *Host) SendActive(channel string, payload any) error {
	return h.Send(0, channel, payload)
}

// Windows lists the open windows.
func (h *Host) Windows() []WindowInfo { return h.bus.Windows() }

func (h *Host) deliver(env envelope) {
	if !h.box.post(func() { h.dispatch(env) }) && env.reply != nil {
		env.reply <- invokeResult{err: ErrClosed}
	}
}

func (h *Host) dispatch(env envelope) {
	ev := Event{Sender: env.from, Channel: env.channel}

	if env.reply == nil {
		h.mu.RLock()
		fn := h.listeners[env.channel]
		h.mu.RUnlock()
		if fn == nil {
			h.bus.logger.Debug("ipc: no listener", slog.String("channel", env.channel))
			return
		}
		h.guard(ev, func() error {
			fn(h.bus.ctx, ev, env.payload)
			return nil
		})
		return
	}

	h.mu.RLock()
	fn := h.handlers[env.channel]
	h.mu.RUnlock()
	if fn == nil {
		env.reply <- invokeResult{err: fmt.Errorf("%w for %q", ErrNoHandler, env.channel)}
		return
	}

	var res invokeResult
	err := h.guard(ev, func() error {
		v, err := fn(h.bus.ctx, ev, env.payload)
		if err != nil {
			return err
		}
		res.payload, err = encode(v)
		return err
	})
	if err != nil {
		res = invokeResult{err: &RemoteError{Channel: env.channel, Message: err.Error()}}
	}
	env.reply <- res
}

// guard runs fn and turns a panic into an error so that nothing escapes
// the host goroutine.
func (h *Host) guard(ev Event, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			h.bus.logger.Error("ipc: handler panic",
				slog.String("channel", ev.Channel),
				slog.Int("window", int(ev.Sender)),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return fn()
}
