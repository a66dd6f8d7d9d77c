package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
)

type listener struct {
	id   uint64
	fn   func(json.RawMessage)
	once bool
}

// Window is a UI context. Listeners run one at a time on the window's own
// goroutine, in delivery order.
type Window struct {
	bus  *Bus
	id   WindowID
	name string
	box  *mailbox

	mu        sync.Mutex
	nextID    uint64
	listeners map[string][]*listener
	taps      map[uint64]func(Message)
	closed    chan struct{}
	closeOnce sync.Once
}

func newWindow(b *Bus, id WindowID, name string) *Window {
	return &Window{
		bus:       b,
		id:        id,
		name:      name,
		box:       newMailbox(),
		listeners: make(map[string][]*listener),
		taps:      make(map[uint64]func(Message)),
		closed:    make(chan struct{}),
	}
}

// ID returns the window id.
func (w *Window) ID() WindowID { return w.id }

// Name returns the name given at open.
func (w *Window) Name() string { return w.name }

// Done is closed when the window is closed.
func (w *Window) Done() <-chan struct{} { return w.closed }

// Send posts a fire-and-forget message to the host.
func (w *Window) Send(channel string, payload any) error {
	data, err := encode(payload)
	if err != nil {
		return err
	}
	return w.bus.toHost(envelope{from: w.id, channel: channel, payload: data})
}

// Invoke calls the host handler for channel and waits for its result.
func (w *Window) Invoke(ctx context.Context, channel string, args any) (json.RawMessage, error) {
	data, err := encode(args)
	if err != nil {
		return nil, err
	}
	reply := make(chan invokeResult, 1)
	if err := w.bus.toHost(envelope{from: w.id, channel: channel, payload: data, reply: reply}); err != nil {
		return nil, err
	}
	select {
	case res := <-reply:
		return res.payload, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-w.closed:
		return nil, ErrWindowClosed
	}
}

// On registers fn for channel and returns a function that removes it.
func (w *Window) On(channel string, fn func(json.RawMessage)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	l := w.add(channel, fn, false)
	return func() { w.off(channel, l.id) }
}

// Once registers fn for the next message on channel only.
func (w *Window) Once(channel string, fn func(json.RawMessage)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	l := w.add(channel, fn, true)
	return func() { w.off(channel, l.id) }
}

// Tap observes every message delivered to the window, before listeners run.
func (w *Window) Tap(fn func(Message)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextID++
	id := w.nextID
	w.taps[id] = fn
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.taps, id)
	}
}

// ListenerCount returns the number of listeners registered for channel.
func (w *Window) ListenerCount(channel string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.listeners[channel])
}

// Request sends args on req and waits for either ok or fail, whichever the
// host emits first. Both one-shot listeners are registered before the
// request leaves and both are removed as soon as one fires, so the reply
// cannot be missed and nothing is left behind. A message on fail resolves
// to a *RemoteError.
func (w *Window) Request(ctx context.Context, req, ok, fail string, args any) (json.RawMessage, error) {
	done := make(chan invokeResult, 1)

	w.mu.Lock()
	var okL, failL *listener
	resolve := func(res invokeResult) {
		w.off(ok, okL.id)
		w.off(fail, failL.id)
		select {
		case done <- res:
		default:
		}
	}
	okL = w.add(ok, func(p json.RawMessage) {
		resolve(invokeResult{payload: p})
	}, true)
	failL = w.add(fail, func(p json.RawMessage) {
		var body ErrorPayload
		if err := json.Unmarshal(p, &body); err != nil || body.Error == "" {
			body.Error = string(p)
		}
		resolve(invokeResult{err: &RemoteError{Channel: fail, Message: body.Error}})
	}, true)
	w.mu.Unlock()

	cleanup := func() {
		w.off(ok, okL.id)
		w.off(fail, failL.id)
	}

	if err := w.Send(req, args); err != nil {
		cleanup()
		return nil, err
	}

	select {
	case res := <-done:
		return res.payload, res.err
	case <-ctx.Done():
		cleanup()
		return nil, ctx.Err()
	case <-w.closed:
		return nil, ErrWindowClosed
	}
}

// Focus makes this the active window.
func (w *Window) Focus() { w.bus.focusWindow(w.id) }

// Close removes the window from the bus. Pending calls fail with
// ErrWindowClosed.
func (w *Window) Close() {
	w.bus.closeWindow(w.id)
	w.shutdown()
}

// add must be called with w.mu held.
func (w *Window) add(channel string, fn func(json.RawMessage), once bool) *listener {
	w.nextID++
	l := &listener{id: w.nextID, fn: fn, once: once}
	w.listeners[channel] = append(w.listeners[channel], l)
	return l
}

func (w *Window) off(channel string, id uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.remove(channel, id)
}

func (w *Window) remove(channel string, id uint64) {
	ls := w.listeners[channel]
	for i, l := range ls {
		if l.id == id {
			ls = append(ls[:i:i], ls[i+1:]...)
			break
		}
	}
	if len(ls) == 0 {
		delete(w.listeners, channel)
		return
	}
	w.listeners[channel] = ls
}

func (w *Window) deliver(msg Message) {
	w.box.post(func() { w.dispatch(msg) })
}

func (w *Window) dispatch(msg Message) {
	w.mu.Lock()
	taps := make([]func(Message), 0, len(w.taps))
	for _, fn := range w.taps {
		taps = append(taps, fn)
	}
	ls := append([]*listener(nil), w.listeners[msg.Channel]...)
	for _, l := range ls {
		if l.once {
			w.remove(msg.Channel, l.id)
		}
	}
	w.mu.Unlock()

	for _, fn := range taps {
		fn(msg)
	}
	for _, l := range ls {
		w.call(l, msg)
	}
}

func (w *Window) call(l *listener, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			w.bus.logger.Error("ipc: window listener panic",
				slog.Int("window", int(w.id)),
				slog.String("channel", msg.Channel),
				slog.Any("panic", r))
		}
	}()
	l.fn(msg.Payload)
}

func (w *Window) shutdown() {
	w.closeOnce.Do(func() {
		close(w.closed)
		w.box.close()
	})
}

// IsClosed reports whether err means the bus or window is gone.
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed) || errors.Is(err, ErrWindowClosed)
}
