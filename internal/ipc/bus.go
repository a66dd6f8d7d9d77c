package ipc

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
)

// envelope is a UI→host message. reply is set for invokes.
type envelope struct {
	from    WindowID
	channel string
	payload json.RawMessage
	reply   chan invokeResult
}

type invokeResult struct {
	payload json.RawMessage
	err     error
}

// delivery is a host→UI message. to == 0 targets the active window.
type delivery struct {
	to  WindowID
	msg Message
}

type openReq struct {
	name string
	resp chan *Window
}

// Bus routes messages between the host and the windows.
//
// Concurrency model: a single internal loop owns the window table and the
// focus order. Endpoints talk to it through channels and receive work in
// their own mailboxes, so a slow handler never stalls routing.
type Bus struct {
	logger *slog.Logger
	host   *Host

	openCh     chan openReq
	closeCh    chan WindowID
	focusCh    chan WindowID
	toHostCh   chan envelope
	toWindowCh chan delivery
	listCh     chan chan []WindowInfo

	ctx     context.Context
	cancel  context.CancelFunc
	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBus starts a bus and its host endpoint.
func NewBus(logger *slog.Logger) *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		logger:     logger,
		openCh:     make(chan openReq),
		closeCh:    make(chan WindowID),
		focusCh:    make(chan WindowID),
		toHostCh:   make(chan envelope, 256),
		toWindowCh: make(chan delivery, 256),
		listCh:     make(chan chan []WindowInfo),
		ctx:        ctx,
		cancel:     cancel,
		stopCh:     make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	b.host = newHost(b)
	go b.run()
	return b
}

// Host returns the privileged endpoint.
func (b *Bus) Host() *Host { return b.host }

func (b *Bus) run() {
	defer close(b.stopped)

	windows := make(map[WindowID]*Window)
	var focus []WindowID // most recently focused last
	var nextID WindowID

	raise := func(id WindowID) {
		for i, f := range focus {
			if f == id {
				focus = append(focus[:i], focus[i+1:]...)
				break
			}
		}
		focus = append(focus, id)
	}
	active := func() WindowID {
		if len(focus) == 0 {
			return 0
		}
		return focus[len(focus)-1]
	}

	for {
		select {
		case <-b.stopCh:
			for _, w := range windows {
				w.shutdown()
			}
			b.host.box.close()
			return

		case req := <-b.openCh:
			nextID++
			w := newWindow(b, nextID, req.name)
			windows[w.id] = w
			raise(w.id)
			b.logger.Info("ipc: window opened", slog.Int("window", int(w.id)), slog.String("name", req.name))
			req.resp <- w

		case id := <-b.closeCh:
			w, ok := windows[id]
			if !ok {
				continue
			}
			delete(windows, id)
			for i, f := range focus {
				if f == id {
					focus = append(focus[:i], focus[i+1:]...)
					break
				}
			}
			w.shutdown()
			b.logger.Info("ipc: window closed", slog.Int("window", int(id)))

		case id := <-b.focusCh:
			if _, ok := windows[id]; ok {
				raise(id)
			}

		case env := <-b.toHostCh:
			if _, ok := windows[env.from]; !ok {
				if env.reply != nil {
					env.reply <- invokeResult{err: ErrWindowClosed}
				}
				continue
			}
			b.host.deliver(env)

		case d := <-b.toWindowCh:
			to := d.to
			if to == 0 {
				to = active()
			}
			w, ok := windows[to]
			if !ok {
				b.logger.Debug("ipc: no window for message",
					slog.Int("window", int(d.to)),
					slog.String("channel", d.msg.Channel))
				continue
			}
			w.deliver(d.msg)

		case resp := <-b.listCh:
			cur := active()
			infos := make([]WindowInfo, 0, len(focus))
			for _, id := range focus {
				w := windows[id]
				infos = append(infos, WindowInfo{ID: id, Name: w.name, Active: id == cur})
			}
			resp <- infos
		}
	}
}

// Close stops routing, closes every window and cancels host handlers' context.
func (b *Bus) Close() {
	if b.closed.CompareAndSwap(false, true) {
		b.cancel()
		close(b.stopCh)
	}
	<-b.stopped
}

// OpenWindow creates a UI context and focuses it.
func (b *Bus) OpenWindow(name string) (*Window, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	req := openReq{name: name, resp: make(chan *Window, 1)}
	select {
	case b.openCh <- req:
	case <-b.stopped:
		return nil, ErrClosed
	}
	select {
	case w := <-req.resp:
		return w, nil
	case <-b.stopped:
		return nil, ErrClosed
	}
}

// Windows lists open windows, least recently focused first.
func (b *Bus) Windows() []WindowInfo {
	if b.closed.Load() {
		return nil
	}
	resp := make(chan []WindowInfo, 1)
	select {
	case b.listCh <- resp:
	case <-b.stopped:
		return nil
	}
	select {
	case infos := <-resp:
		return infos
	case <-b.stopped:
		return nil
	}
}

func (b *Bus) toHost(env envelope) error {
	if b.closed.Load() {
		return ErrClosed
	}
	select {
	case b.toHostCh <- env:
		return nil
	case <-b.stopped:
		return ErrClosed
	}
}

func (b *Bus) toWindow(d delivery) error {
	if b.closed.Load() {
		return ErrClosed
	}
	select {
	case b.toWindowCh <- d:
		return nil
	case <-b.stopped:
		return ErrClosed
	}
}

func (b *Bus) closeWindow(id WindowID) {
	if b.closed.Load() {
		return
	}
	select {
	case b.closeCh <- id:
	case <-b.stopped:
	}
}

func (b *Bus) focusWindow(id WindowID) {
	if b.closed.Load() {
		return
	}
	select {
	case b.focusCh <- id:
	case <-b.stopped:
	}
}
