package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/starford/jobpilot/internal/ipc"
	"github.com/starford/jobpilot/internal/sse"
)

// Bridge exposes negotiation-channel windows to UIs running out of process.
// Each window opened through the bridge forwards every host message to the
// SSE topic WindowTopic(id).
type Bridge struct {
	bus    *ipc.Bus
	broker *sse.Broker
	logger *slog.Logger

	mu      sync.Mutex
	windows map[ipc.WindowID]*ipc.Window
}

// NewBridge creates a bridge over bus publishing to broker.
func NewBridge(bus *ipc.Bus, broker *sse.Broker, logger *slog.Logger) *Bridge {
	return &Bridge{
		bus:     bus,
		broker:  broker,
		logger:  logger,
		windows: make(map[ipc.WindowID]*ipc.Window),
	}
}

// WindowTopic is the SSE topic carrying host messages for window id.
func WindowTopic(id ipc.WindowID) string {
	return "window:" + strconv.Itoa(int(id))
}

// Routes returns the /ipc router.
func (b *Bridge) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/windows", b.ListWindows)
	r.Post("/windows", b.OpenWindow)
	r.Route("/windows/{id}", func(r chi.Router) {
		r.Delete("/", b.CloseWindow)
		r.Post("/focus", b.FocusWindow)
		r.Post("/send/{channel}", b.Send)
		r.Post("/invoke/{channel}", b.Invoke)
		r.Post("/request/{channel}", b.Request)
		r.Get("/events", b.Events)
	})
	return r
}

// ListWindows handles GET /ipc/windows.
func (b *Bridge) ListWindows(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, b.bus.Windows())
}

// OpenWindow handles POST /ipc/windows. The new window becomes the active one.
func (b *Bridge) OpenWindow(w http.ResponseWriter, r *http.Request) {
	var req OpenWindowRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		req.Name = "remote"
	}
	win, err := b.bus.OpenWindow(req.Name)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody(err.Error()))
		return
	}

	b.Adopt(win)

	b.logger.Info("bridge: window opened", slog.Int("id", int(win.ID())), slog.String("name", req.Name))
	writeJSON(w, http.StatusCreated, OpenWindowResponse{ID: win.ID()})
}

// Adopt makes a window opened elsewhere reachable through the bridge and
// streams its messages to WindowTopic(id).
func (b *Bridge) Adopt(win *ipc.Window) {
	topic := WindowTopic(win.ID())
	win.Tap(func(m ipc.Message) {
		b.broker.Publish(topic, sse.Event{Type: m.Channel, Data: m.Payload})
	})

	b.mu.Lock()
	b.windows[win.ID()] = win
	b.mu.Unlock()
	go func() {
		<-win.Done()
		b.mu.Lock()
		delete(b.windows, win.ID())
		b.mu.Unlock()
	}()
}

// CloseWindow handles DELETE /ipc/windows/{id}.
func (b *Bridge) CloseWindow(w http.ResponseWriter, r *http.Request) {
	win, ok := b.window(w, r)
	if !ok {
		return
	}
	win.Close()
	w.WriteHeader(http.StatusNoContent)
}

// FocusWindow handles POST /ipc/windows/{id}/focus.
func (b *Bridge) FocusWindow(w http.ResponseWriter, r *http.Request) {
	win, ok := b.window(w, r)
	if !ok {
		return
	}
	win.Focus()
	w.WriteHeader(http.StatusNoContent)
}

// Send handles POST /ipc/windows/{id}/send/{channel}. The body is the JSON
// payload; an empty body sends null.
func (b *Bridge) Send(w http.ResponseWriter, r *http.Request) {
	win, ok := b.window(w, r)
	if !ok {
		return
	}
	payload, ok := readPayload(w, r)
	if !ok {
		return
	}
	if err := win.Send(chi.URLParam(r, "channel"), payload); err != nil {
		writeIPCError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// Invoke handles POST /ipc/windows/{id}/invoke/{channel}.
func (b *Bridge) Invoke(w http.ResponseWriter, r *http.Request) {
	win, ok := b.window(w, r)
	if !ok {
		return
	}
	payload, ok := readPayload(w, r)
	if !ok {
		return
	}
	res, err := win.Invoke(r.Context(), chi.URLParam(r, "channel"), payload)
	if err != nil {
		writeIPCError(w, err)
		return
	}
	writeRaw(w, res)
}

// Request handles POST /ipc/windows/{id}/request/{channel}?ok=..&fail=..,
// waiting for whichever of the two reply events arrives first.
func (b *Bridge) Request(w http.ResponseWriter, r *http.Request) {
	win, ok := b.window(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	okCh, failCh := q.Get("ok"), q.Get("fail")
	if okCh == "" || failCh == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("ok and fail are required"))
		return
	}
	payload, ok := readPayload(w, r)
	if !ok {
		return
	}
	res, err := win.Request(r.Context(), chi.URLParam(r, "channel"), okCh, failCh, payload)
	if err != nil {
		writeIPCError(w, err)
		return
	}
	writeRaw(w, res)
}

// Events handles GET /ipc/windows/{id}/events.
func (b *Bridge) Events(w http.ResponseWriter, r *http.Request) {
	win, ok := b.window(w, r)
	if !ok {
		return
	}
	b.broker.ServeTopic(w, r, WindowTopic(win.ID()))
}

// Close closes every window the bridge knows, adopted ones included.
func (b *Bridge) Close() {
	b.mu.Lock()
	wins := make([]*ipc.Window, 0, len(b.windows))
	for _, win := range b.windows {
		wins = append(wins, win)
	}
	b.mu.Unlock()
	for _, win := range wins {
		win.Close()
	}
}

func (b *Bridge) window(w http.ResponseWriter, r *http.Request) (*ipc.Window, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid window id"))
		return nil, false
	}
	b.mu.Lock()
	win, ok := b.windows[ipc.WindowID(id)]
	b.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("window not found"))
		return nil, false
	}
	return win, true
}

func readPayload(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return nil, false
	}
	if len(body) == 0 {
		return json.RawMessage("null"), true
	}
	if !json.Valid(body) {
		writeJSON(w, http.StatusBadRequest, errorBody("body must be JSON"))
		return nil, false
	}
	return json.RawMessage(body), true
}

func writeRaw(w http.ResponseWriter, raw json.RawMessage) {
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func writeIPCError(w http.ResponseWriter, err error) {
	var remote *ipc.RemoteError
	switch {
	case errors.As(err, &remote):
		writeJSON(w, http.StatusBadGateway, errorBody(remote.Message))
	case errors.Is(err, ipc.ErrNoHandler):
		writeJSON(w, http.StatusBadGateway, errorBody(err.Error()))
	case ipc.IsClosed(err):
		writeJSON(w, http.StatusGone, errorBody(err.Error()))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusGatewayTimeout, errorBody(err.Error()))
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
	}
}
