package api

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/jobpilot/internal/capture"
	"github.com/starford/jobpilot/internal/host"
	"github.com/starford/jobpilot/internal/ipc"
	"github.com/starford/jobpilot/internal/sse"
)

type stubEnumerator struct{}

func (stubEnumerator) Enumerate(context.Context, capture.Options) ([]capture.Source, error) {
	return []capture.Source{
		{ID: "screen:0", Name: "Entire Screen", DisplayID: "0"},
		{ID: "window:42", Name: "Editor"},
	}, nil
}

type stubResources struct{}

func (stubResources) Path(name string) string { return "/opt/res/" + name }

func bridgeEnv(t *testing.T) (*ipc.Bus, *sse.Broker, http.Handler) {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	bus := ipc.NewBus(logger)
	t.Cleanup(bus.Close)
	broker := sse.NewBroker()
	t.Cleanup(broker.Close)

	reg := capture.NewRegistry(stubEnumerator{}, capture.DefaultOptions(), logger)
	host.Register(bus.Host(), reg, stubResources{}, logger)

	b := NewBridge(bus, broker, logger)
	r := chi.NewRouter()
	r.Mount("/ipc", b.Routes())
	return bus, broker, r
}

func openRemote(t *testing.T, h http.Handler, name string) ipc.WindowID {
	t.Helper()
	w := do(t, h, http.MethodPost, "/ipc/windows", OpenWindowRequest{Name: name})
	if w.Code != http.StatusCreated {
		t.Fatalf("open = %d, body = %s", w.Code, w.Body.String())
	}
	var resp OpenWindowResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return resp.ID
}

func windowPath(id ipc.WindowID, rest string) string {
	return "/ipc/windows/" + strconv.Itoa(int(id)) + rest
}

func TestBridgeInvoke(t *testing.T) {
	_, _, h := bridgeEnv(t)
	id := openRemote(t, h, "main")

	w := do(t, h, http.MethodPost, windowPath(id, "/invoke/get-screen-sources"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("invoke = %d, body = %s", w.Code, w.Body.String())
	}
	var sources []capture.Source
	if err := json.Unmarshal(w.Body.Bytes(), &sources); err != nil {
		t.Fatal(err)
	}
	if len(sources) != 2 || sources[1].ID != "window:42" {
		t.Errorf("sources = %+v", sources)
	}

	w = do(t, h, http.MethodPost, windowPath(id, "/invoke/get-resource-path"), "icons/app.png")
	var path string
	_ = json.Unmarshal(w.Body.Bytes(), &path)
	if path != "/opt/res/icons/app.png" {
		t.Errorf("path = %q", path)
	}

	w = do(t, h, http.MethodPost, windowPath(id, "/invoke/no-such-channel"), nil)
	if w.Code != http.StatusBadGateway {
		t.Errorf("unknown channel = %d, want 502", w.Code)
	}
}

func TestBridgeRequest(t *testing.T) {
	_, _, h := bridgeEnv(t)
	id := openRemote(t, h, "main")

	w := do(t, h, http.MethodPost, windowPath(id, "/request/get-all-sources?ok=all-sources&fail=all-sources-error"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("request = %d, body = %s", w.Code, w.Body.String())
	}
	var sources []capture.Source
	_ = json.Unmarshal(w.Body.Bytes(), &sources)
	if len(sources) != 2 {
		t.Errorf("sources = %+v", sources)
	}

	w = do(t, h, http.MethodPost, windowPath(id, "/request/get-all-sources"), nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing reply channels = %d, want 400", w.Code)
	}
}

func TestBridgeWindowLifecycle(t *testing.T) {
	bus, _, h := bridgeEnv(t)
	a := openRemote(t, h, "a")
	b := openRemote(t, h, "b")

	if w := do(t, h, http.MethodPost, windowPath(a, "/focus"), nil); w.Code != http.StatusNoContent {
		t.Fatalf("focus = %d", w.Code)
	}
	waitFor(t, func() bool {
		for _, info := range bus.Windows() {
			if info.Active {
				return info.ID == a
			}
		}
		return false
	}, "window a never became active")

	if w := do(t, h, http.MethodDelete, windowPath(b, ""), nil); w.Code != http.StatusNoContent {
		t.Fatalf("close = %d", w.Code)
	}
	waitFor(t, func() bool {
		return do(t, h, http.MethodPost, windowPath(b, "/focus"), nil).Code == http.StatusNotFound
	}, "closed window still reachable")

	if w := do(t, h, http.MethodPost, "/ipc/windows/abc/focus", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad id = %d, want 400", w.Code)
	}
}

func TestBridgeSendRejectsInvalidJSON(t *testing.T) {
	_, _, h := bridgeEnv(t)
	id := openRemote(t, h, "main")

	if w := do(t, h, http.MethodPost, windowPath(id, "/send/ping"), []byte("{nope")); w.Code != http.StatusBadRequest {
		t.Errorf("invalid JSON = %d, want 400", w.Code)
	}
	if w := do(t, h, http.MethodPost, windowPath(id, "/send/ping"), []byte(`"hi"`)); w.Code != http.StatusAccepted {
		t.Errorf("send = %d, want 202", w.Code)
	}
}

func TestBridgeEventsStreamHostMessages(t *testing.T) {
	_, broker, h := bridgeEnv(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	id := openRemote(t, h, "main")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+windowPath(id, "/events"), nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}
	waitFor(t, func() bool { return broker.ClientCount() == 1 }, "stream never subscribed")

	if w := do(t, h, http.MethodPost, windowPath(id, "/send/get-source-stream"), "window:42"); w.Code != http.StatusAccepted {
		t.Fatalf("send = %d", w.Code)
	}

	sc := bufio.NewScanner(resp.Body)
	var event, data string
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
		if data != "" {
			break
		}
	}
	if event != ipc.ChannelSourceStreamReady {
		t.Errorf("event = %q, want %q", event, ipc.ChannelSourceStreamReady)
	}
	if data != `{"sourceId":"window:42"}` {
		t.Errorf("data = %s", data)
	}
}

func waitFor(t *testing.T, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}
