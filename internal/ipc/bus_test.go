package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func testBus(t *testing.T) *Bus {
	t.Helper()
	b := NewBus(slog.New(slog.NewJSONHandler(io.Discard, nil)))
	t.Cleanup(b.Close)
	return b
}

func openWindow(t *testing.T, b *Bus, name string) *Window {
	t.Helper()
	w, err := b.OpenWindow(name)
	if err != nil {
		t.Fatalf("OpenWindow: %v", err)
	}
	return w
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestInvokeRoundTrip(t *testing.T) {
	b := testBus(t)
	b.Host().Handle("echo", func(_ context.Context, ev Event, args json.RawMessage) (any, error) {
		var s string
		if err := json.Unmarshal(args, &s); err != nil {
			return nil, err
		}
		return map[string]any{"echo": s, "from": ev.Sender}, nil
	})
	w := openWindow(t, b, "main")

	raw, err := w.Invoke(context.Background(), "echo", "hi")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	var got struct {
		Echo string   `json:"echo"`
		From WindowID `json:"from"`
	}
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatal(err)
	}
	if got.Echo != "hi" || got.From != w.ID() {
		t.Errorf("got %+v", got)
	}
}

func TestInvokeWithoutHandler(t *testing.T) {
	b := testBus(t)
	w := openWindow(t, b, "main")

	_, err := w.Invoke(context.Background(), "missing", nil)
	if !errors.Is(err, ErrNoHandler) {
		t.Errorf("err = %v, want ErrNoHandler", err)
	}
}

func TestHandlerFailuresStayOnHost(t *testing.T) {
	b := testBus(t)
	b.Host().Handle("fail", func(context.Context, Event, json.RawMessage) (any, error) {
		return nil, errors.New("boom")
	})
	b.Host().Handle("panic", func(context.Context, Event, json.RawMessage) (any, error) {
		panic("kaboom")
	})
	b.Host().Handle("ok", func(context.Context, Event, json.RawMessage) (any, error) {
		return true, nil
	})
	w := openWindow(t, b, "main")
	ctx := context.Background()

	var remote *RemoteError
	if _, err := w.Invoke(ctx, "fail", nil); !errors.As(err, &remote) || remote.Message != "boom" {
		t.Errorf("fail: err = %v", err)
	}
	if _, err := w.Invoke(ctx, "panic", nil); !errors.As(err, &remote) {
		t.Errorf("panic: err = %v", err)
	}
	raw, err := w.Invoke(ctx, "ok", nil)
	if err != nil || string(raw) != "true" {
		t.Errorf("host unusable after panic: %s, %v", raw, err)
	}
}

func TestRequestWithImmediateReply(t *testing.T) {
	b := testBus(t)
	h := b.Host()
	h.On(ChannelGetAllSources, func(_ context.Context, ev Event, _ json.RawMessage) {
		_ = h.Send(ev.Sender, ChannelAllSources, []string{"screen:0"})
	})
	w := openWindow(t, b, "main")

	raw, err := w.Request(context.Background(), ChannelGetAllSources, ChannelAllSources, ChannelAllSourcesError, nil)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if string(raw) != `["screen:0"]` {
		t.Errorf("payload = %s", raw)
	}
	if n := w.ListenerCount(ChannelAllSources) + w.ListenerCount(ChannelAllSourcesError); n != 0 {
		t.Errorf("%d listeners left behind", n)
	}
}

func TestRequestErrorEvent(t *testing.T) {
	b := testBus(t)
	h := b.Host()
	h.On(ChannelGetAllSources, func(_ context.Context, ev Event, _ json.RawMessage) {
		_ = h.Send(ev.Sender, ChannelAllSourcesError, ErrorPayload{Error: "no display"})
	})
	w := openWindow(t, b, "main")

	_, err := w.Request(context.Background(), ChannelGetAllSources, ChannelAllSources, ChannelAllSourcesError, nil)
	var remote *RemoteError
	if !errors.As(err, &remote) || remote.Message != "no display" {
		t.Fatalf("err = %v", err)
	}
	if n := w.ListenerCount(ChannelAllSources) + w.ListenerCount(ChannelAllSourcesError); n != 0 {
		t.Errorf("%d listeners left behind", n)
	}
}

func TestRequestResolvesExactlyOnce(t *testing.T) {
	b := testBus(t)
	h := b.Host()
	h.On(ChannelGetAllSources, func(_ context.Context, ev Event, _ json.RawMessage) {
		_ = h.Send(ev.Sender, ChannelAllSources, []string{})
		_ = h.Send(ev.Sender, ChannelAllSourcesError, ErrorPayload{Error: "late"})
	})
	w := openWindow(t, b, "main")

	var mu sync.Mutex
	var seen []string
	w.On(ChannelAllSourcesError, func(json.RawMessage) {
		mu.Lock()
		seen = append(seen, "error")
		mu.Unlock()
	})

	if _, err := w.Request(context.Background(), ChannelGetAllSources, ChannelAllSources, ChannelAllSourcesError, nil); err != nil {
		t.Fatalf("Request: %v", err)
	}
	eventually(t, time.Second, 10*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1
	}, "late error event not delivered to the permanent listener")
	if n := w.ListenerCount(ChannelAllSourcesError); n != 1 {
		t.Errorf("error listeners = %d, want only the permanent one", n)
	}
}

func TestRequestCancelRemovesListeners(t *testing.T) {
	b := testBus(t)
	w := openWindow(t, b, "main")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := w.Request(ctx, ChannelGetAllSources, ChannelAllSources, ChannelAllSourcesError, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
	if n := w.ListenerCount(ChannelAllSources) + w.ListenerCount(ChannelAllSourcesError); n != 0 {
		t.Errorf("%d listeners left behind", n)
	}
}

func TestPerChannelOrder(t *testing.T) {
	b := testBus(t)
	h := b.Host()

	var mu sync.Mutex
	var up, down []int
	h.On("up", func(_ context.Context, _ Event, p json.RawMessage) {
		var n int
		_ = json.Unmarshal(p, &n)
		mu.Lock()
		up = append(up, n)
		mu.Unlock()
	})
	w := openWindow(t, b, "main")
	w.On("down", func(p json.RawMessage) {
		var n int
		_ = json.Unmarshal(p, &n)
		mu.Lock()
		down = append(down, n)
		mu.Unlock()
	})

	const count = 500
	for i := 0; i < count; i++ {
		if err := w.Send("up", i); err != nil {
			t.Fatal(err)
		}
		if err := h.Send(w.ID(), "down", i); err != nil {
			t.Fatal(err)
		}
	}

	eventually(t, 5*time.Second, 10*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(up) == count && len(down) == count
	}, "not every message arrived")

	mu.Lock()
	defer mu.Unlock()
	for i := 0; i < count; i++ {
		if up[i] != i || down[i] != i {
			t.Fatalf("out of order at %d: up=%d down=%d", i, up[i], down[i])
		}
	}
}

func TestSendActiveFollowsFocus(t *testing.T) {
	b := testBus(t)
	h := b.Host()
	mainWin := openWindow(t, b, "main")
	tool := openWindow(t, b, "picker")

	got := make(chan string, 4)
	mainWin.On("ping", func(json.RawMessage) { got <- "main" })
	tool.On("ping", func(json.RawMessage) { got <- "picker" })

	expect := func(want string) {
		t.Helper()
		select {
		case name := <-got:
			if name != want {
				t.Errorf("delivered to %s, want %s", name, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("nothing delivered, want %s", want)
		}
	}

	_ = h.SendActive("ping", nil)
	expect("picker")

	mainWin.Focus()
	_ = h.SendActive("ping", nil)
	expect("main")

	mainWin.Close()
	_ = h.SendActive("ping", nil)
	expect("picker")

	infos := b.Windows()
	if len(infos) != 1 || infos[0].ID != tool.ID() || !infos[0].Active {
		t.Errorf("Windows = %+v", infos)
	}
}

func TestOnceAndUnsubscribe(t *testing.T) {
	b := testBus(t)
	w := openWindow(t, b, "main")

	var mu sync.Mutex
	counts := map[string]int{}
	inc := func(k string) func(json.RawMessage) {
		return func(json.RawMessage) {
			mu.Lock()
			counts[k]++
			mu.Unlock()
		}
	}
	w.Once("x", inc("once"))
	off := w.On("x", inc("on"))
	w.On("x", inc("keep"))

	_ = b.Host().Send(w.ID(), "x", nil)
	eventually(t, time.Second, 10*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return counts["keep"] == 1
	}, "first message not delivered")

	off()
	_ = b.Host().Send(w.ID(), "x", nil)
	eventually(t, time.Second, 10*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return counts["keep"] == 2
	}, "second message not delivered")

	mu.Lock()
	defer mu.Unlock()
	if counts["once"] != 1 || counts["on"] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestCloseFailsPendingInvoke(t *testing.T) {
	b := testBus(t)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	b.Host().Handle("slow", func(context.Context, Event, json.RawMessage) (any, error) {
		<-release
		return nil, nil
	})
	w := openWindow(t, b, "main")

	errCh := make(chan error, 1)
	go func() {
		_, err := w.Invoke(context.Background(), "slow", nil)
		errCh <- err
	}()
	time.Sleep(20 * time.Millisecond)
	w.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrWindowClosed) {
			t.Errorf("err = %v, want ErrWindowClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Invoke did not return after Close")
	}
}

func TestClosedBus(t *testing.T) {
	b := NewBus(slog.New(slog.NewJSONHandler(io.Discard, nil)))
	b.Close()
	b.Close()

	if _, err := b.OpenWindow("late"); !errors.Is(err, ErrClosed) {
		t.Errorf("OpenWindow err = %v", err)
	}
	if err := b.Host().SendActive("x", nil); !IsClosed(err) {
		t.Errorf("SendActive err = %v", err)
	}
}
