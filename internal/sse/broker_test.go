package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe(AllTopics)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe(AllTopics)
	defer b.Unsubscribe(ch)

	b.Publish("window:1", Event{Type: "source-selected", Data: "window:42"})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: source-selected") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `data: "window:42"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestTopicsAreSeparate(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	one := b.Subscribe("window:1")
	defer b.Unsubscribe(one)
	two := b.Subscribe("window:2")
	defer b.Unsubscribe(two)

	b.Publish("window:2", Event{Type: "ping", Data: nil})
	b.Publish("window:1", Event{Type: "pong", Data: nil})

	select {
	case msg := <-one:
		if !strings.Contains(string(msg), "event: pong") {
			t.Errorf("window:1 got %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("window:1 got nothing")
	}
	select {
	case msg := <-two:
		if !strings.Contains(string(msg), "event: ping") {
			t.Errorf("window:2 got %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("window:2 got nothing")
	}

	time.Sleep(20 * time.Millisecond)
	if len(one) != 0 || len(two) != 0 {
		t.Errorf("cross-topic delivery: %d, %d", len(one), len(two))
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Publish("session", Event{Type: "session.state", Data: map[string]string{"state": "streaming"}})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: session.state") {
		t.Errorf("handler output missing event: %q", body)
	}
	if w.Header().Get("Content-Type") != "text/event-stream" {
		t.Errorf("content type = %q", w.Header().Get("Content-Type"))
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe(AllTopics)
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 256) and then a few more should not block.
	for i := 0; i < 300; i++ {
		b.Publish("t", Event{Type: "test", Data: i})
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe(AllTopics)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.Publish("t", Event{Type: "late"})
	if _, ok := <-b.Subscribe("t"); ok {
		t.Fatal("subscribe after close should yield a closed channel")
	}
}
