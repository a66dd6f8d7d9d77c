// Package ipc is the message bus between the privileged host context and
// the UI contexts, one per window.
//
// Every endpoint runs its handlers on its own goroutine, one message at a
// time. Payloads cross the bus as JSON only. Messages on one channel in one
// direction arrive in send order; nothing is promised across channels.
package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Channel names shared by both ends.
const (
	ChannelGetScreenSources   = "get-screen-sources"
	ChannelGetResourcePath    = "get-resource-path"
	ChannelSelectScreenSource = "select-screen-source"
	ChannelSourceSelected     = "source-selected"
	ChannelGetSourceStream    = "get-source-stream"
	ChannelSourceStreamReady  = "source-stream-ready"
	ChannelGetAllSources      = "get-all-sources"
	ChannelAllSources         = "all-sources"
	ChannelAllSourcesError    = "all-sources-error"
	ChannelPermissionChanged  = "permission-changed"
)

// WindowID identifies a UI context.
type WindowID int

// Message is one delivery on a channel.
type Message struct {
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WindowInfo describes an open window.
type WindowInfo struct {
	ID     WindowID `json:"id"`
	Name   string   `json:"name"`
	Active bool     `json:"active"`
}

var (
	// ErrClosed is returned after the bus has shut down.
	ErrClosed = errors.New("ipc: bus closed")
	// ErrWindowClosed is returned when the window went away mid-call.
	ErrWindowClosed = errors.New("ipc: window closed")
	// ErrNoHandler is returned by Invoke when the host has no handler.
	ErrNoHandler = errors.New("ipc: no handler registered")
)

// RemoteError is a failure reported by the other side of the bus.
type RemoteError struct {
	Channel string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("ipc: %s: %s", e.Channel, e.Message)
}

// ErrorPayload is the body of error events such as all-sources-error.
type ErrorPayload struct {
	Error string `json:"error"`
}

func encode(v any) (json.RawMessage, error) {
	switch p := v.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return p, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("ipc: encode payload: %w", err)
	}
	return data, nil
}
