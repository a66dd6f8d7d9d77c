// Package host registers the privileged side of every bus channel.
//
// Handlers never fail across the bus: bad input is logged and ignored,
// and an enumeration failure on the event-style path becomes an error
// event.
package host

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/starford/jobpilot/internal/capture"
	"github.com/starford/jobpilot/internal/ipc"
	"github.com/starford/jobpilot/internal/permission"
)

// Sources enumerates capture targets.
type Sources interface {
	ListSources(ctx context.Context) []capture.Source
	Enumerate(ctx context.Context) ([]capture.Source, error)
}

// Resources resolves bundled resource names.
type Resources interface {
	Path(name string) string
}

// StreamReady is the payload of source-stream-ready.
type StreamReady struct {
	SourceID string `json:"sourceId"`
}

// PermissionChange is the payload of permission-changed.
type PermissionChange struct {
	Capability permission.Capability `json:"capability"`
	Status     permission.Status     `json:"status"`
}

// Handlers holds the collaborators of the host-side channel handlers.
type Handlers struct {
	host      *ipc.Host
	sources   Sources
	resources Resources
	logger    *slog.Logger
}

// Register installs the handlers on h.
func Register(h *ipc.Host, sources Sources, resources Resources, logger *slog.Logger) *Handlers {
	hs := &Handlers{host: h, sources: sources, resources: resources, logger: logger}

	h.Handle(ipc.ChannelGetScreenSources, hs.getScreenSources)
	h.Handle(ipc.ChannelGetResourcePath, hs.getResourcePath)
	h.On(ipc.ChannelSelectScreenSource, hs.forwardSelection)
	h.On(ipc.ChannelSourceSelected, hs.forwardSelection)
	h.On(ipc.ChannelGetSourceStream, hs.getSourceStream)
	h.On(ipc.ChannelGetAllSources, hs.getAllSources)
	h.On("ping", func(context.Context, ipc.Event, json.RawMessage) {
		logger.Debug("host: pong")
	})
	return hs
}

func (hs *Handlers) getScreenSources(ctx context.Context, ev ipc.Event, _ json.RawMessage) (any, error) {
	hs.logger.Info("host: listing sources", slog.Int("window", int(ev.Sender)))
	return hs.sources.ListSources(ctx), nil
}

func (hs *Handlers) getResourcePath(_ context.Context, ev ipc.Event, args json.RawMessage) (any, error) {
	name := decodeID(args)
	if name == "" {
		hs.logger.Warn("host: resource path without name", slog.Int("window", int(ev.Sender)))
		return "", nil
	}
	p := hs.resources.Path(name)
	hs.logger.Debug("host: resource path", slog.String("name", name), slog.String("path", p))
	return p, nil
}

// forwardSelection rebroadcasts a selection to the active window without
// interpreting it.
func (hs *Handlers) forwardSelection(_ context.Context, ev ipc.Event, payload json.RawMessage) {
	id := decodeID(payload)
	if id == "" {
		hs.logger.Warn("host: selection without source id",
			slog.String("channel", ev.Channel),
			slog.Int("window", int(ev.Sender)))
		return
	}
	if err := hs.host.SendActive(ipc.ChannelSourceSelected, id); err != nil {
		hs.logger.Error("host: forward selection failed", slog.String("error", err.Error()))
		return
	}
	hs.logger.Info("host: source selected", slog.String("source", id), slog.Int("from", int(ev.Sender)))
}

// getSourceStream only acknowledges. The stream itself is acquired by the UI.
func (hs *Handlers) getSourceStream(_ context.Context, ev ipc.Event, payload json.RawMessage) {
	id := decodeID(payload)
	if id == "" {
		hs.logger.Warn("host: stream request without source id", slog.Int("window", int(ev.Sender)))
		return
	}
	if err := hs.host.Send(ev.Sender, ipc.ChannelSourceStreamReady, StreamReady{SourceID: id}); err != nil {
		hs.logger.Error("host: stream ready failed", slog.String("error", err.Error()))
	}
}

func (hs *Handlers) getAllSources(ctx context.Context, ev ipc.Event, _ json.RawMessage) {
	sources, err := hs.sources.Enumerate(ctx)
	if err != nil {
		hs.logger.Error("host: enumerate failed", slog.String("error", err.Error()))
		err = hs.host.Send(ev.Sender, ipc.ChannelAllSourcesError, ipc.ErrorPayload{Error: err.Error()})
	} else {
		err = hs.host.Send(ev.Sender, ipc.ChannelAllSources, sources)
	}
	if err != nil {
		hs.logger.Error("host: reply failed", slog.String("error", err.Error()))
	}
}

// PermissionChanged tells the active window about an out-of-band grant or
// revocation.
func (hs *Handlers) PermissionChanged(c permission.Capability, st permission.Status) {
	if err := hs.host.SendActive(ipc.ChannelPermissionChanged, PermissionChange{Capability: c, Status: st}); err != nil {
		hs.logger.Error("host: permission notice failed", slog.String("error", err.Error()))
	}
}

// decodeID accepts a bare JSON string or an object with sourceId.
func decodeID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj StreamReady
	if err := json.Unmarshal(raw, &obj); err == nil {
		return strings.TrimSpace(obj.SourceID)
	}
	return ""
}
