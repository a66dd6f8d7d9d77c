// Package permission tracks operating-system media-capture authorization.
//
// The operating system owns the state. Gate never keeps a copy of it: every
// Status call asks the Provider, because a grant can be revoked at any time
// outside the application.
package permission

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"
)

// Capability is a kind of media capture.
type Capability string

const (
	Screen     Capability = "screen"
	Camera     Capability = "camera"
	Microphone Capability = "microphone"
)

// Capabilities lists every capability in startup-check order.
var Capabilities = []Capability{Screen, Camera, Microphone}

// Status is the authorization state of one capability.
type Status string

const (
	NotDetermined Status = "not-determined"
	Granted       Status = "granted"
	Denied        Status = "denied"
	Restricted    Status = "restricted"
)

// ParseCapability validates a capability name.
func ParseCapability(s string) (Capability, error) {
	switch c := Capability(s); c {
	case Screen, Camera, Microphone:
		return c, nil
	}
	return "", fmt.Errorf("permission: unknown capability %q", s)
}

// ParseStatus validates a status name.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case NotDetermined, Granted, Denied, Restricted:
		return st, nil
	}
	return "", fmt.Errorf("permission: unknown status %q", s)
}

// Provider is the operating system's authorization database.
type Provider interface {
	// Status reads the current state without prompting.
	Status(c Capability) (Status, error)
	// Prompt asks the user and reports whether access was granted.
	Prompt(ctx context.Context, c Capability) (bool, error)
}

// Gate exposes authorization state and requests to the rest of the app.
type Gate struct {
	provider Provider
	logger   *slog.Logger
	inflight singleflight.Group
}

// NewGate creates a gate over provider.
func NewGate(provider Provider, logger *slog.Logger) *Gate {
	return &Gate{provider: provider, logger: logger}
}

// Status returns the current state of c. It never prompts. A provider
// failure is logged and reported as NotDetermined.
func (g *Gate) Status(c Capability) Status {
	st, err := g.provider.Status(c)
	if err != nil {
		g.logger.Warn("permission: status failed",
			slog.String("capability", string(c)),
			slog.String("error", err.Error()))
		return NotDetermined
	}
	return st
}

// Request resolves the state of c, prompting the user only when it is still
// NotDetermined. Concurrent requests for the same capability share a single
// prompt. Once shown, the prompt cannot be withdrawn: cancelling ctx stops
// this caller from waiting but the prompt still runs to its answer.
func (g *Gate) Request(ctx context.Context, c Capability) (Status, error) {
	if st := g.Status(c); st != NotDetermined {
		return st, nil
	}

	promptCtx := context.WithoutCancel(ctx)
	ch := g.inflight.DoChan(string(c), func() (any, error) {
		if st := g.Status(c); st != NotDetermined {
			return st, nil
		}
		g.logger.Info("permission: prompting", slog.String("capability", string(c)))
		ok, err := g.provider.Prompt(promptCtx, c)
		if err != nil {
			return NotDetermined, fmt.Errorf("permission: prompt %s: %w", c, err)
		}
		if ok {
			return Granted, nil
		}
		return Denied, nil
	})

	select {
	case res := <-ch:
		st, _ := res.Val.(Status)
		if st == "" {
			st = NotDetermined
		}
		g.logger.Info("permission: resolved",
			slog.String("capability", string(c)),
			slog.String("status", string(st)),
			slog.Bool("shared", res.Shared))
		return st, res.Err
	case <-ctx.Done():
		return NotDetermined, ctx.Err()
	}
}
