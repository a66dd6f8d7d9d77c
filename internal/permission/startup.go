package permission

import (
	"context"
	"log/slog"
)

// Choice is the button picked in a Notice.
type Choice int

const (
	ChoiceDismiss Choice = iota
	ChoiceOpenSettings
)

// Notice is the blocking explanation shown when screen capture is not authorized.
type Notice struct {
	Title   string
	Message string
	Detail  string
	Buttons []string
}

// Dialog shows a Notice and waits for the user to close it.
type Dialog interface {
	ShowBlocking(ctx context.Context, n Notice) (Choice, error)
}

// SettingsOpener opens the OS settings page for a capability.
type SettingsOpener interface {
	Open(ctx context.Context, c Capability) error
}

// ScreenNotice is shown when screen recording has not been granted.
var ScreenNotice = Notice{
	Title:   "Screen recording permission required",
	Message: "This application needs screen recording permission to work properly.",
	Detail: "1. Click \"Open System Settings\".\n" +
		"2. Under Privacy & Security > Screen Recording, enable this application.\n" +
		"3. Quit the application completely and start it again.\n\n" +
		"Adding the permission without restarting may not take effect.",
	Buttons: []string{"OK", "Open System Settings"},
}

// Report is the outcome of CheckStartup.
type Report struct {
	Screen     Status `json:"screen"`
	Camera     Status `json:"camera"`
	Microphone Status `json:"microphone"`
	// ScreenBlocked is set when the explanatory notice was shown.
	ScreenBlocked bool `json:"screenBlocked"`
}

// CheckStartup checks screen capture once and, if it is not granted, shows
// the blocking notice with a single way out: the OS settings page. It then
// requests camera and microphone access in that order. It never fails; the
// user may grant access out of band and restart.
func (g *Gate) CheckStartup(ctx context.Context, dialog Dialog, opener SettingsOpener) Report {
	var r Report

	r.Screen = g.Status(Screen)
	g.logger.Info("permission: screen status", slog.String("status", string(r.Screen)))
	if r.Screen != Granted {
		r.ScreenBlocked = true
		choice, err := dialog.ShowBlocking(ctx, ScreenNotice)
		if err != nil {
			g.logger.Warn("permission: notice failed", slog.String("error", err.Error()))
		} else if choice == ChoiceOpenSettings {
			if err := opener.Open(ctx, Screen); err != nil {
				g.logger.Warn("permission: open settings failed", slog.String("error", err.Error()))
			}
		}
	}

	var err error
	if r.Camera, err = g.Request(ctx, Camera); err != nil {
		g.logger.Warn("permission: camera request failed", slog.String("error", err.Error()))
	}
	if r.Microphone, err = g.Request(ctx, Microphone); err != nil {
		g.logger.Warn("permission: microphone request failed", slog.String("error", err.Error()))
	}
	return r
}
