package internal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/jobpilot/internal/capture"
	"github.com/starford/jobpilot/internal/ipc"
	"github.com/starford/jobpilot/internal/mcpserver"
	"github.com/starford/jobpilot/internal/permission"
	"github.com/starford/jobpilot/internal/picker"
	"github.com/starford/jobpilot/internal/session"
	"github.com/starford/jobpilot/internal/store"
)

// ListSources enumerates capture sources once. Unlike the channel handler it
// reports enumeration failures.
func ListSources(ctx context.Context, opts ...Option) ([]capture.Source, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	c, err := app.build(ctx)
	if err != nil {
		return nil, err
	}
	defer c.close()
	return c.registry.Enumerate(ctx)
}

// CheckPermissions runs the startup permission check interactively on the
// terminal.
func CheckPermissions(ctx context.Context, opts ...Option) (permission.Report, error) {
	app, err := newApplication(opts)
	if err != nil {
		return permission.Report{}, err
	}
	if app.dialog == nil || app.prompter == nil {
		term := permission.NewTerminalDialog(app.in, app.out)
		if app.dialog == nil {
			app.dialog = term
		}
		if app.prompter == nil {
			app.prompter = term
		}
	}
	c, err := app.build(ctx)
	if err != nil {
		return permission.Report{}, err
	}
	defer c.close()
	return app.checkStartup(ctx, c), nil
}

// SetPermission records a status for a capability in the permissions file,
// standing in for a change made in the OS settings.
func SetPermission(ctx context.Context, capability, status string, opts ...Option) error {
	capab, err := permission.ParseCapability(capability)
	if err != nil {
		return err
	}
	st, err := permission.ParseStatus(status)
	if err != nil {
		return err
	}
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	c, err := app.build(ctx)
	if err != nil {
		return err
	}
	defer c.close()
	if err := c.provider.Set(capab, st); err != nil {
		return fmt.Errorf("set permission: %w", err)
	}
	c.logger.Info("permission updated", slog.String("capability", string(capab)), slog.String("status", string(st)))
	return nil
}

// RecordRequest describes one recording made with Record.
type RecordRequest struct {
	// InterviewID attaches the recording to an existing interview. When
	// empty a new interview titled Title is created.
	InterviewID string
	Title       string
	Company     string
	Transcript  string
	// SourceID skips the picker.
	SourceID string
	// Duration stops the recording automatically; zero waits for Enter.
	Duration time.Duration
}

// RecordResult holds the ids written by Record.
type RecordResult struct {
	InterviewID string `json:"interviewId"`
	session.Saved
}

// ErrNothingSelected is returned when the picker is closed without a choice.
var ErrNothingSelected = errors.New("no source selected")

// Record runs a complete session in the terminal: the picker window lists
// sources and announces the choice, the recorder window reacts to it, and
// the result is persisted when the user stops.
func Record(ctx context.Context, req RecordRequest, opts ...Option) (RecordResult, error) {
	app, err := newApplication(opts)
	if err != nil {
		return RecordResult{}, err
	}
	c, err := app.build(ctx)
	if err != nil {
		return RecordResult{}, err
	}
	defer c.close()
	logger := c.logger

	if st := c.gate.Status(permission.Screen); st != permission.Granted {
		logger.Warn("screen recording is not granted", slog.String("status", string(st)))
	}

	recorder, err := c.bus.OpenWindow("recorder")
	if err != nil {
		return RecordResult{}, err
	}
	ctl := app.newController(c)
	streaming := make(chan struct{})
	var once sync.Once
	ctl.OnChange(func(_, to session.State) {
		if to == session.StateStreaming {
			once.Do(func() { close(streaming) })
		}
	})
	detach := ctl.Attach(ctx, recorder)
	defer detach()
	defer func() {
		if ctl.State() != session.StatePersisted {
			ctl.Abandon(context.Background())
		}
	}()

	pick, err := c.bus.OpenWindow("picker")
	if err != nil {
		return RecordResult{}, err
	}
	defer pick.Close()
	// The picker is a tool window; selections go to the recorder.
	recorder.Focus()

	if req.SourceID == "" {
		req.SourceID, err = picker.Run(ctx, pick, app.in, app.out)
		if err != nil {
			return RecordResult{}, err
		}
		if req.SourceID == "" {
			return RecordResult{}, ErrNothingSelected
		}
	} else if err := pick.Send(ipc.ChannelSelectScreenSource, req.SourceID); err != nil {
		return RecordResult{}, err
	}

	select {
	case <-streaming:
	case <-ctx.Done():
		return RecordResult{}, ctx.Err()
	case <-time.After(30 * time.Second):
		return RecordResult{}, fmt.Errorf("recording did not start for %s (state %s)", req.SourceID, ctl.State())
	}
	fmt.Fprintf(app.out, "Recording %s. ", req.SourceID)

	if err := app.waitForStop(ctx, req.Duration); err != nil {
		return RecordResult{}, err
	}
	if err := ctl.Stop(ctx); err != nil {
		return RecordResult{}, err
	}

	interviewID := req.InterviewID
	if interviewID == "" {
		title := req.Title
		if title == "" {
			title = "Interview " + time.Now().Format("2006-01-02 15:04")
		}
		rec, err := c.interviews.Create(ctx, store.Interview{Title: title, Company: req.Company})
		if err != nil {
			return RecordResult{}, err
		}
		interviewID = rec.ID
	}
	size := ctl.Snapshot().RecordedBytes
	saved, err := ctl.Persist(ctx, interviewID, req.Transcript)
	if err != nil {
		return RecordResult{}, err
	}
	logger.Info("recording saved",
		slog.String("interview_id", interviewID),
		slog.String("video_id", saved.VideoID),
		slog.Int("bytes", size))
	return RecordResult{InterviewID: interviewID, Saved: saved}, nil
}

func (a *application) waitForStop(ctx context.Context, d time.Duration) error {
	if d > 0 {
		fmt.Fprintf(a.out, "Stopping in %s.\n", d)
		select {
		case <-time.After(d):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	fmt.Fprintln(a.out, "Press Enter to stop.")
	done := make(chan error, 1)
	go func() {
		_, err := bufio.NewReader(a.in).ReadString('\n')
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ServeMCP exposes the interview store over MCP on stdin/stdout. Logs go to
// the configured log output, which must not be stdout.
func ServeMCP(ctx context.Context, version string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	c, err := app.build(ctx)
	if err != nil {
		return err
	}
	defer c.close()

	c.logger.Info("MCP server starting")
	return mcpserver.New(c.interviews, version).ServeStdio()
}
