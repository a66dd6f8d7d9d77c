// Package session drives one recording from source selection to a stored
// video.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/starford/jobpilot/internal/apperr"
	"github.com/starford/jobpilot/internal/ipc"
	"github.com/starford/jobpilot/internal/store"
)

// State is a step of the recording lifecycle.
type State string

const (
	StateIdle           State = "idle"
	StateSourceSelected State = "source-selected"
	StateStreaming      State = "streaming"
	StateStopped        State = "stopped"
	StatePersisted      State = "persisted"
)

var (
	// ErrInvalidTransition is returned when an action does not apply to the
	// current state.
	ErrInvalidTransition = errors.New("session: invalid transition")
	// ErrBusy is returned while another action is still in progress.
	ErrBusy = errors.New("session: busy")
)

// Snapshot is a copy of the controller's state.
type Snapshot struct {
	State         State  `json:"state"`
	SourceID      string `json:"sourceId,omitempty"`
	RecordedBytes int    `json:"recordedBytes"`
}

// Saved holds the ids written by Persist.
type Saved struct {
	VideoID      string `json:"videoId"`
	TranscriptID string `json:"transcriptId,omitempty"`
}

// Controller tracks a single recording session.
type Controller struct {
	acquirer Acquirer
	videos   VideoStore
	logger   *slog.Logger

	mu        sync.Mutex
	state     State
	sourceID  string
	stream    Stream
	recording []byte
	busy      bool
	gen       uint64 // bumped by Abandon
	onChange  func(from, to State)
}

// NewController creates a controller in the idle state.
func NewController(acquirer Acquirer, videos VideoStore, logger *slog.Logger) *Controller {
	return &Controller{acquirer: acquirer, videos: videos, logger: logger, state: StateIdle}
}

// OnChange registers fn to be called after every state change. fn runs with
// no lock held.
func (c *Controller) OnChange(fn func(from, to State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns the current state with its source and recording size.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{State: c.state, SourceID: c.sourceID, RecordedBytes: len(c.recording)}
}

// Select records the chosen source. A different source may be chosen again
// until streaming starts.
func (c *Controller) Select(sourceID string) error {
	if sourceID == "" {
		return fmt.Errorf("%w: empty source id", ErrInvalidTransition)
	}
	c.mu.Lock()
	if err := c.check(StateSourceSelected); err != nil {
		c.mu.Unlock()
		return err
	}
	c.sourceID = sourceID
	c.recording = nil
	notify := c.set(StateSourceSelected)
	c.mu.Unlock()

	notify()
	c.logger.Info("session: source selected", slog.String("source", sourceID))
	return nil
}

// Start acquires the selected source. If acquisition fails the session
// returns to idle and the error wraps apperr.ErrStreamAcquisitionFailed.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if err := c.check(StateStreaming); err != nil {
		c.mu.Unlock()
		return err
	}
	c.busy = true
	sourceID, gen := c.sourceID, c.gen
	c.mu.Unlock()

	stream, err := c.acquirer.Acquire(ctx, sourceID)

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		if err == nil {
			_, _ = stream.Stop(ctx)
		}
		return fmt.Errorf("%w: abandoned during acquisition", ErrInvalidTransition)
	}
	c.busy = false
	if err != nil {
		c.sourceID = ""
		notify := c.set(StateIdle)
		c.mu.Unlock()
		notify()
		c.logger.Warn("session: acquisition failed",
			slog.String("source", sourceID),
			slog.String("error", err.Error()))
		if errors.Is(err, apperr.ErrStreamAcquisitionFailed) {
			return err
		}
		return fmt.Errorf("%w: %w", apperr.ErrStreamAcquisitionFailed, err)
	}
	c.stream = stream
	notify := c.set(StateStreaming)
	c.mu.Unlock()

	notify()
	c.logger.Info("session: streaming", slog.String("source", sourceID))
	return nil
}

// Stop ends the stream and keeps the recording for Persist.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	if err := c.check(StateStopped); err != nil {
		c.mu.Unlock()
		return err
	}
	c.busy = true
	stream, gen := c.stream, c.gen
	c.stream = nil
	c.mu.Unlock()

	data, err := stream.Stop(ctx)

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return fmt.Errorf("%w: abandoned while stopping", ErrInvalidTransition)
	}
	c.busy = false
	if err != nil {
		c.sourceID = ""
		notify := c.set(StateIdle)
		c.mu.Unlock()
		notify()
		return fmt.Errorf("session: stop stream: %w", err)
	}
	c.recording = data
	notify := c.set(StateStopped)
	c.mu.Unlock()

	notify()
	c.logger.Info("session: stopped", slog.Int("bytes", len(data)))
	return nil
}

// Persist stores the recording, and the transcript when it is not empty,
// under interviewID. On failure the session stays stopped so the save can
// be retried; the store error is returned unchanged.
func (c *Controller) Persist(ctx context.Context, interviewID, transcript string) (Saved, error) {
	c.mu.Lock()
	if err := c.check(StatePersisted); err != nil {
		c.mu.Unlock()
		return Saved{}, err
	}
	c.busy = true
	data, gen := c.recording, c.gen
	c.mu.Unlock()

	saved, err := c.save(ctx, interviewID, data, transcript)

	c.mu.Lock()
	if c.gen != gen {
		// Abandoned meanwhile; what was written stays written.
		c.mu.Unlock()
		return saved, err
	}
	c.busy = false
	if err != nil {
		c.mu.Unlock()
		c.logger.Error("session: persist failed", slog.String("error", err.Error()))
		return Saved{}, err
	}
	c.recording = nil
	notify := c.set(StatePersisted)
	c.mu.Unlock()

	notify()
	c.logger.Info("session: persisted",
		slog.String("interview", interviewID),
		slog.String("video", saved.VideoID))
	return saved, nil
}

func (c *Controller) save(ctx context.Context, interviewID string, data []byte, transcript string) (Saved, error) {
	var saved Saved
	var err error
	saved.VideoID, err = c.videos.SaveVideo(ctx, store.NewVideo{InterviewID: interviewID, Blob: data})
	if err != nil {
		return Saved{}, err
	}
	if transcript != "" {
		saved.TranscriptID, err = c.videos.SaveTranscript(ctx, store.NewTranscript{InterviewID: interviewID, Content: transcript})
		if err != nil {
			return Saved{}, err
		}
	}
	return saved, nil
}

// Abandon drops whatever has not been persisted and returns to idle. A live
// stream is stopped and its data discarded.
func (c *Controller) Abandon(ctx context.Context) {
	c.mu.Lock()
	stream := c.stream
	lost := len(c.recording)
	was := c.state
	c.stream = nil
	c.recording = nil
	c.sourceID = ""
	c.busy = false
	c.gen++
	notify := c.set(StateIdle)
	c.mu.Unlock()

	if stream != nil {
		if _, err := stream.Stop(ctx); err != nil {
			c.logger.Warn("session: stop on abandon failed", slog.String("error", err.Error()))
		}
	}
	notify()
	if was == StateStopped {
		c.logger.Info("session: recording abandoned", slog.Int("bytes", lost))
	}
}

// Reset returns a persisted session to idle, ready for the next recording.
func (c *Controller) Reset() error {
	c.mu.Lock()
	if err := c.check(StateIdle); err != nil {
		c.mu.Unlock()
		return err
	}
	c.sourceID = ""
	notify := c.set(StateIdle)
	c.mu.Unlock()
	notify()
	return nil
}

// check must be called with c.mu held.
func (c *Controller) check(to State) error {
	if c.busy {
		return ErrBusy
	}
	if !isValidTransition(c.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.state, to)
	}
	return nil
}

// set must be called with c.mu held. The returned func reports the change
// and must be called after unlocking.
func (c *Controller) set(to State) func() {
	from := c.state
	c.state = to
	fn := c.onChange
	return func() {
		if fn != nil && from != to {
			fn(from, to)
		}
	}
}

// isValidTransition enforces the lifecycle edges.
func isValidTransition(from, to State) bool {
	switch from {
	case StateIdle:
		return to == StateSourceSelected
	case StateSourceSelected:
		return to == StateSourceSelected || to == StateStreaming || to == StateIdle
	case StateStreaming:
		return to == StateStopped || to == StateIdle
	case StateStopped:
		return to == StatePersisted || to == StateIdle
	case StatePersisted:
		return to == StateIdle || to == StateSourceSelected
	default:
		return false
	}
}

// Attach drives the controller from a window: a source-selected event
// selects the source and asks the host for the stream, and the matching
// source-stream-ready starts it. The returned func detaches.
func (c *Controller) Attach(ctx context.Context, w *ipc.Window) func() {
	offSelected := w.On(ipc.ChannelSourceSelected, func(p json.RawMessage) {
		var id string
		if err := json.Unmarshal(p, &id); err != nil || id == "" {
			c.logger.Warn("session: bad source-selected payload", slog.String("payload", string(p)))
			return
		}
		if err := c.Select(id); err != nil {
			c.logger.Warn("session: select ignored", slog.String("source", id), slog.String("error", err.Error()))
			return
		}
		if err := w.Send(ipc.ChannelGetSourceStream, map[string]string{"sourceId": id}); err != nil {
			c.logger.Error("session: request stream failed", slog.String("error", err.Error()))
		}
	})

	offReady := w.On(ipc.ChannelSourceStreamReady, func(p json.RawMessage) {
		var ready struct {
			SourceID string `json:"sourceId"`
		}
		if err := json.Unmarshal(p, &ready); err != nil || ready.SourceID == "" {
			c.logger.Warn("session: bad source-stream-ready payload", slog.String("payload", string(p)))
			return
		}
		snap := c.Snapshot()
		if snap.State != StateSourceSelected || snap.SourceID != ready.SourceID {
			return
		}
		if err := c.Start(ctx); err != nil {
			c.logger.Warn("session: start failed", slog.String("error", err.Error()))
		}
	})

	return func() {
		offSelected()
		offReady()
	}
}
