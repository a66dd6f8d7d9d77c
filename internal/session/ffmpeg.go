package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/starford/jobpilot/internal/apperr"
	"github.com/starford/jobpilot/internal/capture"
)

// FFmpegOptions configures FFmpegAcquirer.
type FFmpegOptions struct {
	Binary    string        // default "ffmpeg"
	Display   string        // X display; default $DISPLAY or ":0"
	FrameRate int           // default 30
	Audio     string        // PulseAudio source; empty records no audio
	TempDir   string        // default os.TempDir()
	Probe     time.Duration // how long a fresh process must survive; default 300ms
}

func (o FFmpegOptions) withDefaults() FFmpegOptions {
	if o.Binary == "" {
		o.Binary = "ffmpeg"
	}
	if o.Display == "" {
		o.Display = os.Getenv("DISPLAY")
	}
	if o.Display == "" {
		o.Display = ":0"
	}
	if o.FrameRate <= 0 {
		o.FrameRate = 30
	}
	if o.Probe <= 0 {
		o.Probe = 300 * time.Millisecond
	}
	return o
}

// FFmpegAcquirer records a capture source with ffmpeg's x11grab device into
// a WebM file.
type FFmpegAcquirer struct {
	opts   FFmpegOptions
	logger *slog.Logger
}

// NewFFmpegAcquirer creates an acquirer.
func NewFFmpegAcquirer(opts FFmpegOptions, logger *slog.Logger) *FFmpegAcquirer {
	return &FFmpegAcquirer{opts: opts.withDefaults(), logger: logger}
}

// Acquire starts recording sourceID. The recording outlives ctx; ctx only
// bounds the start-up check.
func (a *FFmpegAcquirer) Acquire(ctx context.Context, sourceID string) (Stream, error) {
	kind, n, err := capture.ParseID(sourceID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrStreamAcquisitionFailed, err)
	}

	dir, err := os.MkdirTemp(a.opts.TempDir, "jobpilot-rec-*")
	if err != nil {
		return nil, fmt.Errorf("%w: temp dir: %w", apperr.ErrStreamAcquisitionFailed, err)
	}
	out := filepath.Join(dir, "recording.webm")

	cmd := exec.Command(a.opts.Binary, a.args(kind, n, out)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("%w: %w", apperr.ErrStreamAcquisitionFailed, err)
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("%w: start %s: %w", apperr.ErrStreamAcquisitionFailed, a.opts.Binary, err)
	}
	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	select {
	case err := <-exited:
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("%w: %s exited early: %v: %s",
			apperr.ErrStreamAcquisitionFailed, a.opts.Binary, err, tail(stderr.String()))
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-exited
		_ = os.RemoveAll(dir)
		return nil, ctx.Err()
	case <-time.After(a.opts.Probe):
	}

	a.logger.Info("session: recording started",
		slog.String("source", sourceID),
		slog.Int("pid", cmd.Process.Pid))
	return &ffmpegStream{cmd: cmd, stdin: stdin, exited: exited, dir: dir, out: out, stderr: stderr}, nil
}

func (a *FFmpegAcquirer) args(kind capture.Kind, n uint64, out string) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-y",
		"-f", "x11grab", "-framerate", strconv.Itoa(a.opts.FrameRate)}
	if kind == capture.KindWindow {
		args = append(args, "-window_id", "0x"+strconv.FormatUint(n, 16))
	}
	args = append(args, "-i", a.opts.Display)
	if a.opts.Audio != "" {
		args = append(args, "-f", "pulse", "-i", a.opts.Audio, "-c:a", "libopus")
	}
	return append(args, "-c:v", "libvpx", "-deadline", "realtime", "-b:v", "2M", out)
}

type ffmpegStream struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	exited chan error
	dir    string
	out    string
	stderr *bytes.Buffer
}

// Stop asks ffmpeg to finish the file, killing it if ctx ends first, and
// returns the file's contents.
func (s *ffmpegStream) Stop(ctx context.Context) ([]byte, error) {
	defer os.RemoveAll(s.dir)

	_, _ = io.WriteString(s.stdin, "q\n")
	_ = s.stdin.Close()

	var waitErr error
	select {
	case waitErr = <-s.exited:
	case <-ctx.Done():
		_ = s.cmd.Process.Kill()
		<-s.exited
		return nil, ctx.Err()
	}

	data, err := os.ReadFile(s.out)
	if err != nil || len(data) == 0 {
		if waitErr == nil {
			waitErr = errors.New("empty recording")
		}
		return nil, fmt.Errorf("session: recording: %w: %s", waitErr, tail(s.stderr.String()))
	}
	return data, nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 512 {
		s = s[len(s)-512:]
	}
	return s
}
