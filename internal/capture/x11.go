package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// commandResult is the captured output of one external command.
type commandResult struct {
	Stdout   []byte
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := commandResult{Stdout: stdout.Bytes(), Stderr: stderr.String()}
	if err != nil {
		res.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		}
		return res, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(res.Stderr))
	}
	return res, nil
}

// X11Enumerator lists monitors with xrandr and top-level windows with
// wmctrl, and takes thumbnails with ImageMagick's import. Window icons come
// from the _NET_WM_ICON property via xprop.
type X11Enumerator struct {
	run    commandRunner
	logger *slog.Logger
}

// NewX11Enumerator creates an enumerator that shells out to the X11 tools.
func NewX11Enumerator(logger *slog.Logger) *X11Enumerator {
	return &X11Enumerator{run: execRunner{}, logger: logger}
}

// Enumerate implements Enumerator. Screens come first. A missing thumbnail
// or icon is left empty; failing to list monitors or windows is an error.
func (e *X11Enumerator) Enumerate(ctx context.Context, opts Options) ([]Source, error) {
	sources := []Source{}

	if opts.Wants(KindScreen) {
		res, err := e.run.Run(ctx, "xrandr", "--listmonitors")
		if err != nil {
			return nil, err
		}
		monitors, err := parseMonitors(string(res.Stdout))
		if err != nil {
			return nil, err
		}
		for _, m := range monitors {
			src := Source{
				ID:        FormatID(KindScreen, m.index),
				Name:      screenName(m, len(monitors)),
				DisplayID: strconv.FormatUint(m.index, 10),
			}
			src.Thumbnail = e.thumbnail(ctx, opts, "-window", "root", "-crop", m.geometry)
			sources = append(sources, src)
		}
	}

	if opts.Wants(KindWindow) {
		res, err := e.run.Run(ctx, "wmctrl", "-l")
		if err != nil {
			return nil, err
		}
		for _, w := range parseWindows(string(res.Stdout)) {
			src := Source{
				ID:   FormatID(KindWindow, w.id),
				Name: w.title,
			}
			src.Thumbnail = e.thumbnail(ctx, opts, "-window", w.hex)
			if opts.FetchWindowIcons {
				src.AppIcon = e.icon(ctx, w.hex)
			}
			sources = append(sources, src)
		}
	}
	return sources, nil
}

func (e *X11Enumerator) thumbnail(ctx context.Context, opts Options, args ...string) string {
	if opts.ThumbnailWidth <= 0 || opts.ThumbnailHeight <= 0 {
		return ""
	}
	res, err := e.run.Run(ctx, "import", append(args, "png:-")...)
	if err != nil {
		e.logger.Debug("capture: thumbnail failed", slog.String("error", err.Error()))
		return ""
	}
	url, err := thumbnailURL(res.Stdout, opts.ThumbnailWidth, opts.ThumbnailHeight)
	if err != nil {
		e.logger.Debug("capture: thumbnail failed", slog.String("error", err.Error()))
		return ""
	}
	return url
}

func (e *X11Enumerator) icon(ctx context.Context, hex string) string {
	res, err := e.run.Run(ctx, "xprop", "-id", hex, "-notype", "32c", "_NET_WM_ICON")
	if err != nil {
		return ""
	}
	img, err := parseIcon(string(res.Stdout))
	if err != nil {
		return ""
	}
	url, err := dataURL(img)
	if err != nil {
		return ""
	}
	return url
}

type monitor struct {
	index    uint64
	name     string
	geometry string // WxH+X+Y
}

// " 0: +*eDP-1 1920/344x1080/194+0+0  eDP-1"
var monitorRe = regexp.MustCompile(`^\s*(\d+):\s+\S+\s+(\d+)/\d+x(\d+)/\d+([+-]\d+)([+-]\d+)\s+(\S+)`)

func parseMonitors(out string) ([]monitor, error) {
	var monitors []monitor
	for _, line := range strings.Split(out, "\n") {
		m := monitorRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		idx, err := strconv.ParseUint(m[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("capture: monitor index %q: %w", m[1], err)
		}
		monitors = append(monitors, monitor{
			index:    idx,
			name:     m[6],
			geometry: m[2] + "x" + m[3] + m[4] + m[5],
		})
	}
	if len(monitors) == 0 && strings.TrimSpace(out) != "" {
		return nil, fmt.Errorf("capture: no monitors in xrandr output")
	}
	return monitors, nil
}

func screenName(m monitor, total int) string {
	if total == 1 {
		return "Entire Screen"
	}
	return fmt.Sprintf("Screen %d", m.index+1)
}

type window struct {
	id    uint64
	hex   string
	title string
}

// "0x03c00003  0 host Title words"
var windowRe = regexp.MustCompile(`^(0x[0-9a-fA-F]+)\s+(-?\d+)\s+\S+\s?(.*)$`)

// parseWindows skips sticky windows (desktop -1, i.e. panels and docks) and
// untitled ones.
func parseWindows(out string) []window {
	var windows []window
	for _, line := range strings.Split(out, "\n") {
		m := windowRe.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil || m[2] == "-1" {
			continue
		}
		title := strings.TrimSpace(m[3])
		if title == "" {
			continue
		}
		id, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(m[1]), "0x"), 16, 64)
		if err != nil {
			continue
		}
		windows = append(windows, window{id: id, hex: m[1], title: title})
	}
	return windows
}

// parseIcon decodes the first image of an xprop _NET_WM_ICON dump: width,
// height, then width*height ARGB pixels.
func parseIcon(out string) (image.Image, error) {
	_, list, ok := strings.Cut(out, "=")
	if !ok {
		return nil, fmt.Errorf("capture: no icon")
	}
	fields := strings.Split(list, ",")
	nums := make([]uint32, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseUint(strings.TrimSpace(f), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("capture: icon value %q: %w", f, err)
		}
		nums = append(nums, uint32(v))
	}
	if len(nums) < 2 {
		return nil, fmt.Errorf("capture: short icon")
	}
	w, h := int(nums[0]), int(nums[1])
	if w <= 0 || h <= 0 || len(nums) < 2+w*h {
		return nil, fmt.Errorf("capture: icon size %dx%d does not match data", w, h)
	}

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i, p := range nums[2 : 2+w*h] {
		img.SetNRGBA(i%w, i/w, color.NRGBA{
			A: uint8(p >> 24),
			R: uint8(p >> 16),
			G: uint8(p >> 8),
			B: uint8(p),
		})
	}
	return img, nil
}
