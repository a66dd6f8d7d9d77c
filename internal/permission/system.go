package permission

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	goruntime "runtime"
	"strings"
)

// macOS privacy pane deep links.
var darwinSettingsURLs = map[Capability]string{
	Screen:     "x-apple.systempreferences:com.apple.preference.security?Privacy_ScreenCapture",
	Camera:     "x-apple.systempreferences:com.apple.preference.security?Privacy_Camera",
	Microphone: "x-apple.systempreferences:com.apple.preference.security?Privacy_Microphone",
}

var windowsSettingsURLs = map[Capability]string{
	Screen:     "ms-settings:privacy",
	Camera:     "ms-settings:privacy-webcam",
	Microphone: "ms-settings:privacy-microphone",
}

// ExecOpener opens settings pages with the platform URL handler.
type ExecOpener struct {
	// URLs overrides the platform defaults.
	URLs  map[Capability]string
	start func(name string, args ...string) error
}

// NewExecOpener creates an opener using the platform defaults for goos,
// overridden by any entry in urls.
func NewExecOpener(goos string, urls map[Capability]string) *ExecOpener {
	merged := map[Capability]string{}
	switch goos {
	case "darwin":
		for k, v := range darwinSettingsURLs {
			merged[k] = v
		}
	case "windows":
		for k, v := range windowsSettingsURLs {
			merged[k] = v
		}
	}
	for k, v := range urls {
		merged[k] = v
	}
	return &ExecOpener{URLs: merged, start: startCommand}
}

// Open implements SettingsOpener.
func (o *ExecOpener) Open(_ context.Context, c Capability) error {
	target := o.URLs[c]
	if target == "" {
		return fmt.Errorf("permission: no settings location for %s on %s", c, goruntime.GOOS)
	}
	var err error
	switch goruntime.GOOS {
	case "darwin":
		err = o.start("open", target)
	case "windows":
		err = o.start("explorer", target)
	default:
		err = o.start("xdg-open", target)
	}
	if err != nil {
		return fmt.Errorf("permission: open settings: %w", err)
	}
	return nil
}

func startCommand(name string, args ...string) error {
	return exec.Command(name, args...).Start()
}

// LogDialog writes notices to the log and dismisses them. It is used when
// no interactive terminal is attached.
type LogDialog struct {
	Logger *slog.Logger
}

// ShowBlocking implements Dialog.
func (d LogDialog) ShowBlocking(_ context.Context, n Notice) (Choice, error) {
	d.Logger.Warn(n.Title, slog.String("message", n.Message), slog.String("detail", n.Detail))
	return ChoiceDismiss, nil
}

// TerminalDialog asks on a terminal. It serves as both Dialog and Prompter.
type TerminalDialog struct {
	in  *bufio.Reader
	out io.Writer
}

// NewTerminalDialog creates a dialog reading answers from in.
func NewTerminalDialog(in io.Reader, out io.Writer) *TerminalDialog {
	return &TerminalDialog{in: bufio.NewReader(in), out: out}
}

// ShowBlocking implements Dialog. Answering "s" picks the settings button.
func (d *TerminalDialog) ShowBlocking(ctx context.Context, n Notice) (Choice, error) {
	fmt.Fprintf(d.out, "\n%s\n%s\n\n%s\n\n[enter] %s   [s] %s: ", n.Title, n.Message, n.Detail, n.Buttons[0], n.Buttons[len(n.Buttons)-1])
	line, err := d.readLine(ctx)
	if err != nil {
		return ChoiceDismiss, err
	}
	if strings.EqualFold(line, "s") {
		return ChoiceOpenSettings, nil
	}
	return ChoiceDismiss, nil
}

// Confirm implements Prompter.
func (d *TerminalDialog) Confirm(ctx context.Context, c Capability) (bool, error) {
	fmt.Fprintf(d.out, "Allow %s access? [y/N]: ", c)
	line, err := d.readLine(ctx)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(line, "y") || strings.EqualFold(line, "yes"), nil
}

func (d *TerminalDialog) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := d.in.ReadString('\n')
		if err == io.EOF {
			err = nil
		}
		ch <- result{strings.TrimSpace(line), err}
	}()
	select {
	case r := <-ch:
		return r.line, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
