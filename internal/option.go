package internal

import (
	"io"

	"github.com/starford/jobpilot/internal/capture"
	"github.com/starford/jobpilot/internal/permission"
	"github.com/starford/jobpilot/internal/session"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config

	logOutput  io.Writer
	in         io.Reader
	out        io.Writer
	enumerator capture.Enumerator
	acquirer   session.Acquirer
	dialog     permission.Dialog
	prompter   permission.Prompter
	opener     permission.SettingsOpener
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogOutput sends logs to w instead of stdout.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}

// WithTerminal sets where interactive commands read answers and print to.
func WithTerminal(in io.Reader, out io.Writer) Option {
	return func(a *application) {
		a.in = in
		a.out = out
	}
}

// WithEnumerator replaces the X11 source enumerator.
func WithEnumerator(e capture.Enumerator) Option {
	return func(a *application) {
		a.enumerator = e
	}
}

// WithAcquirer replaces the ffmpeg stream acquirer.
func WithAcquirer(acq session.Acquirer) Option {
	return func(a *application) {
		a.acquirer = acq
	}
}

// WithPermissionUI sets the startup notice dialog and the access prompter.
func WithPermissionUI(d permission.Dialog, p permission.Prompter) Option {
	return func(a *application) {
		a.dialog = d
		a.prompter = p
	}
}

// WithSettingsOpener replaces the OS settings launcher.
func WithSettingsOpener(o permission.SettingsOpener) Option {
	return func(a *application) {
		a.opener = o
	}
}
