package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/jobpilot/internal/capture"
	"github.com/starford/jobpilot/internal/permission"
	"github.com/starford/jobpilot/internal/session"
	"github.com/starford/jobpilot/internal/store"
)

// Config represents the application configuration.
type Config struct {
	App         ApplicationConfig `yaml:"app"`
	Store       StoreConfig       `yaml:"store"`
	Capture     CaptureConfig     `yaml:"capture"`
	Resources   ResourcesConfig   `yaml:"resources"`
	Permissions PermissionsConfig `yaml:"permissions"`
	Recorder    RecorderConfig    `yaml:"recorder"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	if err := c.Resources.Validate(); err != nil {
		return fmt.Errorf("resources: %w", err)
	}
	if err := c.Permissions.Validate(); err != nil {
		return fmt.Errorf("permissions: %w", err)
	}
	if err := c.Recorder.Validate(); err != nil {
		return fmt.Errorf("recorder: %w", err)
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP bridge configuration.
type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// LoopbackOnly rejects callers that are not on this machine.
	LoopbackOnly bool `yaml:"loopback_only"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StoreConfig locates the local database.
type StoreConfig struct {
	Dir     string `yaml:"dir"`
	Name    string `yaml:"name"`
	Version int    `yaml:"version"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.Version, validation.Required, validation.Min(1)),
	)
}

// Options converts the section to store options.
func (c *StoreConfig) Options() store.Options {
	return store.Options{Dir: c.Dir, Name: c.Name, Version: c.Version}
}

// CaptureConfig controls source enumeration.
type CaptureConfig struct {
	Types            []string `yaml:"types"`
	ThumbnailWidth   int      `yaml:"thumbnail_width"`
	ThumbnailHeight  int      `yaml:"thumbnail_height"`
	FetchWindowIcons bool     `yaml:"fetch_window_icons"`
}

// Validate validates the capture configuration.
func (c *CaptureConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Types, validation.Required,
			validation.Each(validation.In(string(capture.KindScreen), string(capture.KindWindow)))),
		validation.Field(&c.ThumbnailWidth, validation.Required, validation.Min(1), validation.Max(4096)),
		validation.Field(&c.ThumbnailHeight, validation.Required, validation.Min(1), validation.Max(4096)),
	)
}

// Options converts the section to enumeration options.
func (c *CaptureConfig) Options() capture.Options {
	opts := capture.Options{
		ThumbnailWidth:   c.ThumbnailWidth,
		ThumbnailHeight:  c.ThumbnailHeight,
		FetchWindowIcons: c.FetchWindowIcons,
	}
	for _, t := range c.Types {
		opts.Types = append(opts.Types, capture.Kind(t))
	}
	return opts
}

// ResourcesConfig locates bundled resources served as app-resource://.
type ResourcesConfig struct {
	Dir string `yaml:"dir"`
}

// Validate validates the resources configuration.
func (c *ResourcesConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
	)
}

// PermissionsConfig holds the authorization state file and settings pages.
type PermissionsConfig struct {
	File string `yaml:"file"`
	// SettingsURLs overrides the OS settings page per capability.
	SettingsURLs map[string]string `yaml:"settings_urls"`
	// CheckOnStartup runs the startup permission check before serving.
	CheckOnStartup bool `yaml:"check_on_startup"`
}

// Validate validates the permissions configuration.
func (c *PermissionsConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.File, validation.Required),
	); err != nil {
		return err
	}
	for k := range c.SettingsURLs {
		if _, err := permission.ParseCapability(k); err != nil {
			return fmt.Errorf("settings_urls: %w", err)
		}
	}
	return nil
}

// URLs returns the settings overrides keyed by capability.
func (c *PermissionsConfig) URLs() map[permission.Capability]string {
	out := make(map[permission.Capability]string, len(c.SettingsURLs))
	for k, v := range c.SettingsURLs {
		out[permission.Capability(k)] = v
	}
	return out
}

// RecorderConfig controls the ffmpeg-backed stream acquirer.
type RecorderConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Binary    string        `yaml:"binary"`
	Display   string        `yaml:"display"`
	FrameRate int           `yaml:"frame_rate"`
	Audio     string        `yaml:"audio"`
	TempDir   string        `yaml:"temp_dir"`
	Probe     time.Duration `yaml:"probe"`
}

// Validate validates the recorder configuration.
func (c *RecorderConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.FrameRate, validation.Min(1), validation.Max(120)),
		validation.Field(&c.Probe, validation.Min(time.Duration(0))),
	)
}

// Options converts the section to acquirer options.
func (c *RecorderConfig) Options() session.FFmpegOptions {
	return session.FFmpegOptions{
		Binary:    c.Binary,
		Display:   c.Display,
		FrameRate: c.FrameRate,
		Audio:     c.Audio,
		TempDir:   c.TempDir,
		Probe:     c.Probe,
	}
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	opts := capture.DefaultOptions()
	types := make([]string, 0, len(opts.Types))
	for _, t := range opts.Types {
		types = append(types, string(t))
	}
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Host:         "127.0.0.1",
				Port:         8080,
				LoopbackOnly: true,
			},
		},
		Store: StoreConfig{
			Dir:     "./data",
			Name:    store.DefaultName,
			Version: store.DefaultVersion,
		},
		Capture: CaptureConfig{
			Types:            types,
			ThumbnailWidth:   opts.ThumbnailWidth,
			ThumbnailHeight:  opts.ThumbnailHeight,
			FetchWindowIcons: opts.FetchWindowIcons,
		},
		Resources: ResourcesConfig{
			Dir: "./resources",
		},
		Permissions: PermissionsConfig{
			File:           "./data/permissions.yaml",
			CheckOnStartup: true,
		},
		Recorder: RecorderConfig{
			Enabled:   true,
			Binary:    "ffmpeg",
			FrameRate: 30,
			Probe:     300 * time.Millisecond,
		},
	}
}
