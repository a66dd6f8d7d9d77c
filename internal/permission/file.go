package permission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Prompter asks the user whether to grant a capability.
type Prompter interface {
	Confirm(ctx context.Context, c Capability) (bool, error)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context, c Capability) (bool, error)

// Confirm calls f.
func (f PrompterFunc) Confirm(ctx context.Context, c Capability) (bool, error) { return f(ctx, c) }

// FileProvider keeps authorization state in a YAML file, one key per
// capability. It stands in for the OS database on platforms (and in
// development setups) where that database cannot be queried directly.
type FileProvider struct {
	path     string
	prompter Prompter

	mu sync.Mutex // serializes read-modify-write in Prompt
}

// NewFileProvider creates a provider backed by path. The file need not exist.
func NewFileProvider(path string, prompter Prompter) *FileProvider {
	return &FileProvider{path: path, prompter: prompter}
}

// Path returns the backing file.
func (p *FileProvider) Path() string { return p.path }

// Status implements Provider. A missing file or key is NotDetermined.
func (p *FileProvider) Status(c Capability) (Status, error) {
	state, err := p.load()
	if err != nil {
		return NotDetermined, err
	}
	st, ok := state[c]
	if !ok {
		return NotDetermined, nil
	}
	return st, nil
}

// Prompt implements Provider and records the answer.
func (p *FileProvider) Prompt(ctx context.Context, c Capability) (bool, error) {
	ok, err := p.prompter.Confirm(ctx, c)
	if err != nil {
		return false, err
	}
	st := Denied
	if ok {
		st = Granted
	}
	if err := p.Set(c, st); err != nil {
		return false, err
	}
	return ok, nil
}

// Set records st for c.
func (p *FileProvider) Set(c Capability, st Status) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, err := p.load()
	if err != nil {
		return err
	}
	state[c] = st
	data, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("permission: encode state: %w", err)
	}
	return writeAtomic(p.path, data)
}

// Watch reports every capability whose state changes on disk until ctx is
// cancelled. The parent directory is watched so that atomic replacements
// of the file are seen.
func (p *FileProvider) Watch(ctx context.Context, logger *slog.Logger, fn func(Capability, Status)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("permission: create dir: %w", err)
	}
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("permission: watch %s: %w", dir, err)
	}

	last, err := p.load()
	if err != nil {
		logger.Warn("permission watcher: initial load failed", slog.String("error", err.Error()))
		last = map[Capability]Status{}
	}
	logger.Info("permission watcher: started", slog.String("path", p.path))

	for {
		select {
		case <-ctx.Done():
			logger.Info("permission watcher: stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(p.path) {
				continue
			}
			next, err := p.load()
			if err != nil {
				logger.Warn("permission watcher: reload failed", slog.String("error", err.Error()))
				continue
			}
			for _, c := range Capabilities {
				before, after := statusOf(last, c), statusOf(next, c)
				if before != after {
					logger.Info("permission watcher: changed",
						slog.String("capability", string(c)),
						slog.String("from", string(before)),
						slog.String("to", string(after)))
					fn(c, after)
				}
			}
			last = next

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("permission watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func statusOf(state map[Capability]Status, c Capability) Status {
	if st, ok := state[c]; ok {
		return st
	}
	return NotDetermined
}

func (p *FileProvider) load() (map[Capability]Status, error) {
	state := map[Capability]Status{}
	data, err := os.ReadFile(p.path)
	if errors.Is(err, os.ErrNotExist) {
		return state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("permission: read %s: %w", p.path, err)
	}

	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("permission: parse %s: %w", p.path, err)
	}
	for k, v := range raw {
		c, err := ParseCapability(k)
		if err != nil {
			return nil, err
		}
		st, err := ParseStatus(v)
		if err != nil {
			return nil, err
		}
		state[c] = st
	}
	return state, nil
}

// writeAtomic writes data to path via a synced temp file and a rename.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("permission: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".permissions-tmp-*")
	if err != nil {
		return fmt.Errorf("permission: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("permission: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("permission: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("permission: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("permission: rename: %w", err)
	}
	success = true
	return nil
}
