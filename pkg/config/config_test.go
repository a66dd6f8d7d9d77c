package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
	Dir  string `yaml:"dir"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadKeepsDefaults(t *testing.T) {
	p := writeFile(t, "port: 9000\n")
	cfg := sample{Name: "default", Port: 1}
	if err := Load(p, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9000 || cfg.Name != "default" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("JOBPILOT_TEST_PORT", "7001")
	t.Setenv("JOBPILOT_TEST_EMPTY", "")
	p := writeFile(t, "port: ${JOBPILOT_TEST_PORT}\nname: ${JOBPILOT_TEST_UNSET:-fallback}\ndir: ${JOBPILOT_TEST_EMPTY:-/tmp/data}\n")
	var cfg sample
	if err := Load(p, &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 7001 || cfg.Name != "fallback" || cfg.Dir != "/tmp/data" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadValidates(t *testing.T) {
	p := writeFile(t, "port: 0\n")
	var cfg sample
	err := Load(p, &cfg)
	if err == nil || !strings.Contains(err.Error(), "port must be positive") {
		t.Errorf("err = %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	var cfg sample
	if err := Load(filepath.Join(t.TempDir(), "nope.yaml"), &cfg); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadOptional(t *testing.T) {
	cfg := sample{Port: 8080}
	if err := LoadOptional(filepath.Join(t.TempDir(), "nope.yaml"), &cfg); err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("port = %d", cfg.Port)
	}

	bad := sample{}
	if err := LoadOptional(filepath.Join(t.TempDir(), "nope.yaml"), &bad); err == nil {
		t.Error("defaults should still be validated")
	}
}

func TestExpand(t *testing.T) {
	t.Setenv("JOBPILOT_TEST_SET", "x")
	cases := map[string]string{
		"$JOBPILOT_TEST_SET":          "x",
		"${JOBPILOT_TEST_SET}":        "x",
		"${JOBPILOT_TEST_SET:-y}":     "x",
		"${JOBPILOT_TEST_MISSING:-y}": "y",
		"${JOBPILOT_TEST_MISSING}":    "",
		"a-${JOBPILOT_TEST_SET}-b":    "a-x-b",
	}
	for in, want := range cases {
		if got := Expand(in); got != want {
			t.Errorf("Expand(%q) = %q, want %q", in, got, want)
		}
	}
}
