package resource

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func tempResolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := NewResolver(t.TempDir())
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return r
}

func TestPath(t *testing.T) {
	r := tempResolver(t)
	want := filepath.Join(r.Root(), "icons", "logo.png")
	if got := r.Path("icons/logo.png"); got != want {
		t.Errorf("Path = %q, want %q", got, want)
	}
}

func TestResolve(t *testing.T) {
	r := tempResolver(t)

	cases := map[string]string{
		"app-resource://logo.png":            filepath.Join(r.Root(), "logo.png"),
		"app-resource://sounds/start%20.wav": filepath.Join(r.Root(), "sounds", "start .wav"),
		"app-resource://logo.png?v=2":        filepath.Join(r.Root(), "logo.png"),
	}
	for in, want := range cases {
		if got := r.Resolve(in); got != want {
			t.Errorf("Resolve(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEscapesResolveEmpty(t *testing.T) {
	r := tempResolver(t)

	cases := []string{
		"app-resource://../../etc/passwd",
		"app-resource://%2e%2e/secret",
		"app-resource:///etc/shadow",
		"app-resource://",
		"app-resource://%zz",
		"file:///etc/passwd",
		"",
	}
	for _, in := range cases {
		if got := r.Resolve(in); got != "" {
			t.Errorf("Resolve(%q) = %q, want empty", in, got)
		}
	}
	if got := r.Path("../outside"); got != "" {
		t.Errorf("Path escape = %q", got)
	}
	if got := r.Path(""); got != "" {
		t.Errorf("Path(\"\") = %q", got)
	}
}

func TestOpen(t *testing.T) {
	r := tempResolver(t)
	if err := os.WriteFile(filepath.Join(r.Root(), "hello.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := r.Open("hello.txt")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	data, _ := io.ReadAll(f)
	if string(data) != "hi" {
		t.Errorf("content = %q", data)
	}
	if _, err := r.Open("../hello.txt"); err == nil {
		t.Error("expected error for escape")
	}
}
