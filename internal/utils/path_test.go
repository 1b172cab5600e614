package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolvePath(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantError bool
	}{
		{
			name:      "empty path",
			input:     "",
			wantError: true,
		},
		{
			name:      "relative path",
			input:     "./test",
			wantError: false,
		},
		{
			name:      "absolute path",
			input:     "/tmp/test",
			wantError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ResolvePath(tt.input)
			if (err != nil) != tt.wantError {
				t.Errorf("ResolvePath(%q) error = %v, wantError %v", tt.input, err, tt.wantError)
			}
			if !tt.wantError && !filepath.IsAbs(result) {
				t.Errorf("ResolvePath(%q) = %q, expected absolute path", tt.input, result)
			}
		})
	}
}

func TestResolvePathHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory on this system")
	}

	result, err := ResolvePath("~/some/dir")
	if err != nil {
		t.Fatalf("ResolvePath(~/some/dir) error = %v", err)
	}
	want := filepath.Join(home, "some", "dir")
	if result != want {
		t.Errorf("ResolvePath(~/some/dir) = %q, want %q", result, want)
	}
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")
	if err := EnsureDir(dir); err != nil {
		t.Fatalf("EnsureDir() error = %v", err)
	}
	if !DirExists(dir) {
		t.Errorf("EnsureDir() did not create %q", dir)
	}

	// idempotent
	if err := EnsureDir(dir); err != nil {
		t.Errorf("EnsureDir() on existing dir error = %v", err)
	}
}

func TestEnsureParent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x", "y", "file.txt")
	if err := EnsureParent(path); err != nil {
		t.Fatalf("EnsureParent() error = %v", err)
	}
	if !DirExists(filepath.Dir(path)) {
		t.Errorf("EnsureParent() did not create %q", filepath.Dir(path))
	}
	if FileExists(path) {
		t.Errorf("EnsureParent() should not create the file itself")
	}
}
