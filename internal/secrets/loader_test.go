package secrets

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret")
	if err := os.WriteFile(path, []byte("  token-value\n"), 0o600); err != nil {
		t.Fatalf("writing secret file: %v", err)
	}

	got, err := LoadFile("test secret", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "token-value" {
		t.Fatalf("expected trimmed secret, got %q", got)
	}
}

func TestLoadFromValue(t *testing.T) {
	got, err := Load(Source{Name: "inline", Value: " inline-value "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "inline-value" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
}

func TestLoadFilePrecedesValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret")
	if err := os.WriteFile(path, []byte("from-file"), 0o600); err != nil {
		t.Fatalf("writing secret file: %v", err)
	}

	got, err := Load(Source{Name: "both", Value: "from-value", File: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "from-file" {
		t.Fatalf("expected the file to win, got %q", got)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(Source{Name: "missing"}); err == nil {
		t.Fatalf("expected an error for an unconfigured secret")
	}

	empty := filepath.Join(t.TempDir(), "empty")
	if err := os.WriteFile(empty, []byte("   "), 0o600); err != nil {
		t.Fatalf("writing secret file: %v", err)
	}
	if _, err := Load(Source{Name: "empty", File: empty}); err == nil {
		t.Fatalf("expected an error for an empty secret file")
	}

	if _, err := Load(Source{Name: "absent", File: filepath.Join(t.TempDir(), "nope")}); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}
