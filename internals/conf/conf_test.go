package conf

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigDefaults(t *testing.T) {
	original := config
	config = nil
	t.Cleanup(func() { config = original })

	tmp := t.TempDir()
	t.Setenv("HOME", tmp)

	got := GetConfig()
	if got.Server.DataDir != filepath.Join(tmp, ".shellrunner") {
		t.Fatalf("expected default data dir, got %q", got.Server.DataDir)
	}
	if got.Reports.Dir != filepath.Join(tmp, ".shellrunner", "reports") {
		t.Fatalf("expected reports dir under data dir, got %q", got.Reports.Dir)
	}
	if got.Runner.Shell != "/bin/sh" {
		t.Fatalf("expected /bin/sh, got %q", got.Runner.Shell)
	}
	if got.Runner.CancelWaitMs != 500 || got.Runner.CleanupGraceMs != 2000 {
		t.Fatalf("unexpected runner defaults: %+v", got.Runner)
	}
	if got.Version == "" {
		t.Fatalf("expected version to be set")
	}
}

func TestLoadOverrides(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)
	path := filepath.Join(tmp, FileName)
	body := `{"server":{"data_dir":"~/runner-data"},"reports":{"dir":"/var/reports"},"runner":{"shell":"/bin/bash","cancel_wait_ms":100}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Server.DataDir != filepath.Join(tmp, "runner-data") {
		t.Fatalf("expected expanded data dir, got %q", got.Server.DataDir)
	}
	if got.Reports.Dir != "/var/reports" {
		t.Fatalf("expected reports dir override, got %q", got.Reports.Dir)
	}
	if got.Runner.Shell != "/bin/bash" || got.Runner.CancelWait().Milliseconds() != 100 || got.Runner.CleanupGraceMs != 2000 {
		t.Fatalf("unexpected runner config: %+v", got.Runner)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, FileName)

	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected malformed json to fail")
	}

	if err := os.WriteFile(path, []byte(`{"runner":{"cancel_wait_ms":-5}}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected negative wait to fail")
	}
}

func TestLoadEmptyFileUsesDefaults(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)
	path := filepath.Join(tmp, FileName)
	if err := os.WriteFile(path, []byte("  \n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Runner.CleanupGrace().Seconds() != 2 {
		t.Fatalf("expected default cleanup grace, got %s", got.Runner.CleanupGrace())
	}
}
