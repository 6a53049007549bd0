package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("RELAY_TEST_STR", "x")
	if got := GetEnv("RELAY_TEST_STR", "d"); got != "x" {
		t.Errorf("got %q", got)
	}
	if got := GetEnv("RELAY_TEST_UNSET", "d"); got != "d" {
		t.Errorf("got %q", got)
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("RELAY_TEST_INT", "42")
	t.Setenv("RELAY_TEST_BAD_INT", "forty")
	if got := GetEnvInt("RELAY_TEST_INT", 1); got != 42 {
		t.Errorf("got %d", got)
	}
	if got := GetEnvInt("RELAY_TEST_BAD_INT", 1); got != 1 {
		t.Errorf("got %d", got)
	}
}

func TestGetEnvDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"3s":    3 * time.Second,
		"1h30m": 90 * time.Minute,
		"86400": 24 * time.Hour,
		"-1s":   time.Minute,
		"soon":  time.Minute,
	}
	for in, want := range cases {
		t.Setenv("RELAY_TEST_DUR", in)
		if got := GetEnvDuration("RELAY_TEST_DUR", time.Minute); got != want {
			t.Errorf("%q: got %v want %v", in, got, want)
		}
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("RELAY_TEST_FROM_FILE=yes\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("RELAY_TEST_FROM_FILE") })

	if err := Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := GetEnv("RELAY_TEST_FROM_FILE", ""); got != "yes" {
		t.Errorf("got %q", got)
	}
	if err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("expected error for missing file")
	}
}
