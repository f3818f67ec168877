package config

import (
	"path/filepath"
	"testing"
)

func TestGetConfigPath_EnvOverride(t *testing.T) {
	want := filepath.Join(t.TempDir(), "custom")
	t.Setenv(ConfigEnvVar, want)

	got, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath: %v", err)
	}
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestGetConfigPath_Default(t *testing.T) {
	home := t.TempDir()
	t.Setenv(ConfigEnvVar, "")
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	got, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath: %v", err)
	}
	if want := filepath.Join(home, ".relayframe", "config"); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}
