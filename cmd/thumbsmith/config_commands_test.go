package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := executeCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("output %q does not mention target path", out)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample config: %v", err)
	}
	if !strings.Contains(string(data), "[fetch]") {
		t.Fatalf("sample config missing [fetch] section")
	}
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	if _, err := executeCommand(t, "config", "init", "--path", target); err != nil {
		t.Fatalf("first init failed: %v", err)
	}

	if _, err := executeCommand(t, "config", "init", "--path", target); err == nil {
		t.Fatal("second init should fail without --overwrite")
	}
	if _, err := executeCommand(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("init with --overwrite failed: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	configPath, _ := writeTestConfig(t)

	out, err := executeCommand(t, "--config", configPath, "config", "validate")
	if err != nil {
		t.Fatalf("config validate failed: %v", err)
	}
	if !strings.Contains(out, "valid") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestConfigShowPrintsEffectiveConfig(t *testing.T) {
	configPath, base := writeTestConfig(t)

	out, err := executeCommand(t, "--config", configPath, "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	if !strings.Contains(out, filepath.Join(base, "artifacts")) {
		t.Fatalf("output does not contain configured output dir:\n%s", out)
	}
}
