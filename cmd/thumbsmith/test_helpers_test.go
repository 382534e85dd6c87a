package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// writeTestConfig writes a minimal config file rooted at a temp directory and
// returns its path plus the resolved paths section.
func writeTestConfig(t *testing.T) (configPath, base string) {
	t.Helper()

	base = t.TempDir()
	configPath = filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[paths]
catalog_dir = %q
output_dir = %q
checkpoint_dir = %q
metadata_dir = %q
log_dir = %q
`,
		filepath.Join(base, "catalog"),
		filepath.Join(base, "artifacts"),
		filepath.Join(base, "checkpoints"),
		filepath.Join(base, "metadata"),
		filepath.Join(base, "logs"),
	)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write test config: %v", err)
	}
	return configPath, base
}

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}
