package main

import "testing"

func TestRootCommandRegistersSubcommands(t *testing.T) {
	cmd := newRootCommand()

	expected := []string{"run", "status", "checkpoint", "report", "config"}
	registered := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		registered[sub.Name()] = true
	}
	for _, name := range expected {
		if !registered[name] {
			t.Errorf("subcommand %q not registered", name)
		}
	}

	if !cmd.SilenceUsage || !cmd.SilenceErrors {
		t.Error("root command should silence usage and errors")
	}
}
