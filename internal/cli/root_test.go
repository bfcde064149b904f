package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ccollicutt/bindlog/internal/cli/commands"
	"github.com/ccollicutt/bindlog/internal/cli/plugins"
)

func TestNewRootCommand(t *testing.T) {
	root := NewRootCommand()

	for _, name := range []string{"ingest", "follow", "detect", "diagnose", "validate", "version"} {
		if !isBuiltinCommand(root, name) {
			t.Errorf("missing command %s", name)
		}
	}
	if !isBuiltinCommand(root, "help") {
		t.Error("help should be builtin")
	}
	if isBuiltinCommand(root, "export") {
		t.Error("export should not be builtin")
	}
}

func TestRun_ExitCodes(t *testing.T) {
	t.Setenv(plugins.EnvPluginDir, t.TempDir())
	t.Cleanup(func() { commands.ExitCode = 0 })

	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "query.log")
	line := "28-Mar-2012 16:48:32.412 client 192.168.10.201#60303: query: google.com IN AAAA + (192.168.10.1)\n"
	if err := os.WriteFile(logPath, []byte(line+"junk\n"), 0644); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(tmpDir, "bindlog.yaml")
	if err := os.WriteFile(configPath, []byte("storage:\n  driver: memory\n"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"version", []string{"version"}, 0},
		{"unknown command", []string{"no-such-command"}, 2},
		{"bad flag", []string{"ingest", "--no-such-flag"}, 2},
		{"skipped lines", []string{"ingest", "-q", "-c", configPath, logPath}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			commands.ExitCode = 0
			if got := run(context.Background(), tt.args); got != tt.want {
				t.Errorf("run(%v) = %d, want %d", tt.args, got, tt.want)
			}
		})
	}
}

func TestRun_Plugin(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(plugins.EnvPluginDir, dir)
	if err := os.WriteFile(filepath.Join(dir, "bindlog-exit4"), []byte("#!/bin/sh\nexit 4\n"), 0755); err != nil {
		t.Fatal(err)
	}

	if got := run(context.Background(), []string{"exit4"}); got != 4 {
		t.Errorf("plugin exit code = %d, want 4", got)
	}
}
