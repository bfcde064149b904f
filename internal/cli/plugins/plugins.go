// Package plugins provides exec-based plugin support for bindlog.
// Plugins are separate binaries named bindlog-<command> that are discovered
// and executed when an unknown command is invoked.
//
// This follows the same pattern used by kubectl and git for plugins.
package plugins

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// Prefix is prepended to a command name to form the plugin binary name.
const Prefix = "bindlog-"

// EnvPluginDir names an extra directory searched before the defaults.
const EnvPluginDir = "BINDLOG_PLUGIN_DIR"

// ErrPluginNotFound is returned when no plugin binary can be located.
var ErrPluginNotFound = errors.New("plugin not found")

// SearchDirs returns the directories searched for plugins, in order:
//  1. $BINDLOG_PLUGIN_DIR, if set
//  2. Same directory as the bindlog binary
//  3. ~/.bindlog/plugins/
//
// PATH is searched after these.
func SearchDirs() []string {
	var dirs []string

	if dir := os.Getenv(EnvPluginDir); dir != "" {
		dirs = append(dirs, dir)
	}
	if execPath, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(execPath))
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(homeDir, ".bindlog", "plugins"))
	}

	return dirs
}

// FindPlugin searches for a plugin binary named bindlog-<command> in
// SearchDirs and then PATH. Returns the full path to the plugin binary.
func FindPlugin(command string) (string, error) {
	if command == "" || strings.ContainsAny(command, `/\`) {
		return "", ErrPluginNotFound
	}
	pluginName := Prefix + command

	for _, dir := range SearchDirs() {
		candidate := filepath.Join(dir, pluginName)
		if isExecutable(candidate) {
			return candidate, nil
		}
	}

	if path, err := exec.LookPath(pluginName); err == nil {
		return path, nil
	}

	return "", ErrPluginNotFound
}

// List returns the command names of plugins found in SearchDirs, sorted.
// PATH is not scanned.
func List() []string {
	seen := make(map[string]bool)
	var names []string

	for _, dir := range SearchDirs() {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			name := e.Name()
			if !strings.HasPrefix(name, Prefix) || len(name) == len(Prefix) {
				continue
			}
			command := strings.TrimPrefix(name, Prefix)
			if seen[command] || !isExecutable(filepath.Join(dir, name)) {
				continue
			}
			seen[command] = true
			names = append(names, command)
		}
	}

	sort.Strings(names)
	return names
}

// Execute runs a plugin with the given arguments.
// It connects stdin, stdout, and stderr to the plugin process
// and returns the plugin's exit code.
func Execute(ctx context.Context, pluginPath string, args []string) int {
	cmd := exec.CommandContext(ctx, pluginPath, args...) // #nosec G204 -- plugin path comes from FindPlugin
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if err != nil {
		// Extract exit code from error if available
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode()
		}
		fmt.Fprintf(os.Stderr, "Error executing plugin: %v\n", err)
		return 2
	}

	return 0
}

// FormatNotFoundError returns a helpful error message when a plugin is not found.
func FormatNotFoundError(command string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "unknown command %q for \"bindlog\"\n", command)
	sb.WriteString("\nIf this is a plugin, install the binary as one of:\n")

	// Show installation locations
	fmt.Fprintf(&sb, "  - $%s/%s%s\n", EnvPluginDir, Prefix, command)
	fmt.Fprintf(&sb, "  - %s%s in the same directory as bindlog\n", Prefix, command)
	fmt.Fprintf(&sb, "  - ~/.bindlog/plugins/%s%s\n", Prefix, command)
	fmt.Fprintf(&sb, "  - %s%s anywhere in your PATH\n", Prefix, command)

	sb.WriteString("\nRun 'bindlog --help' for usage.")

	return sb.String()
}

// isExecutable checks if a file exists and is executable.
func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	// Check if any execute bit is set
	return info.Mode().IsRegular() && info.Mode()&0111 != 0
}
