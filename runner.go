package sdkbuild

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"
)

// execLookPath is swapped in tests.
var execLookPath = exec.LookPath

// ExecRunner runs commands as child processes.
type ExecRunner struct {
	Logger *slog.Logger
}

// Run executes cmd and returns its combined output.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) ([]string, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = append(os.Environ(), envList(cmd.Env)...)

	logger.Debug("Running command", "cmd", cmd.String(), "dir", cmd.Dir)

	output, err := c.CombinedOutput()
	lines := strings.Split(strings.TrimRight(string(output), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		lines = nil
	}
	return lines, err
}

// envList renders an environment map in a stable order.
func envList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	list := make([]string, 0, len(keys))
	for _, k := range keys {
		list = append(list, fmt.Sprintf("%s=%s", k, env[k]))
	}
	return list
}
