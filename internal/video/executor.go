// Package video runs the watermark pipeline over the frames of a video,
// using ffmpeg and ffprobe for demuxing and re-encoding.
package video

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/banshee-data/lumamark/internal/monitoring"
)

// Runner executes an external program and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// Logger defines the interface for debug logging.
type Logger interface {
	Debugf(format string, args ...interface{})
}

type monitoringLogger struct{}

func (monitoringLogger) Debugf(format string, args ...interface{}) {
	monitoring.Debugf(format, args...)
}

// Executor runs commands on the local host.
type Executor struct {
	DryRun bool
	Logger Logger
}

// NewExecutor creates a new command executor.
func NewExecutor(dryRun bool) *Executor {
	return &Executor{DryRun: dryRun, Logger: monitoringLogger{}}
}

// SetLogger sets the debug logger for the executor.
func (e *Executor) SetLogger(logger Logger) {
	if logger != nil {
		e.Logger = logger
	}
}

// Run executes name with args. In dry-run mode the command line is logged
// and returned without running anything.
func (e *Executor) Run(ctx context.Context, name string, args ...string) (string, error) {
	line := CommandLine(name, args...)
	if e.DryRun {
		monitoring.Logf("[DRY-RUN] Would execute: %s", line)
		return fmt.Sprintf("[DRY-RUN] Would execute: %s", line), nil
	}

	e.Logger.Debugf("Executing: %s", line)
	output, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		e.Logger.Debugf("Command failed: %v, output: %s", err, output)
		return string(output), fmt.Errorf("%s failed: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return string(output), nil
}

// CommandLine renders a command for logs, quoting arguments with spaces.
func CommandLine(name string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, name)
	for _, a := range args {
		if a == "" || strings.ContainsAny(a, " \t'\"") {
			a = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}
