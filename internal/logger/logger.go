// Package logger provides verbose logging for the invoicesync CLI.
// When verbose mode is enabled via the --verbose flag, debug messages
// are printed to stderr to help users follow each reconciliation call:
// which field a key resolved to, which fields were created and which
// writes degraded or failed.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
)

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for verbose logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// Writes hold the write lock: batch and watch runs log from several goroutines.
func printf(level, prefix, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if !verbose {
		return
	}
	fmt.Fprint(output, level, prefix, fmt.Sprintf(format, args...), "\n")
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	printf("[DEBUG] ", "", format, args...)
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.Lock()
	defer mu.Unlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	printf("[INFO] ", "", format, args...)
}

// Warn prints a warning message if verbose mode is enabled.
func Warn(format string, args ...any) {
	printf("[WARN] ", "", format, args...)
}

// Scope prefixes every message with the task it concerns.
type Scope struct {
	prefix string
}

// For returns a Scope for one task.
func For(taskID string) Scope {
	return Scope{prefix: "task " + taskID + ": "}
}

// Debug prints a scoped debug message.
func (s Scope) Debug(format string, args ...any) {
	printf("[DEBUG] ", s.prefix, format, args...)
}

// Info prints a scoped informational message.
func (s Scope) Info(format string, args ...any) {
	printf("[INFO] ", s.prefix, format, args...)
}

// Warn prints a scoped warning.
func (s Scope) Warn(format string, args ...any) {
	printf("[WARN] ", s.prefix, format, args...)
}

// Stage prints a stage transition.
func (s Scope) Stage(stage string) {
	printf("[STAGE] ", s.prefix, "%s", stage)
}
