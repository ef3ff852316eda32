// Package tracklog is a small file-backed debug logger used across the
// scheduling pipeline. Every call takes a package mutex; the engine's
// process callback calls Log/LogEvery only on its error paths
// (port-buffer and reserve failures), and the pump goroutine uses
// LogEvery for ring overflows.
//
// Grounded on the teacher's debug/log.go: a mutex-guarded, lazily-opened
// log file under the user's config directory, timestamped lines, and a
// sampling helper for high-frequency categories.
package tracklog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	mu      sync.Mutex
	file    *os.File
	enabled bool
)

// Enable starts logging to <configDir>/<app>/debug.log.
func Enable(configDir, app string) error {
	mu.Lock()
	defer mu.Unlock()

	if enabled {
		return nil
	}

	dir := filepath.Join(configDir, app)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(filepath.Join(dir, "debug.log"), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	file = f
	enabled = true

	ts := time.Now().Format("15:04:05.000")
	fmt.Fprintf(file, "[%s] %-10s %s\n", ts, "debug", "=== debug logging started ===")
	file.Sync()
	return nil
}

// Disable closes the log file, if open.
func Disable() {
	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		file.Close()
		file = nil
	}
	enabled = false
}

// Log writes one line to the log file. A no-op if logging isn't enabled.
func Log(category, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if !enabled || file == nil {
		return
	}
	ts := time.Now().Format("15:04:05.000")
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(file, "[%s] %-10s %s\n", ts, category, msg)
	file.Sync()
}

// counters backs LogEvery's per-category sampling.
var counters = make(map[string]int)

// LogEvery logs only every n-th call for a given category+format pair.
// Used by the pump goroutine and the callback's diagnostics, which would
// otherwise write a line per audio cycle.
func LogEvery(n int, category, format string, args ...any) {
	mu.Lock()
	key := category + format
	counters[key]++
	count := counters[key]
	mu.Unlock()

	if n <= 0 || count%n == 0 {
		Log(category, format, args...)
	}
}
