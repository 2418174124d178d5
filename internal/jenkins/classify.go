// SPDX-License-Identifier: MIT

package jenkins

import "strings"

// Status is the semantic outcome extracted from a build console log.
type Status string

const (
	StatusRunning Status = "running"
	StatusStarted Status = "started"
	StatusStopped Status = "stopped"
	StatusUnknown Status = "unknown"
)

// Classify maps raw Jenkins console text to a service status. The pipeline
// scripts end with a bare "running", "started" or "stopped" line; everything
// else in the log is build-system noise. Scanning runs from the end so the
// most recent status assertion wins.
func Classify(raw string) Status {
	lower := strings.ToLower(raw)

	// An HTML body or a bare "ok" means Jenkins answered without actually
	// running the service check.
	if strings.Contains(lower, "<html") || strings.TrimSpace(lower) == "ok" {
		return StatusUnknown
	}

	lines := make([]string, 0, 16)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || isNoiseLine(line) {
			continue
		}
		lines = append(lines, line)
	}

	for i := len(lines) - 1; i >= 0; i-- {
		switch strings.ToLower(lines[i]) {
		case "running":
			return StatusRunning
		case "started":
			return StatusStarted
		case "stopped":
			return StatusStopped
		}
	}

	// Some stop scripts only print "done" on completion.
	if strings.Contains(lower, "\ndone") {
		return StatusStopped
	}

	return StatusUnknown
}

// isNoiseLine reports whether a trimmed console line is Jenkins bookkeeping
// rather than script output.
func isNoiseLine(line string) bool {
	lower := strings.ToLower(line)
	return strings.HasPrefix(lower, "started by") ||
		strings.HasPrefix(line, "[Pipeline]") ||
		strings.HasPrefix(line, "Running on ") ||
		strings.Contains(lower, "found a jenkins") ||
		strings.Contains(lower, "finished")
}
