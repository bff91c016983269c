package sum

import (
	"fmt"
	"os"
	"strings"
)

const (
	// StatusUnknown is returned when SUM exited with a recognized code
	// but left no log file behind to derive component statistics from.
	StatusUnknown = "UPDATE STATUS: UNKNOWN"

	// markers delimiting the per-component deploy report in the SUM log
	logMarkerStart = "Deployed Components:"
	logMarkerEnd   = "Exit status:"
)

// exitCodeDescriptions maps the SUM exit codes to their meaning,
// codes outside this table carry no known meaning.
var exitCodeDescriptions = map[int]string{
	0:   "The smart component was installed successfully.",
	1:   "The smart component was installed successfully, but the system must be restarted.",
	3:   "The smart component was not installed. Node is already up-to-date.",
	253: "The installation of the component failed.",
}

// Classify translates a SUM exit code plus the utility's log file into a
// human readable summary.
//
// The second return value reports whether the exit code was recognized -
// callers must treat an unrecognized code as an error, never as a result.
//
// Classify is a pure function of the exit code and the log file contents,
// it has no side effects beyond reading the log.
func Classify(exitCode int, logFile string) (string, bool) {
	description, known := exitCodeDescriptions[exitCode]
	if !known {
		return "", false
	}

	// nothing was updated, there are no per-component statistics to report
	if exitCode == 3 {
		return "Summary: " + description, true
	}

	data, err := os.ReadFile(logFile)
	if err != nil {
		return StatusUnknown, true
	}

	success, failed := countDeployedComponents(string(data))

	return fmt.Sprintf(
		"Summary: %s Status of updated components: Total: %d Success: %d Failed: %d.",
		description,
		success+failed,
		success,
		failed,
	), true
}

// countDeployedComponents parses the region of the SUM log between the
// deploy report markers, each blank-line separated segment describes one
// component, segments mentioning Success succeeded, the rest failed.
func countDeployedComponents(data string) (success, failed int) {
	start := strings.Index(data, logMarkerStart)
	if start >= 0 {
		start += len(logMarkerStart)
	} else {
		start = 0
	}

	end := strings.Index(data, logMarkerEnd)
	if end < 0 || end < start {
		end = len(data)
	}

	for _, segment := range strings.Split(data[start:end], "\n\n") {
		if segment == "" {
			continue
		}

		if strings.Contains(segment, "Success") {
			success++
		} else {
			failed++
		}
	}

	return success, failed
}
