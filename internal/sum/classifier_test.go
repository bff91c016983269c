package sum

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLog = `Scouting completed.
Deployed Components:
  Component: ilo5 firmware
  Version: 2.72
  Deployment Result: Success

  Component: system bios
  Version: U30
  Deployment Result: update returned an error

Exit status: 1
`

func writeLog(t *testing.T, contents string) string {
	t.Helper()

	logFile := filepath.Join(t.TempDir(), "sum_log.txt")
	require.NoError(t, os.WriteFile(logFile, []byte(contents), 0600))

	return logFile
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		exitCode   int
		logData    string
		noLogFile  bool
		expected   string
		recognized bool
	}{
		{
			name:       "code 3 ignores log contents",
			exitCode:   3,
			logData:    sampleLog,
			expected:   "Summary: The smart component was not installed. Node is already up-to-date.",
			recognized: true,
		},
		{
			name:       "code 3 without log file",
			exitCode:   3,
			noLogFile:  true,
			expected:   "Summary: The smart component was not installed. Node is already up-to-date.",
			recognized: true,
		},
		{
			name:       "code 0 counts deployed components",
			exitCode:   0,
			logData:    sampleLog,
			expected:   "Summary: The smart component was installed successfully. Status of updated components: Total: 2 Success: 1 Failed: 1.",
			recognized: true,
		},
		{
			name:       "code 1 restart required",
			exitCode:   1,
			logData:    sampleLog,
			expected:   "Summary: The smart component was installed successfully, but the system must be restarted. Status of updated components: Total: 2 Success: 1 Failed: 1.",
			recognized: true,
		},
		{
			name:       "code 253 install failed",
			exitCode:   253,
			logData:    sampleLog,
			expected:   "Summary: The installation of the component failed. Status of updated components: Total: 2 Success: 1 Failed: 1.",
			recognized: true,
		},
		{
			name:       "code 0 without log file",
			exitCode:   0,
			noLogFile:  true,
			expected:   StatusUnknown,
			recognized: true,
		},
		{
			name:       "unrecognized exit code",
			exitCode:   42,
			logData:    sampleLog,
			expected:   "",
			recognized: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logFile := filepath.Join(t.TempDir(), "sum_log.txt")
			if !tt.noLogFile {
				logFile = writeLog(t, tt.logData)
			}

			summary, ok := Classify(tt.exitCode, logFile)
			assert.Equal(t, tt.recognized, ok)
			assert.Equal(t, tt.expected, summary)
		})
	}
}

func TestClassifyIdempotent(t *testing.T) {
	logFile := writeLog(t, sampleLog)

	first, ok := Classify(1, logFile)
	require.True(t, ok)

	second, ok := Classify(1, logFile)
	require.True(t, ok)

	assert.Equal(t, first, second)
}

func TestCountDeployedComponents(t *testing.T) {
	tests := []struct {
		name            string
		data            string
		expectedSuccess int
		expectedFailed  int
	}{
		{
			name:            "both markers present",
			data:            sampleLog,
			expectedSuccess: 1,
			expectedFailed:  1,
		},
		{
			name:            "empty log",
			data:            "",
			expectedSuccess: 0,
			expectedFailed:  0,
		},
		{
			name:            "missing end marker",
			data:            "Deployed Components:\n  result: Success\n",
			expectedSuccess: 1,
			expectedFailed:  0,
		},
		{
			name:            "all succeeded",
			data:            "Deployed Components:\n  a: Success\n\n  b: Success\n\nExit status: 0\n",
			expectedSuccess: 2,
			expectedFailed:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			success, failed := countDeployedComponents(tt.data)
			assert.Equal(t, tt.expectedSuccess, success)
			assert.Equal(t, tt.expectedFailed, failed)
		})
	}
}
