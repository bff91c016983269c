// Package command wraps OS process execution for the update sequence,
// the mount/umount calls and the SUM utility invocation run through it.
package command

import (
	"context"
	"os/exec"

	"github.com/pkg/errors"
)

// Runner executes a binary with arguments, capturing its combined
// output and exit code.
type Runner interface {
	// Run blocks until the process exits.
	//
	// A non-zero exit is not an error here - the exit code is returned for
	// the caller to interpret. The returned error is set only when the
	// process could not be run at all.
	Run(ctx context.Context, bin string, args ...string) (output string, exitCode int, err error)
}

type runner struct{}

// NewRunner returns a Runner backed by os/exec.
func NewRunner() Runner {
	return &runner{}
}

func (r *runner) Run(ctx context.Context, bin string, args ...string) (string, int, error) {
	cmd := exec.CommandContext(ctx, bin, args...)

	out, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return string(out), exitErr.ExitCode(), nil
		}

		return string(out), -1, err
	}

	return string(out), 0, nil
}
