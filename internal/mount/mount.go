// Package mount owns the temporary mount point lifecycle for the virtual
// media device - the mount directory is removed on every exit path of an
// update run.
package mount

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/metal-toolbox/sumflash/internal/command"
)

var (
	errMount = errors.New("error mounting virtual media device")
)

// Point is a mounted virtual media device bound to a temporary directory.
//
// Release must be called on every exit path, it unmounts best-effort and
// removes the directory exactly once.
type Point struct {
	device string
	dir    string

	runner   command.Runner
	logger   *logrus.Entry
	released bool
}

// Mount creates a fresh temporary directory and mounts the device on it.
//
// On mount failure the directory is removed before returning, no Point
// leaks without its Release obligation.
func Mount(ctx context.Context, runner command.Runner, device string, logger *logrus.Entry) (*Point, error) {
	dir, err := os.MkdirTemp("", "sumflash-vmedia-")
	if err != nil {
		return nil, errors.Wrap(errMount, err.Error())
	}

	output, exitCode, err := runner.Run(ctx, "mount", device, dir)
	if err != nil || exitCode != 0 {
		// removal failures are suppressed, the mount error is the primary outcome
		_ = os.RemoveAll(dir)

		reason := output
		if err != nil {
			reason = err.Error()
		}

		return nil, errors.Wrapf(errMount, "device: %s: %s", device, reason)
	}

	logger.WithFields(logrus.Fields{"device": device, "dir": dir}).Debug("virtual media device mounted")

	return &Point{
		device: device,
		dir:    dir,
		runner: runner,
		logger: logger,
	}, nil
}

// Dir returns the mount directory.
func (p *Point) Dir() string {
	return p.dir
}

// Release unmounts the device best-effort and removes the mount directory.
//
// Neither failure is surfaced - cleanup must not mask the primary outcome
// of the update run. An unmount failure is logged at warn level for
// operational visibility. Calling Release more than once is a no-op.
func (p *Point) Release(ctx context.Context) {
	if p.released {
		return
	}

	p.released = true

	output, exitCode, err := p.runner.Run(ctx, "umount", p.dir)
	if err != nil || exitCode != 0 {
		reason := output
		if err != nil {
			reason = err.Error()
		}

		p.logger.WithFields(logrus.Fields{
			"dir": p.dir,
			"err": reason,
		}).Warn("virtual media unmount failed, ignored")
	}

	if err := os.RemoveAll(p.dir); err != nil {
		p.logger.WithFields(logrus.Fields{
			"dir": p.dir,
			"err": err.Error(),
		}).Warn("mount directory removal failed, ignored")
	}
}
