package install

import (
	"context"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/metal-toolbox/sumflash/internal/app"
	"github.com/metal-toolbox/sumflash/internal/bmc"
	"github.com/metal-toolbox/sumflash/internal/command"
	"github.com/metal-toolbox/sumflash/internal/metrics"
	"github.com/metal-toolbox/sumflash/internal/model"
	"github.com/metal-toolbox/sumflash/internal/mount"
	"github.com/metal-toolbox/sumflash/internal/sum"
	"github.com/metal-toolbox/sumflash/internal/vmedia"
)

var (
	errNoDevice = errors.New("no virtual media device resolved")
	errNoMount  = errors.New("virtual media device not mounted")
)

// handler implements the runner.Handler interface
//
// The handler is instantiated to run a single task
type handler struct {
	cfg    *app.Configuration
	task   *model.Task
	logger *logrus.Entry
	runner command.Runner

	newVirtualMedia func(ctx context.Context, request *model.UpdateRequest, logger *logrus.Entry) bmc.VirtualMedia
	mediaOpts       []vmedia.Option

	vmClient   bmc.VirtualMedia
	device     string
	mountPoint *mount.Point
}

// PrepareMedia swaps the update ISO into the BMC virtual media slot and
// resolves the validated block device for it.
func (h *handler) PrepareMedia(ctx context.Context) error {
	h.vmClient = h.newVirtualMedia(ctx, h.task.Request, h.logger)

	preparer := vmedia.NewPreparer(
		h.vmClient,
		h.cfg.Media.ByLabelDir,
		h.cfg.Media.LabelPattern,
		h.logger,
		h.mediaOpts...,
	)

	startTS := time.Now()

	device, err := preparer.Prepare(ctx, h.task.Request.ImageURL, h.task.Request.Checksum)
	if err != nil {
		metrics.MediaPrepareRunTimeSummary.WithLabelValues("failed").Observe(time.Since(startTS).Seconds())

		return err
	}

	metrics.MediaPrepareRunTimeSummary.WithLabelValues("succeeded").Observe(time.Since(startTS).Seconds())

	h.device = device
	h.task.Status.Append("virtual media device prepared: " + device)

	return nil
}

// MountMedia mounts the resolved device on a fresh temporary directory.
func (h *handler) MountMedia(ctx context.Context) error {
	if h.device == "" {
		return errors.Wrap(errNoDevice, "mount requires a prepared device")
	}

	point, err := mount.Mount(ctx, h.runner, h.device, h.logger)
	if err != nil {
		return err
	}

	h.mountPoint = point
	h.task.Status.Append("virtual media mounted: " + point.Dir())

	return nil
}

// RunUtility executes SUM from the mounted ISO tree and records the
// classified outcome on the task.
func (h *handler) RunUtility(ctx context.Context) error {
	if h.mountPoint == nil {
		return errors.Wrap(errNoMount, "utility run requires a mounted device")
	}

	executor := sum.NewExecutor(h.runner, h.cfg.SUM.LogFile, h.logger)
	utilityPath := filepath.Join(h.mountPoint.Dir(), h.cfg.SUM.UtilityPath)

	summary, err := executor.Run(ctx, utilityPath, h.task.Request.Components)
	if err != nil {
		metrics.UtilityExitCounter.WithLabelValues("false").Inc()

		return err
	}

	metrics.UtilityExitCounter.WithLabelValues("true").Inc()

	h.task.Summary = summary
	h.task.Status.Append("SUM run classified: " + summary)

	return nil
}

func (h *handler) OnSuccess(ctx context.Context, _ *model.Task) {
	h.cleanup(ctx)
}

func (h *handler) OnFailure(ctx context.Context, _ *model.Task) {
	h.cleanup(ctx)
}

// cleanup releases the mount point and logs out of the BMC, it is safe to
// call more than once.
func (h *handler) cleanup(ctx context.Context) {
	if h.mountPoint != nil {
		h.mountPoint.Release(ctx)
		h.mountPoint = nil
	}

	if h.vmClient != nil {
		if err := h.vmClient.Close(); err != nil {
			h.logger.WithFields(logrus.Fields{"err": err.Error()}).Warn("bmc logout error")
		}

		h.vmClient = nil
	}
}
