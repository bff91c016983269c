// Package install runs a single firmware update against a server - it
// prepares the SPP ISO over BMC virtual media, mounts it, runs the SUM
// utility and reports the classified outcome.
package install

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/metal-toolbox/sumflash/internal/app"
	"github.com/metal-toolbox/sumflash/internal/bmc"
	"github.com/metal-toolbox/sumflash/internal/command"
	"github.com/metal-toolbox/sumflash/internal/metrics"
	"github.com/metal-toolbox/sumflash/internal/model"
	"github.com/metal-toolbox/sumflash/internal/runner"
	"github.com/metal-toolbox/sumflash/internal/vmedia"
)

type Installer struct {
	cfg    *app.Configuration
	logger *logrus.Logger
}

func New(cfg *app.Configuration, logger *logrus.Logger) *Installer {
	return &Installer{
		cfg:    cfg,
		logger: logger,
	}
}

// Install runs the update described by the request and returns the
// classified summary.
//
// Each run owns its own temporary mount directory - runs against different
// servers are independent and share no state.
func (i *Installer) Install(ctx context.Context, request *model.UpdateRequest) (string, error) {
	task := model.NewTask(request)

	le := i.logger.WithFields(
		logrus.Fields{
			"taskID": task.ID.String(),
			"bmc":    request.BmcAddress,
			"image":  request.ImageURL,
		})

	h := &handler{
		cfg:    i.cfg,
		task:   task,
		logger: le,
		runner: command.NewRunner(),
		newVirtualMedia: func(ctx context.Context, request *model.UpdateRequest, logger *logrus.Entry) bmc.VirtualMedia {
			return bmc.NewVirtualMedia(ctx, request, logger)
		},
		mediaOpts: []vmedia.Option{
			vmedia.WithSettleBounds(i.cfg.Media.SettleTimeout, i.cfg.Media.SettleInterval),
		},
	}

	// release the mount point and BMC session on every exit path,
	// the task handler hooks also call this, the second call is a no-op.
	defer h.cleanup(ctx)

	r := runner.New(le)

	startTS := time.Now()

	le.Info("running firmware update task")

	if err := r.RunTask(ctx, task, h); err != nil {
		metrics.UpdateRunCounter.WithLabelValues(string(task.State)).Inc()
		metrics.UpdateRunTimeSummary.WithLabelValues(string(task.State)).Observe(time.Since(startTS).Seconds())

		le.WithFields(
			logrus.Fields{
				"err": err.Error(),
			},
		).Warn("firmware update task failed")

		return "", err
	}

	metrics.UpdateRunCounter.WithLabelValues(string(task.State)).Inc()
	metrics.UpdateRunTimeSummary.WithLabelValues(string(task.State)).Observe(time.Since(startTS).Seconds())

	le.WithFields(logrus.Fields{
		"elapsed": time.Since(startTS).String(),
		"summary": task.Summary,
	}).Info("firmware update task completed")

	return task.Summary, nil
}
