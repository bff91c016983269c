package runner

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/metal-toolbox/sumflash/internal/model"
)

// A Runner instance runs a single update task, driving the handler through
// the media-prepare, mount and utility-run steps in order.
type Runner struct {
	logger *logrus.Entry
}

// Handler implements the steps of one update run.
//
// The steps run strictly in order, each depends on the previous one.
// OnSuccess or OnFailure is invoked exactly once per run - handlers release
// their resources there.
type Handler interface {
	PrepareMedia(ctx context.Context) error
	MountMedia(ctx context.Context) error
	RunUtility(ctx context.Context) error
	OnSuccess(ctx context.Context, task *model.Task)
	OnFailure(ctx context.Context, task *model.Task)
}

func New(logger *logrus.Entry) *Runner {
	return &Runner{
		logger: logger,
	}
}

func (r *Runner) RunTask(ctx context.Context, task *model.Task, handler Handler) error {
	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"PrepareMedia", handler.PrepareMedia},
		{"MountMedia", handler.MountMedia},
		{"RunUtility", handler.RunUtility},
	}

	taskFailed := func(err error) error {
		task.SetState(model.StateFailed)
		task.Status.Append("task failed")
		task.Status.Append(err.Error())

		handler.OnFailure(ctx, task)

		return err
	}

	taskSuccess := func() error {
		task.SetState(model.StateSucceeded)
		task.Status.Append("task completed successfully")

		handler.OnSuccess(ctx, task)

		return nil
	}

	task.SetState(model.StateActive)

	for _, step := range steps {
		r.logger.WithField("step", step.name).Debug("running step")

		if err := step.run(ctx); err != nil {
			return taskFailed(err)
		}
	}

	return taskSuccess()
}
