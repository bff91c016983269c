package sum

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/metal-toolbox/sumflash/internal/command"
)

var (
	errUtilityRun       = errors.New("error running the SUM utility")
	errUnrecognizedExit = errors.New("SUM utility exited with an unrecognized code")
)

// Executor invokes the SUM utility from the mounted SPP tree and
// classifies its exit code into an update summary.
type Executor struct {
	runner  command.Runner
	logFile string
	logger  *logrus.Entry
}

func NewExecutor(runner command.Runner, logFile string, logger *logrus.Entry) *Executor {
	return &Executor{
		runner:  runner,
		logFile: logFile,
		logger:  logger,
	}
}

// Run executes the SUM utility in silent, ROM-only mode.
//
// When components are given, the update is restricted to those components
// with repeated --c arguments, otherwise every component on the server is
// updated.
//
// A non-zero exit with a recognized code is a classified business outcome
// and returns the summary, not an error. Only exits outside the known code
// table - and failures to run the utility at all - are errors.
func (e *Executor) Run(ctx context.Context, utilityPath string, components []string) (string, error) {
	args := []string{"--s", "--romonly"}
	for _, component := range components {
		args = append(args, "--c", component)
	}

	e.logger.WithFields(logrus.Fields{
		"utility":    utilityPath,
		"components": strings.Join(components, ","),
	}).Info("running SUM firmware update")

	output, exitCode, err := e.runner.Run(ctx, utilityPath, args...)
	if err != nil {
		return "", errors.Wrap(errUtilityRun, err.Error())
	}

	// a zero exit is a success as far as the process layer is concerned,
	// the utility output is the result
	if exitCode == 0 {
		return output, nil
	}

	summary, ok := Classify(exitCode, e.logFile)
	if !ok {
		return "", errors.Wrapf(
			errUnrecognizedExit,
			"command: %s %s, exit code: %d, output: %s",
			utilityPath,
			strings.Join(args, " "),
			exitCode,
			output,
		)
	}

	e.logger.WithFields(logrus.Fields{"exitCode": exitCode}).Debug("SUM exit classified")

	return summary, nil
}
