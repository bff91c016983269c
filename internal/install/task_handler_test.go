package install

import (
	"context"
	"crypto/md5"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metal-toolbox/sumflash/internal/app"
	"github.com/metal-toolbox/sumflash/internal/bmc"
	"github.com/metal-toolbox/sumflash/internal/model"
	"github.com/metal-toolbox/sumflash/internal/runner"
	"github.com/metal-toolbox/sumflash/internal/vmedia"
)

const sampleLog = `Deployed Components:
  Component: ilo5 firmware
  Deployment Result: Success

  Component: system bios
  Deployment Result: update returned an error

Exit status: 1
`

// fakeRunner implements command.Runner, returning canned exit codes for
// mount, umount and the SUM utility.
type fakeRunner struct {
	mountExit   int
	umountExit  int
	utilityExit int

	invocations [][]string
}

func (f *fakeRunner) Run(_ context.Context, bin string, args ...string) (string, int, error) {
	f.invocations = append(f.invocations, append([]string{bin}, args...))

	switch bin {
	case "mount":
		return "", f.mountExit, nil
	case "umount":
		return "", f.umountExit, nil
	default:
		return "utility output", f.utilityExit, nil
	}
}

// mountDir returns the temp directory passed to the mount invocation.
func (f *fakeRunner) mountDir() string {
	for _, invocation := range f.invocations {
		if invocation[0] == "mount" {
			return invocation[2]
		}
	}

	return ""
}

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.Level = logrus.ErrorLevel

	return logrus.NewEntry(logger)
}

func testImageServer(t *testing.T) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	return server
}

type testEnv struct {
	cfg     *app.Configuration
	client  *bmc.MockVirtualMedia
	runner  *fakeRunner
	request *model.UpdateRequest
}

// newTestEnv lays out a fake by-label directory holding the attached
// device and a SUM log file, and returns a config pointing at both.
func newTestEnv(t *testing.T, imageURL string) *testEnv {
	t.Helper()

	byLabelDir := t.TempDir()
	device := filepath.Join(byLabelDir, "SPP-2024")
	require.NoError(t, os.WriteFile(device, []byte("ISO CONTENTS"), 0600))

	logFile := filepath.Join(t.TempDir(), "sum_log.txt")
	require.NoError(t, os.WriteFile(logFile, []byte(sampleLog), 0600))

	return &testEnv{
		cfg: &app.Configuration{
			Media: &app.MediaOptions{
				ByLabelDir:     byLabelDir,
				LabelPattern:   "SPP*",
				SettleTimeout:  2 * time.Second,
				SettleInterval: 10 * time.Millisecond,
			},
			SUM: &app.SUMOptions{
				UtilityPath: "hp/swpackages/hpsum",
				LogFile:     logFile,
			},
		},
		client: bmc.NewMockVirtualMedia(),
		runner: &fakeRunner{},
		request: &model.UpdateRequest{
			ImageURL: imageURL,
			Checksum: fmt.Sprintf("%x", md5.Sum([]byte("ISO CONTENTS"))),
		},
	}
}

func (env *testEnv) newHandler(task *model.Task) *handler {
	return &handler{
		cfg:    env.cfg,
		task:   task,
		logger: testLogger(),
		runner: env.runner,
		newVirtualMedia: func(_ context.Context, _ *model.UpdateRequest, _ *logrus.Entry) bmc.VirtualMedia {
			return env.client
		},
		mediaOpts: []vmedia.Option{
			vmedia.WithSettleBounds(env.cfg.Media.SettleTimeout, env.cfg.Media.SettleInterval),
		},
	}
}

func TestRunTaskEndToEnd(t *testing.T) {
	server := testImageServer(t)

	env := newTestEnv(t, server.URL+"/spp.iso")
	env.runner.utilityExit = 1

	task := model.NewTask(env.request)
	h := env.newHandler(task)

	err := runner.New(testLogger()).RunTask(context.Background(), task, h)
	require.NoError(t, err)

	assert.Equal(t, model.StateSucceeded, task.State)
	assert.True(t, strings.HasPrefix(
		task.Summary,
		"Summary: The smart component was installed successfully, but the system must be restarted.",
	))
	assert.Contains(t, task.Summary, "Total: 2 Success: 1 Failed: 1.")

	// media swapped on the CDROM slot before the run
	assert.Equal(t, []string{vmedia.SlotCDROM}, env.client.Ejected)
	assert.Equal(t, server.URL+"/spp.iso", env.client.Inserted[vmedia.SlotCDROM])

	// utility invoked from within the mounted tree, unrestricted
	mountDir := env.runner.mountDir()
	require.NotEmpty(t, mountDir)
	assert.Equal(t,
		[]string{filepath.Join(mountDir, "hp/swpackages/hpsum"), "--s", "--romonly"},
		env.runner.invocations[1],
	)

	// cleanup ran - mount directory removed, BMC session closed
	assert.NoDirExists(t, mountDir)
	assert.True(t, env.client.Closed)
}

func TestRunTaskComponentRestriction(t *testing.T) {
	server := testImageServer(t)

	env := newTestEnv(t, server.URL+"/spp.iso")
	env.request.Components = model.ParseComponents("ilo5, bios")

	task := model.NewTask(env.request)
	h := env.newHandler(task)

	err := runner.New(testLogger()).RunTask(context.Background(), task, h)
	require.NoError(t, err)

	mountDir := env.runner.mountDir()
	assert.Equal(t,
		[]string{filepath.Join(mountDir, "hp/swpackages/hpsum"), "--s", "--romonly", "--c", "ilo5", "--c", "bios"},
		env.runner.invocations[1],
	)
}

func TestRunTaskUnrecognizedUtilityExit(t *testing.T) {
	server := testImageServer(t)

	env := newTestEnv(t, server.URL+"/spp.iso")
	env.runner.utilityExit = 42

	task := model.NewTask(env.request)
	h := env.newHandler(task)

	err := runner.New(testLogger()).RunTask(context.Background(), task, h)
	require.Error(t, err)

	assert.Equal(t, model.StateFailed, task.State)
	assert.Empty(t, task.Summary)

	// cleanup still ran
	mountDir := env.runner.mountDir()
	require.NotEmpty(t, mountDir)
	assert.NoDirExists(t, mountDir)
	assert.True(t, env.client.Closed)
}

func TestRunTaskMountFailure(t *testing.T) {
	server := testImageServer(t)

	env := newTestEnv(t, server.URL+"/spp.iso")
	env.runner.mountExit = 32

	task := model.NewTask(env.request)
	h := env.newHandler(task)

	err := runner.New(testLogger()).RunTask(context.Background(), task, h)
	require.Error(t, err)

	assert.Equal(t, model.StateFailed, task.State)

	// the mount directory did not outlive the failure and no utility ran
	mountDir := env.runner.mountDir()
	require.NotEmpty(t, mountDir)
	assert.NoDirExists(t, mountDir)
	assert.Len(t, env.runner.invocations, 1)
	assert.True(t, env.client.Closed)
}

func TestRunTaskDeviceDiscoveryFailure(t *testing.T) {
	server := testImageServer(t)

	env := newTestEnv(t, server.URL+"/spp.iso")
	env.cfg.Media.ByLabelDir = t.TempDir() // no device entries
	env.cfg.Media.SettleTimeout = 50 * time.Millisecond

	task := model.NewTask(env.request)
	h := env.newHandler(task)

	err := runner.New(testLogger()).RunTask(context.Background(), task, h)
	require.Error(t, err)

	assert.Equal(t, model.StateFailed, task.State)

	// never mounted, never ran the utility
	assert.Empty(t, env.runner.invocations)
	assert.True(t, env.client.Closed)
}

func TestMountMediaRequiresDevice(t *testing.T) {
	server := testImageServer(t)

	env := newTestEnv(t, server.URL+"/spp.iso")
	h := env.newHandler(model.NewTask(env.request))

	err := h.MountMedia(context.Background())
	require.Error(t, err)

	assert.ErrorIs(t, err, errNoDevice)
}

func TestRunUtilityRequiresMount(t *testing.T) {
	server := testImageServer(t)

	env := newTestEnv(t, server.URL+"/spp.iso")
	h := env.newHandler(model.NewTask(env.request))

	err := h.RunUtility(context.Background())
	require.Error(t, err)

	assert.ErrorIs(t, err, errNoMount)
}
