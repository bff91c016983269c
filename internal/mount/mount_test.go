package mount

import (
	"context"
	"os"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner implements command.Runner, recording invocations and
// returning canned results per binary name.
type fakeRunner struct {
	exitCodes map[string]int
	errs      map[string]error

	invocations [][]string
}

func (f *fakeRunner) Run(_ context.Context, bin string, args ...string) (string, int, error) {
	f.invocations = append(f.invocations, append([]string{bin}, args...))

	if err := f.errs[bin]; err != nil {
		return "", -1, err
	}

	return "", f.exitCodes[bin], nil
}

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.Level = logrus.ErrorLevel

	return logrus.NewEntry(logger)
}

func TestMountAndRelease(t *testing.T) {
	runner := &fakeRunner{}

	point, err := Mount(context.Background(), runner, "/dev/disk/by-label/SPP-2024", testLogger())
	require.NoError(t, err)

	dir := point.Dir()
	require.DirExists(t, dir)

	require.Len(t, runner.invocations, 1)
	assert.Equal(t, []string{"mount", "/dev/disk/by-label/SPP-2024", dir}, runner.invocations[0])

	point.Release(context.Background())
	assert.NoDirExists(t, dir)

	require.Len(t, runner.invocations, 2)
	assert.Equal(t, []string{"umount", dir}, runner.invocations[1])
}

func TestMountFailureRemovesDir(t *testing.T) {
	runner := &fakeRunner{exitCodes: map[string]int{"mount": 32}}

	point, err := Mount(context.Background(), runner, "/dev/sr0", testLogger())
	require.Error(t, err)
	require.Nil(t, point)

	assert.ErrorIs(t, err, errMount)

	// the temporary directory must not outlive the failed mount
	require.Len(t, runner.invocations, 1)
	dir := runner.invocations[0][2]
	assert.NoDirExists(t, dir)
}

func TestMountProcessError(t *testing.T) {
	runner := &fakeRunner{errs: map[string]error{"mount": errors.New("executable not found")}}

	_, err := Mount(context.Background(), runner, "/dev/sr0", testLogger())
	require.Error(t, err)

	assert.ErrorIs(t, err, errMount)
	assert.Contains(t, err.Error(), "executable not found")
}

func TestReleaseUnmountFailureIsSuppressed(t *testing.T) {
	runner := &fakeRunner{exitCodes: map[string]int{"umount": 1}}

	point, err := Mount(context.Background(), runner, "/dev/sr0", testLogger())
	require.NoError(t, err)

	dir := point.Dir()

	// unmount fails, the directory is still removed and no error escapes
	point.Release(context.Background())
	assert.NoDirExists(t, dir)
}

func TestReleaseIsIdempotent(t *testing.T) {
	runner := &fakeRunner{}

	point, err := Mount(context.Background(), runner, "/dev/sr0", testLogger())
	require.NoError(t, err)

	point.Release(context.Background())
	point.Release(context.Background())

	// one mount and exactly one umount, the second Release is a no-op
	umounts := 0
	for _, invocation := range runner.invocations {
		if invocation[0] == "umount" {
			umounts++
		}
	}

	assert.Equal(t, 1, umounts)
	assert.NoDirExists(t, point.Dir())

	// recreate the directory to prove a second Release won't touch it
	require.NoError(t, os.MkdirAll(point.Dir(), 0700))
	defer os.RemoveAll(point.Dir())

	point.Release(context.Background())
	assert.DirExists(t, point.Dir())
}
