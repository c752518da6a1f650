package pid_test

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"codeberg.org/mutker/dockd/internal/errors"
	"codeberg.org/mutker/dockd/internal/pid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndRemove(t *testing.T) {
	f := pid.New(t.TempDir())

	require.NoError(t, f.Write())
	data, err := os.ReadFile(f.Path())
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))

	require.NoError(t, f.Remove())
	_, err = os.Stat(f.Path())
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, f.Remove())
}

func TestWriteOverwritesStaleFile(t *testing.T) {
	dir := t.TempDir()
	f := pid.New(dir)

	require.NoError(t, os.WriteFile(f.Path(), []byte("garbage"), 0o600))
	require.NoError(t, f.Write())

	// Our own pid counts as stale, a restarted daemon may reuse it.
	require.NoError(t, f.Write())
}

func TestWriteDetectsRunningProcess(t *testing.T) {
	f := pid.New(t.TempDir())
	// The parent of the test binary is alive for the duration of the test.
	require.NoError(t, os.WriteFile(f.Path(), []byte(strconv.Itoa(os.Getppid())), 0o600))

	err := f.Write()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrAlreadyRunning))
}

func TestDefaultDir(t *testing.T) {
	assert.Equal(t, filepath.Join(os.TempDir(), "dockd.pid"), pid.New("").Path())
}
