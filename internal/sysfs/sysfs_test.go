package sysfs_test

import (
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/mutker/dockd/internal/errors"
	"codeberg.org/mutker/dockd/internal/logger"
	"codeberg.org/mutker/dockd/internal/sysfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAttr(t *testing.T, root, path, value string) {
	t.Helper()
	full := filepath.Join(root, path)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(value), 0o600))
}

func TestFSReadWrite(t *testing.T) {
	root := t.TempDir()
	attr := "/devices/system/cpu/cpu0/cpufreq/scaling_max_freq"
	writeAttr(t, root, attr, "1785000\n")

	fs := sysfs.New(root)

	value, err := fs.Read(attr)
	require.NoError(t, err)
	assert.Equal(t, "1785000", value)

	require.NoError(t, sysfs.WriteUint(fs, attr, 1020000))
	value, err = fs.Read(attr)
	require.NoError(t, err)
	assert.Equal(t, "1020000", value)
}

func TestFSMissingAttribute(t *testing.T) {
	fs := sysfs.New(t.TempDir())

	_, err := fs.Read("/nope")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, sysfs.ErrNotFound))

	err = fs.Write("/nope", "1")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, sysfs.ErrNotFound))
	assert.Contains(t, err.Error(), "/nope")
}

func TestFSWriteTruncatesLongValues(t *testing.T) {
	root := t.TempDir()
	writeAttr(t, root, "/governor", "")
	fs := sysfs.New(root)

	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	require.NoError(t, fs.Write("/governor", string(long)))

	value, err := fs.Read("/governor")
	require.NoError(t, err)
	assert.Len(t, value, 127)
}

func TestReadBool(t *testing.T) {
	mem := sysfs.NewMemory(nil)
	for value, want := range map[string]bool{
		"1": true, "0": false, "true": true, "False": false,
		"yes": true, "off": false, "2": true, "connected": true,
	} {
		mem.Set("/state", value)
		got, err := sysfs.ReadBool(mem, "/state")
		require.NoError(t, err, value)
		assert.Equal(t, want, got, value)
	}

	mem.Set("/state", "maybe")
	_, err := sysfs.ReadBool(mem, "/state")
	assert.True(t, errors.HasCode(err, sysfs.ErrInvalidValue))
}

func TestMemoryFailures(t *testing.T) {
	mem := sysfs.NewMemory(map[string]string{"/a": "x"})

	mem.Fail("/a", sysfs.ErrWriteFailed)
	_, err := mem.Read("/a")
	require.NoError(t, err)
	err = mem.Write("/a", "y")
	assert.True(t, errors.HasCode(err, sysfs.ErrWriteFailed))

	mem.Fail("/a", sysfs.ErrReadFailed)
	_, err = mem.Read("/a")
	assert.True(t, errors.HasCode(err, sysfs.ErrReadFailed))
	require.NoError(t, mem.Write("/a", "z"))

	mem.Heal("/a")
	value, err := mem.Read("/a")
	require.NoError(t, err)
	assert.Equal(t, "z", value)
	assert.Equal(t, []sysfs.Write{{Path: "/a", Value: "z"}}, mem.Writes())
}

func TestDryRun(t *testing.T) {
	base := sysfs.NewMemory(map[string]string{"/cable": "1", "/cpu/max": "1020000"})
	d := sysfs.NewDryRun(base, logger.Nop())

	v, err := d.Read("/cable")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	require.NoError(t, d.Write("/cpu/max", "1785000"))

	v, err = d.Read("/cpu/max")
	require.NoError(t, err)
	assert.Equal(t, "1785000", v)

	got, _ := base.Get("/cpu/max")
	assert.Equal(t, "1020000", got)
	assert.Empty(t, base.Writes())
	assert.Equal(t, []sysfs.Write{{Path: "/cpu/max", Value: "1785000"}}, d.Writes())
}
