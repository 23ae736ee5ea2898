package validation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDiskSpace_ResolvesMissingPathThroughParent(t *testing.T) {
	dir := t.TempDir()

	info, err := GetDiskSpace(filepath.Join(dir, "not", "yet", "created"))
	require.NoError(t, err)

	assert.Equal(t, dir, info.Path)
	assert.Greater(t, info.Total, int64(0))
	assert.GreaterOrEqual(t, info.Total, info.Free)
}

func TestCheckDiskSpace(t *testing.T) {
	dir := t.TempDir()

	assert.NoError(t, CheckDiskSpace(dir, 1))

	err := CheckDiskSpace(dir, 1<<62)
	var dsErr *DiskSpaceError
	require.ErrorAs(t, err, &dsErr)
	assert.Equal(t, int64(1<<62), dsErr.Required)
	assert.Contains(t, err.Error(), "insufficient disk space")
}

func TestCheckWritable(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "downloads")

	require.NoError(t, CheckWritable(dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStatFilesystem(t *testing.T) {
	usage, err := statFilesystem(t.TempDir())
	require.NoError(t, err)
	assert.Greater(t, usage.total, int64(0))
	assert.LessOrEqual(t, usage.free, usage.total)

	_, err = statFilesystem(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
