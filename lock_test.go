package unwrap_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resin-os/unwrap"
)

func TestRunLock(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "work")

	lock, err := unwrap.AcquireRunLock(dir)
	require.NoError(t, err)
	assert.DirExists(t, dir)

	_, err = unwrap.AcquireRunLock(dir)
	assert.EqualError(t, err, "another unwrap is already using "+dir)

	require.NoError(t, lock.Release())

	lock, err = unwrap.AcquireRunLock(dir)
	require.NoError(t, err)
	assert.NoError(t, lock.Release())
}
