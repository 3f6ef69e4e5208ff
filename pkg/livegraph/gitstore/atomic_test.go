package gitstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/livegraph/pkg/livegraph/graph"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "doc.json")

	require.NoError(t, writeFileAtomic(path, []byte("one"), 0o644))
	require.NoError(t, writeFileAtomic(path, []byte("two"), 0o644))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
	assert.Equal(t, "doc.json", entries[0].Name())
}

func TestAcquireLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), locksDir, "g.lock")
	ctx := context.Background()

	first, err := acquireLock(ctx, "g", path, time.Second, time.Millisecond)
	require.NoError(t, err)

	_, err = acquireLock(ctx, "g", path, 20*time.Millisecond, time.Millisecond)
	var ge *graph.Error
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, graph.CodeLockTimeout, ge.Code)
	assert.Equal(t, "g", ge.Name)

	require.NoError(t, first.release())
	require.NoError(t, first.release(), "releasing twice is harmless")

	second, err := acquireLock(ctx, "g", path, time.Second, time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, second.release())
}
