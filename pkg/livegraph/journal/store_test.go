package journal_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/randalmurphal/livegraph/pkg/livegraph/journal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeFactory creates a store instance for testing.
type storeFactory func(t *testing.T) journal.Store

func sampleEntry(id string, version uint64) journal.Entry {
	return journal.Entry{
		ID:        id,
		Version:   version,
		Success:   true,
		Step:      "done",
		Summary:   journal.Summary{AddedNodes: 2, AddedEdges: 1},
		StartedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Duration:  15 * time.Millisecond,
	}
}

// storeContractTest runs contract tests against any Store implementation.
func storeContractTest(t *testing.T, name string, factory storeFactory) {
	ctx := context.Background()

	t.Run(name+"/Record_and_Get", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		entry := sampleEntry("apply-1", 1)
		require.NoError(t, store.Record(ctx, entry))

		got, err := store.Get(ctx, "apply-1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.Sequence)
		assert.Equal(t, entry.Version, got.Version)
		assert.True(t, got.Success)
		assert.Equal(t, entry.Summary, got.Summary)
		assert.True(t, entry.StartedAt.Equal(got.StartedAt))
		assert.Equal(t, entry.Duration, got.Duration)
	})

	t.Run(name+"/Get_NotFound", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		_, err := store.Get(ctx, "missing")
		assert.ErrorIs(t, err, journal.ErrNotFound)
	})

	t.Run(name+"/Record_Failure", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		entry := journal.Entry{
			ID:      "apply-2",
			Version: 3,
			Step:    "edges.add",
			Code:    "MISSING_NODE",
			Error:   "MISSING_NODE: edge references a node that does not exist",
		}
		require.NoError(t, store.Record(ctx, entry))

		got, err := store.Get(ctx, "apply-2")
		require.NoError(t, err)
		assert.False(t, got.Success)
		assert.Equal(t, "edges.add", got.Step)
		assert.Equal(t, "MISSING_NODE", got.Code)
		assert.Equal(t, entry.Error, got.Error)
	})

	t.Run(name+"/Record_Replace_KeepsSequence", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		require.NoError(t, store.Record(ctx, sampleEntry("a", 1)))
		require.NoError(t, store.Record(ctx, sampleEntry("b", 2)))
		updated := sampleEntry("a", 1)
		updated.Step = "replaced"
		require.NoError(t, store.Record(ctx, updated))

		got, err := store.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.Sequence)
		assert.Equal(t, "replaced", got.Step)
	})

	t.Run(name+"/List_NewestFirst", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		for i := 1; i <= 4; i++ {
			require.NoError(t, store.Record(ctx, sampleEntry(fmt.Sprintf("apply-%d", i), uint64(i))))
		}

		all, err := store.List(ctx, 0)
		require.NoError(t, err)
		require.Len(t, all, 4)
		assert.Equal(t, "apply-4", all[0].ID)
		assert.Equal(t, "apply-1", all[3].ID)

		recent, err := store.List(ctx, 2)
		require.NoError(t, err)
		require.Len(t, recent, 2)
		assert.Equal(t, "apply-4", recent[0].ID)
		assert.Equal(t, "apply-3", recent[1].ID)
	})

	t.Run(name+"/List_Empty", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		entries, err := store.List(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run(name+"/Closed", func(t *testing.T) {
		store := factory(t)
		require.NoError(t, store.Close())

		assert.ErrorIs(t, store.Record(ctx, sampleEntry("x", 1)), journal.ErrStoreClosed)
		_, err := store.Get(ctx, "x")
		assert.ErrorIs(t, err, journal.ErrStoreClosed)
		_, err = store.List(ctx, 0)
		assert.ErrorIs(t, err, journal.ErrStoreClosed)
	})

	t.Run(name+"/Concurrent", func(t *testing.T) {
		store := factory(t)
		defer store.Close()

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, store.Record(ctx, sampleEntry(fmt.Sprintf("c-%d", i), uint64(i))))
			}(i)
		}
		wg.Wait()

		entries, err := store.List(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, entries, 20)
	})
}

func TestMemoryStore_Contract(t *testing.T) {
	storeContractTest(t, "MemoryStore", func(t *testing.T) journal.Store {
		return journal.NewMemoryStore()
	})
}

func TestSQLiteStore_Contract(t *testing.T) {
	storeContractTest(t, "SQLiteStore", func(t *testing.T) journal.Store {
		store, err := journal.NewSQLiteStore(":memory:")
		require.NoError(t, err)
		return store
	})
}
