package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	r := New[string, int]()
	assert.NotNil(t, r)
	assert.Equal(t, 0, r.Len())
}

func TestRegisterAndGet(t *testing.T) {
	r := New[string, int]()

	r.Register("one", 1)
	r.Register("two", 2)

	v, ok := r.Get("one")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = r.Get("three")
	assert.False(t, ok)
	assert.Equal(t, 0, v)
}

// TestRegisterOverwrite verifies the last registration for a key wins.
func TestRegisterOverwrite(t *testing.T) {
	r := New[string, string]()

	r.Register("key", "old")
	r.Register("key", "new")

	v, ok := r.Get("key")
	assert.True(t, ok)
	assert.Equal(t, "new", v)
	assert.Equal(t, 1, r.Len())
}

func TestHasAndDelete(t *testing.T) {
	r := New[string, int]()
	r.Register("key", 1)
	assert.True(t, r.Has("key"))

	r.Delete("key")
	assert.False(t, r.Has("key"))

	// Deleting again is a no-op
	r.Delete("key")
	assert.Equal(t, 0, r.Len())
}

func TestKeysSorted(t *testing.T) {
	r := New[string, int]()
	r.Register("charlie", 3)
	r.Register("alpha", 1)
	r.Register("bravo", 2)

	assert.Equal(t, []string{"alpha", "bravo", "charlie"}, r.Keys())
}

func TestKeysEmpty(t *testing.T) {
	r := New[string, int]()
	assert.Empty(t, r.Keys())
}

func TestSnapshotIsCopy(t *testing.T) {
	r := New[string, int]()
	r.Register("a", 1)

	snap := r.Snapshot()
	snap["b"] = 2

	assert.False(t, r.Has("b"))
	assert.Len(t, snap, 2)
}

func TestRangeOrdered(t *testing.T) {
	r := New[int, string]()
	r.Register(3, "c")
	r.Register(1, "a")
	r.Register(2, "b")

	var seen []int
	r.Range(func(k int, _ string) bool {
		seen = append(seen, k)
		return true
	})
	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestRangeEarlyStop(t *testing.T) {
	r := New[int, int]()
	for i := 0; i < 10; i++ {
		r.Register(i, i)
	}

	count := 0
	r.Range(func(_, _ int) bool {
		count++
		return count < 3
	})
	assert.Equal(t, 3, count)
}

func TestRangeAllowsMutation(t *testing.T) {
	r := New[string, int]()
	r.Register("a", 1)
	r.Register("b", 2)

	r.Range(func(k string, _ int) bool {
		r.Delete(k)
		r.Register(k+"-new", 0)
		return true
	})

	assert.Equal(t, []string{"a-new", "b-new"}, r.Keys())
}

func TestConcurrentReadWrite(t *testing.T) {
	r := New[string, int]()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			r.Register(fmt.Sprintf("k%d", n), n)
		}(i)
		go func(n int) {
			defer wg.Done()
			_, _ = r.Get(fmt.Sprintf("k%d", n))
			_ = r.Keys()
		}(i)
	}
	wg.Wait()

	require.Equal(t, 50, r.Len())
	v, ok := r.Get("k42")
	assert.True(t, ok)
	assert.Equal(t, 42, v)
}
