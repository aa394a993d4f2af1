package ledger

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bitrise-io/go-chunkstore/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLedger(t *testing.T) *SQLiteLedger {
	l, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestDeclare_FirstTotalWins(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()
	id := identity.Identity{ContentHash: "abc", Extension: "mp4"}

	recorded, err := l.Declare(ctx, id, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, recorded)

	recorded, err = l.Declare(ctx, id, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, recorded)

	total, ok, err := l.Lookup(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, total)
}

func TestDeclare_Concurrent(t *testing.T) {
	l := openTestLedger(t)
	id := identity.Identity{ContentHash: "race", Extension: "bin"}

	var wg sync.WaitGroup
	results := make(chan int, 10)
	for i := 1; i <= 10; i++ {
		wg.Add(1)
		go func(total int) {
			defer wg.Done()
			recorded, err := l.Declare(context.Background(), id, total)
			assert.NoError(t, err)
			results <- recorded
		}(i)
	}
	wg.Wait()
	close(results)

	var first int
	for r := range results {
		if first == 0 {
			first = r
		}
		assert.Equal(t, first, r)
	}
}

func TestForget(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()
	id := identity.Identity{ContentHash: "abc", Extension: "mp4"}

	_, err := l.Declare(ctx, id, 3)
	require.NoError(t, err)
	require.NoError(t, l.Forget(ctx, id))
	require.NoError(t, l.Forget(ctx, id))

	_, ok, err := l.Lookup(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	recorded, err := l.Declare(ctx, id, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, recorded)
}

func TestStale(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	old := identity.Identity{ContentHash: "old", Extension: "zip"}
	_, err := l.Declare(ctx, old, 2)
	require.NoError(t, err)
	cutoff := time.Now()
	time.Sleep(5 * time.Millisecond)
	_, err = l.Declare(ctx, identity.Identity{ContentHash: "new", Extension: "zip"}, 4)
	require.NoError(t, err)

	entries, err := l.Stale(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, old, entries[0].Identity)
	assert.Equal(t, 2, entries[0].Total)
	assert.False(t, entries[0].CreatedAt.After(cutoff))
}

func TestOpenSQLite_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	id := identity.Identity{ContentHash: "persist", Extension: "bin"}

	l, err := OpenSQLite(path)
	require.NoError(t, err)
	_, err = l.Declare(context.Background(), id, 9)
	require.NoError(t, err)
	require.NoError(t, l.Close())

	l, err = OpenSQLite(path)
	require.NoError(t, err)
	defer l.Close() //nolint:errcheck

	total, ok, err := l.Lookup(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 9, total)
}
