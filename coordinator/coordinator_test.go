package coordinator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bitrise-io/go-chunkstore/chunkstore"
	"github.com/bitrise-io/go-chunkstore/identity"
	"github.com/bitrise-io/go-chunkstore/internal"
	checks "github.com/bitrise-io/go-chunkstore/internal/testing"
	"github.com/bitrise-io/go-chunkstore/ledger"
	"github.com/bitrise-io/go-chunkstore/uploaderr"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	coordinator *Coordinator
	store       *chunkstore.FileStore
	ledger      *ledger.SQLiteLedger
	layout      chunkstore.Layout
}

func newTestEnv(t *testing.T) testEnv {
	layout := chunkstore.NewLayout(t.TempDir())
	require.NoError(t, layout.Ensure(internal.RealOS{}))

	logger := log.NewLogger()
	store := chunkstore.NewFileStore(layout, internal.RealOS{}, logger)
	totals, err := ledger.OpenSQLite(filepath.Join(layout.Root, "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = totals.Close() })

	return testEnv{
		coordinator: New(store, totals, logger),
		store:       store,
		ledger:      totals,
		layout:      layout,
	}
}

func (e testEnv) artifactFile(id identity.Identity) string {
	return filepath.Join(e.layout.FilesDir, id.ArtifactName())
}

func (e testEnv) bucketDir(id identity.Identity) string {
	return filepath.Join(e.layout.ChunksDir, id.ContentHash)
}

func mustIdentity(t *testing.T, hash string) identity.Identity {
	id, err := identity.Derive(hash, "mp4")
	require.NoError(t, err)
	return id
}

func permutations(n int) [][]int {
	if n == 1 {
		return [][]int{{0}}
	}
	var out [][]int
	for _, p := range permutations(n - 1) {
		for pos := 0; pos <= len(p); pos++ {
			perm := append(append(append([]int{}, p[:pos]...), n-1), p[pos:]...)
			out = append(out, perm)
		}
	}
	return out
}

func TestReceiveChunk_AnyArrivalOrder(t *testing.T) {
	chunks := []string{"one-", "two-", "three-", "four"}
	want := strings.Join(chunks, "")

	for _, order := range permutations(len(chunks)) {
		t.Run(fmt.Sprint(order), func(t *testing.T) {
			env := newTestEnv(t)
			id := mustIdentity(t, "perm")

			for i, index := range order {
				result, err := env.coordinator.ReceiveChunk(context.Background(), id, index, len(chunks), strings.NewReader(chunks[index]))
				require.NoError(t, err)

				if i < len(order)-1 {
					assert.Equal(t, StatusPending, result.Status)
					assert.Empty(t, result.Artifact)
				} else {
					assert.Equal(t, StatusComplete, result.Status)
					assert.Equal(t, "files/perm.mp4", result.Artifact)
				}
			}

			assert.NoError(t, checks.NewFileChecker(env.artifactFile(id)).IsFile().Content(want).Check())
			assert.NoError(t, checks.NewFileChecker(env.bucketDir(id)).Missing().Check())
		})
	}
}

func TestReceiveChunk_OutOfOrderExample(t *testing.T) {
	env := newTestEnv(t)
	id := mustIdentity(t, "h")
	payloads := map[int]string{0: "AA", 1: "BB", 2: "CC"}

	var last Result
	for _, index := range []int{2, 0, 1} {
		var err error
		last, err = env.coordinator.ReceiveChunk(context.Background(), id, index, 3, strings.NewReader(payloads[index]))
		require.NoError(t, err)
	}

	assert.Equal(t, Result{Status: StatusComplete, Artifact: "files/h.mp4"}, last)
	assert.NoError(t, checks.NewFileChecker(env.artifactFile(id)).Content("AABBCC").Check())
}

func TestReceiveChunk_MoreThanTenChunks(t *testing.T) {
	env := newTestEnv(t)
	id := mustIdentity(t, "twelve")

	var want strings.Builder
	for i := 0; i < 12; i++ {
		want.WriteString(fmt.Sprintf("%02d", i))
	}
	for i := 11; i >= 0; i-- {
		_, err := env.coordinator.ReceiveChunk(context.Background(), id, i, 12, strings.NewReader(fmt.Sprintf("%02d", i)))
		require.NoError(t, err)
	}

	assert.NoError(t, checks.NewFileChecker(env.artifactFile(id)).Content(want.String()).Check())
}

func TestReceiveChunk_DuplicateChunk(t *testing.T) {
	env := newTestEnv(t)
	id := mustIdentity(t, "dup")
	ctx := context.Background()

	result, err := env.coordinator.ReceiveChunk(ctx, id, 0, 2, strings.NewReader("first"))
	require.NoError(t, err)
	assert.Equal(t, StatusPending, result.Status)

	result, err = env.coordinator.ReceiveChunk(ctx, id, 0, 2, strings.NewReader("first"))
	require.NoError(t, err)
	assert.Equal(t, StatusPending, result.Status)

	indices, err := env.store.ListIndices(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, indices)

	result, err = env.coordinator.ReceiveChunk(ctx, id, 1, 2, strings.NewReader("second"))
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, result.Status)
	assert.NoError(t, checks.NewFileChecker(env.artifactFile(id)).Content("firstsecond").Check())
}

func TestReceiveChunk_GapIsNotComplete(t *testing.T) {
	env := newTestEnv(t)
	id := mustIdentity(t, "gap")
	ctx := context.Background()

	for _, index := range []int{0, 2} {
		result, err := env.coordinator.ReceiveChunk(ctx, id, index, 3, strings.NewReader("x"))
		require.NoError(t, err)
		assert.Equal(t, StatusPending, result.Status)
	}
	assert.NoError(t, checks.NewFileChecker(env.artifactFile(id)).Missing().Check())

	result, err := env.coordinator.ReceiveChunk(ctx, id, 1, 3, strings.NewReader("y"))
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, result.Status)
	assert.NoError(t, checks.NewFileChecker(env.artifactFile(id)).Content("xyx").Check())
}

func TestReceiveChunk_Validation(t *testing.T) {
	tests := []struct {
		name      string
		index     int
		total     int
		wantField string
	}{
		{name: "index equals total", index: 3, total: 3, wantField: "index"},
		{name: "negative index", index: -1, total: 3, wantField: "index"},
		{name: "zero total", index: 0, total: 0, wantField: "total"},
		{name: "negative total", index: 0, total: -2, wantField: "total"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			id := mustIdentity(t, "invalid")

			_, err := env.coordinator.ReceiveChunk(context.Background(), id, tt.index, tt.total, strings.NewReader("x"))

			var ve *uploaderr.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.wantField, ve.Field)
			assert.NoError(t, checks.NewFileChecker(env.bucketDir(id)).Missing().Check())

			_, ok, err := env.ledger.Lookup(context.Background(), id)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestReceiveChunk_InconsistentTotal(t *testing.T) {
	env := newTestEnv(t)
	id := mustIdentity(t, "totals")
	ctx := context.Background()

	_, err := env.coordinator.ReceiveChunk(ctx, id, 0, 3, strings.NewReader("a"))
	require.NoError(t, err)

	_, err = env.coordinator.ReceiveChunk(ctx, id, 1, 2, strings.NewReader("b"))

	var ite *uploaderr.InconsistentTotalError
	require.True(t, errors.As(err, &ite), "got %v", err)
	assert.Equal(t, 2, ite.Declared)
	assert.Equal(t, 3, ite.Recorded)

	indices, err := env.store.ListIndices(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, indices)
	assert.NoError(t, checks.NewFileChecker(env.artifactFile(id)).Missing().Check())
}

func TestReceiveChunk_LateChunkAfterCompletion(t *testing.T) {
	env := newTestEnv(t)
	id := mustIdentity(t, "late")
	ctx := context.Background()

	_, err := env.coordinator.ReceiveChunk(ctx, id, 0, 2, strings.NewReader("A"))
	require.NoError(t, err)
	_, err = env.coordinator.ReceiveChunk(ctx, id, 1, 2, strings.NewReader("B"))
	require.NoError(t, err)

	result, err := env.coordinator.ReceiveChunk(ctx, id, 0, 2, strings.NewReader("changed"))
	require.NoError(t, err)
	assert.Equal(t, Result{Status: StatusComplete, Artifact: "files/late.mp4"}, result)

	// a different total is not an error once the artifact exists
	result, err = env.coordinator.ReceiveChunk(ctx, id, 0, 5, strings.NewReader("changed"))
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, result.Status)

	assert.NoError(t, checks.NewFileChecker(env.artifactFile(id)).Content("AB").Check())
	assert.NoError(t, checks.NewFileChecker(env.bucketDir(id)).Missing().Check())
}

func TestReceiveChunk_Concurrent(t *testing.T) {
	env := newTestEnv(t)
	id := mustIdentity(t, "parallel")
	const total = 16

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
		want      strings.Builder
	)
	for i := 0; i < total; i++ {
		want.WriteString(fmt.Sprintf("[%02d]", i))
	}

	for i := 0; i < total; i++ {
		for dup := 0; dup < 2; dup++ {
			wg.Add(1)
			go func(index int) {
				defer wg.Done()
				result, err := env.coordinator.ReceiveChunk(context.Background(), id, index, total, strings.NewReader(fmt.Sprintf("[%02d]", index)))
				assert.NoError(t, err)
				if result.Status == StatusComplete {
					mu.Lock()
					completed++
					mu.Unlock()
				}
			}(i)
		}
	}
	wg.Wait()

	assert.GreaterOrEqual(t, completed, 1)
	assert.NoError(t, checks.NewFileChecker(env.layout.FilesDir).Entries("parallel.mp4").Check())
	assert.NoError(t, checks.NewFileChecker(env.artifactFile(id)).Content(want.String()).Check())
	assert.NoError(t, checks.NewFileChecker(env.bucketDir(id)).Missing().Check())
	assert.NoError(t, checks.NewFileChecker(env.layout.TempDir).Entries().Check())

	_, ok, err := env.ledger.Lookup(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReceiveWhole(t *testing.T) {
	env := newTestEnv(t)
	id := mustIdentity(t, "whole")

	result, err := env.coordinator.ReceiveWhole(context.Background(), id, strings.NewReader("entire file"))
	require.NoError(t, err)
	assert.Equal(t, Result{Status: StatusComplete, Artifact: "files/whole.mp4"}, result)
	assert.NoError(t, checks.NewFileChecker(env.artifactFile(id)).Content("entire file").Check())
}

func TestAbandon(t *testing.T) {
	env := newTestEnv(t)
	id := mustIdentity(t, "dropped")
	ctx := context.Background()

	_, err := env.coordinator.ReceiveChunk(ctx, id, 0, 3, strings.NewReader("a"))
	require.NoError(t, err)

	require.NoError(t, env.coordinator.Abandon(ctx, id))
	assert.NoError(t, checks.NewFileChecker(env.bucketDir(id)).Missing().Check())

	// a fresh upload may pick a different total
	result, err := env.coordinator.ReceiveChunk(ctx, id, 0, 1, strings.NewReader("z"))
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, result.Status)
}

func TestReapStale(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	stale := mustIdentity(t, "stale")
	fresh := mustIdentity(t, "fresh")

	_, err := env.coordinator.ReceiveChunk(ctx, stale, 0, 2, strings.NewReader("a"))
	require.NoError(t, err)
	time.Sleep(300 * time.Millisecond)
	_, err = env.coordinator.ReceiveChunk(ctx, fresh, 0, 2, strings.NewReader("b"))
	require.NoError(t, err)

	reaped, err := env.coordinator.ReapStale(ctx, 150*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 1, reaped)

	assert.NoError(t, checks.NewFileChecker(env.bucketDir(stale)).Missing().Check())
	assert.NoError(t, checks.NewFileChecker(env.bucketDir(fresh)).IsDir().Check())
}
