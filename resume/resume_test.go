package resume

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bitrise-io/go-chunkstore/chunkstore"
	"github.com/bitrise-io/go-chunkstore/identity"
	"github.com/bitrise-io/go-chunkstore/internal"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	layout := chunkstore.NewLayout(t.TempDir())
	require.NoError(t, layout.Ensure(internal.RealOS{}))
	store := chunkstore.NewFileStore(layout, internal.RealOS{}, log.NewLogger())
	query := NewQuery(store)
	ctx := context.Background()

	id, err := identity.Derive("abc", "zip")
	require.NoError(t, err)

	status, err := query.Check(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, Status{Received: []int{}}, status)

	for _, index := range []int{10, 0, 2} {
		require.NoError(t, store.Store(ctx, id, index, strings.NewReader("x")))
	}
	// stray files in the bucket are not chunks
	require.NoError(t, os.WriteFile(filepath.Join(layout.ChunksDir, "abc", "upload.tmp"), nil, 0644))

	status, err = query.Check(ctx, id)
	require.NoError(t, err)
	assert.False(t, status.Complete)
	assert.Equal(t, []int{0, 2, 10}, status.Received)

	require.NoError(t, os.WriteFile(filepath.Join(layout.FilesDir, "abc.zip"), []byte("done"), 0644))

	status, err = query.Check(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, Status{Complete: true, Artifact: "files/abc.zip"}, status)

	// read only: the bucket is untouched
	indices, err := store.ListIndices(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 10}, indices)
}
