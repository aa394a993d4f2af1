// Package chunkstore persists upload chunks and assembles them into artifacts.
package chunkstore

import (
	"context"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/bitrise-io/go-chunkstore/identity"
	"github.com/bitrise-io/go-chunkstore/uploaderr"
)

// Store is the persistence contract of the upload engine.
//
// Chunk membership is always read back from storage, never from counters. Assemble must
// create the artifact at most once and never expose a partially written one.
type Store interface {
	// Store persists payload as chunk index of id, replacing any earlier chunk with the same index.
	Store(ctx context.Context, id identity.Identity, index int, payload io.Reader) error
	// ListIndices returns the persisted chunk indices in ascending numeric order.
	ListIndices(ctx context.Context, id identity.Identity) ([]int, error)
	Count(ctx context.Context, id identity.Identity) (int, error)
	// Assemble concatenates chunks 0..total-1 into the artifact and removes the bucket.
	// It returns the artifact location, or an *uploaderr.AssemblyError when the persisted
	// index set is not exactly {0..total-1}.
	Assemble(ctx context.Context, id identity.Identity, total int) (string, error)
	// Remove deletes the bucket of id. A missing bucket is not an error.
	Remove(ctx context.Context, id identity.Identity) error
	ArtifactExists(ctx context.Context, id identity.Identity) (bool, error)
	// ArtifactPath is the client visible location of the artifact, whether or not it exists yet.
	ArtifactPath(id identity.Identity) string
	// OpenArtifact returns uploaderr.ErrNotFound when the artifact does not exist.
	OpenArtifact(ctx context.Context, id identity.Identity) (io.ReadCloser, int64, error)
	// Sweep deletes staging leftovers older than olderThan and returns how many were removed.
	Sweep(ctx context.Context, olderThan time.Duration) (int, error)
}

// ParseIndex accepts only canonical non-negative decimals, so "01" or "+1" never alias 1.
func ParseIndex(name string) (int, bool) {
	n, err := strconv.Atoi(name)
	if err != nil || n < 0 || strconv.Itoa(n) != name {
		return 0, false
	}
	return n, true
}

// compareIndices reports how the sorted index set differs from {0..total-1}.
func compareIndices(indices []int, total int) (missing, unexpected []int) {
	present := make(map[int]bool, len(indices))
	for _, i := range indices {
		if i >= total {
			unexpected = append(unexpected, i)
			continue
		}
		present[i] = true
	}
	for i := 0; i < total; i++ {
		if !present[i] {
			missing = append(missing, i)
		}
	}
	return missing, unexpected
}

// IsComplete reports whether indices is exactly {0..total-1}.
func IsComplete(indices []int, total int) bool {
	if total <= 0 || len(indices) != total {
		return false
	}
	missing, unexpected := compareIndices(indices, total)
	return len(missing) == 0 && len(unexpected) == 0
}

// VerifyComplete returns an *uploaderr.AssemblyError unless indices is exactly {0..total-1}.
func VerifyComplete(id identity.Identity, indices []int, total int) error {
	if total <= 0 {
		return uploaderr.NewValidationError("total", "must be positive, got %d", total)
	}
	missing, unexpected := compareIndices(indices, total)
	if len(missing) > 0 || len(unexpected) > 0 {
		return &uploaderr.AssemblyError{
			ContentHash: id.ContentHash,
			Total:       total,
			Missing:     missing,
			Unexpected:  unexpected,
		}
	}
	return nil
}

func sortedIndices(indices []int) []int {
	sort.Ints(indices)
	return indices
}
