// Package resume answers "what does the server already have" for an upload, so a client
// can skip the chunks it does not need to send again.
package resume

import (
	"context"
	"fmt"

	"github.com/bitrise-io/go-chunkstore/chunkstore"
	"github.com/bitrise-io/go-chunkstore/identity"
)

// Status ...
type Status struct {
	Complete bool
	// Artifact is set when Complete is true.
	Artifact string
	// Received lists the persisted chunk indices in ascending order when Complete is false.
	Received []int
}

// Query is read only.
type Query struct {
	store chunkstore.Store
}

// NewQuery ...
func NewQuery(store chunkstore.Store) *Query {
	return &Query{store: store}
}

// Check ...
func (q *Query) Check(ctx context.Context, id identity.Identity) (Status, error) {
	exists, err := q.store.ArtifactExists(ctx, id)
	if err != nil {
		return Status{}, fmt.Errorf("check artifact of %s: %w", id.ContentHash, err)
	}
	if exists {
		return Status{Complete: true, Artifact: q.store.ArtifactPath(id)}, nil
	}

	received, err := q.store.ListIndices(ctx, id)
	if err != nil {
		return Status{}, fmt.Errorf("list chunks of %s: %w", id.ContentHash, err)
	}
	if received == nil {
		received = []int{}
	}
	return Status{Received: received}, nil
}
