// Package coordinator drives an upload from its first chunk to the assembled artifact.
//
// Upload lifecycle per identity: EMPTY (nothing stored), RECEIVING (some chunks stored),
// COMPLETE (artifact exists). COMPLETE is terminal: later chunks are acknowledged without
// being stored.
package coordinator

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/bitrise-io/go-chunkstore/chunkstore"
	"github.com/bitrise-io/go-chunkstore/identity"
	"github.com/bitrise-io/go-chunkstore/internal/keylock"
	"github.com/bitrise-io/go-chunkstore/ledger"
	"github.com/bitrise-io/go-chunkstore/uploaderr"
	"github.com/bitrise-io/go-utils/v2/log"
)

// Status of an upload after a chunk arrived.
type Status string

const (
	StatusPending  Status = "pending"
	StatusComplete Status = "complete"
)

// Result ...
type Result struct {
	Status Status
	// Artifact is set when Status is StatusComplete.
	Artifact string
}

// Ledger keeps the first declared total of every in-flight upload.
type Ledger interface {
	Declare(ctx context.Context, id identity.Identity, total int) (int, error)
	Forget(ctx context.Context, id identity.Identity) error
	Stale(ctx context.Context, cutoff time.Time) ([]ledger.Entry, error)
}

// Coordinator ...
type Coordinator struct {
	store  chunkstore.Store
	ledger Ledger
	logger log.Logger
	locks  *keylock.Map
}

// New ...
func New(store chunkstore.Store, totals Ledger, logger log.Logger) *Coordinator {
	return &Coordinator{
		store:  store,
		ledger: totals,
		logger: logger,
		locks:  keylock.New(),
	}
}

// ReceiveChunk stores one chunk and assembles the artifact once the stored index set is
// exactly {0..total-1}.
//
// Storing runs under the shared lock of the identity, so chunks of the same upload are
// written in parallel. The completeness check and assembly run under the exclusive lock,
// which waits for in-flight writes and makes late chunks observe the artifact.
func (c *Coordinator) ReceiveChunk(ctx context.Context, id identity.Identity, index, total int, payload io.Reader) (Result, error) {
	if total <= 0 {
		return Result{}, uploaderr.NewValidationError("total", "must be positive, got %d", total)
	}
	if index < 0 || index >= total {
		return Result{}, uploaderr.NewValidationError("index", "%d is out of range [0, %d)", index, total)
	}

	done, err := c.storeChunk(ctx, id, index, total, payload)
	if err != nil {
		return Result{}, err
	}
	if done {
		c.logger.Debugf("Chunk %d of %s arrived after completion, ignoring it", index, id.ArtifactName())
		return c.complete(id), nil
	}

	return c.tryComplete(ctx, id, total)
}

// ReceiveWhole stores a file that was sent in one piece.
func (c *Coordinator) ReceiveWhole(ctx context.Context, id identity.Identity, payload io.Reader) (Result, error) {
	return c.ReceiveChunk(ctx, id, 0, 1, payload)
}

// Abandon drops every stored chunk of an unfinished upload. The artifact, if any, is kept.
func (c *Coordinator) Abandon(ctx context.Context, id identity.Identity) error {
	unlock := c.locks.Lock(id.ContentHash)
	defer unlock()

	if err := c.store.Remove(ctx, id); err != nil {
		return fmt.Errorf("remove chunks of %s: %w", id.ContentHash, err)
	}
	if err := c.ledger.Forget(ctx, id); err != nil {
		return fmt.Errorf("forget %s: %w", id.ContentHash, err)
	}
	c.logger.Infof("Abandoned upload %s", id.ContentHash)
	return nil
}

// ReapStale abandons uploads whose first chunk arrived more than olderThan ago and sweeps
// staging leftovers. It returns the number of abandoned uploads.
func (c *Coordinator) ReapStale(ctx context.Context, olderThan time.Duration) (int, error) {
	entries, err := c.ledger.Stale(ctx, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}

	reaped := 0
	for _, entry := range entries {
		if err := c.Abandon(ctx, entry.Identity); err != nil {
			return reaped, err
		}
		reaped++
	}

	if _, err := c.store.Sweep(ctx, olderThan); err != nil {
		return reaped, fmt.Errorf("sweep staging files: %w", err)
	}
	return reaped, nil
}

func (c *Coordinator) storeChunk(ctx context.Context, id identity.Identity, index, total int, payload io.Reader) (bool, error) {
	unlock := c.locks.RLock(id.ContentHash)
	defer unlock()

	exists, err := c.store.ArtifactExists(ctx, id)
	if err != nil {
		return false, err
	}
	if exists {
		return true, nil
	}

	recorded, err := c.ledger.Declare(ctx, id, total)
	if err != nil {
		return false, err
	}
	if recorded != total {
		return false, &uploaderr.InconsistentTotalError{ContentHash: id.ContentHash, Declared: total, Recorded: recorded}
	}

	if err := c.store.Store(ctx, id, index, payload); err != nil {
		return false, fmt.Errorf("store chunk %d of %s: %w", index, id.ContentHash, err)
	}
	return false, nil
}

func (c *Coordinator) tryComplete(ctx context.Context, id identity.Identity, total int) (Result, error) {
	unlock := c.locks.Lock(id.ContentHash)
	defer unlock()

	exists, err := c.store.ArtifactExists(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if exists {
		return c.complete(id), nil
	}

	indices, err := c.store.ListIndices(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if !chunkstore.IsComplete(indices, total) {
		c.logger.Debugf("Upload %s has %d/%d chunks", id.ContentHash, len(indices), total)
		return Result{Status: StatusPending}, nil
	}

	artifact, err := c.store.Assemble(ctx, id, total)
	if err != nil {
		return Result{}, fmt.Errorf("assemble %s: %w", id.ArtifactName(), err)
	}
	if err := c.ledger.Forget(ctx, id); err != nil {
		c.logger.Warnf("Failed to forget completed upload %s: %s", id.ContentHash, err)
	}

	c.logger.Donef("Upload %s complete: %s", id.ContentHash, artifact)
	return Result{Status: StatusComplete, Artifact: artifact}, nil
}

func (c *Coordinator) complete(id identity.Identity) Result {
	return Result{Status: StatusComplete, Artifact: c.store.ArtifactPath(id)}
}
