package chunkstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/bitrise-io/go-chunkstore/identity"
	"github.com/bitrise-io/go-chunkstore/internal"
	"github.com/bitrise-io/go-chunkstore/internal/keylock"
	"github.com/bitrise-io/go-chunkstore/uploaderr"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/docker/go-units"
	"github.com/google/uuid"
)

const (
	partSuffix     = ".part"
	assembleSuffix = ".assemble"
	stagingPattern = "*.{part,assemble}"
)

// FileStore keeps chunks and artifacts on the local filesystem:
//
//	files/{hash}.{ext}      assembled artifacts
//	chunks/{hash}/{index}   chunk buckets
//	.temp/                  staging for in-flight writes
type FileStore struct {
	layout  Layout
	osProxy internal.OsProxy
	logger  log.Logger
	locks   *keylock.Map
}

// NewFileStore expects the layout to exist already, see Layout.Ensure.
func NewFileStore(layout Layout, osProxy internal.OsProxy, logger log.Logger) *FileStore {
	return &FileStore{
		layout:  layout,
		osProxy: osProxy,
		logger:  logger,
		locks:   keylock.New(),
	}
}

// Store stages the payload in .temp and renames it into the bucket, so the chunk file is
// either absent or complete.
func (s *FileStore) Store(ctx context.Context, id identity.Identity, index int, payload io.Reader) error {
	if index < 0 {
		return uploaderr.NewValidationError("index", "must not be negative, got %d", index)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	bucket := s.bucketDir(id)
	if err := s.osProxy.MkdirAll(bucket, 0755); err != nil {
		return uploaderr.NewStorageError("create bucket", bucket, err)
	}

	tmpPath, size, err := s.stage(payload, partSuffix)
	if err != nil {
		return err
	}

	chunkPath := filepath.Join(bucket, strconv.Itoa(index))
	if err := s.osProxy.Rename(tmpPath, chunkPath); err != nil {
		s.discard(tmpPath)
		return uploaderr.NewStorageError("commit chunk", chunkPath, err)
	}

	s.logger.Debugf("Stored chunk %d of %s (%s)", index, id.ContentHash, units.HumanSizeWithPrecision(float64(size), 3))
	return nil
}

// ListIndices ...
func (s *FileStore) ListIndices(ctx context.Context, id identity.Identity) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bucket := s.bucketDir(id)
	entries, err := s.osProxy.ReadDir(bucket)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []int{}, nil
		}
		return nil, uploaderr.NewStorageError("list chunks", bucket, err)
	}

	indices := make([]int, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if index, ok := ParseIndex(entry.Name()); ok {
			indices = append(indices, index)
		}
	}
	return sortedIndices(indices), nil
}

// Count ...
func (s *FileStore) Count(ctx context.Context, id identity.Identity) (int, error) {
	indices, err := s.ListIndices(ctx, id)
	if err != nil {
		return 0, err
	}
	return len(indices), nil
}

// Assemble ...
func (s *FileStore) Assemble(ctx context.Context, id identity.Identity, total int) (string, error) {
	unlock := s.locks.Lock(id.ContentHash)
	defer unlock()

	artifactPath := s.artifactFile(id)
	exists, err := s.ArtifactExists(ctx, id)
	if err != nil {
		return "", err
	}
	if exists {
		s.logger.Debugf("Artifact %s already exists, skipping assembly", id.ArtifactName())
		return s.ArtifactPath(id), nil
	}

	indices, err := s.ListIndices(ctx, id)
	if err != nil {
		return "", err
	}
	if err := VerifyComplete(id, indices, total); err != nil {
		return "", err
	}

	start := time.Now()
	tmpPath, size, err := s.concatenate(ctx, id, total)
	if err != nil {
		return "", err
	}

	// A hard link fails with EEXIST instead of replacing, so the artifact is created once.
	if err := s.osProxy.Link(tmpPath, artifactPath); err != nil && !errors.Is(err, fs.ErrExist) {
		s.discard(tmpPath)
		return "", uploaderr.NewStorageError("commit artifact", artifactPath, err)
	}
	s.discard(tmpPath)

	if err := s.osProxy.RemoveAll(s.bucketDir(id)); err != nil {
		s.logger.Warnf("Failed to remove chunks of %s: %s", id.ContentHash, err)
	}

	s.logger.Infof("Assembled %s from %d chunks (%s) in %s", id.ArtifactName(), total,
		units.HumanSizeWithPrecision(float64(size), 3), time.Since(start).Round(time.Millisecond))
	return s.ArtifactPath(id), nil
}

// Remove ...
func (s *FileStore) Remove(ctx context.Context, id identity.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bucket := s.bucketDir(id)
	if err := s.osProxy.RemoveAll(bucket); err != nil {
		return uploaderr.NewStorageError("remove bucket", bucket, err)
	}
	return nil
}

// ArtifactExists ...
func (s *FileStore) ArtifactExists(_ context.Context, id identity.Identity) (bool, error) {
	artifactPath := s.artifactFile(id)
	info, err := s.osProxy.Stat(artifactPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, uploaderr.NewStorageError("stat artifact", artifactPath, err)
	}
	return !info.IsDir(), nil
}

// ArtifactPath returns files/{hash}.{ext}, which is also the URL path the artifact is served on.
func (s *FileStore) ArtifactPath(id identity.Identity) string {
	return path.Join(filesDirName, id.ArtifactName())
}

// OpenArtifact ...
func (s *FileStore) OpenArtifact(_ context.Context, id identity.Identity) (io.ReadCloser, int64, error) {
	artifactPath := s.artifactFile(id)
	file, err := s.osProxy.Open(artifactPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, uploaderr.ErrNotFound
		}
		return nil, 0, uploaderr.NewStorageError("open artifact", artifactPath, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close() //nolint:errcheck
		return nil, 0, uploaderr.NewStorageError("stat artifact", artifactPath, err)
	}
	if info.IsDir() {
		file.Close() //nolint:errcheck
		return nil, 0, uploaderr.ErrNotFound
	}
	return file, info.Size(), nil
}

// Sweep ...
func (s *FileStore) Sweep(ctx context.Context, olderThan time.Duration) (int, error) {
	matches, err := doublestar.Glob(s.osProxy.DirFS(s.layout.TempDir), stagingPattern)
	if err != nil {
		return 0, fmt.Errorf("match staging files: %w", err)
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, match := range matches {
		if err := ctx.Err(); err != nil {
			return removed, err
		}

		stagingPath := filepath.Join(s.layout.TempDir, filepath.FromSlash(match))
		info, err := s.osProxy.Stat(stagingPath)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return removed, uploaderr.NewStorageError("stat staging file", stagingPath, err)
		}
		if info.IsDir() || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := s.osProxy.Remove(stagingPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, uploaderr.NewStorageError("remove staging file", stagingPath, err)
		}
		removed++
	}

	if removed > 0 {
		s.logger.Infof("Swept %d staging file(s) older than %s", removed, olderThan)
	}
	return removed, nil
}

func (s *FileStore) concatenate(ctx context.Context, id identity.Identity, total int) (string, int64, error) {
	tmpPath := filepath.Join(s.layout.TempDir, uuid.NewString()+assembleSuffix)
	out, err := s.osProxy.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return "", 0, uploaderr.NewStorageError("create staging file", tmpPath, err)
	}

	fail := func(err error) (string, int64, error) {
		out.Close() //nolint:errcheck
		s.discard(tmpPath)
		return "", 0, err
	}

	var size int64
	bucket := s.bucketDir(id)
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		n, err := s.appendChunk(out, filepath.Join(bucket, strconv.Itoa(i)))
		if err != nil {
			return fail(err)
		}
		size += n
	}

	if err := out.Sync(); err != nil {
		return fail(uploaderr.NewStorageError("sync staging file", tmpPath, err))
	}
	if err := out.Close(); err != nil {
		s.discard(tmpPath)
		return "", 0, uploaderr.NewStorageError("close staging file", tmpPath, err)
	}
	return tmpPath, size, nil
}

func (s *FileStore) appendChunk(out io.Writer, chunkPath string) (int64, error) {
	in, err := s.osProxy.Open(chunkPath)
	if err != nil {
		return 0, uploaderr.NewStorageError("open chunk", chunkPath, err)
	}
	defer in.Close() //nolint:errcheck

	n, err := io.Copy(out, in)
	if err != nil {
		return n, uploaderr.NewStorageError("copy chunk", chunkPath, err)
	}
	return n, nil
}

func (s *FileStore) stage(payload io.Reader, suffix string) (string, int64, error) {
	tmpPath := filepath.Join(s.layout.TempDir, uuid.NewString()+suffix)
	file, err := s.osProxy.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return "", 0, uploaderr.NewStorageError("create staging file", tmpPath, err)
	}

	size, err := io.Copy(file, payload)
	if err == nil {
		err = file.Sync()
	}
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		s.discard(tmpPath)
		return "", 0, uploaderr.NewStorageError("write staging file", tmpPath, err)
	}
	return tmpPath, size, nil
}

func (s *FileStore) discard(p string) {
	if err := s.osProxy.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warnf("Failed to remove %s: %s", p, err)
	}
}

func (s *FileStore) bucketDir(id identity.Identity) string {
	return filepath.Join(s.layout.ChunksDir, id.ContentHash)
}

func (s *FileStore) artifactFile(id identity.Identity) string {
	return filepath.Join(s.layout.FilesDir, id.ArtifactName())
}
