// Package s3store keeps chunks and artifacts in a single S3 bucket.
package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/bitrise-io/go-chunkstore/chunkstore"
	"github.com/bitrise-io/go-chunkstore/identity"
	"github.com/bitrise-io/go-chunkstore/internal/keylock"
	"github.com/bitrise-io/go-chunkstore/uploaderr"
	"github.com/bitrise-io/go-utils/retry"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/docker/go-units"
)

const (
	filesPrefix     = "files"
	chunksPrefix    = "chunks"
	maxDeleteBatch  = 1000
	defaultPartSize = 10 * 1024 * 1024
)

var errKeyNotFound = errors.New("key not found")

var _ chunkstore.Store = (*Store)(nil)

// API is the part of the S3 client the store calls.
type API interface {
	manager.UploadAPIClient
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	ListMultipartUploads(ctx context.Context, params *s3.ListMultipartUploadsInput, optFns ...func(*s3.Options)) (*s3.ListMultipartUploadsOutput, error)
}

// Config ...
type Config struct {
	Bucket string
	// Prefix is prepended to every key, e.g. "uploads/".
	Prefix string
	// Retries is the number of attempts per S3 call. Default: 3
	Retries uint
	// RetryWait is the pause between attempts. Default: 5 seconds
	RetryWait time.Duration
	// PartSize is the multipart part size used when merging. Default: 10MB
	PartSize int64
}

// Store implements chunkstore.Store on top of S3. Objects are written with a single
// PutObject or a completed multipart upload, both of which are atomic.
//
// Assembly is serialized per identity inside this process only.
type Store struct {
	client   API
	uploader *manager.Uploader
	config   Config
	logger   log.Logger
	locks    *keylock.Map
}

// New ...
func New(client API, config Config, logger log.Logger) (*Store, error) {
	if config.Bucket == "" {
		return nil, fmt.Errorf("bucket must not be empty")
	}
	if config.Retries == 0 {
		config.Retries = 3
	}
	if config.RetryWait == 0 {
		config.RetryWait = 5 * time.Second
	}
	if config.PartSize == 0 {
		config.PartSize = defaultPartSize
	}

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = config.PartSize
	})

	return &Store{
		client:   client,
		uploader: uploader,
		config:   config,
		logger:   logger,
		locks:    keylock.New(),
	}, nil
}

// Store puts the chunk in one object. Seekable payloads, such as multipart form files, are
// rewound and sent again when a put fails.
func (s *Store) Store(ctx context.Context, id identity.Identity, index int, payload io.Reader) error {
	if index < 0 {
		return uploaderr.NewValidationError("index", "must not be negative, got %d", index)
	}

	key := s.chunkKey(id, index)
	seeker, seekable := payload.(io.Seeker)
	var start int64
	if seekable {
		offset, err := seeker.Seek(0, io.SeekCurrent)
		if err != nil {
			seekable = false
		}
		start = offset
	}

	err := retry.Times(s.config.Retries).Wait(s.config.RetryWait).TryWithAbort(func(attempt uint) (error, bool) {
		if attempt > 0 {
			if _, err := seeker.Seek(start, io.SeekStart); err != nil {
				return fmt.Errorf("rewind chunk: %w", err), true
			}
			s.logger.Debugf("Retrying put chunk %s (attempt %d)", key, attempt+1)
		}

		_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.config.Bucket),
			Key:         aws.String(key),
			Body:        payload,
			ContentType: aws.String("application/octet-stream"),
		})
		if err != nil {
			return fmt.Errorf("put object: %w", err), !seekable || ctx.Err() != nil
		}
		return nil, true
	})
	if err != nil {
		return uploaderr.NewStorageError("put chunk", key, err)
	}

	s.logger.Debugf("Stored chunk %d of %s in s3://%s/%s", index, id.ContentHash, s.config.Bucket, key)
	return nil
}

// ListIndices ...
func (s *Store) ListIndices(ctx context.Context, id identity.Identity) ([]int, error) {
	keys, err := s.listKeys(ctx, s.bucketPrefix(id))
	if err != nil {
		return nil, err
	}

	indices := make([]int, 0, len(keys))
	for _, key := range keys {
		if n, ok := chunkstore.ParseIndex(strings.TrimPrefix(key, s.bucketPrefix(id))); ok {
			indices = append(indices, n)
		}
	}
	sort.Ints(indices)
	return indices, nil
}

// Count ...
func (s *Store) Count(ctx context.Context, id identity.Identity) (int, error) {
	indices, err := s.ListIndices(ctx, id)
	if err != nil {
		return 0, err
	}
	return len(indices), nil
}

// Assemble streams the chunks in index order into one upload, then deletes them.
func (s *Store) Assemble(ctx context.Context, id identity.Identity, total int) (string, error) {
	if total <= 0 {
		return "", uploaderr.NewValidationError("total", "must be positive, got %d", total)
	}

	unlock := s.locks.Lock(id.ContentHash)
	defer unlock()

	exists, err := s.ArtifactExists(ctx, id)
	if err != nil {
		return "", err
	}
	if exists {
		return s.ArtifactPath(id), nil
	}

	indices, err := s.ListIndices(ctx, id)
	if err != nil {
		return "", err
	}
	if err := chunkstore.VerifyComplete(id, indices, total); err != nil {
		return "", err
	}

	start := time.Now()
	artifactKey := s.artifactKey(id)
	size, err := s.streamMergeAndPut(ctx, id, total, artifactKey)
	if err != nil {
		return "", uploaderr.NewStorageError("merge chunks", artifactKey, err)
	}

	if err := s.deletePrefix(ctx, s.bucketPrefix(id)); err != nil {
		s.logger.Warnf("Failed to delete chunks of %s: %s", id.ContentHash, err)
	}

	s.logger.Infof("Assembled s3://%s/%s from %d chunks (%s) in %s", s.config.Bucket, artifactKey, total,
		units.HumanSizeWithPrecision(float64(size), 3), time.Since(start).Round(time.Millisecond))
	return s.ArtifactPath(id), nil
}

// Remove ...
func (s *Store) Remove(ctx context.Context, id identity.Identity) error {
	if err := s.deletePrefix(ctx, s.bucketPrefix(id)); err != nil {
		return uploaderr.NewStorageError("remove bucket", s.bucketPrefix(id), err)
	}
	return nil
}

// ArtifactExists ...
func (s *Store) ArtifactExists(ctx context.Context, id identity.Identity) (bool, error) {
	key := s.artifactKey(id)
	err := s.headObjectWithRetry(ctx, key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, errKeyNotFound) {
		return false, nil
	}
	return false, uploaderr.NewStorageError("head artifact", key, err)
}

// ArtifactPath uses the same files/{hash}.{ext} form as the disk store, without the key prefix.
func (s *Store) ArtifactPath(id identity.Identity) string {
	return path.Join(filesPrefix, id.ArtifactName())
}

// OpenArtifact ...
func (s *Store) OpenArtifact(ctx context.Context, id identity.Identity) (io.ReadCloser, int64, error) {
	key := s.artifactKey(id)
	out, err := s.getObjectWithRetry(ctx, key)
	if err != nil {
		if isNotFound(err) {
			return nil, 0, uploaderr.ErrNotFound
		}
		return nil, 0, uploaderr.NewStorageError("get artifact", key, err)
	}
	return out.Body, aws.ToInt64(out.ContentLength), nil
}

// Sweep aborts multipart uploads under the prefix that were started before the cutoff.
// Completed writes never leave staging objects behind.
func (s *Store) Sweep(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	input := &s3.ListMultipartUploadsInput{
		Bucket: aws.String(s.config.Bucket),
		Prefix: aws.String(s.config.Prefix),
	}

	aborted := 0
	for {
		out, err := s.client.ListMultipartUploads(ctx, input)
		if err != nil {
			return aborted, uploaderr.NewStorageError("list multipart uploads", s.config.Prefix, err)
		}

		for _, upload := range out.Uploads {
			if upload.Initiated == nil || !upload.Initiated.Before(cutoff) {
				continue
			}
			_, err := s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
				Bucket:   aws.String(s.config.Bucket),
				Key:      upload.Key,
				UploadId: upload.UploadId,
			})
			if err != nil {
				return aborted, uploaderr.NewStorageError("abort multipart upload", aws.ToString(upload.Key), err)
			}
			aborted++
		}

		if !aws.ToBool(out.IsTruncated) {
			break
		}
		input.KeyMarker = out.NextKeyMarker
		input.UploadIdMarker = out.NextUploadIdMarker
	}

	if aborted > 0 {
		s.logger.Infof("Aborted %d stale multipart upload(s) in s3://%s", aborted, s.config.Bucket)
	}
	return aborted, nil
}

func (s *Store) streamMergeAndPut(ctx context.Context, id identity.Identity, total int, artifactKey string) (int64, error) {
	pr, pw := io.Pipe()
	counter := &countingReader{r: pr}

	go func() {
		for i := 0; i < total; i++ {
			if err := s.copyChunk(ctx, pw, s.chunkKey(id, i)); err != nil {
				pw.CloseWithError(err) //nolint:errcheck
				return
			}
		}
		pw.Close() //nolint:errcheck
	}()

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.config.Bucket),
		Key:         aws.String(artifactKey),
		Body:        counter,
		ContentType: aws.String("application/octet-stream"),
	})
	// unblocks the writer goroutine when the upload stopped reading early
	pr.CloseWithError(err) //nolint:errcheck
	if err != nil {
		return 0, err
	}
	return counter.n, nil
}

func (s *Store) copyChunk(ctx context.Context, w io.Writer, key string) error {
	out, err := s.getObjectWithRetry(ctx, key)
	if err != nil {
		return fmt.Errorf("get chunk %s: %w", key, err)
	}
	defer out.Body.Close() //nolint:errcheck

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("copy chunk %s: %w", key, err)
	}
	return nil
}

// getObjectWithRetry retries opening the object. Reading the body is up to the caller.
func (s *Store) getObjectWithRetry(ctx context.Context, key string) (*s3.GetObjectOutput, error) {
	var out *s3.GetObjectOutput
	err := retry.Times(s.config.Retries).Wait(s.config.RetryWait).TryWithAbort(func(attempt uint) (error, bool) {
		var err error
		out, err = s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.config.Bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			if isNotFound(err) || ctx.Err() != nil {
				return err, true
			}
			if attempt > 0 {
				s.logger.Debugf("Retrying get object %s (attempt %d): %s", key, attempt+1, err)
			}
			return fmt.Errorf("get object: %w", err), false
		}
		return nil, true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) headObjectWithRetry(ctx context.Context, key string) error {
	return retry.Times(s.config.Retries).Wait(s.config.RetryWait).TryWithAbort(func(attempt uint) (error, bool) {
		_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.config.Bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			if isNotFound(err) {
				return errKeyNotFound, true
			}
			if attempt > 0 {
				s.logger.Debugf("Retrying head object %s (attempt %d): %s", key, attempt+1, err)
			}
			return fmt.Errorf("head object: %w", err), false
		}
		return nil, true
	})
}

func (s *Store) listKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := retry.Times(s.config.Retries).Wait(s.config.RetryWait).TryWithAbort(func(attempt uint) (error, bool) {
		keys = keys[:0]
		paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
			Bucket: aws.String(s.config.Bucket),
			Prefix: aws.String(prefix),
		})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return fmt.Errorf("list objects: %w", err), false
			}
			for _, obj := range page.Contents {
				keys = append(keys, aws.ToString(obj.Key))
			}
		}
		return nil, true
	})
	if err != nil {
		return nil, uploaderr.NewStorageError("list chunks", prefix, err)
	}
	return keys, nil
}

func (s *Store) deletePrefix(ctx context.Context, prefix string) error {
	keys, err := s.listKeys(ctx, prefix)
	if err != nil {
		return err
	}

	for start := 0; start < len(keys); start += maxDeleteBatch {
		end := start + maxDeleteBatch
		if end > len(keys) {
			end = len(keys)
		}

		objects := make([]types.ObjectIdentifier, 0, end-start)
		for _, key := range keys[start:end] {
			objects = append(objects, types.ObjectIdentifier{Key: aws.String(key)})
		}

		err := retry.Times(s.config.Retries).Wait(s.config.RetryWait).TryWithAbort(func(attempt uint) (error, bool) {
			_, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(s.config.Bucket),
				Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
			})
			if err != nil {
				return fmt.Errorf("delete objects: %w", err), false
			}
			return nil, true
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) bucketPrefix(id identity.Identity) string {
	return s.config.Prefix + chunksPrefix + "/" + id.ContentHash + "/"
}

func (s *Store) chunkKey(id identity.Identity, index int) string {
	return s.bucketPrefix(id) + strconv.Itoa(index)
}

func (s *Store) artifactKey(id identity.Identity) string {
	return s.config.Prefix + filesPrefix + "/" + id.ArtifactName()
}

func isNotFound(err error) bool {
	var apiError smithy.APIError
	if !errors.As(err, &apiError) {
		return false
	}
	switch apiError.(type) {
	case *types.NotFound, *types.NoSuchKey:
		return true
	}
	return apiError.ErrorCode() == "NotFound" || apiError.ErrorCode() == "NoSuchKey"
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
