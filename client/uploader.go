package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/bitrise-io/go-chunkstore/identity"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/retryhttp"
	"github.com/docker/go-units"
	"github.com/melbahja/got"
)

// Uploader handles resumable parallel chunk uploads with retry and hung detection.
type Uploader struct {
	config     Config
	api        apiClient
	httpClient *http.Client
	logger     log.Logger
	stats      *Stats
}

// New creates an Uploader talking to the server at baseURL.
func New(baseURL string, config Config, logger log.Logger) *Uploader {
	if config.Concurrency < 1 {
		config.Concurrency = DefaultConcurrency
	}
	if config.MaxChunkSize <= 0 {
		config.MaxChunkSize = DefaultMaxChunkSize
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = newHTTPClient(config.Concurrency)
	}
	if config.MaxRetryPerChunk < 1 {
		config.MaxRetryPerChunk = 1
	}

	return &Uploader{
		config:     config,
		api:        newAPIClient(retryhttp.NewClient(logger), baseURL, logger),
		httpClient: httpClient,
		logger:     logger,
		stats:      NewStats(),
	}
}

// UploadFile uploads the file at path under its MD5 identity and returns once the server
// has assembled it. Chunks the server already holds are not sent again.
func (u *Uploader) UploadFile(ctx context.Context, path, ext string) (*UploadResult, error) {
	hash, err := identity.ChecksumOfFile(path)
	if err != nil {
		return nil, fmt.Errorf("checksum %s: %w", path, err)
	}
	id, err := identity.Derive(hash, ext)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	chunkSize := u.config.ChunkSize
	if chunkSize <= 0 {
		chunkSize = OptimalChunkSizeBytes(info.Size(), u.config.MaxChunkSize)
	}

	provider, err := NewFileChunkProvider(path, chunkSize)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := provider.Close(); err != nil {
			u.logger.Warnf("Failed to close %s: %s", path, err)
		}
	}()

	u.logger.Infof("Uploading %s (%s) as %s in %d chunks", path, units.HumanSizeWithPrecision(float64(info.Size()), 3), id.ArtifactName(), provider.NumChunks())
	return u.Upload(ctx, id, provider)
}

// Upload sends the chunks of provider the server is missing for id.
//
// If the server recorded a different chunk count for id, from an earlier run with another
// chunk size, the unfinished upload is abandoned and started over once.
func (u *Uploader) Upload(ctx context.Context, id identity.Identity, provider ChunkProvider) (*UploadResult, error) {
	result, err := u.upload(ctx, id, provider)
	var statusErr *statusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusConflict {
		return result, err
	}

	u.logger.Warnf("Server holds %s with a different chunk count, restarting the upload: %s", id.ArtifactName(), statusErr.Body)
	if err := u.api.abandon(ctx, id); err != nil {
		return nil, fmt.Errorf("abandon %s: %w", id.ArtifactName(), err)
	}
	return u.upload(ctx, id, provider)
}

func (u *Uploader) upload(ctx context.Context, id identity.Identity, provider ChunkProvider) (*UploadResult, error) {
	numChunks := provider.NumChunks()
	if numChunks == 0 {
		return nil, errors.New("nothing to upload: provider has no chunks")
	}

	status, err := u.api.check(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("check upload status: %w", err)
	}
	if status.URL != "" {
		u.logger.Donef("%s is already uploaded: %s", id.ArtifactName(), status.URL)
		return &UploadResult{Artifact: status.URL, Skipped: numChunks}, nil
	}

	missing := missingIndices(status.UploadedList, numChunks)
	if len(missing) == 0 {
		// every chunk is stored but nothing assembled them; any chunk triggers assembly again
		missing = []int{numChunks - 1}
	}
	u.logger.Debugf("Server has %d/%d chunks of %s", numChunks-len(missing), numChunks, id.ArtifactName())

	artifact, err := u.uploadChunks(ctx, id, provider, missing)
	if err != nil {
		return nil, err
	}

	if artifact == "" {
		status, err := u.api.check(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("check upload status: %w", err)
		}
		if status.URL == "" {
			return nil, fmt.Errorf("upload of %s is incomplete, server has chunks %v of %d", id.ArtifactName(), status.UploadedList, numChunks)
		}
		artifact = status.URL
	}

	u.logger.Donef("Uploaded %d/%d chunks of %s (%s), artifact: %s", len(missing), numChunks, id.ArtifactName(), u.stats.Throughput(), artifact)
	return &UploadResult{
		Artifact: artifact,
		Uploaded: missing,
		Skipped:  numChunks - len(missing),
	}, nil
}

// Download fetches an assembled artifact, as returned in UploadResult.Artifact, to dest.
// Large artifacts are fetched in parallel ranges.
func (u *Uploader) Download(ctx context.Context, artifact, dest string) error {
	downloader := got.New()
	downloader.Client = u.api.httpClient.StandardClient()

	if err := downloader.Do(got.NewDownload(ctx, u.api.url(artifact), dest)); err != nil {
		return fmt.Errorf("download %s: %w", artifact, err)
	}
	return nil
}

// Stats returns the upload statistics.
func (u *Uploader) Stats() *Stats {
	return u.stats
}

// CloseIdleConnections closes idle connections in the HTTP client.
func (u *Uploader) CloseIdleConnections() {
	if transport, ok := u.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}

func missingIndices(uploaded []int, numChunks int) []int {
	have := make(map[int]bool, len(uploaded))
	for _, index := range uploaded {
		have[index] = true
	}
	missing := []int{}
	for i := 0; i < numChunks; i++ {
		if !have[i] {
			missing = append(missing, i)
		}
	}
	return missing
}

func (u *Uploader) uploadChunks(ctx context.Context, id identity.Identity, provider ChunkProvider, indices []int) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	numChunks := provider.NumChunks()
	resultChan := make(chan ChunkResult, len(indices))
	semaphore := make(chan struct{}, u.config.Concurrency)

	for _, index := range indices {
		go func(index int) {
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			artifact, err := u.uploadChunkWithRetry(ctx, id, provider, index, numChunks)
			resultChan <- ChunkResult{
				Index:    index,
				Artifact: artifact,
				Err:      err,
			}
		}(index)
	}

	artifact := ""
	var done []int
	for len(done) < len(indices) {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("upload cancelled while waiting for chunks: %w", ctx.Err())
		case result := <-resultChan:
			done = append(done, result.Index)
			if result.Err != nil {
				return "", fmt.Errorf("chunk %d failed: %w", result.Index, result.Err)
			}
			if result.Artifact != "" {
				artifact = result.Artifact
			}
		}
	}

	sort.Ints(done)
	u.logger.Debugf("Sent chunks %v of %s", done, id.ArtifactName())
	return artifact, nil
}

func (u *Uploader) uploadChunkWithRetry(ctx context.Context, id identity.Identity, provider ChunkProvider, index, totalChunks int) (string, error) {
	var uploadErr error

	for attempt := 0; attempt < u.config.MaxRetryPerChunk; attempt++ {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("chunk %d upload cancelled: %w", index, ctx.Err())
		default:
		}

		u.logger.Debugf("Uploading chunk %d/%d (attempt %d/%d) [finished=%d] [avg=%v]",
			index+1, totalChunks, attempt+1, u.config.MaxRetryPerChunk,
			u.stats.FinishedCount(), u.stats.Average().Round(time.Millisecond))

		start := time.Now()

		chunkCtx, cancelChunk := context.WithCancel(ctx)

		// no hung detection on the last attempt
		if attempt < u.config.MaxRetryPerChunk-1 && u.config.HungThreshold > 0 {
			go u.detectHungUpload(chunkCtx, cancelChunk, start, index)
		}

		var artifact string
		var size int64
		artifact, size, uploadErr = u.uploadChunk(chunkCtx, id, provider, index, totalChunks)
		hung := chunkCtx.Err() == context.Canceled && ctx.Err() == nil
		cancelChunk()

		if uploadErr == nil {
			took := time.Since(start)
			u.stats.Update(took, size)
			u.logger.Debugf("Chunk %d uploaded in %v", index, took.Round(time.Millisecond))
			return artifact, nil
		}

		var statusErr *statusError
		if errors.As(uploadErr, &statusErr) && !statusErr.retryable() {
			return "", fmt.Errorf("upload chunk %d: %w", index, uploadErr)
		}

		u.logger.Warnf("Chunk %d attempt %d failed: %v", index, attempt+1, uploadErr)

		if ctx.Err() != nil {
			return "", fmt.Errorf("chunk %d upload cancelled: %w", index, ctx.Err())
		}
		if hung {
			backoff := time.Duration((attempt+1)*2) * time.Second
			u.logger.Warnf("Chunk %d attempt %d cancelled (hung), retrying after %v", index, attempt+1, backoff)
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("chunk %d upload cancelled: %w", index, ctx.Err())
			case <-time.After(backoff):
			}
		}
	}

	return "", fmt.Errorf("upload chunk %d: %w", index, uploadErr)
}

func (u *Uploader) detectHungUpload(ctx context.Context, cancel context.CancelFunc, start time.Time, index int) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if u.stats.FinishedCount() > 0 {
				elapsed := time.Since(start)
				avg := u.stats.Average()
				if elapsed-avg > u.config.HungThreshold {
					u.logger.Warnf("Found hung chunk upload (chunk %d); canceling request after %s (avg: %s)",
						index, elapsed.Round(time.Second), avg.Round(time.Second))
					cancel()
					return
				}
			}
		}
	}
}

func (u *Uploader) uploadChunk(ctx context.Context, id identity.Identity, provider ChunkProvider, index, totalChunks int) (string, int64, error) {
	reader, err := provider.GetChunk(index)
	if err != nil {
		return "", 0, fmt.Errorf("get chunk %d: %w", index, err)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", 0, fmt.Errorf("read chunk %d: %w", index, err)
	}

	artifact, err := u.api.sendChunk(ctx, u.httpClient, id, index, totalChunks, data)
	if err != nil {
		return "", 0, err
	}
	return artifact, int64(len(data)), nil
}
