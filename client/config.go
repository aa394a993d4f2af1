package client

import (
	"net/http"
	"time"
)

const (
	minChunkSize = 1 * 1024 * 1024
	// DefaultMaxChunkSize is the default CHUNKSTORE_MAX_CHUNK_SIZE of the server.
	DefaultMaxChunkSize = 64 * 1024 * 1024
	// DefaultConcurrency is the number of chunks in flight per upload.
	DefaultConcurrency = 4

	// targetChunkCount is what OptimalChunkSizeBytes aims for before clamping.
	targetChunkCount = 16
)

// Config holds configuration for the uploader.
type Config struct {
	// Concurrency is the maximum number of parallel chunk uploads.
	// Default: DefaultConcurrency
	Concurrency int

	// ChunkSize is the size of every chunk but the last one.
	// Default: 0, which picks OptimalChunkSizeBytes for the file.
	ChunkSize int64

	// MaxChunkSize must not exceed the per-chunk limit the server is configured with.
	// Default: DefaultMaxChunkSize
	MaxChunkSize int64

	// MaxRetryPerChunk is the maximum number of attempts per chunk.
	// Default: 3
	MaxRetryPerChunk int

	// HungThreshold is the duration after which a chunk upload is considered hung
	// if it exceeds the average upload time by this amount.
	// Default: 30 seconds
	HungThreshold time.Duration

	// HTTPClient is used for chunk uploads.
	// If nil, a client with one connection per worker is used.
	HTTPClient *http.Client
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency:      DefaultConcurrency,
		MaxChunkSize:     DefaultMaxChunkSize,
		MaxRetryPerChunk: 3,
		HungThreshold:    30 * time.Second,
	}
}

func newHTTPClient(concurrency int) *http.Client {
	return &http.Client{
		// chunk timeouts are handled via context
		Timeout: 0,
		Transport: &http.Transport{
			MaxIdleConns:        concurrency,
			MaxIdleConnsPerHost: concurrency,
			MaxConnsPerHost:     concurrency,
			IdleConnTimeout:     30 * time.Second,
			TLSHandshakeTimeout: 5 * time.Second,
			Proxy:               http.ProxyFromEnvironment,
		},
	}
}

// OptimalChunkSizeBytes picks the chunk size for a file of totalSize bytes: about
// targetChunkCount chunks, rounded up to whole megabytes and clamped to [1MB, maxChunkSize].
// It depends on nothing else, so a resumed upload of the same file declares the same total
// from any machine.
func OptimalChunkSizeBytes(totalSize, maxChunkSize int64) int64 {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}

	cs := (totalSize + targetChunkCount - 1) / targetChunkCount
	cs = (cs + minChunkSize - 1) / minChunkSize * minChunkSize

	if cs < minChunkSize {
		cs = minChunkSize
	}
	if cs > maxChunkSize {
		cs = maxChunkSize
	}
	return cs
}
