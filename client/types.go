// Package client uploads files to a chunkstore server in resumable chunks.
//
// The server is asked which chunks it already holds, and only the missing ones are sent, in
// parallel, with per-chunk retries and hung request detection.
package client

import (
	"io"
)

// ChunkProvider provides chunk data for upload.
type ChunkProvider interface {
	// NumChunks returns the total number of chunks.
	NumChunks() int

	// ChunkSize returns the size of the chunk at the given index.
	ChunkSize(index int) int64

	// GetChunk returns a reader for the chunk at the given index.
	// For retries, GetChunk may be called multiple times for the same index.
	GetChunk(index int) (io.Reader, error)
}

// ChunkResult represents the result of uploading a single chunk.
type ChunkResult struct {
	Index int
	// Artifact is set by the server on the chunk that completed the upload.
	Artifact string
	Err      error
}

// UploadResult ...
type UploadResult struct {
	// Artifact is the server side location of the assembled file, relative to the server root.
	Artifact string
	// Uploaded lists the chunk indices sent during this call.
	Uploaded []int
	// Skipped is the number of chunks the server already had.
	Skipped int
}

// CheckResult is what the server reports for an upload.
type CheckResult struct {
	URL          string `json:"url"`
	UploadedList []int  `json:"uploadedList"`
}
