package client

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
)

// FileChunkProvider reads chunks from a file on disk.
// Thread-safe for parallel chunk reads.
type FileChunkProvider struct {
	file          *os.File
	chunkSize     int64
	lastChunkSize int64
	numChunks     int
	mu            sync.Mutex
}

// NewFileChunkProvider splits the file at path into chunkSize pieces. An empty file is a
// single empty chunk, so it can still be uploaded and assembled.
func NewFileChunkProvider(path string, chunkSize int64) (*FileChunkProvider, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close() //nolint:errcheck
		return nil, fmt.Errorf("stat file: %w", err)
	}

	numChunks, lastChunkSize := chunkCount(info.Size(), chunkSize)
	return &FileChunkProvider{
		file:          file,
		chunkSize:     chunkSize,
		lastChunkSize: lastChunkSize,
		numChunks:     numChunks,
	}, nil
}

func chunkCount(size, chunkSize int64) (int, int64) {
	if size == 0 {
		return 1, 0
	}
	n := int((size + chunkSize - 1) / chunkSize)
	return n, size - int64(n-1)*chunkSize
}

// NumChunks returns the total number of chunks.
func (p *FileChunkProvider) NumChunks() int {
	return p.numChunks
}

// ChunkSize returns the size of the chunk at the given index.
func (p *FileChunkProvider) ChunkSize(index int) int64 {
	if index == p.numChunks-1 {
		return p.lastChunkSize
	}
	return p.chunkSize
}

// GetChunk returns a reader for the chunk at the given index.
// The data is read into memory to allow for retries.
func (p *FileChunkProvider) GetChunk(index int) (io.Reader, error) {
	if index < 0 || index >= p.numChunks {
		return nil, fmt.Errorf("chunk index %d out of range [0, %d)", index, p.numChunks)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	size := p.ChunkSize(index)
	offset := int64(index) * p.chunkSize

	chunk := make([]byte, size)
	n, err := p.file.ReadAt(chunk, offset)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read chunk %d: %w", index, err)
	}
	if int64(n) != size {
		return nil, fmt.Errorf("file changed while uploading: chunk %d is %d bytes, expected %d", index, n, size)
	}

	return bytes.NewReader(chunk), nil
}

// Close closes the underlying file.
func (p *FileChunkProvider) Close() error {
	if p.file != nil {
		return p.file.Close()
	}
	return nil
}

// ByteSliceChunkProvider provides chunks from pre-loaded byte slices.
type ByteSliceChunkProvider struct {
	chunks [][]byte
}

// NewByteSliceChunkProvider creates a ChunkProvider from byte slices.
func NewByteSliceChunkProvider(chunks [][]byte) *ByteSliceChunkProvider {
	return &ByteSliceChunkProvider{chunks: chunks}
}

// SplitBytes cuts data into chunkSize pieces. Empty data is one empty chunk.
func SplitBytes(data []byte, chunkSize int) *ByteSliceChunkProvider {
	if len(data) == 0 || chunkSize <= 0 {
		return NewByteSliceChunkProvider([][]byte{data})
	}
	var chunks [][]byte
	for start := 0; start < len(data); start += chunkSize {
		end := start + chunkSize
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[start:end])
	}
	return NewByteSliceChunkProvider(chunks)
}

// NumChunks returns the total number of chunks.
func (p *ByteSliceChunkProvider) NumChunks() int {
	return len(p.chunks)
}

// ChunkSize returns the size of the chunk at the given index.
func (p *ByteSliceChunkProvider) ChunkSize(index int) int64 {
	if index < 0 || index >= len(p.chunks) {
		return 0
	}
	return int64(len(p.chunks[index]))
}

// GetChunk returns a reader for the chunk at the given index.
func (p *ByteSliceChunkProvider) GetChunk(index int) (io.Reader, error) {
	if index < 0 || index >= len(p.chunks) {
		return nil, fmt.Errorf("chunk index %d out of range [0, %d)", index, len(p.chunks))
	}
	return bytes.NewReader(p.chunks[index]), nil
}
