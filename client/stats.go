package client

import (
	"sync"
	"time"

	"github.com/docker/go-units"
)

// Stats tracks upload performance metrics for hung detection and reporting.
type Stats struct {
	sum            time.Duration
	bytes          int64
	finishedChunks int64
	mu             sync.Mutex
}

// NewStats creates a new Stats instance.
func NewStats() *Stats {
	return &Stats{}
}

// Update records a successful chunk upload.
func (s *Stats) Update(d time.Duration, size int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sum += d
	s.bytes += size
	s.finishedChunks++
}

// Average returns the average upload duration for completed chunks.
func (s *Stats) Average() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finishedChunks == 0 {
		return 0
	}
	return s.sum / time.Duration(s.finishedChunks)
}

// FinishedCount returns the number of completed chunk uploads.
func (s *Stats) FinishedCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishedChunks
}

// Bytes returns the number of payload bytes sent in completed chunks.
func (s *Stats) Bytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytes
}

// Throughput is the per-worker transfer rate, for example "12.5MB/s".
func (s *Stats) Throughput() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sum <= 0 {
		return "0B/s"
	}
	perSecond := float64(s.bytes) / s.sum.Seconds()
	return units.HumanSizeWithPrecision(perSecond, 3) + "/s"
}
