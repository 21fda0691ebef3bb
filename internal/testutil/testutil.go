// Package testutil provides in-memory sources and container builders for tests.
package testutil

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"sync"
)

// MockByteSource implements an in-memory byte source that counts reads.
type MockByteSource struct {
	data     []byte
	sourceID string

	mu      sync.Mutex
	reads   int
	offsets []int64
	failErr error
}

// NewMockByteSource returns a byte source backed by the provided data.
func NewMockByteSource(data []byte) *MockByteSource {
	sum := sha256.Sum256(data)
	return &MockByteSource{
		data:     data,
		sourceID: "mock:" + hex.EncodeToString(sum[:]),
	}
}

// ReadAt implements io.ReaderAt semantics over the backing slice.
func (m *MockByteSource) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	m.reads++
	m.offsets = append(m.offsets, off)
	failErr := m.failErr
	m.mu.Unlock()

	if failErr != nil {
		return 0, failErr
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if off+int64(n) >= int64(len(m.data)) {
		return n, io.EOF
	}
	return n, nil
}

// Size returns the total size of the backing data.
func (m *MockByteSource) Size() int64 {
	return int64(len(m.data))
}

// SourceID returns a stable identifier for the source data.
func (m *MockByteSource) SourceID() string {
	return m.sourceID
}

// Bytes returns the backing slice for tests that need to mutate data.
func (m *MockByteSource) Bytes() []byte {
	return m.data
}

// Reads returns the number of ReadAt calls so far.
func (m *MockByteSource) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// Offsets returns the offsets of all ReadAt calls so far.
func (m *MockByteSource) Offsets() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.offsets...)
}

// ResetCounters clears the read counters.
func (m *MockByteSource) ResetCounters() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads = 0
	m.offsets = nil
}

// FailWith makes every subsequent ReadAt return err. A nil err restores reads.
func (m *MockByteSource) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}
