package cache

import (
	"container/list"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// ByteSource provides random access to the data being cached.
type ByteSource interface {
	io.ReaderAt

	// Size returns the total size of the data source in bytes.
	Size() int64

	// SourceID returns a stable identifier for the content. It is part of
	// the cache key, so sources with different content must not share it.
	SourceID() string
}

// rangeReader is implemented by sources that can stream a byte range,
// such as HTTP sources. Blocks are then fetched with one range request.
type rangeReader interface {
	ReadRange(off, length int64) (io.ReadCloser, error)
}

// DefaultBlockSize is the default block size.
const DefaultBlockSize int64 = 64 << 10

// DefaultMaxBytes is the default cache size limit.
const DefaultMaxBytes int64 = 32 << 20

// Stats reports cache activity.
type Stats struct {
	Hits   int64
	Misses int64
	Blocks int
	Bytes  int64
}

type blockKey struct {
	source string
	index  int64
}

type block struct {
	key  blockKey
	data []byte
}

// BlockCache keeps recently used source blocks in memory and evicts the
// least recently used ones beyond its size limit. It is safe for
// concurrent use.
type BlockCache struct {
	blockSize int64
	maxBytes  int64

	mu     sync.Mutex
	lru    *list.List // front = most recently used
	blocks map[blockKey]*list.Element
	bytes  int64

	fetchGroup singleflight.Group
	hits       atomic.Int64
	misses     atomic.Int64
}

// Option configures a BlockCache.
type Option func(*BlockCache)

// WithBlockSize sets the block size. Smaller blocks waste less memory on
// scattered reads; larger blocks need fewer source reads when scanning.
func WithBlockSize(n int64) Option {
	return func(c *BlockCache) {
		c.blockSize = n
	}
}

// WithMaxBytes sets the cache size limit. Values <= 0 disable the limit.
func WithMaxBytes(n int64) Option {
	return func(c *BlockCache) {
		c.maxBytes = n
	}
}

// New creates an empty BlockCache.
func New(opts ...Option) *BlockCache {
	c := &BlockCache{
		blockSize: DefaultBlockSize,
		maxBytes:  DefaultMaxBytes,
		lru:       list.New(),
		blocks:    make(map[blockKey]*list.Element),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Wrap returns a source that serves reads of src through the cache.
// The result also streams ranges, so flat records are still located with
// a single call.
func (c *BlockCache) Wrap(src ByteSource) (*Source, error) {
	switch {
	case src == nil:
		return nil, errors.New("block cache: source is nil")
	case c.blockSize <= 0 || c.blockSize > math.MaxInt32:
		return nil, fmt.Errorf("block cache: invalid block size %d", c.blockSize)
	case src.SourceID() == "":
		return nil, errors.New("block cache: source id is empty")
	}
	return &Source{src: src, cache: c, sourceID: src.SourceID()}, nil
}

// MaxBytes returns the configured size limit (0 = unlimited).
func (c *BlockCache) MaxBytes() int64 {
	return max(c.maxBytes, 0)
}

// SizeBytes returns the number of cached bytes.
func (c *BlockCache) SizeBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes
}

// Stats returns a snapshot of cache activity.
func (c *BlockCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Blocks: c.lru.Len(),
		Bytes:  c.bytes,
	}
}

// Prune evicts least recently used blocks until the cache holds at most
// targetBytes. It returns the number of bytes freed.
func (c *BlockCache) Prune(targetBytes int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pruneLocked(max(targetBytes, 0))
}

func (c *BlockCache) pruneLocked(targetBytes int64) int64 {
	var freed int64
	for c.bytes > targetBytes {
		back := c.lru.Back()
		if back == nil {
			break
		}
		b := c.lru.Remove(back).(*block) //nolint:errcheck // list only holds *block
		delete(c.blocks, b.key)
		c.bytes -= int64(len(b.data))
		freed += int64(len(b.data))
	}
	return freed
}

func (c *BlockCache) lookup(key blockKey) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.blocks[key]
	if !ok {
		return nil, false
	}
	c.lru.MoveToFront(el)
	return el.Value.(*block).data, true //nolint:errcheck // list only holds *block
}

func (c *BlockCache) store(key blockKey, data []byte) {
	size := int64(len(data))
	if c.maxBytes > 0 && size > c.maxBytes {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.blocks[key]; ok {
		return
	}
	c.blocks[key] = c.lru.PushFront(&block{key: key, data: data})
	c.bytes += size
	if c.maxBytes > 0 {
		c.pruneLocked(c.maxBytes)
	}
}

// getBlock returns the block, fetching it once even when several readers
// miss on it at the same time.
func (c *BlockCache) getBlock(key blockKey, fetch func() ([]byte, error)) ([]byte, error) {
	if data, ok := c.lookup(key); ok {
		c.hits.Add(1)
		return data, nil
	}
	flight := key.source + "\x00" + strconv.FormatInt(key.index, 10)
	v, err, _ := c.fetchGroup.Do(flight, func() (any, error) {
		if data, ok := c.lookup(key); ok {
			return data, nil
		}
		c.misses.Add(1)
		data, err := fetch()
		if err != nil {
			return nil, err
		}
		c.store(key, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil //nolint:errcheck // fetch always returns []byte
}

// Source is a ByteSource whose reads go through a BlockCache.
type Source struct {
	src      ByteSource
	cache    *BlockCache
	sourceID string
}

// Size returns the size of the wrapped source.
func (s *Source) Size() int64 {
	return s.src.Size()
}

// SourceID returns the identifier of the wrapped source.
func (s *Source) SourceID() string {
	return s.sourceID
}

// ReadAt fills p from the cached blocks covering [off, off+len(p)).
func (s *Source) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off < 0 {
		return 0, fmt.Errorf("read at %d: negative offset", off)
	}
	size := s.src.Size()
	if off >= size {
		return 0, io.EOF
	}
	want := min(int64(len(p)), size-off)
	bs := s.cache.blockSize

	var n int64
	for n < want {
		pos := off + n
		index := pos / bs
		blockStart := index * bs
		blockLen := min(bs, size-blockStart)

		data, err := s.cache.getBlock(blockKey{source: s.sourceID, index: index}, func() ([]byte, error) {
			return s.fetch(blockStart, blockLen)
		})
		if err != nil {
			return int(n), err
		}
		n += int64(copy(p[n:want], data[pos-blockStart:]))
	}
	if want < int64(len(p)) {
		return int(n), io.EOF
	}
	return int(n), nil
}

// ReadRange streams length bytes at off through the cache.
func (s *Source) ReadRange(off, length int64) (io.ReadCloser, error) {
	if off < 0 || length < 0 {
		return nil, fmt.Errorf("read range off=%d length=%d: negative value", off, length)
	}
	return io.NopCloser(io.NewSectionReader(s, off, length)), nil
}

func (s *Source) fetch(off, length int64) ([]byte, error) {
	if rr, ok := s.src.(rangeReader); ok {
		rc, err := rr.ReadRange(off, length)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		data := make([]byte, length)
		if _, err := io.ReadFull(rc, data); err != nil {
			return nil, err
		}
		return data, nil
	}

	data := make([]byte, length)
	n, err := s.src.ReadAt(data, off)
	if int64(n) == length {
		return data, nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return nil, err
}
