package dsarchive

import (
	"log/slog"

	"github.com/meigma/dsarchive/internal/backend"
)

// Option configures a Container.
type Option func(*config)

type config struct {
	mode           Mode
	compression    Compression
	compressionSet bool
	recordTag      string
	entryPrefix    string
	policy         NestingPolicy
	maxRecordSize  uint64
	decoderOpts    []backend.DecoderOption
	logger         *slog.Logger
}

func newConfig(opts []Option) config {
	cfg := config{
		mode:          ModeAuto,
		recordTag:     DefaultRecordTag,
		entryPrefix:   DefaultEntryPrefix,
		policy:        FailClosed,
		maxRecordSize: DefaultMaxRecordSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithMode selects the storage layout explicitly.
// ModeAuto (the default) sniffs the leading bytes of the source.
func WithMode(m Mode) Option {
	return func(c *config) {
		c.mode = m
	}
}

// WithCompression sets the compression of a flat stream.
// By default the compression is sniffed from the stream's magic bytes.
// It has no effect on archives.
func WithCompression(comp Compression) Option {
	return func(c *config) {
		c.compression = comp
		c.compressionSet = true
	}
}

// WithRecordTag sets the boundary tag name of flat containers (default "DataSet").
func WithRecordTag(tag string) Option {
	return func(c *config) {
		c.recordTag = tag
	}
}

// WithEntryPrefix sets the entry name prefix of archive containers (default "Entry").
func WithEntryPrefix(prefix string) Option {
	return func(c *config) {
		c.entryPrefix = prefix
	}
}

// WithNestingPolicy sets how an improperly nested start boundary is handled
// while indexing a flat stream. The default is FailClosed.
func WithNestingPolicy(p NestingPolicy) Option {
	return func(c *config) {
		c.policy = p
	}
}

// WithMaxRecordSize limits the bytes read by FetchRaw and Inspect.
// Set limit to 0 to disable the limit.
func WithMaxRecordSize(limit uint64) Option {
	return func(c *config) {
		c.maxRecordSize = limit
	}
}

// WithMaxDecoderMemory limits the maximum memory used by the zstd decoder.
// Set limit to 0 to disable the limit.
func WithMaxDecoderMemory(limit uint64) Option {
	return func(c *config) {
		c.decoderOpts = append(c.decoderOpts, backend.WithMaxDecoderMemory(limit))
	}
}

// WithDecoderConcurrency sets the zstd decoder concurrency (default: 1).
// Values < 0 are treated as 0 (use GOMAXPROCS).
func WithDecoderConcurrency(n int) Option {
	return func(c *config) {
		c.decoderOpts = append(c.decoderOpts, backend.WithDecoderConcurrency(n))
	}
}

// WithDecoderLowmem sets whether the zstd decoder should use low-memory mode (default: false).
func WithDecoderLowmem(enabled bool) Option {
	return func(c *config) {
		c.decoderOpts = append(c.decoderOpts, backend.WithDecoderLowmem(enabled))
	}
}

// WithLogger sets the logger for container diagnostics.
// By default nothing is logged.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}
