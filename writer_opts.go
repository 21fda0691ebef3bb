package dsarchive

import "log/slog"

// WriterOption configures a Writer.
type WriterOption func(*writerConfig)

type writerConfig struct {
	mode        Mode
	compression Compression
	recordTag   string
	entryPrefix string
	headerName  string
	header      []byte
	logger      *slog.Logger
}

func newWriterConfig(opts []WriterOption) writerConfig {
	cfg := writerConfig{
		mode:        ModeFlat,
		recordTag:   DefaultRecordTag,
		entryPrefix: DefaultEntryPrefix,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.mode == ModeAuto {
		cfg.mode = ModeFlat
	}
	return cfg
}

// WriteWithMode selects the layout to write (default ModeFlat).
func WriteWithMode(m Mode) WriterOption {
	return func(c *writerConfig) {
		c.mode = m
	}
}

// WriteWithCompression sets the compression.
//
// Flat streams support every Compression. Archives compress each entry:
// CompressionNone stores entries, CompressionGzip uses deflate and
// CompressionZstd uses zip method 93.
func WriteWithCompression(comp Compression) WriterOption {
	return func(c *writerConfig) {
		c.compression = comp
	}
}

// WriteWithRecordTag sets the boundary tag name of flat containers (default "DataSet").
func WriteWithRecordTag(tag string) WriterOption {
	return func(c *writerConfig) {
		c.recordTag = tag
	}
}

// WriteWithEntryPrefix sets the entry name prefix of archives (default "Entry").
func WriteWithEntryPrefix(prefix string) WriterOption {
	return func(c *writerConfig) {
		c.entryPrefix = prefix
	}
}

// WriteWithHeader writes data before the first record.
//
// Archives store it as an entry called name (DefaultHeaderName when name is
// empty); it is not counted as a record when read back. Flat streams write
// it verbatim after the root element, so it must not contain boundary tags.
func WriteWithHeader(name string, data []byte) WriterOption {
	return func(c *writerConfig) {
		if name == "" {
			name = DefaultHeaderName
		}
		c.headerName = name
		c.header = data
	}
}

// WriteWithLogger sets the logger for writer diagnostics.
func WriteWithLogger(logger *slog.Logger) WriterOption {
	return func(c *writerConfig) {
		c.logger = logger
	}
}
