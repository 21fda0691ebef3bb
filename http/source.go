// Package http serves containers over HTTP range requests.
//
// A [Source] satisfies dsarchive.ByteSource, so a container published on
// any server that honours Range headers can be opened without downloading
// it:
//
//	src, err := http.NewSource(ctx, "https://data.example.org/run-4711.xml")
//	...
//	c, err := dsarchive.New[*dataset.DataSet](src, dataset.Codec{})
//
// Uncompressed flat records are fetched with one range request each. The
// entity tag seen when the source was created is sent with every request,
// so a file replaced on the server fails loudly instead of yielding
// records from two different versions.
package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	nethttp "net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/meigma/dsarchive"
)

var (
	// ErrRangeUnsupported is returned when the server ignores Range headers.
	ErrRangeUnsupported = errors.New("http: range requests not supported")

	// ErrChanged is returned when the remote content changed since the
	// source was created.
	ErrChanged = errors.New("http: remote content changed")
)

// Source reads a remote container with HTTP range requests.
type Source struct {
	ctx          context.Context
	url          string
	client       *nethttp.Client
	headers      nethttp.Header
	logger       *slog.Logger
	size         int64
	etag         string
	lastModified string
	requests     atomic.Int64
}

var _ dsarchive.ByteSource = (*Source)(nil)

// Option configures a Source.
type Option func(*Source)

// WithClient sets the HTTP client (default http.DefaultClient).
func WithClient(client *nethttp.Client) Option {
	return func(s *Source) {
		s.client = client
	}
}

// WithHeader adds a header, such as Authorization, to every request.
func WithHeader(key, value string) Option {
	return func(s *Source) {
		if s.headers == nil {
			s.headers = make(nethttp.Header)
		}
		s.headers.Add(key, value)
	}
}

// WithLogger sets the logger for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) {
		s.logger = logger
	}
}

// NewSource probes url for its size and validators.
//
// ctx bounds the probe and every later read made through the source.
// Failures wrap dsarchive.ErrSourceUnavailable.
func NewSource(ctx context.Context, url string, opts ...Option) (*Source, error) {
	s := &Source{ctx: ctx, url: url}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = nethttp.DefaultClient
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}

	if err := s.probe(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", dsarchive.ErrSourceUnavailable, url, err)
	}
	s.logger.Debug("http source ready", "url", url, "size", s.size, "etag", s.etag)
	return s, nil
}

// Size returns the length of the remote content.
func (s *Source) Size() int64 {
	return s.size
}

// SourceID identifies the remote content by URL and validator.
func (s *Source) SourceID() string {
	switch {
	case s.etag != "":
		return "http:" + s.url + ":" + s.etag
	case s.lastModified != "":
		return "http:" + s.url + ":" + s.lastModified
	default:
		return "http:" + s.url + ":" + strconv.FormatInt(s.size, 10)
	}
}

// Requests returns the number of range requests issued so far.
func (s *Source) Requests() int64 {
	return s.requests.Load()
}

// ReadAt reads len(p) bytes at off with a single range request.
func (s *Source) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	rc, err := s.ReadRange(off, int64(len(p)))
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	n, err := io.ReadFull(rc, p[:min(int64(len(p)), s.size-off)])
	if err != nil {
		return n, err
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// ReadRange streams length bytes starting at off. Ranges running past the
// end are clipped; ranges starting at or after it return io.EOF.
func (s *Source) ReadRange(off, length int64) (io.ReadCloser, error) {
	switch {
	case off < 0 || length < 0:
		return nil, fmt.Errorf("http: invalid range off=%d length=%d", off, length)
	case length == 0:
		return io.NopCloser(bytes.NewReader(nil)), nil
	case off >= s.size:
		return nil, io.EOF
	}
	length = min(length, s.size-off)

	resp, err := s.get(off, off+length-1)
	if err != nil {
		return nil, err
	}
	return &body{Reader: io.LimitReader(resp.Body, length), rc: resp.Body}, nil
}

// probe learns the size from a one-byte range request; a server that
// answers it properly supports the reads made later.
func (s *Source) probe() error {
	resp, err := s.get(0, 0)
	if err != nil {
		return err
	}
	defer drain(resp.Body)

	size, err := totalFromContentRange(resp.Header.Get("Content-Range"))
	if err != nil {
		return err
	}
	s.size = size
	s.etag = resp.Header.Get("ETag")
	s.lastModified = resp.Header.Get("Last-Modified")
	return nil
}

// get issues a range request for [first, last] and checks the status.
func (s *Source) get(first, last int64) (*nethttp.Response, error) {
	req, err := nethttp.NewRequestWithContext(s.ctx, nethttp.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	for key, values := range s.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Accept-Encoding", "identity")
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", first, last))
	if s.etag != "" {
		req.Header.Set("If-Match", s.etag)
	} else if s.lastModified != "" {
		req.Header.Set("If-Unmodified-Since", s.lastModified)
	}

	s.requests.Add(1)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("range request", "url", s.url, "first", first, "last", last, "status", resp.StatusCode)

	switch resp.StatusCode {
	case nethttp.StatusPartialContent:
		return resp, nil
	case nethttp.StatusOK:
		drain(resp.Body)
		return nil, ErrRangeUnsupported
	case nethttp.StatusPreconditionFailed:
		drain(resp.Body)
		return nil, ErrChanged
	case nethttp.StatusRequestedRangeNotSatisfiable:
		drain(resp.Body)
		return nil, io.EOF
	default:
		drain(resp.Body)
		return nil, fmt.Errorf("http: range request failed: %s", resp.Status)
	}
}

// body limits a response to the requested range and drains it on close so
// the connection can be reused.
type body struct {
	io.Reader
	rc io.ReadCloser
}

func (b *body) Close() error {
	drain(b.rc)
	return nil
}

func drain(rc io.ReadCloser) {
	_, _ = io.Copy(io.Discard, rc)
	_ = rc.Close()
}

// totalFromContentRange returns the complete length from a
// "bytes first-last/total" header value.
func totalFromContentRange(v string) (int64, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(v), "bytes ")
	if !ok {
		return 0, fmt.Errorf("http: invalid Content-Range %q", v)
	}
	_, total, ok := strings.Cut(rest, "/")
	if !ok || total == "*" {
		return 0, fmt.Errorf("http: invalid Content-Range %q", v)
	}
	size, err := strconv.ParseInt(total, 10, 64)
	if err != nil || size < 0 {
		return 0, fmt.Errorf("http: invalid Content-Range %q", v)
	}
	return size, nil
}
