package attachment

import (
	"bytes"
	"errors"
	"io"
	"os"
	"sync"
)

// ErrAlreadyConsumed is returned when a read-once stream is opened twice
var ErrAlreadyConsumed = errors.New("read-once stream already consumed")

// ReadMode tells whether a stream can be reopened
type ReadMode int

const (
	// ReadMultiple sources can be opened any number of times
	ReadMultiple ReadMode = iota
	// ReadOnce sources yield their content a single time
	ReadOnce
)

func (m ReadMode) String() string {
	if m == ReadOnce {
		return "read-once"
	}
	return "read-multiple"
}

// StreamProvider gives out fresh readers over the same content
type StreamProvider interface {
	Open() (io.ReadCloser, error)
	ReadMode() ReadMode
}

// Source is the content of an attachment. Its only implementations are
// *BytesSource, *FileSource and *ProviderSource.
type Source interface {
	StreamProvider
	isSource()
}

// BytesSource holds content in memory
type BytesSource struct {
	data []byte
}

func (s *BytesSource) isSource() {}

// Bytes returns the buffered content
func (s *BytesSource) Bytes() []byte { return s.data }

// Open returns a reader over the buffered content
func (s *BytesSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.data)), nil
}

// ReadMode is always ReadMultiple
func (s *BytesSource) ReadMode() ReadMode { return ReadMultiple }

// FileSource reopens a file on every read
type FileSource struct {
	path string
}

func (s *FileSource) isSource() {}

// Path returns the backing file
func (s *FileSource) Path() string { return s.path }

// Open opens the backing file
func (s *FileSource) Open() (io.ReadCloser, error) {
	return os.Open(s.path)
}

// ReadMode is always ReadMultiple
func (s *FileSource) ReadMode() ReadMode { return ReadMultiple }

// ProviderSource delegates to a caller supplied provider
type ProviderSource struct {
	provider StreamProvider
}

func (s *ProviderSource) isSource() {}

// Provider returns the wrapped provider
func (s *ProviderSource) Provider() StreamProvider { return s.provider }

// Open asks the provider for a new stream
func (s *ProviderSource) Open() (io.ReadCloser, error) {
	return s.provider.Open()
}

// ReadMode reports the provider's mode
func (s *ProviderSource) ReadMode() ReadMode { return s.provider.ReadMode() }

// OpenFunc adapts a function returning fresh streams to a read-multiple
// StreamProvider.
type OpenFunc func() (io.ReadCloser, error)

// Open calls f
func (f OpenFunc) Open() (io.ReadCloser, error) { return f() }

// ReadMode is ReadMultiple
func (f OpenFunc) ReadMode() ReadMode { return ReadMultiple }

type onceProvider struct {
	mu   sync.Mutex
	r    io.Reader
	used bool
}

// ReadOnceFrom wraps a reader that can only be consumed once, such as a
// network response body.
func ReadOnceFrom(r io.Reader) StreamProvider {
	return &onceProvider{r: r}
}

func (p *onceProvider) Open() (io.ReadCloser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.used {
		return nil, ErrAlreadyConsumed
	}
	p.used = true
	if rc, ok := p.r.(io.ReadCloser); ok {
		return rc, nil
	}
	return io.NopCloser(p.r), nil
}

func (p *onceProvider) ReadMode() ReadMode { return ReadOnce }
