package compression

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
)

// ErrUnknownMode is returned when a compression mode id is not registered
var ErrUnknownMode = errors.New("unknown compression mode")

// Codec creates streaming compressors and decompressors
type Codec interface {
	NewWriter(w io.Writer) (io.WriteCloser, error)
	NewReader(r io.Reader) (io.ReadCloser, error)
}

// Mode is a registered compression mode
type Mode struct {
	// ID is the registry key, e.g. "gzip"
	ID string
	// MimeType is reported as the primary MIME type of compressed parts
	MimeType string
	// FileExtension is used for temporary files holding compressed data
	FileExtension string

	codec Codec
}

// Compress copies src into dst through the mode's compressor
func (m *Mode) Compress(dst io.Writer, src io.Reader) (int64, error) {
	w, err := m.codec.NewWriter(dst)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(w, src)
	if err != nil {
		w.Close()
		return n, fmt.Errorf("failed to compress data: %w", err)
	}
	if err := w.Close(); err != nil {
		return n, fmt.Errorf("failed to finish compressed stream: %w", err)
	}
	return n, nil
}

// Decompress copies the decompressed content of src into dst
func (m *Mode) Decompress(dst io.Writer, src io.Reader) (int64, error) {
	r, err := m.codec.NewReader(src)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	n, err := io.Copy(dst, r)
	if err != nil {
		return n, fmt.Errorf("failed to read compressed data: %w", err)
	}
	return n, nil
}

func (m *Mode) String() string {
	return m.ID
}

// Gzip is the only mode the AS4 profile defines
var Gzip = &Mode{
	ID:            "gzip",
	MimeType:      CompressionTypeGzip,
	FileExtension: ".gz",
	codec:         gzipCodec{level: gzip.DefaultCompression},
}

var (
	registryMu sync.RWMutex
	registry   = map[string]*Mode{Gzip.ID: Gzip}
)

// Register adds a compression mode. Registering an existing id replaces it.
func Register(id, mimeType, fileExtension string, codec Codec) *Mode {
	if codec == nil {
		panic("compression: nil codec for mode " + id)
	}
	m := &Mode{ID: id, MimeType: mimeType, FileExtension: fileExtension, codec: codec}

	registryMu.Lock()
	defer registryMu.Unlock()
	registry[id] = m
	return m
}

// Lookup returns the mode registered under id
func Lookup(id string) (*Mode, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	m, ok := registry[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, id)
	}
	return m, nil
}

// LookupByMimeType finds the mode reporting mimeType, as carried in the
// CompressionType part property.
func LookupByMimeType(mimeType string) (*Mode, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	for _, m := range registry {
		if m.MimeType == mimeType {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: mime type %q", ErrUnknownMode, mimeType)
}

// Modes lists registered mode ids in sorted order
func Modes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
