package compression

import (
	"bytes"
	"compress/gzip"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressor_RoundTrip(t *testing.T) {
	compressor := NewCompressor()

	payloads := map[string][]byte{
		"empty":      {},
		"short":      []byte("x"),
		"xml":        []byte(`<Invoice xmlns="urn:test"><ID>1</ID></Invoice>`),
		"binary":     {0x00, 0xff, 0x10, 0x80, 0x7f},
		"repetitive": bytes.Repeat([]byte("test data "), 100000),
	}

	for name, p := range payloads {
		t.Run(name, func(t *testing.T) {
			compressed, err := compressor.Compress(p)
			require.NoError(t, err)
			assert.NotEmpty(t, compressed) // header is always present

			decompressed, err := compressor.Decompress(compressed)
			require.NoError(t, err)
			assert.Equal(t, len(p), len(decompressed))
			assert.True(t, bytes.Equal(p, decompressed))
		})
	}
}

func TestCompressor_LargeDataShrinks(t *testing.T) {
	largeData := bytes.Repeat([]byte("test data "), 100000)

	compressed, err := NewCompressor().Compress(largeData)
	require.NoError(t, err)
	assert.Less(t, len(compressed), len(largeData)/10)
}

func TestCompressor_InvalidInput(t *testing.T) {
	_, err := NewCompressor().Decompress([]byte("not gzip"))
	assert.Error(t, err)
}

func TestGzipMode(t *testing.T) {
	mode, err := Lookup("gzip")
	require.NoError(t, err)
	assert.Same(t, Gzip, mode)
	assert.Equal(t, "application/gzip", mode.MimeType)
	assert.Equal(t, ".gz", mode.FileExtension)

	byMime, err := LookupByMimeType("application/gzip")
	require.NoError(t, err)
	assert.Same(t, Gzip, byMime)
}

func TestGzipMode_StreamIsStandardGzip(t *testing.T) {
	var buf bytes.Buffer
	_, err := Gzip.Compress(&buf, bytes.NewReader([]byte("hello")))
	require.NoError(t, err)

	zr, err := gzip.NewReader(&buf)
	require.NoError(t, err)
	out, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))
}

type identityCodec struct{}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func (identityCodec) NewWriter(w io.Writer) (io.WriteCloser, error) { return nopWriteCloser{w}, nil }
func (identityCodec) NewReader(r io.Reader) (io.ReadCloser, error)  { return io.NopCloser(r), nil }

func TestRegister(t *testing.T) {
	mode := Register("identity-test", "application/x-identity", ".id", identityCodec{})
	t.Cleanup(func() {
		registryMu.Lock()
		delete(registry, "identity-test")
		registryMu.Unlock()
	})

	found, err := Lookup("identity-test")
	require.NoError(t, err)
	assert.Same(t, mode, found)
	assert.Contains(t, Modes(), "identity-test")

	out, err := NewCompressorForMode(mode).Compress([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, "abc", string(out))
}

func TestLookup_Unknown(t *testing.T) {
	_, err := Lookup("brotli")
	assert.ErrorIs(t, err, ErrUnknownMode)

	_, err = LookupByMimeType("application/x-brotli")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestShouldCompress(t *testing.T) {
	tests := []struct {
		contentType string
		want        bool
	}{
		{"application/xml", true},
		{"text/plain", true},
		{"application/json", true},
		{"application/gzip", false},
		{"application/zip", false},
		{"image/png", false},
	}
	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldCompress(tt.contentType))
		})
	}
}
