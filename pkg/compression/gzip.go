package compression

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
)

// CompressionTypeGzip is the MIME type AS4 uses for GZIP compressed parts
const CompressionTypeGzip = "application/gzip"

// gzipCodec streams GZIP at a fixed compression level
type gzipCodec struct {
	level int
}

func (c gzipCodec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	zw, err := gzip.NewWriterLevel(w, c.level)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	return zw, nil
}

func (c gzipCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	return zr, nil
}

// Compressor compresses whole buffers with a registered mode
type Compressor struct {
	mode *Mode
}

// NewCompressor returns a compressor for the gzip mode
func NewCompressor() *Compressor {
	return &Compressor{mode: Gzip}
}

// NewCompressorForMode returns a compressor for an arbitrary registered mode
func NewCompressorForMode(mode *Mode) *Compressor {
	return &Compressor{mode: mode}
}

// Compress compresses data
func (c *Compressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := c.mode.Compress(&buf, bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress decompresses data
func (c *Compressor) Decompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := c.mode.Decompress(&buf, bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ShouldCompress reports whether compressing contentType is worthwhile
func ShouldCompress(contentType string) bool {
	switch contentType {
	case "application/gzip", "application/x-gzip", "application/zip",
		"image/jpeg", "image/png", "video/mp4", "audio/mp3":
		return false
	}
	return true
}
