package attachment

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirosfoundation/go-as4sender/pkg/compression"
	"github.com/sirosfoundation/go-as4sender/pkg/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScope(t *testing.T) *resource.Scope {
	t.Helper()
	scope := resource.NewScope(t.TempDir(), nil)
	t.Cleanup(func() { scope.Close() })
	return scope
}

func readAll(t *testing.T, p StreamProvider) []byte {
	t.Helper()
	rc, err := p.Open()
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return data
}

func TestCreateFromBytes_Uncompressed(t *testing.T) {
	data := []byte("<Invoice/>")
	att, err := CreateFromBytes(nil, data, "application/xml",
		WithContentID("<payload-1@test>"),
		WithFilename("invoice.xml"),
		WithCharset("UTF-8"))
	require.NoError(t, err)

	_, isBytes := att.Source().(*BytesSource)
	assert.True(t, isBytes)
	assert.Equal(t, ReadMultiple, att.ReadMode())
	assert.Equal(t, "payload-1@test", att.ContentID())
	assert.Equal(t, "application/xml", att.MimeType())
	assert.Equal(t, "application/xml", att.UncompressedMimeType())
	assert.Nil(t, att.Compression())
	assert.Equal(t, "UTF-8", att.Charset())
	assert.Equal(t, "binary", att.TransferEncoding())

	assert.Equal(t, data, readAll(t, att))
	assert.Equal(t, data, readAll(t, att), "content must be re-readable")
}

func TestCreateFromBytes_GeneratesContentID(t *testing.T) {
	a, err := CreateFromBytes(nil, []byte("a"), "text/plain")
	require.NoError(t, err)
	b, err := CreateFromBytes(nil, []byte("b"), "text/plain")
	require.NoError(t, err)

	assert.NotEmpty(t, a.ContentID())
	assert.NotEqual(t, a.ContentID(), b.ContentID())
}

func TestCreateFromBytes_MissingMimeType(t *testing.T) {
	_, err := CreateFromBytes(nil, []byte("x"), " ")
	assert.ErrorIs(t, err, ErrMissingMimeType)
}

func TestCreateFromBytes_Compressed(t *testing.T) {
	scope := newScope(t)
	data := bytes.Repeat([]byte("<Line>42</Line>"), 500)

	att, err := CreateFromBytes(scope, data, "application/xml", WithCompression(compression.Gzip))
	require.NoError(t, err)

	fs, isFile := att.Source().(*FileSource)
	require.True(t, isFile)
	assert.Contains(t, scope.Files(), fs.Path())
	assert.True(t, strings.HasSuffix(fs.Path(), ".gz"))

	assert.Equal(t, "application/gzip", att.MimeType())
	assert.Equal(t, "application/xml", att.UncompressedMimeType())
	assert.Same(t, compression.Gzip, att.Compression())
	assert.Equal(t, ReadMultiple, att.ReadMode())

	compressed := readAll(t, att)
	plain, err := compression.NewCompressor().Decompress(compressed)
	require.NoError(t, err)
	assert.Equal(t, data, plain)

	require.NoError(t, scope.Close())
	_, err = os.Stat(fs.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestCreateFromBytes_CompressedNeedsScope(t *testing.T) {
	_, err := CreateFromBytes(nil, []byte("x"), "text/plain", WithCompression(compression.Gzip))
	assert.ErrorIs(t, err, ErrNoScope)
}

func TestCreateFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payload.xml")
	require.NoError(t, os.WriteFile(path, []byte("<a/>"), 0o600))

	t.Run("uncompressed reopens source file", func(t *testing.T) {
		att, err := CreateFromFile(nil, path, "application/xml")
		require.NoError(t, err)
		fs, ok := att.Source().(*FileSource)
		require.True(t, ok)
		assert.Equal(t, path, fs.Path())
		assert.Equal(t, []byte("<a/>"), readAll(t, att))
	})

	t.Run("compressed writes temp file", func(t *testing.T) {
		scope := newScope(t)
		att, err := CreateFromFile(scope, path, "application/xml", WithCompression(compression.Gzip))
		require.NoError(t, err)
		fs, ok := att.Source().(*FileSource)
		require.True(t, ok)
		assert.NotEqual(t, path, fs.Path())
		assert.Len(t, scope.Files(), 1)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := CreateFromFile(nil, filepath.Join(dir, "nope"), "application/xml")
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestCreateFromProvider(t *testing.T) {
	t.Run("read-once stays read-once", func(t *testing.T) {
		att, err := CreateFromProvider(nil, ReadOnceFrom(strings.NewReader("once")), "text/plain")
		require.NoError(t, err)
		assert.Equal(t, ReadOnce, att.ReadMode())
		assert.Equal(t, []byte("once"), readAll(t, att))

		_, err = att.Open()
		assert.ErrorIs(t, err, ErrAlreadyConsumed)
	})

	t.Run("read-once becomes read-multiple when compressed", func(t *testing.T) {
		scope := newScope(t)
		att, err := CreateFromProvider(scope, ReadOnceFrom(strings.NewReader("once")), "text/plain",
			WithCompression(compression.Gzip))
		require.NoError(t, err)
		assert.Equal(t, ReadMultiple, att.ReadMode())
		readAll(t, att)
		readAll(t, att)
	})

	t.Run("open func", func(t *testing.T) {
		calls := 0
		p := OpenFunc(func() (io.ReadCloser, error) {
			calls++
			return io.NopCloser(strings.NewReader("fresh")), nil
		})
		att, err := CreateFromProvider(nil, p, "text/plain")
		require.NoError(t, err)
		assert.Equal(t, ReadMultiple, att.ReadMode())
		readAll(t, att)
		readAll(t, att)
		assert.Equal(t, 2, calls)
	})

	t.Run("broken stream propagates", func(t *testing.T) {
		boom := errors.New("broken pipe")
		p := OpenFunc(func() (io.ReadCloser, error) { return nil, boom })
		_, err := CreateFromProvider(newScope(t), p, "text/plain", WithCompression(compression.Gzip))
		assert.ErrorIs(t, err, boom)
	})
}

func TestProperties_OrderedAndUnique(t *testing.T) {
	att, err := CreateFromBytes(nil, nil, "text/plain",
		WithProperty("b", "1"),
		WithProperty("a", "2"))
	require.NoError(t, err)

	att.SetProperty("c", "3")
	att.SetProperty("b", "changed")

	assert.Equal(t, []Property{{"b", "changed"}, {"a", "2"}, {"c", "3"}}, att.Properties())
}

func TestHeader(t *testing.T) {
	att, err := CreateFromBytes(nil, []byte("x"), "application/xml",
		WithContentID("part-1@test"),
		WithFilename("doc.xml"))
	require.NoError(t, err)

	part := att.Part()
	assert.Equal(t, att.Source(), part.Body)

	h := part.Header
	assert.Equal(t, "Attachment", h.Get("Content-Description"))
	assert.Equal(t, `attachment; filename="doc.xml"`, h.Get("Content-Disposition"))
	assert.Equal(t, "<part-1@test>", h.Get("Content-ID"))
	assert.Equal(t, "application/xml", h.Get("Content-Type"))
	assert.Equal(t, "binary", h.Get("Content-Transfer-Encoding"))
	assert.Len(t, h, 5)
}

func TestHeader_NoFilename(t *testing.T) {
	att, err := CreateFromBytes(nil, []byte("x"), "text/plain")
	require.NoError(t, err)

	h := att.Header()
	assert.Empty(t, h.Get("Content-Disposition"))
	assert.Len(t, h, 4)
}

func TestHeader_QuoteInFilenameWarns(t *testing.T) {
	var logs bytes.Buffer
	scope := resource.NewScope(t.TempDir(), slog.New(slog.NewTextHandler(&logs, nil)))
	t.Cleanup(func() { scope.Close() })

	att, err := CreateFromBytes(scope, []byte("x"), "text/plain", WithFilename(`we"ird.txt`))
	require.NoError(t, err)

	h := att.Header()
	assert.Equal(t, `attachment; filename="we"ird.txt"`, h.Get("Content-Disposition"))
	assert.Contains(t, logs.String(), "double quote")
}

func TestContentIDBrackets(t *testing.T) {
	assert.Equal(t, "<a@b>", AddContentIDBrackets("a@b"))
	assert.Equal(t, "<a@b>", AddContentIDBrackets("<a@b>"))
	assert.Equal(t, "a@b", ContentIDWithoutBrackets("<a@b>"))
	assert.Equal(t, "a@b", ContentIDWithoutBrackets("cid:a@b"))
}

func inboundPart(data []byte, mode ReadMode) InboundPart {
	h := textproto.MIMEHeader{}
	h.Set("Content-Type", "application/xml; charset=UTF-8")
	h.Set("Content-ID", "<in-1@peer>")
	h.Set("Content-Disposition", `attachment; filename="in.xml"`)

	var body StreamProvider
	if mode == ReadOnce {
		body = ReadOnceFrom(bytes.NewReader(data))
	} else {
		body = OpenFunc(func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		})
	}
	return InboundPart{Header: h, Body: body}
}

func TestCreateFromInboundPart_Threshold(t *testing.T) {
	tests := []struct {
		name     string
		size     int
		mode     ReadMode
		inMemory bool
		wantMode ReadMode
	}{
		{"exactly threshold stays in memory", InboundThreshold, ReadMultiple, true, ReadMultiple},
		{"one byte over is spooled", InboundThreshold + 1, ReadMultiple, false, ReadMultiple},
		{"small read-once source", 10, ReadOnce, true, ReadOnce},
		{"large read-once source is spooled", InboundThreshold * 2, ReadOnce, false, ReadMultiple},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scope := newScope(t)
			data := bytes.Repeat([]byte{'x'}, tt.size)

			att, err := CreateFromInboundPart(scope, inboundPart(data, tt.mode))
			require.NoError(t, err)

			_, isFile := att.Source().(*FileSource)
			assert.Equal(t, !tt.inMemory, isFile)
			assert.Equal(t, tt.inMemory, len(scope.Files()) == 0)
			assert.Equal(t, tt.wantMode, att.ReadMode())
			assert.Equal(t, data, readAll(t, att))

			assert.Equal(t, "in-1@peer", att.ContentID())
			assert.Equal(t, "application/xml", att.MimeType())
			assert.Equal(t, "UTF-8", att.Charset())
			assert.Equal(t, "in.xml", att.Filename())
		})
	}
}

func TestCreateFromInboundPart_InvalidContentType(t *testing.T) {
	part := inboundPart([]byte("x"), ReadMultiple)
	part.Header.Set("Content-Type", "/invalid")
	_, err := CreateFromInboundPart(newScope(t), part)
	assert.Error(t, err)
}
