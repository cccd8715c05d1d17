package transfer

import (
	"bytes"
	"io"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZipPackager_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	p, err := NewZipPackager(&buf, 6)
	require.NoError(t, err)

	payload := bytes.Repeat([]byte("abc"), 1000)
	require.NoError(t, p.Add("a.png", payload))
	require.NoError(t, p.Add("empty.txt", nil))
	assert.Equal(t, 2, p.Entries())
	require.NoError(t, p.Close())

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)

	assert.Equal(t, zip.Deflate, zr.File[0].Method)
	assert.Less(t, zr.File[0].CompressedSize64, zr.File[0].UncompressedSize64)
	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	assert.Equal(t, zip.Store, zr.File[1].Method)
}

func TestZipPackager_InvalidLevel(t *testing.T) {
	_, err := NewZipPackager(io.Discard, 10)
	assert.Error(t, err)
	_, err = NewZipPackager(io.Discard, -3)
	assert.Error(t, err)
	_, err = NewZipPackager(io.Discard, 0)
	assert.NoError(t, err)
}
