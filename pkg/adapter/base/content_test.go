package base

import (
	"bytes"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripCompression(t *testing.T) {
	stem, codec := StripCompression("access.log.gz")
	assert.Equal(t, "access.log", stem)
	assert.Equal(t, "gzip", codec)

	stem, codec = StripCompression("dump.csv.zst")
	assert.Equal(t, "dump.csv", stem)
	assert.Equal(t, "zstd", codec)

	stem, codec = StripCompression("events.jsonl.lz4")
	assert.Equal(t, "events.jsonl", stem)
	assert.Equal(t, "lz4", codec)

	stem, codec = StripCompression("plain.txt")
	assert.Equal(t, "plain.txt", stem)
	assert.Empty(t, codec)
}

func TestTextualName(t *testing.T) {
	assert.True(t, TextualName("users.csv"))
	assert.True(t, TextualName("exports/2024/users.csv.gz"))
	assert.True(t, TextualName("app.log.zst"))
	assert.False(t, TextualName("backup.tar.gz"))
	assert.False(t, TextualName("avatar.png"))
	assert.False(t, TextualName("binary"))
}

func TestOpenDecompressedGzip(t *testing.T) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte("alice@example.com\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, cleanup, err := OpenDecompressed(&buf, "mail.txt.gz")
	require.NoError(t, err)
	defer cleanup()

	samples, err := ScanLines(r, "mail.txt.gz", nil, 10)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, "alice@example.com", samples[0].Value)
}

func TestOpenDecompressedZstd(t *testing.T) {
	var buf bytes.Buffer
	w, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = w.Write([]byte("555-0100\n555-0101\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, cleanup, err := OpenDecompressed(&buf, "phones.txt.zst")
	require.NoError(t, err)
	defer cleanup()

	samples, err := ScanLines(r, "phones.txt.zst", nil, 10)
	require.NoError(t, err)
	assert.Len(t, samples, 2)
}

func TestOpenDecompressedLZ4(t *testing.T) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	_, err := w.Write([]byte("one line\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, cleanup, err := OpenDecompressed(&buf, "data.txt.lz4")
	require.NoError(t, err)
	defer cleanup()

	samples, err := ScanLines(r, "data.txt.lz4", nil, 10)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, "one line", samples[0].Value)
}

func TestOpenDecompressedPassthrough(t *testing.T) {
	r, cleanup, err := OpenDecompressed(strings.NewReader("raw"), "notes.txt")
	require.NoError(t, err)
	defer cleanup()

	samples, err := ScanLines(r, "notes.txt", nil, 10)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, "raw", samples[0].Value)
}

func TestOpenDecompressedBadHeader(t *testing.T) {
	_, _, err := OpenDecompressed(strings.NewReader("not gzip at all"), "broken.txt.gz")
	require.Error(t, err)
}

func TestScanLinesLimitAndBlanks(t *testing.T) {
	input := "first\n\n   \nsecond\nthird\n"
	samples, err := ScanLines(strings.NewReader(input), "f.txt", nil, 2)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, "first", samples[0].Value)
	assert.Equal(t, "second", samples[1].Value)
	assert.Equal(t, "f.txt", samples[0].Path)
}
