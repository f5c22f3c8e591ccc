package base

import (
	"bufio"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/ajitpratap0/sleuth/pkg/adapter/core"
	"github.com/ajitpratap0/sleuth/pkg/errors"
)

// textExtensions are the formats worth scanning line by line. Binary
// formats are skipped outright rather than matched against garbage.
var textExtensions = map[string]bool{
	".txt": true, ".text": true, ".csv": true, ".tsv": true,
	".json": true, ".jsonl": true, ".ndjson": true,
	".log": true, ".xml": true, ".yaml": true, ".yml": true,
	".html": true, ".htm": true, ".md": true, ".sql": true,
	".conf": true, ".ini": true, ".env": true, ".properties": true,
}

// maxLineBytes bounds one scanned line. Longer lines fail the unit; a
// "line" that big means the file is not really line-oriented.
const maxLineBytes = 1 << 20

// StripCompression splits a trailing compression extension off a name.
// Codec is empty when the name carries none.
func StripCompression(name string) (stem, codec string) {
	switch ext := strings.ToLower(path.Ext(name)); ext {
	case ".gz", ".gzip":
		return name[:len(name)-len(ext)], "gzip"
	case ".zst", ".zstd":
		return name[:len(name)-len(ext)], "zstd"
	case ".lz4":
		return name[:len(name)-len(ext)], "lz4"
	}
	return name, ""
}

// TextualName reports whether a file or object name looks like scannable
// text, compression suffix aside.
func TextualName(name string) bool {
	stem, _ := StripCompression(name)
	return textExtensions[strings.ToLower(path.Ext(stem))]
}

// OpenDecompressed wraps a raw content stream with the decompressor its
// name calls for. The returned cleanup releases decoder state and must run
// even when reading fails.
func OpenDecompressed(r io.Reader, name string) (io.Reader, func(), error) {
	_, codec := StripCompression(name)
	switch codec {
	case "gzip":
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, errors.Wrap(err, errors.ErrorTypeData, "gzip header does not parse")
		}
		return gz, func() { gz.Close() }, nil
	case "zstd":
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, errors.Wrap(err, errors.ErrorTypeData, "zstd header does not parse")
		}
		return dec, dec.Close, nil
	case "lz4":
		return lz4.NewReader(r), func() {}, nil
	}
	return r, func() {}, nil
}

// ScanLines appends one sample per non-empty line of r, located at path,
// until limit samples are held. Returns how far it got alongside any read
// failure so callers keep partial progress.
func ScanLines(r io.Reader, path string, samples []core.Sample, limit int) ([]core.Sample, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	for len(samples) < limit && scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		samples = append(samples, core.Sample{Path: path, Value: line})
	}
	if err := scanner.Err(); err != nil {
		return samples, errors.Wrap(err, errors.ErrorTypeData, "reading "+path+" failed")
	}
	return samples, nil
}
