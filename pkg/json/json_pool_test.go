package json

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testHit struct {
	Path   string `json:"path"`
	Table  string `json:"table"`
	Column string `json:"column"`
	Value  string `json:"value"`
	Rule   string `json:"rule"`
}

func sampleHits(n int) []testHit {
	hits := make([]testHit, n)
	for i := 0; i < n; i++ {
		hits[i] = testHit{
			Path:   "hr.employees.email",
			Table:  "hr.employees",
			Column: "email",
			Value:  "a@b.com",
			Rule:   "email",
		}
	}
	return hits
}

func TestMarshalRoundTrip(t *testing.T) {
	in := sampleHits(1)[0]

	data, err := Marshal(in)
	require.NoError(t, err)

	var out testHit
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestMarshalToWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, MarshalToWriter(&buf, sampleHits(1)[0]))
	assert.Contains(t, buf.String(), `"rule":"email"`)
}

func TestStreamingEncoderArray(t *testing.T) {
	var buf bytes.Buffer
	enc := NewStreamingEncoder(&buf, true)

	for _, h := range sampleHits(3) {
		require.NoError(t, enc.Encode(h))
	}
	require.NoError(t, enc.Close())

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "["))
	assert.True(t, strings.HasSuffix(out, "]"))
	assert.Equal(t, 2, strings.Count(out, "},"), "records separated by commas")
}

func TestStreamingEncoderLines(t *testing.T) {
	var buf bytes.Buffer
	enc := NewStreamingEncoder(&buf, false)

	for _, h := range sampleHits(3) {
		require.NoError(t, enc.Encode(h))
	}
	require.NoError(t, enc.Close())

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 3)
	for _, line := range lines {
		var h testHit
		assert.NoError(t, Unmarshal([]byte(line), &h))
	}
}

func TestBufferPoolReuse(t *testing.T) {
	buf := GetBuffer()
	buf.WriteString("scratch")
	PutBuffer(buf)

	again := GetBuffer()
	assert.Zero(t, again.Len(), "pooled buffer must come back reset")
	PutBuffer(again)
}

func BenchmarkMarshalHits(b *testing.B) {
	hits := sampleHits(100)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		for _, h := range hits {
			if _, err := Marshal(h); err != nil {
				b.Fatal(err)
			}
		}
	}

	b.ReportMetric(float64(len(hits)*b.N), "hits/op")
}
