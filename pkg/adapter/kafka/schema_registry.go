package kafka

import (
	"context"
	"encoding/binary"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/linkedin/goavro/v2"

	"github.com/ajitpratap0/sleuth/pkg/errors"
	"github.com/ajitpratap0/sleuth/pkg/json"
)

// schemaRegistry resolves Confluent schema IDs to Avro codecs. Codecs are
// immutable per ID, so the cache never invalidates.
type schemaRegistry struct {
	baseURL string
	client  *http.Client

	mu     sync.Mutex
	codecs map[uint32]*goavro.Codec
}

func newSchemaRegistry(baseURL string, timeout time.Duration) *schemaRegistry {
	return &schemaRegistry{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		codecs:  make(map[uint32]*goavro.Codec),
	}
}

// isAvroFramed reports whether a payload carries the Confluent wire
// format: a zero magic byte, four bytes of schema ID, then Avro binary.
func isAvroFramed(payload []byte) bool {
	return len(payload) > 5 && payload[0] == 0
}

// Decode unframes a payload and decodes it with the schema the registry
// holds for its ID.
func (r *schemaRegistry) Decode(ctx context.Context, payload []byte) (interface{}, error) {
	id := binary.BigEndian.Uint32(payload[1:5])

	codec, err := r.codec(ctx, id)
	if err != nil {
		return nil, err
	}
	native, _, err := codec.NativeFromBinary(payload[5:])
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, fmt.Sprintf("avro decode with schema %d failed", id))
	}
	return native, nil
}

func (r *schemaRegistry) codec(ctx context.Context, id uint32) (*goavro.Codec, error) {
	r.mu.Lock()
	if codec, ok := r.codecs[id]; ok {
		r.mu.Unlock()
		return codec, nil
	}
	r.mu.Unlock()

	schema, err := r.fetchSchema(ctx, id)
	if err != nil {
		return nil, err
	}
	codec, err := goavro.NewCodec(schema)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, fmt.Sprintf("schema %d does not parse", id))
	}

	r.mu.Lock()
	r.codecs[id] = codec
	r.mu.Unlock()
	return codec, nil
}

func (r *schemaRegistry) fetchSchema(ctx context.Context, id uint32) (string, error) {
	url := fmt.Sprintf("%s/schemas/ids/%d", r.baseURL, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeConfig, "invalid schema registry url")
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeConnection, "schema registry unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Newf(errors.ErrorTypeData, "schema registry returned %d for schema %d", resp.StatusCode, id)
	}

	var body struct {
		Schema string `json:"schema"`
	}
	dec := json.GetDecoder(resp.Body)
	defer json.PutDecoder(dec)
	if err := dec.Decode(&body); err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeData, "schema registry response does not parse")
	}
	return body.Schema, nil
}
