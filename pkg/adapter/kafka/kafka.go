// Package kafka implements the Kafka adapter on sarama. Topics are sampled
// with bounded partition reads from the oldest retained offset; Avro
// payloads decode through the schema registry when one is configured.
package kafka

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/ajitpratap0/sleuth/pkg/adapter/base"
	"github.com/ajitpratap0/sleuth/pkg/adapter/core"
	"github.com/ajitpratap0/sleuth/pkg/config"
	"github.com/ajitpratap0/sleuth/pkg/errors"
	"github.com/ajitpratap0/sleuth/pkg/logger"
)

// Adapter samples Kafka topics.
type Adapter struct {
	cfg      *config.ScanConfig
	source   *config.KafkaConfig
	client   sarama.Client
	registry *schemaRegistry
	log      *zap.Logger
}

// New builds a Kafka adapter from the scan configuration.
func New(cfg *config.ScanConfig) (core.Adapter, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid kafka url")
	}
	source, err := config.KafkaFromURL(u, &cfg.Security)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid kafka url")
	}

	a := &Adapter{
		cfg:    cfg,
		source: source,
		log:    logger.Get().With(zap.String("adapter", "kafka")),
	}
	if source.SchemaRegistryURL != "" {
		a.registry = newSchemaRegistry(source.SchemaRegistryURL, cfg.Timeouts.Connection)
	}
	return a, nil
}

// Name returns the registry scheme.
func (a *Adapter) Name() string { return "kafka" }

// Connect builds the sarama client against all configured brokers.
// Metadata retrieval on startup doubles as the reachability check.
func (a *Adapter) Connect(ctx context.Context) error {
	client, err := sarama.NewClient(a.source.Brokers, a.saramaConfig())
	if err != nil {
		return classify(err, "connect")
	}

	a.client = client
	a.log.Info("connected",
		zap.Strings("brokers", a.source.Brokers),
		zap.Bool("schema_registry", a.registry != nil))
	return nil
}

func (a *Adapter) saramaConfig() *sarama.Config {
	c := sarama.NewConfig()
	c.ClientID = "sleuth"
	c.Net.DialTimeout = a.cfg.Timeouts.Connection
	c.Consumer.Return.Errors = false

	if a.source.SASLUser != "" {
		c.Net.SASL.Enable = true
		c.Net.SASL.User = a.source.SASLUser
		c.Net.SASL.Password = a.source.SASLPassword
		c.Net.SASL.Mechanism = sarama.SASLTypePlaintext
	}
	return c
}

// Disconnect closes the client. Safe to call without a prior Connect.
func (a *Adapter) Disconnect(ctx context.Context) error {
	if a.client != nil {
		err := a.client.Close()
		a.client = nil
		return err
	}
	return nil
}

// ListUnits enumerates topics, dropping internal ones and anything outside
// the configured prefix.
func (a *Adapter) ListUnits(ctx context.Context) ([]string, error) {
	topics, err := a.client.Topics()
	if err != nil {
		return nil, classify(err, "list topics")
	}

	var units []string
	for _, topic := range topics {
		if strings.HasPrefix(topic, "__") || strings.HasPrefix(topic, "_confluent") {
			continue
		}
		if a.source.TopicPrefix != "" && !strings.HasPrefix(topic, a.source.TopicPrefix) {
			continue
		}
		units = append(units, topic)
	}
	sort.Strings(units)
	return units, nil
}

// FetchSamples reads up to limit values from the topic, spreading the
// message budget across partitions. Only retained offsets are consumed, so
// empty partitions cost nothing and the read never blocks on future
// messages.
func (a *Adapter) FetchSamples(ctx context.Context, unit string, limit int) ([]core.Sample, error) {
	budget := limit
	if a.source.MaxMessages > 0 && a.source.MaxMessages < budget {
		budget = a.source.MaxMessages
	}

	partitions, err := a.client.Partitions(unit)
	if err != nil {
		return nil, classify(err, "partitions of "+unit)
	}
	if len(partitions) == 0 {
		return nil, nil
	}
	perPartition := budget/len(partitions) + 1

	consumer, err := sarama.NewConsumerFromClient(a.client)
	if err != nil {
		return nil, classify(err, "open consumer")
	}
	defer consumer.Close()

	var samples []core.Sample
	for _, partition := range partitions {
		if len(samples) >= limit {
			break
		}
		samples, err = a.samplePartition(ctx, samples, consumer, unit, partition, perPartition, limit)
		if err != nil {
			return nil, err
		}
	}
	return samples, nil
}

func (a *Adapter) samplePartition(ctx context.Context, samples []core.Sample, consumer sarama.Consumer, topic string, partition int32, budget, limit int) ([]core.Sample, error) {
	oldest, err := a.client.GetOffset(topic, partition, sarama.OffsetOldest)
	if err != nil {
		return samples, classify(err, "offsets of "+topic)
	}
	newest, err := a.client.GetOffset(topic, partition, sarama.OffsetNewest)
	if err != nil {
		return samples, classify(err, "offsets of "+topic)
	}

	available := newest - oldest
	if available <= 0 {
		return samples, nil
	}
	want := int64(budget)
	if available < want {
		want = available
	}

	pc, err := consumer.ConsumePartition(topic, partition, oldest)
	if err != nil {
		return samples, classify(err, "consume "+topic)
	}
	defer pc.Close()

	for read := int64(0); read < want && len(samples) < limit; read++ {
		select {
		case msg := <-pc.Messages():
			samples = a.decode(ctx, samples, msg, limit)
		case <-ctx.Done():
			return samples, base.ClassifyNet(ctx.Err(), "consume "+topic)
		}
	}
	return samples, nil
}

// decode turns one message into samples. Confluent-framed Avro payloads
// flatten field by field through the registry codec; anything else is
// treated as one text value. Decode failures degrade to raw text rather
// than failing the topic.
func (a *Adapter) decode(ctx context.Context, samples []core.Sample, msg *sarama.ConsumerMessage, limit int) []core.Sample {
	path := messagePath(msg.Partition, msg.Offset)

	if a.registry != nil && isAvroFramed(msg.Value) {
		native, err := a.registry.Decode(ctx, msg.Value)
		if err == nil {
			return flatten(samples, path, "", native, limit)
		}
		a.log.Debug("avro decode failed, keeping raw payload",
			zap.String("topic", msg.Topic),
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
	}

	if len(samples) < limit && len(msg.Value) > 0 {
		samples = append(samples, core.Sample{Path: path, Value: string(msg.Value)})
	}
	return samples
}

// flatten walks a decoded Avro value depth-first, one sample per scalar
// leaf under its dotted field path.
func flatten(samples []core.Sample, path, field string, value interface{}, limit int) []core.Sample {
	if len(samples) >= limit {
		return samples
	}

	switch v := value.(type) {
	case map[string]interface{}:
		// Unions decode as single-entry maps keyed by type name; unwrap
		// them so the path stays the field name.
		if len(v) == 1 {
			for key, elem := range v {
				if strings.Contains(key, ".") || isAvroTypeName(key) {
					return flatten(samples, path, field, elem, limit)
				}
			}
		}
		for key, elem := range v {
			samples = flatten(samples, path, joinField(field, key), elem, limit)
		}
	case []interface{}:
		for _, elem := range v {
			samples = flatten(samples, path, field, elem, limit)
		}
	case string:
		if v != "" {
			samples = append(samples, core.Sample{Path: path, Column: field, Value: v})
		}
	case []byte:
		if len(v) > 0 {
			samples = append(samples, core.Sample{Path: path, Column: field, Value: string(v)})
		}
	case int32:
		samples = append(samples, core.Sample{Path: path, Column: field, Value: strconv.FormatInt(int64(v), 10)})
	case int64:
		samples = append(samples, core.Sample{Path: path, Column: field, Value: strconv.FormatInt(v, 10)})
	case float64:
		samples = append(samples, core.Sample{Path: path, Column: field, Value: strconv.FormatFloat(v, 'f', -1, 64)})
	}
	return samples
}

func isAvroTypeName(key string) bool {
	switch key {
	case "string", "bytes", "int", "long", "float", "double", "boolean", "null":
		return true
	}
	return false
}

func joinField(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func messagePath(partition int32, offset int64) string {
	return fmt.Sprintf("%d:%d", partition, offset)
}

// classify maps broker errors onto the engine's error taxonomy.
func classify(err error, operation string) error {
	if err == nil {
		return nil
	}

	switch {
	case stderrors.Is(err, sarama.ErrOutOfBrokers):
		return errors.Wrap(err, errors.ErrorTypeUnavailable, operation+": no reachable brokers")
	case stderrors.Is(err, sarama.ErrSASLAuthenticationFailed):
		return errors.Wrap(err, errors.ErrorTypeAuthentication, operation+": authentication failed")
	case stderrors.Is(err, sarama.ErrTopicAuthorizationFailed):
		return errors.Wrap(err, errors.ErrorTypePermission, operation+": topic not authorized")
	case stderrors.Is(err, sarama.ErrUnknownTopicOrPartition):
		return errors.Wrap(err, errors.ErrorTypeUnit, operation+": topic vanished")
	case stderrors.Is(err, sarama.ErrOffsetOutOfRange):
		return errors.Wrap(err, errors.ErrorTypeUnit, operation+": offsets expired mid-read")
	case stderrors.Is(err, sarama.ErrNotEnoughReplicas), stderrors.Is(err, sarama.ErrLeaderNotAvailable):
		return errors.Wrap(err, errors.ErrorTypeConnection, operation+": broker unavailable")
	}

	return base.ClassifyNet(err, operation)
}
