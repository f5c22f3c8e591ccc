package kafka

import (
	"github.com/ajitpratap0/sleuth/pkg/adapter/registry"
)

func init() {
	// Register the Kafka adapter
	registry.Register("kafka", New)

	// Register adapter metadata
	registry.RegisterInfo(&registry.AdapterInfo{
		Name:        "kafka",
		Description: "Kafka topics, sampling retained messages with optional Avro decoding",
		Capabilities: []string{
			"sampling",
			"avro",
			"schema_registry",
		},
		Example: "kafka://broker:9092/events-?schema_registry=http://sr:8081",
	})
}
