package redis

import (
	"github.com/ajitpratap0/sleuth/pkg/adapter/registry"
)

func init() {
	// Register the Redis adapter
	registry.Register("redis", New)
	registry.Register("rediss", New)

	// Register adapter metadata
	registry.RegisterInfo(&registry.AdapterInfo{
		Name:        "redis",
		Description: "Redis keyspaces, sampling keys by value type through SCAN",
		Capabilities: []string{
			"sampling",
			"namespace_filters",
		},
		Example: "redis://:pass@localhost:6379/0",
	})
}
