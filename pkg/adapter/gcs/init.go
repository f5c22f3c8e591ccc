package gcs

import (
	"github.com/ajitpratap0/sleuth/pkg/adapter/registry"
)

func init() {
	// Register the GCS adapter
	registry.Register("gcs", New)
	registry.Register("gs", New)

	// Register adapter metadata
	registry.RegisterInfo(&registry.AdapterInfo{
		Name:        "gcs",
		Description: "Google Cloud Storage buckets, sampling text objects line by line",
		Capabilities: []string{
			"sampling",
			"compression",
		},
		Example: "gcs://my-bucket/exports/?credentials=/path/key.json",
	})
}
