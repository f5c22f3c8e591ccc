package s3

import (
	"github.com/ajitpratap0/sleuth/pkg/adapter/registry"
)

func init() {
	// Register the S3 adapter
	registry.Register("s3", New)

	// Register adapter metadata
	registry.RegisterInfo(&registry.AdapterInfo{
		Name:        "s3",
		Description: "Amazon S3 and compatible object stores, sampling text objects line by line",
		Capabilities: []string{
			"sampling",
			"compression",
			"custom_endpoints",
		},
		Example: "s3://my-bucket/exports/?region=us-east-1",
	})
}
