package file

import (
	"github.com/ajitpratap0/sleuth/pkg/adapter/registry"
)

func init() {
	// Register the file adapter
	registry.Register("file", New)

	// Register adapter metadata
	registry.RegisterInfo(&registry.AdapterInfo{
		Name:        "file",
		Description: "Local directory trees, sampling text files line by line",
		Capabilities: []string{
			"sampling",
			"compressed_content",
		},
		Example: "file:///var/exports?max_file_size_mb=64",
	})
}
