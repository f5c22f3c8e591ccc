package bigquery

import (
	"github.com/ajitpratap0/sleuth/pkg/adapter/registry"
)

func init() {
	// Register the BigQuery adapter
	registry.Register("bigquery", New)

	// Register adapter metadata
	registry.RegisterInfo(&registry.AdapterInfo{
		Name:        "bigquery",
		Description: "Google BigQuery datasets, streaming tables through query jobs",
		Capabilities: []string{
			"streaming",
			"column_metadata",
		},
		Example: "bigquery://my-project/analytics?location=US",
	})
}
