package sqlite

import (
	"github.com/ajitpratap0/sleuth/pkg/adapter/registry"
)

func init() {
	// Register the SQLite adapter
	registry.Register("sqlite", New)
	registry.Register("sqlite3", New)

	// Register adapter metadata
	registry.RegisterInfo(&registry.AdapterInfo{
		Name:        "sqlite",
		Description: "SQLite database files, opened read-only",
		Capabilities: []string{
			"streaming",
			"column_metadata",
		},
		Example: "sqlite:///var/data/app.db",
	})
}
