// Package sleuth is a data discovery engine that scans data stores for
// unprotected personal and sensitive data: emails, card numbers, national
// identifiers, credentials, and anything else the pattern catalog knows.
//
// One scan connects to a source through its adapter, enumerates the
// source's units (tables, collections, topics, objects, files), and
// streams or samples their values through the rule engine. Matches
// aggregate by (rule, location) with value deduplication; the run ends
// with a result document and a metrics snapshot.
//
// # Architecture
//
// The engine is organized around a few core pieces:
//
//   - pkg/adapter: one package per backend, all registered by URL scheme
//     in a shared registry. Relational sources stream rows in adaptive
//     batches; document, key-value, broker, and object sources sample a
//     bounded number of values per unit.
//
//   - pkg/rules: the pattern catalog and the match aggregation. Rules
//     come in four kinds (single regex, multi regex, token list, custom)
//     across three confidence tiers.
//
//   - pkg/scan: the run coordinator. Bounded unit concurrency, per-unit
//     timeouts and retries, column pruning, adaptive batch sizing, value
//     caching with early rejection, and run statistics.
//
//   - pkg/output: text and JSON renderings of a completed run.
//
// # Quick Start
//
// Scan a PostgreSQL database from code:
//
//	cfg := config.NewScanConfig("postgres://user@localhost:5432/app")
//	adapter, err := registry.Create("postgres", cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	scanner, err := scan.NewScanner(adapter, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := scanner.Run(ctx)
//
// Or from the command line:
//
//	sleuth scan postgres://user@localhost:5432/app --show-data
package sleuth
