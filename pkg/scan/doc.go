// Package scan implements the scanning engine: it drives an adapter over
// every unit the backend exposes, evaluates each value against the active
// rule set, and aggregates matches with run-level metrics.
//
// # Architecture Overview
//
// A run is owned by a Scanner, which connects the adapter under the retry
// policy, enumerates units, and dispatches them onto a bounded pool of
// worker goroutines. Each unit moves through a small state machine
// (Pending, ColumnSelection, Streaming, Retrying, and the terminal states
// Completed, TimedOut, Failed) driven by the coordinator. Relational
// backends stream batches through a cursor; unstructured backends hand the
// engine sampled values instead.
//
// The per-value path is layered, each layer switchable from the
// optimization section of the config:
//
//   - early rejection discards values that no pattern could match, before
//     any regex runs
//   - the value cache memoizes the rule list for every distinct value seen
//     during the run
//   - per-pattern shape checks gate expensive regexes behind cheap length
//     and content tests
//   - evaluation of a value stops at its first matching rule unless the
//     caller asked to see all matches
//
// All shared state (the value cache, the statistics counters, the
// progress tracker) is run-scoped and injected into unit execution. There
// are no package-level globals, so concurrent runs in one process do not
// interfere.
//
// # Example Usage
//
//	cfg := config.NewScanConfig("postgres://scanner@db.internal/orders")
//
//	a, err := registry.Create("postgres", cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	s, err := scan.NewScanner(a, cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := s.Run(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	for _, m := range result.Matches {
//		fmt.Printf("%s: %s\n", m.Location, m.DisplayName)
//	}
package scan
