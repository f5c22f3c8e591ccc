// Package adapter provides the backend access layer for Sleuth. Every data
// store the scanner can reach (relational databases, document stores,
// key-value stores, object storage, search indices, message streams, and
// plain filesystems) is wrapped in an adapter that exposes the same small
// contract to the scan engine.
//
// # Architecture Overview
//
// The adapter package is organized into several sub-packages:
//
//   - core: Defines the fundamental interfaces (Adapter, Streamer, Sampler,
//     Cursor) that all backends implement. An adapter connects, enumerates
//     scan units, and hands rows or sampled values to the engine.
//
//   - base: Shared plumbing used by concrete adapters: the connection retry
//     policy with exponential backoff, database/sql pool setup and a row
//     cursor for the SQL-backed adapters, and a fallback error classifier
//     for network-level failures.
//
//   - registry: Implements a factory pattern keyed by URL scheme. Adapters
//     self-register during initialization, so importing an adapter package
//     for side effects is all it takes to make its scheme resolvable.
//
//   - postgres, mysql, sqlite, snowflake, bigquery, mongodb, redis, kafka,
//     s3, gcs, elasticsearch, file: one package per backend. Each implement
//     the streaming path (Columns + OpenCursor) when the backend is
//     relational, or the sampling path (FetchSamples) when it is not.
//
// # Core Concepts
//
// Flat capability interfaces: there is no base struct to embed and no
// inheritance chain. A backend implements Adapter plus exactly one of
// Streamer or Sampler; the engine type-asserts to pick the path. Shared
// relational logic lives in base, called explicitly.
//
// Error classification: adapters translate driver errors into the structured
// types from pkg/errors before returning them. The retry policy and the run
// coordinator act on those types: retryable connection errors are retried,
// authentication and unreachable-service errors abort the run, anything else
// fails only the unit that hit it.
//
// # Example Usage
//
// Creating an adapter from a connection URL:
//
//	cfg := config.NewScanConfig("postgres://scanner@db.internal:5432/orders")
//
//	a, err := registry.Create("postgres", cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	if err := a.Connect(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer a.Disconnect(ctx)
//
//	units, err := a.ListUnits(ctx)
package adapter
