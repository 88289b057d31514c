// Package logstream provides a component-based platform for ingesting GELF
// log events and routing them to search, archive, and live-tail outputs.
//
// # Philosophy
//
// LogStream is a thin edge between log senders and the systems that store and
// search logs. Inputs speak the wire protocols senders already use (GELF over
// UDP and HTTP), normalization happens once at the edge, and everything
// downstream consumes plain JSON documents off NATS. The platform makes no
// assumptions about what the logs describe:
//
//   - Protocol handling: chunk reassembly, decompression, JSON decoding
//   - Normalization: timestamp coercion, field transforms, dotted-key expansion
//   - Routing: NATS subjects connect inputs to any number of outputs
//   - Delivery: OpenSearch bulk indexing, NDJSON archive, webhooks, live tail
//
// Application-specific parsing (grok patterns, log classification, alerting
// rules) belongs in consumers of the NATS stream, not in this module.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│        Service Manager              │  HTTP admin API, health,
//	│  (lifecycle, config, monitoring)    │  OpenAPI, metrics
//	└─────────────────────────────────────┘
//	           ↓ orchestrates
//	┌─────────────────────────────────────┐
//	│         Components                  │  GELF inputs,
//	│      (input → NATS → output)        │  outputs
//	└─────────────────────────────────────┘
//	           ↓ communicate via
//	┌─────────────────────────────────────┐
//	│         NATS Messaging              │  Subjects, JetStream
//	│        (pub/sub, streams)           │
//	└─────────────────────────────────────┘
//
// Data path:
//
//	┌─────────┐      ┌─────────┐
//	│ GELF UDP│      │ GELF    │
//	│ input   │      │ HTTP    │
//	└────┬────┘      └────┬────┘
//	     │ input.gelf.udp │ input.gelf.http
//	     └───────┬────────┘
//	             ↓ NATS
//	 ┌──────┬────┴─────┬──────────┬───────────┐
//	 ↓      ↓          ↓          ↓           ↓
//	File  OpenSearch  HTTPPost  WebSocket  MessageLogger
//	(archive) (index)  (webhook) (live tail) (debug ring)
//
// Each output subscribes independently. A slow or failed output never blocks
// the inputs or its siblings.
//
// # Ingest Pipeline
//
// Every datagram or HTTP body runs the same per-event pipeline inside the
// input component before publishing:
//
//  1. Decode (gelf.Decoder): reassemble chunked datagrams, sniff and undo
//     gzip/zlib compression
//  2. Build (gelf.BuildEvent): parse JSON, coerce the timestamp to
//     microsecond-precision UTC, tag parse failures instead of dropping them
//  3. Transform (gelf.Transformer): strip underscore prefixes, rename
//     reserved collisions, expand dotted keys into nested objects
//  4. Decorate: stamp ingest ID and receive time
//  5. Publish: NATS subject per input (input.gelf.udp, input.gelf.http)
//
// # Package Layout
//
// Pipeline:
//   - gelf: decoder, event builder, timestamp coercion, transformer
//   - input/gelfudp, input/gelfhttp: transport components
//   - output/file, output/opensearch, output/httppost, output/websocket
//
// Framework:
//   - component: lifecycle contracts, registry, ports, flow graph
//   - componentregistry: single registration point for all components
//   - service: service manager, component manager, admin HTTP, message logger
//   - config: layered JSON config with env overrides
//   - natsclient: NATS wrapper with circuit breaker and JetStream helpers
//
// Infrastructure:
//   - errors: classified error wrapping (transient/invalid/fatal)
//   - metric, health: prometheus registry and health aggregation
//   - pkg/buffer, pkg/cache, pkg/retry, pkg/worker: bounded buffering,
//     TTL/LRU caches, classified retry, worker pools
//   - pkg/security, pkg/tlsutil, pkg/acme: TLS and certificate management
//   - testutil: GELF fixtures and mocks shared across package tests
//
// # Usage
//
// Run the platform binary with a JSON config:
//
//	./bin/logstream --config configs/example.json
//
// Programmatic wiring follows the same path main() takes:
//
//	registry := component.NewRegistry()
//	if err := componentregistry.Register(registry); err != nil {
//	    log.Fatal(err)
//	}
//
//	serviceRegistry := service.NewServiceRegistry()
//	if err := service.RegisterAll(serviceRegistry); err != nil {
//	    log.Fatal(err)
//	}
//
//	manager := service.NewServiceManager(serviceRegistry)
//	if err := manager.ConfigureFromServices(cfg.Services, deps); err != nil {
//	    log.Fatal(err)
//	}
//	if err := manager.StartAll(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Operational Surface
//
//   - /health, /livez, /readyz: aggregate and per-service health
//   - /api/v1/components/: component CRUD, status, flow graph, gap analysis
//   - /metrics: prometheus registry (logstream_* metrics)
//   - cmd/schema-exporter: component config schemas as JSON Schema + OpenAPI
//
// # Delivery Semantics
//
// NATS core pub/sub gives at-most-once delivery between input and output.
// The archive output (output/file) is the loss-safe sink; the OpenSearch
// output favors throughput and sheds load oldest-first under sustained
// overload. Standard NATS timeout/retry semantics apply to publishes.
package logstream
