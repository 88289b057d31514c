// Package gelfudp provides a GELF UDP input component for receiving Graylog
// Extended Log Format messages.
//
// # Overview
//
// The GELF UDP input listens for GELF datagrams, reassembles chunked
// messages, decompresses zlib and gzip payloads, normalizes the resulting
// events, and publishes them to NATS. It implements the LogStream component
// interfaces for lifecycle management and observability.
//
// # Quick Start
//
// Create a GELF input on the conventional port with default normalization:
//
//	rawConfig := json.RawMessage(`{}`)
//	input, err := gelfudp.CreateInput(rawConfig, deps)
//
// Or listen somewhere else and keep dotted fields expanded:
//
//	rawConfig := json.RawMessage(`{
//	    "host": "10.0.0.5",
//	    "port": 12201,
//	    "nested_objects": true
//	}`)
//
// # Configuration
//
// The InputConfig struct controls the listener and the normalization passes:
//
//   - Host, Port: listen address when no network port is configured
//     (default: 0.0.0.0:12201)
//   - Remap: promote full_message or short_message onto message (default: true)
//   - StripUnderscore: remove the leading underscore from additional fields,
//     unless the stripped name would collide with a GELF core field
//     (default: true)
//   - NestedObjects: expand dotted field names like "http.status" into
//     nested objects and arrays (default: false)
//   - ReservedFields: override the core field names protected from stripping
//   - AnnotateEvents: stamp _ingest_id and _received_at on every event
//     (default: true)
//   - RebindBackoffSeconds: delay before rebinding after a fatal socket error
//     (default: 5)
//   - ChunkTTLSeconds: reassembly window for chunked messages (default: 5)
//
// A network input port with a "udp://host:port" subject takes precedence
// over the flat Host and Port fields.
//
// # Message Pipeline
//
// Every datagram runs through the same sequential pipeline:
//
//	UDP Socket → Chunk Decoder → Event Builder → Transformer → Buffer → NATS
//
// The chunk decoder recognizes the GELF chunk magic (0x1e 0x0f), caches
// fragments until all arrive, and decompresses the assembled payload.
// Datagrams without the magic pass through directly, with zlib and gzip
// detected by their leading bytes.
//
// The event builder parses the payload as a JSON object. Payloads that are
// not JSON objects still become events: the raw text lands on the message
// field and the event is tagged so downstream consumers can spot it. A
// numeric timestamp field is coerced to microsecond precision and replaces
// the event timestamp; the sender address becomes source_host.
//
// The transformer applies the configured passes in a fixed order: message
// remapping, underscore stripping, dotted-name expansion, then any
// registered decorators. A decorator error discards the event.
//
// # Chunked Messages
//
// GELF splits large messages into up to 128 chunks sharing an 8-byte message
// ID. Fragments may arrive in any order. Partial messages are dropped after
// the reassembly window expires, and a conflicting chunk count drops the
// partial message immediately. Completion, expiry, and the pending count are
// all visible in metrics.
//
// # Failure Handling
//
// Per-datagram failures never stop the listener:
//
//   - Undecodable datagrams are counted and dropped
//   - Non-JSON payloads become tagged fallback events
//   - Transform failures discard the single event
//
// Fatal socket errors stop the read loop; the component logs the error,
// waits the configured backoff, and rebinds. The backoff sleep is
// interruptible by Stop. Publish failures retry with the standard retry
// policy before the event is dropped.
//
// # Observability
//
// The component implements component.Discoverable:
//
//	health := input.Health()
//	// Healthy: running with a bound socket
//	// ErrorCount: datagrams and events that failed
//
//	dataFlow := input.DataFlow()
//	// MessagesPerSecond, BytesPerSecond, ErrorRate
//
// With a metrics registry wired, the component exports Prometheus counters
// for datagrams, published and dropped events, decode failures, parse
// fallbacks, socket errors and rebinds, plus a pending-chunks gauge and a
// publish latency histogram.
//
// # Thread Safety
//
// Start and Stop can be called from any goroutine. Counters use atomic
// operations; the socket and shutdown channels are guarded by a mutex.
//
// # Testing
//
// Run tests:
//
//	go test ./input/gelfudp -short      # Unit tests
//	go test ./input/gelfudp             # Includes testcontainers NATS tests
//	go test ./input/gelfudp -race       # Race detector
package gelfudp
