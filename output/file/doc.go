// Package file provides a file output component that archives log events to disk.
//
// # Overview
//
// The file output subscribes to event subjects on NATS and writes each event to
// an archive file, one JSON line per event by default. Writes are buffered and
// flushed periodically, and the archive rotates to a timestamped file once it
// grows past a configurable size. It implements the LogStream component
// interfaces for lifecycle management and observability.
//
// # Quick Start
//
// Archive every ingested event as NDJSON:
//
//	config := file.Config{
//	    Ports: &component.PortConfig{
//	        Inputs: []component.PortDefinition{
//	            {Name: "input", Type: "nats", Subject: "input.gelf.>", Required: true},
//	        },
//	    },
//	    Directory:  "/var/log/logstream",
//	    FilePrefix: "events",
//	    Format:     "jsonl",
//	}
//
//	rawConfig, _ := json.Marshal(config)
//	output, err := file.NewOutput(rawConfig, deps)
//
// # Configuration
//
//   - Directory: directory the archive lives in (created on Initialize)
//   - FilePrefix: base name, the live file is <prefix>.<format>
//   - Format: "jsonl" (one JSON object per line), "json" (pretty-printed),
//     or "raw" (event bytes verbatim)
//   - Append: append to an existing file instead of truncating (default in
//     DefaultConfig: true)
//   - BufferSize: events held in memory before an inline flush
//   - FlushIntervalSeconds: periodic flush cadence (default: 1)
//   - MaxFileBytes: rotation threshold, 0 disables rotation (default: 64 MiB)
//
// # Event Flow
//
//	NATS Subject → Buffer → Flush (inline or periodic) → Archive File
//
// Events are buffered until either the buffer fills (inline flush) or the
// flush ticker fires. Stop flushes whatever remains before closing the file.
//
// # Rotation
//
// When a write would push the live file past MaxFileBytes, the file is closed
// and renamed to
//
//	<prefix>-<yyyymmdd>T<hhmmss>.<format>
//
// and a fresh live file is opened. Rotations landing in the same second get a
// numeric suffix so no rotated file is ever overwritten. A single event larger
// than MaxFileBytes is written to its own file rather than rejected.
//
// Rotated files are never deleted; retention is left to external tooling.
//
// # Lifecycle
//
//	output.Initialize()          // create the directory
//	output.Start(ctx)            // open file, subscribe, start flush loop
//	output.Stop(5 * time.Second) // drain buffer, close file
//
// During shutdown:
//  1. Stop the flush goroutine
//  2. Flush buffered events to disk
//  3. Close the file handle
//
// # Observability
//
// The component implements component.Discoverable:
//
//	health := output.Health()
//	// Healthy: running with an open file
//	// ErrorCount: write and rotation failures
//
//	flow := output.DataFlow()
//	// MessagesPerSecond, BytesPerSecond: uptime-averaged write rates
//	// ErrorRate: errors per written event
//
// # Error Handling
//
// Write and rotation errors are logged and counted but never stop the
// component; the affected event is dropped and the loop continues. A failed
// rotation that leaves no open file drops the rest of that flush batch.
//
// # Thread Safety
//
//   - File writes and rotation are serialized by a mutex
//   - The buffer has its own lock, so slow disk writes do not block
//     message handling for long
//   - Metrics use atomic operations
//
// # Testing
//
// Unit tests drive the buffer, flush, and rotation paths against t.TempDir.
// Integration tests (INTEGRATION_TESTS=1) run the full NATS subscribe path
// against a containerized server:
//
//	INTEGRATION_TESTS=1 go test ./output/file -v
package file
