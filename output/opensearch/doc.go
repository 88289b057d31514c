// Package opensearch provides an output component that indexes log events
// into OpenSearch.
//
// # Overview
//
// The OpenSearch output subscribes to event subjects on NATS, accumulates
// events in a circular buffer, and ships them to OpenSearch as bulk
// requests addressed to a stable write alias. On startup it provisions
// everything the cluster needs for log storage: an index template with
// GELF field mappings, an ISM lifecycle policy for rollover and retention,
// and the initial dated write index. It implements the LogStream component
// interfaces for lifecycle management and observability.
//
// # Quick Start
//
// Index every ingested event into a local cluster:
//
//	config := opensearch.DefaultConfig()
//	config.URL = "https://localhost:9200"
//	config.IndexPrefix = "logstream-events"
//
//	rawConfig, _ := json.Marshal(config)
//	output, err := opensearch.NewOutput(rawConfig, deps)
//
// # Configuration
//
//   - URL, Username, Password: cluster endpoint and basic auth
//   - TLSSkipVerify: accept self-signed certificates (default: true, for
//     single-node clusters with the bundled security plugin)
//   - IndexPrefix: indices are named <prefix>-<date>-<n>, bulk requests go
//     to the <prefix>-write alias
//   - BatchSize: events per bulk request (default: 500)
//   - FlushIntervalSeconds: periodic flush cadence (default: 1)
//   - Workers: concurrent bulk requests (default: 2)
//   - BufferSize: events held in memory while requests are in flight
//     (default: 8192); the oldest events are dropped on overflow
//   - ShardCount, ReplicaCount, RefreshInterval: index settings applied
//     through the template
//   - RetentionDays, RolloverSizeGB, RolloverAgeHours: ISM policy knobs
//
// # Event Flow
//
//	NATS Subject → Circular Buffer → Batch → Worker Pool → Bulk API → Write Alias
//
// Events are buffered until a batch worth has accumulated (which kicks an
// immediate flush) or the flush ticker fires. Batches are indexed on a
// worker pool; when the pool queue is full the drain indexes inline, so a
// slow cluster applies backpressure to the flush loop instead of growing
// an unbounded queue. Stop drains the buffer and the pool before
// returning.
//
// # Index Management
//
// Setup provisions three things, all idempotent:
//
//   - An index template matching <prefix>-* with GELF mappings: keyword
//     fields for host, facility, and tags, text for the message fields,
//     and a dynamic template that maps unknown strings as text with a
//     .keyword subfield
//   - An ISM policy that rolls the write index over at RolloverSizeGB or
//     RolloverAgeHours and deletes indices after RetentionDays
//   - The initial <prefix>-<yyyy.mm.dd>-000001 index with the write alias
//     attached as is_write_index
//
// The alias move is a single atomic _aliases call, so rollover never
// leaves two write indices.
//
// # Delivery Semantics
//
// Delivery is at-most-once. A bulk request that fails outright loses its
// batch; per-document rejections (mapping conflicts) lose the rejected
// document. Both are counted and logged with the cluster's error reason.
// When events arrive faster than the cluster indexes them, the buffer
// drops the oldest events first and counts the drops.
//
// # Observability
//
// The component implements component.Discoverable:
//
//	health := output.Health()
//	// Healthy: running with a configured client
//	// ErrorCount: failed bulk requests and rejected documents
//
//	flow := output.DataFlow()
//	// MessagesPerSecond, BytesPerSecond: uptime-averaged index rates
//	// ErrorRate: failed events per attempted event
//
// Prometheus metrics (when a registry is wired) cover indexed, failed,
// and dropped event counts, batch sizes and durations, and bulk errors
// by type under the logstream_opensearch_* namespace.
//
// # Thread Safety
//
//   - The circular buffer serializes writes and reads internally
//   - Bulk requests run concurrently on the worker pool; per-batch
//     statistics are merged under a lock
//   - Counters use atomic operations
//
// # Testing
//
// Unit tests drive batching, overflow, and failure accounting against a
// fake bulk client. Integration tests need both NATS and a reachable
// cluster:
//
//	INTEGRATION_TESTS=1 OPENSEARCH_URL=https://localhost:9200 \
//	    go test -tags=integration ./output/opensearch -v
package opensearch
