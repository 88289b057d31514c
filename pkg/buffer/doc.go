// Package buffer provides thread-safe circular buffers with configurable
// overflow policies, built-in statistics, and optional Prometheus metrics.
//
// # Quick Start
//
//	buf, err := buffer.NewCircularBuffer[[]byte](10000,
//		buffer.WithOverflowPolicy[[]byte](buffer.DropOldest),
//		buffer.WithMetrics[[]byte](registry, "gelf_udp"),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	err = buf.Write(datagram)
//	value, ok := buf.Read()
//
// # Overflow Policies
//
// Three behaviors when capacity is reached:
//
//   - DropOldest: Remove oldest item to make room (default)
//   - DropNewest: Reject new items when full
//   - Block: Write operations wait for available space
//
// With the Block policy, use WriteWithContext to bound the wait:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
//	defer cancel()
//	err := buf.WriteWithContext(ctx, event)
//
// # Observability
//
// Statistics are always on: atomic counters track every operation, and
// derived values (throughput, drop rate, utilization) are available via
// buf.Stats() with no external dependencies. Prometheus metrics are a
// separate, optional layer enabled with WithMetrics; they feed
// dashboards and alerting while Statistics serve programmatic access
// and tests. The two are tracked independently so Statistics keep
// working when metrics are disabled. Dual tracking costs a few
// nanoseconds per operation.
//
// # Thread Safety
//
// Multiple producers and consumers may operate concurrently. Counters
// are atomic, internal state is protected by sync.RWMutex, and the
// Block policy waits on sync.Cond.
//
// # Typical Uses
//
// Datagram buffering between a UDP listener and its decode loop:
//
//	udpBuffer, _ := buffer.NewCircularBuffer[[]byte](10000,
//		buffer.WithOverflowPolicy[[]byte](buffer.DropOldest),
//		buffer.WithMetrics[[]byte](registry, "udp_input"),
//	)
//
// Dropping with a callback so losses are logged:
//
//	evBuffer, _ := buffer.NewCircularBuffer[*Event](500,
//		buffer.WithOverflowPolicy[*Event](buffer.DropNewest),
//		buffer.WithDropCallback[*Event](func(e *Event) {
//			log.Printf("dropped event from %s", e.Host)
//		}),
//	)
//
// See buffer_test.go and examples_test.go for runnable examples.
package buffer
