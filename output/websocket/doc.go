// Package websocket provides a WebSocket output component that streams a
// live tail of ingested events to connected clients.
//
// # Overview
//
// The component subscribes to NATS subjects and fans every event out to all
// connected WebSocket clients. Events pass through verbatim, so a client sees
// exactly the JSON documents that were ingested. The tail is best effort: a
// client that cannot keep up loses frames rather than slowing ingestion or
// other clients.
//
// # Quick Start
//
// Start a live tail server on port 8081:
//
//	config := websocket.Config{
//	    Ports: &component.PortConfig{
//	        Inputs: []component.PortDefinition{
//	            {Name: "nats_input", Type: "nats", Subject: "input.gelf.>", Required: true},
//	        },
//	        Outputs: []component.PortDefinition{
//	            {Name: "websocket_server", Type: "network", Subject: "http://0.0.0.0:8081/ws"},
//	        },
//	    },
//	}
//
//	rawConfig, _ := json.Marshal(config)
//	output, err := websocket.CreateOutput(rawConfig, deps)
//
// # Configuration
//
//   - Port: TCP port to listen on (1024-65535, default 8081)
//   - Path: WebSocket endpoint path (default "/ws")
//   - Subjects: NATS subjects to subscribe to (from Ports config)
//   - SendQueueSize: per-client queue capacity (default 256)
//   - PingIntervalSeconds: keepalive ping cadence (default 30)
//
// # Event Flow
//
//	NATS subject → handleEvent → per-client send queue → write loop → client
//
// Each client gets a buffered send queue, a read loop, and a write loop. The
// write loop is the only goroutine that touches the connection for writes,
// which covers data frames, pings, and the close handshake.
//
// # Slow Clients
//
// Broadcasting never blocks on a client. When a client's send queue is full
// the frame is dropped for that client and counted:
//
//   - per-client drop counter (reported as disconnect reason "slow_client")
//   - component-wide eventsDropped counter (visible in Health details)
//   - logstream_websocket_messages_dropped_total Prometheus counter
//
// Other clients still receive the frame. A client that stops reading
// entirely is disconnected once a write exceeds the write deadline.
//
// # Keepalive
//
// The write loop pings each client on the configured interval and the read
// loop records pong responses. A sweep runs on the same interval and
// disconnects clients whose last pong is older than two intervals, so dead
// connections are reclaimed even when no events are flowing.
//
// # Lifecycle
//
//	output.Start(ctx)          // HTTP server, NATS subscriptions, sweeps
//	output.Stop(5*time.Second) // drain and shut down
//
// Stop closes the shutdown channel, shuts down the HTTP server, closes every
// client connection, waits for the read and write loops to exit, then
// unsubscribes from NATS.
//
// # Observability
//
// Health reports server state, connected client count, and drop totals.
// DataFlow reports frames and bytes per second averaged over uptime.
// Prometheus metrics are registered under logstream_websocket_* when a
// metrics registry is supplied: connections, disconnections by reason,
// messages received, sent and dropped, bytes, broadcast duration, and
// message size.
//
// # Client Example
//
//	const ws = new WebSocket('ws://localhost:8081/ws');
//	ws.onmessage = (event) => {
//	    const entry = JSON.parse(event.data);
//	    console.log(entry.host, entry.short_message);
//	};
//
// Payloads that are not valid JSON are delivered wrapped:
//
//	{"type": "raw_data", "subject": "...", "data": "...", "timestamp": "..."}
//
// # Thread Safety
//
// The client map is guarded by a RWMutex, counters use atomics, and
// removeClient is protected by sync.Once so concurrent disconnect paths
// cannot double-close a connection.
//
// # Testing
//
//	go test ./output/websocket                      # unit tests
//	INTEGRATION_TESTS=1 go test -tags=integration \
//	    ./output/websocket                          # NATS round trips
//
// # Security
//
// TLS is configured through security.Config, either ACME or manual
// certificates. CheckOrigin currently accepts all origins; put a reverse
// proxy in front for origin checks and authentication.
package websocket
