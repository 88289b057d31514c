// Package httppost provides an HTTP POST output component that forwards log events to webhook endpoints.
//
// # Overview
//
// The HTTP POST output subscribes to event subjects on NATS and forwards each
// event to an HTTP/HTTPS endpoint as a POST request, with exponential-backoff
// retries for transient failures and configurable headers. It implements the
// LogStream component interfaces for lifecycle management and observability.
//
// # Quick Start
//
// Forward every ingested event to a webhook:
//
//	config := httppost.Config{
//	    Ports: &component.PortConfig{
//	        Inputs: []component.PortDefinition{
//	            {Name: "input", Type: "nats", Subject: "input.gelf.>", Required: true},
//	        },
//	    },
//	    URL:     "https://api.example.com/events",
//	    Timeout: 10,
//	    Headers: map[string]string{
//	        "Authorization": "Bearer my-token",
//	    },
//	}
//
//	rawConfig, _ := json.Marshal(config)
//	output, err := httppost.NewOutput(rawConfig, deps)
//
// # Configuration
//
//   - URL: target HTTP/HTTPS endpoint
//   - Headers: extra headers sent with every request
//   - Timeout: per-request timeout in seconds (default: 30)
//   - RetryCount: retries per event after the first attempt (default: 3)
//   - ContentType: Content-Type header (default: application/json)
//
// # Retry Logic
//
// Failed requests retry with exponential backoff starting at 100ms,
// doubling per attempt up to 5s, with additive jitter.
//
// Retryable conditions:
//   - Network errors (connection refused, timeout)
//   - 5xx server errors
//   - 408 Request Timeout and 429 Too Many Requests
//
// Non-retryable conditions:
//   - Other 4xx client errors (the endpoint rejected the event)
//   - Request construction failures
//
// An event that exhausts its retries is dropped and counted; the
// subscription keeps flowing.
//
// # Event Flow
//
//	NATS Subject → HTTP POST → Retry (transient failures) → Sent / Dropped
//
// # Response Handling
//
//	2xx: success
//	3xx: redirect (followed automatically)
//	4xx: rejected, not retried (except 408/429)
//	5xx: retried with backoff
//
// Response bodies are read and discarded to enable connection reuse.
//
// # TLS
//
// When the platform security config carries client TLS settings, the HTTP
// client is built with them: CA bundles, mTLS client certificates, or
// ACME-managed certificates with a background renewal loop that Stop shuts
// down.
//
// # Observability
//
// The component implements component.Discoverable:
//
//	health := output.Health()
//	// ErrorCount: events dropped after exhausting retries
//
//	flow := output.DataFlow()
//	// MessagesPerSecond, BytesPerSecond: uptime-averaged send rates
//	// ErrorRate: dropped / (sent + dropped)
//
// Forward failures are logged with a rate limit so a dead endpoint does not
// flood the log.
//
// # Thread Safety
//
//   - The HTTP client is shared safely across subscription callbacks
//   - Start/Stop can be called from any goroutine
//   - Metrics updates use atomic operations
//
// # Testing
//
// Unit tests drive the forward and retry paths against httptest servers.
// Integration tests (INTEGRATION_TESTS=1, -tags integration) run the full
// NATS subscribe path against a containerized server:
//
//	INTEGRATION_TESTS=1 go test -tags integration ./output/httppost -v
//
// # Limitations
//
//   - No request batching (one HTTP request per event)
//   - No circuit breaker; a dead endpoint costs the full backoff schedule
//     per event
//   - POST only
package httppost
