//go:build integration

package httppost_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/logstream/component"
	"github.com/c360/logstream/natsclient"
	"github.com/c360/logstream/output/httppost"
)

// Package-level shared test client to avoid Docker resource exhaustion
var (
	sharedTestClient *natsclient.TestClient
	sharedNATSClient *natsclient.Client
)

// TestMain sets up a single shared NATS container for all HTTP POST output tests
func TestMain(m *testing.M) {
	if os.Getenv("INTEGRATION_TESTS") != "" {
		testClient, err := natsclient.NewSharedTestClient(
			natsclient.WithJetStream(),
			natsclient.WithTestTimeout(5*time.Second),
			natsclient.WithStartTimeout(30*time.Second),
		)
		if err != nil {
			panic("Failed to create shared test client: " + err.Error())
		}

		sharedTestClient = testClient
		sharedNATSClient = testClient.Client
	}

	exitCode := m.Run()

	if sharedTestClient != nil {
		sharedTestClient.Terminate()
	}

	os.Exit(exitCode)
}

// getSharedNATSClient returns the shared NATS client for integration tests
func getSharedNATSClient(t *testing.T) *natsclient.Client {
	if os.Getenv("INTEGRATION_TESTS") == "" {
		t.Skip("Skipping integration test. Set INTEGRATION_TESTS=1 to run.")
	}
	if sharedNATSClient == nil {
		t.Fatal("Shared NATS client not initialized - TestMain should have created it")
	}
	return sharedNATSClient
}

func startWebhookOutput(t *testing.T, ctx context.Context, natsClient *natsclient.Client, config httppost.Config) component.LifecycleComponent {
	t.Helper()

	rawConfig, err := json.Marshal(config)
	require.NoError(t, err)

	comp, err := httppost.NewOutput(rawConfig, component.Dependencies{NATSClient: natsClient})
	require.NoError(t, err)

	output, ok := comp.(component.LifecycleComponent)
	require.True(t, ok)

	require.NoError(t, output.Initialize())
	require.NoError(t, output.Start(ctx))

	// Give the subscription time to settle before publishing
	time.Sleep(100 * time.Millisecond)

	return output
}

func webhookConfig(serverURL, subject string, retryCount int) httppost.Config {
	return httppost.Config{
		Ports: &component.PortConfig{
			Inputs: []component.PortDefinition{
				{Name: "input", Type: "nats", Subject: subject, Required: true},
			},
		},
		URL:         serverURL,
		Timeout:     5,
		RetryCount:  retryCount,
		ContentType: "application/json",
	}
}

// TestIntegration_ForwardEvents tests NATS events being forwarded via HTTP POST
func TestIntegration_ForwardEvents(t *testing.T) {
	natsClient := getSharedNATSClient(t)

	receivedMessages := make([][]byte, 0)
	var mu sync.Mutex

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		buf, _ := io.ReadAll(r.Body)

		mu.Lock()
		receivedMessages = append(receivedMessages, buf)
		mu.Unlock()

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	output := startWebhookOutput(t, ctx, natsClient, webhookConfig(server.URL, "test.webhook.forward", 0))
	defer output.Stop(5 * time.Second)

	events := []map[string]any{
		{"seq": 1, "message": "first event", "source_host": "10.0.0.1"},
		{"seq": 2, "message": "second event", "source_host": "10.0.0.2"},
		{"seq": 3, "message": "third event", "source_host": "10.0.0.3"},
	}

	for _, ev := range events {
		data, err := json.Marshal(ev)
		require.NoError(t, err)
		require.NoError(t, natsClient.Publish(ctx, "test.webhook.forward", data))
	}

	time.Sleep(500 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, receivedMessages, 3, "Should have received 3 HTTP POSTs")

	for i, received := range receivedMessages {
		var ev map[string]any
		require.NoError(t, json.Unmarshal(received, &ev))
		assert.Equal(t, float64(i+1), ev["seq"])
	}
}

// TestIntegration_CustomHeaders tests HTTP POST with custom headers
func TestIntegration_CustomHeaders(t *testing.T) {
	natsClient := getSharedNATSClient(t)

	receivedHeaders := make(map[string]string)
	var mu sync.Mutex

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		receivedHeaders["X-Custom-Header"] = r.Header.Get("X-Custom-Header")
		receivedHeaders["Authorization"] = r.Header.Get("Authorization")
		mu.Unlock()

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	config := webhookConfig(server.URL, "test.webhook.headers", 0)
	config.Headers = map[string]string{
		"X-Custom-Header": "custom-value",
		"Authorization":   "Bearer token123",
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	output := startWebhookOutput(t, ctx, natsClient, config)
	defer output.Stop(5 * time.Second)

	data, err := json.Marshal(map[string]any{"message": "with headers"})
	require.NoError(t, err)
	require.NoError(t, natsClient.Publish(ctx, "test.webhook.headers", data))

	time.Sleep(500 * time.Millisecond)

	mu.Lock()
	assert.Equal(t, "custom-value", receivedHeaders["X-Custom-Header"])
	assert.Equal(t, "Bearer token123", receivedHeaders["Authorization"])
	mu.Unlock()
}

// TestIntegration_RetryOnServerError tests the backoff loop against a flaky endpoint
func TestIntegration_RetryOnServerError(t *testing.T) {
	natsClient := getSharedNATSClient(t)

	attemptCount := 0
	var mu sync.Mutex

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		attemptCount++
		currentAttempt := attemptCount
		mu.Unlock()

		if currentAttempt < 3 {
			w.WriteHeader(http.StatusInternalServerError)
		} else {
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	output := startWebhookOutput(t, ctx, natsClient, webhookConfig(server.URL, "test.webhook.retry", 3))
	defer output.Stop(5 * time.Second)

	data, err := json.Marshal(map[string]any{"message": "retry me"})
	require.NoError(t, err)
	require.NoError(t, natsClient.Publish(ctx, "test.webhook.retry", data))

	// Backoff delays are 100ms then 200ms plus jitter
	time.Sleep(2 * time.Second)

	mu.Lock()
	assert.Equal(t, 3, attemptCount, "Should have attempted 3 times (initial + 2 retries)")
	mu.Unlock()
}

// TestIntegration_ClientErrorNotRetried verifies a 4xx rejection is final
// even when retries are configured.
func TestIntegration_ClientErrorNotRetried(t *testing.T) {
	natsClient := getSharedNATSClient(t)

	attemptCount := 0
	var mu sync.Mutex

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		attemptCount++
		mu.Unlock()
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	output := startWebhookOutput(t, ctx, natsClient, webhookConfig(server.URL, "test.webhook.reject", 3))
	defer output.Stop(5 * time.Second)

	data, err := json.Marshal(map[string]any{"message": "rejected"})
	require.NoError(t, err)
	require.NoError(t, natsClient.Publish(ctx, "test.webhook.reject", data))

	// Long enough for the full backoff schedule if it were retried
	time.Sleep(2 * time.Second)

	mu.Lock()
	assert.Equal(t, 1, attemptCount, "4xx should not be retried")
	mu.Unlock()

	health := output.(component.Discoverable).Health()
	assert.Greater(t, health.ErrorCount, 0)
}

// TestIntegration_StatusCodes tests health accounting across response codes
func TestIntegration_StatusCodes(t *testing.T) {
	natsClient := getSharedNATSClient(t)

	tests := []struct {
		name       string
		subject    string
		statusCode int
		expectOK   bool
	}{
		{"200 OK", "test.webhook.status.200-ok", http.StatusOK, true},
		{"201 Created", "test.webhook.status.201-created", http.StatusCreated, true},
		{"204 No Content", "test.webhook.status.204-nocontent", http.StatusNoContent, true},
		{"400 Bad Request", "test.webhook.status.400-badrequest", http.StatusBadRequest, false},
		{"500 Internal Error", "test.webhook.status.500-error", http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			receivedCount := 0
			var mu sync.Mutex

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				mu.Lock()
				receivedCount++
				mu.Unlock()
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			output := startWebhookOutput(t, ctx, natsClient, webhookConfig(server.URL, tt.subject, 0))
			defer output.Stop(5 * time.Second)

			data, err := json.Marshal(map[string]any{"status": tt.statusCode})
			require.NoError(t, err)
			require.NoError(t, natsClient.Publish(ctx, tt.subject, data))

			time.Sleep(500 * time.Millisecond)

			mu.Lock()
			assert.Equal(t, 1, receivedCount, "HTTP endpoint should be called once")
			mu.Unlock()

			health := output.(component.Discoverable).Health()
			if tt.expectOK {
				assert.Equal(t, 0, health.ErrorCount, "Should have no errors for successful status codes")
			} else {
				assert.Greater(t, health.ErrorCount, 0, "Should have errors for failed status codes")
			}
		})
	}
}

// TestIntegration_MultipleSubjects forwards events from several inputs to one webhook
func TestIntegration_MultipleSubjects(t *testing.T) {
	natsClient := getSharedNATSClient(t)

	receivedMessages := make([]map[string]any, 0)
	var mu sync.Mutex

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf, _ := io.ReadAll(r.Body)

		var msg map[string]any
		json.Unmarshal(buf, &msg)

		mu.Lock()
		receivedMessages = append(receivedMessages, msg)
		mu.Unlock()

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	config := httppost.Config{
		Ports: &component.PortConfig{
			Inputs: []component.PortDefinition{
				{Name: "udp_events", Type: "nats", Subject: "test.webhook.multi.udp", Required: true},
				{Name: "http_events", Type: "nats", Subject: "test.webhook.multi.http", Required: true},
			},
		},
		URL:         server.URL,
		Timeout:     5,
		RetryCount:  0,
		ContentType: "application/json",
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	output := startWebhookOutput(t, ctx, natsClient, config)
	defer output.Stop(5 * time.Second)

	data1, err := json.Marshal(map[string]any{"transport": "udp", "message": "from udp"})
	require.NoError(t, err)
	require.NoError(t, natsClient.Publish(ctx, "test.webhook.multi.udp", data1))

	data2, err := json.Marshal(map[string]any{"transport": "http", "message": "from http"})
	require.NoError(t, err)
	require.NoError(t, natsClient.Publish(ctx, "test.webhook.multi.http", data2))

	time.Sleep(500 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, receivedMessages, 2, "Should have received 2 HTTP POSTs")

	transports := make([]string, 2)
	for i, msg := range receivedMessages {
		transports[i] = msg["transport"].(string)
	}

	assert.Contains(t, transports, "udp")
	assert.Contains(t, transports, "http")
}
