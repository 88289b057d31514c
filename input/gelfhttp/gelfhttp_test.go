package gelfhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gonats "github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/logstream/component"
	"github.com/c360/logstream/errors"
	"github.com/c360/logstream/gelf"
	"github.com/c360/logstream/natsclient"
	"github.com/c360/logstream/testutil"
)

// testHTTPConfig creates a standard test configuration for GELF HTTP input
func testHTTPConfig(port int, bind, subject string) InputConfig {
	cfg := DefaultConfig()
	cfg.Ports = &component.PortConfig{
		Inputs: []component.PortDefinition{
			{
				Name:        "http_server",
				Type:        "network",
				Subject:     fmt.Sprintf("http://%s:%d/gelf", bind, port),
				Required:    true,
				Description: "HTTP endpoint for GELF payloads",
			},
		},
		Outputs: []component.PortDefinition{
			{
				Name:        "events_output",
				Type:        "nats",
				Subject:     subject,
				Required:    false,
				Description: "NATS output for normalized events",
			},
		},
	}
	return cfg
}

// recordingDecorator captures the transformed fields before publish, so
// handler tests can assert on the pipeline without a NATS connection.
type recordingDecorator struct {
	seen []map[string]any
}

func (r *recordingDecorator) Name() string { return "recording" }

func (r *recordingDecorator) Decorate(ev *gelf.Event) error {
	copied := make(map[string]any, len(ev.Fields))
	for k, v := range ev.Fields {
		copied[k] = v
	}
	r.seen = append(r.seen, copied)
	return nil
}

// failingDecorator rejects every event, driving the transform failure path.
type failingDecorator struct{}

func (failingDecorator) Name() string { return "failing" }

func (failingDecorator) Decorate(_ *gelf.Event) error { return fmt.Errorf("rejected") }

func postGELF(input *Input, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/gelf", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	input.handleGELF(rec, req)
	return rec
}

func TestNewInput(t *testing.T) {
	mockClient := &natsclient.Client{}

	input := NewInput(InputDeps{
		Config:     testHTTPConfig(12202, "127.0.0.1", "test.gelf.http"),
		NATSClient: mockClient,
	})

	assert.Equal(t, 12202, input.port)
	assert.Equal(t, "127.0.0.1", input.bind)
	assert.Equal(t, "/gelf", input.path)
	assert.Equal(t, "test.gelf.http", input.subject)
	assert.Equal(t, mockClient, input.natsClient)
	assert.NotNil(t, input.transformer)
	assert.Equal(t, int64(1024*1024), input.maxBodyBytes)
}

func TestNewInput_Defaults(t *testing.T) {
	input := NewInput(InputDeps{Config: DefaultConfig(), NATSClient: &natsclient.Client{}})

	assert.Equal(t, 12202, input.port)
	assert.Equal(t, "0.0.0.0", input.bind)
	assert.Equal(t, "/gelf", input.path)
	assert.Equal(t, "input.gelf.http", input.subject)
}

func TestNewInput_NetworkPortOverridesFlatFields(t *testing.T) {
	cfg := testHTTPConfig(15002, "127.0.0.1", "test.gelf.http")
	cfg.Host = "10.0.0.1"
	cfg.Port = 9999
	cfg.Path = "/other"

	input := NewInput(InputDeps{Config: cfg, NATSClient: &natsclient.Client{}})

	assert.Equal(t, 15002, input.port, "http:// subject wins over flat port")
	assert.Equal(t, "127.0.0.1", input.bind)
	assert.Equal(t, "/gelf", input.path, "path comes from the subject URL")
}

func TestInputConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())

	cfg.Port = 99999
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	cfg = testHTTPConfig(12202, "127.0.0.1", "")
	err = cfg.Validate()
	require.Error(t, err, "empty NATS output subject is invalid")

	cfg = DefaultConfig()
	cfg.Ports.Inputs = []component.PortDefinition{
		{Name: "bad", Type: "network", Subject: "udp://127.0.0.1:12202"},
	}
	err = cfg.Validate()
	require.Error(t, err, "non-http scheme is invalid")
}

func TestInput_Meta(t *testing.T) {
	input := NewInput(InputDeps{
		Config:     testHTTPConfig(12202, "127.0.0.1", "test.gelf.http"),
		NATSClient: &natsclient.Client{},
	})

	meta := input.Meta()

	assert.Equal(t, "gelf-http-input-12202", meta.Name)
	assert.Equal(t, "input", meta.Type)
	assert.Contains(t, meta.Description, "GELF HTTP listener")
	assert.Equal(t, "1.0.0", meta.Version)
}

func TestInput_Ports(t *testing.T) {
	input := NewInput(InputDeps{
		Config:     testHTTPConfig(12202, "127.0.0.1", "test.gelf.http"),
		NATSClient: &natsclient.Client{},
	})

	inputPorts := input.InputPorts()
	require.Len(t, inputPorts, 1)
	assert.Equal(t, "http_server", inputPorts[0].Name)
	assert.Equal(t, component.DirectionInput, inputPorts[0].Direction)

	networkConfig, ok := inputPorts[0].Config.(component.NetworkPort)
	require.True(t, ok, "Input port config should be NetworkPort")
	assert.Equal(t, "tcp", networkConfig.Protocol)
	assert.Equal(t, 12202, networkConfig.Port)

	outputPorts := input.OutputPorts()
	require.Len(t, outputPorts, 1)
	natsConfig, ok := outputPorts[0].Config.(component.NATSPort)
	require.True(t, ok, "Output port config should be NATSPort")
	assert.Equal(t, "test.gelf.http", natsConfig.Subject)
}

func TestInput_ConfigSchema(t *testing.T) {
	input := NewInput(InputDeps{Config: DefaultConfig(), NATSClient: &natsclient.Client{}})

	schema := input.ConfigSchema()

	for _, field := range []string{"ports", "host", "port", "path", "remap", "strip_leading_underscore", "nested_objects", "max_body_bytes"} {
		assert.Contains(t, schema.Properties, field, "schema should expose %s", field)
	}
	assert.Empty(t, schema.Required, "all fields have defaults")
}

func TestInput_Initialize(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(*InputConfig)
		natsClient    *natsclient.Client
		expectedError bool
	}{
		{
			name:       "valid configuration",
			mutate:     func(*InputConfig) {},
			natsClient: &natsclient.Client{},
		},
		{
			name:          "invalid port",
			mutate:        func(c *InputConfig) { c.Port = -1 },
			natsClient:    &natsclient.Client{},
			expectedError: true,
		},
		{
			name:          "path without leading slash",
			mutate:        func(c *InputConfig) { c.Path = "gelf" },
			natsClient:    &natsclient.Client{},
			expectedError: true,
		},
		{
			name:          "empty subject",
			mutate:        func(c *InputConfig) { c.Ports.Outputs[0].Subject = "" },
			natsClient:    &natsclient.Client{},
			expectedError: true,
		},
		{
			name:          "nil NATS client",
			mutate:        func(*InputConfig) {},
			natsClient:    nil,
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Host = "127.0.0.1"
			tt.mutate(&cfg)

			input := NewInput(InputDeps{Config: cfg, NATSClient: tt.natsClient})
			err := input.Initialize()

			if tt.expectedError {
				require.Error(t, err)
				assert.Equal(t, errors.ErrorInvalid, errors.Classify(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestInput_HealthAndDataFlow_ZeroState(t *testing.T) {
	input := NewInput(InputDeps{
		Config:     testHTTPConfig(12202, "127.0.0.1", "test.gelf.http"),
		NATSClient: &natsclient.Client{},
	})

	health := input.Health()
	assert.False(t, health.Healthy, "should be unhealthy before starting")
	assert.Equal(t, 0, health.ErrorCount)

	flow := input.DataFlow()
	assert.Equal(t, float64(0), flow.MessagesPerSecond)
	assert.Equal(t, float64(0), flow.ErrorRate)
}

func TestHandleGELF_MethodNotAllowed(t *testing.T) {
	input := NewInput(InputDeps{
		Config:     testHTTPConfig(12202, "127.0.0.1", "test.gelf.http"),
		NATSClient: &natsclient.Client{},
	})

	req := httptest.NewRequest(http.MethodGet, "/gelf", nil)
	rec := httptest.NewRecorder()
	input.handleGELF(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
	assert.Equal(t, int64(1), input.errors.Load())
}

func TestHandleGELF_EmptyBody(t *testing.T) {
	input := NewInput(InputDeps{
		Config:     testHTTPConfig(12202, "127.0.0.1", "test.gelf.http"),
		NATSClient: &natsclient.Client{},
	})

	rec := postGELF(input, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "empty request body", body["error"])
}

func TestHandleGELF_OversizedBody(t *testing.T) {
	cfg := testHTTPConfig(12202, "127.0.0.1", "test.gelf.http")
	cfg.MaxBodyBytes = 1024

	input := NewInput(InputDeps{Config: cfg, NATSClient: &natsclient.Client{}})

	rec := postGELF(input, bytes.Repeat([]byte("a"), 2048))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, int64(1), input.errors.Load())
}

func TestHandleGELF_CorruptZlibRejected(t *testing.T) {
	input := NewInput(InputDeps{
		Config:     testHTTPConfig(12202, "127.0.0.1", "test.gelf.http"),
		NATSClient: &natsclient.Client{},
	})

	corrupt := append([]byte{0x78, 0x9c}, []byte("not a real stream")...)
	rec := postGELF(input, corrupt)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "undecodable payload", body["error"])
}

func TestHandleGELF_PipelineRunsBeforePublish(t *testing.T) {
	rec := &recordingDecorator{}
	input := NewInput(InputDeps{
		Config:     testHTTPConfig(12202, "127.0.0.1", "test.gelf.http"),
		NATSClient: &natsclient.Client{},
		Decorators: []gelf.Decorator{rec},
	})

	resp := postGELF(input, []byte(`{"version":"1.1","host":"web01","short_message":"Hi","_request_id":"r1"}`))

	// The mock client has no live connection, so publish fails after the
	// pipeline already ran
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	assert.Equal(t, int64(1), input.errors.Load())

	require.Len(t, rec.seen, 1)
	fields := rec.seen[0]
	assert.Equal(t, "Hi", fields["message"], "remap ran")
	assert.Equal(t, "r1", fields["request_id"], "underscore strip ran")
	assert.Equal(t, "192.0.2.1", fields["source_host"], "client IP recorded")
}

func TestHandleGELF_GzipBody(t *testing.T) {
	rec := &recordingDecorator{}
	input := NewInput(InputDeps{
		Config:     testHTTPConfig(12202, "127.0.0.1", "test.gelf.http"),
		NATSClient: &natsclient.Client{},
		Decorators: []gelf.Decorator{rec},
	})

	resp := postGELF(input, testutil.GzipPayload([]byte(`{"short_message":"compressed"}`)))

	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	assert.Equal(t, int64(0), input.parseFallbacks.Load(), "gzip body should parse cleanly")
	require.Len(t, rec.seen, 1)
	assert.Equal(t, "compressed", rec.seen[0]["message"])
}

func TestHandleGELF_ZlibBody(t *testing.T) {
	rec := &recordingDecorator{}
	input := NewInput(InputDeps{
		Config:     testHTTPConfig(12202, "127.0.0.1", "test.gelf.http"),
		NATSClient: &natsclient.Client{},
		Decorators: []gelf.Decorator{rec},
	})

	resp := postGELF(input, testutil.ZlibPayload([]byte(`{"short_message":"deflated"}`)))

	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	require.Len(t, rec.seen, 1)
	assert.Equal(t, "deflated", rec.seen[0]["message"])
}

func TestHandleGELF_NonJSONBecomesFallback(t *testing.T) {
	rec := &recordingDecorator{}
	input := NewInput(InputDeps{
		Config:     testHTTPConfig(12202, "127.0.0.1", "test.gelf.http"),
		NATSClient: &natsclient.Client{},
		Decorators: []gelf.Decorator{rec},
	})

	postGELF(input, []byte("plain text line"))

	assert.Equal(t, int64(1), input.parseFallbacks.Load())
	require.Len(t, rec.seen, 1)
	assert.Equal(t, "plain text line", rec.seen[0]["message"])
}

func TestHandleGELF_TransformFailure(t *testing.T) {
	input := NewInput(InputDeps{
		Config:     testHTTPConfig(12202, "127.0.0.1", "test.gelf.http"),
		NATSClient: &natsclient.Client{},
		Decorators: []gelf.Decorator{failingDecorator{}},
	})

	rec := postGELF(input, []byte(`{"short_message":"doomed"}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, int64(1), input.errors.Load())
	assert.Equal(t, int64(0), input.eventsPublished.Load())
}

func TestInput_StartStop(t *testing.T) {
	port := findAvailablePort(t)
	input := NewInput(InputDeps{
		Config:     testHTTPConfig(port, "127.0.0.1", "test.gelf.http"),
		NATSClient: &natsclient.Client{},
	})

	require.NoError(t, input.Initialize())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t.Cleanup(func() { _ = input.Stop(5 * time.Second) })

	require.NoError(t, input.Start(ctx))

	assert.True(t, input.running.Load())
	assert.True(t, input.Health().Healthy)

	// Start is idempotent
	require.NoError(t, input.Start(ctx))

	// The server answers on the configured path; publish fails without a
	// live NATS connection, which still proves the request was served
	resp, err := http.Post(
		fmt.Sprintf("http://127.0.0.1:%d/gelf", port),
		"application/json",
		strings.NewReader(`{"short_message":"lifecycle"}`))
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, int64(1), input.requestsReceived.Load())

	require.NoError(t, input.Stop(5*time.Second))

	assert.False(t, input.running.Load())
	assert.Nil(t, input.server)
	assert.False(t, input.Health().Healthy)
}

func TestInput_RetryOnBindFailure(t *testing.T) {
	port := findAvailablePort(t)
	conflict, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conflict.Close() })

	input := NewInput(InputDeps{
		Config:     testHTTPConfig(port, "127.0.0.1", "test.gelf.http"),
		NATSClient: &natsclient.Client{},
	})
	t.Cleanup(func() { _ = input.Stop(time.Second) })

	require.NoError(t, input.Initialize())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err = input.Start(ctx)
	require.Error(t, err, "should fail due to port conflict")
	assert.True(t, strings.Contains(strings.ToLower(err.Error()), "listen") ||
		strings.Contains(strings.ToLower(err.Error()), "address already in use"))
	assert.False(t, input.running.Load())
}

func TestCreateInput_DefaultConfig(t *testing.T) {
	comp, err := CreateInput(json.RawMessage(`{}`), component.Dependencies{
		NATSClient: &natsclient.Client{},
	})
	require.NoError(t, err)

	input := comp.(*Input)
	assert.Equal(t, 12202, input.port)
	assert.Equal(t, "0.0.0.0", input.bind)
	assert.Equal(t, "/gelf", input.path)
	assert.Equal(t, "input.gelf.http", input.subject)
}

func TestCreateInput_OverridesMergeOverDefaults(t *testing.T) {
	raw := json.RawMessage(`{"port": 8080, "path": "/logs", "remap": false}`)

	comp, err := CreateInput(raw, component.Dependencies{NATSClient: &natsclient.Client{}})
	require.NoError(t, err)

	input := comp.(*Input)
	assert.Equal(t, 8080, input.port)
	assert.Equal(t, "/logs", input.path)
	assert.Equal(t, "0.0.0.0", input.bind, "unset keys keep defaults")
}

func TestCreateInput_InvalidPort(t *testing.T) {
	_, err := CreateInput(json.RawMessage(`{"port": 99999}`), component.Dependencies{
		NATSClient: &natsclient.Client{},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port")
}

func TestCreateInput_MissingNATS(t *testing.T) {
	_, err := CreateInput(json.RawMessage(`{}`), component.Dependencies{})
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.Contains(t, err.Error(), "NATS client")
}

func TestInput_Interfaces(_ *testing.T) {
	input := NewInput(InputDeps{
		Config:     DefaultConfig(),
		NATSClient: &natsclient.Client{},
	})

	var _ component.Discoverable = input
	var _ component.LifecycleComponent = input
}

func TestInput_NoPanic(t *testing.T) {
	port := findAvailablePort(t)

	assert.NotPanics(t, func() {
		input := NewInput(InputDeps{
			Config:     testHTTPConfig(port, "127.0.0.1", "test.gelf.http"),
			NATSClient: &natsclient.Client{},
		})
		require.NoError(t, input.Initialize())

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		require.NoError(t, input.Start(ctx))
		time.Sleep(10 * time.Millisecond)
		require.NoError(t, input.Stop(5*time.Second))
	}, "normal operation should not panic")

	assert.NotPanics(t, func() {
		input := NewInput(InputDeps{
			Config:     testHTTPConfig(port, "127.0.0.1", "test.gelf.http"),
			NATSClient: &natsclient.Client{},
		})
		require.NoError(t, input.Initialize())

		ctx, cancel := context.WithCancel(context.Background())
		require.NoError(t, input.Start(ctx))

		cancel()
		time.Sleep(10 * time.Millisecond)
		require.NoError(t, input.Stop(5*time.Second))
	}, "context cancellation should not panic")
}

func TestInput_CleanShutdown(t *testing.T) {
	port := findAvailablePort(t)
	input := NewInput(InputDeps{
		Config:     testHTTPConfig(port, "127.0.0.1", "test.gelf.http"),
		NATSClient: &natsclient.Client{},
	})

	require.NoError(t, input.Initialize())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, input.Start(ctx))

	t.Cleanup(func() { _ = input.Stop(5 * time.Second) })

	start := time.Now()
	err := input.Stop(5 * time.Second)
	duration := time.Since(start)

	require.NoError(t, err)
	assert.Less(t, duration, 1*time.Second, "Stop should complete quickly")
	assert.False(t, input.running.Load())
	assert.Nil(t, input.listener)
}

// Integration test: full pipeline from HTTP POST to normalized NATS event
func TestInput_Integration_Pipeline(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testClient := natsclient.NewTestClient(t, natsclient.WithJetStream())

	port := findAvailablePort(t)
	subject := "integration.gelf.http"

	cfg := testHTTPConfig(port, "127.0.0.1", subject)
	configJSON, err := json.Marshal(cfg)
	require.NoError(t, err)

	comp, err := CreateInput(configJSON, component.Dependencies{
		NATSClient: testClient.Client,
		Platform: component.PlatformMeta{
			Org:      "test",
			Platform: "test-platform",
		},
	})
	require.NoError(t, err)

	input := comp.(*Input)
	require.NoError(t, input.Initialize())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, input.Start(ctx))
	defer input.Stop(5 * time.Second)

	nc := testClient.GetNativeConnection()
	msgCh := make(chan []byte, 1)

	sub, err := nc.Subscribe(subject, func(msg *gonats.Msg) {
		msgCh <- msg.Data
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	time.Sleep(100 * time.Millisecond)

	payload := []byte(`{"version":"1.1","host":"web02","short_message":"Over HTTP","timestamp":946702800}`)
	resp, err := http.Post(
		fmt.Sprintf("http://127.0.0.1:%d/gelf", port),
		"application/json",
		bytes.NewReader(testutil.GzipPayload(payload)))
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var data []byte
	select {
	case data = <-msgCh:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for GELF event to reach NATS")
	}

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "Over HTTP", out["message"])
	assert.Equal(t, "web02", out["host"])
	assert.Equal(t, "2000-01-01T05:00:00.000000Z", out["@timestamp"])
	assert.Equal(t, "127.0.0.1", out["source_host"])
	_, hasRawTimestamp := out["timestamp"]
	assert.False(t, hasRawTimestamp)

	assert.Equal(t, int64(1), input.eventsPublished.Load())
}

// Helper function to find an available port
func findAvailablePort(t *testing.T) int {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	return ln.Addr().(*net.TCPAddr).Port
}
