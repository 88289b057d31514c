// Package httppost provides an HTTP POST output component that forwards events to webhook endpoints
package httppost

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/c360/logstream/component"
	"github.com/c360/logstream/errors"
	"github.com/c360/logstream/natsclient"
	"github.com/c360/logstream/pkg/retry"
	"github.com/c360/logstream/pkg/security"
	"github.com/c360/logstream/pkg/tlsutil"
)

// Config holds configuration for the HTTP POST output component
type Config struct {
	Ports       *component.PortConfig `json:"ports"        schema:"type:ports,description:Port configuration,category:basic"`
	URL         string                `json:"url"          schema:"type:string,description:Webhook endpoint URL,category:basic"`
	Headers     map[string]string     `json:"headers"      schema:"type:object,description:Extra HTTP headers sent with every request,category:advanced"`
	Timeout     int                   `json:"timeout"      schema:"type:int,description:Request timeout in seconds,default:30,min:1,max:300,category:advanced"`
	RetryCount  int                   `json:"retry_count"  schema:"type:int,description:Retries per event after the first attempt,default:3,min:0,max:10,category:advanced"`
	ContentType string                `json:"content_type" schema:"type:string,description:Content-Type header,default:application/json,category:basic"`
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "url is required")
	}

	u, err := url.Parse(c.URL)
	if err != nil {
		return errors.WrapInvalid(err, "Config", "Validate", "invalid URL format")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"url scheme must be http or https")
	}

	if c.Timeout < 0 || c.Timeout > 300 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"timeout must be between 0 and 300 seconds")
	}

	if c.RetryCount < 0 || c.RetryCount > 10 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"retry_count must be between 0 and 10")
	}

	return nil
}

// DefaultConfig returns default configuration for the HTTP POST output
func DefaultConfig() Config {
	inputDefs := []component.PortDefinition{
		{
			Name:        "nats_input",
			Type:        "nats",
			Subject:     "input.gelf.>",
			Required:    true,
			Description: "Event subjects to forward to the webhook",
		},
	}

	return Config{
		Ports: &component.PortConfig{
			Inputs: inputDefs,
		},
		URL:         "http://localhost:8080/webhook",
		Headers:     make(map[string]string),
		Timeout:     30,
		RetryCount:  3,
		ContentType: "application/json",
	}
}

// httpPostSchema defines the configuration schema for the HTTP POST output component
var httpPostSchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

// Output forwards events arriving on NATS subjects to a webhook endpoint,
// one POST per event. Transient failures (network errors, 5xx, 429) are
// retried with exponential backoff; a 4xx response drops the event.
type Output struct {
	name        string
	subjects    []string
	url         string
	headers     map[string]string
	timeout     time.Duration
	retryConfig retry.Config
	contentType string
	natsClient  *natsclient.Client
	security    security.Config
	httpClient  *http.Client
	logger      *slog.Logger
	logLimit    *rate.Limiter

	// Lifecycle management
	shutdown    chan struct{}
	done        chan struct{}
	running     bool
	startTime   time.Time
	mu          sync.RWMutex
	lifecycleMu sync.Mutex
	wg          *sync.WaitGroup
	tlsCleanup  func() // TLS cleanup function (ACME renewal loop)

	// Metrics
	eventsSent    int64
	eventsRetried int64
	bytesSent     int64
	errors        int64
	lastActivity  time.Time
}

// NewOutput creates a new HTTP POST output from configuration
func NewOutput(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	var config Config
	if err := component.SafeUnmarshal(rawConfig, &config); err != nil {
		return nil, errors.WrapInvalid(err, "Output", "NewOutput", "config unmarshal")
	}

	if config.Ports == nil {
		config = DefaultConfig()
	}

	// Extract subjects from port configuration
	var inputSubjects []string
	for _, input := range config.Ports.Inputs {
		if input.Type == "nats" {
			inputSubjects = append(inputSubjects, input.Subject)
		}
	}

	if len(inputSubjects) == 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Output", "NewOutput", "no input subjects configured")
	}

	if config.URL == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Output", "NewOutput", "URL is required")
	}

	timeout := time.Duration(config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	contentType := config.ContentType
	if contentType == "" {
		contentType = "application/json"
	}

	httpClient := &http.Client{
		Timeout: timeout,
	}

	var tlsCleanup func()

	// Configure TLS if client TLS is configured at platform level
	if len(deps.Security.TLS.Client.CAFiles) > 0 ||
		deps.Security.TLS.Client.InsecureSkipVerify ||
		deps.Security.TLS.Client.MinVersion != "" ||
		deps.Security.TLS.Client.MTLS.Enabled ||
		(deps.Security.TLS.Client.Mode == "acme" && deps.Security.TLS.Client.ACME.Enabled) {

		var tlsConfig *tls.Config
		var err error

		if deps.Security.TLS.Client.Mode == "acme" && deps.Security.TLS.Client.ACME.Enabled {
			// No lifecycle context at construction time; the renewal
			// loop is stopped through tlsCleanup instead
			ctx := context.Background()

			tlsConfig, tlsCleanup, err = tlsutil.LoadClientTLSConfigWithACME(
				ctx,
				deps.Security.TLS.Client,
			)
			if err != nil {
				return nil, errors.WrapFatal(err, "httppost-output", "NewOutput",
					"load TLS config with ACME")
			}
		} else {
			tlsConfig, err = tlsutil.LoadClientTLSConfigWithMTLS(
				deps.Security.TLS.Client,
				deps.Security.TLS.Client.MTLS,
			)
			if err != nil {
				return nil, errors.WrapFatal(err, "httppost-output", "NewOutput",
					"load TLS config with mTLS")
			}
		}

		httpClient.Transport = &http.Transport{
			TLSClientConfig: tlsConfig,
		}
	}

	return &Output{
		name:     "httppost-output",
		subjects: inputSubjects,
		url:      config.URL,
		headers:  config.Headers,
		timeout:  timeout,
		retryConfig: retry.Config{
			MaxAttempts:  config.RetryCount + 1,
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   2.0,
			AddJitter:    true,
		},
		contentType: contentType,
		natsClient:  deps.NATSClient,
		security:    deps.Security,
		httpClient:  httpClient,
		logger:      deps.GetLoggerWithComponent("httppost-output"),
		logLimit:    rate.NewLimiter(rate.Every(time.Second), 5),
		shutdown:    make(chan struct{}),
		done:        make(chan struct{}),
		wg:          &sync.WaitGroup{},
		tlsCleanup:  tlsCleanup,
	}, nil
}

// Initialize prepares the output (no-op for HTTP POST)
func (h *Output) Initialize() error {
	return nil
}

// Start subscribes to the configured subjects
func (h *Output) Start(ctx context.Context) error {
	h.lifecycleMu.Lock()
	defer h.lifecycleMu.Unlock()

	if h.running {
		return errors.WrapFatal(errors.ErrAlreadyStarted, "Output", "Start", "check running state")
	}

	if h.natsClient == nil {
		return errors.WrapFatal(errors.ErrMissingConfig, "Output", "Start", "NATS client required")
	}

	for _, subject := range h.subjects {
		if err := h.natsClient.Subscribe(ctx, subject, h.handleEvent); err != nil {
			return errors.WrapTransient(err, "Output", "Start", fmt.Sprintf("subscribe to %s", subject))
		}
	}

	h.mu.Lock()
	h.running = true
	h.startTime = time.Now()
	h.mu.Unlock()

	h.logger.Info("HTTP POST output started",
		"input_subjects", h.subjects,
		"url", h.url,
		"timeout", h.timeout,
		"max_attempts", h.retryConfig.MaxAttempts)

	return nil
}

// Stop gracefully stops the output
func (h *Output) Stop(timeout time.Duration) error {
	h.lifecycleMu.Lock()
	defer h.lifecycleMu.Unlock()

	if !h.running {
		return nil
	}

	close(h.shutdown)

	waitCh := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
	case <-time.After(timeout):
		return errors.WrapTransient(fmt.Errorf("shutdown timeout after %v", timeout), "Output", "Stop", "shutdown")
	}

	// Stop ACME renewal loop if active
	if h.tlsCleanup != nil {
		h.tlsCleanup()
	}

	h.mu.Lock()
	h.running = false
	close(h.done)
	h.mu.Unlock()

	return nil
}

// handleEvent forwards one event to the webhook, retrying transient failures
func (h *Output) handleEvent(ctx context.Context, msgData []byte) {
	h.mu.Lock()
	h.lastActivity = time.Now()
	h.mu.Unlock()

	attempts := 0
	err := retry.Do(ctx, h.retryConfig, func() error {
		attempts++
		if attempts > 1 {
			atomic.AddInt64(&h.eventsRetried, 1)
		}
		return h.forward(ctx, msgData)
	})
	if err != nil {
		atomic.AddInt64(&h.errors, 1)
		if h.logLimit.Allow() {
			h.logger.Warn("Failed to forward event",
				"url", h.url,
				"attempts", attempts,
				"error", err)
		}
		return
	}

	atomic.AddInt64(&h.eventsSent, 1)
	atomic.AddInt64(&h.bytesSent, int64(len(msgData)))
}

// forward sends a single HTTP POST request. Responses that retrying
// cannot fix are marked non-retryable so the backoff loop stops early.
func (h *Output) forward(ctx context.Context, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(data))
	if err != nil {
		return retry.NonRetryable(err)
	}

	req.Header.Set("Content-Type", h.contentType)
	for key, value := range h.headers {
		req.Header.Set(key, value)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Read and discard body to reuse connection
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// The endpoint rejected the event itself
		return retry.NonRetryable(fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status))
	default:
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
}

// Discoverable interface implementation

// Meta returns component metadata
func (h *Output) Meta() component.Metadata {
	return component.Metadata{
		Name:        h.name,
		Type:        "output",
		Description: "Forwards log events to a webhook endpoint via HTTP POST",
		Version:     "0.1.0",
	}
}

// InputPorts returns configured input port definitions
func (h *Output) InputPorts() []component.Port {
	ports := make([]component.Port, len(h.subjects))
	for i, subj := range h.subjects {
		ports[i] = component.Port{
			Name:      fmt.Sprintf("input_%d", i),
			Direction: component.DirectionInput,
			Required:  true,
			Config:    component.NATSPort{Subject: subj},
		}
	}
	return ports
}

// OutputPorts returns configured output port definitions (none for HTTP POST)
func (h *Output) OutputPorts() []component.Port {
	return []component.Port{}
}

// ConfigSchema returns the configuration schema
func (h *Output) ConfigSchema() component.ConfigSchema {
	return httpPostSchema
}

// Health returns the current health status
func (h *Output) Health() component.HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return component.HealthStatus{
		Healthy:    h.running,
		LastCheck:  time.Now(),
		ErrorCount: int(atomic.LoadInt64(&h.errors)),
		Uptime:     time.Since(h.startTime),
	}
}

// DataFlow returns current data flow metrics
func (h *Output) DataFlow() component.FlowMetrics {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := atomic.LoadInt64(&h.eventsSent)
	bytes := atomic.LoadInt64(&h.bytesSent)
	errorCount := atomic.LoadInt64(&h.errors)

	var messagesPerSecond float64
	var bytesPerSecond float64
	var errorRate float64

	if uptime := time.Since(h.startTime).Seconds(); uptime > 0 {
		messagesPerSecond = float64(sent) / uptime
		bytesPerSecond = float64(bytes) / uptime
	}

	total := sent + errorCount
	if total > 0 {
		errorRate = float64(errorCount) / float64(total)
	}

	return component.FlowMetrics{
		MessagesPerSecond: messagesPerSecond,
		BytesPerSecond:    bytesPerSecond,
		ErrorRate:         errorRate,
		LastActivity:      h.lastActivity,
	}
}

// Register registers the HTTP POST output component with the given registry
func Register(registry *component.Registry) error {
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "httppost",
		Factory:     NewOutput,
		Schema:      httpPostSchema,
		Type:        "output",
		Protocol:    "httppost",
		Domain:      "network",
		Description: "Forwards log events to webhook endpoints with retries and TLS support",
		Version:     "0.1.0",
	})
}
