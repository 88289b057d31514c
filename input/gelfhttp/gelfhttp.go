// Package gelfhttp provides a GELF HTTP input component. It accepts single
// GELF JSON payloads over HTTP POST, optionally gzip or zlib compressed,
// and runs them through the same normalization pipeline as the UDP input.
// Chunking is a UDP-only concern; HTTP clients send one message per request.
package gelfhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/c360/logstream/component"
	"github.com/c360/logstream/errors"
	"github.com/c360/logstream/gelf"
	"github.com/c360/logstream/metric"
	"github.com/c360/logstream/natsclient"
	"github.com/c360/logstream/pkg/retry"
	"github.com/c360/logstream/pkg/security"
	"github.com/c360/logstream/pkg/tlsutil"
)

const logPreviewLimit = 256

// Metrics holds Prometheus metrics for the GELF HTTP input component
type Metrics struct {
	requestsReceived prometheus.Counter
	requestsRejected prometheus.Counter
	bytesReceived    prometheus.Counter
	eventsPublished  prometheus.Counter
	eventsDropped    prometheus.Counter
	parseFallbacks   prometheus.Counter
	publishLatency   prometheus.Histogram
	lastActivity     prometheus.Gauge
}

// newMetrics creates and registers Prometheus metrics for the GELF HTTP
// input. Returns nil if registry is nil (metrics disabled).
func newMetrics(registry *metric.MetricsRegistry, port int) *Metrics {
	if registry == nil {
		return nil
	}

	serviceName := fmt.Sprintf("gelfhttp_%d", port)
	portLabel := strconv.Itoa(port)

	metrics := &Metrics{
		requestsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "logstream",
			Subsystem:   "gelfhttp",
			Name:        "requests_received_total",
			Help:        "Total HTTP requests received",
			ConstLabels: prometheus.Labels{"port": portLabel},
		}),
		requestsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "logstream",
			Subsystem:   "gelfhttp",
			Name:        "requests_rejected_total",
			Help:        "Total HTTP requests rejected before the pipeline",
			ConstLabels: prometheus.Labels{"port": portLabel},
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "logstream",
			Subsystem:   "gelfhttp",
			Name:        "bytes_received_total",
			Help:        "Total payload bytes received",
			ConstLabels: prometheus.Labels{"port": portLabel},
		}),
		eventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "logstream",
			Subsystem:   "gelfhttp",
			Name:        "events_published_total",
			Help:        "Total events published to NATS",
			ConstLabels: prometheus.Labels{"port": portLabel},
		}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "logstream",
			Subsystem:   "gelfhttp",
			Name:        "events_dropped_total",
			Help:        "Total events dropped after acceptance",
			ConstLabels: prometheus.Labels{"port": portLabel},
		}),
		parseFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "logstream",
			Subsystem:   "gelfhttp",
			Name:        "parse_fallbacks_total",
			Help:        "Total payloads that were not JSON objects and became fallback events",
			ConstLabels: prometheus.Labels{"port": portLabel},
		}),
		publishLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "logstream",
			Subsystem:   "gelfhttp",
			Name:        "publish_latency_seconds",
			Help:        "NATS publish latency in seconds",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: prometheus.Labels{"port": portLabel},
		}),
		lastActivity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "logstream",
			Subsystem:   "gelfhttp",
			Name:        "last_activity_timestamp",
			Help:        "Unix timestamp of last received request",
			ConstLabels: prometheus.Labels{"port": portLabel},
		}),
	}

	registry.RegisterCounter(serviceName, "requests_received", metrics.requestsReceived)
	registry.RegisterCounter(serviceName, "requests_rejected", metrics.requestsRejected)
	registry.RegisterCounter(serviceName, "bytes_received", metrics.bytesReceived)
	registry.RegisterCounter(serviceName, "events_published", metrics.eventsPublished)
	registry.RegisterCounter(serviceName, "events_dropped", metrics.eventsDropped)
	registry.RegisterCounter(serviceName, "parse_fallbacks", metrics.parseFallbacks)
	registry.RegisterHistogram(serviceName, "publish_latency", metrics.publishLatency)
	registry.RegisterGauge(serviceName, "last_activity", metrics.lastActivity)

	return metrics
}

// Input implements a GELF HTTP input component
type Input struct {
	name        string
	port        int
	bind        string
	path        string
	subject     string
	natsClient  *natsclient.Client
	logger      *slog.Logger
	transformer *gelf.Transformer
	security    security.Config

	maxBodyBytes int64
	retryConfig  retry.Config

	// Throttles flood-prone per-request warnings
	logLimit *rate.Limiter

	// HTTP server lifecycle
	server        *http.Server
	listener      net.Listener
	tlsCleanup    func()
	lifecycleStop context.CancelFunc

	done      chan struct{}
	running   atomic.Bool
	startTime time.Time
	mu        sync.RWMutex
	wg        sync.WaitGroup

	// Counters (atomic operations)
	requestsReceived atomic.Int64
	bytesReceived    atomic.Int64
	eventsPublished  atomic.Int64
	parseFallbacks   atomic.Int64
	errors           atomic.Int64
	lastActivity     atomic.Value // stores time.Time

	// Prometheus metrics
	metrics  *Metrics
	registry *metric.MetricsRegistry
}

// Ensure Input implements all required interfaces
var _ component.Discoverable = (*Input)(nil)
var _ component.LifecycleComponent = (*Input)(nil)

// gelfHTTPSchema defines the configuration schema for the GELF HTTP input
// component, generated from InputConfig struct tags using reflection
var gelfHTTPSchema = component.GenerateConfigSchema(reflect.TypeOf(InputConfig{}))

// InputConfig holds configuration for the GELF HTTP input component
type InputConfig struct {
	// Port configuration for inputs and outputs
	Ports *component.PortConfig `json:"ports" schema:"type:ports,description:Port configuration,category:basic"`

	// Host is the listen address used when no network port is configured
	Host string `json:"host" schema:"type:string,description:HTTP listen address,default:0.0.0.0,category:basic"`

	// Port is the listen port used when no network port is configured
	Port int `json:"port" schema:"type:int,description:HTTP listen port,default:12202,min:0,max:65535,category:basic"`

	// Path is the URL path accepting GELF payloads
	Path string `json:"path" schema:"type:string,description:URL path accepting GELF POST requests,default:/gelf,category:basic"`

	// Remap promotes full_message/short_message onto the message field
	Remap bool `json:"remap" schema:"type:bool,description:Promote full_message or short_message onto the message field,default:true,category:basic"`

	// StripUnderscore removes the leading underscore from user fields
	StripUnderscore bool `json:"strip_leading_underscore" schema:"type:bool,description:Strip the leading underscore from additional fields,default:true,category:basic"`

	// NestedObjects expands dotted field names into nested containers
	NestedObjects bool `json:"nested_objects" schema:"type:bool,description:Expand dotted field names into nested objects and arrays,default:false,category:basic"`

	// ReservedFields overrides the GELF core field names protected from
	// underscore stripping
	ReservedFields []string `json:"reserved_fields,omitempty" schema:"type:array,description:Field names protected from underscore stripping,category:advanced"`

	// AnnotateEvents stamps an ingest ID and receive time on every event
	AnnotateEvents bool `json:"annotate_events" schema:"type:bool,description:Stamp an ingest ID and receive time on every event,default:true,category:advanced"`

	// MaxBodyBytes caps the accepted request body size
	MaxBodyBytes int `json:"max_body_bytes" schema:"type:int,description:Maximum request body size in bytes,default:1048576,min:1024,max:16777216,category:advanced"`
}

// Validate implements component.Validatable interface for secure config validation
func (c *InputConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.WrapInvalid(
			fmt.Errorf("invalid port number: %d", c.Port),
			"InputConfig", "Validate", "port range validation")
	}

	if c.Ports != nil {
		for _, input := range c.Ports.Inputs {
			if input.Type == "network" && input.Subject != "" {
				u, err := url.Parse(input.Subject)
				if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
					return errors.WrapInvalid(
						fmt.Errorf("invalid HTTP address format: %s", input.Subject),
						"InputConfig", "Validate", "address parsing")
				}
				if portStr := u.Port(); portStr != "" {
					port, err := strconv.Atoi(portStr)
					if err != nil {
						return errors.WrapInvalid(
							fmt.Errorf("invalid port number: %s", portStr),
							"InputConfig", "Validate", "port parsing")
					}
					if err := component.ValidateNetworkConfig(port, u.Hostname()); err != nil {
						return errors.Wrap(err, "InputConfig", "Validate", "network port validation")
					}
				}
			}
		}

		for _, output := range c.Ports.Outputs {
			if output.Type == "nats" && output.Subject == "" {
				return errors.WrapInvalid(
					errors.ErrInvalidConfig,
					"InputConfig", "Validate", "NATS output subject validation")
			}
		}
	}

	return nil
}

// DefaultConfig returns the standard GELF HTTP input settings: the
// conventional HTTP port next to the UDP one, the /gelf path, and the
// shared normalization defaults.
func DefaultConfig() InputConfig {
	return InputConfig{
		Host:            "0.0.0.0",
		Port:            12202,
		Path:            "/gelf",
		Remap:           true,
		StripUnderscore: true,
		NestedObjects:   false,
		AnnotateEvents:  true,
		MaxBodyBytes:    1024 * 1024,
		Ports: &component.PortConfig{
			Outputs: []component.PortDefinition{
				{
					Name:        "nats_output",
					Type:        "nats",
					Subject:     "input.gelf.http",
					Required:    true,
					Description: "NATS subject for publishing normalized GELF events",
				},
			},
		},
	}
}

// getConfiguredPorts resolves the listen endpoint and output subject. A
// network input port with an http:// subject takes precedence over the
// flat Host/Port/Path fields.
func (c InputConfig) getConfiguredPorts() (port int, bind, path, subject string) {
	port = c.Port
	bind = c.Host
	path = c.Path
	subject = "input.gelf.http"

	if port == 0 {
		port = 12202
	}
	if bind == "" {
		bind = "0.0.0.0"
	}
	if path == "" {
		path = "/gelf"
	}

	if c.Ports == nil {
		return port, bind, path, subject
	}

	for _, input := range c.Ports.Inputs {
		if input.Type != "network" || input.Subject == "" {
			continue
		}
		u, err := url.Parse(input.Subject)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			continue
		}
		if host := u.Hostname(); host != "" {
			bind = host
		}
		if portStr := u.Port(); portStr != "" {
			if p, err := strconv.Atoi(portStr); err == nil {
				port = p
			}
		}
		if u.Path != "" {
			path = u.Path
		}
		break
	}

	for _, output := range c.Ports.Outputs {
		if output.Type == "nats" && output.Subject != "" {
			subject = output.Subject
			break
		}
	}

	return port, bind, path, subject
}

// transformConfig maps the flat input options onto the transformer config
func (c InputConfig) transformConfig() gelf.TransformConfig {
	return gelf.TransformConfig{
		Remap:           c.Remap,
		StripUnderscore: c.StripUnderscore,
		NestedObjects:   c.NestedObjects,
		Reserved:        c.ReservedFields,
	}
}

// InputDeps holds all dependencies needed to construct an Input instance
type InputDeps struct {
	Name            string                  // Component name (empty = auto-generate)
	Config          InputConfig             // Listener and pipeline configuration
	NATSClient      *natsclient.Client      // NATS client for publishing events
	MetricsRegistry *metric.MetricsRegistry // Optional Prometheus metrics registry
	Logger          *slog.Logger            // Optional structured logger
	Security        security.Config         // Platform security configuration (TLS)
	Decorators      []gelf.Decorator        // Optional decoration hooks, run after the transform passes
}

// NewInput creates a new GELF HTTP input component
func NewInput(deps InputDeps) *Input {
	port, bind, path, subject := deps.Config.getConfiguredPorts()

	var metrics *Metrics
	if deps.MetricsRegistry != nil {
		metrics = newMetrics(deps.MetricsRegistry, port)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "gelf-http-input", "port", port)
	}

	maxBodyBytes := int64(deps.Config.MaxBodyBytes)
	if maxBodyBytes <= 0 {
		maxBodyBytes = 1024 * 1024
	}

	u := &Input{
		name:         deps.Name,
		port:         port,
		bind:         bind,
		path:         path,
		subject:      subject,
		natsClient:   deps.NATSClient,
		logger:       logger,
		transformer:  gelf.NewTransformer(deps.Config.transformConfig(), deps.Decorators...),
		security:     deps.Security,
		maxBodyBytes: maxBodyBytes,
		retryConfig:  retry.DefaultConfig(),
		logLimit:     rate.NewLimiter(rate.Every(time.Second), 5),
		startTime:    time.Now(),
		metrics:      metrics,
		registry:     deps.MetricsRegistry,
	}
	u.lastActivity.Store(time.Time{})
	return u
}

// Meta returns the component metadata
func (u *Input) Meta() component.Metadata {
	name := u.name
	if name == "" {
		name = fmt.Sprintf("gelf-http-input-%d", u.port)
	}

	return component.Metadata{
		Name:        name,
		Type:        "input",
		Description: fmt.Sprintf("GELF HTTP listener on %s:%d%s publishing to %s", u.bind, u.port, u.path, u.subject),
		Version:     "1.0.0",
	}
}

// InputPorts returns the input ports for this component
func (u *Input) InputPorts() []component.Port {
	return []component.Port{
		{
			Name:        "http_server",
			Direction:   component.DirectionInput,
			Required:    true,
			Description: fmt.Sprintf("HTTP endpoint accepting GELF POST requests on %s:%d%s", u.bind, u.port, u.path),
			Config: component.NetworkPort{
				Protocol: "tcp",
				Host:     u.bind,
				Port:     u.port,
			},
		},
	}
}

// OutputPorts returns the output ports for this component
func (u *Input) OutputPorts() []component.Port {
	return []component.Port{
		{
			Name:        "nats_output",
			Direction:   component.DirectionOutput,
			Required:    true,
			Description: "NATS subject for publishing normalized GELF events",
			Config: component.NATSPort{
				Subject: u.subject,
			},
		},
	}
}

// ConfigSchema returns the configuration schema for this component
func (u *Input) ConfigSchema() component.ConfigSchema {
	return gelfHTTPSchema
}

// Health returns the current health status of the component
func (u *Input) Health() component.HealthStatus {
	u.mu.RLock()
	running := u.running.Load()
	serving := u.server != nil
	u.mu.RUnlock()

	return component.HealthStatus{
		Healthy:    running && serving,
		LastCheck:  time.Now(),
		ErrorCount: int(u.errors.Load()),
		LastError:  "",
		Uptime:     time.Since(u.startTime),
	}
}

// DataFlow returns the current data flow metrics
func (u *Input) DataFlow() component.FlowMetrics {
	requests := u.requestsReceived.Load()
	bytes := u.bytesReceived.Load()
	errorCount := u.errors.Load()
	lastActivity, _ := u.lastActivity.Load().(time.Time)

	var messagesPerSecond float64
	var bytesPerSecond float64
	var errorRate float64

	if uptime := time.Since(u.startTime).Seconds(); uptime > 0 {
		messagesPerSecond = float64(requests) / uptime
		bytesPerSecond = float64(bytes) / uptime
	}

	if requests > 0 {
		errorRate = float64(errorCount) / float64(requests)
	}

	return component.FlowMetrics{
		MessagesPerSecond: messagesPerSecond,
		BytesPerSecond:    bytesPerSecond,
		ErrorRate:         errorRate,
		LastActivity:      lastActivity,
	}
}

// Initialize prepares the GELF HTTP input component but does not start listening
func (u *Input) Initialize() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	// Port 0 is allowed for OS auto-assignment
	if u.port < 0 || u.port > 65535 {
		return errors.WrapInvalid(fmt.Errorf("invalid port %d", u.port),
			"gelf-http-input", "Initialize", "port validation")
	}

	if u.path == "" || u.path[0] != '/' {
		return errors.WrapInvalid(fmt.Errorf("invalid path %q", u.path),
			"gelf-http-input", "Initialize", "path validation")
	}

	if u.subject == "" {
		return errors.WrapInvalid(fmt.Errorf("empty subject"),
			"gelf-http-input", "Initialize", "subject validation")
	}

	if u.natsClient == nil {
		return errors.WrapInvalid(fmt.Errorf("nil NATS client"),
			"gelf-http-input", "Initialize", "NATS client validation")
	}

	return nil
}

// Start binds the listen socket and begins serving GELF POST requests
func (u *Input) Start(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.running.Load() {
		return nil // Already running, idempotent
	}

	u.done = make(chan struct{})

	lifecycleCtx, lifecycleStop := context.WithCancel(ctx)
	u.lifecycleStop = lifecycleStop

	if err := u.setupServer(lifecycleCtx); err != nil {
		u.cleanupUnlocked()
		return err
	}

	// Bind before serving so configuration errors surface here, not in
	// the serve goroutine
	bindOperation := func() error {
		ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", u.bind, u.port))
		if err != nil {
			return fmt.Errorf("failed to listen on %s:%d: %w", u.bind, u.port, err)
		}
		u.listener = ln
		return nil
	}

	if err := retry.Do(ctx, u.retryConfig, bindOperation); err != nil {
		u.cleanupUnlocked()
		return errors.WrapTransient(err, "gelf-http-input", "Start", "socket binding")
	}

	u.running.Store(true)
	u.startTime = time.Now()

	u.wg.Add(1)
	go u.runServer()

	return nil
}

// setupServer builds the HTTP server and loads TLS material if enabled
func (u *Input) setupServer(lifecycleCtx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc(u.path, u.handleGELF)

	u.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", u.bind, u.port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if !u.security.TLS.Server.Enabled {
		return nil
	}

	mode := u.security.TLS.Server.Mode
	if mode == "" {
		mode = "manual"
	}

	if mode == "acme" && u.security.TLS.Server.ACME.Enabled {
		tlsConfig, cleanup, err := tlsutil.LoadServerTLSConfigWithACME(lifecycleCtx, u.security.TLS.Server)
		if err != nil {
			return errors.WrapFatal(err, "gelf-http-input", "setupServer", "load TLS config with ACME")
		}
		u.server.TLSConfig = tlsConfig
		u.tlsCleanup = cleanup
		return nil
	}

	tlsConfig, err := tlsutil.LoadServerTLSConfigWithMTLS(u.security.TLS.Server, u.security.TLS.Server.MTLS)
	if err != nil {
		return errors.WrapFatal(err, "gelf-http-input", "setupServer", "load TLS config with mTLS")
	}
	u.server.TLSConfig = tlsConfig
	return nil
}

// runServer serves requests until Stop shuts the server down
func (u *Input) runServer() {
	defer u.wg.Done()
	defer func() {
		u.mu.Lock()
		defer u.mu.Unlock()
		if u.done != nil {
			select {
			case <-u.done:
			default:
				close(u.done)
			}
		}
	}()

	u.mu.RLock()
	server := u.server
	listener := u.listener
	tlsEnabled := u.security.TLS.Server.Enabled
	u.mu.RUnlock()

	if server == nil || listener == nil {
		return
	}

	var err error
	if tlsEnabled {
		// Certificates come from TLSConfig, not files
		err = server.ServeTLS(listener, "", "")
	} else {
		err = server.Serve(listener)
	}

	if err != nil && err != http.ErrServerClosed {
		u.errors.Add(1)
		u.logger.Error("HTTP server failed", "error", err)
	}
}

// handleGELF accepts one GELF payload per POST request
func (u *Input) handleGELF(w http.ResponseWriter, r *http.Request) {
	u.requestsReceived.Add(1)
	now := time.Now()
	u.lastActivity.Store(now)
	if u.metrics != nil {
		u.metrics.requestsReceived.Inc()
		u.metrics.lastActivity.Set(float64(now.Unix()))
	}

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		u.writeError(w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method))
		u.rejected()
		return
	}

	defer func() { _ = r.Body.Close() }()

	// Read with one spare byte so an oversized body is distinguishable
	// from an exactly-full one
	body, err := io.ReadAll(io.LimitReader(r.Body, u.maxBodyBytes+1))
	if err != nil {
		u.writeError(w, http.StatusBadRequest, "failed to read request body")
		u.rejected()
		return
	}
	if int64(len(body)) > u.maxBodyBytes {
		u.writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("request body exceeds maximum size of %d bytes", u.maxBodyBytes))
		u.rejected()
		return
	}
	if len(body) == 0 {
		u.writeError(w, http.StatusBadRequest, "empty request body")
		u.rejected()
		return
	}

	u.bytesReceived.Add(int64(len(body)))
	if u.metrics != nil {
		u.metrics.bytesReceived.Add(float64(len(body)))
	}

	// Compression is detected from the payload itself, so clients may
	// send gzip or zlib bodies with or without a Content-Encoding header
	payload, err := gelf.Decompress(body, int(u.maxBodyBytes))
	if err != nil {
		u.writeError(w, http.StatusBadRequest, "undecodable payload")
		u.rejected()
		if u.logLimit.Allow() {
			u.logger.Warn("Rejecting undecodable request body",
				"error", err,
				"remote", r.RemoteAddr,
				"size", len(body))
		}
		return
	}

	if err := u.processPayload(r.Context(), payload, r.RemoteAddr); err != nil {
		u.errors.Add(1)
		if u.metrics != nil {
			u.metrics.eventsDropped.Inc()
		}
		if u.logLimit.Allow() {
			u.logger.Error("Dropping event", "error", err, "remote", r.RemoteAddr)
		}
		u.writeError(w, u.statusFor(err), u.sanitizeError(err))
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// processPayload runs the shared build, transform, publish pipeline
func (u *Input) processPayload(ctx context.Context, payload []byte, remoteAddr string) error {
	sourceHost := remoteAddr
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		sourceHost = host
	}

	ev := gelf.BuildEvent(payload, sourceHost)
	if ev.HasTag(gelf.TagParseFailure) {
		u.parseFallbacks.Add(1)
		if u.metrics != nil {
			u.metrics.parseFallbacks.Inc()
		}
		if u.logLimit.Allow() {
			u.logger.Warn("Payload is not a JSON object, built fallback event",
				"remote", remoteAddr,
				"payload", preview(payload))
		}
	}

	if err := u.transformer.Transform(ev); err != nil {
		return errors.WrapInvalid(err, "gelf-http-input", "processPayload", "event transform")
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return errors.WrapInvalid(err, "gelf-http-input", "processPayload", "event marshal")
	}

	publishOperation := func() error {
		return u.publishEvent(data)
	}
	if err := retry.Do(ctx, u.retryConfig, publishOperation); err != nil {
		return err
	}
	return nil
}

// publishEvent publishes one marshaled event to the configured NATS subject
func (u *Input) publishEvent(data []byte) error {
	if u.natsClient == nil {
		return errors.WrapInvalid(fmt.Errorf("NATS client not available"),
			"gelf-http-input", "publishEvent", "NATS client check")
	}

	nc := u.natsClient.GetConnection()
	if nc == nil {
		return errors.WrapTransient(fmt.Errorf("NATS connection not available"),
			"gelf-http-input", "publishEvent", "NATS connection check")
	}

	var start time.Time
	if u.metrics != nil {
		start = time.Now()
	}

	if err := nc.Publish(u.subject, data); err != nil {
		return errors.WrapTransient(err, "gelf-http-input", "publishEvent", "NATS publish")
	}

	u.eventsPublished.Add(1)
	if u.metrics != nil {
		u.metrics.eventsPublished.Inc()
		u.metrics.publishLatency.Observe(time.Since(start).Seconds())
	}

	return nil
}

// statusFor maps pipeline errors to HTTP status codes
func (u *Input) statusFor(err error) int {
	if errors.IsInvalid(err) {
		return http.StatusBadRequest
	}
	if errors.IsTransient(err) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// sanitizeError returns a safe error message for external clients
func (u *Input) sanitizeError(err error) string {
	if errors.IsInvalid(err) {
		return "invalid request"
	}
	if errors.IsTransient(err) {
		return "service temporarily unavailable"
	}
	return "internal server error"
}

// writeError writes a JSON error response
func (u *Input) writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := map[string]any{
		"error":  message,
		"status": statusCode,
	}

	data, _ := json.Marshal(response)
	_, _ = w.Write(data)
}

// rejected counts a request refused before the pipeline
func (u *Input) rejected() {
	u.errors.Add(1)
	if u.metrics != nil {
		u.metrics.requestsRejected.Inc()
	}
}

// Stop gracefully stops the HTTP listener with the specified timeout
func (u *Input) Stop(timeout time.Duration) error {
	if !u.running.Load() {
		return nil
	}

	u.running.Store(false)

	u.mu.Lock()
	server := u.server
	u.mu.Unlock()

	// Shutdown unblocks Serve and drains in-flight requests
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			u.logger.Warn("HTTP server shutdown error", "error", err)
		}
	}

	select {
	case <-u.done:
		// Serve goroutine finished cleanly
	case <-time.After(timeout):
		return errors.WrapTransient(fmt.Errorf("stop timeout after %v", timeout),
			"gelf-http-input", "Stop", "graceful shutdown")
	}

	u.cleanup()
	return nil
}

// cleanup cleans up resources
func (u *Input) cleanup() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.cleanupUnlocked()
}

// cleanupUnlocked cleans up resources without acquiring the mutex; used when
// the mutex is already held (e.g. in Start)
func (u *Input) cleanupUnlocked() {
	if u.done != nil {
		u.done = nil
	}
	if u.listener != nil {
		_ = u.listener.Close()
		u.listener = nil
	}
	u.server = nil
	if u.tlsCleanup != nil {
		u.tlsCleanup()
		u.tlsCleanup = nil
	}
	if u.lifecycleStop != nil {
		u.lifecycleStop()
		u.lifecycleStop = nil
	}
}

// preview truncates raw payload bytes for log output
func preview(data []byte) string {
	if len(data) > logPreviewLimit {
		return fmt.Sprintf("%q...", data[:logPreviewLimit])
	}
	return fmt.Sprintf("%q", data)
}

// CreateInput creates a GELF HTTP input component following service pattern
func CreateInput(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	// Unmarshal over the defaults so absent keys keep their default values
	// and explicit false/zero values override them
	cfg := DefaultConfig()
	if len(rawConfig) > 0 {
		if err := component.SafeUnmarshal(rawConfig, &cfg); err != nil {
			return nil, errors.Wrap(err, "gelf-http-input-factory", "create", "secure config parsing")
		}
	}

	// Validate required dependencies
	if deps.NATSClient == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("NATS client is required"),
			"gelf-http-input-factory", "create", "NATS client validation")
	}

	var decorators []gelf.Decorator
	if cfg.AnnotateEvents {
		decorators = append(decorators, gelf.NewAnnotateDecorator())
	}

	inputDeps := InputDeps{
		Name:            "gelf-http-input", // Default name, will be overridden by ComponentManager
		Config:          cfg,
		NATSClient:      deps.NATSClient,
		MetricsRegistry: deps.MetricsRegistry,
		Logger:          deps.GetLoggerWithComponent("gelf-http-input"),
		Security:        deps.Security,
		Decorators:      decorators,
	}

	input := NewInput(inputDeps)
	if input == nil {
		return nil, errors.WrapFatal(fmt.Errorf("component construction failed"),
			"gelf-http-input-factory", "create", "input setup")
	}
	return input, nil
}

// Register registers the GELF HTTP input component with the given registry
func Register(registry *component.Registry) error {
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "gelfhttp",
		Factory:     CreateInput,
		Schema:      gelfHTTPSchema,
		Type:        "input",
		Protocol:    "http",
		Domain:      "logging",
		Description: "GELF HTTP input for receiving Graylog Extended Log Format messages over HTTP POST",
		Version:     "1.0.0",
	})
}
