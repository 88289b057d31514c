// Package websocket provides a WebSocket output component that streams a live tail of ingested events
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/logstream/component"
	"github.com/c360/logstream/errors"
	"github.com/c360/logstream/metric"
	"github.com/c360/logstream/natsclient"
	"github.com/c360/logstream/pkg/security"
	"github.com/c360/logstream/pkg/tlsutil"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// writeWait bounds a single frame write to one client.
	writeWait = 10 * time.Second

	// maxClientFrameBytes caps inbound frames. Tail clients only send
	// control traffic, never data.
	maxClientFrameBytes = 512

	defaultSendQueueSize = 256
	defaultPingInterval  = 30 * time.Second
)

// Config holds configuration for WebSocket output component
type Config struct {
	// Port configuration for inputs and outputs
	Ports *component.PortConfig `json:"ports"                           schema:"type:ports,description:Port configuration,category:basic"`
	// SendQueueSize caps how many events may queue per client before new ones are dropped
	SendQueueSize int `json:"send_queue_size,omitempty"       schema:"type:int,description:Per-client send queue capacity,default:256,min:1,max:65536,category:advanced"`
	// PingIntervalSeconds controls the keepalive ping cadence
	PingIntervalSeconds int `json:"ping_interval_seconds,omitempty" schema:"type:int,description:Seconds between keepalive pings,default:30,min:5,max:300,category:advanced"`
}

// ConstructorConfig holds all configuration needed to construct an Output instance
type ConstructorConfig struct {
	Name            string                  // Component name (empty = auto-generate)
	Port            int                     // WebSocket server port
	Path            string                  // WebSocket endpoint path
	Subjects        []string                // NATS subjects to subscribe to
	NATSClient      *natsclient.Client      // NATS client for messaging
	MetricsRegistry *metric.MetricsRegistry // Optional Prometheus metrics registry
	Security        security.Config         // Security configuration
	Logger          *slog.Logger            // Structured logger (nil = slog.Default())
	SendQueueSize   int                     // Per-client send queue capacity
	PingInterval    time.Duration           // Keepalive ping cadence
}

// DefaultConstructorConfig returns sensible defaults for Output construction
func DefaultConstructorConfig() ConstructorConfig {
	return ConstructorConfig{
		Name:          "",
		Port:          8081,
		Path:          "/ws",
		Subjects:      []string{"input.gelf.>"},
		Security:      security.Config{},
		SendQueueSize: defaultSendQueueSize,
		PingInterval:  defaultPingInterval,
	}
}

// DefaultConfig returns the default configuration for WebSocket output
func DefaultConfig() Config {
	// WebSocket output typically has:
	// - Input: NATS subjects to listen to
	// - Output: WebSocket server network port (encoded in Subject field)
	inputDefs := []component.PortDefinition{
		{
			Name:        "nats_input",
			Type:        "nats",
			Subject:     "input.gelf.>", // Default to ingested events
			Required:    true,
			Description: "NATS subjects to listen to",
		},
	}

	// For network ports, we encode the URL in Subject field for now
	// This matches how the factory extracts config
	outputDefs := []component.PortDefinition{
		{
			Name:        "websocket_server",
			Type:        "network",
			Subject:     "http://0.0.0.0:8081/ws", // Encoded as URL
			Required:    false,
			Description: "WebSocket server endpoint",
		},
	}

	return Config{
		Ports: &component.PortConfig{
			Inputs:  inputDefs,
			Outputs: outputDefs,
		},
		SendQueueSize:       defaultSendQueueSize,
		PingIntervalSeconds: 30,
	}
}

// websocketSchema defines the configuration schema for WebSocket output component
// Generated from Config struct tags using reflection
var websocketSchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

// Output implements a WebSocket server that streams events from NATS to connected clients.
// This is the live tail of the ingest pipeline: every event published on the subscribed
// subjects is fanned out to every connected client.
type Output struct {
	name          string
	port          int
	path          string
	subjects      []string
	natsClient    *natsclient.Client
	security      security.Config
	logger        *slog.Logger
	sendQueueSize int
	pingInterval  time.Duration

	// WebSocket server
	server    *http.Server
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]*clientInfo
	clientsMu sync.RWMutex

	// NATS subscriptions are managed by natsclient wrapper

	// Lifecycle management
	shutdown      chan struct{} // Signal shutdown to all goroutines
	done          chan struct{} // Signal completion of shutdown
	running       bool
	startTime     time.Time
	mu            sync.RWMutex
	lifecycleMu   sync.Mutex      // Ensures Start/Stop operations are serialized
	wg            *sync.WaitGroup // Track goroutines for safe shutdown (pointer for replacement)
	tlsCleanup    func()          // ACME cleanup function (stops renewal loop)
	tlsCleanupMu  sync.Mutex      // Protects tlsCleanup
	lifecycleCtx  context.Context // Context for lifecycle operations (ACME, etc.)
	lifecycleStop context.CancelFunc

	// Counters (atomic)
	eventsSent    int64
	bytesSent     int64
	eventsDropped int64
	errors        int64

	lastActivity time.Time // Protected by mu

	// Prometheus metrics
	metrics *Metrics
}

// outFrame is one queued broadcast payload tagged with its origin subject
type outFrame struct {
	subject string
	data    []byte
}

// clientInfo holds per-connection state for one tail client
type clientInfo struct {
	conn        *websocket.Conn
	connectedAt time.Time
	send        chan outFrame // Queued frames, drained by the write loop
	done        chan struct{} // Closed by removeClient
	lastPong    atomic.Value  // stores time.Time
	dropped     int64         // Frames dropped because the send queue was full
	closed      atomic.Bool
	closeOnce   sync.Once
}

// Ensure Output implements all required interfaces
var _ component.Discoverable = (*Output)(nil)
var _ component.LifecycleComponent = (*Output)(nil)

// Metrics holds Prometheus metrics for Output component
type Metrics struct {
	messagesReceived    *prometheus.CounterVec
	messagesSent        *prometheus.CounterVec
	messagesDropped     *prometheus.CounterVec
	bytesSent           prometheus.Counter
	clientsConnected    prometheus.Gauge
	connectionTotal     prometheus.Counter
	disconnectionTotal  *prometheus.CounterVec
	broadcastDuration   *prometheus.HistogramVec
	messageSizeBytes    *prometheus.HistogramVec
	errorsTotal         *prometheus.CounterVec
	serverUptimeSeconds prometheus.Gauge
}

// newMetrics creates and registers Output metrics
func newMetrics(registry *metric.MetricsRegistry, _ string) *Metrics {
	// Return nil if no registry provided (nil input = nil feature pattern)
	if registry == nil {
		return nil
	}

	// Only create metrics when registry is provided
	metrics := &Metrics{
		messagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logstream",
			Subsystem: "websocket",
			Name:      "messages_received_total",
			Help:      "Total events received from NATS",
		}, []string{"subject"}),

		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logstream",
			Subsystem: "websocket",
			Name:      "messages_sent_total",
			Help:      "Total events sent to WebSocket clients",
		}, []string{"subject"}),

		messagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logstream",
			Subsystem: "websocket",
			Name:      "messages_dropped_total",
			Help:      "Events dropped for clients whose send queue was full",
		}, []string{"subject"}),

		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "logstream",
			Subsystem: "websocket",
			Name:      "bytes_sent_total",
			Help:      "Total bytes sent to WebSocket clients",
		}),

		clientsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "logstream",
			Subsystem: "websocket",
			Name:      "clients_connected",
			Help:      "Number of currently connected clients",
		}),

		connectionTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "logstream",
			Subsystem: "websocket",
			Name:      "client_connections_total",
			Help:      "Total client connections (including disconnected)",
		}),

		disconnectionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logstream",
			Subsystem: "websocket",
			Name:      "client_disconnections_total",
			Help:      "Total client disconnections",
		}, []string{"disconnect_reason"}),

		broadcastDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "logstream",
			Subsystem: "websocket",
			Name:      "broadcast_duration_seconds",
			Help:      "Time to queue an event for all clients",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"subject"}),

		messageSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "logstream",
			Subsystem: "websocket",
			Name:      "message_size_bytes",
			Help:      "Size distribution of outgoing events",
			Buckets:   []float64{100, 500, 1000, 2000, 5000, 10000, 25000},
		}, []string{"subject"}),

		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logstream",
			Subsystem: "websocket",
			Name:      "errors_total",
			Help:      "WebSocket server errors",
		}, []string{"error_type"}),

		serverUptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "logstream",
			Subsystem: "websocket",
			Name:      "server_uptime_seconds",
			Help:      "WebSocket server uptime in seconds",
		}),
	}

	// Register all metrics (no conditional needed since metrics only exist with registry)
	registry.PrometheusRegistry().MustRegister(
		metrics.messagesReceived,
		metrics.messagesSent,
		metrics.messagesDropped,
		metrics.bytesSent,
		metrics.clientsConnected,
		metrics.connectionTotal,
		metrics.disconnectionTotal,
		metrics.broadcastDuration,
		metrics.messageSizeBytes,
		metrics.errorsTotal,
		metrics.serverUptimeSeconds,
	)

	return metrics
}

// NewOutput creates a new WebSocket output component with minimal configuration.
// For more control over configuration, use NewOutputFromConfig().
func NewOutput(port int, path string, subjects []string, natsClient *natsclient.Client) *Output {
	cfg := DefaultConstructorConfig()
	cfg.Port = port
	cfg.Path = path
	cfg.Subjects = subjects
	cfg.NATSClient = natsClient
	return NewOutputFromConfig(cfg)
}

// NewOutputFromConfig creates a new WebSocket output component from ConstructorConfig.
// This is the recommended way to create Output instances with full configuration control.
func NewOutputFromConfig(cfg ConstructorConfig) *Output {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(_ *http.Request) bool {
			// Allow connections from any origin for development
			// In production, this should be more restrictive
			return true
		},
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}

	sendQueueSize := cfg.SendQueueSize
	if sendQueueSize <= 0 {
		sendQueueSize = defaultSendQueueSize
	}

	pingInterval := cfg.PingInterval
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Output{
		name:          cfg.Name,
		port:          cfg.Port,
		path:          cfg.Path,
		subjects:      cfg.Subjects,
		natsClient:    cfg.NATSClient,
		security:      cfg.Security,
		logger:        logger,
		sendQueueSize: sendQueueSize,
		pingInterval:  pingInterval,
		upgrader:      upgrader,
		clients:       make(map[*websocket.Conn]*clientInfo),
		startTime:     time.Now(),
		metrics:       newMetrics(cfg.MetricsRegistry, cfg.Name),
	}
}

// Meta returns the component metadata
func (w *Output) Meta() component.Metadata {
	subjectsStr := fmt.Sprintf("%v", w.subjects)

	// Use provided name if available, otherwise fall back to default naming
	name := w.name
	if name == "" {
		name = fmt.Sprintf("websocket-output-%d", w.port)
	}

	return component.Metadata{
		Name:        name,
		Type:        "output",
		Description: fmt.Sprintf("WebSocket live tail on %s:%d streaming events from subjects %s", w.path, w.port, subjectsStr),
		Version:     "1.0.0",
	}
}

// InputPorts returns the input ports for this component
func (w *Output) InputPorts() []component.Port {
	ports := make([]component.Port, len(w.subjects))
	for i, subject := range w.subjects {
		ports[i] = component.Port{
			Name:        fmt.Sprintf("nats_input_%d", i),
			Direction:   component.DirectionInput,
			Required:    false, // Optional - not all subjects will have publishers
			Description: fmt.Sprintf("NATS subject subscription for %s", subject),
			Config: component.NATSPort{
				Subject: subject,
			},
		}
	}
	return ports
}

// OutputPorts returns the output ports for this component
func (w *Output) OutputPorts() []component.Port {
	return []component.Port{
		{
			Name:        "websocket_endpoint",
			Direction:   component.DirectionOutput,
			Required:    false,
			Description: fmt.Sprintf("WebSocket endpoint at ws://localhost:%d%s", w.port, w.path),
			Config: component.NetworkPort{
				Protocol: "websocket",
				Host:     "localhost",
				Port:     w.port,
			},
		},
	}
}

// ConfigSchema returns the configuration schema for this component
// References the package-level websocketSchema variable for efficient retrieval
func (w *Output) ConfigSchema() component.ConfigSchema {
	return websocketSchema
}

// Health returns the current health status of the component
func (w *Output) Health() component.HealthStatus {
	w.mu.RLock()
	running := w.running
	serverRunning := w.server != nil
	w.mu.RUnlock()

	errCount := atomic.LoadInt64(&w.errors)

	healthy := running && serverRunning

	return component.HealthStatus{
		Healthy:    healthy,
		LastCheck:  time.Now(),
		ErrorCount: int(errCount),
		LastError:  "",
		Uptime:     time.Since(w.startTime),
	}
}

// DataFlow returns the current data flow metrics
func (w *Output) DataFlow() component.FlowMetrics {
	sent := atomic.LoadInt64(&w.eventsSent)
	bytes := atomic.LoadInt64(&w.bytesSent)
	errCount := atomic.LoadInt64(&w.errors)

	w.mu.RLock()
	lastActivity := w.lastActivity
	w.mu.RUnlock()

	var messagesPerSecond float64
	var bytesPerSecond float64
	var errorRate float64

	if uptime := time.Since(w.startTime).Seconds(); uptime > 0 {
		messagesPerSecond = float64(sent) / uptime
		bytesPerSecond = float64(bytes) / uptime
	}

	if sent > 0 {
		errorRate = float64(errCount) / float64(sent)
	}

	return component.FlowMetrics{
		MessagesPerSecond: messagesPerSecond,
		BytesPerSecond:    bytesPerSecond,
		ErrorRate:         errorRate,
		LastActivity:      lastActivity,
	}
}

// Initialize prepares the WebSocket output component but does not start the server
func (w *Output) Initialize() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// Validate configuration
	if w.port < 1024 || w.port > 65535 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Output", "validateConfig",
			fmt.Sprintf("invalid port %d (out of range 1024-65535)", w.port))
	}

	if w.path == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Output", "validateConfig", "WebSocket path cannot be empty")
	}

	if len(w.subjects) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Output", "validateConfig", "NATS subjects cannot be empty")
	}

	// NATS client is optional for testing - will skip NATS subscription if nil

	return nil
}

// Start begins the WebSocket server and NATS subscription
func (w *Output) Start(ctx context.Context) error {
	// Serialize Start/Stop operations to prevent race conditions
	w.lifecycleMu.Lock()
	defer w.lifecycleMu.Unlock()

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	// Validate context
	if err := w.validateContext(ctx); err != nil {
		return err
	}

	// Create lifecycle context for ACME and other background operations
	w.lifecycleCtx, w.lifecycleStop = context.WithCancel(context.Background())

	// Create shutdown channels for coordinated shutdown
	w.setupShutdownChannels()

	// Cleanup on error
	var cleanupErr error
	defer func() {
		if cleanupErr != nil {
			w.cleanupOnError()
		}
	}()

	// Set up HTTP server with WebSocket endpoint
	if err := w.setupHTTPServer(); err != nil {
		cleanupErr = err
		return err
	}

	// Subscribe to NATS subjects for event delivery
	if err := w.subscribeToNATS(ctx); err != nil {
		cleanupErr = err
		return errors.Wrap(err, "Output", "Start", fmt.Sprintf("subscribe to NATS subjects %v", w.subjects))
	}

	// Mark as running and start background goroutines
	w.running = true
	w.startTime = time.Now()
	w.startBackgroundGoroutines(ctx)

	w.logger.Info("starting websocket live tail",
		"port", w.port,
		"path", w.path,
		"subjects", w.subjects,
		"send_queue_size", w.sendQueueSize)

	return nil
}

// validateContext checks if the provided context is valid
func (w *Output) validateContext(ctx context.Context) error {
	if ctx == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Output", "Start", "context cannot be nil")
	}

	// Check if context is already cancelled or timed out
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "Output", "Start", "context already cancelled or timed out")
	}

	return nil
}

// setupShutdownChannels creates channels for coordinated shutdown
func (w *Output) setupShutdownChannels() {
	w.shutdown = make(chan struct{})
	w.done = make(chan struct{})
}

// cleanupOnError cleans up resources when Start fails
func (w *Output) cleanupOnError() {
	// Clean up channels if we created them
	if w.shutdown != nil {
		close(w.shutdown)
		w.shutdown = nil
	}
	if w.done != nil {
		close(w.done)
		w.done = nil
	}
	// Clean up server if we created it
	if w.server != nil {
		_ = w.server.Shutdown(context.Background())
		w.server = nil
	}
}

// setupHTTPServer creates and configures the HTTP server with TLS if enabled
func (w *Output) setupHTTPServer() error {
	// Set up HTTP server with WebSocket endpoint
	mux := http.NewServeMux()
	mux.HandleFunc(w.path, w.handleWebSocket)

	w.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", w.port),
		Handler: mux,
	}

	// Configure TLS if enabled at platform level
	if w.security.TLS.Server.Enabled {
		// Check if ACME mode is enabled
		mode := w.security.TLS.Server.Mode
		if mode == "" {
			mode = "manual" // Default
		}

		if mode == "acme" && w.security.TLS.Server.ACME.Enabled {
			// Use ACME-aware TLS configuration
			tlsConfig, cleanup, err := tlsutil.LoadServerTLSConfigWithACME(
				w.lifecycleCtx,
				w.security.TLS.Server,
			)
			if err != nil {
				return errors.WrapFatal(err, "websocket_output", "setupHTTPServer",
					"load TLS config with ACME")
			}
			w.server.TLSConfig = tlsConfig

			// Store cleanup function for Stop()
			w.tlsCleanupMu.Lock()
			w.tlsCleanup = cleanup
			w.tlsCleanupMu.Unlock()
		} else {
			// Use manual TLS configuration
			tlsConfig, err := tlsutil.LoadServerTLSConfigWithMTLS(
				w.security.TLS.Server,
				w.security.TLS.Server.MTLS,
			)
			if err != nil {
				return errors.WrapFatal(err, "websocket_output", "setupHTTPServer",
					"load TLS config with mTLS")
			}
			w.server.TLSConfig = tlsConfig
		}
	}

	return nil
}

// startBackgroundGoroutines starts all background goroutines for the WebSocket server
func (w *Output) startBackgroundGoroutines(ctx context.Context) {
	// Create a fresh wait group for this start cycle to avoid reuse issues
	w.wg = &sync.WaitGroup{}

	// Add all goroutines to wait group before starting any of them
	goroutineCount := 2 // runServer + maintainClients
	if w.metrics != nil {
		goroutineCount++ // metrics goroutine
	}
	w.wg.Add(goroutineCount)

	// Start uptime tracking goroutine
	if w.metrics != nil {
		go w.trackUptime(ctx)
	}

	// Start the HTTP server in a goroutine
	go w.runServer(ctx)

	// Start client maintenance in a goroutine
	go w.maintainClients(ctx)
}

// trackUptime periodically updates the server uptime metric
func (w *Output) trackUptime(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			w.mu.RLock()
			running := w.running
			w.mu.RUnlock()
			if w.metrics != nil && running {
				w.metrics.serverUptimeSeconds.Set(time.Since(w.startTime).Seconds())
			}
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		}
	}
}

// Stop gracefully stops the WebSocket server and closes all connections
func (w *Output) Stop(timeout time.Duration) error {
	w.lifecycleMu.Lock()
	defer w.lifecycleMu.Unlock()

	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false

	// Step 1: Signal shutdown to all goroutines
	if w.shutdown != nil {
		close(w.shutdown)
	}

	// Step 2: Capture references we need
	wg := w.wg
	server := w.server
	w.mu.Unlock()

	// Step 3: Shutdown HTTP server FIRST (outside locks)
	// This causes ListenAndServe to return with http.ErrServerClosed
	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			w.logger.Warn("http server shutdown error", "error", err)
		}
	}

	// Step 4: Close client connections. Server shutdown does not touch
	// hijacked websocket connections, and the read loops stay blocked
	// until their connection dies.
	w.closeAllClients()

	// Step 5: Wait for goroutines (they can exit after server shutdown)
	if wg != nil {
		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			// All goroutines exited cleanly
		case <-time.After(5 * time.Second):
			w.logger.Warn("websocket goroutines did not exit within timeout")
		}
	}

	// Step 6: Stop ACME renewal loop if active
	w.tlsCleanupMu.Lock()
	if w.tlsCleanup != nil {
		w.tlsCleanup()
		w.tlsCleanup = nil
	}
	w.tlsCleanupMu.Unlock()

	// Cancel lifecycle context (stops ACME renewal loop)
	if w.lifecycleStop != nil {
		w.lifecycleStop()
	}

	// Step 7: Clean up remaining resources
	w.mu.Lock()
	w.unsubscribeFromNATS()

	// Clear references and close done channel to signal completion
	w.server = nil
	if w.done != nil {
		close(w.done)
		w.done = nil
	}
	w.shutdown = nil
	w.wg = nil
	w.mu.Unlock()

	return nil
}

// subscribeToNATS subscribes to the configured NATS subjects
func (w *Output) subscribeToNATS(ctx context.Context) error {
	// Skip NATS subscription if client is nil (for testing)
	if w.natsClient == nil {
		return nil
	}

	// Subscribe to each subject using natsclient wrapper
	for _, subject := range w.subjects {
		err := w.natsClient.Subscribe(ctx, subject, func(msgCtx context.Context, data []byte) {
			w.handleEvent(msgCtx, data, subject)
		})
		if err != nil {
			return errors.Wrap(err, "Output", "subscribeToNATS", fmt.Sprintf("subscribe to NATS subject %s", subject))
		}
	}

	return nil
}

// unsubscribeFromNATS unsubscribes from all NATS subjects
func (w *Output) unsubscribeFromNATS() {
	// The natsclient wrapper handles subscription cleanup automatically
	// when the connection is closed or disconnected
}

// closeAllClients closes all WebSocket client connections
func (w *Output) closeAllClients() {
	w.clientsMu.Lock()
	for conn := range w.clients {
		_ = conn.Close()
	}
	w.clients = make(map[*websocket.Conn]*clientInfo)
	w.clientsMu.Unlock()
}

// handleEvent processes one event from NATS and queues it for all connected clients
func (w *Output) handleEvent(ctx context.Context, data []byte, subject string) {
	// Check for context cancellation or shutdown signal
	select {
	case <-ctx.Done():
		return
	case <-w.shutdown:
		return
	default:
	}

	w.mu.RLock()
	if !w.running {
		w.mu.RUnlock()
		return
	}
	w.mu.RUnlock()

	// Update activity timestamp
	w.mu.Lock()
	w.lastActivity = time.Now()
	w.mu.Unlock()

	// Events pass through verbatim so the tail shows exactly what was
	// ingested. Anything that is not JSON gets wrapped so clients always
	// receive a JSON document.
	if !json.Valid(data) {
		wrapped, err := json.Marshal(map[string]any{
			"type":      "raw_data",
			"subject":   subject,
			"data":      string(data),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			atomic.AddInt64(&w.errors, 1)
			if w.metrics != nil {
				w.metrics.errorsTotal.WithLabelValues("json_marshal").Inc()
			}
			return
		}
		data = wrapped
	}

	// Update metrics for received event
	if w.metrics != nil {
		w.metrics.messagesReceived.WithLabelValues(subject).Inc()
	}

	// Queue for all connected clients
	w.broadcastToClients(ctx, subject, data)
}

// broadcastToClients queues an event for every connected WebSocket client
func (w *Output) broadcastToClients(ctx context.Context, subject string, data []byte) {
	start := time.Now()

	// Build snapshot of active clients
	clientList, clientInfoMap := w.buildClientSnapshot()

	// Check for context cancellation before broadcast
	select {
	case <-ctx.Done():
		return
	case <-w.shutdown:
		return
	default:
	}

	// Queue the frame for every client. A full queue means the client is
	// not keeping up; the frame is dropped for that client and counted.
	frame := outFrame{subject: subject, data: data}
	for _, conn := range clientList {
		info := clientInfoMap[conn]
		// Skip if client was closed during iteration
		if info.closed.Load() {
			continue
		}

		select {
		case info.send <- frame:
		default:
			atomic.AddInt64(&info.dropped, 1)
			atomic.AddInt64(&w.eventsDropped, 1)
			if w.metrics != nil {
				w.metrics.messagesDropped.WithLabelValues(subject).Inc()
			}
		}
	}

	// Record broadcast duration
	if w.metrics != nil {
		w.metrics.broadcastDuration.WithLabelValues(subject).Observe(time.Since(start).Seconds())
	}
}

// buildClientSnapshot creates a thread-safe snapshot of active clients
func (w *Output) buildClientSnapshot() ([]*websocket.Conn, map[*websocket.Conn]*clientInfo) {
	w.clientsMu.RLock()
	defer w.clientsMu.RUnlock()

	clientList := make([]*websocket.Conn, 0, len(w.clients))
	clientInfoMap := make(map[*websocket.Conn]*clientInfo, len(w.clients))
	for conn, info := range w.clients {
		if !info.closed.Load() {
			clientList = append(clientList, conn)
			clientInfoMap[conn] = info
		}
	}

	return clientList, clientInfoMap
}

// runServer runs the HTTP server
func (w *Output) runServer(_ context.Context) {
	defer func() {
		if w.wg != nil {
			w.wg.Done()
		}
	}()

	w.mu.RLock()
	server := w.server
	tlsEnabled := w.security.TLS.Server.Enabled
	w.mu.RUnlock()

	if server == nil {
		return
	}

	// ListenAndServe/ListenAndServeTLS blocks until Shutdown is called
	var err error
	if tlsEnabled {
		// ListenAndServeTLS with empty cert/key files since TLSConfig is already set
		err = server.ListenAndServeTLS("", "")
	} else {
		err = server.ListenAndServe()
	}

	if err != nil && err != http.ErrServerClosed {
		// Only log real errors, not graceful shutdown
		w.logger.Error("http server failed", "error", err)
		atomic.AddInt64(&w.errors, 1)
	}
	// http.ErrServerClosed is expected during graceful shutdown
}

// handleWebSocket handles new WebSocket connections
func (w *Output) handleWebSocket(wr http.ResponseWriter, r *http.Request) {
	// Upgrade HTTP connection to WebSocket
	conn, err := w.upgrader.Upgrade(wr, r, nil)
	if err != nil {
		atomic.AddInt64(&w.errors, 1)
		if w.metrics != nil {
			w.metrics.errorsTotal.WithLabelValues("connection_upgrade").Inc()
		}
		return
	}

	info := &clientInfo{
		conn:        conn,
		connectedAt: time.Now(),
		send:        make(chan outFrame, w.sendQueueSize),
		done:        make(chan struct{}),
	}
	info.lastPong.Store(time.Now())

	// Capture the wait group and shutdown channel for this start cycle;
	// Stop replaces both.
	w.mu.RLock()
	wg := w.wg
	shutdown := w.shutdown
	w.mu.RUnlock()
	if wg == nil || shutdown == nil {
		_ = conn.Close()
		return
	}

	// Add client to our map
	w.clientsMu.Lock()
	w.clients[conn] = info
	clientCount := len(w.clients)
	w.clientsMu.Unlock()

	// Update metrics
	if w.metrics != nil {
		w.metrics.connectionTotal.Inc()
		w.metrics.clientsConnected.Set(float64(clientCount))
	}

	// One reader and one writer per client
	wg.Add(2)
	go w.readLoop(conn, info, wg)
	go w.writeLoop(conn, info, wg, shutdown)
}

// readLoop consumes client frames until the connection dies. Tail clients
// are not expected to send anything; reads exist to surface pongs and
// close frames.
func (w *Output) readLoop(conn *websocket.Conn, info *clientInfo, wg *sync.WaitGroup) {
	defer wg.Done()
	defer w.removeClient(conn, info)

	conn.SetReadLimit(maxClientFrameBytes)
	conn.SetPongHandler(func(string) error {
		info.lastPong.Store(time.Now())
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			// Connection closed or error
			return
		}
	}
}

// writeLoop owns all writes to one connection: queued frames, keepalive
// pings, and the closing handshake. gorilla/websocket does not allow
// concurrent writers.
func (w *Output) writeLoop(conn *websocket.Conn, info *clientInfo, wg *sync.WaitGroup, shutdown chan struct{}) {
	defer wg.Done()
	defer w.removeClient(conn, info)

	ticker := time.NewTicker(w.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame := <-info.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame.data); err != nil {
				atomic.AddInt64(&w.errors, 1)
				if w.metrics != nil {
					w.metrics.errorsTotal.WithLabelValues("client_send").Inc()
				}
				return
			}

			atomic.AddInt64(&w.eventsSent, 1)
			atomic.AddInt64(&w.bytesSent, int64(len(frame.data)))
			if w.metrics != nil {
				w.metrics.messagesSent.WithLabelValues(frame.subject).Inc()
				w.metrics.bytesSent.Add(float64(len(frame.data)))
				w.metrics.messageSizeBytes.WithLabelValues(frame.subject).Observe(float64(len(frame.data)))
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-info.done:
			return

		case <-shutdown:
			_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		}
	}
}

// removeClient safely removes a client connection with atomic cleanup
func (w *Output) removeClient(conn *websocket.Conn, info *clientInfo) {
	// Ensure cleanup happens only once
	info.closeOnce.Do(func() {
		// Mark as closed atomically
		info.closed.Store(true)
		close(info.done)

		// Remove from client map
		w.clientsMu.Lock()
		delete(w.clients, conn)
		clientCount := len(w.clients)
		w.clientsMu.Unlock()

		// Update metrics
		if w.metrics != nil {
			w.metrics.disconnectionTotal.WithLabelValues(w.disconnectReason(info)).Inc()
			w.metrics.clientsConnected.Set(float64(clientCount))
		}

		// Close the connection (safe to call multiple times on websocket.Conn)
		_ = conn.Close()
	})
}

// disconnectReason classifies a departing client for the disconnect counter
func (w *Output) disconnectReason(info *clientInfo) string {
	switch {
	case time.Since(info.connectedAt) < 5*time.Second:
		return "early_disconnect"
	case w.pongAge(info) > 2*w.pingInterval:
		return "stale"
	case atomic.LoadInt64(&info.dropped) > 0:
		return "slow_client"
	default:
		return "normal"
	}
}

// pongAge reports how long ago the client last answered a ping
func (w *Output) pongAge(info *clientInfo) time.Duration {
	last, ok := info.lastPong.Load().(time.Time)
	if !ok {
		return 0
	}
	return time.Since(last)
}

// maintainClients periodically reaps clients that stopped answering pings
func (w *Output) maintainClients(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case <-ticker.C:
			w.sweepStaleClients()
		}
	}
}

// sweepStaleClients disconnects clients whose last pong is older than two
// ping intervals. The write loop pings every interval, so a healthy client
// misses at most one before the next sweep.
func (w *Output) sweepStaleClients() {
	clientList, clientInfoMap := w.buildClientSnapshot()

	for _, conn := range clientList {
		info := clientInfoMap[conn]
		// Skip if client was closed during iteration
		if info.closed.Load() {
			continue
		}

		if w.pongAge(info) > 2*w.pingInterval {
			w.removeClient(conn, info)
		}
	}
}

// Register registers the WebSocket output component with the given registry
func Register(registry *component.Registry) error {
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "websocket",
		Factory:     CreateOutput,
		Schema:      websocketSchema,
		Type:        "output",
		Protocol:    "websocket",
		Domain:      "network",
		Description: "WebSocket output component streaming a live tail of ingested events",
		Version:     "1.0.0",
	})
}

// CreateOutput creates a WebSocket output component following service pattern
func CreateOutput(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	// Start with defaults
	cfg := DefaultConfig()

	// Parse user config if provided
	if len(rawConfig) > 0 {
		if err := component.SafeUnmarshal(rawConfig, &cfg); err != nil {
			return nil, errors.WrapInvalid(err, "websocket-output-factory", "create", "parse config")
		}
	}

	// Extract configuration from Ports (single source of truth)
	var port int
	var path string
	var subjects []string

	if cfg.Ports != nil {
		// Extract port and path from output URL if available
		if len(cfg.Ports.Outputs) > 0 && cfg.Ports.Outputs[0].Subject != "" {
			// Parse URL-encoded port from Subject field (e.g., "http://0.0.0.0:8082/ws")
			url := cfg.Ports.Outputs[0].Subject
			var parsedPort int
			var parsedPath string
			if _, err := fmt.Sscanf(url, "http://0.0.0.0:%d%s", &parsedPort, &parsedPath); err == nil {
				port = parsedPort
				path = parsedPath
			}
		}

		// Extract subjects from inputs
		if len(cfg.Ports.Inputs) > 0 {
			for _, input := range cfg.Ports.Inputs {
				if input.Subject != "" {
					subjects = append(subjects, input.Subject)
				}
			}
		}
	}

	// Apply defaults if not configured
	if port == 0 {
		port = 8081
	}
	if path == "" {
		path = "/ws"
	}
	if len(subjects) == 0 {
		subjects = []string{"input.gelf.>"}
	}

	sendQueueSize := cfg.SendQueueSize
	if sendQueueSize <= 0 {
		sendQueueSize = defaultSendQueueSize
	}

	pingInterval := defaultPingInterval
	if cfg.PingIntervalSeconds > 0 {
		pingInterval = time.Duration(cfg.PingIntervalSeconds) * time.Second
	}

	// Ports below 1024 are reserved system ports
	if port < 1024 || port > 65535 {
		return nil, errors.WrapInvalid(fmt.Errorf("port %d out of range", port),
			"websocket-output-factory", "create", "port range validation")
	}

	// Validate required dependencies
	if deps.NATSClient == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("NATS client is required"),
			"websocket-output-factory", "create", "NATS client validation")
	}

	// Create constructor config
	ctorCfg := ConstructorConfig{
		Name:            "websocket-output",
		Port:            port,
		Path:            path,
		Subjects:        subjects,
		NATSClient:      deps.NATSClient,
		MetricsRegistry: deps.MetricsRegistry,
		Security:        deps.Security,
		Logger:          deps.GetLoggerWithComponent("websocket-output"),
		SendQueueSize:   sendQueueSize,
		PingInterval:    pingInterval,
	}

	return NewOutputFromConfig(ctorCfg), nil
}
