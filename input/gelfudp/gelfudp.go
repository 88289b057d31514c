// Package gelfudp provides the GELF UDP input component: it listens for
// Graylog Extended Log Format datagrams, reassembles and decompresses them,
// normalizes the resulting events, and publishes them to NATS.
package gelfudp

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
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
	"github.com/c360/logstream/pkg/buffer"
	"github.com/c360/logstream/pkg/retry"
)

// maxDatagramSize bounds a single receive. GELF senders chunk anything
// larger, and chunks themselves never exceed 8 KiB.
const maxDatagramSize = 8192

// logPreviewLimit caps how much raw payload goes into a log line.
const logPreviewLimit = 256

// Metrics holds Prometheus metrics for the GELF UDP input component
type Metrics struct {
	datagramsReceived prometheus.Counter
	bytesReceived     prometheus.Counter
	eventsPublished   prometheus.Counter
	eventsDropped     prometheus.Counter
	decodeFailures    prometheus.Counter
	parseFallbacks    prometheus.Counter
	chunksPending     prometheus.Gauge
	socketErrors      prometheus.Counter
	socketRebinds     prometheus.Counter
	publishLatency    prometheus.Histogram
	lastActivity      prometheus.Gauge
}

// newMetrics creates and registers GELF UDP input metrics
func newMetrics(registry *metric.MetricsRegistry, port int) *Metrics {
	// Return nil if no registry provided (nil input = nil feature pattern)
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		datagramsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "logstream",
			Subsystem: "gelfudp",
			Name:      "datagrams_received_total",
			Help:      "Total UDP datagrams received",
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "logstream",
			Subsystem: "gelfudp",
			Name:      "bytes_received_total",
			Help:      "Total bytes received from UDP",
		}),
		eventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "logstream",
			Subsystem: "gelfudp",
			Name:      "events_published_total",
			Help:      "Events successfully published to NATS",
		}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "logstream",
			Subsystem: "gelfudp",
			Name:      "events_dropped_total",
			Help:      "Events dropped by transform failure, queue overflow or publish failure",
		}),
		decodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "logstream",
			Subsystem: "gelfudp",
			Name:      "decode_failures_total",
			Help:      "Datagrams dropped because GELF framing or compression was malformed",
		}),
		parseFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "logstream",
			Subsystem: "gelfudp",
			Name:      "parse_fallback_events_total",
			Help:      "Events built through the plain-text fallback because the payload was not a JSON object",
		}),
		chunksPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "logstream",
			Subsystem: "gelfudp",
			Name:      "chunks_pending",
			Help:      "Partially reassembled chunked messages currently held",
		}),
		socketErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "logstream",
			Subsystem: "gelfudp",
			Name:      "socket_errors_total",
			Help:      "Socket read errors encountered",
		}),
		socketRebinds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "logstream",
			Subsystem: "gelfudp",
			Name:      "socket_rebinds_total",
			Help:      "Times the listener socket was rebound after a fatal error",
		}),
		publishLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "logstream",
			Subsystem: "gelfudp",
			Name:      "publish_duration_seconds",
			Help:      "Time to publish events to NATS",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}),
		lastActivity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "logstream",
			Subsystem: "gelfudp",
			Name:      "last_activity_timestamp",
			Help:      "Unix timestamp of last received datagram",
		}),
	}

	serviceName := fmt.Sprintf("gelfudp_%d", port)
	registry.RegisterCounter(serviceName, "datagrams_received", metrics.datagramsReceived)
	registry.RegisterCounter(serviceName, "bytes_received", metrics.bytesReceived)
	registry.RegisterCounter(serviceName, "events_published", metrics.eventsPublished)
	registry.RegisterCounter(serviceName, "events_dropped", metrics.eventsDropped)
	registry.RegisterCounter(serviceName, "decode_failures", metrics.decodeFailures)
	registry.RegisterCounter(serviceName, "parse_fallbacks", metrics.parseFallbacks)
	registry.RegisterGauge(serviceName, "chunks_pending", metrics.chunksPending)
	registry.RegisterCounter(serviceName, "socket_errors", metrics.socketErrors)
	registry.RegisterCounter(serviceName, "socket_rebinds", metrics.socketRebinds)
	registry.RegisterHistogram(serviceName, "publish_latency", metrics.publishLatency)
	registry.RegisterGauge(serviceName, "last_activity", metrics.lastActivity)

	return metrics
}

// Input implements a GELF UDP listener that publishes normalized events to
// NATS. Each datagram flows through a single sequential pipeline: chunk
// decode, event build, transform passes, enqueue.
type Input struct {
	name       string
	port       int
	bind       string
	subject    string
	natsClient *natsclient.Client
	logger     *slog.Logger

	// Pipeline stages
	decoder     *gelf.Decoder
	transformer *gelf.Transformer
	decoderCfg  gelf.DecoderConfig

	// Buffer between the read loop and NATS publishing
	buffer buffer.Buffer[[]byte]

	// Retry configuration for binding and publishing
	retryConfig retry.Config

	// Fixed backoff between listener failure and socket rebind
	rebindBackoff time.Duration

	// Socket receive buffer requested from the OS
	readBufferBytes int

	// Rate limit for per-datagram failure logging; malformed floods must
	// not take the logger down with them
	logLimit *rate.Limiter

	// Lifecycle management
	shutdown  chan struct{}
	done      chan struct{}
	running   atomic.Bool
	startTime time.Time
	mu        sync.RWMutex
	wg        sync.WaitGroup
	conn      *net.UDPConn

	// Counters (atomic for thread safety)
	datagramsReceived atomic.Int64
	bytesReceived     atomic.Int64
	eventsPublished   atomic.Int64
	parseFallbacks    atomic.Int64
	errors            atomic.Int64
	lastActivity      atomic.Value // stores time.Time

	// Prometheus metrics
	metrics  *Metrics
	registry *metric.MetricsRegistry
}

// Ensure Input implements all required interfaces
var _ component.Discoverable = (*Input)(nil)
var _ component.LifecycleComponent = (*Input)(nil)

// gelfSchema defines the configuration schema for the GELF UDP input
// component, generated from InputConfig struct tags using reflection
var gelfSchema = component.GenerateConfigSchema(reflect.TypeOf(InputConfig{}))

// InputConfig holds configuration for the GELF UDP input component
type InputConfig struct {
	// Port configuration for inputs and outputs
	Ports *component.PortConfig `json:"ports" schema:"type:ports,description:Port configuration,category:basic"`

	// Host is the listen address used when no network port is configured
	Host string `json:"host" schema:"type:string,description:UDP listen address,default:0.0.0.0,category:basic"`

	// Port is the listen port used when no network port is configured
	Port int `json:"port" schema:"type:int,description:UDP listen port,default:12201,min:0,max:65535,category:basic"`

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

	// RebindBackoffSeconds is the fixed delay between a fatal socket error
	// and the rebind attempt
	RebindBackoffSeconds int `json:"rebind_backoff_seconds" schema:"type:int,description:Delay before rebinding the socket after a fatal error,default:5,min:1,max:300,category:advanced"`

	// ChunkTTLSeconds is the reassembly window for chunked messages
	ChunkTTLSeconds int `json:"chunk_ttl_seconds" schema:"type:int,description:Seconds to keep partial chunked messages before dropping them,default:5,min:1,max:60,category:advanced"`

	// MaxPendingChunks bounds concurrently reassembling messages
	MaxPendingChunks int `json:"max_pending_chunks" schema:"type:int,description:Maximum partially reassembled messages held at once,default:1024,min:16,max:65536,category:advanced"`

	// ReadBufferBytes is the OS socket receive buffer size
	ReadBufferBytes int `json:"read_buffer_bytes" schema:"type:int,description:OS receive buffer size for the UDP socket,default:2097152,min:65536,max:16777216,category:advanced"`
}

// Validate implements component.Validatable interface for secure config validation
func (c *InputConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.WrapInvalid(
			fmt.Errorf("invalid port number: %d", c.Port),
			"InputConfig", "Validate", "port range validation")
	}

	// Validate port configuration if provided
	if c.Ports != nil {
		// Check input ports
		for _, input := range c.Ports.Inputs {
			if input.Type == "network" && input.Subject != "" {
				// Parse network port from subject (udp://host:port format)
				if len(input.Subject) > 6 && input.Subject[:6] == "udp://" {
					hostPort := input.Subject[6:]
					if host, portStr, err := net.SplitHostPort(hostPort); err == nil {
						if port, err := strconv.Atoi(portStr); err == nil {
							if err := component.ValidateNetworkConfig(port, host); err != nil {
								return errors.Wrap(err, "InputConfig", "Validate", "network port validation")
							}
						} else {
							return errors.WrapInvalid(
								fmt.Errorf("invalid port number: %s", portStr),
								"InputConfig", "Validate", "port parsing")
						}
					} else {
						return errors.WrapInvalid(
							fmt.Errorf("invalid UDP address format: %s", input.Subject),
							"InputConfig", "Validate", "address parsing")
					}
				}
			}
		}

		// Check output ports
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

// DefaultConfig returns the standard GELF UDP input settings: the
// conventional GELF port and the normalization defaults (remap and
// underscore stripping on, nested expansion off).
func DefaultConfig() InputConfig {
	return InputConfig{
		Host:                 "0.0.0.0",
		Port:                 12201,
		Remap:                true,
		StripUnderscore:      true,
		NestedObjects:        false,
		AnnotateEvents:       true,
		RebindBackoffSeconds: 5,
		ChunkTTLSeconds:      5,
		MaxPendingChunks:     1024,
		ReadBufferBytes:      2 * 1024 * 1024,
		Ports: &component.PortConfig{
			Outputs: []component.PortDefinition{
				{
					Name:        "nats_output",
					Type:        "nats",
					Subject:     "input.gelf.udp",
					Required:    true,
					Description: "NATS subject for publishing normalized GELF events",
				},
			},
		},
	}
}

// getConfiguredPorts resolves the listen address and output subject. A
// network input port (udp://host:port) takes precedence over the flat
// host/port fields; defaults fill anything left unset.
func (c *InputConfig) getConfiguredPorts() (port int, bind, subject string) {
	bind = c.Host
	port = c.Port

	if c.Ports != nil {
		// A network input port overrides host/port when parseable
		for _, input := range c.Ports.Inputs {
			if input.Type == "network" && input.Subject != "" {
				if len(input.Subject) > 6 && input.Subject[:6] == "udp://" {
					hostPort := input.Subject[6:]
					if host, portStr, err := net.SplitHostPort(hostPort); err == nil {
						if parsedPort, err := strconv.Atoi(portStr); err == nil {
							port = parsedPort
							bind = host
						}
					}
				}
				break
			}
		}
		// Extract NATS output subject (including empty ones for validation)
		for _, output := range c.Ports.Outputs {
			if output.Type == "nats" {
				subject = output.Subject
				break
			}
		}
	}

	if bind == "" {
		bind = "0.0.0.0"
	}
	if port == 0 {
		port = 12201
	}
	if c.Ports == nil && subject == "" {
		subject = "input.gelf.udp"
	}

	return port, bind, subject
}

// transformConfig maps the wire-format options onto the normalization
// pipeline configuration.
func (c *InputConfig) transformConfig() gelf.TransformConfig {
	return gelf.TransformConfig{
		Remap:           c.Remap,
		StripUnderscore: c.StripUnderscore,
		NestedObjects:   c.NestedObjects,
		Reserved:        c.ReservedFields,
	}
}

// InputDeps holds runtime dependencies for the GELF UDP input component
type InputDeps struct {
	Name            string                  // Instance name
	Config          InputConfig             // Business logic configuration
	NATSClient      *natsclient.Client      // Runtime dependency
	MetricsRegistry *metric.MetricsRegistry // Runtime dependency
	Logger          *slog.Logger            // Runtime dependency
	Decorators      []gelf.Decorator        // Optional decoration hooks, run after the transform passes
}

// NewInput creates a new GELF UDP input component
func NewInput(deps InputDeps) *Input {
	var bufferOpts []buffer.Option[[]byte]
	bufferOpts = append(bufferOpts, buffer.WithOverflowPolicy[[]byte](buffer.DropOldest))

	if deps.MetricsRegistry != nil {
		bufferOpts = append(bufferOpts, buffer.WithMetrics[[]byte](deps.MetricsRegistry, "gelfudp_input"))
	}

	port, bind, subject := deps.Config.getConfiguredPorts()

	var metrics *Metrics
	if deps.MetricsRegistry != nil {
		metrics = newMetrics(deps.MetricsRegistry, port)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "gelf-udp-input", "port", port)
	}

	eventBuffer, err := buffer.NewCircularBuffer(5000, bufferOpts...)
	if err != nil {
		logger.Error("Failed to create event buffer", "error", err)
		return nil
	}

	rebindBackoff := time.Duration(deps.Config.RebindBackoffSeconds) * time.Second
	if rebindBackoff <= 0 {
		rebindBackoff = 5 * time.Second
	}

	readBufferBytes := deps.Config.ReadBufferBytes
	if readBufferBytes <= 0 {
		readBufferBytes = 2 * 1024 * 1024
	}

	u := &Input{
		name:        deps.Name,
		port:        port,
		bind:        bind,
		subject:     subject,
		natsClient:  deps.NATSClient,
		logger:      logger,
		transformer: gelf.NewTransformer(deps.Config.transformConfig(), deps.Decorators...),
		decoderCfg: gelf.DecoderConfig{
			ChunkTTL:   time.Duration(deps.Config.ChunkTTLSeconds) * time.Second,
			MaxPending: deps.Config.MaxPendingChunks,
			Metrics:    deps.MetricsRegistry,
		},
		buffer:          eventBuffer,
		retryConfig:     retry.DefaultConfig(),
		rebindBackoff:   rebindBackoff,
		readBufferBytes: readBufferBytes,
		logLimit:        rate.NewLimiter(rate.Every(time.Second), 5),
		startTime:       time.Now(),
		metrics:         metrics,
		registry:        deps.MetricsRegistry,
	}
	u.lastActivity.Store(time.Time{})
	return u
}

// Meta returns the component metadata
func (u *Input) Meta() component.Metadata {
	name := u.name
	if name == "" {
		name = fmt.Sprintf("gelf-udp-input-%d", u.port)
	}

	return component.Metadata{
		Name:        name,
		Type:        "input",
		Description: fmt.Sprintf("GELF UDP listener on %s:%d publishing to %s", u.bind, u.port, u.subject),
		Version:     "1.0.0",
	}
}

// InputPorts returns the input ports for this component
func (u *Input) InputPorts() []component.Port {
	return []component.Port{
		{
			Name:        "udp_socket",
			Direction:   component.DirectionInput,
			Required:    true,
			Description: fmt.Sprintf("UDP socket listening for GELF datagrams on %s:%d", u.bind, u.port),
			Config: component.NetworkPort{
				Protocol: "udp",
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
	return gelfSchema
}

// Health returns the current health status of the component
func (u *Input) Health() component.HealthStatus {
	u.mu.RLock()
	running := u.running.Load()
	connected := u.conn != nil
	u.mu.RUnlock()

	errorCount := u.errors.Load()
	healthy := running && connected

	return component.HealthStatus{
		Healthy:    healthy,
		LastCheck:  time.Now(),
		ErrorCount: int(errorCount),
		LastError:  "",
		Uptime:     time.Since(u.startTime),
	}
}

// DataFlow returns the current data flow metrics
func (u *Input) DataFlow() component.FlowMetrics {
	datagrams := u.datagramsReceived.Load()
	bytes := u.bytesReceived.Load()
	errorCount := u.errors.Load()
	lastActivity, _ := u.lastActivity.Load().(time.Time)

	var messagesPerSecond float64
	var bytesPerSecond float64
	var errorRate float64

	if uptime := time.Since(u.startTime).Seconds(); uptime > 0 {
		messagesPerSecond = float64(datagrams) / uptime
		bytesPerSecond = float64(bytes) / uptime
	}

	if datagrams > 0 {
		errorRate = float64(errorCount) / float64(datagrams)
	}

	return component.FlowMetrics{
		MessagesPerSecond: messagesPerSecond,
		BytesPerSecond:    bytesPerSecond,
		ErrorRate:         errorRate,
		LastActivity:      lastActivity,
	}
}

// Initialize prepares the GELF UDP input component but does not start listening
func (u *Input) Initialize() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	// Port 0 is allowed for OS auto-assignment
	if u.port < 0 || u.port > 65535 {
		return errors.WrapInvalid(fmt.Errorf("invalid port %d", u.port),
			"gelf-udp-input", "Initialize", "port validation")
	}

	if u.subject == "" {
		return errors.WrapInvalid(fmt.Errorf("empty subject"),
			"gelf-udp-input", "Initialize", "subject validation")
	}

	if u.natsClient == nil {
		return errors.WrapInvalid(fmt.Errorf("nil NATS client"),
			"gelf-udp-input", "Initialize", "NATS client validation")
	}

	return nil
}

// Start binds the UDP socket and begins the listen-decode-publish loop
func (u *Input) Start(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.running.Load() {
		return nil // Already running, idempotent
	}

	// Create shutdown channels for coordinated shutdown
	u.shutdown = make(chan struct{})
	u.done = make(chan struct{})

	// The chunk reassembly cache sweeps against the run context
	decoder, err := gelf.NewDecoder(ctx, u.decoderCfg)
	if err != nil {
		u.cleanupUnlocked()
		return errors.Wrap(err, "gelf-udp-input", "Start", "chunk decoder setup")
	}
	u.decoder = decoder

	// Use retry for socket binding
	bindOperation := func() error {
		return u.bindSocket()
	}

	if err := retry.Do(ctx, u.retryConfig, bindOperation); err != nil {
		u.cleanupUnlocked()
		return errors.WrapTransient(err, "gelf-udp-input", "Start", "socket binding")
	}

	u.running.Store(true)
	u.startTime = time.Now()

	u.wg.Add(1)
	go func() {
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
		u.run(ctx)
	}()

	return nil
}

// bindSocket creates and binds the UDP socket
func (u *Input) bindSocket() error {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", u.bind, u.port))
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address %s:%d: %w", u.bind, u.port, err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP port %d: %w", u.port, err)
	}

	// Increase OS socket buffer so datagram bursts survive slow publishes
	if err := conn.SetReadBuffer(u.readBufferBytes); err != nil {
		// Log warning but don't fail - some systems limit buffer size
		if u.logger != nil {
			u.logger.Warn("Could not set UDP buffer size",
				"buffer_size", u.readBufferBytes,
				"port", u.port,
				"error", err)
		}
	}

	u.conn = conn
	return nil
}

// run drives the listener: it runs the read loop until a fatal socket error,
// then sleeps the fixed rebind backoff and binds again, until stopped. The
// backoff sleep is interruptible by shutdown.
func (u *Input) run(ctx context.Context) {
	for {
		err := u.readLoop(ctx)
		if err == nil {
			return // clean stop
		}

		u.errors.Add(1)
		if u.metrics != nil {
			u.metrics.socketErrors.Inc()
		}
		u.logger.Error("Listener failed, restarting after backoff",
			"error", err,
			"backoff", u.rebindBackoff)

		for {
			select {
			case <-ctx.Done():
				return
			case <-u.shutdown:
				return
			case <-time.After(u.rebindBackoff):
			}

			u.mu.Lock()
			if u.conn != nil {
				_ = u.conn.Close()
				u.conn = nil
			}
			bindErr := u.bindSocket()
			u.mu.Unlock()

			if bindErr == nil {
				if u.metrics != nil {
					u.metrics.socketRebinds.Inc()
				}
				u.logger.Info("Listener socket rebound", "bind", u.bind, "port", u.port)
				break
			}
			u.logger.Error("Rebind failed, backing off again", "error", bindErr)
		}
	}
}

// readLoop receives datagrams and runs each through the pipeline. It returns
// nil on shutdown and the socket error on fatal failures, letting run decide
// whether to rebind.
func (u *Input) readLoop(ctx context.Context) error {
	datagram := make([]byte, maxDatagramSize)

	for u.running.Load() {
		select {
		case <-ctx.Done():
			return nil
		case <-u.shutdown:
			return nil
		default:
		}

		u.mu.RLock()
		if !u.running.Load() || u.conn == nil {
			u.mu.RUnlock()
			return nil
		}
		conn := u.conn
		u.mu.RUnlock()

		// Set read deadline to check shutdown periodically
		_ = conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))

		n, addr, err := conn.ReadFromUDP(datagram)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}

			// A close during an in-flight receive is the expected shutdown
			// path, not a listener failure
			select {
			case <-ctx.Done():
				return nil
			case <-u.shutdown:
				return nil
			default:
			}

			if stderrors.Is(err, net.ErrClosed) {
				// Closed without a stop request: treat as fatal so the
				// driver rebinds rather than spinning on a dead socket
				return err
			}

			u.errors.Add(1)
			if u.metrics != nil {
				u.metrics.socketErrors.Inc()
			}

			if errors.IsTransient(err) {
				continue
			}
			return err
		}

		u.datagramsReceived.Add(1)
		u.bytesReceived.Add(int64(n))
		now := time.Now()
		u.lastActivity.Store(now)

		if u.metrics != nil {
			u.metrics.datagramsReceived.Inc()
			u.metrics.bytesReceived.Add(float64(n))
			u.metrics.lastActivity.Set(float64(now.Unix()))
		}

		u.processDatagram(ctx, datagram[:n], addr)
	}
	return nil
}

// processDatagram runs the per-message pipeline: decode, build, transform,
// enqueue. Every failure here is isolated to this datagram; the loop always
// continues.
func (u *Input) processDatagram(ctx context.Context, datagram []byte, addr *net.UDPAddr) {
	payload, err := u.decoder.Decode(datagram)
	if u.metrics != nil {
		u.metrics.chunksPending.Set(float64(u.decoder.PendingMessages()))
	}
	if err != nil {
		u.errors.Add(1)
		if u.metrics != nil {
			u.metrics.decodeFailures.Inc()
		}
		if u.logLimit.Allow() {
			u.logger.Warn("Dropping undecodable datagram",
				"error", err,
				"remote", addrString(addr),
				"size", len(datagram),
				"data", preview(datagram))
		}
		return
	}
	if payload == nil {
		return // chunk buffered, message still incomplete
	}

	sourceHost := ""
	if addr != nil {
		sourceHost = addr.IP.String()
	}

	ev := gelf.BuildEvent(payload, sourceHost)
	if ev.HasTag(gelf.TagParseFailure) {
		u.parseFallbacks.Add(1)
		if u.metrics != nil {
			u.metrics.parseFallbacks.Inc()
		}
		if u.logLimit.Allow() {
			u.logger.Warn("Payload is not a JSON object, built fallback event",
				"remote", addrString(addr),
				"payload", preview(payload))
		}
	}

	if err := u.transformer.Transform(ev); err != nil {
		u.errors.Add(1)
		if u.metrics != nil {
			u.metrics.eventsDropped.Inc()
		}
		if u.logLimit.Allow() {
			u.logger.Error("Dropping event, transform failed",
				"error", err,
				"remote", addrString(addr),
				"fields", ev.Fields)
		}
		return
	}

	data, err := json.Marshal(ev)
	if err != nil {
		u.errors.Add(1)
		if u.metrics != nil {
			u.metrics.eventsDropped.Inc()
		}
		u.logger.Error("Dropping event, marshal failed", "error", err)
		return
	}

	if err := u.buffer.Write(data); err != nil {
		if u.metrics != nil {
			u.metrics.eventsDropped.Inc()
		}
		return
	}

	u.processBufferedEvents(ctx)
}

// processBufferedEvents drains buffered events and publishes them to NATS
func (u *Input) processBufferedEvents(ctx context.Context) {
	const maxBatchSize = 100
	events := u.buffer.ReadBatch(maxBatchSize)

	for _, data := range events {
		if !u.running.Load() {
			break
		}

		publishOperation := func() error {
			return u.publishEvent(ctx, data)
		}

		if err := retry.Do(ctx, u.retryConfig, publishOperation); err != nil {
			u.errors.Add(1)
			if u.metrics != nil {
				u.metrics.eventsDropped.Inc()
			}
			// Continue processing other events even if one fails
		}
	}
}

// publishEvent publishes one marshaled event to the configured NATS subject
func (u *Input) publishEvent(_ context.Context, data []byte) error {
	if u.natsClient == nil {
		return errors.WrapInvalid(fmt.Errorf("NATS client not available"),
			"gelf-udp-input", "publishEvent", "NATS client check")
	}

	nc := u.natsClient.GetConnection()
	if nc == nil {
		return errors.WrapTransient(fmt.Errorf("NATS connection not available"),
			"gelf-udp-input", "publishEvent", "NATS connection check")
	}

	var start time.Time
	if u.metrics != nil {
		start = time.Now()
	}

	if err := nc.Publish(u.subject, data); err != nil {
		return errors.WrapTransient(err, "gelf-udp-input", "publishEvent", "NATS publish")
	}

	u.eventsPublished.Add(1)
	if u.metrics != nil {
		u.metrics.eventsPublished.Inc()
		u.metrics.publishLatency.Observe(time.Since(start).Seconds())
	}

	return nil
}

// Stop gracefully stops the UDP listener with the specified timeout
func (u *Input) Stop(timeout time.Duration) error {
	return u.StopWithTimeout(timeout)
}

// StopWithTimeout gracefully stops the UDP listener with the specified timeout
func (u *Input) StopWithTimeout(timeout time.Duration) error {
	if !u.running.Load() {
		return nil
	}

	u.running.Store(false)

	// Signal shutdown to goroutines
	u.mu.Lock()
	if u.shutdown != nil {
		select {
		case <-u.shutdown:
		default:
			close(u.shutdown)
		}
	}
	// Close UDP connection to unblock readLoop
	if u.conn != nil {
		_ = u.conn.Close()
	}
	u.mu.Unlock()

	// Wait for graceful shutdown with timeout
	select {
	case <-u.done:
		// Goroutine finished cleanly
	case <-time.After(timeout):
		return errors.WrapTransient(fmt.Errorf("stop timeout after %v", timeout),
			"gelf-udp-input", "Stop", "graceful shutdown")
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
	if u.shutdown != nil {
		select {
		case <-u.shutdown:
		default:
			close(u.shutdown)
		}
		u.shutdown = nil
	}
	if u.done != nil {
		u.done = nil
	}
	if u.conn != nil {
		_ = u.conn.Close()
		u.conn = nil
	}
	if u.decoder != nil {
		_ = u.decoder.Close()
		u.decoder = nil
	}
	if u.buffer != nil {
		_ = u.buffer.Close()
	}
}

// addrString formats a sender address for logging
func addrString(addr *net.UDPAddr) string {
	if addr == nil {
		return ""
	}
	return addr.String()
}

// preview truncates raw payload bytes for log output
func preview(data []byte) string {
	if len(data) > logPreviewLimit {
		return fmt.Sprintf("%q...", data[:logPreviewLimit])
	}
	return fmt.Sprintf("%q", data)
}

// CreateInput creates a GELF UDP input component following service pattern
func CreateInput(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	// Unmarshal over the defaults so absent keys keep their default values
	// and explicit false/zero values override them
	cfg := DefaultConfig()
	if len(rawConfig) > 0 {
		if err := component.SafeUnmarshal(rawConfig, &cfg); err != nil {
			return nil, errors.Wrap(err, "gelf-udp-input-factory", "create", "secure config parsing")
		}
	}

	// Validate required dependencies
	if deps.NATSClient == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("NATS client is required"),
			"gelf-udp-input-factory", "create", "NATS client validation")
	}

	var decorators []gelf.Decorator
	if cfg.AnnotateEvents {
		decorators = append(decorators, gelf.NewAnnotateDecorator())
	}

	inputDeps := InputDeps{
		Name:            "gelf-udp-input", // Default name, will be overridden by ComponentManager
		Config:          cfg,
		NATSClient:      deps.NATSClient,
		MetricsRegistry: deps.MetricsRegistry,
		Logger:          deps.GetLoggerWithComponent("gelf-udp-input"),
		Decorators:      decorators,
	}

	input := NewInput(inputDeps)
	if input == nil {
		return nil, errors.WrapFatal(fmt.Errorf("component construction failed"),
			"gelf-udp-input-factory", "create", "input setup")
	}
	return input, nil
}

// Register registers the GELF UDP input component with the given registry
func Register(registry *component.Registry) error {
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "gelfudp",
		Factory:     CreateInput,
		Schema:      gelfSchema,
		Type:        "input",
		Protocol:    "udp",
		Domain:      "logging",
		Description: "GELF UDP input for receiving and normalizing Graylog Extended Log Format messages",
		Version:     "1.0.0",
	})
}
