// Package opensearch provides an output component that bulk-indexes log
// events into OpenSearch
package opensearch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/logstream/component"
	"github.com/c360/logstream/errors"
	"github.com/c360/logstream/metric"
	"github.com/c360/logstream/natsclient"
	"github.com/c360/logstream/pkg/buffer"
	"github.com/c360/logstream/pkg/worker"
	"github.com/prometheus/client_golang/prometheus"
)

// Config holds configuration for the OpenSearch output component
type Config struct {
	Ports                *component.PortConfig `json:"ports"                  schema:"type:ports,description:Port configuration,category:basic"`
	URL                  string                `json:"url"                    schema:"type:string,description:OpenSearch endpoint URL,category:basic"`
	Username             string                `json:"username"               schema:"type:string,description:Basic auth username,category:basic"`
	Password             string                `json:"password"               schema:"type:string,description:Basic auth password,category:basic"`
	TLSSkipVerify        bool                  `json:"tls_skip_verify"        schema:"type:bool,description:Skip TLS certificate verification,category:advanced"`
	IndexPrefix          string                `json:"index_prefix"           schema:"type:string,description:Prefix for event indices and the write alias,category:basic"`
	BatchSize            int                   `json:"batch_size"             schema:"type:int,description:Events per bulk request,default:500,min:1,max:10000,category:advanced"`
	FlushIntervalSeconds int                   `json:"flush_interval_seconds" schema:"type:int,description:Seconds between periodic flushes,default:1,min:1,max:300,category:advanced"`
	Workers              int                   `json:"workers"                schema:"type:int,description:Concurrent bulk requests,default:2,min:1,max:32,category:advanced"`
	BufferSize           int                   `json:"buffer_size"            schema:"type:int,description:Events held in memory while bulk requests are in flight,default:8192,min:1,max:1048576,category:advanced"`
	ShardCount           int                   `json:"shard_count"            schema:"type:int,description:Primary shards per index,default:1,min:1,max:64,category:advanced"`
	ReplicaCount         int                   `json:"replica_count"          schema:"type:int,description:Replicas per index,default:0,min:0,max:8,category:advanced"`
	RefreshInterval      string                `json:"refresh_interval"       schema:"type:string,description:Index refresh interval,category:advanced"`
	RetentionDays        int                   `json:"retention_days"         schema:"type:int,description:Days before indices are deleted,default:30,min:1,max:3650,category:advanced"`
	RolloverSizeGB       int                   `json:"rollover_size_gb"       schema:"type:int,description:Index size in GB that triggers rollover,default:50,min:1,max:1024,category:advanced"`
	RolloverAgeHours     int                   `json:"rollover_age_hours"     schema:"type:int,description:Index age in hours that triggers rollover,default:24,min:1,max:8760,category:advanced"`
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "url is required")
	}

	if c.BatchSize < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"batch_size cannot be negative")
	}

	if c.BufferSize < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"buffer_size cannot be negative")
	}

	if c.Workers < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"workers cannot be negative")
	}

	if c.FlushIntervalSeconds < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"flush_interval_seconds cannot be negative")
	}

	return nil
}

// DefaultConfig returns default configuration for the OpenSearch output
func DefaultConfig() Config {
	clientDefaults := DefaultClientConfig()

	return Config{
		Ports: &component.PortConfig{
			Inputs: []component.PortDefinition{
				{
					Name:        "nats_input",
					Type:        "nats",
					Subject:     "input.gelf.>",
					Required:    true,
					Description: "Event subjects to index into OpenSearch",
				},
			},
		},
		URL:                  clientDefaults.URL,
		Username:             clientDefaults.Username,
		Password:             clientDefaults.Password,
		TLSSkipVerify:        clientDefaults.TLSSkipVerify,
		IndexPrefix:          clientDefaults.IndexPrefix,
		BatchSize:            500,
		FlushIntervalSeconds: 1,
		Workers:              2,
		BufferSize:           8192,
		ShardCount:           clientDefaults.ShardCount,
		ReplicaCount:         clientDefaults.ReplicaCount,
		RefreshInterval:      clientDefaults.RefreshInterval,
		RetentionDays:        clientDefaults.RetentionDays,
		RolloverSizeGB:       clientDefaults.RolloverSizeGB,
		RolloverAgeHours:     24,
	}
}

// opensearchSchema defines the configuration schema for the OpenSearch output component
var opensearchSchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

// Metrics holds Prometheus metrics for the OpenSearch output
type Metrics struct {
	eventsIndexed prometheus.Counter
	eventsFailed  prometheus.Counter
	eventsDropped prometheus.Counter
	batchesTotal  prometheus.Counter
	batchEvents   prometheus.Histogram
	batchDuration prometheus.Histogram
	bulkErrors    *prometheus.CounterVec
}

// newMetrics creates and registers OpenSearch output metrics
func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	// Return nil if no registry provided (nil input = nil feature pattern)
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		eventsIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "logstream",
			Subsystem: "opensearch",
			Name:      "events_indexed_total",
			Help:      "Events successfully indexed",
		}),
		eventsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "logstream",
			Subsystem: "opensearch",
			Name:      "events_failed_total",
			Help:      "Events rejected by OpenSearch or lost to failed bulk requests",
		}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "logstream",
			Subsystem: "opensearch",
			Name:      "events_dropped_total",
			Help:      "Events evicted from the buffer because indexing could not keep up",
		}),
		batchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "logstream",
			Subsystem: "opensearch",
			Name:      "batches_total",
			Help:      "Bulk requests attempted",
		}),
		batchEvents: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "logstream",
			Subsystem: "opensearch",
			Name:      "batch_events",
			Help:      "Events per bulk request",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "logstream",
			Subsystem: "opensearch",
			Name:      "batch_duration_seconds",
			Help:      "Bulk request duration",
			Buckets:   prometheus.DefBuckets,
		}),
		bulkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logstream",
			Subsystem: "opensearch",
			Name:      "bulk_errors_total",
			Help:      "Bulk indexing errors by type",
		}, []string{"error_type"}),
	}

	registry.PrometheusRegistry().MustRegister(
		metrics.eventsIndexed,
		metrics.eventsFailed,
		metrics.eventsDropped,
		metrics.batchesTotal,
		metrics.batchEvents,
		metrics.batchDuration,
		metrics.bulkErrors,
	)

	return metrics
}

// bulkClient is the slice of the OpenSearch client the output needs
type bulkClient interface {
	Setup(ctx context.Context) error
	BulkIndex(ctx context.Context, docs [][]byte) (BulkStats, error)
	WriteAlias() string
}

var _ bulkClient = (*Client)(nil)

// Output bulk-indexes events arriving on NATS subjects into OpenSearch.
// Events accumulate in a circular buffer and are flushed as bulk requests
// either when a batch worth has arrived or on a periodic tick. Bulk
// requests run on a worker pool so a slow cluster delays indexing without
// stalling ingestion.
type Output struct {
	name          string
	subjects      []string
	batchSize     int
	flushInterval time.Duration
	natsClient    *natsclient.Client
	client        bulkClient
	logger        *slog.Logger

	buf  buffer.Buffer[[]byte]
	pool *worker.Pool[[][]byte]
	kick chan struct{}

	// Lifecycle management
	shutdown    chan struct{}
	done        chan struct{}
	closeOnce   sync.Once
	running     bool
	startTime   time.Time
	mu          sync.RWMutex
	lifecycleMu sync.Mutex
	wg          *sync.WaitGroup

	metrics *Metrics

	// Counters
	eventsIndexed  int64
	eventsFailed   int64
	eventsDropped  int64
	batchesFlushed int64
	bytesIndexed   int64
	errors         int64
	lastActivity   time.Time
}

// NewOutput creates a new OpenSearch output from configuration
func NewOutput(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	config := DefaultConfig()
	if err := component.SafeUnmarshal(rawConfig, &config); err != nil {
		return nil, errors.WrapInvalid(err, "Output", "NewOutput", "config unmarshal")
	}

	if config.Ports == nil {
		config.Ports = DefaultConfig().Ports
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

	logger := deps.GetLogger()

	client, err := NewClient(ClientConfig{
		URL:             config.URL,
		Username:        config.Username,
		Password:        config.Password,
		TLSSkipVerify:   config.TLSSkipVerify,
		IndexPrefix:     config.IndexPrefix,
		ShardCount:      config.ShardCount,
		ReplicaCount:    config.ReplicaCount,
		RefreshInterval: config.RefreshInterval,
		RetentionDays:   config.RetentionDays,
		RolloverSizeGB:  config.RolloverSizeGB,
		RolloverAge:     time.Duration(config.RolloverAgeHours) * time.Hour,
	}, logger)
	if err != nil {
		return nil, err
	}

	return newOutput(config, inputSubjects, client, deps.NATSClient, deps.MetricsRegistry, logger)
}

// newOutput wires the buffer, worker pool, and metrics around a bulk client
func newOutput(
	config Config,
	subjects []string,
	client bulkClient,
	natsClient *natsclient.Client,
	registry *metric.MetricsRegistry,
	logger *slog.Logger,
) (*Output, error) {
	if logger == nil {
		logger = slog.Default()
	}

	batchSize := config.BatchSize
	if batchSize <= 0 {
		batchSize = 500
	}

	bufferSize := config.BufferSize
	if bufferSize <= 0 {
		bufferSize = 8192
	}

	workers := config.Workers
	if workers <= 0 {
		workers = 2
	}

	flushInterval := time.Duration(config.FlushIntervalSeconds) * time.Second
	if flushInterval <= 0 {
		flushInterval = time.Second
	}

	o := &Output{
		name:          "opensearch-output",
		subjects:      subjects,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		natsClient:    natsClient,
		client:        client,
		logger:        logger,
		kick:          make(chan struct{}, 1),
		shutdown:      make(chan struct{}),
		done:          make(chan struct{}),
		wg:            &sync.WaitGroup{},
		metrics:       newMetrics(registry),
	}

	buf, err := buffer.NewCircularBuffer[[]byte](bufferSize,
		buffer.WithOverflowPolicy[[]byte](buffer.DropOldest),
		buffer.WithDropCallback[[]byte](func([]byte) {
			atomic.AddInt64(&o.eventsDropped, 1)
			if o.metrics != nil {
				o.metrics.eventsDropped.Inc()
			}
		}),
		buffer.WithMetrics[[]byte](registry, "opensearch_output"),
	)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Output", "newOutput", "create event buffer")
	}
	o.buf = buf

	// Two queue slots per worker keeps a little batch backlog without
	// holding many batches outside the circular buffer
	o.pool = worker.NewPool[[][]byte](workers, workers*2, o.indexBatch,
		worker.WithMetricsRegistry[[][]byte](registry, "opensearch_output"))

	return o, nil
}

// Initialize prepares the output for startup
func (o *Output) Initialize() error {
	if o.client == nil {
		return errors.WrapFatal(errors.ErrMissingConfig, "Output", "Initialize", "OpenSearch client required")
	}
	return nil
}

// Start provisions the OpenSearch indices and begins consuming events
func (o *Output) Start(ctx context.Context) error {
	o.lifecycleMu.Lock()
	defer o.lifecycleMu.Unlock()

	if o.running {
		return errors.WrapFatal(errors.ErrAlreadyStarted, "Output", "Start", "check running state")
	}

	if o.natsClient == nil {
		return errors.WrapFatal(errors.ErrMissingConfig, "Output", "Start", "NATS client required")
	}

	if o.client == nil {
		return errors.WrapFatal(errors.ErrMissingConfig, "Output", "Start", "OpenSearch client required")
	}

	// A down cluster is transient: the supervisor retries Start
	if err := o.client.Setup(ctx); err != nil {
		return err
	}

	if err := o.pool.Start(ctx); err != nil {
		return errors.WrapFatal(err, "Output", "Start", "start bulk worker pool")
	}

	for _, subject := range o.subjects {
		if err := o.natsClient.Subscribe(ctx, subject, o.handleEvent); err != nil {
			o.logger.Error("Failed to subscribe to NATS subject",
				"component", o.name,
				"subject", subject,
				"error", err)
			return errors.WrapTransient(err, "Output", "Start", fmt.Sprintf("subscribe to %s", subject))
		}
	}

	o.wg.Add(1)
	go o.flushLoop()

	o.mu.Lock()
	o.running = true
	o.startTime = time.Now()
	o.mu.Unlock()

	o.logger.Info("OpenSearch output started",
		"component", o.name,
		"input_subjects", o.subjects,
		"write_alias", o.client.WriteAlias(),
		"batch_size", o.batchSize,
		"flush_interval", o.flushInterval)

	return nil
}

// Stop gracefully stops the output, flushing buffered events first
func (o *Output) Stop(timeout time.Duration) error {
	o.lifecycleMu.Lock()
	defer o.lifecycleMu.Unlock()

	if !o.running {
		return nil
	}

	close(o.shutdown)

	waitCh := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
	case <-time.After(timeout):
		return errors.WrapTransient(fmt.Errorf("shutdown timeout after %v", timeout), "Output", "Stop", "shutdown")
	}

	// Anything that arrived after the loop's final drain
	o.drainBuffer()

	// Stopping the pool processes every batch still queued
	if err := o.pool.Stop(timeout); err != nil {
		o.logger.Warn("Bulk worker pool did not stop cleanly",
			"component", o.name,
			"error", err)
	}

	if err := o.buf.Close(); err != nil {
		o.logger.Warn("Failed to close event buffer",
			"component", o.name,
			"error", err)
	}

	o.mu.Lock()
	o.running = false
	o.mu.Unlock()

	// Close done channel exactly once, even if Stop() called multiple times
	o.closeOnce.Do(func() {
		close(o.done)
	})

	return nil
}

// handleEvent buffers an incoming event and kicks a flush when a batch
// worth has accumulated
func (o *Output) handleEvent(ctx context.Context, msgData []byte) {
	select {
	case <-ctx.Done():
		return
	case <-o.shutdown:
		return
	default:
	}

	if err := o.buf.Write(msgData); err != nil {
		atomic.AddInt64(&o.errors, 1)
		return
	}

	if o.buf.Size() >= o.batchSize {
		select {
		case o.kick <- struct{}{}:
		default:
		}
	}

	o.mu.Lock()
	o.lastActivity = time.Now()
	o.mu.Unlock()
}

// flushLoop flushes accumulated events periodically and on batch kicks
func (o *Output) flushLoop() {
	defer o.wg.Done()

	ticker := time.NewTicker(o.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-o.shutdown:
			o.drainBuffer()
			return
		case <-ticker.C:
			o.drainBuffer()
		case <-o.kick:
			o.drainBuffer()
		}
	}
}

// drainBuffer hands accumulated events to the worker pool in batches.
// When the pool queue is full the batch is indexed inline, which holds
// back the drain until the cluster catches up.
func (o *Output) drainBuffer() {
	for {
		docs := o.buf.ReadBatch(o.batchSize)
		if len(docs) == 0 {
			return
		}

		if err := o.pool.Submit(docs); err != nil {
			if indexErr := o.indexBatch(context.Background(), docs); indexErr != nil {
				o.logger.Error("Inline bulk index failed",
					"component", o.name,
					"events", len(docs),
					"error", indexErr)
			}
		}
	}
}

// indexBatch sends one bulk request. Runs on pool workers and, when the
// pool is saturated, inline on the drain path.
func (o *Output) indexBatch(ctx context.Context, docs [][]byte) error {
	start := time.Now()

	var batchBytes int64
	for _, doc := range docs {
		batchBytes += int64(len(doc))
	}

	stats, err := o.client.BulkIndex(ctx, docs)

	atomic.AddInt64(&o.batchesFlushed, 1)
	if o.metrics != nil {
		o.metrics.batchesTotal.Inc()
		o.metrics.batchEvents.Observe(float64(len(docs)))
		o.metrics.batchDuration.Observe(time.Since(start).Seconds())
	}

	if err != nil {
		atomic.AddInt64(&o.errors, 1)
		atomic.AddInt64(&o.eventsFailed, int64(len(docs)))
		if o.metrics != nil {
			o.metrics.eventsFailed.Add(float64(len(docs)))
			o.metrics.bulkErrors.WithLabelValues("request").Inc()
		}
		o.logger.Error("Bulk index request failed",
			"component", o.name,
			"events", len(docs),
			"error", err)
		return err
	}

	atomic.AddInt64(&o.eventsIndexed, int64(stats.Indexed))
	atomic.AddInt64(&o.bytesIndexed, batchBytes)
	if o.metrics != nil {
		o.metrics.eventsIndexed.Add(float64(stats.Indexed))
	}

	if stats.Failed > 0 {
		atomic.AddInt64(&o.errors, 1)
		atomic.AddInt64(&o.eventsFailed, int64(stats.Failed))
		if o.metrics != nil {
			o.metrics.eventsFailed.Add(float64(stats.Failed))
			o.metrics.bulkErrors.WithLabelValues("item").Inc()
		}
		o.logger.Warn("Bulk request rejected some events",
			"component", o.name,
			"indexed", stats.Indexed,
			"failed", stats.Failed,
			"first_error", stats.Errors[0])
	}

	return nil
}

// Discoverable interface implementation

// Meta returns component metadata
func (o *Output) Meta() component.Metadata {
	return component.Metadata{
		Name:        o.name,
		Type:        "output",
		Description: "Bulk-indexes log events into OpenSearch behind a write alias",
		Version:     "0.1.0",
	}
}

// InputPorts returns configured input port definitions
func (o *Output) InputPorts() []component.Port {
	ports := make([]component.Port, len(o.subjects))
	for i, subj := range o.subjects {
		ports[i] = component.Port{
			Name:      fmt.Sprintf("input_%d", i),
			Direction: component.DirectionInput,
			Required:  true,
			Config:    component.NATSPort{Subject: subj},
		}
	}
	return ports
}

// OutputPorts returns configured output port definitions (the cluster is
// external, so none)
func (o *Output) OutputPorts() []component.Port {
	return []component.Port{}
}

// ConfigSchema returns the configuration schema
func (o *Output) ConfigSchema() component.ConfigSchema {
	return opensearchSchema
}

// Health returns the current health status
func (o *Output) Health() component.HealthStatus {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return component.HealthStatus{
		Healthy:    o.running && o.client != nil,
		LastCheck:  time.Now(),
		ErrorCount: int(atomic.LoadInt64(&o.errors)),
		Uptime:     time.Since(o.startTime),
	}
}

// DataFlow returns current data flow metrics
func (o *Output) DataFlow() component.FlowMetrics {
	o.mu.RLock()
	defer o.mu.RUnlock()

	indexed := atomic.LoadInt64(&o.eventsIndexed)
	failed := atomic.LoadInt64(&o.eventsFailed)
	bytes := atomic.LoadInt64(&o.bytesIndexed)

	var messagesPerSecond float64
	var bytesPerSecond float64
	var errorRate float64

	if uptime := time.Since(o.startTime).Seconds(); uptime > 0 {
		messagesPerSecond = float64(indexed) / uptime
		bytesPerSecond = float64(bytes) / uptime
	}

	if total := indexed + failed; total > 0 {
		errorRate = float64(failed) / float64(total)
	}

	return component.FlowMetrics{
		MessagesPerSecond: messagesPerSecond,
		BytesPerSecond:    bytesPerSecond,
		ErrorRate:         errorRate,
		LastActivity:      o.lastActivity,
	}
}

// Register registers the OpenSearch output component with the given registry
func Register(registry *component.Registry) error {
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "opensearch",
		Factory:     NewOutput,
		Schema:      opensearchSchema,
		Type:        "output",
		Protocol:    "http",
		Domain:      "storage",
		Description: "Bulk-indexes log events into OpenSearch behind a rolling write alias",
		Version:     "0.1.0",
	})
}
