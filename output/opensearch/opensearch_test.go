package opensearch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/c360/logstream/component"
	"github.com/c360/logstream/errors"
	"github.com/c360/logstream/metric"
	"github.com/c360/logstream/natsclient"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBulkClient records batches instead of talking to a cluster
type fakeBulkClient struct {
	mu       sync.Mutex
	setupErr error
	setups   int
	batches  [][][]byte
	indexErr error
	failPer  int // docs per batch reported as rejected
}

func (f *fakeBulkClient) Setup(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setups++
	return f.setupErr
}

func (f *fakeBulkClient) BulkIndex(_ context.Context, docs [][]byte) (BulkStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.indexErr != nil {
		return BulkStats{}, f.indexErr
	}

	batch := make([][]byte, len(docs))
	copy(batch, docs)
	f.batches = append(f.batches, batch)

	failed := f.failPer
	if failed > len(docs) {
		failed = len(docs)
	}

	stats := BulkStats{Indexed: len(docs) - failed, Failed: failed}
	for i := 0; i < failed; i++ {
		stats.Errors = append(stats.Errors, "mapper_parsing_exception: rejected by fake")
	}
	return stats, nil
}

func (f *fakeBulkClient) WriteAlias() string {
	return "logstream-events-write"
}

func (f *fakeBulkClient) totalDocs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, b := range f.batches {
		total += len(b)
	}
	return total
}

func (f *fakeBulkClient) batchSizes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	sizes := make([]int, len(f.batches))
	for i, b := range f.batches {
		sizes[i] = len(b)
	}
	return sizes
}

func testConfig() Config {
	config := DefaultConfig()
	config.Ports = &component.PortConfig{
		Inputs: []component.PortDefinition{
			{Name: "input", Type: "nats", Subject: "test.events", Required: true},
		},
	}
	config.URL = "http://localhost:9200"
	config.BatchSize = 3
	config.BufferSize = 16
	config.Workers = 1
	return config
}

// newTestOutput wires an Output around a fake client so indexing paths
// can be exercised without a cluster or a NATS connection.
func newTestOutput(t *testing.T, config Config, fake *fakeBulkClient) *Output {
	t.Helper()

	output, err := newOutput(config, []string{"test.events"}, fake, nil, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, output.logger, "nil logger should be normalized")

	return output
}

func TestOpenSearchOutput_Creation(t *testing.T) {
	config := testConfig()

	rawConfig, err := json.Marshal(config)
	require.NoError(t, err)

	output, err := NewOutput(rawConfig, component.Dependencies{})
	require.NoError(t, err)
	require.NotNil(t, output)

	meta := output.Meta()
	assert.Equal(t, "opensearch-output", meta.Name)
	assert.Equal(t, "output", meta.Type)

	osOutput, ok := output.(*Output)
	require.True(t, ok)
	assert.Equal(t, []string{"test.events"}, osOutput.subjects)
	assert.Equal(t, 3, osOutput.batchSize)
	assert.Equal(t, time.Second, osOutput.flushInterval)
	assert.NotNil(t, osOutput.client)
	assert.NotNil(t, osOutput.buf)
	assert.NotNil(t, osOutput.pool)
}

func TestOpenSearchOutput_Creation_NoSubjects(t *testing.T) {
	config := testConfig()
	config.Ports = &component.PortConfig{
		Inputs: []component.PortDefinition{
			{Name: "input", Type: "network", Subject: "", Required: true},
		},
	}

	rawConfig, err := json.Marshal(config)
	require.NoError(t, err)

	_, err = NewOutput(rawConfig, component.Dependencies{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no input subjects configured")
}

func TestOpenSearchOutput_Creation_NormalizesTuning(t *testing.T) {
	config := testConfig()
	config.BatchSize = 0
	config.BufferSize = 0
	config.Workers = 0
	config.FlushIntervalSeconds = 0

	rawConfig, err := json.Marshal(config)
	require.NoError(t, err)

	output, err := NewOutput(rawConfig, component.Dependencies{})
	require.NoError(t, err)

	osOutput, ok := output.(*Output)
	require.True(t, ok)
	assert.Equal(t, 500, osOutput.batchSize)
	assert.Equal(t, time.Second, osOutput.flushInterval)
}

func TestOpenSearchOutput_DefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.NotNil(t, config.Ports)
	require.Len(t, config.Ports.Inputs, 1)
	assert.Equal(t, "input.gelf.>", config.Ports.Inputs[0].Subject)
	assert.Equal(t, "https://localhost:9200", config.URL)
	assert.Equal(t, "logstream-events", config.IndexPrefix)
	assert.True(t, config.TLSSkipVerify)
	assert.Equal(t, 500, config.BatchSize)
	assert.Equal(t, 1, config.FlushIntervalSeconds)
	assert.Equal(t, 2, config.Workers)
	assert.Equal(t, 8192, config.BufferSize)
	assert.Equal(t, 1, config.ShardCount)
	assert.Equal(t, 0, config.ReplicaCount)
	assert.Equal(t, 30, config.RetentionDays)
	assert.Equal(t, 50, config.RolloverSizeGB)
	assert.Equal(t, 24, config.RolloverAgeHours)
}

func TestOpenSearchOutput_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing url", func(c *Config) { c.URL = "" }},
		{"negative batch size", func(c *Config) { c.BatchSize = -1 }},
		{"negative buffer size", func(c *Config) { c.BufferSize = -1 }},
		{"negative workers", func(c *Config) { c.Workers = -1 }},
		{"negative flush interval", func(c *Config) { c.FlushIntervalSeconds = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := testConfig()
			tt.mutate(&config)

			err := config.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestOpenSearchOutput_ConfigSchema(t *testing.T) {
	config := testConfig()
	rawConfig, err := json.Marshal(config)
	require.NoError(t, err)

	output, err := NewOutput(rawConfig, component.Dependencies{})
	require.NoError(t, err)

	schema := output.ConfigSchema()

	for _, field := range []string{
		"url", "username", "password", "tls_skip_verify", "index_prefix",
		"batch_size", "flush_interval_seconds", "workers", "buffer_size",
		"shard_count", "replica_count", "refresh_interval",
		"retention_days", "rollover_size_gb", "rollover_age_hours",
	} {
		_, ok := schema.Properties[field]
		assert.True(t, ok, "schema should expose %s", field)
	}

	assert.Equal(t, 500, schema.Properties["batch_size"].Default)
	assert.Equal(t, 8192, schema.Properties["buffer_size"].Default)
	assert.Equal(t, 30, schema.Properties["retention_days"].Default)
}

func TestOpenSearchOutput_Ports(t *testing.T) {
	output := newTestOutput(t, testConfig(), &fakeBulkClient{})

	inputs := output.InputPorts()
	require.Len(t, inputs, 1)
	assert.Equal(t, component.DirectionInput, inputs[0].Direction)
	natsPort, ok := inputs[0].Config.(component.NATSPort)
	require.True(t, ok)
	assert.Equal(t, "test.events", natsPort.Subject)

	assert.Empty(t, output.OutputPorts())
}

func TestOpenSearchOutput_Lifecycle(t *testing.T) {
	output := newTestOutput(t, testConfig(), &fakeBulkClient{})

	require.NoError(t, output.Initialize())

	health := output.Health()
	assert.False(t, health.Healthy, "not healthy before Start")

	// Stop before Start is a no-op
	assert.NoError(t, output.Stop(time.Second))
}

func TestOpenSearchOutput_StartRequiresNATSClient(t *testing.T) {
	output := newTestOutput(t, testConfig(), &fakeBulkClient{})

	err := output.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NATS client required")
}

func TestOpenSearchOutput_StartFailsWhenSetupFails(t *testing.T) {
	fake := &fakeBulkClient{
		setupErr: errors.WrapTransient(fmt.Errorf("connection refused"), "Client", "Setup", "ping cluster"),
	}
	config := testConfig()
	output, err := newOutput(config, []string{"test.events"}, fake, &natsclient.Client{}, nil, nil)
	require.NoError(t, err)

	err = output.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.Equal(t, 1, fake.setups)
	assert.False(t, output.Health().Healthy)
}

func TestOpenSearchOutput_HandleEventBuffersUntilBatch(t *testing.T) {
	output := newTestOutput(t, testConfig(), &fakeBulkClient{})

	output.handleEvent(context.Background(), []byte(`{"message":"one"}`))
	output.handleEvent(context.Background(), []byte(`{"message":"two"}`))

	assert.Equal(t, 2, output.buf.Size())
	assert.Len(t, output.kick, 0, "no kick below a full batch")

	output.handleEvent(context.Background(), []byte(`{"message":"three"}`))

	assert.Equal(t, 3, output.buf.Size())
	assert.Len(t, output.kick, 1, "full batch should kick the flush loop")

	flow := output.DataFlow()
	assert.False(t, flow.LastActivity.IsZero())
}

func TestOpenSearchOutput_DrainIndexesInBatches(t *testing.T) {
	fake := &fakeBulkClient{}
	output := newTestOutput(t, testConfig(), fake)

	// Pool is not started, so every batch takes the inline path
	for i := 0; i < 5; i++ {
		output.handleEvent(context.Background(), []byte(fmt.Sprintf(`{"seq":%d}`, i)))
	}
	output.drainBuffer()

	assert.Equal(t, []int{3, 2}, fake.batchSizes())
	assert.Equal(t, int64(5), atomic.LoadInt64(&output.eventsIndexed))
	assert.Equal(t, int64(2), atomic.LoadInt64(&output.batchesFlushed))
	assert.Equal(t, 0, output.buf.Size())
}

func TestOpenSearchOutput_DrainPreservesOrder(t *testing.T) {
	fake := &fakeBulkClient{}
	output := newTestOutput(t, testConfig(), fake)

	output.handleEvent(context.Background(), []byte(`{"seq":0}`))
	output.handleEvent(context.Background(), []byte(`{"seq":1}`))
	output.drainBuffer()

	require.Len(t, fake.batches, 1)
	assert.Equal(t, `{"seq":0}`, string(fake.batches[0][0]))
	assert.Equal(t, `{"seq":1}`, string(fake.batches[0][1]))
}

func TestOpenSearchOutput_IndexBatchCountsRejectedDocs(t *testing.T) {
	fake := &fakeBulkClient{failPer: 1}
	output := newTestOutput(t, testConfig(), fake)

	docs := [][]byte{
		[]byte(`{"message":"ok"}`),
		[]byte(`{"message":"ok too"}`),
		[]byte(`{"message":"rejected"}`),
	}
	require.NoError(t, output.indexBatch(context.Background(), docs))

	assert.Equal(t, int64(2), atomic.LoadInt64(&output.eventsIndexed))
	assert.Equal(t, int64(1), atomic.LoadInt64(&output.eventsFailed))
	assert.Equal(t, int64(1), atomic.LoadInt64(&output.errors))

	flow := output.DataFlow()
	assert.InDelta(t, 1.0/3.0, flow.ErrorRate, 0.001)
}

func TestOpenSearchOutput_IndexBatchRequestError(t *testing.T) {
	fake := &fakeBulkClient{
		indexErr: errors.WrapTransient(fmt.Errorf("503 Service Unavailable"), "Client", "BulkIndex", "flush bulk request"),
	}
	output := newTestOutput(t, testConfig(), fake)

	docs := [][]byte{[]byte(`{"a":1}`), []byte(`{"b":2}`)}
	err := output.indexBatch(context.Background(), docs)
	require.Error(t, err)

	// The whole batch counts as failed when the request itself fails
	assert.Equal(t, int64(0), atomic.LoadInt64(&output.eventsIndexed))
	assert.Equal(t, int64(2), atomic.LoadInt64(&output.eventsFailed))
}

func TestOpenSearchOutput_OverflowDropsOldest(t *testing.T) {
	fake := &fakeBulkClient{}
	config := testConfig()
	config.BufferSize = 2
	output := newTestOutput(t, config, fake)

	output.handleEvent(context.Background(), []byte(`{"seq":0}`))
	output.handleEvent(context.Background(), []byte(`{"seq":1}`))
	output.handleEvent(context.Background(), []byte(`{"seq":2}`))

	assert.Equal(t, int64(1), atomic.LoadInt64(&output.eventsDropped))
	assert.Equal(t, 2, output.buf.Size())

	output.drainBuffer()
	require.Len(t, fake.batches, 1)
	assert.Equal(t, `{"seq":1}`, string(fake.batches[0][0]), "oldest event should have been evicted")
	assert.Equal(t, `{"seq":2}`, string(fake.batches[0][1]))
}

func TestOpenSearchOutput_StopFlushesBufferedEvents(t *testing.T) {
	fake := &fakeBulkClient{}
	output := newTestOutput(t, testConfig(), fake)

	require.NoError(t, output.pool.Start(context.Background()))
	output.wg.Add(1)
	go output.flushLoop()
	output.mu.Lock()
	output.running = true
	output.startTime = time.Now()
	output.mu.Unlock()

	for i := 0; i < 7; i++ {
		output.handleEvent(context.Background(), []byte(fmt.Sprintf(`{"seq":%d}`, i)))
	}

	require.NoError(t, output.Stop(2*time.Second))

	assert.Equal(t, 7, fake.totalDocs(), "Stop should flush everything buffered")
	assert.False(t, output.Health().Healthy)

	// Buffer is closed after Stop
	err := output.buf.Write([]byte(`{"late":true}`))
	require.Error(t, err)
}

func TestOpenSearchOutput_HandleEventAfterShutdown(t *testing.T) {
	output := newTestOutput(t, testConfig(), &fakeBulkClient{})

	close(output.shutdown)
	output.handleEvent(context.Background(), []byte(`{"message":"late"}`))

	assert.Equal(t, 0, output.buf.Size())
}

func TestOpenSearchOutput_Metrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	fake := &fakeBulkClient{failPer: 1}
	config := testConfig()

	output, err := newOutput(config, []string{"test.events"}, fake, nil, registry, nil)
	require.NoError(t, err)
	require.NotNil(t, output.metrics)

	output.handleEvent(context.Background(), []byte(`{"a":1}`))
	output.handleEvent(context.Background(), []byte(`{"b":2}`))
	output.drainBuffer()

	assert.Equal(t, float64(1), testutil.ToFloat64(output.metrics.eventsIndexed))
	assert.Equal(t, float64(1), testutil.ToFloat64(output.metrics.eventsFailed))
	assert.Equal(t, float64(1), testutil.ToFloat64(output.metrics.batchesTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(output.metrics.bulkErrors.WithLabelValues("item")))
}

func TestOpenSearchOutput_MetricsNilRegistry(t *testing.T) {
	output := newTestOutput(t, testConfig(), &fakeBulkClient{})
	assert.Nil(t, output.metrics, "nil registry should disable metrics")
}

func TestOpenSearchOutput_DataFlowRates(t *testing.T) {
	fake := &fakeBulkClient{}
	output := newTestOutput(t, testConfig(), fake)

	output.mu.Lock()
	output.startTime = time.Now().Add(-time.Second)
	output.mu.Unlock()

	require.NoError(t, output.indexBatch(context.Background(), [][]byte{[]byte(`{"a":1}`)}))

	flow := output.DataFlow()
	assert.Positive(t, flow.MessagesPerSecond)
	assert.Positive(t, flow.BytesPerSecond)
	assert.InDelta(t, 0, flow.ErrorRate, 0.001)
}
