// Package file provides a file output component that archives log events to disk
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/logstream/component"
	"github.com/c360/logstream/errors"
	"github.com/c360/logstream/natsclient"
)

// Config holds configuration for the file output component
type Config struct {
	Ports                *component.PortConfig `json:"ports"                  schema:"type:ports,description:Port configuration,category:basic"`
	Directory            string                `json:"directory"              schema:"type:string,description:Directory to write archive files into,category:basic"`
	FilePrefix           string                `json:"file_prefix"            schema:"type:string,description:Base name for archive files,category:basic"`
	Format               string                `json:"format"                 schema:"type:enum,enum:jsonl|json|raw,description:On-disk format,category:basic"`
	Append               bool                  `json:"append"                 schema:"type:bool,description:Append to an existing file instead of truncating,category:advanced"`
	BufferSize           int                   `json:"buffer_size"            schema:"type:int,description:Events to buffer before forcing a flush,category:advanced"`
	FlushIntervalSeconds int                   `json:"flush_interval_seconds" schema:"type:int,description:Seconds between periodic flushes,default:1,min:1,max:300,category:advanced"`
	MaxFileBytes         int64                 `json:"max_file_bytes"         schema:"type:int,description:Rotate the file once it grows past this many bytes (0 disables rotation),default:67108864,category:advanced"`
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Directory == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "directory is required")
	}

	validFormats := map[string]bool{"jsonl": true, "json": true, "raw": true}
	if !validFormats[c.Format] {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"format must be one of: jsonl, json, raw")
	}

	if c.BufferSize < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"buffer_size cannot be negative")
	}

	if c.MaxFileBytes < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"max_file_bytes cannot be negative")
	}

	if c.FlushIntervalSeconds < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"flush_interval_seconds cannot be negative")
	}

	return nil
}

// DefaultConfig returns default configuration for the file output
func DefaultConfig() Config {
	inputDefs := []component.PortDefinition{
		{
			Name:        "nats_input",
			Type:        "nats",
			Subject:     "input.gelf.>",
			Required:    true,
			Description: "Event subjects to archive to disk",
		},
	}

	outputDefs := []component.PortDefinition{
		{
			Name:        "file_output",
			Type:        "file",
			Subject:     "/tmp/logstream/events.jsonl",
			Required:    false,
			Description: "File path for the archive",
		},
	}

	return Config{
		Ports: &component.PortConfig{
			Inputs:  inputDefs,
			Outputs: outputDefs,
		},
		Directory:            "/tmp/logstream",
		FilePrefix:           "events",
		Format:               "jsonl",
		Append:               true,
		BufferSize:           100,
		FlushIntervalSeconds: 1,
		MaxFileBytes:         64 * 1024 * 1024,
	}
}

// fileSchema defines the configuration schema for the file output component
var fileSchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

// Output archives events arriving on NATS subjects to files on disk.
// Events are buffered in memory and flushed either when the buffer
// fills or on a periodic tick, and the live file is rotated to a
// timestamped name once it grows past the configured size limit.
type Output struct {
	name          string
	subjects      []string
	directory     string
	filePrefix    string
	format        string
	append        bool
	bufferSize    int
	flushInterval time.Duration
	maxFileBytes  int64
	natsClient    *natsclient.Client
	logger        *slog.Logger

	// Live archive file, size tracked for rotation
	file        *os.File
	currentSize int64
	fileMu      sync.Mutex

	// Buffer for batching writes
	buffer   [][]byte
	bufferMu sync.Mutex

	// Lifecycle management
	shutdown    chan struct{}
	done        chan struct{}
	closeOnce   sync.Once
	running     bool
	startTime   time.Time
	mu          sync.RWMutex
	lifecycleMu sync.Mutex
	wg          *sync.WaitGroup

	// Metrics
	eventsWritten int64
	bytesWritten  int64
	filesRotated  int64
	errors        int64
	lastActivity  time.Time
}

// NewOutput creates a new file output from configuration
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

	if config.Directory == "" {
		config.Directory = "/tmp/logstream"
	}

	flushInterval := time.Duration(config.FlushIntervalSeconds) * time.Second
	if flushInterval <= 0 {
		flushInterval = time.Second
	}

	return &Output{
		name:          "file-output",
		subjects:      inputSubjects,
		directory:     config.Directory,
		filePrefix:    config.FilePrefix,
		format:        config.Format,
		append:        config.Append,
		bufferSize:    config.BufferSize,
		flushInterval: flushInterval,
		maxFileBytes:  config.MaxFileBytes,
		natsClient:    deps.NATSClient,
		logger:        deps.GetLogger(),
		buffer:        make([][]byte, 0, config.BufferSize),
		shutdown:      make(chan struct{}),
		done:          make(chan struct{}),
		wg:            &sync.WaitGroup{},
	}, nil
}

// Initialize prepares the output (creates the archive directory)
func (f *Output) Initialize() error {
	if err := os.MkdirAll(f.directory, 0755); err != nil {
		return errors.WrapFatal(err, "Output", "Initialize", "create output directory")
	}

	return nil
}

// currentPath returns the path of the live archive file
func (f *Output) currentPath() string {
	return filepath.Join(f.directory, fmt.Sprintf("%s.%s", f.filePrefix, f.format))
}

// Start opens the archive file and begins consuming events
func (f *Output) Start(ctx context.Context) error {
	f.lifecycleMu.Lock()
	defer f.lifecycleMu.Unlock()

	if f.running {
		return errors.WrapFatal(errors.ErrAlreadyStarted, "Output", "Start", "check running state")
	}

	if f.natsClient == nil {
		return errors.WrapFatal(errors.ErrMissingConfig, "Output", "Start", "NATS client required")
	}

	filename := f.currentPath()
	flags := os.O_CREATE | os.O_WRONLY
	if f.append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	var err error
	f.file, err = os.OpenFile(filename, flags, 0644)
	if err != nil {
		return errors.WrapFatal(err, "Output", "Start", "open output file")
	}

	// An appended file may already be near the rotation threshold
	f.currentSize = 0
	if info, statErr := f.file.Stat(); statErr == nil {
		f.currentSize = info.Size()
	}

	for _, subject := range f.subjects {
		if err := f.natsClient.Subscribe(ctx, subject, f.handleEvent); err != nil {
			f.logger.Error("Failed to subscribe to NATS subject",
				"component", f.name,
				"subject", subject,
				"error", err)
			return errors.WrapTransient(err, "Output", "Start", fmt.Sprintf("subscribe to %s", subject))
		}
	}

	f.wg.Add(1)
	go f.flushLoop()

	f.mu.Lock()
	f.running = true
	f.startTime = time.Now()
	f.mu.Unlock()

	f.logger.Info("File output started",
		"component", f.name,
		"input_subjects", f.subjects,
		"output_file", filename,
		"format", f.format,
		"append", f.append,
		"buffer_size", f.bufferSize,
		"max_file_bytes", f.maxFileBytes)

	return nil
}

// Stop gracefully stops the output, flushing buffered events first
func (f *Output) Stop(timeout time.Duration) error {
	f.lifecycleMu.Lock()
	defer f.lifecycleMu.Unlock()

	if !f.running {
		return nil
	}

	close(f.shutdown)

	waitCh := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
	case <-time.After(timeout):
		return errors.WrapTransient(fmt.Errorf("shutdown timeout after %v", timeout), "Output", "Stop", "shutdown")
	}

	// Flush anything the loop had not picked up yet
	f.flush()

	f.fileMu.Lock()
	if f.file != nil {
		if err := f.file.Close(); err != nil {
			f.logger.Warn("failed to close output file", "error", err, "path", f.file.Name())
		}
		f.file = nil
	}
	f.fileMu.Unlock()

	f.mu.Lock()
	f.running = false
	f.mu.Unlock()

	// Close done channel exactly once, even if Stop() called multiple times
	f.closeOnce.Do(func() {
		close(f.done)
	})

	return nil
}

// handleEvent buffers an incoming event and flushes when the buffer fills
func (f *Output) handleEvent(ctx context.Context, msgData []byte) {
	f.bufferMu.Lock()
	f.buffer = append(f.buffer, msgData)
	shouldFlush := len(f.buffer) >= f.bufferSize
	f.bufferMu.Unlock()

	if shouldFlush {
		select {
		case <-ctx.Done():
			return
		default:
		}
		f.flush()
	}

	f.mu.Lock()
	f.lastActivity = time.Now()
	f.mu.Unlock()
}

// flushLoop periodically flushes the buffer
func (f *Output) flushLoop() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.shutdown:
			return
		case <-ticker.C:
			f.flush()
		}
	}
}

// flush writes buffered events to the archive file, rotating it when
// the configured size limit would be exceeded
func (f *Output) flush() {
	f.bufferMu.Lock()
	if len(f.buffer) == 0 {
		f.bufferMu.Unlock()
		return
	}

	events := f.buffer
	f.buffer = make([][]byte, 0, f.bufferSize)
	f.bufferMu.Unlock()

	f.fileMu.Lock()
	defer f.fileMu.Unlock()

	if f.file == nil {
		atomic.AddInt64(&f.errors, int64(len(events)))
		f.logger.Error("File handle is nil during flush",
			"component", f.name,
			"events_lost", len(events))
		return
	}

	for _, msg := range events {
		writeData := f.formatEvent(msg)

		if f.maxFileBytes > 0 && f.currentSize > 0 && f.currentSize+int64(len(writeData)) > f.maxFileBytes {
			if err := f.rotateLocked(); err != nil {
				atomic.AddInt64(&f.errors, 1)
				f.logger.Error("Failed to rotate output file",
					"component", f.name,
					"error", err)
				if f.file == nil {
					return
				}
			}
		}

		n, err := f.file.Write(writeData)
		if err != nil {
			atomic.AddInt64(&f.errors, 1)
			f.logger.Error("Failed to write event to file",
				"component", f.name,
				"error", err)
			continue
		}

		f.currentSize += int64(n)
		atomic.AddInt64(&f.eventsWritten, 1)
		atomic.AddInt64(&f.bytesWritten, int64(n))
	}

	f.logger.Debug("Flush completed",
		"component", f.name,
		"events_flushed", len(events),
		"total_written", atomic.LoadInt64(&f.eventsWritten),
		"total_errors", atomic.LoadInt64(&f.errors))
}

// formatEvent renders a single event per the configured format
func (f *Output) formatEvent(msg []byte) []byte {
	switch f.format {
	case "jsonl":
		// One JSON object per line
		return append(msg, '\n')
	case "json":
		// Pretty-printed JSON with newline
		var obj any
		if err := json.Unmarshal(msg, &obj); err == nil {
			if formatted, err := json.MarshalIndent(obj, "", "  "); err == nil {
				return append(formatted, '\n')
			}
		}
		return append(msg, '\n')
	case "raw":
		return msg
	default:
		return append(msg, '\n')
	}
}

// rotateLocked renames the live file to a timestamped name and opens a
// fresh one. Caller must hold fileMu.
func (f *Output) rotateLocked() error {
	current := f.currentPath()

	if err := f.file.Close(); err != nil {
		f.logger.Warn("failed to close file before rotation", "error", err, "path", current)
	}
	f.file = nil

	stamp := time.Now().UTC().Format("20060102T150405")
	rotated := filepath.Join(f.directory, fmt.Sprintf("%s-%s.%s", f.filePrefix, stamp, f.format))
	for seq := 1; ; seq++ {
		if _, err := os.Stat(rotated); os.IsNotExist(err) {
			break
		}
		rotated = filepath.Join(f.directory, fmt.Sprintf("%s-%s-%d.%s", f.filePrefix, stamp, seq, f.format))
	}

	if err := os.Rename(current, rotated); err != nil {
		return errors.WrapTransient(err, "Output", "rotateLocked", "rename current file")
	}

	file, err := os.OpenFile(current, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return errors.WrapTransient(err, "Output", "rotateLocked", "open fresh file")
	}

	f.file = file
	f.currentSize = 0
	atomic.AddInt64(&f.filesRotated, 1)

	f.logger.Info("Rotated output file",
		"component", f.name,
		"rotated_to", rotated)

	return nil
}

// Discoverable interface implementation

// Meta returns component metadata
func (f *Output) Meta() component.Metadata {
	return component.Metadata{
		Name:        f.name,
		Type:        "output",
		Description: "Archives log events to rotating files on disk",
		Version:     "0.1.0",
	}
}

// InputPorts returns configured input port definitions
func (f *Output) InputPorts() []component.Port {
	ports := make([]component.Port, len(f.subjects))
	for i, subj := range f.subjects {
		ports[i] = component.Port{
			Name:      fmt.Sprintf("input_%d", i),
			Direction: component.DirectionInput,
			Required:  true,
			Config:    component.NATSPort{Subject: subj},
		}
	}
	return ports
}

// OutputPorts returns the archive location as a file port
func (f *Output) OutputPorts() []component.Port {
	return []component.Port{
		{
			Name:      "archive",
			Direction: component.DirectionOutput,
			Required:  false,
			Config: component.FilePort{
				Path:    f.directory,
				Pattern: fmt.Sprintf("%s*.%s", f.filePrefix, f.format),
			},
		},
	}
}

// ConfigSchema returns the configuration schema
func (f *Output) ConfigSchema() component.ConfigSchema {
	return fileSchema
}

// Health returns the current health status
func (f *Output) Health() component.HealthStatus {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return component.HealthStatus{
		Healthy:    f.running && f.file != nil,
		LastCheck:  time.Now(),
		ErrorCount: int(atomic.LoadInt64(&f.errors)),
		Uptime:     time.Since(f.startTime),
	}
}

// DataFlow returns current data flow metrics
func (f *Output) DataFlow() component.FlowMetrics {
	f.mu.RLock()
	defer f.mu.RUnlock()

	written := atomic.LoadInt64(&f.eventsWritten)
	bytes := atomic.LoadInt64(&f.bytesWritten)
	errorCount := atomic.LoadInt64(&f.errors)

	var messagesPerSecond float64
	var bytesPerSecond float64
	var errorRate float64

	if uptime := time.Since(f.startTime).Seconds(); uptime > 0 {
		messagesPerSecond = float64(written) / uptime
		bytesPerSecond = float64(bytes) / uptime
	}

	if written > 0 {
		errorRate = float64(errorCount) / float64(written)
	}

	return component.FlowMetrics{
		MessagesPerSecond: messagesPerSecond,
		BytesPerSecond:    bytesPerSecond,
		ErrorRate:         errorRate,
		LastActivity:      f.lastActivity,
	}
}

// Register registers the file output component with the given registry
func Register(registry *component.Registry) error {
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "file",
		Factory:     NewOutput,
		Schema:      fileSchema,
		Type:        "output",
		Protocol:    "file",
		Domain:      "storage",
		Description: "Archives log events to rotating NDJSON, JSON, or raw files",
		Version:     "0.1.0",
	})
}
