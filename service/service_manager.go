package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360/logstream/health"
	"github.com/c360/logstream/natsclient"
	"github.com/c360/logstream/pkg/retry"
	"github.com/c360/logstream/types"
)

// Manager owns the lifecycle of every service in the ingest daemon and the
// single admin HTTP server they share. Services are explicitly registered
// and created from raw JSON configs loaded at startup.
type Manager struct {
	*BaseService // Embed BaseService to implement Service interface

	registry *Registry
	services map[string]Service
	order    []string // Track registration order for reverse-order shutdown
	mu       sync.RWMutex

	// Admin HTTP server infrastructure
	httpServer *http.Server
	httpMux    *http.ServeMux
	config     ManagerConfig

	// Track if we're the instance managing HTTP
	isHTTPManager bool

	natsClient   *natsclient.Client
	dependencies *Dependencies // Full dependencies for mandatory services
}

// NewServiceManager creates a new service manager
func NewServiceManager(registry *Registry) *Manager {
	m := &Manager{
		registry: registry,
		services: make(map[string]Service),
		// config is set by ConfigureFromServices
	}
	// Initialize BaseService for registry/factory functionality
	m.BaseService = NewBaseServiceWithOptions("service-manager-registry", nil)
	return m
}

// ConfigureFromServices configures the Manager directly from the services
// section of the loaded platform config.
func (m *Manager) ConfigureFromServices(services map[string]types.ServiceConfig, deps *Dependencies) error {
	logger := slog.Default()
	if deps != nil && deps.Logger != nil {
		logger = deps.Logger
	}

	smConfig, hasConfig := services["service-manager"]
	if !hasConfig || !smConfig.Enabled {
		logger.Debug("Manager: no service-manager config or disabled, using defaults")
		m.config = ManagerConfig{
			HTTPPort:  8080,
			SwaggerUI: false,
			ServerInfo: InfoSpec{
				Title:       "LogStream API",
				Description: "GELF log ingest platform API",
				Version:     "0.7.0",
			},
		}
	} else {
		var cfg ManagerConfig
		if len(smConfig.Config) > 0 {
			if err := json.Unmarshal(smConfig.Config, &cfg); err != nil {
				return fmt.Errorf("parse service-manager config: %w", err)
			}
		}

		if cfg.HTTPPort == 0 {
			cfg.HTTPPort = 8080
		}
		if cfg.ServerInfo.Title == "" {
			cfg.ServerInfo.Title = "LogStream API"
		}
		if cfg.ServerInfo.Description == "" {
			cfg.ServerInfo.Description = "GELF log ingest platform API"
		}
		if cfg.ServerInfo.Version == "" {
			cfg.ServerInfo.Version = "0.7.0"
		}

		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("validate service-manager config: %w", err)
		}

		m.config = cfg
	}

	if deps != nil {
		m.dependencies = deps
		if deps.NATSClient != nil {
			m.natsClient = deps.NATSClient
		}
	}

	// Create BaseService for lifecycle management
	if m.BaseService == nil {
		m.BaseService = NewBaseServiceWithOptions(
			"service-manager",
			nil,
			WithLogger(deps.Logger),
			WithMetrics(deps.MetricsRegistry),
		)
	}

	logger.Debug("Manager configured",
		"http_port", m.config.HTTPPort,
		"swagger_ui", m.config.SwaggerUI)

	return nil
}

// CreateService creates a service instance using the registered constructor
func (m *Manager) CreateService(name string, rawConfig json.RawMessage, deps *Dependencies) (Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.services[name]; exists {
		return nil, fmt.Errorf("service %s already created", name)
	}

	constructor, exists := m.registry.Constructor(name)
	if !exists {
		return nil, fmt.Errorf("no constructor registered for service %s", name)
	}

	service, err := constructor(rawConfig, deps)
	if err != nil {
		return nil, fmt.Errorf("failed to create service %s: %w", name, err)
	}

	m.services[name] = service
	m.order = append(m.order, name)

	return service, nil
}

// GetService returns a service instance by name
func (m *Manager) GetService(name string) (Service, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	service, exists := m.services[name]
	return service, exists
}

// GetAllServices returns all registered service instances
func (m *Manager) GetAllServices() map[string]Service {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]Service)
	for name, service := range m.services {
		result[name] = service
	}
	return result
}

// ListConstructors returns all registered constructor names
func (m *Manager) ListConstructors() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var names []string
	for name := range m.registry.Constructors() {
		names = append(names, name)
	}
	return names
}

// HasConstructor checks if a constructor is registered
func (m *Manager) HasConstructor(name string) bool {
	_, exists := m.registry.Constructor(name)
	return exists
}

// mandatoryServices lists services that must always exist
var mandatoryServices = []string{
	"component-manager", // Always needed to manage inputs and outputs
}

// StartAll starts all registered service instances and the admin HTTP server
func (m *Manager) StartAll(ctx context.Context) error {
	logger := m.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Initialize HTTP infrastructure (but don't start listening yet)
	if err := m.initializeHTTPInfrastructure(); err != nil {
		return fmt.Errorf("initialize HTTP infrastructure: %w", err)
	}

	if err := m.createMandatoryServices(logger); err != nil {
		return fmt.Errorf("create mandatory services: %w", err)
	}

	m.mu.RLock()
	services := make(map[string]Service)
	for name, service := range m.services {
		services[name] = service
	}
	m.mu.RUnlock()

	logger.Debug("starting services", "service_count", len(services))

	// Services have no start-order dependencies on each other, so bring them
	// up concurrently and fail the whole startup on the first error.
	var g errgroup.Group
	for name, service := range services {
		g.Go(func() error {
			if err := service.Start(ctx); err != nil {
				logger.Error("failed to start service", "name", name, "error", err)
				return fmt.Errorf("failed to start service %s: %w", name, err)
			}
			logger.Debug("service started", "name", name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Now that all services are started, register their HTTP handlers and
	// start the admin server.
	if err := m.completeHTTPSetup(); err != nil {
		return fmt.Errorf("complete HTTP setup: %w", err)
	}
	logger.Info("admin HTTP server started", "port", m.config.HTTPPort)

	logger.Info("all services started", "count", len(services))
	return nil
}

// createMandatoryServices creates mandatory services if they don't already exist
func (m *Manager) createMandatoryServices(logger *slog.Logger) error {
	for _, serviceName := range mandatoryServices {
		m.mu.RLock()
		_, exists := m.services[serviceName]
		m.mu.RUnlock()

		if exists {
			continue
		}

		deps := m.dependencies
		if deps == nil {
			deps = &Dependencies{
				NATSClient: m.natsClient,
				Logger:     logger,
			}
		}

		logger.Info("creating mandatory service", "service", serviceName)
		if _, err := m.CreateService(serviceName, json.RawMessage("{}"), deps); err != nil {
			return fmt.Errorf("failed to create mandatory service %s: %w", serviceName, err)
		}
	}

	return nil
}

// StopAll stops all registered service instances in reverse order and the HTTP server
func (m *Manager) StopAll(timeout time.Duration) error {
	logger := m.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("operation", "services-shutdown")

	m.mu.Lock()
	reverseOrder := make([]string, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		reverseOrder[len(m.order)-1-i] = m.order[i]
	}

	services := make(map[string]Service, len(m.services))
	for name, service := range m.services {
		services[name] = service
	}
	m.mu.Unlock()

	logger.Debug("starting service shutdown",
		"count", len(services),
		"timeout", timeout,
		"order", reverseOrder,
	)
	overallStart := time.Now()

	var errors []error
	for _, name := range reverseOrder {
		if service, exists := services[name]; exists {
			serviceStart := time.Now()

			if err := service.Stop(timeout); err != nil {
				logger.Error("service stop failed",
					"service", name,
					"duration_ms", time.Since(serviceStart).Milliseconds(),
					"error", err,
				)
				errors = append(errors, fmt.Errorf("failed to stop service %s: %w", name, err))
			} else {
				logger.Debug("service stopped",
					"service", name,
					"duration_ms", time.Since(serviceStart).Milliseconds(),
				)
			}
		}
	}

	m.mu.Lock()
	m.services = make(map[string]Service)
	m.order = nil
	m.mu.Unlock()

	// The HTTP server must come down with the services or the process
	// never exits cleanly under container runtimes.
	if m.isHTTPManager {
		if err := m.stopHTTPServer(); err != nil {
			logger.Error("HTTP server stop failed", "error", err)
			errors = append(errors, fmt.Errorf("failed to stop HTTP server: %w", err))
		}
	}

	logger.Debug("service shutdown completed",
		"duration_ms", time.Since(overallStart).Milliseconds(),
		"error_count", len(errors),
	)

	if len(errors) > 0 {
		return fmt.Errorf("stop errors: %v", errors)
	}
	return nil
}

// StartService creates and starts a single service if not already running
func (m *Manager) StartService(ctx context.Context, name string, rawConfig json.RawMessage, deps *Dependencies) error {
	logger := m.logger
	if logger == nil {
		logger = slog.Default()
	}

	m.mu.RLock()
	_, exists := m.services[name]
	m.mu.RUnlock()

	if exists {
		// Already created; treat as running.
		logger.Debug("service already exists", "service", name)
		return nil
	}

	logger.Info("creating service", "service", name)
	service, err := m.CreateService(name, rawConfig, deps)
	if err != nil {
		return fmt.Errorf("failed to create service %s: %w", name, err)
	}

	// Services may have dependencies that aren't ready yet, so retry briefly.
	retryConfig := retry.Quick()
	startErr := retry.Do(ctx, retryConfig, func() error {
		if err := service.Start(ctx); err != nil {
			logger.Debug("service start attempt failed, will retry",
				"service", name,
				"error", err)
			return err
		}
		return nil
	})

	if startErr != nil {
		// Remove from registry if start fails after all retries
		m.RemoveService(name)
		return fmt.Errorf("failed to start service %s after retries: %w", name, startErr)
	}

	logger.Info("service started", "service", name)
	return nil
}

// StopService stops and removes a single service
func (m *Manager) StopService(name string, timeout time.Duration) error {
	logger := m.logger
	if logger == nil {
		logger = slog.Default()
	}

	m.mu.RLock()
	service, exists := m.services[name]
	m.mu.RUnlock()

	if !exists {
		return nil // Not an error - service already stopped
	}

	for _, mandatoryName := range mandatoryServices {
		if name == mandatoryName {
			return fmt.Errorf("cannot stop mandatory service %s", name)
		}
	}

	logger.Info("stopping service", "service", name)
	if err := service.Stop(timeout); err != nil {
		// Continue with removal even if stop fails - service might be stuck
		logger.Error("failed to stop service", "service", name, "error", err)
	}

	m.RemoveService(name)
	return nil
}

// RemoveService removes a service instance
func (m *Manager) RemoveService(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.services[name]; exists {
		delete(m.services, name)

		for i, n := range m.order {
			if n == name {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
	}
}

// GetHealthyServices returns a list of healthy services
func (m *Manager) GetHealthyServices() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var healthy []string
	for name, service := range m.services {
		if service.IsHealthy() {
			healthy = append(healthy, name)
		}
	}
	return healthy
}

// GetUnhealthyServices returns a list of unhealthy services
func (m *Manager) GetUnhealthyServices() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var unhealthy []string
	for name, service := range m.services {
		if !service.IsHealthy() {
			unhealthy = append(unhealthy, name)
		}
	}
	return unhealthy
}

// GetServiceStatus returns the status of a specific service
func (m *Manager) GetServiceStatus(name string) (any, error) {
	m.mu.RLock()
	service, exists := m.services[name]
	m.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("service %s not found", name)
	}

	return service.Status(), nil
}

// GetAllServiceStatus returns the status of all services
func (m *Manager) GetAllServiceStatus() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]any)
	for name, service := range m.services {
		result[name] = service.Status()
	}
	return result
}

// hasRuntimeConfigSupport checks if a service supports runtime configuration
func (m *Manager) hasRuntimeConfigSupport(serviceName string) bool {
	service, exists := m.GetService(serviceName)
	if !exists {
		return false
	}

	_, ok := service.(RuntimeConfigurable)
	return ok
}

// GetServiceRuntimeConfig returns current runtime configuration for a service
func (m *Manager) GetServiceRuntimeConfig(serviceName string) (map[string]any, error) {
	service, exists := m.GetService(serviceName)
	if !exists {
		return nil, fmt.Errorf("service %s not found", serviceName)
	}

	runtimeConfigurable, ok := service.(RuntimeConfigurable)
	if !ok {
		return nil, fmt.Errorf("service %s does not support runtime configuration", serviceName)
	}

	return runtimeConfigurable.GetRuntimeConfig(), nil
}

// ApplyServiceConfigUpdate validates and applies a runtime configuration change
// to a service that supports it. Called from the admin HTTP config endpoints.
func (m *Manager) ApplyServiceConfigUpdate(serviceName string, changes map[string]any) error {
	service, exists := m.GetService(serviceName)
	if !exists {
		return fmt.Errorf("service %s not found", serviceName)
	}

	runtimeConfigurable, ok := service.(RuntimeConfigurable)
	if !ok {
		return fmt.Errorf("service %s does not support runtime configuration (restart required)", serviceName)
	}

	if err := runtimeConfigurable.ValidateConfigUpdate(changes); err != nil {
		return fmt.Errorf("invalid configuration update for %s: %w", serviceName, err)
	}

	if err := runtimeConfigurable.ApplyConfigUpdate(changes); err != nil {
		return fmt.Errorf("apply configuration update for %s: %w", serviceName, err)
	}

	return nil
}

// Start starts the Manager itself. The admin HTTP server is started in
// StartAll once every service has registered its handlers.
func (m *Manager) Start(ctx context.Context) error {
	return m.BaseService.Start(ctx)
}

// Stop stops the Manager HTTP server
func (m *Manager) Stop(timeout time.Duration) error {
	if m.isHTTPManager {
		if err := m.stopHTTPServer(); err != nil {
			return err
		}
	}

	return m.BaseService.Stop(timeout)
}

// initializeHTTPInfrastructure creates the HTTP mux and registers system
// endpoints only. Called early in StartAll before services are created.
func (m *Manager) initializeHTTPInfrastructure() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.httpMux != nil {
		// Already initialized; StartAll must stay idempotent.
		return nil
	}

	m.httpMux = http.NewServeMux()

	// Health probes don't depend on services being created.
	m.registerSystemEndpoints()

	return nil
}

// completeHTTPSetup registers service handlers and starts the HTTP server.
// Called after all services have been started.
func (m *Manager) completeHTTPSetup() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.httpMux == nil {
		return fmt.Errorf("HTTP infrastructure not initialized")
	}

	if m.httpServer != nil {
		return fmt.Errorf("HTTP server already started")
	}

	if err := m.registerServiceHandlers(); err != nil {
		return fmt.Errorf("failed to register service handlers: %w", err)
	}

	m.registerOpenAPIEndpoints()

	m.httpServer = &http.Server{
		Addr:         ":" + strconv.Itoa(m.config.HTTPPort),
		Handler:      m.httpMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	m.isHTTPManager = true

	// Capture server reference before goroutine to avoid race with Stop
	server := m.httpServer
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error("HTTP server error", "error", err)
		}
	}()

	return nil
}

// stopHTTPServer stops the HTTP server gracefully
func (m *Manager) stopHTTPServer() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.httpServer == nil {
		return nil
	}

	logger := m.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("operation", "http-shutdown")

	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown failed",
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	logger.Debug("HTTP server shutdown completed",
		"duration_ms", time.Since(start).Milliseconds(),
	)

	m.httpServer = nil
	m.httpMux = nil
	return nil
}

// registerServiceHandlers registers HTTP handlers for all services that implement HTTPHandler
func (m *Manager) registerServiceHandlers() error {
	for name, service := range m.services {
		if handler, ok := service.(HTTPHandler); ok {
			// Convert service name to URL prefix (e.g., "component-manager" -> "/components")
			prefix := "/" + m.serviceNameToPrefix(name)
			handler.RegisterHTTPHandlers(prefix, m.httpMux)
		}
	}

	return nil
}

// registerOpenAPIEndpoints registers OpenAPI documentation endpoints
func (m *Manager) registerOpenAPIEndpoints() {
	m.httpMux.HandleFunc("/openapi.json", m.handleOpenAPISpec)

	if m.config.SwaggerUI {
		m.httpMux.HandleFunc("/docs", m.handleSwaggerUI)
	}
}

// handleOpenAPISpec serves the combined OpenAPI specification
func (m *Manager) handleOpenAPISpec(w http.ResponseWriter, _ *http.Request) {
	spec := m.generateOpenAPIDocument()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if err := json.NewEncoder(w).Encode(spec); err != nil {
		http.Error(w, "Failed to encode OpenAPI spec", http.StatusInternalServerError)
		return
	}
}

// handleSwaggerUI serves a simple Swagger UI
func (m *Manager) handleSwaggerUI(w http.ResponseWriter, _ *http.Request) {
	html := `<!DOCTYPE html>
<html>
<head>
    <title>LogStream API Documentation</title>
    <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@3.52.5/swagger-ui.css" />
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@3.52.5/swagger-ui-bundle.js"></script>
    <script>
        SwaggerUIBundle({
            url: '/openapi.json',
            dom_id: '#swagger-ui',
            presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.presets.standalone],
        });
    </script>
</body>
</html>`

	w.Header().Set("Content-Type", "text/html")
	_, _ = w.Write([]byte(html))
}

// generateOpenAPIDocument creates a combined OpenAPI document from all services
func (m *Manager) generateOpenAPIDocument() *OpenAPIDocument {
	doc := &OpenAPIDocument{
		OpenAPI: "3.0.0",
		Info:    m.config.ServerInfo,
		Servers: []ServerSpec{
			{
				URL:         fmt.Sprintf("http://localhost:%d", m.config.HTTPPort),
				Description: "Development server",
			},
		},
		Paths: make(map[string]PathSpec),
		Tags:  make([]TagSpec, 0),
	}

	for name, service := range m.services {
		if handler, ok := service.(HTTPHandler); ok {
			serviceSpec := handler.OpenAPISpec()
			if serviceSpec != nil {
				// Merge paths with service prefix
				prefix := "/" + m.serviceNameToPrefix(name)
				for path, pathSpec := range serviceSpec.Paths {
					fullPath := prefix + path
					doc.Paths[fullPath] = pathSpec
				}

				doc.Tags = append(doc.Tags, serviceSpec.Tags...)
			}
		}
	}

	return doc
}

// serviceNameToPrefix converts service name to URL prefix
func (m *Manager) serviceNameToPrefix(serviceName string) string {
	switch serviceName {
	case "component-manager":
		return "components"
	case "message-logger":
		return "message-logger"
	default:
		return strings.ReplaceAll(serviceName, "-", "")
	}
}

// registerSystemEndpoints registers system-wide health endpoints
func (m *Manager) registerSystemEndpoints() {
	m.httpMux.HandleFunc("/health", m.handleSystemHealth)
	m.httpMux.HandleFunc("/healthz", m.handleLiveness)
	m.httpMux.HandleFunc("/readyz", m.handleReadiness)

	m.httpMux.HandleFunc("/services", m.handleServiceList)
	m.httpMux.HandleFunc("/services/health", m.handleServicesHealth)
}

// handleSystemHealth returns aggregated system health
func (m *Manager) handleSystemHealth(w http.ResponseWriter, _ *http.Request) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var subStatuses []health.Status

	for _, service := range m.services {
		subStatuses = append(subStatuses, service.Health())
	}

	// NATS carries every event from input to output, so it counts
	// toward system health like a service.
	if m.natsClient != nil {
		natsStatus := m.natsClient.GetStatus()
		if natsStatus.Status == natsclient.StatusConnected {
			subStatuses = append(subStatuses, health.NewHealthy("nats",
				fmt.Sprintf("Connected (RTT: %v)", natsStatus.RTT)))
		} else {
			subStatuses = append(subStatuses, health.NewUnhealthy("nats",
				fmt.Sprintf("Disconnected: %s (failures: %d)",
					natsStatus.Status.String(), natsStatus.FailureCount)))
		}
	}

	systemHealth := health.Aggregate("system", subStatuses)

	w.Header().Set("Content-Type", "application/json")
	if systemHealth.IsUnhealthy() {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else if systemHealth.IsDegraded() {
		w.WriteHeader(http.StatusOK) // 200 but degraded in body
	}

	if err := json.NewEncoder(w).Encode(systemHealth); err != nil {
		m.logger.Error("Failed to encode system health response", "error", err)
	}
}

// handleLiveness is a simple liveness probe
func (m *Manager) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReadiness checks if all critical services are ready
func (m *Manager) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ready := true
	for _, service := range m.services {
		if service.Status() != StatusRunning || !service.IsHealthy() {
			ready = false
			break
		}
	}

	if ready {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("READY"))
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("NOT READY"))
	}
}

// handleServiceList returns a list of all registered services
func (m *Manager) handleServiceList(w http.ResponseWriter, _ *http.Request) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	services := make([]map[string]any, 0, len(m.services))
	for name, service := range m.services {
		services = append(services, map[string]any{
			"name":    name,
			"status":  service.Status().String(),
			"healthy": service.IsHealthy(),
		})
	}

	response := map[string]any{
		"services": services,
		"count":    len(services),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		m.logger.Error("Failed to encode services list", "error", err)
	}
}

// handleServicesHealth returns detailed health information for all services
func (m *Manager) handleServicesHealth(w http.ResponseWriter, _ *http.Request) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var serviceStatuses []health.Status
	for _, service := range m.services {
		serviceStatuses = append(serviceStatuses, service.Health())
	}

	response := struct {
		Overall  health.Status   `json:"overall"`
		Services []health.Status `json:"services"`
	}{
		Overall:  health.Aggregate("services", serviceStatuses),
		Services: serviceStatuses,
	}

	w.Header().Set("Content-Type", "application/json")
	if response.Overall.IsUnhealthy() {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		m.logger.Error("Failed to encode services health response", "error", err)
	}
}
