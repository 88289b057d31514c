// Package service provides service lifecycle management, HTTP server coordination,
// and component orchestration for the LogStream platform.
//
// The service package implements a layered service architecture with clearly
// separated responsibilities across multiple service types:
//
// # Core Service Types
//
// BaseService: Foundation for all services with standardized lifecycle management:
//   - Lifecycle states: Stopped → Starting → Running → Stopping
//   - Health monitoring with periodic checks
//   - Metrics integration with CoreMetrics registry
//   - Context-based cancellation and graceful shutdown
//   - Dependency injection through Dependencies
//
// Manager: Central orchestration of HTTP server and service lifecycle:
//   - HTTP server management with graceful shutdown
//   - Service registration and dependency injection
//   - Two-phase HTTP initialization (system endpoints → service endpoints)
//   - Health aggregation across all services
//   - OpenAPI documentation aggregation
//
// ComponentManager: Dynamic component lifecycle management:
//   - Component instantiation from registry factories
//   - Creation of configured inputs and outputs at startup
//   - Runtime configuration updates via the admin HTTP API
//   - Flow graph validation with connectivity analysis
//   - Health monitoring of managed components
//
// MessageLogger: Event bus observability:
//   - Subscribes to ingest subjects (input.>) and keeps a ring buffer of
//     recent events for debugging
//   - HTTP API for querying recent entries by subject, host, and level
//
// # Service Patterns
//
// All services follow standardized patterns:
//
// Constructor Pattern with Dependency Injection:
//
//	type MyService struct {
//	    *BaseService
//	    // service-specific fields
//	}
//
//	func NewMyService(rawConfig json.RawMessage, deps *Dependencies) (Service, error) {
//	    var cfg MyConfig
//	    if len(rawConfig) > 0 {
//	        if err := json.Unmarshal(rawConfig, &cfg); err != nil {
//	            return nil, fmt.Errorf("parse my-service config: %w", err)
//	        }
//	    }
//	    base := NewBaseServiceWithOptions("my-service", nil, WithLogger(deps.Logger))
//	    return &MyService{BaseService: base, config: cfg}, nil
//	}
//
// Lifecycle Implementation:
//
//	func (s *MyService) Start(ctx context.Context) error {
//	    // Start background operations
//	    return s.BaseService.Start(ctx)
//	}
//
//	func (s *MyService) Stop(timeout time.Duration) error {
//	    // Graceful shutdown
//	    return s.BaseService.Stop(timeout)
//	}
//
// HTTP Handler Integration:
//
//	func (s *MyService) RegisterHTTPHandlers(mux *http.ServeMux) {
//	    mux.HandleFunc("/api/v1/myservice/", s.handleRequest)
//	}
//
//	func (s *MyService) OpenAPISpec() map[string]any {
//	    return map[string]any{
//	        "paths": map[string]any{
//	            "/api/v1/myservice/": map[string]any{
//	                "get": map[string]any{
//	                    "summary": "My service endpoint",
//	                },
//	            },
//	        },
//	    }
//	}
//
// # Service Registration
//
// Services are registered with a Registry using constructor functions and
// created by the Manager from the services section of the loaded config:
//
//	registry := service.NewServiceRegistry()
//	registry.Register("my-service", NewMyService)
//
//	manager := service.NewServiceManager(registry)
//	if err := manager.ConfigureFromServices(cfg.Services, deps); err != nil {
//	    log.Fatal(err)
//	}
//	if err := manager.StartAll(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// The component-manager service is mandatory: StartAll creates it even when
// the configuration does not mention it.
//
// # HTTP Server Management
//
// Manager coordinates HTTP server lifecycle with two-phase initialization:
//
//  1. Early Phase (initializeHTTPInfrastructure):
//     - System endpoints registered: /health, /livez, /readyz
//     - HTTP server created but not started
//
//  2. Late Phase (completeHTTPSetup):
//     - Service endpoints registered after services start
//     - OpenAPI documentation aggregated
//     - HTTP server starts listening
//
// This prevents race conditions and ensures system endpoints are available
// before service-specific endpoints.
//
// # Health Monitoring
//
// Services implement health checks through BaseService:
//
//	// Override health check logic
//	func (s *MyService) healthCheck() error {
//	    if !s.isHealthy {
//	        return fmt.Errorf("service unhealthy: %v", s.lastError)
//	    }
//	    return nil
//	}
//
// Health status is aggregated by Manager:
//   - /health - Returns 200 if any service is healthy
//   - /readyz - Returns 200 if all services are healthy
//
// # Metrics Integration
//
// Services automatically register metrics with CoreMetrics:
//   - logstream_service_status - Current service status (gauge)
//   - logstream_messages_received_total - Message counter
//   - logstream_messages_processed_total - Processing counter
//   - logstream_health_checks_total - Health check counter
//
// # Component Management
//
// ComponentManager creates components declared in the loaded configuration at
// construction time and supports runtime reconfiguration:
//
//	cmService, err := service.NewComponentManager(rawConfig, deps)
//
//	// Runtime configuration updates (admin HTTP API)
//	err = cm.ApplyComponentConfig(ctx, "gelfudp-main", componentConfig)
//
//	// Removal
//	err = cm.DeleteComponent(ctx, "gelfudp-main")
//
//	// Health monitoring
//	health := cm.GetComponentHealth()
//
// # Error Handling
//
// Services follow LogStream error handling patterns:
//   - Configuration errors: Return during construction
//   - Runtime errors: Log and update health status
//   - Shutdown errors: Log but continue graceful shutdown
//
// Use project error wrapping for context:
//
//	import "github.com/c360/logstream/errors"
//
//	if err := validateConfig(cfg); err != nil {
//	    return errors.WrapInvalid(err, "my-service", "NewMyService", "validate config")
//	}
//
// # Graceful Shutdown
//
// Manager coordinates graceful shutdown in reverse order:
//  1. Stop services in reverse registration order
//  2. Shutdown HTTP server with timeout
//  3. Close remaining connections
//
// Example:
//
//	if err := manager.StopAll(30 * time.Second); err != nil {
//	    log.Printf("Graceful shutdown incomplete: %v", err)
//	}
//
// # Testing
//
// The package provides ServiceSuite for integration testing with testcontainers:
//
//	func TestMyService(t *testing.T) {
//	    suite := service.NewServiceSuite(t)
//	    defer suite.Cleanup()
//
//	    // Suite provides NATS client, loaded config, etc.
//	    svc, err := NewMyService(rawConfig, suite.Deps())
//	    require.NoError(t, err)
//	}
//
// # Security Considerations
//
// The service HTTP APIs are designed for internal edge deployment:
//   - No built-in authentication (add reverse proxy for production)
//   - No rate limiting (implement at gateway level)
//   - Path traversal protection on component endpoints
//   - Input validation on all HTTP handlers
//
// For production deployments, add external security layers:
//   - Reverse proxy with authentication (nginx, Traefik)
//   - Network policies to restrict access
//   - TLS termination at gateway
//   - Rate limiting at gateway level
package service
