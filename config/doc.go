// Package config provides configuration management for LogStream applications.
//
// This package handles loading and validation of application configuration
// from JSON files and environment variables.
//
// # Core Components
//
// Config: Main configuration structure containing platform settings, NATS
// connection details, service configurations, and component definitions.
//
// SafeConfig: Thread-safe wrapper using RWMutex and deep cloning to prevent
// concurrent access issues and accidental mutations.
//
// Loader: Loads configuration with layer merging (base + overrides) and
// environment variable substitution for flexible deployment scenarios.
//
// SchemaValidator: Validates component configuration payloads against the
// schema each component factory declares.
//
// # Basic Usage
//
// Loading configuration from files with layer merging:
//
//	loader := config.NewLoader()
//	loader.AddLayer("config/base.json")
//	loader.AddLayer("config/production.json") // Overrides base
//	loader.EnableValidation(true)
//
//	cfg, err := loader.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// # Thread-Safe Access
//
// SafeConfig ensures thread-safe access to configuration:
//
//	safeConfig := config.NewSafeConfig(cfg)
//
//	// Read config (deep copy returned, safe to use)
//	current := safeConfig.Get()
//
//	// Update config atomically (validated before the swap)
//	current.Platform.Environment = "prod"
//	if err := safeConfig.Update(current); err != nil {
//		log.Fatal(err)
//	}
//
// # Environment Variable Overrides
//
// Configuration values can be overridden using environment variables:
//
//	# Override platform ID
//	export LOGSTREAM_PLATFORM_ID="prod-cluster-01"
//
//	# Override NATS URLs (comma-separated)
//	export LOGSTREAM_NATS_URLS="nats://server1:4222,nats://server2:4222"
//
// # Layer Merging
//
// Configuration layers are merged with last-wins semantics:
//
//	base.json:
//	  {"platform": {"id": "dev", "log_level": "debug"}}
//
//	production.json:
//	  {"platform": {"id": "prod"}}
//
//	Result:
//	  {"platform": {"id": "prod", "log_level": "debug"}}
//
// # Security
//
// The package includes security validation:
//   - File size limits (10MB max) to prevent memory exhaustion
//   - JSON depth validation (100 levels max) to prevent DoS attacks
//   - Path validation to prevent directory traversal
//   - Regular file checks (no symlinks or device files)
//
// # Configuration Structure
//
// The main Config struct contains:
//
//	type Config struct {
//	    Platform   PlatformConfig             // Platform metadata
//	    NATS       NATSConfig                 // Message bus connection
//	    Services   map[string]ServiceConfig   // Service configurations
//	    Components map[string]ComponentConfig // Component definitions
//	}
package config
