package service

import (
	"encoding/json"
	"log/slog"

	"github.com/c360/logstream/component"
	"github.com/c360/logstream/config"
	"github.com/c360/logstream/metric"
	"github.com/c360/logstream/natsclient"
	"github.com/c360/logstream/types"
)

// Dependencies provides the standard dependencies that all services receive.
// Services should use HTTP or NATS RPC for inter-service communication.
type Dependencies struct {
	NATSClient        *natsclient.Client
	MetricsRegistry   *metric.MetricsRegistry
	Logger            *slog.Logger
	Platform          types.PlatformMeta  // Platform identity stamped onto components
	Config            *config.SafeConfig  // Loaded platform configuration snapshot
	ComponentRegistry *component.Registry // Component registry for ComponentManager
	ServiceManager    *Manager            // Service manager for accessing other services
}

// Constructor defines the standard constructor signature for all services.
// The constructor receives raw JSON config and must handle its own parsing.
type Constructor func(rawConfig json.RawMessage, deps *Dependencies) (Service, error)
