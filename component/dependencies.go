package component

import (
	"log/slog"

	"github.com/c360/logstream/metric"
	"github.com/c360/logstream/natsclient"
	"github.com/c360/logstream/pkg/security"
	"github.com/c360/logstream/types"
)

// PlatformMeta provides platform identity to components.
// Type alias to avoid import cycles while maintaining compatibility.
type PlatformMeta = types.PlatformMeta

// Dependencies provides all external dependencies needed by components.
// Factories receive this struct rather than individual fields, so adding a
// platform dependency does not touch every factory signature.
type Dependencies struct {
	NATSClient      *natsclient.Client      // NATS client for messaging
	MetricsRegistry *metric.MetricsRegistry // Metrics registry for Prometheus (can be nil)
	Logger          *slog.Logger            // Structured logger (can be nil, defaults to slog.Default())
	Platform        PlatformMeta            // Platform identity (organization and platform)
	Security        security.Config         // Platform-wide security configuration
}

// GetLogger returns the configured logger or a default logger if none is provided
func (d *Dependencies) GetLogger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// GetLoggerWithComponent returns a logger configured with component context
func (d *Dependencies) GetLoggerWithComponent(componentName string) *slog.Logger {
	return d.GetLogger().With("component", componentName)
}
