package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/c360/logstream/component"
)

// ComponentRegistry defines the interface needed for schema validation
// This allows dependency injection and testing
type ComponentRegistry interface {
	GetComponentSchema(componentType string) (component.ConfigSchema, error)
}

// SchemaValidator validates component configurations against their
// registered schemas. Used by the admin API before applying config
// updates to running components.
type SchemaValidator struct {
	logger *slog.Logger
}

// NewSchemaValidator creates a schema validator. A nil logger falls
// back to slog.Default().
func NewSchemaValidator(logger *slog.Logger) *SchemaValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &SchemaValidator{logger: logger}
}

// ValidateWithSchema validates component configuration against its schema
// Returns validation errors if the config doesn't meet schema requirements
func (v *SchemaValidator) ValidateWithSchema(
	ctx context.Context,
	registry ComponentRegistry,
	componentType string,
	config map[string]any,
) []component.ValidationError {
	// Check for cancellation
	select {
	case <-ctx.Done():
		return []component.ValidationError{{Field: "context", Message: "validation cancelled"}}
	default:
	}

	if registry == nil {
		v.logger.Warn("Registry is nil, skipping schema validation", "component_type", componentType)
		return nil
	}

	// Get the component schema directly from registry
	schema, err := registry.GetComponentSchema(componentType)
	if err != nil {
		// Component type not found or error retrieving schema
		// Log warning but don't fail validation (backward compatibility)
		v.logger.Warn("Failed to get component schema for validation",
			"component_type", componentType,
			"error", err)
		return nil
	}

	// If schema is empty (no properties defined), skip validation
	if len(schema.Properties) == 0 {
		v.logger.Debug("Component has no schema defined, skipping validation",
			"component_type", componentType)
		return nil
	}

	// Validate the config against the schema
	validationErrors := component.ValidateConfig(config, schema)

	if len(validationErrors) > 0 {
		v.logger.Info("Configuration validation failed",
			"component_type", componentType,
			"error_count", len(validationErrors))
	}

	return validationErrors
}

// ValidateComponentConfig validates a raw JSON component configuration
// This is a convenience method that handles JSON unmarshaling
func (v *SchemaValidator) ValidateComponentConfig(
	ctx context.Context,
	registry ComponentRegistry,
	componentType string,
	configJSON json.RawMessage,
) []component.ValidationError {
	// Parse the config JSON into a map
	var config map[string]any
	if err := json.Unmarshal(configJSON, &config); err != nil {
		// Return a validation error for invalid JSON
		return []component.ValidationError{
			{
				Field:   "",
				Message: fmt.Sprintf("Invalid JSON configuration: %v", err),
				Code:    "type",
			},
		}
	}

	return v.ValidateWithSchema(ctx, registry, componentType, config)
}
