// Package componentregistry provides component registration for the LogStream platform.
// It wires every built-in input and output factory into a component.Registry so the
// component manager and the schema exporter see the same catalog.
package componentregistry

import (
	"errors"

	"github.com/c360/logstream/component"
	pkgerrors "github.com/c360/logstream/errors"
	"github.com/c360/logstream/input/gelfhttp"
	"github.com/c360/logstream/input/gelfudp"
	"github.com/c360/logstream/output/file"
	"github.com/c360/logstream/output/httppost"
	"github.com/c360/logstream/output/opensearch"
	"github.com/c360/logstream/output/websocket"
)

// Register registers all LogStream components with the provided registry.
//
// Inputs (network → event pipeline):
//   - GELF UDP input (chunked datagram listener)
//   - GELF HTTP input (POST collector)
//
// Outputs (event pipeline → sinks):
//   - File output (NDJSON archive with rotation)
//   - OpenSearch output (bulk indexing)
//   - HTTP POST output (webhooks)
//   - WebSocket output (live tail)
func Register(registry *component.Registry) error {
	// Nil registry is a programming error (fatal), not invalid input
	if registry == nil {
		return pkgerrors.WrapFatal(
			errors.New("registry cannot be nil"),
			"ComponentRegistry", "Register", "registry validation")
	}

	// Inputs
	if err := gelfudp.Register(registry); err != nil {
		return pkgerrors.WrapInvalid(err, "ComponentRegistry", "Register", "GELF UDP input component registration")
	}

	if err := gelfhttp.Register(registry); err != nil {
		return pkgerrors.WrapInvalid(err, "ComponentRegistry", "Register", "GELF HTTP input component registration")
	}

	// Outputs
	if err := file.Register(registry); err != nil {
		return pkgerrors.WrapInvalid(err, "ComponentRegistry", "Register", "File output component registration")
	}

	if err := opensearch.Register(registry); err != nil {
		return pkgerrors.WrapInvalid(err, "ComponentRegistry", "Register", "OpenSearch output component registration")
	}

	if err := httppost.Register(registry); err != nil {
		return pkgerrors.WrapInvalid(err, "ComponentRegistry", "Register", "HTTP POST output component registration")
	}

	if err := websocket.Register(registry); err != nil {
		return pkgerrors.WrapInvalid(err, "ComponentRegistry", "Register", "WebSocket output component registration")
	}

	return nil
}
