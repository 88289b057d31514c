package service

import "net/http"

// HTTPHandler is an optional interface for services that expose admin
// HTTP endpoints through the Manager's server. Implementors mount their
// routes under the given prefix and describe them with an OpenAPI
// fragment so the merged document stays accurate.
type HTTPHandler interface {
	RegisterHTTPHandlers(prefix string, mux *http.ServeMux)
	OpenAPISpec() *OpenAPISpec
}

// OpenAPIDocument is the merged OpenAPI 3.0 document served by the
// Manager, combining the fragments of every running service.
type OpenAPIDocument struct {
	OpenAPI string              `json:"openapi"`
	Info    InfoSpec            `json:"info"`
	Servers []ServerSpec        `json:"servers"`
	Paths   map[string]PathSpec `json:"paths"`
	Tags    []TagSpec           `json:"tags,omitempty"`
}
