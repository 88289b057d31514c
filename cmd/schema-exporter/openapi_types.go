package main

// YAML wire types for the generated OpenAPI 3.0 document.

// OpenAPIDocument is the root of the generated document
type OpenAPIDocument struct {
	OpenAPI    string              `yaml:"openapi"`
	Info       InfoObject          `yaml:"info"`
	Servers    []ServerObject      `yaml:"servers"`
	Paths      map[string]PathItem `yaml:"paths"`
	Components ComponentsObject    `yaml:"components"`
	Tags       []TagObject         `yaml:"tags"`
}

// InfoObject carries API metadata
type InfoObject struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Version     string `yaml:"version"`
}

// ServerObject names an API server
type ServerObject struct {
	URL         string `yaml:"url"`
	Description string `yaml:"description"`
}

// ComponentsObject holds reusable schema objects
type ComponentsObject struct {
	Schemas map[string]interface{} `yaml:"schemas"`
}

// TagObject groups related operations
type TagObject struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// PathItem describes the operations available on a path
type PathItem struct {
	Get    *Operation `yaml:"get,omitempty"`
	Post   *Operation `yaml:"post,omitempty"`
	Put    *Operation `yaml:"put,omitempty"`
	Delete *Operation `yaml:"delete,omitempty"`
}

// Operation describes a single API operation
type Operation struct {
	Summary     string              `yaml:"summary"`
	Description string              `yaml:"description,omitempty"`
	Tags        []string            `yaml:"tags,omitempty"`
	Parameters  []Parameter         `yaml:"parameters,omitempty"`
	Responses   map[string]Response `yaml:"responses"`
}

// Parameter describes an operation parameter
type Parameter struct {
	Name        string    `yaml:"name"`
	In          string    `yaml:"in"` // "query", "path", "header"
	Required    bool      `yaml:"required,omitempty"`
	Description string    `yaml:"description,omitempty"`
	Schema      SchemaRef `yaml:"schema"`
}

// Response describes an operation response
type Response struct {
	Description string               `yaml:"description"`
	Content     map[string]MediaType `yaml:"content,omitempty"`
}

// MediaType pairs a media type with its schema
type MediaType struct {
	Schema SchemaRef `yaml:"schema"`
}

// SchemaRef references or inlines a schema
type SchemaRef struct {
	Ref   string      `yaml:"$ref,omitempty"`
	Type  string      `yaml:"type,omitempty"`
	Items *SchemaRef  `yaml:"items,omitempty"`
	OneOf []SchemaRef `yaml:"oneOf,omitempty"`
}
