package service

// OpenAPISpec is one service's fragment of the merged OpenAPI document:
// the paths it mounts, plus any shared components and tags.
type OpenAPISpec struct {
	Paths      map[string]PathSpec `json:"paths"`
	Components map[string]any      `json:"components,omitempty"`
	Tags       []TagSpec           `json:"tags,omitempty"`
}

// PathSpec holds the operations mounted at a single path.
type PathSpec struct {
	GET    *OperationSpec `json:"get,omitempty"`
	POST   *OperationSpec `json:"post,omitempty"`
	PUT    *OperationSpec `json:"put,omitempty"`
	DELETE *OperationSpec `json:"delete,omitempty"`
}

// OperationSpec describes a single HTTP operation.
type OperationSpec struct {
	Summary     string                  `json:"summary"`
	Description string                  `json:"description,omitempty"`
	Parameters  []ParameterSpec         `json:"parameters,omitempty"`
	Responses   map[string]ResponseSpec `json:"responses"`
	Tags        []string                `json:"tags,omitempty"`
}

// ParameterSpec describes an operation parameter.
type ParameterSpec struct {
	Name        string `json:"name"`
	In          string `json:"in"` // "query", "path", "header"
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
	Schema      Schema `json:"schema,omitempty"`
}

// ResponseSpec describes an operation response.
type ResponseSpec struct {
	Description string `json:"description"`
	ContentType string `json:"content_type,omitempty"`
}

// Schema describes a parameter or response schema.
type Schema struct {
	Type   string `json:"type"`
	Format string `json:"format,omitempty"`
}

// InfoSpec carries API metadata for the document header.
type InfoSpec struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

// ServerSpec names an API server in the document.
type ServerSpec struct {
	URL         string `json:"url"`
	Description string `json:"description"`
}

// TagSpec groups related operations in the document.
type TagSpec struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// NewOpenAPISpec returns an empty fragment ready for AddPath/AddTag.
func NewOpenAPISpec() *OpenAPISpec {
	return &OpenAPISpec{
		Paths:      make(map[string]PathSpec),
		Components: make(map[string]any),
		Tags:       make([]TagSpec, 0),
	}
}

// AddPath registers the operations served at path.
func (spec *OpenAPISpec) AddPath(path string, pathSpec PathSpec) {
	spec.Paths[path] = pathSpec
}

// AddTag adds a grouping tag to the fragment.
func (spec *OpenAPISpec) AddTag(name, description string) {
	spec.Tags = append(spec.Tags, TagSpec{
		Name:        name,
		Description: description,
	})
}
