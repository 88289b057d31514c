package service

// ComponentManagerConfig configures the ComponentManager service
// Simple struct - no UnmarshalJSON, no Enabled field
type ComponentManagerConfig struct {
	EnabledComponents []string `json:"enabled_components"` // Allowlist of component instances to create
}

// Validate checks if the configuration is valid
func (c ComponentManagerConfig) Validate() error {
	// Component names are validated when components are created
	// EnabledComponents can be empty (all configured components enabled)
	return nil
}
