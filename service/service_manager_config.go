package service

import "fmt"

// ManagerConfig holds settings for the Manager's admin HTTP server.
// The manager is always on, so there is no Enabled field.
type ManagerConfig struct {
	HTTPPort   int      `json:"http_port"`
	SwaggerUI  bool     `json:"swagger_ui"`
	ServerInfo InfoSpec `json:"server_info"`
}

// Validate checks the admin server settings. ServerInfo fields may be
// empty; they get defaults when the OpenAPI document is built.
func (c ManagerConfig) Validate() error {
	if c.HTTPPort < 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	return nil
}
