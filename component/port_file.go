package component

import "fmt"

// FilePort declares filesystem access, such as an archive output's
// target directory.
type FilePort struct {
	Path    string `json:"path"`
	Pattern string `json:"pattern,omitempty"`
}

// ResourceID returns a unique identifier for the file path.
func (f FilePort) ResourceID() string {
	return fmt.Sprintf("file:%s", f.Path)
}

// IsExclusive returns false; multiple components may read the same path.
func (f FilePort) IsExclusive() bool {
	return false
}

// Type returns the port type identifier.
func (f FilePort) Type() string {
	return "file"
}
