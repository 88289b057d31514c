// Package component provides schema validation and helper functions
package component

import (
	"fmt"
	"sort"
)

// ValidationError represents a validation error for a specific
// configuration field, structured so it can be mapped to a form field
// in the UI.
//
// Error codes are standardized across frontend and backend:
//   - "required": Field is required but missing
//   - "min": Numeric value below minimum threshold
//   - "max": Numeric value above maximum threshold
//   - "enum": Value not in allowed enum values
//   - "type": Value doesn't match expected type (string, int, bool, etc.)
//   - "pattern": String doesn't match required pattern (future use)
type ValidationError struct {
	Field   string `json:"field"`   // Name of the field that failed validation
	Message string `json:"message"` // Human-readable error message
	Code    string `json:"code"`    // Machine-readable error code (see above)
}

// ValidateConfig validates a configuration map against a ConfigSchema,
// checking required fields, type constraints, min/max bounds, and enum
// values.
//
// Validation is lenient: unknown fields are allowed so configs survive
// schema evolution. Only explicitly defined properties are checked.
//
// Example:
//
//	schema := component.ConfigSchema{
//	    Properties: map[string]component.PropertySchema{
//	        "port": {
//	            Type:     "int",
//	            Minimum:  ptrInt(1),
//	            Maximum:  ptrInt(65535),
//	            Category: "basic",
//	        },
//	    },
//	    Required: []string{"port"},
//	}
//
//	errors := component.ValidateConfig(map[string]any{"port": 99999}, schema)
//
// An empty result means the configuration is valid.
func ValidateConfig(config map[string]any, schema ConfigSchema) []ValidationError {
	var errors []ValidationError

	for _, requiredField := range schema.Required {
		if _, exists := config[requiredField]; !exists {
			errors = append(errors, ValidationError{
				Field:   requiredField,
				Message: fmt.Sprintf("Field %q is required", requiredField),
				Code:    "required",
			})
		}
	}

	for fieldName, value := range config {
		propSchema, exists := schema.Properties[fieldName]
		if !exists {
			// Unknown fields are allowed (lenient validation)
			continue
		}

		if err := validateType(fieldName, value, propSchema); err != nil {
			errors = append(errors, *err)
			continue // Skip further validation if type is wrong
		}

		if len(propSchema.Enum) > 0 {
			if err := validateEnum(fieldName, value, propSchema.Enum); err != nil {
				errors = append(errors, *err)
			}
		}

		if propSchema.Type == "int" || propSchema.Type == "float" {
			if propSchema.Minimum != nil {
				if err := validateMin(fieldName, value, *propSchema.Minimum); err != nil {
					errors = append(errors, *err)
				}
			}
			if propSchema.Maximum != nil {
				if err := validateMax(fieldName, value, *propSchema.Maximum); err != nil {
					errors = append(errors, *err)
				}
			}
		}
	}

	return errors
}

// validateType checks if the value matches the expected type
func validateType(fieldName string, value any, propSchema PropertySchema) *ValidationError {
	switch propSchema.Type {
	case "string":
		if _, ok := value.(string); !ok {
			return &ValidationError{
				Field:   fieldName,
				Message: fmt.Sprintf("Field %q must be a string", fieldName),
				Code:    "type",
			}
		}
	case "int":
		// Accept both int and float64 (JSON numbers)
		switch value.(type) {
		case int, int32, int64, float64:
		default:
			return &ValidationError{
				Field:   fieldName,
				Message: fmt.Sprintf("Field %q must be an integer", fieldName),
				Code:    "type",
			}
		}
	case "bool":
		if _, ok := value.(bool); !ok {
			return &ValidationError{
				Field:   fieldName,
				Message: fmt.Sprintf("Field %q must be a boolean", fieldName),
				Code:    "type",
			}
		}
	case "float":
		switch value.(type) {
		case int, int32, int64, float32, float64:
		default:
			return &ValidationError{
				Field:   fieldName,
				Message: fmt.Sprintf("Field %q must be a number", fieldName),
				Code:    "type",
			}
		}
	}
	return nil
}

// validateEnum checks if the value is in the allowed enum values
func validateEnum(fieldName string, value any, enumValues []string) *ValidationError {
	strValue, ok := value.(string)
	if !ok {
		return &ValidationError{
			Field:   fieldName,
			Message: fmt.Sprintf("Field %q must be a string for enum validation", fieldName),
			Code:    "type",
		}
	}

	for _, allowed := range enumValues {
		if strValue == allowed {
			return nil
		}
	}

	return &ValidationError{
		Field:   fieldName,
		Message: fmt.Sprintf("Field %q must be one of: %v", fieldName, enumValues),
		Code:    "enum",
	}
}

// validateMin checks if numeric value meets minimum
func validateMin(fieldName string, value any, min int) *ValidationError {
	numValue, err := asFloat(fieldName, value, "min")
	if err != nil {
		return err
	}

	if numValue < float64(min) {
		return &ValidationError{
			Field:   fieldName,
			Message: fmt.Sprintf("Field %q must be >= %d", fieldName, min),
			Code:    "min",
		}
	}
	return nil
}

// validateMax checks if numeric value meets maximum
func validateMax(fieldName string, value any, max int) *ValidationError {
	numValue, err := asFloat(fieldName, value, "max")
	if err != nil {
		return err
	}

	if numValue > float64(max) {
		return &ValidationError{
			Field:   fieldName,
			Message: fmt.Sprintf("Field %q must be <= %d", fieldName, max),
			Code:    "max",
		}
	}
	return nil
}

// asFloat normalizes numeric config values for bounds checks.
func asFloat(fieldName string, value any, check string) (float64, *ValidationError) {
	switch v := value.(type) {
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	default:
		return 0, &ValidationError{
			Field:   fieldName,
			Message: fmt.Sprintf("Field %q must be numeric for %s validation", fieldName, check),
			Code:    "type",
		}
	}
}

// GetPropertyValue safely extracts a property value from a
// configuration map. Nil-safe: a nil config returns (nil, false).
func GetPropertyValue(config map[string]any, key string) (any, bool) {
	if config == nil {
		return nil, false
	}
	value, exists := config[key]
	return value, exists
}

// GetProperties filters schema properties by category for UI
// organization. Components categorize properties as "basic" (shown by
// default) or "advanced" (hidden in a collapsible section); properties
// without an explicit Category default to "advanced". An empty category
// returns all properties.
//
// Example:
//
//	schema := component.ConfigSchema{
//	    Properties: map[string]component.PropertySchema{
//	        "port":        {Type: "int", Category: "basic"},
//	        "buffer_size": {Type: "int", Category: "advanced"},
//	        "remap":       {Type: "bool"}, // Defaults to "advanced"
//	    },
//	}
//
//	basicProps := component.GetProperties(schema, "basic")
//	// Returns: map["port": {...}]
func GetProperties(schema ConfigSchema, category string) map[string]PropertySchema {
	filtered := make(map[string]PropertySchema)

	for name, prop := range schema.Properties {
		propCategory := prop.Category
		if propCategory == "" {
			propCategory = "advanced"
		}

		if category == "" || propCategory == category {
			filtered[name] = prop
		}
	}

	return filtered
}

// IsComplexType returns true if a property type requires complex
// rendering. Complex types (object, array) cannot be rendered as simple
// form inputs; the UI falls back to a JSON editor for them.
func IsComplexType(propType string) bool {
	return propType == "object" || propType == "array"
}

// SortedPropertyNames returns property names in UI display order:
// "basic" properties first, then "advanced", alphabetical within each
// category. Properties without an explicit Category default to
// "advanced".
func SortedPropertyNames(schema ConfigSchema) []string {
	type propertyWithName struct {
		name     string
		category string
	}

	var props []propertyWithName
	for name, prop := range schema.Properties {
		category := prop.Category
		if category == "" {
			category = "advanced"
		}
		props = append(props, propertyWithName{
			name:     name,
			category: category,
		})
	}

	sort.Slice(props, func(i, j int) bool {
		if props[i].category != props[j].category {
			return props[i].category == "basic"
		}
		return props[i].name < props[j].name
	})

	names := make([]string, len(props))
	for i, prop := range props {
		names[i] = prop.name
	}

	return names
}
