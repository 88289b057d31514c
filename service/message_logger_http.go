package service

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

// Compile-time check that MessageLogger implements HTTPHandler
var _ HTTPHandler = (*MessageLogger)(nil)

// RegisterHTTPHandlers registers HTTP endpoints for the MessageLogger service
func (ml *MessageLogger) RegisterHTTPHandlers(prefix string, mux *http.ServeMux) {
	// Ensure prefix ends with /
	if !strings.HasSuffix(prefix, "/") {
		prefix = prefix + "/"
	}

	// Register handlers
	mux.HandleFunc(prefix+"entries", ml.handleGetEntries)
	mux.HandleFunc(prefix+"stats", ml.handleGetStats)
	mux.HandleFunc(prefix+"subjects", ml.handleGetSubjects)

	ml.logger.Info("MessageLogger HTTP handlers registered", "prefix", prefix)
}

// OpenAPISpec returns the OpenAPI specification for MessageLogger endpoints
func (ml *MessageLogger) OpenAPISpec() *OpenAPISpec {
	spec := NewOpenAPISpec()

	// Add tags
	spec.Tags = []TagSpec{
		{
			Name:        "MessageLogger",
			Description: "Message observation and debugging endpoints",
		},
	}

	// Add /entries endpoint
	spec.Paths["/entries"] = PathSpec{
		GET: &OperationSpec{
			Summary:     "Get recent message entries",
			Description: "Returns the most recent logged messages from the circular buffer",
			Tags:        []string{"MessageLogger"},
			Parameters: []ParameterSpec{
				{
					Name:        "limit",
					In:          "query",
					Description: "Maximum number of entries to return (default: 100, max: 10000)",
					Required:    false,
					Schema:      Schema{Type: "integer"},
				},
				{
					Name:        "subject",
					In:          "query",
					Description: "Filter by NATS subject pattern",
					Required:    false,
					Schema:      Schema{Type: "string"},
				},
				{
					Name:        "host",
					In:          "query",
					Description: "Filter by event source host",
					Required:    false,
					Schema:      Schema{Type: "string"},
				},
			},
			Responses: map[string]ResponseSpec{
				"200": {
					Description: "List of message entries",
					ContentType: "application/json",
				},
			},
		},
	}

	// Add /stats endpoint
	spec.Paths["/stats"] = PathSpec{
		GET: &OperationSpec{
			Summary:     "Get message statistics",
			Description: "Returns statistics about processed messages",
			Tags:        []string{"MessageLogger"},
			Responses: map[string]ResponseSpec{
				"200": {
					Description: "Message statistics",
					ContentType: "application/json",
				},
			},
		},
	}

	// Add /subjects endpoint
	spec.Paths["/subjects"] = PathSpec{
		GET: &OperationSpec{
			Summary:     "Get monitored subjects",
			Description: "Returns list of NATS subjects being monitored",
			Tags:        []string{"MessageLogger"},
			Responses: map[string]ResponseSpec{
				"200": {
					Description: "List of monitored subjects",
					ContentType: "application/json",
				},
			},
		},
	}

	return spec
}

// handleGetEntries returns recent message entries
func (ml *MessageLogger) handleGetEntries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Parse query parameters
	query := r.URL.Query()

	// Get limit parameter
	limit := 100
	if limitStr := query.Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
			if limit > 10000 {
				limit = 10000
			}
		}
	}

	subjectFilter := query.Get("subject")
	hostFilter := query.Get("host")

	entries := ml.GetLogEntries(limit)

	if subjectFilter != "" || hostFilter != "" {
		filtered := make([]MessageLogEntry, 0, len(entries))
		for _, entry := range entries {
			if subjectFilter != "" && !matchesPattern(entry.Subject, subjectFilter) {
				continue
			}
			if hostFilter != "" && entry.Host != hostFilter {
				continue
			}
			filtered = append(filtered, entry)
		}
		entries = filtered
	}

	// Return JSON response
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(entries); err != nil {
		ml.logger.Error("Failed to encode entries", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// handleGetStats returns message statistics
func (ml *MessageLogger) handleGetStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Calculate statistics
	stats := ml.GetStatistics()

	// Return JSON response
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		ml.logger.Error("Failed to encode stats", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// handleGetSubjects returns list of monitored subjects
func (ml *MessageLogger) handleGetSubjects(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Get current subjects
	subjects := ml.config.MonitorSubjects

	// Return JSON response
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(subjects); err != nil {
		ml.logger.Error("Failed to encode subjects", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// matchesPattern checks if a string matches a simple glob pattern
func matchesPattern(str, pattern string) bool {
	if pattern == "*" || pattern == "" {
		return true
	}

	// Simple pattern matching (supports * wildcard)
	if strings.Contains(pattern, "*") {
		// Convert pattern to simple prefix/suffix match
		if strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*") {
			// *substring*
			substr := strings.Trim(pattern, "*")
			return strings.Contains(str, substr)
		} else if strings.HasPrefix(pattern, "*") {
			// *suffix
			suffix := strings.TrimPrefix(pattern, "*")
			return strings.HasSuffix(str, suffix)
		} else if strings.HasSuffix(pattern, "*") {
			// prefix*
			prefix := strings.TrimSuffix(pattern, "*")
			return strings.HasPrefix(str, prefix)
		}
		// prefix*suffix
		parts := strings.Split(pattern, "*")
		if len(parts) == 2 {
			return strings.HasPrefix(str, parts[0]) && strings.HasSuffix(str, parts[1])
		}
	}

	// Exact match
	return str == pattern
}
