// Package flowgraph provides flow graph analysis and validation for component connections.
package flowgraph

import (
	"fmt"
	"strings"

	"github.com/c360/logstream/component"
)

// FlowGraph represents a directed graph of component connections
type FlowGraph struct {
	nodes map[string]*ComponentNode // componentName -> node
	edges []FlowEdge                // all connections unified
}

// ComponentNode represents a component in the flow graph
type ComponentNode struct {
	ComponentName string
	Component     component.Discoverable
	InputPorts    []PortInfo
	OutputPorts   []PortInfo
}

// PortInfo contains port metadata for graph analysis
type PortInfo struct {
	Name         string
	Direction    component.Direction
	ConnectionID string // Subject, network address, or file path
	Pattern      InteractionPattern
	Required     bool // Whether this port is required for the component to function
}

// FlowEdge represents a connection between two component ports
type FlowEdge struct {
	From         ComponentPortRef   `json:"from"`
	To           ComponentPortRef   `json:"to"`
	Pattern      InteractionPattern `json:"pattern"`
	ConnectionID string             `json:"connection_id"` // Subject the edge flows over
}

// ComponentPortRef references a specific port on a component
type ComponentPortRef struct {
	ComponentName string `json:"component_name"`
	PortName      string `json:"port_name"`
}

// InteractionPattern defines the type of interaction between components
type InteractionPattern string

const (
	// PatternStream represents NATSPort (pub/sub) interactions
	PatternStream InteractionPattern = "stream"
	// PatternNetwork represents NetworkPort (external socket) interactions
	PatternNetwork InteractionPattern = "network"
	// PatternFile represents FilePort (filesystem) interactions
	PatternFile InteractionPattern = "file"
)

// FlowAnalysisResult contains the results of connectivity analysis
type FlowAnalysisResult struct {
	ConnectedComponents [][]string         `json:"connected_components"`
	ConnectedEdges      []FlowEdge         `json:"connected_edges"`
	DisconnectedNodes   []DisconnectedNode `json:"disconnected_nodes"`
	OrphanedPorts       []OrphanedPort     `json:"orphaned_ports"`
	ValidationStatus    string             `json:"validation_status"`
}

// DisconnectedNode represents a component with no connections
type DisconnectedNode struct {
	ComponentName string   `json:"component_name"`
	Issue         string   `json:"issue"`
	Suggestions   []string `json:"suggestions,omitempty"`
}

// OrphanedPort represents a port with no connections
type OrphanedPort struct {
	ComponentName string              `json:"component_name"`
	PortName      string              `json:"port_name"`
	Direction     component.Direction `json:"direction"`
	ConnectionID  string              `json:"connection_id"`
	Pattern       InteractionPattern  `json:"pattern"`
	Issue         string              `json:"issue"`
	Required      bool                `json:"required"`
}

// NewFlowGraph creates a new empty FlowGraph
func NewFlowGraph() *FlowGraph {
	return &FlowGraph{
		nodes: make(map[string]*ComponentNode),
		edges: make([]FlowEdge, 0),
	}
}

// GetNodes returns a deep copy of component nodes to prevent external modification
func (g *FlowGraph) GetNodes() map[string]*ComponentNode {
	result := make(map[string]*ComponentNode, len(g.nodes))
	for k, v := range g.nodes {
		// Deep copy the ComponentNode
		nodeCopy := &ComponentNode{
			ComponentName: v.ComponentName,
			Component:     v.Component, // Interface reference - safe to share (read-only)
			// Deep copy port slices
			InputPorts:  make([]PortInfo, len(v.InputPorts)),
			OutputPorts: make([]PortInfo, len(v.OutputPorts)),
		}

		// Copy port info
		copy(nodeCopy.InputPorts, v.InputPorts)
		copy(nodeCopy.OutputPorts, v.OutputPorts)

		result[k] = nodeCopy
	}
	return result
}

// GetEdges returns the edges in the graph
func (g *FlowGraph) GetEdges() []FlowEdge {
	// Return a copy to prevent external modification
	result := make([]FlowEdge, len(g.edges))
	copy(result, g.edges)
	return result
}

// AddComponentNode adds a component as a node in the graph
func (g *FlowGraph) AddComponentNode(name string, comp component.Discoverable) error {
	if name == "" {
		return fmt.Errorf("component name cannot be empty")
	}
	if comp == nil {
		return fmt.Errorf("component cannot be nil")
	}
	if _, exists := g.nodes[name]; exists {
		return fmt.Errorf("component %s already exists in graph", name)
	}

	node := &ComponentNode{
		ComponentName: name,
		Component:     comp,
		InputPorts:    g.extractPortInfo(comp.InputPorts()),
		OutputPorts:   g.extractPortInfo(comp.OutputPorts()),
	}

	g.nodes[name] = node
	return nil
}

// extractPortInfo converts component ports to PortInfo for graph analysis
func (g *FlowGraph) extractPortInfo(ports []component.Port) []PortInfo {
	result := make([]PortInfo, 0, len(ports))

	for _, port := range ports {
		portInfo := PortInfo{
			Name:      port.Name,
			Direction: port.Direction,
			Pattern:   g.classifyInteractionPattern(port.Config),
			Required:  port.Required,
		}

		// Extract connection ID based on port type
		portInfo.ConnectionID = g.extractConnectionID(port.Config)

		result = append(result, portInfo)
	}

	return result
}

// classifyInteractionPattern determines the interaction pattern using type switches
func (g *FlowGraph) classifyInteractionPattern(portConfig component.Portable) InteractionPattern {
	switch portConfig.(type) {
	case component.NATSPort:
		return PatternStream
	case component.NetworkPort:
		return PatternNetwork
	case component.FilePort:
		return PatternFile
	default:
		return PatternStream // Safe default
	}
}

// extractConnectionID gets the connection identifier from port config
func (g *FlowGraph) extractConnectionID(portConfig component.Portable) string {
	if portConfig == nil {
		return "nil_port_config"
	}

	switch config := portConfig.(type) {
	case component.NATSPort:
		if config.Subject == "" {
			return "nats_missing_subject"
		}
		return config.Subject
	case component.NetworkPort:
		if config.Host == "" || config.Port == 0 {
			return fmt.Sprintf("network_incomplete_%s_%d", config.Host, config.Port)
		}
		return fmt.Sprintf("%s:%s:%d", config.Protocol, config.Host, config.Port)
	case component.FilePort:
		// Use path as connection identifier
		if config.Path != "" {
			return config.Path
		}
		return "file_unknown"
	default:
		// Log warning for unknown types (better than silent failure)
		return fmt.Sprintf("unknown_type_%T", config)
	}
}

// ConnectComponentsByPatterns builds edges by matching connection patterns
func (g *FlowGraph) ConnectComponentsByPatterns() error {
	// Clear existing edges
	g.edges = g.edges[:0]

	// Build connection maps by pattern and connection ID
	publishers := g.buildPublisherMap()   // Output ports
	subscribers := g.buildSubscriberMap() // Input ports

	var warnings []string

	// Stream ports carry messages between components. Network and file
	// ports are external boundaries and create no internal edges.
	g.connectStreamPorts(publishers[PatternStream], subscribers[PatternStream])

	// Validate network ports for conflicts
	conflicts := g.validateNetworkPorts(publishers[PatternNetwork], subscribers[PatternNetwork])
	warnings = append(warnings, conflicts...)

	// Return error if there are critical warnings
	if len(warnings) > 0 {
		return fmt.Errorf("flow graph validation warnings: %v", warnings)
	}

	return nil
}

// buildPublisherMap creates a map of connection IDs to output ports by pattern
func (g *FlowGraph) buildPublisherMap() map[InteractionPattern]map[string][]ComponentPortRef {
	publishers := make(map[InteractionPattern]map[string][]ComponentPortRef)

	for componentName, node := range g.nodes {
		for _, port := range node.OutputPorts {
			if publishers[port.Pattern] == nil {
				publishers[port.Pattern] = make(map[string][]ComponentPortRef)
			}

			portRef := ComponentPortRef{
				ComponentName: componentName,
				PortName:      port.Name,
			}

			publishers[port.Pattern][port.ConnectionID] = append(
				publishers[port.Pattern][port.ConnectionID],
				portRef,
			)
		}
	}

	return publishers
}

// buildSubscriberMap creates a map of connection IDs to input ports by pattern
func (g *FlowGraph) buildSubscriberMap() map[InteractionPattern]map[string][]ComponentPortRef {
	subscribers := make(map[InteractionPattern]map[string][]ComponentPortRef)

	for componentName, node := range g.nodes {
		for _, port := range node.InputPorts {
			if subscribers[port.Pattern] == nil {
				subscribers[port.Pattern] = make(map[string][]ComponentPortRef)
			}

			portRef := ComponentPortRef{
				ComponentName: componentName,
				PortName:      port.Name,
			}

			subscribers[port.Pattern][port.ConnectionID] = append(
				subscribers[port.Pattern][port.ConnectionID],
				portRef,
			)
		}
	}

	return subscribers
}

// matchNATSPattern checks if a subject matches a NATS pattern
// Following NATS subject matching semantics:
// * matches exactly one token
// > matches one or more tokens
// This function works bidirectionally - either parameter can be the pattern
func matchNATSPattern(subject, pattern string) bool {
	// Handle exact match first (optimization)
	if subject == pattern {
		return true
	}

	// Check if subject has wildcards (pattern matching in reverse)
	subjectHasWildcards := strings.Contains(subject, "*") || strings.Contains(subject, ">")
	patternHasWildcards := strings.Contains(pattern, "*") || strings.Contains(pattern, ">")

	// If neither has wildcards, we already checked exact match above
	if !subjectHasWildcards && !patternHasWildcards {
		return false
	}

	// If both have wildcards, do pattern matching in both directions
	if subjectHasWildcards && patternHasWildcards {
		subjectTokens := strings.Split(subject, ".")
		patternTokens := strings.Split(pattern, ".")
		return matchTokens(subjectTokens, patternTokens) || matchTokens(patternTokens, subjectTokens)
	}

	// One has wildcards, one doesn't - do normal pattern matching
	if patternHasWildcards {
		subjectTokens := strings.Split(subject, ".")
		patternTokens := strings.Split(pattern, ".")
		return matchTokens(subjectTokens, patternTokens)
	}

	// Subject has wildcards, pattern doesn't - swap them
	subjectTokens := strings.Split(subject, ".")
	patternTokens := strings.Split(pattern, ".")
	return matchTokens(patternTokens, subjectTokens)
}

func matchTokens(subjectTokens, patternTokens []string) bool {
	i, j := 0, 0

	for i < len(patternTokens) {
		if patternTokens[i] == ">" {
			// '>' matches everything remaining
			return true
		}

		if j >= len(subjectTokens) {
			// Pattern has more tokens than subject
			return false
		}

		if patternTokens[i] == "*" {
			// '*' matches any single token
			i++
			j++
			continue
		}

		if patternTokens[i] != subjectTokens[j] {
			// Literal token mismatch
			return false
		}

		i++
		j++
	}

	// Both must be exhausted for a match
	return i == len(patternTokens) && j == len(subjectTokens)
}

// connectStreamPorts connects stream pattern ports with NATS subject matching
func (g *FlowGraph) connectStreamPorts(publishers, subscribers map[string][]ComponentPortRef) {
	// Stream pattern: publishers -> subscribers with NATS pattern matching
	for pubConnID, pubs := range publishers {
		for subConnID, subs := range subscribers {
			// Check if publisher subject matches subscriber pattern or vice versa
			if !matchNATSPattern(pubConnID, subConnID) && !matchNATSPattern(subConnID, pubConnID) {
				continue
			}

			// Connect all matching publishers to subscribers
			for _, pub := range pubs {
				for _, sub := range subs {
					edge := FlowEdge{
						From:         pub,
						To:           sub,
						Pattern:      PatternStream,
						ConnectionID: pubConnID, // Use actual subject, not pattern
					}
					g.edges = append(g.edges, edge)
				}
			}
		}
	}
}

// validateNetworkPorts detects network port binding conflicts
func (g *FlowGraph) validateNetworkPorts(publishers, subscribers map[string][]ComponentPortRef) []string {
	// Network ports need exclusive binding - detect conflicts
	conflicts := []string{}
	allPorts := make(map[string][]ComponentPortRef)

	// Check publishers for conflicts
	for connID, ports := range publishers {
		if len(ports) > 1 {
			conflicts = append(conflicts,
				fmt.Sprintf("Network port conflict on %s: multiple components binding: %v", connID, ports))
		}
		allPorts[connID] = ports
	}

	// Check if subscribers conflict with publishers (both trying to bind same port)
	for connID, ports := range subscribers {
		if existing, exists := allPorts[connID]; exists {
			conflicts = append(conflicts,
				fmt.Sprintf("Network port conflict on %s: %v and %v both trying to bind", connID, existing, ports))
		} else if len(ports) > 1 {
			conflicts = append(conflicts,
				fmt.Sprintf("Network port conflict on %s: multiple components binding: %v", connID, ports))
		}
	}

	// Network ports are external connections - no edges created in the graph
	return conflicts
}

// AnalyzeConnectivity performs graph connectivity analysis
func (g *FlowGraph) AnalyzeConnectivity() *FlowAnalysisResult {
	result := &FlowAnalysisResult{
		ConnectedEdges:      g.edges,
		ValidationStatus:    "healthy",
		DisconnectedNodes:   []DisconnectedNode{}, // Initialize empty slice
		ConnectedComponents: [][]string{},         // Initialize empty slice
		OrphanedPorts:       []OrphanedPort{},     // Initialize empty slice
	}

	// Find connected components using standard graph algorithms
	components := g.findConnectedComponents()
	if components != nil {
		result.ConnectedComponents = components
	}

	// Detect orphaned ports
	orphans := g.findOrphanedPorts()
	if orphans != nil {
		result.OrphanedPorts = orphans
	}

	// Find disconnected nodes (nodes with no edges)
	for name := range g.nodes {
		hasConnection := false
		for _, edge := range g.edges {
			if edge.From.ComponentName == name || edge.To.ComponentName == name {
				hasConnection = true
				break
			}
		}
		if !hasConnection {
			result.DisconnectedNodes = append(result.DisconnectedNodes, DisconnectedNode{
				ComponentName: name,
				Issue:         "Component has no connections",
				Suggestions:   []string{"Connect to other components", "Verify component configuration"},
			})
		}
	}

	// Determine validation status based on severity
	hasCriticalIssues := false
	for _, port := range result.OrphanedPorts {
		// Check if this is a critical issue
		if port.Issue == "no_publishers" || port.Issue == "no_subscribers" {
			// Only required stream connections are critical
			// Optional ports without connections are acceptable
			if port.Pattern == PatternStream && port.Required {
				hasCriticalIssues = true
				break
			}
		}
	}

	// Set validation status
	if len(result.DisconnectedNodes) > 0 || hasCriticalIssues {
		result.ValidationStatus = "warnings"
	}

	return result
}

// findConnectedComponents uses DFS to find connected components in the graph
func (g *FlowGraph) findConnectedComponents() [][]string {
	visited := make(map[string]bool)
	var components [][]string

	// Build adjacency list from edges (treat as undirected for connectivity)
	adj := make(map[string][]string)
	for _, edge := range g.edges {
		from := edge.From.ComponentName
		to := edge.To.ComponentName

		adj[from] = append(adj[from], to)
		adj[to] = append(adj[to], from)
	}

	// DFS to find connected components
	for componentName := range g.nodes {
		if !visited[componentName] {
			var cluster []string
			g.dfs(componentName, adj, visited, &cluster)
			components = append(components, cluster)
		}
	}

	return components
}

// dfs performs depth-first search for connected components
func (g *FlowGraph) dfs(node string, adj map[string][]string, visited map[string]bool, cluster *[]string) {
	visited[node] = true
	*cluster = append(*cluster, node)

	for _, neighbor := range adj[node] {
		if !visited[neighbor] {
			g.dfs(neighbor, adj, visited, cluster)
		}
	}
}

// findOrphanedPorts identifies stream ports with no connections.
// Network and file ports are excluded as they are external boundaries.
func (g *FlowGraph) findOrphanedPorts() []OrphanedPort {
	var orphaned []OrphanedPort

	// Track which ports have connections
	connectedPorts := make(map[string]map[string]bool) // component -> port -> connected

	for _, edge := range g.edges {
		// Mark ports as connected
		if connectedPorts[edge.From.ComponentName] == nil {
			connectedPorts[edge.From.ComponentName] = make(map[string]bool)
		}
		if connectedPorts[edge.To.ComponentName] == nil {
			connectedPorts[edge.To.ComponentName] = make(map[string]bool)
		}

		connectedPorts[edge.From.ComponentName][edge.From.PortName] = true
		connectedPorts[edge.To.ComponentName][edge.To.PortName] = true
	}

	// Check all ports for orphans
	for componentName, node := range g.nodes {
		// Check input ports
		for _, port := range node.InputPorts {
			if connectedPorts[componentName] == nil || !connectedPorts[componentName][port.Name] {
				// Skip external boundary inputs - they ARE the external source
				if port.Pattern == PatternNetwork || port.Pattern == PatternFile {
					continue
				}

				orphaned = append(orphaned, OrphanedPort{
					ComponentName: componentName,
					PortName:      port.Name,
					Direction:     port.Direction,
					ConnectionID:  port.ConnectionID,
					Pattern:       port.Pattern,
					Issue:         "no_publishers",
					Required:      port.Required,
				})
			}
		}

		// Check output ports
		for _, port := range node.OutputPorts {
			if connectedPorts[componentName] == nil || !connectedPorts[componentName][port.Name] {
				// Skip external boundary outputs - they ARE the external sink
				if port.Pattern == PatternNetwork || port.Pattern == PatternFile {
					continue
				}

				orphaned = append(orphaned, OrphanedPort{
					ComponentName: componentName,
					PortName:      port.Name,
					Direction:     port.Direction,
					ConnectionID:  port.ConnectionID,
					Pattern:       port.Pattern,
					Issue:         "no_subscribers",
					Required:      port.Required,
				})
			}
		}
	}

	return orphaned
}
