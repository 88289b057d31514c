package flowgraph

import (
	"testing"

	"github.com/c360/logstream/component"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFlowGraphPatterns tests all connection pattern implementations
func TestFlowGraphPatterns(t *testing.T) {
	t.Run("nil checks in AddComponentNode", func(t *testing.T) {
		graph := NewFlowGraph()

		// Test nil component
		err := graph.AddComponentNode("test", nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "component cannot be nil")

		// Test empty name
		mockComp := createPatternTestComponent("mock", []component.Port{}, []component.Port{})
		err = graph.AddComponentNode("", mockComp)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "component name cannot be empty")
	})

	t.Run("Network pattern detects port conflicts", func(t *testing.T) {
		graph := NewFlowGraph()

		// Create two inputs trying to bind the same UDP port
		listener1Ports := []component.Port{
			{
				Name:      "udp_socket",
				Direction: component.DirectionInput,
				Config:    component.NetworkPort{Protocol: "udp", Host: "0.0.0.0", Port: 12201},
			},
		}
		listener2Ports := []component.Port{
			{
				Name:      "udp_socket2",
				Direction: component.DirectionInput,
				Config:    component.NetworkPort{Protocol: "udp", Host: "0.0.0.0", Port: 12201},
			},
		}

		listener1 := createPatternTestComponent("gelf-udp-1", listener1Ports, []component.Port{})
		listener2 := createPatternTestComponent("gelf-udp-2", listener2Ports, []component.Port{})

		require.NoError(t, graph.AddComponentNode("gelf-udp-1", listener1))
		require.NoError(t, graph.AddComponentNode("gelf-udp-2", listener2))

		// Connect by patterns - should detect conflict
		err := graph.ConnectComponentsByPatterns()
		assert.Error(t, err, "Should detect network port conflict")
		if err != nil {
			assert.Contains(t, err.Error(), "Network port conflict")
			assert.Contains(t, err.Error(), "udp:0.0.0.0:12201")
		}

		// No edges should be created for network ports
		edges := graph.GetEdges()
		for _, edge := range edges {
			assert.NotEqual(t, PatternNetwork, edge.Pattern, "Network ports don't create edges")
		}
	})

	t.Run("Stream pattern connects publisher to subscriber", func(t *testing.T) {
		graph := NewFlowGraph()

		// Traditional NATS pub/sub
		pubPorts := []component.Port{
			{
				Name:      "events",
				Direction: component.DirectionOutput,
				Config:    component.NATSPort{Subject: "input.gelf.udp"},
			},
		}
		subPorts := []component.Port{
			{
				Name:      "events",
				Direction: component.DirectionInput,
				Config:    component.NATSPort{Subject: "input.gelf.udp"},
			},
		}

		pub := createPatternTestComponent("gelf-udp", []component.Port{}, pubPorts)
		sub := createPatternTestComponent("file-archive", subPorts, []component.Port{})

		require.NoError(t, graph.AddComponentNode("gelf-udp", pub))
		require.NoError(t, graph.AddComponentNode("file-archive", sub))

		// Connect by patterns
		err := graph.ConnectComponentsByPatterns()
		assert.NoError(t, err)

		// Check edge
		edges := graph.GetEdges()
		assert.Len(t, edges, 1)
		if len(edges) > 0 {
			edge := edges[0]
			assert.Equal(t, PatternStream, edge.Pattern)
			assert.Equal(t, "input.gelf.udp", edge.ConnectionID)
			assert.Equal(t, "gelf-udp", edge.From.ComponentName)
			assert.Equal(t, "file-archive", edge.To.ComponentName)
		}
	})

	t.Run("File pattern creates no edges", func(t *testing.T) {
		graph := NewFlowGraph()

		// File archive has a NATS input and a file output
		archivePorts := []component.Port{
			{
				Name:      "nats_input",
				Direction: component.DirectionInput,
				Config:    component.NATSPort{Subject: "input.gelf.>"},
			},
		}
		fileOutputPorts := []component.Port{
			{
				Name:      "file_output",
				Direction: component.DirectionOutput,
				Config:    component.FilePort{Path: "/var/log/gelf", Pattern: "*.jsonl"},
			},
		}

		archive := createPatternTestComponent("file-archive", archivePorts, fileOutputPorts)
		require.NoError(t, graph.AddComponentNode("file-archive", archive))

		// Connect by patterns - file ports are external, no conflicts possible
		err := graph.ConnectComponentsByPatterns()
		assert.NoError(t, err)

		// File ports never create edges
		edges := graph.GetEdges()
		for _, edge := range edges {
			assert.NotEqual(t, PatternFile, edge.Pattern, "File ports don't create edges")
		}
	})

	t.Run("extractConnectionID handles nil and missing data", func(t *testing.T) {
		graph := NewFlowGraph()

		// Test nil config
		result := graph.extractConnectionID(nil)
		assert.Equal(t, "nil_port_config", result)

		// Test empty NATS subject
		result = graph.extractConnectionID(component.NATSPort{Subject: ""})
		assert.Equal(t, "nats_missing_subject", result)

		// Test incomplete network port
		result = graph.extractConnectionID(component.NetworkPort{Protocol: "tcp", Host: "", Port: 0})
		assert.Contains(t, result, "network_incomplete")

		// Test file port with and without a path
		result = graph.extractConnectionID(component.FilePort{Path: "/var/log/gelf"})
		assert.Equal(t, "/var/log/gelf", result)

		result = graph.extractConnectionID(component.FilePort{})
		assert.Equal(t, "file_unknown", result)
	})

	t.Run("NATS wildcard pattern matching", func(t *testing.T) {
		// Test exact match
		assert.True(t, matchNATSPattern("input.gelf.udp", "input.gelf.udp"), "Exact match should work")

		// Test single token wildcard (*)
		assert.True(t, matchNATSPattern("input.gelf.udp", "input.*.udp"), "* should match single token")
		assert.True(t, matchNATSPattern("input.gelf.http", "input.gelf.*"), "* should match last token")
		assert.True(t, matchNATSPattern("input.gelf.udp", "*.gelf.udp"), "* should match first token")

		// Test multi-token wildcard (>)
		assert.True(t, matchNATSPattern("input.gelf.udp", "input.>"), "> should match multiple tokens")
		assert.True(t, matchNATSPattern("input.gelf.udp.chunked", "input.gelf.>"), "> should match deep subjects")

		// Test non-matches
		assert.False(t, matchNATSPattern("input.gelf.udp", "input.*.http"), "* shouldn't match wrong token")
		assert.False(t, matchNATSPattern("input.gelf.udp", "input.*"), "* requires exact token count")
		assert.False(t, matchNATSPattern("input", "input.gelf"), "No match with more pattern tokens")
		assert.False(t, matchNATSPattern("metrics.system", "input.>"), "> shouldn't match different prefix")

		// Test bidirectional matching (pattern in either position)
		assert.True(
			t,
			matchNATSPattern("input.*.udp", "input.gelf.udp"),
			"Pattern should match concrete subject",
		)
	})

	t.Run("Stream pattern with wildcard connections", func(t *testing.T) {
		graph := NewFlowGraph()

		// UDP input publishes to concrete subject
		pubPorts := []component.Port{
			{
				Name:      "nats_output",
				Direction: component.DirectionOutput,
				Config:    component.NATSPort{Subject: "input.gelf.udp"},
			},
		}

		// Archive subscribes with wildcard to catch all ingest paths
		subPorts := []component.Port{
			{
				Name:      "nats_input",
				Direction: component.DirectionInput,
				Config:    component.NATSPort{Subject: "input.gelf.>"},
			},
		}

		pub := createPatternTestComponent("gelf-udp", []component.Port{}, pubPorts)
		sub := createPatternTestComponent("file-archive", subPorts, []component.Port{})

		require.NoError(t, graph.AddComponentNode("gelf-udp", pub))
		require.NoError(t, graph.AddComponentNode("file-archive", sub))

		// Connect by patterns
		err := graph.ConnectComponentsByPatterns()
		assert.NoError(t, err)

		// Check that wildcard match created edge
		edges := graph.GetEdges()
		assert.Len(t, edges, 1, "Wildcard pattern should match concrete subject")
		if len(edges) > 0 {
			edge := edges[0]
			assert.Equal(t, PatternStream, edge.Pattern)
			assert.Equal(t, "input.gelf.udp", edge.ConnectionID, "Should use concrete subject, not pattern")
			assert.Equal(t, "gelf-udp", edge.From.ComponentName)
			assert.Equal(t, "file-archive", edge.To.ComponentName)
		}
	})
}

// Helper function to create mock components for pattern tests
func createPatternTestComponent(name string, inputs []component.Port, outputs []component.Port) component.Discoverable {
	return &mockFlowGraphComponent{
		metadata: component.Metadata{
			Name: name,
		},
		inputPorts:  inputs,
		outputPorts: outputs,
	}
}
