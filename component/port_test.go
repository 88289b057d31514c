package component

import (
	"encoding/json"
	"testing"
)

func TestDirection(t *testing.T) {
	tests := []struct {
		name      string
		direction Direction
		expected  string
	}{
		{"input direction", DirectionInput, "input"},
		{"output direction", DirectionOutput, "output"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if string(tt.direction) != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, string(tt.direction))
			}
		})
	}
}

func TestNetworkPort(t *testing.T) {
	tests := []struct {
		name        string
		port        NetworkPort
		resourceID  string
		isExclusive bool
		portType    string
	}{
		{
			name:        "UDP port",
			port:        NetworkPort{Protocol: "udp", Host: "0.0.0.0", Port: 12201},
			resourceID:  "udp:0.0.0.0:12201",
			isExclusive: true,
			portType:    "network",
		},
		{
			name:        "TCP port",
			port:        NetworkPort{Protocol: "tcp", Host: "localhost", Port: 8080},
			resourceID:  "tcp:localhost:8080",
			isExclusive: true,
			portType:    "network",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.port.ResourceID() != tt.resourceID {
				t.Errorf("Expected ResourceID %s, got %s", tt.resourceID, tt.port.ResourceID())
			}
			if tt.port.IsExclusive() != tt.isExclusive {
				t.Errorf("Expected IsExclusive %t, got %t", tt.isExclusive, tt.port.IsExclusive())
			}
			if tt.port.Type() != tt.portType {
				t.Errorf("Expected Type %s, got %s", tt.portType, tt.port.Type())
			}
		})
	}
}

func TestNATSPort(t *testing.T) {
	tests := []struct {
		name        string
		port        NATSPort
		resourceID  string
		isExclusive bool
		portType    string
	}{
		{
			name:        "concrete subject",
			port:        NATSPort{Subject: "input.gelf.udp"},
			resourceID:  "nats:input.gelf.udp",
			isExclusive: false,
			portType:    "nats",
		},
		{
			name:        "wildcard subject",
			port:        NATSPort{Subject: "input.gelf.>"},
			resourceID:  "nats:input.gelf.>",
			isExclusive: false,
			portType:    "nats",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.port.ResourceID() != tt.resourceID {
				t.Errorf("Expected ResourceID %s, got %s", tt.resourceID, tt.port.ResourceID())
			}
			if tt.port.IsExclusive() != tt.isExclusive {
				t.Errorf("Expected IsExclusive %t, got %t", tt.isExclusive, tt.port.IsExclusive())
			}
			if tt.port.Type() != tt.portType {
				t.Errorf("Expected Type %s, got %s", tt.portType, tt.port.Type())
			}
		})
	}
}

func TestFilePort(t *testing.T) {
	tests := []struct {
		name        string
		port        FilePort
		resourceID  string
		isExclusive bool
		portType    string
	}{
		{
			name:        "File path only",
			port:        FilePort{Path: "/var/log/gelf"},
			resourceID:  "file:/var/log/gelf",
			isExclusive: false,
			portType:    "file",
		},
		{
			name:        "File with pattern",
			port:        FilePort{Path: "/data/logs", Pattern: "*.ndjson"},
			resourceID:  "file:/data/logs",
			isExclusive: false,
			portType:    "file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.port.ResourceID() != tt.resourceID {
				t.Errorf("Expected ResourceID %s, got %s", tt.resourceID, tt.port.ResourceID())
			}
			if tt.port.IsExclusive() != tt.isExclusive {
				t.Errorf("Expected IsExclusive %t, got %t", tt.isExclusive, tt.port.IsExclusive())
			}
			if tt.port.Type() != tt.portType {
				t.Errorf("Expected Type %s, got %s", tt.portType, tt.port.Type())
			}
		})
	}
}

func TestPortableInterface(_ *testing.T) {
	// Test that all types implement the Portable interface
	var _ Portable = NetworkPort{}
	var _ Portable = NATSPort{}
	var _ Portable = FilePort{}
}

func TestPortJSONSerialization(t *testing.T) {
	testNetworkSerialization(t)
	testNATSSerialization(t)
	testFileSerialization(t)
}

func testNetworkSerialization(t *testing.T) {
	port := Port{
		Name:        "udp_input",
		Direction:   DirectionInput,
		Required:    true,
		Description: "UDP GELF input",
		Config:      NetworkPort{Protocol: "udp", Host: "0.0.0.0", Port: 12201},
	}

	data, err := json.Marshal(port)
	if err != nil {
		t.Fatalf("Failed to marshal port: %v", err)
	}

	var unmarshaled map[string]any
	err = json.Unmarshal(data, &unmarshaled)
	if err != nil {
		t.Fatalf("Failed to unmarshal port: %v", err)
	}

	verifyPortFields(t, unmarshaled, port)
}

func testNATSSerialization(t *testing.T) {
	port := Port{
		Name:        "nats_output",
		Direction:   DirectionOutput,
		Required:    false,
		Description: "Normalized event output",
		Config:      NATSPort{Subject: "input.gelf.udp"},
	}

	data, err := json.Marshal(port)
	if err != nil {
		t.Fatalf("Failed to marshal port: %v", err)
	}

	var unmarshaled map[string]any
	err = json.Unmarshal(data, &unmarshaled)
	if err != nil {
		t.Fatalf("Failed to unmarshal port: %v", err)
	}

	verifyPortFields(t, unmarshaled, port)

	// Verify config type
	config, ok := unmarshaled["config"].(map[string]any)
	if !ok {
		t.Fatal("Expected config to be a map")
	}
	if config["type"] != "nats" {
		t.Errorf("Expected config type 'nats', got %v", config["type"])
	}
}

func testFileSerialization(t *testing.T) {
	port := Port{
		Name:        "archive_output",
		Direction:   DirectionOutput,
		Required:    true,
		Description: "NDJSON archive directory",
		Config:      FilePort{Path: "/var/log/gelf", Pattern: "*.ndjson"},
	}

	data, err := json.Marshal(port)
	if err != nil {
		t.Fatalf("Failed to marshal port: %v", err)
	}

	var unmarshaled map[string]any
	err = json.Unmarshal(data, &unmarshaled)
	if err != nil {
		t.Fatalf("Failed to unmarshal port: %v", err)
	}

	verifyPortFields(t, unmarshaled, port)
}

func verifyPortFields(t *testing.T, unmarshaled map[string]any, original Port) {
	if unmarshaled["name"] != original.Name {
		t.Errorf("Expected name %s, got %s", original.Name, unmarshaled["name"])
	}
	if unmarshaled["direction"] != string(original.Direction) {
		t.Errorf("Expected direction %s, got %s", string(original.Direction), unmarshaled["direction"])
	}
	if unmarshaled["required"] != original.Required {
		t.Errorf("Expected required %t, got %t", original.Required, unmarshaled["required"])
	}
	if unmarshaled["description"] != original.Description {
		t.Errorf("Expected description %s, got %s", original.Description, unmarshaled["description"])
	}

	config, ok := unmarshaled["config"].(map[string]any)
	if !ok {
		t.Error("Expected config to be a map")
	}
	if len(config) == 0 {
		t.Error("Expected config to have content")
	}
}

func TestPortJSONRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		port Port
	}{
		{
			name: "network config",
			port: Port{
				Name:      "udp_input",
				Direction: DirectionInput,
				Required:  true,
				Config:    NetworkPort{Protocol: "udp", Host: "127.0.0.1", Port: 12201},
			},
		},
		{
			name: "nats config",
			port: Port{
				Name:      "events",
				Direction: DirectionOutput,
				Config:    NATSPort{Subject: "input.gelf.http"},
			},
		},
		{
			name: "file config",
			port: Port{
				Name:      "archive",
				Direction: DirectionOutput,
				Config:    FilePort{Path: "/var/log/gelf", Pattern: "*.ndjson"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.port)
			if err != nil {
				t.Fatalf("Failed to marshal: %v", err)
			}

			var restored Port
			if err := json.Unmarshal(data, &restored); err != nil {
				t.Fatalf("Failed to unmarshal: %v", err)
			}

			if restored.Name != tt.port.Name {
				t.Errorf("Name mismatch: %s != %s", restored.Name, tt.port.Name)
			}
			if restored.Config == nil {
				t.Fatal("Expected config to survive round trip")
			}
			if restored.Config.Type() != tt.port.Config.Type() {
				t.Errorf("Config type mismatch: %s != %s", restored.Config.Type(), tt.port.Config.Type())
			}
			if restored.Config.ResourceID() != tt.port.Config.ResourceID() {
				t.Errorf("ResourceID mismatch: %s != %s",
					restored.Config.ResourceID(), tt.port.Config.ResourceID())
			}
		})
	}
}

func TestPortUnmarshalUnknownConfigType(t *testing.T) {
	data := []byte(`{"name":"bad","direction":"input","config":{"type":"carrier-pigeon","data":{}}}`)

	var port Port
	err := json.Unmarshal(data, &port)
	if err == nil {
		t.Fatal("Expected error for unknown config type")
	}
}

func TestNetworkPortJSONSerialization(t *testing.T) {
	original := NetworkPort{
		Protocol: "tcp",
		Host:     "localhost",
		Port:     8080,
	}

	// Marshal
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	// Unmarshal
	var restored NetworkPort
	err = json.Unmarshal(data, &restored)
	if err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}

	// Compare
	if restored != original {
		t.Errorf("Expected %+v, got %+v", original, restored)
	}
}

func TestResourceIDUniqueness(t *testing.T) {
	// Test that different configurations produce different ResourceIDs
	networkPorts := []NetworkPort{
		{Protocol: "tcp", Host: "localhost", Port: 8080},
		{Protocol: "udp", Host: "localhost", Port: 8080},
		{Protocol: "tcp", Host: "0.0.0.0", Port: 8080},
		{Protocol: "tcp", Host: "localhost", Port: 9090},
	}

	resourceIDs := make(map[string]bool)
	for _, port := range networkPorts {
		id := port.ResourceID()
		if resourceIDs[id] {
			t.Errorf("Duplicate ResourceID found: %s", id)
		}
		resourceIDs[id] = true
	}

	// Test NATS ports
	natsPorts := []NATSPort{
		{Subject: "test.a"},
		{Subject: "test.b"},
		{Subject: "test.a"}, // Same subject, same ResourceID
	}

	natsIDs := make(map[string]int)
	for _, port := range natsPorts {
		id := port.ResourceID()
		natsIDs[id]++
	}

	// Should have 2 unique IDs (test.a appears twice, test.b once)
	if len(natsIDs) != 2 {
		t.Errorf("Expected 2 unique NATS ResourceIDs, got %d", len(natsIDs))
	}
	if natsIDs["nats:test.a"] != 2 {
		t.Errorf("Expected test.a to appear twice, got %d", natsIDs["nats:test.a"])
	}
}
