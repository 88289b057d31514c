package gelf

import (
	"bytes"
	"encoding/json"
	"time"
)

// Field names with protocol-level meaning.
const (
	// FieldTimestamp is the raw numeric timestamp field senders include in
	// the payload. The builder coerces it onto Event.Timestamp and removes it
	// from the field set.
	FieldTimestamp = "timestamp"

	// FieldSourceHost records the address the datagram arrived from.
	FieldSourceHost = "source_host"

	// FieldMessage is the canonical message field after remapping.
	FieldMessage = "message"

	fieldShortMessage = "short_message"
	fieldFullMessage  = "full_message"
)

// TagParseFailure marks fallback events built from payloads that were not
// valid JSON objects.
const TagParseFailure = "_gelfparsefailure"

// Event is one normalized log event: a flat-to-nested field set plus a
// distinguished timestamp and tag collection. Field names are unique (map
// semantics). Events are built by BuildEvent, mutated in place by the
// Transformer passes, and owned by the downstream queue once published.
type Event struct {
	Fields    map[string]any
	Timestamp time.Time
	Tags      []string
}

// AddTag appends a tag if not already present.
func (e *Event) AddTag(tag string) {
	for _, t := range e.Tags {
		if t == tag {
			return
		}
	}
	e.Tags = append(e.Tags, tag)
}

// HasTag reports whether the event carries the given tag.
func (e *Event) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// MarshalJSON renders the event as a single JSON object: all fields, plus
// "@timestamp" (RFC3339 with microseconds, UTC) and "tags" when present.
// This is the wire shape published to the output queue.
func (e *Event) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Fields)+2)
	for k, v := range e.Fields {
		out[k] = v
	}
	if !e.Timestamp.IsZero() {
		out["@timestamp"] = e.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z07:00")
	}
	if len(e.Tags) > 0 {
		out["tags"] = e.Tags
	}
	return json.Marshal(out)
}

// BuildEvent parses a decoded GELF payload into an Event. It is total: any
// payload yields an event, never nil and never a panic.
//
// On parse success the object's members become the field set, sourceHost is
// recorded under source_host, and a numeric timestamp field is coerced onto
// Event.Timestamp and removed. A missing or non-numeric timestamp leaves the
// field set alone and stamps the receive time instead.
//
// On parse failure (payload is not a JSON object) the whole payload text
// becomes the message field and the event is tagged with TagParseFailure so
// downstream consumers can route it for diagnosis.
func BuildEvent(payload []byte, sourceHost string) *Event {
	ev := &Event{Fields: parseFields(payload)}
	if ev.Fields == nil {
		ev.Fields = map[string]any{FieldMessage: string(payload)}
		ev.AddTag(TagParseFailure)
	}

	if sourceHost != "" {
		ev.Fields[FieldSourceHost] = sourceHost
	}

	if raw, ok := ev.Fields[FieldTimestamp]; ok {
		if ts, numeric := CoerceTimestamp(raw); numeric {
			ev.Timestamp = ts
			delete(ev.Fields, FieldTimestamp)
		}
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	return ev
}

// parseFields decodes payload as a single JSON object, preserving numeric
// precision via json.Number. Returns nil when the payload is not an object
// (the fallback path).
func parseFields(payload []byte) map[string]any {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil
	}
	// Trailing garbage after the object means the payload was not one JSON
	// document; treat it like any other parse failure.
	if dec.More() {
		return nil
	}
	return fields
}
