package gelf

import (
	"time"

	"github.com/google/uuid"
)

// Decorator is the final transformer stage: it sees the fully normalized
// event and may attach pipeline metadata. A decorator error discards the
// event for that message, so decorators should only fail when the event
// must not reach the queue.
type Decorator interface {
	// Name identifies the decorator in error and log context.
	Name() string

	// Decorate mutates the event in place.
	Decorate(ev *Event) error
}

// AnnotateDecorator stamps each event with a unique ingest ID and the
// receive wall-clock time, so downstream stores can deduplicate redelivered
// events and measure ingest lag.
type AnnotateDecorator struct {
	// now is swappable for tests.
	now func() time.Time
}

// NewAnnotateDecorator returns the standard ingest annotation decorator.
func NewAnnotateDecorator() *AnnotateDecorator {
	return &AnnotateDecorator{now: time.Now}
}

// Name implements Decorator.
func (d *AnnotateDecorator) Name() string { return "annotate" }

// Decorate implements Decorator.
func (d *AnnotateDecorator) Decorate(ev *Event) error {
	ev.Fields["_ingest_id"] = uuid.NewString()
	ev.Fields["_received_at"] = d.now().UTC().Format(time.RFC3339Nano)
	return nil
}
