package gelf

import (
	"sort"
	"strings"

	"github.com/c360/logstream/errors"
)

// ReservedFields is the default set of GELF core field names protected from
// underscore stripping: stripping `_host` to `host` would silently overwrite
// a protocol-reserved field, so such fields keep their underscore. The set
// can be overridden per transformer via TransformConfig.
var ReservedFields = []string{
	"version",
	"host",
	"short_message",
	"full_message",
	"timestamp",
	"level",
	"facility",
	"line",
	"file",
}

// TransformConfig selects which normalization passes run. Zero value runs
// nothing; DefaultTransformConfig matches the wire defaults (remap and strip
// on, nested expansion off).
type TransformConfig struct {
	// Remap promotes full_message/short_message onto the message field.
	Remap bool

	// StripUnderscore removes the leading underscore from user fields unless
	// the stripped name collides with a reserved field.
	StripUnderscore bool

	// NestedObjects expands dotted field names into nested containers.
	NestedObjects bool

	// Reserved overrides ReservedFields when non-nil.
	Reserved []string
}

// DefaultTransformConfig returns the standard GELF normalization settings.
func DefaultTransformConfig() TransformConfig {
	return TransformConfig{
		Remap:           true,
		StripUnderscore: true,
		NestedObjects:   false,
	}
}

// Transformer applies the normalization passes to events in a fixed order:
// message remap, underscore stripping, nested expansion, then decorators.
// The order is load-bearing: stripping must see remapped names, expansion
// must see stripped names, and decorators observe the finished field set.
//
// A Transformer is stateless across events and safe to reuse; it is not safe
// for concurrent use on the same Event.
type Transformer struct {
	remap      bool
	strip      bool
	nested     bool
	reserved   map[string]struct{}
	decorators []Decorator
}

// NewTransformer builds a Transformer from config plus optional decorators
// appended to the end of the pipeline.
func NewTransformer(cfg TransformConfig, decorators ...Decorator) *Transformer {
	reserved := cfg.Reserved
	if reserved == nil {
		reserved = ReservedFields
	}
	set := make(map[string]struct{}, len(reserved))
	for _, name := range reserved {
		set[name] = struct{}{}
	}
	return &Transformer{
		remap:      cfg.Remap,
		strip:      cfg.StripUnderscore,
		nested:     cfg.NestedObjects,
		reserved:   set,
		decorators: decorators,
	}
}

// Transform mutates ev in place. An error means a decorator rejected the
// event; the caller must discard it (the field set may be partially
// decorated).
func (t *Transformer) Transform(ev *Event) error {
	if t.remap {
		remapMessage(ev)
	}
	if t.strip {
		t.stripUnderscores(ev)
	}
	if t.nested {
		expandNested(ev)
	}
	for _, d := range t.decorators {
		if err := d.Decorate(ev); err != nil {
			return errors.Wrap(err, "Transformer", "Transform", "decorate "+d.Name())
		}
	}
	return nil
}

// remapMessage promotes the GELF message pair onto the canonical message
// field. A non-empty full_message wins and deduplicates an identical
// short_message; otherwise a non-empty short_message is promoted. With
// neither present the event is untouched.
func remapMessage(ev *Event) {
	if full, ok := ev.Fields[fieldFullMessage].(string); ok && full != "" {
		ev.Fields[FieldMessage] = full
		if short, ok := ev.Fields[fieldShortMessage].(string); ok && short == full {
			delete(ev.Fields, fieldShortMessage)
		}
		return
	}
	if short, ok := ev.Fields[fieldShortMessage].(string); ok && short != "" {
		ev.Fields[FieldMessage] = short
	}
}

// stripUnderscores renames `_name` to `name` for every field except those
// whose stripped name is reserved. Renames work from a snapshot of the
// prefixed fields, in sorted key order, so overlapping names like `__foo`
// alongside `_foo` resolve the same way every run. Renaming overwrites an
// existing field of the stripped name.
func (t *Transformer) stripUnderscores(ev *Event) {
	var prefixed []string
	for k := range ev.Fields {
		if strings.HasPrefix(k, "_") {
			prefixed = append(prefixed, k)
		}
	}
	sort.Strings(prefixed)

	values := make(map[string]any, len(prefixed))
	for _, k := range prefixed {
		values[k] = ev.Fields[k]
	}
	for _, k := range prefixed {
		stripped := k[1:]
		if _, isReserved := t.reserved[stripped]; isReserved {
			continue
		}
		ev.Fields[stripped] = values[k]
		delete(ev.Fields, k)
	}
}
