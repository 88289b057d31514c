// Package gelf implements the GELF (Graylog Extended Log Format) wire
// protocol and the event normalization pipeline shared by the logstream
// inputs.
//
// # Overview
//
// GELF senders emit JSON log records over UDP or HTTP, optionally
// compressed (zlib or gzip) and, on UDP, optionally split across up to 128
// framed fragments. This package turns those raw bytes into normalized
// events ready for the output queue:
//
//	raw datagram -> Decoder -> payload -> BuildEvent -> Event -> Transformer -> finished Event
//
// The stages are independent so transports reuse them differently: the UDP
// input drives all of them, the HTTP input skips chunk reassembly (chunking
// is a UDP-only concern).
//
// # Chunk Reassembly
//
// Decoder recognizes the chunk magic (0x1e 0x0f), collects fragments per
// 8-byte message ID, and returns the assembled payload once every fragment
// has arrived. Partial messages live in a bounded reassembly cache with a
// hard time window (default 5s, Graylog-compatible); fragments of a message
// that never completes are dropped when the window lapses. Assembled and
// unchunked payloads alike are transparently decompressed.
//
// Decode outcomes:
//
//   - (payload, nil): a complete message payload
//   - (nil, nil): fragment cached, message still incomplete
//   - (nil, err): malformed framing or compression; err wraps
//     errors.ErrDecodeFailed
//
// A payload that is merely not valid JSON is not a decode error; the event
// builder turns it into a tagged fallback event instead of dropping it.
//
// # Event Construction
//
// BuildEvent is total: every payload produces an event. Valid JSON objects
// become the field set; anything else becomes a fallback event whose
// message field holds the raw text, tagged with TagParseFailure. The
// sender's numeric timestamp field (seconds since epoch, fractional part
// preserved to the microsecond) is coerced onto Event.Timestamp and removed
// from the field set. json.Number is used throughout parsing so
// high-precision timestamps survive without float64 drift.
//
// # Normalization Passes
//
// Transformer applies up to four passes in a fixed order:
//
//  1. Message remap: full_message (or else short_message) is promoted to
//     the canonical message field; a short_message identical to the
//     promoted value is dropped.
//  2. Underscore stripping: GELF user fields arrive prefixed with `_`; the
//     prefix is removed unless the stripped name would shadow a reserved
//     core field (see ReservedFields).
//  3. Nested expansion (off by default): dotted field names such as
//     `request.headers.host` are expanded into nested objects, with
//     all-numeric path segments building arrays and an explicit
//     array-to-object coercion rule for mixed siblings.
//  4. Decorators: pluggable hooks that stamp pipeline metadata; a
//     decorator error discards the event.
//
// The order is part of the contract: stripping observes remapped names and
// expansion observes stripped names.
//
// # Usage
//
//	decoder, err := gelf.NewDecoder(ctx, gelf.DefaultDecoderConfig())
//	if err != nil {
//	    return err
//	}
//	defer decoder.Close()
//
//	transformer := gelf.NewTransformer(gelf.DefaultTransformConfig(),
//	    gelf.NewAnnotateDecorator())
//
//	payload, err := decoder.Decode(datagram)
//	if err != nil {
//	    // malformed framing: log and drop this datagram
//	}
//	if payload == nil {
//	    // fragment buffered, nothing to do yet
//	}
//	ev := gelf.BuildEvent(payload, remoteAddr)
//	if err := transformer.Transform(ev); err != nil {
//	    // decorator rejected the event: log and drop
//	}
//	data, _ := json.Marshal(ev)
//
// # Concurrency
//
// One Decoder and one Transformer belong to one listener goroutine; nothing
// here locks, because the receive-decode-build-transform sequence for a
// datagram runs on a single control flow. The reassembly cache's background
// sweep is the only internal goroutine and is bounded by the context passed
// to NewDecoder.
package gelf
