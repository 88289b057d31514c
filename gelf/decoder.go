package gelf

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/c360/logstream/errors"
	"github.com/c360/logstream/metric"
	"github.com/c360/logstream/pkg/cache"
)

// GELF wire framing constants.
const (
	// MaxChunks is the protocol limit on fragments per message; the sequence
	// count is a single byte and Graylog-compatible senders never exceed 128.
	MaxChunks = 128

	chunkHeaderLen = 12 // 2 magic + 8 message ID + seq number + seq count
)

// DecoderConfig tunes chunk reassembly and decompression.
type DecoderConfig struct {
	// ChunkTTL is the reassembly window per message: fragments older than
	// this are dropped whether or not the rest ever arrive. Default 5s.
	ChunkTTL time.Duration

	// MaxPending bounds how many partially assembled messages are held at
	// once; beyond it the least recently touched partials are evicted.
	// Default 1024.
	MaxPending int

	// MaxMessageSize caps the decompressed payload size. Default 8 MiB.
	MaxMessageSize int

	// CleanupInterval is how often expired partials are swept. Default 1s.
	CleanupInterval time.Duration

	// Metrics optionally exports reassembly cache statistics.
	Metrics *metric.MetricsRegistry
}

// DefaultDecoderConfig returns the standard reassembly settings.
func DefaultDecoderConfig() DecoderConfig {
	return DecoderConfig{
		ChunkTTL:        5 * time.Second,
		MaxPending:      1024,
		MaxMessageSize:  8 * 1024 * 1024,
		CleanupInterval: time.Second,
	}
}

// partialMessage collects the fragments of one chunked message, indexed by
// sequence number. settled is flipped before an explicit delete so the
// eviction callback only counts partials that timed out.
type partialMessage struct {
	parts    [][]byte
	received int
	settled  bool
}

// Decoder turns raw datagram bytes into complete message payloads. A
// datagram is either a fragment of a chunked message (magic 0x1e 0x0f) or a
// whole payload, optionally zlib or gzip compressed.
//
// Decode returns one of three outcomes: a complete payload, (nil, nil) when
// a fragment was cached but the message is still incomplete, or an error
// wrapping ErrDecodeFailed for malformed framing. Plain payloads that are
// not valid JSON are NOT a decode error; they pass through for the event
// builder's fallback handling.
//
// Decode is not safe for concurrent use; each listener owns one Decoder.
type Decoder struct {
	pending        cache.Cache[*partialMessage]
	maxMessageSize int
	expired        atomic.Int64
}

// NewDecoder creates a Decoder. ctx bounds the lifetime of the background
// sweep that drops timed-out partial messages.
func NewDecoder(ctx context.Context, cfg DecoderConfig) (*Decoder, error) {
	def := DefaultDecoderConfig()
	if cfg.ChunkTTL <= 0 {
		cfg.ChunkTTL = def.ChunkTTL
	}
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = def.MaxPending
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}

	d := &Decoder{maxMessageSize: cfg.MaxMessageSize}

	opts := []cache.Option[*partialMessage]{
		cache.WithEvictionCallback[*partialMessage](func(_ string, msg *partialMessage) {
			if msg != nil && !msg.settled {
				d.expired.Add(1)
			}
		}),
	}
	if cfg.Metrics != nil {
		opts = append(opts, cache.WithMetrics[*partialMessage](cfg.Metrics, "gelf_chunks"))
	}

	pending, err := cache.NewFromConfig[*partialMessage](ctx, cache.Config{
		Enabled:         true,
		Strategy:        cache.StrategyHybrid,
		MaxSize:         cfg.MaxPending,
		TTL:             cfg.ChunkTTL,
		CleanupInterval: cfg.CleanupInterval,
	}, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "Decoder", "NewDecoder", "create reassembly cache")
	}
	d.pending = pending
	return d, nil
}

// Decode processes one datagram. See the Decoder doc for the outcome
// contract.
func (d *Decoder) Decode(datagram []byte) ([]byte, error) {
	if len(datagram) == 0 {
		return nil, errors.WrapInvalid(errors.ErrDecodeFailed, "Decoder", "Decode", "empty datagram")
	}
	if len(datagram) >= 2 && datagram[0] == 0x1e && datagram[1] == 0x0f {
		return d.decodeChunk(datagram)
	}
	return Decompress(datagram, d.maxMessageSize)
}

// decodeChunk caches one fragment and, when the message is complete,
// assembles and decompresses it.
func (d *Decoder) decodeChunk(datagram []byte) ([]byte, error) {
	if len(datagram) <= chunkHeaderLen {
		return nil, errors.WrapInvalid(errors.ErrDecodeFailed, "Decoder", "decodeChunk",
			fmt.Sprintf("truncated chunk header (%d bytes)", len(datagram)))
	}

	seq := int(datagram[10])
	count := int(datagram[11])
	if count == 0 || count > MaxChunks {
		return nil, errors.WrapInvalid(errors.ErrDecodeFailed, "Decoder", "decodeChunk",
			fmt.Sprintf("invalid chunk count %d", count))
	}
	if seq >= count {
		return nil, errors.WrapInvalid(errors.ErrDecodeFailed, "Decoder", "decodeChunk",
			fmt.Sprintf("chunk sequence %d out of range for count %d", seq, count))
	}

	id := hex.EncodeToString(datagram[2:10])
	msg, ok := d.pending.Get(id)
	if !ok {
		msg = &partialMessage{parts: make([][]byte, count)}
		if _, err := d.pending.Set(id, msg); err != nil {
			return nil, errors.Wrap(err, "Decoder", "decodeChunk", "cache fragment")
		}
	} else if len(msg.parts) != count {
		msg.settled = true
		_, _ = d.pending.Delete(id)
		return nil, errors.WrapInvalid(errors.ErrDecodeFailed, "Decoder", "decodeChunk",
			fmt.Sprintf("chunk count changed from %d to %d for message %s", len(msg.parts), count, id))
	}

	if msg.parts[seq] == nil {
		msg.received++
	}
	part := make([]byte, len(datagram)-chunkHeaderLen)
	copy(part, datagram[chunkHeaderLen:])
	msg.parts[seq] = part

	if msg.received < len(msg.parts) {
		return nil, nil // still buffering
	}

	msg.settled = true
	_, _ = d.pending.Delete(id)

	size := 0
	for _, p := range msg.parts {
		size += len(p)
	}
	assembled := make([]byte, 0, size)
	for _, p := range msg.parts {
		assembled = append(assembled, p...)
	}
	return Decompress(assembled, d.maxMessageSize)
}

// Decompress unwraps gzip or zlib payloads, recognized by their leading
// bytes, passing anything else through untouched. Decompressed size is
// bounded by maxSize.
func Decompress(payload []byte, maxSize int) ([]byte, error) {
	switch {
	case len(payload) >= 2 && payload[0] == 0x1f && payload[1] == 0x8b:
		r, err := gzip.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, errors.WrapInvalid(errors.ErrDecodeFailed, "Decoder", "decompress", "gzip header")
		}
		defer func() { _ = r.Close() }()
		return readBounded(r, "gzip", maxSize)

	case len(payload) >= 1 && payload[0] == 0x78:
		r, err := zlib.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, errors.WrapInvalid(errors.ErrDecodeFailed, "Decoder", "decompress", "zlib header")
		}
		defer func() { _ = r.Close() }()
		return readBounded(r, "zlib", maxSize)

	default:
		return payload, nil
	}
}

func readBounded(r io.Reader, format string, maxSize int) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, int64(maxSize)+1))
	if err != nil {
		return nil, errors.WrapInvalid(errors.ErrDecodeFailed, "Decoder", "readBounded", format+" stream")
	}
	if len(data) > maxSize {
		return nil, errors.WrapInvalid(errors.ErrDecodeFailed, "Decoder", "readBounded",
			fmt.Sprintf("%s payload exceeds %d bytes", format, maxSize))
	}
	return data, nil
}

// PendingMessages reports how many partially assembled messages are held.
func (d *Decoder) PendingMessages() int {
	return d.pending.Size()
}

// ExpiredMessages reports how many partial messages were dropped because
// their reassembly window lapsed or the pending bound evicted them.
func (d *Decoder) ExpiredMessages() int64 {
	return d.expired.Load()
}

// Close releases the reassembly cache and its sweep goroutine.
func (d *Decoder) Close() error {
	return d.pending.Close()
}
