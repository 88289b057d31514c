package testutil

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"encoding/json"
	"fmt"
)

// SampleGELFMessages contains valid uncompressed GELF payloads covering the
// common field shapes: minimal, full, additional fields, and fractional
// timestamps.
var SampleGELFMessages = []string{
	`{"version":"1.1","host":"web-01","short_message":"request served","timestamp":1234567890,"level":6}`,
	`{"version":"1.1","host":"db-02","short_message":"slow query","full_message":"SELECT * FROM events took 4.2s","timestamp":1234567891.123,"level":4,"_query_ms":4200}`,
	`{"version":"1.1","host":"worker-03","short_message":"job failed","timestamp":1234567892,"level":3,"_job_id":"j-9981","_retries":2}`,
	`{"version":"1.1","host":"edge-gw","short_message":"client disconnect","timestamp":1234567893,"level":5,"_remote_addr":"10.0.0.17"}`,
	`{"version":"1.1","host":"auth-01","short_message":"login ok","timestamp":1234567894,"level":7,"_user":"alice"}`,
}

// SampleInvalidPayloads contains payloads the decoder must reject or flag:
// broken JSON, a JSON array, and an empty body.
var SampleInvalidPayloads = [][]byte{
	[]byte(`{"version":"1.1","host":`),
	[]byte(`["not","an","object"]`),
	[]byte(``),
}

// GELFPayload builds an uncompressed GELF JSON payload. Extra fields are
// merged in as-is, so callers pass underscore-prefixed keys for additional
// fields.
func GELFPayload(host string, level int, shortMessage string, extra map[string]any) []byte {
	event := map[string]any{
		"version":       "1.1",
		"host":          host,
		"short_message": shortMessage,
		"timestamp":     1234567890.0,
		"level":         level,
	}
	for k, v := range extra {
		event[k] = v
	}
	data, err := json.Marshal(event)
	if err != nil {
		panic(fmt.Sprintf("testutil: marshal GELF payload: %v", err))
	}
	return data
}

// ChunkDatagram frames one fragment of a chunked GELF message: the 0x1e 0x0f
// magic, an 8-byte message ID derived from id, the sequence number, the
// sequence count, and the fragment payload.
func ChunkDatagram(id byte, seq, count int, payload []byte) []byte {
	datagram := []byte{0x1e, 0x0f, id, id, id, id, id, id, id, id, byte(seq), byte(count)}
	return append(datagram, payload...)
}

// GzipPayload compresses data with gzip, the way a GELF sender would.
func GzipPayload(data []byte) []byte {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		panic(fmt.Sprintf("testutil: gzip payload: %v", err))
	}
	if err := w.Close(); err != nil {
		panic(fmt.Sprintf("testutil: close gzip writer: %v", err))
	}
	return buf.Bytes()
}

// ZlibPayload compresses data with zlib.
func ZlibPayload(data []byte) []byte {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		panic(fmt.Sprintf("testutil: zlib payload: %v", err))
	}
	if err := w.Close(); err != nil {
		panic(fmt.Sprintf("testutil: close zlib writer: %v", err))
	}
	return buf.Bytes()
}
