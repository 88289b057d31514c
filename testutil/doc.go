// Package testutil provides shared GELF wire fixtures for LogStream tests.
//
// The fixtures keep tests across packages exercising the same payload shapes:
//
//   - SampleGELFMessages / SampleInvalidPayloads: valid and malformed
//     uncompressed GELF documents
//   - GELFPayload: build a payload with custom host, level, and extra fields
//   - ChunkDatagram: frame a chunked GELF datagram fragment
//     (0x1e 0x0f magic, message ID, seq/count header)
//   - GzipPayload / ZlibPayload: compress payloads the way GELF senders do
//
// The builders panic on error rather than taking a *testing.T, so they can be
// used in table literals and package-level vars.
//
// Integration tests needing a real event bus should use the
// testcontainers-backed natsclient.NewTestClient rather than faking NATS;
// every component takes a concrete *natsclient.Client.
package testutil
