// Package sink is the writer pipeline: events are routed by (account,
// region) onto a fixed set of shards, each shard owning its file sequences,
// encoders and rotation. Producers block only when a shard's queue is full;
// that backpressure is the generator's only throttle.
package sink

import (
	"io"

	"github.com/seclog-dev/seclog/gen"
	"github.com/seclog-dev/seclog/gen/config"
)

// Encoder writes events into one open output file. Implementations are
// single-goroutine; the owning shard serializes all calls.
type Encoder interface {
	// Encode appends one event. The returned size is the encoder's best
	// estimate of bytes this event adds to the file.
	Encode(ev *gen.Event) (int, error)
	// Close flushes buffered data and finalizes the file format. The
	// underlying writer is not closed.
	Close() error
}

// EncoderFactory opens a fresh Encoder on a new file.
type EncoderFactory func(w io.Writer) (Encoder, error)

// Extension is the filename extension for the encoded format, compression
// suffix included.
func Extension(f config.Format) string {
	ext := f.Type
	if f.Type == "parquet" {
		return ext
	}
	switch f.Compression {
	case "gzip":
		ext += ".gz"
	case "zstd":
		ext += ".zst"
	}
	return ext
}

// NewEncoderFactory validates the format and returns its factory.
func NewEncoderFactory(f config.Format) (EncoderFactory, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if f.Type == "parquet" {
		return newParquetFactory(f)
	}
	return newJSONLFactory(f)
}
