package sink

import (
	"io"

	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/seclog-dev/seclog/gen"
	"github.com/seclog-dev/seclog/gen/config"
)

var jsonl = jsoniter.ConfigCompatibleWithStandardLibrary

// jsonlEncoder writes one JSON object per line, optionally through a
// streaming compressor. Sizes reported are pre-compression; rotation by
// target size therefore bounds the uncompressed payload, which keeps file
// counts stable across compression settings.
type jsonlEncoder struct {
	w      io.Writer
	closer io.Closer
}

func newJSONLFactory(f config.Format) (EncoderFactory, error) {
	compression := f.Compression
	return func(w io.Writer) (Encoder, error) {
		enc := &jsonlEncoder{w: w}
		switch compression {
		case "gzip":
			gz := gzip.NewWriter(w)
			enc.w, enc.closer = gz, gz
		case "zstd":
			zw, err := zstd.NewWriter(w)
			if err != nil {
				return nil, err
			}
			enc.w, enc.closer = zw, zw
		}
		return enc, nil
	}, nil
}

func (e *jsonlEncoder) Encode(ev *gen.Event) (int, error) {
	buf, err := jsonl.Marshal(ev)
	if err != nil {
		return 0, err
	}
	buf = append(buf, '\n')
	if _, err := e.w.Write(buf); err != nil {
		return 0, err
	}
	return len(buf), nil
}

func (e *jsonlEncoder) Close() error {
	if e.closer != nil {
		return e.closer.Close()
	}
	return nil
}
