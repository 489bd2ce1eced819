package sink

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/apache/arrow/go/v17/parquet/file"
	"github.com/apache/arrow/go/v17/parquet/pqarrow"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seclog-dev/seclog/gen"
	"github.com/seclog-dev/seclog/gen/config"
)

func testEvent(account, region, ts string) *gen.Event {
	ip := "198.51.100.7"
	return &gen.Event{
		Envelope: gen.Envelope{
			SchemaVersion: "1.0",
			Timestamp:     ts,
			Source:        "cloudtrail",
			EventType:     "GetObject",
			Actor:         gen.Actor{ID: "user-0001", Kind: "user"},
			Outcome:       gen.OutcomeSuccess,
			IP:            &ip,
		},
		Payload:   map[string]any{"eventName": "GetObject"},
		AccountID: account,
		Region:    region,
	}
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	n := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1<<20), 1<<20)
	for sc.Scan() {
		n++
	}
	require.NoError(t, sc.Err())
	return n
}

func TestRouter_ConservesEvents(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRouter(Options{
		Dir:    dir,
		Label:  "CloudTrail",
		Shards: 4,
		Format: config.Format{Type: "jsonl"},
	})
	require.NoError(t, err)

	accounts := []string{"111111111111", "222222222222", "333333333333"}
	regions := []string{"us-east-1", "eu-west-1"}
	const total = 240
	for i := 0; i < total; i++ {
		ev := testEvent(accounts[i%3], regions[i%2], "2026-01-05T10:00:00Z")
		r.Write(ev)
	}
	require.NoError(t, r.Close())

	assert.Equal(t, int64(total), r.Stats().Events)
	assert.Positive(t, r.Stats().Bytes)

	names, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	require.NoError(t, err)
	require.NotEmpty(t, names)

	pattern := regexp.MustCompile(`^\d{12}_CloudTrail_[a-z0-9-]+_\d{8}T\d{4}Z_\d{4}\.jsonl$`)
	lines := 0
	for _, name := range names {
		assert.Regexp(t, pattern, filepath.Base(name))
		lines += countLines(t, name)
	}
	assert.Equal(t, total, lines)
}

func TestRouter_BackpressureQueueCapOne(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRouter(Options{
		Dir:      dir,
		Label:    "CloudTrail",
		Shards:   2,
		QueueCap: 1,
		Format:   config.Format{Type: "jsonl"},
	})
	require.NoError(t, err)

	for i := 0; i < 500; i++ {
		r.Write(testEvent("111111111111", "us-east-1", "2026-01-05T10:00:00Z"))
	}
	require.NoError(t, r.Close())
	assert.Equal(t, int64(500), r.Stats().Events)
}

func TestRouter_FirstErrorIsTerminal(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRouter(Options{
		Dir:    dir,
		Label:  "CloudTrail",
		Format: config.Format{Type: "jsonl"},
	})
	require.NoError(t, err)

	require.NoError(t, r.Err())

	bad := testEvent("111111111111", "us-east-1", "2026-01-05T10:00:00Z")
	bad.Payload = func() {} // not serializable
	r.Write(bad)

	// The failure surfaces through Err as soon as the shard hits it, long
	// before Close, so producers can stop generating.
	require.Eventually(t, func() bool { return r.Err() != nil },
		2*time.Second, 5*time.Millisecond)
	assert.Contains(t, r.Err().Error(), "shard 0")

	// Later writes are still accepted and discarded; the pipeline never
	// blocks a producer on a dead shard.
	for i := 0; i < 10; i++ {
		r.Write(testEvent("111111111111", "us-east-1", "2026-01-05T10:00:00Z"))
	}
	err = r.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shard 0")
	assert.NoError(t, r.Close())
}

func TestShard_RotatesBySize(t *testing.T) {
	dir := t.TempDir()
	factory, err := NewEncoderFactory(config.Format{Type: "jsonl"})
	require.NoError(t, err)
	s := &shard{
		dir:         dir,
		label:       "CloudTrail",
		ext:         "jsonl",
		factory:     factory,
		targetBytes: 600,
		maxAge:      time.Hour,
		streams:     make(map[streamKey]*stream),
	}

	for i := 0; i < 20; i++ {
		require.NoError(t, s.write(testEvent("111111111111", "us-east-1", "2026-01-05T10:00:00Z")))
	}
	require.NoError(t, s.closeAll())

	names, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	require.NoError(t, err)
	assert.Greater(t, len(names), 1, "600-byte target must force rotation")

	lines := 0
	for _, name := range names {
		n := countLines(t, name)
		assert.Positive(t, n, "rotation must never produce an empty file")
		lines += n
	}
	assert.Equal(t, 20, lines)
}

func TestShard_RotatesByAge(t *testing.T) {
	dir := t.TempDir()
	factory, err := NewEncoderFactory(config.Format{Type: "jsonl"})
	require.NoError(t, err)
	s := &shard{
		dir:         dir,
		label:       "CloudTrail",
		ext:         "jsonl",
		factory:     factory,
		targetBytes: 1 << 30,
		maxAge:      5 * time.Minute,
		streams:     make(map[streamKey]*stream),
	}

	require.NoError(t, s.write(testEvent("111111111111", "us-east-1", "2026-01-05T10:00:00Z")))
	require.NoError(t, s.write(testEvent("111111111111", "us-east-1", "2026-01-05T10:02:00Z")))
	// crosses the age limit, opens a new file stamped with its own time
	require.NoError(t, s.write(testEvent("111111111111", "us-east-1", "2026-01-05T10:12:00Z")))
	require.NoError(t, s.closeAll())

	names, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	require.NoError(t, err)
	require.Len(t, names, 2)

	bases := []string{filepath.Base(names[0]), filepath.Base(names[1])}
	assert.Contains(t, fmt.Sprint(bases), "20260105T1000Z_0001")
	assert.Contains(t, fmt.Sprint(bases), "20260105T1012Z_0002")
}

func TestRouter_SameKeySameShard(t *testing.T) {
	a := routeKey("111111111111", "us-east-1")
	b := routeKey("111111111111", "us-east-1")
	c := routeKey("111111111111", "us-west-2")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	// the separator keeps (account, region) boundaries unambiguous
	assert.NotEqual(t, routeKey("ab", "c"), routeKey("a", "bc"))
}

func TestJSONL_GzipRoundTrip(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRouter(Options{
		Dir:    dir,
		Label:  "CloudTrail",
		Format: config.Format{Type: "jsonl", Compression: "gzip"},
	})
	require.NoError(t, err)
	for i := 0; i < 25; i++ {
		r.Write(testEvent("111111111111", "us-east-1", "2026-01-05T10:00:00Z"))
	}
	require.NoError(t, r.Close())

	names, err := filepath.Glob(filepath.Join(dir, "*.jsonl.gz"))
	require.NoError(t, err)
	require.Len(t, names, 1)

	f, err := os.Open(names[0])
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer gz.Close()

	n := 0
	sc := bufio.NewScanner(gz)
	for sc.Scan() {
		n++
	}
	require.NoError(t, sc.Err())
	assert.Equal(t, 25, n)
}

func TestParquet_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRouter(Options{
		Dir:    dir,
		Label:  "EntraID",
		Format: config.Format{Type: "parquet", Compression: "zstd"},
	})
	require.NoError(t, err)
	const total = 600 // spans more than one row-group flush
	for i := 0; i < total; i++ {
		ev := testEvent("contoso", "global", "2026-01-05T10:00:00Z")
		ev.Envelope.Source = "entra_id"
		r.Write(ev)
	}
	require.NoError(t, r.Close())

	names, err := filepath.Glob(filepath.Join(dir, "*.parquet"))
	require.NoError(t, err)
	require.Len(t, names, 1)

	pf, err := file.OpenParquetFile(names[0], false)
	require.NoError(t, err)
	defer pf.Close()
	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{BatchSize: 1024}, nil)
	require.NoError(t, err)
	tbl, err := fr.ReadTable(context.Background())
	require.NoError(t, err)
	defer tbl.Release()
	assert.Equal(t, int64(total), tbl.NumRows())
}

func TestExtension(t *testing.T) {
	assert.Equal(t, "jsonl", Extension(config.Format{Type: "jsonl"}))
	assert.Equal(t, "jsonl.gz", Extension(config.Format{Type: "jsonl", Compression: "gzip"}))
	assert.Equal(t, "jsonl.zst", Extension(config.Format{Type: "jsonl", Compression: "zstd"}))
	assert.Equal(t, "parquet", Extension(config.Format{Type: "parquet", Compression: "zstd"}))
}

func TestNewRouter_Validation(t *testing.T) {
	_, err := NewRouter(Options{Dir: t.TempDir(), Label: "X", Format: config.Format{Type: "csv"}})
	assert.Error(t, err)
	_, err = NewRouter(Options{Dir: t.TempDir(), Format: config.Format{Type: "jsonl"}})
	assert.Error(t, err)
}
