package sink

import (
	"hash/fnv"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/seclog-dev/seclog/gen"
	"github.com/seclog-dev/seclog/gen/config"
)

// defaults applied when the rotation policy leaves a field unset.
const (
	defaultTargetSizeMB  = 64
	defaultMaxAgeSeconds = 300
	defaultQueueCap      = 1024
)

// Options configures one source's writer pipeline.
type Options struct {
	// Dir is the destination directory, created if missing.
	Dir string
	// Label is the source token embedded in filenames, e.g. "CloudTrail".
	Label string
	// Shards is the number of writer goroutines. Values below 1 mean one.
	Shards int
	// QueueCap bounds each shard's queue. Values below 1 use the default.
	QueueCap int
	Format   config.Format
	Files    config.Files
}

// Stats is a point-in-time snapshot of pipeline throughput.
type Stats struct {
	Events int64
	Bytes  int64
}

// Router fans events out to writer shards by (account, region) hash, so all
// files of one account and region are owned by exactly one goroutine. Write
// blocks when the target shard's queue is full; that is the pipeline's
// backpressure.
type Router struct {
	shards []*shard
	group  errgroup.Group
	closed bool

	failOnce sync.Once
	dead     atomic.Bool
	firstErr error
}

// NewRouter validates the options, creates the output directory and starts
// the shard goroutines.
func NewRouter(opts Options) (*Router, error) {
	factory, err := NewEncoderFactory(opts.Format)
	if err != nil {
		return nil, err
	}
	if opts.Label == "" {
		return nil, config.Errorf("output", "empty source label")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, err
	}

	n := opts.Shards
	if n < 1 {
		n = 1
	}
	queueCap := opts.QueueCap
	if queueCap < 1 {
		queueCap = defaultQueueCap
	}
	target := opts.Files.TargetSizeMB
	if target <= 0 {
		target = defaultTargetSizeMB
	}
	maxAge := opts.Files.MaxAgeSeconds
	if maxAge <= 0 {
		maxAge = defaultMaxAgeSeconds
	}

	r := &Router{shards: make([]*shard, n)}
	for i := range r.shards {
		s := &shard{
			id:          i,
			dir:         opts.Dir,
			label:       opts.Label,
			ext:         Extension(opts.Format),
			factory:     factory,
			targetBytes: target * (1 << 20),
			maxAge:      time.Duration(maxAge) * time.Second,
			queue:       make(chan *gen.Event, queueCap),
			streams:     make(map[streamKey]*stream),
		}
		s.fail = r.failWith
		r.shards[i] = s
		r.group.Go(s.run)
	}
	return r, nil
}

// Write routes one event, blocking while the target shard's queue is full.
// Writes after a shard failure are accepted and discarded; callers notice
// through Err.
func (r *Router) Write(ev *gen.Event) {
	r.shards[routeKey(ev.AccountID, ev.Region)%uint64(len(r.shards))].queue <- ev
}

// Err reports the first shard failure, or nil while the pipeline is healthy.
// It trips as soon as a shard fails, before Close, so producers can stop
// generating instead of filling a queue that discards.
func (r *Router) Err() error {
	if r.dead.Load() {
		return r.firstErr
	}
	return nil
}

func (r *Router) failWith(err error) {
	r.failOnce.Do(func() {
		r.firstErr = err
		r.dead.Store(true)
	})
}

// Close stops all shards, flushes and closes every open file, and returns the
// first error any shard hit. After an error the remaining shards still drain,
// so Close never deadlocks a half-failed pipeline.
func (r *Router) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	for _, s := range r.shards {
		close(s.queue)
	}
	return r.group.Wait()
}

// Stats sums throughput counters across shards. Safe to call concurrently
// with writes.
func (r *Router) Stats() Stats {
	var st Stats
	for _, s := range r.shards {
		st.Events += s.written.Load()
		st.Bytes += s.bytes.Load()
	}
	return st
}

func routeKey(account, region string) uint64 {
	h := fnv.New64()
	h.Write([]byte(account))
	h.Write([]byte{0})
	h.Write([]byte(region))
	return h.Sum64()
}
