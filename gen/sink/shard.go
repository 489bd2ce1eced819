package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/seclog-dev/seclog/gen"
)

// stampLayout is the file timestamp, minute resolution in UTC.
const stampLayout = "20060102T1504Z"

type streamKey struct {
	account string
	region  string
}

// stream is one (account, region) file sequence inside a shard. Events for a
// key always land on the same shard, so a stream is single-writer and its
// sequence numbers are strictly increasing.
type stream struct {
	key      streamKey
	seq      int
	file     *os.File
	enc      Encoder
	size     int64
	openedAt time.Time
}

// shard consumes its queue and owns every stream routed to it. A write error
// is terminal for the whole pipeline: the shard reports it to the router
// right away so producers can stop, then keeps draining so they never block
// on a dead queue, discarding everything after the first failure.
type shard struct {
	id      int
	dir     string
	label   string
	ext     string
	factory EncoderFactory

	targetBytes int64
	maxAge      time.Duration

	queue   chan *gen.Event
	streams map[streamKey]*stream
	fail    func(error)

	written atomic.Int64
	bytes   atomic.Int64
}

func (s *shard) run() error {
	var failed error
	for ev := range s.queue {
		if failed != nil {
			continue
		}
		if err := s.write(ev); err != nil {
			failed = fmt.Errorf("shard %d: %w", s.id, err)
			logrus.WithError(failed).Error("writer shard failed, draining queue")
			s.fail(failed)
		}
	}
	if failed != nil {
		s.discardAll()
		return failed
	}
	return s.closeAll()
}

func (s *shard) write(ev *gen.Event) error {
	key := streamKey{account: ev.AccountID, region: ev.Region}
	st, ok := s.streams[key]
	if !ok {
		st = &stream{key: key}
		s.streams[key] = st
	}

	at := eventTime(ev)
	if st.file != nil && s.maxAge > 0 && at.Sub(st.openedAt) >= s.maxAge {
		if err := s.rotate(st); err != nil {
			return err
		}
	}
	if st.file == nil {
		if err := s.open(st, at); err != nil {
			return err
		}
	}

	n, err := st.enc.Encode(ev)
	if err != nil {
		return err
	}
	st.size += int64(n)
	s.written.Add(1)
	s.bytes.Add(int64(n))

	if st.size >= s.targetBytes {
		return s.rotate(st)
	}
	return nil
}

func (s *shard) open(st *stream, at time.Time) error {
	st.seq++
	name := fmt.Sprintf("%s_%s_%s_%s_%04d.%s",
		st.key.account, s.label, st.key.region, at.UTC().Format(stampLayout), st.seq, s.ext)
	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return err
	}
	enc, err := s.factory(f)
	if err != nil {
		f.Close()
		return err
	}
	st.file, st.enc, st.size, st.openedAt = f, enc, 0, at
	return nil
}

// rotate finalizes the current file. The encoder is closed before the file so
// compressor trailers and parquet footers land on disk intact.
func (s *shard) rotate(st *stream) error {
	if st.file == nil {
		return nil
	}
	encErr := st.enc.Close()
	fileErr := st.file.Close()
	st.file, st.enc = nil, nil
	if encErr != nil {
		return encErr
	}
	return fileErr
}

func (s *shard) closeAll() error {
	var first error
	for _, st := range s.streams {
		if err := s.rotate(st); err != nil && first == nil {
			first = fmt.Errorf("shard %d: %w", s.id, err)
		}
	}
	return first
}

func (s *shard) discardAll() {
	for _, st := range s.streams {
		if st.file != nil {
			st.enc.Close()
			st.file.Close()
			st.file, st.enc = nil, nil
		}
	}
}

// eventTime is the simulated time carried in the envelope. Rotation age and
// file stamps both follow simulated time, so a time-scaled run produces the
// same file layout as a real-time one.
func eventTime(ev *gen.Event) time.Time {
	t, err := time.Parse(time.RFC3339, ev.Envelope.Timestamp)
	if err != nil {
		return time.Now().UTC()
	}
	return t
}
