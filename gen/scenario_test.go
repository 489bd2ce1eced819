package gen_test

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seclog-dev/seclog/gen"
	"github.com/seclog-dev/seclog/gen/cloudtrail"
	"github.com/seclog-dev/seclog/gen/config"
	"github.com/seclog-dev/seclog/gen/population"
	"github.com/seclog-dev/seclog/gen/rate"
	"github.com/seclog-dev/seclog/gen/sink"
)

// runScenario generates 100 events from a 10-actor population at a constant
// 5 events/s and returns the concatenated output, one line per event.
func runScenario(t *testing.T, queueCap int) []string {
	t.Helper()
	dir := t.TempDir()

	start := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

	humansOnly := 0.0
	pop, err := population.Build(population.Config{ActorCount: 10, ServiceRatio: &humansOnly}, 1, start)
	require.NoError(t, err)
	require.Equal(t, 10, pop.Len())

	model, err := rate.New(config.Traffic{
		Mode:            config.TrafficConstant,
		EventsPerSecond: 5,
	}, pop, 1)
	require.NoError(t, err)

	src, err := cloudtrail.New(cloudtrail.Config{}, pop)
	require.NoError(t, err)

	router, err := sink.NewRouter(sink.Options{
		Dir:      dir,
		Label:    cloudtrail.FileLabel,
		Shards:   2,
		QueueCap: queueCap,
		Format:   config.Format{Type: "jsonl"},
	})
	require.NoError(t, err)

	engine, err := gen.NewEngine(gen.EngineOptions{
		Seed:    gen.Seed(1),
		Clock:   gen.NewClock(start, 0),
		Model:   model,
		Streams: []gen.Stream{{Source: src, Sink: router}},
		Limits:  config.Limits{MaxEvents: 100},
	})
	require.NoError(t, err)

	require.NoError(t, engine.Run(context.Background()))
	require.NoError(t, router.Close())
	require.Equal(t, int64(100), router.Stats().Events)

	names, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	require.NoError(t, err)
	require.NotEmpty(t, names)
	sort.Strings(names)

	var lines []string
	for _, name := range names {
		f, err := os.Open(name)
		require.NoError(t, err)
		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 1<<20), 1<<20)
		for sc.Scan() {
			lines = append(lines, sc.Text())
		}
		require.NoError(t, sc.Err())
		f.Close()
	}
	return lines
}

func TestScenario_Completes(t *testing.T) {
	lines := runScenario(t, 0)
	require.Len(t, lines, 100)
	for _, line := range lines {
		assert.True(t, strings.Contains(line, `"envelope"`), "line is a full event: %s", line)
	}
}

func TestScenario_QueueCapOneStillCompletes(t *testing.T) {
	require.Len(t, runScenario(t, 1), 100)
}

func TestScenario_ReproducibleAcrossRuns(t *testing.T) {
	first := runScenario(t, 0)
	second := runScenario(t, 0)
	sort.Strings(first)
	sort.Strings(second)
	assert.Equal(t, first, second)
}
