package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shelfwatch/catalog-crawler/internal/crawler"
	"github.com/shelfwatch/catalog-crawler/internal/pacing"
)

type fakeDoc struct{}

func (fakeDoc) QueryAll(string) ([]crawler.Element, error) { return nil, nil }
func (fakeDoc) Close() error                               { return nil }

// fakeRenderer tracks concurrent Render calls and submission times.
type fakeRenderer struct {
	mu          sync.Mutex
	inFlight    int
	peak        int
	submissions []time.Time
	workTime    time.Duration
	failURLs    map[string]bool
}

func (r *fakeRenderer) Render(_ context.Context, req crawler.RenderRequest) (crawler.Document, error) {
	r.mu.Lock()
	r.inFlight++
	if r.inFlight > r.peak {
		r.peak = r.inFlight
	}
	r.submissions = append(r.submissions, time.Now())
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.inFlight--
		r.mu.Unlock()
	}()

	if r.workTime > 0 {
		time.Sleep(r.workTime)
	}
	if r.failURLs[req.URL] {
		return nil, errors.New("navigation failed")
	}
	return fakeDoc{}, nil
}

func (r *fakeRenderer) Close(context.Context) error { return nil }

func (r *fakeRenderer) peakConcurrency() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.peak
}

type fakeExtractor struct{}

func (fakeExtractor) Extract(crawler.Document) ([]string, []string, error) {
	return []string{}, []string{}, nil
}

// fakeSink records persisted names and fails the ones listed in failNames.
type fakeSink struct {
	mu        sync.Mutex
	persisted []string
	failNames map[string]bool
}

func (s *fakeSink) Persist(_ context.Context, rec crawler.ProductRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNames[rec.Name] {
		return errors.New("insert failed")
	}
	s.persisted = append(s.persisted, rec.Name)
	return nil
}

func (s *fakeSink) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.persisted))
	copy(out, s.persisted)
	return out
}

type fakeIDs struct{ n int }

func (g *fakeIDs) NewID() (string, error) {
	g.n++
	return fmt.Sprintf("id-%d", g.n), nil
}

// recordingPacer counts which indices were paced.
type recordingPacer struct {
	delay   time.Duration
	mu      sync.Mutex
	indices []int
}

func (p *recordingPacer) Delay(index int) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.indices = append(p.indices, index)
	return p.delay
}

func summaries(names ...string) []crawler.ItemSummary {
	out := make([]crawler.ItemSummary, len(names))
	for i, name := range names {
		out[i] = crawler.ItemSummary{
			Name:      name,
			DetailURL: "https://example.com/p/" + name,
		}
	}
	return out
}

func newScheduler(concurrency int, r *fakeRenderer, s crawler.Sink, p crawler.Pacer) *Scheduler {
	return New(
		Config{Site: "Test", Concurrency: concurrency, NavTimeout: time.Second},
		r,
		fakeExtractor{},
		s,
		p,
		&fakeIDs{},
		zap.NewNop(),
	)
}

func TestProcessRespectsConcurrencyBound(t *testing.T) {
	t.Parallel()

	renderer := &fakeRenderer{workTime: 50 * time.Millisecond}
	sink := &fakeSink{}
	sched := newScheduler(3, renderer, sink, pacing.None{})

	items := summaries("a", "b", "c", "d", "e", "f", "g", "h", "i", "j")
	run := crawler.CrawlRun{ID: "run-1", StartedAt: time.Unix(1700000000, 0)}

	stats, err := sched.Process(context.Background(), run, items)
	require.NoError(t, err)
	require.Equal(t, 10, stats.Attempted)
	require.Equal(t, 10, stats.Persisted)

	require.LessOrEqual(t, renderer.peakConcurrency(), 3)
	require.GreaterOrEqual(t, renderer.peakConcurrency(), 2, "fetches should overlap")
}

func TestProcessPacesSubmissionsExceptAfterLast(t *testing.T) {
	t.Parallel()

	renderer := &fakeRenderer{}
	sink := &fakeSink{}
	pacer := &recordingPacer{delay: 20 * time.Millisecond}
	sched := newScheduler(10, renderer, sink, pacer)

	run := crawler.CrawlRun{ID: "run-1", StartedAt: time.Unix(1700000000, 0)}
	start := time.Now()
	_, err := sched.Process(context.Background(), run, summaries("a", "b", "c"))
	require.NoError(t, err)

	// The pacer holds the submission slot after every item but the last.
	require.Equal(t, []int{0, 1}, pacer.indices)
	require.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestProcessDrainsBeforeReturning(t *testing.T) {
	t.Parallel()

	renderer := &fakeRenderer{workTime: 30 * time.Millisecond}
	sink := &fakeSink{}
	sched := newScheduler(2, renderer, sink, pacing.None{})

	run := crawler.CrawlRun{ID: "run-1", StartedAt: time.Unix(1700000000, 0)}
	stats, err := sched.Process(context.Background(), run, summaries("a", "b", "c", "d"))
	require.NoError(t, err)

	// Every item reached a terminal outcome before Process returned.
	require.Equal(t, 4, stats.Persisted+stats.Failed)
	require.Len(t, sink.names(), 4)
}

func TestProcessIsolatesPersistFailures(t *testing.T) {
	t.Parallel()

	renderer := &fakeRenderer{}
	sink := &fakeSink{failNames: map[string]bool{"b": true}}
	sched := newScheduler(2, renderer, sink, pacing.None{})

	run := crawler.CrawlRun{ID: "run-1", StartedAt: time.Unix(1700000000, 0)}
	stats, err := sched.Process(context.Background(), run, summaries("a", "b", "c"))
	require.NoError(t, err)

	require.Equal(t, 2, stats.Persisted)
	require.Equal(t, 1, stats.Failed)
	require.ElementsMatch(t, []string{"a", "c"}, sink.names())
}

func TestProcessIsolatesFetchFailures(t *testing.T) {
	t.Parallel()

	renderer := &fakeRenderer{failURLs: map[string]bool{"https://example.com/p/b": true}}
	sink := &fakeSink{}
	sched := newScheduler(2, renderer, sink, pacing.None{})

	run := crawler.CrawlRun{ID: "run-1", StartedAt: time.Unix(1700000000, 0)}
	stats, err := sched.Process(context.Background(), run, summaries("a", "b", "c"))
	require.NoError(t, err)

	require.Equal(t, 2, stats.Persisted)
	require.Equal(t, 1, stats.Failed)
	require.ElementsMatch(t, []string{"a", "c"}, sink.names())
}

func TestProcessStampsRunIdentity(t *testing.T) {
	t.Parallel()

	renderer := &fakeRenderer{}
	started := time.Unix(1700000000, 0).UTC()
	var got crawler.ProductRecord
	sink := &captureSink{records: &got}
	sched := newScheduler(1, renderer, sink, pacing.None{})

	run := crawler.CrawlRun{ID: "run-xyz", StartedAt: started}
	_, err := sched.Process(context.Background(), run, summaries("a"))
	require.NoError(t, err)

	require.Equal(t, "run-xyz", got.RunID)
	require.Equal(t, started, got.ScrapedAt, "records reuse the run timestamp")
	require.Equal(t, "Test", got.Site)
	require.NotEmpty(t, got.ID)
}

func TestProcessStopsSubmittingOnCancel(t *testing.T) {
	t.Parallel()

	renderer := &fakeRenderer{}
	sink := &fakeSink{}
	pacer := &recordingPacer{delay: time.Hour}
	sched := newScheduler(1, renderer, sink, pacer)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	run := crawler.CrawlRun{ID: "run-1", StartedAt: time.Unix(1700000000, 0)}
	stats, err := sched.Process(ctx, run, summaries("a", "b", "c"))
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, stats.Attempted, "pacing wait should stop further submissions")
}

type captureSink struct {
	mu      sync.Mutex
	records *crawler.ProductRecord
}

func (s *captureSink) Persist(_ context.Context, rec crawler.ProductRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	*s.records = rec
	return nil
}
