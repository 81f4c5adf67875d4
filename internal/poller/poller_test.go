package poller

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"course-racer/internal/availability"
	"course-racer/internal/metrics"
	"course-racer/internal/model"
	"course-racer/internal/protocol"
)

// mockCatalog is a mock implementation of the Catalog interface.
type mockCatalog struct {
	mu    sync.Mutex
	calls []int
	Fetch func(ctx context.Context, bucket string, page, pageSize int) (protocol.CatalogPage, error)
}

func (m *mockCatalog) FetchCatalogPage(ctx context.Context, bucket string, page, pageSize int) (protocol.CatalogPage, error) {
	m.mu.Lock()
	m.calls = append(m.calls, page)
	m.mu.Unlock()
	return m.Fetch(ctx, bucket, page, pageSize)
}

func (m *mockCatalog) Calls() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.calls...)
}

func single(course, class string, full, conflict bool) protocol.CourseRow {
	return protocol.SingleClass{Record: model.ClassRecord{CourseID: course, ClassID: class, Full: full, Conflict: conflict}}
}

func TestPoller_PaginatesUntilTotalExhausted(t *testing.T) {
	catalog := &mockCatalog{Fetch: func(ctx context.Context, bucket string, page, pageSize int) (protocol.CatalogPage, error) {
		assert.Equal(t, 500, pageSize)
		return protocol.CatalogPage{Total: 1200, Rows: []protocol.CourseRow{single("x", "x", false, false)}}, nil
	}}
	p := New(catalog, availability.NewStore(), nil, Options{PageSize: 500})

	rows, err := p.fetchAll(context.Background(), "public")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, catalog.Calls())
	assert.Len(t, rows, 3)
}

func TestPoller_StopsOnEmptyPage(t *testing.T) {
	catalog := &mockCatalog{Fetch: func(ctx context.Context, bucket string, page, pageSize int) (protocol.CatalogPage, error) {
		return protocol.CatalogPage{Total: 0}, nil
	}}
	p := New(catalog, availability.NewStore(), nil, Options{PageSize: 500})

	_, err := p.fetchAll(context.Background(), "public")
	require.NoError(t, err)
	assert.Equal(t, []int{1}, catalog.Calls())
}

func TestPoller_PollOncePublishesTrackedAvailability(t *testing.T) {
	store := availability.NewStore()
	store.Publish("gone", []model.ClassRecord{{CourseID: "gone", ClassID: "old"}})
	store.Publish("full", []model.ClassRecord{{CourseID: "full", ClassID: "old"}})

	catalog := &mockCatalog{Fetch: func(ctx context.Context, bucket string, page, pageSize int) (protocol.CatalogPage, error) {
		return protocol.CatalogPage{Total: 4, Rows: []protocol.CourseRow{
			protocol.ClassGroup{CourseID: "12345", Classes: []model.ClassRecord{
				{CourseID: "12345", ClassID: "A"},
				{CourseID: "12345", ClassID: "B", Full: true},
				{CourseID: "12345", ClassID: "C", Conflict: true},
				{ClassID: "D"},
			}},
			single("full", "F1", true, false),
			single("untracked", "U1", false, false),
		}}, nil
	}}
	m := metrics.New()
	p := New(catalog, store, nil, Options{PageSize: 500, Metrics: m})

	err := p.PollOnce(context.Background(), Bucket{Name: "public", Courses: []string{"12345", "full", "gone"}})
	require.NoError(t, err)

	got, ok := store.Lookup("12345")
	require.True(t, ok)
	assert.Equal(t, []model.ClassRecord{
		{CourseID: "12345", ClassID: "A"},
		{CourseID: "12345", ClassID: "D"},
	}, got)

	_, ok = store.Lookup("full")
	assert.False(t, ok, "a course whose classes are all full is removed")
	_, ok = store.Lookup("gone")
	assert.False(t, ok, "a tracked course missing from the catalog is removed")
	_, ok = store.Lookup("untracked")
	assert.False(t, ok, "untracked courses are never published")

	assert.Equal(t, "public: fetched 6 records, 1 courses available, 2 classes available", p.Status())
}

func TestPoller_RetriesFailedFetchIndefinitely(t *testing.T) {
	var mu sync.Mutex
	failures := 3
	var statuses []string
	var p *Poller
	catalog := &mockCatalog{Fetch: func(ctx context.Context, bucket string, page, pageSize int) (protocol.CatalogPage, error) {
		mu.Lock()
		defer mu.Unlock()
		statuses = append(statuses, p.Status())
		if failures > 0 {
			failures--
			return protocol.CatalogPage{}, errors.New("502 bad gateway")
		}
		return protocol.CatalogPage{Total: 1, Rows: []protocol.CourseRow{single("1", "A", false, false)}}, nil
	}}
	store := availability.NewStore()
	p = New(catalog, store, nil, Options{})

	require.NoError(t, p.PollOnce(context.Background(), Bucket{Name: "gym", Courses: []string{"1"}}))

	assert.Equal(t, []int{1, 1, 1, 1}, catalog.Calls(), "the same page is retried")
	assert.Contains(t, statuses[1], "retrying #1")
	assert.Contains(t, statuses[3], "retrying #3")
	_, ok := store.Lookup("1")
	assert.True(t, ok)
}

func TestPoller_RunStopsOnCancel(t *testing.T) {
	started := make(chan struct{})
	var once sync.Once
	catalog := &mockCatalog{Fetch: func(ctx context.Context, bucket string, page, pageSize int) (protocol.CatalogPage, error) {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return protocol.CatalogPage{}, ctx.Err()
	}}
	p := New(catalog, availability.NewStore(), []Bucket{{Name: "public", Courses: []string{"1"}}}, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	<-started
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after cancellation")
	}
}

func TestPoller_RunCyclesBuckets(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var seen []string
	catalog := &mockCatalog{Fetch: func(_ context.Context, bucket string, page, pageSize int) (protocol.CatalogPage, error) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, bucket)
		if len(seen) == 4 {
			cancel()
		}
		return protocol.CatalogPage{Total: 0}, nil
	}}
	p := New(catalog, availability.NewStore(), []Bucket{{Name: "public"}, {Name: "gym"}}, Options{})

	err := p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"public", "gym", "public", "gym"}, seen)
}

func TestPoller_SummaryVisibleWhileRunning(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	catalog := &mockCatalog{Fetch: func(ctx context.Context, bucket string, page, pageSize int) (protocol.CatalogPage, error) {
		select {
		case <-time.After(20 * time.Millisecond):
		case <-ctx.Done():
			return protocol.CatalogPage{}, ctx.Err()
		}
		return protocol.CatalogPage{Total: 1, Rows: []protocol.CourseRow{single("12345", "A", false, false)}}, nil
	}}
	p := New(catalog, availability.NewStore(), []Bucket{{Name: "public", Courses: []string{"12345"}}, {Name: "gym"}}, Options{})

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	// Sample the status while fetches are in flight; the last summary must be what is shown.
	summaries := 0
	for i := 0; i < 50; i++ {
		time.Sleep(5 * time.Millisecond)
		st := p.Status()
		if strings.Contains(st, "fetched") {
			summaries++
		}
	}
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Greater(t, summaries, 30, "the summary stays up between publishes")
}
