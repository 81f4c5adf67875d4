package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"course-racer/config"
	"course-racer/internal/availability"
	"course-racer/internal/db"
	"course-racer/internal/enroll"
	"course-racer/internal/history"
	"course-racer/internal/metrics"
	"course-racer/internal/model"
	"course-racer/internal/poller"
	"course-racer/internal/protocol"
	"course-racer/internal/session"
	"course-racer/internal/status"
	"course-racer/internal/supervisor"
)

// fakeRemote simulates the current selection system. Class A of course 12345 is full for the
// first few catalog fetches, then opens up; the first selection of an open class succeeds.
type fakeRemote struct {
	mu       sync.Mutex
	fetches  int
	selected []string
}

func (f *fakeRemote) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	switch r.URL.Path {
	case "/auth/login":
		enc.Encode(map[string]any{"code": 200, "data": map[string]any{"token": "t"}})
	case "/elective/user":
		enc.Encode(map[string]any{"code": 200, "data": map[string]any{"student": map[string]any{
			"campus":            "S",
			"electiveBatchList": []map[string]string{{"code": "R1", "name": "round one", "canSelect": "1"}},
		}}})
	case "/elective/clazz/list":
		f.fetches++
		full := "1"
		if f.fetches > 3 {
			full = "0"
		}
		enc.Encode(map[string]any{"code": 200, "data": map[string]any{
			"total": 2,
			"rows": []map[string]any{
				{"KCH": "12345", "tcList": []map[string]any{
					{"JXBID": "A", "SFYM": full, "SFCT": "0", "secretVal": "sig-A"},
					{"JXBID": "B", "SFYM": "1", "SFCT": "0", "secretVal": "sig-B"},
				}},
				{"KCH": "99999", "JXBID": "X", "SFYM": "0", "SFCT": "0"},
			},
		}})
	case "/elective/clazz/add":
		r.ParseForm()
		f.selected = append(f.selected, r.PostForm.Get("clazzId")+"/"+r.PostForm.Get("secretVal"))
		if len(f.selected) == 1 {
			enc.Encode(map[string]any{"code": 200, "msg": "ok"})
		} else {
			enc.Encode(map[string]any{"code": 500, "msg": "already selected"})
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// TestEnrollmentRace runs the poller, a worker and the supervisor against a fake remote and
// checks that the seat is taken exactly once and the attempt is persisted.
func TestEnrollmentRace(t *testing.T) {
	remote := &fakeRemote{}
	server := httptest.NewServer(remote)
	defer server.Close()

	testDB, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(testDB))
	hist := history.NewGormStore(testDB)

	sess, err := session.New(session.Options{BaseURL: server.URL, RateLimit: time.Millisecond})
	require.NoError(t, err)
	adapter := protocol.NewCurrent(sess)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, adapter.Login(ctx, "20001", "pw"))
	_, err = adapter.LoadRound(ctx)
	require.NoError(t, err)

	table := config.CourseTable{
		{Bucket: "public", Courses: []config.CourseTargets{{CourseID: "12345", Classes: []string{"Z"}}}},
	}
	jobs := supervisor.BuildJobs(table, adapter, nil)
	require.Len(t, jobs, 1)

	store := availability.NewStore()
	m := metrics.New()

	var frames sync.Mutex
	var last []status.Entry
	sup := supervisor.New(supervisor.Options{
		RefreshInterval: 5 * time.Millisecond,
		Grace:           time.Second,
		Sink: status.SinkFunc(func(entries []status.Entry) {
			frames.Lock()
			last = entries
			frames.Unlock()
		}),
	})
	sup.AddBackground(poller.New(adapter, store, supervisor.PollBuckets([]string{"public"}, jobs, nil), poller.Options{Metrics: m}))
	sup.Add(enroll.NewWorker(jobs[0], adapter, store, enroll.Options{
		WaitInterval: 5 * time.Millisecond,
		RetryPause:   time.Millisecond,
		Recorder:     hist,
		Metrics:      m,
	}))

	require.NoError(t, sup.Run(ctx), "the run ends by itself once the job is enrolled")
	require.NoError(t, ctx.Err())

	remote.mu.Lock()
	assert.Equal(t, []string{"A/sig-A"}, remote.selected, "the fallback class is submitted once with its secret")
	assert.Greater(t, remote.fetches, 3)
	remote.mu.Unlock()

	frames.Lock()
	require.Len(t, last, 2)
	assert.Equal(t, "catalog", last[0].Name)
	assert.Equal(t, "12345[Z]", last[1].Name)
	assert.Equal(t, "enrolled in class A: ok", last[1].Status)
	frames.Unlock()

	attempts, err := hist.Attempts(context.Background(), history.Query{CourseID: "12345"})
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, model.EnrollmentAttempt{
		ID:          attempts[0].ID,
		JobName:     "12345[Z]",
		CourseID:    "12345",
		ClassID:     "A",
		TypeCode:    "XGKC",
		Success:     true,
		Fallback:    true,
		Message:     "ok",
		AttemptedAt: attempts[0].AttemptedAt,
	}, attempts[0])

	_, tracked := store.Lookup("99999")
	assert.False(t, tracked, "untracked courses never reach the store")
}
