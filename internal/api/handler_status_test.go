package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"course-racer/internal/availability"
	"course-racer/internal/history"
	"course-racer/internal/metrics"
	"course-racer/internal/model"
	"course-racer/internal/status"
)

type namedSource struct{ name, status string }

func (n namedSource) Name() string   { return n.name }
func (n namedSource) Status() string { return n.status }

type fakeHistory struct {
	got   history.Query
	items []model.EnrollmentAttempt
}

func (f *fakeHistory) RecordAttempt(context.Context, model.EnrollmentAttempt) error { return nil }

func (f *fakeHistory) Attempts(_ context.Context, q history.Query) ([]model.EnrollmentAttempt, error) {
	f.got = q
	return f.items, nil
}

type fakeDropper struct {
	got model.ClassRecord
	out model.Outcome
	err error
}

func (f *fakeDropper) TypeCode(bucket string) (model.CourseTypeCode, bool) {
	if bucket == "public" {
		return "XGKC", true
	}
	return "", false
}

func (f *fakeDropper) Drop(_ context.Context, _ model.CourseTypeCode, rec model.ClassRecord) (model.Outcome, error) {
	f.got = rec
	return f.out, f.err
}

func newRouter(d Deps) http.Handler {
	return NewRouter(NewHandler(d), RouterOptions{Metrics: metrics.New()})
}

func TestGetStatus(t *testing.T) {
	board := status.NewBoard()
	board.Add(namedSource{"catalog", "public: fetched 10 records, 1 courses available, 1 classes available"})
	board.Add(namedSource{"12345[A]", "waiting.."})
	board.Refresh()

	w := do(newRouter(Deps{Board: board}), http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"units":[
		{"name":"catalog","status":"public: fetched 10 records, 1 courses available, 1 classes available"},
		{"name":"12345[A]","status":"waiting.."}
	]}`, w.Body.String())
}

func TestGetAvailability(t *testing.T) {
	store := availability.NewStore()
	store.Publish("b", []model.ClassRecord{{CourseID: "b", ClassID: "2", Secret: "hidden"}})
	store.Publish("a", []model.ClassRecord{{CourseID: "a", ClassID: "1"}})

	w := do(newRouter(Deps{Availability: store}), http.MethodGet, "/api/availability", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "hidden")

	var body struct {
		Courses []struct {
			CourseID string              `json:"course_id"`
			Classes  []model.ClassRecord `json:"classes"`
		} `json:"courses"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Courses, 2)
	assert.Equal(t, "a", body.Courses[0].CourseID)
	assert.Equal(t, "2", body.Courses[1].Classes[0].ClassID)
}

func TestGetAttempts(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		w := do(newRouter(Deps{}), http.MethodGet, "/api/attempts", "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("filters are passed through", func(t *testing.T) {
		h := &fakeHistory{items: []model.EnrollmentAttempt{{ID: "1", JobName: "12345[A]", Success: true}}}
		w := do(newRouter(Deps{History: h}), http.MethodGet, "/api/attempts?course=12345&success=true&limit=5", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, history.Query{CourseID: "12345", SuccessOnly: true, Limit: 5}, h.got)
		assert.Contains(t, w.Body.String(), `"job":"12345[A]"`)
	})

	t.Run("bad limit", func(t *testing.T) {
		w := do(newRouter(Deps{History: &fakeHistory{}}), http.MethodGet, "/api/attempts?limit=-1", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDropSelection(t *testing.T) {
	store := availability.NewStore()
	store.Publish("12345", []model.ClassRecord{{CourseID: "12345", ClassID: "A", Secret: "s-A"}})

	t.Run("uses the secret from the availability store", func(t *testing.T) {
		d := &fakeDropper{out: model.Outcome{Success: true, Message: "ok"}}
		w := do(newRouter(Deps{Availability: store, Dropper: d}), http.MethodDelete, "/api/selections",
			`{"bucket":"public","course_id":"12345","class_id":"A"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"success":true,"message":"ok"}`, w.Body.String())
		assert.Equal(t, model.ClassRecord{CourseID: "12345", ClassID: "A", Secret: "s-A"}, d.got)
	})

	t.Run("explicit secret wins", func(t *testing.T) {
		d := &fakeDropper{out: model.Outcome{Success: true}}
		do(newRouter(Deps{Availability: store, Dropper: d}), http.MethodDelete, "/api/selections",
			`{"bucket":"public","course_id":"12345","class_id":"A","secret":"mine"}`)
		assert.Equal(t, "mine", d.got.Secret)
	})

	t.Run("remote refusal", func(t *testing.T) {
		d := &fakeDropper{out: model.Outcome{Message: "not selected"}}
		w := do(newRouter(Deps{Dropper: d}), http.MethodDelete, "/api/selections",
			`{"bucket":"public","course_id":"1","class_id":"B"}`)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("transport failure", func(t *testing.T) {
		d := &fakeDropper{err: errors.New("timeout")}
		w := do(newRouter(Deps{Dropper: d}), http.MethodDelete, "/api/selections",
			`{"bucket":"public","course_id":"1","class_id":"B"}`)
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	t.Run("unknown bucket", func(t *testing.T) {
		w := do(newRouter(Deps{Dropper: &fakeDropper{}}), http.MethodDelete, "/api/selections",
			`{"bucket":"elective","course_id":"1","class_id":"B"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		w := do(newRouter(Deps{Dropper: &fakeDropper{}}), http.MethodDelete, "/api/selections", `{"bucket":"public"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetVAPIDPublicKey(t *testing.T) {
	w := do(newRouter(Deps{}), http.MethodGet, "/api/vapid_public_key", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = do(newRouter(Deps{WebPush: &webpush.Options{VAPIDPublicKey: "pub", TTL: 60}}), http.MethodGet, "/api/vapid_public_key", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"public_key":"pub","ttl":60}`, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	m.ObserveAttempt("12345[A]", true)
	r := NewRouter(NewHandler(Deps{}), RouterOptions{Metrics: m})

	w := do(r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "racer_enrolled_total 1")
}
