package availability

import (
	"sort"

	"github.com/patrickmn/go-cache"

	"course-racer/internal/model"
)

// Store maps a course ID to its currently available classes. The poller is the single writer;
// workers read concurrently. Each course's list is published as one immutable snapshot, so a
// reader never sees a list that is half old and half new.
type Store struct {
	c *cache.Cache
}

// NewStore creates an empty store. Entries never expire; the poller replaces them every cycle.
func NewStore() *Store {
	return &Store{c: cache.New(cache.NoExpiration, 0)}
}

// Publish replaces the available list for a course. An empty list removes the course.
func (s *Store) Publish(courseID string, records []model.ClassRecord) {
	if len(records) == 0 {
		s.c.Delete(courseID)
		return
	}
	snapshot := make([]model.ClassRecord, len(records))
	copy(snapshot, records)
	s.c.Set(courseID, snapshot, cache.NoExpiration)
}

// Lookup returns a copy of the course's current list, or false when nothing is available.
func (s *Store) Lookup(courseID string) ([]model.ClassRecord, bool) {
	v, ok := s.c.Get(courseID)
	if !ok {
		return nil, false
	}
	snapshot := v.([]model.ClassRecord)
	out := make([]model.ClassRecord, len(snapshot))
	copy(out, snapshot)
	return out, true
}

// Snapshot returns every course with availability. Courses may come from different poll cycles.
// The returned lists are shared and must not be modified.
func (s *Store) Snapshot() map[string][]model.ClassRecord {
	items := s.c.Items()
	out := make(map[string][]model.ClassRecord, len(items))
	for courseID, item := range items {
		out[courseID] = item.Object.([]model.ClassRecord)
	}
	return out
}

// Courses lists the course IDs that currently have availability, sorted.
func (s *Store) Courses() []string {
	items := s.c.Items()
	ids := make([]string, 0, len(items))
	for courseID := range items {
		ids = append(ids, courseID)
	}
	sort.Strings(ids)
	return ids
}
