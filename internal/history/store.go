package history

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"course-racer/internal/model"
)

const defaultLimit = 100

// Query filters the attempt log. Zero values match everything.
type Query struct {
	CourseID    string
	SuccessOnly bool
	Limit       int
}

// Store defines the interface for attempt history operations.
type Store interface {
	RecordAttempt(ctx context.Context, attempt model.EnrollmentAttempt) error
	Attempts(ctx context.Context, q Query) ([]model.EnrollmentAttempt, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) RecordAttempt(ctx context.Context, attempt model.EnrollmentAttempt) error {
	if err := s.db.WithContext(ctx).Create(&attempt).Error; err != nil {
		return fmt.Errorf("failed to record attempt for %s: %w", attempt.JobName, err)
	}
	return nil
}

// Attempts returns the newest attempts first.
func (s *gormStore) Attempts(ctx context.Context, q Query) ([]model.EnrollmentAttempt, error) {
	if q.Limit <= 0 || q.Limit > defaultLimit {
		q.Limit = defaultLimit
	}
	tx := s.db.WithContext(ctx).Model(&model.EnrollmentAttempt{})
	if q.CourseID != "" {
		tx = tx.Where("course_id = ?", q.CourseID)
	}
	if q.SuccessOnly {
		tx = tx.Where("success = ?", true)
	}

	var attempts []model.EnrollmentAttempt
	if err := tx.Order("attempted_at DESC").Limit(q.Limit).Find(&attempts).Error; err != nil {
		return nil, fmt.Errorf("failed to query attempts: %w", err)
	}
	return attempts, nil
}
