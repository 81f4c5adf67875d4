package model

import "time"

// EnrollmentAttempt is the persisted log of a single selection submission.
type EnrollmentAttempt struct {
	ID          string         `gorm:"primaryKey;size:36" json:"id"`
	JobName     string         `gorm:"index;size:128;not null" json:"job"`
	CourseID    string         `gorm:"index;size:64;not null" json:"course_id"`
	ClassID     string         `gorm:"size:64;not null" json:"class_id"`
	TypeCode    CourseTypeCode `gorm:"size:32;not null" json:"type_code"`
	Success     bool           `gorm:"not null" json:"success"`
	Fallback    bool           `gorm:"not null" json:"fallback"`
	Message     string         `gorm:"not null" json:"message"`
	AttemptedAt time.Time      `gorm:"index;not null" json:"attempted_at"`
}
