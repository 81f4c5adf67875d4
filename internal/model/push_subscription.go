package model

import "time"

// PushSubscription holds a browser push subscription interested in enrollment results.
// An empty CourseID subscribes to every course.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CourseID  string    `gorm:"size:64;not null;default:''"`
	CreatedAt time.Time `gorm:"not null"`
}
