package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnrollmentJob_Name(t *testing.T) {
	assert.Equal(t, "12345", EnrollmentJob{CourseID: "12345"}.Name())
	assert.Equal(t, "12345", EnrollmentJob{CourseID: "12345", ClassID: AnyClass}.Name())
	assert.Equal(t, "12345[A]", EnrollmentJob{CourseID: "12345", ClassID: "A"}.Name())
}

func TestClassRecord_Available(t *testing.T) {
	assert.True(t, ClassRecord{}.Available())
	assert.False(t, ClassRecord{Full: true}.Available())
	assert.False(t, ClassRecord{Conflict: true}.Available())
}
