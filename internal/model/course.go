package model

import "fmt"

// AnyClass is the target selector meaning "whichever class is available first".
const AnyClass = "any"

// CourseTypeCode is the protocol-specific type string a course bucket maps to (e.g. "XGXK").
type CourseTypeCode string

// ClassRecord is one enrollable section of a course as reported by the catalog.
type ClassRecord struct {
	CourseID string `json:"courseId"`
	ClassID  string `json:"classId"`
	Full     bool   `json:"full"`
	Conflict bool   `json:"conflict"`
	// Secret is the signed token some protocols require to submit a selection.
	Secret string `json:"-"`
}

// Available reports whether the section has a free seat and does not clash with the timetable.
func (r ClassRecord) Available() bool {
	return !r.Full && !r.Conflict
}

// EnrollmentJob identifies one enrollment target. It is immutable once built.
type EnrollmentJob struct {
	Bucket   string
	TypeCode CourseTypeCode
	CourseID string
	ClassID  string
}

// TargetsAny reports whether the job accepts any available class of its course.
func (j EnrollmentJob) TargetsAny() bool {
	return j.ClassID == "" || j.ClassID == AnyClass
}

// Name is the display name used by the status view: courseId or courseId[classId].
func (j EnrollmentJob) Name() string {
	if j.TargetsAny() {
		return j.CourseID
	}
	return fmt.Sprintf("%s[%s]", j.CourseID, j.ClassID)
}

// Outcome is the remote system's verdict on one selection attempt.
type Outcome struct {
	Success bool
	Message string
}
