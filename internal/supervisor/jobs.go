package supervisor

import (
	"go.uber.org/zap"

	"course-racer/config"
	"course-racer/internal/model"
	"course-racer/internal/poller"
)

// TypeResolver maps a bucket name to the protocol's course type code.
type TypeResolver interface {
	TypeCode(bucket string) (model.CourseTypeCode, bool)
}

// BuildJobs expands the course table into enrollment jobs, in file order. A course with no
// listed classes becomes one job that takes any class; otherwise there is one job per class.
// Buckets the protocol does not know are skipped with a warning.
func BuildJobs(table config.CourseTable, types TypeResolver, log *zap.Logger) []model.EnrollmentJob {
	if log == nil {
		log = zap.NewNop()
	}
	var jobs []model.EnrollmentJob
	for _, b := range table {
		code, ok := types.TypeCode(b.Bucket)
		if !ok {
			log.Warn("skipping unknown course bucket", zap.String("bucket", b.Bucket))
			continue
		}
		for _, c := range b.Courses {
			if len(c.Classes) == 0 {
				jobs = append(jobs, model.EnrollmentJob{Bucket: b.Bucket, TypeCode: code, CourseID: c.CourseID, ClassID: model.AnyClass})
				continue
			}
			for _, class := range c.Classes {
				jobs = append(jobs, model.EnrollmentJob{Bucket: b.Bucket, TypeCode: code, CourseID: c.CourseID, ClassID: class})
			}
		}
	}
	return jobs
}

// PollBuckets lists the buckets the poller walks, one per open type, each tracking the courses
// configured under it. Jobs in a bucket that is not open can never see availability; that is
// logged rather than treated as fatal.
func PollBuckets(openTypes []string, jobs []model.EnrollmentJob, log *zap.Logger) []poller.Bucket {
	if log == nil {
		log = zap.NewNop()
	}
	open := make(map[string]bool, len(openTypes))
	buckets := make([]poller.Bucket, 0, len(openTypes))
	index := make(map[string]int, len(openTypes))
	for _, t := range openTypes {
		if open[t] {
			continue
		}
		open[t] = true
		index[t] = len(buckets)
		buckets = append(buckets, poller.Bucket{Name: t})
	}

	seen := make(map[string]bool)
	for _, j := range jobs {
		key := j.Bucket + "/" + j.CourseID
		if seen[key] {
			continue
		}
		seen[key] = true
		i, ok := index[j.Bucket]
		if !ok {
			log.Warn("course is configured under a bucket that is not polled",
				zap.String("bucket", j.Bucket), zap.String("course", j.CourseID))
			continue
		}
		buckets[i].Courses = append(buckets[i].Courses, j.CourseID)
	}
	return buckets
}
