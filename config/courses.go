package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// CourseTargets lists the classes wanted for one course. No classes means any class will do.
type CourseTargets struct {
	CourseID string
	Classes  []string
}

// BucketCourses groups the course targets configured under one course-type bucket.
type BucketCourses struct {
	Bucket  string
	Courses []CourseTargets
}

// CourseTable is the `courses` section in file order, so jobs are listed the way they were written.
type CourseTable []BucketCourses

// UnmarshalYAML decodes `bucket: {courseId: [classId, ...]}` while keeping key order.
func (t *CourseTable) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		*t = nil
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: courses must be a mapping of bucket to courses", node.Line)
	}

	table := make(CourseTable, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		bucket := node.Content[i].Value
		coursesNode := node.Content[i+1]

		entry := BucketCourses{Bucket: bucket}
		switch {
		case coursesNode.Kind == yaml.ScalarNode && coursesNode.Tag == "!!null":
		case coursesNode.Kind == yaml.MappingNode:
			for j := 0; j+1 < len(coursesNode.Content); j += 2 {
				classes, err := decodeClasses(coursesNode.Content[j+1])
				if err != nil {
					return fmt.Errorf("courses.%s.%s: %w", bucket, coursesNode.Content[j].Value, err)
				}
				entry.Courses = append(entry.Courses, CourseTargets{
					CourseID: coursesNode.Content[j].Value,
					Classes:  classes,
				})
			}
		default:
			return fmt.Errorf("line %d: courses.%s must be a mapping of course to classes", coursesNode.Line, bucket)
		}
		table = append(table, entry)
	}

	*t = table
	return nil
}

// decodeClasses reads a class list, keeping numeric IDs verbatim instead of reformatting them.
func decodeClasses(node *yaml.Node) ([]string, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" || node.Value == "" {
			return nil, nil
		}
		return []string{node.Value}, nil
	case yaml.SequenceNode:
		classes := make([]string, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: class id must be a scalar", item.Line)
			}
			classes = append(classes, item.Value)
		}
		return classes, nil
	}
	return nil, fmt.Errorf("line %d: classes must be a list", node.Line)
}

// Bucket returns the courses configured for a bucket.
func (t CourseTable) Bucket(name string) (BucketCourses, bool) {
	for _, b := range t {
		if b.Bucket == name {
			return b, true
		}
	}
	return BucketCourses{}, false
}

// JobCount is the number of enrollment jobs the table expands to.
func (t CourseTable) JobCount() int {
	n := 0
	for _, b := range t {
		for _, c := range b.Courses {
			if len(c.Classes) == 0 {
				n++
			} else {
				n += len(c.Classes)
			}
		}
	}
	return n
}
