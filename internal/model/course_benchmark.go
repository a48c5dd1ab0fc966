package model

import "time"

// CourseStatsBenchmark caches the per-course aggregates. It can always be
// rebuilt from student_features.
// swagger:model CourseStatsBenchmark
type CourseStatsBenchmark struct {
	BaseModel
	CourseID                  string    `gorm:"size:100;uniqueIndex;not null" json:"courseId"`
	AssessmentAvgScore        float64   `json:"assessmentAvgScore"`
	ProgressAvgCompletion     float64   `json:"progressAvgCompletion"`
	VideoAvgCompletion        float64   `json:"videoAvgCompletion"`
	DiscussionAvgInteractions float64   `json:"discussionAvgInteractions"`
	DiscussionMaxInteractions float64   `json:"discussionMaxInteractions"`
	TotalStudents             int       `json:"totalStudents"`
	ComputedAt                time.Time `json:"computedAt"`
}

func (CourseStatsBenchmark) TableName() string {
	return "course_stats_benchmarks"
}
