package features

import (
	"dropout_risk_backend/internal/ml/dataset"
	"dropout_risk_backend/internal/model"
)

// TargetColumn holds the tri-state pass flag: 1 passed, 0 failed, NaN unknown.
const TargetColumn = "is_passed"

// ExcludedColumns never reach a classifier. They either identify the
// student, hold timestamps, or are only known once the course is over.
var ExcludedColumns = []string{
	"id", "user_id", "course_id", "username", "email", "full_name",
	TargetColumn, "is_dropout", "fail_risk_score", "risk_level",
	"mooc_grade_percentage", "mooc_letter_grade", "mooc_is_passed",
	"current_chapter", "current_section", "current_unit",
	"last_activity", "extraction_batch_id", "created_at", "updated_at",
}

var excluded = func() map[string]bool {
	m := make(map[string]bool, len(ExcludedColumns))
	for _, c := range ExcludedColumns {
		m[c] = true
	}
	return m
}()

func IsExcluded(name string) bool {
	return excluded[name]
}

// ModelColumns lists the frame columns a classifier may use, in frame order,
// and the subset of them that is categorical.
func ModelColumns(f *dataset.Frame) (names []string, categorical []string) {
	for _, name := range f.Names() {
		if IsExcluded(name) {
			continue
		}
		names = append(names, name)
		if k, _ := f.Kind(name); k == dataset.Categorical {
			categorical = append(categorical, name)
		}
	}
	return names, categorical
}

type numericField struct {
	name  string
	value func(r *model.StudentFeature) float64
}

// rawNumeric are copied from the record unchanged.
var rawNumeric = []numericField{
	{"weeks_since_enrollment", func(r *model.StudentFeature) float64 { return r.WeeksSinceEnrollment }},
	{"is_active", func(r *model.StudentFeature) float64 { return b2f(r.IsActive) }},
	{"progress_percent", func(r *model.StudentFeature) float64 { return r.ProgressPercent }},
	{"mooc_completion_rate", func(r *model.StudentFeature) float64 { return r.MoocCompletionRate }},
	{"overall_completion", func(r *model.StudentFeature) float64 { return r.OverallCompletion }},
	{"completed_blocks", func(r *model.StudentFeature) float64 { return float64(r.CompletedBlocks) }},
	{"total_blocks", func(r *model.StudentFeature) float64 { return float64(r.TotalBlocks) }},
	{"access_frequency", func(r *model.StudentFeature) float64 { return r.AccessFrequency }},
	{"active_days", func(r *model.StudentFeature) float64 { return float64(r.ActiveDays) }},
	{"h5p_total_contents", func(r *model.StudentFeature) float64 { return float64(r.H5PTotalContents) }},
	{"h5p_completed_contents", func(r *model.StudentFeature) float64 { return float64(r.H5PCompletedContents) }},
	{"h5p_total_score", func(r *model.StudentFeature) float64 { return r.H5PTotalScore }},
	{"h5p_total_max_score", func(r *model.StudentFeature) float64 { return r.H5PTotalMaxScore }},
	{"h5p_overall_percentage", func(r *model.StudentFeature) float64 { return r.H5POverallPercentage }},
	{"h5p_total_time_spent", func(r *model.StudentFeature) float64 { return r.H5PTotalTimeSpent }},
	{"h5p_completion_rate", func(r *model.StudentFeature) float64 { return r.H5PCompletionRate }},
	{"video_total_videos", func(r *model.StudentFeature) float64 { return float64(r.VideoTotalVideos) }},
	{"video_completed_videos", func(r *model.StudentFeature) float64 { return float64(r.VideoCompletedVideos) }},
	{"video_total_duration", func(r *model.StudentFeature) float64 { return r.VideoTotalDuration }},
	{"video_total_watched_time", func(r *model.StudentFeature) float64 { return r.VideoTotalWatchedTime }},
	{"video_completion_rate", func(r *model.StudentFeature) float64 { return r.VideoCompletionRate }},
	{"video_watch_rate", func(r *model.StudentFeature) float64 { return r.VideoWatchRate }},
	{"quiz_attempts", func(r *model.StudentFeature) float64 { return float64(r.QuizAttempts) }},
	{"quiz_avg_score", func(r *model.StudentFeature) float64 { return r.QuizAvgScore }},
	{"quiz_completion_rate", func(r *model.StudentFeature) float64 { return r.QuizCompletionRate }},
	{"discussion_threads_count", func(r *model.StudentFeature) float64 { return float64(r.DiscussionThreadsCount) }},
	{"discussion_comments_count", func(r *model.StudentFeature) float64 { return float64(r.DiscussionCommentsCount) }},
	{"discussion_total_interactions", func(r *model.StudentFeature) float64 { return float64(r.DiscussionTotalInteractions) }},
	{"discussion_questions_count", func(r *model.StudentFeature) float64 { return float64(r.DiscussionQuestionsCount) }},
	{"discussion_total_upvotes", func(r *model.StudentFeature) float64 { return float64(r.DiscussionTotalUpvotes) }},
}

type categoricalField struct {
	name  string
	value func(r *model.StudentFeature) string
}

var rawCategorical = []categoricalField{
	{"enrollment_mode", func(r *model.StudentFeature) string { return r.EnrollmentMode }},
	{"current_chapter", func(r *model.StudentFeature) string { return r.CurrentChapter }},
	{"current_section", func(r *model.StudentFeature) string { return r.CurrentSection }},
	{"current_unit", func(r *model.StudentFeature) string { return r.CurrentUnit }},
	{"mooc_letter_grade", func(r *model.StudentFeature) string {
		if r.MoocLetterGrade == nil {
			return ""
		}
		return *r.MoocLetterGrade
	}},
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
