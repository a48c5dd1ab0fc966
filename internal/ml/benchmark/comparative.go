package benchmark

import (
	"math"

	"dropout_risk_backend/internal/model"
)

// DefaultPercentile is reported when the course composite score is zero.
const DefaultPercentile = 50

// StudentMetrics are the raw values a student is compared on.
type StudentMetrics struct {
	ProblemScore           float64
	Completion             float64
	VideoCompletion        float64
	DiscussionInteractions float64
}

func MetricsOf(r *model.StudentFeature) StudentMetrics {
	return StudentMetrics{
		ProblemScore:           r.QuizAvgScore,
		Completion:             r.MoocCompletionRate,
		VideoCompletion:        r.VideoCompletionRate,
		DiscussionInteractions: float64(r.DiscussionTotalInteractions),
	}
}

// Comparative is a student's position relative to a course benchmark.
type Comparative struct {
	RelativeProblemScore    float64 `json:"relative_to_course_problem_score"`
	RelativeCompletion      float64 `json:"relative_to_course_completion"`
	RelativeVideoCompletion float64 `json:"relative_to_course_video_completion"`
	RelativeDiscussion      float64 `json:"relative_to_course_discussion"`
	PerformancePercentile   float64 `json:"performance_percentile"`
	IsBelowCourseAverage    bool    `json:"is_below_course_average"`
	IsTopPerformer          bool    `json:"is_top_performer"`
	IsBottomPerformer       bool    `json:"is_bottom_performer"`
}

// Compare places m against b.
//
// The percentile is a coarse bucket of the relative deviation of a weighted
// composite (40% completion, 30% problem score, 30% engagement) from the
// course composite, not a rank against the cohort distribution.
func Compare(m StudentMetrics, b CourseBenchmark) Comparative {
	c := Comparative{PerformancePercentile: DefaultPercentile}

	if b.AssessmentAvgScore > 0 {
		c.RelativeProblemScore = round2(m.ProblemScore - b.AssessmentAvgScore)
	}
	if b.AvgCompletion > 0 {
		c.RelativeCompletion = round2(m.Completion - b.AvgCompletion)
	}
	courseVideo := b.VideoAvgCompletion
	if courseVideo == 0 {
		courseVideo = m.VideoCompletion
	}
	c.RelativeVideoCompletion = round2(m.VideoCompletion - courseVideo)
	c.RelativeDiscussion = math.Trunc(m.DiscussionInteractions - b.DiscussionAvgInteractions)

	engagement := (m.VideoCompletion + math.Min(m.DiscussionInteractions*2, 100)) / 2
	userScore := m.Completion*0.4 + m.ProblemScore*0.3 + engagement*0.3
	courseScore := b.AvgCompletion*0.4 + b.AssessmentAvgScore*0.3 + courseVideo*0.3

	if courseScore > 0 {
		c.PerformancePercentile = percentileBucket((userScore - courseScore) / courseScore)
	}
	c.IsBelowCourseAverage = userScore < courseScore
	c.IsTopPerformer = c.PerformancePercentile >= 75
	c.IsBottomPerformer = c.PerformancePercentile <= 25
	return c
}

func percentileBucket(deviation float64) float64 {
	switch {
	case deviation > 0.5:
		return 90
	case deviation > 0.25:
		return 75
	case deviation > 0:
		return 60
	case deviation > -0.25:
		return 40
	case deviation > -0.5:
		return 25
	default:
		return 10
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
