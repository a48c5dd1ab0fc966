package benchmark

import (
	"testing"

	"dropout_risk_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(userID uint, course string, completion float64) model.StudentFeature {
	return model.StudentFeature{UserID: userID, CourseID: course, MoocCompletionRate: completion}
}

func TestComputeMeanCompletion(t *testing.T) {
	records := []model.StudentFeature{
		record(1, "c1", 20),
		record(2, "c1", 50),
		record(3, "c1", 80),
		record(9, "other", 5),
	}

	b := Compute(records, "c1")
	assert.Equal(t, "c1", b.CourseID)
	assert.Equal(t, 3, b.StudentCount)
	assert.InDelta(t, 50.0, b.AvgCompletion, 1e-9)
}

func TestCompareNewStudentAgainstExistingCohort(t *testing.T) {
	cohort := []model.StudentFeature{
		record(1, "c1", 20),
		record(2, "c1", 50),
		record(3, "c1", 80),
	}
	b := Compute(cohort, "c1")

	newcomer := record(4, "c1", 80)
	c := Compare(MetricsOf(&newcomer), b)
	assert.InDelta(t, 30.0, c.RelativeCompletion, 1e-9)
}

func TestAccumulatorLeaveOneOut(t *testing.T) {
	records := []model.StudentFeature{
		record(1, "c1", 20),
		record(2, "c1", 50),
		record(3, "c1", 80),
		record(4, "c1", 80),
	}
	acc := NewAccumulator("c1")
	for i := range records {
		acc.Add(&records[i])
	}
	assert.InDelta(t, 57.5, acc.Benchmark().AvgCompletion, 1e-9)

	acc.Remove(&records[3])
	require.Equal(t, 3, acc.Len())
	assert.InDelta(t, 50.0, acc.Benchmark().AvgCompletion, 1e-9)
}

func TestAccumulatorMaxFollowsRemovals(t *testing.T) {
	a := model.StudentFeature{CourseID: "c1", DiscussionTotalInteractions: 3}
	b := model.StudentFeature{CourseID: "c1", DiscussionTotalInteractions: 12}
	acc := NewAccumulator("c1")
	acc.Add(&a)
	acc.Add(&b)
	assert.Equal(t, 12.0, acc.Benchmark().DiscussionMaxInteractions)

	acc.Remove(&b)
	assert.Equal(t, 3.0, acc.Benchmark().DiscussionMaxInteractions)
}

func TestEmptyAccumulator(t *testing.T) {
	b := NewAccumulator("c1").Benchmark()
	assert.Zero(t, b.StudentCount)
	assert.Zero(t, b.AvgCompletion)
}

func TestComparePercentileBuckets(t *testing.T) {
	b := CourseBenchmark{AvgCompletion: 50, AssessmentAvgScore: 50, VideoAvgCompletion: 50}

	tests := []struct {
		name       string
		metrics    StudentMetrics
		percentile float64
		top        bool
		bottom     bool
	}{
		{"far above", StudentMetrics{Completion: 100, ProblemScore: 100, VideoCompletion: 100, DiscussionInteractions: 50}, 90, true, false},
		{"slightly above", StudentMetrics{Completion: 60, ProblemScore: 50, VideoCompletion: 50, DiscussionInteractions: 25}, 60, false, false},
		{"slightly below", StudentMetrics{Completion: 40, ProblemScore: 50, VideoCompletion: 50, DiscussionInteractions: 25}, 40, false, false},
		{"far below", StudentMetrics{}, 10, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Compare(tt.metrics, b)
			assert.Equal(t, tt.percentile, c.PerformancePercentile)
			assert.Equal(t, tt.top, c.IsTopPerformer)
			assert.Equal(t, tt.bottom, c.IsBottomPerformer)
		})
	}
}

func TestCompareEmptyBenchmarkDefaults(t *testing.T) {
	c := Compare(StudentMetrics{Completion: 70, DiscussionInteractions: 4}, CourseBenchmark{})
	assert.Equal(t, float64(DefaultPercentile), c.PerformancePercentile)
	assert.Zero(t, c.RelativeCompletion)
	assert.Zero(t, c.RelativeProblemScore)
	// course video falls back to the student's own value
	assert.Zero(t, c.RelativeVideoCompletion)
	assert.Equal(t, 4.0, c.RelativeDiscussion)
	assert.False(t, c.IsTopPerformer)
	assert.False(t, c.IsBottomPerformer)
}

func TestRelativeDiscussionTruncates(t *testing.T) {
	c := Compare(StudentMetrics{DiscussionInteractions: 1}, CourseBenchmark{DiscussionAvgInteractions: 2.6})
	assert.Equal(t, -1.0, c.RelativeDiscussion)
}
