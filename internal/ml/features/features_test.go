package features

import (
	"math"
	"testing"
	"time"

	"dropout_risk_backend/internal/ml/benchmark"
	"dropout_risk_backend/internal/ml/dataset"
	"dropout_risk_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pinnedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func sampleRecords() []model.StudentFeature {
	last := pinnedNow.Add(-3 * 24 * time.Hour)
	return []model.StudentFeature{
		{
			UserID: 1, CourseID: "c1", EnrollmentMode: "audit", WeeksSinceEnrollment: 3,
			MoocCompletionRate: 20, VideoCompletionRate: 15, H5PCompletionRate: 10, QuizAvgScore: 30,
			DaysSinceLastActivity: 20, CurrentChapter: "ch1",
			IsPassed: ptr(false), MoocGradePercentage: ptr(12.0), MoocLetterGrade: ptr("F"),
		},
		{
			UserID: 2, CourseID: "c1", EnrollmentMode: "verified", WeeksSinceEnrollment: 9,
			MoocCompletionRate: 50, VideoCompletionRate: 60, H5PCompletionRate: 70, QuizAvgScore: 75,
			DiscussionTotalInteractions: 4, LastActivity: &last,
			IsPassed: ptr(true), MoocGradePercentage: ptr(81.0), MoocLetterGrade: ptr("B"),
		},
		{
			UserID: 3, CourseID: "c1", EnrollmentMode: "verified", WeeksSinceEnrollment: 14,
			MoocCompletionRate: 80, VideoCompletionRate: 90, H5PCompletionRate: 85, QuizAvgScore: 88,
			DiscussionTotalInteractions: 10, DaysSinceLastActivity: 1,
		},
	}
}

func column(t *testing.T, f *dataset.Frame, name string) []float64 {
	t.Helper()
	require.True(t, f.Has(name), "missing column %s", name)
	return f.Numeric(name)
}

func TestBuildIsDeterministic(t *testing.T) {
	opts := Options{Now: pinnedNow}
	a := Build(sampleRecords(), opts)
	b := Build(sampleRecords(), opts)

	require.Equal(t, a.Names(), b.Names())
	for _, name := range a.Names() {
		if k, _ := a.Kind(name); k == dataset.Categorical {
			assert.Equal(t, a.Categorical(name), b.Categorical(name), name)
			continue
		}
		av, bv := a.Numeric(name), b.Numeric(name)
		for i := range av {
			if math.IsNaN(av[i]) {
				assert.True(t, math.IsNaN(bv[i]), name)
				continue
			}
			assert.Equal(t, av[i], bv[i], name)
		}
	}
}

func TestStrugglingStudentScenario(t *testing.T) {
	f := Build(sampleRecords(), Options{Now: pinnedNow})

	assert.Equal(t, 1.0, column(t, f, "is_struggling")[0])
	assert.Equal(t, 1.0, column(t, f, "is_inactive")[0])
	assert.Equal(t, 1.0, column(t, f, "is_highly_inactive")[0])
	assert.Equal(t, 1.0, column(t, f, "has_no_discussion")[0])
	assert.Equal(t, 1.0, column(t, f, "is_at_risk")[0])
	assert.InDelta(t, 100-20.0/30*100, column(t, f, "activity_recency")[0], 1e-9)
}

func TestGradeFieldsDoNotLeakIntoFeatures(t *testing.T) {
	with := sampleRecords()
	without := sampleRecords()
	for i := range without {
		without[i].MoocGradePercentage = nil
		without[i].MoocLetterGrade = nil
		without[i].CurrentChapter = ""
		without[i].CurrentSection = ""
		without[i].CurrentUnit = ""
	}

	a := Build(with, Options{Now: pinnedNow})
	b := Build(without, Options{Now: pinnedNow})
	names, _ := ModelColumns(a)
	for _, name := range names {
		if k, _ := a.Kind(name); k == dataset.Categorical {
			assert.Equal(t, a.Categorical(name), b.Categorical(name), name)
			continue
		}
		assert.Equal(t, a.Numeric(name), b.Numeric(name), name)
	}
}

func TestModelColumnsExcludeLeakage(t *testing.T) {
	f := Build(sampleRecords(), Options{Now: pinnedNow})
	names, categorical := ModelColumns(f)

	for _, leak := range []string{
		"mooc_grade_percentage", "mooc_letter_grade", "mooc_is_passed", TargetColumn,
		"current_chapter", "current_section", "current_unit", "user_id", "course_id",
	} {
		assert.True(t, f.Has(leak), leak)
		assert.NotContains(t, names, leak)
	}
	assert.Contains(t, names, "engagement_score")
	assert.ElementsMatch(t, []string{"enrollment_mode", "enrollment_phase"}, categorical)
}

func TestDaysInactiveFromLastActivity(t *testing.T) {
	f := Build(sampleRecords(), Options{Now: pinnedNow})
	days := column(t, f, "days_since_last_activity")
	assert.Equal(t, []float64{20, 3, 1}, days)

	// without a pinned clock the stored counter wins
	f = Build(sampleRecords(), Options{})
	assert.Equal(t, 0.0, column(t, f, "days_since_last_activity")[1])
}

func TestEnrollmentPhase(t *testing.T) {
	cases := map[float64]string{
		0: "very_early", 2: "very_early", 2.5: "early", 4: "early",
		8: "mid", 12: "late", 12.1: "very_late", 40: "very_late",
	}
	for weeks, want := range cases {
		assert.Equal(t, want, EnrollmentPhase(weeks), "weeks=%v", weeks)
	}
}

func TestTargetIsTriState(t *testing.T) {
	f := Build(sampleRecords(), Options{Now: pinnedNow})
	passed := column(t, f, TargetColumn)
	assert.Equal(t, 0.0, passed[0])
	assert.Equal(t, 1.0, passed[1])
	assert.True(t, math.IsNaN(passed[2]))
}

func cohortRecords() []model.StudentFeature {
	return []model.StudentFeature{
		{UserID: 1, CourseID: "c1", MoocCompletionRate: 20},
		{UserID: 2, CourseID: "c1", MoocCompletionRate: 50},
		{UserID: 3, CourseID: "c1", MoocCompletionRate: 80},
		{UserID: 4, CourseID: "c1", MoocCompletionRate: 80},
	}
}

func TestCohortExcludesSelfByDefault(t *testing.T) {
	f := Build(cohortRecords(), Options{Now: pinnedNow})
	rel := column(t, f, "relative_to_course_completion")
	assert.InDelta(t, 30.0, rel[3], 1e-9)
	assert.InDelta(t, 30.0, column(t, f, "relative_completion")[3], 1e-9)
}

func TestCohortIncludeSelf(t *testing.T) {
	f := Build(cohortRecords(), Options{Now: pinnedNow, Cohort: IncludeSelf})
	rel := column(t, f, "relative_to_course_completion")
	assert.InDelta(t, 22.5, rel[3], 1e-9)
}

func TestPrecomputedBenchmarksAreUsedAsGiven(t *testing.T) {
	bench := map[string]benchmark.CourseBenchmark{
		"c1": {CourseID: "c1", AvgCompletion: 40, StudentCount: 100},
	}
	f := Build(cohortRecords(), Options{Now: pinnedNow, Benchmarks: bench})
	assert.InDelta(t, 40.0, column(t, f, "relative_to_course_completion")[3], 1e-9)
}

func TestSingleStudentCourseComparesWithSelf(t *testing.T) {
	f := Build([]model.StudentFeature{{UserID: 1, CourseID: "solo", MoocCompletionRate: 70}}, Options{Now: pinnedNow})
	assert.Zero(t, column(t, f, "relative_completion")[0])
}

func TestCoursesAreIndependent(t *testing.T) {
	records := append(cohortRecords(), model.StudentFeature{UserID: 9, CourseID: "c2", MoocCompletionRate: 5})
	f := Build(records, Options{Now: pinnedNow})
	assert.InDelta(t, 30.0, column(t, f, "relative_to_course_completion")[3], 1e-9)
}
