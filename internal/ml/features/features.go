// Package features derives the model feature frame from student records.
//
// Build is the only place features are computed. Training and prediction
// both call it so the columns a model was fit on are reproduced exactly at
// scoring time.
package features

import (
	"math"
	"time"

	"dropout_risk_backend/internal/ml/benchmark"
	"dropout_risk_backend/internal/ml/dataset"
	"dropout_risk_backend/internal/model"

	"gonum.org/v1/gonum/stat"
)

// CohortMode decides whether a student is part of the cohort they are
// compared against.
type CohortMode int

const (
	// ExcludeSelf compares each student with the rest of the course.
	ExcludeSelf CohortMode = iota
	// IncludeSelf compares each student with the whole course.
	IncludeSelf
)

func (m CohortMode) String() string {
	if m == IncludeSelf {
		return "include_self"
	}
	return "exclude_self"
}

// ParseCohortMode is the inverse of String. Anything but include_self,
// including the empty string of older manifests, is ExcludeSelf.
func ParseCohortMode(s string) CohortMode {
	if s == "include_self" {
		return IncludeSelf
	}
	return ExcludeSelf
}

// Course length assumed by weeks_remaining.
const courseWeeks = 16

const (
	inactiveDays       = 7
	highlyInactiveDays = 14
	recencyWindowDays  = 30
	strugglingBelow    = 50
	atRiskBelow        = 40
)

type Options struct {
	// Now pins the clock for recency features. When zero, the stored
	// days_since_last_activity counter is used as is.
	Now time.Time
	// Benchmarks overrides the cohort aggregates per course. Courses missing
	// from the map are aggregated from the records.
	Benchmarks map[string]benchmark.CourseBenchmark
	Cohort     CohortMode
}

// EnrollmentPhase buckets weeks since enrollment: up to 2 very_early, up to
// 4 early, up to 8 mid, up to 12 late, beyond that very_late.
func EnrollmentPhase(weeks float64) string {
	switch {
	case weeks <= 2:
		return "very_early"
	case weeks <= 4:
		return "early"
	case weeks <= 8:
		return "mid"
	case weeks <= 12:
		return "late"
	default:
		return "very_late"
	}
}

// DaysInactive returns days since the last activity, derived from
// LastActivity when both it and now are set.
func DaysInactive(r *model.StudentFeature, now time.Time) float64 {
	if r.LastActivity == nil || now.IsZero() {
		return r.DaysSinceLastActivity
	}
	days := math.Floor(now.Sub(*r.LastActivity).Hours() / 24)
	return math.Max(days, 0)
}

// Build turns records into a feature frame with one row per record, in input
// order. It has no side effects and is deterministic for a fixed opts.Now.
func Build(records []model.StudentFeature, opts Options) *dataset.Frame {
	n := len(records)
	keys := make([]dataset.RowKey, n)
	for i := range records {
		keys[i] = dataset.RowKey{UserID: records[i].UserID, CourseID: records[i].CourseID}
	}
	f := dataset.NewFrame(keys)

	userIDs := make([]float64, n)
	courseIDs := make([]string, n)
	for i := range records {
		userIDs[i] = float64(records[i].UserID)
		courseIDs[i] = records[i].CourseID
	}
	f.SetNumeric("user_id", userIDs)
	f.SetCategorical("course_id", courseIDs)

	for _, field := range rawNumeric {
		col := make([]float64, n)
		for i := range records {
			col[i] = field.value(&records[i])
		}
		f.SetNumeric(field.name, col)
	}
	days := make([]float64, n)
	for i := range records {
		days[i] = DaysInactive(&records[i], opts.Now)
	}
	f.SetNumeric("days_since_last_activity", days)

	for _, field := range rawCategorical {
		col := make([]string, n)
		for i := range records {
			col[i] = field.value(&records[i])
		}
		f.SetCategorical(field.name, col)
	}

	outcomes(f, records)
	derived(f, records, days, cohorts(records, opts))
	return f
}

func outcomes(f *dataset.Frame, records []model.StudentFeature) {
	n := len(records)
	grade := make([]float64, n)
	moocPassed := make([]float64, n)
	passed := make([]float64, n)
	for i := range records {
		r := &records[i]
		grade[i] = math.NaN()
		if r.MoocGradePercentage != nil {
			grade[i] = *r.MoocGradePercentage
		}
		moocPassed[i] = triState(r.MoocIsPassed)
		passed[i] = triState(r.IsPassed)
	}
	f.SetNumeric("mooc_grade_percentage", grade)
	f.SetNumeric("mooc_is_passed", moocPassed)
	f.SetNumeric(TargetColumn, passed)
}

func triState(b *bool) float64 {
	if b == nil {
		return math.NaN()
	}
	return b2f(*b)
}

// cohort is the comparison baseline of one row.
type cohort struct {
	bench         benchmark.CourseBenchmark
	maxDiscussion float64
}

func cohorts(records []model.StudentFeature, opts Options) []cohort {
	accs := make(map[string]*benchmark.Accumulator)
	for i := range records {
		id := records[i].CourseID
		if _, ok := accs[id]; !ok {
			accs[id] = benchmark.NewAccumulator(id)
		}
		accs[id].Add(&records[i])
	}
	full := make(map[string]benchmark.CourseBenchmark, len(accs))
	for id, acc := range accs {
		full[id] = acc.Benchmark()
	}

	out := make([]cohort, len(records))
	for i := range records {
		r := &records[i]
		whole := full[r.CourseID]
		c := cohort{bench: whole, maxDiscussion: whole.DiscussionMaxInteractions}

		if b, ok := opts.Benchmarks[r.CourseID]; ok {
			c.bench = b
			c.maxDiscussion = math.Max(c.maxDiscussion, b.DiscussionMaxInteractions)
		} else if opts.Cohort == ExcludeSelf {
			acc := accs[r.CourseID]
			acc.Remove(r)
			// a student alone in a course is compared with themselves
			if acc.Len() > 0 {
				c.bench = acc.Benchmark()
			}
			acc.Add(r)
		}
		out[i] = c
	}
	return out
}

func derived(f *dataset.Frame, records []model.StudentFeature, days []float64, cohorts []cohort) {
	n := len(records)
	cols := newColumnSet(n)

	for i := range records {
		r := &records[i]
		c := cohorts[i]
		completion := r.MoocCompletionRate
		video := r.VideoCompletionRate
		h5p := r.H5PCompletionRate
		interactions := float64(r.DiscussionTotalInteractions)

		discussionScore := interactions / nonZero(c.maxDiscussion) * 100
		engagement := 0.25*discussionScore + 0.25*video + 0.25*h5p + 0.25*r.QuizAvgScore
		recency := 100 - clamp(days[i]/recencyWindowDays*100, 0, 100)

		cols.set("discussion_score", i, discussionScore)
		cols.set("engagement_score", i, zeroNaN(engagement))
		cols.set("activity_recency", i, recency)
		cols.set("activity_consistency", i, (zeroNaN(engagement)+recency)/2)
		cols.set("is_inactive", i, b2f(days[i] > inactiveDays))
		cols.set("is_highly_inactive", i, b2f(days[i] > highlyInactiveDays))

		cols.set("relative_completion", i, completion-c.bench.AvgCompletion)
		cols.set("is_struggling", i, b2f(completion < strugglingBelow || video < strugglingBelow || h5p < strugglingBelow))
		cols.set("is_at_risk", i, b2f(completion < atRiskBelow))
		cols.set("completion_consistency", i, stat.StdDev([]float64{completion, video, h5p}, nil))

		discussionRate := interactions / nonZero(c.bench.DiscussionAvgInteractions)
		videoRate := video / 100
		h5pRate := h5p / 100
		cols.set("discussion_engagement_rate", i, discussionRate)
		cols.set("has_no_discussion", i, b2f(interactions == 0))
		cols.set("video_engagement_rate", i, videoRate)
		cols.set("h5p_engagement_rate", i, h5pRate)
		cols.set("interaction_score", i, (0.4*discussionRate+0.3*videoRate+0.3*h5pRate)*100)

		weeks := r.WeeksSinceEnrollment
		cols.set("weeks_remaining", i, clamp(courseWeeks-weeks, 0, courseWeeks))
		cols.set("progress_rate", i, completion/math.Max(weeks, 1))

		cmp := benchmark.Compare(benchmark.MetricsOf(r), c.bench)
		cols.set("relative_to_course_problem_score", i, cmp.RelativeProblemScore)
		cols.set("relative_to_course_completion", i, cmp.RelativeCompletion)
		cols.set("relative_to_course_video_completion", i, cmp.RelativeVideoCompletion)
		cols.set("relative_to_course_discussion", i, cmp.RelativeDiscussion)
		cols.set("performance_percentile", i, cmp.PerformancePercentile)
		cols.set("is_below_course_average", i, b2f(cmp.IsBelowCourseAverage))
		cols.set("is_top_performer", i, b2f(cmp.IsTopPerformer))
		cols.set("is_bottom_performer", i, b2f(cmp.IsBottomPerformer))
	}
	cols.writeTo(f)

	phase := make([]string, n)
	for i := range records {
		phase[i] = EnrollmentPhase(records[i].WeeksSinceEnrollment)
	}
	f.SetCategorical("enrollment_phase", phase)
}

// columnSet collects numeric columns row by row and keeps first-set order.
type columnSet struct {
	n     int
	order []string
	data  map[string][]float64
}

func newColumnSet(n int) *columnSet {
	return &columnSet{n: n, data: make(map[string][]float64)}
}

func (c *columnSet) set(name string, row int, v float64) {
	col, ok := c.data[name]
	if !ok {
		col = make([]float64, c.n)
		c.data[name] = col
		c.order = append(c.order, name)
	}
	col[row] = v
}

func (c *columnSet) writeTo(f *dataset.Frame) {
	for _, name := range c.order {
		f.SetNumeric(name, c.data[name])
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func nonZero(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}

func zeroNaN(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}
