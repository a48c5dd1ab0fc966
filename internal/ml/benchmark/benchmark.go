// Package benchmark aggregates per-course statistics and compares a single
// student against them.
package benchmark

import (
	"math"
	"time"

	"dropout_risk_backend/internal/model"
)

// CourseBenchmark holds the cohort aggregates used as the denominator of the
// relative features. It is derived data and can be recomputed at any time.
type CourseBenchmark struct {
	CourseID                  string    `json:"courseId"`
	AssessmentAvgScore        float64   `json:"assessmentAvgScore"`
	AvgCompletion             float64   `json:"avgCompletion"`
	VideoAvgCompletion        float64   `json:"videoAvgCompletion"`
	DiscussionAvgInteractions float64   `json:"discussionAvgInteractions"`
	DiscussionMaxInteractions float64   `json:"discussionMaxInteractions"`
	StudentCount              int       `json:"studentCount"`
	ComputedAt                time.Time `json:"computedAt"`
}

// Accumulator keeps running sums of a course population so single students
// can be added or removed without a full pass over the cohort.
type Accumulator struct {
	courseID      string
	n             int
	sumQuiz       float64
	sumCompletion float64
	sumVideo      float64
	sumDiscussion float64
	discussion    map[float64]int
}

func NewAccumulator(courseID string) *Accumulator {
	return &Accumulator{courseID: courseID, discussion: make(map[float64]int)}
}

func (a *Accumulator) Add(r *model.StudentFeature) {
	a.n++
	a.sumQuiz += r.QuizAvgScore
	a.sumCompletion += r.MoocCompletionRate
	a.sumVideo += r.VideoCompletionRate
	d := float64(r.DiscussionTotalInteractions)
	a.sumDiscussion += d
	a.discussion[d]++
}

// Remove takes a previously added record out of the population.
func (a *Accumulator) Remove(r *model.StudentFeature) {
	d := float64(r.DiscussionTotalInteractions)
	if a.discussion[d] == 0 {
		return
	}
	a.n--
	a.sumQuiz -= r.QuizAvgScore
	a.sumCompletion -= r.MoocCompletionRate
	a.sumVideo -= r.VideoCompletionRate
	a.sumDiscussion -= d
	if a.discussion[d]--; a.discussion[d] == 0 {
		delete(a.discussion, d)
	}
}

func (a *Accumulator) Len() int {
	return a.n
}

// Benchmark snapshots the current population. An empty population yields a
// zero benchmark.
func (a *Accumulator) Benchmark() CourseBenchmark {
	b := CourseBenchmark{CourseID: a.courseID, StudentCount: a.n}
	if a.n == 0 {
		return b
	}
	n := float64(a.n)
	b.AssessmentAvgScore = a.sumQuiz / n
	b.AvgCompletion = a.sumCompletion / n
	b.VideoAvgCompletion = a.sumVideo / n
	b.DiscussionAvgInteractions = a.sumDiscussion / n
	for d := range a.discussion {
		b.DiscussionMaxInteractions = math.Max(b.DiscussionMaxInteractions, d)
	}
	return b
}

// Compute aggregates the records of one course. Records of other courses are
// ignored.
func Compute(records []model.StudentFeature, courseID string) CourseBenchmark {
	acc := NewAccumulator(courseID)
	for i := range records {
		if records[i].CourseID == courseID {
			acc.Add(&records[i])
		}
	}
	return acc.Benchmark()
}

// ComputeAll aggregates every course present in records.
func ComputeAll(records []model.StudentFeature) map[string]CourseBenchmark {
	accs := make(map[string]*Accumulator)
	for i := range records {
		acc, ok := accs[records[i].CourseID]
		if !ok {
			acc = NewAccumulator(records[i].CourseID)
			accs[records[i].CourseID] = acc
		}
		acc.Add(&records[i])
	}
	out := make(map[string]CourseBenchmark, len(accs))
	for id, acc := range accs {
		out[id] = acc.Benchmark()
	}
	return out
}

// FromRecord converts a cached row.
func FromRecord(r *model.CourseStatsBenchmark) CourseBenchmark {
	return CourseBenchmark{
		CourseID:                  r.CourseID,
		AssessmentAvgScore:        r.AssessmentAvgScore,
		AvgCompletion:             r.ProgressAvgCompletion,
		VideoAvgCompletion:        r.VideoAvgCompletion,
		DiscussionAvgInteractions: r.DiscussionAvgInteractions,
		DiscussionMaxInteractions: r.DiscussionMaxInteractions,
		StudentCount:              r.TotalStudents,
		ComputedAt:                r.ComputedAt,
	}
}

func (b CourseBenchmark) ToRecord() *model.CourseStatsBenchmark {
	return &model.CourseStatsBenchmark{
		CourseID:                  b.CourseID,
		AssessmentAvgScore:        b.AssessmentAvgScore,
		ProgressAvgCompletion:     b.AvgCompletion,
		VideoAvgCompletion:        b.VideoAvgCompletion,
		DiscussionAvgInteractions: b.DiscussionAvgInteractions,
		DiscussionMaxInteractions: b.DiscussionMaxInteractions,
		TotalStudents:             b.StudentCount,
		ComputedAt:                b.ComputedAt,
	}
}
