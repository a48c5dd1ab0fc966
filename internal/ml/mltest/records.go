// Package mltest generates synthetic student records for pipeline tests.
package mltest

import (
	"fmt"
	"math/rand"
	"time"

	"dropout_risk_backend/internal/model"
)

// Now is the clock tests pin feature engineering to.
var Now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

var modes = []string{"audit", "verified", "honor"}

// Records returns n labeled records spread over courses. Engaged students
// pass; students with low completion and long inactivity fail, with a few
// labels flipped so the problem is not perfectly separable.
func Records(n, courses int, seed int64) []model.StudentFeature {
	rng := rand.New(rand.NewSource(seed))
	out := make([]model.StudentFeature, n)
	for i := range out {
		completion := rng.Float64() * 100
		video := clamp(completion + rng.NormFloat64()*15)
		h5p := clamp(completion + rng.NormFloat64()*20)
		quiz := clamp(40 + completion*0.5 + rng.NormFloat64()*10)
		days := rng.Float64() * 30 * (1 - completion/120)
		last := Now.Add(-time.Duration(days*24) * time.Hour)

		passed := completion+rng.NormFloat64()*8 > 45
		if rng.Float64() < 0.03 {
			passed = !passed
		}
		grade := clamp(completion*0.9 + rng.NormFloat64()*5)

		out[i] = model.StudentFeature{
			UserID:                      uint(i + 1),
			CourseID:                    fmt.Sprintf("course-v1:Demo+C%d+2024", i%courses),
			EnrollmentMode:              modes[rng.Intn(len(modes))],
			IsActive:                    days < 14,
			WeeksSinceEnrollment:        float64(1 + rng.Intn(16)),
			ProgressPercent:             completion,
			MoocCompletionRate:          completion,
			OverallCompletion:           completion,
			CompletedBlocks:             int(completion / 5),
			TotalBlocks:                 20,
			LastActivity:                &last,
			DaysSinceLastActivity:       days,
			ActiveDays:                  rng.Intn(40),
			H5PTotalContents:            10,
			H5PCompletedContents:        int(h5p / 10),
			H5PCompletionRate:           h5p,
			VideoTotalVideos:            12,
			VideoCompletedVideos:        int(video / 100 * 12),
			VideoCompletionRate:         video,
			QuizAttempts:                rng.Intn(6),
			QuizAvgScore:                quiz,
			DiscussionTotalInteractions: rng.Intn(1 + int(completion/10)),
			IsPassed:                    &passed,
			MoocIsPassed:                &passed,
			MoocGradePercentage:         &grade,
		}
	}
	return out
}

// Unlabeled strips the outcome fields, as for currently enrolled students.
func Unlabeled(records []model.StudentFeature) []model.StudentFeature {
	out := make([]model.StudentFeature, len(records))
	copy(out, records)
	for i := range out {
		out[i].IsPassed = nil
		out[i].MoocIsPassed = nil
		out[i].MoocGradePercentage = nil
		out[i].MoocLetterGrade = nil
	}
	return out
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
