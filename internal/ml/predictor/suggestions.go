package predictor

import (
	"fmt"
	"sort"

	"dropout_risk_backend/internal/model"
)

// Priority orders suggestions; higher is more urgent.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	}
	return 2
}

// Suggestion is an intervention proposed to the instructor.
type Suggestion struct {
	Type        string   `json:"type"`
	Icon        string   `json:"icon"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
}

// Rule thresholds, on the raw record metrics.
const (
	urgentInactiveDays   = 14
	reminderInactiveDays = 7
	lowGradeBelow        = 50
	lowCompletionBelow   = 40
	lowVideoBelow        = 50
	lowQuizBelow         = 60
)

// ClassifyRisk maps a 0-100 risk score to its level: 70 and above is HIGH,
// 40 and above MEDIUM, anything lower LOW.
func ClassifyRisk(score float64) model.RiskLevel {
	switch {
	case score >= 70:
		return model.RiskHigh
	case score >= 40:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

// GenerateSuggestions evaluates the intervention rules in a fixed order
// against the raw metrics of r. daysInactive is passed in so the caller
// decides which clock it comes from. The final grade is only read here and
// never by the model. When no rule fires a single "keep going" suggestion
// is returned. For HIGH risk students the list is ordered by priority.
func GenerateSuggestions(r *model.StudentFeature, daysInactive float64, level model.RiskLevel) []Suggestion {
	var out []Suggestion

	if level == model.RiskHigh || daysInactive > urgentInactiveDays {
		out = append(out, Suggestion{
			Type:        "urgent",
			Icon:        "🚨",
			Title:       "Contact the student now",
			Description: "Meet or call the student to find out what is getting in the way",
			Priority:    PriorityHigh,
		})
	}
	if daysInactive > reminderInactiveDays {
		out = append(out, Suggestion{
			Type:        "warning",
			Icon:        "⏰",
			Title:       "Send a participation reminder",
			Description: fmt.Sprintf("No activity for %.0f days", daysInactive),
			Priority:    PriorityMedium,
		})
	}
	if r.MoocGradePercentage != nil && *r.MoocGradePercentage < lowGradeBelow {
		out = append(out, Suggestion{
			Type:        "academic",
			Icon:        "📚",
			Title:       "Offer academic support",
			Description: "Share extra material or invite the student to a tutorial",
			Priority:    PriorityHigh,
		})
	}
	if r.MoocCompletionRate < lowCompletionBelow {
		out = append(out, Suggestion{
			Type:        "progress",
			Icon:        "📈",
			Title:       "Encourage progress",
			Description: "Remind upcoming deadlines and push to finish pending units",
			Priority:    PriorityMedium,
		})
	}
	if r.DiscussionTotalInteractions == 0 {
		out = append(out, Suggestion{
			Type:        "engagement",
			Icon:        "💬",
			Title:       "Encourage discussion",
			Description: "Invite the student to post questions in the course forum",
			Priority:    PriorityLow,
		})
	}
	if r.VideoCompletionRate < lowVideoBelow {
		out = append(out, Suggestion{
			Type:        "content",
			Icon:        "🎥",
			Title:       "Watch the lectures",
			Description: "Remind the student to watch the remaining lecture videos",
			Priority:    PriorityMedium,
		})
	}
	if r.QuizAvgScore < lowQuizBelow {
		out = append(out, Suggestion{
			Type:        "assessment",
			Icon:        "✍️",
			Title:       "Practice more",
			Description: "Suggest practice exercises and review quizzes",
			Priority:    PriorityMedium,
		})
	}

	if len(out) == 0 {
		return []Suggestion{{
			Type:        "success",
			Icon:        "✅",
			Title:       "Keep it up",
			Description: "The student is on track, no intervention needed",
			Priority:    PriorityLow,
		}}
	}
	if level == model.RiskHigh {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Priority.rank() < out[j].Priority.rank()
		})
	}
	return out
}
