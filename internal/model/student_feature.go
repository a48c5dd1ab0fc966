package model

import (
	"time"
)

// StudentFeature is one learning-activity snapshot per (user, course).
// Outcome fields are only filled for students who finished the course.
// swagger:model StudentFeature
type StudentFeature struct {
	BaseModel
	UserID   uint   `gorm:"uniqueIndex:idx_user_course;not null" json:"userId"`
	CourseID string `gorm:"size:100;uniqueIndex:idx_user_course;not null" json:"courseId"`
	Username string `gorm:"size:100" json:"username"`
	Email    string `gorm:"size:100" json:"email"`
	FullName string `gorm:"size:100" json:"fullName"`

	// 选课信息
	EnrollmentMode       string  `gorm:"size:50" json:"enrollmentMode"`
	IsActive             bool    `gorm:"not null" json:"isActive"`
	WeeksSinceEnrollment float64 `json:"weeksSinceEnrollment"`

	// 学习进度
	ProgressPercent    float64 `json:"progressPercent"`
	MoocCompletionRate float64 `json:"moocCompletionRate"`
	OverallCompletion  float64 `json:"overallCompletion"`
	CompletedBlocks    int     `json:"completedBlocks"`
	TotalBlocks        int     `json:"totalBlocks"`
	CurrentChapter     string  `gorm:"size:255" json:"currentChapter"`
	CurrentSection     string  `gorm:"size:255" json:"currentSection"`
	CurrentUnit        string  `gorm:"size:255" json:"currentUnit"`

	// 活跃度
	LastActivity          *time.Time `json:"lastActivity"`
	DaysSinceLastActivity float64    `json:"daysSinceLastActivity"`
	AccessFrequency       float64    `json:"accessFrequency"`
	ActiveDays            int        `json:"activeDays"`

	// H5P 互动内容
	H5PTotalContents     int     `gorm:"column:h5p_total_contents" json:"h5pTotalContents"`
	H5PCompletedContents int     `gorm:"column:h5p_completed_contents" json:"h5pCompletedContents"`
	H5PTotalScore        float64 `gorm:"column:h5p_total_score" json:"h5pTotalScore"`
	H5PTotalMaxScore     float64 `gorm:"column:h5p_total_max_score" json:"h5pTotalMaxScore"`
	H5POverallPercentage float64 `gorm:"column:h5p_overall_percentage" json:"h5pOverallPercentage"`
	H5PTotalTimeSpent    float64 `gorm:"column:h5p_total_time_spent" json:"h5pTotalTimeSpent"`
	H5PCompletionRate    float64 `gorm:"column:h5p_completion_rate" json:"h5pCompletionRate"`

	// 视频
	VideoTotalVideos      int     `json:"videoTotalVideos"`
	VideoCompletedVideos  int     `json:"videoCompletedVideos"`
	VideoTotalDuration    float64 `json:"videoTotalDuration"`
	VideoTotalWatchedTime float64 `json:"videoTotalWatchedTime"`
	VideoCompletionRate   float64 `json:"videoCompletionRate"`
	VideoWatchRate        float64 `json:"videoWatchRate"`

	// 测验
	QuizAttempts       int     `json:"quizAttempts"`
	QuizAvgScore       float64 `json:"quizAvgScore"`
	QuizCompletionRate float64 `json:"quizCompletionRate"`

	// 讨论区
	DiscussionThreadsCount      int `json:"discussionThreadsCount"`
	DiscussionCommentsCount     int `json:"discussionCommentsCount"`
	DiscussionTotalInteractions int `json:"discussionTotalInteractions"`
	DiscussionQuestionsCount    int `json:"discussionQuestionsCount"`
	DiscussionTotalUpvotes      int `json:"discussionTotalUpvotes"`

	// 结课结果（仅历史数据）
	MoocGradePercentage *float64 `json:"moocGradePercentage"`
	MoocLetterGrade     *string  `gorm:"size:10" json:"moocLetterGrade"`
	MoocIsPassed        *bool    `json:"moocIsPassed"`
	IsPassed            *bool    `gorm:"index" json:"isPassed"`

	ExtractionBatchID string `gorm:"size:64;index" json:"extractionBatchId"`
}

func (StudentFeature) TableName() string {
	return "student_features"
}

// GradePercentage returns the recorded grade, or -1 when none is known.
func (s *StudentFeature) GradePercentage() float64 {
	if s.MoocGradePercentage == nil {
		return -1
	}
	return *s.MoocGradePercentage
}
