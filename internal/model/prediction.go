package model

import "time"

type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Prediction is one scored snapshot of a student. Only the newest row of a
// (user, course) pair has IsLatest set.
// swagger:model Prediction
type Prediction struct {
	BaseModel
	UserID        uint      `gorm:"index:idx_pred_user_course;not null" json:"userId"`
	CourseID      string    `gorm:"size:100;index:idx_pred_user_course;not null" json:"courseId"`
	ModelName     string    `gorm:"size:100;not null" json:"modelName"`
	ModelVersion  string    `gorm:"size:50" json:"modelVersion"`
	ModelPath     string    `gorm:"size:255" json:"modelPath"`
	FailRiskScore float64   `gorm:"not null" json:"failRiskScore"`
	RiskLevel     RiskLevel `gorm:"type:varchar(10);index" json:"riskLevel"`
	Suggestions   string    `gorm:"type:text" json:"suggestions"` // JSON 数组

	// 预测时的快照
	SnapshotGrade          *float64 `json:"snapshotGrade"`
	SnapshotCompletionRate float64  `json:"snapshotCompletionRate"`
	SnapshotDaysInactive   float64  `json:"snapshotDaysInactive"`

	PredictedAt time.Time `gorm:"index" json:"predictedAt"`
	IsLatest    bool      `gorm:"index;not null" json:"isLatest"`
}

func (Prediction) TableName() string {
	return "predictions"
}
