package model

import "time"

// ModelRegistry records every trained model version and its test metrics.
// At most one version per model name is active.
// swagger:model ModelRegistry
type ModelRegistry struct {
	BaseModel
	ModelName    string    `gorm:"size:100;index:idx_registry_name_version,unique;not null" json:"modelName"`
	ModelVersion string    `gorm:"size:50;index:idx_registry_name_version,unique;not null" json:"modelVersion"`
	ModelPath    string    `gorm:"size:255" json:"modelPath"`
	ArtifactName string    `gorm:"size:150" json:"artifactName"`
	FeatureCount int       `json:"featureCount"`
	AUC          float64   `json:"auc"`
	F1           float64   `json:"f1"`
	Precision    float64   `json:"precision"`
	Recall       float64   `json:"recall"`
	Accuracy     float64   `json:"accuracy"`
	TrainRows    int       `json:"trainRows"`
	TestRows     int       `json:"testRows"`
	TrainedAt    time.Time `json:"trainedAt"`
	IsActive     bool      `gorm:"index;default:false" json:"isActive"`
}

func (ModelRegistry) TableName() string {
	return "model_registry"
}
