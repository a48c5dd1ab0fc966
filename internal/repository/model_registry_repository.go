package repository

import (
	"context"
	"fmt"

	"dropout_risk_backend/internal/ml"
	"dropout_risk_backend/internal/model"

	"gorm.io/gorm"
)

type ModelRegistryRepository struct {
	DB *gorm.DB
}

func NewModelRegistryRepository(db *gorm.DB) *ModelRegistryRepository {
	return &ModelRegistryRepository{DB: db}
}

// Register records a trained version. Versions are write-once: an existing
// (name, version) pair is refused with ml.ErrModelVersionExists.
func (r *ModelRegistryRepository) Register(ctx context.Context, entry *model.ModelRegistry) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := versionExists(tx, entry.ModelName, entry.ModelVersion)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%s %s: %w", entry.ModelName, entry.ModelVersion, ml.ErrModelVersionExists)
		}
		return tx.Create(entry).Error
	})
}

// Exists reports whether name already has version registered.
func (r *ModelRegistryRepository) Exists(ctx context.Context, name, version string) (bool, error) {
	return versionExists(r.DB.WithContext(ctx), name, version)
}

func versionExists(db *gorm.DB, name, version string) (bool, error) {
	var count int64
	err := db.Model(&model.ModelRegistry{}).
		Where("model_name = ? AND model_version = ?", name, version).
		Count(&count).Error
	return count > 0, err
}

// Activate makes version the only active version of name.
func (r *ModelRegistryRepository) Activate(ctx context.Context, name, version string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.ModelRegistry{}).
			Where("model_name = ? AND is_active = ?", name, true).
			Update("is_active", false).Error; err != nil {
			return err
		}
		res := tx.Model(&model.ModelRegistry{}).
			Where("model_name = ? AND model_version = ?", name, version).
			Update("is_active", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *ModelRegistryRepository) FindActive(ctx context.Context, name string) (*model.ModelRegistry, error) {
	var entry model.ModelRegistry
	err := r.DB.WithContext(ctx).
		Where("model_name = ? AND is_active = ?", name, true).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *ModelRegistryRepository) List(ctx context.Context, name string) ([]model.ModelRegistry, error) {
	var list []model.ModelRegistry
	err := r.DB.WithContext(ctx).
		Where("model_name = ?", name).
		Order("trained_at DESC").
		Find(&list).Error
	return list, err
}
