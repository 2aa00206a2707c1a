package repo

import (
	"ReqKeeper/internal/model"
	"context"

	"gorm.io/gorm"
)

// HistoryRepository — чтение журнала изменений. Запись идёт только вместе с версией.
type HistoryRepository interface {
	ListByVersion(ctx context.Context, versionID int64) ([]model.RequirementVersionHistory, error)
}

type historyRepo struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepo{db: db}
}

func (r *historyRepo) ListByVersion(ctx context.Context, versionID int64) ([]model.RequirementVersionHistory, error) {
	var list []model.RequirementVersionHistory
	err := r.db.WithContext(ctx).
		Preload("ChangedBy").
		Where("version_id = ?", versionID).
		Order("created_at ASC, id ASC").
		Find(&list).Error
	return list, err
}
