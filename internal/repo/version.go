package repo

import (
	"ReqKeeper/internal/model"
	"context"
	"time"

	"gorm.io/gorm"
)

// VersionRepository — операции над отдельной версией требования.
type VersionRepository interface {
	// GetByID загружает версию вместе с требованием, автором и блокирующим.
	GetByID(ctx context.Context, id int64) (*model.RequirementVersion, error)
	// UpdateInPlace меняет поля версии и пишет записи истории в одной транзакции.
	UpdateInPlace(ctx context.Context, id int64, updates map[string]any, entries []model.RequirementVersionHistory) error
	// TryBlock ставит блокировку. Без takeover срабатывает только на незаблокированной версии.
	TryBlock(ctx context.Context, id, userID int64, at time.Time, takeover bool) (bool, error)
	Unblock(ctx context.Context, id int64) error
}

type versionRepo struct {
	db *gorm.DB
}

func NewVersionRepository(db *gorm.DB) VersionRepository {
	return &versionRepo{db: db}
}

func (r *versionRepo) GetByID(ctx context.Context, id int64) (*model.RequirementVersion, error) {
	var v model.RequirementVersion
	err := r.db.WithContext(ctx).
		Preload("Requirement").
		Preload("CreatedBy").
		Preload("LastModifiedBy").
		Preload("BlockedBy").
		First(&v, id).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *versionRepo) UpdateInPlace(ctx context.Context, id int64, updates map[string]any, entries []model.RequirementVersionHistory) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.RequirementVersion{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return insertEntries(tx, id, entries)
	})
}

func (r *versionRepo) TryBlock(ctx context.Context, id, userID int64, at time.Time, takeover bool) (bool, error) {
	q := r.db.WithContext(ctx).Model(&model.RequirementVersion{}).Where("id = ?", id)
	if !takeover {
		q = q.Where("is_blocked = ?", false)
	}
	res := q.Updates(map[string]any{
		"is_blocked":    true,
		"blocked_by_id": userID,
		"blocked_at":    at,
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *versionRepo) Unblock(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Model(&model.RequirementVersion{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_blocked":    false,
			"blocked_by_id": nil,
			"blocked_at":    nil,
		}).Error
}
