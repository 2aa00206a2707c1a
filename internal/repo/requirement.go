package repo

import (
	"ReqKeeper/internal/model"
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RequirementRepository — логические требования и цепочки их версий.
// Все составные записи (версия + история) выполняются в одной транзакции.
type RequirementRepository interface {
	// GetByID загружает требование с версиями по возрастанию version_index.
	GetByID(ctx context.Context, id int64) (*model.Requirement, error)
	// FindByKey ищет требование проекта по нормализованному ключу (включая удалённые).
	FindByKey(ctx context.Context, projectID int64, key string) (*model.Requirement, error)
	ListByProject(ctx context.Context, projectID int64, deleted bool) ([]model.Requirement, error)
	// ListDeletedByOwner — корзина: удалённые требования проектов владельца.
	ListDeletedByOwner(ctx context.Context, ownerID int64) ([]model.Requirement, error)

	// CreateWithVersion создаёт требование и его первую версию (index 1, label A).
	CreateWithVersion(ctx context.Context, req *model.Requirement, v *model.RequirementVersion, entries []model.RequirementVersionHistory) error
	// AppendVersion добавляет версию n+1 под блокировкой родительской строки.
	// При гонке за индекс возвращает ErrVersionConflict.
	AppendVersion(ctx context.Context, requirementID int64, v *model.RequirementVersion, entries []model.RequirementVersionHistory) error
	UpdateKey(ctx context.Context, id int64, key string) error

	SetDeleted(ctx context.Context, id int64, deleted bool) error
	DeletePermanently(ctx context.Context, id int64) error
	// DeleteVersion удаляет версию; если она единственная, помечает требование удалённым.
	// Ключ требования пересчитывается по последней оставшейся версии; если он занят
	// другим требованием, возвращается ErrDuplicate и ничего не удаляется.
	DeleteVersion(ctx context.Context, requirementID, versionID int64) (parentSoftDeleted bool, err error)
}

type requirementRepo struct {
	db *gorm.DB
}

func NewRequirementRepository(db *gorm.DB) RequirementRepository {
	return &requirementRepo{db: db}
}

func orderedVersions(db *gorm.DB) *gorm.DB {
	return db.Order("version_index ASC")
}

func (r *requirementRepo) GetByID(ctx context.Context, id int64) (*model.Requirement, error) {
	var req model.Requirement
	err := r.db.WithContext(ctx).
		Preload("Versions", orderedVersions).
		Preload("Versions.BlockedBy").
		First(&req, id).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requirementRepo) FindByKey(ctx context.Context, projectID int64, key string) (*model.Requirement, error) {
	var req model.Requirement
	err := r.db.WithContext(ctx).
		Preload("Versions", orderedVersions).
		Where(map[string]any{"project_id": projectID, "key": key}).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *requirementRepo) ListByProject(ctx context.Context, projectID int64, deleted bool) ([]model.Requirement, error) {
	var list []model.Requirement
	err := r.db.WithContext(ctx).
		Preload("Versions", orderedVersions).
		Preload("Versions.BlockedBy").
		Where("project_id = ? AND is_deleted = ?", projectID, deleted).
		Order("id ASC").
		Find(&list).Error
	return list, err
}

func (r *requirementRepo) ListDeletedByOwner(ctx context.Context, ownerID int64) ([]model.Requirement, error) {
	db := r.db.WithContext(ctx)
	owned := db.Model(&model.Project{}).Select("id").Where("owner_id = ?", ownerID)

	var list []model.Requirement
	err := db.
		Preload("Project").
		Preload("Versions", orderedVersions).
		Where("project_id IN (?) AND is_deleted = ?", owned, true).
		Order("id ASC").
		Find(&list).Error
	return list, err
}

func (r *requirementRepo) CreateWithVersion(ctx context.Context, req *model.Requirement, v *model.RequirementVersion, entries []model.RequirementVersionHistory) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(req).Error; err != nil {
			return err
		}
		v.ID = 0
		v.RequirementID = req.ID
		v.VersionIndex = 1
		v.VersionLabel = model.VersionLabel(1)
		if err := tx.Omit(clause.Associations).Create(v).Error; err != nil {
			return err
		}
		return insertEntries(tx, v.ID, entries)
	})
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err == nil {
		req.Versions = []model.RequirementVersion{*v}
	}
	return err
}

func (r *requirementRepo) AppendVersion(ctx context.Context, requirementID int64, v *model.RequirementVersion, entries []model.RequirementVersionHistory) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var parent model.Requirement
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&parent, requirementID).Error; err != nil {
			return err
		}

		var last int64
		if err := tx.Model(&model.RequirementVersion{}).
			Select("COALESCE(MAX(version_index), 0)").
			Where("requirement_id = ?", requirementID).
			Row().Scan(&last); err != nil {
			return err
		}

		v.ID = 0
		v.RequirementID = requirementID
		v.VersionIndex = int(last) + 1
		v.VersionLabel = model.VersionLabel(v.VersionIndex)
		if err := tx.Omit(clause.Associations).Create(v).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrVersionConflict
			}
			return err
		}
		return insertEntries(tx, v.ID, entries)
	})
}

func (r *requirementRepo) UpdateKey(ctx context.Context, id int64, key string) error {
	err := r.db.WithContext(ctx).Model(&model.Requirement{}).Where("id = ?", id).Update("key", key).Error
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *requirementRepo) SetDeleted(ctx context.Context, id int64, deleted bool) error {
	res := r.db.WithContext(ctx).Model(&model.Requirement{}).Where("id = ?", id).Update("is_deleted", deleted)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *requirementRepo) DeletePermanently(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		verIDs := tx.Model(&model.RequirementVersion{}).Select("id").Where("requirement_id = ?", id)
		if err := tx.Where("version_id IN (?)", verIDs).Delete(&model.RequirementComment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("version_id IN (?)", verIDs).Delete(&model.RequirementVersionHistory{}).Error; err != nil {
			return err
		}
		if err := tx.Where("requirement_id = ?", id).Delete(&model.RequirementVersion{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.Requirement{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *requirementRepo) DeleteVersion(ctx context.Context, requirementID, versionID int64) (bool, error) {
	softDeleted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var parent model.Requirement
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&parent, requirementID).Error; err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&model.RequirementVersion{}).Where("requirement_id = ?", requirementID).Count(&count).Error; err != nil {
			return err
		}
		var exists int64
		if err := tx.Model(&model.RequirementVersion{}).
			Where("id = ? AND requirement_id = ?", versionID, requirementID).
			Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return gorm.ErrRecordNotFound
		}

		// активное требование не остаётся без версий
		if count <= 1 {
			softDeleted = true
			return tx.Model(&model.Requirement{}).Where("id = ?", requirementID).Update("is_deleted", true).Error
		}

		if err := tx.Where("version_id = ?", versionID).Delete(&model.RequirementComment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("version_id = ?", versionID).Delete(&model.RequirementVersionHistory{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&model.RequirementVersion{}, versionID).Error; err != nil {
			return err
		}

		// ключ всегда следует заголовку последней оставшейся версии
		var latest model.RequirementVersion
		if err := tx.Where("requirement_id = ?", requirementID).Order("version_index DESC").First(&latest).Error; err != nil {
			return err
		}
		key := model.NormalizeKey(latest.Title)
		if key == parent.Key {
			return nil
		}
		err := tx.Model(&model.Requirement{}).Where("id = ?", requirementID).Update("key", key).Error
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	})
	if err != nil {
		return false, err
	}
	return softDeleted, nil
}

func insertEntries(tx *gorm.DB, versionID int64, entries []model.RequirementVersionHistory) error {
	if len(entries) == 0 {
		return nil
	}
	for i := range entries {
		entries[i].ID = 0
		entries[i].VersionID = versionID
	}
	if err := tx.Omit(clause.Associations).Create(&entries).Error; err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}
