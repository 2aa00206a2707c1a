package repo

import (
	"ReqKeeper/internal/model"
	"context"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProjectRepository — проекты, общий доступ и пользовательские колонки.
type ProjectRepository interface {
	Create(ctx context.Context, p *model.Project) error
	// GetByID загружает проект вместе с владельцем и списком SharedWith.
	GetByID(ctx context.Context, id int64) (*model.Project, error)
	// ListForUser — собственные проекты, затем проекты с общим доступом.
	ListForUser(ctx context.Context, userID int64) ([]model.Project, error)
	Delete(ctx context.Context, id int64) error
	AddShare(ctx context.Context, projectID, userID int64) error
	RemoveShare(ctx context.Context, projectID, userID int64) (bool, error)
	// UpdateColumns применяет fn к списку колонок под блокировкой строки проекта.
	UpdateColumns(ctx context.Context, projectID int64, fn func(cols []string) ([]string, error)) ([]string, error)
}

type projectRepo struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepo{db: db}
}

func (r *projectRepo) Create(ctx context.Context, p *model.Project) error {
	if p.CustomColumns == nil {
		p.CustomColumns = datatypes.JSONSlice[string]{}
	}
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(p).Error
}

func (r *projectRepo) GetByID(ctx context.Context, id int64) (*model.Project, error) {
	var p model.Project
	err := r.db.WithContext(ctx).
		Preload("Owner").
		Preload("SharedWith", func(db *gorm.DB) *gorm.DB { return db.Order("users.id ASC") }).
		First(&p, id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *projectRepo) ListForUser(ctx context.Context, userID int64) ([]model.Project, error) {
	db := r.db.WithContext(ctx)

	var owned []model.Project
	if err := db.Preload("Owner").Where("owner_id = ?", userID).Order("id ASC").Find(&owned).Error; err != nil {
		return nil, err
	}

	var shared []model.Project
	sub := db.Table("project_shares").Select("project_id").Where("user_id = ?", userID)
	if err := db.Preload("Owner").
		Where("id IN (?) AND owner_id <> ?", sub, userID).
		Order("id ASC").
		Find(&shared).Error; err != nil {
		return nil, err
	}

	return append(owned, shared...), nil
}

// Delete удаляет проект со всеми требованиями, версиями, историей, комментариями и сессиями.
func (r *projectRepo) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reqIDs := tx.Model(&model.Requirement{}).Select("id").Where("project_id = ?", id)
		verIDs := tx.Model(&model.RequirementVersion{}).Select("id").Where("requirement_id IN (?)", reqIDs)

		if err := tx.Where("version_id IN (?)", verIDs).Delete(&model.RequirementComment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("version_id IN (?)", verIDs).Delete(&model.RequirementVersionHistory{}).Error; err != nil {
			return err
		}
		if err := tx.Where("requirement_id IN (?)", reqIDs).Delete(&model.RequirementVersion{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", id).Delete(&model.Requirement{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", id).Delete(&model.ActiveSession{}).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM project_shares WHERE project_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.Project{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *projectRepo) AddShare(ctx context.Context, projectID, userID int64) error {
	err := r.db.WithContext(ctx).
		Exec("INSERT INTO project_shares (project_id, user_id) VALUES (?, ?)", projectID, userID).Error
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// RemoveShare возвращает false, если доступа и так не было.
func (r *projectRepo) RemoveShare(ctx context.Context, projectID, userID int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Exec("DELETE FROM project_shares WHERE project_id = ? AND user_id = ?", projectID, userID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *projectRepo) UpdateColumns(ctx context.Context, projectID int64, fn func(cols []string) ([]string, error)) ([]string, error) {
	var out []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p model.Project
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, projectID).Error; err != nil {
			return err
		}
		cols, err := fn(p.Columns())
		if err != nil {
			return err
		}
		if err := tx.Model(&model.Project{}).
			Where("id = ?", projectID).
			Update("custom_columns", datatypes.JSONSlice[string](cols)).Error; err != nil {
			return err
		}
		out = cols
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
