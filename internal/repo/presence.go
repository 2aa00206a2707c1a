package repo

import (
	"ReqKeeper/internal/model"
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PresenceRepository — отметки присутствия пользователей в проектах.
type PresenceRepository interface {
	Touch(ctx context.Context, userID, projectID int64, at time.Time) error
	PurgeBefore(ctx context.Context, before time.Time) (int64, error)
	// ListActive — сессии проекта, обновлённые не раньше since.
	ListActive(ctx context.Context, projectID int64, since time.Time) ([]model.ActiveSession, error)
}

type presenceRepo struct {
	db *gorm.DB
}

func NewPresenceRepository(db *gorm.DB) PresenceRepository {
	return &presenceRepo{db: db}
}

func (r *presenceRepo) Touch(ctx context.Context, userID, projectID int64, at time.Time) error {
	s := model.ActiveSession{UserID: userID, ProjectID: projectID, LastSeen: at}
	return r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "project_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_seen"}),
		}).
		Create(&s).Error
}

func (r *presenceRepo) PurgeBefore(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("last_seen < ?", before).Delete(&model.ActiveSession{})
	return res.RowsAffected, res.Error
}

func (r *presenceRepo) ListActive(ctx context.Context, projectID int64, since time.Time) ([]model.ActiveSession, error) {
	var list []model.ActiveSession
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("project_id = ? AND last_seen >= ?", projectID, since).
		Order("last_seen DESC, id ASC").
		Find(&list).Error
	return list, err
}
