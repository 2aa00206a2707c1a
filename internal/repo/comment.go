package repo

import (
	"ReqKeeper/internal/model"
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommentRepository — комментарии к версиям.
type CommentRepository interface {
	Create(ctx context.Context, c *model.RequirementComment) error
	GetByID(ctx context.Context, id int64) (*model.RequirementComment, error)
	// ListByVersion — неудалённые комментарии версии в порядке создания (плоский список).
	ListByVersion(ctx context.Context, versionID int64) ([]model.RequirementComment, error)
	UpdateText(ctx context.Context, id int64, text string) error
	SoftDelete(ctx context.Context, id int64) error
}

type commentRepo struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepo{db: db}
}

func (r *commentRepo) Create(ctx context.Context, c *model.RequirementComment) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(c).Error
}

func (r *commentRepo) GetByID(ctx context.Context, id int64) (*model.RequirementComment, error) {
	var c model.RequirementComment
	if err := r.db.WithContext(ctx).Preload("Author").First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *commentRepo) ListByVersion(ctx context.Context, versionID int64) ([]model.RequirementComment, error) {
	var list []model.RequirementComment
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("version_id = ? AND is_deleted = ?", versionID, false).
		Order("created_at ASC, id ASC").
		Find(&list).Error
	return list, err
}

func (r *commentRepo) UpdateText(ctx context.Context, id int64, text string) error {
	// updated_at выставляется gorm автоматически
	res := r.db.WithContext(ctx).Model(&model.RequirementComment{}).Where("id = ?", id).Update("text", text)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *commentRepo) SoftDelete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Model(&model.RequirementComment{}).Where("id = ?", id).Update("is_deleted", true).Error
}
