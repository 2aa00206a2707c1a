package model

import "time"

// RequirementComment — комментарий к версии требования, поддерживает ответы (дерево через ParentCommentID).
type RequirementComment struct {
	ID              int64  `gorm:"primaryKey" json:"id"`
	VersionID       int64  `gorm:"not null;index" json:"version_id"`
	AuthorID        int64  `gorm:"not null;index" json:"author_id"`
	Text            string `gorm:"type:text;not null" json:"text"`
	ParentCommentID *int64 `gorm:"index" json:"parent_comment_id,omitempty"`
	IsDeleted       bool   `gorm:"not null;default:false" json:"-"`

	Version *RequirementVersion `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Author  *User               `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"author,omitempty"`
	Parent  *RequirementComment `gorm:"foreignKey:ParentCommentID;constraint:OnDelete:CASCADE" json:"-"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
