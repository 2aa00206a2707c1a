package model

import (
	"time"

	"gorm.io/datatypes"
)

// Типы уведомлений.
const (
	NotifyRequirementCreated = "requirement_created"
	NotifyRequirementUpdated = "requirement_updated"
	NotifyComment            = "comment"
	NotifyMention            = "mention"
)

// Типы связанных сущностей.
const (
	RelatedVersion = "requirement_version"
	RelatedComment = "comment"
)

// Notification — уведомление конкретного пользователя.
// Metadata хранит денормализованный снимок (actor_id, actor_email, project_id, ...).
type Notification struct {
	ID          int64  `gorm:"primaryKey" json:"id"`
	UserID      int64  `gorm:"not null;index" json:"user_id"`
	Type        string `gorm:"not null;size:50" json:"type"`
	Title       string `gorm:"not null;size:200" json:"title"`
	Message     string `gorm:"type:text" json:"message"`
	RelatedType string `gorm:"size:50" json:"related_type"`
	RelatedID   *int64 `json:"related_id,omitempty"`

	Metadata datatypes.JSONMap `json:"metadata"`

	IsRead bool       `gorm:"not null;default:false;index" json:"is_read"`
	ReadAt *time.Time `json:"read_at,omitempty"`

	User *User `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
