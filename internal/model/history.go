package model

import (
	"time"

	"gorm.io/datatypes"
)

// Типы записей истории изменений.
const (
	ChangeCreated       = "created"
	ChangeModified      = "modified"
	ChangeStatusChanged = "status_changed"
)

// RequirementVersionHistory — запись append-only журнала изменений версии.
// Changes: имя поля → "старое → новое".
type RequirementVersionHistory struct {
	ID          int64  `gorm:"primaryKey" json:"id"`
	VersionID   int64  `gorm:"not null;index" json:"version_id"`
	ChangedByID int64  `gorm:"not null;index" json:"changed_by_id"`
	ChangeType  string `gorm:"not null;size:50" json:"change_type"`

	Changes datatypes.JSONType[map[string]string] `json:"changes"`

	Version   *RequirementVersion `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	ChangedBy *User               `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"changed_by,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// ChangeMap возвращает изменения записи (никогда не nil).
func (h *RequirementVersionHistory) ChangeMap() map[string]string {
	if m := h.Changes.Data(); m != nil {
		return m
	}
	return map[string]string{}
}
