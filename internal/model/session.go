package model

import "time"

// ActiveSession — присутствие пользователя в проекте (heartbeat).
type ActiveSession struct {
	ID        int64     `gorm:"primaryKey"`
	UserID    int64     `gorm:"not null;uniqueIndex:idx_session_user_project,priority:1"`
	ProjectID int64     `gorm:"not null;uniqueIndex:idx_session_user_project,priority:2;index"`
	LastSeen  time.Time `gorm:"not null;index"`

	User    *User    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Project *Project `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}
