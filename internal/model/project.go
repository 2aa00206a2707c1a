package model

import (
	"time"

	"gorm.io/datatypes"
)

// Project — рабочее пространство пользователя.
// Доступ = владелец ∪ SharedWith. Владелец никогда не входит в SharedWith.
type Project struct {
	ID      int64  `gorm:"primaryKey" json:"id"`
	Name    string `gorm:"not null;size:160" json:"name"`
	OwnerID int64  `gorm:"not null;index" json:"owner_id"`

	Owner *User `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"owner,omitempty"`

	// Упорядоченный список пользовательских колонок
	CustomColumns datatypes.JSONSlice[string] `json:"custom_columns"`

	SharedWith []User `gorm:"many2many:project_shares;constraint:OnDelete:CASCADE" json:"shared_with,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// IsOwner проверяет, является ли пользователь владельцем проекта.
func (p *Project) IsOwner(userID int64) bool {
	return p != nil && p.OwnerID == userID
}

// IsAccessibleBy — владелец или пользователь из SharedWith.
func (p *Project) IsAccessibleBy(userID int64) bool {
	if p == nil {
		return false
	}
	if p.OwnerID == userID {
		return true
	}
	for _, u := range p.SharedWith {
		if u.ID == userID {
			return true
		}
	}
	return false
}

// Members возвращает владельца (если загружен) и всех пользователей с общим доступом.
func (p *Project) Members() []User {
	members := make([]User, 0, len(p.SharedWith)+1)
	if p.Owner != nil {
		members = append(members, *p.Owner)
	}
	for _, u := range p.SharedWith {
		if u.ID == p.OwnerID {
			continue
		}
		members = append(members, u)
	}
	return members
}

// Columns возвращает копию списка пользовательских колонок.
func (p *Project) Columns() []string {
	out := make([]string, len(p.CustomColumns))
	copy(out, p.CustomColumns)
	return out
}
