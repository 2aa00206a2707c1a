package model

import "time"

// User — учётная запись участника. Email уникален, Password хранит bcrypt-хеш.
type User struct {
	ID       int64  `gorm:"primaryKey" json:"id"`
	Email    string `gorm:"uniqueIndex;not null;size:120" json:"email"`
	Password string `gorm:"not null" json:"-"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// DisplayName возвращает локальную часть email (до @).
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	for i := 0; i < len(u.Email); i++ {
		if u.Email[i] == '@' {
			return u.Email[:i]
		}
	}
	return u.Email
}
