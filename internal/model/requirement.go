package model

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Requirement — логическая сущность требования, накапливающая версии.
// Key уникален в пределах проекта.
type Requirement struct {
	ID        int64  `gorm:"primaryKey" json:"id"`
	ProjectID int64  `gorm:"not null;uniqueIndex:idx_requirement_project_key,priority:1" json:"project_id"`
	Key       string `gorm:"not null;size:200;uniqueIndex:idx_requirement_project_key,priority:2" json:"key"`
	IsDeleted bool   `gorm:"not null;default:false;index" json:"is_deleted"`

	Project *Project `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`

	// Версии упорядочены по version_index при загрузке репозиторием
	Versions []RequirementVersion `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"versions,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// LatestVersion возвращает последнюю версию (Versions должны быть отсортированы).
func (r *Requirement) LatestVersion() *RequirementVersion {
	if r == nil || len(r.Versions) == 0 {
		return nil
	}
	return &r.Versions[len(r.Versions)-1]
}

// RequirementVersion — снимок содержимого требования.
// Пара (requirement_id, version_index) уникальна.
type RequirementVersion struct {
	ID            int64  `gorm:"primaryKey" json:"id"`
	RequirementID int64  `gorm:"not null;uniqueIndex:uq_req_version,priority:1" json:"requirement_id"`
	VersionIndex  int    `gorm:"not null;uniqueIndex:uq_req_version,priority:2" json:"version_index"`
	VersionLabel  string `gorm:"not null;size:8" json:"version_label"`

	Title       string `gorm:"not null;size:160" json:"title"`
	Description string `gorm:"not null;size:2000" json:"description"`
	Category    string `gorm:"size:80" json:"category"`
	Status      Status `gorm:"not null;size:30;default:Open" json:"status"`

	CustomData datatypes.JSONType[map[string]string] `json:"custom_data"`

	CreatedByID      *int64 `gorm:"index" json:"created_by_id,omitempty"`
	CreatedBy        *User  `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	LastModifiedByID *int64 `json:"last_modified_by_id,omitempty"`
	LastModifiedBy   *User  `gorm:"constraint:OnDelete:SET NULL" json:"-"`

	// Блокировка (advisory lock)
	IsBlocked   bool       `gorm:"not null;default:false" json:"is_blocked"`
	BlockedByID *int64     `json:"blocked_by_id,omitempty"`
	BlockedBy   *User      `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	BlockedAt   *time.Time `json:"blocked_at,omitempty"`

	Requirement *Requirement `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Custom возвращает копию пользовательских данных версии (никогда не nil).
func (v *RequirementVersion) Custom() map[string]string {
	src := v.CustomData.Data()
	out := make(map[string]string, len(src))
	for k, val := range src {
		out[k] = val
	}
	return out
}

// SetCustom сохраняет пользовательские данные версии.
func (v *RequirementVersion) SetCustom(data map[string]string) {
	if data == nil {
		data = map[string]string{}
	}
	v.CustomData = datatypes.NewJSONType(data)
}

// VersionLabel строит буквенную метку версии: 1→A … 26→Z, 27→AA, 28→AB, …
// (биективная запись по основанию 26, как в заголовках колонок таблиц).
func VersionLabel(n int) string {
	if n <= 0 {
		return ""
	}
	var buf []byte
	for n > 0 {
		n--
		buf = append(buf, byte('A'+n%26))
		n /= 26
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf)
}

// NormalizeKey: lower-case, trim, схлопывание пробельных последовательностей в один пробел.
func NormalizeKey(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}
