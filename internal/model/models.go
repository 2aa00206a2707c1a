package model

// All перечисляет модели схемы в порядке миграции.
func All() []any {
	return []any{
		&User{},
		&Project{},
		&Requirement{},
		&RequirementVersion{},
		&RequirementVersionHistory{},
		&RequirementComment{},
		&Notification{},
		&ActiveSession{},
	}
}
