package repo

import "gorm.io/gorm"

// Repositories объединяет все репозитории над одной БД.
// Поля — интерфейсы, поэтому в тестах любое из них можно подменить.
type Repositories struct {
	Users         UserRepository
	Projects      ProjectRepository
	Requirements  RequirementRepository
	Versions      VersionRepository
	History       HistoryRepository
	Comments      CommentRepository
	Notifications NotificationRepository
	Presence      PresenceRepository
}

func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Users:         NewUserRepository(db),
		Projects:      NewProjectRepository(db),
		Requirements:  NewRequirementRepository(db),
		Versions:      NewVersionRepository(db),
		History:       NewHistoryRepository(db),
		Comments:      NewCommentRepository(db),
		Notifications: NewNotificationRepository(db),
		Presence:      NewPresenceRepository(db),
	}
}
