package service

import (
	"ReqKeeper/internal/metrics"
	"ReqKeeper/internal/model"
	"ReqKeeper/internal/repo"
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Notifier — получатель событий хранилища. Ошибки Notifier никогда не откатывают основную операцию.
type Notifier interface {
	RequirementCreated(ctx context.Context, p *model.Project, v *model.RequirementVersion, actorID int64) error
	RequirementUpdated(ctx context.Context, p *model.Project, v *model.RequirementVersion, actorID int64) error
	CommentAdded(ctx context.Context, p *model.Project, v *model.RequirementVersion, c *model.RequirementComment, actorID int64) error
}

// notifySafely выполняет рассылку и проглатывает ошибку (лог + метрика).
func notifySafely(logger *zap.SugaredLogger, m *metrics.Metrics, event string, fn func() error) {
	if err := fn(); err != nil {
		m.NotificationFailed()
		logger.Errorw("notification fan-out failed", "event", event, "error", err)
	}
}

func (s *RequirementService) notify(event string, fn func() error) {
	if s.notifier == nil {
		return
	}
	notifySafely(s.logger, s.metrics, event, fn)
}

const titleLimit = 50

// NotificationPage is one page of a user's notifications.
type NotificationPage struct {
	Items       []model.Notification `json:"notifications"`
	Total       int64                `json:"total"`
	Page        int                  `json:"page"`
	PerPage     int                  `json:"per_page"`
	Pages       int                  `json:"pages"`
	UnreadCount int64                `json:"unread_count"`
}

// NotificationService — рассылка уведомлений участникам проекта и их чтение.
type NotificationService struct {
	repo    repo.NotificationRepository
	users   repo.UserRepository
	metrics *metrics.Metrics
	logger  *zap.SugaredLogger
	now     func() time.Time
}

func NewNotificationService(r repo.NotificationRepository, users repo.UserRepository, m *metrics.Metrics, logger *zap.SugaredLogger) *NotificationService {
	return &NotificationService{repo: r, users: users, metrics: m, logger: logger, now: time.Now}
}

var _ Notifier = (*NotificationService)(nil)

func (s *NotificationService) RequirementCreated(ctx context.Context, p *model.Project, v *model.RequirementVersion, actorID int64) error {
	return s.versionEvent(ctx, p, v, actorID, model.NotifyRequirementCreated,
		"New requirement: %s", "%s created requirement %q")
}

func (s *NotificationService) RequirementUpdated(ctx context.Context, p *model.Project, v *model.RequirementVersion, actorID int64) error {
	return s.versionEvent(ctx, p, v, actorID, model.NotifyRequirementUpdated,
		"Requirement updated: %s", "%s updated requirement %q")
}

func (s *NotificationService) versionEvent(
	ctx context.Context,
	p *model.Project,
	v *model.RequirementVersion,
	actorID int64,
	kind, titleFmt, messageFmt string,
) error {
	actor := s.actor(ctx, p, actorID)
	title := truncateRunes(v.Title, titleLimit)

	var list []model.Notification
	for _, u := range p.Members() {
		if u.ID == actorID {
			continue
		}
		list = append(list, model.Notification{
			UserID:      u.ID,
			Type:        kind,
			Title:       fmt.Sprintf(titleFmt, title),
			Message:     fmt.Sprintf(messageFmt, actor.DisplayName(), title),
			RelatedType: model.RelatedVersion,
			RelatedID:   &v.ID,
			Metadata:    s.metadata(p, actor, v),
		})
	}
	return s.save(ctx, kind, list)
}

// CommentAdded: упомянутые получают "mention", остальные участники — "comment", автор — ничего.
func (s *NotificationService) CommentAdded(
	ctx context.Context,
	p *model.Project,
	v *model.RequirementVersion,
	c *model.RequirementComment,
	actorID int64,
) error {
	actor := s.actor(ctx, p, actorID)
	title := truncateRunes(v.Title, titleLimit)
	meta := s.metadata(p, actor, v)

	mentioned := map[int64]bool{}
	var mentions, comments []model.Notification
	for _, u := range resolveMentions(p.Members(), ParseMentions(c.Text)) {
		if u.ID == actorID || mentioned[u.ID] {
			continue
		}
		mentioned[u.ID] = true
		mentions = append(mentions, model.Notification{
			UserID:      u.ID,
			Type:        model.NotifyMention,
			Title:       fmt.Sprintf("You were mentioned: %s", title),
			Message:     fmt.Sprintf("%s mentioned you in a comment on %q", actor.DisplayName(), title),
			RelatedType: model.RelatedComment,
			RelatedID:   &c.ID,
			Metadata:    meta,
		})
	}
	for _, u := range p.Members() {
		if u.ID == actorID || mentioned[u.ID] {
			continue
		}
		comments = append(comments, model.Notification{
			UserID:      u.ID,
			Type:        model.NotifyComment,
			Title:       fmt.Sprintf("New comment: %s", title),
			Message:     fmt.Sprintf("%s commented on %q", actor.DisplayName(), title),
			RelatedType: model.RelatedComment,
			RelatedID:   &c.ID,
			Metadata:    meta,
		})
	}

	if err := s.save(ctx, model.NotifyMention, mentions); err != nil {
		return err
	}
	return s.save(ctx, model.NotifyComment, comments)
}

func (s *NotificationService) save(ctx context.Context, kind string, list []model.Notification) error {
	if len(list) == 0 {
		return nil
	}
	if err := s.repo.CreateBatch(ctx, list); err != nil {
		return fmt.Errorf("create %s notifications: %w", kind, err)
	}
	s.metrics.NotificationsCreated(kind, len(list))
	return nil
}

// actor ищет автора события среди участников, иначе в таблице пользователей.
func (s *NotificationService) actor(ctx context.Context, p *model.Project, actorID int64) *model.User {
	for _, u := range p.Members() {
		if u.ID == actorID {
			return &u
		}
	}
	if u, err := s.users.GetUserByID(ctx, actorID); err == nil {
		return u
	}
	return &model.User{ID: actorID}
}

func (s *NotificationService) metadata(p *model.Project, actor *model.User, v *model.RequirementVersion) datatypes.JSONMap {
	return datatypes.JSONMap{
		"actor_id":               actor.ID,
		"actor_email":            actor.Email,
		"project_id":             p.ID,
		"requirement_id":         v.RequirementID,
		"requirement_version_id": v.ID,
	}
}

// List: новые сверху.
func (s *NotificationService) List(ctx context.Context, userID int64, page, perPage int, unreadOnly bool) (*NotificationPage, error) {
	if page < 1 {
		page = 1
	}
	switch {
	case perPage <= 0:
		perPage = 20
	case perPage > 100:
		perPage = 100
	}

	items, total, err := s.repo.List(ctx, userID, unreadOnly, (page-1)*perPage, perPage)
	if err != nil {
		return nil, err
	}
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.Notification{}
	}
	return &NotificationPage{
		Items:       items,
		Total:       total,
		Page:        page,
		PerPage:     perPage,
		Pages:       int((total + int64(perPage) - 1) / int64(perPage)),
		UnreadCount: unread,
	}, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

// MarkRead отмечает уведомление прочитанным. Чужое уведомление — ErrAccessDenied.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID int64) error {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return notFound("notification", err)
	}
	if n.UserID != userID {
		return ErrAccessDenied
	}
	if n.IsRead {
		return nil
	}
	return s.repo.MarkRead(ctx, id, s.now().UTC())
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID, s.now().UTC())
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
