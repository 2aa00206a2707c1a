package service

import (
	"ReqKeeper/internal/repo"
	"context"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
)

const DefaultPresenceWindow = 30 * time.Second

// ActiveUser — участник, открывший проект в пределах окна присутствия.
type ActiveUser struct {
	ID       int64     `json:"id"`
	Email    string    `json:"email"`
	Initials string    `json:"initials"`
	LastSeen time.Time `json:"last_seen"`
}

// PresenceService — кто сейчас смотрит проект. Устаревшие сессии чистятся при каждом heartbeat.
type PresenceService struct {
	repos  *repo.Repositories
	window time.Duration
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewPresenceService(repos *repo.Repositories, window time.Duration, logger *zap.SugaredLogger) *PresenceService {
	if window <= 0 {
		window = DefaultPresenceWindow
	}
	return &PresenceService{repos: repos, window: window, logger: logger, now: time.Now}
}

func (s *PresenceService) Heartbeat(ctx context.Context, projectID, userID int64) error {
	if _, err := projectFor(ctx, s.repos.Projects, projectID, userID); err != nil {
		return err
	}
	now := s.now().UTC()
	if err := s.repos.Presence.Touch(ctx, userID, projectID, now); err != nil {
		return err
	}
	purged, err := s.repos.Presence.PurgeBefore(ctx, now.Add(-s.window))
	if err != nil {
		// чистка не критична, heartbeat уже записан
		s.logger.Warnw("presence purge failed", "error", err)
		return nil
	}
	if purged > 0 {
		s.logger.Debugw("stale sessions purged", "count", purged)
	}
	return nil
}

// ActiveUsers — участники, видевшие проект в пределах окна, кроме самого пользователя.
func (s *PresenceService) ActiveUsers(ctx context.Context, projectID, userID int64) ([]ActiveUser, error) {
	if _, err := projectFor(ctx, s.repos.Projects, projectID, userID); err != nil {
		return nil, err
	}
	sessions, err := s.repos.Presence.ListActive(ctx, projectID, s.now().UTC().Add(-s.window))
	if err != nil {
		return nil, err
	}

	out := []ActiveUser{}
	for _, sess := range sessions {
		if sess.UserID == userID || sess.User == nil {
			continue
		}
		out = append(out, ActiveUser{
			ID:       sess.UserID,
			Email:    sess.User.Email,
			Initials: Initials(sess.User.Email),
			LastSeen: sess.LastSeen,
		})
	}
	return out, nil
}

// Initials: первые буквы первых двух частей local-part через точку ("anna.schmidt@x" → "AS").
func Initials(email string) string {
	local, _, _ := strings.Cut(email, "@")
	var b strings.Builder
	n := 0
	for _, part := range strings.Split(local, ".") {
		if part == "" {
			continue
		}
		r, _ := utf8.DecodeRuneInString(part)
		b.WriteRune(unicode.ToUpper(r))
		n++
		if n == 2 {
			break
		}
	}
	return b.String()
}
