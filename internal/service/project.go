package service

import (
	"ReqKeeper/internal/model"
	"ReqKeeper/internal/repo"
	"context"
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"
)

// protectedColumns — имена, которые нельзя удалить или завести как пользовательскую колонку.
var protectedColumns = map[string]bool{
	"title":         true,
	"description":   true,
	"category":      true,
	"status":        true,
	"titel":         true,
	"beschreibung":  true,
	"kategorie":     true,
	"id":            true,
	"version":       true,
	"ver":           true,
	"version_label": true,
	"version_index": true,
}

func isProtectedColumn(name string) bool {
	return protectedColumns[strings.ToLower(strings.TrimSpace(name))]
}

// ProjectService — проекты, совместный доступ и пользовательские колонки.
type ProjectService struct {
	projects repo.ProjectRepository
	users    repo.UserRepository
	logger   *zap.SugaredLogger
}

func NewProjectService(projects repo.ProjectRepository, users repo.UserRepository, logger *zap.SugaredLogger) *ProjectService {
	return &ProjectService{projects: projects, users: users, logger: logger}
}

func (s *ProjectService) CreateProject(ctx context.Context, ownerID int64, name string) (*model.Project, error) {
	name = strings.TrimSpace(name)
	if err := validation.Validate(name, validation.Required, validation.Length(1, 160)); err != nil {
		return nil, invalidf("name: %v", err)
	}
	p := &model.Project{Name: name, OwnerID: ownerID}
	if err := s.projects.Create(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Infow("project created", "project_id", p.ID, "owner_id", ownerID)
	return p, nil
}

// ListProjects — собственные проекты пользователя, затем проекты с общим доступом.
func (s *ProjectService) ListProjects(ctx context.Context, userID int64) ([]model.Project, error) {
	return s.projects.ListForUser(ctx, userID)
}

func (s *ProjectService) GetProject(ctx context.Context, projectID, userID int64) (*model.Project, error) {
	return projectFor(ctx, s.projects, projectID, userID)
}

// DeleteProject удаляет проект со всем содержимым. Только владелец.
func (s *ProjectService) DeleteProject(ctx context.Context, projectID, userID int64) error {
	p, err := projectFor(ctx, s.projects, projectID, userID)
	if err != nil {
		return err
	}
	if !p.IsOwner(userID) {
		return ErrAccessDenied
	}
	if err := s.projects.Delete(ctx, projectID); err != nil {
		return notFound("project", err)
	}
	s.logger.Infow("project deleted", "project_id", projectID, "user_id", userID)
	return nil
}

// Share выдаёт доступ пользователю с указанным email.
func (s *ProjectService) Share(ctx context.Context, projectID, actorID int64, email string) (*model.User, error) {
	p, err := projectFor(ctx, s.projects, projectID, actorID)
	if err != nil {
		return nil, err
	}
	email = normalizeEmail(email)
	if email == "" {
		return nil, invalidf("email: cannot be blank")
	}

	target, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, notFound("user", err)
	}
	if target.ID == actorID {
		return nil, invalidf("cannot share a project with yourself")
	}
	if p.IsOwner(target.ID) {
		return nil, invalidf("user already owns the project")
	}
	if p.IsAccessibleBy(target.ID) {
		return nil, invalidf("project is already shared with %s", email)
	}

	if err := s.projects.AddShare(ctx, projectID, target.ID); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, invalidf("project is already shared with %s", email)
		}
		return nil, err
	}
	s.logger.Infow("project shared", "project_id", projectID, "user_id", target.ID, "actor_id", actorID)
	return target, nil
}

// Unshare отзывает доступ. Отзыв несуществующего доступа — NotFound.
func (s *ProjectService) Unshare(ctx context.Context, projectID, actorID, userID int64) error {
	if _, err := projectFor(ctx, s.projects, projectID, actorID); err != nil {
		return err
	}
	removed, err := s.projects.RemoveShare(ctx, projectID, userID)
	if err != nil {
		return err
	}
	if !removed {
		return ErrNotFound
	}
	s.logger.Infow("project unshared", "project_id", projectID, "user_id", userID, "actor_id", actorID)
	return nil
}

// AddColumn добавляет пользовательскую колонку (без учёта регистра дубли запрещены).
func (s *ProjectService) AddColumn(ctx context.Context, projectID, actorID int64, name string) ([]string, error) {
	if _, err := projectFor(ctx, s.projects, projectID, actorID); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if err := validation.Validate(name, validation.Required, validation.Length(1, 80)); err != nil {
		return nil, invalidf("column: %v", err)
	}
	if isProtectedColumn(name) || strings.EqualFold(name, quantifiableKey) {
		return nil, invalidf("column %q is reserved", name)
	}

	cols, err := s.projects.UpdateColumns(ctx, projectID, func(cols []string) ([]string, error) {
		if containsFold(cols, name) {
			return nil, invalidf("column %q already exists", name)
		}
		return append(cols, name), nil
	})
	if err != nil {
		return nil, notFound("project", err)
	}
	return cols, nil
}

// RemoveColumn удаляет пользовательскую колонку. Защищённые имена удалить нельзя.
func (s *ProjectService) RemoveColumn(ctx context.Context, projectID, actorID int64, name string) ([]string, error) {
	if _, err := projectFor(ctx, s.projects, projectID, actorID); err != nil {
		return nil, err
	}
	if isProtectedColumn(name) {
		return nil, invalidf("column %q is protected", name)
	}

	cols, err := s.projects.UpdateColumns(ctx, projectID, func(cols []string) ([]string, error) {
		out := make([]string, 0, len(cols))
		found := false
		for _, c := range cols {
			if c == name {
				found = true
				continue
			}
			out = append(out, c)
		}
		if !found {
			return nil, ErrNotFound
		}
		return out, nil
	})
	if err != nil {
		return nil, notFound("project", err)
	}
	return cols, nil
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
