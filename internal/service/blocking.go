package service

import (
	"ReqKeeper/internal/model"
	"ReqKeeper/internal/repo"
	"context"
	"time"

	"go.uber.org/zap"
)

// CanEdit: версию можно править, если она не заблокирована,
// либо пользователь — тот, кто её заблокировал, либо владелец проекта.
func CanEdit(v *model.RequirementVersion, p *model.Project, userID int64) bool {
	if !v.IsBlocked {
		return true
	}
	if v.BlockedByID != nil && *v.BlockedByID == userID {
		return true
	}
	return p.IsOwner(userID)
}

// BlockingService — рекомендательная блокировка версий (без таймаута).
type BlockingService struct {
	repos  *repo.Repositories
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewBlockingService(repos *repo.Repositories, logger *zap.SugaredLogger) *BlockingService {
	return &BlockingService{repos: repos, logger: logger, now: time.Now}
}

// Block блокирует версию. Участник может заблокировать только свободную версию,
// владелец проекта перехватывает чужую блокировку.
func (s *BlockingService) Block(ctx context.Context, versionID, userID int64) (*model.RequirementVersion, error) {
	sc, err := versionFor(ctx, s.repos, versionID, userID)
	if err != nil {
		return nil, err
	}
	v, p := sc.version, sc.project

	if v.IsBlocked {
		if v.BlockedByID != nil && *v.BlockedByID == userID {
			return v, nil
		}
		if !p.IsOwner(userID) {
			return nil, ErrEditForbidden
		}
	}

	ok, err := s.repos.Versions.TryBlock(ctx, v.ID, userID, s.now().UTC(), p.IsOwner(userID))
	if err != nil {
		return nil, err
	}
	if !ok {
		// кто-то успел заблокировать между чтением и записью
		return nil, ErrEditForbidden
	}
	s.logger.Infow("version blocked", "version_id", v.ID, "user_id", userID)
	return s.reload(ctx, v.ID)
}

// Unblock снимает блокировку: только заблокировавший или владелец проекта.
func (s *BlockingService) Unblock(ctx context.Context, versionID, userID int64) (*model.RequirementVersion, error) {
	sc, err := versionFor(ctx, s.repos, versionID, userID)
	if err != nil {
		return nil, err
	}
	v, p := sc.version, sc.project
	if !v.IsBlocked {
		return v, nil
	}
	isBlocker := v.BlockedByID != nil && *v.BlockedByID == userID
	if !isBlocker && !p.IsOwner(userID) {
		return nil, ErrEditForbidden
	}

	if err := s.repos.Versions.Unblock(ctx, v.ID); err != nil {
		return nil, err
	}
	s.logger.Infow("version unblocked", "version_id", v.ID, "user_id", userID)
	return s.reload(ctx, v.ID)
}

// CanEdit проверяет доступ к проекту и право правки версии.
func (s *BlockingService) CanEdit(ctx context.Context, versionID, userID int64) (bool, error) {
	sc, err := versionFor(ctx, s.repos, versionID, userID)
	if err != nil {
		return false, err
	}
	return CanEdit(sc.version, sc.project, userID), nil
}

func (s *BlockingService) reload(ctx context.Context, id int64) (*model.RequirementVersion, error) {
	v, err := s.repos.Versions.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("version", err)
	}
	return v, nil
}
