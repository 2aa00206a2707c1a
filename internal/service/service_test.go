package service

import (
	"ReqKeeper/internal/metrics"
	"ReqKeeper/internal/model"
	"ReqKeeper/internal/repo"
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// testEnv — изолированная SQLite с владельцем, двумя участниками, посторонним и проектом.
type testEnv struct {
	repos    *repo.Repositories
	metrics  *metrics.Metrics
	owner    *model.User
	member   *model.User
	other    *model.User
	outsider *model.User
	project  *model.Project

	notifications *NotificationService
	requirements  *RequirementService
	blocking      *BlockingService
	history       *HistoryService
	comments      *CommentService
	projects      *ProjectService
}

func newTestEnv(t *testing.T, policy EditPolicy) *testEnv {
	t.Helper()
	db, err := repo.InitDB(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	require.NoError(t, repo.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	ctx := context.Background()
	e := &testEnv{repos: repo.NewRepositories(db), metrics: metrics.New()}
	newUser := func(email string) *model.User {
		u, err := e.repos.Users.CreateUser(ctx, &model.User{Email: email, Password: "h"})
		require.NoError(t, err)
		return u
	}
	e.owner = newUser("anna.owner@example.com")
	e.member = newUser("bob@example.com")
	e.other = newUser("carol.smith@example.com")
	e.outsider = newUser("mallory@example.com")

	p := &model.Project{Name: "Portal", OwnerID: e.owner.ID, CustomColumns: []string{"Priority"}}
	require.NoError(t, e.repos.Projects.Create(ctx, p))
	require.NoError(t, e.repos.Projects.AddShare(ctx, p.ID, e.member.ID))
	require.NoError(t, e.repos.Projects.AddShare(ctx, p.ID, e.other.ID))
	e.project = p

	logger := zap.NewNop().Sugar()
	e.notifications = NewNotificationService(e.repos.Notifications, e.repos.Users, e.metrics, logger)
	e.requirements = NewRequirementService(e.repos, e.notifications, e.metrics, logger, policy)
	e.blocking = NewBlockingService(e.repos, logger)
	e.history = NewHistoryService(e.repos)
	e.comments = NewCommentService(e.repos, e.notifications, e.metrics, logger)
	e.projects = NewProjectService(e.repos.Projects, e.repos.Users, logger)
	return e
}

func fields(title string) VersionFields {
	return VersionFields{
		Title:       title,
		Description: "description of " + title,
		Category:    "functional",
		Custom:      map[string]string{"Priority": "High"},
	}
}

// createRequirement создаёт требование владельцем и возвращает его первую версию.
func (e *testEnv) createRequirement(t *testing.T, title string) (*model.Requirement, *model.RequirementVersion) {
	t.Helper()
	req, err := e.requirements.CreateRequirement(context.Background(), e.project.ID, e.owner.ID, fields(title))
	require.NoError(t, err)
	require.Len(t, req.Versions, 1)
	return req, &req.Versions[0]
}

func (e *testEnv) versions(t *testing.T, requirementID int64) []model.RequirementVersion {
	t.Helper()
	list, err := e.requirements.ListVersions(context.Background(), requirementID, e.owner.ID)
	require.NoError(t, err)
	return list
}

func (e *testEnv) unread(t *testing.T, userID int64) int64 {
	t.Helper()
	n, err := e.notifications.UnreadCount(context.Background(), userID)
	require.NoError(t, err)
	return n
}

// mockNotifier — мок для Notifier
type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) RequirementCreated(ctx context.Context, p *model.Project, v *model.RequirementVersion, actorID int64) error {
	return m.Called(ctx, p, v, actorID).Error(0)
}

func (m *mockNotifier) RequirementUpdated(ctx context.Context, p *model.Project, v *model.RequirementVersion, actorID int64) error {
	return m.Called(ctx, p, v, actorID).Error(0)
}

func (m *mockNotifier) CommentAdded(ctx context.Context, p *model.Project, v *model.RequirementVersion, c *model.RequirementComment, actorID int64) error {
	return m.Called(ctx, p, v, c, actorID).Error(0)
}

var _ Notifier = (*mockNotifier)(nil)

// conflictingRequirements подменяет AppendVersion, остальные методы идут в настоящий репозиторий
type conflictingRequirements struct {
	repo.RequirementRepository
	mock.Mock
}

func (m *conflictingRequirements) AppendVersion(ctx context.Context, requirementID int64, v *model.RequirementVersion, entries []model.RequirementVersionHistory) error {
	return m.Called(ctx, requirementID, v, entries).Error(0)
}
