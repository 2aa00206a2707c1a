package repo

import (
	"ReqKeeper/internal/model"
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// newTestDB инициализирует изолированную in-memory SQLite (modernc.org/sqlite) для теста
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := InitDB(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	if err != nil {
		t.Fatalf("failed to open sqlite (modernc): %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("failed to automigrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// fixture — владелец, участник и проект с общим доступом
type fixture struct {
	db      *gorm.DB
	owner   *model.User
	member  *model.User
	project *model.Project
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	ctx := context.Background()
	users := NewUserRepository(db)
	projects := NewProjectRepository(db)

	owner, err := users.CreateUser(ctx, &model.User{Email: "owner@example.com", Password: "h"})
	require.NoError(t, err)
	member, err := users.CreateUser(ctx, &model.User{Email: "member@example.com", Password: "h"})
	require.NoError(t, err)

	p := &model.Project{Name: "P", OwnerID: owner.ID, CustomColumns: []string{"Priority"}}
	require.NoError(t, projects.Create(ctx, p))
	require.NoError(t, projects.AddShare(ctx, p.ID, member.ID))

	return &fixture{db: db, owner: owner, member: member, project: p}
}

// newVersion — заготовка версии с заполненными полями
func newVersion(title string, by int64) *model.RequirementVersion {
	v := &model.RequirementVersion{
		Title:       title,
		Description: "desc of " + title,
		Category:    "functional",
		Status:      model.StatusOpen,
		CreatedByID: &by,
	}
	v.SetCustom(map[string]string{"Priority": "High"})
	return v
}

func createdEntry(by int64) []model.RequirementVersionHistory {
	return []model.RequirementVersionHistory{{ChangedByID: by, ChangeType: model.ChangeCreated}}
}
