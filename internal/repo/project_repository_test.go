package repo

import (
	"ReqKeeper/internal/model"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestProjectRepository_GetAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := NewProjectRepository(f.db)

	p, err := r.GetByID(ctx, f.project.ID)
	require.NoError(t, err)
	require.NotNil(t, p.Owner)
	assert.Equal(t, "owner@example.com", p.Owner.Email)
	assert.Equal(t, []string{"Priority"}, p.Columns())
	if assert.Len(t, p.SharedWith, 1) {
		assert.Equal(t, f.member.ID, p.SharedWith[0].ID)
	}

	// у участника есть свой проект — он идёт первым, общий вторым
	own := &model.Project{Name: "Own", OwnerID: f.member.ID}
	require.NoError(t, r.Create(ctx, own))

	list, err := r.ListForUser(ctx, f.member.ID)
	require.NoError(t, err)
	if assert.Len(t, list, 2) {
		assert.Equal(t, own.ID, list[0].ID)
		assert.Equal(t, f.project.ID, list[1].ID)
	}

	_, err = r.GetByID(ctx, 9999)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestProjectRepository_Shares(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := NewProjectRepository(f.db)

	// повторная выдача доступа
	assert.ErrorIs(t, r.AddShare(ctx, f.project.ID, f.member.ID), ErrDuplicate)

	removed, err := r.RemoveShare(ctx, f.project.ID, f.member.ID)
	assert.NoError(t, err)
	assert.True(t, removed)

	removed, err = r.RemoveShare(ctx, f.project.ID, f.member.ID)
	assert.NoError(t, err)
	assert.False(t, removed)

	p, err := r.GetByID(ctx, f.project.ID)
	require.NoError(t, err)
	assert.Empty(t, p.SharedWith)
}

func TestProjectRepository_UpdateColumns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := NewProjectRepository(f.db)

	cols, err := r.UpdateColumns(ctx, f.project.ID, func(cols []string) ([]string, error) {
		return append(cols, "Owner"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Priority", "Owner"}, cols)

	// ошибка из fn откатывает изменение
	boom := errors.New("boom")
	_, err = r.UpdateColumns(ctx, f.project.ID, func(cols []string) ([]string, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	p, err := r.GetByID(ctx, f.project.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Priority", "Owner"}, p.Columns())
}

func TestProjectRepository_DeleteCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	projects := NewProjectRepository(f.db)
	reqs := NewRequirementRepository(f.db)
	comments := NewCommentRepository(f.db)
	presence := NewPresenceRepository(f.db)

	req := &model.Requirement{ProjectID: f.project.ID, Key: "login"}
	v := newVersion("Login", f.owner.ID)
	require.NoError(t, reqs.CreateWithVersion(ctx, req, v, createdEntry(f.owner.ID)))
	require.NoError(t, comments.Create(ctx, &model.RequirementComment{VersionID: v.ID, AuthorID: f.member.ID, Text: "hi"}))
	require.NoError(t, presence.Touch(ctx, f.member.ID, f.project.ID, v.CreatedAt))

	require.NoError(t, projects.Delete(ctx, f.project.ID))

	for _, m := range []any{&model.Requirement{}, &model.RequirementVersion{}, &model.RequirementVersionHistory{}, &model.RequirementComment{}, &model.ActiveSession{}} {
		var n int64
		require.NoError(t, f.db.Model(m).Count(&n).Error)
		assert.Zero(t, n, "%T must be removed", m)
	}
	var shares int64
	require.NoError(t, f.db.Table("project_shares").Count(&shares).Error)
	assert.Zero(t, shares)

	assert.ErrorIs(t, projects.Delete(ctx, f.project.ID), gorm.ErrRecordNotFound)
}
