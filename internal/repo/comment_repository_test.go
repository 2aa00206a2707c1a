package repo

import (
	"ReqKeeper/internal/model"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestCommentRepository_CRUD(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reqs := NewRequirementRepository(f.db)
	r := NewCommentRepository(f.db)

	req := &model.Requirement{ProjectID: f.project.ID, Key: "c"}
	v := newVersion("C", f.owner.ID)
	require.NoError(t, reqs.CreateWithVersion(ctx, req, v, nil))

	root := &model.RequirementComment{VersionID: v.ID, AuthorID: f.owner.ID, Text: "root"}
	require.NoError(t, r.Create(ctx, root))
	reply := &model.RequirementComment{VersionID: v.ID, AuthorID: f.member.ID, Text: "reply", ParentCommentID: &root.ID}
	require.NoError(t, r.Create(ctx, reply))

	got, err := r.GetByID(ctx, reply.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Author)
	assert.Equal(t, "member@example.com", got.Author.Email)
	assert.Equal(t, root.ID, *got.ParentCommentID)

	require.NoError(t, r.UpdateText(ctx, reply.ID, "edited"))
	got, err = r.GetByID(ctx, reply.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Text)
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))

	// мягкое удаление корня не затрагивает ответ
	require.NoError(t, r.SoftDelete(ctx, root.ID))
	list, err := r.ListByVersion(ctx, v.ID)
	require.NoError(t, err)
	if assert.Len(t, list, 1) {
		assert.Equal(t, reply.ID, list[0].ID)
	}

	assert.ErrorIs(t, r.UpdateText(ctx, 9999, "x"), gorm.ErrRecordNotFound)
}
