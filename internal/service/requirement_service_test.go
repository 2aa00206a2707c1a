package service

import (
	"ReqKeeper/internal/model"
	"ReqKeeper/internal/repo"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestParseEditPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    EditPolicy
		wantErr bool
	}{
		{in: "", want: EditAppend},
		{in: "append", want: EditAppend},
		{in: " IN_PLACE ", want: EditInPlace},
		{in: "in-place", want: EditInPlace},
		{in: "overwrite", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEditPolicy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// ошибки валидации называют поля так же, как их видит клиент API
func TestVersionInput_ValidationFieldNames(t *testing.T) {
	err := VersionFields{Title: "T"}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "description")
	assert.NotContains(t, err.Error(), "Description")

	err = VersionUpdate{Title: "T", Description: "D", SaveType: "draft"}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save_type")
}

func TestRequirementService_CreateRequirement(t *testing.T) {
	e := newTestEnv(t, EditAppend)
	ctx := context.Background()

	req, v := e.createRequirement(t, "  Login   Feature ")
	assert.Equal(t, "login feature", req.Key)
	assert.Equal(t, 1, v.VersionIndex)
	assert.Equal(t, "A", v.VersionLabel)
	assert.Equal(t, "Login   Feature", v.Title)
	assert.Equal(t, model.StatusOpen, v.Status)
	assert.Equal(t, "High", v.Custom()["Priority"])

	// участники получают уведомление, автор — нет
	assert.Equal(t, int64(1), e.unread(t, e.member.ID))
	assert.Equal(t, int64(1), e.unread(t, e.other.ID))
	assert.Equal(t, int64(0), e.unread(t, e.owner.ID))

	t.Run("same key is rejected", func(t *testing.T) {
		_, err := e.requirements.CreateRequirement(ctx, e.project.ID, e.member.ID, fields("login feature"))
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("outsider has no access", func(t *testing.T) {
		_, err := e.requirements.CreateRequirement(ctx, e.project.ID, e.outsider.ID, fields("Other"))
		assert.ErrorIs(t, err, ErrAccessDenied)
	})

	t.Run("missing project", func(t *testing.T) {
		_, err := e.requirements.CreateRequirement(ctx, 999, e.owner.ID, fields("Other"))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("validation", func(t *testing.T) {
		f := fields("No description")
		f.Description = "   "
		_, err := e.requirements.CreateRequirement(ctx, e.project.ID, e.owner.ID, f)
		assert.ErrorIs(t, err, ErrValidation)
		assert.Contains(t, err.Error(), "description")

		f = fields("Unknown column")
		f.Custom["Risk"] = "low"
		_, err = e.requirements.CreateRequirement(ctx, e.project.ID, e.owner.ID, f)
		assert.ErrorIs(t, err, ErrValidation)

		f = fields("Bad status")
		f.Status = "Paused"
		_, err = e.requirements.CreateRequirement(ctx, e.project.ID, e.owner.ID, f)
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestRequirementService_AppendVersionLabels(t *testing.T) {
	e := newTestEnv(t, EditAppend)
	ctx := context.Background()
	req, _ := e.createRequirement(t, "Search")

	for i := 0; i < 3; i++ {
		f := fields("Search")
		f.Description = "revision " + model.VersionLabel(i+2)
		_, err := e.requirements.AppendVersion(ctx, req.ID, e.member.ID, f)
		require.NoError(t, err)
	}

	list := e.versions(t, req.ID)
	require.Len(t, list, 4)
	for i, v := range list {
		assert.Equal(t, i+1, v.VersionIndex)
		assert.Equal(t, model.VersionLabel(i+1), v.VersionLabel)
	}
	assert.Equal(t, "revision D", list[3].Description)

	history, err := e.history.VersionHistory(ctx, list[1].ID, e.owner.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, model.ChangeCreated, history[0].ChangeType)
	assert.Equal(t, "A", history[0].ChangeMap()["based_on"])
}

func TestRequirementService_AppendVersionConcurrent(t *testing.T) {
	e := newTestEnv(t, EditAppend)
	ctx := context.Background()
	req, _ := e.createRequirement(t, "Export")

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.requirements.AppendVersion(ctx, req.ID, e.member.ID, fields("Export"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	list := e.versions(t, req.ID)
	require.Len(t, list, writers+1)
	seen := map[int]bool{}
	for i, v := range list {
		assert.False(t, seen[v.VersionIndex], "duplicate index %d", v.VersionIndex)
		seen[v.VersionIndex] = true
		assert.Equal(t, i+1, v.VersionIndex)
	}
}

func TestRequirementService_AppendVersionRetry(t *testing.T) {
	e := newTestEnv(t, EditAppend)
	ctx := context.Background()
	req, _ := e.createRequirement(t, "Retry")

	t.Run("single conflict is retried", func(t *testing.T) {
		m := &conflictingRequirements{RequirementRepository: e.repos.Requirements}
		m.On("AppendVersion", mock.Anything, req.ID, mock.Anything, mock.Anything).Return(repo.ErrVersionConflict).Once()
		m.On("AppendVersion", mock.Anything, req.ID, mock.Anything, mock.Anything).Return(nil).Once()
		svc := *e.requirements
		repos := *e.repos
		repos.Requirements = m
		svc.repos = &repos

		_, err := svc.AppendVersion(ctx, req.ID, e.owner.ID, fields("Retry"))
		assert.NoError(t, err)
		m.AssertNumberOfCalls(t, "AppendVersion", 2)
	})

	t.Run("second conflict surfaces", func(t *testing.T) {
		m := &conflictingRequirements{RequirementRepository: e.repos.Requirements}
		m.On("AppendVersion", mock.Anything, req.ID, mock.Anything, mock.Anything).Return(repo.ErrVersionConflict).Twice()
		svc := *e.requirements
		repos := *e.repos
		repos.Requirements = m
		svc.repos = &repos

		_, err := svc.AppendVersion(ctx, req.ID, e.owner.ID, fields("Retry"))
		assert.ErrorIs(t, err, ErrConcurrentVersionConflict)
		m.AssertNumberOfCalls(t, "AppendVersion", 2)
	})
}

func TestRequirementService_ResolveOrCreate(t *testing.T) {
	e := newTestEnv(t, EditAppend)
	ctx := context.Background()
	login, _ := e.createRequirement(t, "Login")

	t.Run("normalized key matches existing", func(t *testing.T) {
		res, err := e.requirements.ResolveOrCreate(ctx, e.project.ID, e.member.ID,
			Candidate{Fields: fields("  LOGIN ")}, Origin{Source: "ai"})
		require.NoError(t, err)
		assert.False(t, res.Created)
		assert.Equal(t, login.ID, res.Requirement.ID)
		assert.Equal(t, "B", res.Version.VersionLabel)
	})

	t.Run("explicit id wins over title", func(t *testing.T) {
		id := login.ID
		res, err := e.requirements.ResolveOrCreate(ctx, e.project.ID, e.member.ID,
			Candidate{ID: &id, Fields: fields("Sign in")}, Origin{Source: "ai"})
		require.NoError(t, err)
		assert.Equal(t, login.ID, res.Requirement.ID)
		assert.Equal(t, "C", res.Version.VersionLabel)
		// ключ следует за текущим заголовком
		assert.Equal(t, "sign in", res.Requirement.Key)
	})

	t.Run("foreign id falls back to key", func(t *testing.T) {
		foreign, err := e.projects.CreateProject(ctx, e.outsider.ID, "Foreign")
		require.NoError(t, err)
		// у чужого проекта нет колонки Priority
		plain := fields("Other")
		plain.Custom = nil
		other, err := e.requirements.CreateRequirement(ctx, foreign.ID, e.outsider.ID, plain)
		require.NoError(t, err)

		id := other.ID
		res, err := e.requirements.ResolveOrCreate(ctx, e.project.ID, e.member.ID,
			Candidate{ID: &id, Fields: fields("Other")}, Origin{})
		require.NoError(t, err)
		assert.True(t, res.Created)
		assert.NotEqual(t, other.ID, res.Requirement.ID)
		assert.Equal(t, e.project.ID, res.Requirement.ProjectID)
	})

	t.Run("resolve without match", func(t *testing.T) {
		_, err := e.requirements.Resolve(ctx, e.project.ID, e.member.ID, nil, "does not exist")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("deleted requirement is restored", func(t *testing.T) {
		gone, _ := e.createRequirement(t, "Gone")
		require.NoError(t, e.requirements.SoftDelete(ctx, gone.ID, e.owner.ID))

		res, err := e.requirements.ResolveOrCreate(ctx, e.project.ID, e.owner.ID,
			Candidate{Fields: fields("gone")}, Origin{Source: "import"})
		require.NoError(t, err)
		assert.True(t, res.Restored)
		assert.Equal(t, gone.ID, res.Requirement.ID)

		active, err := e.requirements.ListRequirements(ctx, e.project.ID, e.owner.ID)
		require.NoError(t, err)
		ids := []int64{}
		for _, r := range active {
			ids = append(ids, r.ID)
		}
		assert.Contains(t, ids, gone.ID)
	})
}

func TestRequirementService_IngestScenario(t *testing.T) {
	e := newTestEnv(t, EditAppend)
	ctx := context.Background()

	report, err := e.requirements.Ingest(ctx, e.project.ID, e.owner.ID, []map[string]string{
		{"title": "Login", "description": "User can log in", "Priority": "High"},
	}, IngestOptions{Source: "import"})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	assert.NotEmpty(t, report.RunID)

	list, err := e.requirements.ListRequirements(ctx, e.project.ID, e.owner.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	req := list[0]
	assert.Equal(t, "login", req.Key)
	require.Len(t, req.Versions, 1)
	assert.Equal(t, "A", req.Versions[0].VersionLabel)
	assert.Equal(t, map[string]string{"Priority": "High"}, req.Versions[0].Custom())

	report, err = e.requirements.Ingest(ctx, e.project.ID, e.owner.ID, []map[string]string{
		{"Titel": " login ", "Beschreibung": "User can log in with SSO"},
	}, IngestOptions{Source: "import"})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 1, report.Updated)

	versions := e.versions(t, req.ID)
	require.Len(t, versions, 2)
	assert.Equal(t, "B", versions[1].VersionLabel)
	assert.Equal(t, "User can log in with SSO", versions[1].Description)

	history, err := e.history.VersionHistory(ctx, versions[1].ID, e.owner.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, report.RunID, history[0].ChangeMap()["run_id"])
	assert.Equal(t, "import", history[0].ChangeMap()["source"])
}

func TestRequirementService_IngestRows(t *testing.T) {
	e := newTestEnv(t, EditAppend)
	ctx := context.Background()

	report, err := e.requirements.Ingest(ctx, e.project.ID, e.owner.ID, []map[string]string{
		{"title": "Reports", "description": "Monthly reports", "status": "In Arbeit", "Risk": "low", "is_quantifiable": "ja"},
		{"title": "No description"},
		{"title": "Archive", "description": "Archive old data", "status": "unknown"},
		{"title": "", "description": "orphan"},
	}, IngestOptions{Source: "ai", AddUnknownColumns: true})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Created)
	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, []string{"Risk"}, report.AddedColumns)

	p, err := e.projects.GetProject(ctx, e.project.ID, e.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Priority", "Risk"}, p.Columns())

	board, err := e.requirements.StatusBoard(ctx, e.project.ID, e.owner.ID)
	require.NoError(t, err)
	require.Len(t, board, 2)
	byTitle := map[string]StatusEntry{}
	for _, s := range board {
		byTitle[s.Title] = s
	}
	assert.Equal(t, model.StatusInProgress, byTitle["Reports"].Status)
	assert.Equal(t, model.StatusOpen, byTitle["Archive"].Status)

	list, err := e.requirements.ListRequirements(ctx, e.project.ID, e.owner.ID)
	require.NoError(t, err)
	for _, r := range list {
		if r.Key == "reports" {
			custom := r.LatestVersion().Custom()
			assert.Equal(t, "low", custom["Risk"])
			assert.Equal(t, "true", custom["is_quantifiable"])
		}
	}
}

func TestCandidateFromMap(t *testing.T) {
	c, ok := CandidateFromMap(map[string]string{
		"REQ-ID":      " 42 ",
		"Title":       "Login",
		"Description": "desc",
		"Kategorie":   "security",
		"status":      "fertig",
		"priority":    "High",
	}, []string{"Priority"})
	require.True(t, ok)
	require.NotNil(t, c.ID)
	assert.Equal(t, int64(42), *c.ID)
	assert.Equal(t, "security", c.Fields.Category)
	assert.Equal(t, model.StatusDone, c.Fields.Status)
	assert.Equal(t, "High", c.Fields.Custom["Priority"])

	c, ok = CandidateFromMap(map[string]string{"title": "T", "description": "D", "id": "abc"}, nil)
	require.True(t, ok)
	assert.Nil(t, c.ID)
	assert.Equal(t, model.StatusOpen, c.Fields.Status)

	_, ok = CandidateFromMap(map[string]string{"title": "T"}, nil)
	assert.False(t, ok)
}

func TestRequirementService_UpdateVersionAppend(t *testing.T) {
	e := newTestEnv(t, EditAppend)
	ctx := context.Background()
	req, v := e.createRequirement(t, "Profile")

	res, err := e.requirements.UpdateVersion(ctx, v.ID, e.member.ID, VersionUpdate{
		Title:       "Profile page",
		Description: v.Description,
		Category:    v.Category,
		Custom:      map[string]string{"Priority": "Low"},
	})
	require.NoError(t, err)
	assert.True(t, res.Appended)
	assert.Equal(t, map[string]string{
		"title":           "Profile → Profile page",
		"custom_Priority": "High → Low",
	}, res.Changes)

	list := e.versions(t, req.ID)
	require.Len(t, list, 2)
	assert.Equal(t, "Profile", list[0].Title, "previous version stays untouched")
	assert.Equal(t, "Profile page", list[1].Title)
	assert.Equal(t, model.StatusOpen, list[1].Status, "status carried forward")
	assert.Equal(t, "Low", list[1].Custom()["Priority"])

	history, err := e.history.VersionHistory(ctx, list[1].ID, e.owner.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.ChangeCreated, history[0].ChangeType)
	assert.Equal(t, model.ChangeModified, history[1].ChangeType)

	updated, err := e.repos.Requirements.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, "profile page", updated.Key)

	t.Run("empty diff writes nothing", func(t *testing.T) {
		res, err := e.requirements.UpdateVersion(ctx, list[1].ID, e.member.ID, currentUpdate(&list[1]))
		require.NoError(t, err)
		assert.False(t, res.Appended)
		assert.Empty(t, res.Changes)
		assert.Len(t, e.versions(t, req.ID), 2)
	})

	t.Run("save type drives status", func(t *testing.T) {
		u := currentUpdate(&list[1])
		u.Status = ""
		u.SaveType = SaveFinal
		res, err := e.requirements.UpdateVersion(ctx, list[1].ID, e.member.ID, u)
		require.NoError(t, err)
		assert.Equal(t, model.StatusDone, res.Version.Status)
		assert.Equal(t, "Open → Done", res.Changes["status"])

		history, err := e.history.VersionHistory(ctx, res.Version.ID, e.owner.ID)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, model.ChangeStatusChanged, history[1].ChangeType)
	})
}

func TestRequirementService_UpdateVersionInPlace(t *testing.T) {
	e := newTestEnv(t, EditInPlace)
	ctx := context.Background()
	req, v := e.createRequirement(t, "Checkout")
	before := e.unread(t, e.other.ID)

	res, err := e.requirements.UpdateVersion(ctx, v.ID, e.member.ID, VersionUpdate{
		Title:       v.Title,
		Description: "rewritten",
		Category:    "",
		Status:      "in progress",
	})
	require.NoError(t, err)
	assert.False(t, res.Appended)
	assert.Equal(t, map[string]string{
		"description": "changed",
		"category":    "functional → –",
		"status":      "Open → InProgress",
	}, res.Changes)

	list := e.versions(t, req.ID)
	require.Len(t, list, 1, "version count unchanged")
	assert.Equal(t, "rewritten", list[0].Description)
	assert.Equal(t, model.StatusInProgress, list[0].Status)
	require.NotNil(t, list[0].LastModifiedByID)
	assert.Equal(t, e.member.ID, *list[0].LastModifiedByID)
	assert.Equal(t, before+1, e.unread(t, e.other.ID))

	timeline, err := e.history.Timeline(ctx, req.ID, e.other.ID)
	require.NoError(t, err)
	require.Len(t, timeline, 2)
	assert.Equal(t, model.ChangeCreated, timeline[0].ChangeType)
	assert.Equal(t, model.ChangeModified, timeline[1].ChangeType)

	t.Run("status only", func(t *testing.T) {
		res, err := e.requirements.SetStatus(ctx, v.ID, e.member.ID, "Done")
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"status": "InProgress → Done"}, res.Changes)
		history, err := e.history.VersionHistory(ctx, v.ID, e.owner.ID)
		require.NoError(t, err)
		assert.Equal(t, model.ChangeStatusChanged, history[len(history)-1].ChangeType)
	})

	t.Run("unknown status", func(t *testing.T) {
		_, err := e.requirements.SetStatus(ctx, v.ID, e.member.ID, "Paused")
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("custom value and quantifiable", func(t *testing.T) {
		res, err := e.requirements.SetCustomValue(ctx, v.ID, e.member.ID, "Priority", "Medium")
		require.NoError(t, err)
		assert.Equal(t, "High → Medium", res.Changes["custom_Priority"])

		res, err = e.requirements.ToggleQuantifiable(ctx, v.ID, e.member.ID)
		require.NoError(t, err)
		assert.Equal(t, "no → yes", res.Changes["is_quantifiable"])
		assert.Equal(t, "true", res.Version.Custom()["is_quantifiable"])

		_, err = e.requirements.SetCustomValue(ctx, v.ID, e.member.ID, "Risk", "low")
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestRequirementService_UpdateBlockedVersion(t *testing.T) {
	for _, policy := range []EditPolicy{EditAppend, EditInPlace} {
		t.Run(string(policy), func(t *testing.T) {
			e := newTestEnv(t, policy)
			ctx := context.Background()
			_, v := e.createRequirement(t, "Locked")

			_, err := e.blocking.Block(ctx, v.ID, e.member.ID)
			require.NoError(t, err)

			u := currentUpdate(v)
			u.Description = "changed by other"
			_, err = e.requirements.UpdateVersion(ctx, v.ID, e.other.ID, u)
			assert.ErrorIs(t, err, ErrEditForbidden)

			_, err = e.requirements.DeleteVersion(ctx, v.ID, e.other.ID)
			assert.ErrorIs(t, err, ErrEditForbidden)

			res, err := e.requirements.UpdateVersion(ctx, v.ID, e.member.ID, u)
			require.NoError(t, err)
			if policy == EditAppend {
				assert.True(t, res.Version.IsBlocked, "blocking carried to the new version")
				require.NotNil(t, res.Version.BlockedByID)
				assert.Equal(t, e.member.ID, *res.Version.BlockedByID)
			}

			u.Description = "changed by owner"
			_, err = e.requirements.UpdateVersion(ctx, res.Version.ID, e.owner.ID, u)
			assert.NoError(t, err)
		})
	}
}

func TestRequirementService_DeleteAndTrash(t *testing.T) {
	e := newTestEnv(t, EditAppend)
	ctx := context.Background()

	t.Run("deleting one of several versions", func(t *testing.T) {
		req, v := e.createRequirement(t, "Multi")
		_, err := e.requirements.AppendVersion(ctx, req.ID, e.owner.ID, fields("Multi"))
		require.NoError(t, err)

		trashed, err := e.requirements.DeleteVersion(ctx, v.ID, e.member.ID)
		require.NoError(t, err)
		assert.False(t, trashed)

		list := e.versions(t, req.ID)
		require.Len(t, list, 1)
		assert.Equal(t, "B", list[0].VersionLabel)
	})

	t.Run("deleting the only version trashes the requirement", func(t *testing.T) {
		req, v := e.createRequirement(t, "Single")
		trashed, err := e.requirements.DeleteVersion(ctx, v.ID, e.member.ID)
		require.NoError(t, err)
		assert.True(t, trashed)

		active, err := e.requirements.ListRequirements(ctx, e.project.ID, e.owner.ID)
		require.NoError(t, err)
		for _, r := range active {
			assert.NotEqual(t, req.ID, r.ID)
		}

		trash, err := e.requirements.ListTrash(ctx, e.owner.ID)
		require.NoError(t, err)
		require.Len(t, trash, 1)
		assert.Equal(t, req.ID, trash[0].ID)
		require.NotNil(t, trash[0].Project)
		assert.Equal(t, "Portal", trash[0].Project.Name)

		// участник не владеет проектом — его корзина пуста
		memberTrash, err := e.requirements.ListTrash(ctx, e.member.ID)
		require.NoError(t, err)
		assert.Empty(t, memberTrash)

		require.NoError(t, e.requirements.Restore(ctx, req.ID, e.member.ID))
		trash, err = e.requirements.ListTrash(ctx, e.owner.ID)
		require.NoError(t, err)
		assert.Empty(t, trash)
	})

	t.Run("deleting the latest version restores the previous key", func(t *testing.T) {
		req, _ := e.createRequirement(t, "Login")
		vB, err := e.requirements.AppendVersion(ctx, req.ID, e.owner.ID, fields("Sign in"))
		require.NoError(t, err)

		_, err = e.requirements.DeleteVersion(ctx, vB.ID, e.owner.ID)
		require.NoError(t, err)

		// повторный импорт старого заголовка попадает в то же требование
		res, err := e.requirements.ResolveOrCreate(ctx, e.project.ID, e.owner.ID,
			Candidate{Fields: fields("login")}, Origin{Source: "import"})
		require.NoError(t, err)
		assert.False(t, res.Created)
		assert.Equal(t, req.ID, res.Requirement.ID)

		// а новый заголовок свободен
		fresh, err := e.requirements.CreateRequirement(ctx, e.project.ID, e.owner.ID, fields("Sign in"))
		require.NoError(t, err)
		assert.NotEqual(t, req.ID, fresh.ID)
	})

	t.Run("deleting the latest version onto a taken title", func(t *testing.T) {
		req, _ := e.createRequirement(t, "Export")
		vB, err := e.requirements.AppendVersion(ctx, req.ID, e.owner.ID, fields("Export csv"))
		require.NoError(t, err)
		e.createRequirement(t, "Export")

		_, err = e.requirements.DeleteVersion(ctx, vB.ID, e.owner.ID)
		assert.ErrorIs(t, err, ErrValidation)
		assert.Len(t, e.versions(t, req.ID), 2)
	})

	t.Run("trashed requirement is read-only", func(t *testing.T) {
		req, v := e.createRequirement(t, "Archived")
		require.NoError(t, e.requirements.SoftDelete(ctx, req.ID, e.owner.ID))

		_, err := e.requirements.AppendVersion(ctx, req.ID, e.owner.ID, fields("Archived"))
		assert.ErrorIs(t, err, ErrValidation)
		assert.Contains(t, err.Error(), "trash")

		_, err = e.requirements.UpdateVersion(ctx, v.ID, e.owner.ID, VersionUpdate{
			Title:       "Archived",
			Description: "changed",
		})
		assert.ErrorIs(t, err, ErrValidation)
		_, err = e.requirements.SetStatus(ctx, v.ID, e.owner.ID, string(model.StatusInProgress))
		assert.ErrorIs(t, err, ErrValidation)
		assert.Len(t, e.versions(t, req.ID), 1)

		// пересоздать по тому же заголовку нельзя, ошибка подсказывает про корзину
		_, err = e.requirements.CreateRequirement(ctx, e.project.ID, e.owner.ID, fields("archived"))
		assert.ErrorIs(t, err, ErrValidation)
		assert.Contains(t, err.Error(), "trash")

		require.NoError(t, e.requirements.Restore(ctx, req.ID, e.owner.ID))
		_, err = e.requirements.AppendVersion(ctx, req.ID, e.owner.ID, fields("Archived"))
		require.NoError(t, err)
	})

	t.Run("permanent delete", func(t *testing.T) {
		req, v := e.createRequirement(t, "Doomed")
		_, err := e.comments.Add(ctx, v.ID, e.member.ID, "bye", nil)
		require.NoError(t, err)

		require.NoError(t, e.requirements.PermanentlyDelete(ctx, req.ID, e.owner.ID))
		_, err = e.requirements.ListVersions(ctx, req.ID, e.owner.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, e.requirements.Restore(ctx, req.ID, e.owner.ID), ErrNotFound)
	})

	t.Run("outsider cannot trash", func(t *testing.T) {
		req, _ := e.createRequirement(t, "Guarded")
		assert.ErrorIs(t, e.requirements.SoftDelete(ctx, req.ID, e.outsider.ID), ErrAccessDenied)
	})
}

func TestRequirementService_Kanban(t *testing.T) {
	e := newTestEnv(t, EditAppend)
	ctx := context.Background()
	_, a := e.createRequirement(t, "Alpha")
	_, b := e.createRequirement(t, "Beta")

	_, err := e.requirements.SetStatus(ctx, b.ID, e.owner.ID, "done")
	require.NoError(t, err)
	_, err = e.blocking.Block(ctx, a.ID, e.member.ID)
	require.NoError(t, err)

	cols, err := e.requirements.Kanban(ctx, e.project.ID, e.other.ID)
	require.NoError(t, err)
	require.Len(t, cols, 3)
	assert.Equal(t, model.StatusOpen, cols[0].Status)
	require.Len(t, cols[0].Cards, 1)
	assert.Equal(t, "Alpha", cols[0].Cards[0].Title)
	assert.True(t, cols[0].Cards[0].IsBlocked)
	require.NotNil(t, cols[0].Cards[0].BlockedBy)
	assert.Equal(t, "bob@example.com", *cols[0].Cards[0].BlockedBy)
	assert.Empty(t, cols[1].Cards)
	require.Len(t, cols[2].Cards, 1)
	assert.Equal(t, "B", cols[2].Cards[0].VersionLabel)
}

func TestRequirementService_NotificationFailureIsIsolated(t *testing.T) {
	e := newTestEnv(t, EditAppend)
	ctx := context.Background()

	n := new(mockNotifier)
	n.On("RequirementCreated", mock.Anything, mock.Anything, mock.Anything, e.owner.ID).
		Return(errors.New("smtp down")).Once()
	svc := NewRequirementService(e.repos, n, e.metrics, e.requirements.logger, EditAppend)

	req, err := svc.CreateRequirement(ctx, e.project.ID, e.owner.ID, fields("Resilient"))
	require.NoError(t, err)
	assert.NotZero(t, req.ID)
	n.AssertExpectations(t)
}
