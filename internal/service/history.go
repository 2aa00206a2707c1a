package service

import (
	"ReqKeeper/internal/model"
	"ReqKeeper/internal/repo"
	"cmp"
	"context"
	"slices"
	"time"

	"gorm.io/gorm"
)

// TimelineEntry — событие истории версии в хронологической ленте.
type TimelineEntry struct {
	ID          int64             `json:"id,omitempty"`
	ChangeType  string            `json:"change_type"`
	Changes     map[string]string `json:"changes"`
	ChangedByID *int64            `json:"changed_by_id,omitempty"`
	ChangedBy   string            `json:"changed_by"`
	At          time.Time         `json:"at"`
	// Synthetic — событие создания восстановлено по полям версии, записи в журнале нет.
	Synthetic bool `json:"synthetic,omitempty"`
}

// HistoryService — чтение журнала изменений.
type HistoryService struct {
	repos *repo.Repositories
}

func NewHistoryService(repos *repo.Repositories) *HistoryService {
	return &HistoryService{repos: repos}
}

// VersionHistory — записи журнала одной версии в порядке создания.
func (s *HistoryService) VersionHistory(ctx context.Context, versionID, userID int64) ([]model.RequirementVersionHistory, error) {
	if _, err := versionFor(ctx, s.repos, versionID, userID); err != nil {
		return nil, err
	}
	return s.repos.History.ListByVersion(ctx, versionID)
}

// Timeline — лента последней версии требования.
func (s *HistoryService) Timeline(ctx context.Context, requirementID, userID int64) ([]TimelineEntry, error) {
	req, _, err := requirementFor(ctx, s.repos, requirementID, userID)
	if err != nil {
		return nil, err
	}
	latest := req.LatestVersion()
	if latest == nil {
		return nil, notFound("version", gorm.ErrRecordNotFound)
	}
	v, err := s.repos.Versions.GetByID(ctx, latest.ID)
	if err != nil {
		return nil, notFound("version", err)
	}
	entries, err := s.repos.History.ListByVersion(ctx, v.ID)
	if err != nil {
		return nil, err
	}
	return buildTimeline(v, entries), nil
}

func buildTimeline(v *model.RequirementVersion, entries []model.RequirementVersionHistory) []TimelineEntry {
	out := make([]TimelineEntry, 0, len(entries)+1)
	hasCreated := false
	for _, h := range entries {
		if h.ChangeType == model.ChangeCreated {
			hasCreated = true
		}
		by := h.ChangedByID
		e := TimelineEntry{
			ID:          h.ID,
			ChangeType:  h.ChangeType,
			Changes:     h.ChangeMap(),
			ChangedByID: &by,
			At:          h.CreatedAt,
		}
		if h.ChangedBy != nil {
			e.ChangedBy = h.ChangedBy.Email
		}
		out = append(out, e)
	}

	if !hasCreated {
		e := TimelineEntry{
			ChangeType:  model.ChangeCreated,
			Changes:     map[string]string{"action": "created"},
			ChangedByID: v.CreatedByID,
			At:          v.CreatedAt,
			Synthetic:   true,
		}
		if v.CreatedBy != nil {
			e.ChangedBy = v.CreatedBy.Email
		}
		out = append(out, e)
	}

	slices.SortStableFunc(out, func(a, b TimelineEntry) int {
		if c := a.At.Compare(b.At); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}
