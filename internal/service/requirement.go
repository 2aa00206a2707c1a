package service

import (
	"ReqKeeper/internal/metrics"
	"ReqKeeper/internal/model"
	"ReqKeeper/internal/repo"
	"context"
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EditPolicy — что происходит с версией при редактировании.
type EditPolicy string

const (
	// EditAppend — каждое изменение создаёт версию n+1, старая остаётся нетронутой.
	EditAppend EditPolicy = "append"
	// EditInPlace — поля версии меняются на месте, diff пишется в историю.
	EditInPlace EditPolicy = "in_place"
)

func ParseEditPolicy(s string) (EditPolicy, error) {
	switch EditPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", EditAppend:
		return EditAppend, nil
	case EditInPlace, "in-place", "inplace":
		return EditInPlace, nil
	}
	return "", fmt.Errorf("unknown edit policy %q", s)
}

// SaveType из формы редактирования.
type SaveType string

const (
	SaveIntermediate SaveType = "intermediate"
	SaveFinal        SaveType = "final"
)

const (
	quantifiableKey = "is_quantifiable"
	emptyMark       = "–"
	arrow           = " → "
)

// Origin: откуда пришла версия (ручной ввод, импорт, генерация) и id прогона.
type Origin struct {
	Source string
	RunID  string
}

// VersionFields содержит поля создаваемой версии.
type VersionFields struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Category    string            `json:"category"`
	Status      model.Status      `json:"status"`
	Custom      map[string]string `json:"custom"`
}

func (f *VersionFields) normalize() {
	f.Title = strings.TrimSpace(f.Title)
	f.Description = strings.TrimSpace(f.Description)
	f.Category = strings.TrimSpace(f.Category)
}

func (f VersionFields) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Title, validation.Required, validation.Length(1, 160)),
		validation.Field(&f.Description, validation.Required, validation.Length(1, 2000)),
		validation.Field(&f.Category, validation.Length(0, 80)),
	)
}

// VersionUpdate — правка существующей версии. Custom содержит только переданные колонки,
// Quantifiable == nil оставляет флаг без изменений.
type VersionUpdate struct {
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	Category     string            `json:"category"`
	Status       string            `json:"status"`
	SaveType     SaveType          `json:"save_type"`
	Custom       map[string]string `json:"custom"`
	Quantifiable *bool             `json:"quantifiable"`
}

func (u *VersionUpdate) normalize() {
	u.Title = strings.TrimSpace(u.Title)
	u.Description = strings.TrimSpace(u.Description)
	u.Category = strings.TrimSpace(u.Category)
	u.Status = strings.TrimSpace(u.Status)
}

func (u VersionUpdate) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.Title, validation.Required, validation.Length(1, 160)),
		validation.Field(&u.Description, validation.Required, validation.Length(1, 2000)),
		validation.Field(&u.Category, validation.Length(0, 80)),
		validation.Field(&u.SaveType, validation.In(SaveIntermediate, SaveFinal)),
	)
}

// UpdateResult — итог правки. При пустом diff Changes пуст и ничего не записано.
type UpdateResult struct {
	Version  *model.RequirementVersion
	Changes  map[string]string
	Appended bool
}

// Candidate: набор полей от импорта или генерации с необязательной подсказкой ID.
type Candidate struct {
	ID     *int64
	Fields VersionFields
}

// Resolution — результат сопоставления кандидата с требованием.
type Resolution struct {
	Requirement *model.Requirement
	Version     *model.RequirementVersion
	Created     bool
	Restored    bool
}

// StatusEntry — состояние последней версии требования для опроса доски.
type StatusEntry struct {
	RequirementID int64        `json:"req_id"`
	VersionID     int64        `json:"version_id"`
	VersionLabel  string       `json:"version_label"`
	Title         string       `json:"title"`
	Status        model.Status `json:"status"`
	IsBlocked     bool         `json:"is_blocked"`
	BlockedBy     *string      `json:"blocked_by"`
}

// KanbanColumn is one board column.
type KanbanColumn struct {
	Status model.Status  `json:"status"`
	Cards  []StatusEntry `json:"cards"`
}

// RequirementService — хранилище версионируемых требований.
type RequirementService struct {
	repos    *repo.Repositories
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *zap.SugaredLogger
	policy   EditPolicy
}

func NewRequirementService(
	repos *repo.Repositories,
	notifier Notifier,
	m *metrics.Metrics,
	logger *zap.SugaredLogger,
	policy EditPolicy,
) *RequirementService {
	if policy == "" {
		policy = EditAppend
	}
	return &RequirementService{repos: repos, notifier: notifier, metrics: m, logger: logger, policy: policy}
}

// Policy возвращает действующую политику редактирования.
func (s *RequirementService) Policy() EditPolicy {
	return s.policy
}

// CreateRequirement создаёт требование с первой версией (index 1, label A).
func (s *RequirementService) CreateRequirement(ctx context.Context, projectID, actorID int64, f VersionFields) (*model.Requirement, error) {
	p, err := projectFor(ctx, s.repos.Projects, projectID, actorID)
	if err != nil {
		return nil, err
	}
	v, err := buildVersion(p, f, actorID)
	if err != nil {
		return nil, err
	}

	req := &model.Requirement{ProjectID: p.ID, Key: model.NormalizeKey(v.Title)}
	if err := s.repos.Requirements.CreateWithVersion(ctx, req, v, createdEntries(actorID, Origin{}, nil)); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, s.duplicateTitle(ctx, req, v.Title)
		}
		return nil, err
	}
	s.metrics.VersionAppended("manual")
	s.logger.Infow("requirement created", "requirement_id", req.ID, "project_id", p.ID, "actor_id", actorID)

	s.notify("requirement_created", func() error {
		return s.notifier.RequirementCreated(ctx, p, v, actorID)
	})
	return req, nil
}

// duplicateTitle объясняет, чем занят ключ: живым требованием или требованием в корзине.
func (s *RequirementService) duplicateTitle(ctx context.Context, req *model.Requirement, title string) error {
	other, err := s.repos.Requirements.FindByKey(ctx, req.ProjectID, req.Key)
	if err == nil && other.IsDeleted {
		return invalidf("requirement %q is in the trash (id %d); restore it instead of creating a new one", title, other.ID)
	}
	return invalidf("requirement %q already exists in the project", title)
}

// AppendVersion добавляет версию n+1 с новым содержимым.
func (s *RequirementService) AppendVersion(ctx context.Context, requirementID, actorID int64, f VersionFields) (*model.RequirementVersion, error) {
	req, p, err := requirementFor(ctx, s.repos, requirementID, actorID)
	if err != nil {
		return nil, err
	}
	if req.IsDeleted {
		return nil, errTrashed
	}
	v, err := buildVersion(p, f, actorID)
	if err != nil {
		return nil, err
	}
	if err := s.appendVersion(ctx, req, v, createdEntries(actorID, Origin{}, req.LatestVersion()), Origin{}); err != nil {
		return nil, err
	}

	s.notify("requirement_updated", func() error {
		return s.notifier.RequirementUpdated(ctx, p, v, actorID)
	})
	return v, nil
}

// appendVersion пишет версию с одним повтором при гонке за индекс.
func (s *RequirementService) appendVersion(ctx context.Context, req *model.Requirement, v *model.RequirementVersion, entries []model.RequirementVersionHistory, origin Origin) error {
	if err := s.guardKey(ctx, req, v.Title); err != nil {
		return err
	}

	err := s.repos.Requirements.AppendVersion(ctx, req.ID, v, entries)
	if errors.Is(err, repo.ErrVersionConflict) {
		s.metrics.VersionConflict()
		s.logger.Warnw("version index conflict, retrying", "requirement_id", req.ID)
		err = s.repos.Requirements.AppendVersion(ctx, req.ID, v, entries)
		if errors.Is(err, repo.ErrVersionConflict) {
			s.metrics.VersionConflict()
			return ErrConcurrentVersionConflict
		}
	}
	if err != nil {
		return notFound("requirement", err)
	}

	source := origin.Source
	if source == "" {
		source = "manual"
	}
	s.metrics.VersionAppended(source)
	s.logger.Infow("version appended",
		"requirement_id", req.ID,
		"version_index", v.VersionIndex,
		"version_label", v.VersionLabel,
		"source", source,
	)
	s.syncKey(ctx, req, v.Title)
	return nil
}

// guardKey не даёт переименовать требование в заголовок другого требования проекта.
func (s *RequirementService) guardKey(ctx context.Context, req *model.Requirement, title string) error {
	key := model.NormalizeKey(title)
	if key == req.Key {
		return nil
	}
	other, err := s.repos.Requirements.FindByKey(ctx, req.ProjectID, key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if other.ID != req.ID {
		return invalidf("title: another requirement %q already exists in the project", title)
	}
	return nil
}

// syncKey переводит ключ требования на текущий заголовок.
func (s *RequirementService) syncKey(ctx context.Context, req *model.Requirement, title string) {
	key := model.NormalizeKey(title)
	if key == req.Key {
		return
	}
	if err := s.repos.Requirements.UpdateKey(ctx, req.ID, key); err != nil {
		s.logger.Warnw("requirement key not updated", "requirement_id", req.ID, "key", key, "error", err)
		return
	}
	req.Key = key
}

// Resolve ищет требование: сначала по явному ID в этом же проекте, затем по нормализованному ключу.
func (s *RequirementService) Resolve(ctx context.Context, projectID, userID int64, candidateID *int64, title string) (*model.Requirement, error) {
	if _, err := projectFor(ctx, s.repos.Projects, projectID, userID); err != nil {
		return nil, err
	}
	return s.resolve(ctx, projectID, candidateID, title)
}

func (s *RequirementService) resolve(ctx context.Context, projectID int64, candidateID *int64, title string) (*model.Requirement, error) {
	if candidateID != nil && *candidateID > 0 {
		req, err := s.repos.Requirements.GetByID(ctx, *candidateID)
		switch {
		case err == nil && req.ProjectID == projectID:
			return req, nil
		case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, err
		}
	}
	req, err := s.repos.Requirements.FindByKey(ctx, projectID, model.NormalizeKey(title))
	if err != nil {
		return nil, notFound("requirement", err)
	}
	return req, nil
}

// ResolveOrCreate сопоставляет кандидата с существующим требованием (новая версия)
// или создаёт новое. Найденное удалённое требование восстанавливается.
func (s *RequirementService) ResolveOrCreate(ctx context.Context, projectID, actorID int64, c Candidate, origin Origin) (*Resolution, error) {
	p, err := projectFor(ctx, s.repos.Projects, projectID, actorID)
	if err != nil {
		return nil, err
	}
	return s.resolveOrCreate(ctx, p, actorID, c, origin)
}

func (s *RequirementService) resolveOrCreate(ctx context.Context, p *model.Project, actorID int64, c Candidate, origin Origin) (*Resolution, error) {
	v, err := buildVersion(p, c.Fields, actorID)
	if err != nil {
		return nil, err
	}

	req, err := s.resolve(ctx, p.ID, c.ID, v.Title)
	switch {
	case errors.Is(err, ErrNotFound):
		req = &model.Requirement{ProjectID: p.ID, Key: model.NormalizeKey(v.Title)}
		err = s.repos.Requirements.CreateWithVersion(ctx, req, v, createdEntries(actorID, origin, nil))
		if err == nil {
			s.metrics.VersionAppended(origin.Source)
			s.notify("requirement_created", func() error {
				return s.notifier.RequirementCreated(ctx, p, v, actorID)
			})
			return &Resolution{Requirement: req, Version: v, Created: true}, nil
		}
		if !errors.Is(err, repo.ErrDuplicate) {
			return nil, err
		}
		// требование с тем же ключом успел создать параллельный писатель
		req, err = s.repos.Requirements.FindByKey(ctx, p.ID, req.Key)
		if err != nil {
			return nil, notFound("requirement", err)
		}
	case err != nil:
		return nil, err
	}

	res := &Resolution{Requirement: req}
	if req.IsDeleted {
		if err := s.repos.Requirements.SetDeleted(ctx, req.ID, false); err != nil {
			return nil, notFound("requirement", err)
		}
		req.IsDeleted = false
		res.Restored = true
	}

	if err := s.appendVersion(ctx, req, v, createdEntries(actorID, origin, req.LatestVersion()), origin); err != nil {
		return nil, err
	}
	res.Version = v

	s.notify("requirement_updated", func() error {
		return s.notifier.RequirementUpdated(ctx, p, v, actorID)
	})
	return res, nil
}

// UpdateVersion применяет правку к версии согласно политике редактирования.
// Пустой diff ничего не пишет.
func (s *RequirementService) UpdateVersion(ctx context.Context, versionID, actorID int64, u VersionUpdate) (*UpdateResult, error) {
	sc, err := versionFor(ctx, s.repos, versionID, actorID)
	if err != nil {
		return nil, err
	}
	v, p := sc.version, sc.project
	if v.Requirement.IsDeleted {
		return nil, errTrashed
	}
	if !CanEdit(v, p, actorID) {
		return nil, ErrEditForbidden
	}

	u.normalize()
	if err := u.Validate(); err != nil {
		return nil, invalid(err)
	}
	newStatus, err := resolveStatus(v.Status, u.Status, u.SaveType)
	if err != nil {
		return nil, err
	}
	if err := checkCustomKeys(p, u.Custom); err != nil {
		return nil, err
	}

	changes := map[string]string{}
	if v.Title != u.Title {
		changes["title"] = diffValue(v.Title, u.Title)
	}
	if v.Description != u.Description {
		changes["description"] = "changed"
	}
	if v.Category != u.Category {
		changes["category"] = diffValue(v.Category, u.Category)
	}
	if v.Status != newStatus {
		changes["status"] = diffValue(string(v.Status), string(newStatus))
	}

	custom := v.Custom()
	for _, col := range p.Columns() {
		val, ok := u.Custom[col]
		if !ok {
			continue
		}
		val = strings.TrimSpace(val)
		if custom[col] != val {
			changes["custom_"+col] = diffValue(custom[col], val)
		}
		custom[col] = val
	}
	if u.Quantifiable != nil {
		oldQ := normalizeBool(custom[quantifiableKey])
		newQ := boolString(*u.Quantifiable)
		if oldQ != newQ {
			changes[quantifiableKey] = yesNo(oldQ) + arrow + yesNo(newQ)
		}
		custom[quantifiableKey] = newQ
	}

	if len(changes) == 0 {
		return &UpdateResult{Version: v, Changes: changes}, nil
	}

	changeType := model.ChangeModified
	if _, ok := changes["status"]; ok && len(changes) == 1 {
		changeType = model.ChangeStatusChanged
	}
	diffEntry := model.RequirementVersionHistory{
		ChangedByID: actorID,
		ChangeType:  changeType,
		Changes:     datatypes.NewJSONType(changes),
	}

	var result *UpdateResult
	switch s.policy {
	case EditInPlace:
		result, err = s.updateInPlace(ctx, v, u, newStatus, custom, actorID, diffEntry)
	default:
		result, err = s.updateAppend(ctx, v, u, newStatus, custom, actorID, diffEntry)
	}
	if err != nil {
		return nil, err
	}
	result.Changes = changes

	s.notify("requirement_updated", func() error {
		return s.notifier.RequirementUpdated(ctx, p, result.Version, actorID)
	})
	return result, nil
}

// updateAppend создаёт версию n+1, переносит неизменённые поля и состояние блокировки.
func (s *RequirementService) updateAppend(
	ctx context.Context,
	v *model.RequirementVersion,
	u VersionUpdate,
	status model.Status,
	custom map[string]string,
	actorID int64,
	diffEntry model.RequirementVersionHistory,
) (*UpdateResult, error) {
	next := &model.RequirementVersion{
		Title:            u.Title,
		Description:      u.Description,
		Category:         u.Category,
		Status:           status,
		CreatedByID:      &actorID,
		LastModifiedByID: &actorID,
		IsBlocked:        v.IsBlocked,
		BlockedByID:      v.BlockedByID,
		BlockedAt:        v.BlockedAt,
	}
	next.SetCustom(custom)

	entries := append(createdEntries(actorID, Origin{Source: "edit"}, v), diffEntry)
	if err := s.appendVersion(ctx, v.Requirement, next, entries, Origin{Source: "edit"}); err != nil {
		return nil, err
	}
	return &UpdateResult{Version: next, Appended: true}, nil
}

func (s *RequirementService) updateInPlace(
	ctx context.Context,
	v *model.RequirementVersion,
	u VersionUpdate,
	status model.Status,
	custom map[string]string,
	actorID int64,
	diffEntry model.RequirementVersionHistory,
) (*UpdateResult, error) {
	req, err := s.repos.Requirements.GetByID(ctx, v.RequirementID)
	if err != nil {
		return nil, notFound("requirement", err)
	}
	latest := req.LatestVersion()
	isLatest := latest != nil && latest.ID == v.ID
	if isLatest {
		if err := s.guardKey(ctx, req, u.Title); err != nil {
			return nil, err
		}
	}

	updates := map[string]any{
		"title":               u.Title,
		"description":         u.Description,
		"category":            u.Category,
		"status":              status,
		"custom_data":         datatypes.NewJSONType(custom),
		"last_modified_by_id": actorID,
	}
	if err := s.repos.Versions.UpdateInPlace(ctx, v.ID, updates, []model.RequirementVersionHistory{diffEntry}); err != nil {
		return nil, notFound("version", err)
	}
	if isLatest {
		s.syncKey(ctx, req, u.Title)
	}

	updated, err := s.repos.Versions.GetByID(ctx, v.ID)
	if err != nil {
		return nil, notFound("version", err)
	}
	s.logger.Infow("version updated in place", "version_id", v.ID, "actor_id", actorID)
	return &UpdateResult{Version: updated}, nil
}

// currentUpdate строит правку, повторяющую текущее содержимое версии.
func currentUpdate(v *model.RequirementVersion) VersionUpdate {
	return VersionUpdate{
		Title:       v.Title,
		Description: v.Description,
		Category:    v.Category,
		Status:      string(v.Status),
	}
}

// SetStatus меняет только статус версии.
func (s *RequirementService) SetStatus(ctx context.Context, versionID, actorID int64, status string) (*UpdateResult, error) {
	sc, err := versionFor(ctx, s.repos, versionID, actorID)
	if err != nil {
		return nil, err
	}
	u := currentUpdate(sc.version)
	u.Status = status
	if strings.TrimSpace(status) == "" {
		return nil, invalidf("status: cannot be blank")
	}
	return s.UpdateVersion(ctx, versionID, actorID, u)
}

// SetCustomValue меняет значение одной пользовательской колонки.
func (s *RequirementService) SetCustomValue(ctx context.Context, versionID, actorID int64, column, value string) (*UpdateResult, error) {
	sc, err := versionFor(ctx, s.repos, versionID, actorID)
	if err != nil {
		return nil, err
	}
	u := currentUpdate(sc.version)
	if column == quantifiableKey {
		q := normalizeBool(value) == "true"
		u.Quantifiable = &q
	} else {
		u.Custom = map[string]string{column: value}
	}
	return s.UpdateVersion(ctx, versionID, actorID, u)
}

// ToggleQuantifiable инвертирует флаг измеримости требования.
func (s *RequirementService) ToggleQuantifiable(ctx context.Context, versionID, actorID int64) (*UpdateResult, error) {
	sc, err := versionFor(ctx, s.repos, versionID, actorID)
	if err != nil {
		return nil, err
	}
	u := currentUpdate(sc.version)
	q := normalizeBool(sc.version.Custom()[quantifiableKey]) != "true"
	u.Quantifiable = &q
	return s.UpdateVersion(ctx, versionID, actorID, u)
}

// DeleteVersion удаляет версию. Единственная версия не удаляется: требование уходит в корзину.
func (s *RequirementService) DeleteVersion(ctx context.Context, versionID, actorID int64) (bool, error) {
	sc, err := versionFor(ctx, s.repos, versionID, actorID)
	if err != nil {
		return false, err
	}
	if !CanEdit(sc.version, sc.project, actorID) {
		return false, ErrEditForbidden
	}
	soft, err := s.repos.Requirements.DeleteVersion(ctx, sc.version.RequirementID, sc.version.ID)
	if errors.Is(err, repo.ErrDuplicate) {
		return false, invalidf("another requirement in the project already uses the title of the remaining latest version")
	}
	if err != nil {
		return false, notFound("version", err)
	}
	s.logger.Infow("version deleted",
		"version_id", versionID,
		"requirement_id", sc.version.RequirementID,
		"requirement_trashed", soft,
	)
	return soft, nil
}

func (s *RequirementService) SoftDelete(ctx context.Context, requirementID, actorID int64) error {
	if _, _, err := requirementFor(ctx, s.repos, requirementID, actorID); err != nil {
		return err
	}
	return notFound("requirement", s.repos.Requirements.SetDeleted(ctx, requirementID, true))
}

func (s *RequirementService) Restore(ctx context.Context, requirementID, actorID int64) error {
	if _, _, err := requirementFor(ctx, s.repos, requirementID, actorID); err != nil {
		return err
	}
	return notFound("requirement", s.repos.Requirements.SetDeleted(ctx, requirementID, false))
}

// PermanentlyDelete физически удаляет требование с версиями, историей и комментариями.
func (s *RequirementService) PermanentlyDelete(ctx context.Context, requirementID, actorID int64) error {
	if _, _, err := requirementFor(ctx, s.repos, requirementID, actorID); err != nil {
		return err
	}
	if err := s.repos.Requirements.DeletePermanently(ctx, requirementID); err != nil {
		return notFound("requirement", err)
	}
	s.logger.Infow("requirement permanently deleted", "requirement_id", requirementID, "actor_id", actorID)
	return nil
}

// ListRequirements returns active requirements with ordered versions.
func (s *RequirementService) ListRequirements(ctx context.Context, projectID, userID int64) ([]model.Requirement, error) {
	if _, err := projectFor(ctx, s.repos.Projects, projectID, userID); err != nil {
		return nil, err
	}
	return s.repos.Requirements.ListByProject(ctx, projectID, false)
}

// ListTrash — удалённые требования во всех проектах, которыми владеет пользователь.
func (s *RequirementService) ListTrash(ctx context.Context, userID int64) ([]model.Requirement, error) {
	list, err := s.repos.Requirements.ListDeletedByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := list[:0]
	for _, r := range list {
		if r.LatestVersion() != nil {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *RequirementService) ListVersions(ctx context.Context, requirementID, userID int64) ([]model.RequirementVersion, error) {
	req, _, err := requirementFor(ctx, s.repos, requirementID, userID)
	if err != nil {
		return nil, err
	}
	return req.Versions, nil
}

// StatusBoard: последняя версия каждого активного требования (статус и блокировка).
func (s *RequirementService) StatusBoard(ctx context.Context, projectID, userID int64) ([]StatusEntry, error) {
	list, err := s.ListRequirements(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	out := make([]StatusEntry, 0, len(list))
	for i := range list {
		latest := list[i].LatestVersion()
		if latest == nil {
			continue
		}
		e := StatusEntry{
			RequirementID: list[i].ID,
			VersionID:     latest.ID,
			VersionLabel:  latest.VersionLabel,
			Title:         latest.Title,
			Status:        latest.Status,
			IsBlocked:     latest.IsBlocked,
		}
		if latest.BlockedBy != nil {
			email := latest.BlockedBy.Email
			e.BlockedBy = &email
		}
		out = append(out, e)
	}
	return out, nil
}

// Kanban группирует последние версии по статусам в фиксированном порядке колонок.
func (s *RequirementService) Kanban(ctx context.Context, projectID, userID int64) ([]KanbanColumn, error) {
	entries, err := s.StatusBoard(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	cols := []KanbanColumn{
		{Status: model.StatusOpen, Cards: []StatusEntry{}},
		{Status: model.StatusInProgress, Cards: []StatusEntry{}},
		{Status: model.StatusDone, Cards: []StatusEntry{}},
	}
	for _, e := range entries {
		for i := range cols {
			if cols[i].Status == e.Status {
				cols[i].Cards = append(cols[i].Cards, e)
			}
		}
	}
	return cols, nil
}

// buildVersion проверяет поля и собирает новую версию.
func buildVersion(p *model.Project, f VersionFields, actorID int64) (*model.RequirementVersion, error) {
	f.normalize()
	if err := f.Validate(); err != nil {
		return nil, invalid(err)
	}
	status := f.Status
	if status == "" {
		status = model.StatusOpen
	}
	if !status.Valid() {
		return nil, invalidf("status: unknown value %q", f.Status)
	}
	if err := checkCustomKeys(p, f.Custom); err != nil {
		return nil, err
	}

	custom := make(map[string]string, len(f.Custom))
	for k, val := range f.Custom {
		val = strings.TrimSpace(val)
		if k == quantifiableKey {
			val = normalizeBool(val)
		}
		custom[k] = val
	}

	by := actorID
	v := &model.RequirementVersion{
		Title:       f.Title,
		Description: f.Description,
		Category:    f.Category,
		Status:      status,
		CreatedByID: &by,
	}
	v.SetCustom(custom)
	return v, nil
}

// в пользовательских данных допустимы только колонки проекта и is_quantifiable.
func checkCustomKeys(p *model.Project, custom map[string]string) error {
	cols := p.Columns()
	for k := range custom {
		if k == quantifiableKey {
			continue
		}
		found := false
		for _, c := range cols {
			if c == k {
				found = true
				break
			}
		}
		if !found {
			return invalidf("custom: unknown column %q", k)
		}
	}
	return nil
}

// resolveStatus: явный статус важнее типа сохранения.
func resolveStatus(current model.Status, explicit string, save SaveType) (model.Status, error) {
	if explicit != "" {
		st, err := model.ParseStatus(explicit)
		if err != nil {
			return "", invalid(fmt.Errorf("status: %w", err))
		}
		return st, nil
	}
	switch save {
	case SaveIntermediate:
		return model.StatusInProgress, nil
	case SaveFinal:
		return model.StatusDone, nil
	}
	return current, nil
}

// createdEntries строит запись о создании версии (с источником и базовой версией, если есть).
func createdEntries(actorID int64, origin Origin, base *model.RequirementVersion) []model.RequirementVersionHistory {
	changes := map[string]string{"action": "created"}
	if origin.Source != "" {
		changes["source"] = origin.Source
	}
	if origin.RunID != "" {
		changes["run_id"] = origin.RunID
	}
	if base != nil {
		changes["based_on"] = base.VersionLabel
	}
	return []model.RequirementVersionHistory{{
		ChangedByID: actorID,
		ChangeType:  model.ChangeCreated,
		Changes:     datatypes.NewJSONType(changes),
	}}
}

// diffValue форматирует "старое → новое", пустые значения показываются как "–".
func diffValue(oldVal, newVal string) string {
	if oldVal == "" {
		oldVal = emptyMark
	}
	if newVal == "" {
		newVal = emptyMark
	}
	return oldVal + arrow + newVal
}

func normalizeBool(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "y", "ja", "x", "on":
		return "true"
	}
	return "false"
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func yesNo(s string) string {
	if s == "true" {
		return "yes"
	}
	return "no"
}
