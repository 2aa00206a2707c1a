package service

import (
	"ReqKeeper/internal/model"
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// стандартные заголовки (включая немецкие), которые не считаются пользовательскими колонками
var standardIngestKeys = map[string]bool{
	"title":         true,
	"titel":         true,
	"description":   true,
	"beschreibung":  true,
	"category":      true,
	"kategorie":     true,
	"status":        true,
	"id":            true,
	"version":       true,
	"req_id":        true,
	"req-id":        true,
	quantifiableKey: true,
}

// IngestOptions — параметры пакетной загрузки кандидатов.
type IngestOptions struct {
	// Source — "import", "ai" и т.п., попадает в историю и метрики.
	Source string
	// AddUnknownColumns регистрирует в проекте неизвестные заголовки как колонки.
	AddUnknownColumns bool
}

// IngestReport — итог прогона.
type IngestReport struct {
	RunID        string   `json:"run_id"`
	Created      int      `json:"created"`
	Updated      int      `json:"updated"`
	Restored     int      `json:"restored"`
	Skipped      int      `json:"skipped"`
	AddedColumns []string `json:"added_columns,omitempty"`
	Errors       []string `json:"errors,omitempty"`
}

// Ingest сопоставляет каждый набор полей с требованиями проекта (resolveOrCreate).
// Строки без заголовка или описания пропускаются.
func (s *RequirementService) Ingest(ctx context.Context, projectID, actorID int64, rows []map[string]string, opts IngestOptions) (*IngestReport, error) {
	p, err := projectFor(ctx, s.repos.Projects, projectID, actorID)
	if err != nil {
		return nil, err
	}

	report := &IngestReport{RunID: uuid.NewString()}
	origin := Origin{Source: opts.Source, RunID: report.RunID}
	if origin.Source == "" {
		origin.Source = "import"
	}

	if opts.AddUnknownColumns {
		added, err := s.registerColumns(ctx, p, rows)
		if err != nil {
			return nil, err
		}
		report.AddedColumns = added
	}

	for i, row := range rows {
		c, ok := CandidateFromMap(row, p.Columns())
		if !ok {
			report.Skipped++
			continue
		}
		res, err := s.resolveOrCreate(ctx, p, actorID, c, origin)
		if err != nil {
			if errors.Is(err, ErrValidation) {
				report.Skipped++
				report.Errors = append(report.Errors, fmt.Sprintf("row %d: %v", i+1, err))
				continue
			}
			return report, err
		}
		switch {
		case res.Created:
			report.Created++
		case res.Restored:
			report.Restored++
			report.Updated++
		default:
			report.Updated++
		}
	}

	s.logger.Infow("ingest finished",
		"project_id", p.ID,
		"run_id", report.RunID,
		"source", origin.Source,
		"created", report.Created,
		"updated", report.Updated,
		"skipped", report.Skipped,
	)
	return report, nil
}

// registerColumns добавляет в проект заголовки, которых ещё нет среди колонок.
func (s *RequirementService) registerColumns(ctx context.Context, p *model.Project, rows []map[string]string) ([]string, error) {
	var unknown []string
	for _, row := range rows {
		for k := range row {
			k = strings.TrimSpace(k)
			if k == "" || standardIngestKeys[strings.ToLower(k)] || isProtectedColumn(k) {
				continue
			}
			if containsFold(p.Columns(), k) || containsFold(unknown, k) {
				continue
			}
			unknown = append(unknown, k)
		}
	}
	if len(unknown) == 0 {
		return nil, nil
	}
	// порядок ключей map случаен, колонки добавляются в алфавитном порядке
	slices.Sort(unknown)

	var added []string
	cols, err := s.repos.Projects.UpdateColumns(ctx, p.ID, func(cols []string) ([]string, error) {
		added = added[:0]
		for _, k := range unknown {
			if !containsFold(cols, k) {
				cols = append(cols, k)
				added = append(added, k)
			}
		}
		return cols, nil
	})
	if err != nil {
		return nil, notFound("project", err)
	}
	p.CustomColumns = cols
	return added, nil
}

// CandidateFromMap разбирает строку импорта или ответа генерации.
// Возвращает false, если нет заголовка или описания.
func CandidateFromMap(row map[string]string, columns []string) (Candidate, bool) {
	lower := make(map[string]string, len(row))
	for k, v := range row {
		lower[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	pick := func(keys ...string) string {
		for _, k := range keys {
			if v := lower[k]; v != "" {
				return v
			}
		}
		return ""
	}

	f := VersionFields{
		Title:       pick("title", "titel"),
		Description: pick("description", "beschreibung"),
		Category:    pick("category", "kategorie"),
	}
	if f.Title == "" || f.Description == "" {
		return Candidate{}, false
	}
	f.Status = model.StatusOpen
	if st, err := model.ParseStatus(pick("status")); err == nil {
		f.Status = st
	}

	f.Custom = map[string]string{}
	for _, col := range columns {
		v, ok := row[col]
		if !ok {
			v = lower[strings.ToLower(col)]
		}
		if v = strings.TrimSpace(v); v != "" {
			f.Custom[col] = v
		}
	}
	if q, ok := lower[quantifiableKey]; ok {
		f.Custom[quantifiableKey] = normalizeBool(q)
	}

	c := Candidate{Fields: f}
	if raw := pick("id", "req_id", "req-id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
			c.ID = &id
		}
	}
	return c, true
}
