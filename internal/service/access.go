package service

import (
	"ReqKeeper/internal/model"
	"ReqKeeper/internal/repo"
	"context"

	"gorm.io/gorm"
)

// projectFor загружает проект и проверяет, что пользователь — владелец или участник.
func projectFor(ctx context.Context, projects repo.ProjectRepository, projectID, userID int64) (*model.Project, error) {
	p, err := projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, notFound("project", err)
	}
	if !p.IsAccessibleBy(userID) {
		return nil, ErrAccessDenied
	}
	return p, nil
}

// versionScope — версия вместе с её проектом после проверки доступа.
type versionScope struct {
	version *model.RequirementVersion
	project *model.Project
}

func versionFor(ctx context.Context, r *repo.Repositories, versionID, userID int64) (*versionScope, error) {
	v, err := r.Versions.GetByID(ctx, versionID)
	if err != nil {
		return nil, notFound("version", err)
	}
	if v.Requirement == nil {
		return nil, notFound("requirement", gorm.ErrRecordNotFound)
	}
	p, err := projectFor(ctx, r.Projects, v.Requirement.ProjectID, userID)
	if err != nil {
		return nil, err
	}
	return &versionScope{version: v, project: p}, nil
}

// requirementFor загружает требование (с версиями) и проверяет доступ к проекту.
func requirementFor(ctx context.Context, r *repo.Repositories, requirementID, userID int64) (*model.Requirement, *model.Project, error) {
	req, err := r.Requirements.GetByID(ctx, requirementID)
	if err != nil {
		return nil, nil, notFound("requirement", err)
	}
	p, err := projectFor(ctx, r.Projects, req.ProjectID, userID)
	if err != nil {
		return nil, nil, err
	}
	return req, p, nil
}
