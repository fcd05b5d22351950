package project

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/techsoc/clubhub/core"
)

var ErrNotFound = errors.New("project not found")

type (
	Repository interface {
		CreateProject(ctx context.Context, prj Project) (Project, error)
		GetProjectByID(ctx context.Context, id string) (Project, error)
		QueryAllProjects(ctx context.Context, ord ...core.DBOrdering) ([]Project, error)
		UpdateProject(ctx context.Context, prj Project) (Project, error)
		DeleteProjectsByID(ctx context.Context, ids ...string) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, np NewProject) (Project, error) {
	now := time.Now().UTC()
	prj := Project{
		ID:          uuid.New().String(),
		Name:        np.Name,
		Description: np.Description,
		RepoURL:     np.RepoURL,
		TechStack:   np.TechStack,
		Maintainer:  np.Maintainer,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateProject(ctx, prj)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Project, error) {
	return svc.repo.GetProjectByID(ctx, id)
}

func (svc *Service) QueryAll(ctx context.Context, ord ...core.DBOrdering) ([]Project, error) {
	return svc.repo.QueryAllProjects(ctx, ord...)
}

func (svc *Service) Update(ctx context.Context, id string, up UpdateProject) (Project, error) {
	prj, err := svc.repo.GetProjectByID(ctx, id)
	if err != nil {
		return Project{}, err
	}
	prj.Name = up.Name
	prj.Description = up.Description
	prj.RepoURL = up.RepoURL
	prj.TechStack = up.TechStack
	prj.Maintainer = up.Maintainer
	if up.Archived != nil {
		prj.Archived = *up.Archived
	}
	prj.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateProject(ctx, prj)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteProjectsByID(ctx, ids...)
}
