package resource

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/techsoc/clubhub/core"
)

var ErrNotFound = errors.New("resource not found")

type (
	Repository interface {
		CreateResource(ctx context.Context, res Resource) (Resource, error)
		GetResourceByID(ctx context.Context, id string) (Resource, error)
		QueryAllResources(ctx context.Context, ord ...core.DBOrdering) ([]Resource, error)
		UpdateResource(ctx context.Context, res Resource) (Resource, error)
		DeleteResourcesByID(ctx context.Context, ids ...string) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, nr NewResource) (Resource, error) {
	now := time.Now().UTC()
	res := Resource{
		ID:          uuid.New().String(),
		Title:       nr.Title,
		Description: nr.Description,
		URL:         nr.URL,
		Category:    nr.Category,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateResource(ctx, res)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Resource, error) {
	return svc.repo.GetResourceByID(ctx, id)
}

func (svc *Service) QueryAll(ctx context.Context, ord ...core.DBOrdering) ([]Resource, error) {
	return svc.repo.QueryAllResources(ctx, ord...)
}

func (svc *Service) Update(ctx context.Context, id string, ur UpdateResource) (Resource, error) {
	res, err := svc.repo.GetResourceByID(ctx, id)
	if err != nil {
		return Resource{}, err
	}
	res.Title = ur.Title
	res.Description = ur.Description
	res.URL = ur.URL
	res.Category = ur.Category
	res.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateResource(ctx, res)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteResourcesByID(ctx, ids...)
}
