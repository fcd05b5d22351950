package inmemdb

import (
	"context"
	"sort"

	"github.com/techsoc/clubhub/core"
	"github.com/techsoc/clubhub/core/resource"
)

type resourceRepository struct {
	db *DB
}

var _ resource.Repository = (*resourceRepository)(nil) // interface compliance check

func NewResourceRepository(db *DB) *resourceRepository {
	return &resourceRepository{db: db}
}

func (repo *resourceRepository) CreateResource(ctx context.Context, res resource.Resource) (resource.Resource, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.resources[res.ID] = &res
	return res, nil
}

func (repo *resourceRepository) GetResourceByID(ctx context.Context, id string) (resource.Resource, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if res, ok := repo.db.resources[id]; ok {
		return *res, nil
	}
	return resource.Resource{}, resource.ErrNotFound
}

func (repo *resourceRepository) QueryAllResources(ctx context.Context, ord ...core.DBOrdering) ([]resource.Resource, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	resources := make([]resource.Resource, 0, len(repo.db.resources))
	for _, res := range repo.db.resources {
		resources = append(resources, *res)
	}
	sort.Slice(resources, func(i, j int) bool {
		if resources[i].CreatedAt.Equal(resources[j].CreatedAt) {
			return resources[i].ID < resources[j].ID
		}
		return resources[i].CreatedAt.After(resources[j].CreatedAt)
	})
	return resources, nil
}

func (repo *resourceRepository) UpdateResource(ctx context.Context, res resource.Resource) (resource.Resource, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.resources[res.ID]; !ok {
		return resource.Resource{}, resource.ErrNotFound
	}
	repo.db.resources[res.ID] = &res
	return res, nil
}

func (repo *resourceRepository) DeleteResourcesByID(ctx context.Context, ids ...string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, id := range ids {
		delete(repo.db.resources, id)
	}
	return nil
}
