package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/techsoc/clubhub/core"
	"github.com/techsoc/clubhub/core/member"
)

type memberRepository struct {
	db *DB
}

var _ member.Repository = (*memberRepository)(nil) // interface compliance check

func NewMemberRepository(db *DB) *memberRepository {
	return &memberRepository{db: db}
}

func (repo *memberRepository) query() []member.Application {
	apps := make([]member.Application, 0, len(repo.db.applications))
	for _, app := range repo.db.applications {
		apps = append(apps, *app)
	}
	sort.Slice(apps, func(i, j int) bool {
		if apps[i].CreatedAt.Equal(apps[j].CreatedAt) {
			return apps[i].ID < apps[j].ID
		}
		return apps[i].CreatedAt.After(apps[j].CreatedAt)
	})
	return apps
}

func (repo *memberRepository) CreateApplication(ctx context.Context, app member.Application) (member.Application, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.applications[app.ID] = &app
	return app, nil
}

func (repo *memberRepository) GetApplicationByID(ctx context.Context, id string) (member.Application, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if app, ok := repo.db.applications[id]; ok {
		return *app, nil
	}
	return member.Application{}, member.ErrNotFound
}

func (repo *memberRepository) GetApplicationByEmail(ctx context.Context, email string) (member.Application, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, app := range repo.query() {
		if app.Email == email {
			return app, nil
		}
	}
	return member.Application{}, member.ErrNotFound
}

func (repo *memberRepository) FilterApplications(ctx context.Context, filter member.QueryFilter, ord ...core.DBOrdering) ([]member.Application, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var apps []member.Application
	for _, app := range repo.query() {
		if filter.Search != "" {
			s := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(app.FullName()), s) &&
				!strings.Contains(strings.ToLower(app.Email), s) {
				continue
			}
		}
		if filter.Status != "" && app.Status != filter.Status {
			continue
		}
		if !filter.CreatedFrom.IsZero() && app.CreatedAt.Before(filter.CreatedFrom) {
			continue
		}
		if !filter.CreatedTo.IsZero() && app.CreatedAt.After(filter.CreatedTo) {
			continue
		}
		apps = append(apps, app)
	}
	return apps, nil
}

func (repo *memberRepository) UpdateApplicationStatus(ctx context.Context, app member.Application) (member.Application, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.applications[app.ID]
	if !ok {
		return member.Application{}, member.ErrNotFound
	}
	orig.Status = app.Status
	orig.DecidedBy = app.DecidedBy
	orig.DecidedAt = app.DecidedAt
	orig.UpdatedAt = app.UpdatedAt
	return *orig, nil
}

func (repo *memberRepository) CountApplicationsByStatus(ctx context.Context) (map[member.Status]int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	counts := make(map[member.Status]int)
	for _, app := range repo.db.applications {
		counts[app.Status]++
	}
	return counts, nil
}
