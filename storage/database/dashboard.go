package database

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/techsoc/clubhub/core/dashboard"
)

type dashboardRepository struct {
	db *sqlx.DB
}

var _ dashboard.Repository = (*dashboardRepository)(nil) // interface compliance check

func NewDashboardRepository(db *sqlx.DB) *dashboardRepository {
	return &dashboardRepository{db: db}
}

func (repo dashboardRepository) count(ctx context.Context, table string) (int, error) {
	var cnt int
	if err := repo.db.GetContext(ctx, &cnt, "SELECT COUNT(*) FROM "+table); err != nil {
		return 0, errors.Wrap(err, "counting "+table)
	}
	return cnt, nil
}

func (repo dashboardRepository) CountAnnouncements(ctx context.Context) (int, error) {
	return repo.count(ctx, "announcement")
}

func (repo dashboardRepository) CountEvents(ctx context.Context) (int, error) {
	return repo.count(ctx, "event")
}

func (repo dashboardRepository) CountProjects(ctx context.Context) (int, error) {
	return repo.count(ctx, "project")
}

func (repo dashboardRepository) CountResources(ctx context.Context) (int, error) {
	return repo.count(ctx, "resource")
}
