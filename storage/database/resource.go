package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/techsoc/clubhub/core"
	"github.com/techsoc/clubhub/core/resource"
)

type resourceRepository struct {
	db *sqlx.DB
}

var _ resource.Repository = (*resourceRepository)(nil) // interface compliance check

func NewResourceRepository(db *sqlx.DB) *resourceRepository {
	return &resourceRepository{db: db}
}

type resourceRow struct {
	ID          string    `db:"id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	URL         string    `db:"url"`
	Category    string    `db:"category"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func newResourceRow(res resource.Resource) resourceRow {
	return resourceRow{
		ID:          res.ID,
		Title:       res.Title,
		Description: res.Description,
		URL:         res.URL,
		Category:    res.Category,
		CreatedAt:   res.CreatedAt.UTC(),
		UpdatedAt:   res.UpdatedAt.UTC(),
	}
}

func (row resourceRow) toResource() resource.Resource {
	return resource.Resource{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		URL:         row.URL,
		Category:    row.Category,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

func (repo resourceRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return resource.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo resourceRepository) CreateResource(ctx context.Context, res resource.Resource) (resource.Resource, error) {
	row := newResourceRow(res)
	query := `
	INSERT INTO resource (id, title, description, url, category, created_at, updated_at)
	VALUES (:id, :title, :description, :url, :category, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, query, row); err != nil {
		return resource.Resource{}, errors.Wrap(err, "inserting resource")
	}
	return row.toResource(), nil
}

func (repo resourceRepository) GetResourceByID(ctx context.Context, id string) (resource.Resource, error) {
	var row resourceRow
	err := repo.db.GetContext(ctx, &row, "SELECT * FROM resource WHERE id = $1", id)
	if err != nil {
		return resource.Resource{}, repo.trapNoRowsErr(err, "finding resource by ID")
	}
	return row.toResource(), nil
}

func (repo resourceRepository) QueryAllResources(ctx context.Context, ord ...core.DBOrdering) ([]resource.Resource, error) {
	var rows []resourceRow
	query := "SELECT * FROM resource" + orderBy("created_at DESC", ord)
	if err := repo.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, errors.Wrap(err, "querying resources")
	}
	resources := make([]resource.Resource, 0, len(rows))
	for _, row := range rows {
		resources = append(resources, row.toResource())
	}
	return resources, nil
}

func (repo resourceRepository) UpdateResource(ctx context.Context, res resource.Resource) (resource.Resource, error) {
	row := newResourceRow(res)
	query := `
	UPDATE resource
	SET title = :title, description = :description, url = :url, category = :category, updated_at = :updated_at
	WHERE id = :id`
	result, err := repo.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return resource.Resource{}, errors.Wrap(err, "updating resource")
	}
	if cnt, err := result.RowsAffected(); err == nil && cnt == 0 {
		return resource.Resource{}, resource.ErrNotFound
	}
	return row.toResource(), nil
}

func (repo resourceRepository) DeleteResourcesByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := repo.db.ExecContext(ctx, "DELETE FROM resource WHERE id = ANY($1)", pq.StringArray(ids)); err != nil {
		return errors.Wrap(err, "deleting resources")
	}
	return nil
}
