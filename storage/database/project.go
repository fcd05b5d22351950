package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/techsoc/clubhub/core"
	"github.com/techsoc/clubhub/core/project"
)

type projectRepository struct {
	db *sqlx.DB
}

var _ project.Repository = (*projectRepository)(nil) // interface compliance check

func NewProjectRepository(db *sqlx.DB) *projectRepository {
	return &projectRepository{db: db}
}

type projectRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	RepoURL     string    `db:"repo_url"`
	TechStack   string    `db:"tech_stack"`
	Maintainer  string    `db:"maintainer"`
	Archived    bool      `db:"archived"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func newProjectRow(prj project.Project) projectRow {
	return projectRow{
		ID:          prj.ID,
		Name:        prj.Name,
		Description: prj.Description,
		RepoURL:     prj.RepoURL,
		TechStack:   prj.TechStack,
		Maintainer:  prj.Maintainer,
		Archived:    prj.Archived,
		CreatedAt:   prj.CreatedAt.UTC(),
		UpdatedAt:   prj.UpdatedAt.UTC(),
	}
}

func (row projectRow) toProject() project.Project {
	return project.Project{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		RepoURL:     row.RepoURL,
		TechStack:   row.TechStack,
		Maintainer:  row.Maintainer,
		Archived:    row.Archived,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

func (repo projectRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return project.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo projectRepository) CreateProject(ctx context.Context, prj project.Project) (project.Project, error) {
	row := newProjectRow(prj)
	query := `
	INSERT INTO project (id, name, description, repo_url, tech_stack, maintainer, archived, created_at, updated_at)
	VALUES (:id, :name, :description, :repo_url, :tech_stack, :maintainer, :archived, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, query, row); err != nil {
		return project.Project{}, errors.Wrap(err, "inserting project")
	}
	return row.toProject(), nil
}

func (repo projectRepository) GetProjectByID(ctx context.Context, id string) (project.Project, error) {
	var row projectRow
	err := repo.db.GetContext(ctx, &row, "SELECT * FROM project WHERE id = $1", id)
	if err != nil {
		return project.Project{}, repo.trapNoRowsErr(err, "finding project by ID")
	}
	return row.toProject(), nil
}

func (repo projectRepository) QueryAllProjects(ctx context.Context, ord ...core.DBOrdering) ([]project.Project, error) {
	var rows []projectRow
	query := "SELECT * FROM project" + orderBy("created_at DESC", ord)
	if err := repo.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, errors.Wrap(err, "querying projects")
	}
	projects := make([]project.Project, 0, len(rows))
	for _, row := range rows {
		projects = append(projects, row.toProject())
	}
	return projects, nil
}

func (repo projectRepository) UpdateProject(ctx context.Context, prj project.Project) (project.Project, error) {
	row := newProjectRow(prj)
	query := `
	UPDATE project
	SET name = :name, description = :description, repo_url = :repo_url, tech_stack = :tech_stack,
		maintainer = :maintainer, archived = :archived, updated_at = :updated_at
	WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return project.Project{}, errors.Wrap(err, "updating project")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return project.Project{}, project.ErrNotFound
	}
	return row.toProject(), nil
}

func (repo projectRepository) DeleteProjectsByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := repo.db.ExecContext(ctx, "DELETE FROM project WHERE id = ANY($1)", pq.StringArray(ids)); err != nil {
		return errors.Wrap(err, "deleting projects")
	}
	return nil
}
