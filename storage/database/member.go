package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/techsoc/clubhub/core"
	"github.com/techsoc/clubhub/core/member"
)

type memberRepository struct {
	db *sqlx.DB
}

var _ member.Repository = (*memberRepository)(nil) // interface compliance check

func NewMemberRepository(db *sqlx.DB) *memberRepository {
	return &memberRepository{db: db}
}

type applicationRow struct {
	ID         string     `db:"id"`
	FirstName  string     `db:"first_name"`
	LastName   string     `db:"last_name"`
	Email      string     `db:"email"`
	Major      string     `db:"major"`
	Year       string     `db:"year"`
	Motivation string     `db:"motivation"`
	Status     string     `db:"status"`
	DecidedBy  string     `db:"decided_by"`
	DecidedAt  *time.Time `db:"decided_at"`
	CreatedAt  time.Time  `db:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"`
}

func newApplicationRow(app member.Application) applicationRow {
	row := applicationRow{
		ID:         app.ID,
		FirstName:  app.FirstName,
		LastName:   app.LastName,
		Email:      app.Email,
		Major:      app.Major,
		Year:       app.Year,
		Motivation: app.Motivation,
		Status:     app.Status.String(),
		DecidedBy:  app.DecidedBy,
		CreatedAt:  app.CreatedAt.UTC(),
		UpdatedAt:  app.UpdatedAt.UTC(),
	}
	if app.DecidedAt != nil {
		at := app.DecidedAt.UTC()
		row.DecidedAt = &at
	}
	return row
}

func (row applicationRow) toApplication() member.Application {
	return member.Application{
		ID:         row.ID,
		FirstName:  row.FirstName,
		LastName:   row.LastName,
		Email:      row.Email,
		Major:      row.Major,
		Year:       row.Year,
		Motivation: row.Motivation,
		Status:     member.Status(row.Status),
		DecidedBy:  row.DecidedBy,
		DecidedAt:  row.DecidedAt,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
}

func (repo memberRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return member.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo memberRepository) CreateApplication(ctx context.Context, app member.Application) (member.Application, error) {
	row := newApplicationRow(app)
	query := `
	INSERT INTO application (id, first_name, last_name, email, major, year, motivation, status, decided_by, decided_at, created_at, updated_at)
	VALUES (:id, :first_name, :last_name, :email, :major, :year, :motivation, :status, :decided_by, :decided_at, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, query, row); err != nil {
		return member.Application{}, errors.Wrap(err, "inserting application")
	}
	return row.toApplication(), nil
}

func (repo memberRepository) GetApplicationByID(ctx context.Context, id string) (member.Application, error) {
	var row applicationRow
	err := repo.db.GetContext(ctx, &row, "SELECT * FROM application WHERE id = $1", id)
	if err != nil {
		return member.Application{}, repo.trapNoRowsErr(err, "finding application by ID")
	}
	return row.toApplication(), nil
}

func (repo memberRepository) GetApplicationByEmail(ctx context.Context, email string) (member.Application, error) {
	var row applicationRow
	err := repo.db.GetContext(ctx, &row, "SELECT * FROM application WHERE email = $1", email)
	if err != nil {
		return member.Application{}, repo.trapNoRowsErr(err, "finding application by email")
	}
	return row.toApplication(), nil
}

func (repo memberRepository) FilterApplications(ctx context.Context, filter member.QueryFilter, ord ...core.DBOrdering) ([]member.Application, error) {
	query := "SELECT * FROM application"
	var conds []string
	var args []interface{}
	arg := func(val interface{}) string {
		args = append(args, val)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Search != "" {
		val := arg("%" + filter.Search + "%")
		conds = append(conds, fmt.Sprintf("(first_name ILIKE %[1]s OR last_name ILIKE %[1]s OR email ILIKE %[1]s)", val))
	}
	if filter.Status != "" {
		conds = append(conds, "status = "+arg(filter.Status.String()))
	}
	if !filter.CreatedFrom.IsZero() {
		conds = append(conds, "created_at >= "+arg(filter.CreatedFrom.UTC()))
	}
	if !filter.CreatedTo.IsZero() {
		conds = append(conds, "created_at <= "+arg(filter.CreatedTo.UTC()))
	}

	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += orderBy("created_at DESC", ord)

	var rows []applicationRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying applications")
	}
	apps := make([]member.Application, 0, len(rows))
	for _, row := range rows {
		apps = append(apps, row.toApplication())
	}
	return apps, nil
}

func (repo memberRepository) UpdateApplicationStatus(ctx context.Context, app member.Application) (member.Application, error) {
	row := newApplicationRow(app)
	query := `
	UPDATE application
	SET status = :status, decided_by = :decided_by, decided_at = :decided_at, updated_at = :updated_at
	WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return member.Application{}, errors.Wrap(err, "updating application status")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return member.Application{}, member.ErrNotFound
	}
	return row.toApplication(), nil
}

func (repo memberRepository) CountApplicationsByStatus(ctx context.Context) (map[member.Status]int, error) {
	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	query := "SELECT status, COUNT(*) AS count FROM application GROUP BY status"
	if err := repo.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, errors.Wrap(err, "counting applications")
	}
	counts := make(map[member.Status]int, len(rows))
	for _, row := range rows {
		counts[member.Status(row.Status)] = row.Count
	}
	return counts, nil
}
