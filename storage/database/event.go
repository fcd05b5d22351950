package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/techsoc/clubhub/core"
	"github.com/techsoc/clubhub/core/event"
)

type eventRepository struct {
	db *sqlx.DB
}

var _ event.Repository = (*eventRepository)(nil) // interface compliance check

func NewEventRepository(db *sqlx.DB) *eventRepository {
	return &eventRepository{db: db}
}

type eventRow struct {
	ID          string     `db:"id"`
	Title       string     `db:"title"`
	Description string     `db:"description"`
	Location    string     `db:"location"`
	StartsAt    time.Time  `db:"starts_at"`
	EndsAt      *time.Time `db:"ends_at"`
	Published   bool       `db:"published"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

func newEventRow(ev event.Event) eventRow {
	row := eventRow{
		ID:          ev.ID,
		Title:       ev.Title,
		Description: ev.Description,
		Location:    ev.Location,
		StartsAt:    ev.StartsAt.UTC(),
		Published:   ev.Published,
		CreatedAt:   ev.CreatedAt.UTC(),
		UpdatedAt:   ev.UpdatedAt.UTC(),
	}
	if !ev.EndsAt.IsZero() {
		at := ev.EndsAt.UTC()
		row.EndsAt = &at
	}
	return row
}

func (row eventRow) toEvent() event.Event {
	ev := event.Event{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		Location:    row.Location,
		StartsAt:    row.StartsAt,
		Published:   row.Published,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	if row.EndsAt != nil {
		ev.EndsAt = *row.EndsAt
	}
	return ev
}

func (repo eventRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return event.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo eventRepository) CreateEvent(ctx context.Context, ev event.Event) (event.Event, error) {
	row := newEventRow(ev)
	query := `
	INSERT INTO event (id, title, description, location, starts_at, ends_at, published, created_at, updated_at)
	VALUES (:id, :title, :description, :location, :starts_at, :ends_at, :published, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, query, row); err != nil {
		return event.Event{}, errors.Wrap(err, "inserting event")
	}
	return row.toEvent(), nil
}

func (repo eventRepository) GetEventByID(ctx context.Context, id string) (event.Event, error) {
	var row eventRow
	err := repo.db.GetContext(ctx, &row, "SELECT * FROM event WHERE id = $1", id)
	if err != nil {
		return event.Event{}, repo.trapNoRowsErr(err, "finding event by ID")
	}
	return row.toEvent(), nil
}

func (repo eventRepository) FilterEvents(ctx context.Context, filter event.QueryFilter, ord ...core.DBOrdering) ([]event.Event, error) {
	query := "SELECT * FROM event"
	var conds []string
	var args []interface{}
	arg := func(val interface{}) string {
		args = append(args, val)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Search != "" {
		val := arg("%" + filter.Search + "%")
		conds = append(conds, fmt.Sprintf("(title ILIKE %[1]s OR description ILIKE %[1]s OR location ILIKE %[1]s)", val))
	}
	if filter.Upcoming {
		conds = append(conds, "starts_at >= "+arg(time.Now().UTC()))
	}

	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += orderBy("starts_at ASC", ord)

	var rows []eventRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying events")
	}
	events := make([]event.Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, row.toEvent())
	}
	return events, nil
}

func (repo eventRepository) UpdateEvent(ctx context.Context, ev event.Event) (event.Event, error) {
	row := newEventRow(ev)
	query := `
	UPDATE event
	SET title = :title, description = :description, location = :location, starts_at = :starts_at,
		ends_at = :ends_at, published = :published, updated_at = :updated_at
	WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return event.Event{}, errors.Wrap(err, "updating event")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return event.Event{}, event.ErrNotFound
	}
	return row.toEvent(), nil
}

func (repo eventRepository) DeleteEventsByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := repo.db.ExecContext(ctx, "DELETE FROM event WHERE id = ANY($1)", pq.StringArray(ids)); err != nil {
		return errors.Wrap(err, "deleting events")
	}
	return nil
}
