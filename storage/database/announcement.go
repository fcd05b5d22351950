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
	"github.com/techsoc/clubhub/core/announcement"
)

type announcementRepository struct {
	db *sqlx.DB
}

var _ announcement.Repository = (*announcementRepository)(nil) // interface compliance check

func NewAnnouncementRepository(db *sqlx.DB) *announcementRepository {
	return &announcementRepository{db: db}
}

type announcementRow struct {
	ID         string         `db:"id"`
	Title      string         `db:"title"`
	Message    string         `db:"message"`
	SenderName string         `db:"sender_name"`
	Scope      string         `db:"scope"`
	Recipients pq.StringArray `db:"recipients"`
	Priority   string         `db:"priority"`
	Status     string         `db:"status"`
	SentAt     *time.Time     `db:"sent_at"`
	CreatedAt  time.Time      `db:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at"`
}

func newAnnouncementRow(ann announcement.Announcement) announcementRow {
	row := announcementRow{
		ID:         ann.ID,
		Title:      ann.Title,
		Message:    ann.Message,
		SenderName: ann.SenderName,
		Scope:      ann.Scope.String(),
		Recipients: ann.Recipients,
		Priority:   ann.Priority.String(),
		Status:     ann.Status.String(),
		CreatedAt:  ann.CreatedAt.UTC(),
		UpdatedAt:  ann.UpdatedAt.UTC(),
	}
	if row.Recipients == nil {
		row.Recipients = pq.StringArray{}
	}
	if ann.SentAt != nil {
		at := ann.SentAt.UTC()
		row.SentAt = &at
	}
	return row
}

func (row announcementRow) toAnnouncement() announcement.Announcement {
	var recipients []string
	if len(row.Recipients) > 0 {
		recipients = row.Recipients
	}
	return announcement.Announcement{
		ID:         row.ID,
		Title:      row.Title,
		Message:    row.Message,
		SenderName: row.SenderName,
		Scope:      announcement.Scope(row.Scope),
		Recipients: recipients,
		Priority:   announcement.Priority(row.Priority),
		Status:     announcement.Status(row.Status),
		SentAt:     row.SentAt,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
}

type deliveryRow struct {
	ID             string     `db:"id"`
	AnnouncementID string     `db:"announcement_id"`
	Email          string     `db:"email"`
	Name           string     `db:"name"`
	Status         string     `db:"status"`
	ProviderID     string     `db:"provider_id"`
	Error          string     `db:"error"`
	SentAt         *time.Time `db:"sent_at"`
	DeliveredAt    *time.Time `db:"delivered_at"`
	CreatedAt      time.Time  `db:"created_at"`
}

func newDeliveryRow(d announcement.Delivery) deliveryRow {
	row := deliveryRow{
		ID:             d.ID,
		AnnouncementID: d.AnnouncementID,
		Email:          d.Email,
		Name:           d.Name,
		Status:         d.Status.String(),
		ProviderID:     d.ProviderID,
		Error:          d.Error,
		CreatedAt:      d.CreatedAt.UTC(),
	}
	if d.SentAt != nil {
		at := d.SentAt.UTC()
		row.SentAt = &at
	}
	if d.DeliveredAt != nil {
		at := d.DeliveredAt.UTC()
		row.DeliveredAt = &at
	}
	return row
}

func (row deliveryRow) toDelivery() announcement.Delivery {
	return announcement.Delivery{
		ID:             row.ID,
		AnnouncementID: row.AnnouncementID,
		Email:          row.Email,
		Name:           row.Name,
		Status:         announcement.DeliveryStatus(row.Status),
		ProviderID:     row.ProviderID,
		Error:          row.Error,
		SentAt:         row.SentAt,
		DeliveredAt:    row.DeliveredAt,
		CreatedAt:      row.CreatedAt,
	}
}

func (repo announcementRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return announcement.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo announcementRepository) CreateAnnouncement(ctx context.Context, ann announcement.Announcement) (announcement.Announcement, error) {
	row := newAnnouncementRow(ann)
	query := `
	INSERT INTO announcement (id, title, message, sender_name, scope, recipients, priority, status, sent_at, created_at, updated_at)
	VALUES (:id, :title, :message, :sender_name, :scope, :recipients, :priority, :status, :sent_at, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, query, row); err != nil {
		return announcement.Announcement{}, errors.Wrap(err, "inserting announcement")
	}
	return row.toAnnouncement(), nil
}

func (repo announcementRepository) GetAnnouncementByID(ctx context.Context, id string) (announcement.Announcement, error) {
	var row announcementRow
	err := repo.db.GetContext(ctx, &row, "SELECT * FROM announcement WHERE id = $1", id)
	if err != nil {
		return announcement.Announcement{}, repo.trapNoRowsErr(err, "finding announcement by ID")
	}
	return row.toAnnouncement(), nil
}

func (repo announcementRepository) FilterAnnouncements(ctx context.Context, filter announcement.QueryFilter, ord ...core.DBOrdering) ([]announcement.Announcement, error) {
	query := "SELECT * FROM announcement"
	var conds []string
	var args []interface{}
	arg := func(val interface{}) string {
		args = append(args, val)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Search != "" {
		conds = append(conds, "title ILIKE "+arg("%"+filter.Search+"%"))
	}
	if filter.Status != "" {
		conds = append(conds, "status = "+arg(filter.Status.String()))
	}

	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += orderBy("created_at DESC", ord)

	var rows []announcementRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying announcements")
	}
	anns := make([]announcement.Announcement, 0, len(rows))
	for _, row := range rows {
		anns = append(anns, row.toAnnouncement())
	}
	return anns, nil
}

func (repo announcementRepository) UpdateAnnouncement(ctx context.Context, ann announcement.Announcement) (announcement.Announcement, error) {
	row := newAnnouncementRow(ann)
	query := `
	UPDATE announcement
	SET title = :title, message = :message, sender_name = :sender_name, scope = :scope, recipients = :recipients,
		priority = :priority, status = :status, sent_at = :sent_at, updated_at = :updated_at
	WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return announcement.Announcement{}, errors.Wrap(err, "updating announcement")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return announcement.Announcement{}, announcement.ErrNotFound
	}
	return row.toAnnouncement(), nil
}

func (repo announcementRepository) SetAnnouncementStatus(ctx context.Context, id string, status announcement.Status, sentAt *time.Time) error {
	now := time.Now().UTC()
	var res sql.Result
	var err error
	if sentAt != nil {
		at := sentAt.UTC()
		res, err = repo.db.ExecContext(
			ctx, "UPDATE announcement SET status = $1, sent_at = $2, updated_at = $3 WHERE id = $4",
			status.String(), at, now, id,
		)
	} else {
		res, err = repo.db.ExecContext(
			ctx, "UPDATE announcement SET status = $1, updated_at = $2 WHERE id = $3",
			status.String(), now, id,
		)
	}
	if err != nil {
		return errors.Wrap(err, "setting announcement status")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return announcement.ErrNotFound
	}
	return nil
}

func (repo announcementRepository) CreateDelivery(ctx context.Context, d announcement.Delivery) (announcement.Delivery, error) {
	row := newDeliveryRow(d)
	query := `
	INSERT INTO announcement_delivery (id, announcement_id, email, name, status, provider_id, error, sent_at, delivered_at, created_at)
	VALUES (:id, :announcement_id, :email, :name, :status, :provider_id, :error, :sent_at, :delivered_at, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, query, row); err != nil {
		return announcement.Delivery{}, errors.Wrap(err, "inserting delivery")
	}
	return row.toDelivery(), nil
}

func (repo announcementRepository) QueryDeliveries(ctx context.Context, announcementID string) ([]announcement.Delivery, error) {
	var rows []deliveryRow
	query := "SELECT * FROM announcement_delivery WHERE announcement_id = $1 ORDER BY created_at, id"
	if err := repo.db.SelectContext(ctx, &rows, query, announcementID); err != nil {
		return nil, errors.Wrap(err, "querying deliveries")
	}
	deliveries := make([]announcement.Delivery, 0, len(rows))
	for _, row := range rows {
		deliveries = append(deliveries, row.toDelivery())
	}
	return deliveries, nil
}

func (repo announcementRepository) CountDeliveriesByStatus(ctx context.Context, announcementID string) (map[announcement.DeliveryStatus]int, error) {
	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	query := "SELECT status, COUNT(*) AS count FROM announcement_delivery WHERE announcement_id = $1 GROUP BY status"
	if err := repo.db.SelectContext(ctx, &rows, query, announcementID); err != nil {
		return nil, errors.Wrap(err, "counting deliveries")
	}
	counts := make(map[announcement.DeliveryStatus]int, len(rows))
	for _, row := range rows {
		counts[announcement.DeliveryStatus(row.Status)] = row.Count
	}
	return counts, nil
}
