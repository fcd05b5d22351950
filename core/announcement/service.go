package announcement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/techsoc/clubhub/core"
)

var (
	// errors
	ErrNotFound       = errors.New("announcement not found")
	ErrNoRecipients   = errors.New("no recipients")
	ErrNothingToRetry = errors.New("no failed deliveries to resend")
	ErrNotSentYet     = errors.New("announcement has not been sent yet")
	ErrAlreadySent    = errors.New("announcement has already been sent")
)

type (
	Repository interface {
		CreateAnnouncement(ctx context.Context, ann Announcement) (Announcement, error)
		GetAnnouncementByID(ctx context.Context, id string) (Announcement, error)
		// FilterAnnouncements applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on title.
		FilterAnnouncements(ctx context.Context, filter QueryFilter, ord ...core.DBOrdering) ([]Announcement, error)
		UpdateAnnouncement(ctx context.Context, ann Announcement) (Announcement, error)
		// SetAnnouncementStatus records a state transition; sentAt is only
		// written when non-nil.
		SetAnnouncementStatus(ctx context.Context, id string, status Status, sentAt *time.Time) error

		CreateDelivery(ctx context.Context, d Delivery) (Delivery, error)
		// QueryDeliveries returns an announcement's rows ordered by creation time.
		QueryDeliveries(ctx context.Context, announcementID string) ([]Delivery, error)
		CountDeliveriesByStatus(ctx context.Context, announcementID string) (map[DeliveryStatus]int, error)
	}

	// MemberDirectory resolves the `all` recipient scope.
	MemberDirectory interface {
		ApprovedEmails(ctx context.Context) ([]string, error)
	}

	Service struct {
		repo       Repository
		members    MemberDirectory
		dispatcher *dispatcher
	}
)

func NewService(repo Repository, members MemberDirectory, sender core.EmailSender, logger core.Logger, conf *core.Config) *Service {
	return &Service{
		repo:       repo,
		members:    members,
		dispatcher: newDispatcher(repo, sender, logger, conf),
	}
}

// Create persists a new Announcement. With SendNow it resolves recipients up
// front (failing before anything is persisted) and dispatches synchronously;
// otherwise the announcement is saved as a draft.
func (svc *Service) Create(ctx context.Context, na NewAnnouncement) (Announcement, *DispatchResult, error) {
	now := time.Now().UTC()
	ann := Announcement{
		ID:         uuid.New().String(),
		Title:      na.Title,
		Message:    na.Message,
		SenderName: na.SenderName,
		Scope:      na.Scope,
		Priority:   na.Priority,
		Status:     StatusDraft,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if ann.Scope == ScopeSpecific {
		ann.Recipients = mergeExplicit(na.Recipients, na.RecipientText)
	}

	var recipients []string
	if na.SendNow {
		var err error
		if recipients, err = svc.resolveRecipients(ctx, ann.Scope, ann.Recipients); err != nil {
			return Announcement{}, nil, err
		}
	}

	ann, err := svc.repo.CreateAnnouncement(ctx, ann)
	if err != nil {
		return Announcement{}, nil, errors.Wrap(err, "creating announcement")
	}
	if !na.SendNow {
		return ann, nil, nil
	}

	res, err := svc.dispatchAndRecord(ctx, &ann, recipients)
	return ann, res, err
}

// Update edits an existing Announcement; allowed for drafts and for sent
// items being prepared for a resend.
func (svc *Service) Update(ctx context.Context, id string, ua UpdateAnnouncement) (Announcement, *DispatchResult, error) {
	ann, err := svc.repo.GetAnnouncementByID(ctx, id)
	if err != nil {
		return Announcement{}, nil, err
	}

	ann.Title = ua.Title
	ann.Message = ua.Message
	ann.SenderName = ua.SenderName
	ann.Scope = ua.Scope
	ann.Priority = ua.Priority
	ann.Recipients = nil
	if ann.Scope == ScopeSpecific {
		ann.Recipients = mergeExplicit(ua.Recipients, ua.RecipientText)
	}
	ann.UpdatedAt = time.Now().UTC()

	var recipients []string
	if ua.SendNow {
		if recipients, err = svc.resolveRecipients(ctx, ann.Scope, ann.Recipients); err != nil {
			return Announcement{}, nil, err
		}
	}

	ann, err = svc.repo.UpdateAnnouncement(ctx, ann)
	if err != nil {
		return Announcement{}, nil, errors.Wrap(err, "updating announcement")
	}
	if !ua.SendNow {
		return ann, nil, nil
	}

	res, err := svc.dispatchAndRecord(ctx, &ann, recipients)
	return ann, res, err
}

func (svc *Service) GetByID(ctx context.Context, id string) (Announcement, error) {
	return svc.repo.GetAnnouncementByID(ctx, id)
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter, ord ...core.DBOrdering) ([]Announcement, error) {
	return svc.repo.FilterAnnouncements(ctx, filter, ord...)
}

// Send dispatches a draft for the first time. Already-sent announcements go
// through Resend so delivery history stays additive and explicit.
func (svc *Service) Send(ctx context.Context, id string) (*DispatchResult, error) {
	ann, err := svc.repo.GetAnnouncementByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ann.Status != StatusDraft {
		return nil, core.NewValidationError(ErrAlreadySent)
	}

	recipients, err := svc.resolveRecipients(ctx, ann.Scope, ann.Recipients)
	if err != nil {
		return nil, err
	}
	return svc.dispatchAndRecord(ctx, &ann, recipients)
}

// Resend re-dispatches an already-sent announcement to all original
// recipients, only those whose latest delivery failed or bounced, or an
// explicit subset. New Delivery rows are appended; history is never rewritten.
func (svc *Service) Resend(ctx context.Context, id string, rr ResendRequest) (*DispatchResult, error) {
	ann, err := svc.repo.GetAnnouncementByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ann.Status == StatusDraft {
		return nil, core.NewValidationError(ErrNotSentYet)
	}

	var recipients []string
	switch rr.Mode {
	case ResendAll:
		if recipients, err = svc.resolveRecipients(ctx, ann.Scope, ann.Recipients); err != nil {
			return nil, err
		}
	case ResendFailed:
		if recipients, err = svc.failedRecipients(ctx, ann.ID); err != nil {
			return nil, err
		}
		if len(recipients) == 0 {
			return nil, core.NewValidationError(ErrNothingToRetry)
		}
	case ResendSpecific:
		recipients = mergeExplicit(rr.Recipients, rr.RecipientText)
		if len(recipients) == 0 {
			return nil, core.NewValidationError(ErrNoRecipients, core.FieldError{Field: "recipients", Error: ErrNoRecipients.Error()})
		}
	default:
		return nil, core.NewValidationError(errors.Errorf("invalid resend mode %q", rr.Mode))
	}

	return svc.dispatchAndRecord(ctx, &ann, recipients)
}

// Deliveries returns an announcement's delivery rows, optionally filtered.
func (svc *Service) Deliveries(ctx context.Context, id string, filter DeliveryFilter) ([]Delivery, error) {
	if _, err := svc.repo.GetAnnouncementByID(ctx, id); err != nil {
		return nil, err
	}
	deliveries, err := svc.repo.QueryDeliveries(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "querying deliveries")
	}
	return FilterDeliveries(deliveries, filter), nil
}

// Stats aggregates delivery counts with the sent|delivered and
// failed|bounced groupings. Sent+Failed+Pending always equals Total.
func (svc *Service) Stats(ctx context.Context, id string) (Stats, error) {
	if _, err := svc.repo.GetAnnouncementByID(ctx, id); err != nil {
		return Stats{}, err
	}
	counts, err := svc.repo.CountDeliveriesByStatus(ctx, id)
	if err != nil {
		return Stats{}, errors.Wrap(err, "counting deliveries")
	}

	var stats Stats
	for status, n := range counts {
		switch status {
		case DeliverySent, DeliveryDelivered:
			stats.Sent += n
		case DeliveryFailed, DeliveryBounced:
			stats.Failed += n
		case DeliveryPending:
			stats.Pending += n
		}
		stats.Total += n
	}
	return stats, nil
}

// dispatchAndRecord runs the dispatcher and applies the resulting state
// transition: at least one success moves the announcement to `sent` (stamping
// SentAt on the first send), a total failure moves it to `failed`.
func (svc *Service) dispatchAndRecord(ctx context.Context, ann *Announcement, recipients []string) (*DispatchResult, error) {
	res := svc.dispatcher.Dispatch(ctx, *ann, recipients)

	status := StatusSent
	if res.Sent == 0 {
		status = StatusFailed
	}

	var sentAt *time.Time
	if status == StatusSent && ann.SentAt == nil {
		now := time.Now().UTC()
		sentAt = &now
	}
	if err := svc.repo.SetAnnouncementStatus(ctx, ann.ID, status, sentAt); err != nil {
		return &res, errors.Wrap(err, "recording announcement status")
	}
	ann.Status = status
	if sentAt != nil {
		ann.SentAt = sentAt
	}
	return &res, nil
}

// failedRecipients returns addresses whose most recent delivery failed or
// bounced. Recipients that were never attempted are not included.
func (svc *Service) failedRecipients(ctx context.Context, announcementID string) ([]string, error) {
	deliveries, err := svc.repo.QueryDeliveries(ctx, announcementID)
	if err != nil {
		return nil, errors.Wrap(err, "querying deliveries")
	}

	latest := make(map[string]DeliveryStatus, len(deliveries))
	order := make([]string, 0, len(deliveries))
	for _, d := range deliveries { // rows are ordered by creation time
		if _, seen := latest[d.Email]; !seen {
			order = append(order, d.Email)
		}
		latest[d.Email] = d.Status
	}

	failed := make([]string, 0, len(order))
	for _, email := range order {
		if st := latest[email]; st == DeliveryFailed || st == DeliveryBounced {
			failed = append(failed, email)
		}
	}
	return failed, nil
}
