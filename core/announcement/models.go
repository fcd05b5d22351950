package announcement

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/techsoc/clubhub/core"
)

// Recipient scopes
const (
	ScopeAll      = Scope("all")
	ScopeSpecific = Scope("specific")
)

// Priorities
const (
	PriorityLow    = Priority("low")
	PriorityNormal = Priority("normal")
	PriorityHigh   = Priority("high")
	PriorityUrgent = Priority("urgent")
)

// Announcement statuses
const (
	StatusDraft  = Status("draft")
	StatusSent   = Status("sent")
	StatusFailed = Status("failed")
)

// Delivery statuses
const (
	DeliveryPending   = DeliveryStatus("pending")
	DeliverySent      = DeliveryStatus("sent")
	DeliveryDelivered = DeliveryStatus("delivered")
	DeliveryFailed    = DeliveryStatus("failed")
	DeliveryBounced   = DeliveryStatus("bounced")
)

// Resend modes
const (
	ResendAll      = ResendMode("all")
	ResendFailed   = ResendMode("failed")
	ResendSpecific = ResendMode("specific")
)

// Delivery list filters. `sent` includes `delivered`; `failed` includes `bounced`.
const (
	FilterAll     = DeliveryFilter("all")
	FilterSent    = DeliveryFilter("sent")
	FilterFailed  = DeliveryFilter("failed")
	FilterPending = DeliveryFilter("pending")
)

type (
	Scope          string
	Priority       string
	Status         string
	DeliveryStatus string
	ResendMode     string
	DeliveryFilter string
)

func (s Scope) Valid() bool    { return s == ScopeAll || s == ScopeSpecific }
func (s Scope) String() string { return string(s) }

func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityNormal || p == PriorityHigh || p == PriorityUrgent
}
func (p Priority) String() string { return string(p) }

func (s Status) Valid() bool    { return s == StatusDraft || s == StatusSent || s == StatusFailed }
func (s Status) String() string { return string(s) }

func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliveryPending, DeliverySent, DeliveryDelivered, DeliveryFailed, DeliveryBounced:
		return true
	}
	return false
}
func (s DeliveryStatus) String() string { return string(s) }

func (m ResendMode) Valid() bool {
	return m == ResendAll || m == ResendFailed || m == ResendSpecific
}
func (m ResendMode) String() string { return string(m) }

func (f DeliveryFilter) Valid() bool {
	return f == FilterAll || f == FilterSent || f == FilterFailed || f == FilterPending
}
func (f DeliveryFilter) String() string { return string(f) }

// Announcement is a single outbound message authored by an admin, targeting
// either all approved members or an explicit address list.
type Announcement struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Message    string     `json:"message"` // HTML
	SenderName string     `json:"sender_name"`
	Scope      Scope      `json:"scope"`
	Recipients []string   `json:"recipients,omitempty"` // only when Scope == specific
	Priority   Priority   `json:"priority"`
	Status     Status     `json:"status"`
	SentAt     *time.Time `json:"sent_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"` // UTC
	UpdatedAt  time.Time  `json:"updated_at"` // UTC
}

// Delivery is one recipient-level attempt record associated with an
// Announcement. History is additive: resends append new rows.
type Delivery struct {
	ID             string         `json:"id"`
	AnnouncementID string         `json:"announcement_id"`
	Email          string         `json:"email"`
	Name           string         `json:"name,omitempty"`
	Status         DeliveryStatus `json:"status"`
	ProviderID     string         `json:"provider_message_id,omitempty"`
	Error          string         `json:"error,omitempty"`
	SentAt         *time.Time     `json:"sent_at,omitempty"`
	DeliveredAt    *time.Time     `json:"delivered_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"` // UTC
}

// Stats partitions an announcement's deliveries for reporting.
// Sent counts sent|delivered, Failed counts failed|bounced.
type Stats struct {
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Pending int `json:"pending"`
	Total   int `json:"total"`
}

// DispatchResult summarizes one dispatch run.
type DispatchResult struct {
	Requested int    `json:"requested"`
	Sent      int    `json:"sent"`
	Failed    int    `json:"failed"`
	Message   string `json:"message"`

	// EstimatedDuration is populated before large batches as a hint that the
	// request will take a while; pacing makes wall-clock time linear in
	// recipient count.
	EstimatedDuration string `json:"estimated_duration,omitempty"`
}

// NewAnnouncement contains information needed to create an Announcement.
type NewAnnouncement struct {
	Title      string   `json:"title" validate:"required"`
	Message    string   `json:"message" validate:"required"`
	SenderName string   `json:"sender_name"`
	Scope      Scope    `json:"scope" validate:"omitempty,oneof=all specific"`
	Recipients []string `json:"recipients"`
	// RecipientText is a free-text block of addresses separated by commas or
	// newlines; unioned with Recipients when Scope == specific.
	RecipientText string   `json:"recipient_text"`
	Priority      Priority `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	SendNow       bool     `json:"send_now"`
}

func (na *NewAnnouncement) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Message = core.CleanString(na.Message)
	na.SenderName = core.CleanString(na.SenderName)
	if na.Scope == "" {
		na.Scope = ScopeAll
	}
	if na.Priority == "" {
		na.Priority = PriorityNormal
	}
	return validate.Struct(na)
}

// UpdateAnnouncement defines what may be modified on an existing Announcement.
// The surrounding API restricts edits to drafts and already-sent items; the
// record itself has no further state to enforce here.
type UpdateAnnouncement struct {
	Title         string   `json:"title" validate:"required"`
	Message       string   `json:"message" validate:"required"`
	SenderName    string   `json:"sender_name"`
	Scope         Scope    `json:"scope" validate:"omitempty,oneof=all specific"`
	Recipients    []string `json:"recipients"`
	RecipientText string   `json:"recipient_text"`
	Priority      Priority `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	SendNow       bool     `json:"send_now"`
}

func (ua *UpdateAnnouncement) Validate(validate *validator.Validate) error {
	ua.Title = core.CleanString(ua.Title)
	ua.Message = core.CleanString(ua.Message)
	ua.SenderName = core.CleanString(ua.SenderName)
	if ua.Scope == "" {
		ua.Scope = ScopeAll
	}
	if ua.Priority == "" {
		ua.Priority = PriorityNormal
	}
	return validate.Struct(ua)
}

// ResendRequest re-dispatches an already-sent Announcement.
type ResendRequest struct {
	Mode ResendMode `json:"mode" validate:"required,oneof=all failed specific"`
	// Recipients/RecipientText are honored only when Mode == specific.
	Recipients    []string `json:"recipients"`
	RecipientText string   `json:"recipient_text"`
}

func (rr *ResendRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(rr)
}

type QueryFilter struct {
	Search string `query:"search"`
	Status Status `query:"status"`
}

func (qf *QueryFilter) IsEmpty() bool { return qf.Search == "" && qf.Status == "" }

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Status = Status(core.CleanString(qf.Status.String(), true /* lower */))
}

// FilterDeliveries returns the subset of deliveries matching the filter,
// honoring the sent|delivered and failed|bounced groupings.
func FilterDeliveries(deliveries []Delivery, filter DeliveryFilter) []Delivery {
	if filter == "" || filter == FilterAll {
		return deliveries
	}
	out := make([]Delivery, 0, len(deliveries))
	for _, d := range deliveries {
		switch filter {
		case FilterSent:
			if d.Status == DeliverySent || d.Status == DeliveryDelivered {
				out = append(out, d)
			}
		case FilterFailed:
			if d.Status == DeliveryFailed || d.Status == DeliveryBounced {
				out = append(out, d)
			}
		case FilterPending:
			if d.Status == DeliveryPending {
				out = append(out, d)
			}
		}
	}
	return out
}
