package member

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/techsoc/clubhub/core"
)

// Application statuses
const (
	StatusPending  = Status("pending")
	StatusApproved = Status("approved")
	StatusRejected = Status("rejected")
)

var Statuses = []Status{StatusPending, StatusApproved, StatusRejected}

type Status string

func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

func (s Status) String() string { return string(s) }

// Application is a membership application submitted from the public site.
type Application struct {
	ID         string     `json:"id"`
	FirstName  string     `json:"first_name"`
	LastName   string     `json:"last_name"`
	Email      string     `json:"email"`
	Major      string     `json:"major"`
	Year       string     `json:"year"`
	Motivation string     `json:"motivation"`
	Status     Status     `json:"status"`
	DecidedBy  string     `json:"decided_by,omitempty"`
	DecidedAt  *time.Time `json:"decided_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"` // UTC
	UpdatedAt  time.Time  `json:"updated_at"` // UTC
}

func (a Application) FullName() string {
	if a.LastName == "" {
		return a.FirstName
	}
	return a.FirstName + " " + a.LastName
}

// NewApplication contains information needed to submit a membership application.
type NewApplication struct {
	FirstName  string `json:"first_name" validate:"required"`
	LastName   string `json:"last_name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Major      string `json:"major" validate:"omitempty"`
	Year       string `json:"year" validate:"omitempty"`
	Motivation string `json:"motivation" validate:"omitempty,max=2000"`
}

func (na *NewApplication) Validate(validate *validator.Validate, svc *Service) error {
	na.FirstName = core.CleanString(na.FirstName)
	na.LastName = core.CleanString(na.LastName)
	na.Email = core.CleanString(na.Email, true /* lower */)
	na.Major = core.CleanString(na.Major)
	na.Year = core.CleanString(na.Year)
	na.Motivation = core.CleanString(na.Motivation)

	if err := validate.Struct(na); err != nil {
		return err
	}
	return svc.checkUniqueness(na.Email)
}

type QueryFilter struct {
	Search      string    `query:"search"`
	Status      Status    `query:"status"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Status == "" && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Status = Status(core.CleanString(qf.Status.String(), true /* lower */))
}
