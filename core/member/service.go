package member

import (
	"context"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/techsoc/clubhub/core"
)

var (
	// errors
	ErrNotFound       = errors.New("application not found")
	ErrEmailExists    = errors.New("an application with this email already exists")
	ErrAlreadyDecided = errors.New("application has already been decided")
	ErrInvalidStatus  = errors.New("invalid application status")
)

type (
	Repository interface {
		CreateApplication(ctx context.Context, app Application) (Application, error)
		GetApplicationByID(ctx context.Context, id string) (Application, error)
		GetApplicationByEmail(ctx context.Context, email string) (Application, error)
		// FilterApplications applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on name or email.
		FilterApplications(ctx context.Context, filter QueryFilter, ord ...core.DBOrdering) ([]Application, error)
		UpdateApplicationStatus(ctx context.Context, app Application) (Application, error)
		CountApplicationsByStatus(ctx context.Context) (map[Status]int, error)
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		conf    *core.Config
	}
)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{repo: repo, mailSvc: mailSvc, conf: conf}
}

func (svc *Service) checkUniqueness(email string) error {
	_, err := svc.repo.GetApplicationByEmail(context.Background(), email)
	if err == nil {
		return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	}
	if errors.Cause(err) != ErrNotFound {
		return err
	}
	return nil
}

// Apply submits a new membership application in `pending` status.
func (svc *Service) Apply(ctx context.Context, na NewApplication) (Application, error) {
	now := time.Now().UTC()
	app := Application{
		ID:         uuid.New().String(),
		FirstName:  na.FirstName,
		LastName:   na.LastName,
		Email:      na.Email,
		Major:      na.Major,
		Year:       na.Year,
		Motivation: na.Motivation,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return svc.repo.CreateApplication(ctx, app)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Application, error) {
	return svc.repo.GetApplicationByID(ctx, id)
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter, ord ...core.DBOrdering) ([]Application, error) {
	return svc.repo.FilterApplications(ctx, filter, ord...)
}

// Approve marks a pending application approved and notifies the applicant by email.
func (svc *Service) Approve(ctx context.Context, id, decidedBy string) (Application, error) {
	app, err := svc.decide(ctx, id, decidedBy, StatusApproved)
	if err != nil {
		return Application{}, err
	}
	svc.sendApprovalEmail(app)
	return app, nil
}

// Reject marks a pending application rejected. No email is sent.
func (svc *Service) Reject(ctx context.Context, id, decidedBy string) (Application, error) {
	return svc.decide(ctx, id, decidedBy, StatusRejected)
}

func (svc *Service) decide(ctx context.Context, id, decidedBy string, status Status) (Application, error) {
	app, err := svc.repo.GetApplicationByID(ctx, id)
	if err != nil {
		return Application{}, err
	}
	if app.Status != StatusPending {
		return Application{}, core.NewValidationError(ErrAlreadyDecided)
	}

	now := time.Now().UTC()
	app.Status = status
	app.DecidedBy = decidedBy
	app.DecidedAt = &now
	app.UpdatedAt = now
	return svc.repo.UpdateApplicationStatus(ctx, app)
}

// ApprovedEmails returns the addresses of all approved applicants,
// the recipient pool for club-wide announcements.
func (svc *Service) ApprovedEmails(ctx context.Context) ([]string, error) {
	apps, err := svc.repo.FilterApplications(ctx, QueryFilter{Status: StatusApproved})
	if err != nil {
		return nil, errors.Wrap(err, "querying approved applications")
	}
	emails := make([]string, 0, len(apps))
	for _, app := range apps {
		emails = append(emails, app.Email)
	}
	return emails, nil
}

func (svc *Service) CountByStatus(ctx context.Context) (map[Status]int, error) {
	return svc.repo.CountApplicationsByStatus(ctx)
}

func (svc *Service) sendApprovalEmail(app Application) {
	svc.mailSvc.SendMessages(
		&core.EmailMessage{
			To:           []mail.Address{{Name: app.FullName(), Address: app.Email}},
			Subject:      "Welcome aboard!",
			TemplateName: "application-approved",
			TemplateData: struct {
				Name string
			}{app.FullName()},
		},
	)
}
