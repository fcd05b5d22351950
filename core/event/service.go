package event

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/techsoc/clubhub/core"
)

var ErrNotFound = errors.New("event not found")

type (
	Repository interface {
		CreateEvent(ctx context.Context, ev Event) (Event, error)
		GetEventByID(ctx context.Context, id string) (Event, error)
		FilterEvents(ctx context.Context, filter QueryFilter, ord ...core.DBOrdering) ([]Event, error)
		UpdateEvent(ctx context.Context, ev Event) (Event, error)
		DeleteEventsByID(ctx context.Context, ids ...string) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, ne NewEvent) (Event, error) {
	now := time.Now().UTC()
	ev := Event{
		ID:          uuid.New().String(),
		Title:       ne.Title,
		Description: ne.Description,
		Location:    ne.Location,
		StartsAt:    ne.StartsAt,
		EndsAt:      ne.EndsAt,
		Published:   ne.Published,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateEvent(ctx, ev)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Event, error) {
	return svc.repo.GetEventByID(ctx, id)
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter, ord ...core.DBOrdering) ([]Event, error) {
	return svc.repo.FilterEvents(ctx, filter, ord...)
}

func (svc *Service) Update(ctx context.Context, id string, ue UpdateEvent) (Event, error) {
	ev, err := svc.repo.GetEventByID(ctx, id)
	if err != nil {
		return Event{}, err
	}
	ev.Title = ue.Title
	ev.Description = ue.Description
	ev.Location = ue.Location
	ev.StartsAt = ue.StartsAt
	ev.EndsAt = ue.EndsAt
	if ue.Published != nil {
		ev.Published = *ue.Published
	}
	ev.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateEvent(ctx, ev)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteEventsByID(ctx, ids...)
}
