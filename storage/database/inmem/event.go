package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/techsoc/clubhub/core"
	"github.com/techsoc/clubhub/core/event"
)

type eventRepository struct {
	db *DB
}

var _ event.Repository = (*eventRepository)(nil) // interface compliance check

func NewEventRepository(db *DB) *eventRepository {
	return &eventRepository{db: db}
}

func (repo *eventRepository) query() []event.Event {
	events := make([]event.Event, 0, len(repo.db.events))
	for _, ev := range repo.db.events {
		events = append(events, *ev)
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].StartsAt.Equal(events[j].StartsAt) {
			return events[i].ID < events[j].ID
		}
		return events[i].StartsAt.Before(events[j].StartsAt)
	})
	return events
}

func (repo *eventRepository) CreateEvent(ctx context.Context, ev event.Event) (event.Event, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.events[ev.ID] = &ev
	return ev, nil
}

func (repo *eventRepository) GetEventByID(ctx context.Context, id string) (event.Event, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if ev, ok := repo.db.events[id]; ok {
		return *ev, nil
	}
	return event.Event{}, event.ErrNotFound
}

func (repo *eventRepository) FilterEvents(ctx context.Context, filter event.QueryFilter, ord ...core.DBOrdering) ([]event.Event, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	now := time.Now().UTC()
	var events []event.Event
	for _, ev := range repo.query() {
		if filter.Search != "" {
			s := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(ev.Title), s) &&
				!strings.Contains(strings.ToLower(ev.Description), s) &&
				!strings.Contains(strings.ToLower(ev.Location), s) {
				continue
			}
		}
		if filter.Upcoming && ev.StartsAt.Before(now) {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func (repo *eventRepository) UpdateEvent(ctx context.Context, ev event.Event) (event.Event, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.events[ev.ID]; !ok {
		return event.Event{}, event.ErrNotFound
	}
	repo.db.events[ev.ID] = &ev
	return ev, nil
}

func (repo *eventRepository) DeleteEventsByID(ctx context.Context, ids ...string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, id := range ids {
		delete(repo.db.events, id)
	}
	return nil
}
