package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/techsoc/clubhub/core"
	"github.com/techsoc/clubhub/core/announcement"
)

type announcementRepository struct {
	db *DB
}

var _ announcement.Repository = (*announcementRepository)(nil) // interface compliance check

func NewAnnouncementRepository(db *DB) *announcementRepository {
	return &announcementRepository{db: db}
}

func (repo *announcementRepository) query() []announcement.Announcement {
	anns := make([]announcement.Announcement, 0, len(repo.db.announcements))
	for _, ann := range repo.db.announcements {
		anns = append(anns, *ann)
	}
	sort.Slice(anns, func(i, j int) bool {
		if anns[i].CreatedAt.Equal(anns[j].CreatedAt) {
			return anns[i].ID < anns[j].ID
		}
		return anns[i].CreatedAt.After(anns[j].CreatedAt)
	})
	return anns
}

func (repo *announcementRepository) CreateAnnouncement(ctx context.Context, ann announcement.Announcement) (announcement.Announcement, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.announcements[ann.ID] = &ann
	return ann, nil
}

func (repo *announcementRepository) GetAnnouncementByID(ctx context.Context, id string) (announcement.Announcement, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if ann, ok := repo.db.announcements[id]; ok {
		return *ann, nil
	}
	return announcement.Announcement{}, announcement.ErrNotFound
}

func (repo *announcementRepository) FilterAnnouncements(ctx context.Context, filter announcement.QueryFilter, ord ...core.DBOrdering) ([]announcement.Announcement, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var anns []announcement.Announcement
	for _, ann := range repo.query() {
		if filter.Search != "" && !strings.Contains(strings.ToLower(ann.Title), strings.ToLower(filter.Search)) {
			continue
		}
		if filter.Status != "" && ann.Status != filter.Status {
			continue
		}
		anns = append(anns, ann)
	}
	return anns, nil
}

func (repo *announcementRepository) UpdateAnnouncement(ctx context.Context, ann announcement.Announcement) (announcement.Announcement, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.announcements[ann.ID]; !ok {
		return announcement.Announcement{}, announcement.ErrNotFound
	}
	repo.db.announcements[ann.ID] = &ann
	return ann, nil
}

func (repo *announcementRepository) SetAnnouncementStatus(ctx context.Context, id string, status announcement.Status, sentAt *time.Time) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	ann, ok := repo.db.announcements[id]
	if !ok {
		return announcement.ErrNotFound
	}
	ann.Status = status
	ann.UpdatedAt = time.Now().UTC()
	if sentAt != nil {
		ann.SentAt = sentAt
	}
	return nil
}

func (repo *announcementRepository) CreateDelivery(ctx context.Context, d announcement.Delivery) (announcement.Delivery, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.deliveries = append(repo.db.deliveries, &d)
	return d, nil
}

func (repo *announcementRepository) QueryDeliveries(ctx context.Context, announcementID string) ([]announcement.Delivery, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var deliveries []announcement.Delivery
	for _, d := range repo.db.deliveries {
		if d.AnnouncementID == announcementID {
			deliveries = append(deliveries, *d)
		}
	}
	return deliveries, nil
}

func (repo *announcementRepository) CountDeliveriesByStatus(ctx context.Context, announcementID string) (map[announcement.DeliveryStatus]int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	counts := make(map[announcement.DeliveryStatus]int)
	for _, d := range repo.db.deliveries {
		if d.AnnouncementID == announcementID {
			counts[d.Status]++
		}
	}
	return counts, nil
}
