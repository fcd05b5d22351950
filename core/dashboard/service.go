package dashboard

import (
	"context"

	"github.com/pkg/errors"

	"github.com/techsoc/clubhub/core/member"
)

type (
	// Repository provides the per-table counts shown on the admin dashboard.
	Repository interface {
		CountAnnouncements(ctx context.Context) (int, error)
		CountEvents(ctx context.Context) (int, error)
		CountProjects(ctx context.Context) (int, error)
		CountResources(ctx context.Context) (int, error)
	}

	// ApplicationCounter is satisfied by member.Service.
	ApplicationCounter interface {
		CountByStatus(ctx context.Context) (map[member.Status]int, error)
	}

	Service struct {
		repo         Repository
		applications ApplicationCounter
	}

	ApplicationStats struct {
		Pending  int `json:"pending"`
		Approved int `json:"approved"`
		Rejected int `json:"rejected"`
		Total    int `json:"total"`
	}

	Stats struct {
		Applications  ApplicationStats `json:"applications"`
		Announcements int              `json:"announcements"`
		Events        int              `json:"events"`
		Projects      int              `json:"projects"`
		Resources     int              `json:"resources"`
	}
)

func NewService(repo Repository, applications ApplicationCounter) *Service {
	return &Service{repo: repo, applications: applications}
}

// Stats gathers the aggregate counts for the admin dashboard, one query per
// store.
func (svc *Service) Stats(ctx context.Context) (Stats, error) {
	var stats Stats

	counts, err := svc.applications.CountByStatus(ctx)
	if err != nil {
		return Stats{}, errors.Wrap(err, "counting applications")
	}
	stats.Applications = ApplicationStats{
		Pending:  counts[member.StatusPending],
		Approved: counts[member.StatusApproved],
		Rejected: counts[member.StatusRejected],
	}
	stats.Applications.Total = stats.Applications.Pending + stats.Applications.Approved + stats.Applications.Rejected

	if stats.Announcements, err = svc.repo.CountAnnouncements(ctx); err != nil {
		return Stats{}, errors.Wrap(err, "counting announcements")
	}
	if stats.Events, err = svc.repo.CountEvents(ctx); err != nil {
		return Stats{}, errors.Wrap(err, "counting events")
	}
	if stats.Projects, err = svc.repo.CountProjects(ctx); err != nil {
		return Stats{}, errors.Wrap(err, "counting projects")
	}
	if stats.Resources, err = svc.repo.CountResources(ctx); err != nil {
		return Stats{}, errors.Wrap(err, "counting resources")
	}
	return stats, nil
}
