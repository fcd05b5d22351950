package inmemdb

import (
	"sync"

	"github.com/techsoc/clubhub/core/announcement"
	"github.com/techsoc/clubhub/core/event"
	"github.com/techsoc/clubhub/core/member"
	"github.com/techsoc/clubhub/core/project"
	"github.com/techsoc/clubhub/core/resource"
	"github.com/techsoc/clubhub/core/user"
)

// DB is a mutex-guarded map-based store backing the test repositories.
type DB struct {
	mutex sync.RWMutex

	users         map[string]*user.User
	applications  map[string]*member.Application
	announcements map[string]*announcement.Announcement
	deliveries    []*announcement.Delivery // insertion order
	events        map[string]*event.Event
	projects      map[string]*project.Project
	resources     map[string]*resource.Resource
}

func NewDB() *DB {
	return &DB{
		users:         make(map[string]*user.User),
		applications:  make(map[string]*member.Application),
		announcements: make(map[string]*announcement.Announcement),
		events:        make(map[string]*event.Event),
		projects:      make(map[string]*project.Project),
		resources:     make(map[string]*resource.Resource),
	}
}
