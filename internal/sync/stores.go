package sync

import (
	"time"

	"netbill.id/panel/internal/models"
	"netbill.id/panel/internal/routeros"
)

// Runner is the protocol surface the services need from a connected,
// authenticated session.
type Runner interface {
	Run(words ...string) (*routeros.Reply, error)
	Close() error
}

// Conn is what the connection manager hands out: a Runner that can also
// authenticate. *routeros.Client satisfies it.
type Conn interface {
	Runner
	Login(username, password string) error
}

type ProfileStore interface {
	List() ([]models.ServiceProfile, error)
	ListSyncEnabled() ([]models.ServiceProfile, error)
	GetByID(id int) (*models.ServiceProfile, error)
	GetByName(name string) (*models.ServiceProfile, error)
	Create(p *models.ServiceProfile) error
	Update(p *models.ServiceProfile) error
}

type AccountStore interface {
	List() ([]models.SubscriberAccount, error)
	ListAutoSync() ([]models.SubscriberAccount, error)
	GetByID(id int) (*models.SubscriberAccount, error)
	GetByUsername(username string) (*models.SubscriberAccount, error)
	Create(a *models.SubscriberAccount) error
	Update(a *models.SubscriberAccount) error
	Delete(id int) error
}

type CustomerStore interface {
	// EnsurePlaceholder returns the id of the placeholder customer owning
	// imported accounts with no local owner, creating it if needed.
	EnsurePlaceholder(username string) (int, error)
}

type UsageStore interface {
	OpenLogs() ([]models.UsageLog, error)
	Open(l *models.UsageLog) error
	UpdateCounters(id int64, bytesIn, bytesOut int64, address, callerID string) error
	CloseLog(id int64, at time.Time) error
}

type SettingsReader interface {
	Get(key, fallback string) string
}
