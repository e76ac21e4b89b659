package models

import (
	"database/sql"
	"time"
)

type User struct {
	ID           int            `json:"id"`
	Email        string         `json:"email"`
	PasswordHash string         `json:"-"`
	Role         string         `json:"role"`
	FullName     sql.NullString `json:"full_name"`
	IsActive     bool           `json:"is_active"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// RouterEndpoint is a saved router credential set. At most one endpoint
// carries is_active = true; the activate handler enforces it.
type RouterEndpoint struct {
	ID              int          `json:"id"`
	Name            string       `json:"name"`
	Host            string       `json:"host"`
	Port            int          `json:"port"`
	Username        string       `json:"username"`
	Password        string       `json:"-"`
	UseTLS          bool         `json:"use_tls"`
	IsActive        bool         `json:"is_active"`
	LastConnectedAt sql.NullTime `json:"last_connected_at"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// ServiceProfile mirrors a PPP profile on the router. Name is the identity
// key remotely; RouterID holds the remote .id once the profile has synced.
type ServiceProfile struct {
	ID             int            `json:"id"`
	Name           string         `json:"name"`
	LocalAddress   sql.NullString `json:"local_address"`
	RemoteAddress  sql.NullString `json:"remote_address"`
	RateLimit      sql.NullString `json:"rate_limit"`
	Price          float64        `json:"price"`
	OnlyOne        bool           `json:"only_one"`
	Description    sql.NullString `json:"description"`
	SyncEnabled    bool           `json:"sync_enabled"`
	RouterID       sql.NullString `json:"router_id"`
	LastSyncedName sql.NullString `json:"-"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// SubscriberAccount is a PPP secret owned by a billing customer.
// LastSyncedName/LastSyncedProfile record the identity the router knows;
// when either differs from the current value the next push must
// delete-and-recreate, because the router addresses secrets by name.
// SavedProfileID remembers the profile held before a suspension.
type SubscriberAccount struct {
	ID                int            `json:"id"`
	CustomerID        int            `json:"customer_id"`
	Username          string         `json:"username"`
	Password          string         `json:"-"`
	Service           string         `json:"service"`
	ProfileID         int            `json:"profile_id"`
	IsActive          bool           `json:"is_active"`
	Comment           sql.NullString `json:"comment"`
	InstalledAt       sql.NullTime   `json:"installed_at"`
	DueDate           sql.NullTime   `json:"due_date"`
	RouterID          sql.NullString `json:"router_id"`
	LastSyncedName    sql.NullString `json:"-"`
	LastSyncedProfile sql.NullString `json:"-"`
	SavedProfileID    sql.NullInt64  `json:"saved_profile_id"`
	AutoSync          bool           `json:"auto_sync"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// Sync states derived from a SubscriberAccount, never stored.
const (
	StateLocalOnly = "local-only"
	StatePending   = "pending"
	StateSynced    = "synced"
	StateDrifted   = "drifted"
	StateSuspended = "suspended"
)

// SyncState reports where the account sits relative to the router.
// profileName is the name of the account's current profile.
func (a *SubscriberAccount) SyncState(profileName string) string {
	if a.SavedProfileID.Valid {
		return StateSuspended
	}
	if !a.RouterID.Valid {
		if a.AutoSync {
			return StatePending
		}
		return StateLocalOnly
	}
	if a.LastSyncedName.String != a.Username || a.LastSyncedProfile.String != profileName {
		return StateDrifted
	}
	return StateSynced
}

type Customer struct {
	ID            int            `json:"id"`
	Code          string         `json:"code"`
	FullName      string         `json:"full_name"`
	Phone         sql.NullString `json:"phone"`
	Address       sql.NullString `json:"address"`
	IsPlaceholder bool           `json:"is_placeholder"`
	CreatedAt     time.Time      `json:"created_at"`
}

// UsageLog is one connection period for a subscriber. EndedAt stays null
// while the session is believed open; the session monitor closes it.
type UsageLog struct {
	ID        int64          `json:"id"`
	AccountID int            `json:"account_id"`
	Username  string         `json:"username"`
	Address   sql.NullString `json:"address"`
	CallerID  sql.NullString `json:"caller_id"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   sql.NullTime   `json:"ended_at"`
	BytesIn   int64          `json:"bytes_in"`
	BytesOut  int64          `json:"bytes_out"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type SystemLog struct {
	ID        int       `json:"id"`
	Level     string    `json:"level"`
	Source    string    `json:"source"`
	Message   string    `json:"message"`
	Metadata  []byte    `json:"metadata"`
	CreatedAt time.Time `json:"created_at"`
}

type Setting struct {
	ID          int            `json:"id"`
	Key         string         `json:"key"`
	Value       sql.NullString `json:"value"`
	Description sql.NullString `json:"description"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
