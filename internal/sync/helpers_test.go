package sync

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"netbill.id/panel/internal/models"
	"netbill.id/panel/internal/routeros"
	"netbill.id/panel/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New()
}

// fakeRunner scripts router replies per command word.
type fakeRunner struct {
	handle func(words []string) (*routeros.Reply, error)
	calls  [][]string
}

func (f *fakeRunner) Run(words ...string) (*routeros.Reply, error) {
	f.calls = append(f.calls, words)
	return f.handle(words)
}

func (f *fakeRunner) Close() error { return nil }

// called reports how many times a command word was sent.
func (f *fakeRunner) called(command string) int {
	n := 0
	for _, c := range f.calls {
		if len(c) > 0 && c[0] == command {
			n++
		}
	}
	return n
}

func replyWith(maps ...map[string]string) *routeros.Reply {
	rep := &routeros.Reply{Done: &routeros.Sentence{Word: "!done", Map: map[string]string{}}}
	for _, m := range maps {
		rep.Re = append(rep.Re, &routeros.Sentence{Word: "!re", Map: m})
	}
	return rep
}

func doneWithRet(ret string) *routeros.Reply {
	return &routeros.Reply{Done: &routeros.Sentence{Word: "!done", Map: map[string]string{"ret": ret}}}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// fakeConn is a Runner plus a scripted login, for connection manager
// tests.
type fakeConn struct {
	fakeRunner
	loginErr error
	closed   bool
}

func (c *fakeConn) Login(username, password string) error { return c.loginErr }
func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

type fakeProfileStore struct {
	profiles []models.ServiceProfile
	nextID   int
}

func (s *fakeProfileStore) List() ([]models.ServiceProfile, error) {
	return append([]models.ServiceProfile(nil), s.profiles...), nil
}

func (s *fakeProfileStore) ListSyncEnabled() ([]models.ServiceProfile, error) {
	var out []models.ServiceProfile
	for _, p := range s.profiles {
		if p.SyncEnabled {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeProfileStore) GetByID(id int) (*models.ServiceProfile, error) {
	for i := range s.profiles {
		if s.profiles[i].ID == id {
			p := s.profiles[i]
			return &p, nil
		}
	}
	return nil, nil
}

func (s *fakeProfileStore) GetByName(name string) (*models.ServiceProfile, error) {
	for i := range s.profiles {
		if s.profiles[i].Name == name {
			p := s.profiles[i]
			return &p, nil
		}
	}
	return nil, nil
}

func (s *fakeProfileStore) Create(p *models.ServiceProfile) error {
	s.nextID++
	p.ID = s.nextID + 100
	s.profiles = append(s.profiles, *p)
	return nil
}

func (s *fakeProfileStore) Update(p *models.ServiceProfile) error {
	for i := range s.profiles {
		if s.profiles[i].ID == p.ID {
			s.profiles[i] = *p
			return nil
		}
	}
	return errors.New("profile not found")
}

type fakeAccountStore struct {
	accounts []models.SubscriberAccount
	nextID   int
}

func (s *fakeAccountStore) List() ([]models.SubscriberAccount, error) {
	return append([]models.SubscriberAccount(nil), s.accounts...), nil
}

func (s *fakeAccountStore) ListAutoSync() ([]models.SubscriberAccount, error) {
	var out []models.SubscriberAccount
	for _, a := range s.accounts {
		if a.AutoSync {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeAccountStore) GetByID(id int) (*models.SubscriberAccount, error) {
	for i := range s.accounts {
		if s.accounts[i].ID == id {
			a := s.accounts[i]
			return &a, nil
		}
	}
	return nil, nil
}

func (s *fakeAccountStore) GetByUsername(username string) (*models.SubscriberAccount, error) {
	for i := range s.accounts {
		if s.accounts[i].Username == username {
			a := s.accounts[i]
			return &a, nil
		}
	}
	return nil, nil
}

func (s *fakeAccountStore) Create(a *models.SubscriberAccount) error {
	s.nextID++
	a.ID = s.nextID + 200
	s.accounts = append(s.accounts, *a)
	return nil
}

func (s *fakeAccountStore) Update(a *models.SubscriberAccount) error {
	for i := range s.accounts {
		if s.accounts[i].ID == a.ID {
			s.accounts[i] = *a
			return nil
		}
	}
	return errors.New("account not found")
}

func (s *fakeAccountStore) Delete(id int) error {
	for i := range s.accounts {
		if s.accounts[i].ID == id {
			s.accounts = append(s.accounts[:i], s.accounts[i+1:]...)
			return nil
		}
	}
	return errors.New("account not found")
}

type fakeCustomerStore struct {
	placeholders []string
}

func (s *fakeCustomerStore) EnsurePlaceholder(username string) (int, error) {
	s.placeholders = append(s.placeholders, username)
	return 900 + len(s.placeholders), nil
}

type fakeUsageStore struct {
	open   []models.UsageLog
	closed []int64
	nextID int64
}

func (s *fakeUsageStore) OpenLogs() ([]models.UsageLog, error) {
	return append([]models.UsageLog(nil), s.open...), nil
}

func (s *fakeUsageStore) Open(l *models.UsageLog) error {
	s.nextID++
	l.ID = s.nextID
	s.open = append(s.open, *l)
	return nil
}

func (s *fakeUsageStore) UpdateCounters(id int64, bytesIn, bytesOut int64, address, callerID string) error {
	for i := range s.open {
		if s.open[i].ID == id {
			s.open[i].BytesIn = bytesIn
			s.open[i].BytesOut = bytesOut
			return nil
		}
	}
	return fmt.Errorf("log %d not found", id)
}

func (s *fakeUsageStore) CloseLog(id int64, at time.Time) error {
	s.closed = append(s.closed, id)
	return nil
}

type fakeSettings map[string]string

func (s fakeSettings) Get(key, fallback string) string {
	if v, ok := s[key]; ok && v != "" {
		return v
	}
	return fallback
}

func syncedAccount(id int, username string, profileID int, profileName string) models.SubscriberAccount {
	return models.SubscriberAccount{
		ID:                id,
		CustomerID:        1,
		Username:          username,
		Password:          "secret",
		Service:           "pppoe",
		ProfileID:         profileID,
		IsActive:          true,
		RouterID:          sql.NullString{String: "*1", Valid: true},
		LastSyncedName:    sql.NullString{String: username, Valid: true},
		LastSyncedProfile: sql.NullString{String: profileName, Valid: true},
		AutoSync:          true,
	}
}
