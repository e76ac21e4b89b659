package sync

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"netbill.id/panel/internal/models"
	"netbill.id/panel/internal/routeros"
)

// secretRouter simulates the router's PPP secret and active session
// tables well enough to exercise both sync directions.
type secretRouter struct {
	secrets   map[string]map[string]string // keyed by name
	sessions  map[string]map[string]string // keyed by name
	nextID    int
	removeErr error
	calls     []string
}

func newSecretRouter() *secretRouter {
	return &secretRouter{
		secrets:  make(map[string]map[string]string),
		sessions: make(map[string]map[string]string),
	}
}

func (r *secretRouter) addSecret(name, profile string) {
	r.nextID++
	r.secrets[name] = map[string]string{
		".id": "*" + strconv.Itoa(r.nextID), "name": name,
		"password": "pw-" + name, "service": "pppoe", "profile": profile,
	}
}

func attrs(words []string) map[string]string {
	m := make(map[string]string)
	for _, w := range words {
		if strings.HasPrefix(w, "=") || strings.HasPrefix(w, "?") {
			if i := strings.Index(w[1:], "="); i >= 0 {
				m[w[1:i+1]] = w[i+2:]
			}
		}
	}
	return m
}

func (r *secretRouter) Run(words ...string) (*routeros.Reply, error) {
	r.calls = append(r.calls, words[0])
	arg := attrs(words[1:])

	switch words[0] {
	case "/ppp/secret/print":
		var maps []map[string]string
		for _, sec := range r.secrets {
			if name, ok := arg["name"]; ok && sec["name"] != name {
				continue
			}
			maps = append(maps, sec)
		}
		return replyWith(maps...), nil

	case "/ppp/secret/add":
		name := arg["name"]
		if _, exists := r.secrets[name]; exists {
			return nil, &routeros.TrapError{Message: "failure: secret with the same name already exists"}
		}
		r.nextID++
		arg[".id"] = "*" + strconv.Itoa(r.nextID)
		r.secrets[name] = arg
		return doneWithRet(arg[".id"]), nil

	case "/ppp/secret/set":
		for _, sec := range r.secrets {
			if sec[".id"] == arg[".id"] {
				for k, v := range arg {
					if k != ".id" {
						sec[k] = v
					}
				}
				return replyWith(), nil
			}
		}
		return nil, &routeros.TrapError{Message: "no such item"}

	case "/ppp/secret/remove":
		if r.removeErr != nil {
			return nil, r.removeErr
		}
		for name, sec := range r.secrets {
			if sec[".id"] == arg[".id"] {
				delete(r.secrets, name)
				return replyWith(), nil
			}
		}
		return nil, &routeros.TrapError{Message: "no such item"}

	case "/ppp/active/print":
		var maps []map[string]string
		for _, sess := range r.sessions {
			if name, ok := arg["name"]; ok && sess["name"] != name {
				continue
			}
			maps = append(maps, sess)
		}
		return replyWith(maps...), nil

	case "/ppp/active/remove":
		for name, sess := range r.sessions {
			if sess[".id"] == arg[".id"] {
				delete(r.sessions, name)
				return replyWith(), nil
			}
		}
		return nil, &routeros.TrapError{Message: "no such item"}
	}
	return nil, fmt.Errorf("unexpected command %s", words[0])
}

func (r *secretRouter) Close() error { return nil }

func newSecretService(profiles *fakeProfileStore, accounts *fakeAccountStore,
	customers *fakeCustomerStore, settings fakeSettings) *SecretSyncService {
	log := testLogger()
	usage := &fakeUsageStore{}
	monitor := NewSessionMonitor(usage, accounts, log)
	return NewSecretSyncService(NewFetcher(log), accounts, profiles, customers, settings, monitor, log)
}

func profileFixture() *fakeProfileStore {
	return &fakeProfileStore{profiles: []models.ServiceProfile{
		{ID: 1, Name: "10M", SyncEnabled: true},
		{ID: 2, Name: "20M", SyncEnabled: true},
		{ID: 3, Name: "Blokir", SyncEnabled: true},
	}}
}

func TestImportCreatesUnderPlaceholder(t *testing.T) {
	router := newSecretRouter()
	router.addSecret("alice", "10M")

	profiles := profileFixture()
	accounts := &fakeAccountStore{}
	customers := &fakeCustomerStore{}
	svc := newSecretService(profiles, accounts, customers, fakeSettings{})

	res, err := svc.Import(router, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)

	acc, err := accounts.GetByUsername("alice")
	require.NoError(t, err)
	require.NotNil(t, acc)
	assert.Equal(t, 1, acc.ProfileID)
	assert.True(t, acc.RouterID.Valid)
	assert.Equal(t, []string{"alice"}, customers.placeholders)
}

func TestImportSkipsUnknownProfile(t *testing.T) {
	router := newSecretRouter()
	router.addSecret("bob", "100M-vip")

	svc := newSecretService(profileFixture(), &fakeAccountStore{}, &fakeCustomerStore{}, fakeSettings{})

	res, err := svc.Import(router, 50)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "100M-vip")
}

func TestImportUsesDefaultProfileWhenAbsent(t *testing.T) {
	router := newSecretRouter()
	router.nextID++
	router.secrets["carol"] = map[string]string{".id": "*1", "name": "carol", "password": "pw"}

	profiles := profileFixture()
	profiles.profiles = append(profiles.profiles, models.ServiceProfile{ID: 4, Name: "default-pool"})
	accounts := &fakeAccountStore{}
	svc := newSecretService(profiles, accounts, &fakeCustomerStore{},
		fakeSettings{SettingDefaultProfile: "default-pool"})

	res, err := svc.Import(router, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)

	acc, _ := accounts.GetByUsername("carol")
	require.NotNil(t, acc)
	assert.Equal(t, 4, acc.ProfileID)
}

func TestImportThenPushIsIdempotent(t *testing.T) {
	router := newSecretRouter()
	router.addSecret("alice", "10M")

	profiles := profileFixture()
	accounts := &fakeAccountStore{}
	svc := newSecretService(profiles, accounts, &fakeCustomerStore{}, fakeSettings{})

	_, err := svc.Import(router, 50)
	require.NoError(t, err)

	before := router.secrets["alice"][".id"]
	res, err := svc.PushAll(router)
	require.NoError(t, err)

	// Round-trip must update in place, never recreate.
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, before, router.secrets["alice"][".id"])
	assert.Len(t, router.secrets, 1)
}

func TestPushCreatesMissingSecret(t *testing.T) {
	router := newSecretRouter()
	profiles := profileFixture()
	accounts := &fakeAccountStore{accounts: []models.SubscriberAccount{{
		ID: 10, CustomerID: 1, Username: "dave", Password: "pw",
		Service: "pppoe", ProfileID: 2, IsActive: true, AutoSync: true,
	}}}
	svc := newSecretService(profiles, accounts, &fakeCustomerStore{}, fakeSettings{})

	acc, _ := accounts.GetByID(10)
	require.NoError(t, svc.Push(router, acc))

	sec, ok := router.secrets["dave"]
	require.True(t, ok)
	assert.Equal(t, "20M", sec["profile"])

	stored, _ := accounts.GetByID(10)
	assert.True(t, stored.RouterID.Valid)
	assert.Equal(t, "dave", stored.LastSyncedName.String)
	assert.Equal(t, "20M", stored.LastSyncedProfile.String)
}

func TestPushRenameLeavesNoOldObject(t *testing.T) {
	router := newSecretRouter()
	router.addSecret("oldname", "10M")

	profiles := profileFixture()
	acc := syncedAccount(10, "oldname", 1, "10M")
	acc.RouterID = nullString(router.secrets["oldname"][".id"])
	accounts := &fakeAccountStore{accounts: []models.SubscriberAccount{acc}}
	svc := newSecretService(profiles, accounts, &fakeCustomerStore{}, fakeSettings{})

	renamed, _ := accounts.GetByID(10)
	renamed.Username = "newname"
	require.NoError(t, svc.Push(router, renamed))

	_, oldExists := router.secrets["oldname"]
	assert.False(t, oldExists, "old secret must be removed on rename")
	_, newExists := router.secrets["newname"]
	assert.True(t, newExists)

	stored, _ := accounts.GetByID(10)
	assert.Equal(t, "newname", stored.LastSyncedName.String)
}

func TestPushProfileChangeRecreates(t *testing.T) {
	router := newSecretRouter()
	router.addSecret("alice", "10M")

	profiles := profileFixture()
	acc := syncedAccount(10, "alice", 1, "10M")
	acc.RouterID = nullString(router.secrets["alice"][".id"])
	accounts := &fakeAccountStore{accounts: []models.SubscriberAccount{acc}}
	svc := newSecretService(profiles, accounts, &fakeCustomerStore{}, fakeSettings{})

	changed, _ := accounts.GetByID(10)
	changed.ProfileID = 2
	require.NoError(t, svc.Push(router, changed))

	sec := router.secrets["alice"]
	require.NotNil(t, sec)
	assert.Equal(t, "20M", sec["profile"])
	assert.Len(t, router.secrets, 1)
}

func TestSuspendRestoreExactAcrossCycles(t *testing.T) {
	router := newSecretRouter()
	profiles := profileFixture()
	acc := syncedAccount(10, "alice", 2, "20M")
	accounts := &fakeAccountStore{accounts: []models.SubscriberAccount{acc}}
	svc := newSecretService(profiles, accounts, &fakeCustomerStore{}, fakeSettings{})

	for cycle := 0; cycle < 3; cycle++ {
		current, _ := accounts.GetByID(10)
		require.NoError(t, svc.Disable(router, current))
		require.NoError(t, accounts.Update(current))

		suspended, _ := accounts.GetByID(10)
		assert.Equal(t, 3, suspended.ProfileID, "cycle %d: suspension profile active", cycle)
		assert.Equal(t, int64(2), suspended.SavedProfileID.Int64, "cycle %d", cycle)
		assert.Equal(t, "Blokir", router.secrets["alice"]["profile"])

		require.NoError(t, svc.Enable(router, suspended))
		require.NoError(t, accounts.Update(suspended))

		restored, _ := accounts.GetByID(10)
		assert.Equal(t, 2, restored.ProfileID, "cycle %d: original profile restored", cycle)
		assert.False(t, restored.SavedProfileID.Valid, "cycle %d", cycle)
		assert.Equal(t, "20M", router.secrets["alice"]["profile"])
	}
}

func TestDoubleDisableKeepsSavedProfile(t *testing.T) {
	router := newSecretRouter()
	profiles := profileFixture()
	acc := syncedAccount(10, "alice", 2, "20M")
	accounts := &fakeAccountStore{accounts: []models.SubscriberAccount{acc}}
	svc := newSecretService(profiles, accounts, &fakeCustomerStore{}, fakeSettings{})

	current, _ := accounts.GetByID(10)
	require.NoError(t, svc.Disable(router, current))
	require.NoError(t, accounts.Update(current))

	again, _ := accounts.GetByID(10)
	require.NoError(t, svc.Disable(router, again))
	require.NoError(t, accounts.Update(again))

	// The memory must still point at the pre-suspension profile, not at
	// the suspension profile.
	final, _ := accounts.GetByID(10)
	assert.Equal(t, int64(2), final.SavedProfileID.Int64)

	require.NoError(t, svc.Enable(router, final))
	assert.Equal(t, 2, final.ProfileID)
}

func TestDisableKicksLiveSession(t *testing.T) {
	router := newSecretRouter()
	router.sessions["alice"] = map[string]string{".id": "*s1", "name": "alice"}

	profiles := profileFixture()
	acc := syncedAccount(10, "alice", 2, "20M")
	accounts := &fakeAccountStore{accounts: []models.SubscriberAccount{acc}}
	svc := newSecretService(profiles, accounts, &fakeCustomerStore{}, fakeSettings{})

	current, _ := accounts.GetByID(10)
	require.NoError(t, svc.Disable(router, current))

	_, live := router.sessions["alice"]
	assert.False(t, live, "live session must be kicked on suspend")
}

func TestDisableFailsWithoutSuspensionProfile(t *testing.T) {
	router := newSecretRouter()
	profiles := &fakeProfileStore{profiles: []models.ServiceProfile{{ID: 1, Name: "10M"}}}
	acc := syncedAccount(10, "alice", 1, "10M")
	accounts := &fakeAccountStore{accounts: []models.SubscriberAccount{acc}}
	svc := newSecretService(profiles, accounts, &fakeCustomerStore{}, fakeSettings{})

	current, _ := accounts.GetByID(10)
	err := svc.Disable(router, current)
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestDeleteProceedsWhenRemoteAbsent(t *testing.T) {
	router := newSecretRouter()
	acc := syncedAccount(10, "ghost", 1, "10M")
	accounts := &fakeAccountStore{accounts: []models.SubscriberAccount{acc}}
	svc := newSecretService(profileFixture(), accounts, &fakeCustomerStore{}, fakeSettings{})

	require.NoError(t, svc.Delete(router, &acc, false))
	gone, _ := accounts.GetByID(10)
	assert.Nil(t, gone)
}

func TestDeleteBlockedByTimeoutUnlessForced(t *testing.T) {
	router := newSecretRouter()
	router.addSecret("alice", "10M")
	router.removeErr = timeoutError{}

	acc := syncedAccount(10, "alice", 1, "10M")
	accounts := &fakeAccountStore{accounts: []models.SubscriberAccount{acc}}
	svc := newSecretService(profileFixture(), accounts, &fakeCustomerStore{}, fakeSettings{})

	err := svc.Delete(router, &acc, false)
	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))
	still, _ := accounts.GetByID(10)
	assert.NotNil(t, still, "ambiguous remote delete must block the local one")

	require.NoError(t, svc.Delete(router, &acc, true))
	gone, _ := accounts.GetByID(10)
	assert.Nil(t, gone)
}

func TestStatsCountsByState(t *testing.T) {
	profiles := profileFixture()
	synced := syncedAccount(1, "a", 1, "10M")
	drifted := syncedAccount(2, "b", 1, "10M")
	drifted.Username = "b-renamed"
	pending := models.SubscriberAccount{ID: 3, Username: "c", ProfileID: 1, AutoSync: true}
	localOnly := models.SubscriberAccount{ID: 4, Username: "d", ProfileID: 1}
	suspended := syncedAccount(5, "e", 3, "Blokir")
	suspended.SavedProfileID = sql.NullInt64{Int64: 1, Valid: true}

	accounts := &fakeAccountStore{accounts: []models.SubscriberAccount{
		synced, drifted, pending, localOnly, suspended,
	}}
	svc := newSecretService(profiles, accounts, &fakeCustomerStore{}, fakeSettings{})

	stats, err := svc.Stats()
	require.NoError(t, err)
	assert.Equal(t, &Stats{Total: 5, Synced: 1, Drifted: 1, Pending: 1, LocalOnly: 1, Suspended: 1}, stats)
}
