package sync

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"netbill.id/panel/internal/models"
	"netbill.id/panel/internal/routeros"
)

// profileRouter simulates the router's PPP profile table.
type profileRouter struct {
	profiles map[string]map[string]string
	nextID   int
}

func newProfileRouter(names ...string) *profileRouter {
	r := &profileRouter{profiles: make(map[string]map[string]string)}
	for _, name := range names {
		r.nextID++
		r.profiles[name] = map[string]string{
			".id": "*" + strconv.Itoa(r.nextID), "name": name, "rate-limit": "10M/10M",
		}
	}
	return r
}

func (r *profileRouter) Run(words ...string) (*routeros.Reply, error) {
	arg := attrs(words[1:])

	switch words[0] {
	case "/ppp/profile/print":
		var maps []map[string]string
		for _, p := range r.profiles {
			maps = append(maps, p)
		}
		return replyWith(maps...), nil

	case "/ppp/profile/add":
		name := arg["name"]
		if _, exists := r.profiles[name]; exists {
			return nil, &routeros.TrapError{Message: "failure: profile with the same name already exists"}
		}
		r.nextID++
		arg[".id"] = "*" + strconv.Itoa(r.nextID)
		r.profiles[name] = arg
		return doneWithRet(arg[".id"]), nil

	case "/ppp/profile/set":
		for _, p := range r.profiles {
			if p[".id"] == arg[".id"] {
				for k, v := range arg {
					if k != ".id" {
						p[k] = v
					}
				}
				return replyWith(), nil
			}
		}
		return nil, &routeros.TrapError{Message: "no such item"}

	case "/ppp/profile/remove":
		for name, p := range r.profiles {
			if p[".id"] == arg[".id"] {
				delete(r.profiles, name)
				return replyWith(), nil
			}
		}
		return nil, &routeros.TrapError{Message: "no such item"}
	}
	return nil, fmt.Errorf("unexpected command %s", words[0])
}

func (r *profileRouter) Close() error { return nil }

func TestProfileImportSkipsPlatformDefaults(t *testing.T) {
	router := newProfileRouter("default", "default-encryption", "10M")

	store := &fakeProfileStore{}
	svc := NewProfileSyncService(NewFetcher(testLogger()), store, testLogger())

	res, err := svc.Import(router, 50)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 2, res.Skipped)

	p, _ := store.GetByName("10M")
	require.NotNil(t, p)
	assert.Equal(t, "10M/10M", p.RateLimit.String)
	assert.True(t, p.SyncEnabled)
	assert.Equal(t, float64(0), p.Price, "imported profiles await manual pricing")
}

func TestProfileImportUpdatesExistingByName(t *testing.T) {
	router := newProfileRouter("10M")
	router.profiles["10M"]["rate-limit"] = "12M/12M"

	store := &fakeProfileStore{profiles: []models.ServiceProfile{
		{ID: 1, Name: "10M", Price: 150000, SyncEnabled: true},
	}}
	svc := NewProfileSyncService(NewFetcher(testLogger()), store, testLogger())

	res, err := svc.Import(router, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	p, _ := store.GetByName("10M")
	assert.Equal(t, "12M/12M", p.RateLimit.String)
	assert.Equal(t, float64(150000), p.Price, "price is local-only and must survive import")
}

func TestProfilePushCreatesAndUpdates(t *testing.T) {
	router := newProfileRouter("20M")

	store := &fakeProfileStore{profiles: []models.ServiceProfile{
		{ID: 1, Name: "10M", RateLimit: nullString("10M/10M"), SyncEnabled: true},
		{ID: 2, Name: "20M", RateLimit: nullString("20M/20M"), SyncEnabled: true},
		{ID: 3, Name: "draft", SyncEnabled: false},
	}}
	svc := NewProfileSyncService(NewFetcher(testLogger()), store, testLogger())

	res, err := svc.PushAll(router)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Updated)
	assert.Len(t, router.profiles, 2, "sync-disabled profiles never push")
	assert.Equal(t, "20M/20M", router.profiles["20M"]["rate-limit"])

	p, _ := store.GetByName("10M")
	assert.True(t, p.RouterID.Valid)
	assert.Equal(t, "10M", p.LastSyncedName.String)
}

func TestProfilePushRenameRemovesOldRemote(t *testing.T) {
	router := newProfileRouter("Bronze")

	store := &fakeProfileStore{profiles: []models.ServiceProfile{{
		ID: 1, Name: "Silver", SyncEnabled: true,
		RouterID:       nullString(router.profiles["Bronze"][".id"]),
		LastSyncedName: nullString("Bronze"),
	}}}
	svc := NewProfileSyncService(NewFetcher(testLogger()), store, testLogger())

	p, _ := store.GetByName("Silver")
	require.NoError(t, svc.Push(router, p))

	_, oldExists := router.profiles["Bronze"]
	assert.False(t, oldExists, "renamed profile must not linger under the old name")
	_, newExists := router.profiles["Silver"]
	assert.True(t, newExists)

	stored, _ := store.GetByName("Silver")
	assert.Equal(t, "Silver", stored.LastSyncedName.String)
}

func TestProfilePushIsIdempotent(t *testing.T) {
	router := newProfileRouter()

	store := &fakeProfileStore{profiles: []models.ServiceProfile{
		{ID: 1, Name: "10M", RateLimit: nullString("10M/10M"), SyncEnabled: true},
	}}
	svc := NewProfileSyncService(NewFetcher(testLogger()), store, testLogger())

	first, err := svc.PushAll(router)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Created)

	id := router.profiles["10M"][".id"]

	second, err := svc.PushAll(router)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 1, second.Updated)
	assert.Equal(t, id, router.profiles["10M"][".id"], "second push must update in place")
}

func TestProfileRecordHelpers(t *testing.T) {
	assert.Equal(t, "yes", yesNo(true))
	assert.Equal(t, "no", yesNo(false))
	assert.False(t, nullString("").Valid)
	assert.True(t, nullString("x").Valid)
	assert.True(t, strings.HasPrefix(nullString("x").String, "x"))
}
