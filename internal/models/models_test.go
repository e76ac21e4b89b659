package models

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubscriberAccountSyncState(t *testing.T) {
	base := SubscriberAccount{
		Username:          "alice",
		ProfileID:         1,
		RouterID:          sql.NullString{String: "*1", Valid: true},
		LastSyncedName:    sql.NullString{String: "alice", Valid: true},
		LastSyncedProfile: sql.NullString{String: "10M", Valid: true},
		AutoSync:          true,
	}

	tests := []struct {
		name    string
		mutate  func(a *SubscriberAccount)
		profile string
		want    string
	}{
		{
			name:    "in step with the router",
			mutate:  func(a *SubscriberAccount) {},
			profile: "10M",
			want:    StateSynced,
		},
		{
			name: "never pushed, auto sync on",
			mutate: func(a *SubscriberAccount) {
				a.RouterID = sql.NullString{}
			},
			profile: "10M",
			want:    StatePending,
		},
		{
			name: "never pushed, auto sync off",
			mutate: func(a *SubscriberAccount) {
				a.RouterID = sql.NullString{}
				a.AutoSync = false
			},
			profile: "10M",
			want:    StateLocalOnly,
		},
		{
			name: "renamed since last push",
			mutate: func(a *SubscriberAccount) {
				a.Username = "alice2"
			},
			profile: "10M",
			want:    StateDrifted,
		},
		{
			name:    "profile changed since last push",
			mutate:  func(a *SubscriberAccount) {},
			profile: "20M",
			want:    StateDrifted,
		},
		{
			name: "suspension overrides everything",
			mutate: func(a *SubscriberAccount) {
				a.SavedProfileID = sql.NullInt64{Int64: 2, Valid: true}
				a.Username = "alice2"
			},
			profile: "Blokir",
			want:    StateSuspended,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := base
			tt.mutate(&a)
			assert.Equal(t, tt.want, a.SyncState(tt.profile))
		})
	}
}
