package sync

import (
	"os"
	"strconv"
	"time"

	"netbill.id/panel/pkg/logger"
)

// Engine bundles the sync services behind one dependency for the HTTP
// layer. All state lives in the stores; the engine itself holds none
// across requests.
type Engine struct {
	Manager  *Manager
	Fetcher  *Fetcher
	Cache    *StatusCache
	Profiles *ProfileSyncService
	Secrets  *SecretSyncService
	Monitor  *SessionMonitor

	BatchSize int
	CacheTTL  time.Duration
}

func NewEngine(profiles ProfileStore, accounts AccountStore, customers CustomerStore,
	usage UsageStore, settings SettingsReader, snapshots SnapshotStore,
	log *logger.Logger) *Engine {

	fetcher := NewFetcher(log)
	monitor := NewSessionMonitor(usage, accounts, log)

	return &Engine{
		Manager:   NewManager(log),
		Fetcher:   fetcher,
		Cache:     NewStatusCache(snapshots, log),
		Profiles:  NewProfileSyncService(fetcher, profiles, log),
		Secrets:   NewSecretSyncService(fetcher, accounts, profiles, customers, settings, monitor, log),
		Monitor:   monitor,
		BatchSize: envInt("SYNC_BATCH_SIZE", 100),
		CacheTTL:  envDuration("STATUS_CACHE_TTL", 30*time.Second),
	}
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
