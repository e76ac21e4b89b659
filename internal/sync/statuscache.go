package sync

import (
	gosync "sync"
	"time"

	"netbill.id/panel/pkg/logger"
)

// Status cache states. Degraded data is served instead of an error, so
// dashboards show a warning rather than a failed page.
const (
	StateFresh    = "fresh"
	StateDegraded = "degraded"
)

// SnapshotStore persists last-known status payloads. pkg/redis provides
// the production implementation; MemorySnapshots is the fallback.
type SnapshotStore interface {
	Load(key string) (map[string]interface{}, time.Time, bool)
	Save(key string, data map[string]interface{}, at time.Time)
}

type memorySnapshot struct {
	data map[string]interface{}
	at   time.Time
}

type MemorySnapshots struct {
	mu gosync.Mutex
	m  map[string]memorySnapshot
}

func NewMemorySnapshots() *MemorySnapshots {
	return &MemorySnapshots{m: make(map[string]memorySnapshot)}
}

func (s *MemorySnapshots) Load(key string) (map[string]interface{}, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.m[key]
	if !ok {
		return nil, time.Time{}, false
	}
	return snap.data, snap.at, true
}

func (s *MemorySnapshots) Save(key string, data map[string]interface{}, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = memorySnapshot{data: data, at: at}
}

// Status is a cached payload tagged with its freshness.
type Status struct {
	Data      map[string]interface{} `json:"data"`
	State     string                 `json:"state"`
	FetchedAt time.Time              `json:"fetched_at"`
}

// StatusCache bounds how often live router queries run and keeps serving
// the last-known answer when a live query fails.
type StatusCache struct {
	store  SnapshotStore
	logger *logger.Logger
	now    func() time.Time
}

func NewStatusCache(store SnapshotStore, log *logger.Logger) *StatusCache {
	return &StatusCache{store: store, logger: log, now: time.Now}
}

// Get returns the cached value if younger than ttl, otherwise invokes
// loader. On loader failure the stale value is served tagged degraded;
// with nothing cached at all, a static unavailable payload is returned.
func (c *StatusCache) Get(key string, ttl time.Duration, loader func() (map[string]interface{}, error)) Status {
	cached, at, ok := c.store.Load(key)
	if ok && c.now().Sub(at) < ttl {
		return Status{Data: cached, State: StateFresh, FetchedAt: at}
	}

	data, err := loader()
	if err == nil {
		now := c.now()
		c.store.Save(key, data, now)
		return Status{Data: data, State: StateFresh, FetchedAt: now}
	}

	c.logger.Warn("Status loader failed, serving degraded data", "key", key, "error", err.Error())
	if ok {
		return Status{Data: cached, State: StateDegraded, FetchedAt: at}
	}
	return Status{
		Data:  map[string]interface{}{"available": false},
		State: StateDegraded,
	}
}
