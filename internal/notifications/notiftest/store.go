// Package notiftest provides in-memory stand-ins for the notification store,
// broker config store and delivery queue, for tests that drive the service
// and the worker end to end.
package notiftest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ToFood/tofood-zip/internal/types"
)

// Store is an in-memory notification store with the same claim semantics
// as the Postgres repository.
type Store struct {
	mu      sync.Mutex
	nextID  int64
	records map[int64]*types.NotificationRecord
	requeue map[int64]time.Time
	now     func() time.Time

	// FailFinish, when set, is returned by Finish.
	FailFinish error
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		records: make(map[int64]*types.NotificationRecord),
		requeue: make(map[int64]time.Time),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetNow overrides the store clock.
func (s *Store) SetNow(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = fn
}

func (s *Store) Create(_ context.Context, rec *types.NotificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	rec.ID = s.nextID
	rec.CreatedAt = s.now()
	if rec.Status == 0 {
		rec.Status = types.StatusWaitingToBeSent
	}
	if rec.Attempt == 0 {
		rec.Attempt = 1
	}
	s.records[rec.ID] = clone(rec)
	return nil
}

// Put stores rec as-is, keeping its id.
func (s *Store) Put(rec *types.NotificationRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID > s.nextID {
		s.nextID = rec.ID
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	s.records[rec.ID] = clone(rec)
}

// Get returns a copy of the record or nil.
func (s *Store) Get(id int64) *types.NotificationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[id]; ok {
		return clone(r)
	}
	return nil
}

func (s *Store) GetByID(_ context.Context, id int64) (*types.NotificationRecord, error) {
	if r := s.Get(id); r != nil {
		return r, nil
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundNotification, "notification not found", nil)
}

func (s *Store) ListBySubject(_ context.Context, subjectEntityID string, limit int) ([]*types.NotificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.NotificationRecord
	for _, r := range s.records {
		if r.SubjectEntityID == subjectEntityID && !r.Deleted {
			out = append(out, clone(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Claim(_ context.Context, id int64) (*types.NotificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok || r.Status != types.StatusWaitingToBeSent || r.SentAt != nil || r.Deleted {
		return nil, nil
	}
	if r.ClaimedAt != nil {
		r.Attempt++
	}
	now := s.now()
	r.ClaimedAt = &now
	r.Status = types.StatusProcessing
	return clone(r), nil
}

func (s *Store) Finish(_ context.Context, id int64, status types.NotificationStatus, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailFinish != nil {
		return s.FailFinish
	}
	r, ok := s.records[id]
	if !ok || r.Status != types.StatusProcessing {
		return types.NewAppError(types.ErrCodeNotFoundNotification, "claimed notification not found", nil)
	}
	r.Status = status
	r.ErrorMessage = nil
	if errorMessage != "" {
		msg := errorMessage
		r.ErrorMessage = &msg
	}
	if status != types.StatusNotSent {
		now := s.now()
		r.SentAt = &now
	}
	return nil
}

func (s *Store) Release(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok || r.Status != types.StatusProcessing {
		return types.NewAppError(types.ErrCodeNotFoundNotification, "claimed notification not found", nil)
	}
	r.Status = types.StatusWaitingToBeSent
	return nil
}

func (s *Store) ReleaseStaleClaims(_ context.Context, lease time.Duration, limit int) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var ids []int64
	for _, id := range s.sortedIDs() {
		r := s.records[id]
		if len(ids) >= limit {
			break
		}
		if r.Status == types.StatusProcessing && r.SentAt == nil && r.ClaimedAt != nil && r.ClaimedAt.Before(now.Add(-lease)) {
			r.Status = types.StatusWaitingToBeSent
			s.requeue[id] = now
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *Store) TouchStaleWaiting(_ context.Context, lease time.Duration, limit int) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var ids []int64
	for _, id := range s.sortedIDs() {
		r := s.records[id]
		if len(ids) >= limit {
			break
		}
		since := r.CreatedAt
		if t, ok := s.requeue[id]; ok {
			since = t
		}
		if r.Status == types.StatusWaitingToBeSent && r.SentAt == nil && !r.Deleted && since.Before(now.Add(-lease)) {
			s.requeue[id] = now
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *Store) sortedIDs() []int64 {
	ids := make([]int64, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func clone(r *types.NotificationRecord) *types.NotificationRecord {
	c := *r
	if r.ErrorMessage != nil {
		msg := *r.ErrorMessage
		c.ErrorMessage = &msg
	}
	if r.BrokerServiceID != nil {
		id := *r.BrokerServiceID
		c.BrokerServiceID = &id
	}
	if r.ClaimedAt != nil {
		t := *r.ClaimedAt
		c.ClaimedAt = &t
	}
	if r.SentAt != nil {
		t := *r.SentAt
		c.SentAt = &t
	}
	return &c
}

// Configs is an in-memory broker service config store.
type Configs struct {
	mu      sync.Mutex
	configs map[int64]types.BrokerServiceConfig
}

// NewConfigs returns a store holding cfgs.
func NewConfigs(cfgs ...types.BrokerServiceConfig) *Configs {
	c := &Configs{configs: make(map[int64]types.BrokerServiceConfig)}
	for _, cfg := range cfgs {
		c.configs[cfg.ID] = cfg
	}
	return c
}

// Put adds or replaces cfg.
func (c *Configs) Put(cfg types.BrokerServiceConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.configs[cfg.ID] = cfg
}

func (c *Configs) GetActiveForChannel(_ context.Context, channel types.ChannelType) (*types.BrokerServiceConfig, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var best *types.BrokerServiceConfig
	for _, cfg := range c.configs {
		if cfg.Active && cfg.Channel == channel && (best == nil || cfg.ID < best.ID) {
			cp := cfg
			best = &cp
		}
	}
	if best == nil {
		return nil, types.NewAppError(types.ErrCodeNotFoundBroker, "no active broker service for channel", nil)
	}
	return best, nil
}

func (c *Configs) GetByID(_ context.Context, id int64) (*types.BrokerServiceConfig, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cfg, ok := c.configs[id]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundBroker, "broker service not found", nil)
	}
	return &cfg, nil
}
