package billing

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SubscriptionLoader loads the authoritative subscription of a user.
type SubscriptionLoader interface {
	GetSubscription(ctx context.Context, userID string) (*Subscription, error)
}

type snapshotEntry struct {
	sub       *Subscription
	fetchedAt time.Time
}

// StateProvider is the single fetch point for subscription snapshots.
// A failed reload keeps the previous snapshot (stale but available).
type StateProvider struct {
	loader SubscriptionLoader
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger

	mu      sync.RWMutex
	entries map[string]*snapshotEntry
}

// NewStateProvider creates a provider. Snapshots older than ttl are reloaded
// by Snapshot; ttl <= 0 reloads on every Snapshot call.
func NewStateProvider(loader SubscriptionLoader, ttl time.Duration, logger *zap.Logger) *StateProvider {
	return &StateProvider{
		loader:  loader,
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
		entries: make(map[string]*snapshotEntry),
	}
}

// Get returns the current snapshot, or nil if none was ever loaded.
func (p *StateProvider) Get(userID string) *Subscription {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if e, ok := p.entries[userID]; ok {
		return e.sub
	}
	return nil
}

// Refetch forces a reload. On failure the previous snapshot stays in place
// and is returned together with the error.
func (p *StateProvider) Refetch(ctx context.Context, userID string) (*Subscription, error) {
	sub, err := p.loader.GetSubscription(ctx, userID)
	if err != nil {
		p.logger.Warn("subscription refetch failed, keeping previous snapshot",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return p.Get(userID), err
	}

	p.Put(sub)
	return sub, nil
}

// Snapshot returns a snapshot no older than the ttl when the backend is
// reachable, the stale snapshot otherwise. It never fails.
func (p *StateProvider) Snapshot(ctx context.Context, userID string) *Subscription {
	p.mu.RLock()
	e, ok := p.entries[userID]
	p.mu.RUnlock()

	if ok && p.ttl > 0 && p.now().Sub(e.fetchedAt) < p.ttl {
		return e.sub
	}

	sub, _ := p.Refetch(ctx, userID)
	return sub
}

// Put stores a snapshot obtained elsewhere, e.g. the balance returned by a charge.
func (p *StateProvider) Put(sub *Subscription) {
	if sub == nil {
		return
	}

	p.mu.Lock()
	p.entries[sub.UserID()] = &snapshotEntry{sub: sub, fetchedAt: p.now()}
	p.mu.Unlock()
}

// Invalidate marks a snapshot stale without dropping it.
func (p *StateProvider) Invalidate(userID string) {
	p.mu.Lock()
	if e, ok := p.entries[userID]; ok {
		e.fetchedAt = time.Time{}
	}
	p.mu.Unlock()
}
