package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/elevare/server/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockLoader struct {
	mock.Mock
}

func (m *MockLoader) GetSubscription(ctx context.Context, userID string) (*Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Subscription), args.Error(1)
}

func TestStateProvider_GetBeforeLoadIsNil(t *testing.T) {
	p := NewStateProvider(new(MockLoader), time.Minute, zap.NewNop())
	assert.Nil(t, p.Get("user-1"))
}

func TestStateProvider_RefetchStoresSnapshot(t *testing.T) {
	loader := new(MockLoader)
	s := NewSubscription("user-1", model.PlanTypeEssencial, model.SubscriptionStatusActive, 3, 50, time.Now())
	loader.On("GetSubscription", mock.Anything, "user-1").Return(s, nil).Once()

	p := NewStateProvider(loader, time.Minute, zap.NewNop())
	got, err := p.Refetch(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Same(t, s, p.Get("user-1"))
	loader.AssertExpectations(t)
}

func TestStateProvider_FailedRefetchKeepsStaleSnapshot(t *testing.T) {
	loader := new(MockLoader)
	s := NewSubscription("user-1", model.PlanTypeFree, model.SubscriptionStatusActive, 2, 3, time.Now())
	loader.On("GetSubscription", mock.Anything, "user-1").Return(s, nil).Once()
	loader.On("GetSubscription", mock.Anything, "user-1").Return(nil, errors.New("connection refused")).Once()

	p := NewStateProvider(loader, time.Minute, zap.NewNop())
	_, err := p.Refetch(context.Background(), "user-1")
	require.NoError(t, err)

	got, err := p.Refetch(context.Background(), "user-1")
	assert.Error(t, err)
	assert.Same(t, s, got)
	assert.Same(t, s, p.Get("user-1"))
}

func TestStateProvider_FailedFirstLoadStaysUnknown(t *testing.T) {
	loader := new(MockLoader)
	loader.On("GetSubscription", mock.Anything, "user-1").Return(nil, errors.New("timeout"))

	p := NewStateProvider(loader, time.Minute, zap.NewNop())
	assert.Nil(t, p.Snapshot(context.Background(), "user-1"))

	d := NewGuard(0).Check(p.Get("user-1"), GuardOptions{Required: 1})
	assert.True(t, d.Allowed)
	assert.True(t, d.Unknown)
}

func TestStateProvider_SnapshotUsesTTL(t *testing.T) {
	loader := new(MockLoader)
	s1 := NewSubscription("user-1", model.PlanTypeFree, model.SubscriptionStatusActive, 3, 3, time.Now())
	s2 := s1.WithCreditsRemaining(2)
	loader.On("GetSubscription", mock.Anything, "user-1").Return(s1, nil).Once()
	loader.On("GetSubscription", mock.Anything, "user-1").Return(s2, nil).Once()

	now := time.Now()
	p := NewStateProvider(loader, time.Minute, zap.NewNop())
	p.now = func() time.Time { return now }

	assert.Same(t, s1, p.Snapshot(context.Background(), "user-1"))
	assert.Same(t, s1, p.Snapshot(context.Background(), "user-1"))

	now = now.Add(2 * time.Minute)
	assert.Same(t, s2, p.Snapshot(context.Background(), "user-1"))
	loader.AssertExpectations(t)
}

func TestStateProvider_InvalidateForcesReload(t *testing.T) {
	loader := new(MockLoader)
	s1 := NewSubscription("user-1", model.PlanTypeFree, model.SubscriptionStatusActive, 3, 3, time.Now())
	s2 := s1.WithCreditsRemaining(50)
	loader.On("GetSubscription", mock.Anything, "user-1").Return(s1, nil).Once()
	loader.On("GetSubscription", mock.Anything, "user-1").Return(s2, nil).Once()

	p := NewStateProvider(loader, time.Hour, zap.NewNop())
	assert.Same(t, s1, p.Snapshot(context.Background(), "user-1"))

	p.Invalidate("user-1")
	assert.Same(t, s2, p.Snapshot(context.Background(), "user-1"))
}
