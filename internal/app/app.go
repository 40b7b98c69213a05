package app

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/elevare/server/internal/domain/billing"
	"github.com/elevare/server/internal/domain/generation"
	"github.com/elevare/server/internal/domain/notification"
	"github.com/elevare/server/internal/infra/config"
)

// App is the assembled service.
type App struct {
	Config     *config.Config
	Logger     *zap.Logger
	Router     *gin.Engine
	Billing    *billing.Domain
	Generation *generation.Domain
	Notifier   *notification.Notifier
}

// New builds the application from configuration.
func New(cfg *config.Config) (*App, func(), error) {
	return InitializeApp(cfg)
}

// Start runs startup tasks and background loops until ctx is done.
func (a *App) Start(ctx context.Context) {
	if a.Config.Billing.SyncPlansOnStart {
		if err := a.Billing.SyncPlans(ctx); err != nil {
			// Plans are also served from the built-in catalogue.
			a.Logger.Warn("sync plans failed", zap.Error(err))
		}
	}

	go a.pruneMachines(ctx, a.Config.Generation.PruneInterval, a.Config.Generation.StateRetention)
}

// pruneMachines drops finished state machines older than retention.
func (a *App) pruneMachines(ctx context.Context, interval, retention time.Duration) {
	if interval <= 0 || retention <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := a.Generation.Registry().Prune(now.Add(-retention)); n > 0 {
				a.Logger.Debug("pruned generation state machines", zap.Int("count", n))
			}
		}
	}
}
