package usecase

import (
	"context"
	"inventory-service/app/domain"
	"inventory-service/config"
	"log/slog"
	"time"
)

// ReservationSweeper periodically releases expired reservations. Only the instance
// holding the sweep lock works in a given cycle.
type ReservationSweeper struct {
	manager  domain.ReservationManager
	lock     domain.SweepLock
	interval time.Duration
	now      func() time.Time
}

func NewReservationSweeper(manager domain.ReservationManager, lock domain.SweepLock, cfg *config.Config) *ReservationSweeper {
	return &ReservationSweeper{
		manager:  manager,
		lock:     lock,
		interval: cfg.Inventory.SweepInterval,
		now:      time.Now,
	}
}

// Run sweeps once immediately and then every interval until ctx is done.
func (s *ReservationSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.SweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "[ReservationSweeper] Run", "stopped", ctx.Err())
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs one cycle and reports how many reservations it released.
// Failures are logged only; the next cycle picks up whatever is left.
func (s *ReservationSweeper) SweepOnce(ctx context.Context) int {
	acquired, err := s.lock.Acquire(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "[ReservationSweeper] SweepOnce", "acquireLock", err)
		return 0
	}
	if !acquired {
		slog.DebugContext(ctx, "[ReservationSweeper] SweepOnce", "skipped", "another instance holds the sweep lock")
		return 0
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			slog.WarnContext(ctx, "[ReservationSweeper] SweepOnce", "releaseLock", err)
		}
	}()

	released, err := s.manager.ReleaseExpired(ctx, s.now())
	if err != nil {
		slog.ErrorContext(ctx, "[ReservationSweeper] SweepOnce", "releaseExpired", err, "released", released)
		return released
	}
	if released > 0 {
		slog.InfoContext(ctx, "[ReservationSweeper] SweepOnce", "released", released)
	}
	return released
}
