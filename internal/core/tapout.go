package core

import (
	"context"
	"log/slog"
	"time"
)

const (
	// RefillPeriod is the fixed out-of-band replenishment schedule:
	// one emergency tapout accrues every two weeks.
	RefillPeriod = 14 * 24 * time.Hour

	// MaxBankedTapouts caps how many unused tapouts can accumulate
	MaxBankedTapouts = 3
)

// TapoutStorage defines the persistence operations the ledger needs.
// ConsumeTapout must be atomic: decrement iff remaining > 0.
type TapoutStorage interface {
	GetTapoutStatus(ctx context.Context, userID string) (*TapoutStatus, error)
	SaveTapoutStatus(ctx context.Context, status *TapoutStatus) error
	ConsumeTapout(ctx context.Context, userID string) (remaining int, err error)
}

// TapoutLedger is the rate-limited emergency unlock counter. The count is
// authoritative server-side; callers never decrement locally.
type TapoutLedger struct {
	storage TapoutStorage
	logger  *slog.Logger
	clock   func() time.Time
}

// NewTapoutLedger creates a new tapout ledger
func NewTapoutLedger(storage TapoutStorage, logger *slog.Logger) *TapoutLedger {
	if logger == nil {
		logger = slog.Default()
	}
	return &TapoutLedger{
		storage: storage,
		logger:  logger,
		clock:   time.Now,
	}
}

// SetClock overrides the time source, for tests
func (l *TapoutLedger) SetClock(clock func() time.Time) {
	l.clock = clock
}

// Status returns the user's tapout status with accrued refills applied
func (l *TapoutLedger) Status(ctx context.Context, userID string) (*TapoutStatus, error) {
	status, err := l.storage.GetTapoutStatus(ctx, userID)
	if err != nil {
		return nil, err
	}
	return l.applyRefill(ctx, status)
}

// Consume atomically spends one tapout. Refills accrued since the last
// check are credited first. Returns ErrTapoutExhausted without mutating the
// ledger when nothing remains.
func (l *TapoutLedger) Consume(ctx context.Context, userID string) (int, error) {
	status, err := l.storage.GetTapoutStatus(ctx, userID)
	if err != nil {
		return 0, err
	}
	if _, err := l.applyRefill(ctx, status); err != nil {
		return 0, err
	}

	remaining, err := l.storage.ConsumeTapout(ctx, userID)
	if err != nil {
		return 0, err
	}

	l.logger.Info("Emergency tapout consumed",
		"user_id", userID,
		"remaining", remaining,
	)
	return remaining, nil
}

// applyRefill credits whole refill periods elapsed since LastRefillAt,
// capped at MaxBankedTapouts, and persists the change when anything accrued
func (l *TapoutLedger) applyRefill(ctx context.Context, status *TapoutStatus) (*TapoutStatus, error) {
	now := l.clock()

	if status.LastRefillAt.IsZero() {
		status.LastRefillAt = now
		if err := l.storage.SaveTapoutStatus(ctx, status); err != nil {
			return nil, err
		}
		return status, nil
	}

	elapsed := now.Sub(status.LastRefillAt)
	periods := int(elapsed / RefillPeriod)
	if periods <= 0 || status.Remaining >= MaxBankedTapouts {
		return status, nil
	}

	credited := status.Remaining + periods
	if credited > MaxBankedTapouts {
		credited = MaxBankedTapouts
	}
	status.Remaining = credited
	status.LastRefillAt = status.LastRefillAt.Add(time.Duration(periods) * RefillPeriod)

	if err := l.storage.SaveTapoutStatus(ctx, status); err != nil {
		return nil, err
	}

	l.logger.Info("Tapout refill applied",
		"user_id", status.UserID,
		"remaining", status.Remaining,
	)
	return status, nil
}
