package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tradeloop/escrowgate/internal/audit"
	"github.com/tradeloop/escrowgate/internal/domain"
	"github.com/tradeloop/escrowgate/internal/metrics"
)

// Paging bounds shared by every list operation.
const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

func clampPage(limit, offset int) (int, int) {
	if limit < 1 || limit > maxPageLimit {
		limit = defaultPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// isCurrencyCode accepts three upper-case ASCII letters.
func isCurrencyCode(c string) bool {
	if len(c) != 3 {
		return false
	}
	for i := 0; i < len(c); i++ {
		if c[i] < 'A' || c[i] > 'Z' {
			return false
		}
	}
	return true
}

// classify makes sure every error leaving a settlement is one of the domain
// categories: known domain errors pass through, an expired deadline becomes
// ErrTimeout and anything else ErrStorage.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrTimeout),
		errors.Is(err, domain.ErrStorage),
		errors.Is(err, domain.ErrEscrowNotFound),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrComplianceBlocked):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
}

// publishAudit delivers ev once the change it describes is committed. A
// failed publish is logged and counted but never undoes the change.
func publishAudit(ctx context.Context, p audit.Publisher, logger *slog.Logger, ev domain.AuditEvent) {
	if p == nil {
		return
	}
	if err := p.Publish(context.WithoutCancel(ctx), ev); err != nil {
		metrics.AuditPublishFailures.Inc()
		logger.Error("audit publish failed",
			"action", ev.Action, "resource_id", ev.ResourceID, "error", err)
	}
}
