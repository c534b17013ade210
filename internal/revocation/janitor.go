package revocation

import (
	"context"
	"log/slog"
	"time"

	"github.com/pribylovaa/books-auth/internal/pkg/clock"
	"github.com/pribylovaa/books-auth/internal/pkg/log"
)

// PurgeReporter получает результат каждого прохода janitor-а.
type PurgeReporter func(purged, size int)

// PurgeOnce удаляет истёкшие записи и сообщает их число и оставшийся размер реестра.
func PurgeOnce(ctx context.Context, reg Registry, clk clock.Clock, report PurgeReporter) error {
	const op = "revocation.PurgeOnce"

	n, err := reg.Purge(ctx, clk.Now())
	if err != nil {
		return err
	}

	size, err := reg.Len(ctx)
	if err != nil {
		return err
	}

	if report != nil {
		report(n, size)
	}

	log.From(ctx).Debug("revocation_purged",
		slog.String("op", op),
		slog.Int("purged", n),
		slog.Int("size", size),
	)

	return nil
}

// StartJanitor запускает фоновую очистку реестра с периодом period
// до отмены ctx. period <= 0 отключает очистку.
func StartJanitor(ctx context.Context, reg Registry, clk clock.Clock, period time.Duration, report PurgeReporter) {
	if period <= 0 {
		return
	}

	go func() {
		t := time.NewTicker(period)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := PurgeOnce(ctx, reg, clk, report); err != nil {
					log.From(ctx).Error("revocation_janitor_failed", slog.String("err", err.Error()))
				}
			}
		}
	}()
}
