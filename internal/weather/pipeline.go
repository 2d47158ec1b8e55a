package weather

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/i474232898/weather-poller/internal/observability"
)

// CycleReport summarizes one pass over the registered locations.
type CycleReport struct {
	Attempts  int           `json:"attempts"`
	Stored    int           `json:"stored"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Cancelled bool          `json:"cancelled"`
	Duration  time.Duration `json:"duration"`
}

// Pipeline fetches each location in turn and appends the successful results
// to the store. A failure for one location never affects the others.
type Pipeline struct {
	fetcher Fetcher
	store   Store
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewPipeline creates a Pipeline. A nil clock means the real clock.
func NewPipeline(f Fetcher, s Store, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Pipeline{
		fetcher: f,
		store:   s,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// RunCycle processes locations sequentially in the given order. It returns
// early, without fetching or persisting anything further, once ctx is done.
func (p *Pipeline) RunCycle(ctx context.Context, locations []Location) CycleReport {
	start := p.clock.Now()
	var report CycleReport

	for _, loc := range locations {
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}

		report.Attempts++
		err := p.ingest(ctx, loc)
		switch {
		case err == nil:
			report.Stored++
			p.metrics.FetchResults.WithLabelValues("success").Inc()
			p.metrics.RecordsStored.Inc()
		case ctx.Err() != nil && errors.Is(err, ctx.Err()):
			// Cancelled while this location was in flight; nothing was stored.
			report.Cancelled = true
			p.metrics.FetchResults.WithLabelValues("cancelled").Inc()
		case errors.Is(err, ErrMissingReadings):
			report.Skipped++
			p.metrics.FetchResults.WithLabelValues(ErrorKind(err)).Inc()
			p.logger.Warn("weather data missing main section, skipping",
				"country", loc.Country,
				"city", loc.City,
			)
		default:
			report.Failed++
			p.metrics.FetchResults.WithLabelValues(ErrorKind(err)).Inc()
			p.logger.Error("error retrieving weather data",
				"country", loc.Country,
				"city", loc.City,
				"kind", ErrorKind(err),
				"error", err,
			)
		}
		if report.Cancelled {
			break
		}
	}

	report.Duration = p.clock.Since(start)

	outcome := "completed"
	if report.Cancelled {
		outcome = "cancelled"
	}
	p.metrics.CyclesTotal.WithLabelValues(outcome).Inc()
	p.metrics.CycleDuration.Observe(report.Duration.Seconds())

	p.logger.Info("weather polling cycle finished",
		"outcome", outcome,
		"attempts", report.Attempts,
		"stored", report.Stored,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"duration", report.Duration,
	)
	return report
}

// ingest runs fetch, map and append for a single location.
func (p *Pipeline) ingest(ctx context.Context, loc Location) error {
	if !loc.HasCoordinates() {
		return ErrMissingCoordinates
	}

	obs, err := p.fetcher.Fetch(ctx, loc)
	if err != nil {
		return err
	}

	rec, err := NewRecord(loc, obs, p.clock.Now())
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.store.Append(ctx, rec); err != nil {
		var storageErr *StorageError
		if !errors.As(err, &storageErr) {
			err = &StorageError{Op: "append", Err: err}
		}
		return err
	}

	p.logger.Debug("weather record stored",
		"id", rec.ID,
		"country", rec.Country,
		"city", rec.City,
		"station", obs.Name,
		"condition", obs.Condition,
		"observed_at", obs.ObservedAt,
	)
	return nil
}
