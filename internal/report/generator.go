package report

import (
	"context"
	"log/slog"

	"rollcall/internal/attendance"
	"rollcall/internal/metrics"
)

// RosterSource assembles the roster of one session.
type RosterSource interface {
	BuildRoster(ctx context.Context, sessionID string, capacity int) (attendance.Roster, error)
}

// Generator produces the PDF for a session, serving completed sessions from
// the cache when it can. Active sessions are always rendered fresh.
type Generator struct {
	rosters  RosterSource
	exporter *Exporter
	cache    *Cache
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewGenerator(rosters RosterSource, exporter *Exporter, cache *Cache, m *metrics.Metrics, logger *slog.Logger) *Generator {
	if exporter == nil {
		exporter = NewExporter()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{rosters: rosters, exporter: exporter, cache: cache, metrics: m, logger: logger}
}

// PDF returns the rendered sheet for sessionID. Cache failures degrade to rendering.
func (g *Generator) PDF(ctx context.Context, sessionID string) ([]byte, error) {
	data, ok, err := g.cache.Get(ctx, sessionID)
	if err != nil {
		g.logger.WarnContext(ctx, "report cache read failed", "session_id", sessionID, "error", err)
	}
	if ok {
		g.metrics.Report("cache")
		return data, nil
	}

	roster, err := g.rosters.BuildRoster(ctx, sessionID, 0)
	if err != nil {
		return nil, err
	}
	data, err = g.exporter.Bytes(FromRoster(roster))
	if err != nil {
		g.logger.ErrorContext(ctx, "render report", "session_id", sessionID, "error", err)
		return nil, err
	}
	g.metrics.Report("render")

	if !roster.Session.Active() {
		if err := g.cache.Put(ctx, sessionID, data); err != nil {
			g.logger.WarnContext(ctx, "report cache write failed", "session_id", sessionID, "error", err)
		}
	}
	return data, nil
}
