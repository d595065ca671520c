// Package worker consumes attendance events published by the API.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"rollcall/internal/attendance"
	"rollcall/internal/cloudinary"
	"rollcall/internal/metrics"
	"rollcall/internal/queue"
)

// Reports renders (and caches) the sheet of a session.
type Reports interface {
	PDF(ctx context.Context, sessionID string) ([]byte, error)
}

// Archiver stores a finished sheet outside the service.
type Archiver interface {
	UploadPDF(ctx context.Context, data []byte, publicID string) (*cloudinary.UploadResult, error)
}

// Processor handles one event at a time. Archive may be nil.
type Processor struct {
	reports Reports
	archive Archiver
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewProcessor(reports Reports, archive Archiver, m *metrics.Metrics, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{reports: reports, archive: archive, metrics: m, logger: logger}
}

// Run handles messages until msgs closes or ctx ends. Failed events are
// logged and counted, never retried.
func (p *Processor) Run(ctx context.Context, msgs <-chan queue.Message) {
	p.logger.InfoContext(ctx, "worker started")
	for {
		select {
		case <-ctx.Done():
			p.logger.InfoContext(ctx, "worker stopped")
			return
		case msg, ok := <-msgs:
			if !ok {
				p.logger.InfoContext(ctx, "worker stopped", "reason", "queue closed")
				return
			}
			result := "ok"
			if err := p.Handle(ctx, msg); err != nil {
				result = "error"
				p.logger.ErrorContext(ctx, "event failed", "type", msg.Type, "error", err)
			}
			p.metrics.WorkerEvent(msg.Type, result)
		}
	}
}

// Handle dispatches one message by type. Unknown types are ignored.
func (p *Processor) Handle(ctx context.Context, msg queue.Message) error {
	switch msg.Type {
	case attendance.EventCheckinRecorded:
		var evt attendance.CheckinRecorded
		if err := json.Unmarshal(msg.Body, &evt); err != nil {
			return fmt.Errorf("decode %s: %w", msg.Type, err)
		}
		p.logger.InfoContext(ctx, "checkin observed",
			"session_id", evt.SessionID, "professional_id", evt.ProfessionalID, "sequence", evt.Sequence)
		return nil
	case attendance.EventSessionCompleted:
		var evt attendance.SessionCompleted
		if err := json.Unmarshal(msg.Body, &evt); err != nil {
			return fmt.Errorf("decode %s: %w", msg.Type, err)
		}
		return p.sessionCompleted(ctx, evt)
	default:
		p.logger.DebugContext(ctx, "ignoring event", "type", msg.Type)
		return nil
	}
}

func (p *Processor) sessionCompleted(ctx context.Context, evt attendance.SessionCompleted) error {
	data, err := p.reports.PDF(ctx, evt.SessionID)
	if err != nil {
		return fmt.Errorf("render report %s: %w", evt.SessionID, err)
	}
	p.metrics.Report("worker")
	if p.archive == nil {
		p.logger.InfoContext(ctx, "report prepared", "session_id", evt.SessionID, "bytes", len(data))
		return nil
	}
	res, err := p.archive.UploadPDF(ctx, data, "lista_presenca_"+evt.SessionID)
	if err != nil {
		return fmt.Errorf("archive report %s: %w", evt.SessionID, err)
	}
	p.logger.InfoContext(ctx, "report archived", "session_id", evt.SessionID, "url", res.SecureURL)
	return nil
}
