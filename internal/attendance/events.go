package attendance

import (
	"context"
	"encoding/json"
	"time"

	"rollcall/internal/queue"
)

// Event types published after a successful write.
const (
	EventCheckinRecorded  = "checkin.recorded"
	EventSessionCompleted = "session.completed"
)

// CheckinRecorded is the body of a checkin.recorded event.
type CheckinRecorded struct {
	RecordID       string    `json:"record_id"`
	SessionID      string    `json:"session_id"`
	ProfessionalID string    `json:"professional_id"`
	Sequence       int       `json:"sequence"`
	EnteredAt      time.Time `json:"entered_at"`
}

// SessionCompleted is the body of a session.completed event.
type SessionCompleted struct {
	SessionID string    `json:"session_id"`
	Duration  string    `json:"duration"`
	EndedAt   time.Time `json:"ended_at"`
}

// publish is best effort: the write it reports on has already committed.
func (s *Service) publish(ctx context.Context, eventType string, body any) {
	if s.events == nil {
		return
	}
	payload, err := json.Marshal(body)
	if err != nil {
		s.logger.ErrorContext(ctx, "encode event", "type", eventType, "error", err)
		return
	}
	if err := s.events.Publish(ctx, queue.Message{Type: eventType, Body: payload}); err != nil {
		s.logger.WarnContext(ctx, "queue publish failed", "type", eventType, "error", err)
	}
}
