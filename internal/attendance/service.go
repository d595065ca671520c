package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/mail"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"rollcall/internal/metrics"
	"rollcall/internal/queue"
	"rollcall/internal/sentinel"
)

var tracer = otel.Tracer("rollcall/attendance")

const registrationAttempts = 3

// Service runs the session lifecycle, the check-in engine and roster assembly.
type Service struct {
	store    Store
	events   queue.Publisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
	capacity int
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the time source; timestamps are always stored in UTC.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithEvents publishes checkin.recorded and session.completed to p.
func WithEvents(p queue.Publisher) Option {
	return func(s *Service) { s.events = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRosterCapacity sets the padding floor used when BuildRoster gets capacity <= 0.
func WithRosterCapacity(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// NewService creates a service backed by store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		logger:   slog.Default(),
		now:      time.Now,
		capacity: DefaultRosterCapacity,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Service) clock() time.Time { return s.now().UTC() }

// RosterCapacity is the default padding floor.
func (s *Service) RosterCapacity() int { return s.capacity }

// RegisterProfessional creates a professional. The biometric code is checked
// before the email, so a reused code is reported even when the email differs.
func (s *Service) RegisterProfessional(ctx context.Context, in NewProfessional) (Professional, error) {
	ctx, span := tracer.Start(ctx, "attendance.RegisterProfessional")
	p, err := s.registerProfessional(ctx, in)
	finish(span, err)
	if err == nil {
		s.metrics.ProfessionalRegistered()
	}
	return p, err
}

func (s *Service) registerProfessional(ctx context.Context, in NewProfessional) (Professional, error) {
	p := Professional{
		Code:       strings.TrimSpace(in.Code),
		Name:       strings.TrimSpace(in.Name),
		Email:      strings.ToLower(strings.TrimSpace(in.Email)),
		Profession: strings.TrimSpace(in.Profession),
		Employer:   strings.TrimSpace(in.Employer),
	}
	if err := requireFields(map[string]string{
		"code": p.Code, "name": p.Name, "email": p.Email, "profession": p.Profession, "company": p.Employer,
	}); err != nil {
		return Professional{}, err
	}
	if _, err := mail.ParseAddress(p.Email); err != nil {
		return Professional{}, sentinel.Newf(sentinel.ErrInvalidInput, "email %q is not a valid address", p.Email)
	}

	if err := s.ensureAbsent(ctx, s.store.ProfessionalByCode, p.Code, ErrDuplicateCode); err != nil {
		return Professional{}, err
	}
	if err := s.ensureAbsent(ctx, s.store.ProfessionalByEmail, p.Email, ErrDuplicateEmail); err != nil {
		return Professional{}, err
	}

	for attempt := 0; attempt < registrationAttempts; attempt++ {
		p.RegistrationCode = RegistrationCode(s.clock())
		p.CreatedAt = s.clock()
		created, err := s.store.CreateProfessional(ctx, p)
		if errors.Is(err, ErrRegistrationCodeTaken) {
			continue
		}
		if err != nil {
			if sentinel.Expected(err) {
				return Professional{}, err
			}
			return Professional{}, s.internal(ctx, "create professional", err)
		}
		s.logger.InfoContext(ctx, "professional registered", "professional_id", created.ID, "registration_code", created.RegistrationCode)
		return created, nil
	}
	return Professional{}, s.internal(ctx, "create professional", fmt.Errorf("no free registration code after %d attempts", registrationAttempts))
}

func (s *Service) ensureAbsent(ctx context.Context, lookup func(context.Context, string) (Professional, error), key string, conflict error) error {
	_, err := lookup(ctx, key)
	switch {
	case err == nil:
		return conflict
	case errors.Is(err, sentinel.ErrNotFound):
		return nil
	default:
		return s.internal(ctx, "lookup professional", err)
	}
}

// ProfessionalByCode resolves a biometric code.
func (s *Service) ProfessionalByCode(ctx context.Context, code string) (Professional, error) {
	p, err := s.store.ProfessionalByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Professional{}, sentinel.Newf(sentinel.ErrNotFound, "professional not registered")
		}
		return Professional{}, s.internal(ctx, "lookup professional", err)
	}
	return p, nil
}

// ListProfessionals returns all professionals ordered by name.
func (s *Service) ListProfessionals(ctx context.Context) ([]Professional, error) {
	ps, err := s.store.ListProfessionals(ctx)
	if err != nil {
		return nil, s.internal(ctx, "list professionals", err)
	}
	return ps, nil
}

// CreateSession opens an active session starting now.
func (s *Service) CreateSession(ctx context.Context, in NewSession) (Session, error) {
	ctx, span := tracer.Start(ctx, "attendance.CreateSession")
	sess, err := s.createSession(ctx, in)
	finish(span, err)
	if err == nil {
		s.metrics.SessionCreated()
	}
	return sess, err
}

func (s *Service) createSession(ctx context.Context, in NewSession) (Session, error) {
	now := s.clock()
	sess := Session{
		FacilityName:            strings.TrimSpace(in.FacilityName),
		MeetingDate:             strings.TrimSpace(in.MeetingDate),
		MeetingTime:             strings.TrimSpace(in.MeetingTime),
		CourseTitle:             strings.TrimSpace(in.CourseTitle),
		CourseContent:           strings.TrimSpace(in.CourseContent),
		InstructorName:          strings.TrimSpace(in.InstructorName),
		InstructorRole:          strings.TrimSpace(in.InstructorRole),
		InstructorQualification: strings.TrimSpace(in.InstructorQualification),
		Location:                strings.TrimSpace(in.Location),
		Status:                  StatusActive,
		StartedAt:               now,
		CreatedAt:               now,
	}
	if err := requireFields(map[string]string{
		"installation_name":        sess.FacilityName,
		"meeting_date":             sess.MeetingDate,
		"meeting_time":             sess.MeetingTime,
		"course_title":             sess.CourseTitle,
		"course_content":           sess.CourseContent,
		"instructor_name":          sess.InstructorName,
		"instructor_role":          sess.InstructorRole,
		"instructor_qualification": sess.InstructorQualification,
		"location":                 sess.Location,
	}); err != nil {
		return Session{}, err
	}
	created, err := s.store.CreateSession(ctx, sess)
	if err != nil {
		return Session{}, s.internal(ctx, "create session", err)
	}
	s.logger.InfoContext(ctx, "session opened", "session_id", created.ID, "course", created.CourseTitle)
	return created, nil
}

// Session returns one session.
func (s *Service) Session(ctx context.Context, id string) (Session, error) {
	sess, err := s.store.Session(ctx, id)
	if err != nil {
		return Session{}, s.sessionErr(ctx, "get session", err)
	}
	return sess, nil
}

// ListSessions returns all sessions, newest first.
func (s *Service) ListSessions(ctx context.Context) ([]Session, error) {
	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		return nil, s.internal(ctx, "list sessions", err)
	}
	return sessions, nil
}

// CompleteSession closes an active session and returns its formatted duration.
// Completing an already completed session is an error, not a no-op.
func (s *Service) CompleteSession(ctx context.Context, id string) (string, error) {
	ctx, span := tracer.Start(ctx, "attendance.CompleteSession", trace.WithAttributes(attribute.String("session.id", id)))
	var done Session
	err := s.store.WithinSession(ctx, id, func(tx SessionTx) error {
		sess := tx.Session()
		if !sess.Active() {
			return sentinel.Newf(sentinel.ErrInvalidState, "session already completed")
		}
		ended := s.clock()
		var err error
		done, err = tx.Complete(ctx, ended, FormatDuration(ended.Sub(sess.StartedAt)))
		return err
	})
	if err != nil {
		err = s.sessionErr(ctx, "complete session", err)
		finish(span, err)
		return "", err
	}
	finish(span, nil)

	duration := ""
	if done.Duration != nil {
		duration = *done.Duration
	}
	endedAt := s.clock()
	if done.EndedAt != nil {
		endedAt = *done.EndedAt
	}
	s.metrics.SessionCompleted()
	s.logger.InfoContext(ctx, "session completed", "session_id", id, "duration", duration)
	s.publish(ctx, EventSessionCompleted, SessionCompleted{SessionID: id, Duration: duration, EndedAt: endedAt})
	return duration, nil
}

// RecordCheckin records the professional identified by code as present in the
// session. Checks run in a fixed order: unknown code, unknown session, closed
// session, duplicate check-in. The status read, duplicate check, sequence
// allocation and insert happen inside one per-session critical section.
func (s *Service) RecordCheckin(ctx context.Context, sessionID, code string) (CheckinView, error) {
	ctx, span := tracer.Start(ctx, "attendance.RecordCheckin", trace.WithAttributes(attribute.String("session.id", sessionID)))
	view, err := s.recordCheckin(ctx, strings.TrimSpace(sessionID), strings.TrimSpace(code))
	finish(span, err)
	s.metrics.Checkin(outcome(err))
	return view, err
}

func (s *Service) recordCheckin(ctx context.Context, sessionID, code string) (CheckinView, error) {
	if err := requireFields(map[string]string{"list_id": sessionID, "code": code}); err != nil {
		return CheckinView{}, err
	}

	prof, err := s.ProfessionalByCode(ctx, code)
	if err != nil {
		return CheckinView{}, err
	}

	var rec CheckinRecord
	err = s.store.WithinSession(ctx, sessionID, func(tx SessionTx) error {
		sess := tx.Session()
		if !sess.Active() {
			return sentinel.Newf(sentinel.ErrInvalidState, "session already finalized")
		}
		exists, err := tx.CheckinExists(ctx, prof.ID)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateCheckin
		}
		n, err := tx.CountCheckins(ctx)
		if err != nil {
			return err
		}
		rec, err = tx.InsertCheckin(ctx, CheckinRecord{
			SessionID:      sess.ID,
			ProfessionalID: prof.ID,
			Location:       sess.Location,
			Sequence:       n + 1,
			EnteredAt:      s.clock(),
		})
		return err
	})
	if err != nil {
		return CheckinView{}, s.sessionErr(ctx, "record checkin", err)
	}

	s.logger.InfoContext(ctx, "checkin recorded", "session_id", sessionID, "professional_id", prof.ID, "sequence", rec.Sequence)
	s.publish(ctx, EventCheckinRecorded, CheckinRecorded{
		RecordID:       rec.ID,
		SessionID:      rec.SessionID,
		ProfessionalID: rec.ProfessionalID,
		Sequence:       rec.Sequence,
		EnteredAt:      rec.EnteredAt,
	})
	return viewOf(rec, prof), nil
}

// ListCheckins returns a session's check-ins by ascending sequence, unpadded.
func (s *Service) ListCheckins(ctx context.Context, sessionID string) ([]CheckinView, error) {
	if _, err := s.store.Session(ctx, sessionID); err != nil {
		return nil, s.sessionErr(ctx, "get session", err)
	}
	views, err := s.store.ListCheckins(ctx, sessionID)
	if err != nil {
		return nil, s.internal(ctx, "list checkins", err)
	}
	slices.SortStableFunc(views, func(a, b CheckinView) int { return a.Sequence - b.Sequence })
	return views, nil
}

// BuildRoster returns the session's check-ins ordered by sequence and padded
// with placeholder rows up to capacity. Capacity is a floor: rosters longer
// than capacity are returned whole. capacity <= 0 uses the configured default.
func (s *Service) BuildRoster(ctx context.Context, sessionID string, capacity int) (Roster, error) {
	ctx, span := tracer.Start(ctx, "attendance.BuildRoster", trace.WithAttributes(attribute.String("session.id", sessionID)))
	roster, err := s.buildRoster(ctx, sessionID, capacity)
	finish(span, err)
	return roster, err
}

func (s *Service) buildRoster(ctx context.Context, sessionID string, capacity int) (Roster, error) {
	if capacity <= 0 {
		capacity = s.capacity
	}
	sess, err := s.store.Session(ctx, sessionID)
	if err != nil {
		return Roster{}, s.sessionErr(ctx, "get session", err)
	}
	views, err := s.store.ListCheckins(ctx, sessionID)
	if err != nil {
		return Roster{}, s.internal(ctx, "list checkins", err)
	}
	slices.SortStableFunc(views, func(a, b CheckinView) int { return a.Sequence - b.Sequence })

	rows := make([]RosterRow, 0, max(len(views), capacity))
	for _, v := range views {
		rows = append(rows, RosterRow{
			Sequence:   v.Sequence,
			Name:       v.ProfessionalName,
			Email:      v.ProfessionalEmail,
			Profession: v.ProfessionalProfession,
			Employer:   v.ProfessionalEmployer,
			Location:   v.Location,
		})
	}
	for seq := len(views) + 1; seq <= capacity; seq++ {
		rows = append(rows, RosterRow{
			Sequence:    seq,
			Email:       PlaceholderEmail,
			Location:    sess.Location,
			Placeholder: true,
		})
	}
	return Roster{Session: sess, Rows: rows}, nil
}

// sessionErr gives a bare not-found from the store a reason and passes other
// expected outcomes through.
func (s *Service) sessionErr(ctx context.Context, op string, err error) error {
	if err == sentinel.ErrNotFound {
		return sentinel.Newf(sentinel.ErrNotFound, "session not found")
	}
	if sentinel.Expected(err) {
		return err
	}
	return s.internal(ctx, op, err)
}

// internal logs an unexpected failure with its context and returns it wrapped.
func (s *Service) internal(ctx context.Context, op string, err error) error {
	s.logger.ErrorContext(ctx, op+" failed", "error", err)
	return fmt.Errorf("%s: %w", op, err)
}

func requireFields(fields map[string]string) error {
	var missing []string
	for name, v := range fields {
		if v == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	return sentinel.Newf(sentinel.ErrInvalidInput, "missing required fields: %s", strings.Join(missing, ", "))
}

func outcome(err error) string {
	switch sentinel.Kind(err) {
	case nil:
		if err != nil {
			return "error"
		}
		return "recorded"
	case sentinel.ErrNotFound:
		return "not_found"
	case sentinel.ErrConflict:
		return "conflict"
	case sentinel.ErrInvalidState:
		return "closed"
	case sentinel.ErrInvalidInput:
		return "invalid"
	default:
		return "error"
	}
}

func finish(span trace.Span, err error) {
	if err != nil && !sentinel.Expected(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

const registrationAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RegistrationCode returns a human-readable code of the form PRF-YYYY-XXXX.
func RegistrationCode(at time.Time) string {
	b := make([]byte, 4)
	for i := range b {
		b[i] = registrationAlphabet[rand.IntN(len(registrationAlphabet))]
	}
	return fmt.Sprintf("PRF-%d-%s", at.Year(), b)
}
