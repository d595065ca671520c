package attendance

import (
	"context"
	"time"

	"rollcall/internal/sentinel"
)

// Errors stores return for uniqueness violations. They match sentinel.ErrConflict.
var (
	ErrDuplicateCode         = sentinel.Newf(sentinel.ErrConflict, "biometric code already registered")
	ErrDuplicateEmail        = sentinel.Newf(sentinel.ErrConflict, "email already registered")
	ErrRegistrationCodeTaken = sentinel.Newf(sentinel.ErrConflict, "registration code already issued")
	ErrDuplicateCheckin      = sentinel.Newf(sentinel.ErrConflict, "professional already checked in to this session")
)

// Store is the persistence boundary of the attendance core. Lookups return
// sentinel.ErrNotFound for missing entities; creates assign ID and timestamps
// when they are zero.
type Store interface {
	CreateProfessional(ctx context.Context, p Professional) (Professional, error)
	ProfessionalByCode(ctx context.Context, code string) (Professional, error)
	ProfessionalByEmail(ctx context.Context, email string) (Professional, error)
	ListProfessionals(ctx context.Context) ([]Professional, error)

	CreateSession(ctx context.Context, s Session) (Session, error)
	Session(ctx context.Context, id string) (Session, error)
	// ListSessions returns sessions newest first.
	ListSessions(ctx context.Context) ([]Session, error)
	// ListCheckins returns the session's records by ascending sequence, joined
	// with each professional's current profile.
	ListCheckins(ctx context.Context, sessionID string) ([]CheckinView, error)

	// WithinSession runs fn with exclusive access to one session. Writes made
	// through the SessionTx become visible only if fn returns nil. Returns
	// sentinel.ErrNotFound if the session does not exist.
	WithinSession(ctx context.Context, sessionID string, fn func(tx SessionTx) error) error
}

// SessionTx is the serialized view of one session handed to WithinSession callbacks.
type SessionTx interface {
	Session() Session
	CountCheckins(ctx context.Context) (int, error)
	CheckinExists(ctx context.Context, professionalID string) (bool, error)
	InsertCheckin(ctx context.Context, rec CheckinRecord) (CheckinRecord, error)
	Complete(ctx context.Context, endedAt time.Time, duration string) (Session, error)
}
