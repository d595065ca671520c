package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"rollcall/internal/sentinel"
)

const (
	defaultTxTimeout = 5 * time.Second
	uniqueViolation  = "23505"
)

// Repository persists attendance data in Postgres.
type Repository struct {
	db        *sql.DB
	txTimeout time.Duration
}

var _ Store = (*Repository)(nil)

// NewRepository creates a repo. txTimeout bounds WithinSession when the
// caller's context has no deadline; zero means 5s.
func NewRepository(db *sql.DB, txTimeout time.Duration) *Repository {
	if txTimeout <= 0 {
		txTimeout = defaultTxTimeout
	}
	return &Repository{db: db, txTimeout: txTimeout}
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *Repository) CreateProfessional(ctx context.Context, p Professional) (Professional, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO professionals (id, code, registration_code, name, email, profession, company, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8)
	`, p.ID, p.Code, p.RegistrationCode, p.Name, p.Email, p.Profession, p.Employer, p.CreatedAt)
	if err != nil {
		if constraint, ok := uniqueConstraint(err); ok {
			switch constraint {
			case "professionals_code_key":
				return Professional{}, ErrDuplicateCode
			case "professionals_email_key":
				return Professional{}, ErrDuplicateEmail
			case "professionals_registration_code_key":
				return Professional{}, ErrRegistrationCodeTaken
			}
			return Professional{}, sentinel.Newf(sentinel.ErrConflict, "professional already registered")
		}
		return Professional{}, fmt.Errorf("insert professional: %w", err)
	}
	return p, nil
}

const selectProfessional = `
	SELECT id, code, COALESCE(registration_code, ''), name, email, profession, company, created_at
	FROM professionals`

func (r *Repository) ProfessionalByCode(ctx context.Context, code string) (Professional, error) {
	return scanProfessional(r.db.QueryRowContext(ctx, selectProfessional+` WHERE code = $1`, code))
}

func (r *Repository) ProfessionalByEmail(ctx context.Context, email string) (Professional, error) {
	return scanProfessional(r.db.QueryRowContext(ctx, selectProfessional+` WHERE email = $1`, email))
}

func (r *Repository) ListProfessionals(ctx context.Context) ([]Professional, error) {
	rows, err := r.db.QueryContext(ctx, selectProfessional+` ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list professionals: %w", err)
	}
	defer rows.Close()
	var out []Professional
	for rows.Next() {
		p, err := scanProfessional(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProfessional(row scanner) (Professional, error) {
	var p Professional
	err := row.Scan(&p.ID, &p.Code, &p.RegistrationCode, &p.Name, &p.Email, &p.Profession, &p.Employer, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Professional{}, sentinel.ErrNotFound
		}
		return Professional{}, fmt.Errorf("scan professional: %w", err)
	}
	return p, nil
}

func (r *Repository) CreateSession(ctx context.Context, s Session) (Session, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = s.CreatedAt
	}
	if s.Status == "" {
		s.Status = StatusActive
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_lists (
			id, installation_name, meeting_date, meeting_time, course_title, course_content,
			instructor_name, instructor_role, instructor_qualification, location,
			status, start_time, end_time, duration, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, s.ID, s.FacilityName, s.MeetingDate, s.MeetingTime, s.CourseTitle, s.CourseContent,
		s.InstructorName, s.InstructorRole, s.InstructorQualification, s.Location,
		string(s.Status), s.StartedAt, s.EndedAt, s.Duration, s.CreatedAt)
	if err != nil {
		return Session{}, fmt.Errorf("insert session: %w", err)
	}
	return s, nil
}

const selectSession = `
	SELECT id, installation_name, meeting_date, meeting_time, course_title, course_content,
		instructor_name, instructor_role, instructor_qualification, location,
		status, start_time, end_time, duration, created_at
	FROM attendance_lists`

func (r *Repository) Session(ctx context.Context, id string) (Session, error) {
	return scanSession(r.db.QueryRowContext(ctx, selectSession+` WHERE id = $1`, id))
}

func (r *Repository) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := r.db.QueryContext(ctx, selectSession+` ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()
	var out []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanSession(row scanner) (Session, error) {
	var s Session
	var status string
	err := row.Scan(&s.ID, &s.FacilityName, &s.MeetingDate, &s.MeetingTime, &s.CourseTitle, &s.CourseContent,
		&s.InstructorName, &s.InstructorRole, &s.InstructorQualification, &s.Location,
		&status, &s.StartedAt, &s.EndedAt, &s.Duration, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, sentinel.ErrNotFound
		}
		return Session{}, fmt.Errorf("scan session: %w", err)
	}
	s.Status = Status(status)
	return s, nil
}

func (r *Repository) ListCheckins(ctx context.Context, sessionID string) ([]CheckinView, error) {
	return listCheckins(ctx, r.db, sessionID)
}

func listCheckins(ctx context.Context, q queryer, sessionID string) ([]CheckinView, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT r.id, r.list_id, r.professional_id, r.local, r.row_number, r.entry_time,
			p.name, p.email, p.profession, p.company
		FROM attendance_records r
		JOIN professionals p ON p.id = r.professional_id
		WHERE r.list_id = $1
		ORDER BY r.row_number
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list checkins: %w", err)
	}
	defer rows.Close()
	var out []CheckinView
	for rows.Next() {
		var v CheckinView
		if err := rows.Scan(&v.ID, &v.SessionID, &v.ProfessionalID, &v.Location, &v.Sequence, &v.EnteredAt,
			&v.ProfessionalName, &v.ProfessionalEmail, &v.ProfessionalProfession, &v.ProfessionalEmployer); err != nil {
			return nil, fmt.Errorf("scan checkin: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// WithinSession locks the session row FOR UPDATE for the lifetime of fn, so
// check-ins and completion of the same session are serialized.
func (r *Repository) WithinSession(ctx context.Context, sessionID string, fn func(tx SessionTx) error) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.txTimeout)
		defer cancel()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin session tx: %v", sentinel.ErrUnavailable, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	sess, err := scanSession(tx.QueryRowContext(ctx, selectSession+` WHERE id = $1 FOR UPDATE`, sessionID))
	if err != nil {
		return err
	}
	if err := fn(&pgSessionTx{tx: tx, session: sess}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session tx: %w", err)
	}
	return nil
}

type pgSessionTx struct {
	tx      *sql.Tx
	session Session
}

func (t *pgSessionTx) Session() Session { return t.session }

func (t *pgSessionTx) CountCheckins(ctx context.Context) (int, error) {
	var n int
	if err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM attendance_records WHERE list_id = $1`, t.session.ID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count checkins: %w", err)
	}
	return n, nil
}

func (t *pgSessionTx) CheckinExists(ctx context.Context, professionalID string) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM attendance_records WHERE list_id = $1 AND professional_id = $2)
	`, t.session.ID, professionalID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check checkin: %w", err)
	}
	return exists, nil
}

func (t *pgSessionTx) InsertCheckin(ctx context.Context, rec CheckinRecord) (CheckinRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.EnteredAt.IsZero() {
		rec.EnteredAt = time.Now().UTC()
	}
	rec.SessionID = t.session.ID
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO attendance_records (id, list_id, professional_id, local, row_number, entry_time)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.ID, rec.SessionID, rec.ProfessionalID, rec.Location, rec.Sequence, rec.EnteredAt)
	if err != nil {
		if constraint, ok := uniqueConstraint(err); ok {
			if constraint == "attendance_records_list_professional_key" {
				return CheckinRecord{}, ErrDuplicateCheckin
			}
			return CheckinRecord{}, sentinel.Newf(sentinel.ErrConflict, "sequence %d already assigned", rec.Sequence)
		}
		return CheckinRecord{}, fmt.Errorf("insert checkin: %w", err)
	}
	return rec, nil
}

func (t *pgSessionTx) Complete(ctx context.Context, endedAt time.Time, duration string) (Session, error) {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE attendance_lists
		SET status = $2, end_time = $3, duration = $4
		WHERE id = $1 AND status = $5
	`, t.session.ID, string(StatusCompleted), endedAt, duration, string(StatusActive))
	if err != nil {
		return Session{}, fmt.Errorf("complete session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return Session{}, sentinel.Newf(sentinel.ErrInvalidState, "session already completed")
	}
	t.session.Status = StatusCompleted
	t.session.EndedAt = &endedAt
	t.session.Duration = &duration
	return t.session, nil
}

func uniqueConstraint(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}
