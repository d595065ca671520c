package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/sentinel"
)

func TestMemoryStore_WithinSessionUnknown(t *testing.T) {
	m := NewMemoryStore()
	err := m.WithinSession(context.Background(), "missing", func(SessionTx) error { return nil })
	assert.Equal(t, sentinel.ErrNotFound, err)
}

func TestMemoryStore_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	sess, err := m.CreateSession(ctx, Session{Location: "Deck"})
	require.NoError(t, err)
	p, err := m.CreateProfessional(ctx, Professional{Code: "c", Email: "c@example.com"})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = m.WithinSession(ctx, sess.ID, func(tx SessionTx) error {
		if _, err := tx.InsertCheckin(ctx, CheckinRecord{ProfessionalID: p.ID, Sequence: 1}); err != nil {
			return err
		}
		if _, err := tx.Complete(ctx, time.Now(), "1min"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	views, err := m.ListCheckins(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, views)
	got, err := m.Session(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, got.Active())
}

func TestMemoryStore_TxSeesItsOwnWrites(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	sess, _ := m.CreateSession(ctx, Session{})
	p, _ := m.CreateProfessional(ctx, Professional{Code: "c", Email: "c@example.com"})
	q, _ := m.CreateProfessional(ctx, Professional{Code: "d", Email: "d@example.com"})

	err := m.WithinSession(ctx, sess.ID, func(tx SessionTx) error {
		_, err := tx.InsertCheckin(ctx, CheckinRecord{ProfessionalID: p.ID, Sequence: 1})
		require.NoError(t, err)

		n, _ := tx.CountCheckins(ctx)
		assert.Equal(t, 1, n)
		exists, _ := tx.CheckinExists(ctx, p.ID)
		assert.True(t, exists)

		_, err = tx.InsertCheckin(ctx, CheckinRecord{ProfessionalID: p.ID, Sequence: 2})
		assert.ErrorIs(t, err, ErrDuplicateCheckin)
		_, err = tx.InsertCheckin(ctx, CheckinRecord{ProfessionalID: q.ID, Sequence: 1})
		assert.ErrorIs(t, err, sentinel.ErrConflict)
		return nil
	})
	require.NoError(t, err)

	views, _ := m.ListCheckins(ctx, sess.ID)
	assert.Len(t, views, 1)
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewMemoryStore()
	sess, _ := m.CreateSession(ctx, Session{})
	cancel()
	err := m.WithinSession(ctx, sess.ID, func(SessionTx) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryStore_UniqueProfessionalKeys(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	_, err := m.CreateProfessional(ctx, Professional{Code: "a", Email: "a@x", RegistrationCode: "PRF-2024-AAAA"})
	require.NoError(t, err)

	_, err = m.CreateProfessional(ctx, Professional{Code: "a", Email: "b@x"})
	assert.ErrorIs(t, err, ErrDuplicateCode)
	_, err = m.CreateProfessional(ctx, Professional{Code: "b", Email: "a@x"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
	_, err = m.CreateProfessional(ctx, Professional{Code: "b", Email: "b@x", RegistrationCode: "PRF-2024-AAAA"})
	assert.ErrorIs(t, err, ErrRegistrationCodeTaken)
}
