package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/attendance"
	"rollcall/internal/cloudinary"
	"rollcall/internal/metrics"
	"rollcall/internal/queue"
)

type fakeReports struct {
	err      error
	sessions []string
}

func (f *fakeReports) PDF(_ context.Context, id string) ([]byte, error) {
	f.sessions = append(f.sessions, id)
	return []byte("%PDF-1.3"), f.err
}

type fakeArchive struct {
	err error
	ids []string
}

func (f *fakeArchive) UploadPDF(_ context.Context, _ []byte, publicID string) (*cloudinary.UploadResult, error) {
	f.ids = append(f.ids, publicID)
	if f.err != nil {
		return nil, f.err
	}
	return &cloudinary.UploadResult{SecureURL: "https://cdn/" + publicID}, nil
}

func completed(t *testing.T, id string) queue.Message {
	t.Helper()
	body, err := json.Marshal(attendance.SessionCompleted{SessionID: id, Duration: "2min", EndedAt: time.Now()})
	require.NoError(t, err)
	return queue.Message{Type: attendance.EventSessionCompleted, Body: body}
}

func TestHandle_SessionCompletedRendersAndArchives(t *testing.T) {
	reports, archive := &fakeReports{}, &fakeArchive{}
	p := NewProcessor(reports, archive, nil, nil)

	require.NoError(t, p.Handle(context.Background(), completed(t, "s1")))
	assert.Equal(t, []string{"s1"}, reports.sessions)
	assert.Equal(t, []string{"lista_presenca_s1"}, archive.ids)
}

func TestHandle_WithoutArchive(t *testing.T) {
	reports := &fakeReports{}
	p := NewProcessor(reports, nil, nil, nil)
	require.NoError(t, p.Handle(context.Background(), completed(t, "s1")))
	assert.Len(t, reports.sessions, 1)
}

func TestHandle_Errors(t *testing.T) {
	t.Run("render", func(t *testing.T) {
		p := NewProcessor(&fakeReports{err: errors.New("boom")}, &fakeArchive{}, nil, nil)
		assert.Error(t, p.Handle(context.Background(), completed(t, "s1")))
	})
	t.Run("archive", func(t *testing.T) {
		p := NewProcessor(&fakeReports{}, &fakeArchive{err: errors.New("down")}, nil, nil)
		assert.Error(t, p.Handle(context.Background(), completed(t, "s1")))
	})
	t.Run("bad body", func(t *testing.T) {
		p := NewProcessor(&fakeReports{}, nil, nil, nil)
		err := p.Handle(context.Background(), queue.Message{Type: attendance.EventCheckinRecorded, Body: []byte("{")})
		assert.Error(t, err)
	})
	t.Run("unknown type ignored", func(t *testing.T) {
		p := NewProcessor(&fakeReports{}, nil, nil, nil)
		assert.NoError(t, p.Handle(context.Background(), queue.Message{Type: "other"}))
	})
}

func TestRun_CountsEventsUntilQueueCloses(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	p := NewProcessor(&fakeReports{}, &fakeArchive{err: errors.New("down")}, m, nil)

	checkin, err := json.Marshal(attendance.CheckinRecorded{SessionID: "s1", Sequence: 1})
	require.NoError(t, err)

	msgs := make(chan queue.Message, 3)
	msgs <- queue.Message{Type: attendance.EventCheckinRecorded, Body: checkin}
	msgs <- completed(t, "s1")
	close(msgs)

	done := make(chan struct{})
	go func() {
		p.Run(context.Background(), msgs)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the queue closed")
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(m.WorkerEvents.WithLabelValues(attendance.EventCheckinRecorded, "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WorkerEvents.WithLabelValues(attendance.EventSessionCompleted, "error")))
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	p := NewProcessor(&fakeReports{}, nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx, make(chan queue.Message))
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
