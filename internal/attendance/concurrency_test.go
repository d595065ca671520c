package attendance_test

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"rollcall/internal/attendance"
	"rollcall/internal/sentinel"
)

// TestConcurrentDistinctCheckins verifies that parallel check-ins of different
// professionals get dense, unique sequence numbers.
func (s *ServiceSuite) TestConcurrentDistinctCheckins() {
	sess := s.openSession()
	const n = 50
	for i := 0; i < n; i++ {
		s.register(fmt.Sprintf("C%02d", i), fmt.Sprintf("Person %02d", i))
	}

	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(code string) {
			defer wg.Done()
			if _, err := s.svc.RecordCheckin(s.ctx, sess.ID, code); err != nil {
				failures.Add(1)
			}
		}(fmt.Sprintf("C%02d", i))
	}
	wg.Wait()
	s.Equal(int32(0), failures.Load())

	views, err := s.svc.ListCheckins(s.ctx, sess.ID)
	s.Require().NoError(err)
	s.Require().Len(views, n)
	seqs := make([]int, 0, n)
	for _, v := range views {
		seqs = append(seqs, v.Sequence)
	}
	sort.Ints(seqs)
	for i, seq := range seqs {
		s.Equal(i+1, seq)
	}
}

// TestConcurrentDuplicateCheckins verifies exactly one of many parallel
// attempts by the same professional succeeds.
func (s *ServiceSuite) TestConcurrentDuplicateCheckins() {
	sess := s.openSession()
	s.register("DUP", "Dup")
	const n = 20

	var wg sync.WaitGroup
	var successes, conflicts atomic.Int32
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.svc.RecordCheckin(s.ctx, sess.ID, "DUP")
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successes.Load())
	s.Equal(int32(n-1), conflicts.Load())

	views, err := s.svc.ListCheckins(s.ctx, sess.ID)
	s.Require().NoError(err)
	s.Require().Len(views, 1)
	s.Equal(1, views[0].Sequence)
}

// TestCheckinsRacingCompletion verifies every check-in either lands before the
// completion or is rejected as closed, and that completion happens once.
func (s *ServiceSuite) TestCheckinsRacingCompletion() {
	sess := s.openSession()
	const n = 20
	for i := 0; i < n; i++ {
		s.register(fmt.Sprintf("R%02d", i), fmt.Sprintf("Racer %02d", i))
	}

	var wg sync.WaitGroup
	var recorded, closed, completions atomic.Int32
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(code string) {
			defer wg.Done()
			<-start
			_, err := s.svc.RecordCheckin(s.ctx, sess.ID, code)
			switch {
			case err == nil:
				recorded.Add(1)
			case errors.Is(err, sentinel.ErrInvalidState):
				closed.Add(1)
			}
		}(fmt.Sprintf("R%02d", i))
	}
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := s.svc.CompleteSession(s.ctx, sess.ID); err == nil {
				completions.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	s.Equal(int32(1), completions.Load())
	s.Equal(int32(n), recorded.Load()+closed.Load())

	views, err := s.svc.ListCheckins(s.ctx, sess.ID)
	s.Require().NoError(err)
	s.Len(views, int(recorded.Load()))
	for i, v := range views {
		s.Equal(i+1, v.Sequence)
	}

	got, err := s.svc.Session(s.ctx, sess.ID)
	s.Require().NoError(err)
	s.Equal(attendance.StatusCompleted, got.Status)
}
