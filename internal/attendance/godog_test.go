package attendance_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/cucumber/godog"

	"rollcall/internal/attendance"
)

type checkinFeature struct {
	clock   *fakeClock
	svc     *attendance.Service
	session attendance.Session

	last        attendance.CheckinView
	lastErr     error
	duration    string
	registerErr error
}

func (f *checkinFeature) reset(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
	f.clock = &fakeClock{t: time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)}
	f.svc = attendance.NewService(attendance.NewMemoryStore(), attendance.WithClock(f.clock.Now))
	f.last, f.lastErr, f.duration, f.registerErr = attendance.CheckinView{}, nil, "", nil
	return ctx, nil
}

func (f *checkinFeature) aProfessional(ctx context.Context, name, code string) error {
	_, err := f.svc.RegisterProfessional(ctx, attendance.NewProfessional{
		Code: code, Name: name, Email: strings.ToLower(name) + "@example.com", Profession: "Operator", Employer: "ACME",
	})
	return err
}

func (f *checkinFeature) anOpenSession(ctx context.Context, location string) error {
	in := validSession()
	in.Location = location
	var err error
	f.session, err = f.svc.CreateSession(ctx, in)
	return err
}

func (f *checkinFeature) checksIn(ctx context.Context, code string) error {
	f.last, f.lastErr = f.svc.RecordCheckin(ctx, f.session.ID, code)
	return nil
}

func (f *checkinFeature) minutesPass(minutes int) error {
	f.clock.Advance(time.Duration(minutes) * time.Minute)
	return nil
}

func (f *checkinFeature) sessionCompleted(ctx context.Context) error {
	var err error
	f.duration, err = f.svc.CompleteSession(ctx, f.session.ID)
	return err
}

func (f *checkinFeature) succeedsWithSequence(seq int) error {
	if f.lastErr != nil {
		return fmt.Errorf("check-in failed: %w", f.lastErr)
	}
	if f.last.Sequence != seq {
		return fmt.Errorf("sequence = %d, want %d", f.last.Sequence, seq)
	}
	return nil
}

func (f *checkinFeature) failsWith(reason string) error {
	if f.lastErr == nil {
		return fmt.Errorf("check-in succeeded, want %q", reason)
	}
	if f.lastErr.Error() != reason {
		return fmt.Errorf("error = %q, want %q", f.lastErr.Error(), reason)
	}
	return nil
}

func (f *checkinFeature) durationIs(want string) error {
	if f.duration != want {
		return fmt.Errorf("duration = %q, want %q", f.duration, want)
	}
	return nil
}

func (f *checkinFeature) rosterRows(ctx context.Context, n int) error {
	r, err := f.svc.BuildRoster(ctx, f.session.ID, 0)
	if err != nil {
		return err
	}
	if len(r.Rows) != n {
		return fmt.Errorf("roster rows = %d, want %d", len(r.Rows), n)
	}
	return nil
}

func (f *checkinFeature) rosterRow(ctx context.Context, i int) (attendance.RosterRow, error) {
	r, err := f.svc.BuildRoster(ctx, f.session.ID, 0)
	if err != nil {
		return attendance.RosterRow{}, err
	}
	if i < 1 || i > len(r.Rows) {
		return attendance.RosterRow{}, fmt.Errorf("no roster row %d", i)
	}
	return r.Rows[i-1], nil
}

func (f *checkinFeature) rosterRowIs(ctx context.Context, i int, name string) error {
	row, err := f.rosterRow(ctx, i)
	if err != nil {
		return err
	}
	if row.Name != name || row.Sequence != i {
		return fmt.Errorf("row %d = %+v, want %q", i, row, name)
	}
	return nil
}

func (f *checkinFeature) rosterRowPlaceholder(ctx context.Context, i int, location string) error {
	row, err := f.rosterRow(ctx, i)
	if err != nil {
		return err
	}
	if !row.Placeholder || row.Email != attendance.PlaceholderEmail || row.Location != location {
		return fmt.Errorf("row %d = %+v, want placeholder at %q", i, row, location)
	}
	return nil
}

func (f *checkinFeature) anotherRegisters(ctx context.Context, code string) error {
	_, f.registerErr = f.svc.RegisterProfessional(ctx, attendance.NewProfessional{
		Code: code, Name: "Someone", Email: "someone@example.com", Profession: "p", Employer: "e",
	})
	return nil
}

func (f *checkinFeature) registrationFails(reason string) error {
	if f.registerErr == nil || f.registerErr.Error() != reason {
		return fmt.Errorf("registration error = %v, want %q", f.registerErr, reason)
	}
	return nil
}

func initializeScenario(sc *godog.ScenarioContext) {
	f := &checkinFeature{}
	sc.Before(f.reset)

	sc.Step(`^a professional "([^"]*)" with code "([^"]*)"$`, f.aProfessional)
	sc.Step(`^an open session at location "([^"]*)"$`, f.anOpenSession)
	sc.Step(`^"([^"]*)" checks in$`, f.checksIn)
	sc.Step(`^(\d+) minutes pass$`, f.minutesPass)
	sc.Step(`^the session is completed$`, f.sessionCompleted)
	sc.Step(`^the check-in succeeds with sequence (\d+)$`, f.succeedsWithSequence)
	sc.Step(`^the check-in fails with "([^"]*)"$`, f.failsWith)
	sc.Step(`^the duration is "([^"]*)"$`, f.durationIs)
	sc.Step(`^the roster has (\d+) rows$`, f.rosterRows)
	sc.Step(`^roster row (\d+) is "([^"]*)"$`, f.rosterRowIs)
	sc.Step(`^roster row (\d+) is a placeholder at "([^"]*)"$`, f.rosterRowPlaceholder)
	sc.Step(`^another professional registers with code "([^"]*)"$`, f.anotherRegisters)
	sc.Step(`^registration fails with "([^"]*)"$`, f.registrationFails)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: initializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
			Strict:   true,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
