package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/warp/payroll-engine/engine"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// datedRecord is a minimal effective-dated record for exercising the manager.
type datedRecord struct {
	ID      string
	Subject string
	Type    string
	From    engine.Date
	To      *engine.Date
}

func (r datedRecord) EffectiveFrom() engine.Date { return r.From }
func (r datedRecord) EffectiveTo() *engine.Date  { return r.To }

// fakeEffectiveStore keeps records in a slice, keyed by (subject, type).
type fakeEffectiveStore struct {
	records []datedRecord
	nextID  int
}

func (s *fakeEffectiveStore) ListByKey(_ context.Context, subjectID, recordType string) ([]datedRecord, error) {
	var out []datedRecord
	for _, r := range s.records {
		if r.Subject == subjectID && r.Type == recordType {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeEffectiveStore) Insert(_ context.Context, rec datedRecord) (datedRecord, error) {
	s.nextID++
	rec.ID = string(rune('a' + s.nextID))
	s.records = append(s.records, rec)
	return rec, nil
}

func (s *fakeEffectiveStore) SetEffectiveTo(_ context.Context, rec datedRecord, to engine.Date) (datedRecord, error) {
	for i := range s.records {
		if s.records[i].ID == rec.ID {
			s.records[i].To = &to
			return s.records[i], nil
		}
	}
	return datedRecord{}, errors.New("record not in store")
}

func date(y int, m time.Month, d int) engine.Date { return engine.NewDate(y, m, d) }

func openRecord(subject, kind string, from engine.Date) datedRecord {
	return datedRecord{Subject: subject, Type: kind, From: from}
}

// =============================================================================
// OVERLAP CLOSURE
// =============================================================================

func TestCreateWithClosure_ClosesOpenRecord(t *testing.T) {
	// GIVEN: An open-ended compensation record starting Jan 1
	// WHEN: A new record starting Jun 1 is created
	// THEN: The old record is closed at May 31 and the new one inserted

	ctx := context.Background()
	store := &fakeEffectiveStore{}
	mgr := engine.NewEffectiveManager[datedRecord](store)

	_, _, err := mgr.CreateWithClosure(ctx, "emp-1", "BASE", openRecord("emp-1", "BASE", date(2025, time.January, 1)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, closed, err := mgr.CreateWithClosure(ctx, "emp-1", "BASE", openRecord("emp-1", "BASE", date(2025, time.June, 1)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(closed) != 1 {
		t.Fatalf("expected 1 closed record, got %d", len(closed))
	}
	want := date(2025, time.May, 31)
	if closed[0].To == nil || !closed[0].To.Equal(want) {
		t.Errorf("expected closure at %s, got %v", want, closed[0].To)
	}
}

func TestCreateWithClosure_NeverLeavesTwoActive(t *testing.T) {
	// GIVEN: A sequence of inserts with increasing effective dates
	// WHEN: Checking any date after every insert
	// THEN: FindActive always resolves to exactly one record

	ctx := context.Background()
	store := &fakeEffectiveStore{}
	mgr := engine.NewEffectiveManager[datedRecord](store)

	starts := []engine.Date{
		date(2024, time.January, 1),
		date(2024, time.July, 15),
		date(2025, time.March, 1),
	}
	for _, s := range starts {
		if _, _, err := mgr.CreateWithClosure(ctx, "emp-1", "BASE", openRecord("emp-1", "BASE", s)); err != nil {
			t.Fatalf("insert at %s: %v", s, err)
		}
	}

	probes := []engine.Date{
		date(2024, time.March, 1),
		date(2024, time.July, 14),
		date(2024, time.July, 15),
		date(2025, time.June, 30),
	}
	for _, p := range probes {
		if _, err := mgr.FindActive(ctx, "emp-1", "BASE", p); err != nil {
			t.Errorf("FindActive(%s): %v", p, err)
		}
	}
}

func TestCreateWithClosure_LeavesOtherKeysAlone(t *testing.T) {
	// GIVEN: Open records for two different types
	// WHEN: Superseding one type
	// THEN: The other type's record stays open

	ctx := context.Background()
	store := &fakeEffectiveStore{}
	mgr := engine.NewEffectiveManager[datedRecord](store)

	mgr.CreateWithClosure(ctx, "emp-1", "BASE", openRecord("emp-1", "BASE", date(2025, time.January, 1)))
	mgr.CreateWithClosure(ctx, "emp-1", "CAR", openRecord("emp-1", "CAR", date(2025, time.January, 1)))
	mgr.CreateWithClosure(ctx, "emp-1", "BASE", openRecord("emp-1", "BASE", date(2025, time.June, 1)))

	car, err := mgr.FindActive(ctx, "emp-1", "CAR", date(2025, time.December, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if car.To != nil {
		t.Errorf("CAR record should remain open, closed at %v", car.To)
	}
}

func TestCreateWithClosure_SameDayStartRejected(t *testing.T) {
	// GIVEN: A record starting Jun 1
	// WHEN: Creating another record starting the same day
	// THEN: BusinessRuleViolation (closure would produce an invalid range)

	ctx := context.Background()
	store := &fakeEffectiveStore{}
	mgr := engine.NewEffectiveManager[datedRecord](store)

	mgr.CreateWithClosure(ctx, "emp-1", "BASE", openRecord("emp-1", "BASE", date(2025, time.June, 1)))
	_, _, err := mgr.CreateWithClosure(ctx, "emp-1", "BASE", openRecord("emp-1", "BASE", date(2025, time.June, 1)))

	if !engine.IsBusinessRule(err) {
		t.Errorf("expected business rule violation, got %v", err)
	}
}

func TestCreateWithClosure_InvalidRangeRejected(t *testing.T) {
	// GIVEN: A record whose effectiveTo precedes its effectiveFrom
	// WHEN: Creating it
	// THEN: ErrInvalidDateRange

	ctx := context.Background()
	mgr := engine.NewEffectiveManager[datedRecord](&fakeEffectiveStore{})

	to := date(2025, time.January, 1)
	rec := datedRecord{Subject: "emp-1", Type: "BASE", From: date(2025, time.June, 1), To: &to}
	_, _, err := mgr.CreateWithClosure(ctx, "emp-1", "BASE", rec)

	if !errors.Is(err, engine.ErrInvalidDateRange) {
		t.Errorf("expected ErrInvalidDateRange, got %v", err)
	}
}

// =============================================================================
// FIND ACTIVE
// =============================================================================

func TestFindActive_NoneIsNotFound(t *testing.T) {
	mgr := engine.NewEffectiveManager[datedRecord](&fakeEffectiveStore{})

	_, err := mgr.FindActive(context.Background(), "emp-1", "BASE", date(2025, time.June, 1))
	if !engine.IsNotFound(err) {
		t.Errorf("expected not-found, got %v", err)
	}
}

func TestFindActive_DuplicateActiveDetected(t *testing.T) {
	// GIVEN: Two overlapping open records written behind the manager's back
	// WHEN: FindActive is called on a covered date
	// THEN: ErrDuplicateActive signals the earlier invariant violation

	store := &fakeEffectiveStore{}
	store.Insert(context.Background(), openRecord("emp-1", "BASE", date(2025, time.January, 1)))
	store.Insert(context.Background(), openRecord("emp-1", "BASE", date(2025, time.March, 1)))
	mgr := engine.NewEffectiveManager[datedRecord](store)

	_, err := mgr.FindActive(context.Background(), "emp-1", "BASE", date(2025, time.June, 1))
	if !errors.Is(err, engine.ErrDuplicateActive) {
		t.Errorf("expected ErrDuplicateActive, got %v", err)
	}
	if !engine.IsBusinessRule(err) {
		t.Errorf("duplicate active should classify as business rule violation")
	}
}

func TestFindActive_ClosedRecordStillFoundInsideRange(t *testing.T) {
	// GIVEN: A record valid Jan 1 - May 31
	// WHEN: Looking up a date inside and a date after the range
	// THEN: Found inside, not-found after

	ctx := context.Background()
	store := &fakeEffectiveStore{}
	mgr := engine.NewEffectiveManager[datedRecord](store)

	to := date(2025, time.May, 31)
	store.Insert(ctx, datedRecord{Subject: "emp-1", Type: "BASE", From: date(2025, time.January, 1), To: &to})

	if _, err := mgr.FindActive(ctx, "emp-1", "BASE", date(2025, time.March, 15)); err != nil {
		t.Errorf("expected record inside range, got %v", err)
	}
	if _, err := mgr.FindActive(ctx, "emp-1", "BASE", date(2025, time.June, 1)); !engine.IsNotFound(err) {
		t.Errorf("expected not-found after range, got %v", err)
	}
}

// =============================================================================
// TERMINATION
// =============================================================================

func TestTerminate_ClosesWithoutSuccessor(t *testing.T) {
	// GIVEN: An open record
	// WHEN: Terminating on Sep 30
	// THEN: The record is closed at Sep 30 and no longer active after

	ctx := context.Background()
	store := &fakeEffectiveStore{}
	mgr := engine.NewEffectiveManager[datedRecord](store)

	mgr.CreateWithClosure(ctx, "emp-1", "BASE", openRecord("emp-1", "BASE", date(2025, time.January, 1)))

	closed, err := mgr.Terminate(ctx, "emp-1", "BASE", date(2025, time.September, 30))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if closed.To == nil || !closed.To.Equal(date(2025, time.September, 30)) {
		t.Errorf("expected closure at 2025-09-30, got %v", closed.To)
	}

	if _, err := mgr.FindActive(ctx, "emp-1", "BASE", date(2025, time.October, 1)); !engine.IsNotFound(err) {
		t.Errorf("expected not-found after termination, got %v", err)
	}
}
