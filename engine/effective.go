/*
effective.go - Generic effective-dated record manager

PURPOSE:
  Payroll reference data (compensation, deductions, tax withholding
  elections, benefits) is effective-dated: each record is valid over
  [EffectiveFrom, EffectiveTo], with a nil EffectiveTo meaning open-ended.
  This file implements the overlap-closing logic ONCE, parameterized over
  the record type, so every record kind shares the same invariant.

THE INVARIANT:
  For a given (subject, type) pair, at most one record is active on any
  date. Creating a new record with EffectiveFrom = D closes any record
  still open on D by setting its EffectiveTo = D - 1 day.

LIFECYCLE:
  - Created on enrollment/award (CreateWithClosure)
  - Closed on termination or supersession (Terminate / CreateWithClosure)
  - NEVER physically deleted

EXAMPLE:
  mgr := engine.NewEffectiveManager[payroll.Compensation](store)
  rec, closed, err := mgr.CreateWithClosure(ctx, "emp-1", "BASE", newComp)
  active, err := mgr.FindActive(ctx, "emp-1", "BASE", periodEnd)

SEE ALSO:
  - payroll/types.go: The concrete effective-dated record types
  - store/sqlite/sqlite.go: Persistent EffectiveStore implementations
*/
package engine

import (
	"context"
	"fmt"
)

// =============================================================================
// EFFECTIVE-DATED RECORDS
// =============================================================================

// Effective is implemented by every effective-dated record type.
type Effective interface {
	// EffectiveFrom is the first day the record is valid.
	EffectiveFrom() Date

	// EffectiveTo is the last valid day, or nil for open-ended.
	EffectiveTo() *Date
}

// ActiveOn reports whether an effective-dated record covers the given date.
func ActiveOn(rec Effective, asOf Date) bool {
	if rec.EffectiveFrom().After(asOf) {
		return false
	}
	to := rec.EffectiveTo()
	return to == nil || to.AfterOrEqual(asOf)
}

// =============================================================================
// STORE CONTRACT
// =============================================================================

// EffectiveStore persists one kind of effective-dated record.
// Implementations key records by (subjectID, recordType).
type EffectiveStore[T Effective] interface {
	// ListByKey returns every record for (subjectID, recordType),
	// in any order. An empty recordType matches every type for the
	// subject. Closed records are included: nothing is deleted.
	ListByKey(ctx context.Context, subjectID, recordType string) ([]T, error)

	// Insert persists a new record and returns it (with any store-assigned
	// fields populated).
	Insert(ctx context.Context, rec T) (T, error)

	// SetEffectiveTo closes an existing record at the given date.
	SetEffectiveTo(ctx context.Context, rec T, to Date) (T, error)
}

// =============================================================================
// MANAGER
// =============================================================================

// EffectiveManager enforces the single-active-record invariant for one
// record kind. It is stateless and safe for concurrent use.
type EffectiveManager[T Effective] struct {
	store EffectiveStore[T]
}

func NewEffectiveManager[T Effective](store EffectiveStore[T]) *EffectiveManager[T] {
	return &EffectiveManager[T]{store: store}
}

// CreateWithClosure inserts rec after closing every record for
// (subjectID, recordType) still open on rec's EffectiveFrom. Returns the
// inserted record and the records that were closed.
func (m *EffectiveManager[T]) CreateWithClosure(ctx context.Context, subjectID, recordType string, rec T) (T, []T, error) {
	var zero T

	from := rec.EffectiveFrom()
	if to := rec.EffectiveTo(); to != nil && to.Before(from) {
		return zero, nil, fmt.Errorf("%w: from %s to %s", ErrInvalidDateRange, from, *to)
	}

	existing, err := m.store.ListByKey(ctx, subjectID, recordType)
	if err != nil {
		return zero, nil, err
	}

	var closed []T
	for _, e := range existing {
		if e.EffectiveFrom().After(from) || !ActiveOn(e, from) {
			continue
		}
		// A record starting the same day cannot be closed the day before
		// it starts; that supersession must be modeled as a correction.
		if e.EffectiveFrom().Equal(from) {
			return zero, nil, Violation("same_day_supersession",
				"record for %s/%s already starts on %s", subjectID, recordType, from)
		}
		updated, err := m.store.SetEffectiveTo(ctx, e, from.AddDays(-1))
		if err != nil {
			return zero, nil, err
		}
		closed = append(closed, updated)
	}

	inserted, err := m.store.Insert(ctx, rec)
	if err != nil {
		return zero, nil, err
	}
	return inserted, closed, nil
}

// FindActive returns the single record active on asOf.
// Returns ErrNotFound when none matches. More than one match means the
// closure invariant was violated at some earlier point; that is reported
// as ErrDuplicateActive rather than picking a winner arbitrarily.
func (m *EffectiveManager[T]) FindActive(ctx context.Context, subjectID, recordType string, asOf Date) (T, error) {
	var zero T

	records, err := m.store.ListByKey(ctx, subjectID, recordType)
	if err != nil {
		return zero, err
	}

	var matches []T
	for _, r := range records {
		if ActiveOn(r, asOf) {
			matches = append(matches, r)
		}
	}

	switch len(matches) {
	case 0:
		return zero, &NotFoundError{
			Kind: recordType,
			Key:  fmt.Sprintf("subject %s as of %s", subjectID, asOf),
		}
	case 1:
		return matches[0], nil
	default:
		return zero, fmt.Errorf("%w: %d records for %s/%s active on %s",
			ErrDuplicateActive, len(matches), subjectID, recordType, asOf)
	}
}

// Terminate closes the record active on endOn without inserting a
// successor. Used on employee termination and benefit withdrawal.
func (m *EffectiveManager[T]) Terminate(ctx context.Context, subjectID, recordType string, endOn Date) (T, error) {
	var zero T

	active, err := m.FindActive(ctx, subjectID, recordType, endOn)
	if err != nil {
		return zero, err
	}
	if active.EffectiveFrom().After(endOn) {
		return zero, fmt.Errorf("%w: termination %s before start %s",
			ErrInvalidDateRange, endOn, active.EffectiveFrom())
	}
	return m.store.SetEffectiveTo(ctx, active, endOn)
}
