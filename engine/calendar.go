package engine

// =============================================================================
// WORKDAY CALENDAR - Work-day counting for pay periods
// =============================================================================

// Holiday is a non-working day that reduces a period's work-day count.
type Holiday struct {
	ID        string
	CompanyID string // empty = applies to everyone
	Date      Date
	Name      string
	Recurring bool // same month/day every year
}

// HolidayCalendar provides holiday lookups.
type HolidayCalendar interface {
	// IsHoliday reports whether date is a holiday for the given company.
	// Company-specific holidays take precedence over global ones.
	IsHoliday(companyID string, date Date) bool
}

// NoHolidays is the calendar used when holidays are disabled.
type NoHolidays struct{}

func (NoHolidays) IsHoliday(string, Date) bool { return false }

// IsWorkday reports whether d is a working day: a weekday that is not a
// holiday on the given calendar.
func IsWorkday(d Date, calendar HolidayCalendar, companyID string) bool {
	if d.IsWeekend() {
		return false
	}
	if calendar != nil && calendar.IsHoliday(companyID, d) {
		return false
	}
	return true
}

// WorkdaysBetween counts working days in [from, to] inclusive.
func WorkdaysBetween(from, to Date, calendar HolidayCalendar, companyID string) int {
	if to.Before(from) {
		return 0
	}
	count := 0
	for d := from; d.BeforeOrEqual(to); d = d.AddDays(1) {
		if IsWorkday(d, calendar, companyID) {
			count++
		}
	}
	return count
}
