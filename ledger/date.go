package ledger

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// DATE - Calendar day (the ledger's time key)
// =============================================================================

// Date is a calendar day in UTC. Ledger entries, daily runs and pairing
// matching are all keyed by Date, never by wall-clock instants.
type Date struct {
	Time time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), now.Month(), now.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t.UTC()}, nil
}

func (d Date) normalize() time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Comparison
func (d Date) Before(other Date) bool { return d.normalize().Before(other.normalize()) }
func (d Date) Equal(other Date) bool  { return d.normalize().Equal(other.normalize()) }
func (d Date) After(other Date) bool  { return d.normalize().After(other.normalize()) }
func (d Date) IsZero() bool           { return d.Time.IsZero() }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{Time: d.Time.AddDate(0, 0, n)} }

// Properties
func (d Date) Year() int         { return d.Time.Year() }
func (d Date) Month() time.Month { return d.Time.Month() }
func (d Date) Day() int          { return d.Time.Day() }

func (d Date) String() string { return d.normalize().Format("2006-01-02") }

// =============================================================================
// PERIOD - Calendar month (the monthly runs' time key)
// =============================================================================

// ErrInvalidPeriod is returned for malformed dates or month/year pairs.
// Run invocations reject the argument before touching any state.
var ErrInvalidPeriod = errors.New("invalid period")

// ErrInvalidDate wraps date parse failures. It unwraps to ErrInvalidPeriod
// so callers can treat both argument faults uniformly.
var ErrInvalidDate = fmt.Errorf("%w: malformed date", ErrInvalidPeriod)

// Period is a (month, year) pair identifying one monthly settlement window.
type Period struct {
	Month time.Month
	Year  int
}

// NewPeriod validates and builds a Period.
func NewPeriod(month, year int) (Period, error) {
	if month < 1 || month > 12 {
		return Period{}, fmt.Errorf("%w: month %d out of range", ErrInvalidPeriod, month)
	}
	if year < 2000 || year > 9999 {
		return Period{}, fmt.Errorf("%w: year %d out of range", ErrInvalidPeriod, year)
	}
	return Period{Month: time.Month(month), Year: year}, nil
}

// PeriodOf returns the period containing the given date.
func PeriodOf(d Date) Period {
	return Period{Month: d.Month(), Year: d.Year()}
}

// PreviousPeriod returns the calendar month before this one.
func (p Period) PreviousPeriod() Period {
	if p.Month == time.January {
		return Period{Month: time.December, Year: p.Year - 1}
	}
	return Period{Month: p.Month - 1, Year: p.Year}
}

// Start returns the first day of the period.
func (p Period) Start() Date { return NewDate(p.Year, p.Month, 1) }

// End returns the last day of the period.
func (p Period) End() Date {
	return Date{Time: time.Date(p.Year, p.Month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)}
}

// Contains reports whether the date falls inside the period.
func (p Period) Contains(d Date) bool {
	return d.Year() == p.Year && d.Month() == p.Month
}

func (p Period) String() string { return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month)) }
