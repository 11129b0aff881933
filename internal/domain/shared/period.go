package shared

import (
	"errors"
	"fmt"
	"time"
)

// PeriodKeyLayout is the canonical string form of a simulated period (YYYY-MM).
const PeriodKeyLayout = "2006-01"

var ErrInvalidPeriodKey = errors.New("invalid period key, expected YYYY-MM")

// Period identifies one simulated month. The batch processor charges every
// active deal at most once per period.
type Period struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// NewPeriod builds a normalized period; out-of-range months roll into the
// adjacent year.
func NewPeriod(year, month int) Period {
	for month > 12 {
		month -= 12
		year++
	}
	for month < 1 {
		month += 12
		year--
	}
	return Period{Year: year, Month: month}
}

// ParsePeriod parses a YYYY-MM key.
func ParsePeriod(key string) (Period, error) {
	t, err := time.Parse(PeriodKeyLayout, key)
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriodKey, key)
	}
	return Period{Year: t.Year(), Month: int(t.Month())}, nil
}

// PeriodFromTime returns the period containing t.
func PeriodFromTime(t time.Time) Period {
	return Period{Year: t.Year(), Month: int(t.Month())}
}

// Key returns the canonical YYYY-MM form.
func (p Period) Key() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// Next returns the following month.
func (p Period) Next() Period {
	return NewPeriod(p.Year, p.Month+1)
}

// Before reports whether p precedes o.
func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Month < o.Month
}

// MonthsUntil returns the signed number of months from p to o.
func (p Period) MonthsUntil(o Period) int {
	return (o.Year-p.Year)*12 + (o.Month - p.Month)
}

// IsZero reports whether the period is unset.
func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}
