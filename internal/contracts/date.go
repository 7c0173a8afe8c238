package contracts

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Date is a civil trading date encoded as yyyymmdd.
// ⭐ SSOT: every date crossing a package boundary is normalized into this type
//
// The canonical text form is YYYY-MM-DD. The zero value means "unset".
type Date uint32

// DateLayout is the canonical text layout for Date
const DateLayout = "2006-01-02"

// inputLayouts are the layouts accepted by ParseDate
var inputLayouts = []string{
	"2006-01-02",
	"20060102",
	"2006/01/02",
}

// NewDate builds a Date from calendar components
func NewDate(year int, month time.Month, day int) Date {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Date(t.Year()*10000 + int(t.Month())*100 + t.Day())
}

// DateOf returns the civil date of t in t's own location
func DateOf(t time.Time) Date {
	if t.IsZero() {
		return 0
	}
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses YYYY-MM-DD, YYYYMMDD or YYYY/MM/DD.
// Timestamps ("2024-01-02 15:00:00") are truncated to their date part.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, " T"); i > 0 {
		s = s[:i]
	}
	for _, layout := range inputLayouts {
		if len(s) != len(layout) {
			continue
		}
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	return 0, fmt.Errorf("parse date %q: expected YYYY-MM-DD or YYYYMMDD", s)
}

// MustParseDate is ParseDate for literals in tests and defaults
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// IsZero reports whether the date is unset
func (d Date) IsZero() bool {
	return d == 0
}

// Time returns the date at UTC midnight
func (d Date) Time() time.Time {
	if d == 0 {
		return time.Time{}
	}
	return time.Date(int(d)/10000, time.Month(int(d)/100%100), int(d)%100, 0, 0, 0, 0, time.UTC)
}

// String returns YYYY-MM-DD
func (d Date) String() string {
	if d == 0 {
		return ""
	}
	return d.Time().Format(DateLayout)
}

// Compact returns YYYYMMDD
func (d Date) Compact() string {
	if d == 0 {
		return ""
	}
	return fmt.Sprintf("%08d", uint32(d))
}

// AddDays shifts the date by n calendar days
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// MarshalText implements encoding.TextMarshaler
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = 0
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// SortDates sorts dates ascending in place
func SortDates(dates []Date) {
	sort.Slice(dates, func(i, j int) bool { return dates[i] < dates[j] })
}

// DateSet is an unordered set of dates
type DateSet map[Date]struct{}

// NewDateSet builds a set from dates
func NewDateSet(dates ...Date) DateSet {
	s := make(DateSet, len(dates))
	for _, d := range dates {
		s[d] = struct{}{}
	}
	return s
}

// Add inserts d
func (s DateSet) Add(d Date) {
	s[d] = struct{}{}
}

// Has reports membership
func (s DateSet) Has(d Date) bool {
	_, ok := s[d]
	return ok
}

// Sorted returns the members ascending
func (s DateSet) Sorted() []Date {
	out := make([]Date, 0, len(s))
	for d := range s {
		out = append(out, d)
	}
	SortDates(out)
	return out
}
