package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MonthKey identifies a calendar month. Keys order by (year, month), never by label.
type MonthKey struct {
	Year  int
	Month time.Month
}

// MonthOf returns the month d falls in.
func MonthOf(d Date) MonthKey {
	return MonthKey{Year: d.Year(), Month: d.Time.Month()}
}

// ParseMonthKey accepts "Mar 24", "Mar-24", "March 2024" and "2024-03".
func ParseMonthKey(s string) (MonthKey, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01", s); err == nil {
		return MonthKey{Year: t.Year(), Month: t.Month()}, nil
	}
	s = strings.ReplaceAll(s, "-", " ")
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return MonthKey{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	month, ok := lookupMonth(fields[0])
	if !ok {
		return MonthKey{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	year, err := strconv.Atoi(fields[1])
	if err != nil || year < 0 {
		return MonthKey{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	switch len(fields[1]) {
	case 2:
		year += 2000
	case 4:
	default:
		return MonthKey{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return MonthKey{Year: year, Month: month}, nil
}

func lookupMonth(s string) (time.Month, bool) {
	if len(s) < 3 {
		return 0, false
	}
	for m := time.January; m <= time.December; m++ {
		name := m.String()
		if strings.EqualFold(name, s) || strings.EqualFold(name[:3], s) {
			return m, true
		}
	}
	return 0, false
}

// Label is the bucket label used on reports, e.g. "Mar 24".
func (k MonthKey) Label() string {
	if !k.valid() {
		return ""
	}
	return fmt.Sprintf("%s %02d", k.Month.String()[:3], k.Year%100)
}

// PaidLabel is the label stored on interest entries, e.g. "Mar-24".
func (k MonthKey) PaidLabel() string {
	if !k.valid() {
		return ""
	}
	return fmt.Sprintf("%s-%02d", k.Month.String()[:3], k.Year%100)
}

// FullName renders e.g. "March 2024".
func (k MonthKey) FullName() string {
	if !k.valid() {
		return ""
	}
	return fmt.Sprintf("%s %d", k.Month.String(), k.Year)
}

func (k MonthKey) String() string {
	return k.Label()
}

func (k MonthKey) IsZero() bool {
	return k.Year == 0 && k.Month == 0
}

// valid reports whether k names a real calendar month. Labels of anything
// else are empty.
func (k MonthKey) valid() bool {
	return k.Month >= time.January && k.Month <= time.December
}

// Compare returns -1, 0 or 1.
func (k MonthKey) Compare(o MonthKey) int {
	switch {
	case k.Year < o.Year:
		return -1
	case k.Year > o.Year:
		return 1
	case k.Month < o.Month:
		return -1
	case k.Month > o.Month:
		return 1
	}
	return 0
}

func (k MonthKey) Before(o MonthKey) bool {
	return k.Compare(o) < 0
}

func (k MonthKey) Next() MonthKey {
	if k.Month == time.December {
		return MonthKey{Year: k.Year + 1, Month: time.January}
	}
	return MonthKey{Year: k.Year, Month: k.Month + 1}
}

func (k MonthKey) Prev() MonthKey {
	if k.Month == time.January {
		return MonthKey{Year: k.Year - 1, Month: time.December}
	}
	return MonthKey{Year: k.Year, Month: k.Month - 1}
}

// FirstDay returns the first calendar day of the month.
func (k MonthKey) FirstDay() Date {
	return NewDate(k.Year, int(k.Month), 1)
}
