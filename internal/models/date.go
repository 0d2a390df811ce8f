package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Qualifier marks the precision claim attached to a genealogical date.
// The abbreviations follow long-standing genealogy conventions.
type Qualifier string

const (
	QualifierExact      Qualifier = ""
	QualifierAbout      Qualifier = "abt"
	QualifierBefore     Qualifier = "bef"
	QualifierAfter      Qualifier = "aft"
	QualifierCalculated Qualifier = "cal"
	QualifierEstimated  Qualifier = "est"
)

// Date is a genealogical date: possibly year-only, possibly qualified.
// A Date with Valid=false carries only its raw text and never participates
// in temporal comparisons.
type Date struct {
	Raw       string    `json:"raw,omitempty"`
	Qualifier Qualifier `json:"qualifier,omitempty"`
	Year      int       `json:"year,omitempty"`
	Month     int       `json:"month,omitempty"` // 0 when unknown
	Day       int       `json:"day,omitempty"`   // 0 when unknown
	Valid     bool      `json:"valid"`
}

var dateRe = regexp.MustCompile(`^(?i)(?:(abt|bef|aft|cal|est)\.?\s+)?(\d{3,4})(?:-(\d{1,2}))?(?:-(\d{1,2}))?$`)

// ParseDate parses "YYYY", "YYYY-MM", or "YYYY-MM-DD" with an optional
// leading qualifier (abt/bef/aft/cal/est, any case). Text that does not
// match keeps its raw form with Valid=false; an empty string is the zero
// Date.
func ParseDate(s string) Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}
	}
	m := dateRe.FindStringSubmatch(s)
	if m == nil {
		return Date{Raw: s}
	}
	d := Date{Raw: s, Valid: true}
	if m[1] != "" {
		d.Qualifier = Qualifier(strings.ToLower(m[1]))
	}
	d.Year, _ = strconv.Atoi(m[2])
	if m[3] != "" {
		d.Month, _ = strconv.Atoi(m[3])
		if d.Month < 1 || d.Month > 12 {
			return Date{Raw: s}
		}
	}
	if m[4] != "" {
		d.Day, _ = strconv.Atoi(m[4])
		if d.Day < 1 || d.Day > 31 {
			return Date{Raw: s}
		}
	}
	return d
}

// IsZero reports whether the date is entirely absent.
func (d Date) IsZero() bool {
	return !d.Valid && d.Raw == ""
}

// String renders the date back to its field form. Parsed dates render
// canonically; unparseable dates render their raw text.
func (d Date) String() string {
	if !d.Valid {
		return d.Raw
	}
	var b strings.Builder
	if d.Qualifier != QualifierExact {
		b.WriteString(string(d.Qualifier))
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "%04d", d.Year)
	if d.Month > 0 {
		fmt.Fprintf(&b, "-%02d", d.Month)
		if d.Day > 0 {
			fmt.Fprintf(&b, "-%02d", d.Day)
		}
	}
	return b.String()
}

// Before reports whether d is strictly earlier than other, to the finest
// precision both dates share. Incomparable pairs (either invalid) report
// false.
func (d Date) Before(other Date) bool {
	if !d.Valid || !other.Valid {
		return false
	}
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month == 0 || other.Month == 0 {
		return false
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	if d.Day == 0 || other.Day == 0 {
		return false
	}
	return d.Day < other.Day
}

// YearsUntil returns the whole years from d to other (negative when other
// precedes d). Month/day are consulted only when both dates carry them.
// The second return is false when either date is invalid.
func (d Date) YearsUntil(other Date) (int, bool) {
	if !d.Valid || !other.Valid {
		return 0, false
	}
	years := other.Year - d.Year
	if d.Month > 0 && other.Month > 0 {
		if other.Month < d.Month || (other.Month == d.Month && d.Day > 0 && other.Day > 0 && other.Day < d.Day) {
			years--
		}
	}
	return years, true
}
