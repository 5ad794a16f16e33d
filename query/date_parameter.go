package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/icodeforyou/energiprice-go/hours"
)

// Anchor is the reference point a DateParameter is resolved from.
type Anchor int

const (
	Absolute Anchor = iota
	Now
	UtcNow
	StartOfDay
	UtcStartOfDay
	StartOfMonth
	StartOfYear
)

var anchorNames = map[Anchor]string{
	Now:           "Now",
	UtcNow:        "UtcNow",
	StartOfDay:    "StartOfDay",
	UtcStartOfDay: "UtcStartOfDay",
	StartOfMonth:  "StartOfMonth",
	StartOfYear:   "StartOfYear",
}

const (
	dateLayout = "2006-01-02"
	ApiLayout  = "2006-01-02T15:04"
)

// Offset is a signed ISO-8601 duration limited to days, hours and minutes.
// Days are calendar days so they follow daylight saving changes.
type Offset struct {
	Days     int
	Duration time.Duration
}

func (o Offset) IsZero() bool {
	return o.Days == 0 && o.Duration == 0
}

func (o Offset) Add(other Offset) Offset {
	return Offset{Days: o.Days + other.Days, Duration: o.Duration + other.Duration}
}

func (o Offset) String() string {
	if o.IsZero() {
		return ""
	}
	sign := ""
	days, d := o.Days, o.Duration
	if days < 0 || (days == 0 && d < 0) {
		sign, days, d = "-", -days, -d
	}
	var b strings.Builder
	b.WriteString(sign + "P")
	if days != 0 {
		fmt.Fprintf(&b, "%dD", days)
	}
	if d != 0 {
		b.WriteString("T")
		if h := int(d / time.Hour); h != 0 {
			fmt.Fprintf(&b, "%dH", h)
		}
		if m := int((d % time.Hour) / time.Minute); m != 0 {
			fmt.Fprintf(&b, "%dM", m)
		}
	}
	return b.String()
}

var offsetPattern = regexp.MustCompile(`^(-)?P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?)?$`)

// ParseOffset parses "[-]P[nD][T[nH][nM]]", e.g. "-P1D" or "PT12H30M".
func ParseOffset(value string) (Offset, error) {
	value = strings.ToUpper(strings.TrimSpace(value))
	if value == "" {
		return Offset{}, nil
	}
	m := offsetPattern.FindStringSubmatch(value)
	if m == nil || (m[2] == "" && m[3] == "" && m[4] == "") || strings.HasSuffix(value, "T") {
		return Offset{}, fmt.Errorf("invalid offset %q", value)
	}

	atoi := func(s string) int {
		if s == "" {
			return 0
		}
		n, _ := strconv.Atoi(s)
		return n
	}
	o := Offset{
		Days:     atoi(m[2]),
		Duration: time.Duration(atoi(m[3]))*time.Hour + time.Duration(atoi(m[4]))*time.Minute,
	}
	if m[1] == "-" {
		o.Days, o.Duration = -o.Days, -o.Duration
	}
	return o, nil
}

// DateParameter is a relative or absolute point in time plus an offset, the
// way the Energi Data Service API expresses the start of a query.
type DateParameter struct {
	anchor Anchor
	date   string
	offset Offset
}

func Relative(anchor Anchor, offset Offset) DateParameter {
	return DateParameter{anchor: anchor, offset: offset}
}

func AbsoluteDate(date string, offset Offset) (DateParameter, error) {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return DateParameter{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return DateParameter{anchor: Absolute, date: date, offset: offset}, nil
}

// ParseDateParameter parses a start such as "StartOfDay" or "2025-01-31"
// and an optional offset such as "-P1D". A blank start means StartOfDay.
func ParseDateParameter(start, offset string) (DateParameter, error) {
	o, err := ParseOffset(offset)
	if err != nil {
		return DateParameter{}, err
	}

	start = strings.TrimSpace(start)
	if start == "" {
		return Relative(StartOfDay, o), nil
	}
	for anchor, name := range anchorNames {
		if strings.EqualFold(name, start) {
			return Relative(anchor, o), nil
		}
	}
	return AbsoluteDate(start, o)
}

func (p DateParameter) Anchor() Anchor {
	return p.anchor
}

// WithOffset returns a copy shifted by the additional offset.
func (p DateParameter) WithOffset(o Offset) DateParameter {
	p.offset = p.offset.Add(o)
	return p
}

// Resolve returns the absolute instant. Calendar anchors use loc, the UTC
// anchors ignore it. Now and UtcNow resolve to the same instant.
func (p DateParameter) Resolve(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	var t time.Time
	switch p.anchor {
	case Now, UtcNow:
		t = now
	case StartOfDay:
		t = hours.StartOfDay(now, loc)
	case UtcStartOfDay:
		t = hours.StartOfDay(now, time.UTC)
	case StartOfMonth:
		l := now.In(loc)
		t = time.Date(l.Year(), l.Month(), 1, 0, 0, 0, 0, loc)
	case StartOfYear:
		l := now.In(loc)
		t = time.Date(l.Year(), time.January, 1, 0, 0, 0, 0, loc)
	default:
		d, _ := time.ParseInLocation(dateLayout, p.date, loc)
		t = d
	}
	if p.offset.Days != 0 {
		l := t.In(loc)
		if p.anchor == UtcNow || p.anchor == UtcStartOfDay {
			l = t.UTC()
		}
		t = l.AddDate(0, 0, p.offset.Days)
	}
	return t.Add(p.offset.Duration)
}

// Format resolves the parameter and renders it the way the API expects
// local date times.
func (p DateParameter) Format(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return p.Resolve(now, loc).In(loc).Format(ApiLayout)
}

func (p DateParameter) String() string {
	name := p.date
	if p.anchor != Absolute {
		name = anchorNames[p.anchor]
	}
	return name + p.offset.String()
}
