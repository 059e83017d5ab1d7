package ingest

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/okian/coachplan/internal/domain/model"
)

// Shorthand keywords of the weekly availability grid.
const (
	shorthandOff       = "off"
	shorthandAvailable = "available"
)

// ParseShorthand turns one availability cell into windows on day (midnight
// in the facility's location).
//
// Accepted forms: "" (nothing recorded), "off", "available", and one or more
// ranges such as "7-3", "9:30-17" or "8am-12pm" separated by commas or
// semicolons. A range without am/pm markers whose end is not after its start
// ends in the afternoon, so "7-3" is 07:00 to 15:00.
func ParseShorthand(coachID string, day time.Time, s string) ([]model.Availability, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	date := model.DateOf(day)
	whole := func(available bool) []model.Availability {
		return []model.Availability{{
			CoachID: coachID, Date: date,
			Start: day, End: day.AddDate(0, 0, 1),
			Available: available,
		}}
	}
	switch s {
	case "":
		return nil, nil
	case shorthandOff:
		return whole(false), nil
	case shorthandAvailable:
		return whole(true), nil
	}

	var out []model.Availability
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
		from, to, err := parseRange(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrBadShorthand, s, err)
		}
		out = append(out, model.Availability{
			CoachID: coachID, Date: date,
			Start: day.Add(from), End: day.Add(to),
			Available: true,
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrBadShorthand, s)
	}
	return out, nil
}

func parseRange(s string) (time.Duration, time.Duration, error) {
	a, b, ok := strings.Cut(s, "-")
	if !ok {
		return 0, 0, errors.New("expected start-end")
	}
	from, fromMarked, err := parseClock(a)
	if err != nil {
		return 0, 0, err
	}
	to, toMarked, err := parseClock(b)
	if err != nil {
		return 0, 0, err
	}
	if !fromMarked && !toMarked && to <= from && to < 12*time.Hour {
		to += 12 * time.Hour
	}
	if to <= from {
		return 0, 0, errors.New("end is not after start")
	}
	if to > 24*time.Hour {
		return 0, 0, errors.New("end is past midnight")
	}
	return from, to, nil
}

// parseClock reads H, H:MM, with an optional a/am/p/pm suffix, and reports
// whether a suffix was present.
func parseClock(s string) (time.Duration, bool, error) {
	s = strings.TrimSpace(s)
	marked, pm := false, false
	for _, suffix := range []string{"am", "pm", "a", "p"} {
		if strings.HasSuffix(s, suffix) {
			marked, pm = true, suffix[0] == 'p'
			s = strings.TrimSpace(strings.TrimSuffix(s, suffix))
			break
		}
	}
	hs, ms, hasMin := strings.Cut(s, ":")
	h, err := strconv.Atoi(hs)
	if err != nil || h < 0 || h > 24 {
		return 0, false, fmt.Errorf("bad hour %q", hs)
	}
	m := 0
	if hasMin {
		if m, err = strconv.Atoi(ms); err != nil || m < 0 || m > 59 || len(ms) != 2 {
			return 0, false, fmt.Errorf("bad minutes %q", ms)
		}
	}
	if marked {
		if h < 1 || h > 12 {
			return 0, false, fmt.Errorf("bad 12-hour clock %q", s)
		}
		switch {
		case pm && h < 12:
			h += 12
		case !pm && h == 12:
			h = 0
		}
	}
	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
	if d > 24*time.Hour {
		return 0, false, fmt.Errorf("bad time %q", s)
	}
	return d, marked, nil
}

// colCoach names the first column of an availability grid.
const colCoach = "coach"

// ReadAvailability parses a weekly availability grid: a coach column
// followed by one column per date (YYYY-MM-DD), each cell in shorthand.
// Dates are read in loc. Any bad cell rejects the grid.
func ReadAvailability(r io.Reader, loc *time.Location) ([]model.Availability, error) {
	t, err := readTable(r, colCoach)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}

	type dateCol struct {
		idx int
		day time.Time
	}
	var cols []dateCol
	for name, idx := range t.header {
		if name == colCoach {
			continue
		}
		day, err := time.ParseInLocation(model.DateLayout, name, loc)
		if err != nil {
			return nil, fmt.Errorf("%w: column %q is not a date", ErrMissingColumn, name)
		}
		cols = append(cols, dateCol{idx: idx, day: day})
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].idx < cols[j].idx })

	var (
		out  []model.Availability
		errs []error
	)
	for i, rec := range t.rows {
		line := t.lines[i]
		if blank(rec) {
			continue
		}
		coach := t.get(rec, colCoach)
		if coach == "" {
			errs = append(errs, &RowError{Line: line, Field: colCoach, Msg: "is required"})
			continue
		}
		for _, c := range cols {
			cell := ""
			if c.idx < len(rec) {
				cell = rec[c.idx]
			}
			windows, err := ParseShorthand(coach, c.day, cell)
			if err != nil {
				errs = append(errs, &RowError{Line: line, Field: model.DateOf(c.day), Msg: err.Error(), Err: err})
				continue
			}
			out = append(out, windows...)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}
