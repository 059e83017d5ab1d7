package ingest

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/okian/coachplan/internal/domain/model"
)

// Session CSV columns. private_lessons_count is optional.
const (
	colStart    = "datetime_start"
	colSide     = "side"
	colCategory = "session_type"
	colGuests   = "booked_guests"
	colPrivate  = "private_lessons_count"
)

// StartLayout is the datetime_start format; RFC 3339 is accepted too.
const StartLayout = "2006-01-02 15:04:05"

type sessionRow struct {
	Start    string `csv:"datetime_start" validate:"required"`
	Side     string `csv:"side" validate:"required,oneof=LEFT RIGHT left right Left Right"`
	Category string `csv:"session_type" validate:"required"`
	Guests   string `csv:"booked_guests" validate:"required,numeric"`
	Private  string `csv:"private_lessons_count" validate:"omitempty,numeric"`
}

// Sessions is the outcome of reading a sessions file. Inputs and Lines line
// up: Lines[i] is the file line Inputs[i] came from.
type Sessions struct {
	Inputs []model.SessionInput
	Lines  []int
	Errors []*RowError
}

// ReadSessions parses a sessions CSV. Malformed rows are reported and
// skipped; domain checks such as capacity are left to the calculator.
// Naive datetimes are read in loc.
func ReadSessions(r io.Reader, loc *time.Location) (Sessions, error) {
	t, err := readTable(r, colStart, colSide, colCategory, colGuests)
	if err != nil {
		return Sessions{}, err
	}
	if loc == nil {
		loc = time.UTC
	}

	var out Sessions
	for i, rec := range t.rows {
		line := t.lines[i]
		if blank(rec) {
			continue
		}
		row := sessionRow{
			Start:    t.get(rec, colStart),
			Side:     t.get(rec, colSide),
			Category: t.get(rec, colCategory),
			Guests:   t.get(rec, colGuests),
			Private:  t.get(rec, colPrivate),
		}
		if err := validate.Struct(row); err != nil {
			out.Errors = append(out.Errors, rowErrors(line, err)...)
			continue
		}
		in, rowErr := row.input(line, loc)
		if rowErr != nil {
			out.Errors = append(out.Errors, rowErr)
			continue
		}
		out.Inputs = append(out.Inputs, in)
		out.Lines = append(out.Lines, line)
	}
	return out, nil
}

func (r sessionRow) input(line int, loc *time.Location) (model.SessionInput, *RowError) {
	start, err := ParseStart(r.Start, loc)
	if err != nil {
		return model.SessionInput{}, &RowError{Line: line, Field: colStart, Msg: err.Error()}
	}
	side, err := model.ParseSide(r.Side)
	if err != nil {
		return model.SessionInput{}, &RowError{Line: line, Field: colSide, Msg: err.Error()}
	}
	guests, err := strconv.Atoi(r.Guests)
	if err != nil {
		return model.SessionInput{}, &RowError{Line: line, Field: colGuests, Msg: fmt.Sprintf("%q is not an integer", r.Guests)}
	}
	private := 0
	if r.Private != "" {
		if private, err = strconv.Atoi(r.Private); err != nil {
			return model.SessionInput{}, &RowError{Line: line, Field: colPrivate, Msg: fmt.Sprintf("%q is not an integer", r.Private)}
		}
	}
	return model.SessionInput{
		Start:          start,
		Side:           side,
		Category:       r.Category,
		BookedGuests:   guests,
		PrivateLessons: private,
	}, nil
}

// ParseStart reads a session start in StartLayout (in loc) or RFC 3339.
func ParseStart(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation(StartLayout, s, loc); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%q is neither %q nor RFC 3339", s, StartLayout)
}
