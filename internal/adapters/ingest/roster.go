package ingest

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/okian/coachplan/internal/domain/model"
)

// Roster CSV columns. name and min_break_minutes are optional.
const (
	colCoachID  = "id"
	colName     = "name"
	colSkill    = "skill_level"
	colMaxHours = "max_hours_per_day"
	colMinBreak = "min_break_minutes"
)

type coachRow struct {
	ID              string `csv:"id" validate:"required"`
	Name            string `csv:"name"`
	SkillLevel      int    `csv:"skill_level" validate:"min=1,max=5"`
	MaxHoursPerDay  int    `csv:"max_hours_per_day" validate:"gte=0,lte=24"`
	MinBreakMinutes int    `csv:"min_break_minutes" validate:"gte=0"`
}

// ReadRoster parses a roster CSV. Unlike sessions, a roster with any bad
// row is rejected as a whole; every problem is reported in the joined error.
func ReadRoster(r io.Reader) ([]model.Coach, error) {
	t, err := readTable(r, colCoachID, colSkill, colMaxHours)
	if err != nil {
		return nil, err
	}

	var (
		coaches []model.Coach
		errs    []error
		seen    = make(map[string]int)
	)
	for i, rec := range t.rows {
		line := t.lines[i]
		if blank(rec) {
			continue
		}
		row := coachRow{ID: t.get(rec, colCoachID), Name: t.get(rec, colName)}
		bad := false
		for _, f := range []struct {
			col string
			dst *int
		}{
			{colSkill, &row.SkillLevel},
			{colMaxHours, &row.MaxHoursPerDay},
			{colMinBreak, &row.MinBreakMinutes},
		} {
			v := t.get(rec, f.col)
			if v == "" {
				continue
			}
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, &RowError{Line: line, Field: f.col, Msg: fmt.Sprintf("%q is not an integer", v)})
				bad = true
				continue
			}
			*f.dst = n
		}
		if bad {
			continue
		}
		if err := validate.Struct(row); err != nil {
			for _, re := range rowErrors(line, err) {
				errs = append(errs, re)
			}
			continue
		}
		if first, dup := seen[row.ID]; dup {
			errs = append(errs, &RowError{Line: line, Field: colCoachID, Msg: fmt.Sprintf("duplicate coach %s (first on line %d)", row.ID, first)})
			continue
		}
		seen[row.ID] = line
		if row.Name == "" {
			row.Name = row.ID
		}
		coaches = append(coaches, model.Coach(row))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return coaches, nil
}
