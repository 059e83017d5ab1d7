package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/okian/coachplan/internal/adapters/http/api"
	service "github.com/okian/coachplan/internal/app"
	"github.com/okian/coachplan/internal/domain/types"
	"github.com/okian/coachplan/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithLevel("error")); err != nil {
		panic(err)
	}
}

const sessionsCSV = `datetime_start,side,session_type,booked_guests,private_lessons_count
2026-02-16 09:00:00,LEFT,Novice,8,1
2026-02-16 09:00:00,RIGHT,Pro,2,0
2026-02-16 10:00:00,LEFT,Novice,20,0
2026-02-16 11:00:00,MIDDLE,Novice,3,0
`

const rosterCSV = `id,name,skill_level,max_hours_per_day
ana,Ana,3,8
ben,Ben,3,8
cam,Cam,4,8
`

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCompute(t *testing.T) {
	convey.Convey("Given a sessions file with good and bad rows", t, func() {
		dir := t.TempDir()
		cfg := &ComputeConfig{
			SessionsFile: writeTemp(t, dir, "sessions.csv", sessionsCSV),
			DailyOut:     filepath.Join(dir, "out", "daily.csv"),
			WeeklyOut:    filepath.Join(dir, "out", "weekly.csv"),
			Location:     time.UTC,
			Parallelism:  2,
		}

		convey.Convey("When requirements are computed", func() {
			var out bytes.Buffer
			sum, stats, err := Compute(context.Background(), cfg, &out)

			convey.Convey("Then valid rows are aggregated and bad rows counted", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(sum.Sessions, convey.ShouldEqual, 2)
				convey.So(sum.CoachHours, convey.ShouldEqual, 3)
				convey.So(stats.RowsRead, convey.ShouldEqual, 4)
				convey.So(stats.RowsRejected, convey.ShouldEqual, 2)
			})

			convey.Convey("Then both reports and the summary are written", func() {
				daily, err := os.ReadFile(cfg.DailyOut)
				convey.So(err, convey.ShouldBeNil)
				convey.So(string(daily), convey.ShouldStartWith, "datetime_start,hour,")
				convey.So(string(daily), convey.ShouldContainSubstring, "2026-02-16 09:00:00,9,3,2,1,0,0,0,3")

				weekly, err := os.ReadFile(cfg.WeeklyOut)
				convey.So(err, convey.ShouldBeNil)
				convey.So(string(weekly), convey.ShouldStartWith, "week_start,hour,mon")

				convey.So(out.String(), convey.ShouldContainSubstring, "COACHING REQUIREMENTS SUMMARY")
			})
		})

		convey.Convey("When the sessions file is missing", func() {
			cfg.SessionsFile = filepath.Join(dir, "missing.csv")
			_, _, err := Compute(context.Background(), cfg, &bytes.Buffer{})

			convey.Convey("Then the run fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When the rule table is invalid", func() {
			cfg.RulesFile = writeTemp(t, dir, "rules.yaml", "version: \"\"\n")
			_, _, err := Compute(context.Background(), cfg, &bytes.Buffer{})

			convey.Convey("Then the run fails before reading sessions", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "rule table")
			})
		})
	})
}

func TestOptimize(t *testing.T) {
	convey.Convey("Given sessions and a roster", t, func() {
		dir := t.TempDir()
		cfg := &OptimizeConfig{
			SessionsFile:   writeTemp(t, dir, "sessions.csv", sessionsCSV),
			RosterFile:     writeTemp(t, dir, "roster.csv", rosterCSV),
			AssignmentsOut: filepath.Join(dir, "assignments.csv"),
			Location:       time.UTC,
			Parallelism:    2,
			TimeBudget:     5 * time.Second,
		}

		convey.Convey("When a plan is built", func() {
			var out bytes.Buffer
			res, stats, err := Optimize(context.Background(), cfg, &out)

			convey.Convey("Then every required slot is staffed", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(res.Assignments, convey.ShouldHaveLength, 3)
				convey.So(res.Breakdown.Understaffed, convey.ShouldEqual, 0)
				convey.So(stats.Sessions, convey.ShouldEqual, 2)
				convey.So(stats.Coaches, convey.ShouldEqual, 3)
				convey.So(out.String(), convey.ShouldContainSubstring, "Assignments: 3")
			})

			convey.Convey("Then the assignment CSV is written", func() {
				data, err := os.ReadFile(cfg.AssignmentsOut)
				convey.So(err, convey.ShouldBeNil)
				convey.So(string(data), convey.ShouldStartWith, "Date,Time,Session,Side,Guests,Role,Coach")
				convey.So(string(data), convey.ShouldNotContainSubstring, "UNASSIGNED")
			})
		})

		convey.Convey("When the date has no sessions", func() {
			cfg.Date = "2026-02-17"
			_, _, err := Optimize(context.Background(), cfg, &bytes.Buffer{})

			convey.Convey("Then nothing is planned", func() {
				convey.So(err, convey.ShouldWrap, ErrNoSessions)
			})
		})

		convey.Convey("When the date is malformed", func() {
			cfg.Date = "16/02/2026"
			_, _, err := Optimize(context.Background(), cfg, &bytes.Buffer{})

			convey.Convey("Then the run fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When strict coverage cannot be met", func() {
			cfg.RosterFile = writeTemp(t, dir, "short.csv", "id,skill_level,max_hours_per_day\nana,3,8\n")
			strict := true
			cfg.Strict = &strict
			_, _, err := Optimize(context.Background(), cfg, &bytes.Buffer{})

			convey.Convey("Then the plan is infeasible", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestValidateRules(t *testing.T) {
	convey.Convey("Given rule table files", t, func() {
		dir := t.TempDir()
		good := writeTemp(t, dir, "good.yaml", `version: "2.0"
session_types:
  Novice:
    capacity: 10
    roles: [Pusher]
    baseline_rules:
      - {guest_range: [0, 0], baseline_coaches: 0}
      - {guest_range: [1, -1], baseline_coaches: 1}
`)
		bad := writeTemp(t, dir, "bad.yaml", "version: \"2.0\"\nsession_types: {}\n")

		convey.Convey("When a valid table is checked", func() {
			var out bytes.Buffer
			table, err := ValidateRules(context.Background(), good, &out)

			convey.Convey("Then it is described", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(table.Version(), convey.ShouldEqual, "2.0")
				convey.So(out.String(), convey.ShouldContainSubstring, "version 2.0")
				convey.So(out.String(), convey.ShouldContainSubstring, "Novice: capacity 10")
			})
		})

		convey.Convey("When an invalid table is checked", func() {
			_, err := ValidateRules(context.Background(), bad, &bytes.Buffer{})

			convey.Convey("Then it is rejected", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestSubmit(t *testing.T) {
	convey.Convey("Given a running plan service", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithWorkerCount(1))
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		mux := http.NewServeMux()
		api.NewServer(svc, svc, 10).Register(ctx, mux)
		srv := httptest.NewServer(mux)
		defer srv.Close()

		dir := t.TempDir()
		cfg := &SubmitConfig{
			BaseURL:      srv.URL,
			SessionsFile: writeTemp(t, dir, "sessions.csv", strings.Join(strings.Split(sessionsCSV, "\n")[:3], "\n")),
			RosterFile:   writeTemp(t, dir, "roster.csv", rosterCSV),
			Location:     time.UTC,
			Timeout:      5 * time.Second,
			PollInterval: 10 * time.Millisecond,
			Wait:         true,
		}

		convey.Convey("When a plan is submitted and awaited", func() {
			waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			var out bytes.Buffer
			plan, err := Submit(waitCtx, cfg, &out)

			convey.Convey("Then the solved plan is printed", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(plan.Status, convey.ShouldEqual, types.PlanSolved)
				convey.So(plan.Result.Assignments, convey.ShouldHaveLength, 3)
				convey.So(out.String(), convey.ShouldContainSubstring, "solved")
			})
		})

		convey.Convey("When the service rejects the request", func() {
			cfg.RosterFile = writeTemp(t, dir, "empty.csv", "id,skill_level,max_hours_per_day\n")
			_, err := Submit(ctx, cfg, &bytes.Buffer{})

			convey.Convey("Then its message is returned", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "400")
			})
		})
	})
}
