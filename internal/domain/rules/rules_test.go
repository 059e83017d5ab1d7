package rules_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/okian/coachplan/internal/domain/model"
	"github.com/okian/coachplan/internal/domain/rules"
	"github.com/smartystreets/goconvey/convey"
)

const minimalYAML = `
version: "2.0"
session_types:
  Novice:
    capacity: 19
    baseline_rules:
      - {guest_range: [0, 0], baseline_coaches: 0}
      - {guest_range: [1, 14], baseline_coaches: 2}
      - {guest_range: [15, -1], baseline_coaches: 3}
  Intermediate:
    capacity: 13
    no_baseline: true
`

func TestDefaultTable(t *testing.T) {
	convey.Convey("Given the built-in rule table", t, func() {
		table, err := rules.Default()

		convey.Convey("Then it should load and validate", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(table.Version(), convey.ShouldEqual, "1.0")
			convey.So(table.CategoryNames(), convey.ShouldHaveLength, 8)
			convey.So(table.PrivateLessons().CoachesPerLesson, convey.ShouldEqual, 1)
			convey.So(table.Operational().ArrivalLead, convey.ShouldEqual, 30*time.Minute)
			convey.So(table.Operational().Sides, convey.ShouldResemble, [2]model.Side{model.SideLeft, model.SideRight})
			convey.So(table.Optimizer().TimeBudget, convey.ShouldEqual, 60*time.Second)
			convey.So(table.Optimizer().Weights.Understaffing, convey.ShouldEqual, 1000)
		})

		convey.Convey("Then every guest count within capacity has exactly one baseline", func() {
			for _, name := range table.CategoryNames() {
				c, ok := table.Category(name)
				convey.So(ok, convey.ShouldBeTrue)
				for g := 0; g <= c.Capacity; g++ {
					matches := 0
					for _, r := range c.Ranges {
						if r.Contains(g) {
							matches++
						}
					}
					convey.So(matches, convey.ShouldEqual, 1)
					_, found := c.Baseline(g)
					convey.So(found, convey.ShouldBeTrue)
				}
			}
		})

		convey.Convey("Then Novice thresholds follow the breakpoints", func() {
			c, _ := table.Category("Novice")
			for guests, want := range map[int]int{0: 0, 1: 2, 14: 2, 15: 3, 19: 3} {
				got, ok := c.Baseline(guests)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(got, convey.ShouldEqual, want)
			}
			_, ok := c.Baseline(-1)
			convey.So(ok, convey.ShouldBeFalse)
		})

		convey.Convey("Then returned categories are copies", func() {
			c, _ := table.Category("Novice")
			c.Ranges[0].Coaches = 99
			again, _ := table.Category("Novice")
			convey.So(again.Ranges[0].Coaches, convey.ShouldEqual, 0)
		})
	})
}

func TestParseDefaults(t *testing.T) {
	convey.Convey("Given a table that omits optional sections", t, func() {
		table, err := rules.Parse([]byte(minimalYAML))

		convey.Convey("Then defaults are applied", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(table.Operational().ArrivalLead, convey.ShouldEqual, 30*time.Minute)
			convey.So(table.Operational().SessionLength, convey.ShouldEqual, time.Hour)
			convey.So(table.PrivateLessons().CanGroup, convey.ShouldBeFalse)
			convey.So(table.Optimizer().DefaultAvailable, convey.ShouldBeTrue)
			convey.So(table.Optimizer().Weights.Fragmentation, convey.ShouldEqual, 5)
		})

		convey.Convey("Then a no_baseline category without ranges gets a zero range", func() {
			c, ok := table.Category("Intermediate")
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(c.NoBaseline, convey.ShouldBeTrue)
			b, found := c.Baseline(13)
			convey.So(found, convey.ShouldBeTrue)
			convey.So(b, convey.ShouldEqual, 0)
		})
	})
}

func TestParseInvalid(t *testing.T) {
	cases := []struct {
		name  string
		yaml  string
		issue string
	}{
		{
			name: "gap between ranges",
			yaml: `
version: "1"
session_types:
  A:
    capacity: 10
    baseline_rules:
      - {guest_range: [0, 3], baseline_coaches: 0}
      - {guest_range: [5, 10], baseline_coaches: 1}
`,
			issue: "uncovered",
		},
		{
			name: "overlapping ranges",
			yaml: `
version: "1"
session_types:
  A:
    capacity: 10
    baseline_rules:
      - {guest_range: [0, 5], baseline_coaches: 0}
      - {guest_range: [5, 10], baseline_coaches: 1}
`,
			issue: "overlaps",
		},
		{
			name: "ranges short of capacity",
			yaml: `
version: "1"
session_types:
  A:
    capacity: 10
    baseline_rules:
      - {guest_range: [0, 8], baseline_coaches: 1}
`,
			issue: "capacity is 10",
		},
		{
			name: "no_baseline with coaches",
			yaml: `
version: "1"
session_types:
  A:
    capacity: 10
    no_baseline: true
    baseline_rules:
      - {guest_range: [0, 10], baseline_coaches: 1}
`,
			issue: "no_baseline",
		},
		{
			name: "missing version",
			yaml: `
session_types:
  A:
    capacity: 10
    baseline_rules:
      - {guest_range: [0, -1], baseline_coaches: 1}
`,
			issue: "version",
		},
		{
			name: "identical sides",
			yaml: `
version: "1"
session_types:
  A:
    capacity: 10
    baseline_rules:
      - {guest_range: [0, -1], baseline_coaches: 1}
operational_settings:
  sides: [LEFT, LEFT]
`,
			issue: "distinct",
		},
	}

	convey.Convey("Given malformed rule tables", t, func() {
		for _, tc := range cases {
			convey.Convey("When the table has a "+tc.name, func() {
				table, err := rules.Parse([]byte(tc.yaml))

				convey.Convey("Then it is rejected with a configuration error", func() {
					convey.So(table, convey.ShouldBeNil)
					convey.So(errors.Is(err, rules.ErrInvalidRuleTable), convey.ShouldBeTrue)
					var cfgErr *rules.ConfigurationError
					convey.So(errors.As(err, &cfgErr), convey.ShouldBeTrue)
					convey.So(err.Error(), convey.ShouldContainSubstring, tc.issue)
				})
			})
		}

		convey.Convey("When the YAML itself is broken", func() {
			_, err := rules.Parse([]byte("version: [unterminated"))

			convey.Convey("Then it is a load error", func() {
				convey.So(errors.Is(err, rules.ErrLoadRuleTable), convey.ShouldBeTrue)
			})
		})
	})
}

func TestLoadFileAndFingerprint(t *testing.T) {
	convey.Convey("Given a rule table on disk", t, func() {
		path := filepath.Join(t.TempDir(), "rules.yaml")
		convey.So(os.WriteFile(path, []byte(minimalYAML), 0o600), convey.ShouldBeNil)

		a, err := rules.LoadFile(context.Background(), path)
		convey.So(err, convey.ShouldBeNil)
		b, err := rules.Parse([]byte(minimalYAML))
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then identical content has identical fingerprints", func() {
			convey.So(a.Fingerprint(), convey.ShouldEqual, b.Fingerprint())
			convey.So(a.Fingerprint(), convey.ShouldNotEqual, rules.MustDefault().Fingerprint())
		})

		convey.Convey("When the file does not exist", func() {
			_, err := rules.LoadFile(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
			convey.So(errors.Is(err, rules.ErrLoadRuleTable), convey.ShouldBeTrue)
		})
	})
}

func TestRegistrySwap(t *testing.T) {
	convey.Convey("Given a registry serving the default table", t, func() {
		reg := rules.NewRegistry(rules.MustDefault())
		next, err := rules.Parse([]byte(minimalYAML))
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("When readers snapshot while the table is swapped", func() {
			var wg sync.WaitGroup
			versions := make(chan string, 100)
			for i := 0; i < 100; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					versions <- reg.Current().Version()
				}()
			}
			old := reg.Swap(next)
			wg.Wait()
			close(versions)

			convey.Convey("Then every snapshot is one whole table", func() {
				convey.So(old.Version(), convey.ShouldEqual, "1.0")
				for v := range versions {
					convey.So(v, convey.ShouldBeIn, "1.0", "2.0")
				}
				convey.So(reg.Current().Version(), convey.ShouldEqual, "2.0")
				convey.So(reg.Swaps(), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When swapping in nil", func() {
			reg.Swap(nil)

			convey.Convey("Then the active table is kept", func() {
				convey.So(reg.Current().Version(), convey.ShouldEqual, "1.0")
			})
		})
	})
}

func TestPrivateLessonCoaches(t *testing.T) {
	convey.Convey("Given private lesson settings", t, func() {
		convey.So(rules.PrivateLessons{CoachesPerLesson: 1}.Coaches(3), convey.ShouldEqual, 3)
		convey.So(rules.PrivateLessons{CoachesPerLesson: 2}.Coaches(2), convey.ShouldEqual, 4)
		convey.So(rules.PrivateLessons{CoachesPerLesson: 1, CanGroup: true, LessonsPerCoach: 2}.Coaches(3), convey.ShouldEqual, 2)
		convey.So(rules.PrivateLessons{CoachesPerLesson: 1, CanGroup: false, LessonsPerCoach: 2}.Coaches(3), convey.ShouldEqual, 3)
		convey.So(rules.PrivateLessons{CoachesPerLesson: 1}.Coaches(0), convey.ShouldEqual, 0)
	})
}
