package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	dedupe "github.com/okian/coachplan/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		Convey("When creating a deduper with default options", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("Then it should start empty", func() {
				So(d, ShouldNotBeNil)
				So(d.Size(), ShouldEqual, 0)
			})
		})

		Convey("When claiming a new request", func() {
			d := dedupe.NewInMemoryDeduper()
			id, dup := d.Claim(ctx, "req-1", "plan-1")

			Convey("Then it should record the plan", func() {
				So(dup, ShouldBeFalse)
				So(id, ShouldEqual, "plan-1")
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And the request is claimed again", func() {
				id, dup := d.Claim(ctx, "req-1", "plan-2")

				Convey("Then it should return the first plan", func() {
					So(dup, ShouldBeTrue)
					So(id, ShouldEqual, "plan-1")
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And the request is released", func() {
				d.Release(ctx, "req-1")
				id, dup := d.Claim(ctx, "req-1", "plan-3")

				Convey("Then it can be claimed anew", func() {
					So(dup, ShouldBeFalse)
					So(id, ShouldEqual, "plan-3")
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And an unknown key is released", func() {
				d.Release(ctx, "nope")

				Convey("Then nothing changes", func() {
					So(d.Size(), ShouldEqual, 1)
				})
			})
		})

		Convey("When the deduper is bounded", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
			for i := 0; i < 5; i++ {
				d.Claim(ctx, fmt.Sprintf("req-%d", i), fmt.Sprintf("plan-%d", i))
			}

			Convey("Then the oldest keys are evicted", func() {
				So(d.Size(), ShouldEqual, 3)
				_, dup := d.Claim(ctx, "req-0", "again")
				So(dup, ShouldBeFalse)
				id, dup := d.Claim(ctx, "req-4", "again")
				So(dup, ShouldBeTrue)
				So(id, ShouldEqual, "plan-4")
			})
		})

		Convey("When a released key is claimed again in a bounded deduper", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(2))
			d.Claim(ctx, "a", "plan-a")
			d.Release(ctx, "a")
			d.Claim(ctx, "b", "plan-b")
			d.Claim(ctx, "a", "plan-a2")
			d.Claim(ctx, "c", "plan-c")

			Convey("Then eviction follows the latest claim", func() {
				So(d.Size(), ShouldEqual, 2)
				id, dup := d.Claim(ctx, "a", "x")
				So(dup, ShouldBeTrue)
				So(id, ShouldEqual, "plan-a2")
				_, dup = d.Claim(ctx, "b", "x")
				So(dup, ShouldBeFalse)
			})
		})

		Convey("When the deduper is unbounded", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
			for i := 0; i < 1000; i++ {
				d.Claim(ctx, fmt.Sprintf("req-%d", i), "p")
			}

			Convey("Then every key is kept", func() {
				So(d.Size(), ShouldEqual, 1000)
			})
		})

		Convey("When many goroutines claim the same key", func() {
			d := dedupe.NewInMemoryDeduper()
			var wg sync.WaitGroup
			var mu sync.Mutex
			fresh := 0
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					if _, dup := d.Claim(ctx, "shared", fmt.Sprintf("plan-%d", i)); !dup {
						mu.Lock()
						fresh++
						mu.Unlock()
					}
				}(i)
			}
			wg.Wait()

			Convey("Then exactly one claim wins", func() {
				So(fresh, ShouldEqual, 1)
				So(d.Size(), ShouldEqual, 1)
			})
		})
	})
}

func TestFingerprint(t *testing.T) {
	Convey("Given request encodings", t, func() {
		a := dedupe.Fingerprint([]byte(`{"sessions":[1]}`))
		b := dedupe.Fingerprint([]byte(`{"sessions":[1]}`))
		c := dedupe.Fingerprint([]byte(`{"sessions":[2]}`))

		Convey("Then equal encodings share a key", func() {
			So(a, ShouldEqual, b)
			So(a, ShouldNotEqual, c)
			So(len(a), ShouldEqual, 32)
		})
	})
}
