package optimizer

import (
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
)

func TestHorizonBudget(t *testing.T) {
	convey.Convey("Given a one minute budget", t, func() {
		total := time.Minute

		convey.Convey("Then dates solved in one wave each get the full budget", func() {
			convey.So(horizonBudget(total, 3, 4), convey.ShouldEqual, total)
			convey.So(horizonBudget(total, 4, 4), convey.ShouldEqual, total)
			convey.So(horizonBudget(total, 9, 0), convey.ShouldEqual, total)
		})

		convey.Convey("Then dates needing several waves share it", func() {
			convey.So(horizonBudget(total, 5, 4), convey.ShouldEqual, 30*time.Second)
			convey.So(horizonBudget(total, 7, 1), convey.ShouldEqual, total/7)
			convey.So(horizonBudget(total, 6, 2), convey.ShouldEqual, 20*time.Second)
		})
	})
}
