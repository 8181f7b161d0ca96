package scoring_test

import (
	"testing"
	"time"

	"github.com/okian/scout/internal/domain/affiliate"
	scoring "github.com/okian/scout/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

var now = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func fixedClock() time.Time { return now }

func TestHealth(t *testing.T) {
	Convey("Given an aggregator with a fixed clock", t, func() {
		agg := scoring.NewAggregator(scoring.WithClock(fixedClock))

		Convey("When the set is empty", func() {
			So(agg.Health(nil), ShouldEqual, 0)
		})

		Convey("When two records split the signals", func() {
			records := []affiliate.Record{
				{ID: "a", EngagementRate: ptr(0.05), Email: ptr("a@example.com"), LastActive: ptr(now.AddDate(0, 0, -10))},
				{ID: "b", EngagementRate: ptr(0.03)},
			}

			Convey("Then the weighted score rounds to 32", func() {
				// 0.4*4 + 0.3*50 + 0.3*50 = 31.6
				So(agg.Health(records), ShouldEqual, 32)
			})
		})

		Convey("When every record is perfect", func() {
			records := []affiliate.Record{
				{ID: "a", EngagementRate: ptr(0.2), Email: ptr("a@example.com"), LastActive: ptr(now)},
			}

			Convey("Then the score stays within 0..100", func() {
				// 0.4*20 + 30 + 30 = 68
				So(agg.Health(records), ShouldEqual, 68)
			})
		})

		Convey("When engagement is extreme", func() {
			records := []affiliate.Record{
				{ID: "a", EngagementRate: ptr(9.0), Email: ptr("a@example.com"), LastActive: ptr(now)},
			}

			Convey("Then the score is clamped to 100", func() {
				So(agg.Health(records), ShouldEqual, 100)
			})
		})

		Convey("When activity is just outside the window", func() {
			records := []affiliate.Record{
				{ID: "a", LastActive: ptr(now.AddDate(0, 0, -31))},
			}
			So(agg.Health(records), ShouldEqual, 0)
		})

		Convey("When the weights are customised", func() {
			custom := scoring.NewAggregator(
				scoring.WithClock(fixedClock),
				scoring.WithWeights(0, 1, 0),
				scoring.WithActivityWindow(7),
			)
			records := []affiliate.Record{
				{ID: "a", Email: ptr("a@example.com")},
				{ID: "b"},
			}
			So(custom.Health(records), ShouldEqual, 50)
		})
	})
}

func TestPlatformBreakdown(t *testing.T) {
	Convey("Given records across platforms", t, func() {
		Convey("When the set is empty", func() {
			So(scoring.PlatformBreakdown(nil), ShouldResemble, scoring.Breakdown{})
		})

		Convey("When shares are thirds", func() {
			records := []affiliate.Record{
				{Platform: affiliate.PlatformTikTok},
				{Platform: affiliate.PlatformInstagram},
				{Platform: affiliate.PlatformYouTube},
			}

			Convey("Then each is rounded independently", func() {
				So(scoring.PlatformBreakdown(records), ShouldResemble, scoring.Breakdown{TikTok: 33, Instagram: 33, YouTube: 33})
			})
		})

		Convey("When an email-only record is present", func() {
			records := []affiliate.Record{
				{Platform: affiliate.PlatformTikTok},
				{Platform: affiliate.PlatformEmailOnly},
			}

			Convey("Then it counts toward the total only", func() {
				So(scoring.PlatformBreakdown(records), ShouldResemble, scoring.Breakdown{TikTok: 50})
			})
		})
	})
}

func TestSummarize(t *testing.T) {
	Convey("Given a small segment", t, func() {
		agg := scoring.NewAggregator(scoring.WithClock(fixedClock))
		records := []affiliate.Record{
			{ID: "a", Platform: affiliate.PlatformTikTok, FollowerCount: 1000, EngagementRate: ptr(0.05)},
			{ID: "b", Platform: affiliate.PlatformTikTok, FollowerCount: 2001, EngagementRate: ptr(0.024)},
		}

		s := agg.Summarize(records)

		So(s.Count, ShouldEqual, 2)
		So(s.AverageEngagement, ShouldEqual, 3.7)
		So(s.AverageFollowers, ShouldEqual, 1501)
		So(s.Platforms.TikTok, ShouldEqual, 100)
		So(scoring.AverageEngagement(nil), ShouldEqual, 0)
		So(scoring.AverageFollowers(nil), ShouldEqual, 0)
	})
}
