package source

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/scout/internal/domain/affiliate"
	"github.com/okian/scout/internal/domain/filter"
)

func clock() time.Time { return fixedNow }

func TestLocalSource(t *testing.T) {
	Convey("Given a local source over 137 records", t, func() {
		ctx := context.Background()
		records := dataset(137)
		src := NewLocalSource(records, WithClock(clock))
		spec := filter.Default()
		spec.FollowerRange = filter.IntRange{Min: 0, Max: filter.FollowerMax}

		Convey("pages are full until the last, which is short", func() {
			p0, err := src.FetchPage(ctx, &spec, 0)
			So(err, ShouldBeNil)
			So(len(p0.Rows), ShouldEqual, filter.PageSize)
			So(*p0.TotalCount, ShouldEqual, 137)

			p2, err := src.FetchPage(ctx, &spec, 2)
			So(err, ShouldBeNil)
			So(len(p2.Rows), ShouldEqual, 37)

			p3, err := src.FetchPage(ctx, &spec, 3)
			So(err, ShouldBeNil)
			So(p3.Rows, ShouldBeEmpty)
			So(*p3.TotalCount, ShouldEqual, 137)
		})

		Convey("concatenated pages equal the sorted filter result", func() {
			var got []string
			for page := 0; ; page++ {
				p, err := src.FetchPage(ctx, &spec, page)
				So(err, ShouldBeNil)
				for _, r := range p.Rows {
					got = append(got, r.ID)
				}
				if len(p.Rows) < filter.PageSize {
					break
				}
			}
			want := filter.Select(records, &spec, fixedNow)
			filter.SortRecords(want, spec.Sort)
			So(len(got), ShouldEqual, len(want))
			for i := range want {
				So(got[i], ShouldEqual, want[i].ID)
			}
		})

		Convey("followers sort is descending with id tie break", func() {
			p, err := src.FetchPage(ctx, &spec, 0)
			So(err, ShouldBeNil)
			for i := 1; i < len(p.Rows); i++ {
				prev, cur := p.Rows[i-1], p.Rows[i]
				So(prev.FollowerCount >= cur.FollowerCount, ShouldBeTrue)
				if prev.FollowerCount == cur.FollowerCount {
					So(prev.ID < cur.ID, ShouldBeTrue)
				}
			}
		})

		Convey("the default follower floor excludes small accounts", func() {
			def := filter.Default()
			p, err := src.FetchPage(ctx, &def, 0)
			So(err, ShouldBeNil)
			for _, r := range p.Rows {
				So(r.FollowerCount, ShouldBeGreaterThanOrEqualTo, filter.FollowerMin)
			}
		})

		Convey("a custom page size is honored", func() {
			small := NewLocalSource(records, WithClock(clock), WithPageSize(10))
			p, err := small.FetchPage(ctx, &spec, 1)
			So(err, ShouldBeNil)
			So(len(p.Rows), ShouldEqual, 10)
		})

		Convey("negative pages are rejected", func() {
			_, err := src.FetchPage(ctx, &spec, -1)
			So(errors.Is(err, ErrInvalidPage), ShouldBeTrue)
		})

		Convey("an empty collection yields an empty last page with total 0", func() {
			empty := NewLocalSource(staticCollection{}, WithClock(clock))
			p, err := empty.FetchPage(ctx, &spec, 0)
			So(err, ShouldBeNil)
			So(p.Rows, ShouldBeEmpty)
			So(*p.TotalCount, ShouldEqual, 0)
		})

		Convey("the engagement boundary is inclusive at the converted percentage", func() {
			rate := 0.07
			one := staticCollection{{ID: "x", Platform: affiliate.PlatformTikTok, FollowerCount: 5000, EngagementRate: &rate, GMVTier: affiliate.GMVNone}}
			s := filter.Default()
			s.EngagementRange = filter.FloatRange{Min: 7, Max: 7}
			p, err := NewLocalSource(one, WithClock(clock)).FetchPage(ctx, &s, 0)
			So(err, ShouldBeNil)
			So(len(p.Rows), ShouldEqual, 1)
		})
	})
}
