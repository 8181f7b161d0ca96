package service_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/scout/internal/adapters/repository"
	service "github.com/okian/scout/internal/app"
	"github.com/okian/scout/internal/domain/affiliate"
	"github.com/okian/scout/internal/domain/filter"
	"github.com/okian/scout/internal/domain/segment"
	"github.com/okian/scout/internal/export"
	"github.com/okian/scout/internal/seed"
	"github.com/okian/scout/pkg/logger"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func started(t *testing.T, opts ...service.Option) *service.Service {
	t.Helper()
	base := []service.Option{
		service.WithRecords(seed.Mock(now)),
		service.WithClock(func() time.Time { return now }),
		service.WithWorkerCount(2),
		service.WithDebounce(0),
	}
	svc := service.New(append(base, opts...)...)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = svc.Stop(context.Background()) })
	return svc
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithRecords(seed.Mock(now)), service.WithWorkerCount(1))

		Convey("Operations fail before Start", func() {
			_, err := svc.ListSegments(ctx)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			So(svc.GetStats()["started"], ShouldBeFalse)
		})

		Convey("Start and Stop are idempotent", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			stats := svc.GetStats()
			So(stats["started"], ShouldBeTrue)
			So(stats["affiliates"], ShouldEqual, seed.MockCount)
			So(stats["source"], ShouldEqual, "local")
			So(svc.Stop(ctx), ShouldBeNil)
			So(svc.Stop(ctx), ShouldBeNil)
		})

		Convey("An invalid regeneration schedule fails Start", func() {
			bad := service.New(service.WithRegenerateSchedule("sometimes"))
			So(bad.Start(ctx), ShouldNotBeNil)
		})
	})
}

func TestService_QueryPage(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := started(t)

		Convey("The default filter pages through the whole directory", func() {
			spec := filter.Default()
			first, err := svc.QueryPage(ctx, &spec, 0)
			So(err, ShouldBeNil)
			So(len(first.Rows), ShouldEqual, filter.PageSize)
			So(*first.TotalCount, ShouldEqual, seed.MockCount)

			second, err := svc.QueryPage(ctx, &spec, 1)
			So(err, ShouldBeNil)
			So(len(second.Rows), ShouldEqual, seed.MockCount-filter.PageSize)
		})

		Convey("Invalid filters are rejected", func() {
			spec := filter.Default()
			spec.FollowerRange.Min, spec.FollowerRange.Max = 10, 1
			_, err := svc.QueryPage(ctx, &spec, 0)
			So(errors.Is(err, filter.ErrInvalidFilter), ShouldBeTrue)
		})
	})
}

func TestService_Segments(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := started(t)

		Convey("Activating a template creates a scored dynamic segment", func() {
			seg, replayed, err := svc.ActivateTemplate(ctx, segment.TemplateTikTokGMV, "")
			So(err, ShouldBeNil)
			So(replayed, ShouldBeFalse)
			So(seg.Type, ShouldEqual, segment.TypeDynamic)
			So(seg.Summary.Count, ShouldEqual, len(seg.MemberIDs))
			So(seg.Summary.Platforms.TikTok, ShouldEqual, 100)
		})

		Convey("Unknown templates are reported", func() {
			_, _, err := svc.ActivateTemplate(ctx, "nope", "")
			So(errors.Is(err, service.ErrTemplateNotFound), ShouldBeTrue)
		})

		Convey("A repeated idempotency key replays the first segment", func() {
			first, _, err := svc.ActivateTemplate(ctx, segment.TemplateSkincareNano, "k-1")
			So(err, ShouldBeNil)
			again, replayed, err := svc.ActivateTemplate(ctx, segment.TemplateSkincareNano, "k-1")
			So(err, ShouldBeNil)
			So(replayed, ShouldBeTrue)
			So(again.ID, ShouldEqual, first.ID)

			list, err := svc.ListSegments(ctx)
			So(err, ShouldBeNil)
			So(len(list), ShouldEqual, 1)
		})

		Convey("Members can be removed, moved, sorted and exported", func() {
			a, err := svc.CreateSegment(ctx, "A", []string{"aff-1", "aff-2", "aff-3"})
			So(err, ShouldBeNil)
			b, err := svc.CreateSegment(ctx, "B", []string{"aff-4"})
			So(err, ShouldBeNil)

			from, to, err := svc.MoveMembers(ctx, a.ID, b.ID, []string{"aff-2"})
			So(err, ShouldBeNil)
			So(from.MemberIDs, ShouldResemble, []string{"aff-1", "aff-3"})
			So(to.MemberIDs, ShouldResemble, []string{"aff-4", "aff-2"})

			removed, err := svc.RemoveMembers(ctx, a.ID, []string{"aff-1"})
			So(err, ShouldBeNil)
			So(removed.MemberIDs, ShouldResemble, []string{"aff-3"})

			detail, err := svc.Segment(ctx, b.ID, "followers", true)
			So(err, ShouldBeNil)
			So(detail.Members[0].ID, ShouldEqual, "aff-4")
			So(detail.Summary.Count, ShouldEqual, 2)

			out, err := svc.ExportSegment(ctx, b.ID, export.FormatCSV, "", false)
			So(err, ShouldBeNil)
			So(out.Filename, ShouldEqual, export.Filename(export.FormatCSV, now))
			So(string(out.Body), ShouldStartWith, "Handle,Platform,Followers,Engagement %,GMV Tier,Email\n")
			rows := strings.Split(strings.TrimSpace(string(out.Body)), "\n")
			So(rows[1], ShouldStartWith, "@creator_4,")
			So(rows[2], ShouldStartWith, "@creator_2,")

			sorted, err := svc.ExportSegment(ctx, b.ID, export.FormatCSV, "followers", false)
			So(err, ShouldBeNil)
			rows = strings.Split(strings.TrimSpace(string(sorted.Body)), "\n")
			So(rows[1], ShouldStartWith, "@creator_2,")
			So(rows[2], ShouldStartWith, "@creator_4,")

			_, err = svc.ExportSegment(ctx, b.ID, export.FormatCSV, "shoe size", false)
			So(errors.Is(err, service.ErrInvalidSort), ShouldBeTrue)

			_, err = svc.Segment(ctx, b.ID, "shoe size", false)
			So(errors.Is(err, service.ErrInvalidSort), ShouldBeTrue)
		})

		Convey("A discovery filter can be saved as a dynamic segment", func() {
			spec := filter.Default()
			spec.Platform = affiliate.PlatformYouTube
			saved, err := svc.CreateFilterSegment(ctx, "YouTube picks", &spec)
			So(err, ShouldBeNil)
			So(saved.Type, ShouldEqual, segment.TypeDynamic)
			So(saved.TemplateID, ShouldBeEmpty)
			So(saved.MemberIDs, ShouldHaveLength, 26)
			So(saved.Summary.Count, ShouldEqual, 26)

			again, err := svc.RegenerateSegment(ctx, saved.ID)
			So(err, ShouldBeNil)
			So(again.MemberIDs, ShouldResemble, saved.MemberIDs)

			spec.FollowerRange = filter.IntRange{Min: 10, Max: 1}
			_, err = svc.CreateFilterSegment(ctx, "broken", &spec)
			So(errors.Is(err, filter.ErrInvalidFilter), ShouldBeTrue)
		})

		Convey("Unknown segments are not found everywhere", func() {
			_, err := svc.Segment(ctx, "missing", "", false)
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			So(errors.Is(svc.DeleteSegment(ctx, "missing"), repository.ErrNotFound), ShouldBeTrue)
			_, err = svc.RegenerateSegment(ctx, "missing")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			_, err = svc.ExportSegment(ctx, "missing", export.FormatXLSX, "", false)
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("Replacing the directory leaves snapshots alone until regenerated", func() {
			seg, _, err := svc.ActivateTemplate(ctx, segment.TemplateTikTokGMV, "")
			So(err, ShouldBeNil)
			So(svc.ReplaceAffiliates(ctx, seed.Mock(now)[:10]), ShouldBeNil)

			kept, err := svc.Segment(ctx, seg.ID, "", false)
			So(err, ShouldBeNil)
			So(kept.MemberIDs, ShouldResemble, seg.MemberIDs)
			So(kept.Summary.Count, ShouldBeLessThanOrEqualTo, 10)

			fresh, err := svc.RegenerateSegment(ctx, seg.ID)
			So(err, ShouldBeNil)
			So(len(fresh.MemberIDs), ShouldBeLessThan, len(seg.MemberIDs))
		})
	})
}
