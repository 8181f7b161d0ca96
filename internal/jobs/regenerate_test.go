package jobs

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/scout/internal/adapters/repository"
	"github.com/okian/scout/internal/domain/affiliate"
	"github.com/okian/scout/internal/domain/segment"
	"github.com/okian/scout/internal/seed"
	"github.com/okian/scout/pkg/logger"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type failingStore struct {
	segs []segment.Segment
	err  error
}

func (f *failingStore) List(context.Context) []segment.Segment { return f.segs }

func (f *failingStore) Regenerate(_ context.Context, id string) (segment.Segment, error) {
	if id == "gone" {
		return segment.Segment{}, repository.ErrNotFound
	}
	return segment.Segment{}, f.err
}

func TestNewRegenerator(t *testing.T) {
	convey.Convey("Schedules are validated up front", t, func() {
		_, err := NewRegenerator(&failingStore{}, "whenever")
		convey.So(errors.Is(err, ErrInvalidSchedule), convey.ShouldBeTrue)

		r, err := NewRegenerator(&failingStore{}, "@hourly")
		convey.So(err, convey.ShouldBeNil)
		convey.So(r, convey.ShouldNotBeNil)
	})
}

func TestRunOnce(t *testing.T) {
	convey.Convey("Given a store with dynamic and manual segments", t, func() {
		ctx := context.Background()
		records := seed.Mock(now)
		affs, err := repository.NewMemoryAffiliates(ctx, records)
		convey.So(err, convey.ShouldBeNil)
		store := repository.NewMemorySegmentStore(affs, repository.WithClock(func() time.Time { return now }))

		tpl, ok := segment.FindTemplate(segment.TemplateTikTokGMV)
		convey.So(ok, convey.ShouldBeTrue)
		dyn, err := store.ActivateTemplate(ctx, tpl)
		convey.So(err, convey.ShouldBeNil)
		_, err = store.CreateManual(ctx, "picked", []string{"aff-1", "aff-2"})
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Only dynamic segments are refreshed", func() {
			r, err := NewRegenerator(store, "@daily")
			convey.So(err, convey.ShouldBeNil)
			n, err := r.RunOnce(ctx)
			convey.So(err, convey.ShouldBeNil)
			convey.So(n, convey.ShouldEqual, 1)
		})

		convey.Convey("New directory rows join the segment on regeneration", func() {
			before, _ := store.Get(ctx, dyn.ID)
			extra := records[0]
			extra.ID = "aff-new"
			extra.Platform = affiliate.PlatformTikTok
			extra.GMVTier = affiliate.GMV100KPlus
			convey.So(affs.Replace(ctx, append(records, extra)), convey.ShouldBeNil)

			r, _ := NewRegenerator(store, "@daily")
			_, err := r.RunOnce(ctx)
			convey.So(err, convey.ShouldBeNil)
			after, _ := store.Get(ctx, dyn.ID)
			convey.So(after.Has("aff-new"), convey.ShouldBeTrue)
			convey.So(len(after.MemberIDs), convey.ShouldEqual, len(before.MemberIDs)+1)
		})

		convey.Convey("A cancelled context stops the pass", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			r, _ := NewRegenerator(store, "@daily")
			_, err := r.RunOnce(cctx)
			convey.So(errors.Is(err, context.Canceled), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Failures are joined and deleted segments skipped", t, func() {
		boom := errors.New("boom")
		fs := &failingStore{
			err: boom,
			segs: []segment.Segment{
				{ID: "gone", Type: segment.TypeDynamic},
				{ID: "bad", Type: segment.TypeDynamic},
				{ID: "manual", Type: segment.TypeManual},
			},
		}
		r, _ := NewRegenerator(fs, "@daily")
		n, err := r.RunOnce(context.Background())
		convey.So(n, convey.ShouldEqual, 0)
		convey.So(errors.Is(err, boom), convey.ShouldBeTrue)
		convey.So(errors.Is(err, repository.ErrNotFound), convey.ShouldBeFalse)
	})
}

func TestStartStop(t *testing.T) {
	convey.Convey("Start is idempotent and Stop returns promptly", t, func() {
		ctx := context.Background()
		r, err := NewRegenerator(&failingStore{}, "@every 1h")
		convey.So(err, convey.ShouldBeNil)
		convey.So(r.Start(ctx), convey.ShouldBeNil)
		convey.So(r.Start(ctx), convey.ShouldBeNil)

		stopCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		convey.So(r.Stop(stopCtx), convey.ShouldBeNil)
		convey.So(r.Stop(stopCtx), convey.ShouldBeNil)
	})
}
