package model_test

import (
	"context"
	"testing"

	"github.com/okian/scout/internal/domain/affiliate"
	"github.com/okian/scout/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestFetchResultLast(t *testing.T) {
	Convey("Given fetched pages", t, func() {
		full := model.FetchResult{Rows: make([]affiliate.Record, 3)}
		short := model.FetchResult{Rows: make([]affiliate.Record, 2)}
		empty := model.FetchResult{}

		So(full.Last(3), ShouldBeFalse)
		So(short.Last(3), ShouldBeTrue)
		So(empty.Last(3), ShouldBeTrue)
	})
}

func TestFetchJobContext(t *testing.T) {
	Convey("Given a job without a context", t, func() {
		job := model.FetchJob{}
		So(job.Context(), ShouldEqual, context.Background())
	})

	Convey("Given a cancelled generation", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		job := model.FetchJob{Ctx: ctx}
		cancel()
		So(job.Context().Err(), ShouldNotBeNil)
	})
}
