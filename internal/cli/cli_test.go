package cli

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/xuri/excelize/v2"

	"github.com/okian/scout/internal/adapters/http/api"
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

func execute(stdin string, args ...string) (string, error) {
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func lines(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func expectedIDs(records []affiliate.Record, spec filter.Spec) []string {
	matched := filter.Select(records, &spec, time.Now().UTC())
	filter.SortRecords(matched, spec.Sort)
	ids := make([]string, len(matched))
	for i := range matched {
		ids[i] = matched[i].ID
	}
	return ids
}

func TestVersion(t *testing.T) {
	Convey("version prints the build information", t, func() {
		out, err := execute("", "version")
		So(err, ShouldBeNil)
		So(out, ShouldStartWith, "scoutctl "+Version)
	})
}

func TestGenerate(t *testing.T) {
	Convey("Given the generate command", t, func() {
		Convey("It writes the requested number of records to stdout", func() {
			out, err := execute("", "generate", "--count", "25", "--seed", "3")
			So(err, ShouldBeNil)
			records, err := seed.Decode(strings.NewReader(out))
			So(err, ShouldBeNil)
			So(records, ShouldHaveLength, 25)
		})

		Convey("The same seed yields the same ids and handles", func() {
			a, err := execute("", "generate", "--count", "10", "--seed", "9")
			So(err, ShouldBeNil)
			b, err := execute("", "generate", "--count", "10", "--seed", "9")
			So(err, ShouldBeNil)
			ra, _ := seed.Decode(strings.NewReader(a))
			rb, _ := seed.Decode(strings.NewReader(b))
			for i := range ra {
				So(rb[i].ID, ShouldEqual, ra[i].ID)
				So(rb[i].Handle, ShouldEqual, ra[i].Handle)
			}
		})

		Convey("--mock writes the demo directory", func() {
			out, err := execute("", "generate", "--mock")
			So(err, ShouldBeNil)
			records, err := seed.Decode(strings.NewReader(out))
			So(err, ShouldBeNil)
			So(records, ShouldHaveLength, seed.MockCount)
			So(records[0].ID, ShouldEqual, "aff-0")
		})

		Convey("--output writes a file the other commands can load", func() {
			path := filepath.Join(t.TempDir(), "affiliates.json")
			_, err := execute("", "generate", "--count", "40", "-o", path)
			So(err, ShouldBeNil)

			records, err := seed.LoadFile(path)
			So(err, ShouldBeNil)
			So(records, ShouldHaveLength, 40)

			out, err := execute("", "filter", "--dataset", path, "--format", "ids")
			So(err, ShouldBeNil)
			So(lines(out), ShouldResemble, expectedIDs(records, filter.Default()))
		})

		Convey("Invalid counts and chances are usage errors", func() {
			_, err := execute("", "generate", "--count", "0")
			So(errors.Is(err, ErrUsage), ShouldBeTrue)
			_, err = execute("", "generate", "--email-chance", "1.5")
			So(errors.Is(err, ErrUsage), ShouldBeTrue)
		})
	})
}

func TestFilter(t *testing.T) {
	Convey("Given the filter command over the demo directory", t, func() {
		mock := seed.Mock(time.Now().UTC())

		Convey("A template prints its members in sort order", func() {
			tmpl, ok := segment.FindTemplate(segment.TemplateTikTokGMV)
			So(ok, ShouldBeTrue)

			out, err := execute("", "filter", "--template", segment.TemplateTikTokGMV)
			So(err, ShouldBeNil)
			ids := lines(out)
			So(ids, ShouldNotBeEmpty)
			So(ids, ShouldResemble, expectedIDs(mock, tmpl.FilterRules))
		})

		Convey("A spec read from stdin is applied on top of the defaults", func() {
			out, err := execute(`{"platform":"youtube","sort":"engagement"}`, "filter", "--spec", "-")
			So(err, ShouldBeNil)

			spec := filter.Default()
			spec.Platform = affiliate.PlatformYouTube
			spec.Sort = filter.SortEngagement
			So(lines(out), ShouldResemble, expectedIDs(mock, spec))
		})

		Convey("--limit truncates and json prints records", func() {
			out, err := execute("", "filter", "--format", "json", "--limit", "3")
			So(err, ShouldBeNil)
			records, err := seed.Decode(strings.NewReader(out))
			So(err, ShouldBeNil)
			So(records, ShouldHaveLength, 3)
		})

		Convey("summary reports the match count against the dataset size", func() {
			out, err := execute("", "filter", "--template", segment.TemplateEmailVerifiedMicro, "--format", "summary")
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "matched:")
			So(out, ShouldContainSubstring, "of 80")
			So(out, ShouldContainSubstring, "health:")
		})

		Convey("Bad input is rejected", func() {
			_, err := execute("", "filter", "--template", "nope")
			So(errors.Is(err, ErrUnknownTemplate), ShouldBeTrue)

			_, err = execute("{}", "filter", "--template", segment.TemplateTikTokGMV, "--spec", "-")
			So(errors.Is(err, ErrUsage), ShouldBeTrue)

			_, err = execute(`{"platform":"myspace"}`, "filter", "--spec", "-")
			So(errors.Is(err, filter.ErrInvalidFilter), ShouldBeTrue)

			_, err = execute("", "filter", "--format", "yaml")
			So(errors.Is(err, ErrUsage), ShouldBeTrue)
		})
	})
}

func TestExport(t *testing.T) {
	Convey("Given the export command", t, func() {
		dir := t.TempDir()
		tmpl, _ := segment.FindTemplate(segment.TemplateSkincareNano)
		want := expectedIDs(seed.Mock(time.Now().UTC()), tmpl.FilterRules)

		Convey("CSV has a header and one row per member", func() {
			path := filepath.Join(dir, "nano.csv")
			out, err := execute("", "export", "--template", segment.TemplateSkincareNano, "-o", path)
			So(err, ShouldBeNil)
			So(strings.TrimSpace(out), ShouldEqual, path)

			f, err := os.Open(path)
			So(err, ShouldBeNil)
			defer f.Close()
			rows, err := csv.NewReader(f).ReadAll()
			So(err, ShouldBeNil)
			So(rows, ShouldHaveLength, len(want)+1)
			So(rows[0], ShouldResemble, export.Header)
		})

		Convey("XLSX has the same rows on its single sheet", func() {
			path := filepath.Join(dir, "nano.xlsx")
			_, err := execute("", "export", "--template", segment.TemplateSkincareNano, "--format", "xlsx", "-o", path)
			So(err, ShouldBeNil)

			book, err := excelize.OpenFile(path)
			So(err, ShouldBeNil)
			defer book.Close()
			rows, err := book.GetRows(export.SheetName)
			So(err, ShouldBeNil)
			So(rows, ShouldHaveLength, len(want)+1)
		})

		Convey("Unknown formats are rejected", func() {
			_, err := execute("", "export", "--format", "pdf", "-o", filepath.Join(dir, "x.pdf"))
			So(errors.Is(err, export.ErrUnsupportedFormat), ShouldBeTrue)
		})
	})
}

func TestSmoke(t *testing.T) {
	Convey("Given a running server", t, func() {
		svc := service.New(
			service.WithRecords(seed.Mock(time.Now().UTC())),
			service.WithWorkerCount(2),
			service.WithPageSize(5),
			service.WithDebounce(0),
		)
		So(svc.Start(context.Background()), ShouldBeNil)
		defer func() { _ = svc.Stop(context.Background()) }()

		mux := http.NewServeMux()
		api.NewServer(svc, svc).Register(context.Background(), mux)
		ts := httptest.NewServer(mux)
		defer ts.Close()

		Convey("smoke passes and removes the segments it created", func() {
			out, err := execute("", "smoke", "--url", ts.URL, "--workers", "2", "--timeout", "10s")
			So(err, ShouldBeNil)
			So(out, ShouldStartWith, "smoke ok: 4 templates, 4 segments verified")

			segs, err := svc.ListSegments(context.Background())
			So(err, ShouldBeNil)
			So(segs, ShouldBeEmpty)
		})

		Convey("--keep leaves the segments in place", func() {
			_, err := execute("", "smoke", "--url", ts.URL, "--keep")
			So(err, ShouldBeNil)

			segs, err := svc.ListSegments(context.Background())
			So(err, ShouldBeNil)
			So(segs, ShouldHaveLength, len(segment.Templates()))
		})

		Convey("A bad URL or worker count is a usage error", func() {
			_, err := execute("", "smoke", "--url", "::nope")
			So(errors.Is(err, ErrUsage), ShouldBeTrue)
			_, err = execute("", "smoke", "--url", ts.URL, "--workers", "0")
			So(errors.Is(err, ErrUsage), ShouldBeTrue)
		})
	})

	Convey("Given a server that is down", t, func() {
		ts := httptest.NewServer(http.NotFoundHandler())
		ts.Close()

		Convey("smoke fails the health check", func() {
			_, err := execute("", "smoke", "--url", ts.URL, "--timeout", "1s")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "health check")
		})
	})
}
