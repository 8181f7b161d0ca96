package seed

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/scout/internal/domain/affiliate"
	"github.com/okian/scout/internal/domain/filter"
)

func TestMock(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	Convey("Given the demo directory", t, func() {
		records := Mock(now)

		Convey("It has a fixed size and unique ids", func() {
			So(len(records), ShouldEqual, MockCount)
			seen := map[string]bool{}
			for _, r := range records {
				So(seen[r.ID], ShouldBeFalse)
				seen[r.ID] = true
			}
		})

		Convey("Record fields follow the index pattern", func() {
			r := records[7]
			So(r.ID, ShouldEqual, "aff-7")
			So(r.Handle, ShouldEqual, "@creator_7")
			So(r.Platform, ShouldEqual, affiliate.PlatformInstagram)
			So(r.FollowerCount, ShouldEqual, 5000+7*2000+2*10000)
			So(r.EngagementPercent(), ShouldAlmostEqual, 5.5, 1e-9)
			So(r.GMVTier, ShouldEqual, affiliate.GMV5KTo25K)
			So(r.Niche, ShouldResemble, []string{"Beauty", "Skincare"})
			So(r.HasEmail(), ShouldBeFalse)
			So(r.LastActive, ShouldNotBeNil)
			So(*r.LastActive, ShouldEqual, now.Add(-45*24*time.Hour))
		})

		Convey("Every third record has an email and every fifth has no activity", func() {
			So(records[0].HasEmail(), ShouldBeTrue)
			So(records[0].EmailOrEmpty(), ShouldEqual, "c0@example.com")
			So(records[0].LastActive, ShouldBeNil)
			So(records[0].Verified, ShouldBeTrue)
		})

		Convey("Engagement stays inside the filter range", func() {
			for _, r := range records {
				So(r.EngagementPercent(), ShouldBeBetweenOrEqual, 2, filter.EngagementMax)
			}
		})

		Convey("Default filters match every record", func() {
			defaults := filter.Default()
			So(len(filter.Apply(records, &defaults, now)), ShouldEqual, MockCount)
		})
	})
}

func TestGenerator(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	Convey("Given a seeded generator", t, func() {
		cfg := DefaultGeneratorConfig()
		cfg.Seed = 42
		cfg.Now = now

		Convey("The same seed yields the same dataset", func() {
			a := NewGenerator(cfg).Generate(50)
			b := NewGenerator(cfg).Generate(50)
			So(a, ShouldResemble, b)
		})

		Convey("Generated records are well formed", func() {
			records := NewGenerator(cfg).Generate(200)
			So(len(records), ShouldEqual, 200)
			for _, r := range records {
				So(r.ID, ShouldNotBeEmpty)
				So(strings.HasPrefix(r.Handle, "@"), ShouldBeTrue)
				So(r.Platform.Valid(), ShouldBeTrue)
				So(r.GMVTier.Valid(), ShouldBeTrue)
				So(r.FollowerCount, ShouldBeBetweenOrEqual, 500, 12_000_000)
				So(len(r.Niche), ShouldBeLessThanOrEqualTo, cfg.MaxNiches)
				if r.EngagementRate != nil {
					So(r.EngagementPercent(), ShouldBeBetweenOrEqual, 0, filter.EngagementMax)
				}
				if r.LastActive != nil {
					So(r.LastActive.After(now), ShouldBeFalse)
				}
			}
		})

		Convey("A negative count yields an empty dataset", func() {
			So(NewGenerator(cfg).Generate(-1), ShouldBeEmpty)
		})

		Convey("Optional fields honour zero chances", func() {
			cfg.EmailChance = 0
			cfg.ActiveChance = 0
			cfg.EngagementChance = 0
			for _, r := range NewGenerator(cfg).Generate(30) {
				So(r.Email, ShouldBeNil)
				So(r.LastActive, ShouldBeNil)
				So(r.EngagementRate, ShouldBeNil)
			}
		})
	})
}

func TestDatasetFiles(t *testing.T) {
	Convey("Given a dataset on disk", t, func() {
		now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		path := filepath.Join(t.TempDir(), "affiliates.json")
		records := Mock(now)

		So(SaveFile(path, records), ShouldBeNil)

		Convey("Loading returns the same records", func() {
			loaded, err := LoadFile(path)
			So(err, ShouldBeNil)
			So(len(loaded), ShouldEqual, len(records))
			So(loaded[3].ID, ShouldEqual, "aff-3")
			So(loaded[3].EngagementPercent(), ShouldEqual, records[3].EngagementPercent())
			So(loaded[0].LastActive, ShouldBeNil)
		})

		Convey("A missing file is a dataset error", func() {
			_, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"))
			So(errors.Is(err, ErrDataset), ShouldBeTrue)
		})

		Convey("Records without ids are rejected", func() {
			_, err := Decode(bytes.NewBufferString(`[{"handle":"@x"}]`))
			So(errors.Is(err, ErrDataset), ShouldBeTrue)
		})

		Convey("Records breaking the field rules are rejected", func() {
			cases := []string{
				`[{"id":"x","platform":"tiktok","gmv_tier":"none","follower_count":-5}]`,
				`[{"id":"x","platform":"tiktok","gmv_tier":"bogus"}]`,
				`[{"id":"x","platform":"myspace","gmv_tier":"none"}]`,
				`[{"id":"x","platform":"tiktok","gmv_tier":"none","engagement_rate":-0.1}]`,
				`[{"id":"x","follower_count":-5,"gmv_tier":"bogus","platform":"myspace"}]`,
			}
			for _, body := range cases {
				records, err := Decode(bytes.NewBufferString(body))
				So(errors.Is(err, ErrDataset), ShouldBeTrue)
				So(records, ShouldBeNil)
			}

			records, err := Decode(bytes.NewBufferString(`[{"id":"x","platform":"email_only","gmv_tier":"100k_plus","engagement_rate":null}]`))
			So(err, ShouldBeNil)
			So(records, ShouldHaveLength, 1)
		})

		Convey("Generated records pass the same rules", func() {
			var buf bytes.Buffer
			cfg := DefaultGeneratorConfig()
			cfg.Seed = 7
			cfg.Now = now
			So(Encode(&buf, NewGenerator(cfg).Generate(200)), ShouldBeNil)
			_, err := Decode(&buf)
			So(err, ShouldBeNil)
		})

		Convey("An empty collection encodes as an empty array", func() {
			var buf bytes.Buffer
			So(Encode(&buf, nil), ShouldBeNil)
			So(strings.TrimSpace(buf.String()), ShouldEqual, "[]")
		})
	})
}
