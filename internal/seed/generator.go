package seed

import (
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/okian/scout/internal/domain/affiliate"
	"github.com/okian/scout/internal/domain/filter"
)

// GeneratorConfig tunes synthetic datasets.
type GeneratorConfig struct {
	Seed             int64
	EmailChance      float64 // probability of a non-empty email
	EngagementChance float64 // probability of a known engagement rate
	ActiveChance     float64 // probability of a last active date
	EmailOnlyChance  float64 // probability of the email_only platform
	MaxNiches        int
	Now              time.Time
}

// DefaultGeneratorConfig returns the settings used by scoutctl generate.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:             1,
		EmailChance:      0.45,
		EngagementChance: 0.9,
		ActiveChance:     0.8,
		EmailOnlyChance:  0.05,
		MaxNiches:        3,
		Now:              time.Now().UTC(),
	}
}

// followerBands skew generated audiences toward small accounts.
var followerBands = []struct {
	weight   float32
	min, max int
}{
	{weight: 35, min: 500, max: 10_000},
	{weight: 35, min: 10_000, max: 100_000},
	{weight: 20, min: 100_000, max: 1_000_000},
	{weight: 10, min: 1_000_000, max: 12_000_000},
}

var gmvWeights = []float32{40, 25, 18, 12, 5}

// Generator produces reproducible synthetic affiliates.
type Generator struct {
	cfg   GeneratorConfig
	faker *gofakeit.Faker
}

// NewGenerator creates a generator; equal configs produce equal datasets.
func NewGenerator(cfg GeneratorConfig) *Generator {
	if cfg.MaxNiches < 1 {
		cfg.MaxNiches = 1
	}
	if cfg.Now.IsZero() {
		cfg.Now = time.Now().UTC()
	}
	return &Generator{cfg: cfg, faker: gofakeit.New(cfg.Seed)}
}

// Generate returns n records; a negative n yields none.
func (g *Generator) Generate(n int) []affiliate.Record {
	n = max(n, 0)
	out := make([]affiliate.Record, n)
	for i := range out {
		out[i] = g.record()
	}
	return out
}

func (g *Generator) record() affiliate.Record {
	f := g.faker
	name := f.Name()
	handle := strings.ToLower(f.Username())
	r := affiliate.Record{
		ID:             f.UUID(),
		Handle:         "@" + handle,
		FullName:       &name,
		Platform:       affiliate.SocialPlatforms[f.Number(0, len(affiliate.SocialPlatforms)-1)],
		FollowerCount:  g.followers(),
		FollowingCount: int64(f.Number(50, 3000)),
		GMVTier:        g.gmvTier(),
		Niche:          g.niches(),
		Bio:            f.Sentence(8),
		Country:        f.RandomString(filter.Countries),
		Language:       f.RandomString([]string{"en", "es", "fr", "de", "pt"}),
		Verified:       f.Float64() < 0.2,
		CreatedAt:      g.cfg.Now.AddDate(-1, 0, 0),
		UpdatedAt:      g.cfg.Now,
	}
	if f.Float64() < g.cfg.EmailOnlyChance {
		r.Platform = affiliate.PlatformEmailOnly
	}
	profile := "https://example.com/" + handle
	r.ProfileURL = &profile
	views := r.FollowerCount / int64(f.Number(5, 40))
	r.AvgViews = &views
	if f.Float64() < g.cfg.EngagementChance {
		rate := float64(f.Number(5, 1200)) / 10_000
		r.EngagementRate = &rate
	}
	if f.Float64() < g.cfg.EmailChance {
		email := f.Email()
		r.Email = &email
	}
	if f.Float64() < g.cfg.ActiveChance {
		t := f.DateRange(g.cfg.Now.AddDate(0, 0, -180), g.cfg.Now).UTC()
		r.LastActive = &t
	}
	return r
}

func (g *Generator) followers() int64 {
	bands := make([]any, len(followerBands))
	weights := make([]float32, len(followerBands))
	for i, b := range followerBands {
		bands[i] = i
		weights[i] = b.weight
	}
	band := followerBands[0]
	if pick, err := g.faker.Weighted(bands, weights); err == nil {
		band = followerBands[pick.(int)]
	}
	return int64(g.faker.Number(band.min, band.max))
}

func (g *Generator) gmvTier() affiliate.GMVTier {
	tiers := make([]any, len(affiliate.GMVTiers))
	for i, t := range affiliate.GMVTiers {
		tiers[i] = t
	}
	pick, err := g.faker.Weighted(tiers, gmvWeights)
	if err != nil {
		return affiliate.GMVNone
	}
	return pick.(affiliate.GMVTier)
}

func (g *Generator) niches() []string {
	n := g.faker.Number(0, g.cfg.MaxNiches)
	seen := make(map[string]struct{}, n)
	out := make([]string, 0, n)
	for len(out) < n {
		v := g.faker.RandomString(filter.NicheOptions)
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
