// Package scoring aggregates affiliate records into segment quality metrics.
package scoring

import (
	"math"
	"time"

	"github.com/okian/scout/internal/domain/affiliate"
)

// Default health configuration constants.
const (
	defaultEngagementWeight = 0.4
	defaultEmailWeight      = 0.3
	defaultActivityWeight   = 0.3
	defaultActivityWindow   = 30 // days
	maxScoreValue           = 100
	percent                 = 100
)

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithWeights sets the health score weights for average engagement, share
// with email and share recently active. Negative weights are ignored.
func WithWeights(engagement, email, activity float64) Option {
	return func(a *Aggregator) {
		if engagement >= 0 && email >= 0 && activity >= 0 {
			a.engagementWeight = engagement
			a.emailWeight = email
			a.activityWeight = activity
		}
	}
}

// WithActivityWindow sets how many days count as recently active.
func WithActivityWindow(days int) Option {
	return func(a *Aggregator) {
		if days > 0 {
			a.activityWindow = days
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// Breakdown is the percentage of records per social platform. Each share is
// rounded on its own, so the three need not add up to 100.
type Breakdown struct {
	TikTok    int `json:"tiktok"`
	Instagram int `json:"instagram"`
	YouTube   int `json:"youtube"`
}

// Summary bundles the metrics shown for a segment.
type Summary struct {
	Count             int       `json:"count"`
	Health            int       `json:"health"`
	Platforms         Breakdown `json:"platforms"`
	AverageEngagement float64   `json:"avgEngagement"`
	AverageFollowers  int64     `json:"avgFollowers"`
}

// Aggregator computes segment metrics. The zero value is not usable; build
// one with NewAggregator.
type Aggregator struct {
	engagementWeight float64
	emailWeight      float64
	activityWeight   float64
	activityWindow   int
	now              func() time.Time
}

// NewAggregator creates an aggregator with the standard health weights.
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{
		engagementWeight: defaultEngagementWeight,
		emailWeight:      defaultEmailWeight,
		activityWeight:   defaultActivityWeight,
		activityWindow:   defaultActivityWindow,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Health scores records on 0..100 from average engagement (percentage
// points), share with an email and share active in the activity window.
// An empty set scores 0.
func (a *Aggregator) Health(records []affiliate.Record) int {
	if len(records) == 0 {
		return 0
	}
	n := float64(len(records))
	cutoff := a.now().AddDate(0, 0, -a.activityWindow)

	var engagement, withEmail, active float64
	for i := range records {
		engagement += records[i].EngagementPercent()
		if records[i].HasEmail() {
			withEmail++
		}
		if records[i].ActiveSince(cutoff) {
			active++
		}
	}

	score := a.engagementWeight*(engagement/n) +
		a.emailWeight*(withEmail/n*percent) +
		a.activityWeight*(active/n*percent)
	return int(math.Round(math.Max(0, math.Min(maxScoreValue, score))))
}

// Summarize computes every segment metric in one pass over records.
func (a *Aggregator) Summarize(records []affiliate.Record) Summary {
	return Summary{
		Count:             len(records),
		Health:            a.Health(records),
		Platforms:         PlatformBreakdown(records),
		AverageEngagement: math.Round(AverageEngagement(records)*10) / 10,
		AverageFollowers:  int64(math.Round(AverageFollowers(records))),
	}
}

// PlatformBreakdown returns each social platform's share of records.
// Records on other platforms count toward the total only.
func PlatformBreakdown(records []affiliate.Record) Breakdown {
	if len(records) == 0 {
		return Breakdown{}
	}
	counts := make(map[affiliate.Platform]int, len(affiliate.SocialPlatforms))
	for i := range records {
		counts[records[i].Platform]++
	}
	share := func(p affiliate.Platform) int {
		return int(math.Round(float64(counts[p]) / float64(len(records)) * percent))
	}
	return Breakdown{
		TikTok:    share(affiliate.PlatformTikTok),
		Instagram: share(affiliate.PlatformInstagram),
		YouTube:   share(affiliate.PlatformYouTube),
	}
}

// AverageEngagement is the mean engagement in percentage points, missing
// rates counting as zero.
func AverageEngagement(records []affiliate.Record) float64 {
	if len(records) == 0 {
		return 0
	}
	var sum float64
	for i := range records {
		sum += records[i].EngagementPercent()
	}
	return sum / float64(len(records))
}

// AverageFollowers is the mean follower count.
func AverageFollowers(records []affiliate.Record) float64 {
	if len(records) == 0 {
		return 0
	}
	var sum float64
	for i := range records {
		sum += float64(records[i].FollowerCount)
	}
	return sum / float64(len(records))
}
