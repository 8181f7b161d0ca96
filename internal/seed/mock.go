// Package seed produces affiliate collections: the fixed demo directory,
// synthetic datasets, and JSON dataset files.
package seed

import (
	"fmt"
	"time"

	"github.com/okian/scout/internal/domain/affiliate"
)

// MockCount is the size of the fixed demo directory.
const MockCount = 80

var mockNiches = []string{"Beauty", "Skincare", "Fashion", "Fitness", "Lifestyle", "Health", "Wellness"}

// Mock returns the fixed demo directory anchored at now. Engagement rates
// are stored as fractions (0.02 to 0.09).
func Mock(now time.Time) []affiliate.Record {
	const day = 24 * time.Hour
	out := make([]affiliate.Record, MockCount)
	for i := range out {
		name := fmt.Sprintf("Creator %d", i)
		rate := (2 + float64(i%15)*0.5) / 100
		views := int64(5000 + i*500)
		r := affiliate.Record{
			ID:             fmt.Sprintf("aff-%d", i),
			Handle:         fmt.Sprintf("@creator_%d", i),
			FullName:       &name,
			Platform:       affiliate.SocialPlatforms[i%len(affiliate.SocialPlatforms)],
			FollowerCount:  int64(5000 + i*2000 + (i%5)*10000),
			FollowingCount: int64(200 + i),
			AvgViews:       &views,
			EngagementRate: &rate,
			GMVTier:        affiliate.GMVTiers[i%len(affiliate.GMVTiers)],
			Niche:          append([]string(nil), mockNiches[:i%3+1]...),
			Bio:            "Creator bio",
			Country:        "United States",
			Language:       "en",
			Verified:       i%4 == 0,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if i%3 == 0 {
			email := fmt.Sprintf("c%d@example.com", i)
			r.Email = &email
		}
		if i%5 != 0 {
			t := now.Add(-time.Duration(i%4) * 15 * day)
			r.LastActive = &t
		}
		out[i] = r
	}
	return out
}
