package segment

import (
	"github.com/okian/scout/internal/domain/affiliate"
	"github.com/okian/scout/internal/domain/filter"
)

// Template is a predefined filter a dynamic segment can be activated from.
type Template struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	FilterRules filter.Spec `json:"filter_rules"`
}

// Built-in template ids.
const (
	TemplateSkincareNano       = "skincare-nano"
	TemplateTikTokGMV          = "tiktok-gmv"
	TemplateEmailVerifiedMicro = "email-verified-micro"
	TemplateRecentlyActiveMid  = "recently-active-mid"
)

// Templates returns the built-in templates. Each call returns fresh copies.
func Templates() []Template {
	hasEmail := true
	thirtyDays := 30
	return []Template{
		{
			ID:          TemplateSkincareNano,
			Name:        "Skincare Nano (5K-50K followers, beauty niche, high engagement)",
			Description: "5K–50K followers, Beauty/Skincare niche, 4%+ engagement",
			FilterRules: rules(func(s *filter.Spec) {
				s.FollowerRange = filter.IntRange{Min: 5000, Max: 50000}
				s.EngagementRange = filter.FloatRange{Min: 4, Max: 20}
				s.Niches = []string{"Beauty", "Skincare"}
			}),
		},
		{
			ID:          TemplateTikTokGMV,
			Name:        "TikTok GMV Earners ($5K+ GMV tier)",
			Description: "TikTok creators with $5K+ GMV tier",
			FilterRules: rules(func(s *filter.Spec) {
				s.Platform = affiliate.PlatformTikTok
				s.GMVTiers = []affiliate.GMVTier{affiliate.GMV5KTo25K, affiliate.GMV25KTo100K, affiliate.GMV100KPlus}
				s.Sort = filter.SortGMV
			}),
		},
		{
			ID:          TemplateEmailVerifiedMicro,
			Name:        "Email-Verified Micro Influencers",
			Description: "Micro influencers with verified email",
			FilterRules: rules(func(s *filter.Spec) {
				s.FollowerRange = filter.IntRange{Min: 1000, Max: 100000}
				s.HasEmail = &hasEmail
			}),
		},
		{
			ID:          TemplateRecentlyActiveMid,
			Name:        "Recently Active (30 days) Mid-Tier",
			Description: "Active in last 30 days, 50K–500K followers",
			FilterRules: rules(func(s *filter.Spec) {
				s.FollowerRange = filter.IntRange{Min: 50000, Max: 500000}
				s.LastActiveDays = &thirtyDays
				s.Sort = filter.SortRecent
			}),
		},
	}
}

// FindTemplate looks up a built-in template by id.
func FindTemplate(id string) (Template, bool) {
	for _, t := range Templates() {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}

func rules(apply func(*filter.Spec)) filter.Spec {
	s := filter.Default()
	apply(&s)
	return s
}
