// Package affiliate defines the creator record read by the discovery engine.
package affiliate

import (
	"math"
	"strings"
	"time"
)

// Platform identifies where a creator publishes.
type Platform string

// Known platforms.
const (
	PlatformTikTok    Platform = "tiktok"
	PlatformInstagram Platform = "instagram"
	PlatformYouTube   Platform = "youtube"
	PlatformEmailOnly Platform = "email_only"
)

// SocialPlatforms lists the platforms reported in segment breakdowns.
var SocialPlatforms = []Platform{PlatformTikTok, PlatformInstagram, PlatformYouTube}

// Valid reports whether p is a known platform.
func (p Platform) Valid() bool {
	switch p {
	case PlatformTikTok, PlatformInstagram, PlatformYouTube, PlatformEmailOnly:
		return true
	}
	return false
}

// GMVTier is the creator's gross merchandise value bracket.
type GMVTier string

// GMV tiers in ascending order.
const (
	GMVNone      GMVTier = "none"
	GMVUnder5K   GMVTier = "under_5k"
	GMV5KTo25K   GMVTier = "5k_25k"
	GMV25KTo100K GMVTier = "25k_100k"
	GMV100KPlus  GMVTier = "100k_plus"
)

const unknownTierID = -1

// GMVTiers lists all tiers, lowest first. The slice index is the ordinal.
var GMVTiers = []GMVTier{GMVNone, GMVUnder5K, GMV5KTo25K, GMV25KTo100K, GMV100KPlus}

var gmvLabels = map[GMVTier]string{
	GMVNone:      "None",
	GMVUnder5K:   "<$5K",
	GMV5KTo25K:   "$5K-$25K",
	GMV25KTo100K: "$25K-$100K",
	GMV100KPlus:  "$100K+",
}

// Ordinal returns the tier's rank, or -1 for an unknown tier.
func (t GMVTier) Ordinal() int {
	for i, v := range GMVTiers {
		if v == t {
			return i
		}
	}
	return unknownTierID
}

// Valid reports whether t is a known tier.
func (t GMVTier) Valid() bool { return t.Ordinal() != unknownTierID }

// Label returns the display label of the tier.
func (t GMVTier) Label() string {
	if l, ok := gmvLabels[t]; ok {
		return l
	}
	return string(t)
}

// Record is a single creator in the directory. Nullable columns are pointers.
// JSON names follow the directory's column names so the same struct decodes
// remote rows and dataset files. Dataset loaders check the validate tags.
type Record struct {
	ID             string     `json:"id" validate:"required"`
	Handle         string     `json:"handle"`
	FullName       *string    `json:"full_name"`
	Platform       Platform   `json:"platform" validate:"oneof=tiktok instagram youtube email_only"`
	FollowerCount  int64      `json:"follower_count" validate:"gte=0"`
	FollowingCount int64      `json:"following_count" validate:"gte=0"`
	AvgViews       *int64     `json:"avg_views" validate:"omitnil,gte=0"`
	EngagementRate *float64   `json:"engagement_rate" validate:"omitnil,gte=0"`
	GMVTier        GMVTier    `json:"gmv_tier" validate:"oneof=none under_5k 5k_25k 25k_100k 100k_plus"`
	Niche          []string   `json:"niche"`
	Bio            string     `json:"bio"`
	ProfileURL     *string    `json:"profile_url"`
	AvatarURL      *string    `json:"avatar_url"`
	Email          *string    `json:"email"`
	Country        string     `json:"country"`
	Language       string     `json:"language"`
	Verified       bool       `json:"verified"`
	LastActive     *time.Time `json:"last_active"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// HasEmail reports whether the record carries a non-empty email address.
func (r *Record) HasEmail() bool {
	return r.Email != nil && strings.TrimSpace(*r.Email) != ""
}

// EmailOrEmpty returns the email or "" when absent.
func (r *Record) EmailOrEmpty() string {
	if r.Email == nil {
		return ""
	}
	return *r.Email
}

// FullNameOrEmpty returns the full name or "" when absent.
func (r *Record) FullNameOrEmpty() string {
	if r.FullName == nil {
		return ""
	}
	return *r.FullName
}

// EngagementPercent returns the engagement rate in percentage points.
func (r *Record) EngagementPercent() float64 {
	return EngagementPercent(r.EngagementRate)
}

// ActiveSince reports whether the record was last active at or after cutoff.
// A record without activity data is never active.
func (r *Record) ActiveSince(cutoff time.Time) bool {
	return r.LastActive != nil && !r.LastActive.Before(cutoff)
}

// engagementPrecision trims binary noise left by the x100 conversion
// (0.07*100 = 7.000000000000001).
const engagementPrecision = 1e6

// EngagementPercent converts a stored engagement fraction into the percentage
// points used by filters and aggregates. A missing rate counts as zero.
func EngagementPercent(rate *float64) float64 {
	if rate == nil {
		return 0
	}
	return math.Round(*rate*100*engagementPrecision) / engagementPrecision
}

// EngagementFraction converts percentage points back into the stored fraction.
func EngagementFraction(pct float64) float64 {
	return math.Round(pct/100*engagementPrecision*100) / (engagementPrecision * 100)
}

// Index maps record ids to records.
func Index(records []Record) map[string]*Record {
	idx := make(map[string]*Record, len(records))
	for i := range records {
		idx[records[i].ID] = &records[i]
	}
	return idx
}
