// Package filter holds the declarative affiliate filter, its predicate and
// the sort order shared by every query strategy.
package filter

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/okian/scout/internal/domain/affiliate"
)

// Domain bounds used by defaults and the discovery UI.
const (
	FollowerMin   int64   = 1_000
	FollowerMax   int64   = 10_000_000
	EngagementMax float64 = 20
	PageSize              = 50
)

// PlatformAll disables the platform constraint.
const PlatformAll affiliate.Platform = "all"

// NicheOptions are the niches offered by the discovery filters.
var NicheOptions = []string{
	"Beauty", "Skincare", "Fitness", "Fashion", "Food", "Lifestyle", "Health",
	"Wellness", "Home", "Tech", "Pet", "Baby", "Finance", "Gaming", "Travel",
	"DIY", "Education", "Entertainment", "Sports", "Outdoors", "Automotive",
	"Art", "Music",
}

// Countries are the countries offered by the discovery filters.
var Countries = []string{
	"United States", "United Kingdom", "Canada", "Australia", "Germany",
	"France", "Brazil", "India", "Mexico", "Spain", "Italy", "Netherlands",
	"Other",
}

// Option is a value/label pair for enumerated filter inputs.
type Option[T any] struct {
	Value T      `json:"value"`
	Label string `json:"label"`
}

// LastActiveOptions are the recency windows, in days.
var LastActiveOptions = []Option[int]{
	{Value: 30, Label: "30 days"},
	{Value: 60, Label: "60 days"},
	{Value: 90, Label: "90 days"},
}

// SortOptions are the discovery sort orders.
var SortOptions = []Option[SortKey]{
	{Value: SortFollowers, Label: "Followers"},
	{Value: SortEngagement, Label: "Engagement"},
	{Value: SortGMV, Label: "GMV"},
	{Value: SortRecent, Label: "Recently Active"},
}

// IntRange is an inclusive [min, max] bound, encoded as a two element array.
type IntRange struct {
	Min int64 `validate:"gte=0"`
	Max int64 `validate:"gtefield=Min"`
}

// FloatRange is an inclusive [min, max] bound, encoded as a two element array.
type FloatRange struct {
	Min float64 `validate:"gte=0"`
	Max float64 `validate:"gtefield=Min"`
}

// Contains reports whether v lies within the range.
func (r IntRange) Contains(v int64) bool { return v >= r.Min && v <= r.Max }

// Contains reports whether v lies within the range.
func (r FloatRange) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

func (r IntRange) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int64{r.Min, r.Max})
}

func (r *IntRange) UnmarshalJSON(b []byte) error {
	var v [2]int64
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("range must be [min, max]: %w", err)
	}
	r.Min, r.Max = v[0], v[1]
	return nil
}

func (r FloatRange) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{r.Min, r.Max})
}

func (r *FloatRange) UnmarshalJSON(b []byte) error {
	var v [2]float64
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("range must be [min, max]: %w", err)
	}
	r.Min, r.Max = v[0], v[1]
	return nil
}

// Spec is a declarative affiliate filter. Every inactive field (empty search,
// platform "all", empty sets, nil pointers, hasEmail other than true) leaves
// the corresponding constraint off.
type Spec struct {
	Search          string              `json:"search" validate:"max=200"`
	Platform        affiliate.Platform  `json:"platform" validate:"oneof=all tiktok instagram youtube email_only"`
	FollowerRange   IntRange            `json:"followerRange"`
	EngagementRange FloatRange          `json:"engagementRange"`
	GMVTiers        []affiliate.GMVTier `json:"gmvTiers" validate:"dive,oneof=none under_5k 5k_25k 25k_100k 100k_plus"`
	Niches          []string            `json:"niches" validate:"dive,required"`
	Country         *string             `json:"country"`
	HasEmail        *bool               `json:"hasEmail"`
	LastActiveDays  *int                `json:"lastActiveDays" validate:"omitnil,min=1"`
	Sort            SortKey             `json:"sort" validate:"oneof=followers engagement gmv recent"`
}

// Default returns the filter a fresh discovery view starts from.
func Default() Spec {
	return Spec{
		Platform:        PlatformAll,
		FollowerRange:   IntRange{Min: FollowerMin, Max: FollowerMax},
		EngagementRange: FloatRange{Min: 0, Max: EngagementMax},
		GMVTiers:        []affiliate.GMVTier{},
		Niches:          []string{},
		Sort:            SortFollowers,
	}
}

// UnmarshalJSON decodes a spec on top of Default, so omitted fields keep
// their default values.
func (s *Spec) UnmarshalJSON(b []byte) error {
	type plain Spec
	p := plain(Default())
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*s = Spec(p)
	return nil
}

// Clone returns a deep copy.
func (s Spec) Clone() Spec { //nolint:gocritic // hugeParam: value receiver keeps Spec immutable for callers
	c := s
	c.GMVTiers = slices.Clone(s.GMVTiers)
	c.Niches = slices.Clone(s.Niches)
	if s.Country != nil {
		v := *s.Country
		c.Country = &v
	}
	if s.HasEmail != nil {
		v := *s.HasEmail
		c.HasEmail = &v
	}
	if s.LastActiveDays != nil {
		v := *s.LastActiveDays
		c.LastActiveDays = &v
	}
	return c
}

// CountryFilter returns the active country constraint, if any.
func (s *Spec) CountryFilter() (string, bool) {
	if s.Country == nil || *s.Country == "" {
		return "", false
	}
	return *s.Country, true
}

// RequiresEmail reports whether hasEmail constrains the result.
func (s *Spec) RequiresEmail() bool { return s.HasEmail != nil && *s.HasEmail }

// ActiveWithinDays returns the recency window, if any.
func (s *Spec) ActiveWithinDays() (int, bool) {
	if s.LastActiveDays == nil || *s.LastActiveDays <= 0 {
		return 0, false
	}
	return *s.LastActiveDays, true
}
