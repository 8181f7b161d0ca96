package filter

import (
	"slices"
	"strings"
	"time"

	"github.com/okian/scout/internal/domain/affiliate"
)

// Cutoff returns the earliest lastActive accepted by a window of days ending
// at now. The window is measured in calendar days.
func Cutoff(now time.Time, days int) time.Time {
	return now.AddDate(0, 0, -days)
}

// Matches reports whether r satisfies every active constraint of s.
// now anchors the lastActiveDays window.
func Matches(r *affiliate.Record, s *Spec, now time.Time) bool {
	if s.Platform != PlatformAll && s.Platform != "" && r.Platform != s.Platform {
		return false
	}
	if !s.FollowerRange.Contains(r.FollowerCount) {
		return false
	}
	if !s.EngagementRange.Contains(r.EngagementPercent()) {
		return false
	}
	if len(s.GMVTiers) > 0 && !slices.Contains(s.GMVTiers, r.GMVTier) {
		return false
	}
	if len(s.Niches) > 0 && !overlaps(r.Niche, s.Niches) {
		return false
	}
	if c, ok := s.CountryFilter(); ok && r.Country != c {
		return false
	}
	if s.RequiresEmail() && !r.HasEmail() {
		return false
	}
	if days, ok := s.ActiveWithinDays(); ok && !r.ActiveSince(Cutoff(now, days)) {
		return false
	}
	if term := SearchTerm(s.Search); term != "" && !matchesSearch(r, term) {
		return false
	}
	return true
}

// Apply returns the ids of the records matching s, in input order.
func Apply(records []affiliate.Record, s *Spec, now time.Time) []string {
	ids := make([]string, 0, len(records))
	for i := range records {
		if Matches(&records[i], s, now) {
			ids = append(ids, records[i].ID)
		}
	}
	return ids
}

// Select returns the matching records, in input order.
func Select(records []affiliate.Record, s *Spec, now time.Time) []affiliate.Record {
	out := make([]affiliate.Record, 0, len(records))
	for i := range records {
		if Matches(&records[i], s, now) {
			out = append(out, records[i])
		}
	}
	return out
}

// SearchTerm normalizes the free text search. An empty result disables it.
func SearchTerm(search string) string {
	return strings.ToLower(strings.TrimSpace(search))
}

func matchesSearch(r *affiliate.Record, term string) bool {
	return strings.Contains(strings.ToLower(r.Handle), term) ||
		strings.Contains(strings.ToLower(r.FullNameOrEmpty()), term) ||
		strings.Contains(strings.ToLower(r.Bio), term)
}

func overlaps(have, want []string) bool {
	for _, n := range have {
		if slices.Contains(want, n) {
			return true
		}
	}
	return false
}
