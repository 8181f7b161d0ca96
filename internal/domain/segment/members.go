package segment

import (
	"cmp"
	"slices"
	"strings"

	"github.com/okian/scout/internal/domain/affiliate"
)

// MemberSort is a column of the segment member table.
type MemberSort string

// Member table columns.
const (
	MemberSortHandle     MemberSort = "handle"
	MemberSortPlatform   MemberSort = "platform"
	MemberSortFollowers  MemberSort = "followers"
	MemberSortEngagement MemberSort = "engagement"
	MemberSortGMV        MemberSort = "gmv"
	MemberSortEmail      MemberSort = "email"
	MemberSortLastActive MemberSort = "last_active"
)

// Valid reports whether k is a known column.
func (k MemberSort) Valid() bool {
	switch k {
	case MemberSortHandle, MemberSortPlatform, MemberSortFollowers, MemberSortEngagement,
		MemberSortGMV, MemberSortEmail, MemberSortLastActive:
		return true
	}
	return false
}

// SortMembers returns a sorted copy of records. Missing engagement compares
// as zero, missing activity sorts before any timestamp ascending.
func SortMembers(records []affiliate.Record, key MemberSort, desc bool) []affiliate.Record {
	out := slices.Clone(records)
	slices.SortStableFunc(out, func(a, b affiliate.Record) int {
		c := compareMembers(&a, &b, key)
		if desc {
			return -c
		}
		return c
	})
	return out
}

func compareMembers(a, b *affiliate.Record, key MemberSort) int {
	switch key {
	case MemberSortHandle:
		return strings.Compare(strings.ToLower(a.Handle), strings.ToLower(b.Handle))
	case MemberSortPlatform:
		return strings.Compare(string(a.Platform), string(b.Platform))
	case MemberSortEngagement:
		return cmp.Compare(a.EngagementPercent(), b.EngagementPercent())
	case MemberSortGMV:
		return cmp.Compare(a.GMVTier.Ordinal(), b.GMVTier.Ordinal())
	case MemberSortEmail:
		return cmp.Compare(boolRank(a.HasEmail()), boolRank(b.HasEmail()))
	case MemberSortLastActive:
		switch {
		case a.LastActive == nil && b.LastActive == nil:
			return 0
		case a.LastActive == nil:
			return -1
		case b.LastActive == nil:
			return 1
		}
		return a.LastActive.Compare(*b.LastActive)
	default:
		return cmp.Compare(a.FollowerCount, b.FollowerCount)
	}
}

func boolRank(v bool) int {
	if v {
		return 1
	}
	return 0
}
