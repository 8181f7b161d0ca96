package filter

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/okian/scout/internal/domain/affiliate"
)

// SortKey selects the ordering of query results.
type SortKey string

// Supported sort keys.
const (
	SortFollowers  SortKey = "followers"
	SortEngagement SortKey = "engagement"
	SortGMV        SortKey = "gmv"
	SortRecent     SortKey = "recent"
)

// Order describes how a sort key maps onto a directory column.
type Order struct {
	Column     string
	Descending bool
}

// Order returns the column ordering for k. Unknown keys sort by followers.
// Recent sorts ascending, oldest activity first, with missing values last.
func (k SortKey) Order() Order {
	switch k {
	case SortEngagement:
		return Order{Column: "engagement_rate", Descending: true}
	case SortGMV:
		return Order{Column: "gmv_tier", Descending: true}
	case SortRecent:
		return Order{Column: "last_active", Descending: false}
	default:
		return Order{Column: "follower_count", Descending: true}
	}
}

// Compare orders two records for key k. Missing values sort last in either
// direction and equal keys fall back to ascending id, so the order is total.
func Compare(a, b *affiliate.Record, k SortKey) int {
	var c int
	switch k {
	case SortEngagement:
		c = compareNullable(a.EngagementRate, b.EngagementRate, true, cmp.Compare[float64])
	case SortGMV:
		c = -cmp.Compare(a.GMVTier.Ordinal(), b.GMVTier.Ordinal())
	case SortRecent:
		c = compareNullable(a.LastActive, b.LastActive, false, func(x, y time.Time) int { return x.Compare(y) })
	default:
		c = -cmp.Compare(a.FollowerCount, b.FollowerCount)
	}
	if c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

// SortRecords sorts records in place for key k.
func SortRecords(records []affiliate.Record, k SortKey) {
	slices.SortFunc(records, func(a, b affiliate.Record) int {
		return Compare(&a, &b, k)
	})
}

func compareNullable[T any](x, y *T, desc bool, f func(T, T) int) int {
	switch {
	case x == nil && y == nil:
		return 0
	case x == nil:
		return 1
	case y == nil:
		return -1
	}
	c := f(*x, *y)
	if desc {
		return -c
	}
	return c
}
