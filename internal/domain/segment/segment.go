// Package segment defines named affiliate groups and the built-in templates
// they can be activated from.
package segment

import (
	"slices"
	"time"

	"github.com/okian/scout/internal/domain/filter"
)

// Type distinguishes filter-derived segments from hand-picked ones.
type Type string

// Segment types.
const (
	TypeDynamic Type = "dynamic"
	TypeManual  Type = "manual"
)

// Segment is a named snapshot of affiliate ids. Membership changes only
// through explicit store operations, never when the directory changes.
type Segment struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Type        Type         `json:"type"`
	FilterRules *filter.Spec `json:"filter_rules,omitempty"`
	TemplateID  string       `json:"template_id,omitempty"`
	MemberIDs   []string     `json:"memberIds"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Clone returns a deep copy safe to hand out of a store.
func (s *Segment) Clone() Segment {
	c := *s
	c.MemberIDs = slices.Clone(s.MemberIDs)
	if c.MemberIDs == nil {
		c.MemberIDs = []string{}
	}
	if s.FilterRules != nil {
		rules := s.FilterRules.Clone()
		c.FilterRules = &rules
	}
	return c
}

// Has reports whether id is a member.
func (s *Segment) Has(id string) bool { return slices.Contains(s.MemberIDs, id) }

// Without returns ids minus the removed set, keeping order.
func Without(ids, remove []string) []string {
	drop := make(map[string]struct{}, len(remove))
	for _, id := range remove {
		drop[id] = struct{}{}
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := drop[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// Union appends ids not already present, keeping first-seen order.
func Union(ids, add []string) []string {
	seen := make(map[string]struct{}, len(ids)+len(add))
	out := make([]string, 0, len(ids)+len(add))
	for _, list := range [][]string{ids, add} {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// Intersect returns the ids of ids that are also in other, keeping order.
func Intersect(ids, other []string) []string {
	keep := make(map[string]struct{}, len(other))
	for _, id := range other {
		keep[id] = struct{}{}
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := keep[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
