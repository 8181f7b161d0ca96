package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/okian/scout/internal/domain/affiliate"
	"github.com/okian/scout/internal/domain/filter"
	"github.com/okian/scout/pkg/logger"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

var fixedNow = time.Date(2026, 5, 10, 9, 30, 0, 0, time.UTC)

type staticCollection []affiliate.Record

func (c staticCollection) All(context.Context) []affiliate.Record { return c }

// dataset builds records with deliberate ties, nulls and out-of-range values.
func dataset(n int) staticCollection {
	out := make(staticCollection, n)
	for i := range out {
		r := affiliate.Record{
			ID:            fmt.Sprintf("aff-%03d", i),
			Handle:        fmt.Sprintf("creator%d", i),
			Platform:      affiliate.SocialPlatforms[i%len(affiliate.SocialPlatforms)],
			FollowerCount: int64(i%40) * 12_500,
			GMVTier:       affiliate.GMVTiers[i%len(affiliate.GMVTiers)],
			Niche:         []string{filter.NicheOptions[i%len(filter.NicheOptions)], filter.NicheOptions[(i*3)%len(filter.NicheOptions)]},
			Bio:           "Daily content",
			Country:       filter.Countries[i%len(filter.Countries)],
			CreatedAt:     fixedNow.AddDate(-1, 0, 0),
			UpdatedAt:     fixedNow,
		}
		if i%7 == 0 {
			r.Platform = affiliate.PlatformEmailOnly
		}
		if i%9 != 0 {
			v := float64(i%15+1) / 200
			r.EngagementRate = &v
		}
		if i%11 == 0 {
			r.Niche = []string{}
		}
		switch i % 4 {
		case 1:
			empty := ""
			r.Email = &empty
		case 2, 3:
			e := fmt.Sprintf("c%d@example.com", i)
			r.Email = &e
		}
		if i%5 != 0 {
			name := fmt.Sprintf("Name %d", i)
			if i%10 == 3 {
				name = "Glow Studio " + name
			}
			r.FullName = &name
		}
		if i%8 == 2 {
			r.Bio = "Skincare routines and reviews"
		}
		if i%6 != 0 {
			t := fixedNow.AddDate(0, 0, -(i % 90)).Add(-time.Duration(i%5) * time.Hour)
			r.LastActive = &t
		}
		out[i] = r
	}
	return out
}

// restFixture answers the subset of the PostgREST query language that
// PostgRESTSource emits, evaluated over records.
type restFixture struct {
	records []affiliate.Record

	mu       sync.Mutex
	requests []*http.Request
	status   int
	noCount  bool
}

func (f *restFixture) set(apply func(*restFixture)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	apply(f)
}

func (f *restFixture) lastRequest() *http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	return f.requests[len(f.requests)-1]
}

func (f *restFixture) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r)
	status, noCount := f.status, f.noCount
	f.mu.Unlock()

	if status != 0 {
		http.Error(w, `{"message":"boom"}`, status)
		return
	}
	q := r.URL.Query()
	matched := make([]affiliate.Record, 0, len(f.records))
	for i := range f.records {
		ok, err := restMatch(&f.records[i], q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if ok {
			matched = append(matched, f.records[i])
		}
	}
	keys := strings.Split(q.Get("order"), ",")
	slices.SortStableFunc(matched, func(a, b affiliate.Record) int {
		for _, k := range keys {
			if c := restCompare(&a, &b, k); c != 0 {
				return c
			}
		}
		return 0
	})
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	from := min(offset, len(matched))
	to := min(from+limit, len(matched))
	rows := matched[from:to]

	total := strconv.Itoa(len(matched))
	if noCount {
		total = "*"
	}
	if len(rows) == 0 {
		w.Header().Set("Content-Range", "*/"+total)
	} else {
		w.Header().Set("Content-Range", fmt.Sprintf("%d-%d/%s", from, to-1, total))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rows)
}

func restMatch(r *affiliate.Record, q map[string][]string) (bool, error) {
	for col, exprs := range q {
		switch col {
		case "select", "order", "limit", "offset":
			continue
		case "and":
			for _, e := range exprs {
				ok, err := restGroup(r, "and", strings.TrimSuffix(strings.TrimPrefix(e, "("), ")"))
				if err != nil || !ok {
					return false, err
				}
			}
			continue
		}
		for _, e := range exprs {
			ok, err := restCond(r, col, e)
			if err != nil || !ok {
				return false, err
			}
		}
	}
	return true, nil
}

// restGroup evaluates a comma separated list of conditions or nested groups.
func restGroup(r *affiliate.Record, op, body string) (bool, error) {
	for _, item := range splitTop(body) {
		var ok bool
		var err error
		switch {
		case strings.HasPrefix(item, "or(") || strings.HasPrefix(item, "and("):
			inner := item[strings.IndexByte(item, '(')+1 : len(item)-1]
			ok, err = restGroup(r, item[:strings.IndexByte(item, '(')], inner)
		default:
			col, expr, _ := strings.Cut(item, ".")
			ok, err = restCond(r, col, expr)
		}
		if err != nil {
			return false, err
		}
		if op == "or" && ok {
			return true, nil
		}
		if op == "and" && !ok {
			return false, nil
		}
	}
	return op == "and", nil
}

func splitTop(s string) []string {
	var (
		out     []string
		depth   int
		quoted  bool
		escaped bool
		start   int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == '"':
			quoted = !quoted
		case quoted:
		case c == '(' || c == '{':
			depth++
		case c == ')' || c == '}':
			depth--
		case c == ',' && depth == 0:
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return append(out, s[start:])
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
		s = strings.NewReplacer(`\"`, `"`, `\\`, `\`).Replace(s)
	}
	return s
}

type restValue struct {
	null bool
	str  string
	num  float64
	ts   time.Time
	set  []string
}

func restField(r *affiliate.Record, col string) (restValue, error) {
	optStr := func(p *string) restValue {
		if p == nil {
			return restValue{null: true}
		}
		return restValue{str: *p}
	}
	switch col {
	case "id":
		return restValue{str: r.ID}, nil
	case "handle":
		return restValue{str: r.Handle}, nil
	case "full_name":
		return optStr(r.FullName), nil
	case "bio":
		return restValue{str: r.Bio}, nil
	case "platform":
		return restValue{str: string(r.Platform)}, nil
	case "country":
		return restValue{str: r.Country}, nil
	case "email":
		return optStr(r.Email), nil
	case "gmv_tier":
		return restValue{str: string(r.GMVTier), num: float64(r.GMVTier.Ordinal())}, nil
	case "niche":
		return restValue{set: r.Niche}, nil
	case "follower_count":
		return restValue{num: float64(r.FollowerCount)}, nil
	case "engagement_rate":
		if r.EngagementRate == nil {
			return restValue{null: true}, nil
		}
		return restValue{num: *r.EngagementRate}, nil
	case "last_active":
		if r.LastActive == nil {
			return restValue{null: true}, nil
		}
		return restValue{ts: *r.LastActive}, nil
	}
	return restValue{}, fmt.Errorf("unknown column %q", col)
}

func restCond(r *affiliate.Record, col, expr string) (bool, error) {
	if rest, ok := strings.CutPrefix(expr, "not."); ok {
		v, err := restCond(r, col, rest)
		return !v, err
	}
	v, err := restField(r, col)
	if err != nil {
		return false, err
	}
	op, arg, _ := strings.Cut(expr, ".")
	if op == "is" {
		return v.null == (arg == "null"), nil
	}
	if v.null {
		return false, nil
	}
	switch op {
	case "eq":
		return v.str == arg, nil
	case "neq":
		return v.str != arg, nil
	case "gte", "lte":
		var c int
		if col == "last_active" {
			t, err := time.Parse(time.RFC3339, arg)
			if err != nil {
				return false, err
			}
			c = v.ts.Compare(t)
		} else {
			f, err := strconv.ParseFloat(arg, 64)
			if err != nil {
				return false, err
			}
			c = compareFloat(v.num, f)
		}
		if op == "gte" {
			return c >= 0, nil
		}
		return c <= 0, nil
	case "in":
		return slices.Contains(strings.Split(strings.Trim(arg, "()"), ","), v.str), nil
	case "ov":
		for _, item := range splitTop(strings.Trim(arg, "{}")) {
			if slices.Contains(v.set, unquote(item)) {
				return true, nil
			}
		}
		return false, nil
	case "ilike":
		term := strings.ToLower(strings.Trim(unquote(arg), "*"))
		return strings.Contains(strings.ToLower(v.str), term), nil
	}
	return false, fmt.Errorf("unsupported operator %q", op)
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// restCompare orders by one "col.dir[.nullslast]" key.
func restCompare(a, b *affiliate.Record, key string) int {
	parts := strings.Split(key, ".")
	col, desc := parts[0], len(parts) > 1 && parts[1] == "desc"
	va, _ := restField(a, col)
	vb, _ := restField(b, col)
	switch {
	case va.null && vb.null:
		return 0
	case va.null:
		return 1
	case vb.null:
		return -1
	}
	var c int
	switch col {
	case "id":
		c = strings.Compare(va.str, vb.str)
	case "last_active":
		c = va.ts.Compare(vb.ts)
	default:
		c = compareFloat(va.num, vb.num)
	}
	if desc {
		return -c
	}
	return c
}
