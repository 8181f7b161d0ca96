package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/okian/scout/internal/domain/affiliate"
	"github.com/okian/scout/internal/domain/filter"
)

// affiliateRow maps the affiliates table.
type affiliateRow struct {
	ID             string         `gorm:"column:id;primaryKey"`
	Handle         string         `gorm:"column:handle"`
	FullName       *string        `gorm:"column:full_name"`
	Platform       string         `gorm:"column:platform"`
	FollowerCount  int64          `gorm:"column:follower_count"`
	FollowingCount int64          `gorm:"column:following_count"`
	AvgViews       *int64         `gorm:"column:avg_views"`
	EngagementRate *float64       `gorm:"column:engagement_rate"`
	GMVTier        string         `gorm:"column:gmv_tier"`
	Niche          pq.StringArray `gorm:"column:niche;type:text[]"`
	Bio            string         `gorm:"column:bio"`
	ProfileURL     *string        `gorm:"column:profile_url"`
	AvatarURL      *string        `gorm:"column:avatar_url"`
	Email          *string        `gorm:"column:email"`
	Country        string         `gorm:"column:country"`
	Language       string         `gorm:"column:language"`
	Verified       bool           `gorm:"column:verified"`
	LastActive     *time.Time     `gorm:"column:last_active"`
	CreatedAt      time.Time      `gorm:"column:created_at"`
	UpdatedAt      time.Time      `gorm:"column:updated_at"`
}

func (affiliateRow) TableName() string { return "affiliates" }

func (r *affiliateRow) record() affiliate.Record {
	niche := []string(r.Niche)
	if niche == nil {
		niche = []string{}
	}
	return affiliate.Record{
		ID:             r.ID,
		Handle:         r.Handle,
		FullName:       r.FullName,
		Platform:       affiliate.Platform(r.Platform),
		FollowerCount:  r.FollowerCount,
		FollowingCount: r.FollowingCount,
		AvgViews:       r.AvgViews,
		EngagementRate: r.EngagementRate,
		GMVTier:        affiliate.GMVTier(r.GMVTier),
		Niche:          niche,
		Bio:            r.Bio,
		ProfileURL:     r.ProfileURL,
		AvatarURL:      r.AvatarURL,
		Email:          r.Email,
		Country:        r.Country,
		Language:       r.Language,
		Verified:       r.Verified,
		LastActive:     r.LastActive,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

// OpenPostgres opens a gorm handle on dsn through the lib/pq driver and
// pings it.
func OpenPostgres(ctx context.Context, dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{DSN: dsn, DriverName: "postgres"}), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connect postgres: %w", ErrFetch, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("%w: gorm sql db: %w", ErrFetch, err)
	}
	sqlDB.SetConnMaxIdleTime(15 * time.Minute)
	sqlDB.SetConnMaxLifetime(time.Hour)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("%w: ping postgres: %w", ErrFetch, err)
	}
	return db, nil
}

// PostgresSource runs filters as SQL against the affiliates table.
type PostgresSource struct {
	db  *gorm.DB
	cfg settings
}

// NewPostgresSource creates a source over db.
func NewPostgresSource(db *gorm.DB, opts ...Option) *PostgresSource {
	return &PostgresSource{db: db, cfg: newSettings(opts)}
}

// Name implements DataSource.
func (s *PostgresSource) Name() string { return "postgres" }

// FetchPage implements DataSource. The total comes from an exact COUNT(*).
func (s *PostgresSource) FetchPage(ctx context.Context, spec *filter.Spec, page int) (p Page, err error) {
	if err = checkPage(page); err != nil {
		return Page{}, err
	}
	defer func(start time.Time) { observe(s.Name(), start, err) }(time.Now())

	base := s.where(s.db.WithContext(ctx).Model(&affiliateRow{}), spec, s.cfg.now()).Session(&gorm.Session{})

	var total int64
	if err = base.Count(&total).Error; err != nil {
		return Page{}, fmt.Errorf("%w: count: %w", ErrFetch, err)
	}
	var rows []affiliateRow
	if err = s.page(base, spec, page).Find(&rows).Error; err != nil {
		return Page{}, fmt.Errorf("%w: select page %d: %w", ErrFetch, page, err)
	}

	out := make([]affiliate.Record, len(rows))
	for i := range rows {
		out[i] = rows[i].record()
	}
	return Page{Rows: out, TotalCount: intPtr(int(total))}, nil
}

// where adds one clause per active constraint, mirroring filter.Matches.
func (s *PostgresSource) where(q *gorm.DB, spec *filter.Spec, now time.Time) *gorm.DB {
	if spec.Platform != filter.PlatformAll && spec.Platform != "" {
		q = q.Where("platform = ?", string(spec.Platform))
	}
	q = q.Where("follower_count BETWEEN ? AND ?", spec.FollowerRange.Min, spec.FollowerRange.Max)
	// Null engagement counts as 0; rounding matches affiliate.EngagementPercent.
	q = q.Where("ROUND((COALESCE(engagement_rate, 0) * 100)::numeric, 6) BETWEEN ? AND ?",
		spec.EngagementRange.Min, spec.EngagementRange.Max)
	if len(spec.GMVTiers) > 0 {
		tiers := make([]string, len(spec.GMVTiers))
		for i, t := range spec.GMVTiers {
			tiers[i] = string(t)
		}
		q = q.Where("gmv_tier IN ?", tiers)
	}
	if len(spec.Niches) > 0 {
		q = q.Where("niche && ?", pq.StringArray(spec.Niches))
	}
	if c, ok := spec.CountryFilter(); ok {
		q = q.Where("country = ?", c)
	}
	if spec.RequiresEmail() {
		q = q.Where("email IS NOT NULL AND btrim(email) <> ''")
	}
	if days, ok := spec.ActiveWithinDays(); ok {
		q = q.Where("last_active >= ?", filter.Cutoff(now, days))
	}
	if term := filter.SearchTerm(spec.Search); term != "" {
		like := "%" + escapeLike(term) + "%"
		q = q.Where("(handle ILIKE ? OR full_name ILIKE ? OR bio ILIKE ?)", like, like, like)
	}
	return q
}

func (s *PostgresSource) page(q *gorm.DB, spec *filter.Spec, page int) *gorm.DB {
	return q.Order(orderExpr(spec.Sort)).Order("id ASC").
		Limit(s.cfg.pageSize).Offset(page * s.cfg.pageSize)
}

func orderExpr(k filter.SortKey) string {
	o := k.Order()
	column := o.Column
	if column == "gmv_tier" {
		column = gmvOrdinalExpr
	}
	dir := "ASC"
	if o.Descending {
		dir = "DESC"
	}
	return column + " " + dir + " NULLS LAST"
}

// gmvOrdinalExpr ranks gmv_tier text by tier order.
var gmvOrdinalExpr = func() string {
	var b strings.Builder
	b.WriteString("CASE gmv_tier")
	for i, t := range affiliate.GMVTiers {
		fmt.Fprintf(&b, " WHEN '%s' THEN %d", t, i)
	}
	b.WriteString(" END")
	return b.String()
}()

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
