package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/okian/scout/internal/domain/affiliate"
	"github.com/okian/scout/internal/domain/filter"
	"github.com/okian/scout/internal/domain/scoring"
	"github.com/okian/scout/internal/domain/segment"
	"github.com/okian/scout/internal/export"
	"github.com/okian/scout/pkg/logger"
	"github.com/okian/scout/pkg/metrics"
)

const idempotencyScope = "activate:"

// SegmentSummary is a segment with its aggregate metrics.
type SegmentSummary struct {
	segment.Segment
	Summary scoring.Summary `json:"summary"`
}

// SegmentDetail adds the resolved members to a summary.
type SegmentDetail struct {
	SegmentSummary
	Members []affiliate.Record `json:"members"`
}

// Export is a rendered segment export.
type Export struct {
	Filename    string
	ContentType string
	Body        []byte
}

// Templates returns the built-in segment templates.
func (s *Service) Templates() []segment.Template {
	return segment.Templates()
}

// ListSegments returns every segment with its metrics, oldest first.
func (s *Service) ListSegments(ctx context.Context) ([]SegmentSummary, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	segs := s.segments.List(ctx)
	out := make([]SegmentSummary, len(segs))
	for i := range segs {
		out[i] = s.summarize(ctx, &segs[i])
	}
	return out, nil
}

// ActivateTemplate creates a dynamic segment from a built-in template. A
// non-empty idempotency key that was already used returns the segment the
// first request created, with replayed set.
func (s *Service) ActivateTemplate(ctx context.Context, templateID, idempotencyKey string) (seg SegmentSummary, replayed bool, err error) {
	if err := s.running(); err != nil {
		return SegmentSummary{}, false, err
	}
	tpl, ok := segment.FindTemplate(templateID)
	if !ok {
		return SegmentSummary{}, false, fmt.Errorf("%w: %q", ErrTemplateNotFound, templateID)
	}

	key := strings.TrimSpace(idempotencyKey)
	if key != "" {
		key = idempotencyScope + key
		if prior, seen := s.deduper.SeenAndRecord(ctx, key); seen {
			if prior == "" {
				return SegmentSummary{}, false, ErrRequestInProgress
			}
			existing, err := s.segments.Get(ctx, prior)
			if err != nil {
				return SegmentSummary{}, false, err
			}
			metrics.RecordIdempotentReplay()
			s.logger.Debug(ctx, "activation replayed",
				logger.String("template_id", templateID),
				logger.String("segment_id", prior))
			return s.summarize(ctx, &existing), true, nil
		}
	}

	created, err := s.segments.ActivateTemplate(ctx, tpl)
	if err != nil {
		if key != "" {
			s.deduper.Unrecord(ctx, key)
		}
		return SegmentSummary{}, false, err
	}
	if key != "" {
		s.deduper.Resolve(ctx, key, created.ID)
	}
	return s.summarize(ctx, &created), false, nil
}

// CreateSegment stores a manual segment of hand-picked affiliates.
func (s *Service) CreateSegment(ctx context.Context, name string, ids []string) (SegmentSummary, error) {
	if err := s.running(); err != nil {
		return SegmentSummary{}, err
	}
	seg, err := s.segments.CreateManual(ctx, name, ids)
	if err != nil {
		return SegmentSummary{}, err
	}
	return s.summarize(ctx, &seg), nil
}

// CreateFilterSegment saves the matches of a discovery filter as a dynamic
// segment that can later be regenerated.
func (s *Service) CreateFilterSegment(ctx context.Context, name string, rules *filter.Spec) (SegmentSummary, error) {
	if err := s.running(); err != nil {
		return SegmentSummary{}, err
	}
	seg, err := s.segments.CreateDynamic(ctx, name, rules)
	if err != nil {
		return SegmentSummary{}, err
	}
	return s.summarize(ctx, &seg), nil
}

// Segment returns a segment with its members ordered by sortKey. An empty
// key keeps membership order.
func (s *Service) Segment(ctx context.Context, id, sortKey string, desc bool) (SegmentDetail, error) {
	if err := s.running(); err != nil {
		return SegmentDetail{}, err
	}
	seg, members, err := s.members(ctx, id, sortKey, desc)
	if err != nil {
		return SegmentDetail{}, err
	}
	return SegmentDetail{
		SegmentSummary: SegmentSummary{Segment: seg, Summary: s.aggregator.Summarize(members)},
		Members:        members,
	}, nil
}

// members loads a segment and resolves its members, sorted by sortKey
// unless it is empty.
func (s *Service) members(ctx context.Context, id, sortKey string, desc bool) (segment.Segment, []affiliate.Record, error) {
	key := segment.MemberSort(sortKey)
	if sortKey != "" && !key.Valid() {
		return segment.Segment{}, nil, fmt.Errorf("%w: %q", ErrInvalidSort, sortKey)
	}
	seg, err := s.segments.Get(ctx, id)
	if err != nil {
		return segment.Segment{}, nil, err
	}
	members := s.affiliates.Resolve(ctx, seg.MemberIDs)
	if sortKey != "" {
		members = segment.SortMembers(members, key, desc)
	}
	return seg, members, nil
}

// DeleteSegment removes a segment.
func (s *Service) DeleteSegment(ctx context.Context, id string) error {
	if err := s.running(); err != nil {
		return err
	}
	return s.segments.Delete(ctx, id)
}

// RemoveMembers drops affiliates from a segment.
func (s *Service) RemoveMembers(ctx context.Context, id string, ids []string) (SegmentSummary, error) {
	if err := s.running(); err != nil {
		return SegmentSummary{}, err
	}
	seg, err := s.segments.RemoveMembers(ctx, id, ids)
	if err != nil {
		return SegmentSummary{}, err
	}
	return s.summarize(ctx, &seg), nil
}

// MoveMembers moves affiliates from one segment into another.
func (s *Service) MoveMembers(ctx context.Context, fromID, toID string, ids []string) (from, to SegmentSummary, err error) {
	if err := s.running(); err != nil {
		return SegmentSummary{}, SegmentSummary{}, err
	}
	f, t, err := s.segments.MoveMembers(ctx, fromID, toID, ids)
	if err != nil {
		return SegmentSummary{}, SegmentSummary{}, err
	}
	return s.summarize(ctx, &f), s.summarize(ctx, &t), nil
}

// RegenerateSegment re-evaluates a dynamic segment against the current collection.
func (s *Service) RegenerateSegment(ctx context.Context, id string) (SegmentSummary, error) {
	if err := s.running(); err != nil {
		return SegmentSummary{}, err
	}
	seg, err := s.segments.Regenerate(ctx, id)
	if err != nil {
		return SegmentSummary{}, err
	}
	return s.summarize(ctx, &seg), nil
}

// ExportSegment renders a segment's members in the same order Segment
// returns them for sortKey and desc.
func (s *Service) ExportSegment(ctx context.Context, id string, format export.Format, sortKey string, desc bool) (Export, error) {
	if err := s.running(); err != nil {
		return Export{}, err
	}
	_, members, err := s.members(ctx, id, sortKey, desc)
	if err != nil {
		return Export{}, err
	}
	var buf bytes.Buffer
	if err := export.Write(&buf, format, members); err != nil {
		return Export{}, err
	}
	metrics.RecordSegmentExport(string(format))
	return Export{
		Filename:    export.Filename(format, s.now()),
		ContentType: export.ContentType(format),
		Body:        buf.Bytes(),
	}, nil
}

func (s *Service) summarize(ctx context.Context, seg *segment.Segment) SegmentSummary {
	return SegmentSummary{
		Segment: *seg,
		Summary: s.aggregator.Summarize(s.affiliates.Resolve(ctx, seg.MemberIDs)),
	}
}
