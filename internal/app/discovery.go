package service

import (
	"context"

	"github.com/okian/scout/internal/adapters/source"
	"github.com/okian/scout/internal/discovery"
	"github.com/okian/scout/internal/domain/filter"
)

// QueryPage runs one page of spec directly against the data source,
// bypassing sessions.
func (s *Service) QueryPage(ctx context.Context, spec *filter.Spec, page int) (source.Page, error) {
	if err := s.running(); err != nil {
		return source.Page{}, err
	}
	if err := filter.Validate(spec); err != nil {
		return source.Page{}, err
	}
	return s.source.FetchPage(ctx, spec, page)
}

// CreateSession opens a discovery session. A nil spec starts from the
// default filters.
func (s *Service) CreateSession(ctx context.Context, spec *filter.Spec) (discovery.State, error) {
	if err := s.running(); err != nil {
		return discovery.State{}, err
	}
	sess, err := s.sessions.Create(ctx, spec)
	if err != nil {
		return discovery.State{}, err
	}
	return sess.State(), nil
}

// SessionState returns a session snapshot. With wait set it first blocks
// until the session is idle or ctx is done.
func (s *Service) SessionState(ctx context.Context, id string, wait bool) (discovery.State, error) {
	sess, err := s.session(id)
	if err != nil {
		return discovery.State{}, err
	}
	if wait {
		if err := sess.Wait(ctx); err != nil {
			return discovery.State{}, err
		}
	}
	return sess.State(), nil
}

// SetSessionFilters schedules a debounced refresh of a session.
func (s *Service) SetSessionFilters(ctx context.Context, id string, spec *filter.Spec) (discovery.State, error) {
	sess, err := s.session(id)
	if err != nil {
		return discovery.State{}, err
	}
	if err := sess.SetFilters(ctx, spec); err != nil {
		return discovery.State{}, err
	}
	return sess.State(), nil
}

// LoadMore requests the next page of a session.
func (s *Service) LoadMore(ctx context.Context, id string) (discovery.State, error) {
	sess, err := s.session(id)
	if err != nil {
		return discovery.State{}, err
	}
	if err := sess.LoadMore(ctx); err != nil {
		return discovery.State{}, err
	}
	return sess.State(), nil
}

// CloseSession ends a session.
func (s *Service) CloseSession(ctx context.Context, id string) error {
	if err := s.running(); err != nil {
		return err
	}
	return s.sessions.Close(ctx, id)
}

func (s *Service) session(id string) (*discovery.Session, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	return s.sessions.Get(id)
}
