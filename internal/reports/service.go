package reports

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrInvalidRange is returned when the start date falls after the end date.
var ErrInvalidRange = errors.New("reports: start date is after end date")

// RepositoryPort is what Service needs from the reports store.
type RepositoryPort interface {
	EarliestDueDate(ctx context.Context) (time.Time, bool, error)
	Totals(ctx context.Context, start, end time.Time) (due, paid, commission int64, err error)
	Outstanding(ctx context.Context) (int64, error)
}

// Service builds financial summaries. Identical concurrent requests
// collapse into one database pass via singleflight.
type Service struct {
	repo   RepositoryPort
	cache  *Cache
	group  singleflight.Group
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo RepositoryPort, cache *Cache, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, logger: logger, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// Summary computes the report for the requested window. A zero start
// date defaults to the earliest entry on record, a zero end date to
// today.
func (s *Service) Summary(ctx context.Context, req Request) (Summary, error) {
	resolved, err := s.resolveRange(ctx, req)
	if err != nil {
		return Summary{}, err
	}

	if summary, ok := s.cache.Get(ctx, resolved); ok {
		return summary, nil
	}

	key := fmt.Sprintf("%s:%s",
		resolved.StartDate.Format("2006-01-02"), resolved.EndDate.Format("2006-01-02"))
	result, err, _ := s.group.Do(key, func() (any, error) {
		return s.build(ctx, resolved)
	})
	if err != nil {
		return Summary{}, err
	}
	return result.(Summary), nil
}

func (s *Service) build(ctx context.Context, req Request) (Summary, error) {
	due, paid, commission, err := s.repo.Totals(ctx, req.StartDate, req.EndDate)
	if err != nil {
		return Summary{}, err
	}
	outstanding, err := s.repo.Outstanding(ctx)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		AmountDue:   due,
		AmountPaid:  paid,
		Commission:  commission,
		Outstanding: outstanding,
	}
	if err := s.cache.Set(ctx, req, summary); err != nil && s.logger != nil {
		s.logger.Warn("report cache write failed", slog.Any("error", err))
	}
	return summary, nil
}

// Invalidate drops every cached summary. Called after ledger mutations.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

func (s *Service) resolveRange(ctx context.Context, req Request) (Request, error) {
	if req.EndDate.IsZero() {
		req.EndDate = s.now()
	}
	if req.StartDate.IsZero() {
		earliest, ok, err := s.repo.EarliestDueDate(ctx)
		if err != nil {
			return Request{}, err
		}
		if !ok {
			earliest = req.EndDate
		}
		req.StartDate = earliest
	}
	req.StartDate = truncateDay(req.StartDate)
	req.EndDate = truncateDay(req.EndDate)
	if req.StartDate.After(req.EndDate) {
		return Request{}, ErrInvalidRange
	}
	return req, nil
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
