package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tazhate/fiscalbot/internal/dashboard"
	"github.com/tazhate/fiscalbot/internal/domain"
	"github.com/tazhate/fiscalbot/internal/report"
	"github.com/tazhate/fiscalbot/internal/storage"
)

type Snapshot struct {
	GeneratedAt  time.Time                      `json:"generatedAt"`
	Stats        dashboard.Stats                `json:"stats"`
	Critical     []domain.ObligationWithDetails `json:"critical"`
	ThisWeek     []domain.ObligationWithDetails `json:"thisWeek"`
	Productivity report.ProductivityMetrics     `json:"productivity"`
	TopPending   []report.AssigneeCount         `json:"topPending"`
}

type DashboardService struct {
	storage *storage.Storage
}

func NewDashboardService(s *storage.Storage) *DashboardService {
	return &DashboardService{storage: s}
}

type dataset struct {
	clients     []domain.Client
	taxes       []domain.Tax
	obligations []domain.Obligation
}

// load reads the three independent snapshots concurrently.
func (s *DashboardService) load(ctx context.Context) (*dataset, error) {
	var d dataset
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.clients, err = s.storage.ListClients(gctx)
		return err
	})
	g.Go(func() (err error) {
		d.taxes, err = s.storage.ListTaxes(gctx)
		return err
	})
	g.Go(func() (err error) {
		d.obligations, err = s.storage.ListObligations(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load dashboard data: %w", err)
	}
	return &d, nil
}

// Snapshot evaluates every dashboard view against the single instant now.
func (s *DashboardService) Snapshot(ctx context.Context, now time.Time) (*Snapshot, error) {
	d, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	details := dashboard.WithDetails(d.obligations, d.clients, d.taxes)
	return &Snapshot{
		GeneratedAt:  now,
		Stats:        dashboard.CalculateStats(d.clients, d.obligations, now),
		Critical:     dashboard.CriticalObligations(details, now),
		ThisWeek:     dashboard.ThisWeekObligations(details, now),
		Productivity: report.CalculateProductivityMetrics(d.obligations),
		TopPending:   report.TopPendingAssignees(d.obligations),
	}, nil
}

// Overdue lists pending obligations due before today, oldest first.
func (s *DashboardService) Overdue(ctx context.Context, now time.Time) ([]domain.ObligationWithDetails, error) {
	d, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return dashboard.OverdueObligations(dashboard.WithDetails(d.obligations, d.clients, d.taxes), now), nil
}

type ProductivityReport struct {
	Metrics    report.ProductivityMetrics `json:"metrics"`
	TopPending []report.AssigneeCount     `json:"topPending"`
	// PeriodOnTimeRate is set when a period was requested.
	PeriodOnTimeRate *float64 `json:"periodOnTimeRate,omitempty"`
}

// Productivity reports over all obligations. When start and end are both
// non-zero the on-time rate of that due-date window is included.
func (s *DashboardService) Productivity(ctx context.Context, start, end time.Time) (*ProductivityReport, error) {
	obligations, err := s.storage.ListObligations(ctx)
	if err != nil {
		return nil, err
	}
	r := &ProductivityReport{
		Metrics:    report.CalculateProductivityMetrics(obligations),
		TopPending: report.TopPendingAssignees(obligations),
	}
	if !start.IsZero() && !end.IsZero() {
		rate := report.OnTimeRateByPeriod(obligations, start, end)
		r.PeriodOnTimeRate = &rate
	}
	return r, nil
}
