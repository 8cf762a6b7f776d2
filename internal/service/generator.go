package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tazhate/fiscalbot/internal/domain"
	"github.com/tazhate/fiscalbot/internal/recurrence"
	"github.com/tazhate/fiscalbot/internal/storage"
)

const (
	// pastCutoffDays is how far before today a generated due date may fall.
	pastCutoffDays = 30
	// maxCatchUpSteps bounds the walk over missed occurrences of a stale chain.
	maxCatchUpSteps = 1000
	// MaxBulkOccurrences caps GenerateFutureOccurrences.
	MaxBulkOccurrences = 60
)

// ChainFailure is a (tax, client) chain that could not be advanced.
type ChainFailure struct {
	TaxID    string `json:"taxId"`
	TaxName  string `json:"taxName"`
	ClientID string `json:"clientId,omitempty"`
	Error    string `json:"error"`
}

type GenerationResult struct {
	StartedAt  time.Time           `json:"startedAt"`
	TaxesSeen  int                 `json:"taxesSeen"`
	ChainsSeen int                 `json:"chainsSeen"`
	Created    []domain.Obligation `json:"created"`
	UpToDate   int                 `json:"upToDate"`   // chain already has a pending future obligation
	Duplicates int                 `json:"duplicates"` // rejected by storage
	Failures   []ChainFailure      `json:"failures,omitempty"`
}

// Generator continues recurring obligation chains.
type Generator struct {
	storage *storage.Storage
	engine  *recurrence.Engine
	audit   auditor
	events  *Events
	logger  *zap.Logger
	loc     *time.Location
	actor   string
	now     func() time.Time

	// one pass at a time within this process; storage guards across processes
	mu sync.Mutex
}

func NewGenerator(s *storage.Storage, engine *recurrence.Engine, events *Events, logger *zap.Logger, loc *time.Location, actor string) *Generator {
	if loc == nil {
		loc = time.UTC
	}
	return &Generator{
		storage: s,
		engine:  engine,
		audit:   auditor{storage: s, logger: logger},
		events:  events,
		logger:  logger.Named("generator"),
		loc:     loc,
		actor:   actor,
		now:     time.Now,
	}
}

// CheckAndGenerateRecurrences creates the next obligation of every chain of
// an active auto-generating tax that has no pending obligation after today.
// Only existing chains are continued. A failing chain is logged and recorded
// in the result while the rest of the pass continues; the returned error is
// reserved for failures to load the pass input.
func (g *Generator) CheckAndGenerateRecurrences(ctx context.Context) (GenerationResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	result := GenerationResult{StartedAt: g.now(), Created: make([]domain.Obligation, 0)}
	today := domain.DateOf(result.StartedAt, g.loc)

	var (
		taxes       []domain.Tax
		obligations []domain.Obligation
	)
	eg, egctx := errgroup.WithContext(ctx)
	eg.Go(func() (err error) {
		taxes, err = g.storage.ListAutoGenerateTaxes(egctx)
		return err
	})
	eg.Go(func() (err error) {
		obligations, err = g.storage.ListObligations(egctx)
		return err
	})
	if err := eg.Wait(); err != nil {
		return result, fmt.Errorf("load generation input: %w", err)
	}

	byTax := make(map[string][]domain.Obligation)
	for _, o := range obligations {
		byTax[o.TaxID] = append(byTax[o.TaxID], o)
	}

	for _, tax := range taxes {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.TaxesSeen++
		if tax.RecurrenceRule.Type == domain.RecurrenceNone {
			continue
		}
		g.generateForTax(ctx, tax, byTax[tax.ID], today, &result)
	}

	g.logger.Info("generation pass finished",
		zap.Int("taxes", result.TaxesSeen),
		zap.Int("chains", result.ChainsSeen),
		zap.Int("created", len(result.Created)),
		zap.Int("up_to_date", result.UpToDate),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("failures", len(result.Failures)),
	)
	return result, nil
}

func (g *Generator) generateForTax(ctx context.Context, tax domain.Tax, obligations []domain.Obligation, today time.Time, result *GenerationResult) {
	byClient := make(map[string][]domain.Obligation)
	for _, o := range obligations {
		byClient[o.ClientID] = append(byClient[o.ClientID], o)
	}
	clientIDs := make([]string, 0, len(byClient))
	for id := range byClient {
		clientIDs = append(clientIDs, id)
	}
	slices.Sort(clientIDs)

	for _, clientID := range clientIDs {
		result.ChainsSeen++
		created, err := g.continueChain(ctx, tax, byClient[clientID], today)
		switch {
		case errors.Is(err, errUpToDate):
			result.UpToDate++
		case errors.Is(err, storage.ErrDuplicateObligation):
			result.Duplicates++
		case err != nil:
			g.logger.Error("chain generation failed",
				zap.String("tax_id", tax.ID),
				zap.String("tax", tax.Name),
				zap.String("client_id", clientID),
				zap.Error(err),
			)
			result.Failures = append(result.Failures, ChainFailure{
				TaxID: tax.ID, TaxName: tax.Name, ClientID: clientID, Error: err.Error(),
			})
		default:
			result.Created = append(result.Created, *created)
		}
	}
}

var errUpToDate = errors.New("chain up to date")

func (g *Generator) continueChain(ctx context.Context, tax domain.Tax, chain []domain.Obligation, today time.Time) (*domain.Obligation, error) {
	last := chain[0]
	for _, o := range chain {
		if o.Status == domain.StatusPending && o.DueDate.After(today) {
			return nil, errUpToDate
		}
		if o.DueDate.After(last.DueDate) {
			last = o
		}
	}

	next, err := g.engine.NextAfter(ctx, last.DueDate, tax.RecurrenceRule, tax.WeekendAdjust)
	if err != nil {
		return nil, fmt.Errorf("next due date: %w", err)
	}

	cutoff := today.AddDate(0, 0, -pastCutoffDays)
	for steps := 0; next.Before(cutoff); steps++ {
		if steps >= maxCatchUpSteps {
			return nil, fmt.Errorf("chain last due %s is too far behind", last.DueDate.Format(domain.DateLayout))
		}
		if next, err = g.engine.NextAfter(ctx, next, tax.RecurrenceRule, tax.WeekendAdjust); err != nil {
			return nil, fmt.Errorf("next due date: %w", err)
		}
	}

	priority := last.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	assignee := last.AssignedTo
	if assignee == "" {
		assignee = tax.DefaultAssignee
	}

	o := &domain.Obligation{
		TaxID:      tax.ID,
		ClientID:   last.ClientID,
		AssignedTo: assignee,
		DueDate:    next,
		Status:     domain.StatusPending,
		Priority:   priority,
	}
	if err := g.storage.InsertGeneratedObligation(ctx, o, today); err != nil {
		return nil, err
	}

	g.created(ctx, o)
	return o, nil
}

func (g *Generator) created(ctx context.Context, o *domain.Obligation) {
	g.audit.record(ctx, domain.EntityObligation, o.ID, domain.ActionCreated, g.actor, map[string]any{
		"dueDate": o.DueDate.Format(domain.DateLayout),
		"source":  "auto",
	})
	g.events.Publish(ctx, ChangeEvent{EntityType: domain.EntityObligation, EntityID: o.ID, Action: domain.ActionCreated, Entity: *o})
	g.logger.Debug("obligation generated",
		zap.String("id", o.ID),
		zap.String("tax_id", o.TaxID),
		zap.String("client_id", o.ClientID),
		zap.String("due_date", o.DueDate.Format(domain.DateLayout)),
	)
}

// GenerateFutureOccurrences creates count obligations following obligation,
// in generation order. It does not check for pending chains; a date that
// already exists for the chain stops the run with ErrDuplicateObligation and
// the obligations created so far are returned.
func (g *Generator) GenerateFutureOccurrences(ctx context.Context, obligation *domain.Obligation, tax *domain.Tax, count int) ([]domain.Obligation, error) {
	if count <= 0 || count > MaxBulkOccurrences {
		return nil, fmt.Errorf("%w: count must be between 1 and %d", ErrInvalidInput, MaxBulkOccurrences)
	}

	dates, err := g.engine.GenerateFutureDates(ctx, obligation.DueDate, tax.RecurrenceRule, tax.WeekendAdjust, count)
	if err != nil {
		if errors.Is(err, recurrence.ErrNoRecurrence) {
			return nil, fmt.Errorf("%w: tax %s does not recur", ErrInvalidInput, tax.Name)
		}
		return nil, err
	}

	assignee := obligation.AssignedTo
	if assignee == "" {
		assignee = tax.DefaultAssignee
	}
	priority := obligation.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}

	created := make([]domain.Obligation, 0, len(dates))
	for _, due := range dates {
		o := &domain.Obligation{
			TaxID:      tax.ID,
			ClientID:   obligation.ClientID,
			AssignedTo: assignee,
			DueDate:    due,
			Status:     domain.StatusPending,
			Priority:   priority,
		}
		if _, err := g.storage.SaveObligation(ctx, o); err != nil {
			return created, fmt.Errorf("create occurrence %s: %w", due.Format(domain.DateLayout), err)
		}
		g.created(ctx, o)
		created = append(created, *o)
	}
	return created, nil
}
