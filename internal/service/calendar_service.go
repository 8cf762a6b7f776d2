package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-ical"
	"go.uber.org/zap"

	"github.com/tazhate/fiscalbot/internal/clients/caldav"
	"github.com/tazhate/fiscalbot/internal/dashboard"
	"github.com/tazhate/fiscalbot/internal/domain"
	"github.com/tazhate/fiscalbot/internal/recurrence"
	"github.com/tazhate/fiscalbot/internal/storage"
)

const (
	uidSuffix   = "@fiscalbot"
	pushTimeout = 30 * time.Second
)

// CalendarService renders obligations as iCalendar data and mirrors them to
// a CalDAV calendar when one is configured.
type CalendarService struct {
	storage      *storage.Storage
	caldavClient *caldav.Client
	logger       *zap.Logger
	loc          *time.Location
	now          func() time.Time

	pushes sync.WaitGroup
}

func NewCalendarService(s *storage.Storage, client *caldav.Client, logger *zap.Logger, loc *time.Location) *CalendarService {
	if loc == nil {
		loc = time.UTC
	}
	return &CalendarService{
		storage:      s,
		caldavClient: client,
		logger:       logger.Named("calendar"),
		loc:          loc,
		now:          time.Now,
	}
}

func (s *CalendarService) IsConfigured() bool {
	return s.caldavClient != nil && s.caldavClient.IsConfigured()
}

func obligationUID(id string) string {
	return id + uidSuffix
}

func obligationEvent(o domain.ObligationWithDetails) *caldav.Event {
	taxName, clientName := "Obrigação", ""
	var categories []string
	if o.Tax != nil {
		taxName = o.Tax.Name
		if o.Tax.Category != "" {
			categories = []string{o.Tax.Category}
		}
	}
	summary := taxName
	if o.Client != nil {
		clientName = o.Client.Name
		summary += " - " + clientName
	}

	var desc []string
	desc = append(desc, "Status: "+string(o.Status))
	if o.AssignedTo != "" {
		desc = append(desc, "Responsável: "+o.AssignedTo)
	}
	if !domain.SameDay(o.DueDate, o.CalculatedDueDate) {
		desc = append(desc, "Vencimento original: "+o.DueDate.Format("02/01/2006"))
	}
	if o.Notes != "" {
		desc = append(desc, o.Notes)
	}

	return &caldav.Event{
		UID:         obligationUID(o.ID),
		Summary:     summary,
		Description: strings.Join(desc, "\n"),
		Categories:  categories,
		Start:       o.CalculatedDueDate,
		AllDay:      true,
		Completed:   o.IsCompleted(),
	}
}

func encodeCalendar(cal *ical.Calendar) ([]byte, error) {
	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("encode calendar: %w", err)
	}
	return buf.Bytes(), nil
}

// Feed renders every obligation as an all-day event on its display date.
func (s *CalendarService) Feed(ctx context.Context) ([]byte, error) {
	obligations, err := s.storage.ListObligations(ctx)
	if err != nil {
		return nil, err
	}
	clients, err := s.storage.ListClients(ctx)
	if err != nil {
		return nil, err
	}
	taxes, err := s.storage.ListTaxes(ctx)
	if err != nil {
		return nil, err
	}

	stamp := s.now()
	cal := caldav.NewCalendar()
	for _, o := range dashboard.WithDetails(obligations, clients, taxes) {
		cal.Children = append(cal.Children, caldav.NewEventComponent(obligationEvent(o), stamp).Component)
	}
	return encodeCalendar(cal)
}

// TaxFeed renders the tax template as one recurring event starting at the
// tax's earliest obligation, or today when it has none.
func (s *CalendarService) TaxFeed(ctx context.Context, taxID string) ([]byte, error) {
	tax, err := s.storage.GetTaxByID(ctx, taxID)
	if err != nil {
		return nil, err
	}
	if tax == nil {
		return nil, fmt.Errorf("tax %s: %w", taxID, ErrNotFound)
	}

	obligations, err := s.storage.ListObligationsByTax(ctx, taxID)
	if err != nil {
		return nil, err
	}
	start := domain.DateOf(s.now(), s.loc)
	if len(obligations) > 0 {
		start = obligations[0].DueDate
	}

	opt, err := recurrence.ROption(tax.RecurrenceRule, start)
	if errors.Is(err, recurrence.ErrNoRecurrence) {
		return nil, fmt.Errorf("%w: tax %s does not recur", ErrInvalidInput, tax.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	event := &caldav.Event{
		UID:         "tax-" + tax.ID + uidSuffix,
		Summary:     tax.Name,
		Description: recurrence.Description(tax.RecurrenceRule),
		Start:       start,
		AllDay:      true,
		RRule:       opt,
	}
	if tax.Category != "" {
		event.Categories = []string{tax.Category}
	}

	cal := caldav.NewCalendar()
	cal.Children = append(cal.Children, caldav.NewEventComponent(event, s.now()).Component)
	return encodeCalendar(cal)
}

// PushObligation writes one obligation to the CalDAV calendar.
func (s *CalendarService) PushObligation(ctx context.Context, o domain.Obligation) error {
	if !s.IsConfigured() {
		return nil
	}
	tax, err := s.storage.GetTaxByID(ctx, o.TaxID)
	if err != nil {
		return err
	}
	client, err := s.storage.GetClientByID(ctx, o.ClientID)
	if err != nil {
		return err
	}

	var clients []domain.Client
	var taxes []domain.Tax
	if client != nil {
		clients = []domain.Client{*client}
	}
	if tax != nil {
		taxes = []domain.Tax{*tax}
	}
	details := dashboard.WithDetails([]domain.Obligation{o}, clients, taxes)
	return s.caldavClient.PutEvent(ctx, obligationEvent(details[0]))
}

// Subscribe mirrors obligation changes to CalDAV in the background and
// returns the unsubscribe function. Call Wait before shutdown.
func (s *CalendarService) Subscribe(events *Events) func() {
	return events.Subscribe(func(ctx context.Context, ev ChangeEvent) {
		if ev.EntityType != domain.EntityObligation || !s.IsConfigured() {
			return
		}

		s.pushes.Add(1)
		go func() {
			defer s.pushes.Done()
			ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
			defer cancel()

			var err error
			if ev.Action == domain.ActionDeleted {
				err = s.caldavClient.DeleteEvent(ctx, obligationUID(ev.EntityID))
			} else if o, ok := ev.Entity.(domain.Obligation); ok {
				err = s.PushObligation(ctx, o)
			}
			if err != nil {
				s.logger.Warn("caldav sync failed", zap.String("obligation_id", ev.EntityID), zap.Error(err))
			}
		}()
	})
}

// Wait blocks until background CalDAV pushes finish.
func (s *CalendarService) Wait() {
	s.pushes.Wait()
}
