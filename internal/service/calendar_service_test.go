package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tazhate/fiscalbot/internal/clients/caldav"
	"github.com/tazhate/fiscalbot/internal/domain"
)

func TestCalendarFeed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending := f.obligation(t, domain.Obligation{DueDate: day(2024, 3, 23), AssignedTo: "Ana"})
	done := f.obligation(t, domain.Obligation{DueDate: day(2024, 2, 20), Status: domain.StatusCompleted})

	svc := NewCalendarService(f.storage, caldav.NewClient("", "", "", ""), zap.NewNop(), loc)
	assert.False(t, svc.IsConfigured())

	data, err := svc.Feed(ctx)
	require.NoError(t, err)
	feed := string(data)

	assert.Contains(t, feed, "BEGIN:VCALENDAR")
	assert.Contains(t, feed, "UID:"+pending.ID+"@fiscalbot")
	assert.Contains(t, feed, "UID:"+done.ID+"@fiscalbot")
	assert.Contains(t, feed, "SUMMARY:DAS - Padaria Pão Quente")
	// Saturday 23 March is shown on Monday the 25th.
	assert.Contains(t, feed, "DTSTART;VALUE=DATE:20240325")
	assert.Contains(t, feed, "CATEGORIES:Federal")
	assert.Contains(t, feed, "STATUS:CANCELLED")
}

func TestCalendarTaxFeed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.obligation(t, domain.Obligation{DueDate: day(2024, 2, 20)})

	svc := NewCalendarService(f.storage, nil, zap.NewNop(), loc)

	data, err := svc.TaxFeed(ctx, f.tax.ID)
	require.NoError(t, err)
	feed := string(data)
	assert.Contains(t, feed, "RRULE:")
	assert.Contains(t, feed, "BYMONTHDAY=20")
	assert.Contains(t, feed, "DTSTART;VALUE=DATE:20240220")

	_, err = svc.TaxFeed(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	once := &domain.Tax{Name: "DIRPF", RecurrenceRule: domain.RecurrenceRule{Type: domain.RecurrenceNone}, Active: true}
	_, err = f.storage.SaveTax(ctx, once)
	require.NoError(t, err)
	_, err = svc.TaxFeed(ctx, once.ID)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCalendarSubscribeSkipsWhenUnconfigured(t *testing.T) {
	f := newFixture(t)
	svc := NewCalendarService(f.storage, nil, zap.NewNop(), loc)

	unsubscribe := svc.Subscribe(f.events)
	defer unsubscribe()

	obligations := NewObligationService(f.storage, f.events, zap.NewNop())
	_, err := obligations.Save(context.Background(), &domain.Obligation{TaxID: f.tax.ID, ClientID: f.client.ID, DueDate: day(2024, 3, 20)}, "Ana")
	require.NoError(t, err)
	svc.Wait()
}
