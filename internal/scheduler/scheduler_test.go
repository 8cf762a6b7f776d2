package scheduler

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tazhate/fiscalbot/config"
	"github.com/tazhate/fiscalbot/internal/calendar"
	"github.com/tazhate/fiscalbot/internal/domain"
	"github.com/tazhate/fiscalbot/internal/recurrence"
	"github.com/tazhate/fiscalbot/internal/service"
	"github.com/tazhate/fiscalbot/internal/storage"
)

var loc = time.FixedZone("BRT", -3*60*60)

type fakeNotifier struct {
	digests int
	results []service.GenerationResult
}

func (f *fakeNotifier) SendMorningDigest(context.Context) error {
	f.digests++
	return nil
}

func (f *fakeNotifier) NotifyGeneration(_ context.Context, result service.GenerationResult) error {
	f.results = append(f.results, result)
	return nil
}

type recordingSource struct {
	mu    sync.Mutex
	years []int
}

func (r *recordingSource) Holidays(_ context.Context, year int) ([]time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.years = append(r.years, year)
	return nil, nil
}

func newTestScheduler(t *testing.T) (*Scheduler, *storage.Storage, *recordingSource) {
	t.Helper()
	st, err := storage.New(":memory:", loc)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	source := &recordingSource{}
	holidays := calendar.NewHolidayCache(source, loc, zap.NewNop())
	engine := recurrence.NewEngine(calendar.NewAdjuster(holidays))
	generator := service.NewGenerator(st, engine, nil, zap.NewNop(), loc, "Sistema")

	cfg := &config.Config{Timezone: loc, GenerationTime: "06:00", MorningTime: "08:30"}
	s := New(cfg, generator, holidays, zap.NewNop())
	s.now = func() time.Time { return time.Date(2024, 12, 31, 23, 0, 0, 0, loc) }
	return s, st, source
}

func TestDailySpec(t *testing.T) {
	spec, err := dailySpec("08:30")
	require.NoError(t, err)
	assert.Equal(t, "30 8 * * *", spec)

	_, err = dailySpec("8h")
	assert.Error(t, err)
}

func TestRegister(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	require.NoError(t, s.register())
	assert.Len(t, s.cron.Entries(), 3)

	s.cfg.MorningTime = "25:00"
	fresh := New(s.cfg, s.generator, s.holidays, zap.NewNop())
	assert.Error(t, fresh.register())
}

func TestRunGenerationNotifies(t *testing.T) {
	s, st, _ := newTestScheduler(t)
	ctx := context.Background()

	client := &domain.Client{Name: "Padaria", Active: true}
	_, err := st.SaveClient(ctx, client)
	require.NoError(t, err)
	tax := &domain.Tax{Name: "DAS", RecurrenceRule: domain.RecurrenceRule{Type: domain.RecurrenceMonthly, DayOfMonth: 20}, AutoGenerate: true, Active: true}
	_, err = st.SaveTax(ctx, tax)
	require.NoError(t, err)
	_, err = st.SaveObligation(ctx, &domain.Obligation{
		TaxID: tax.ID, ClientID: client.ID, DueDate: time.Now().In(loc).AddDate(0, 0, -10), Status: domain.StatusCompleted,
	})
	require.NoError(t, err)

	n := &fakeNotifier{}
	s.SetNotifier(n)
	s.job(s.runGeneration)()

	require.Len(t, n.results, 1)
	assert.Len(t, n.results[0].Created, 1)
}

func TestMorningDigest(t *testing.T) {
	s, _, _ := newTestScheduler(t)

	assert.NotPanics(t, s.job(s.morningDigest))

	n := &fakeNotifier{}
	s.SetNotifier(n)
	s.job(s.morningDigest)()
	assert.Equal(t, 1, n.digests)
}

func TestWarmHolidaysLoadsCurrentAndNextYear(t *testing.T) {
	s, _, source := newTestScheduler(t)

	s.job(s.warmHolidays)()
	s.job(s.warmHolidays)()

	source.mu.Lock()
	defer source.mu.Unlock()
	slices.Sort(source.years)
	assert.Equal(t, []int{2024, 2025}, source.years)
}
