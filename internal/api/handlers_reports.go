package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tazhate/fiscalbot/internal/domain"
	"github.com/tazhate/fiscalbot/internal/recurrence"
	"github.com/tazhate/fiscalbot/internal/service"
)

const (
	defaultPreviewCount = 6
	maxPreviewCount     = 60
)

func (h *Handler) getDashboard(w http.ResponseWriter, r *http.Request) {
	snap, err := h.dashboard.Snapshot(r.Context(), h.now())
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	jsonOK(w, snap)
}

func (h *Handler) getOverdue(w http.ResponseWriter, r *http.Request) {
	list, err := h.dashboard.Overdue(r.Context(), h.now())
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	jsonOK(w, list)
}

// getProductivity accepts optional start and end (YYYY-MM-DD); both are
// needed for the period on-time rate.
func (h *Handler) getProductivity(w http.ResponseWriter, r *http.Request) {
	start, err := dateQuery(r, "start", h.cfg.Timezone)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	end, err := dateQuery(r, "end", h.cfg.Timezone)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		h.serviceError(w, r, fmt.Errorf("%w: end is before start", service.ErrInvalidInput))
		return
	}

	report, err := h.dashboard.Productivity(r.Context(), start, end)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	jsonOK(w, report)
}

type previewRequest struct {
	Rule          domain.RecurrenceRule `json:"rule"`
	WeekendAdjust string                `json:"weekendAdjust"`
	Start         string                `json:"start"`
	Count         int                   `json:"count"`
}

type previewResponse struct {
	Dates       []string                    `json:"dates"`
	Description string                      `json:"description"`
	Validation  recurrence.ValidationResult `json:"validation"`
}

// previewRecurrence lists the next due dates a rule would produce from
// start (today when omitted).
func (h *Handler) previewRecurrence(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := decodeJSON(r, &req); err != nil {
		h.serviceError(w, r, err)
		return
	}

	adjust, err := domain.ParseWeekendAdjust(req.WeekendAdjust)
	if err != nil {
		h.serviceError(w, r, fmt.Errorf("%w: %v", service.ErrInvalidInput, err))
		return
	}

	start := domain.DateOf(h.now(), h.cfg.Timezone)
	if req.Start != "" {
		if start, err = domain.ParseDate(req.Start, h.cfg.Timezone); err != nil {
			h.serviceError(w, r, fmt.Errorf("%w: start must be YYYY-MM-DD", service.ErrInvalidInput))
			return
		}
	}

	count := req.Count
	if count <= 0 {
		count = defaultPreviewCount
	}
	count = min(count, maxPreviewCount)

	resp := previewResponse{
		Dates:       make([]string, 0, count),
		Description: recurrence.Description(req.Rule),
		Validation:  recurrence.Validate(req.Rule),
	}

	dates, err := h.engine.GenerateFutureDates(r.Context(), start, req.Rule, adjust, count)
	if err != nil && !errors.Is(err, recurrence.ErrNoRecurrence) {
		h.serviceError(w, r, err)
		return
	}
	for _, d := range dates {
		resp.Dates = append(resp.Dates, d.Format(domain.DateLayout))
	}
	jsonOK(w, resp)
}

type describeResponse struct {
	Description string                      `json:"description"`
	Validation  recurrence.ValidationResult `json:"validation"`
	RRule       string                      `json:"rrule,omitempty"`
}

func (h *Handler) describeRecurrence(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := decodeJSON(r, &req); err != nil {
		h.serviceError(w, r, err)
		return
	}

	resp := describeResponse{
		Description: recurrence.Description(req.Rule),
		Validation:  recurrence.Validate(req.Rule),
	}
	if resp.Validation.Valid {
		start := domain.DateOf(h.now(), h.cfg.Timezone)
		if t, err := domain.ParseDate(req.Start, h.cfg.Timezone); err == nil {
			start = t
		}
		if rrule, err := recurrence.RRule(req.Rule, start); err == nil {
			resp.RRule = rrule
		}
	}
	jsonOK(w, resp)
}

func (h *Handler) runGeneration(w http.ResponseWriter, r *http.Request) {
	result, err := h.generator.CheckAndGenerateRecurrences(r.Context())
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	jsonOK(w, result)
}

type occurrencesRequest struct {
	Count int `json:"count"`
}

func (h *Handler) generateOccurrences(w http.ResponseWriter, r *http.Request) {
	var req occurrencesRequest
	if err := decodeJSON(r, &req); err != nil {
		h.serviceError(w, r, err)
		return
	}

	ctx := r.Context()
	o, err := h.obligations.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	tax, err := h.taxes.Get(ctx, o.TaxID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	created, err := h.generator.GenerateFutureOccurrences(ctx, o, tax, req.Count)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, created)
}

func writeCalendar(w http.ResponseWriter, name string, data []byte) {
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) calendarFeed(w http.ResponseWriter, r *http.Request) {
	data, err := h.calendar.Feed(r.Context())
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeCalendar(w, "obrigacoes.ics", data)
}

func (h *Handler) taxCalendar(w http.ResponseWriter, r *http.Request) {
	data, err := h.calendar.TaxFeed(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeCalendar(w, "imposto.ics", data)
}

func (h *Handler) getAuditTrail(w http.ResponseWriter, r *http.Request) {
	trail, err := h.audit.Trail(r.Context(), domain.EntityType(chi.URLParam(r, "type")), chi.URLParam(r, "id"))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	jsonOK(w, trail)
}

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	us, err := h.settings.Get(r.Context(), chi.URLParam(r, "user"))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	jsonOK(w, us)
}

func (h *Handler) saveSettings(w http.ResponseWriter, r *http.Request) {
	var us domain.UserSettings
	if err := decodeJSON(r, &us); err != nil {
		h.serviceError(w, r, err)
		return
	}
	us.UserIdentifier = chi.URLParam(r, "user")

	saved, err := h.settings.Save(r.Context(), &us)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	jsonOK(w, saved)
}
