package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tazhate/fiscalbot/internal/domain"
	"github.com/tazhate/fiscalbot/internal/recurrence"
	"github.com/tazhate/fiscalbot/internal/service"
)

// savedStatus is 201 for POST and 200 for PUT.
func savedStatus(r *http.Request) int {
	if r.Method == http.MethodPost {
		return http.StatusCreated
	}
	return http.StatusOK
}

// Clients

func (h *Handler) listClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.clients.List(r.Context())
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	jsonOK(w, clients)
}

func (h *Handler) getClient(w http.ResponseWriter, r *http.Request) {
	c, err := h.clients.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	jsonOK(w, c)
}

func (h *Handler) saveClient(w http.ResponseWriter, r *http.Request) {
	var c domain.Client
	if err := decodeJSON(r, &c); err != nil {
		h.serviceError(w, r, err)
		return
	}
	c.ID = chi.URLParam(r, "id")

	saved, err := h.clients.Save(r.Context(), &c, performer(r))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	jsonResponse(w, savedStatus(r), saved)
}

func (h *Handler) deleteClient(w http.ResponseWriter, r *http.Request) {
	if err := h.clients.Delete(r.Context(), chi.URLParam(r, "id"), performer(r)); err != nil {
		h.serviceError(w, r, err)
		return
	}
	jsonOK(w, nil)
}

func (h *Handler) listClientObligations(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.clients.Get(r.Context(), id); err != nil {
		h.serviceError(w, r, err)
		return
	}
	obligations, err := h.obligations.ListByClient(r.Context(), id)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	jsonOK(w, obligations)
}

// Taxes

type taxResponse struct {
	Tax        *domain.Tax                 `json:"tax"`
	Validation recurrence.ValidationResult `json:"validation"`
}

func (h *Handler) listTaxes(w http.ResponseWriter, r *http.Request) {
	taxes, err := h.taxes.List(r.Context())
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	jsonOK(w, taxes)
}

func (h *Handler) getTax(w http.ResponseWriter, r *http.Request) {
	t, err := h.taxes.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	jsonOK(w, t)
}

func (h *Handler) saveTax(w http.ResponseWriter, r *http.Request) {
	var t domain.Tax
	if err := decodeJSON(r, &t); err != nil {
		h.serviceError(w, r, err)
		return
	}
	t.ID = chi.URLParam(r, "id")

	saved, validation, err := h.taxes.Save(r.Context(), &t, performer(r))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	jsonResponse(w, savedStatus(r), taxResponse{Tax: saved, Validation: validation})
}

func (h *Handler) deleteTax(w http.ResponseWriter, r *http.Request) {
	if err := h.taxes.Delete(r.Context(), chi.URLParam(r, "id"), performer(r)); err != nil {
		h.serviceError(w, r, err)
		return
	}
	jsonOK(w, nil)
}

// Obligations

func (h *Handler) listObligations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ctx := r.Context()

	if q.Get("details") == "true" {
		list, err := h.obligations.ListWithDetails(ctx)
		if err != nil {
			h.serviceError(w, r, err)
			return
		}
		jsonOK(w, list)
		return
	}

	var (
		list []domain.Obligation
		err  error
	)
	switch {
	case q.Get("status") != "":
		list, err = h.obligations.ListByStatus(ctx, domain.ObligationStatus(q.Get("status")))
	case q.Get("clientId") != "":
		list, err = h.obligations.ListByClient(ctx, q.Get("clientId"))
	default:
		list, err = h.obligations.List(ctx)
	}
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	jsonOK(w, list)
}

func (h *Handler) getObligation(w http.ResponseWriter, r *http.Request) {
	o, err := h.obligations.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	jsonOK(w, o)
}

func (h *Handler) saveObligation(w http.ResponseWriter, r *http.Request) {
	var o domain.Obligation
	if err := decodeJSON(r, &o); err != nil {
		h.serviceError(w, r, err)
		return
	}
	o.ID = chi.URLParam(r, "id")
	o.DueDate = civil(o.DueDate, h.cfg.Timezone)

	saved, err := h.obligations.Save(r.Context(), &o, performer(r))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	jsonResponse(w, savedStatus(r), saved)
}

type statusRequest struct {
	Status domain.ObligationStatus `json:"status"`
}

func (h *Handler) updateObligationStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		h.serviceError(w, r, err)
		return
	}
	saved, err := h.obligations.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status, performer(r))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	jsonOK(w, saved)
}

func (h *Handler) deleteObligation(w http.ResponseWriter, r *http.Request) {
	if err := h.obligations.Delete(r.Context(), chi.URLParam(r, "id"), performer(r)); err != nil {
		h.serviceError(w, r, err)
		return
	}
	jsonOK(w, nil)
}

// Installments

type installmentResponse struct {
	*domain.Installment
	Remaining int                     `json:"remaining"`
	NextDue   *service.InstallmentDue `json:"nextDue,omitempty"`
}

func (h *Handler) installmentView(r *http.Request, i *domain.Installment) (installmentResponse, error) {
	resp := installmentResponse{Installment: i, Remaining: i.Remaining()}
	next, err := h.installments.NextDue(r.Context(), i)
	if err != nil {
		return resp, err
	}
	resp.NextDue = next
	return resp, nil
}

func (h *Handler) listInstallments(w http.ResponseWriter, r *http.Request) {
	list, err := h.installments.List(r.Context())
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	views := make([]installmentResponse, 0, len(list))
	for i := range list {
		v, err := h.installmentView(r, &list[i])
		if err != nil {
			h.serviceError(w, r, err)
			return
		}
		views = append(views, v)
	}
	jsonOK(w, views)
}

func (h *Handler) getInstallment(w http.ResponseWriter, r *http.Request) {
	i, err := h.installments.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	v, err := h.installmentView(r, i)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	jsonOK(w, v)
}

func (h *Handler) saveInstallment(w http.ResponseWriter, r *http.Request) {
	var i domain.Installment
	if err := decodeJSON(r, &i); err != nil {
		h.serviceError(w, r, err)
		return
	}
	i.ID = chi.URLParam(r, "id")
	i.FirstDueDate = civil(i.FirstDueDate, h.cfg.Timezone)

	saved, err := h.installments.Save(r.Context(), &i, performer(r))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	jsonResponse(w, savedStatus(r), saved)
}

func (h *Handler) advanceInstallment(w http.ResponseWriter, r *http.Request) {
	saved, err := h.installments.Advance(r.Context(), chi.URLParam(r, "id"), performer(r))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	jsonOK(w, saved)
}

func (h *Handler) installmentSchedule(w http.ResponseWriter, r *http.Request) {
	i, err := h.installments.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	schedule, err := h.installments.Schedule(r.Context(), i)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	jsonOK(w, schedule)
}

func (h *Handler) deleteInstallment(w http.ResponseWriter, r *http.Request) {
	if err := h.installments.Delete(r.Context(), chi.URLParam(r, "id"), performer(r)); err != nil {
		h.serviceError(w, r, err)
		return
	}
	jsonOK(w, nil)
}
