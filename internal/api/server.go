package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/tazhate/fiscalbot/config"
	"github.com/tazhate/fiscalbot/internal/recurrence"
	"github.com/tazhate/fiscalbot/internal/service"
	"github.com/tazhate/fiscalbot/internal/storage"
)

// Handler serves the REST API over the services.
type Handler struct {
	cfg          *config.Config
	storage      *storage.Storage
	clients      *service.ClientService
	taxes        *service.TaxService
	obligations  *service.ObligationService
	installments *service.InstallmentService
	dashboard    *service.DashboardService
	calendar     *service.CalendarService
	audit        *service.AuditService
	settings     *service.SettingsService
	generator    *service.Generator
	engine       *recurrence.Engine
	logger       *zap.Logger
	now          func() time.Time
}

type Services struct {
	Clients      *service.ClientService
	Taxes        *service.TaxService
	Obligations  *service.ObligationService
	Installments *service.InstallmentService
	Dashboard    *service.DashboardService
	Calendar     *service.CalendarService
	Audit        *service.AuditService
	Settings     *service.SettingsService
	Generator    *service.Generator
}

func NewHandler(cfg *config.Config, st *storage.Storage, svc Services, engine *recurrence.Engine, logger *zap.Logger) *Handler {
	return &Handler{
		cfg:          cfg,
		storage:      st,
		clients:      svc.Clients,
		taxes:        svc.Taxes,
		obligations:  svc.Obligations,
		installments: svc.Installments,
		dashboard:    svc.Dashboard,
		calendar:     svc.Calendar,
		audit:        svc.Audit,
		settings:     svc.Settings,
		generator:    svc.Generator,
		engine:       engine,
		logger:       logger.Named("api"),
		now:          cfg.Now,
	}
}

// NewRouter mounts /health, the Telegram webhook at /bot when given, and the
// authenticated /api routes when API credentials are configured.
func NewRouter(h *Handler, webhook http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)
	if webhook != nil {
		r.Method(http.MethodPost, "/bot", webhook)
	}

	if !h.cfg.APIEnabled() {
		h.logger.Info("api disabled: API_USERNAME and API_PASSWORD are not set")
		return r
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Performed-By"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
		r.Use(basicAuth(h.cfg.APIUsername, h.cfg.APIPassword))

		r.Route("/clients", func(r chi.Router) {
			r.Get("/", h.listClients)
			r.Post("/", h.saveClient)
			r.Get("/{id}", h.getClient)
			r.Put("/{id}", h.saveClient)
			r.Delete("/{id}", h.deleteClient)
			r.Get("/{id}/obligations", h.listClientObligations)
		})

		r.Route("/taxes", func(r chi.Router) {
			r.Get("/", h.listTaxes)
			r.Post("/", h.saveTax)
			r.Get("/{id}", h.getTax)
			r.Put("/{id}", h.saveTax)
			r.Delete("/{id}", h.deleteTax)
			r.Get("/{id}/calendar.ics", h.taxCalendar)
		})

		r.Route("/obligations", func(r chi.Router) {
			r.Get("/", h.listObligations)
			r.Post("/", h.saveObligation)
			r.Get("/{id}", h.getObligation)
			r.Put("/{id}", h.saveObligation)
			r.Delete("/{id}", h.deleteObligation)
			r.Patch("/{id}/status", h.updateObligationStatus)
			r.Post("/{id}/occurrences", h.generateOccurrences)
		})

		r.Route("/installments", func(r chi.Router) {
			r.Get("/", h.listInstallments)
			r.Post("/", h.saveInstallment)
			r.Get("/{id}", h.getInstallment)
			r.Put("/{id}", h.saveInstallment)
			r.Delete("/{id}", h.deleteInstallment)
			r.Post("/{id}/advance", h.advanceInstallment)
			r.Get("/{id}/schedule", h.installmentSchedule)
		})

		r.Get("/dashboard", h.getDashboard)
		r.Get("/dashboard/overdue", h.getOverdue)
		r.Get("/reports/productivity", h.getProductivity)

		r.Post("/recurrence/preview", h.previewRecurrence)
		r.Post("/recurrence/describe", h.describeRecurrence)
		r.Post("/generation/run", h.runGeneration)

		r.Get("/calendar.ics", h.calendarFeed)
		r.Get("/audit/{type}/{id}", h.getAuditTrail)

		r.Get("/settings/{user}", h.getSettings)
		r.Put("/settings/{user}", h.saveSettings)
	})

	return r
}

func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.storage.Ping(r.Context()); err != nil {
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
