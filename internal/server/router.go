package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/boring-ventures/billiards-managementV1-sub001/internal/audit"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/auth"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/db/models"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/middleware"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/repository"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/telemetry"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/tenant"
)

// RouterOptions controls the construction of the HTTP router.
// Authn, Profile and Authorizer are required for the /api routes to be mounted.
type RouterOptions struct {
	Authn      func(http.Handler) http.Handler
	Profile    func(http.Handler) http.Handler
	Authorizer *middleware.Authorizer
	Evaluator  *auth.Evaluator

	Profiles  profileAdminService
	Companies companyDirectory
	Tables    *repository.TenantRepository[models.PoolTable, *models.PoolTable]
	Products  *repository.TenantRepository[models.Product, *models.Product]

	Events      *audit.Logger
	Log         *logrus.Logger
	Metrics     *telemetry.ServerMetrics
	Gatherer    prometheus.Gatherer
	Maintenance *middleware.Maintenance
	RateLimiter *middleware.RateLimiter
	CORSOptions *cors.Options

	HealthHandler http.HandlerFunc
	ExtraRoutes   func(chi.Router)
}

// DefaultCORSOptions returns the shared development CORS policy.
func DefaultCORSOptions() cors.Options {
	return cors.Options{
		AllowedOrigins: []string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
		},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			middleware.TenantHeader,
			audit.RequestIDHeader,
		},
		ExposedHeaders:   []string{audit.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

func defaultHealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// NewRouter assembles a chi.Router with shared middleware, CORS policy and the
// API handlers mounted.
func NewRouter(opts RouterOptions) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	if opts.Log != nil {
		r.Use(middleware.AccessLog(opts.Log))
	}
	r.Use(chimw.Recoverer)
	if opts.Metrics != nil {
		r.Use(middleware.HTTPMetrics(opts.Metrics))
	}

	corsCfg := DefaultCORSOptions()
	if opts.CORSOptions != nil {
		corsCfg = *opts.CORSOptions
	}
	r.Use(cors.Handler(corsCfg))

	if opts.Maintenance != nil {
		r.Use(opts.Maintenance.Middleware)
	}
	if opts.RateLimiter != nil {
		r.Use(opts.RateLimiter.Middleware)
	}

	healthHandler := opts.HealthHandler
	if healthHandler == nil {
		healthHandler = defaultHealthHandler
	}
	r.Get("/healthz", healthHandler)

	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	if opts.Authn != nil && opts.Profile != nil && opts.Authorizer != nil {
		mountAPI(r, opts)
	}

	if opts.ExtraRoutes != nil {
		opts.ExtraRoutes(r)
	}
	return r
}

func mountAPI(r chi.Router, opts RouterOptions) {
	h := &handlers{
		evaluator: opts.Evaluator,
		profiles:  opts.Profiles,
		companies: opts.Companies,
		events:    opts.Events,
	}
	require := opts.Authorizer.Require

	r.Route("/api", func(api chi.Router) {
		api.Use(opts.Authn, opts.Profile)

		api.Get("/me", h.handleMe)
		api.Get("/me/permissions", h.handlePermissions)

		if opts.Companies != nil {
			api.Route("/companies", func(cr chi.Router) {
				cr.With(require(auth.SectionCompanies, auth.ActionView, tenant.OpDirectory)).Get("/", h.handleListCompanies)
				cr.With(require(auth.SectionCompanies, auth.ActionView, tenant.OpDirectory)).Get("/{id}", h.handleGetCompany)
			})
		}

		if opts.Profiles != nil {
			api.Route("/profiles", func(pr chi.Router) {
				pr.With(require(auth.SectionUsers, auth.ActionView, tenant.OpDirectory)).Get("/", h.handleListProfiles)
				pr.With(require(auth.SectionUsers, auth.ActionView, tenant.OpDirectory)).Get("/{id}", h.handleGetProfile)
				pr.With(require(auth.SectionUsers, auth.ActionEdit, tenant.OpDirectory)).Patch("/{id}", h.handleUpdateProfile)
			})
		}

		if opts.Tables != nil {
			tables := &resourceHandlers[models.PoolTable, *models.PoolTable]{handlers: h, repo: opts.Tables, section: auth.SectionTables}
			api.Route("/tables", func(tr chi.Router) { tables.mount(tr, require) })
		}
		if opts.Products != nil {
			products := &resourceHandlers[models.Product, *models.Product]{handlers: h, repo: opts.Products, section: auth.SectionInventory}
			api.Route("/inventory", func(ir chi.Router) { products.mount(ir, require) })
		}
	})
}
