package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"github.com/boring-ventures/billiards-managementV1-sub001/cmd/billiardsd/cmd/cmdutil"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/audit"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/auth"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/cache"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/config"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/db/bunx"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/db/models"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/middleware"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/repository"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/server"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/services/iam"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/telemetry"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/tenant"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long: `Starts the HTTP server. SIGHUP clears the repository cache and SIGUSR1
toggles maintenance mode.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger(cfg)
		ctx := cmd.Context()

		shutdownTelemetry, err := telemetry.Init(ctx, cfg.Observability, log)
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTelemetry(shutdownCtx); err != nil {
				log.WithError(err).Warn("telemetry shutdown failed")
			}
		}()

		db, err := bunx.NewDB(ctx, cfg.DatabaseURL, cmdutil.PoolOptions(cfg))
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)
		log.WithField("dialect", bunx.DetectDatabaseType(cfg.DatabaseURL)).Info("connected to database")

		repoCache, err := newCache(ctx, cfg.Cache, log)
		if err != nil {
			return err
		}

		// Repositories
		profileRepo := repository.NewBunProfileRepository(db)
		companyRepo := repository.NewBunCompanyRepository(db)
		authEventRepo := repository.NewBunAuthEventRepository(db)
		tables := repository.NewTenantRepository[models.PoolTable](db, repoCache, "pool_tables", cfg.Cache.TTL, log)
		products := repository.NewTenantRepository[models.Product](db, repoCache, "products", cfg.Cache.TTL, log)

		matrix := auth.DefaultMatrix()
		if cfg.MatrixPath != "" {
			if matrix, err = auth.LoadMatrix(cfg.MatrixPath); err != nil {
				return fmt.Errorf("failed to load permission matrix: %w", err)
			}
			log.WithField("path", cfg.MatrixPath).Info("loaded permission matrix")
		}
		evaluator := auth.NewEvaluator(matrix)

		provider, err := newIdentityProvider(cfg.Identity)
		if err != nil {
			return err
		}
		sessions := iam.NewSessionValidator(provider, iam.RetryPolicy{
			MaxRetries:   cfg.Session.MaxRetries,
			BaseDelay:    cfg.Session.BaseDelay,
			MaxDelay:     cfg.Session.MaxDelay,
			ExhaustedTTL: cfg.Session.ExhaustedTTL,
		}, log)
		profileService := iam.NewProfileService(profileRepo, companyRepo, log)

		// Auth events: warn and above are persisted and optionally published.
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		var sink audit.MultiSink
		sink = append(sink, audit.NewBunSink(authEventRepo))
		if cfg.Audit.AMQPURL != "" {
			publisher, err := audit.DialAMQP(cfg.Audit.AMQPURL, cfg.Audit.AMQPExchange)
			if err != nil {
				return fmt.Errorf("failed to connect audit publisher: %w", err)
			}
			sink = append(sink, publisher)
			log.WithField("exchange", cfg.Audit.AMQPExchange).Info("publishing auth events")
		}
		asyncSink := audit.NewAsyncSink(sink, cfg.Audit.BufferSize, log)
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := asyncSink.Close(closeCtx); err != nil {
				log.WithError(err).WithField("dropped", asyncSink.Dropped()).Warn("auth event sink did not drain")
			}
		}()
		events := audit.NewLogger(log, asyncSink, audit.NewCounters(registry, cfg.Audit.ReportEvery))

		// Middleware
		authn, err := middleware.NewAuthnMiddleware(middleware.AuthnDependencies{
			Sessions:     sessions,
			Events:       events,
			CookieSecure: cfg.CookieSecure,
			CookieMaxAge: cfg.Identity.JWTRefreshWindow,
		})
		if err != nil {
			return fmt.Errorf("configure authentication middleware: %w", err)
		}
		profileMW, err := middleware.NewProfileMiddleware(middleware.ProfileDependencies{
			Profiles: profileService,
			Tenants:  tenant.NewResolver(companyRepo),
			Events:   events,
		})
		if err != nil {
			return fmt.Errorf("configure profile middleware: %w", err)
		}
		authorizer, err := middleware.NewAuthorizer(middleware.AuthzDependencies{
			Evaluator: evaluator,
			Events:    events,
		})
		if err != nil {
			return fmt.Errorf("configure authorization middleware: %w", err)
		}

		var limiter *middleware.RateLimiter
		if cfg.RateLimit.RPS > 0 {
			if limiter, err = middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, events); err != nil {
				return fmt.Errorf("configure rate limiter: %w", err)
			}
		}
		maintenance := middleware.NewMaintenance(cfg.Maintenance.Enabled, "/healthz", "/metrics")

		httpMetrics, err := telemetry.NewServerMetrics()
		if err != nil {
			return fmt.Errorf("create server metrics: %w", err)
		}

		corsOpts := server.DefaultCORSOptions()
		if len(cfg.AllowedOrigins) > 0 {
			corsOpts.AllowedOrigins = cfg.AllowedOrigins
		}

		r := server.NewRouter(server.RouterOptions{
			Authn:         authn,
			Profile:       profileMW,
			Authorizer:    authorizer,
			Evaluator:     evaluator,
			Profiles:      profileService,
			Companies:     companyRepo,
			Tables:        tables,
			Products:      products,
			Events:        events,
			Log:           log,
			Metrics:       httpMetrics,
			Gatherer:      registry,
			Maintenance:   maintenance,
			RateLimiter:   limiter,
			CORSOptions:   &corsOpts,
			HealthHandler: healthHandler(db, maintenance),
		})

		srv := &http.Server{
			Addr:         cfg.ServerAddr,
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  60 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			log.WithFields(logrus.Fields{
				"addr":          cfg.ServerAddr,
				"url":           cfg.ServerURL,
				"identity_mode": cfg.Identity.Mode,
				"cache":         cfg.Cache.Backend,
			}).Info("starting server")
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		control := make(chan os.Signal, 1)
		signal.Notify(control, syscall.SIGHUP, syscall.SIGUSR1)

		for {
			select {
			case err := <-serverErrors:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("server error: %w", err)

			case sig := <-control:
				switch sig {
				case syscall.SIGHUP:
					clearCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					if err := repoCache.Clear(clearCtx); err != nil {
						log.WithError(err).Error("cache clear failed")
					} else {
						log.Info("repository cache cleared")
					}
					cancel()
				case syscall.SIGUSR1:
					maintenance.Set(!maintenance.Enabled())
					log.WithField("enabled", maintenance.Enabled()).Warn("maintenance mode toggled")
				}

			case sig := <-shutdown:
				log.WithField("signal", sig.String()).Info("shutting down gracefully")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					srv.Close()
					return fmt.Errorf("graceful shutdown failed: %w", err)
				}
				log.Info("server stopped")
				return nil
			}
		}
	},
}

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	if cfg.Debug {
		log.SetLevel(logrus.DebugLevel)
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		return log
	}
	log.SetLevel(logrus.InfoLevel)
	log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	return log
}

func newCache(ctx context.Context, cc config.CacheConfig, log *logrus.Logger) (*cache.Cache, error) {
	switch cc.Backend {
	case config.CacheBackendRedis:
		client, err := cache.NewRedisClient(ctx, cc.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return cache.New(cache.NewRedisBackend(client, cc.KeyPrefix), cc.TTL, log), nil
	default:
		backend, err := cache.NewMemoryBackend(cc.MaxEntries)
		if err != nil {
			return nil, fmt.Errorf("failed to create memory cache: %w", err)
		}
		return cache.New(backend, cc.TTL, log), nil
	}
}

func newIdentityProvider(ic config.IdentityConfig) (auth.IdentityProvider, error) {
	switch ic.Mode {
	case config.IdentityModeOIDC:
		provider, err := auth.NewOIDCProvider(auth.OIDCProviderConfig{
			Issuer:   ic.OIDCIssuer,
			Audience: ic.OIDCAudience,
		})
		if err != nil {
			return nil, fmt.Errorf("configure oidc provider: %w", err)
		}
		return provider, nil
	default:
		provider, err := newJWTProvider(ic)
		if err != nil {
			return nil, fmt.Errorf("configure jwt provider: %w", err)
		}
		return provider, nil
	}
}

func newJWTProvider(ic config.IdentityConfig) (*auth.JWTProvider, error) {
	return auth.NewJWTProvider(auth.JWTProviderConfig{
		Secret:        []byte(ic.JWTSecret),
		Issuer:        ic.JWTIssuer,
		TTL:           ic.JWTTTL,
		RefreshWindow: ic.JWTRefreshWindow,
	})
}

func healthHandler(db *bun.DB, maintenance *middleware.Maintenance) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status, code := "ok", http.StatusOK
		if err := db.PingContext(ctx); err != nil {
			status, code = "database_unavailable", http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		fmt.Fprintf(w, `{"status":%q,"maintenance":%t}`, status, maintenance.Enabled())
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
