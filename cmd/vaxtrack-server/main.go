package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vaxtrack/vaxtrack/internal/config"
	"github.com/vaxtrack/vaxtrack/internal/domain/appointment"
	"github.com/vaxtrack/vaxtrack/internal/domain/child"
	"github.com/vaxtrack/vaxtrack/internal/domain/coverage"
	"github.com/vaxtrack/vaxtrack/internal/domain/facility"
	"github.com/vaxtrack/vaxtrack/internal/domain/immunization"
	"github.com/vaxtrack/vaxtrack/internal/domain/outreach"
	"github.com/vaxtrack/vaxtrack/internal/domain/schedule"
	"github.com/vaxtrack/vaxtrack/internal/domain/stock"
	"github.com/vaxtrack/vaxtrack/internal/domain/user"
	"github.com/vaxtrack/vaxtrack/internal/domain/vaccine"
	"github.com/vaxtrack/vaxtrack/internal/platform/auth"
	"github.com/vaxtrack/vaxtrack/internal/platform/cache"
	"github.com/vaxtrack/vaxtrack/internal/platform/db"
	"github.com/vaxtrack/vaxtrack/internal/platform/httpx"
	"github.com/vaxtrack/vaxtrack/internal/platform/metrics"
	"github.com/vaxtrack/vaxtrack/internal/platform/middleware"
	"github.com/vaxtrack/vaxtrack/migrations"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "vaxtrack-server",
		Short: "VaxTrack immunization tracking API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(env string, w io.Writer) zerolog.Logger {
	if env == "development" {
		w = zerolog.ConsoleWriter{Out: w}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	return db.NewPool(ctx, db.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrations.FS).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrations.FS).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	})

	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load reference data",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "vaccines",
		Short: "Insert the national immunization schedule vaccines",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Env, os.Stdout)
			ctx := context.Background()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			added, err := vaccine.NewService(vaccine.NewRepoPG(pool), vaccine.WithLogger(logger)).Seed(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Seeded %d vaccine(s).\n", added)
			return nil
		},
	})
	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed bearer token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			roleFlag, _ := cmd.Flags().GetString("role")
			userFlag, _ := cmd.Flags().GetString("user")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if ttl == 0 {
				ttl = cfg.JWTTTL
			}

			tok, err := issueToken(cfg, roleFlag, userFlag, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().String("role", string(auth.RoleAdmin), "Role of the token holder")
	cmd.Flags().String("user", "", "User ID (random when empty)")
	cmd.Flags().Duration("ttl", 0, "Token lifetime (defaults to JWT_TTL)")
	return cmd
}

func issueToken(cfg *config.Config, roleName, userID string, ttl time.Duration) (string, error) {
	role, err := auth.ParseRole(roleName)
	if err != nil {
		return "", err
	}
	id := uuid.New()
	if userID != "" {
		if id, err = uuid.Parse(userID); err != nil {
			return "", fmt.Errorf("invalid user id: %w", err)
		}
	}
	return auth.IssueToken(jwtConfig(cfg), auth.Principal{UserID: id, Role: role}, ttl)
}

func jwtConfig(cfg *config.Config) auth.JWTConfig {
	return auth.JWTConfig{
		Issuer:     cfg.JWTIssuer,
		SigningKey: []byte(cfg.JWTSigningKey),
		Skipper:    auth.AuthSkipper,
	}
}

// authMiddleware picks bearer tokens outside development. In development
// requests may pick their principal with the X-Dev-* headers.
func authMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	if cfg.IsDev() {
		return auth.DevAuthMiddleware(jwtConfig(cfg))
	}
	return auth.JWTMiddleware(jwtConfig(cfg))
}

func engineOptions(cfg *config.Config, m *metrics.Metrics) []schedule.Option {
	opts := []schedule.Option{schedule.WithMetrics(m)}
	if cfg.ScheduleCompletedOnly {
		opts = append(opts, schedule.WithCompletedDosesOnly())
	}
	return opts
}

// newCatalogCache returns the in-process cache, backed by Redis when
// REDIS_URL is set. The returned func releases the Redis client.
func newCatalogCache(ctx context.Context, cfg *config.Config, logger zerolog.Logger, m *metrics.Metrics) (cache.Store, func(), error) {
	local := cache.NewMemory(cfg.CatalogCacheSize, cfg.CatalogCacheTTL)
	client, err := cache.NewRedisClient(ctx, cache.RedisConfig{URL: cfg.RedisURL})
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		return cache.NewTiered(local, nil, m), func() {}, nil
	}
	logger.Info().Msg("catalog cache backed by redis")
	shared := cache.NewRedis(client, "vaxtrack:", logger)
	return cache.NewTiered(local, shared, m), func() { client.Close() }, nil
}

// newEcho builds the server with global middleware, error handling and the
// unauthenticated infrastructure routes.
func newEcho(cfg *config.Config, logger zerolog.Logger, m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = httpx.JSONSerializer{}
	e.HTTPErrorHandler = httpx.ErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Sanitize(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(m.Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Dev-Role", "X-Dev-User"},
	}))
	if cfg.RequestTimeout > 0 {
		e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	}
	e.Use(authMiddleware(cfg))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/metrics", echo.WrapHandler(m.Handler()))
	return e
}

// registerDomains wires every service to its dependencies and mounts the
// handlers on api.
func registerDomains(api *echo.Group, pool *pgxpool.Pool, cfg *config.Config, logger zerolog.Logger, m *metrics.Metrics, store cache.Store) {
	engine := schedule.New(engineOptions(cfg, m)...)
	tx := db.Transactor{Pool: pool}

	facilitySvc := facility.NewService(facility.NewRepoPG(pool))
	userSvc := user.NewService(user.NewRepoPG(pool), facilitySvc)
	vaccineSvc := vaccine.NewService(vaccine.NewRepoPG(pool),
		vaccine.WithCache(store, cfg.CatalogCacheTTL), vaccine.WithLogger(logger))

	childRepo := child.NewRepoPG(pool)
	immunizationSvc := immunization.NewService(immunization.NewRepoPG(pool), childRepo, vaccineSvc, tx, engine, logger)
	childSvc := child.NewService(childRepo, userSvc, immunizationSvc, vaccineSvc, engine,
		child.WithMetrics(m), child.WithLogger(logger))
	immunizationSvc.SetStatusRefresher(childSvc)

	appointmentSvc := appointment.NewService(appointment.NewRepoPG(pool), childSvc, facilitySvc)
	stockSvc := stock.NewService(stock.NewRepoPG(pool), facilitySvc, vaccineSvc, tx)
	outreachSvc := outreach.NewService(outreach.NewRepoPG(pool), userSvc, childSvc, immunizationSvc, vaccineSvc, engine,
		outreach.WithConcurrency(cfg.BatchConcurrency), outreach.WithLogger(logger))
	coverageSvc := coverage.NewService(coverage.NewRepoPG(pool), facilitySvc, vaccineSvc, childSvc, immunizationSvc,
		coverage.WithLogger(logger))

	facility.NewHandler(facilitySvc).RegisterRoutes(api)
	user.NewHandler(userSvc).RegisterRoutes(api)
	vaccine.NewHandler(vaccineSvc).RegisterRoutes(api)
	child.NewHandler(childSvc).RegisterRoutes(api)
	immunization.NewHandler(immunizationSvc).RegisterRoutes(api)
	appointment.NewHandler(appointmentSvc).RegisterRoutes(api)
	stock.NewHandler(stockSvc).RegisterRoutes(api)
	outreach.NewHandler(outreachSvc).RegisterRoutes(api)
	coverage.NewHandler(coverageSvc).RegisterRoutes(api)
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"), os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := openPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	store, closeCache, err := newCatalogCache(ctx, cfg, logger, m)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer closeCache()

	e := newEcho(cfg, logger, m)
	e.GET("/health/db", db.HealthHandler(pool))

	rateLimitCfg := middleware.DefaultRateLimitConfig()
	rateLimitCfg.RequestsPerSecond = cfg.RateLimitRPS
	rateLimitCfg.BurstSize = cfg.RateLimitBurst
	api := e.Group("/api/v1", middleware.RateLimit(rateLimitCfg))
	registerDomains(api, pool, cfg, logger, m, store)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
