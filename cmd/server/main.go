package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/Saireddy1599/WatchTogether/internal/config"
	"github.com/Saireddy1599/WatchTogether/internal/database"
	"github.com/Saireddy1599/WatchTogether/internal/handler"
	"github.com/Saireddy1599/WatchTogether/internal/health"
	"github.com/Saireddy1599/WatchTogether/internal/identity"
	"github.com/Saireddy1599/WatchTogether/internal/logger"
	"github.com/Saireddy1599/WatchTogether/internal/metrics"
	"github.com/Saireddy1599/WatchTogether/internal/middleware"
	"github.com/Saireddy1599/WatchTogether/internal/queue"
	"github.com/Saireddy1599/WatchTogether/internal/repository"
	"github.com/Saireddy1599/WatchTogether/internal/router"
	"github.com/Saireddy1599/WatchTogether/internal/service"
	"github.com/Saireddy1599/WatchTogether/internal/sse"
	"github.com/Saireddy1599/WatchTogether/internal/upstream"
	"github.com/Saireddy1599/WatchTogether/internal/validator"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, os.Stdout)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	log.Info("starting", "env", cfg.Env, "port", cfg.Port)

	// Redis is optional; every consumer has an in-process fallback.
	rdb := config.NewRedisClient(cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
	} else {
		log.Info("redis not configured or unreachable, using in-process state")
	}

	users, db, err := openUsers(ctx, cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	verifier := buildVerifier(ctx, cfg, log)
	backend, cloud := buildBackends(ctx, cfg, log)
	m := metrics.New()

	var audit service.Publisher = service.NopPublisher{}
	if cfg.RabbitURL != "" {
		audit = service.NewAMQPPublisher(cfg.RabbitURL)
		consumer := &queue.Consumer{URL: cfg.RabbitURL, Dir: "logs", Log: log}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit consumer stopped", "err", err)
			}
		}()
	}

	state := health.NewState()
	clientIP, err := middleware.ClientIP(cfg.TrustedProxies)
	if err != nil {
		return err
	}
	e := newEcho(state, clientIP, log)

	authOpts := middleware.AuthOptions{
		ClientKey: cfg.ClientAPIKey,
		JWTSecret: cfg.JWTSecret,
		Verifier:  verifier,
		Metrics:   m,
	}
	gatewayAuth := middleware.ClientKeyOrBearer(authOpts)
	roomOpts := authOpts
	roomOpts.AllowQueryToken = true
	roomAuth := middleware.ClientKeyOrBearer(roomOpts)

	router.RegisterRoutes(e, handler.NewHealthHandler(state), m.Handler())
	router.RegisterAuth(e, handler.NewAuthHandler(cfg.JWTSecret, users, verifier, audit, log))
	router.RegisterGateway(e, &handler.CompletionHandler{
		Backend:      backend,
		Cloud:        cloud,
		DefaultModel: cfg.DefaultModel,
		Chain:        sse.DefaultChain,
		Metrics:      m,
		Audit:        audit,
		Log:          log,
	}, gatewayAuth, middleware.NewFixedWindow(cfg.RateLimit, rdb, log, m))
	router.RegisterRooms(e,
		handler.NewRoomHandler(roomStore(rdb, cfg, log), cfg.RoomCapacity, log),
		roomAuth,
		middleware.NewResponseCache(cfg.Cache, rdb, log),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	log.Info("listening", "addr", ":"+cfg.Port, "backend", backend.Name())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// Readiness flips first; new work is refused while in-flight requests
	// finish inside the grace window.
	state.MarkShuttingDown()
	log.Info("shutting down", "grace", cfg.ShutdownGrace)
	time.Sleep(cfg.ShutdownGrace)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("server stopped cleanly")
	return nil
}

func newEcho(state *health.State, clientIP echo.IPExtractor, log *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validator.New()
	e.IPExtractor = clientIP

	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []any{
				"id", v.RequestID,
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"remote_ip", v.RemoteIP,
			}
			if v.Error != nil {
				log.Error("request", append(attrs, "err", v.Error)...)
				return nil
			}
			log.Info("request", attrs...)
			return nil
		},
	}))
	e.Use(echomw.CORS())
	e.Use(middleware.Drain(state, router.ProbePaths...))
	return e
}

// openUsers picks the MySQL credential store when DB_HOST is set, otherwise
// the JSON file.  db is nil for the file store.
func openUsers(ctx context.Context, cfg config.Config) (repository.UserStore, *sql.DB, error) {
	if cfg.DB.Enabled() {
		db, err := database.Open(ctx, cfg.DB)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewUserRepo(db), db, nil
	}
	users, err := repository.NewFileUserRepo(cfg.UsersFile)
	if err != nil {
		return nil, nil, err
	}
	return users, nil, nil
}

// buildVerifier returns nil when identity exchange is not configured or the
// provider cannot be initialised; /auth/firebase-login then answers 500.
func buildVerifier(ctx context.Context, cfg config.Config, log *slog.Logger) identity.Verifier {
	if !cfg.FirebaseConfigured() {
		return nil
	}
	fb, err := identity.NewFirebase(ctx, cfg.GCPProject, cfg.FirebaseServiceAccount)
	if err != nil {
		log.Warn("firebase admin init failed", "err", err)
		return nil
	}
	log.Info("firebase admin initialized")
	return fb
}

// buildBackends returns the backend for /api/ai and, when configured, the
// cloud backend for /api/ai/stream.
func buildBackends(ctx context.Context, cfg config.Config, log *slog.Logger) (upstream.Backend, upstream.Backend) {
	direct := upstream.NewDirect(cfg.UpstreamURL, cfg.OpenAIKey, cfg.UpstreamTimeout, cfg.StreamTimeout)
	if !cfg.CloudConfigured() {
		return direct, nil
	}
	v, err := upstream.NewVertex(ctx, cfg.GCPProject, cfg.VertexLocation, cfg.VertexModel, cfg.UpstreamTimeout)
	if err != nil {
		log.Warn("vertex credentials unavailable, using direct provider", "err", err)
		return direct, nil
	}
	return v, v
}

func roomStore(rdb *redis.Client, cfg config.Config, log *slog.Logger) repository.RoomStore {
	if rdb == nil {
		return repository.NewMemoryRoomRepo(cfg.RoomTTL)
	}
	return repository.NewRoomRepo(rdb, cfg.RoomTTL, log)
}
