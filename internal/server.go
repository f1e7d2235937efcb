package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/2beens/fitsession/internal/catalog"
	"github.com/2beens/fitsession/internal/config"
	"github.com/2beens/fitsession/internal/db"
	"github.com/2beens/fitsession/internal/middleware"
	"github.com/2beens/fitsession/internal/misc"
	"github.com/2beens/fitsession/internal/plan"
	"github.com/2beens/fitsession/internal/session"
	"github.com/2beens/fitsession/internal/session/achievements"
	"github.com/2beens/fitsession/internal/session/adaptive"
	"github.com/2beens/fitsession/internal/session/analytics"
	"github.com/2beens/fitsession/internal/telemetry/metrics"
	"github.com/2beens/fitsession/internal/telemetry/tracing"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/multierr"
)

// realtime snapshots outlive the longest plausible workout, then expire
// on their own; reads past the TTL fall back to the session row
const snapshotTTL = 24 * time.Hour

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	appSecret         string // shared secret of the mobile session player app
	versionInfo       string

	config      *config.Config
	dbPool      *pgxpool.Pool
	redisClient *redis.Client

	sessionService   *session.Service
	snapshotStore    *session.RedisSnapshotStore
	analyticsService *analytics.Service
	adaptiveEngine   *adaptive.Engine
	achievements     *achievements.Service

	// telemetry
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config         *config.Config
	AppSecret      string
	VersionInfo    string
	RedisPassword  string
	TracingEnabled bool
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:         params.Config.PostgresHost,
		DBPort:         params.Config.PostgresPort,
		DBName:         params.Config.PostgresDBName,
		TracingEnabled: params.TracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("new db pool: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Warnf("failed to ping db: %s", err)
	}

	pgxpoolCollector := pgxpoolprometheus.NewCollector(
		dbPool,
		map[string]string{"db_name": params.Config.PostgresDBName},
	)
	promRegistry := metrics.SetupPrometheus(pgxpoolCollector)
	metricsManager := metrics.NewManager("fitsession", "main", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(params.Config.RedisHost, params.Config.RedisPort),
		Password: params.RedisPassword,
		DB:       0, // use default DB
	})

	rdbStatus := rdb.Ping(ctx)
	if err := rdbStatus.Err(); err != nil {
		log.Errorf("--> failed to ping redis: %s", err)
	} else {
		log.Debugf("redis ping: %s", rdbStatus.Val())
	}

	otelShutdown, err := tracing.Setup(params.TracingEnabled, "fitsession-backend")
	if err != nil {
		return nil, err
	}

	sessionRepo := session.NewRepo(dbPool)
	snapshotStore := session.NewRedisSnapshotStore(rdb, snapshotTTL)
	sessionService := session.NewService(
		sessionRepo,
		plan.NewRepo(dbPool),
		snapshotStore,
	)

	adaptiveEngine := adaptive.NewEngine(
		adaptive.DefaultConfig(),
		adaptive.NewRepo(dbPool),
		adaptive.NewRecommendationsRepo(dbPool),
		catalog.NewRepo(dbPool),
		nil,
	)

	analyticsConfig := analytics.DefaultConfig()
	if params.Config.LiveStatsCacheTTLSeconds > 0 {
		analyticsConfig.StatsCacheTTL = time.Duration(params.Config.LiveStatsCacheTTLSeconds) * time.Second
	}
	analyticsService := analytics.NewService(
		analytics.NewAnalyzer(analyticsConfig),
		sessionRepo,
		analytics.NewRepo(dbPool),
		adaptiveEngine,
		analytics.NewStatsCache(analyticsConfig.StatsCacheTTL, nil),
		nil,
	)

	achievementsService := achievements.NewService(
		achievements.NewEvaluator(achievements.All()),
		achievements.NewRepo(dbPool),
		achievements.NewStatsRepo(dbPool),
		sessionRepo,
		metricsManager,
		nil,
	)

	// a completed session first feeds the adaptive metrics, then the
	// achievement rules (which read the updated lifetime counters)
	analyticsService.OnCompletion(adaptiveEngine.LearnFromSummary)
	analyticsService.OnCompletion(func(ctx context.Context, summary *analytics.Summary) error {
		_, err := achievementsService.EvaluateSummary(ctx, summary)
		return err
	})

	return &Server{
		appSecret:   params.AppSecret,
		versionInfo: params.VersionInfo,

		config:      params.Config,
		dbPool:      dbPool,
		redisClient: rdb,

		sessionService:   sessionService,
		snapshotStore:    snapshotStore,
		analyticsService: analyticsService,
		adaptiveEngine:   adaptiveEngine,
		achievements:     achievementsService,

		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}, nil
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("fitsession-router"))

	miscHandler := misc.NewHandler(s.versionInfo)
	miscHandler.SetupRoutes(r)

	sessionHandler := session.NewHandler(s.sessionService, s.snapshotStore, s.metricsManager)
	r.HandleFunc("/sessions", sessionHandler.HandleCreate).Methods("POST", "OPTIONS").Name("new-session")
	r.HandleFunc("/sessions/{id}", sessionHandler.HandleGet).Methods("GET", "OPTIONS").Name("get-session")
	r.HandleFunc("/sessions/{id}/start", sessionHandler.HandleStart).Methods("POST", "OPTIONS").Name("start-session")
	r.HandleFunc("/sessions/{id}/pause", sessionHandler.HandlePause).Methods("POST", "OPTIONS").Name("pause-session")
	r.HandleFunc("/sessions/{id}/resume", sessionHandler.HandleResume).Methods("POST", "OPTIONS").Name("resume-session")
	r.HandleFunc("/sessions/{id}/exercise/start", sessionHandler.HandleStartExercise).Methods("POST", "OPTIONS").Name("start-exercise")
	r.HandleFunc("/sessions/{id}/exercise/skip", sessionHandler.HandleSkipExercise).Methods("POST", "OPTIONS").Name("skip-exercise")
	r.HandleFunc("/sessions/{id}/set/complete", sessionHandler.HandleCompleteSet).Methods("POST", "OPTIONS").Name("complete-set")
	r.HandleFunc("/sessions/{id}/rest/start", sessionHandler.HandleStartRest).Methods("POST", "OPTIONS").Name("start-rest")
	r.HandleFunc("/sessions/{id}/rest/skip", sessionHandler.HandleSkipRest).Methods("POST", "OPTIONS").Name("skip-rest")
	r.HandleFunc("/sessions/{id}/complete", sessionHandler.HandleComplete).Methods("POST", "OPTIONS").Name("complete-session")
	r.HandleFunc("/sessions/{id}/cancel", sessionHandler.HandleCancel).Methods("POST", "OPTIONS").Name("cancel-session")
	r.HandleFunc("/sessions/{id}/feedback", sessionHandler.HandleFeedback).Methods("POST", "OPTIONS").Name("session-feedback")
	r.HandleFunc("/sessions/{id}/snapshot", sessionHandler.HandleGetSnapshot).Methods("GET", "OPTIONS").Name("session-snapshot")
	r.HandleFunc("/sessions/{id}/logs", sessionHandler.HandleGetLogs).Methods("GET", "OPTIONS").Name("session-logs")

	analyticsHandler := analytics.NewHandler(s.analyticsService)
	r.HandleFunc("/sessions/{id}/stats", analyticsHandler.HandleGetStats).Methods("GET", "OPTIONS").Name("session-stats")
	r.HandleFunc("/sessions/{id}/summary", analyticsHandler.HandleGetSummary).Methods("GET", "OPTIONS").Name("session-summary")

	adaptiveHandler := adaptive.NewHandler(s.adaptiveEngine, s.metricsManager)
	r.HandleFunc("/adaptive/rest", adaptiveHandler.HandleGetRest).Methods("GET", "OPTIONS").Name("adaptive-rest")
	r.HandleFunc("/adaptive/recommendations", adaptiveHandler.HandleGetRecommendations).Methods("GET", "OPTIONS").Name("adaptive-recommendations")
	r.HandleFunc("/adaptive/onerepmax", adaptiveHandler.HandleGetOneRepMax).Methods("GET", "OPTIONS").Name("adaptive-onerepmax")
	r.HandleFunc("/adaptive/recommendations/{id}/response", adaptiveHandler.HandleRespond).Methods("POST", "OPTIONS").Name("adaptive-respond")

	achievementsHandler := achievements.NewHandler(s.achievements, s.analyticsService)
	r.HandleFunc("/achievements/evaluate", achievementsHandler.HandleEvaluate).Methods("POST", "OPTIONS").Name("evaluate-achievements")
	r.HandleFunc("/achievements/unlocked", achievementsHandler.HandleListUnlocked).Methods("GET", "OPTIONS").Name("list-achievements")

	// all the rest - unhandled paths
	r.HandleFunc("/{unknown}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}).Methods("GET", "POST", "PUT", "OPTIONS").Name("unknown")

	authMiddleware := middleware.NewAuthMiddlewareHandler(s.appSecret)

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors())
	r.Use(authMiddleware.AuthCheck())
	r.Use(middleware.DrainAndCloseRequest())

	return r
}

func (s *Server) Serve(host string, port int) {
	router := s.routerSetup()

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.HandlerFor(
		s.promRegistry,
		promhttp.HandlerOpts{},
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:    metricsAddr,
		Handler: metricsRouter,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	s.otelShutdown()
	log.Trace("otel shut down ...")

	var closeErr error
	if s.redisClient != nil {
		closeErr = multierr.Append(closeErr, s.redisClient.Close())
	}

	if s.dbPool != nil {
		log.Debugln("closing db pool ...")
		s.dbPool.Close() // blocking operation
		log.Debugln("db pool closed")
	}

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if s.httpServer != nil {
		closeErr = multierr.Append(closeErr, s.httpServer.Shutdown(ctx))
	}
	if s.metricsHttpServer != nil {
		closeErr = multierr.Append(closeErr, s.metricsHttpServer.Shutdown(ctx))
	}
	if closeErr != nil {
		log.Errorf(" >>> shutdown errors: %s", closeErr)
	}

	log.Warnln("server shut down")
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeRequests.Add(1)
	case http.StateClosed:
		s.metricsManager.GaugeRequests.Add(-1)
	default:
		// do nothing
	}
}
