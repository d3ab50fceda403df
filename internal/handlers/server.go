package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"cryptotracker/internal/auth"
	"cryptotracker/internal/logger"
	"cryptotracker/internal/market"
	"cryptotracker/internal/models"
	"cryptotracker/internal/tracing"
	"cryptotracker/internal/watchlist"

	"github.com/felixge/httpsnoop"
	ghandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
}

// Refresher triggers an immediate market refetch.
type Refresher interface {
	Refresh(ctx context.Context)
}

type TrendingSource interface {
	FetchTrending(ctx context.Context) ([]models.TrendingCoin, error)
}

// ResponseCache stores encoded responses; GetCache returns "" on a miss.
type ResponseCache interface {
	GetCache(ctx context.Context, key, endpoint string) (string, error)
	SetCache(ctx context.Context, key, value string, ttl time.Duration) error
	InvalidateByPrefix(ctx context.Context, prefix, endpoint string) int
}

const defaultHeartbeat = 15 * time.Second

// Server holds the dependencies of the HTTP API.
type Server struct {
	Board *market.Board
	// Refresher is nil when market data comes from the shared cache.
	Refresher Refresher
	Trending  TrendingSource
	// Cache is optional; without it trending is fetched on every request.
	Cache       ResponseCache
	Auth        *auth.Service
	Watchlist   *watchlist.Service
	Instance    string
	CORSOrigins []string
	Heartbeat   time.Duration
}

// Handler builds the routed, instrumented API.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.observe)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", s.health).Methods(http.MethodGet)

	api.HandleFunc("/coins", s.listCoins).Methods(http.MethodGet)
	api.HandleFunc("/coins/ws", s.streamCoins).Methods(http.MethodGet)
	api.HandleFunc("/market/refresh", s.refreshMarket).Methods(http.MethodPost)
	api.HandleFunc("/global", s.globalStats).Methods(http.MethodGet)
	api.HandleFunc("/trending", s.trending).Methods(http.MethodGet)

	api.HandleFunc("/auth/signup", s.signUp).Methods(http.MethodPost)
	api.HandleFunc("/auth/signin", s.signIn).Methods(http.MethodPost)
	api.Handle("/auth/signout", s.withSession(s.signOut)).Methods(http.MethodPost)
	api.Handle("/auth/session", s.withSession(s.currentSession)).Methods(http.MethodGet)

	api.Handle("/watchlist", s.withSession(s.listWatchlist)).Methods(http.MethodGet)
	api.Handle("/watchlist", s.withSession(s.addToWatchlist)).Methods(http.MethodPost)
	api.Handle("/watchlist/stream", s.withSession(s.streamWatchlist)).Methods(http.MethodGet)
	api.Handle("/watchlist/{id}", s.withSession(s.removeFromWatchlist)).Methods(http.MethodDelete)

	origins := s.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	cors := ghandlers.CORS(
		ghandlers.AllowedOrigins(origins),
		ghandlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
		ghandlers.AllowedHeaders([]string{"Content-Type", "Authorization", sessionHeader}),
	)
	recovery := ghandlers.RecoveryHandler(
		ghandlers.RecoveryLogger(recoveryLogger{}),
		ghandlers.PrintRecoveryStack(true),
	)
	return recovery(cors(r))
}

// observe extracts the caller's trace context and records request metrics.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		r = r.WithContext(ctx)

		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		m := httpsnoop.CaptureMetrics(next, w, r)
		httpRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(m.Code)).Inc()
		httpRequestDuration.WithLabelValues(route, r.Method).Observe(m.Duration.Seconds())
	})
}

func startSpan(r *http.Request, name string) (context.Context, trace.Span, string) {
	ctx, span := otel.Tracer(tracing.TracerName).Start(r.Context(), name)
	return ctx, span, span.SpanContext().TraceID().String()
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "instance": s.Instance})
}

func (s *Server) heartbeat() time.Duration {
	if s.Heartbeat > 0 {
		return s.Heartbeat
	}
	return defaultHeartbeat
}

type recoveryLogger struct{}

func (recoveryLogger) Println(v ...interface{}) {
	logger.Log.Error("Recovered from panic in handler", zap.String("panic", fmt.Sprint(v...)))
}
