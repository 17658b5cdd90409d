package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"fraud-ledger/internal/interfaces/http/handler"
)

// Handlers groups every HTTP handler the router serves
type Handlers struct {
	Ledger      *handler.LedgerHandler
	Operations  *handler.OperationsHandler
	Health      *handler.HealthHandler
	MetricsPath string // empty disables /metrics
}

// NewRouter creates a new router with all routes configured
func NewRouter(h Handlers, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger.Named("http")))
	r.Use(middleware.Recoverer)
	r.Use(cors)

	// Health endpoints
	r.Get("/health", h.Health.Health)
	r.Get("/health/ready", h.Health.Ready)
	r.Get("/health/live", h.Health.Live)

	if h.MetricsPath != "" {
		r.Method(http.MethodGet, h.MetricsPath, handler.MetricsHandler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", h.Ledger.CreateAccount)
			r.Route("/{accountID}", func(r chi.Router) {
				r.Get("/", h.Ledger.GetAccount)
				r.Post("/transactions", h.Ledger.SubmitTransaction)
				r.Post("/logins", h.Ledger.RecordLogin)
				r.Post("/devices", h.Ledger.ChangeDevice)
				r.Post("/locations", h.Ledger.ChangeLocation)
			})
		})

		// flagged is registered before the id pattern
		r.Get("/transactions/flagged", h.Ledger.ListFlagged)
		r.Get("/transactions/{transactionID}", h.Ledger.GetTransaction)

		r.Post("/projections/{name}/rebuild", h.Operations.RebuildProjection)
		r.Post("/models/train", h.Operations.TrainModel)
		r.Post("/models/rescore", h.Operations.Rescore)
	})

	return r
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, req)
	})
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			logger.Debug("request served",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
