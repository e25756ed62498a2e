package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tierd/internal/pipeline"
	"tierd/pkg/types"
)

// NewMux builds the query API router.
func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: orDefault(corsAllowedOrigins, []string{"*"}),
			AllowedMethods: orDefault(corsAllowedMethods, []string{http.MethodGet, http.MethodPost, http.MethodOptions}),
			AllowedHeaders: orDefault(corsAllowedHeaders, []string{"Content-Type", "X-Log-Level"}),
			MaxAge:         300,
		}))
	}
	r.Use(MetricsMiddleware)

	r.Post("/api", func(w http.ResponseWriter, r *http.Request) {
		q, err := decodeQuery(w, r)
		if err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			writeJSONError(w, http.StatusBadRequest, "unreadable request body")
			return
		}

		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		if queryTimeout > 0 {
			var tcancel context.CancelFunc
			ctx, tcancel = context.WithTimeout(ctx, queryTimeout)
			defer tcancel()
		}

		lvl := requestLogLevel(r)
		rid := middleware.GetReqID(r.Context())
		if lvl >= LevelDebug {
			zlog.Debug().Str("request_id", rid).Str("text", q.Text).Str("domain", q.Domain).Msg("query start")
		}
		start := time.Now()
		resp := svc.Query(ctx, q)
		if lvl >= LevelInfo || (lvl == LevelError && resp.Status == types.StatusError) {
			zlog.Info().Str("request_id", rid).Str("query_id", resp.QueryID).Str("status", resp.Status).
				Str("tier", resp.Tier).Dur("dur", time.Since(start)).Msg("query end")
		}
		writeJSON(w, resp)
	})

	r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
		models, err := svc.ListModels(r.Context())
		if err != nil {
			writeJSONError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeJSON(w, types.ModelsResponse{Models: models})
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Status())
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready(r.Context()) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
	})

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

// decodeQuery reads a QueryRequest. A body that is not a JSON object is
// taken as the raw query text.
func decodeQuery(w http.ResponseWriter, r *http.Request) (pipeline.Query, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return pipeline.Query{}, err
	}
	var req types.QueryRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return pipeline.Query{Text: string(body)}, nil
	}
	return pipeline.Query{Text: req.Text, Domain: strings.TrimSpace(req.Domain), DiveConfirmed: req.DiveConfirmed}, nil
}

func orDefault(v, def []string) []string {
	if len(v) == 0 {
		return def
	}
	return v
}
