package middleware

import (
	"context"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/casavia/estate-crm/pkg/composables"
	"github.com/casavia/estate-crm/pkg/configuration"
	"github.com/casavia/estate-crm/pkg/constants"
	"github.com/casavia/estate-crm/pkg/httpapi"
)

// WithPool makes the database pool available to every repository reached from
// this request.
func WithPool(pool *pgxpool.Pool) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(composables.WithPool(r.Context(), pool)))
		})
	}
}

// RequestContext tags each request with a request id and a fields logger, logs
// start/completion and recovers panics into a stable 500.
func RequestContext(logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := r.Header.Get("X-Request-Id")
			if requestID == "" {
				requestID = uuid.NewString()
			}
			fieldsLogger := logger.WithFields(logrus.Fields{
				"request-id": requestID,
				"path":       r.URL.Path,
				"method":     r.Method,
			})
			w.Header().Set("X-Request-Id", requestID)

			ctx := context.WithValue(r.Context(), constants.LoggerKey, fieldsLogger)

			defer func() {
				if recovered := recover(); recovered != nil {
					fieldsLogger.WithFields(logrus.Fields{
						"panic": recovered,
						"stack": string(debug.Stack()),
					}).Error("panic recovered in request handler")
					_ = httpapi.WriteError(w, http.StatusInternalServerError,
						"INTERNAL_SERVER_ERROR", "internal server error",
						map[string]string{"request_id": requestID})
				}
			}()

			next.ServeHTTP(w, r.WithContext(ctx))

			fieldsLogger.WithFields(logrus.Fields{
				"duration": time.Since(start),
			}).Info("request completed")
		})
	}
}

// Authorize resolves the tenant and acting user from the trusted gateway
// headers and rejects requests that lack them.
func Authorize(conf *configuration.Configuration) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID, err := uuid.Parse(r.Header.Get(conf.TenantIDHeader))
			if err != nil {
				_ = httpapi.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid tenant id", nil)
				return
			}
			userID, err := uuid.Parse(r.Header.Get(conf.UserIDHeader))
			if err != nil {
				_ = httpapi.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid user id", nil)
				return
			}
			ctx := composables.WithTenantID(r.Context(), tenantID)
			ctx = composables.WithUserID(ctx, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
