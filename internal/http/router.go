package httpapi

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"cafe-order-service/internal/config"
	"cafe-order-service/internal/http/handlers"
	"cafe-order-service/internal/middleware"
	"cafe-order-service/internal/ws"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

func NewRouter(logger *zap.Logger, cfg config.Config, h *handlers.Handler, wsServer *ws.Server) (http.Handler, error) {
	publicLimit, err := middleware.RateLimit(cfg.PublicRateLimit)
	if err != nil {
		return nil, fmt.Errorf("public rate limit %q: %w", cfg.PublicRateLimit, err)
	}

	r := chi.NewRouter()
	r.Use(requestLogger(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Telemetry(logger))

	if cfg.Env == "development" || len(cfg.CorsAllowedOrigins) > 0 {
		options := cors.Options{
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{
				"Accept",
				"Authorization",
				"Content-Type",
				"X-Requested-With",
				"X-Request-Id",
				"Cache-Control",
			},
			AllowCredentials: true,
			MaxAge:           300,
		}

		if cfg.Env == "development" {
			options.AllowOriginFunc = func(_ *http.Request, origin string) bool {
				return true
			}
		} else {
			options.AllowedOrigins = cfg.CorsAllowedOrigins
		}

		r.Use(cors.Handler(options))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Use(publicLimit)
		r.Use(middleware.CustomerSession(cfg.SessionTTL, cfg.SessionCookieSecure))

		r.Get("/menu", h.PublicMenu)
		r.Get("/categories", h.PublicCategories)
		r.Get("/tables", h.PublicTables)
		r.Post("/tables/{tableId}/help", h.PublicRequestHelp)
		r.Get("/t/{tableId}", h.PublicTableLink)
		r.Get("/session", h.PublicSession)
		r.Post("/session/table", h.PublicBindTable)
		r.Delete("/session/table", h.PublicLeaveTable)
		r.Get("/cart", h.PublicCart)
		r.Post("/cart/items", h.PublicCartAdjust)
		r.Post("/cart/commit", h.PublicCartCommit)
	})

	r.Route("/api/staff", func(r chi.Router) {
		r.Use(middleware.StaffAuth(cfg.JWTSecret))

		r.Get("/tables", h.StaffTablesList)
		r.Post("/tables", h.StaffTableCreate)
		r.Get("/tables/{id}", h.StaffTableStatus)
		r.Delete("/tables/{id}", h.StaffTableDelete)
		r.Post("/tables/{id}/start", h.StaffTableStart)
		r.Post("/tables/{id}/close", h.StaffTableClose)
		r.Post("/tables/{id}/reserve", h.StaffTableReserve)
		r.Post("/tables/{id}/cancel-reservation", h.StaffTableCancelReservation)
		r.Post("/tables/{id}/help/resolve", h.StaffTableResolveHelp)
		r.Get("/help-requests", h.StaffHelpRequests)

		r.Get("/orders/active", h.StaffOrdersActive)
		r.Get("/orders/history", h.StaffOrdersHistory)
		r.Get("/orders/{id}", h.StaffOrderDetail)
		r.Get("/orders/{id}/receipt", h.StaffOrderReceipt)
		r.Post("/orders/{id}/items", h.StaffOrderAddItem)
		r.Post("/orders/{id}/pay", h.StaffOrderPay)
		r.Post("/order-items/{id}/adjust", h.StaffLineItemAdjust)
		r.Delete("/order-items/{id}", h.StaffLineItemDelete)

		r.Get("/products/active", h.StaffProductsActive)
	})

	if wsServer != nil {
		r.Get("/ws/staff/floor", wsServer.StaffFloorWS)
	}

	return r, nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
