package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/souqflowapp/souqflow/internal/config"
	"github.com/souqflowapp/souqflow/internal/handlers"
)

type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	handlers   *handlers.Handlers
	httpServer *http.Server
}

func New(cfg *config.Config, logger *slog.Logger, h *handlers.Handlers) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if h == nil {
		return nil, fmt.Errorf("handlers are required")
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		handlers: h,
	}

	router := s.buildRouter()
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	return s, nil
}

func (s *Server) Run() error {
	s.logger.Info("server starting", "port", s.cfg.Port)

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Close(ctx context.Context) error {
	if s == nil || s.httpServer == nil {
		return nil
	}

	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) buildRouter() *mux.Router {
	h := s.handlers

	r := mux.NewRouter()
	r.Use(h.RequestLogger)
	r.Use(h.MetricsContext)
	r.Use(h.SecurityHeaders)
	r.HandleFunc("/health", h.Health).Methods("GET").Name("health")

	v1 := r.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/currency/convert", h.ConvertPrice).Methods("POST").Name("currency.convert")
	v1.HandleFunc("/currency/rates", h.ListRates).Methods("GET").Name("currency.rates")
	v1.HandleFunc("/currency/refresh", h.RefreshRates).Methods("POST").Name("currency.refresh")
	v1.HandleFunc("/currency/volatility/recompute", h.RecomputeVolatility).Methods("POST").Name("currency.volatility.recompute")

	v1.HandleFunc("/pricing/shipping", h.CalculateShippingCost).Methods("POST").Name("pricing.shipping")
	v1.HandleFunc("/pricing/shipping/methods", h.GetAvailableShippingMethods).Methods("GET").Name("pricing.shipping.methods")
	v1.HandleFunc("/pricing/optimal", h.CalculateOptimalPricing).Methods("POST").Name("pricing.optimal")
	v1.HandleFunc("/pricing/breakdown", h.GetPricingBreakdown).Methods("POST").Name("pricing.breakdown")

	v1.HandleFunc("/bulk/active", h.GetActiveBulkPricing).Methods("GET").Name("bulk.active")
	v1.HandleFunc("/bulk/hot-deals", h.GetHotDeals).Methods("GET").Name("bulk.hot_deals")
	v1.HandleFunc("/bulk/expiring", h.GetExpiringDeals).Methods("GET").Name("bulk.expiring")
	v1.HandleFunc("/bulk/orders/expired-pending", h.GetExpiredPendingOrders).Methods("GET").Name("bulk.orders.expired_pending")
	v1.HandleFunc("/bulk/orders/{orderId}/confirm", h.ConfirmBulkOrder).Methods("POST").Name("bulk.orders.confirm")
	v1.HandleFunc("/bulk/orders/{orderId}/cancel", h.CancelBulkOrder).Methods("POST").Name("bulk.orders.cancel")
	v1.HandleFunc("/bulk/{productId}/setup", h.SetupBulkPricing).Methods("POST").Name("bulk.setup")
	v1.HandleFunc("/bulk/{productId}/orders", h.PlaceBulkOrder).Methods("POST").Name("bulk.orders.place")
	v1.HandleFunc("/bulk/{productId}/volume-update", h.UpdatePricingBasedOnVolume).Methods("POST").Name("bulk.volume_update")
	v1.HandleFunc("/bulk/{productId}", h.GetProductBulkPricing).Methods("GET").Name("bulk.product")

	// 404 handler - must be last
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})

	return r
}
