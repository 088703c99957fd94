package handlers

// Handlers provides the JSON API surface for the pricing core.

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/souqflowapp/souqflow/internal/bulk"
	"github.com/souqflowapp/souqflow/internal/config"
	"github.com/souqflowapp/souqflow/internal/currency"
	"github.com/souqflowapp/souqflow/internal/logging"
	"github.com/souqflowapp/souqflow/internal/pricing"
)

const maxRequestBodyBytes = 1 << 20 // 1 MB

type Handlers struct {
	config     *config.Config
	db         *pgxpool.Pool
	ledger     *currency.Ledger
	shipping   *pricing.ShippingCalculator
	calculator *pricing.Calculator
	bulk       *bulk.Manager
	logger     *slog.Logger
}

type Dependencies struct {
	Config     *config.Config
	DB         *pgxpool.Pool
	Ledger     *currency.Ledger
	Shipping   *pricing.ShippingCalculator
	Calculator *pricing.Calculator
	Bulk       *bulk.Manager
	Logger     *slog.Logger
}

func New(deps Dependencies) (*Handlers, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if deps.Config == nil {
		return nil, fmt.Errorf("handlers dependencies: config is required")
	}
	if deps.DB == nil {
		return nil, fmt.Errorf("handlers dependencies: db is required")
	}
	if deps.Ledger == nil {
		return nil, fmt.Errorf("handlers dependencies: ledger is required")
	}
	if deps.Shipping == nil {
		return nil, fmt.Errorf("handlers dependencies: shipping calculator is required")
	}
	if deps.Calculator == nil {
		return nil, fmt.Errorf("handlers dependencies: pricing calculator is required")
	}
	if deps.Bulk == nil {
		return nil, fmt.Errorf("handlers dependencies: bulk manager is required")
	}

	return &Handlers{
		config:     deps.Config,
		db:         deps.DB,
		ledger:     deps.Ledger,
		shipping:   deps.Shipping,
		calculator: deps.Calculator,
		bulk:       deps.Bulk,
		logger:     logger.With("component", "handlers"),
	}, nil
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	if err := h.db.Ping(ctx); err != nil {
		logger.Error("database health check failed", "error", err)
		http.Error(w, "Database unhealthy", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	}); err != nil {
		logger.Error("failed to encode health response", "error", err)
	}
}

func (h *Handlers) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, h.logger)
}
