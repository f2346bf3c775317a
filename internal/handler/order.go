package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/efreitasn/tradingcore/internal/domain"
	"github.com/efreitasn/tradingcore/internal/service"
	"github.com/shopspring/decimal"
)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	placement *service.OrderPlacement
	logger    *slog.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(placement *service.OrderPlacement, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{placement: placement, logger: logger}
}

// placeOrderRequest is the JSON request body for POST /orders.
// price_limit accepts both JSON numbers and numeric strings.
type placeOrderRequest struct {
	CustomerID string          `json:"customer_id"`
	ShareID    string          `json:"share_id"`
	Direction  string          `json:"direction"`
	Quantity   int64           `json:"quantity"`
	PriceLimit json.RawMessage `json:"price_limit"`
	Validity   string          `json:"validity"`
}

// parsePriceLimit reads price_limit as a monetary amount. A missing or null
// value yields zero, which placement rejects as non-positive.
func parsePriceLimit(raw json.RawMessage) (decimal.Decimal, error) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return decimal.Zero, nil
	}
	d, err := domain.ParseAmount(s)
	if err != nil {
		return decimal.Zero, &domain.ValidationError{Message: "price_limit: " + err.Error()}
	}
	return d, nil
}

// orderResponse is the JSON representation of a placed order.
type orderResponse struct {
	OrderID           string          `json:"order_id"`
	CustomerID        string          `json:"customer_id"`
	ShareID           string          `json:"share_id"`
	Direction         string          `json:"direction"`
	Quantity          int64           `json:"quantity"`
	RemainingQuantity int64           `json:"remaining_quantity"`
	FilledQuantity    int64           `json:"filled_quantity"`
	PriceLimit        decimal.Decimal `json:"price_limit"`
	Validity          string          `json:"validity"`
	Status            string          `json:"status"`
	BlockedAmount     decimal.Decimal `json:"blocked_amount"`
	DateCaptured      string          `json:"date_captured"`
}

// PlaceOrder handles POST /orders.
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.CustomerID == "" || req.ShareID == "" {
		WriteError(w, http.StatusBadRequest, "validation_error", "customer_id and share_id are required")
		return
	}
	limit, err := parsePriceLimit(req.PriceLimit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	order, err := h.placement.Execute(r.Context(), service.PlaceOrderRequest{
		CustomerID: req.CustomerID,
		ShareID:    req.ShareID,
		Direction:  domain.Direction(req.Direction),
		Quantity:   req.Quantity,
		PriceLimit: limit,
		Validity:   domain.Validity(req.Validity),
	})
	if err != nil {
		logUnexpected(h.logger, r, err)
		writeDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildOrderResponse(order))
}

func buildOrderResponse(o domain.Order) orderResponse {
	return orderResponse{
		OrderID:           o.ID,
		CustomerID:        o.CustomerID,
		ShareID:           o.ShareID,
		Direction:         string(o.Direction),
		Quantity:          o.Quantity,
		RemainingQuantity: o.RemainingQuantity,
		FilledQuantity:    o.FilledQuantity(),
		PriceLimit:        o.PriceLimit,
		Validity:          string(o.Validity),
		Status:            string(o.Status),
		BlockedAmount:     o.BlockedAmount,
		DateCaptured:      o.DateCaptured.UTC().Format(time.RFC3339),
	}
}
