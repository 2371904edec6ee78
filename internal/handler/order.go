package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"

	"github.com/artisansalley/backend/internal/order"
	"github.com/artisansalley/backend/pkg/metrics"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	svc     order.Service
	metrics *metrics.ServerMetrics
}

// NewOrderHandler creates a new OrderHandler. The metrics argument may be nil
// in tests.
func NewOrderHandler(svc order.Service, m *metrics.ServerMetrics) *OrderHandler {
	return &OrderHandler{svc: svc, metrics: m}
}

// CreateOrder handles POST /orders.
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "missing acting user")
		return
	}

	var input order.CreateOrderInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	placed, err := h.svc.PlaceOrder(r.Context(), actor, input)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.OrdersPlaced.Inc()
	}
	respondWithJSON(w, http.StatusCreated, placed)
}

// GetOrder handles GET /orders/{id}.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "missing acting user")
		return
	}

	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	o, err := h.svc.GetOrder(r.Context(), actor, id)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, o)
}

type listResponse struct {
	Orders []order.Order `json:"orders"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// ListOrders handles GET /orders with optional status, payment_status,
// user_id, limit and offset query parameters. Role scoping happens in the
// service regardless of the filters supplied here.
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "missing acting user")
		return
	}

	var input order.ListInput
	q := r.URL.Query()

	if v := q.Get("status"); v != "" {
		st, err := order.ParseStatus(v)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		input.Status = &st
	}
	if v := q.Get("payment_status"); v != "" {
		ps, err := order.ParsePaymentStatus(v)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		input.PaymentStatus = &ps
	}
	if v := q.Get("user_id"); v != "" {
		id, err := uuid.FromString(v)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid user_id")
			return
		}
		input.UserID = &id
	}
	input.Limit = intQueryParam(q.Get("limit"), 100)
	input.Offset = intQueryParam(q.Get("offset"), 0)

	orders, total, err := h.svc.ListOrders(r.Context(), actor, input)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, listResponse{
		Orders: orders,
		Total:  total,
		Limit:  input.Limit,
		Offset: input.Offset,
	})
}

type updateRequest struct {
	Status          *string `json:"status"`
	PaymentStatus   *string `json:"payment_status"`
	ShippingAddress *string `json:"shipping_address"`
	Notes           *string `json:"notes"`
}

// UpdateOrder handles PATCH /orders/{id}: only the supplied fields change.
func (h *OrderHandler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "missing acting user")
		return
	}

	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var patch order.Patch
	if req.Status != nil {
		st, err := order.ParseStatus(*req.Status)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		patch.Status = &st
	}
	if req.PaymentStatus != nil {
		ps, err := order.ParsePaymentStatus(*req.PaymentStatus)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		patch.PaymentStatus = &ps
	}
	patch.ShippingAddress = req.ShippingAddress
	patch.Notes = req.Notes

	updated, err := h.svc.UpdateOrder(r.Context(), actor, id, patch)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, updated)
}

// CancelOrder handles POST /orders/{id}/cancel.
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "missing acting user")
		return
	}

	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	cancelled, err := h.svc.CancelOrder(r.Context(), actor, id)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.OrdersCancelled.Inc()
	}
	respondWithJSON(w, http.StatusOK, cancelled)
}

func intQueryParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
