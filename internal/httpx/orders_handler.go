package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	kafkax "github.com/ariefcatur/rushbasket/internal/kafka"
	"github.com/ariefcatur/rushbasket/internal/metrics"
	"github.com/ariefcatur/rushbasket/internal/orders"
	"github.com/ariefcatur/rushbasket/internal/redisx"
	"github.com/ariefcatur/rushbasket/internal/stock"
)

type OrderStore interface {
	CreateOrder(ctx context.Context, in orders.CheckoutInput) (orders.Order, bool, error)
	GetOrder(ctx context.Context, orderID string) (orders.Order, error)
	GetOrderStatus(ctx context.Context, orderID string) (orders.Status, orders.PaymentStatus, error)
	UpdateStatus(ctx context.Context, orderID string, to orders.Status) (orders.Status, error)
	UpdatePaymentStatus(ctx context.Context, orderID string, ps orders.PaymentStatus) error
	ReplaceItems(ctx context.Context, orderID string, items []orders.ItemInput, shipping *decimal.Decimal) (orders.Order, error)
}

type StockReleaser interface {
	ReleaseAll(ctx context.Context, orderID string) ([]stock.Change, error)
}

type OrdersHandler struct {
	Repo           OrderStore
	Reservations   StockReleaser
	Producer       kafkax.Publisher // order.created
	StatusProducer kafkax.Publisher // order.status.changed
	Notifier       *stock.Notifier
	Redis          *redis.Client
	Service        string
	Log            *zap.Logger
}

type CreateOrderReq struct {
	ExternalID    string             `json:"external_id"`
	UserID        string             `json:"user_id"`
	PaymentMethod string             `json:"payment_method"`
	Items         []orders.ItemInput `json:"items"`
}

type CreateOrderResp struct {
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	Status      orders.Status   `json:"status"`
	Total       decimal.Decimal `json:"total"`
	Idempotent  bool            `json:"idempotent"`
}

type UpdateStatusReq struct {
	Status string `json:"status"`
}

type UpdatePaymentReq struct {
	PaymentStatus string `json:"payment_status"`
}

type ReplaceItemsReq struct {
	Items    []orders.ItemInput `json:"items"`
	Shipping *decimal.Decimal   `json:"shipping,omitempty"`
}

type statusView struct {
	Status        orders.Status        `json:"status"`
	PaymentStatus orders.PaymentStatus `json:"payment_status,omitempty"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getOrderStatus)
	r.Patch("/orders/{id}/status", h.updateStatus)
	r.Patch("/orders/{id}/payment", h.updatePayment)
	r.Put("/orders/{id}/items", h.replaceItems)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ExternalID == "" || req.UserID == "" || len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "missing fields")
		return
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = string(orders.PaymentCOD)
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, existed, err := h.Repo.CreateOrder(ctx, orders.CheckoutInput{
		ExternalID:    req.ExternalID,
		UserID:        req.UserID,
		PaymentMethod: orders.PaymentMethod(req.PaymentMethod),
		Items:         req.Items,
	})
	if err != nil {
		h.log().Warn("checkout failed", zap.String("external_id", req.ExternalID), zap.Error(err))
		writeErr(w, err)
		return
	}

	resp := CreateOrderResp{OrderID: o.ID, OrderNumber: o.OrderNumber, Status: o.Status, Total: o.Total, Idempotent: existed}
	if existed {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	// Redis is a shortcut only; the DB stays the source of truth.
	_ = h.Redis.Set(ctx, fmt.Sprintf(redisx.KeyIdemOrderCreate, req.ExternalID), o.ID, redisx.TTLIdempotency).Err()
	h.cacheStatus(ctx, o.ID, statusView{Status: o.Status, PaymentStatus: o.PaymentStatus})

	h.publish(h.Producer, orders.EventOrderCreated, o.ID, r.Header.Get("X-Request-Id"), orders.OrderCreatedPayload{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		ExternalID:  o.ExternalID,
		UserID:      o.UserID,
		Items:       o.Items,
		Total:       o.Total.StringFixed(2),
	})
	metrics.OrdersCreatedTotal.WithLabelValues(string(o.PaymentMethod)).Inc()
	h.log().Info("order created",
		zap.String("order_id", o.ID),
		zap.String("order_number", o.OrderNumber),
		zap.String("total", o.Total.StringFixed(2)),
	)

	writeJSON(w, http.StatusAccepted, resp)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Repo.GetOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) cache
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
		writeJSON(w, http.StatusOK, json.RawMessage(s))
		return
	}

	// 2) DB fallback
	status, payStatus, err := h.Repo.GetOrderStatus(ctx, orderID)
	if err != nil {
		writeErr(w, err)
		return
	}
	view := statusView{Status: status, PaymentStatus: payStatus}
	h.cacheStatus(ctx, orderID, view)
	writeJSON(w, http.StatusOK, view)
}

// updateStatus accepts any valid status. Backward moves are applied but logged.
func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	var req UpdateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	to, err := orders.ParseStatus(req.Status)
	if err != nil {
		writeErr(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	from, err := h.Repo.UpdateStatus(ctx, orderID, to)
	if err != nil {
		writeErr(w, err)
		return
	}
	regression := orders.IsRegression(from, to)
	if regression {
		h.log().Warn("order status moved backwards",
			zap.String("order_id", orderID),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
	}
	metrics.OrderStatusUpdatesTotal.WithLabelValues(string(to), fmt.Sprint(regression)).Inc()
	h.invalidateStatus(ctx, orderID)

	if to == orders.StatusCancelled && from != orders.StatusCancelled {
		h.releaseStock(ctx, orderID)
	}

	h.publish(h.StatusProducer, orders.EventOrderStatusChanged, orderID, r.Header.Get("X-Request-Id"),
		orders.OrderStatusChangedPayload{OrderID: orderID, From: from, To: to, Regression: regression})

	writeJSON(w, http.StatusOK, map[string]any{
		"order_id":   orderID,
		"from":       from,
		"status":     to,
		"regression": regression,
	})
}

func (h *OrdersHandler) updatePayment(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	var req UpdatePaymentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	ps, err := orders.ParsePaymentStatus(req.PaymentStatus)
	if err != nil {
		writeErr(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Repo.UpdatePaymentStatus(ctx, orderID, ps); err != nil {
		writeErr(w, err)
		return
	}
	h.invalidateStatus(ctx, orderID)
	writeJSON(w, http.StatusOK, map[string]any{"order_id": orderID, "payment_status": ps})
}

func (h *OrdersHandler) replaceItems(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	var req ReplaceItemsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Repo.ReplaceItems(ctx, orderID, req.Items, req.Shipping)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// releaseStock runs after the cancellation committed. Stock only goes up here,
// so the notifier stays silent, but every change still goes through it.
func (h *OrdersHandler) releaseStock(ctx context.Context, orderID string) {
	if h.Reservations == nil {
		return
	}
	changes, err := h.Reservations.ReleaseAll(ctx, orderID)
	if err != nil {
		h.log().Error("release stock on cancel", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	if h.Notifier != nil {
		h.Notifier.ObserveAll(ctx, changes)
	}
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, orderID string, v statusView) {
	b, _ := json.Marshal(v)
	_ = h.Redis.Set(ctx, fmt.Sprintf(redisx.KeyOrderStatus, orderID), b, redisx.TTLStatusCache).Err()
}

func (h *OrdersHandler) invalidateStatus(ctx context.Context, orderID string) {
	_ = h.Redis.Del(ctx, fmt.Sprintf(redisx.KeyOrderStatus, orderID)).Err()
}

func (h *OrdersHandler) publish(p kafkax.Publisher, eventType, orderID, trace string, payload any) {
	if p == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       trace,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	p.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev), kafkax.EventHeaders(eventType)...)
}

func (h *OrdersHandler) log() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}
