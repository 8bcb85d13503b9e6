package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/rushbasket/internal/orders"
	"github.com/ariefcatur/rushbasket/internal/stock"
)

type ProductStore interface {
	ListProducts(ctx context.Context) ([]orders.Product, error)
	AdjustStock(ctx context.Context, productID string, delta int) (stock.Change, error)
	SetStock(ctx context.Context, productID string, level int) (stock.Change, error)
}

type ProductsHandler struct {
	Repo     ProductStore
	Notifier *stock.Notifier
	Log      *zap.Logger
}

// AdjustStockReq carries exactly one of Delta (restock/shrinkage) or Set (physical count).
type AdjustStockReq struct {
	Delta *int `json:"delta,omitempty"`
	Set   *int `json:"set,omitempty"`
}

type AdjustStockResp struct {
	ProductID string     `json:"product_id"`
	Previous  int        `json:"previous"`
	Current   int        `json:"current"`
	Band      string     `json:"band"`
	Alert     stock.Kind `json:"alert"`
}

func (h *ProductsHandler) Register(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Post("/products/{id}/stock", h.adjustStock)
}

func (h *ProductsHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Repo.ListProducts(ctx)
	if err != nil {
		writeErr(w, err)
		return
	}
	if ps == nil {
		ps = []orders.Product{}
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *ProductsHandler) adjustStock(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")
	var req AdjustStockReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if (req.Delta == nil) == (req.Set == nil) {
		writeError(w, http.StatusBadRequest, "exactly one of delta or set is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var (
		c   stock.Change
		err error
	)
	if req.Delta != nil {
		c, err = h.Repo.AdjustStock(ctx, productID, *req.Delta)
	} else {
		c, err = h.Repo.SetStock(ctx, productID, *req.Set)
	}
	if err != nil {
		writeErr(w, err)
		return
	}

	// the write is committed; alert delivery can no longer affect it
	kind := stock.KindNoOp
	if h.Notifier != nil {
		kind = h.Notifier.Observe(ctx, c)
	}
	h.log().Info("stock adjusted",
		zap.String("product_id", productID),
		zap.Int("previous", c.Previous),
		zap.Int("current", c.Current),
	)

	writeJSON(w, http.StatusOK, AdjustStockResp{
		ProductID: productID,
		Previous:  c.Previous,
		Current:   c.Current,
		Band:      stock.BandOf(c.Current, h.thresholds()).String(),
		Alert:     kind,
	})
}

func (h *ProductsHandler) thresholds() stock.Thresholds {
	if h.Notifier == nil {
		return stock.DefaultThresholds()
	}
	return h.Notifier.Thresholds
}

func (h *ProductsHandler) log() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}
