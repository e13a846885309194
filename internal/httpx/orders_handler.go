package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ariefcatur/go-prompt-market/internal/auth"
	kafkax "github.com/ariefcatur/go-prompt-market/internal/kafka"
	"github.com/ariefcatur/go-prompt-market/internal/orders"
	"github.com/ariefcatur/go-prompt-market/internal/redisx"
)

type OrdersHandler struct {
	Repo      orders.Repository
	Producer  kafkax.Publisher // publish order.created
	Redis     *redis.Client
	Tokens    *auth.Tokens
	Service   string
	DevIssuer bool
	Log       *zap.Logger

	group singleflight.Group
}

type CreateOrderReq struct {
	Items         []orders.Item `json:"items"`
	PaymentMethod string        `json:"paymentMethod"`
}

type CreateOrderResp struct {
	ID        string          `json:"id"`
	Status    orders.Status   `json:"status"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"createdAt"`
}

type UpdateStatusReq struct {
	Status orders.Status `json:"status"`
}

type IssueTokenReq struct {
	Subject string `json:"sub"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(Authenticate(h.Tokens, false))
		r.Post("/orders", h.createOrder)
		r.Get("/orders/{id}", h.getOrder)
	})
	r.Group(func(r chi.Router) {
		r.Use(Authenticate(h.Tokens, true))
		r.Get("/orders", h.listOrders)
		r.Patch("/orders/{id}/status", h.updateStatus)
	})
	if h.DevIssuer {
		r.Post("/auth/token", h.issueToken)
	}
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Repo.Create(ctx, orders.NewOrder{
		UserID:        UserID(r.Context()),
		Items:         req.Items,
		PaymentMethod: req.PaymentMethod,
	})
	switch {
	case errors.Is(err, orders.ErrNoItems), errors.Is(err, orders.ErrInvalidItem):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.log().Error("create order", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "create order failed")
		return
	}

	// Publish event (envelope v1)
	ev, err := orders.NewEnvelope(orders.EventOrderCreated, h.Service, o.ID, middleware.GetReqID(r.Context()), orders.CreatedPayload(o))
	if err != nil {
		h.log().Error("build order.created event", zap.String("order_id", o.ID), zap.Error(err))
	} else {
		h.Producer.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev), kafkax.EventHeaders(orders.EventOrderCreated)...)
	}

	writeJSON(w, http.StatusCreated, CreateOrderResp{ID: o.ID, Status: o.Status, Total: o.Total, CreatedAt: o.CreatedAt})
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Repo.ListByUser(ctx, UserID(r.Context()))
	if err != nil {
		h.log().Error("list orders", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list orders failed")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		writeError(w, http.StatusBadRequest, "missing id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) coba cache
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(s))
		return
	}

	// 2) fallback DB, satu query per id walau banyak request bersamaan.
	// Query dilepas dari ctx pemanggil pertama supaya pemanggil lain tidak ikut batal.
	ch := h.group.DoChan(orderID, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 3*time.Second)
		defer cancel()
		o, err := h.Repo.Get(ctx, orderID)
		if err != nil {
			return nil, err
		}
		return h.cache(ctx, o), nil
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		writeError(w, http.StatusGatewayTimeout, "request cancelled")
		return
	}
	if errors.Is(res.Err, orders.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if res.Err != nil {
		h.log().Error("get order", zap.String("order_id", orderID), zap.Error(res.Err))
		writeError(w, http.StatusInternalServerError, "get order failed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Val.([]byte))
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	var req UpdateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if !req.Status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Repo.UpdateStatus(ctx, orderID, req.Status)
	switch {
	case errors.Is(err, orders.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
		return
	case errors.Is(err, orders.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.log().Error("update order status", zap.String("order_id", orderID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "update status failed")
		return
	}

	if err := h.Redis.Del(ctx, fmt.Sprintf(redisx.KeyOrderStatus, orderID)).Err(); err != nil {
		h.log().Warn("invalidate order cache", zap.String("order_id", orderID), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) issueToken(w http.ResponseWriter, r *http.Request) {
	var req IssueTokenReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Subject == "" {
		writeError(w, http.StatusBadRequest, "sub required")
		return
	}
	tok, err := h.Tokens.Issue(req.Subject)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": tok})
}

// cache returns the order JSON and stores it under the status key once the
// order is terminal. A pending order can be settled between the read and
// the write, so caching it could pin a stale status over the invalidation.
func (h *OrdersHandler) cache(ctx context.Context, o orders.Order) []byte {
	b := kafkax.MustMarshal(o)
	if !o.Status.IsTerminal() {
		return b
	}
	if err := h.Redis.Set(ctx, fmt.Sprintf(redisx.KeyOrderStatus, o.ID), b, redisx.TTLStatusCache).Err(); err != nil {
		h.log().Warn("cache order", zap.String("order_id", o.ID), zap.Error(err))
	}
	return b
}

func (h *OrdersHandler) log() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}
