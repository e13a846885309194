package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-prompt-market/internal/auth"
	"github.com/ariefcatur/go-prompt-market/internal/cart"
	"github.com/ariefcatur/go-prompt-market/internal/checkout"
	"github.com/ariefcatur/go-prompt-market/internal/redisx"
)

const SessionCookie = "pb_session"

type cartKey struct{}

type StorefrontHandler struct {
	Carts        *cart.Registry
	Checkout     *checkout.Flow
	SecureCookie bool
	Log          *zap.Logger
}

type CheckoutResp struct {
	State    checkout.State `json:"state"`
	Redirect string         `json:"redirect,omitempty"`
	OrderID  string         `json:"orderId,omitempty"`
	Error    string         `json:"error,omitempty"`
	Field    string         `json:"field,omitempty"`
}

func (h *StorefrontHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.session)
		r.Get("/cart", h.getCart)
		r.Post("/cart/items", h.addItem)
		r.Delete("/cart/items/{id}", h.removeItem)
		r.Delete("/cart", h.clearCart)
		r.Post("/cart/open", h.openCart)
		r.Post("/cart/close", h.closeCart)
		r.Post("/checkout", h.checkout)
	})
}

// session resolves the buyer's cart from the pb_session cookie, issuing a
// new session id on first visit.
func (h *StorefrontHandler) session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(SessionCookie); err == nil {
			id = c.Value
		}
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   int(redisx.TTLCart / time.Second),
				HttpOnly: true,
				Secure:   h.SecureCookie,
				SameSite: http.SameSiteLaxMode,
			})
		}

		store, err := h.Carts.Get(r.Context(), id)
		if err != nil {
			h.log().Error("load cart", zap.String("session", id), zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "cart unavailable")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), cartKey{}, store)))
	})
}

func cartFrom(r *http.Request) *cart.Store {
	return r.Context().Value(cartKey{}).(*cart.Store)
}

func (h *StorefrontHandler) getCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, cartFrom(r).Snapshot())
}

func (h *StorefrontHandler) addItem(w http.ResponseWriter, r *http.Request) {
	var it cart.Item
	if err := json.NewDecoder(r.Body).Decode(&it); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	c := cartFrom(r)
	err := c.AddItem(r.Context(), it)
	if errors.Is(err, cart.ErrInvalidItem) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.respondCart(w, c, err)
}

func (h *StorefrontHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	c := cartFrom(r)
	h.respondCart(w, c, c.RemoveItem(r.Context(), chi.URLParam(r, "id")))
}

func (h *StorefrontHandler) clearCart(w http.ResponseWriter, r *http.Request) {
	c := cartFrom(r)
	h.respondCart(w, c, c.ClearCart(r.Context()))
}

func (h *StorefrontHandler) openCart(w http.ResponseWriter, r *http.Request) {
	c := cartFrom(r)
	c.OpenCart()
	h.respondCart(w, c, nil)
}

func (h *StorefrontHandler) closeCart(w http.ResponseWriter, r *http.Request) {
	c := cartFrom(r)
	c.CloseCart()
	h.respondCart(w, c, nil)
}

func (h *StorefrontHandler) respondCart(w http.ResponseWriter, c *cart.Store, err error) {
	if err != nil {
		h.log().Error("update cart", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "cart unavailable")
		return
	}
	writeJSON(w, http.StatusOK, c.Snapshot())
}

func (h *StorefrontHandler) checkout(w http.ResponseWriter, r *http.Request) {
	var form checkout.Form
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	// token is optional; the orders API decides whether it is valid
	if tok, err := auth.BearerToken(r.Header.Get("Authorization")); err == nil {
		form.Token = tok
	}

	ctx := checkout.WithTraceID(r.Context(), middleware.GetReqID(r.Context()))
	res, err := h.Checkout.Submit(ctx, cartFrom(r), form)

	var ve *checkout.ValidationError
	var se *checkout.SubmitError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, CheckoutResp{State: res.State, Redirect: res.Redirect, OrderID: res.OrderID})
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, CheckoutResp{State: checkout.StateIdle, Error: ve.Message, Field: ve.Field})
	case errors.As(err, &se):
		writeJSON(w, http.StatusBadGateway, CheckoutResp{State: checkout.StateIdle, Error: se.Message()})
	case errors.Is(err, checkout.ErrInProgress):
		writeJSON(w, http.StatusConflict, CheckoutResp{State: checkout.StateProcessing, Error: err.Error()})
	case errors.Is(err, checkout.ErrAbandoned):
		// buyer is gone, nobody reads this
		h.log().Info("checkout abandoned", zap.String("order_id", res.OrderID))
	default:
		h.log().Error("checkout", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "checkout failed")
	}
}

func (h *StorefrontHandler) log() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}
