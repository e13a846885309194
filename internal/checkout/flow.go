package checkout

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-prompt-market/internal/cart"
	"github.com/ariefcatur/go-prompt-market/internal/money"
	"github.com/ariefcatur/go-prompt-market/internal/orders"
)

// Cart is the part of the cart store the flow reads and clears.
type Cart interface {
	Items() []cart.Item
	ClearCart(ctx context.Context) error
}

type OrderRequest struct {
	Items         []orders.Item `json:"items"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
}

type CreatedOrder struct {
	ID     string          `json:"id"`
	Status orders.Status   `json:"status"`
	Total  decimal.Decimal `json:"total"`
}

// OrderCreator is the order collaborator. token may be empty.
type OrderCreator interface {
	CreateOrder(ctx context.Context, req OrderRequest, token string) (CreatedOrder, error)
}

// OutcomeReporter learns how a charge ended so the order can be settled.
type OutcomeReporter interface {
	PaymentAuthorized(ctx context.Context, r Receipt) error
	PaymentFailed(ctx context.Context, e *PaymentError) error
}

// Result describes where the attempt ended and where to send the buyer.
type Result struct {
	State    State           `json:"state"`
	OrderID  string          `json:"orderId,omitempty"`
	Total    decimal.Decimal `json:"total"`
	Redirect string          `json:"redirect,omitempty"`
	Receipt  *Receipt        `json:"-"`
	Decline  *PaymentError   `json:"-"`
}

type Flow struct {
	orders   OrderCreator
	gateway  PaymentGateway
	reporter OutcomeReporter
	log      *zap.Logger

	mu       sync.Mutex
	inflight map[Cart]bool
}

// NewFlow wires a checkout flow. reporter may be nil.
func NewFlow(creator OrderCreator, gateway PaymentGateway, reporter OutcomeReporter, log *zap.Logger) *Flow {
	if log == nil {
		log = zap.NewNop()
	}
	return &Flow{
		orders:   creator,
		gateway:  gateway,
		reporter: reporter,
		log:      log,
		inflight: map[Cart]bool{},
	}
}

// Submit runs one checkout attempt for c. It returns a *ValidationError or
// *SubmitError when the attempt goes back to idle, ErrInProgress when c is
// already checking out, and a nil error for both succeeded and failed
// payments.
func (f *Flow) Submit(ctx context.Context, c Cart, form Form) (Result, error) {
	if !f.acquire(c) {
		return Result{State: StateIdle}, ErrInProgress
	}
	defer f.release(c)

	a := &attempt{state: StateIdle, log: f.log}

	a.to(StateValidating)
	items := c.Items()
	if len(items) == 0 {
		a.to(StateIdle)
		return Result{State: StateIdle}, &ValidationError{Field: "cart", Message: MsgEmptyCart, Err: ErrEmptyCart}
	}
	if err := form.Validate(); err != nil {
		a.to(StateIdle)
		return Result{State: StateIdle}, err
	}
	total := rawTotal(items)

	a.to(StateSubmitting)
	created, err := f.orders.CreateOrder(ctx, OrderRequest{
		Items:         toOrderItems(items),
		PaymentMethod: form.PaymentMethod,
	}, form.Token)
	if err == nil && created.ID == "" {
		err = errors.New("order collaborator returned no id")
	}
	if err != nil {
		a.to(StateIdle)
		f.log.Warn("order creation failed", zap.Error(err))
		return Result{State: StateIdle}, &SubmitError{Err: err}
	}
	a.log = a.log.With(zap.String("order_id", created.ID))

	a.to(StateProcessing)
	amount := created.Total
	if amount.IsZero() {
		amount = total
	}
	receipt, err := f.gateway.Charge(ctx, ChargeRequest{OrderID: created.ID, Amount: amount, Method: form.PaymentMethod})
	if err != nil {
		if ctx.Err() != nil {
			// buyer went away; nothing is reported and the order stays pending
			a.log.Info("checkout abandoned", zap.Error(ctx.Err()))
			return Result{State: StateProcessing, OrderID: created.ID, Total: total}, errors.Join(ErrAbandoned, ctx.Err())
		}
		var decline *PaymentError
		if !errors.As(err, &decline) {
			a.log.Error("payment gateway fault", zap.Error(err))
			decline = &PaymentError{OrderID: created.ID, Reason: "GATEWAY_ERROR"}
		}
		a.to(StateFailed)
		f.report(ctx, func(ctx context.Context) error { return f.reporter.PaymentFailed(ctx, decline) })
		return Result{
			State:    StateFailed,
			OrderID:  created.ID,
			Total:    total,
			Redirect: FailureURL(created.ID),
			Decline:  decline,
		}, nil
	}

	a.to(StateSucceeded)
	if err := c.ClearCart(ctx); err != nil {
		a.log.Error("clear cart after payment", zap.Error(err))
	}
	f.report(ctx, func(ctx context.Context) error { return f.reporter.PaymentAuthorized(ctx, receipt) })
	return Result{
		State:    StateSucceeded,
		OrderID:  created.ID,
		Total:    total,
		Redirect: SuccessURL(created.ID, total),
		Receipt:  &receipt,
	}, nil
}

// report never changes the buyer-visible outcome.
func (f *Flow) report(ctx context.Context, fn func(context.Context) error) {
	if f.reporter == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		f.log.Error("report payment outcome", zap.Error(err))
	}
}

func (f *Flow) acquire(c Cart) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inflight[c] {
		return false
	}
	f.inflight[c] = true
	return true
}

func (f *Flow) release(c Cart) {
	f.mu.Lock()
	delete(f.inflight, c)
	f.mu.Unlock()
}

type attempt struct {
	state State
	log   *zap.Logger
}

func (a *attempt) to(next State) {
	if !CanTransition(a.state, next) {
		a.log.DPanic("illegal checkout transition", zap.Stringer("from", a.state), zap.Stringer("to", next))
	}
	a.log.Debug("checkout transition", zap.Stringer("from", a.state), zap.Stringer("to", next))
	a.state = next
}

func rawTotal(items []cart.Item) decimal.Decimal {
	prices := make([]decimal.Decimal, 0, len(items))
	for _, it := range items {
		prices = append(prices, it.Price)
	}
	return money.Sum(prices...)
}

func toOrderItems(items []cart.Item) []orders.Item {
	out := make([]orders.Item, 0, len(items))
	for _, it := range items {
		out = append(out, orders.Item{
			PromptID:   it.ID,
			Slug:       it.Slug,
			Title:      it.Title,
			Thumbnail:  it.Thumbnail,
			Platform:   it.Platform,
			Price:      it.Price,
			AuthorName: it.AuthorName,
		})
	}
	return out
}
