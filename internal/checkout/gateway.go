package checkout

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ChargeRequest asks a gateway to take payment for a created order.
type ChargeRequest struct {
	OrderID string
	Amount  decimal.Decimal
	Method  PaymentMethod
}

type Receipt struct {
	OrderID    string
	PaymentRef string
	Amount     decimal.Decimal
}

// PaymentGateway charges an order. A decline is returned as *PaymentError;
// any other error is a gateway fault.
type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (Receipt, error)
}

const (
	DefaultLatency     = 1500 * time.Millisecond
	DefaultSuccessRate = 0.95
	ReasonDeclined     = "DECLINED"
)

// SimulatedGateway stands in for a payment provider: it waits Latency and
// approves with probability SuccessRate. Not a production payment contract.
type SimulatedGateway struct {
	Latency     time.Duration
	SuccessRate float64
	// Draw returns a value in [0,1); defaults to math/rand.
	Draw func() float64
}

func NewSimulatedGateway(latency time.Duration, successRate float64) *SimulatedGateway {
	return &SimulatedGateway{Latency: latency, SuccessRate: successRate, Draw: rand.Float64}
}

func (g *SimulatedGateway) Charge(ctx context.Context, req ChargeRequest) (Receipt, error) {
	if g.Latency > 0 {
		t := time.NewTimer(g.Latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return Receipt{}, ctx.Err()
		case <-t.C:
		}
	}

	draw := g.Draw
	if draw == nil {
		draw = rand.Float64
	}
	if draw() >= g.SuccessRate {
		return Receipt{}, &PaymentError{OrderID: req.OrderID, Reason: ReasonDeclined}
	}
	return Receipt{
		OrderID:    req.OrderID,
		PaymentRef: fmt.Sprintf("SIM-%s", uuid.NewString()),
		Amount:     req.Amount,
	}, nil
}
