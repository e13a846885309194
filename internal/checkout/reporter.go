package checkout

import (
	"context"

	kafkax "github.com/ariefcatur/go-prompt-market/internal/kafka"
	"github.com/ariefcatur/go-prompt-market/internal/orders"
)

// EventReporter publishes payment outcomes for settlement to apply.
type EventReporter struct {
	Authorized  kafkax.Publisher // publish order.payment.authorized
	Failed      kafkax.Publisher // publish order.payment.failed
	ServiceName string
}

func (r *EventReporter) PaymentAuthorized(ctx context.Context, rc Receipt) error {
	env, err := orders.NewEnvelope(orders.EventPaymentAuthorized, r.ServiceName, rc.OrderID, traceID(ctx),
		orders.PaymentAuthorizedPayload{OrderID: rc.OrderID, PaymentRef: rc.PaymentRef, Amount: rc.Amount})
	if err != nil {
		return err
	}
	r.Authorized.Publish(orders.PartitionKey(rc.OrderID), kafkax.MustMarshal(env), kafkax.EventHeaders(orders.EventPaymentAuthorized)...)
	return nil
}

func (r *EventReporter) PaymentFailed(ctx context.Context, pe *PaymentError) error {
	env, err := orders.NewEnvelope(orders.EventPaymentFailed, r.ServiceName, pe.OrderID, traceID(ctx),
		orders.PaymentFailedPayload{OrderID: pe.OrderID, Reason: pe.Reason})
	if err != nil {
		return err
	}
	r.Failed.Publish(orders.PartitionKey(pe.OrderID), kafkax.MustMarshal(env), kafkax.EventHeaders(orders.EventPaymentFailed)...)
	return nil
}

type traceKey struct{}

// WithTraceID tags ctx so published events carry the request id.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

func traceID(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}
