package checkout

import (
	"context"
	"sync"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

// MockOrderCreator implements OrderCreator for testing
type MockOrderCreator struct {
	mu      sync.Mutex
	created CreatedOrder
	err     error
	calls   []OrderRequest
	tokens  []string
	block   chan struct{}
}

func (m *MockOrderCreator) CreateOrder(ctx context.Context, req OrderRequest, token string) (CreatedOrder, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.tokens = append(m.tokens, token)
	block := m.block
	m.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return CreatedOrder{}, ctx.Err()
		}
	}
	return m.created, m.err
}

func (m *MockOrderCreator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// StubGateway returns a fixed outcome without waiting.
type StubGateway struct {
	mu      sync.Mutex
	receipt Receipt
	err     error
	charged []ChargeRequest
}

func (g *StubGateway) Charge(ctx context.Context, req ChargeRequest) (Receipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.charged = append(g.charged, req)
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	if g.err != nil {
		return Receipt{}, g.err
	}
	r := g.receipt
	r.OrderID = req.OrderID
	r.Amount = req.Amount
	return r, nil
}

type RecordingReporter struct {
	authorized []Receipt
	failed     []*PaymentError
	err        error
}

func (r *RecordingReporter) PaymentAuthorized(_ context.Context, rc Receipt) error {
	r.authorized = append(r.authorized, rc)
	return r.err
}

func (r *RecordingReporter) PaymentFailed(_ context.Context, pe *PaymentError) error {
	r.failed = append(r.failed, pe)
	return r.err
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (p *recordingPublisher) Publish(key, value []byte, headers ...kafka.Header) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, kafka.Message{Key: key, Value: value, Headers: headers})
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }
