package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-prompt-market/internal/cart"
	"github.com/ariefcatur/go-prompt-market/internal/orders"
)

func threeItemCart(t *testing.T) *cart.Store {
	t.Helper()
	s, err := cart.Open(context.Background(), cart.NewMemoryRepository())
	require.NoError(t, err)
	for _, it := range []cart.Item{
		{ID: "p1", Slug: "neon-city", Title: "Neon City", Thumbnail: "https://img.example/1.png", Platform: "Midjourney", Price: dec("3.99"), AuthorName: "ana"},
		{ID: "p2", Slug: "copywriter", Title: "Copywriter", Thumbnail: "https://img.example/2.png", Platform: "ChatGPT", Price: dec("7.99"), AuthorName: "bo"},
		{ID: "p3", Slug: "logo-kit", Title: "Logo Kit", Thumbnail: "https://img.example/3.png", Platform: "DALL·E", Price: dec("2.99"), AuthorName: "cy"},
	} {
		require.NoError(t, s.AddItem(context.Background(), it))
	}
	return s
}

func validForm() Form {
	return Form{Email: "buyer@example.com", PaymentMethod: MethodYooKassa, CardNumber: "4242 4242 4242 4242"}
}

func pendingOrder() CreatedOrder {
	return CreatedOrder{ID: "abc123", Status: orders.StatusPending, Total: dec("14.97")}
}

func TestSubmit_Success(t *testing.T) {
	c := threeItemCart(t)
	creator := &MockOrderCreator{created: pendingOrder()}
	gw := &StubGateway{receipt: Receipt{PaymentRef: "ref-1"}}
	rep := &RecordingReporter{}
	flow := NewFlow(creator, gw, rep, zap.NewNop())

	form := validForm()
	form.Token = "tok"
	res, err := flow.Submit(context.Background(), c, form)
	require.NoError(t, err)

	assert.Equal(t, StateSucceeded, res.State)
	assert.Equal(t, "abc123", res.OrderID)
	assert.Equal(t, "/payment/success?orderId=abc123&total=14.97", res.Redirect)
	assert.Empty(t, c.Items())

	require.Len(t, creator.calls, 1)
	req := creator.calls[0]
	assert.Equal(t, MethodYooKassa, req.PaymentMethod)
	require.Len(t, req.Items, 3)
	assert.Equal(t, "p1", req.Items[0].PromptID)
	assert.Equal(t, "neon-city", req.Items[0].Slug)
	assert.Equal(t, "ana", req.Items[0].AuthorName)
	assert.Equal(t, "p3", req.Items[2].PromptID)
	assert.Equal(t, []string{"tok"}, creator.tokens)

	require.Len(t, gw.charged, 1)
	assert.Equal(t, "14.97", gw.charged[0].Amount.String())

	require.Len(t, rep.authorized, 1)
	assert.Equal(t, "abc123", rep.authorized[0].OrderID)
	assert.Empty(t, rep.failed)
}

func TestSubmit_DeclineKeepsCart(t *testing.T) {
	c := threeItemCart(t)
	creator := &MockOrderCreator{created: pendingOrder()}
	gw := &StubGateway{err: &PaymentError{OrderID: "abc123", Reason: ReasonDeclined}}
	rep := &RecordingReporter{}
	flow := NewFlow(creator, gw, rep, zap.NewNop())

	res, err := flow.Submit(context.Background(), c, validForm())
	require.NoError(t, err)

	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, "/payment/failed?orderId=abc123", res.Redirect)
	require.NotNil(t, res.Decline)
	assert.Equal(t, ReasonDeclined, res.Decline.Reason)
	assert.Len(t, c.Items(), 3)
	require.Len(t, rep.failed, 1)
	assert.Empty(t, rep.authorized)
}

func TestSubmit_GatewayFaultRoutesToFailure(t *testing.T) {
	c := threeItemCart(t)
	flow := NewFlow(&MockOrderCreator{created: pendingOrder()}, &StubGateway{err: errors.New("tls handshake")}, nil, zap.NewNop())

	res, err := flow.Submit(context.Background(), c, validForm())
	require.NoError(t, err)
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, "GATEWAY_ERROR", res.Decline.Reason)
	assert.Len(t, c.Items(), 3)
}

func TestSubmit_InvalidEmailMakesNoCall(t *testing.T) {
	c := threeItemCart(t)
	creator := &MockOrderCreator{created: pendingOrder()}
	gw := &StubGateway{}
	flow := NewFlow(creator, gw, nil, zap.NewNop())

	form := validForm()
	form.Email = "not-an-email"
	res, err := flow.Submit(context.Background(), c, form)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, MsgInvalidEmail, ve.Message)
	assert.Equal(t, StateIdle, res.State)
	assert.Equal(t, 0, creator.Calls())
	assert.Empty(t, gw.charged)
	assert.Len(t, c.Items(), 3)
}

func TestSubmit_ShortCardMakesNoCall(t *testing.T) {
	c := threeItemCart(t)
	creator := &MockOrderCreator{created: pendingOrder()}
	flow := NewFlow(creator, &StubGateway{}, nil, zap.NewNop())

	form := validForm()
	form.CardNumber = "4242 4242"
	_, err := flow.Submit(context.Background(), c, form)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, MsgInvalidCard, ve.Message)
	assert.Equal(t, 0, creator.Calls())
}

func TestSubmit_EmptyCart(t *testing.T) {
	c, err := cart.Open(context.Background(), cart.NewMemoryRepository())
	require.NoError(t, err)
	creator := &MockOrderCreator{created: pendingOrder()}
	flow := NewFlow(creator, &StubGateway{}, nil, zap.NewNop())

	_, err = flow.Submit(context.Background(), c, validForm())
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Equal(t, 0, creator.Calls())
}

func TestSubmit_CreationErrorBackToIdle(t *testing.T) {
	c := threeItemCart(t)
	gw := &StubGateway{}
	flow := NewFlow(&MockOrderCreator{err: errors.New("connection refused")}, gw, nil, zap.NewNop())

	res, err := flow.Submit(context.Background(), c, validForm())

	var se *SubmitError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, MsgSubmitFailed, se.Message())
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, StateIdle, res.State)
	assert.Empty(t, res.OrderID)
	assert.Empty(t, gw.charged)
	assert.Len(t, c.Items(), 3)
}

func TestSubmit_MissingOrderIDIsCreationError(t *testing.T) {
	c := threeItemCart(t)
	flow := NewFlow(&MockOrderCreator{created: CreatedOrder{Status: orders.StatusPending}}, &StubGateway{}, nil, zap.NewNop())

	_, err := flow.Submit(context.Background(), c, validForm())
	var se *SubmitError
	assert.ErrorAs(t, err, &se)
}

func TestSubmit_SBPNeedsNoCard(t *testing.T) {
	c := threeItemCart(t)
	flow := NewFlow(&MockOrderCreator{created: pendingOrder()}, &StubGateway{}, nil, zap.NewNop())

	res, err := flow.Submit(context.Background(), c, Form{Email: "a@b.c", PaymentMethod: MethodSBP})
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, res.State)
}

func TestSubmit_RetryAfterDecline(t *testing.T) {
	c := threeItemCart(t)
	creator := &MockOrderCreator{created: pendingOrder()}
	gw := &StubGateway{err: &PaymentError{OrderID: "abc123", Reason: ReasonDeclined}}
	flow := NewFlow(creator, gw, nil, zap.NewNop())

	res, err := flow.Submit(context.Background(), c, validForm())
	require.NoError(t, err)
	require.Equal(t, StateFailed, res.State)

	gw.err = nil
	creator.created = CreatedOrder{ID: "def456", Status: orders.StatusPending, Total: dec("14.97")}
	res, err = flow.Submit(context.Background(), c, validForm())
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, res.State)
	assert.Equal(t, "def456", res.OrderID)
	// every click creates its own order
	assert.Equal(t, 2, creator.Calls())
}

func TestSubmit_ConcurrentSubmissionRejected(t *testing.T) {
	c := threeItemCart(t)
	creator := &MockOrderCreator{created: pendingOrder(), block: make(chan struct{})}
	flow := NewFlow(creator, &StubGateway{}, nil, zap.NewNop())

	done := make(chan error, 1)
	go func() {
		_, err := flow.Submit(context.Background(), c, validForm())
		done <- err
	}()
	require.Eventually(t, func() bool { return creator.Calls() == 1 }, time.Second, 5*time.Millisecond)

	_, err := flow.Submit(context.Background(), c, validForm())
	assert.ErrorIs(t, err, ErrInProgress)

	other := threeItemCart(t)
	go func() { _, _ = flow.Submit(context.Background(), other, validForm()) }()
	require.Eventually(t, func() bool { return creator.Calls() == 2 }, time.Second, 5*time.Millisecond)

	close(creator.block)
	require.NoError(t, <-done)
}

func TestSubmit_CancelDuringProcessingReportsNothing(t *testing.T) {
	c := threeItemCart(t)
	rep := &RecordingReporter{}
	gw := &SimulatedGateway{Latency: time.Hour, SuccessRate: 1}
	flow := NewFlow(&MockOrderCreator{created: pendingOrder()}, gw, rep, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res, err := flow.Submit(ctx, c, validForm())

	assert.ErrorIs(t, err, ErrAbandoned)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateProcessing, res.State)
	assert.Equal(t, "abc123", res.OrderID)
	assert.Len(t, c.Items(), 3)
	assert.Empty(t, rep.authorized)
	assert.Empty(t, rep.failed)
}

func TestSubmit_ReporterErrorDoesNotChangeOutcome(t *testing.T) {
	c := threeItemCart(t)
	rep := &RecordingReporter{err: errors.New("kafka down")}
	flow := NewFlow(&MockOrderCreator{created: pendingOrder()}, &StubGateway{}, rep, zap.NewNop())

	res, err := flow.Submit(context.Background(), c, validForm())
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, res.State)
	assert.Len(t, rep.authorized, 1)
}

func TestSubmit_ChargesRawTotalWhenCollaboratorOmitsIt(t *testing.T) {
	c := threeItemCart(t)
	gw := &StubGateway{}
	flow := NewFlow(&MockOrderCreator{created: CreatedOrder{ID: "x1"}}, gw, nil, zap.NewNop())

	_, err := flow.Submit(context.Background(), c, validForm())
	require.NoError(t, err)
	require.Len(t, gw.charged, 1)
	assert.Equal(t, "14.97", gw.charged[0].Amount.String())
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StateIdle, StateValidating))
	assert.True(t, CanTransition(StateValidating, StateIdle))
	assert.True(t, CanTransition(StateSubmitting, StateIdle))
	assert.True(t, CanTransition(StateProcessing, StateFailed))
	assert.False(t, CanTransition(StateIdle, StateProcessing))
	assert.False(t, CanTransition(StateSucceeded, StateIdle))
	assert.False(t, CanTransition(StateProcessing, StateIdle))
}
