package settlement

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	kafkax "github.com/ariefcatur/go-prompt-market/internal/kafka"
	"github.com/ariefcatur/go-prompt-market/internal/orders"
	"github.com/ariefcatur/go-prompt-market/internal/redisx"
)

func setup(t *testing.T) (*Service, *orders.MemoryRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	repo := orders.NewMemoryRepo()
	return &Service{Repo: repo, Redis: rdb, ServiceName: "settlement", Log: zap.NewNop()}, repo, mr
}

func placeOrder(t *testing.T, repo orders.Repository) orders.Order {
	t.Helper()
	o, err := repo.Create(context.Background(), orders.NewOrder{
		Items: []orders.Item{{PromptID: "p1", Price: decimal.RequireFromString("3.99")}},
	})
	require.NoError(t, err)
	return o
}

func authorizedMsg(t *testing.T, orderID string) kafka.Message {
	t.Helper()
	env, err := orders.NewEnvelope(orders.EventPaymentAuthorized, "storefront", orderID, "",
		orders.PaymentAuthorizedPayload{OrderID: orderID, PaymentRef: "SIM-1", Amount: decimal.RequireFromString("3.99")})
	require.NoError(t, err)
	return kafka.Message{Key: []byte(orderID), Value: kafkax.MustMarshal(env)}
}

func failedMsg(t *testing.T, orderID string) kafka.Message {
	t.Helper()
	env, err := orders.NewEnvelope(orders.EventPaymentFailed, "storefront", orderID, "",
		orders.PaymentFailedPayload{OrderID: orderID, Reason: "DECLINED"})
	require.NoError(t, err)
	return kafka.Message{Key: []byte(orderID), Value: kafkax.MustMarshal(env)}
}

func TestHandlePaymentAuthorized_MarksPaid(t *testing.T) {
	svc, repo, mr := setup(t)
	o := placeOrder(t, repo)
	cacheKey := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	require.NoError(t, mr.Set(cacheKey, `{"status":"pending"}`))

	require.NoError(t, svc.HandlePaymentAuthorized(context.Background(), authorizedMsg(t, o.ID)))

	got, err := repo.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPaid, got.Status)
	assert.False(t, mr.Exists(cacheKey))
}

func TestHandlePaymentFailed_MarksFailed(t *testing.T) {
	svc, repo, _ := setup(t)
	o := placeOrder(t, repo)

	require.NoError(t, svc.HandlePaymentFailed(context.Background(), failedMsg(t, o.ID)))

	got, err := repo.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusFailed, got.Status)
}

func TestHandle_DuplicateEventAppliedOnce(t *testing.T) {
	svc, repo, mr := setup(t)
	o := placeOrder(t, repo)
	msg := authorizedMsg(t, o.ID)

	require.NoError(t, svc.HandlePaymentAuthorized(context.Background(), msg))
	require.NoError(t, svc.HandlePaymentAuthorized(context.Background(), msg))

	got, err := repo.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPaid, got.Status)
	assert.Len(t, mr.Keys(), 1) // one dedup key
}

func TestHandle_ConflictingOutcomeAcked(t *testing.T) {
	svc, repo, _ := setup(t)
	o := placeOrder(t, repo)

	require.NoError(t, svc.HandlePaymentAuthorized(context.Background(), authorizedMsg(t, o.ID)))
	// a failure after paid is an invalid transition: logged and acknowledged
	require.NoError(t, svc.HandlePaymentFailed(context.Background(), failedMsg(t, o.ID)))

	got, err := repo.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPaid, got.Status)
}

func TestHandle_UnknownOrderAcked(t *testing.T) {
	svc, _, _ := setup(t)
	assert.NoError(t, svc.HandlePaymentAuthorized(context.Background(), authorizedMsg(t, "missing")))
}

func TestHandle_IgnoresOtherEventTypes(t *testing.T) {
	svc, repo, mr := setup(t)
	o := placeOrder(t, repo)

	require.NoError(t, svc.HandlePaymentAuthorized(context.Background(), failedMsg(t, o.ID)))

	got, err := repo.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, got.Status)
	assert.Empty(t, mr.Keys())
}

func TestHandle_UndecodableMessageAcked(t *testing.T) {
	svc, _, _ := setup(t)
	assert.NoError(t, svc.HandlePaymentFailed(context.Background(), kafka.Message{Value: []byte("{")}))
}

type brokenRepo struct{ orders.Repository }

func (brokenRepo) UpdateStatus(context.Context, string, orders.Status) (orders.Order, error) {
	return orders.Order{}, errors.New("connection reset")
}

func TestHandle_StorageErrorReleasesClaim(t *testing.T) {
	svc, repo, mr := setup(t)
	o := placeOrder(t, repo)
	svc.Repo = brokenRepo{repo}
	msg := authorizedMsg(t, o.ID)

	err := svc.HandlePaymentAuthorized(context.Background(), msg)
	require.Error(t, err)
	assert.Empty(t, mr.Keys())

	// redelivery goes through once storage is back
	svc.Repo = repo
	require.NoError(t, svc.HandlePaymentAuthorized(context.Background(), msg))
	got, err := repo.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPaid, got.Status)
}

func TestHandle_RedisDownIsRetried(t *testing.T) {
	svc, repo, mr := setup(t)
	o := placeOrder(t, repo)
	mr.Close()

	assert.Error(t, svc.HandlePaymentAuthorized(context.Background(), authorizedMsg(t, o.ID)))
	got, err := repo.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, got.Status)
}
