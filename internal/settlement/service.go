// Package settlement applies payment outcomes reported by the storefront
// to the order record.
package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/ariefcatur/go-prompt-market/internal/kafka"
	"github.com/ariefcatur/go-prompt-market/internal/orders"
	"github.com/ariefcatur/go-prompt-market/internal/redisx"
)

type Service struct {
	Repo        orders.Repository
	Redis       *redis.Client
	ServiceName string
	Log         *zap.Logger
}

// HandlePaymentAuthorized: dipasang sebagai handler consumer order.payment.authorized.
func (s *Service) HandlePaymentAuthorized(ctx context.Context, m kafkago.Message) error {
	return s.handle(ctx, m, orders.EventPaymentAuthorized, func(payload json.RawMessage) (string, error) {
		p, err := kafkax.UnwrapPayload[orders.PaymentAuthorizedPayload](payload)
		return p.OrderID, err
	}, orders.StatusPaid)
}

// HandlePaymentFailed: dipasang sebagai handler consumer order.payment.failed.
func (s *Service) HandlePaymentFailed(ctx context.Context, m kafkago.Message) error {
	return s.handle(ctx, m, orders.EventPaymentFailed, func(payload json.RawMessage) (string, error) {
		p, err := kafkax.UnwrapPayload[orders.PaymentFailedPayload](payload)
		return p.OrderID, err
	}, orders.StatusFailed)
}

func (s *Service) handle(ctx context.Context, m kafkago.Message, want string, orderOf func(json.RawMessage) (string, error), to orders.Status) error {
	// 1) decode envelope
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		s.log().Warn("drop undecodable event", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil // poison message, redelivery won't help
	}
	if env.EventType != want {
		return nil
	} // ignore

	log := s.log().With(zap.String("event_id", env.EventID), zap.String("event_type", env.EventType), zap.String("trace_id", env.TraceID))

	// 2) decode payload
	orderID, err := orderOf(env.Payload)
	if err != nil || orderID == "" {
		log.Warn("drop event without order", zap.Error(err))
		return nil
	}
	log = log.With(zap.String("order_id", orderID))

	// 3) dedup via Redis (pakai event_id)
	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	first, err := redisx.Claim(ctx, s.Redis, dkey, redisx.TTLDedup)
	if err != nil {
		return fmt.Errorf("claim %s: %w", dkey, err)
	}
	if !first {
		log.Debug("duplicate event skipped")
		return nil
	}

	// 4) transition
	o, err := s.Repo.UpdateStatus(ctx, orderID, to)
	switch {
	case errors.Is(err, orders.ErrInvalidTransition), errors.Is(err, orders.ErrNotFound):
		log.Warn("payment outcome not applied", zap.String("to", string(to)), zap.Error(err))
		return nil
	case err != nil:
		// lepas claim supaya redelivery bisa proses ulang
		if rerr := redisx.Release(ctx, s.Redis, dkey); rerr != nil {
			log.Error("release dedup claim", zap.Error(rerr))
		}
		return fmt.Errorf("update order %s: %w", orderID, err)
	}

	// 5) buang cache supaya GET berikutnya baca status terbaru
	if err := s.Redis.Del(ctx, fmt.Sprintf(redisx.KeyOrderStatus, orderID)).Err(); err != nil {
		log.Warn("invalidate order cache", zap.Error(err))
	}
	log.Info("order settled", zap.String("status", string(o.Status)))
	return nil
}

func (s *Service) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}
