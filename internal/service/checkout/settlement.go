package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/optiview/eyewear-shop/internal/logging"
	"github.com/optiview/eyewear-shop/internal/models"
	"github.com/optiview/eyewear-shop/internal/repo"
)

// Settlement reconciler. Two producers feed it: the client's verify call
// right after paying, and the provider's signed webhook, which may arrive
// before, after, or instead of the verify. Both converge on the same
// settle routine; the repo's compare-and-swap makes replays no-ops.

type VerifyInput struct {
	OrderID          uuid.UUID `json:"order_id"`
	GatewayOrderID   string    `json:"gateway_order_id"`
	GatewayPaymentID string    `json:"gateway_payment_id"`
	Signature        string    `json:"signature"`
}

// VerifyPayment settles from the synchronous client callback.
func (s *Service) VerifyPayment(ctx context.Context, in VerifyInput) error {
	if in.OrderID == uuid.Nil || in.GatewayOrderID == "" || in.GatewayPaymentID == "" || in.Signature == "" {
		return fmt.Errorf("%w: order_id, gateway ids and signature required", ErrValidation)
	}

	if !s.Gateway.VerifyPaymentSignature(in.GatewayOrderID, in.GatewayPaymentID, in.Signature) {
		return fmt.Errorf("%w: payment signature mismatch", ErrBadSignature)
	}

	order, err := s.Repo.GetOrder(ctx, in.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: order", ErrNotFound)
		}
		return err
	}
	if order.GatewayOrderID != in.GatewayOrderID {
		return fmt.Errorf("%w: gateway order id does not match order", ErrValidation)
	}

	return s.settleCaptured(ctx, order, repo.PaymentEvidence{
		GatewayOrderID:   in.GatewayOrderID,
		GatewayPaymentID: in.GatewayPaymentID,
		RawPayload:       mustJSON(in),
	})
}

type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// HandleWebhook settles from the provider's asynchronous notification.
// Once the signature checks out the provider always gets a success
// response: unknown orders are logged as orphans for manual follow-up
// instead of making the provider retry forever.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if !s.Gateway.VerifyWebhookSignature(body, signature) {
		return fmt.Errorf("%w: webhook signature mismatch", ErrBadSignature)
	}

	l := logging.FromContext(ctx)

	var ev webhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		l.Error("webhook_malformed_body", "error", err)
		return nil
	}

	entity := ev.Payload.Payment.Entity
	evidence := repo.PaymentEvidence{
		GatewayOrderID:   entity.OrderID,
		GatewayPaymentID: entity.ID,
		RawPayload:       string(body),
	}

	switch ev.Event {
	case "payment.captured", "payment.failed":
	default:
		l.Info("webhook_event_ignored", "event", ev.Event)
		return nil
	}

	order, err := s.Repo.GetOrderByGatewayID(ctx, entity.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Error("orphan_payment",
				"gateway_order_id", entity.OrderID,
				"gateway_payment_id", entity.ID,
				"event", ev.Event)
			return nil
		}
		return err
	}

	if ev.Event == "payment.failed" {
		flipped, err := s.Repo.SettleFailed(ctx, order, evidence)
		if err != nil {
			return err
		}
		if !flipped {
			l.Info("payment_failed_ignored", "order_id", order.ID,
				"payment_status", order.PaymentStatus)
			return nil
		}
		s.publishAsync(ctx, order.ID.String(), map[string]any{
			"type":     "payment.failed",
			"order_id": order.ID,
			"user_id":  order.UserID,
		})
		return nil
	}

	return s.settleCaptured(ctx, order, evidence)
}

// settleCaptured runs the durable settlement and, only when this call
// was the one that flipped the order, fires the post-commit effects.
func (s *Service) settleCaptured(ctx context.Context, order *models.Order, ev repo.PaymentEvidence) error {
	settled, err := s.Repo.SettleCaptured(ctx, order, ev)
	if err != nil {
		return err
	}
	if !settled {
		logging.FromContext(ctx).Info("settlement_replay", "order_id", order.ID)
		return nil
	}

	logging.FromContext(ctx).Info("order_settled",
		"order_id", order.ID,
		"gateway_payment_id", ev.GatewayPaymentID,
		"amount", order.FinalAmount)

	// Cache invalidation and the confirmation mail run outside the
	// settlement transaction; neither may fail the settlement.
	s.runAsync(func(ctx context.Context) {
		if s.Cache != nil {
			if err := s.Cache.Delete(ctx, fmt.Sprintf("cart:%s", order.UserID)); err != nil {
				logging.FromContext(ctx).Warn("cart_cache_invalidate_error",
					"order_id", order.ID, "error", err)
			}
		}
		s.sendConfirmation(ctx, order)
	})

	s.publishAsync(ctx, order.ID.String(), map[string]any{
		"type":     "order.settled",
		"order_id": order.ID,
		"user_id":  order.UserID,
		"amount":   order.FinalAmount,
	})
	return nil
}

func (s *Service) sendConfirmation(ctx context.Context, order *models.Order) {
	if s.Mailer == nil || s.Users == nil {
		return
	}
	l := logging.FromContext(ctx)

	email, err := s.Users.Email(ctx, order.UserID)
	if err != nil {
		l.Warn("confirmation_email_lookup_failed", "order_id", order.ID, "error", err)
		return
	}
	if err := s.Mailer.SendOrderConfirmation(ctx, email, order); err != nil {
		l.Warn("confirmation_email_send_failed", "order_id", order.ID, "error", err)
	}
}

func (s *Service) publishAsync(ctx context.Context, key string, event map[string]any) {
	if s.Producer == nil {
		return
	}
	l := logging.FromContext(ctx)
	s.runAsync(func(ctx context.Context) {
		if err := s.Producer.PublishEvent(ctx, key, event); err != nil {
			l.Warn("order_event_publish_error", "key", key, "error", err)
		}
	})
}

// runAsync detaches the effect from the request lifecycle: the request
// context may be cancelled the moment the response is written.
func (s *Service) runAsync(fn func(ctx context.Context)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		fn(ctx)
	}()
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
