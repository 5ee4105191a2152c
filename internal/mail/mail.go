package mail

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/optiview/eyewear-shop/internal/models"
)

// Mailer dispatches the order confirmation. Template rendering and
// delivery live with the provider; settlement only fires the send and
// never fails because of it.
type Mailer interface {
	SendOrderConfirmation(ctx context.Context, to string, order *models.Order) error
}

type SendgridMailer struct {
	client *sendgrid.Client
	from   string
}

var _ Mailer = (*SendgridMailer)(nil)

func NewSendgridMailer(apiKey, from string) *SendgridMailer {
	return &SendgridMailer{
		client: sendgrid.NewSendClient(apiKey),
		from:   from,
	}
}

func (m *SendgridMailer) SendOrderConfirmation(ctx context.Context, to string, order *models.Order) error {
	subject := fmt.Sprintf("Order %s confirmed", order.ID)
	body := fmt.Sprintf(
		"Your payment of %.2f %s was received. Order %s is now being processed.",
		order.FinalAmount, order.Currency, order.ID,
	)
	msg := sgmail.NewSingleEmail(
		sgmail.NewEmail("OptiView", m.from),
		subject,
		sgmail.NewEmail("", to),
		body,
		body,
	)
	resp, err := m.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid: status %d", resp.StatusCode)
	}
	return nil
}

// NoopMailer is used when no mail provider is configured.
type NoopMailer struct{}

var _ Mailer = (*NoopMailer)(nil)

func (NoopMailer) SendOrderConfirmation(ctx context.Context, to string, order *models.Order) error {
	return nil
}
