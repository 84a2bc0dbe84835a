// Package mailer sends order confirmation emails over SMTP.
package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
	"time"

	"marketplace-service/config"
	"marketplace-service/internal/models"

	"go.uber.org/zap"
)

// ErrNotConfigured is returned when no SMTP server is configured
var ErrNotConfigured = errors.New("mail server not configured")

// SendFunc matches smtp.SendMail
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer renders and sends transactional emails
type Mailer struct {
	cfg    config.MailConfig
	send   SendFunc
	tmpl   *template.Template
	logger *zap.Logger
}

// NewMailer creates a new SMTP mailer
func NewMailer(cfg config.MailConfig, logger *zap.Logger) *Mailer {
	return &Mailer{
		cfg:    cfg,
		send:   smtp.SendMail,
		tmpl:   template.Must(template.New("order_confirmation").Parse(orderConfirmationTemplate)),
		logger: logger,
	}
}

// WithSender replaces the SMTP transport
func (m *Mailer) WithSender(send SendFunc) *Mailer {
	m.send = send
	return m
}

type confirmationView struct {
	models.OrderConfirmation
	OrderDateText        string
	DeliveryDateText     string
	ShippingAddressLine  string
	TotalText            string
	PaymentMethodDisplay string
	Items                []confirmationItemView
	Year                 int
}

type confirmationItemView struct {
	ProductName string
	Quantity    int
	PriceText   string
}

// SendOrderConfirmation emails the order confirmation to the customer
func (m *Mailer) SendOrderConfirmation(ctx context.Context, c models.OrderConfirmation) error {
	if m.cfg.Host == "" {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := m.RenderOrderConfirmation(c)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("Order Confirmation - Order #%d", c.OrderID)
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		m.cfg.Sender, c.CustomerEmail, subject, body)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%s", m.cfg.Host, m.cfg.Port)
	if err := m.send(addr, auth, m.cfg.Sender, []string{c.CustomerEmail}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", c.CustomerEmail, err)
	}

	m.logger.Info("Order confirmation email sent",
		zap.Int64("order_id", c.OrderID),
		zap.String("recipient", c.CustomerEmail))
	return nil
}

// RenderOrderConfirmation renders the HTML body of the confirmation email
func (m *Mailer) RenderOrderConfirmation(c models.OrderConfirmation) (string, error) {
	view := confirmationView{
		OrderConfirmation:    c,
		OrderDateText:        c.OrderDate.Format("2006-01-02 15:04"),
		DeliveryDateText:     c.ExpectedDeliveryDate.Format("2006-01-02"),
		ShippingAddressLine:  strings.ReplaceAll(c.ShippingAddress, "\n", ", "),
		TotalText:            c.TotalAmount.StringFixed(2),
		PaymentMethodDisplay: paymentMethodDisplay(c.PaymentMethod),
		Year:                 time.Now().Year(),
	}
	for _, item := range c.Items {
		view.Items = append(view.Items, confirmationItemView{
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			PriceText:   item.Price.StringFixed(2),
		})
	}

	var buf bytes.Buffer
	if err := m.tmpl.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("failed to render confirmation email: %w", err)
	}
	return buf.String(), nil
}

func paymentMethodDisplay(m models.PaymentMethod) string {
	switch m {
	case models.PaymentMethodOnline:
		return "Online Payment"
	case models.PaymentMethodCOD:
		return "Cash on Delivery"
	}
	return string(m)
}

const orderConfirmationTemplate = `<!DOCTYPE html>
<html>
<body>
  <h2>Thank you for your order, {{.CustomerName}}!</h2>
  <p>Order <strong>#{{.OrderID}}</strong> placed on {{.OrderDateText}}.</p>
  <table>
    <thead><tr><th>Product</th><th>Qty</th><th>Price</th></tr></thead>
    <tbody>
    {{- range .Items}}
      <tr><td>{{.ProductName}}</td><td>{{.Quantity}}</td><td>{{.PriceText}}</td></tr>
    {{- end}}
    </tbody>
  </table>
  <p>Total: <strong>{{.TotalText}}</strong></p>
  <p>Payment method: {{.PaymentMethodDisplay}}</p>
  <p>Shipping to: {{.ShippingAddressLine}}</p>
  <p>Expected delivery: {{.DeliveryDateText}}</p>
  <p>&copy; {{.Year}}</p>
</body>
</html>
`
