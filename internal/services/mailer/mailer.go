package mailer

import (
	"fmt"
	"net/smtp"

	"osrs-market/internal/logging"
	"osrs-market/internal/models"

	"go.uber.org/zap"
)

// Mailer delivers alert notifications to users who opted in. Delivery is
// best effort: a failed send is logged, never retried here.
type Mailer interface {
	SendAlert(to string, n *models.AlertNotification) error
}

// SMTP sends plain-text mail over an authenticated SMTP relay.
type SMTP struct {
	host string
	port string
	auth smtp.Auth
	from string
}

func NewSMTP(host, port, user, pass, from string) *SMTP {
	var auth smtp.Auth
	if user != "" {
		auth = smtp.PlainAuth("", user, pass, host)
	}
	return &SMTP{host: host, port: port, auth: auth, from: from}
}

func (m *SMTP) SendAlert(to string, n *models.AlertNotification) error {
	subject := fmt.Sprintf("Price alert: %s %s %.2f%%", n.ItemName, n.AlertType, n.PriceChangePercent)
	old := "n/a"
	if n.OldPrice != nil {
		old = fmt.Sprintf("%d gp", *n.OldPrice)
	}
	body := fmt.Sprintf(
		"Your %s alert for %s fired.\r\n\r\nBaseline price: %s\r\nCurrent price: %d gp\r\nChange: %.2f%%\r\n",
		n.AlertType, n.ItemName, old, n.NewPrice, n.PriceChangePercent,
	)
	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", m.from, to, subject, body))
	return smtp.SendMail(m.host+":"+m.port, m.auth, m.from, []string{to}, msg)
}

// LogOnly is the fallback when no SMTP relay is configured; triggered
// alerts still show up in the logs.
type LogOnly struct{}

func (LogOnly) SendAlert(to string, n *models.AlertNotification) error {
	logging.Log.Info("Email delivery disabled, alert notification not sent",
		zap.String("to", to),
		zap.String("item", n.ItemName),
		zap.String("alert_type", n.AlertType),
		zap.Float64("change_percent", n.PriceChangePercent),
	)
	return nil
}
