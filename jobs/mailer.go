package jobs

import (
	"context"
	"fmt"
	"net/smtp"
)

// SMTPSender delivers payment confirmations over plain SMTP. Local
// development points it at Mailpit.
type SMTPSender struct {
	addr string
	from string
	to   string
}

// NewSMTPSender constructs SMTPSender.
func NewSMTPSender(host string, port int, from, to string) *SMTPSender {
	return &SMTPSender{
		addr: fmt.Sprintf("%s:%d", host, port),
		from: from,
		to:   to,
	}
}

// Send writes one confirmation message.
func (s *SMTPSender) Send(ctx context.Context, payload PaymentNotificationPayload) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: Payment confirmation\r\n\r\nPayment of %s recorded for contact %d (%s).\r\n",
		s.from, s.to, payload.Amount, payload.ContactID, payload.Kind)
	return smtp.SendMail(s.addr, nil, s.from, []string{s.to}, []byte(msg))
}
