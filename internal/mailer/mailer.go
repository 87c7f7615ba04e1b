// Package mailer delivers HTML email. Delivery failures are reported as a
// false return value and logged; they never panic or exit the process.
package mailer

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/edusphere/apiserver/config"
	"github.com/edusphere/apiserver/internal/logger"
	"github.com/wneessen/go-mail"
)

// Sender is the email capability used by the credential flows.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) bool
}

// SMTPSender sends mail through an SMTP relay.
type SMTPSender struct {
	client *mail.Client
	from   string
}

// NewSMTPSender constructs an SMTPSender from config. The connection is
// opened per message.
func NewSMTPSender(cfg config.MailConfig, timeout time.Duration) (*SMTPSender, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("mail host is required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, errors.New("mail from address is required")
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if timeout > 0 {
		opts = append(opts, mail.WithTimeout(timeout))
	}
	if cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.User),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, err
	}
	return &SMTPSender{client: client, from: cfg.From}, nil
}

// Send delivers one HTML message and reports success.
func (s *SMTPSender) Send(ctx context.Context, to, subject, htmlBody string) bool {
	log := logger.FromContext(ctx)

	msg := mail.NewMsg()
	if err := msg.From(s.from); err != nil {
		log.Err(err).Msg("invalid mail sender address")
		return false
	}
	if err := msg.To(to); err != nil {
		log.Err(err).Str("to", to).Msg("invalid mail recipient address")
		return false
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		log.Err(err).Str("to", to).Str("subject", subject).Msg("mail delivery failed")
		return false
	}
	return true
}
