package digest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
)

// SenderConfig holds the SMTP delivery settings.
type SenderConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	Recipient string
}

// Sender delivers a rendered digest over SMTP with STARTTLS.
type Sender struct {
	config SenderConfig
	logger zerolog.Logger
}

// NewSender creates a digest sender with the given configuration.
func NewSender(cfg SenderConfig, logger zerolog.Logger) *Sender {
	return &Sender{
		config: cfg,
		logger: logger.With().Str("component", "digest_sender").Logger(),
	}
}

// Send delivers the digest as a multipart message with both plain-text and
// HTML bodies, so clients that strip HTML still get a readable email.
func (s *Sender) Send(ctx context.Context, d *Digest) error {
	msg := mail.NewMsg()
	if err := msg.From(s.config.Username); err != nil {
		return fmt.Errorf("digest: invalid sender address: %w", err)
	}
	if err := msg.To(s.config.Recipient); err != nil {
		return fmt.Errorf("digest: invalid recipient address: %w", err)
	}
	msg.Subject(d.Subject)
	msg.SetBodyString(mail.TypeTextPlain, d.TextBody)
	msg.AddAlternativeString(mail.TypeTextHTML, d.HTMLBody)

	client, err := mail.NewClient(s.config.Host,
		mail.WithPort(s.config.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.config.Username),
		mail.WithPassword(s.config.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return fmt.Errorf("digest: creating smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("digest: sending email: %w", err)
	}

	s.logger.Info().
		Str("recipient", s.config.Recipient).
		Str("subject", d.Subject).
		Msg("digest delivered")

	return nil
}
