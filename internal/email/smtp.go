// Package email relays lead messages over SMTP.
package email

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"lead_engine_backend/internal/channel"
	"lead_engine_backend/platform/config"

	"github.com/google/uuid"
	gomail "github.com/wneessen/go-mail"
)

const defaultSubject = "Novidades sobre sua busca de imóvel"

// Mailer delivers a single message. SMTPSender implements it; tests swap in a fake.
type Mailer interface {
	Send(ctx context.Context, toEmail, subject, text string) error
}

// SMTPSender delivers plain-text mail via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSMTPSender creates a new SMTPSender from the email configuration.
func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	return &SMTPSender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetSMTPFromName(),
		fromEmail: cfg.GetSMTPFromAddress(),
	}
}

// BuildMessage assembles the outgoing message without sending it.
func (s *SMTPSender) BuildMessage(toEmail, subject, text string) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return nil, fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return nil, fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, text)
	return msg, nil
}

func (s *SMTPSender) Send(ctx context.Context, toEmail, subject, text string) error {
	msg, err := s.BuildMessage(toEmail, subject, text)
	if err != nil {
		return err
	}

	opts := []gomail.Option{
		gomail.WithPort(s.port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15 * time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	}
	if s.username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.username),
			gomail.WithPassword(s.password),
		)
	}

	client, err := gomail.NewClient(s.host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return channel.Unavailable(fmt.Errorf("smtp send: %w", err))
	}
	return nil
}

// Channel adapts a Mailer to channel.Channel by resolving the lead's email address.
type Channel struct {
	mailer   Mailer
	leads    channel.LeadLookup
	subjects map[string]string
}

var _ channel.Channel = (*Channel)(nil)

// NewChannel builds the email message channel. subjects maps template IDs to mail subjects.
func NewChannel(mailer Mailer, leads channel.LeadLookup, subjects map[string]string) *Channel {
	return &Channel{mailer: mailer, leads: leads, subjects: subjects}
}

func (c *Channel) Send(ctx context.Context, leadID uuid.UUID, templateName, text string) error {
	lead, err := c.leads.GetLead(ctx, leadID)
	if err != nil {
		return channel.Unavailable(fmt.Errorf("resolve lead %s: %w", leadID, err))
	}
	to := strings.TrimSpace(lead.Email)
	if to == "" {
		return channel.ErrNoRecipient
	}
	subject := c.subjects[templateName]
	if subject == "" {
		subject = defaultSubject
	}
	return c.mailer.Send(ctx, to, subject, text)
}
