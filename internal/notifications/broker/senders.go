package broker

import (
	"context"
	"fmt"

	"github.com/ToFood/tofood-zip/internal/types"
)

// SendGridAPI is the subset of external.SendGridClient used here.
type SendGridAPI interface {
	Send(ctx context.Context, apiKey types.SecretString, input types.SendInput) (string, error)
}

// SESAPI is the subset of external.SESClient used here.
type SESAPI interface {
	Send(ctx context.Context, input types.SendInput) (string, error)
}

// SendGridSender delivers through the SendGrid HTTP API using the config's
// api key as bearer token.
type SendGridSender struct {
	client SendGridAPI
}

// NewSendGridSender wraps client.
func NewSendGridSender(client SendGridAPI) *SendGridSender {
	return &SendGridSender{client: client}
}

func (s *SendGridSender) Send(ctx context.Context, cfg types.BrokerServiceConfig, msg Message) Result {
	if cfg.SenderAddress == "" {
		return Failed("sender address not configured")
	}
	id, err := s.client.Send(ctx, cfg.APIKey, sendInput(cfg, msg))
	if err != nil {
		return Failed(err.Error())
	}
	return Succeeded(id)
}

// SESSender delivers through AWS SES with the process IAM credentials.
type SESSender struct {
	client SESAPI
}

// NewSESSender wraps client.
func NewSESSender(client SESAPI) *SESSender {
	return &SESSender{client: client}
}

func (s *SESSender) Send(ctx context.Context, cfg types.BrokerServiceConfig, msg Message) Result {
	if cfg.SenderAddress == "" {
		return Failed("sender address not configured")
	}
	id, err := s.client.Send(ctx, sendInput(cfg, msg))
	if err != nil {
		return Failed(err.Error())
	}
	return Succeeded(id)
}

// StubSender logs the delivery and reports success without contacting any
// provider. Local environments register it for every kind.
type StubSender struct {
	logger types.Logger
}

// NewStubSender creates a StubSender.
func NewStubSender(logger types.Logger) *StubSender {
	return &StubSender{logger: logger}
}

func (s *StubSender) Send(_ context.Context, cfg types.BrokerServiceConfig, msg Message) Result {
	redacted := make([]string, len(msg.To))
	for i, to := range msg.To {
		redacted[i] = RedactContact(to)
	}
	s.logger.Info("stub: broker send",
		"broker_kind", cfg.Kind.String(),
		"broker_service_id", cfg.ID,
		"to", redacted,
		"subject", msg.Subject,
		"reference_id", msg.ReferenceID,
	)
	return Succeeded(fmt.Sprintf("stub-%s", msg.ReferenceID))
}

// sendInput merges the config's sender identity and bcc list with msg.
func sendInput(cfg types.BrokerServiceConfig, msg Message) types.SendInput {
	bcc := append(types.SplitAddressList(cfg.Bcc), msg.Bcc...)
	return types.SendInput{
		From:        types.SenderIdentity{Name: cfg.SenderName, Address: cfg.SenderAddress},
		ReplyTo:     cfg.ReplyTo,
		To:          msg.To,
		Bcc:         bcc,
		Subject:     msg.Subject,
		BodyHTML:    msg.HTML,
		BodyText:    msg.Text,
		Attachments: msg.Attachments,
		ReferenceID: msg.ReferenceID,
	}
}

// Defaults are the clients the default registry wires.
type Defaults struct {
	SMTP     *SMTPSender
	SendGrid SendGridAPI
	SES      SESAPI
}

// NewDefaultRegistry registers the implemented integrations: Smtp and
// SmtpInsecure over SMTP, SendGridEmailApi and Aws when their clients are
// provided. Every other kind stays unregistered.
func NewDefaultRegistry(d Defaults) *Registry {
	r := NewRegistry()
	if d.SMTP != nil {
		r.Register(types.BrokerSmtp, d.SMTP)
		r.Register(types.BrokerSmtpInsecure, d.SMTP)
	}
	if d.SendGrid != nil {
		r.Register(types.BrokerSendGridEmailAPI, NewSendGridSender(d.SendGrid))
	}
	if d.SES != nil {
		r.Register(types.BrokerAws, NewSESSender(d.SES))
	}
	return r
}

// NewStubRegistry registers a StubSender for every known kind.
func NewStubRegistry(logger types.Logger) *Registry {
	r := NewRegistry()
	stub := NewStubSender(logger)
	for _, kind := range types.AllBrokerKinds() {
		r.Register(kind, stub)
	}
	return r
}
