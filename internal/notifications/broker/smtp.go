package broker

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/ToFood/tofood-zip/internal/external"
	"github.com/ToFood/tofood-zip/internal/types"
)

// SMTPSession is an established, authenticated SMTP connection.
// *mail.Client satisfies it.
type SMTPSession interface {
	Send(messages ...*mail.Msg) error
	Close() error
}

// SMTPDialOptions describes how to reach and authenticate to a server.
type SMTPDialOptions struct {
	Host               string
	Port               int
	Username           string
	Password           string
	InsecureSkipVerify bool
	Timeout            time.Duration
}

// SMTPDialFunc opens a session. The returned session is closed by the caller.
type SMTPDialFunc func(ctx context.Context, opts SMTPDialOptions) (SMTPSession, error)

// SMTPConfig holds the defaults applied when a broker config leaves the
// endpoint empty or omits the port.
type SMTPConfig struct {
	DefaultHost string
	DefaultPort int
	Timeout     time.Duration
	Dial        SMTPDialFunc
}

// SMTPSender delivers mail over SMTP with mandatory STARTTLS.
type SMTPSender struct {
	defaultHost string
	defaultPort int
	timeout     time.Duration
	dial        SMTPDialFunc
}

// NewSMTPSender creates an SMTPSender. Zero fields in cfg fall back to
// smtp.gmail.com:587, a 30 second timeout and a go-mail dialer.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	s := &SMTPSender{
		defaultHost: cfg.DefaultHost,
		defaultPort: cfg.DefaultPort,
		timeout:     cfg.Timeout,
		dial:        cfg.Dial,
	}
	if s.defaultHost == "" {
		s.defaultHost = "smtp.gmail.com"
	}
	if s.defaultPort == 0 {
		s.defaultPort = mail.DefaultPortTLS
	}
	if s.timeout <= 0 {
		s.timeout = 30 * time.Second
	}
	if s.dial == nil {
		s.dial = DialSMTP
	}
	return s
}

// Send composes and transmits msg. The connection is closed on every path.
// Certificate verification is skipped for the SmtpInsecure kind and for
// configs with IgnoreTransportSecurity set; STARTTLS itself is never skipped.
func (s *SMTPSender) Send(ctx context.Context, cfg types.BrokerServiceConfig, msg Message) Result {
	if cfg.SenderAddress == "" {
		return Failed("sender address not configured")
	}

	host, port, err := s.endpoint(cfg.APIEndpoint)
	if err != nil {
		return Failed(err.Error())
	}

	m, err := external.BuildMessage(sendInput(cfg, msg))
	if err != nil {
		return Failed(err.Error())
	}

	session, err := s.dial(ctx, SMTPDialOptions{
		Host:               host,
		Port:               port,
		Username:           cfg.APIKey.Unmask(),
		Password:           cfg.APISecret.Unmask(),
		InsecureSkipVerify: cfg.Kind == types.BrokerSmtpInsecure || cfg.IgnoreTransportSecurity,
		Timeout:            s.sessionTimeout(ctx),
	})
	if err != nil {
		return Failed(fmt.Sprintf("smtp connect %s:%d: %v", host, port, err))
	}
	defer session.Close()

	if err := session.Send(m); err != nil {
		return Failed(fmt.Sprintf("smtp send: %v", err))
	}
	return Succeeded("")
}

// endpoint splits a "host" or "host:port" endpoint, applying defaults.
func (s *SMTPSender) endpoint(raw string) (string, int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return s.defaultHost, s.defaultPort, nil
	}
	if !strings.Contains(raw, ":") {
		return raw, s.defaultPort, nil
	}
	host, portStr, err := net.SplitHostPort(raw)
	if err != nil {
		return "", 0, fmt.Errorf("invalid smtp endpoint %q: %w", raw, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("invalid smtp port %q", portStr)
	}
	if host == "" {
		host = s.defaultHost
	}
	return host, port, nil
}

// sessionTimeout shortens the configured timeout to the context deadline.
func (s *SMTPSender) sessionTimeout(ctx context.Context) time.Duration {
	timeout := s.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = max(remaining, time.Millisecond)
		}
	}
	return timeout
}

// DialSMTP connects with go-mail using mandatory STARTTLS and PLAIN auth
// when a username is given.
func DialSMTP(ctx context.Context, o SMTPDialOptions) (SMTPSession, error) {
	opts := []mail.Option{
		mail.WithPort(o.Port),
		mail.WithTimeout(o.Timeout),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTLSConfig(&tls.Config{
			ServerName:         o.Host,
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: o.InsecureSkipVerify, //nolint:gosec // opt-in per broker config
		}),
	}
	if o.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(o.Username),
			mail.WithPassword(o.Password),
		)
	}

	client, err := mail.NewClient(o.Host, opts...)
	if err != nil {
		return nil, err
	}
	if err := client.DialWithContext(ctx); err != nil {
		return nil, err
	}
	return client, nil
}
