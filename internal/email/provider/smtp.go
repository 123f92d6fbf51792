package provider

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	netmail "net/mail"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/allisson/maildispatch/internal/email/domain"
)

// SMTPConfig holds the mail relay settings.
type SMTPConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	From        string
	ImplicitTLS bool
	Timeout     time.Duration
}

// SMTPOption configures the SMTP provider.
type SMTPOption func(*SMTP)

// WithSMTPDialer swaps the network dialer used to reach the relay.
func WithSMTPDialer(d Dialer) SMTPOption {
	return func(s *SMTP) {
		if d != nil {
			s.dialer = d
		}
	}
}

// WithSMTPTLSConfig overrides the TLS configuration. A nil config disables STARTTLS
// and implicit TLS, which is only meant for tests against a local relay.
func WithSMTPTLSConfig(cfg *tls.Config) SMTPOption {
	return func(s *SMTP) {
		s.tlsConfig = cfg
	}
}

// WithSMTPClock replaces the clock used for the Date header.
func WithSMTPClock(now func() time.Time) SMTPOption {
	return func(s *SMTP) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSMTPHelloName sets the EHLO identity.
func WithSMTPHelloName(name string) SMTPOption {
	return func(s *SMTP) {
		if strings.TrimSpace(name) != "" {
			s.helloName = strings.TrimSpace(name)
		}
	}
}

// Dialer abstracts net.Dialer.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// SMTP delivers through a mail relay using stored credentials over a secure transport.
// With a TLS config the relay must either speak implicit TLS or offer STARTTLS, and
// configured credentials must be accepted through AUTH; otherwise nothing is sent.
type SMTP struct {
	host        string
	port        int
	from        *netmail.Address
	username    string
	password    string
	implicitTLS bool
	timeout     time.Duration
	tlsConfig   *tls.Config
	dialer      Dialer
	now         func() time.Time
	helloName   string
	logger      *slog.Logger
}

// NewSMTP validates the relay configuration and builds the provider.
func NewSMTP(cfg SMTPConfig, logger *slog.Logger, opts ...SMTPOption) (*SMTP, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("smtp provider: host is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("smtp provider: invalid port %d", cfg.Port)
	}
	from, err := netmail.ParseAddress(cfg.From)
	if err != nil {
		return nil, fmt.Errorf("smtp provider: invalid from address: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	s := &SMTP{
		host:        cfg.Host,
		port:        cfg.Port,
		from:        from,
		username:    cfg.Username,
		password:    cfg.Password,
		implicitTLS: cfg.ImplicitTLS,
		timeout:     timeout,
		dialer:      &net.Dialer{Timeout: timeout},
		now:         time.Now,
		helloName:   "localhost",
		logger:      logger,
		tlsConfig: &tls.Config{
			ServerName: cfg.Host,
			MinVersion: tls.VersionTLS12,
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Name returns the provider name.
func (s *SMTP) Name() string {
	return NameSMTP
}

// Send performs one SMTP transaction.
func (s *SMTP) Send(ctx context.Context, msg domain.Message) domain.Outcome {
	rcpt, err := netmail.ParseAddress(msg.Recipient)
	if err != nil {
		return domain.Failedf(NameSMTP, domain.ErrorClassRejected, "invalid recipient: %v", err)
	}

	m, err := s.buildMessage(rcpt, msg)
	if err != nil {
		return domain.Failedf(NameSMTP, domain.ErrorClassUnknown, "build message: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	conn := &smtpConn{ctx: ctx, dialer: s.dialer}
	if s.implicitTLS && s.tlsConfig != nil {
		conn.tlsConfig = s.tlsConfig
	}
	stop := conn.watch()
	defer stop()

	client, err := mail.NewClient(s.host, s.clientOptions(conn)...)
	if err != nil {
		return domain.Failedf(NameSMTP, domain.ErrorClassUnknown, "smtp client: %v", err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		class := s.classify(ctx, conn, err)
		if s.logger != nil {
			s.logger.Debug("smtp delivery failed", slog.String("error_class", string(class)), slog.Any("error", err))
		}
		return domain.Failed(NameSMTP, class, err.Error())
	}

	return domain.Succeeded(NameSMTP, messageID(m))
}

func (s *SMTP) clientOptions(conn *smtpConn) []mail.Option {
	opts := []mail.Option{
		mail.WithDialContextFunc(conn.dial),
		mail.WithHELO(s.helloName),
		mail.WithTimeout(s.timeout),
	}

	switch {
	case s.tlsConfig == nil:
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	case s.implicitTLS:
		opts = append(opts, mail.WithSSL(), mail.WithTLSConfig(s.tlsConfig))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory), mail.WithTLSConfig(s.tlsConfig))
	}

	if s.username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.username),
			mail.WithPassword(s.password),
		)
	}

	// Applied last so the TLS options cannot move the relay port.
	return append(opts, mail.WithPort(s.port))
}

func (s *SMTP) classify(ctx context.Context, conn *smtpConn, err error) domain.ErrorClass {
	if ctx.Err() != nil {
		return domain.ErrorClassTimeout
	}
	if dialErr := conn.dialError(); dialErr != nil {
		return classifyError(dialErr)
	}
	if class := classifyError(err); class != domain.ErrorClassUnknown {
		return class
	}

	if m := replyCode.FindStringSubmatch(err.Error()); m != nil {
		code, _ := strconv.Atoi(m[1])
		return classifySMTPCode(code)
	}

	// Session setup failures carry no reply code.
	reason := strings.ToLower(err.Error())
	switch {
	case strings.Contains(reason, "tls"):
		return domain.ErrorClassConnection
	case strings.Contains(reason, "auth"):
		return domain.ErrorClassAuth
	default:
		return domain.ErrorClassUnknown
	}
}

func (s *SMTP) buildMessage(rcpt *netmail.Address, msg domain.Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(s.from.String()); err != nil {
		return nil, err
	}
	if err := m.To(rcpt.String()); err != nil {
		return nil, err
	}
	m.Subject(sanitizeHeaderValue(msg.Subject))
	m.SetDateWithValue(s.now())
	m.SetMessageID()

	if msg.BodyText == "" {
		m.SetBodyString(mail.TypeTextHTML, msg.BodyHTML)
		return m, nil
	}

	m.SetBodyString(mail.TypeTextPlain, msg.BodyText)
	m.AddAlternativeString(mail.TypeTextHTML, msg.BodyHTML)
	return m, nil
}

func messageID(m *mail.Msg) string {
	if ids := m.GetGenHeader(mail.HeaderMessageID); len(ids) > 0 {
		return ids[0]
	}
	return "250 message accepted"
}

func sanitizeHeaderValue(value string) string {
	clean := strings.ReplaceAll(value, "\r", " ")
	clean = strings.ReplaceAll(clean, "\n", " ")
	return strings.TrimSpace(clean)
}

// replyCode matches a relay reply such as "550 5.1.1".
var replyCode = regexp.MustCompile(`\b([45]\d{2})[ -][245]\.\d{1,3}\.\d{1,3}\b`)

// smtpConn dials the relay for one send and tears the connection down when the
// send context ends, so a stalled relay cannot outlive the provider timeout.
type smtpConn struct {
	ctx       context.Context
	dialer    Dialer
	tlsConfig *tls.Config

	mu      sync.Mutex
	conns   []net.Conn
	dialErr error
}

func (c *smtpConn) dial(_ context.Context, network, address string) (net.Conn, error) {
	conn, err := c.dialer.DialContext(c.ctx, network, address)
	if err != nil {
		c.mu.Lock()
		c.dialErr = err
		c.mu.Unlock()
		return nil, err
	}
	if deadline, ok := c.ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if c.tlsConfig != nil {
		conn = tls.Client(conn, c.tlsConfig.Clone())
	}

	c.mu.Lock()
	c.conns = append(c.conns, conn)
	c.mu.Unlock()
	return conn, nil
}

func (c *smtpConn) dialError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dialErr
}

func (c *smtpConn) closeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, conn := range c.conns {
		_ = conn.Close()
	}
	c.conns = nil
}

func (c *smtpConn) watch() func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-c.ctx.Done():
			c.closeAll()
		case <-done:
		}
	}()
	return func() {
		close(done)
		c.closeAll()
	}
}
