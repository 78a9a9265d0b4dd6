// Package services provides external service integrations: mail delivery and lifecycle event publishing
package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/amirphl/drip-mailer/config"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/resend/resend-go/v2"
	"github.com/sirupsen/logrus"
	"github.com/yuin/goldmark"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
)

// MailMessage is one rendered email
type MailMessage struct {
	To      string
	Subject string
	Body    string
}

// MailSender delivers a single message; a returned error marks the delivery failed
type MailSender interface {
	Send(ctx context.Context, msg MailMessage) error
}

// NewMailSender builds the sender selected by EMAIL_PROVIDER
func NewMailSender(cfg config.EmailConfig) (MailSender, error) {
	switch cfg.Provider {
	case "smtp":
		return NewSMTPMailSender(cfg), nil
	case "resend":
		return NewResendMailSender(cfg), nil
	case "mock", "":
		return NewMockMailSender(), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}

// bodyRenderer turns plain/markdown bodies into an HTML alternative.
// Raw HTML in the body is escaped.
var bodyRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkhtml.WithHardWraps(),
	),
)

// RenderHTMLBody renders a message body to HTML
func RenderHTMLBody(body string) (string, error) {
	var buf bytes.Buffer
	if err := bodyRenderer.Convert([]byte(body), &buf); err != nil {
		return "", fmt.Errorf("failed to render html body: %w", err)
	}
	return buf.String(), nil
}

// SMTPMailSender delivers through an SMTP relay
type SMTPMailSender struct {
	cfg config.EmailConfig
}

func NewSMTPMailSender(cfg config.EmailConfig) *SMTPMailSender {
	return &SMTPMailSender{cfg: cfg}
}

func (s *SMTPMailSender) Send(ctx context.Context, msg MailMessage) error {
	raw, err := s.compose(msg)
	if err != nil {
		return err
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	conn, err := (&net.Dialer{Timeout: s.cfg.Timeout}).DialContext(ctx, "tcp", s.addr())
	if err != nil {
		return fmt.Errorf("smtp dial failed: %w", err)
	}
	defer conn.Close()

	// Closing the connection aborts the greeting or any blocked command once ctx is done.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := s.newClient(ctx, conn)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("smtp handshake aborted: %w", ctx.Err())
		}
		return fmt.Errorf("smtp handshake failed: %w", err)
	}
	defer c.Close()

	if s.cfg.Timeout > 0 {
		c.CommandTimeout = s.cfg.Timeout
		c.SubmissionTimeout = s.cfg.Timeout
	}

	if s.cfg.Username != "" {
		if err := c.Auth(sasl.NewPlainClient("", s.cfg.Username, s.cfg.Password)); err != nil {
			return fmt.Errorf("smtp auth failed: %w", err)
		}
	}

	if err := c.SendMail(s.cfg.FromEmail, []string{msg.To}, bytes.NewReader(raw)); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("smtp send aborted: %w", ctx.Err())
		}
		return fmt.Errorf("smtp send failed: %w", err)
	}

	if err := c.Quit(); err != nil {
		logrus.WithError(err).WithField("to", msg.To).Debug("smtp quit failed")
	}

	return nil
}

func (s *SMTPMailSender) addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

// newClient wraps an established connection: implicit TLS, STARTTLS or plain
func (s *SMTPMailSender) newClient(ctx context.Context, conn net.Conn) (*smtp.Client, error) {
	tlsConfig := &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}

	switch {
	case s.cfg.UseTLS:
		tlsConn := tls.Client(conn, tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			return nil, err
		}
		return smtp.NewClient(tlsConn), nil
	case s.cfg.UseSTARTTLS:
		return smtp.NewClientStartTLS(conn, tlsConfig)
	default:
		return smtp.NewClient(conn), nil
	}
}

// compose builds the RFC 5322 message; with RenderHTML it is multipart/alternative
func (s *SMTPMailSender) compose(msg MailMessage) ([]byte, error) {
	var h mail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{{Name: s.cfg.FromName, Address: s.cfg.FromEmail}})
	h.SetAddressList("To", []*mail.Address{{Address: msg.To}})
	if s.cfg.ReplyTo != "" {
		h.SetAddressList("Reply-To", []*mail.Address{{Address: s.cfg.ReplyTo}})
	}
	h.SetSubject(msg.Subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("failed to generate message id: %w", err)
	}

	var buf bytes.Buffer
	if !s.cfg.RenderHTML {
		w, err := mail.CreateSingleInlineWriter(&buf, h)
		if err != nil {
			return nil, fmt.Errorf("failed to create message: %w", err)
		}
		if _, err := io.WriteString(w, msg.Body); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	html, err := RenderHTMLBody(msg.Body)
	if err != nil {
		return nil, err
	}

	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	alt, err := mw.CreateInline()
	if err != nil {
		return nil, err
	}
	for _, part := range []struct {
		contentType string
		content     string
	}{
		{"text/plain", msg.Body},
		{"text/html", html},
	} {
		var ph mail.InlineHeader
		ph.SetContentType(part.contentType, map[string]string{"charset": "utf-8"})
		w, err := alt.CreatePart(ph)
		if err != nil {
			return nil, err
		}
		if _, err := io.WriteString(w, part.content); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	}
	if err := alt.Close(); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// ResendMailSender delivers through the Resend HTTP API
type ResendMailSender struct {
	client *resend.Client
	cfg    config.EmailConfig
}

func NewResendMailSender(cfg config.EmailConfig) *ResendMailSender {
	return &ResendMailSender{
		client: resend.NewClient(cfg.ResendAPIKey),
		cfg:    cfg,
	}
}

func (s *ResendMailSender) Send(ctx context.Context, msg MailMessage) error {
	from := s.cfg.FromEmail
	if s.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.cfg.FromName, s.cfg.FromEmail)
	}

	params := &resend.SendEmailRequest{
		From:    from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Text:    msg.Body,
	}
	if s.cfg.ReplyTo != "" {
		params.ReplyTo = s.cfg.ReplyTo
	}
	if s.cfg.RenderHTML {
		html, err := RenderHTMLBody(msg.Body)
		if err != nil {
			return err
		}
		params.Html = html
	}

	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("resend send failed: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"message_id": sent.Id,
		"to":         msg.To,
	}).Debug("resend accepted message")
	return nil
}

// ErrMockDeliveryFailed is returned by MockMailSender for addresses marked to fail
var ErrMockDeliveryFailed = errors.New("mock delivery failed")

// MockMailSender records messages instead of delivering them
type MockMailSender struct {
	mu     sync.Mutex
	sent   []MailMessage
	failOn map[string]bool
}

func NewMockMailSender() *MockMailSender {
	return &MockMailSender{failOn: make(map[string]bool)}
}

// FailFor makes every send to the address fail
func (m *MockMailSender) FailFor(address string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOn[strings.ToLower(address)] = true
}

func (m *MockMailSender) Send(ctx context.Context, msg MailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failOn[strings.ToLower(msg.To)] {
		return fmt.Errorf("%w: %s", ErrMockDeliveryFailed, msg.To)
	}
	m.sent = append(m.sent, msg)

	logrus.WithFields(logrus.Fields{
		"to":      msg.To,
		"subject": msg.Subject,
	}).Info("mock email sent")
	return nil
}

// Sent returns a copy of the recorded messages
func (m *MockMailSender) Sent() []MailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MailMessage, len(m.sent))
	copy(out, m.sent)
	return out
}
