package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/drip-mailer/config"
	"github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMailSender(t *testing.T) {
	tests := []struct {
		provider string
		want     any
		wantErr  bool
	}{
		{provider: "smtp", want: &SMTPMailSender{}},
		{provider: "resend", want: &ResendMailSender{}},
		{provider: "mock", want: &MockMailSender{}},
		{provider: "", want: &MockMailSender{}},
		{provider: "sendgrid", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			sender, err := NewMailSender(config.EmailConfig{Provider: tt.provider, ResendAPIKey: "re_test"})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, sender)
		})
	}
}

func TestMockMailSender(t *testing.T) {
	m := NewMockMailSender()
	m.FailFor("Bounce@Example.com")

	require.NoError(t, m.Send(context.Background(), MailMessage{To: "ann@example.com", Subject: "Hi"}))
	err := m.Send(context.Background(), MailMessage{To: "bounce@example.com"})
	assert.ErrorIs(t, err, ErrMockDeliveryFailed)

	sent := m.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "ann@example.com", sent[0].To)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Send(ctx, MailMessage{To: "ann@example.com"}), context.Canceled)
}

func TestRenderHTMLBody(t *testing.T) {
	html, err := RenderHTMLBody("Hello **Ann**\nsee you soon")
	require.NoError(t, err)
	assert.Contains(t, html, "<strong>Ann</strong>")
	assert.Contains(t, html, "<br")

	html, err = RenderHTMLBody("<script>alert(1)</script>")
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>")
}

func TestSMTPCompose(t *testing.T) {
	msg := MailMessage{To: "ann@example.com", Subject: "Hi Ann", Body: "Hello **Ann**"}

	t.Run("plain", func(t *testing.T) {
		s := NewSMTPMailSender(config.EmailConfig{FromEmail: "team@example.com", FromName: "Team"})
		raw, err := s.compose(msg)
		require.NoError(t, err)
		body := string(raw)
		assert.Contains(t, body, "Subject: Hi Ann")
		assert.Contains(t, body, "To: <ann@example.com>")
		assert.Contains(t, body, "text/plain")
		assert.NotContains(t, body, "text/html")
		assert.NotContains(t, body, "Reply-To")
	})

	t.Run("with html alternative", func(t *testing.T) {
		s := NewSMTPMailSender(config.EmailConfig{FromEmail: "team@example.com", ReplyTo: "replies@example.com", RenderHTML: true})
		raw, err := s.compose(msg)
		require.NoError(t, err)
		body := string(raw)
		assert.Contains(t, body, "multipart/alternative")
		assert.Contains(t, body, "text/plain")
		assert.Contains(t, body, "text/html")
		assert.Contains(t, body, "<strong>Ann</strong>")
		assert.Contains(t, body, "Reply-To: <replies@example.com>")
	})
}

// smtpBackend records every message accepted by the test server
type smtpBackend struct {
	mu       sync.Mutex
	messages []receivedMail
}

type receivedMail struct {
	from string
	to   []string
	data string
}

func (b *smtpBackend) NewSession(*smtp.Conn) (smtp.Session, error) {
	return &smtpSession{backend: b}, nil
}

type smtpSession struct {
	backend *smtpBackend
	current receivedMail
}

func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.current.from = from
	return nil
}

func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	if to == "reject@example.com" {
		return &smtp.SMTPError{Code: 550, EnhancedCode: smtp.EnhancedCode{5, 1, 1}, Message: "no such user"}
	}
	s.current.to = append(s.current.to, to)
	return nil
}

func (s *smtpSession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.current.data = string(data)
	s.backend.mu.Lock()
	s.backend.messages = append(s.backend.messages, s.current)
	s.backend.mu.Unlock()
	return nil
}

func (s *smtpSession) Reset()        { s.current = receivedMail{} }
func (s *smtpSession) Logout() error { return nil }

func startSMTPServer(t *testing.T) (*smtpBackend, string, int) {
	t.Helper()
	backend := &smtpBackend{}
	srv := smtp.NewServer(backend)
	srv.Domain = "localhost"
	srv.ReadTimeout = 5 * time.Second
	srv.WriteTimeout = 5 * time.Second

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(l) }()
	t.Cleanup(func() { _ = srv.Close() })

	host, port, err := net.SplitHostPort(l.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return backend, host, p
}

func TestSMTPMailSenderSend(t *testing.T) {
	backend, host, port := startSMTPServer(t)
	s := NewSMTPMailSender(config.EmailConfig{
		Host:      host,
		Port:      port,
		FromEmail: "team@example.com",
		Timeout:   5 * time.Second,
	})

	err := s.Send(context.Background(), MailMessage{To: "ann@example.com", Subject: "Hi Ann", Body: "Hello"})
	require.NoError(t, err)

	backend.mu.Lock()
	require.Len(t, backend.messages, 1)
	got := backend.messages[0]
	backend.mu.Unlock()
	assert.Equal(t, "team@example.com", got.from)
	assert.Equal(t, []string{"ann@example.com"}, got.to)
	assert.Contains(t, got.data, "Subject: Hi Ann")

	err = s.Send(context.Background(), MailMessage{To: "reject@example.com", Subject: "x", Body: "y"})
	require.Error(t, err)
	var smtpErr *smtp.SMTPError
	assert.True(t, errors.As(err, &smtpErr))
}

// startSilentServer accepts connections and never sends the SMTP greeting
func startSilentServer(t *testing.T) (string, int) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var mu sync.Mutex
	var conns []net.Conn
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = l.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})

	host, port, err := net.SplitHostPort(l.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return host, p
}

func TestSMTPMailSenderTimeout(t *testing.T) {
	host, port := startSilentServer(t)
	msg := MailMessage{To: "ann@example.com", Subject: "Hi", Body: "Hello"}

	t.Run("own timeout bounds a relay that never greets", func(t *testing.T) {
		for _, cfg := range []config.EmailConfig{
			{Host: host, Port: port, FromEmail: "team@example.com", Timeout: 200 * time.Millisecond},
			{Host: host, Port: port, FromEmail: "team@example.com", Timeout: 200 * time.Millisecond, UseSTARTTLS: true},
		} {
			start := time.Now()
			err := NewSMTPMailSender(cfg).Send(context.Background(), msg)
			require.Error(t, err)
			assert.Less(t, time.Since(start), 3*time.Second)
		}
	})

	t.Run("caller deadline bounds it too", func(t *testing.T) {
		s := NewSMTPMailSender(config.EmailConfig{Host: host, Port: port, FromEmail: "team@example.com"})
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		start := time.Now()
		err := s.Send(ctx, msg)
		require.Error(t, err)
		assert.Less(t, time.Since(start), 3*time.Second)
	})
}

func TestResendMailSenderSend(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1"}`))
	}))
	defer srv.Close()

	s := NewResendMailSender(config.EmailConfig{
		ResendAPIKey: "re_test",
		FromEmail:    "team@example.com",
		FromName:     "Team",
		RenderHTML:   true,
	})
	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	s.client.BaseURL = base

	require.NoError(t, s.Send(context.Background(), MailMessage{To: "ann@example.com", Subject: "Hi", Body: "Hello **Ann**"}))
	assert.Equal(t, "Team <team@example.com>", got["from"])
	assert.Equal(t, "Hi", got["subject"])
	assert.Equal(t, "Hello **Ann**", got["text"])
	assert.Contains(t, got["html"], "<strong>Ann</strong>")
}
