package report

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ahrav/go-covenant/internal/ports"
)

// Notifier defaults.
const (
	DefaultSMTPPort   = 587
	DefaultSenderName = "Compliance Bot"
	DefaultRecipient  = "compliance@example.com"
	DefaultFrom       = "no-reply@example.com"
)

// SMTPConfig describes the outbound mail relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// To is used when an alert names no recipient.
	To string
}

// SendFunc delivers a fully formed message. smtp.SendMail is the default;
// it upgrades to STARTTLS when the server offers it.
type SendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

var _ ports.AlertNotifier = (*SMTPNotifier)(nil)

// SMTPNotifier sends compliance alerts as HTML mail with file attachments.
type SMTPNotifier struct {
	cfg    SMTPConfig
	send   SendFunc
	logger *slog.Logger
}

// NotifierOption configures an SMTPNotifier.
type NotifierOption func(*SMTPNotifier)

// WithSendFunc replaces the transport.
func WithSendFunc(fn SendFunc) NotifierOption {
	return func(n *SMTPNotifier) {
		if fn != nil {
			n.send = fn
		}
	}
}

// WithNotifierLogger sets the logger.
func WithNotifierLogger(l *slog.Logger) NotifierOption {
	return func(n *SMTPNotifier) {
		if l != nil {
			n.logger = l
		}
	}
}

// NewSMTPNotifier returns a notifier for cfg.
func NewSMTPNotifier(cfg SMTPConfig, opts ...NotifierOption) (*SMTPNotifier, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("smtp host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultSMTPPort
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.From == "" {
		cfg.From = DefaultFrom
	}
	if cfg.To == "" {
		cfg.To = DefaultRecipient
	}

	n := &SMTPNotifier{
		cfg:    cfg,
		send:   smtp.SendMail,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Send renders and delivers alert. Attachments that cannot be read are
// logged and left out.
func (n *SMTPNotifier) Send(ctx context.Context, alert ports.Alert) error {
	to := alert.Recipient
	if to == "" {
		to = n.cfg.To
	}
	if err := ctx.Err(); err != nil {
		return ports.NewNotifyError(to, "send", err)
	}

	body, err := RenderAlertHTML(alert)
	if err != nil {
		return ports.NewNotifyError(to, "render", err)
	}

	msg, err := n.compose(ctx, to, alert.Subject, body, alert.Attachments)
	if err != nil {
		return ports.NewNotifyError(to, "compose", err)
	}

	var auth smtp.Auth
	if n.cfg.Username != "" && n.cfg.Password != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}
	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))
	if err := n.send(addr, auth, n.cfg.From, []string{to}, msg); err != nil {
		return ports.NewNotifyError(to, "send", err)
	}

	n.logger.InfoContext(ctx, "alert sent", "recipient", to, "subject", alert.Subject)
	return nil
}

func (n *SMTPNotifier) compose(ctx context.Context, to, subject, html string, attachments []string) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	from := mail.Address{Name: DefaultSenderName, Address: n.cfg.From}
	fmt.Fprintf(&buf, "From: %s\r\n", from.String())
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", mw.Boundary())

	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/html; charset=utf-8"},
		"Content-Transfer-Encoding": {"quoted-printable"},
	})
	if err != nil {
		return nil, err
	}
	qp := quotedprintable.NewWriter(part)
	if _, err := qp.Write([]byte(html)); err != nil {
		return nil, err
	}
	if err := qp.Close(); err != nil {
		return nil, err
	}

	for _, path := range attachments {
		data, err := os.ReadFile(path)
		if err != nil {
			n.logger.WarnContext(ctx, "failed to attach file", "path", path, "error", err)
			continue
		}
		if err := attach(mw, filepath.Base(path), data); err != nil {
			return nil, err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func attach(mw *multipart.Writer, name string, data []byte) error {
	ctype, params, err := mime.ParseMediaType(mime.TypeByExtension(filepath.Ext(name)))
	if err != nil {
		ctype, params = "application/octet-stream", map[string]string{}
	}
	params["name"] = name

	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {mime.FormatMediaType(ctype, params)},
		"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": name})},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return err
	}

	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 76 {
		if _, err := io.WriteString(part, encoded[:76]+"\r\n"); err != nil {
			return err
		}
		encoded = encoded[76:]
	}
	_, err = io.WriteString(part, encoded+"\r\n")
	return err
}
