package report

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/smtp"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-covenant/internal/ports"
)

type capturedMail struct {
	addr string
	auth smtp.Auth
	from string
	to   []string
	msg  []byte
}

func capture(out *capturedMail, err error) SendFunc {
	return func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		*out = capturedMail{addr: addr, auth: a, from: from, to: to, msg: msg}
		return err
	}
}

type mailPart struct {
	contentType string
	filename    string
	body        string
}

func readParts(t *testing.T, raw []byte) (*mail.Message, []mailPart) {
	t.Helper()
	msg, err := mail.ReadMessage(strings.NewReader(string(raw)))
	require.NoError(t, err)

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "multipart/mixed", mediaType)

	var parts []mailPart
	mr := multipart.NewReader(msg.Body, params["boundary"])
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		body, err := io.ReadAll(p)
		require.NoError(t, err)
		parts = append(parts, mailPart{
			contentType: p.Header.Get("Content-Type"),
			filename:    p.FileName(),
			body:        string(body),
		})
	}
	return msg, parts
}

func TestSMTPNotifier_Send(t *testing.T) {
	// Given a readable attachment and one that does not exist
	dir := t.TempDir()
	digest := filepath.Join(dir, "ai_modified_clauses.txt")
	require.NoError(t, os.WriteFile(digest, []byte(strings.Repeat("rewritten clause ", 20)), 0o600))

	var got capturedMail
	n, err := NewSMTPNotifier(SMTPConfig{
		Host:     "smtp.example.com",
		Username: "bot@example.com",
		Password: "app-password",
	}, WithSendFunc(capture(&got, nil)))
	require.NoError(t, err)

	// When an alert is sent
	err = n.Send(context.Background(), ports.Alert{
		Subject:      "Compliance Alert: Acme MSA",
		Recipient:    "legal@example.com",
		ContractName: "Acme MSA",
		Total:        2,
		High:         1,
		Low:          1,
		Attachments:  []string{digest, filepath.Join(dir, "missing.pdf")},
	})

	// Then the message goes to the relay with auth and the readable file only
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com:587", got.addr)
	assert.NotNil(t, got.auth)
	assert.Equal(t, "bot@example.com", got.from)
	assert.Equal(t, []string{"legal@example.com"}, got.to)

	msg, parts := readParts(t, got.msg)
	assert.Equal(t, "Compliance Alert: Acme MSA", msg.Header.Get("Subject"))
	assert.Contains(t, msg.Header.Get("From"), "Compliance Bot")
	require.Len(t, parts, 2)
	assert.True(t, strings.HasPrefix(parts[0].contentType, "text/html"))
	assert.Contains(t, parts[0].body, "<strong>Acme MSA</strong>")
	assert.Equal(t, "ai_modified_clauses.txt", parts[1].filename)
}

func TestSMTPNotifier_Defaults(t *testing.T) {
	var got capturedMail
	n, err := NewSMTPNotifier(SMTPConfig{Host: "localhost", Port: 2525}, WithSendFunc(capture(&got, nil)))
	require.NoError(t, err)

	require.NoError(t, n.Send(context.Background(), ports.Alert{Subject: "s"}))

	assert.Equal(t, "localhost:2525", got.addr)
	assert.Nil(t, got.auth)
	assert.Equal(t, DefaultFrom, got.from)
	assert.Equal(t, []string{DefaultRecipient}, got.to)
}

func TestSMTPNotifier_Errors(t *testing.T) {
	_, err := NewSMTPNotifier(SMTPConfig{})
	assert.Error(t, err)

	t.Run("relay failure", func(t *testing.T) {
		var got capturedMail
		n, err := NewSMTPNotifier(SMTPConfig{Host: "localhost"}, WithSendFunc(capture(&got, errors.New("535 auth failed"))))
		require.NoError(t, err)

		err = n.Send(context.Background(), ports.Alert{Recipient: "legal@example.com"})

		var notifyErr *ports.NotifyError
		require.True(t, errors.As(err, &notifyErr))
		assert.Equal(t, "send", notifyErr.Stage)
		assert.Equal(t, "legal@example.com", notifyErr.Recipient)
	})

	t.Run("canceled context", func(t *testing.T) {
		called := false
		n, err := NewSMTPNotifier(SMTPConfig{Host: "localhost"}, WithSendFunc(func(string, smtp.Auth, string, []string, []byte) error {
			called = true
			return nil
		}))
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		assert.ErrorIs(t, n.Send(ctx, ports.Alert{}), context.Canceled)
		assert.False(t, called)
	})
}
