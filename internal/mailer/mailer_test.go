package mailer

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomail "gopkg.in/gomail.v2"

	"github.com/confera/backend/config"
	"github.com/confera/backend/internal/models"
	"github.com/confera/backend/internal/registrations"
)

type fakeLogStore struct {
	rows []models.EmailLog
}

func (f *fakeLogStore) Record(_ context.Context, log *models.EmailLog) error {
	f.rows = append(f.rows, *log)
	return nil
}

type capture struct {
	msgs []*gomail.Message
	err  error
}

func (c *capture) send(msg *gomail.Message) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, msg)
	return nil
}

func newTestMailer(logs *fakeLogStore, cap *capture) *Mailer {
	cfg := config.EmailConfig{FromAddress: "noreply@confera.io", FromName: "Confera"}
	return New(cfg, "https://conf.example.com", logs, nil).WithSendFunc(cap.send)
}

func testConf() *models.Conference {
	return &models.Conference{Slug: "medcon-2026", Name: "MedCon 2026"}
}

func messageBody(t *testing.T, msg *gomail.Message) string {
	t.Helper()
	var buf bytes.Buffer
	_, err := msg.WriteTo(&buf)
	require.NoError(t, err)
	// Undo quoted-printable soft line breaks so substrings match.
	s := strings.ReplaceAll(buf.String(), "=\r\n", "")
	return strings.ReplaceAll(s, "=\n", "")
}

func TestNewWiresSMTPTransport(t *testing.T) {
	cfg := config.EmailConfig{
		SMTPHost:    "smtp.example.com",
		SMTPPort:    587,
		FromAddress: "noreply@confera.io",
		FromName:    "Confera",
	}
	m := New(cfg, "https://conf.example.com", &fakeLogStore{}, nil)
	require.NotNil(t, m.send, "default transport must deliver through the dialer")
	assert.Equal(t, "Confera <noreply@confera.io>", m.from)
}

func TestSendVerification(t *testing.T) {
	logs := &fakeLogStore{}
	cap := &capture{}
	m := newTestMailer(logs, cap)

	ok := m.SendVerification(context.Background(), testConf(), "dana@example.com", "Dana Osei",
		"abc123", time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
	require.True(t, ok)
	require.Len(t, cap.msgs, 1)

	body := messageBody(t, cap.msgs[0])
	assert.Contains(t, body, "/api/v1/registrations/confirm/abc123")

	require.Len(t, logs.rows, 1)
	assert.Equal(t, models.EmailTypeVerification, logs.rows[0].EmailType)
	assert.Equal(t, models.EmailLogStatusSent, logs.rows[0].Status)
	assert.Equal(t, "dana@example.com", logs.rows[0].RecipientEmail)
}

func TestSendFailureIsLogged(t *testing.T) {
	logs := &fakeLogStore{}
	cap := &capture{err: errors.New("smtp: connection refused")}
	m := newTestMailer(logs, cap)

	ok := m.SendVerification(context.Background(), testConf(), "dana@example.com", "Dana Osei",
		"abc123", time.Now())
	assert.False(t, ok)

	require.Len(t, logs.rows, 1)
	assert.Equal(t, models.EmailLogStatusFailed, logs.rows[0].Status)
	assert.Contains(t, logs.rows[0].ErrorMessage, "connection refused")
}

func TestSendConfirmationIncludesQRCodes(t *testing.T) {
	logs := &fakeLogStore{}
	cap := &capture{}
	m := newTestMailer(logs, cap)

	items := []registrations.ConfirmedItem{
		{
			Registration: models.Registration{QRCode: "data:image/png;base64,AAA="},
			Session:      models.Session{Title: "Opening", Room: "Hall A", StartTime: time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)},
		},
		{
			Registration: models.Registration{QRCode: "data:image/png;base64,BBB="},
			Session:      models.Session{Title: "Cardiology", StartTime: time.Date(2026, 6, 10, 10, 30, 0, 0, time.UTC)},
		},
	}
	ok := m.SendConfirmation(context.Background(), testConf(), "dana@example.com", "Dana Osei", items)
	require.True(t, ok)

	body := messageBody(t, cap.msgs[0])
	// The data URLs must survive template sanitization into the img tags.
	assert.Contains(t, body, "Opening")
	assert.Contains(t, body, "Cardiology")
	assert.NotContains(t, body, "ZgotmplZ")
}

func TestSendCertificateAttachesPDF(t *testing.T) {
	logs := &fakeLogStore{}
	cap := &capture{}
	m := newTestMailer(logs, cap)

	ok := m.SendCertificate(context.Background(), testConf(), "dana@example.com", "Dana Osei", []byte("%PDF-1.4 fake"))
	require.True(t, ok)

	body := messageBody(t, cap.msgs[0])
	assert.True(t, strings.Contains(body, "certificate.pdf"))
	assert.Equal(t, models.EmailTypeCertificate, logs.rows[0].EmailType)
}

func TestSessionReminderSubjects(t *testing.T) {
	logs := &fakeLogStore{}
	cap := &capture{}
	m := newTestMailer(logs, cap)

	reg := &models.Registration{FullName: "Dana Osei", Email: "dana@example.com", QRCode: "data:image/png;base64,AAA="}
	sess := &models.Session{Title: "Opening", StartTime: time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)}

	require.True(t, m.SendSessionReminder(context.Background(), testConf(), reg, sess, models.EmailTypeSessionReminder24h))
	require.True(t, m.SendSessionReminder(context.Background(), testConf(), reg, sess, models.EmailTypeSessionReminder1h))

	assert.Contains(t, cap.msgs[0].GetHeader("Subject")[0], "tomorrow")
	assert.Contains(t, cap.msgs[1].GetHeader("Subject")[0], "one hour")
	assert.Equal(t, models.EmailTypeSessionReminder24h, logs.rows[0].EmailType)
	assert.Equal(t, models.EmailTypeSessionReminder1h, logs.rows[1].EmailType)
}
