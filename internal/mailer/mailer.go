// Package mailer delivers the registration workflow emails over SMTP and
// records every attempt in the email log.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"

	"github.com/confera/backend/config"
	"github.com/confera/backend/internal/models"
	"github.com/confera/backend/internal/registrations"
)

// confirmationItemView is one session block of the confirmation email. The
// QR data URL must bypass the URL sanitizer to survive into the img tag.
type confirmationItemView struct {
	Title  string
	Starts string
	Room   string
	QR     template.URL
}

// LogStore records outbound email attempts.
type LogStore interface {
	Record(ctx context.Context, log *models.EmailLog) error
}

// Mailer sends workflow emails. Every send is best-effort: the boolean
// result feeds retry decisions upstream, transport errors never propagate.
type Mailer struct {
	from    string
	baseURL string
	logs    LogStore
	send    func(msg *gomail.Message) error
	logger  *zap.Logger
}

// New creates an SMTP mailer.
func New(cfg config.EmailConfig, baseURL string, logs LogStore, logger *zap.Logger) *Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	dialer := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass)
	return &Mailer{
		from:    fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromAddress),
		baseURL: baseURL,
		logs:    logs,
		send:    func(msg *gomail.Message) error { return dialer.DialAndSend(msg) },
		logger:  logger,
	}
}

// WithSendFunc overrides the SMTP transport. Used by tests.
func (m *Mailer) WithSendFunc(send func(msg *gomail.Message) error) *Mailer {
	m.send = send
	return m
}

// SendVerification mails the confirmation link shared by a registration batch.
func (m *Mailer) SendVerification(ctx context.Context, conf *models.Conference, email, fullName, token string, expires time.Time) bool {
	subject := fmt.Sprintf("Confirm your registration for %s", conf.Name)
	body, err := render(verificationTemplate, map[string]any{
		"FullName":   fullName,
		"Conference": conf.Name,
		"ConfirmURL": m.confirmURL(token),
		"Expires":    expires.UTC().Format("Jan 2 2006 15:04 MST"),
	})
	if err != nil {
		m.logger.Error("render verification email failed", zap.Error(err))
		return false
	}
	return m.deliver(ctx, conf.Slug, nil, models.EmailTypeVerification, email, subject, body, nil)
}

// SendConfirmation mails the consolidated confirmation: every session held by
// this address in the conference, each with its QR code.
func (m *Mailer) SendConfirmation(ctx context.Context, conf *models.Conference, email, fullName string, items []registrations.ConfirmedItem) bool {
	subject := fmt.Sprintf("You are registered for %s", conf.Name)
	views := make([]confirmationItemView, 0, len(items))
	for _, it := range items {
		views = append(views, confirmationItemView{
			Title:  it.Session.Title,
			Starts: it.Session.StartTime.UTC().Format("Jan 2 2006 15:04 MST"),
			Room:   it.Session.Room,
			QR:     template.URL(it.Registration.QRCode),
		})
	}
	body, err := render(confirmationTemplate, map[string]any{
		"FullName":   fullName,
		"Conference": conf.Name,
		"Items":      views,
	})
	if err != nil {
		m.logger.Error("render confirmation email failed", zap.Error(err))
		return false
	}
	return m.deliver(ctx, conf.Slug, nil, models.EmailTypeConfirmation, email, subject, body, nil)
}

// SendConfirmationReminder nudges a pending registrant with the same token.
func (m *Mailer) SendConfirmationReminder(ctx context.Context, conf *models.Conference, reg *models.Registration) bool {
	if reg.ConfirmationToken == nil {
		return false
	}
	subject := fmt.Sprintf("Reminder: confirm your registration for %s", conf.Name)
	data := map[string]any{
		"FullName":   reg.FullName,
		"Conference": conf.Name,
		"ConfirmURL": m.confirmURL(*reg.ConfirmationToken),
	}
	if reg.ConfirmationTokenExpires != nil {
		data["Expires"] = reg.ConfirmationTokenExpires.UTC().Format("Jan 2 2006 15:04 MST")
	}
	body, err := render(confirmationReminderTemplate, data)
	if err != nil {
		m.logger.Error("render confirmation reminder failed", zap.Error(err))
		return false
	}
	return m.deliver(ctx, conf.Slug, &reg.ID, models.EmailTypeConfirmationReminder, reg.Email, subject, body, nil)
}

// SendSessionReminder mails an upcoming-session reminder for one milestone
// (models.EmailTypeSessionReminder24h or ...1h).
func (m *Mailer) SendSessionReminder(ctx context.Context, conf *models.Conference, reg *models.Registration, sess *models.Session, emailType string) bool {
	lead := "tomorrow"
	if emailType == models.EmailTypeSessionReminder1h {
		lead = "in one hour"
	}
	subject := fmt.Sprintf("Starting %s: %s", lead, sess.Title)
	body, err := render(sessionReminderTemplate, map[string]any{
		"FullName":   reg.FullName,
		"Conference": conf.Name,
		"Session":    sess,
		"Lead":       lead,
		"Starts":     sess.StartTime.UTC().Format("Jan 2 2006 15:04 MST"),
		"QRCode":     template.URL(reg.QRCode),
	})
	if err != nil {
		m.logger.Error("render session reminder failed", zap.Error(err))
		return false
	}
	return m.deliver(ctx, conf.Slug, &reg.ID, emailType, reg.Email, subject, body, nil)
}

// SendCertificate mails the CME attendance certificate PDF.
func (m *Mailer) SendCertificate(ctx context.Context, conf *models.Conference, email, fullName string, pdf []byte) bool {
	subject := fmt.Sprintf("Your attendance certificate for %s", conf.Name)
	body, err := render(certificateTemplate, map[string]any{
		"FullName":   fullName,
		"Conference": conf.Name,
	})
	if err != nil {
		m.logger.Error("render certificate email failed", zap.Error(err))
		return false
	}
	attach := func(msg *gomail.Message) {
		msg.Attach("certificate.pdf", gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(pdf)
			return err
		}))
	}
	return m.deliver(ctx, conf.Slug, nil, models.EmailTypeCertificate, email, subject, body, attach)
}

func (m *Mailer) confirmURL(token string) string {
	return m.baseURL + "/api/v1/registrations/confirm/" + token
}

// deliver sends one message and records the attempt. Only transport
// failures mark the log row failed.
func (m *Mailer) deliver(ctx context.Context, slug string, regID *uuid.UUID, emailType, to, subject, body string, attach func(*gomail.Message)) bool {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)
	if attach != nil {
		attach(msg)
	}

	sendErr := m.send(msg)

	logRow := &models.EmailLog{
		ConferenceSlug: slug,
		RegistrationID: regID,
		EmailType:      emailType,
		RecipientEmail: to,
		Subject:        subject,
		Status:         models.EmailLogStatusSent,
	}
	if sendErr != nil {
		logRow.Status = models.EmailLogStatusFailed
		logRow.ErrorMessage = sendErr.Error()
		m.logger.Warn("email send failed",
			zap.String("type", emailType), zap.String("to", to), zap.Error(sendErr))
	}
	if err := m.logs.Record(ctx, logRow); err != nil {
		m.logger.Error("email log write failed", zap.String("type", emailType), zap.Error(err))
	}
	return sendErr == nil
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
