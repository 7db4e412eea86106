// internal/services/notification_service.go
package services

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mediaseal/mediaseal-backend/internal/config"
)

// NotificationService dispatches out-of-band alerts. Every call site invokes
// it fire-and-forget: a delivery failure must never fail an upload or a
// background job.
type NotificationService struct {
	config *config.Config
	log    *logrus.Entry
}

func NewNotificationService(cfg *config.Config) *NotificationService {
	return &NotificationService{
		config: cfg,
		log:    logrus.WithField("component", "notifications"),
	}
}

const verifiedTemplate = `
<p>Asset {{.AssetID}} finished full verification.</p>
<p>Owner: {{.OwnerID}}</p>
<p>Master hash: <code>{{.MasterHash}}</code></p>
`

const duplicateTemplate = `
<p>Upload blocked: content matching asset {{.AssetID}} was re-submitted.</p>
<p>Submitter: {{.UploaderID}}</p>
<p>Matched layer: {{.Layer}} (confidence {{.Confidence}})</p>
`

// FullyVerified is called after the worker completes all tier-applicable
// layers. Satisfies the worker's notifier.
func (s *NotificationService) FullyVerified(assetID, ownerID uuid.UUID, masterHash string) error {
	return s.dispatch("Verification complete", verifiedTemplate, map[string]interface{}{
		"AssetID":    assetID,
		"OwnerID":    ownerID,
		"MasterHash": masterHash,
	})
}

// DuplicateAttempt alerts on a blocked non-owner re-upload.
func (s *NotificationService) DuplicateAttempt(uploaderID, matchedAssetID uuid.UUID, layer string, confidence float64) error {
	return s.dispatch("Duplicate upload blocked", duplicateTemplate, map[string]interface{}{
		"AssetID":    matchedAssetID,
		"UploaderID": uploaderID,
		"Layer":      layer,
		"Confidence": fmt.Sprintf("%.2f", confidence),
	})
}

func (s *NotificationService) dispatch(subject, tmpl string, data map[string]interface{}) error {
	body, err := s.renderTemplate(tmpl, data)
	if err != nil {
		return fmt.Errorf("failed to render notification template: %w", err)
	}

	if s.config.Email.SMTPUsername == "" || s.config.Email.AlertRecipient == "" {
		// No SMTP configured; log the event and move on.
		s.log.WithField("subject", subject).Info("Notification (no SMTP configured)")
		return nil
	}
	return s.sendEmail(s.config.Email.AlertRecipient, subject, body)
}

func (s *NotificationService) renderTemplate(tmpl string, data map[string]interface{}) (string, error) {
	t, err := template.New("notification").Parse(tmpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (s *NotificationService) sendEmail(to, subject, body string) error {
	cfg := s.config.Email
	addr := fmt.Sprintf("%s:%s", cfg.SMTPHost, cfg.SMTPPort)
	auth := smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost)

	msg := fmt.Sprintf("From: %s <%s>\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=utf-8\r\n\r\n%s",
		cfg.FromName, cfg.FromEmail, to, subject, body)

	if err := smtp.SendMail(addr, auth, cfg.FromEmail, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
