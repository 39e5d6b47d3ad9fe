package notifsvc

import (
	"context"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
)

const emailTemplate = "notification"

type emailSender struct {
	mailSvc core.EmailService
}

// NewEmailSender mails each notification to its recipient. Recipients without an email are skipped.
func NewEmailSender(mailSvc core.EmailService) Sender {
	return &emailSender{mailSvc: mailSvc}
}

func (s *emailSender) Send(_ context.Context, notif core.Notification) error {
	if notif.RecipientEmail == "" {
		return nil
	}
	s.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: notif.RecipientName, Address: notif.RecipientEmail}},
		Subject:      notif.Title,
		TemplateName: emailTemplate,
		TemplateData: map[string]string{
			"Name":  notif.RecipientName,
			"Title": notif.Title,
			"Body":  notif.Body,
		},
	})
	return nil
}

type storeSender struct {
	repo core.NotificationRepository
}

// NewStoreSender persists each notification so recipients can list them later.
func NewStoreSender(repo core.NotificationRepository) Sender {
	return &storeSender{repo: repo}
}

func (s *storeSender) Send(ctx context.Context, notif core.Notification) error {
	return errors.Wrap(s.repo.CreateNotifications(ctx, notif), "storing notification")
}
