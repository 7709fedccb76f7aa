// Package notify tells HR about evaluation results.
package notify

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/nyxmentor/portal/core"
	"github.com/nyxmentor/portal/core/evaluation"
	"github.com/nyxmentor/portal/core/user"
)

const approvalTemplate = "evaluation_approved"

type approvalData struct {
	Name  string
	Email string
	Score float64
}

type approvalNotifier struct {
	mailSvc core.EmailService
	to      mail.Address
}

var _ evaluation.Notifier = (*approvalNotifier)(nil)

// NewApprovalNotifier mails every approval to conf.ApprovalNotifyEmail.
func NewApprovalNotifier(mailSvc core.EmailService, conf *core.Config) evaluation.Notifier {
	return &approvalNotifier{mailSvc: mailSvc, to: conf.ApprovalNotifyEmail}
}

func (n *approvalNotifier) NotifyApproval(_ context.Context, usr user.User, score float64) error {
	if n.to.Address == "" {
		return errors.New("no approval recipient configured")
	}
	msg := &core.EmailMessage{
		To:           []mail.Address{n.to},
		Subject:      fmt.Sprintf("%s passed the evaluation", usr.Name),
		TemplateName: approvalTemplate,
		TemplateData: approvalData{Name: usr.Name, Email: usr.Email, Score: score},
	}
	// surface template errors to the caller, the email service only logs them
	if err := msg.Render(); err != nil {
		return errors.Wrap(err, "rendering approval email")
	}
	if !msg.HasContent() {
		return errors.Errorf("email template %q not loaded", approvalTemplate)
	}
	n.mailSvc.SendMessages(msg)
	return nil
}
