package notify_test

import (
	"context"
	"strings"
	"testing"

	"github.com/nyxmentor/portal/core"
	"github.com/nyxmentor/portal/core/user"
	emailsvc "github.com/nyxmentor/portal/services/email"
	"github.com/nyxmentor/portal/services/notify"
	testutil "github.com/nyxmentor/portal/tests"
)

func TestNotifyApproval(t *testing.T) {
	conf := testutil.NewConfig()
	logger := new(testutil.Logger)
	core.ParseEmailTemplates(conf, logger)
	emailsvc.ResetSentMessages()

	n := notify.NewApprovalNotifier(emailsvc.NewConsoleServiceMock(conf, logger), conf)
	usr := user.User{ID: "u1", Name: "Ada Lovelace", Email: "ada.cap@adviser.com", Role: core.RoleAdvisor}
	if err := n.NotifyApproval(context.Background(), usr, 80); err != nil {
		t.Fatalf("NotifyApproval(): %v", err)
	}

	sent := emailsvc.SentMessages()
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sent))
	}
	msg := sent[0]
	if len(msg.To) != 1 || msg.To[0].Address != conf.ApprovalNotifyEmail.Address {
		t.Errorf("To = %v, want %v", msg.To, conf.ApprovalNotifyEmail)
	}
	for _, want := range []string{"Ada Lovelace", "ada.cap@adviser.com", "score of 80"} {
		if !strings.Contains(msg.TextContent, want) {
			t.Errorf("text content misses %q:\n%s", want, msg.TextContent)
		}
	}
	if !strings.Contains(msg.HTMLContent, "<strong>80</strong>") {
		t.Errorf("html content misses the score:\n%s", msg.HTMLContent)
	}
	if n := logger.Count("error"); n != 0 {
		t.Errorf("errors logged = %d, want 0", n)
	}
}

func TestNotifyApprovalWithoutRecipient(t *testing.T) {
	conf := testutil.NewConfig()
	conf.ApprovalNotifyEmail.Address = ""
	logger := new(testutil.Logger)

	n := notify.NewApprovalNotifier(emailsvc.NewConsoleServiceMock(conf, logger), conf)
	if err := n.NotifyApproval(context.Background(), user.User{Name: "Ada"}, 100); err == nil {
		t.Error("NotifyApproval() succeeded without a recipient")
	}
}
