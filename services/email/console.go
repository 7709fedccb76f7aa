package emailsvc

import (
	"fmt"
	"log"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/nyxmentor/portal/core"
)

var (
	sent   = make([]core.EmailMessage, 0)
	sentMu sync.Mutex
)

// SentMessages returns a copy of the messages delivered by the console services.
func SentMessages() []core.EmailMessage {
	sentMu.Lock()
	defer sentMu.Unlock()
	return append([]core.EmailMessage(nil), sent...)
}

// ResetSentMessages empties the outbox, tests call it between cases.
func ResetSentMessages() {
	sentMu.Lock()
	sent = sent[:0]
	sentMu.Unlock()
}

type consoleService struct {
	from       mail.Address
	subjPrefix string
	logger     core.Logger
	out        *log.Logger // nil disables output
}

var _ core.EmailService = (*consoleService)(nil)

// NewConsoleService prints messages to stdout instead of sending them. Used in debug mode.
func NewConsoleService(conf *core.Config, logger core.Logger) core.EmailService {
	return &consoleService{
		from:       conf.DefaultFromEmail,
		subjPrefix: "[" + conf.AppName + "] ",
		logger:     logger,
		out:        log.New(log.Writer(), "MAIL : ", log.LstdFlags),
	}
}

func (svc *consoleService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		go svc.deliver(msg)
	}
}

func (svc *consoleService) deliver(msg *core.EmailMessage) {
	if err := msg.Render(); err != nil {
		svc.logger.Error(fmt.Sprintf("rendering email %q: %v", msg.TemplateName, err), err)
		return
	}
	if !msg.HasRecipients() || !msg.HasContent() {
		return
	}

	body, err := svc.format(*msg)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("formatting email: %v", err), err)
		return
	}
	if svc.out != nil {
		svc.out.Println(body)
	}

	sentMu.Lock()
	sent = append(sent, *msg)
	sentMu.Unlock()
}

// format writes msg as a MIME message.
func (svc *consoleService) format(msg core.EmailMessage) (string, error) {
	body := new(strings.Builder)
	header := func(key, val string) { _, _ = fmt.Fprintf(body, "%s: %s\r\n", key, val) }

	header("From", svc.from.String())
	header("MIME-Version", "1.0")
	header("Date", time.Now().Format(time.RFC1123Z))
	header("Subject", svc.subjPrefix+msg.Subject)
	header("To", joinAddresses(msg.To))
	if len(msg.Cc) > 0 {
		header("Cc", joinAddresses(msg.Cc))
	}
	if len(msg.Bcc) > 0 {
		header("Bcc", joinAddresses(msg.Bcc))
	}

	alt := multipart.NewWriter(body)
	header("Content-Type", "multipart/alternative; boundary="+alt.Boundary())
	body.WriteString("\r\n")

	parts := []struct{ ct, content string }{{"text/plain; charset=utf-8", msg.TextContent}}
	if msg.HTMLContent != "" {
		parts = append(parts, struct{ ct, content string }{"text/html; charset=utf-8", msg.HTMLContent})
	}
	for _, p := range parts {
		w, err := alt.CreatePart(textproto.MIMEHeader{"Content-Type": {p.ct}})
		if err != nil {
			return "", errors.Wrapf(err, "creating %s part", p.ct)
		}
		_, _ = fmt.Fprintf(w, "%s\r\n", p.content)
	}
	if err := alt.Close(); err != nil {
		return "", errors.Wrap(err, "closing multipart/alternative")
	}

	return body.String(), nil
}

func joinAddresses(addrs []mail.Address) string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.String())
	}
	return strings.Join(out, ", ")
}

type consoleServiceMock struct {
	*consoleService
}

// NewConsoleServiceMock records messages synchronously without printing them.
func NewConsoleServiceMock(conf *core.Config, logger core.Logger) core.EmailService {
	svc := NewConsoleService(conf, logger).(*consoleService)
	svc.out = nil
	return &consoleServiceMock{consoleService: svc}
}

func (svc *consoleServiceMock) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		svc.deliver(msg)
	}
}
