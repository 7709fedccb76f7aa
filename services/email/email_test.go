package emailsvc

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"strings"
	"testing"

	"github.com/nyxmentor/portal/core"
	testutil "github.com/nyxmentor/portal/tests"
)

func TestConsoleFormat(t *testing.T) {
	conf := testutil.NewConfig()
	svc := NewConsoleService(conf, new(testutil.Logger)).(*consoleService)

	msg := core.EmailMessage{
		To:          []mail.Address{{Name: "HR", Address: "rh@localhost"}},
		Cc:          []mail.Address{{Address: "boss@localhost"}},
		Subject:     "Report",
		TextContent: "plain body",
		HTMLContent: "<p>html body</p>",
	}

	body, err := svc.format(msg)
	if err != nil {
		t.Fatalf("format(): %v", err)
	}
	for _, want := range []string{
		"Subject: [" + conf.AppName + "] Report",
		`To: "HR" <rh@localhost>`,
		"Cc: <boss@localhost>",
		"Content-Type: multipart/alternative; boundary=",
		"plain body",
		"<p>html body</p>",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("formatted message misses %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, "Bcc:") {
		t.Error("formatted message has an empty Bcc header")
	}
}

func TestConsoleMockRecords(t *testing.T) {
	ResetSentMessages()
	svc := NewConsoleServiceMock(testutil.NewConfig(), new(testutil.Logger))

	svc.SendMessages(
		&core.EmailMessage{To: []mail.Address{{Address: "a@localhost"}}, BodyStr: "hello"},
		&core.EmailMessage{BodyStr: "no recipient"},
		&core.EmailMessage{To: []mail.Address{{Address: "b@localhost"}}},
	)
	sent := SentMessages()
	if len(sent) != 1 || sent[0].TextContent != "hello" {
		t.Errorf("SentMessages() = %+v, want the single deliverable message", sent)
	}
}

func TestSendgridSend(t *testing.T) {
	var got map[string]interface{}
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if r.URL.Path != sendgridEndpoint {
			t.Errorf("path = %s, want %s", r.URL.Path, sendgridEndpoint)
		}
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	conf := testutil.NewConfig()
	conf.SendgridApiKey = "SG.test"
	logger := new(testutil.Logger)
	svc := newSendgridService(conf, logger, srv.URL)

	svc.deliver(&core.EmailMessage{
		To:      []mail.Address{{Name: "HR", Address: "rh@localhost"}},
		Subject: "Approved",
		BodyStr: "someone passed",
	})

	if auth != "Bearer SG.test" {
		t.Errorf("Authorization = %q", auth)
	}
	pers, _ := got["personalizations"].([]interface{})
	if len(pers) != 1 {
		t.Fatalf("personalizations = %v", got["personalizations"])
	}
	if subj := pers[0].(map[string]interface{})["subject"]; subj != "["+conf.AppName+"] Approved" {
		t.Errorf("subject = %v", subj)
	}
	content, _ := got["content"].([]interface{})
	if len(content) != 1 {
		t.Errorf("content = %v, want only text/plain", got["content"])
	}
	if n := logger.Count("error"); n != 0 {
		t.Errorf("errors logged = %d, want 0", n)
	}
}

func TestSendgridErrorStatusIsLogged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer srv.Close()

	logger := new(testutil.Logger)
	svc := newSendgridService(testutil.NewConfig(), logger, srv.URL)
	svc.deliver(&core.EmailMessage{To: []mail.Address{{Address: "rh@localhost"}}, BodyStr: "x"})

	if n := logger.Count("error"); n != 1 {
		t.Errorf("errors logged = %d, want 1", n)
	}
}
