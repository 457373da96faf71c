package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/cloudevents/sdk-go/v2/event"

	"github.com/formcoach/server/pkg/bootstrap"
	"github.com/formcoach/server/pkg/integrations/twilio"
	"github.com/formcoach/server/pkg/testing/mocks"
	"github.com/formcoach/server/pkg/types"
)

func testService(pub *mocks.MockPublisher, authToken string) *bootstrap.Service {
	return &bootstrap.Service{
		DB:     &mocks.MockDatabase{},
		Pub:    pub,
		Config: &bootstrap.Config{TwilioAuthToken: authToken},
	}
}

func inboundForm() url.Values {
	form := url.Values{}
	form.Set("MessageSid", "SM1")
	form.Set("From", "whatsapp:+491")
	form.Set("To", "whatsapp:+141")
	form.Set("ProfileName", "Anna")
	form.Set("Body", "hello")
	return form
}

func postForm(t *testing.T, router http.Handler, form url.Values, sign func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "https://fn.example/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if sign != nil {
		sign(req)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestWebhookPublishesInboundMessage(t *testing.T) {
	var published event.Event
	var topic string
	pub := &mocks.MockPublisher{
		PublishCloudEventFunc: func(ctx context.Context, top string, e event.Event) (string, error) {
			topic = top
			published = e
			return "msg-1", nil
		},
	}
	router := NewRouter(testService(pub, ""))

	rec := postForm(t, router, inboundForm(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "<Response></Response>") {
		t.Errorf("Expected empty TwiML, got %s", rec.Body.String())
	}
	if topic != "topic-inbound-messages" {
		t.Errorf("Unexpected topic: %s", topic)
	}
	if published.Type() != "com.formcoach.message.received" {
		t.Errorf("Unexpected event type: %s", published.Type())
	}

	var msg types.InboundMessage
	if err := json.Unmarshal(published.Data(), &msg); err != nil {
		t.Fatalf("Event payload: %v", err)
	}
	if msg.MessageSid != "SM1" || msg.From != "whatsapp:+491" || msg.Body != "hello" {
		t.Errorf("Unexpected payload: %+v", msg)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	publishes := 0
	pub := &mocks.MockPublisher{
		PublishCloudEventFunc: func(ctx context.Context, topic string, e event.Event) (string, error) {
			publishes++
			return "", nil
		},
	}
	router := NewRouter(testService(pub, "auth-token"))

	rec := postForm(t, router, inboundForm(), func(r *http.Request) {
		r.Header.Set("X-Twilio-Signature", "bogus")
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", rec.Code)
	}
	if publishes != 0 {
		t.Error("A rejected request must not publish")
	}
}

func TestWebhookAcceptsValidSignature(t *testing.T) {
	pub := &mocks.MockPublisher{}
	router := NewRouter(testService(pub, "auth-token"))
	form := inboundForm()

	rec := postForm(t, router, form, func(r *http.Request) {
		sig := twilio.ComputeSignature("auth-token", "https://fn.example/whatsapp", form)
		r.Header.Set("X-Twilio-Signature", sig)
	})
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestWebhookRejectsMissingFields(t *testing.T) {
	router := NewRouter(testService(&mocks.MockPublisher{}, ""))
	form := inboundForm()
	form.Del("MessageSid")

	rec := postForm(t, router, form, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestWebhookPublishFailureIs500(t *testing.T) {
	pub := &mocks.MockPublisher{
		PublishCloudEventFunc: func(ctx context.Context, topic string, e event.Event) (string, error) {
			return "", context.DeadlineExceeded
		},
	}
	router := NewRouter(testService(pub, ""))

	rec := postForm(t, router, inboundForm(), nil)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500 so Twilio retries, got %d", rec.Code)
	}
}
