package twilio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/formcoach/server/pkg/faults"
	httputil "github.com/formcoach/server/pkg/infrastructure/http"
)

func TestSendWhatsApp(t *testing.T) {
	var gotPath, gotTo, gotFrom, gotBody string
	var gotUser, gotPass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		if err := r.ParseForm(); err != nil {
			t.Fatalf("form parse: %v", err)
		}
		gotTo = r.PostFormValue("To")
		gotFrom = r.PostFormValue("From")
		gotBody = r.PostFormValue("Body")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM123"}`))
	}))
	defer srv.Close()

	c := NewClient("AC123", "secret", "whatsapp:+141")
	c.BaseURL = srv.URL

	if err := c.SendWhatsApp(context.Background(), "whatsapp:+491", "hello"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if gotPath != "/2010-04-01/Accounts/AC123/Messages.json" {
		t.Errorf("Unexpected path: %s", gotPath)
	}
	if gotUser != "AC123" || gotPass != "secret" {
		t.Error("Expected basic auth with account credentials")
	}
	if gotTo != "whatsapp:+491" || gotFrom != "whatsapp:+141" || gotBody != "hello" {
		t.Errorf("Unexpected form: to=%s from=%s body=%s", gotTo, gotFrom, gotBody)
	}
}

func TestSendWhatsAppErrorCarriesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"bad credentials"}`))
	}))
	defer srv.Close()

	c := NewClient("AC123", "wrong", "whatsapp:+141")
	c.BaseURL = srv.URL

	err := c.SendWhatsApp(context.Background(), "whatsapp:+491", "hello")
	if err == nil {
		t.Fatal("Expected an error")
	}
	if httputil.StatusOf(err) != http.StatusUnauthorized {
		t.Errorf("Expected status 401 in error, got %d", httputil.StatusOf(err))
	}
	if !strings.Contains(err.Error(), "bad credentials") {
		t.Errorf("Expected response body in error, got %v", err)
	}
	if !faults.IsTransient(err) {
		t.Errorf("Expected a transient collaborator failure, got %v", err)
	}
}

func TestFetchMedia(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, pass, _ := r.BasicAuth(); user != "AC123" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpeg-bytes"))
	}))
	defer srv.Close()

	c := NewClient("AC123", "secret", "whatsapp:+141")

	data, contentType, err := c.Fetch(context.Background(), srv.URL+"/media/1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(data) != "jpeg-bytes" {
		t.Errorf("Unexpected body: %q", data)
	}
	if contentType != "image/jpeg" {
		t.Errorf("Unexpected content type: %s", contentType)
	}
}

func TestValidateSignature(t *testing.T) {
	form := url.Values{}
	form.Set("From", "whatsapp:+491")
	form.Set("Body", "hello")
	form.Set("MessageSid", "SM1")

	requestURL := "https://example.test/whatsapp"
	sig := ComputeSignature("token", requestURL, form)

	if !ValidateSignature("token", requestURL, form, sig) {
		t.Error("Expected a valid signature to verify")
	}
	if ValidateSignature("other-token", requestURL, form, sig) {
		t.Error("A different auth token must not verify")
	}
	if ValidateSignature("token", requestURL+"?x=1", form, sig) {
		t.Error("A different URL must not verify")
	}

	tampered := url.Values{}
	for k := range form {
		tampered.Set(k, form.Get(k))
	}
	tampered.Set("Body", "tampered")
	if ValidateSignature("token", requestURL, tampered, sig) {
		t.Error("Tampered params must not verify")
	}
}

func TestParseInbound(t *testing.T) {
	form := url.Values{}
	form.Set("MessageSid", "SM1")
	form.Set("From", "whatsapp:+491")
	form.Set("To", "whatsapp:+141")
	form.Set("ProfileName", "Anna")
	form.Set("Body", "hi")
	form.Set("NumMedia", "1")
	form.Set("MediaUrl0", "https://api.twilio.com/media/1")
	form.Set("MediaContentType0", "image/jpeg")

	r := httptest.NewRequest(http.MethodPost, "/whatsapp", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	msg := ParseInbound(r)
	if msg.MessageSid != "SM1" || msg.From != "whatsapp:+491" || msg.To != "whatsapp:+141" {
		t.Errorf("Unexpected identity fields: %+v", msg)
	}
	if msg.ProfileName != "Anna" || msg.Body != "hi" {
		t.Errorf("Unexpected content fields: %+v", msg)
	}
	if msg.MediaURL != "https://api.twilio.com/media/1" || msg.MediaContentType != "image/jpeg" {
		t.Errorf("Unexpected media fields: %+v", msg)
	}
	if !msg.HasMedia() {
		t.Error("Expected HasMedia")
	}
	if msg.ReceivedAt.IsZero() {
		t.Error("Expected received_at stamped")
	}
}
