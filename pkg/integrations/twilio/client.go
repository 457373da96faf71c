// Package twilio talks to the Twilio REST API for WhatsApp messaging and
// validates inbound webhook requests.
package twilio

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/formcoach/server/pkg/faults"
	httputil "github.com/formcoach/server/pkg/infrastructure/http"
	"github.com/formcoach/server/pkg/types"
)

const DefaultBaseURL = "https://api.twilio.com"

// Client implements shared.Messenger and shared.MediaFetcher.
type Client struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(accountSID, authToken, fromNumber string) *Client {
	return &Client{
		AccountSID: accountSID,
		AuthToken:  authToken,
		FromNumber: fromNumber,
		BaseURL:    DefaultBaseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// SendWhatsApp sends one outbound message. to and the configured from
// number carry the whatsapp: prefix already.
func (c *Client) SendWhatsApp(ctx context.Context, to, body string) error {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.BaseURL, c.AccountSID)

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.FromNumber)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build twilio request: %w", err)
	}
	req.SetBasicAuth(c.AccountSID, c.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return faults.Transient("twilio", fmt.Errorf("send: %w", err))
	}
	defer resp.Body.Close()

	if err := httputil.ParseErrorResponse(resp); err != nil {
		return faults.Transient("twilio", fmt.Errorf("send: %w", err))
	}
	return nil
}

// Fetch downloads an inbound media attachment. Twilio media URLs require
// the account's basic auth credentials.
func (c *Client) Fetch(ctx context.Context, mediaURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build media request: %w", err)
	}
	req.SetBasicAuth(c.AccountSID, c.AuthToken)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, "", faults.Transient("twilio", fmt.Errorf("media fetch: %w", err))
	}
	defer resp.Body.Close()

	if err := httputil.ParseErrorResponse(resp); err != nil {
		return nil, "", faults.Transient("twilio", fmt.Errorf("media fetch: %w", err))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", faults.Transient("twilio", fmt.Errorf("read media body: %w", err))
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// --- Inbound webhook handling ---

// ParseInbound normalizes a Twilio webhook form post. The request form
// must already be parsed.
func ParseInbound(r *http.Request) *types.InboundMessage {
	return &types.InboundMessage{
		MessageSid:       r.PostFormValue("MessageSid"),
		From:             r.PostFormValue("From"),
		To:               r.PostFormValue("To"),
		ProfileName:      r.PostFormValue("ProfileName"),
		Body:             r.PostFormValue("Body"),
		MediaURL:         r.PostFormValue("MediaUrl0"),
		MediaContentType: r.PostFormValue("MediaContentType0"),
		ReceivedAt:       time.Now().UTC(),
	}
}

// ComputeSignature builds the expected X-Twilio-Signature value: the
// request URL concatenated with the sorted form parameters, HMAC-SHA1
// signed with the auth token, base64 encoded.
func ComputeSignature(authToken, requestURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(requestURL)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(form.Get(k))
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// ValidateSignature checks an inbound request's X-Twilio-Signature header.
func ValidateSignature(authToken, requestURL string, form url.Values, signature string) bool {
	expected := ComputeSignature(authToken, requestURL, form)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
