package notify

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// DefaultTwilioBaseURL is the Twilio REST API host.
const DefaultTwilioBaseURL = "https://api.twilio.com"

// TwilioSender sends SMS through the Twilio Messages API.
type TwilioSender struct {
	client     *resty.Client
	accountSID string
	authToken  string
	from       string
}

// NewTwilioSender builds a sender. An empty baseURL means the public API.
func NewTwilioSender(baseURL, accountSID, authToken, from string) *TwilioSender {
	if baseURL == "" {
		baseURL = DefaultTwilioBaseURL
	}
	return &TwilioSender{client: newClient(baseURL), accountSID: accountSID, authToken: authToken, from: from}
}

func (s *TwilioSender) Name() string { return "sms" }

func (s *TwilioSender) Send(ctx context.Context, recipient, text string) error {
	if s.accountSID == "" || s.authToken == "" || s.from == "" || recipient == "" {
		return ErrNotConfigured
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetBasicAuth(s.accountSID, s.authToken).
		SetPathParam("sid", s.accountSID).
		SetFormData(map[string]string{
			"To":   recipient,
			"From": s.from,
			"Body": text,
		}).
		Post("/2010-04-01/Accounts/{sid}/Messages.json")
	if err != nil {
		return fmt.Errorf("twilio send: %w", err)
	}
	if resp.IsError() {
		return deliveryError(s.Name(), resp)
	}
	return nil
}
