package notify

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// DefaultLineBaseURL is the LINE Messaging API host.
const DefaultLineBaseURL = "https://api.line.me"

type lineText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type linePush struct {
	To       string     `json:"to"`
	Messages []lineText `json:"messages"`
}

// LineSender pushes text messages through the LINE Messaging API.
type LineSender struct {
	client *resty.Client
	token  string
}

// NewLineSender builds a sender. An empty baseURL means the public API.
func NewLineSender(baseURL, channelToken string) *LineSender {
	if baseURL == "" {
		baseURL = DefaultLineBaseURL
	}
	return &LineSender{client: newClient(baseURL), token: channelToken}
}

func (s *LineSender) Name() string { return "line" }

func (s *LineSender) Send(ctx context.Context, recipient, text string) error {
	if s.token == "" || recipient == "" {
		return ErrNotConfigured
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(s.token).
		SetBody(linePush{To: recipient, Messages: []lineText{{Type: "text", Text: text}}}).
		Post("/v2/bot/message/push")
	if err != nil {
		return fmt.Errorf("line push: %w", err)
	}
	if resp.IsError() {
		return deliveryError(s.Name(), resp)
	}
	return nil
}
