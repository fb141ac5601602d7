package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Sender delivers a text message to one recipient.
type Sender interface {
	Name() string
	Send(ctx context.Context, recipient, text string) error
}

// ErrNotConfigured is returned by senders without credentials.
var ErrNotConfigured = errors.New("notify: channel not configured")

func newClient(baseURL string) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10*time.Second).
		SetHeader("User-Agent", "salon-admin-gate/1.0")
}

func deliveryError(channel string, resp *resty.Response) error {
	return fmt.Errorf("%s delivery failed: status %d: %s", channel, resp.StatusCode(), resp.String())
}
