package accessgate

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultPrimaryURL  = "https://api.ipify.org?format=json"
	DefaultFallbackURL = "https://api64.ipify.org?format=json"
)

// Detector discovers the externally visible address of this client.
type Detector interface {
	Detect(ctx context.Context) (string, error)
}

// IPLookup asks an ipify-style service, then a fallback provider.
type IPLookup struct {
	client    *resty.Client
	providers []string
}

// NewIPLookup builds a detector. Empty URLs fall back to the public ipify endpoints.
func NewIPLookup(primaryURL, fallbackURL string, timeout time.Duration) *IPLookup {
	if primaryURL == "" {
		primaryURL = DefaultPrimaryURL
	}
	if fallbackURL == "" {
		fallbackURL = DefaultFallbackURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &IPLookup{
		client:    resty.New().SetTimeout(timeout),
		providers: []string{primaryURL, fallbackURL},
	}
}

type ipReply struct {
	IP string `json:"ip"`
}

// Detect returns the first valid address any provider reports.
func (d *IPLookup) Detect(ctx context.Context) (string, error) {
	var errs []error
	for _, url := range d.providers {
		addr, err := d.lookup(ctx, url)
		if err == nil {
			return addr, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return "", fmt.Errorf("%w: %w", ErrIdentityDetection, errors.Join(errs...))
}

func (d *IPLookup) lookup(ctx context.Context, url string) (string, error) {
	var out ipReply
	resp, err := d.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetResult(&out).
		Get(url)
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("%s: status %d", url, resp.StatusCode())
	}
	addr := strings.TrimSpace(out.IP)
	if net.ParseIP(addr) == nil {
		return "", fmt.Errorf("%s: invalid address %q", url, addr)
	}
	return addr, nil
}
