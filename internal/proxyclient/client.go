// Package proxyclient is a typed client for the admin database proxy.
package proxyclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/nailsalon/admin-gate/internal/api/dto"
	"github.com/nailsalon/admin-gate/internal/domain"
	"github.com/nailsalon/admin-gate/internal/policy"
)

// Error is a proxy reply with ok=false.
type Error struct {
	Status  int
	Code    string
	Message string
	Role    domain.Role
}

func (e *Error) Error() string {
	return fmt.Sprintf("proxy %d %s: %s (role %s)", e.Status, e.Code, e.Message, e.Role)
}

// Client sends commands to one proxy endpoint.
type Client struct {
	http *resty.Client
	url  string
}

// Options configures a client.
type Options struct {
	URL     string
	APIKey  string
	Timeout time.Duration
	// ForwardedFor is sent as X-Forwarded-For. Only useful behind a trusted hop or in tests.
	ForwardedFor string
}

// New builds a client.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if opts.APIKey != "" {
		c.SetHeader("apikey", opts.APIKey).SetAuthToken(opts.APIKey)
	}
	if opts.ForwardedFor != "" {
		c.SetHeader("X-Forwarded-For", opts.ForwardedFor)
	}
	return &Client{http: c, url: opts.URL}
}

// Do sends one raw request and returns the reply. A reply with ok=false is
// returned together with an *Error.
func (c *Client) Do(ctx context.Context, req dto.ProxyRequest) (*dto.ProxyResponse, error) {
	var out dto.ProxyResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&out).
		Post(c.url)
	if err != nil {
		return nil, fmt.Errorf("proxy request: %w", err)
	}
	if !out.OK {
		msg := out.Error
		if msg == "" {
			msg = strings.TrimSpace(resp.String())
		}
		return &out, &Error{Status: resp.StatusCode(), Code: out.Code, Message: msg, Role: domain.Role(out.Role)}
	}
	return &out, nil
}

// SelectOptions narrows a select.
type SelectOptions struct {
	Columns string
	Where   map[string]any
	Order   *dto.ProxyOrder
	Limit   int
}

// Select reads rows.
func (c *Client) Select(ctx context.Context, table domain.Table, opts SelectOptions) ([]map[string]any, error) {
	resp, err := c.Do(ctx, dto.ProxyRequest{
		Operation: string(domain.OperationSelect),
		Table:     string(table),
		Query:     &dto.ProxyQuery{Select: opts.Columns, Where: opts.Where, Order: opts.Order, Limit: opts.Limit},
	})
	if err != nil {
		return nil, err
	}
	return rows(resp.Data)
}

// Insert creates one row and returns it.
func (c *Client) Insert(ctx context.Context, table domain.Table, data map[string]any) (map[string]any, error) {
	resp, err := c.Do(ctx, dto.ProxyRequest{Operation: string(domain.OperationInsert), Table: string(table), Data: data})
	if err != nil {
		return nil, err
	}
	out, err := rows(resp.Data)
	if err != nil || len(out) == 0 {
		return nil, err
	}
	return out[0], nil
}

// Update changes matching rows.
func (c *Client) Update(ctx context.Context, table domain.Table, updates, where map[string]any) ([]map[string]any, error) {
	resp, err := c.Do(ctx, dto.ProxyRequest{
		Operation: string(domain.OperationUpdate),
		Table:     string(table),
		Updates:   updates,
		Query:     &dto.ProxyQuery{Where: where},
	})
	if err != nil {
		return nil, err
	}
	return rows(resp.Data)
}

// Delete removes matching rows. Deleting nothing is not an error.
func (c *Client) Delete(ctx context.Context, table domain.Table, where map[string]any) error {
	_, err := c.Do(ctx, dto.ProxyRequest{
		Operation: string(domain.OperationDelete),
		Table:     string(table),
		Query:     &dto.ProxyQuery{Where: where},
	})
	var proxyErr *Error
	if errors.As(err, &proxyErr) && strings.Contains(proxyErr.Message, "No rows") {
		return nil
	}
	return err
}

// CallRPC invokes a procedure and returns its raw result.
func (c *Client) CallRPC(ctx context.Context, name string, params map[string]any) (any, error) {
	resp, err := c.Do(ctx, dto.ProxyRequest{Operation: string(domain.OperationRPC), FunctionName: name, RPCParams: params})
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// CurrentRole asks the proxy which role this caller resolves to. A denied
// probe still carries the role.
func (c *Client) CurrentRole(ctx context.Context) (domain.Role, error) {
	resp, err := c.Do(ctx, dto.ProxyRequest{
		Operation: string(domain.OperationSelect),
		Table:     string(domain.TableReservations),
		Query:     &dto.ProxyQuery{Select: "id", Limit: 1},
	})
	if resp != nil && resp.Role != "" {
		return domain.Role(resp.Role), nil
	}
	if err != nil {
		return domain.RoleUnauthorized, err
	}
	return domain.RoleUnauthorized, nil
}

// IsAllowed reports allowlist membership for address.
func (c *Client) IsAllowed(ctx context.Context, address, fingerprint string) (bool, error) {
	return c.boolRPC(ctx, policy.ProcIsAddressAllowed, map[string]any{
		"p_ip":                 address,
		"p_device_fingerprint": nullable(fingerprint),
	})
}

// TouchFingerprint refreshes the device fingerprint of an allowed address.
func (c *Client) TouchFingerprint(ctx context.Context, address, fingerprint string) error {
	_, err := c.CallRPC(ctx, policy.ProcTouchFingerprint, map[string]any{
		"p_ip":                 address,
		"p_device_fingerprint": nullable(fingerprint),
	})
	return err
}

// Enroll asks to add address to the allowlist using the manager's name.
func (c *Client) Enroll(ctx context.Context, address, managerName, fingerprint string) (bool, error) {
	return c.boolRPC(ctx, policy.ProcEnrollAddress, map[string]any{
		"p_ip":                 address,
		"p_manager_name":       managerName,
		"p_device_fingerprint": nullable(fingerprint),
	})
}

// VerifyManagerName checks a manager name without changing anything.
func (c *Client) VerifyManagerName(ctx context.Context, name string) (bool, error) {
	return c.boolRPC(ctx, policy.ProcVerifyManagerName, map[string]any{"p_name": name})
}

func (c *Client) boolRPC(ctx context.Context, name string, params map[string]any) (bool, error) {
	data, err := c.CallRPC(ctx, name, params)
	if err != nil {
		return false, err
	}
	ok, isBool := data.(bool)
	if !isBool {
		return false, fmt.Errorf("%s returned %T, want bool", name, data)
	}
	return ok, nil
}

func rows(data any) ([]map[string]any, error) {
	if data == nil {
		return []map[string]any{}, nil
	}
	list, ok := data.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected data %T, want rows", data)
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		row, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("unexpected row %T", item)
		}
		out = append(out, row)
	}
	return out, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
