package proxyclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nailsalon/admin-gate/internal/api/dto"
	"github.com/nailsalon/admin-gate/internal/domain"
	"github.com/nailsalon/admin-gate/internal/policy"
)

type capture struct {
	requests []dto.ProxyRequest
	headers  []http.Header
}

func newServer(t *testing.T, reply func(dto.ProxyRequest) (int, dto.ProxyResponse)) (*httptest.Server, *capture) {
	t.Helper()
	seen := &capture{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req dto.ProxyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		seen.requests = append(seen.requests, req)
		seen.headers = append(seen.headers, r.Header.Clone())
		status, body := reply(req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func TestSelectSendsQueryAndDecodesRows(t *testing.T) {
	srv, seen := newServer(t, func(dto.ProxyRequest) (int, dto.ProxyResponse) {
		return http.StatusOK, dto.ProxyResponse{OK: true, Role: "staff", Data: []any{
			map[string]any{"id": "t-1", "name": "Gel"},
		}}
	})
	c := New(Options{URL: srv.URL, APIKey: "anon-key", ForwardedFor: "203.0.113.7"})

	rows, err := c.Select(context.Background(), domain.TableTreatments, SelectOptions{
		Columns: "id,name",
		Where:   map[string]any{"is_active": true},
		Order:   &dto.ProxyOrder{Column: "name", Ascending: true},
		Limit:   5,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Gel", rows[0]["name"])

	req := seen.requests[0]
	assert.Equal(t, "select", req.Operation)
	assert.Equal(t, "treatments", req.Table)
	assert.Equal(t, "id,name", req.Query.Select)
	assert.Equal(t, 5, req.Query.Limit)
	assert.Equal(t, "name", req.Query.Order.Column)
	assert.Equal(t, "anon-key", seen.headers[0].Get("apikey"))
	assert.Equal(t, "Bearer anon-key", seen.headers[0].Get("Authorization"))
	assert.Equal(t, "203.0.113.7", seen.headers[0].Get("X-Forwarded-For"))
}

func TestDeniedReplyBecomesError(t *testing.T) {
	srv, _ := newServer(t, func(dto.ProxyRequest) (int, dto.ProxyResponse) {
		return http.StatusForbidden, dto.ProxyResponse{Role: "unauthorized", Error: "Unauthorized", Code: "AUTHORIZATION_DENIED"}
	})
	c := New(Options{URL: srv.URL})

	_, err := c.Insert(context.Background(), domain.TableTreatments, map[string]any{"name": "x"})
	var proxyErr *Error
	require.ErrorAs(t, err, &proxyErr)
	assert.Equal(t, http.StatusForbidden, proxyErr.Status)
	assert.Equal(t, "Unauthorized", proxyErr.Message)
	assert.Equal(t, domain.RoleUnauthorized, proxyErr.Role)
}

func TestDeleteTreatsNoRowsAsSuccess(t *testing.T) {
	srv, seen := newServer(t, func(dto.ProxyRequest) (int, dto.ProxyResponse) {
		return http.StatusBadGateway, dto.ProxyResponse{Role: "manager", Error: "No rows found", Code: "UPSTREAM_STORAGE"}
	})
	c := New(Options{URL: srv.URL})

	err := c.Delete(context.Background(), domain.TableTreatments, map[string]any{"id": "t-9"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "t-9"}, seen.requests[0].Query.Where)
}

func TestDeletePassesOtherFailures(t *testing.T) {
	srv, _ := newServer(t, func(dto.ProxyRequest) (int, dto.ProxyResponse) {
		return http.StatusForbidden, dto.ProxyResponse{Role: "staff", Error: "Only manager can delete admin_allowed_ips", Code: "AUTHORIZATION_DENIED"}
	})
	c := New(Options{URL: srv.URL})

	err := c.Delete(context.Background(), domain.TableAllowlist, map[string]any{"id": "a-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Only manager can delete admin_allowed_ips")
}

func TestCurrentRoleReadsRoleFromDeniedProbe(t *testing.T) {
	srv, seen := newServer(t, func(dto.ProxyRequest) (int, dto.ProxyResponse) {
		return http.StatusForbidden, dto.ProxyResponse{Role: "unauthorized", Error: "Unauthorized"}
	})
	c := New(Options{URL: srv.URL})

	role, err := c.CurrentRole(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUnauthorized, role)
	assert.Equal(t, "reservations", seen.requests[0].Table)
}

func TestBootstrapCalls(t *testing.T) {
	srv, seen := newServer(t, func(req dto.ProxyRequest) (int, dto.ProxyResponse) {
		return http.StatusOK, dto.ProxyResponse{OK: true, Role: "unauthorized", Data: req.FunctionName != policy.ProcVerifyManagerName}
	})
	c := New(Options{URL: srv.URL})
	ctx := context.Background()

	allowed, err := c.IsAllowed(ctx, "203.0.113.7", "")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, policy.ProcIsAddressAllowed, seen.requests[0].FunctionName)
	assert.Equal(t, "203.0.113.7", seen.requests[0].RPCParams["p_ip"])
	assert.Nil(t, seen.requests[0].RPCParams["p_device_fingerprint"])

	enrolled, err := c.Enroll(ctx, "203.0.113.7", "Hanako", "fp-1")
	require.NoError(t, err)
	assert.True(t, enrolled)
	assert.Equal(t, "Hanako", seen.requests[1].RPCParams["p_manager_name"])
	assert.Equal(t, "fp-1", seen.requests[1].RPCParams["p_device_fingerprint"])

	require.NoError(t, c.TouchFingerprint(ctx, "203.0.113.7", "fp-1"))
	assert.Equal(t, policy.ProcTouchFingerprint, seen.requests[2].FunctionName)

	ok, err := c.VerifyManagerName(ctx, "Hanako")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBoolRPCRejectsNonBool(t *testing.T) {
	srv, _ := newServer(t, func(dto.ProxyRequest) (int, dto.ProxyResponse) {
		return http.StatusOK, dto.ProxyResponse{OK: true, Role: "manager", Data: "yes"}
	})
	c := New(Options{URL: srv.URL})

	_, err := c.IsAllowed(context.Background(), "203.0.113.7", "")
	require.Error(t, err)
}
