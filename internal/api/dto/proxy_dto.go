package dto

import (
	"github.com/nailsalon/admin-gate/internal/domain"
	"github.com/nailsalon/admin-gate/internal/proxy"
)

// ProxyRequest is the JSON body accepted by the admin proxy.
type ProxyRequest struct {
	Operation    string         `json:"operation"`
	Table        string         `json:"table,omitempty"`
	FunctionName string         `json:"function_name,omitempty"`
	Query        *ProxyQuery    `json:"query,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
	Updates      map[string]any `json:"updates,omitempty"`
	RPCParams    map[string]any `json:"rpc_params,omitempty"`
}

// ProxyQuery carries select options and filters.
type ProxyQuery struct {
	Select string         `json:"select,omitempty"`
	Where  map[string]any `json:"where,omitempty"`
	Order  *ProxyOrder    `json:"order,omitempty"`
	Limit  int            `json:"limit,omitempty"`
}

// ProxyOrder is a single-column sort.
type ProxyOrder struct {
	Column    string `json:"column"`
	Ascending bool   `json:"ascending"`
}

// ProxyResponse is the uniform reply of every proxy exit path.
type ProxyResponse struct {
	OK    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
	Role  string `json:"role"`
}

// ToCommand converts the wire request into a proxy command.
func (r ProxyRequest) ToCommand() proxy.Request {
	cmd := proxy.Request{
		Operation: domain.Operation(r.Operation),
		Table:     domain.Table(r.Table),
		Function:  r.FunctionName,
		Data:      r.Data,
		Updates:   r.Updates,
		Params:    r.RPCParams,
	}
	if r.Query != nil {
		cmd.Query = proxy.QueryOptions{
			Select: r.Query.Select,
			Where:  r.Query.Where,
			Limit:  r.Query.Limit,
		}
		if r.Query.Order != nil {
			cmd.Query.Order = &proxy.Ordering{Column: r.Query.Order.Column, Ascending: r.Query.Order.Ascending}
		}
	}
	return cmd
}

// FromResult builds the reply for a proxy result.
func FromResult(res proxy.Result) ProxyResponse {
	out := ProxyResponse{OK: res.OK(), Role: res.Role.String()}
	if res.Err != nil {
		out.Error = res.Err.Message
		out.Code = res.Err.Code
		return out
	}
	out.Data = res.Data
	return out
}

// Failure builds a reply for a request rejected before its role was resolved.
func Failure(code, message string) ProxyResponse {
	return ProxyResponse{OK: false, Error: message, Code: code, Role: domain.RoleUnauthorized.String()}
}
