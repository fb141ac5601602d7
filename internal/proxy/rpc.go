package proxy

import (
	"context"
	"fmt"

	"github.com/nailsalon/admin-gate/internal/domain"
	"github.com/nailsalon/admin-gate/internal/identity"
	"github.com/nailsalon/admin-gate/internal/policy"
	apperrors "github.com/nailsalon/admin-gate/pkg/util/errorutil"
)

func (p *Proxy) call(ctx context.Context, caller identity.Caller, role domain.Role, req Request) (any, error) {
	if req.Function == "" {
		return nil, apperrors.NewValidationError("function_name is required for rpc operation", nil)
	}
	proc, known := p.registry.Procedure(req.Function)
	if !known || !p.registry.IsProcedureAllowed(role, req.Function) {
		return nil, apperrors.NewAuthorizationDenied(fmt.Sprintf("Only manager can call RPC: %s", req.Function))
	}
	args, err := p.registry.ProcedureArgs(req.Function, req.Params)
	if err != nil {
		return nil, err
	}
	if !proc.Bootstrap {
		result, err := p.store.Call(ctx, req.Function, args)
		if err != nil {
			return nil, apperrors.NewUpstreamStorage(err)
		}
		return result, nil
	}
	return p.callBootstrap(ctx, caller, role, req.Function, args)
}

// callBootstrap serves the enrollment procedures in-process. A caller
// without the manager role may only name its own address.
func (p *Proxy) callBootstrap(ctx context.Context, caller identity.Caller, role domain.Role, name string, args policy.Values) (any, error) {
	address := stringArg(args, "p_ip")
	fingerprint := stringArg(args, "p_device_fingerprint")
	if fingerprint == "" {
		fingerprint = caller.Fingerprint
	}
	if _, ok := args["p_ip"]; ok && !role.IsManager() && address != caller.Address {
		return nil, apperrors.NewAuthorizationDenied(fmt.Sprintf("%s may only name the caller's own address", name))
	}

	switch name {
	case policy.ProcVerifyManagerName:
		requester := caller.Address
		if role.IsManager() {
			requester = ""
		}
		return p.bootstrap.VerifyManagerName(ctx, requester, stringArg(args, "p_name"))
	case policy.ProcIsAddressAllowed:
		return p.bootstrap.IsAddressAllowed(ctx, caller, address)
	case policy.ProcTouchFingerprint:
		return p.bootstrap.TouchFingerprint(ctx, address, fingerprint)
	case policy.ProcEnrollAddress:
		return p.bootstrap.Enroll(ctx, caller.Address, address, stringArg(args, "p_manager_name"), fingerprint)
	default:
		return nil, apperrors.NewAuthorizationDenied(fmt.Sprintf("Only manager can call RPC: %s", name))
	}
}

func stringArg(args policy.Values, key string) string {
	s, _ := args[key].(string)
	return s
}
