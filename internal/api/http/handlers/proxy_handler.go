package handlers

import (
	"net/url"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/nailsalon/admin-gate/internal/api/dto"
	"github.com/nailsalon/admin-gate/internal/auth"
	"github.com/nailsalon/admin-gate/internal/identity"
	"github.com/nailsalon/admin-gate/internal/proxy"
	apperrors "github.com/nailsalon/admin-gate/pkg/util/errorutil"
)

// ProxyHandler exposes the authorization proxy over HTTP.
type ProxyHandler struct {
	proxy  *proxy.Proxy
	logger *zap.Logger
}

// NewProxyHandler constructs the handler.
func NewProxyHandler(p *proxy.Proxy, logger *zap.Logger) *ProxyHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProxyHandler{proxy: p, logger: logger}
}

// Execute runs one proxy command. The body is decoded whatever its
// Content-Type, with the app's configured JSON decoder.
func (h *ProxyHandler) Execute(c *fiber.Ctx) error {
	var req dto.ProxyRequest
	if err := c.App().Config().JSONDecoder(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.Failure(apperrors.CodeValidationFailed, "invalid JSON body"))
	}

	if role, ok := auth.ProjectRoleFromContext(c); ok {
		h.logger.Debug("proxy request key", zap.String("project_role", string(role)))
	}
	res := h.proxy.Execute(c.UserContext(), CallerFrom(c), req.ToCommand())
	return c.Status(res.Status()).JSON(dto.FromResult(res))
}

// Preflight answers CORS preflight requests.
func (h *ProxyHandler) Preflight(c *fiber.Ctx) error {
	return c.SendString("ok")
}

// MethodNotAllowed rejects verbs other than POST and OPTIONS.
func (h *ProxyHandler) MethodNotAllowed(c *fiber.Ctx) error {
	return c.Status(fiber.StatusMethodNotAllowed).
		JSON(dto.Failure(apperrors.CodeMethodNotAllowed, "Method not allowed"))
}

// CallerFrom extracts the caller identity from request headers.
func CallerFrom(c *fiber.Ctx) identity.Caller {
	path := c.Path()
	if ref := c.Get(fiber.HeaderReferer); ref != "" {
		if u, err := url.Parse(ref); err == nil && u.Path != "" {
			path = u.Path
		}
	}
	ua := c.Get(fiber.HeaderUserAgent)
	return identity.Caller{
		Address:     identity.ClientAddress(c.Get(fiber.HeaderXForwardedFor), c.Get("X-Real-IP")),
		Fingerprint: identity.Fingerprint(ua, c.Get(fiber.HeaderAcceptLanguage), c.Get(fiber.HeaderAcceptEncoding)),
		UserAgent:   ua,
		Path:        path,
	}
}
