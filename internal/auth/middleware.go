package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/nailsalon/admin-gate/pkg/util/errorutil"
)

const projectRoleKey = "project_role"

// APIKeyMiddleware checks the project API key sent by the admin web app.
// It never grants an admin role.
type APIKeyMiddleware struct {
	tokens   *TokenManager
	required bool
}

// NewAPIKeyMiddleware constructs middleware. When required is false a
// missing key passes, but a malformed one is still rejected.
func NewAPIKeyMiddleware(tokens *TokenManager, required bool) *APIKeyMiddleware {
	return &APIKeyMiddleware{tokens: tokens, required: required}
}

// Handle enforces the key on protected routes.
func (m *APIKeyMiddleware) Handle(c *fiber.Ctx) error {
	if c.Method() == fiber.MethodOptions {
		return c.Next()
	}
	key := bearer(c.Get(fiber.HeaderAuthorization))
	if key == "" {
		key = strings.TrimSpace(c.Get("apikey"))
	}
	if key == "" {
		if m.required {
			return apperrors.NewUnauthorized("missing api key")
		}
		return c.Next()
	}

	claims, err := m.tokens.ParseKey(key)
	if err != nil {
		return apperrors.NewUnauthorized("invalid api key")
	}
	c.Locals(projectRoleKey, claims.Role)
	return c.Next()
}

// ProjectRoleFromContext returns the verified key role, if any.
func ProjectRoleFromContext(c *fiber.Ctx) (ProjectRole, bool) {
	role, ok := c.Locals(projectRoleKey).(ProjectRole)
	return role, ok
}

func bearer(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
