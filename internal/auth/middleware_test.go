package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/nailsalon/admin-gate/pkg/util/errorutil"
)

func newApp(required bool) (*fiber.App, *TokenManager) {
	tokens := NewTokenManager("test-secret")
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).SendString(de.Code)
		},
	})
	app.Use(NewAPIKeyMiddleware(tokens, required).Handle)
	app.Post("/", func(c *fiber.Ctx) error {
		role, _ := ProjectRoleFromContext(c)
		return c.SendString(string(role))
	})
	return app, tokens
}

func TestAPIKeyAcceptedFromEitherHeader(t *testing.T) {
	app, tokens := newApp(true)
	key, err := tokens.IssueKey(ProjectRoleAnon, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/", nil)
	req.Header.Set("Authorization", "Bearer "+key)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	req = httptest.NewRequest("POST", "/", nil)
	req.Header.Set("apikey", key)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestAPIKeyRequired(t *testing.T) {
	app, _ := newApp(true)
	resp, err := app.Test(httptest.NewRequest("POST", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("OPTIONS", "/", nil))
	require.NoError(t, err)
	assert.NotEqual(t, 401, resp.StatusCode)
}

func TestAPIKeyOptionalStillRejectsBadKeys(t *testing.T) {
	app, _ := newApp(false)
	resp, err := app.Test(httptest.NewRequest("POST", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	req := httptest.NewRequest("POST", "/", nil)
	req.Header.Set("apikey", "not-a-jwt")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestParseKeyRejectsForeignSignaturesAndRoles(t *testing.T) {
	tokens := NewTokenManager("test-secret")

	other, err := NewTokenManager("other-secret").IssueKey(ProjectRoleService, 0)
	require.NoError(t, err)
	_, err = tokens.ParseKey(other)
	assert.Error(t, err)

	admin, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{Role: "admin"}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = tokens.ParseKey(admin)
	assert.Error(t, err)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Role:             ProjectRoleAnon,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = tokens.ParseKey(expired)
	assert.Error(t, err)
}

func TestIssueKeyRejectsUnknownRole(t *testing.T) {
	_, err := NewTokenManager("test-secret").IssueKey("manager", 0)
	assert.Error(t, err)
}
