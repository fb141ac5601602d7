package observability

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nailsalon/admin-gate/internal/config"
	"github.com/nailsalon/admin-gate/internal/domain"
)

func TestRecordDecision(t *testing.T) {
	m := NewMetrics()
	m.RecordDecision(domain.OperationSelect, "reservations", domain.RoleStaff, "", 4*time.Millisecond)
	m.RecordDecision(domain.OperationSelect, "staff", domain.RoleStaff, "AUTHORIZATION_DENIED", 2*time.Millisecond)
	m.RecordDecision(domain.OperationSelect, "reservations", domain.RoleStaff, "", 0)

	s := m.Snapshot()
	assert.Equal(t, int64(2), s.Decisions["select|reservations|staff|ok"])
	assert.Equal(t, int64(1), s.Decisions["select|staff|staff|AUTHORIZATION_DENIED"])
	assert.InDelta(t, 2.0, s.AvgProxyMillis, 0.001)
}

func TestNilMetricsIgnoresRecords(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("/", "GET", 200, time.Millisecond)
		m.RecordError("/", "GET", "X")
		m.RecordDecision(domain.OperationRPC, "f", domain.RoleManager, "", 0)
	})
}

func TestRequestLoggerCountsRequests(t *testing.T) {
	m := NewMetrics()
	app := fiber.New()
	app.Use(RequestLogger(zap.NewNop(), m))
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	resp, err := app.Test(httptest.NewRequest("GET", "/ping", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, int64(1), m.Snapshot().Requests["/ping|GET|200"])
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	logger, err := NewLogger(config.LoggerConfig{Level: "chatty"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.InfoLevel))
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
}

func TestNewLoggerProductionKeepsLevel(t *testing.T) {
	logger, err := NewLogger(config.LoggerConfig{Level: "warn", Service: "admin-db-proxy", Environment: "production"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.WarnLevel))
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))
}
