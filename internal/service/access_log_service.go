package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/nailsalon/admin-gate/internal/domain"
	"github.com/nailsalon/admin-gate/internal/events"
)

// AccessLogStore persists allowlist check results.
type AccessLogStore interface {
	Create(ctx context.Context, log *domain.AccessLog) error
}

// SettingsReader reads the access log switch.
type SettingsReader interface {
	AccessLogEnabled(ctx context.Context) (bool, error)
}

// AccessLogService records allowlist checks when the setting is on.
type AccessLogService struct {
	dispatcher events.Dispatcher
	logs       AccessLogStore
	settings   SettingsReader
	logger     *zap.Logger
}

// NewAccessLogService creates the service.
func NewAccessLogService(dispatcher events.Dispatcher, logs AccessLogStore, settings SettingsReader, logger *zap.Logger) *AccessLogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessLogService{dispatcher: dispatcher, logs: logs, settings: settings, logger: logger}
}

// RegisterHandlers subscribes to events.
func (s *AccessLogService) RegisterHandlers() {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Subscribe(events.EventAccessChecked, s.handleAccessChecked)
}

func (s *AccessLogService) handleAccessChecked(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.AccessCheckedPayload)
	if !ok {
		return nil
	}
	enabled, err := s.settings.AccessLogEnabled(ctx)
	if err != nil {
		return err
	}
	if !enabled {
		return nil
	}

	entry := &domain.AccessLog{
		IP:     event.Address,
		Result: payload.Result,
		Path:   payload.Path,
	}
	if payload.UserAgent != "" {
		ua := payload.UserAgent
		entry.UserAgent = &ua
	}
	if err := s.logs.Create(ctx, entry); err != nil {
		return err
	}
	s.logger.Debug("access logged", zap.String("result", string(payload.Result)))
	return nil
}
