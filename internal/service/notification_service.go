package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nailsalon/admin-gate/internal/events"
	"github.com/nailsalon/admin-gate/internal/notify"
)

// Channel pairs a sender with the manager's recipient id on it.
type Channel struct {
	Sender    notify.Sender
	Recipient string
}

// NotificationService tells the manager about gate events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	channels   []Channel
}

// NewNotificationService creates the service. Channels without a recipient are skipped.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, channels ...Channel) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	active := make([]Channel, 0, len(channels))
	for _, ch := range channels {
		if ch.Sender != nil && ch.Recipient != "" {
			active = append(active, ch)
		}
	}
	return &NotificationService{dispatcher: dispatcher, logger: logger, channels: active}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventAddressEnrolled, n.handleAddressEnrolled)
	n.dispatcher.Subscribe(events.EventStaffDeleted, n.handleStaffDeleted)
}

func (n *NotificationService) handleAddressEnrolled(ctx context.Context, event events.Event) error {
	n.logger.Info("AddressEnrolled", zap.String("event_id", event.ID))
	text := fmt.Sprintf("[管理画面] 新しい端末が登録されました\nIP: %s\n日時: %s\nスタッフとの紐付けは管理画面から行ってください。",
		event.Address, event.Timestamp.Format("2006-01-02 15:04"))
	return n.broadcast(ctx, event, text)
}

func (n *NotificationService) handleStaffDeleted(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.StaffDeletedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	n.logger.Info("StaffDeleted", zap.String("event_id", event.ID), zap.String("staff_id", payload.StaffID))
	text := fmt.Sprintf("[管理画面] スタッフ「%s」を削除しました。", payload.StaffName)
	return n.broadcast(ctx, event, text)
}

// broadcast tries every channel. Failures are reported together and never
// undo the change that raised the event.
func (n *NotificationService) broadcast(ctx context.Context, event events.Event, text string) error {
	var failed []string
	for _, ch := range n.channels {
		if err := ch.Sender.Send(ctx, ch.Recipient, text); err != nil {
			n.logger.Warn("notification delivery failed",
				zap.String("channel", ch.Sender.Name()),
				zap.String("event_type", string(event.Type)),
				zap.Error(err))
			failed = append(failed, ch.Sender.Name())
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("notification failed on %v", failed)
	}
	return nil
}
