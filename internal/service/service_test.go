package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nailsalon/admin-gate/internal/domain"
	"github.com/nailsalon/admin-gate/internal/events"
)

type sentMessage struct {
	recipient string
	text      string
}

type fakeSender struct {
	name string
	err  error
	sent []sentMessage
}

func (f *fakeSender) Name() string { return f.name }

func (f *fakeSender) Send(_ context.Context, recipient, text string) error {
	f.sent = append(f.sent, sentMessage{recipient: recipient, text: text})
	return f.err
}

func TestEnrollmentNoticeReachesEveryChannel(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(nil)
	line := &fakeSender{name: "line"}
	sms := &fakeSender{name: "sms", err: errors.New("queue full")}
	unused := &fakeSender{name: "unused"}

	NewNotificationService(dispatcher, nil,
		Channel{Sender: line, Recipient: "U-manager"},
		Channel{Sender: sms, Recipient: "+819000000000"},
		Channel{Sender: unused},
	).RegisterHandlers()

	err := dispatcher.Publish(context.Background(), events.Event{
		Type:      events.EventAddressEnrolled,
		Address:   "203.0.113.40",
		Timestamp: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
		Payload:   events.AddressEnrolledPayload{},
	})
	require.NoError(t, err)

	require.Len(t, line.sent, 1)
	assert.Equal(t, "U-manager", line.sent[0].recipient)
	assert.Contains(t, line.sent[0].text, "203.0.113.40")
	assert.Len(t, sms.sent, 1)
	assert.Empty(t, unused.sent)
}

func TestStaffDeletedNotice(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(nil)
	line := &fakeSender{name: "line"}
	NewNotificationService(dispatcher, nil, Channel{Sender: line, Recipient: "U-manager"}).RegisterHandlers()

	_ = dispatcher.Publish(context.Background(), events.Event{
		Type:    events.EventStaffDeleted,
		Payload: events.StaffDeletedPayload{StaffID: "s-1", StaffName: "Yui Mori"},
	})
	require.Len(t, line.sent, 1)
	assert.Contains(t, line.sent[0].text, "Yui Mori")
}

type memLogs struct {
	entries []domain.AccessLog
}

func (m *memLogs) Create(_ context.Context, log *domain.AccessLog) error {
	m.entries = append(m.entries, *log)
	return nil
}

type switchSetting struct {
	enabled bool
	err     error
}

func (s switchSetting) AccessLogEnabled(context.Context) (bool, error) { return s.enabled, s.err }

func publishCheck(t *testing.T, dispatcher events.Dispatcher) {
	t.Helper()
	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{
		Type:    events.EventAccessChecked,
		Address: "203.0.113.41",
		Payload: events.AccessCheckedPayload{Result: domain.AccessDenied, Path: "/admin", UserAgent: "Safari"},
	}))
}

func TestAccessLogWrittenWhenEnabled(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(nil)
	logs := &memLogs{}
	NewAccessLogService(dispatcher, logs, switchSetting{enabled: true}, nil).RegisterHandlers()

	publishCheck(t, dispatcher)
	require.Len(t, logs.entries, 1)
	entry := logs.entries[0]
	assert.Equal(t, "203.0.113.41", entry.IP)
	assert.Equal(t, domain.AccessDenied, entry.Result)
	require.NotNil(t, entry.UserAgent)
	assert.Equal(t, "Safari", *entry.UserAgent)
}

func TestAccessLogSkippedWhenDisabledOrUnreadable(t *testing.T) {
	for _, setting := range []switchSetting{{enabled: false}, {err: errors.New("timeout")}} {
		dispatcher := events.NewInMemoryDispatcher(nil)
		logs := &memLogs{}
		NewAccessLogService(dispatcher, logs, setting, nil).RegisterHandlers()

		publishCheck(t, dispatcher)
		assert.Empty(t, logs.entries)
	}
}
