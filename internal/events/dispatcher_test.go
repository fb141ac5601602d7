package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToSubscribersInOrder(t *testing.T) {
	d := NewInMemoryDispatcher(nil)
	var got []string

	d.Subscribe(EventAddressEnrolled, func(_ context.Context, e Event) error {
		got = append(got, "first:"+e.Address)
		return errors.New("delivery failed")
	})
	d.Subscribe(EventAddressEnrolled, func(_ context.Context, e Event) error {
		got = append(got, "second:"+e.Address)
		assert.NotEmpty(t, e.ID)
		return nil
	})
	d.Subscribe(EventStaffDeleted, func(context.Context, Event) error {
		got = append(got, "unexpected")
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventAddressEnrolled, Address: "203.0.113.9"})
	require.NoError(t, err)
	assert.Equal(t, []string{"first:203.0.113.9", "second:203.0.113.9"}, got)
}
