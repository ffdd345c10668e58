package inproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent_office/internal/domain"
)

func delivery(id string) domain.Event {
	return domain.DeliveryEvent{Delivery: domain.CrossDeptDelivery{ID: id, FromAgentID: "a", ToAgentID: "b"}}
}

func TestPublishFansOut(t *testing.T) {
	bus := New(4)
	a := bus.Register("a")
	b := bus.Register("b")
	assert.Equal(t, 2, bus.Subscribers())

	require.NoError(t, bus.Publish(delivery("d1")))
	assert.Equal(t, delivery("d1"), <-a)
	assert.Equal(t, delivery("d1"), <-b)
}

func TestRegisterIsIdempotent(t *testing.T) {
	bus := New(1)
	first := bus.Register("a")
	assert.Equal(t, first, bus.Register("a"))
	assert.Equal(t, 1, bus.Subscribers())
}

func TestFullSubscriberDropsWithoutBlocking(t *testing.T) {
	bus := New(1)
	slow := bus.Register("slow")
	fast := bus.Register("fast")

	require.NoError(t, bus.Publish(delivery("d1")))
	<-fast

	err := bus.Publish(delivery("d2"))
	require.ErrorIs(t, err, ErrSubscriberQueueFull)
	assert.Contains(t, err.Error(), "slow")
	assert.Equal(t, delivery("d2"), <-fast)
	assert.Equal(t, delivery("d1"), <-slow)
}

func TestUnregisterClosesChannel(t *testing.T) {
	bus := New(0)
	ch := bus.Register("a")
	bus.Unregister("a")
	bus.Unregister("a")

	_, ok := <-ch
	assert.False(t, ok)
	assert.Zero(t, bus.Subscribers())
	assert.NoError(t, bus.Publish(delivery("d1")))
}
