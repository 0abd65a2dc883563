// FilePath: internal/bus/bus_test.go
package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prajukk/backed-traffic/internal/models"
)

func drain(c *Client) []Message {
	var out []Message
	for {
		select {
		case msg := <-c.send:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestPublishReachesRoomMembersOnly(t *testing.T) {
	b := New()
	admin := NewClient(b, nil)
	device := NewClient(b, nil)

	b.Join(AdminRoom, admin)
	b.Join(DeviceRoom(models.KindCamera, "cam_1"), device)

	b.Publish(AdminRoom, Message{Event: EventCameraUpdate, Data: "payload"})

	adminMsgs := drain(admin)
	require.Len(t, adminMsgs, 1)
	assert.Equal(t, EventCameraUpdate, adminMsgs[0].Event)
	assert.Empty(t, drain(device))
}

func TestPublishToEmptyRoomIsNoop(t *testing.T) {
	b := New()
	b.Publish(DeviceRoom(models.KindSignal, "sig_missing"), Message{Event: EventConfigUpdate})
	assert.Equal(t, 0, b.Rooms())
}

func TestLeaveDropsEmptyRoom(t *testing.T) {
	b := New()
	c := NewClient(b, nil)
	room := DeviceRoom(models.KindCamera, "cam_1")

	b.Join(room, c)
	require.Equal(t, 1, b.RoomSize(room))

	b.Leave(room, c)
	assert.Equal(t, 0, b.RoomSize(room))
	assert.Equal(t, 0, b.Rooms())

	b.Publish(room, Message{Event: EventCameraUpdate})
	assert.Empty(t, drain(c))
}

func TestRemoveClearsAllRooms(t *testing.T) {
	b := New()
	c := NewClient(b, nil)
	other := NewClient(b, nil)

	b.Join(AdminRoom, c)
	b.Join(DeviceRoom(models.KindCamera, "cam_1"), c)
	b.Join(DeviceRoom(models.KindSignal, "sig_1"), c)
	b.Join(AdminRoom, other)
	require.Equal(t, 3, b.Rooms())

	b.Remove(c)

	assert.Equal(t, 1, b.Rooms())
	assert.Equal(t, 1, b.RoomSize(AdminRoom))

	b.Publish(AdminRoom, Message{Event: EventCameraUpdate})
	assert.Empty(t, drain(c))
	assert.Len(t, drain(other), 1)
}

func TestClientMayJoinSameRoomTwice(t *testing.T) {
	b := New()
	c := NewClient(b, nil)

	b.Join(AdminRoom, c)
	b.Join(AdminRoom, c)
	assert.Equal(t, 1, b.RoomSize(AdminRoom))

	b.Publish(AdminRoom, Message{Event: EventSignalUpdate})
	assert.Len(t, drain(c), 1)
}

func TestSlowClientIsSkippedNotBlocked(t *testing.T) {
	b := New()
	slow := NewClient(b, nil)
	fast := NewClient(b, nil)
	b.Join(AdminRoom, slow)
	b.Join(AdminRoom, fast)

	for i := 0; i < sendBufferSize; i++ {
		require.True(t, slow.Send(Message{Event: EventAnalyticsUpdate}))
	}
	assert.False(t, slow.Send(Message{Event: EventAnalyticsUpdate}))

	// Publish must complete and still deliver to the healthy member.
	b.Publish(AdminRoom, Message{Event: EventCameraUpdate, Data: "fresh"})

	fastMsgs := drain(fast)
	require.Len(t, fastMsgs, 1)
	assert.Equal(t, "fresh", fastMsgs[0].Data)
	assert.Len(t, drain(slow), sendBufferSize)
}

func TestSendAfterCloseIsDropped(t *testing.T) {
	b := New()
	c := NewClient(b, nil)
	c.closed.Store(true)

	assert.False(t, c.Send(Message{Event: EventCameraUpdate}))
	assert.Empty(t, drain(c))
}

func TestDeviceRoomKeysDoNotCollide(t *testing.T) {
	camRoom := DeviceRoom(models.KindCamera, "x")
	sigRoom := DeviceRoom(models.KindSignal, "x")
	assert.NotEqual(t, camRoom, sigRoom)
	assert.NotEqual(t, AdminRoom, camRoom)
}
