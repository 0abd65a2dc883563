// FilePath: internal/bus/bus.go
package bus

import (
	"sync"

	nuts "github.com/vaudience/go-nuts"

	"github.com/prajukk/backed-traffic/internal/models"
)

// RoomKey identifies a subscription group. Device rooms carry the device
// kind and id as separate parts so ids containing separators can never
// collide with another room. The zero value is the admin room.
type RoomKey struct {
	Kind models.DeviceKind
	ID   string
}

// AdminRoom is the role-scoped group every authenticated dashboard
// connection joins.
var AdminRoom = RoomKey{}

// DeviceRoom returns the room key for a physical device's own group.
func DeviceRoom(kind models.DeviceKind, id string) RoomKey {
	return RoomKey{Kind: kind, ID: id}
}

// Message is one fan-out payload. Event names are part of the wire protocol
// (cameraUpdate, signalUpdate, configUpdate, ...).
type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Live channel event names, server to client.
const (
	EventInitialData     = "initialData"
	EventCameraUpdate    = "cameraUpdate"
	EventSignalUpdate    = "signalUpdate"
	EventCameraDeleted   = "cameraDeleted"
	EventSignalRemoved   = "signalRemoved"
	EventConfigUpdate    = "configUpdate"
	EventControlCommand  = "controlCommand"
	EventAnalyticsUpdate = "analyticsUpdate"
	EventError           = "error"
)

// Bus is the in-memory fan-out mechanism. Rooms are created implicitly on
// first join and garbage-collected when their last member leaves. Delivery
// is at-most-once and best-effort: a member whose send buffer is full is
// skipped, and there is no replay. Dashboards fetch a full snapshot on
// (re)connect to cover the gap.
type Bus struct {
	mu    sync.RWMutex
	rooms map[RoomKey]map[*Client]struct{}
	// membership tracks every room a client is in, so disconnect can remove
	// it from all of them unconditionally.
	membership map[*Client]map[RoomKey]struct{}
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{
		rooms:      make(map[RoomKey]map[*Client]struct{}),
		membership: make(map[*Client]map[RoomKey]struct{}),
	}
}

// Join adds a client to a room, creating the room if needed. A client may
// belong to any number of rooms at once.
func (b *Bus) Join(room RoomKey, c *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	members, ok := b.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		b.rooms[room] = members
	}
	members[c] = struct{}{}

	joined, ok := b.membership[c]
	if !ok {
		joined = make(map[RoomKey]struct{})
		b.membership[c] = joined
	}
	joined[room] = struct{}{}

	nuts.L.Debugf("[Bus] Client %d joined room %s/%s (%d members)", c.id, room.Kind, room.ID, len(members))
}

// Leave removes a client from a single room and drops the room once empty.
func (b *Bus) Leave(room RoomKey, c *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.leaveLocked(room, c)
}

func (b *Bus) leaveLocked(room RoomKey, c *Client) {
	if members, ok := b.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(b.rooms, room)
		}
	}
	if joined, ok := b.membership[c]; ok {
		delete(joined, room)
		if len(joined) == 0 {
			delete(b.membership, c)
		}
	}
}

// Remove takes a client out of every room it joined. Called on disconnect,
// including error paths, so membership never outlives the connection.
func (b *Bus) Remove(c *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for room := range b.membership[c] {
		b.leaveLocked(room, c)
	}
	delete(b.membership, c)
}

// Publish delivers a message to every current member of a room. Members with
// a full send buffer are skipped; delivery is never retried.
func (b *Bus) Publish(room RoomKey, msg Message) {
	b.mu.RLock()
	members := make([]*Client, 0, len(b.rooms[room]))
	for c := range b.rooms[room] {
		members = append(members, c)
	}
	b.mu.RUnlock()

	for _, c := range members {
		if !c.Send(msg) {
			nuts.L.Warnf("[Bus] Dropping %s for slow client %d in room %s/%s", msg.Event, c.id, room.Kind, room.ID)
		}
	}
}

// RoomSize returns the current member count of a room.
func (b *Bus) RoomSize(room RoomKey) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms[room])
}

// Rooms returns the number of live rooms.
func (b *Bus) Rooms() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms)
}
