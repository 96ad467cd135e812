package gateway

import (
	"context"
	"sync"

	"github.com/olzhas-a/dispatch-core/pkg/logger"
	"github.com/olzhas-a/dispatch-core/pkg/uuid"
	ws "github.com/olzhas-a/dispatch-core/pkg/wsHub"
)

// Room name builders.
func UserRoom(userID uuid.UUID) string       { return "user:" + userID.String() }
func DriverRoom(driverID uuid.UUID) string   { return "driver:" + driverID.String() }
func RequestRoom(requestID uuid.UUID) string { return "request:" + requestID.String() }

const AdminRoom = "admin"

// Rooms groups live connections for fan-out. Delivery is at-most-once to the
// connections present at broadcast time; there is no replay for late joiners.
type Rooms struct {
	mu     sync.RWMutex
	byRoom map[string]map[uuid.UUID]*ws.Conn
	byConn map[uuid.UUID]map[string]struct{}
	l      logger.Logger
}

func NewRooms(l logger.Logger) *Rooms {
	return &Rooms{
		byRoom: make(map[string]map[uuid.UUID]*ws.Conn),
		byConn: make(map[uuid.UUID]map[string]struct{}),
		l:      l,
	}
}

// Join is idempotent.
func (r *Rooms) Join(room string, conn *ws.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.byRoom[room] == nil {
		r.byRoom[room] = make(map[uuid.UUID]*ws.Conn)
	}
	r.byRoom[room][conn.ID()] = conn

	if r.byConn[conn.ID()] == nil {
		r.byConn[conn.ID()] = make(map[string]struct{})
	}
	r.byConn[conn.ID()][room] = struct{}{}
}

func (r *Rooms) Leave(connID uuid.UUID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(connID, room)
}

// LeaveAll removes the connection from every room, called on disconnect.
func (r *Rooms) LeaveAll(connID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for room := range r.byConn[connID] {
		r.leaveLocked(connID, room)
	}
}

func (r *Rooms) leaveLocked(connID uuid.UUID, room string) {
	if conns := r.byRoom[room]; conns != nil {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(r.byRoom, room)
		}
	}
	if rooms := r.byConn[connID]; rooms != nil {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(r.byConn, connID)
		}
	}
}

// Broadcast sends the message to every connection in the room. A failed send
// is logged and skipped; one dead connection must not starve the room.
func (r *Rooms) Broadcast(ctx context.Context, room string, msg any) {
	r.mu.RLock()
	conns := make([]*ws.Conn, 0, len(r.byRoom[room]))
	for _, c := range r.byRoom[room] {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	for _, c := range conns {
		if err := c.Send(msg); err != nil {
			r.l.Warn(ctx, "room broadcast send failed", "room", room, "conn_id", c.ID().String(), "error", err.Error())
		}
	}
}

// Contains reports whether the connection currently sits in the room.
func (r *Rooms) Contains(connID uuid.UUID, room string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byConn[connID][room]
	return ok
}

// Count returns the number of connections in the room.
func (r *Rooms) Count(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byRoom[room])
}
