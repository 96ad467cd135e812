package gateway

import (
	"context"
	"testing"

	"github.com/olzhas-a/dispatch-core/internal/domain/models"
	"github.com/olzhas-a/dispatch-core/internal/domain/types"
	"github.com/olzhas-a/dispatch-core/pkg/logger"
	"github.com/olzhas-a/dispatch-core/pkg/uuid"
	ws "github.com/olzhas-a/dispatch-core/pkg/wsHub"
)

func testConn() *ws.Conn {
	return ws.NewConn(context.Background(), uuid.New(), nil)
}

func newRooms() *Rooms {
	return NewRooms(logger.InitLogger("rooms-test", logger.LevelError))
}

func TestRooms_Membership(t *testing.T) {
	r := newRooms()
	conn := testConn()
	room := RequestRoom(uuid.New())

	r.Join(room, conn)
	if !r.Contains(conn.ID(), room) {
		t.Fatal("connection should be in the room after Join")
	}
	if r.Count(room) != 1 {
		t.Fatalf("expected 1 member, got %d", r.Count(room))
	}

	// idempotent join
	r.Join(room, conn)
	if r.Count(room) != 1 {
		t.Fatalf("double join must not duplicate membership, got %d", r.Count(room))
	}

	r.Leave(conn.ID(), room)
	if r.Contains(conn.ID(), room) {
		t.Fatal("connection should be gone after Leave")
	}
	if r.Count(room) != 0 {
		t.Fatalf("room should be empty, got %d", r.Count(room))
	}
}

func TestRooms_LeaveAll(t *testing.T) {
	r := newRooms()
	conn := testConn()
	userID := uuid.New()

	r.Join(UserRoom(userID), conn)
	r.Join(AdminRoom, conn)
	r.Join(RequestRoom(uuid.New()), conn)

	r.LeaveAll(conn.ID())

	if r.Contains(conn.ID(), UserRoom(userID)) || r.Contains(conn.ID(), AdminRoom) {
		t.Fatal("LeaveAll should remove the connection from every room")
	}
	if r.Count(AdminRoom) != 0 {
		t.Fatalf("admin room should be empty, got %d", r.Count(AdminRoom))
	}
}

func TestCanWatchRequest(t *testing.T) {
	ownerID := uuid.New()
	driverID := uuid.New()
	otherDriverID := uuid.New()
	req := &models.Request{ID: uuid.New(), OwnerID: ownerID, DriverID: &driverID}

	cases := []struct {
		name     string
		identity *models.Identity
		want     bool
	}{
		{"owner", &models.Identity{UserID: ownerID, Role: types.RoleUser}, true},
		{"admin", &models.Identity{UserID: uuid.New(), Role: types.RoleAdmin}, true},
		{"superadmin", &models.Identity{UserID: uuid.New(), Role: types.RoleSuperAdmin}, true},
		{"assigned driver", &models.Identity{UserID: uuid.New(), Role: types.RoleDriver, DriverID: &driverID}, true},
		{"other driver", &models.Identity{UserID: uuid.New(), Role: types.RoleDriver, DriverID: &otherDriverID}, false},
		{"stranger", &models.Identity{UserID: uuid.New(), Role: types.RoleUser}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := canWatchRequest(tc.identity, req); got != tc.want {
				t.Fatalf("canWatchRequest = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestIsAssignedDriver_UnassignedRequest(t *testing.T) {
	driverID := uuid.New()
	req := &models.Request{ID: uuid.New(), OwnerID: uuid.New()}
	identity := &models.Identity{UserID: uuid.New(), Role: types.RoleDriver, DriverID: &driverID}

	if isAssignedDriver(identity, req) {
		t.Fatal("no driver can be the assigned driver of an unassigned request")
	}
}

func TestParseRequestID(t *testing.T) {
	id := uuid.New()

	if got, err := parseRequestID(map[string]any{"requestId": id.String()}); err != nil || got != id {
		t.Fatalf("expected %s, got %s (%v)", id, got, err)
	}
	if _, err := parseRequestID(map[string]any{}); types.ErrCode(err) != types.CodeValidation {
		t.Fatalf("missing requestId should be a validation error, got %v", err)
	}
	if _, err := parseRequestID(map[string]any{"requestId": "nope"}); types.ErrCode(err) != types.CodeValidation {
		t.Fatalf("malformed requestId should be a validation error, got %v", err)
	}
}
