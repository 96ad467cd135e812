// Package gateway is the realtime edge: websocket handshake, room
// membership, client message routing and event fan-out.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/olzhas-a/dispatch-core/internal/adapter/ws/dto"
	"github.com/olzhas-a/dispatch-core/internal/domain/models"
	"github.com/olzhas-a/dispatch-core/internal/domain/types"
	"github.com/olzhas-a/dispatch-core/internal/event"
	"github.com/olzhas-a/dispatch-core/internal/service/dispatch"
	"github.com/olzhas-a/dispatch-core/pkg/logger"
	wrap "github.com/olzhas-a/dispatch-core/pkg/logger/wrapper"
	"github.com/olzhas-a/dispatch-core/pkg/metrics"
	"github.com/olzhas-a/dispatch-core/pkg/uuid"
	ws "github.com/olzhas-a/dispatch-core/pkg/wsHub"
)

const serviceName = "dispatch"

// TokenVerifier checks a bearer credential and maps it onto an identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*models.Identity, error)
}

type Gateway struct {
	upgrader websocket.Upgrader
	verifier TokenVerifier
	dispatch dispatch.Dispatch
	hub      *ws.ConnectionHub
	rooms    *Rooms
	limiter  *Limiter
	l        logger.Logger
}

func New(verifier TokenVerifier, d dispatch.Dispatch, hub *ws.ConnectionHub, limiter *Limiter, l logger.Logger) *Gateway {
	return &Gateway{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		verifier: verifier,
		dispatch: d,
		hub:      hub,
		rooms:    NewRooms(l),
		limiter:  limiter,
		l:        l,
	}
}

// Register subscribes the gateway's broadcast handlers to the event bus.
func (g *Gateway) Register(bus *event.Bus) {
	bus.Subscribe(models.StatusChangedEvent{}.EventType(), g.handleStatusChanged)
	bus.Subscribe(models.DriverAssignedEvent{}.EventType(), g.handleDriverAssigned)
	bus.Subscribe(models.LocationUpdatedEvent{}.EventType(), g.handleLocationUpdated)
}

// HandleWS upgrades the connection, authenticates it and pumps client
// messages until disconnect. An unauthenticated connection gets a structured
// error and is closed right away.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	wsConn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.l.Error(ctx, "websocket upgrade failed", err)
		return
	}

	conn := ws.NewConn(context.Background(), uuid.New(), wsConn)

	identity, err := g.verifier.Verify(ctx, bearerToken(r))
	if err != nil {
		_ = conn.Send(errorMessage(err))
		_ = conn.Close()
		return
	}

	ctx = wrap.WithUserID(context.Background(), identity.UserID.String())
	if err := g.hub.Add(conn); err != nil {
		g.l.Error(ctx, "failed to register connection", err)
		_ = conn.Close()
		return
	}
	metrics.WebSocketConnectionsGauge.WithLabelValues(serviceName).Inc()

	defer func() {
		g.rooms.LeaveAll(conn.ID())
		g.limiter.Forget(conn.ID())
		_ = g.hub.Delete(conn.ID())
		metrics.WebSocketConnectionsGauge.WithLabelValues(serviceName).Dec()
	}()

	g.joinPersonalRooms(identity, conn)

	if err := conn.Send(dto.Connected{
		Type:   dto.TypeConnected,
		UserID: identity.UserID.String(),
		Role:   identity.Role.String(),
	}); err != nil {
		g.l.Warn(ctx, "failed to send connected message", "error", err.Error())
		return
	}

	g.l.Info(ctx, "websocket connected", "conn_id", conn.ID().String(), "role", identity.Role.String())

	err = conn.Listen(func(msg map[string]any) error {
		g.routeMessage(ctx, identity, conn, msg)
		return nil
	})
	g.l.Info(ctx, "websocket disconnected", "conn_id", conn.ID().String(), "reason", err.Error())
}

// joinPersonalRooms admits the connection to the rooms its identity grants.
func (g *Gateway) joinPersonalRooms(identity *models.Identity, conn *ws.Conn) {
	g.rooms.Join(UserRoom(identity.UserID), conn)
	if identity.IsDriver() {
		g.rooms.Join(DriverRoom(*identity.DriverID), conn)
	}
	if identity.Role.IsAdmin() {
		g.rooms.Join(AdminRoom, conn)
	}
}

// routeMessage handles one client message. Handler failures answer with an
// ack or error payload; they never close the connection.
func (g *Gateway) routeMessage(ctx context.Context, identity *models.Identity, conn *ws.Conn, msg map[string]any) {
	msgType, _ := msg["type"].(string)

	rule := RuleGeneric
	if msgType == dto.TypeDriverLocationUpdate {
		rule = RuleLocation
	}
	if !g.limiter.Allow(conn.ID(), rule) {
		g.sendAck(ctx, conn, dto.Ack{
			Type:        dto.TypeAck,
			Of:          msgType,
			Success:     false,
			Code:        string(types.CodeRateLimited),
			Message:     types.ErrRateLimited.Message,
			UserMessage: types.ErrRateLimited.UserMessage,
		})
		return
	}

	switch msgType {
	case dto.TypeJoinRequestRoom:
		g.handleJoinRequestRoom(ctx, identity, conn, msg)
	case dto.TypeDriverLocationUpdate:
		g.handleDriverLocationUpdate(ctx, identity, conn, msg)
	default:
		_ = conn.Send(dto.Error{
			Type:        dto.TypeError,
			Code:        string(types.CodeValidation),
			Message:     fmt.Sprintf("unknown message type %q", msgType),
			UserMessage: "unsupported message type",
		})
	}
}

// handleJoinRequestRoom re-validates room access on every join: only the
// request owner, the assigned driver and admins may watch a request live.
func (g *Gateway) handleJoinRequestRoom(ctx context.Context, identity *models.Identity, conn *ws.Conn, msg map[string]any) {
	ctx = wrap.WithAction(ctx, "join_request_room")

	requestID, err := parseRequestID(msg)
	if err != nil {
		g.sendFailure(ctx, conn, dto.TypeJoinRequestRoom, "", err)
		return
	}
	ctx = wrap.WithTripID(ctx, requestID.String())

	req, err := g.dispatch.Get(ctx, requestID)
	if err != nil {
		g.sendFailure(ctx, conn, dto.TypeJoinRequestRoom, requestID.String(), err)
		return
	}

	if !canWatchRequest(identity, req) {
		g.sendFailure(ctx, conn, dto.TypeJoinRequestRoom, requestID.String(), types.ErrRoomAccessDenied)
		return
	}

	g.rooms.Join(RequestRoom(requestID), conn)
	g.sendAck(ctx, conn, dto.Ack{
		Type:      dto.TypeAck,
		Of:        dto.TypeJoinRequestRoom,
		RequestID: requestID.String(),
		Success:   true,
	})
}

// handleDriverLocationUpdate validates that the sender is the assigned
// driver, persists the point and broadcasts it. Live tracking smoothness
// beats strict write-before-broadcast ordering: if the write fails the point
// is still broadcast and the failure only logged.
func (g *Gateway) handleDriverLocationUpdate(ctx context.Context, identity *models.Identity, conn *ws.Conn, msg map[string]any) {
	ctx = wrap.WithAction(ctx, "driver_location_update")

	requestID, err := parseRequestID(msg)
	if err != nil {
		g.sendFailure(ctx, conn, dto.TypeDriverLocationUpdate, "", err)
		return
	}
	ctx = wrap.WithTripID(ctx, requestID.String())

	lat, latOK := toFloat(msg["lat"])
	lng, lngOK := toFloat(msg["lng"])
	if !latOK || !lngOK {
		g.sendFailure(ctx, conn, dto.TypeDriverLocationUpdate, requestID.String(),
			types.NewValidation("lat and lng must be numbers"))
		return
	}

	req, err := g.dispatch.Get(ctx, requestID)
	if err != nil {
		g.sendFailure(ctx, conn, dto.TypeDriverLocationUpdate, requestID.String(), err)
		return
	}
	if !isAssignedDriver(identity, req) {
		g.sendFailure(ctx, conn, dto.TypeDriverLocationUpdate, requestID.String(), types.ErrNotAssignedDriver)
		return
	}

	if _, err := g.dispatch.UpdateDriverLocation(ctx, requestID, lat, lng); err != nil {
		if isDomainError(err) {
			g.sendFailure(ctx, conn, dto.TypeDriverLocationUpdate, requestID.String(), err)
			return
		}
		// persistence failed; broadcast anyway so live tracking stays smooth
		g.l.Error(ctx, "location persist failed, broadcasting anyway", err)
		g.rooms.Broadcast(ctx, RequestRoom(requestID), dto.LocationUpdated{
			Type:      dto.TypeLocationUpdated,
			RequestID: requestID.String(),
			Lat:       lat,
			Lng:       lng,
			Timestamp: time.Now().UTC(),
		})
	}

	g.sendAck(ctx, conn, dto.Ack{
		Type:      dto.TypeAck,
		Of:        dto.TypeDriverLocationUpdate,
		RequestID: requestID.String(),
		Success:   true,
	})
}

func (g *Gateway) handleStatusChanged(ctx context.Context, e models.Event) error {
	evt, ok := e.(models.StatusChangedEvent)
	if !ok {
		return fmt.Errorf("gateway: unexpected event %T", e)
	}

	g.rooms.Broadcast(ctx, RequestRoom(evt.RequestID), dto.StatusUpdated{
		Type:      dto.TypeStatusUpdated,
		RequestID: evt.RequestID.String(),
		Status:    string(evt.NewStatus),
		Timestamp: evt.At,
		Extra:     map[string]string{"changedBy": evt.ChangedBy},
	})
	return nil
}

func (g *Gateway) handleDriverAssigned(ctx context.Context, e models.Event) error {
	evt, ok := e.(models.DriverAssignedEvent)
	if !ok {
		return fmt.Errorf("gateway: unexpected event %T", e)
	}

	g.rooms.Broadcast(ctx, RequestRoom(evt.RequestID), dto.DriverAssigned{
		Type:      dto.TypeDriverAssigned,
		RequestID: evt.RequestID.String(),
		DriverID:  evt.DriverID.String(),
		Driver:    evt.Driver,
		Timestamp: evt.At,
	})

	// direct push so the driver hears about it before joining the room
	g.rooms.Broadcast(ctx, DriverRoom(evt.DriverID), dto.NewAssignment{
		Type:      dto.TypeNewAssignment,
		RequestID: evt.RequestID.String(),
		Timestamp: evt.At,
	})
	return nil
}

func (g *Gateway) handleLocationUpdated(ctx context.Context, e models.Event) error {
	evt, ok := e.(models.LocationUpdatedEvent)
	if !ok {
		return fmt.Errorf("gateway: unexpected event %T", e)
	}

	g.rooms.Broadcast(ctx, RequestRoom(evt.RequestID), dto.LocationUpdated{
		Type:      dto.TypeLocationUpdated,
		RequestID: evt.RequestID.String(),
		Lat:       evt.Location.Lat,
		Lng:       evt.Location.Lng,
		Timestamp: evt.Location.UpdatedAt,
	})
	return nil
}

// Rooms exposes room membership for the HTTP layer and tests.
func (g *Gateway) Rooms() *Rooms {
	return g.rooms
}

func (g *Gateway) sendAck(ctx context.Context, conn *ws.Conn, ack dto.Ack) {
	if err := conn.Send(ack); err != nil {
		g.l.Warn(ctx, "failed to send ack", "error", err.Error())
	}
}

func (g *Gateway) sendFailure(ctx context.Context, conn *ws.Conn, of, requestID string, err error) {
	g.sendAck(ctx, conn, dto.Ack{
		Type:        dto.TypeAck,
		Of:          of,
		RequestID:   requestID,
		Success:     false,
		Code:        string(types.ErrCode(err)),
		Message:     err.Error(),
		UserMessage: types.UserMessage(err),
	})
}

func canWatchRequest(identity *models.Identity, req *models.Request) bool {
	if identity.Role.IsAdmin() {
		return true
	}
	if identity.UserID == req.OwnerID {
		return true
	}
	return isAssignedDriver(identity, req)
}

func isAssignedDriver(identity *models.Identity, req *models.Request) bool {
	return identity.IsDriver() && req.DriverID != nil && *identity.DriverID == *req.DriverID
}

func isDomainError(err error) bool {
	return types.ErrCode(err) != types.CodeInternal
}

func errorMessage(err error) dto.Error {
	return dto.Error{
		Type:        dto.TypeError,
		Code:        string(types.ErrCode(err)),
		Message:     err.Error(),
		UserMessage: types.UserMessage(err),
	}
}

// bearerToken extracts the credential from the Authorization header or the
// token query parameter. Browser websocket clients cannot set headers, so
// the query form is first-class.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if v, ok := strings.CutPrefix(h, "Bearer "); ok {
			return v
		}
		return h
	}
	return r.URL.Query().Get("token")
}

func parseRequestID(msg map[string]any) (uuid.UUID, error) {
	raw, _ := msg["requestId"].(string)
	if raw == "" {
		return uuid.Nil, types.NewValidation("requestId is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, types.NewValidation("requestId must be a valid uuid")
	}
	return id, nil
}

// toFloat accepts the numeric shapes encoding/json produces.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
