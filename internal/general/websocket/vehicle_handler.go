package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"fleet-track/internal/domain/account"
	"fleet-track/internal/domain/geo"
	"fleet-track/internal/domain/session"
	"fleet-track/internal/domain/user"
	"fleet-track/internal/general/jwt"
	"fleet-track/internal/ports"
)

// errorCode maps service errors to the stable codes sent to clients.
func errorCode(err error) string {
	switch {
	case errors.Is(err, ports.ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, account.ErrInactive):
		return "ACCOUNT_INACTIVE"
	case errors.Is(err, session.ErrNotActive):
		return "SESSION_NOT_ACTIVE"
	case errors.Is(err, geo.ErrStaleUpdate):
		return "STALE_UPDATE"
	case errors.Is(err, ports.ErrScopeForbidden):
		return "SCOPE_FORBIDDEN"
	case ports.IsTransient(err):
		return "TRANSIENT"
	default:
		return "INVALID_REQUEST"
	}
}

func (gw *Gateway) sendErrorCode(conn *websocket.Conn, err error) {
	_ = gw.writeJSON(conn, map[string]any{
		"type":  "error",
		"code":  errorCode(err),
		"error": err.Error(),
	})
}

// ConnectVehicle handles WebSocket connections from vehicles.
// Protocol: first frame is the auth message, then the vehicle drives
// its session with start_session / position_update / stop_session.
func (gw *Gateway) ConnectVehicle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		gw.logger.Error(r.Context(), "websocket_upgrade_failed", "Failed to upgrade to WebSocket", err, nil)
		return
	}
	defer conn.Close()
	defer gw.writeLocks.Delete(conn)

	conn.SetReadLimit(1 << 20) // 1 MiB
	if err := conn.SetReadDeadline(time.Now().Add(wsAuthWindow)); err != nil {
		gw.logger.Error(r.Context(), "ws_set_deadline_failed", "Failed to set initial read deadline", err, nil)
		_ = gw.sendAuthError(conn, "internal server error")
		return
	}

	msgType, firstFrame, err := conn.ReadMessage()
	if err != nil {
		gw.logger.Error(r.Context(), "ws_auth_read_failed", "Failed to read auth message", err, nil)
		_ = gw.sendAuthError(conn, "authentication timeout: please send auth message within 5 seconds")
		return
	}
	if msgType != websocket.TextMessage {
		_ = gw.sendAuthError(conn, "auth message must be in text format")
		return
	}

	res, err := jwt.ValidateWSAuth(firstFrame, gw.jwtMgr, user.RoleVehicle)
	if err != nil {
		gw.logger.Error(r.Context(), "ws_auth_failed", "Invalid auth message or token", err, nil)
		_ = gw.sendAuthError(conn, "authentication failed: invalid token")
		return
	}

	// path param must match the subject in claims
	if vid := r.PathValue("vehicle_id"); vid != "" && vid != res.Claims.Subject {
		gw.logger.Error(r.Context(), "ws_auth_failed", "Vehicle ID mismatch", nil, map[string]any{
			"path_vehicle_id": vid,
			"token_subject":   res.Claims.Subject,
		})
		_ = gw.sendAuthError(conn, "vehicle ID mismatch")
		return
	}
	vehicleID := res.Claims.Subject

	if err := gw.sendAuthSuccess(conn, vehicleID); err != nil {
		return
	}

	ctx := gw.logger.WithUserID(r.Context(), vehicleID)
	gw.logger.Info(ctx, "ws_connected", "Vehicle WebSocket connected", nil)

	_ = conn.SetReadDeadline(time.Now().Add(wsReadIdle))
	conn.SetPongHandler(func(_ string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadIdle))
	})

	stopPing := make(chan struct{})
	defer close(stopPing)
	gw.startPingLoop(conn, stopPing)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadIdle))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				gw.logger.Error(ctx, "ws_unexpected_close", "Vehicle connection closed unexpectedly", err, nil)
				gw.wsWriteClose(conn, websocket.CloseInternalServerErr, "internal error")
			} else {
				gw.logger.Info(ctx, "ws_connection_closed", "Vehicle connection closed normally", nil)
				gw.wsWriteClose(conn, websocket.CloseNormalClosure, "bye")
			}
			return
		}

		var msg struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(payload, &msg); err != nil {
			gw.sendError(conn, "bad json")
			continue
		}

		switch msg.Type {
		case "start_session":
			gw.handleStartSession(ctx, conn, vehicleID)
		case "position_update":
			gw.handlePositionUpdate(ctx, conn, vehicleID, msg.Data)
		case "stop_session":
			gw.handleStopSession(ctx, conn, vehicleID)
		default:
			gw.sendError(conn, "unknown message type")
		}
	}
}

func (gw *Gateway) handleStartSession(ctx context.Context, conn *websocket.Conn, vehicleID string) {
	callCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := gw.svc.StartSession(callCtx, vehicleID)
	if err != nil {
		gw.logger.Error(ctx, "ws_start_session_failed", "Failed to start session", err, nil)
		gw.sendErrorCode(conn, err)
		return
	}

	_ = gw.writeJSON(conn, map[string]any{
		"type":                  "session_started",
		"state":                 res.State,
		"started_at":            res.StartedAt,
		"publish_interval_hint": res.PublishIntervalHint,
	})
}

func (gw *Gateway) handleStopSession(ctx context.Context, conn *websocket.Conn, vehicleID string) {
	callCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := gw.svc.StopSession(callCtx, vehicleID)
	if err != nil {
		gw.logger.Error(ctx, "ws_stop_session_failed", "Failed to stop session", err, nil)
		gw.sendErrorCode(conn, err)
		return
	}

	_ = gw.writeJSON(conn, map[string]any{
		"type":       "session_stopped",
		"state":      res.State,
		"stopped_at": res.StoppedAt,
	})
}

func (gw *Gateway) handlePositionUpdate(ctx context.Context, conn *websocket.Conn, vehicleID string, raw json.RawMessage) {
	var p struct {
		Latitude   float64   `json:"latitude"`
		Longitude  float64   `json:"longitude"`
		RecordedAt time.Time `json:"recorded_at"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		gw.sendError(conn, "bad position_update payload")
		return
	}
	if p.RecordedAt.IsZero() {
		p.RecordedAt = time.Now().UTC()
	}

	callCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := gw.svc.PublishPosition(callCtx, ports.PublishPositionInput{
		UserID:     vehicleID,
		Latitude:   p.Latitude,
		Longitude:  p.Longitude,
		RecordedAt: p.RecordedAt,
	})
	if err != nil {
		gw.logger.Error(ctx, "ws_position_update_failed", "Failed to publish position", err, nil)
		gw.sendErrorCode(conn, err)
		return
	}

	_ = gw.writeJSON(conn, map[string]any{
		"type":        "position_ack",
		"recorded_at": res.RecordedAt,
		"updated_at":  res.UpdatedAt,
	})
}
