package websocket

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"fleet-track/internal/domain/account"
	"fleet-track/internal/domain/user"
	"fleet-track/internal/general/jwt"
)

// scopeFromQuery builds the watch scope from query parameters:
// either ?vehicle_id=X or ?company_id=C&route_id=R.
func scopeFromQuery(r *http.Request) (account.Scope, bool) {
	q := r.URL.Query()
	if vid := strings.TrimSpace(q.Get("vehicle_id")); vid != "" {
		return account.VehicleScope(vid), true
	}

	companyID := strings.TrimSpace(q.Get("company_id"))
	routeID := strings.TrimSpace(q.Get("route_id"))
	if companyID != "" && routeID != "" {
		return account.FleetScope(companyID, routeID), true
	}
	return account.Scope{}, false
}

// ConnectWatcher handles WebSocket connections from readers following
// live positions. After the auth frame the gateway sends the current
// snapshot of the requested scope, then streams position frames until
// the client disconnects or the subscription is revoked.
func (gw *Gateway) ConnectWatcher(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFromQuery(r)
	if !ok {
		http.Error(w, `{"error":"watch scope required: vehicle_id or company_id+route_id"}`, http.StatusBadRequest)
		return
	}

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

	res, err := jwt.ValidateWSAuth(firstFrame, gw.jwtMgr, user.RoleVehicle, user.RoleDispatcher, user.RoleAdmin)
	if err != nil {
		gw.logger.Error(r.Context(), "ws_auth_failed", "Invalid auth message or token", err, nil)
		_ = gw.sendAuthError(conn, "authentication failed: invalid token")
		return
	}
	readerID := res.Claims.Subject
	role := res.Claims.Role

	if err := gw.sendAuthSuccess(conn, readerID); err != nil {
		return
	}

	ctx := gw.logger.WithUserID(r.Context(), readerID)

	// subCtx outlives individual frames; cancelling it tears the
	// subscription down when this handler returns.
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sub, err := gw.svc.Subscribe(subCtx, readerID, role, scope)
	if err != nil {
		gw.logger.Error(ctx, "ws_subscribe_failed", "Failed to open watch", err, nil)
		gw.sendErrorCode(conn, err)
		return
	}
	defer gw.svc.Unsubscribe(sub.ID)

	snapshot, err := gw.svc.Snapshot(subCtx, readerID, role, scope)
	if err != nil {
		gw.logger.Error(ctx, "ws_snapshot_failed", "Failed to load snapshot", err, nil)
		gw.sendErrorCode(conn, err)
		return
	}
	if err := gw.writeJSON(conn, map[string]any{
		"type":      "snapshot",
		"scope":     scope.String(),
		"positions": snapshot,
	}); err != nil {
		return
	}

	gw.logger.Info(ctx, "ws_watch_opened", "Watcher connected on "+scope.String(), nil)

	_ = conn.SetReadDeadline(time.Now().Add(wsReadIdle))
	conn.SetPongHandler(func(_ string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadIdle))
	})

	stopPing := make(chan struct{})
	defer close(stopPing)
	gw.startPingLoop(conn, stopPing)

	// drain inbound frames so pings/pongs and close frames are
	// processed; watchers send nothing else.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			_ = conn.SetReadDeadline(time.Now().Add(wsReadIdle))
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-readerDone:
			gw.logger.Info(ctx, "ws_connection_closed", "Watcher connection closed", nil)
			return

		case view, open := <-sub.Updates:
			if !open {
				// revoked by the revalidation loop or service shutdown
				_ = gw.writeJSON(conn, map[string]any{
					"type":  "error",
					"code":  "SCOPE_FORBIDDEN",
					"error": "watch revoked",
				})
				gw.wsWriteClose(conn, websocket.ClosePolicyViolation, "watch revoked")
				return
			}
			if err := gw.writeJSON(conn, map[string]any{
				"type":     "position",
				"position": view,
			}); err != nil {
				return
			}
		}
	}
}
