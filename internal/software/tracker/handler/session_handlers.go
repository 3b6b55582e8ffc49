package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"fleet-track/internal/general/jwt"
)

// vehicleFromRequest returns the path vehicle_id after checking it
// against the token subject.
func (handler *TrackerHTTPHandler) vehicleFromRequest(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, bool) {
	vehicleID := strings.TrimSpace(r.PathValue("vehicle_id"))
	if vehicleID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "missing vehicle_id in path", nil)
		return "", false
	}

	claims := jwt.RequireClaims(r)
	if claims == nil {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return "", false
	}

	if claims.Role.IsVehicle() {
		sub := strings.TrimSpace(claims.Subject)
		if sub == "" || sub != vehicleID {
			handler.httpError(ctx, w, http.StatusForbidden, "vehicle_id does not match token subject", errors.New("vehicle/token mismatch"))
			return "", false
		}
	}

	return vehicleID, true
}

// ----- Handler: POST /vehicles/{vehicle_id}/session/start -----

func (handler *TrackerHTTPHandler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	vehicleID, ok := handler.vehicleFromRequest(ctx, w, r)
	if !ok {
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := handler.svc.StartSession(ctxWithTimeout, vehicleID)
	if err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, res)
}

// ----- Handler: POST /vehicles/{vehicle_id}/session/stop -----

func (handler *TrackerHTTPHandler) handleStopSession(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	vehicleID, ok := handler.vehicleFromRequest(ctx, w, r)
	if !ok {
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := handler.svc.StopSession(ctxWithTimeout, vehicleID)
	if err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, res)
}
