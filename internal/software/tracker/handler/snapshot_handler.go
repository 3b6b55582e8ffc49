package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"fleet-track/internal/domain/account"
	"fleet-track/internal/general/jwt"
	"fleet-track/internal/ports"
)

type snapshotResponse struct {
	Scope     string               `json:"scope"`
	Count     int                  `json:"count"`
	Positions []ports.PositionView `json:"positions"`
}

// ----- Handler: GET /fleet/{company_id}/routes/{route_id}/positions -----

func (handler *TrackerHTTPHandler) handleFleetSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	companyID := strings.TrimSpace(r.PathValue("company_id"))
	routeID := strings.TrimSpace(r.PathValue("route_id"))
	if companyID == "" || routeID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "missing company_id or route_id in path", nil)
		return
	}

	claims := jwt.RequireClaims(r)
	if claims == nil {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return
	}

	scope := account.FleetScope(companyID, routeID)

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	views, err := handler.svc.Snapshot(ctxWithTimeout, claims.Subject, claims.Role, scope)
	if err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, snapshotResponse{
		Scope:     scope.String(),
		Count:     len(views),
		Positions: views,
	})
}
