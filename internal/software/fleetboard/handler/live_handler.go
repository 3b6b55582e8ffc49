package handler

import (
	"net/http"
	"time"

	"fleet-track/internal/ports"
)

type liveResponse struct {
	Timestamp time.Time           `json:"timestamp"`
	Count     int                 `json:"count"`
	Vehicles  []ports.LiveVehicle `json:"vehicles"`
}

// --- Handler: GET /fleet/live ---

func (handler *FleetboardHTTPHandler) handleLive(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	vehicles := handler.svc.LiveVehicles()

	handler.jsonResponse(ctx, w, http.StatusOK, liveResponse{
		Timestamp: time.Now().UTC(),
		Count:     len(vehicles),
		Vehicles:  vehicles,
	})
}
