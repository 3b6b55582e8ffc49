package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"fleet-track/internal/general/jwt"
	"fleet-track/internal/ports"
)

// --- Request DTO (HTTP boundary) ---

type publishPositionRequest struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	RecordedAt time.Time `json:"recorded_at"`
}

// ----- Handler: POST /vehicles/{vehicle_id}/position -----

func (handler *TrackerHTTPHandler) handlePublishPosition(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		handler.httpError(ctx, w, http.StatusUnsupportedMediaType, "Content-Type must be application/json", nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MiB
	defer r.Body.Close()

	vehicleID, ok := handler.vehicleFromRequest(ctx, w, r)
	if !ok {
		return
	}

	// decode strictly
	var req publishPositionRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			handler.httpError(ctx, w, http.StatusRequestEntityTooLarge, "request body too large", err)
			return
		}
		handler.httpError(ctx, w, http.StatusBadRequest, "invalid JSON body", err)
		return
	}

	if req.RecordedAt.IsZero() {
		req.RecordedAt = time.Now().UTC()
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := handler.svc.PublishPosition(ctxWithTimeout, ports.PublishPositionInput{
		UserID:     vehicleID,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		RecordedAt: req.RecordedAt,
	})
	if err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, res)
}

// ----- Handler: GET /vehicles/{vehicle_id}/position -----

func (handler *TrackerHTTPHandler) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	vehicleID := strings.TrimSpace(r.PathValue("vehicle_id"))
	if vehicleID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "missing vehicle_id in path", nil)
		return
	}

	claims := jwt.RequireClaims(r)
	if claims == nil {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := handler.svc.GetPosition(ctxWithTimeout, claims.Subject, claims.Role, vehicleID)
	if err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, res)
}
