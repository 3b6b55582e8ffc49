package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"fleet-track/internal/domain/user"
	"fleet-track/internal/general/jwt"
	"fleet-track/internal/general/logger"
	"fleet-track/internal/ports"
)

// FleetboardHTTPHandler adapts HTTP requests to the FleetboardService.
type FleetboardHTTPHandler struct {
	svc    ports.FleetboardService
	logger *logger.Logger
	auth   *jwt.Manager
}

// NewFleetboardHTTPHandler wires an HTTP handler around the FleetboardService.
func NewFleetboardHTTPHandler(svc ports.FleetboardService, logger *logger.Logger, auth *jwt.Manager) *FleetboardHTTPHandler {
	return &FleetboardHTTPHandler{svc: svc, logger: logger, auth: auth}
}

// RegisterRoutes mounts fleetboard endpoints on the provided mux.
func (handler *FleetboardHTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /fleet/overview",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleDispatcher, user.RoleAdmin)(handler.handleOverview),
	)
	mux.HandleFunc("GET /fleet/live",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleDispatcher, user.RoleAdmin)(handler.handleLive),
	)
	mux.HandleFunc("GET /fleet/health", handler.handleHealth)
}

// ----- general helpers -----

// jsonResponse takes any type of data and encodes it to the HTTP response.
func (handler *FleetboardHTTPHandler) jsonResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
	// encode to buffer first so we can control status on failure
	var buf []byte
	var err error

	if data != nil {
		buf, err = json.Marshal(data)
		if err != nil {
			handler.logger.Error(ctx, "response_encode_failed", "Failed to encode response", err, nil)
			http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
			return
		}
	} else {
		buf = []byte("{}")
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}

// httpError sends a JSON error response with a message.
func (handler *FleetboardHTTPHandler) httpError(ctx context.Context, w http.ResponseWriter, status int, msg string, err error) {
	action := "request_failed"
	if status >= 500 {
		action = "http_internal_error"
	} else if status == http.StatusBadRequest {
		action = "validation_failed"
	}
	handler.logger.Error(ctx, action, msg, err, nil)

	type errBody struct {
		Error string `json:"error"`
	}
	handler.jsonResponse(ctx, w, status, errBody{Error: msg})
}

// withReqID extracts or generates a request ID and adds it to the context.
func (handler *FleetboardHTTPHandler) withReqID(ctx context.Context, r *http.Request) context.Context {
	reqID := r.Header.Get("X-Request-ID")
	if strings.TrimSpace(reqID) == "" {
		reqID = randID()
	}
	return handler.logger.WithRequestID(ctx, reqID)
}

// randID generates a random 24-char hex string suitable for request IDs.
func randID() string {
	var b [12]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
