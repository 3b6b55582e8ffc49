package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"fleet-track/internal/domain/account"
	"fleet-track/internal/domain/geo"
	"fleet-track/internal/domain/session"
	"fleet-track/internal/domain/user"
	"fleet-track/internal/general/jwt"
	"fleet-track/internal/general/logger"
	"fleet-track/internal/general/websocket"
	"fleet-track/internal/ports"
)

// TrackerHTTPHandler adapts HTTP requests to the TrackerService.
type TrackerHTTPHandler struct {
	svc     ports.TrackerService
	logger  *logger.Logger
	auth    *jwt.Manager
	gateway *websocket.Gateway
}

// NewTrackerHTTPHandler wires an HTTP handler around the TrackerService.
func NewTrackerHTTPHandler(
	svc ports.TrackerService,
	logger *logger.Logger,
	auth *jwt.Manager,
	gateway *websocket.Gateway,
) *TrackerHTTPHandler {
	return &TrackerHTTPHandler{svc: svc, logger: logger, auth: auth, gateway: gateway}
}

// RegisterRoutes mounts tracker endpoints on the provided mux.
func (handler *TrackerHTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /vehicles/{vehicle_id}/session/start",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleVehicle)(handler.handleStartSession),
	)
	mux.HandleFunc("POST /vehicles/{vehicle_id}/session/stop",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleVehicle)(handler.handleStopSession),
	)
	mux.HandleFunc("POST /vehicles/{vehicle_id}/position",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleVehicle)(handler.handlePublishPosition),
	)
	mux.HandleFunc("GET /vehicles/{vehicle_id}/position",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleVehicle, user.RoleDispatcher, user.RoleAdmin)(handler.handleGetPosition),
	)
	mux.HandleFunc("GET /fleet/{company_id}/routes/{route_id}/positions",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleVehicle, user.RoleDispatcher, user.RoleAdmin)(handler.handleFleetSnapshot),
	)

	// WebSocket endpoints authenticate via the first frame
	mux.HandleFunc("GET /ws/vehicle/{vehicle_id}", handler.gateway.ConnectVehicle)
	mux.HandleFunc("GET /ws/watch", handler.gateway.ConnectWatcher)

	mux.HandleFunc("GET /vehicles/health", handler.handleHealth)
	mux.HandleFunc("POST /tokens", handler.handleCreateToken)
}

// ----- error mapping -----

type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// serviceError translates service errors into the documented status
// codes and stable error identifiers.
func (handler *TrackerHTTPHandler) serviceError(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	code := "INVALID_REQUEST"

	switch {
	case errors.Is(err, ports.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, account.ErrInactive):
		status, code = http.StatusForbidden, "ACCOUNT_INACTIVE"
	case errors.Is(err, session.ErrNotActive):
		status, code = http.StatusConflict, "SESSION_NOT_ACTIVE"
	case errors.Is(err, geo.ErrStaleUpdate):
		status, code = http.StatusConflict, "STALE_UPDATE"
	case errors.Is(err, ports.ErrScopeForbidden):
		status, code = http.StatusForbidden, "SCOPE_FORBIDDEN"
	case ports.IsTransient(err):
		status, code = http.StatusServiceUnavailable, "TRANSIENT"
	}

	action := "request_failed"
	if status >= 500 {
		action = "dependency_unavailable"
	}
	handler.logger.Error(ctx, action, err.Error(), err, map[string]any{"code": code})

	handler.jsonResponse(ctx, w, status, errorResponse{Code: code, Error: err.Error()})
}

// ----- token endpoint (dev and test tooling) -----

type TokenRequest struct {
	UserID string    `json:"user_id"`
	Role   user.Role `json:"role"`
}

type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
	Role      user.Role `json:"role"`
}

func (handler *TrackerHTTPHandler) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if strings.TrimSpace(req.UserID) == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "user_id is required", nil)
		return
	}
	if !req.Role.Valid() {
		handler.httpError(ctx, w, http.StatusBadRequest, "role must be VEHICLE, DISPATCHER or ADMIN", nil)
		return
	}

	tokenString, claims, err := handler.auth.IssueUserToken(req.UserID, req.Role)
	if err != nil {
		handler.httpError(ctx, w, http.StatusInternalServerError, "Failed to generate token", err)
		return
	}

	handler.logger.Info(ctx, "token_generated", "JWT token generated successfully",
		map[string]any{"user_id": req.UserID, "role": req.Role.String()})

	handler.jsonResponse(ctx, w, http.StatusCreated, TokenResponse{
		Token:     tokenString,
		ExpiresAt: claims.ExpiresAt.Time,
		UserID:    req.UserID,
		Role:      req.Role,
	})
}

// ----- general helpers -----

// jsonResponse takes any type of data and encodes it to the HTTP response.
func (handler *TrackerHTTPHandler) jsonResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
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
func (handler *TrackerHTTPHandler) httpError(ctx context.Context, w http.ResponseWriter, status int, msg string, err error) {
	action := "request_failed"
	if status >= 500 {
		action = "http_internal_error"
	} else if status == http.StatusBadRequest {
		action = "validation_failed"
	} else if status == http.StatusUnsupportedMediaType {
		action = "unsupported_media_type"
	}
	handler.logger.Error(ctx, action, msg, err, nil)

	type errBody struct {
		Error string `json:"error"`
	}
	handler.jsonResponse(ctx, w, status, errBody{Error: msg})
}

// withReqID extracts or generates a request ID and adds it to the context.
func (handler *TrackerHTTPHandler) withReqID(ctx context.Context, r *http.Request) context.Context {
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
