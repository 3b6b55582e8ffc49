package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"fleet-track/internal/general/jwt"
	"fleet-track/internal/general/logger"
	"fleet-track/internal/ports"
)

const (
	wsWriteTimeout   = 5 * time.Second
	wsCloseAckWindow = 2 * time.Second
	ctrlTimeout      = 5 * time.Second
	wsReadIdle       = 60 * time.Second
	wsPingInterval   = 30 * time.Second
	wsAuthWindow     = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Gateway handles WebSocket connections with JWT first-frame auth.
type Gateway struct {
	logger     *logger.Logger
	jwtMgr     *jwt.Manager
	svc        ports.TrackerService
	writeLocks sync.Map // key: *websocket.Conn -> *sync.Mutex
}

// NewGateway creates the WebSocket gateway for the tracker service.
func NewGateway(logger *logger.Logger, jwtMgr *jwt.Manager, svc ports.TrackerService) *Gateway {
	return &Gateway{logger: logger, jwtMgr: jwtMgr, svc: svc}
}
