package gin

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/elevare/server/internal/domain/generation"
	"github.com/elevare/server/internal/port/inbound"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBuffer     = 32
)

// ConnectionGauge counts open stream connections.
type ConnectionGauge interface {
	Inc()
	Dec()
}

// StreamMessage is one frame pushed to a stream client.
type StreamMessage struct {
	Type     string                `json:"type"`
	Snapshot *generation.Snapshot  `json:"snapshot,omitempty"`
	States   []generation.Snapshot `json:"states,omitempty"`
}

// StreamHandler pushes generation state transitions over a websocket.
type StreamHandler struct {
	stream   inbound.GenerationStream
	gauge    ConnectionGauge
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewStreamHandler creates a new stream handler. An empty allowedOrigins
// list accepts any origin. gauge may be nil.
func NewStreamHandler(stream inbound.GenerationStream, gauge ConnectionGauge, allowedOrigins []string, logger *zap.Logger) *StreamHandler {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = struct{}{}
	}
	_, allowAll := origins["*"]

	return &StreamHandler{
		stream: stream,
		gauge:  gauge,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || allowAll || len(origins) == 0 {
					return true
				}
				_, ok := origins[origin]
				return ok
			},
		},
		logger: logger,
	}
}

// RegisterRoutes registers the stream route on an authenticated group.
func (h *StreamHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/generations/ws", h.Stream)
}

// Stream handles GET /generations/ws.
func (h *StreamHandler) Stream(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			zap.String("user_id", userID),
			zap.String("client_ip", c.ClientIP()),
			zap.Error(err),
		)
		return
	}

	if h.gauge != nil {
		h.gauge.Inc()
		defer h.gauge.Dec()
	}

	send := make(chan StreamMessage, sendBuffer)
	unsubscribe := h.stream.Subscribe(func(snap generation.Snapshot) {
		if snap.UserID != userID {
			return
		}
		select {
		case send <- StreamMessage{Type: "state", Snapshot: &snap}:
		default:
			// Slow consumer; the next transition or a reconnect resyncs it.
		}
	})
	defer unsubscribe()

	send <- StreamMessage{Type: "sync", States: h.stream.Snapshots(userID)}

	done := make(chan struct{})
	go h.readPump(conn, done)
	h.writePump(conn, send, done)

	h.logger.Debug("websocket client disconnected", zap.String("user_id", userID))
}

// readPump drains client frames so control messages are processed. It
// closes done when the connection ends.
func (h *StreamHandler) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (h *StreamHandler) writePump(conn *websocket.Conn, send <-chan StreamMessage, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case <-done:
			return
		case msg := <-send:
			data, err := json.Marshal(msg)
			if err != nil {
				h.logger.Error("encode stream message", zap.Error(err))
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
