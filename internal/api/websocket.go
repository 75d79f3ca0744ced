// websocket.go - WebSocket progress push for upload workflows
package api

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/driftgate/backend/internal/session"
)

// WebSocket message types
const (
	// Client -> Server messages
	MsgTypePing        = "ping"
	MsgTypeSubscribe   = "subscribe"
	MsgTypeUnsubscribe = "unsubscribe"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypePong      = "pong"
	MsgTypeProgress  = "progress"
	MsgTypeFiles     = "files"
	MsgTypeSettled   = "settled"
	MsgTypeError     = "error"
)

// WSMessage is the envelope for both directions
type WSMessage struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// WebSocketHandler pushes workflow progress over WebSocket connections
type WebSocketHandler struct {
	workflows *session.Manager
	upgrader  websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocket progress handler
func NewWebSocketHandler(workflows *session.Manager) *WebSocketHandler {
	return &WebSocketHandler{
		workflows: workflows,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from dev server
				return true
			},
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
		},
	}
}

// wsConn wraps a connection with a write lock so the pusher goroutine and
// the read loop's replies do not interleave frames.
type wsConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *wsConn) send(msg WSMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg.Timestamp = time.Now().UnixMilli()
	return c.ws.WriteJSON(msg)
}

// HandleWebSocket upgrades the connection and streams progress until the
// workflow settles or the client disconnects.
func (wsh *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	id := c.Param("workflowId")
	if _, ok := wsh.workflows.Get(id); !ok {
		return NewNotFoundError("workflow", id)
	}

	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	fmt.Printf("[WebSocket %.8s] Client connected\n", id)

	conn := &wsConn{ws: ws}
	conn.send(WSMessage{Type: MsgTypeConnected, Payload: map[string]string{"workflowId": id}})

	stop := make(chan bool)
	defer close(stop)
	go wsh.pushProgress(conn, id, stop)

	// Main message loop
	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				fmt.Printf("[WebSocket %.8s] Connection error: %v\n", id, err)
			}
			break
		}

		switch msg.Type {
		case MsgTypePing:
			conn.send(WSMessage{Type: MsgTypePong})
		case MsgTypeSubscribe, MsgTypeUnsubscribe:
			// Progress push is always on for the workflow in the path;
			// accept these for forward compatibility.
		default:
			conn.send(WSMessage{Type: MsgTypeError, Payload: "unknown message type: " + msg.Type})
		}
	}

	fmt.Printf("[WebSocket %.8s] Client disconnected\n", id)
	return nil
}

// pushProgress emits progress and file snapshots until the workflow settles.
func (wsh *WebSocketHandler) pushProgress(conn *wsConn, id string, stop chan bool) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			wf, ok := wsh.workflows.Get(id)
			if !ok {
				conn.send(WSMessage{Type: MsgTypeError, Payload: "workflow not found"})
				return
			}

			if err := conn.send(WSMessage{Type: MsgTypeProgress, Payload: wf.Progress()}); err != nil {
				return
			}
			conn.send(WSMessage{Type: MsgTypeFiles, Payload: wf.Registry().List()})

			if wf.Settled() {
				errMsg, successMsg := wf.Messages()
				conn.send(WSMessage{Type: MsgTypeSettled, Payload: map[string]interface{}{
					"result":  wf.Project(),
					"error":   errMsg,
					"success": successMsg,
				}})
				return
			}
		}
	}
}
