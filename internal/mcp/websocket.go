// File: internal/mcp/websocket.go
package mcp

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize  = 64 << 10
	sendChannelSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Local assistants connect from arbitrary origins; the listener is expected
	// to be bound to loopback.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsClient is one websocket connection. Each command runs in its own goroutine
// so a slow scorecard does not block a ping.
type wsClient struct {
	server *Server
	conn   *websocket.Conn
	send   chan CommandResponse
	wg     sync.WaitGroup
}

func (s *Server) handleToolStream() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Error("Failed to upgrade connection to WebSocket", zap.Error(err))
			return
		}
		s.logger.Info("WebSocket connection established.", zap.String("remoteAddr", r.RemoteAddr))

		client := &wsClient{
			server: s,
			conn:   conn,
			send:   make(chan CommandResponse, sendChannelSize),
		}
		done := make(chan struct{})
		go func() {
			client.writePump()
			close(done)
		}()

		ctx, cancel := context.WithCancel(r.Context())
		client.readPump(ctx)
		cancel()
		client.wg.Wait()
		close(client.send)
		<-done
	}
}

func (c *wsClient) readPump(ctx context.Context) {
	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.server.logger.Error("Failed to set initial read deadline", zap.Error(err))
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var req CommandRequest
		if err := c.conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.server.logger.Warn("WebSocket closed unexpectedly", zap.Error(err))
			}
			return
		}
		if req.RequestID == "" {
			req.RequestID = uuid.NewString()
		}

		c.wg.Add(1)
		go func(req CommandRequest) {
			defer c.wg.Done()
			cmdCtx := context.WithValue(ctx, middleware.RequestIDKey, req.RequestID)
			if timeout := c.server.cfg.MCP().RequestTimeout; timeout > 0 {
				var cancel context.CancelFunc
				cmdCtx, cancel = context.WithTimeout(cmdCtx, timeout)
				defer cancel()
			}
			_, resp := c.server.handlers.execute(cmdCtx, req)
			resp.RequestID = req.RequestID
			select {
			case c.send <- resp:
			case <-ctx.Done():
			}
		}(req)
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case resp, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(resp); err != nil {
				c.server.logger.Error("Error writing JSON message to WebSocket", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
