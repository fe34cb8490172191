// Package gateway carries the line protocol over WebSocket: every text frame
// from the browser is one command line and every reply goes back as one text
// frame, without the fixed-size padding of the TCP transport.
package gateway

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-orderbook/cmd/stockserver/internal/session"
	"github.com/shubham-shewale/stock-orderbook/pkg/protocol"
)

const (
	maxMessageSize = protocol.DefaultMessageSize
)

type LineHandler interface {
	Dispatch(ctx context.Context, sessionID, line string) session.Reply
	Terminate(ctx context.Context, sessionID string)
}

type ClientAdapter struct {
	conn    net.Conn
	handler LineHandler
	session string
	send    chan []byte
	done    chan struct{} // closed when writePump exits
	logger  *zap.Logger

	writeWait  time.Duration
	pongWait   time.Duration
	pingPeriod time.Duration
}

func NewClient(conn net.Conn, h LineHandler, logger *zap.Logger) *ClientAdapter {
	id := session.NewSessionID()
	return &ClientAdapter{
		conn:       conn,
		handler:    h,
		session:    id,
		send:       make(chan []byte, 16),
		done:       make(chan struct{}),
		logger:     logger.With(zap.String("session", id), zap.String("transport", "ws")),
		writeWait:  5 * time.Second,
		pongWait:   60 * time.Second,
		pingPeriod: 50 * time.Second,
	}
}

func (c *ClientAdapter) Start(ctx context.Context) {
	c.logger.Info("Session started", zap.Stringer("remote", c.conn.RemoteAddr()))
	go c.writePump()
	go c.readPump(ctx)
}

func (c *ClientAdapter) ID() string { return c.session }

func (c *ClientAdapter) readPump(ctx context.Context) {
	stop := context.AfterFunc(ctx, func() { c.conn.Close() })
	defer func() {
		stop()
		c.handler.Terminate(ctx, c.session)
		close(c.send) // writePump sends the close frame and closes conn
	}()

	c.conn.SetReadDeadline(time.Now().Add(c.pongWait))

	for {
		header, err := ws.ReadHeader(c.conn)
		if err != nil {
			break
		}

		if header.Length > int64(maxMessageSize) {
			c.logger.Warn("Msg too big", zap.Int64("size", header.Length))
			break
		}

		if !header.Fin {
			c.logger.Warn("Client sent fragmented message (not supported)")
			break
		}

		payload := make([]byte, header.Length)
		if _, err := io.ReadFull(c.conn, payload); err != nil {
			break
		}

		if header.Masked {
			ws.Cipher(payload, header.Mask, 0)
		}

		c.conn.SetReadDeadline(time.Now().Add(c.pongWait))

		switch header.OpCode {
		case ws.OpClose:
			return
		case ws.OpPong, ws.OpPing:
			continue
		case ws.OpText:
			c.logger.Debug("server received bytes", zap.Int("bytes", len(payload)))
			reply := c.handler.Dispatch(ctx, c.session, string(payload))
			select {
			case c.send <- []byte(reply.Text):
			case <-c.done:
				return
			}
			if reply.Terminate {
				return
			}
		}
	}
}

func (c *ClientAdapter) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		close(c.done)
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if !ok {
				c.conn.Write(ws.CompiledClose)
				return
			}
			if err := wsutil.WriteServerText(c.conn, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := wsutil.WriteServerMessage(c.conn, ws.OpPing, nil); err != nil {
				return
			}
		}
	}
}

// Handler upgrades requests on /ws and runs a session per connection until
// ctx is cancelled.
func Handler(ctx context.Context, h LineHandler, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			logger.Debug("Upgrade failed", zap.Error(err))
			return
		}
		NewClient(conn, h, logger).Start(ctx)
	})
	return mux
}
