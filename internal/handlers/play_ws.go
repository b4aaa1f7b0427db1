// internal/handlers/play_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/duel/internal/middleware"
	"github.com/jason-s-yu/duel/internal/models"
	"github.com/jason-s-yu/duel/internal/session"
	"github.com/sirupsen/logrus"
)

// Subprotocol is the websocket subprotocol clients must request.
const Subprotocol = "duel"

const (
	pingInterval = 30 * time.Second
	pingTimeout  = 15 * time.Second
	writeTimeout = 5 * time.Second
)

// WSOptions tunes the play handler.
type WSOptions struct {
	OriginPatterns []string
	OutBuffer      int
}

// PlayWSHandler accepts a client, gives it a fresh connection id and feeds its
// packets to the dispatcher until the socket closes. The dispatcher always
// sees a Disconnect for every connection it has seen anything else from.
func PlayWSHandler(logger *logrus.Logger, hub *Hub, d *session.Dispatcher, opts WSOptions) http.HandlerFunc {
	if opts.OutBuffer < 1 {
		opts.OutBuffer = 32
	}
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{Subprotocol},
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != Subprotocol {
			c.Close(BadSubprotocolError, "client must speak the duel subprotocol")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		conn := &Connection{
			ID:      models.ConnID(uuid.NewString()),
			Remote:  r.RemoteAddr,
			Cancel:  cancel,
			OutChan: make(chan models.Notification, opts.OutBuffer),
		}
		log := logger.WithField("conn", conn.ID)

		hub.Register(conn)
		middleware.LogWebSocketConnect(log, r.RemoteAddr)

		go writePump(ctx, c, conn, log)
		readErr := readPump(ctx, c, conn, hub, d, log)

		// ---- cleanup after readPump exits ----
		cancel()
		if err := d.Submit(context.Background(), session.Disconnect{Conn: conn.ID}); err != nil {
			log.Warnf("could not reconcile disconnect: %v", err)
		}
		hub.Unregister(conn.ID)
		middleware.LogWebSocketDisconnect(log, r.RemoteAddr, readErr)

		if errors.Is(readErr, session.ErrStopped) {
			c.Close(DispatcherDownError, "server shutting down")
			return
		}
		c.Close(websocket.StatusNormalClosure, "")
	}
}

// readPump decodes client packets and submits them to the dispatcher.
// It returns the error that ended the loop, nil for a normal close.
func readPump(ctx context.Context, c *websocket.Conn, conn *Connection, hub *Hub, d *session.Dispatcher, log *logrus.Entry) error {
	for {
		typ, msg, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			log.Warnf("ignoring non-text message type %d", typ)
			continue
		}

		var p Packet
		if err := json.Unmarshal(msg, &p); err != nil {
			log.Debugf("invalid json: %v", err)
			hub.Notify(conn.ID, models.Notification{Type: models.NoteError, Message: "invalid JSON format"})
			continue
		}
		ev, err := decodeEvent(conn.ID, p)
		if err != nil {
			log.WithField("type", p.Type).Debugf("rejected packet: %v", err)
			hub.Notify(conn.ID, models.Notification{Type: models.NoteError, Message: err.Error()})
			continue
		}
		if err := d.Submit(ctx, ev); err != nil {
			if errors.Is(err, session.ErrStopped) {
				return err
			}
			return nil
		}
	}
}

// writePump drains OutChan onto the socket and keeps it alive with pings.
func writePump(ctx context.Context, c *websocket.Conn, conn *Connection, log *logrus.Entry) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-conn.OutChan:
			if !ok {
				return
			}
			data, err := json.Marshal(n)
			if err != nil {
				log.Warnf("failed to marshal outgoing %s: %v", n.Type, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				log.Warnf("failed to write to websocket: %v", err)
				conn.Cancel()
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				log.Warnf("ping failed, assuming disconnect: %v", err)
				conn.Cancel()
				return
			}
		}
	}
}
