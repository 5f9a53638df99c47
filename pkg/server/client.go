// Copyright © 2024 Niko Carpenter <niko@nikocarpenter.com>
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/n0ot/huddled/pkg/huddle"
	"github.com/n0ot/huddled/pkg/model"
)

// Time allowed to write a message to a client.
const writeWait = 10 * time.Second

// client connects one WebSocket to the huddle.
// The huddle owns send, and closes it when the client is unregistered.
type client struct {
	id   huddle.ConnectionID
	conn *websocket.Conn
	send chan model.Message
	srv  *Server
	log  *logrus.Entry
}

func (srv *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     srv.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		srv.Log.WithFields(logrus.Fields{
			"remote_addr": r.RemoteAddr,
			"error":       err,
		}).Debug("Cannot upgrade connection")
		return
	}

	c := &client{
		conn: conn,
		send: make(chan model.Message, srv.sendBufferSize()),
		srv:  srv,
	}
	c.id = srv.Huddle.Register(c.send)
	c.log = srv.Log.WithFields(logrus.Fields{
		"client": c.id,
	})
	c.log.WithFields(logrus.Fields{
		"remote_addr": r.RemoteAddr,
		"user_agent":  r.UserAgent(),
	}).Info("Client connected")

	go c.writePump()
	c.readPump()
}

// checkOrigin allows browsers from AllowedOrigins.
// Requests without an Origin header don't come from browsers, and are allowed.
func (srv *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(srv.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range srv.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// readPump reads messages from the WebSocket and handles them in order.
// When the connection fails, the client is unregistered.
func (c *client) readPump() {
	reason := "Client disconnected"
	defer func() {
		if c.srv.Huddle.Unregister(c.id, reason) {
			c.log.WithFields(logrus.Fields{
				"reason": reason,
			}).Info("Client left")
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.srv.maxMessageSize())
	pongWait := c.srv.pongWait()
	extendDeadline := func() {
		if pongWait > 0 {
			c.conn.SetReadDeadline(time.Now().Add(pongWait))
		}
	}
	extendDeadline()
	c.conn.SetPongHandler(func(string) error {
		extendDeadline()
		return nil
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				reason = "Connection lost"
				c.log.WithFields(logrus.Fields{
					"error": err,
				}).Debug("Read error")
			}
			return
		}
		extendDeadline()
		if msgType != websocket.TextMessage {
			c.sendError("expected a text message")
			continue
		}
		c.handleMessage(data)
	}
}

// writePump writes messages from the huddle to the WebSocket, and pings the client.
// It stops when the huddle closes send, or a write fails.
func (c *client) writePump() {
	var pingsCH <-chan time.Time
	if c.srv.TimeBetweenPings > 0 {
		ticker := time.NewTicker(c.srv.TimeBetweenPings)
		defer ticker.Stop()
		pingsCH = ticker.C
	}
	// Closing the connection also stops readPump.
	defer c.conn.Close()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.log.WithFields(logrus.Fields{
					"type":  msg.Message(),
					"error": err,
				}).Debug("Write error")
				return
			}
		case <-pingsCH:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendError tells the client something it sent was wrong.
func (c *client) sendError(reason string) {
	c.log.WithFields(logrus.Fields{
		"error": reason,
	}).Debug("Sending error to client")
	c.srv.Huddle.Send(c.id, model.NewErrorMessage(reason))
}
