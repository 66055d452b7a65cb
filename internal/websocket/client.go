// Cubetrack - Live Location Mirror for a Roaming Art Installation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubetrack

package websocket

import (
	"io"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/cubetrack/internal/logging"
	"github.com/tomtom215/cubetrack/internal/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Viewers have nothing to say. Anything larger than a stray frame ends
	// the connection.
	maxInboundSize = 512
)

var clientIDCounter atomic.Uint64

// Client is one map viewer. It only receives: the hub hands it the latest
// location and the write side pushes it out. A viewer that falls behind
// skips intermediate positions instead of queueing them.
type Client struct {
	id   uint64
	hub  *Hub
	conn *websocket.Conn

	// send holds at most the one location not yet written.
	send chan Message

	delivered  atomic.Uint64
	superseded atomic.Uint64
}

// NewClient wraps an upgraded connection.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:   clientIDCounter.Add(1),
		hub:  hub,
		conn: conn,
		send: make(chan Message, 1),
	}
}

// ID returns the client's broadcast order key.
func (c *Client) ID() uint64 {
	return c.id
}

// offer queues m, replacing a location the client has not written yet.
// Only the hub goroutine calls it, so the drain-then-send never races another
// producer.
func (c *Client) offer(m Message) {
	select {
	case c.send <- m:
		return
	default:
	}
	select {
	case <-c.send:
		c.superseded.Add(1)
		metrics.WSErrors.WithLabelValues("superseded").Inc()
	default:
	}
	select {
	case c.send <- m:
	default:
	}
}

// drain discards inbound frames so gorilla processes control frames (pong,
// close). It unregisters the client when the connection ends.
func (c *Client) drain() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxInboundSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, r, err := c.conn.NextReader()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				metrics.WSErrors.WithLabelValues("read").Inc()
				logging.Debug().Err(err).Uint64("client_id", c.id).Msg("websocket viewer dropped")
			}
			return
		}
		if _, err := io.Copy(io.Discard, r); err != nil {
			return
		}
	}
}

// push writes each offered location and keeps the connection alive with
// protocol pings. It returns when the hub closes send or a write fails.
func (c *Client) push() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		logging.Debug().
			Uint64("client_id", c.id).
			Uint64("delivered", c.delivered.Load()).
			Uint64("superseded", c.superseded.Load()).
			Msg("websocket viewer closed")
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "gateway shutting down"))
				return
			}
			data, err := MarshalMessage(msg)
			if err != nil {
				metrics.WSErrors.WithLabelValues("encode").Inc()
				logging.Error().Err(err).Str("message_type", msg.Type).Msg("failed to encode websocket message")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				metrics.WSErrors.WithLabelValues("write").Inc()
				return
			}
			c.delivered.Add(1)

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start runs the client's two goroutines. Register it with the hub first.
func (c *Client) Start() {
	go c.push()
	go c.drain()
}
