package gateway

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 16 << 10
	sendBufferSize = 128
)

var errConnClosed = errors.New("connection closed")

// connection owns the write side of a websocket. Writes go through a buffered
// channel drained by a single goroutine; a client too slow to drain it is
// disconnected.
type connection struct {
	id     string
	userID string

	ws    *websocket.Conn
	send  chan []byte
	once  sync.Once
	close chan struct{}
	done  chan struct{}
}

func newConnection(userID string, ws *websocket.Conn) *connection {
	return &connection{
		id:     uuid.NewString(),
		userID: userID,
		ws:     ws,
		send:   make(chan []byte, sendBufferSize),
		close:  make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// start launches the write loop. It must be called exactly once.
func (c *connection) start() {
	go c.writeLoop()
}

// enqueue queues payload for delivery.
func (c *connection) enqueue(payload []byte) error {
	select {
	case <-c.close:
		return errConnClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	default:
		c.shutdown(websocket.CloseGoingAway, "send buffer full")
		return errors.New("connection buffer exceeded")
	}
}

// shutdown stops the write loop and closes the socket, flushing what is
// already queued first.
func (c *connection) shutdown(code int, reason string) {
	c.once.Do(func() {
		close(c.close)
		<-c.done
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		_ = c.ws.Close()
	})
}

func (c *connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer close(c.done)

	for {
		select {
		case <-c.close:
			for {
				select {
				case msg := <-c.send:
					if err := c.write(websocket.TextMessage, msg); err != nil {
						return
					}
				default:
					return
				}
			}
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *connection) write(kind int, payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(kind, payload)
}
