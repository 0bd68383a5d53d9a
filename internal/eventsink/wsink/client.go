package wsink

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// writeTimeout bounds a single frame write; a peer that can't accept a
	// frame within it is treated as gone.
	writeTimeout = 5 * time.Second

	// peerTimeout is how long the peer may go without answering a ping
	// before the read side gives up on the connection.
	peerTimeout = 90 * time.Second

	// heartbeatInterval spaces the keep-alive pings; two may be lost before
	// peerTimeout expires.
	heartbeatInterval = 30 * time.Second

	// queueSize is the per-client write queue capacity. During a large
	// transfer the engine can emit progress lines faster than a congested
	// peer drains them; a full queue marks the client as stalled.
	queueSize = 64

	// readLimit caps inbound frames. Clients only send close/pong control
	// frames, so anything larger is a misbehaving peer.
	readLimit = 512
)

// upgrader performs the HTTP → WebSocket protocol upgrade. Origin
// validation is left to the reverse proxy fronting the process.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one WebSocket subscriber to a single job's event feed. The
// feed is write-mostly: the peer sends nothing but control frames, so the
// read side exists only to notice disconnection and answer pings.
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	topic string

	queue chan Message
	done  chan struct{}
	once  sync.Once

	logger *zap.Logger
}

// NewClient upgrades the HTTP connection and returns a Client bound to the
// event feed for jobID. Call Serve to start streaming.
func NewClient(hub *Hub, w http.ResponseWriter, r *http.Request, jobID string, logger *zap.Logger) (*Client, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}

	return &Client{
		hub:    hub,
		conn:   conn,
		topic:  JobTopic(jobID),
		queue:  make(chan Message, queueSize),
		done:   make(chan struct{}),
		logger: logger.With(zap.String("remote_addr", r.RemoteAddr), zap.String("job_id", jobID)),
	}, nil
}

// enqueue offers msg to the write queue without blocking. Returns false
// when the queue is full; the hub then shuts the client down. A client
// already shutting down accepts (and discards) everything so publishers
// never see it as stalled twice.
func (c *Client) enqueue(msg Message) bool {
	select {
	case <-c.done:
		return true
	case c.queue <- msg:
		return true
	default:
		return false
	}
}

// shutdown severs the connection exactly once; safe from any goroutine.
// Closing the connection unblocks both the read loop in Serve and any
// in-flight write.
func (c *Client) shutdown() {
	c.once.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// Serve attaches the client to the hub and blocks until the peer
// disconnects, the queue stalls, or the hub shuts the client down. It owns
// the read side; writeFrames owns the write side.
func (c *Client) Serve() {
	c.hub.attach(c)
	defer func() {
		c.hub.detach(c)
		c.shutdown()
	}()

	go c.writeFrames()

	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(peerTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(peerTimeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived,
			) {
				c.logger.Warn("wsink: unexpected close", zap.Error(err))
			}
			return
		}
	}
}

// writeFrames drains the queue onto the wire and keeps the connection
// alive with heartbeat pings. It is the only goroutine writing to conn —
// gorilla/websocket connections are not safe for concurrent writes.
func (c *Client) writeFrames() {
	heartbeat := time.NewTicker(heartbeatInterval)
	defer func() {
		heartbeat.Stop()
		c.shutdown()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case msg := <-c.queue:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Warn("wsink: write failed", zap.Error(err))
				return
			}

		case <-heartbeat.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
