package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"
)

const (
	writeWait      = 1 * time.Second
	maxMessageSize = 8192

	pingResolution = 5 * time.Second
	pongWait       = pingResolution * 4
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// ErrPongDeadlineExceeded is returned when a subscriber stops
// acknowledging pings and is presumed disconnected.
var ErrPongDeadlineExceeded = errors.New("subscriber disconnect, pong deadline exceeded")

// Conn is one upgraded websocket connection bound to a Hub
// subscription. It runs a publish loop, a ping/pong liveness loop, and
// a read loop for incoming Subscribe/RequestFullState client frames.
type Conn struct {
	hub   *Hub
	subID int
	out   <-chan []byte
	ws    *websocket.Conn
	pong  chan struct{}
}

// Upgrade upgrades an HTTP request to a websocket and registers a new
// Hub subscription for it.
func Upgrade(hub *Hub, w http.ResponseWriter, r *http.Request) (*Conn, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("upgrade websocket: %w", err)
	}
	ws.SetReadLimit(maxMessageSize)

	subID, out := hub.Subscribe()
	return &Conn{hub: hub, subID: subID, out: out, ws: ws, pong: make(chan struct{}, 1)}, nil
}

// Serve runs the connection's read, ping, and publish loops until the
// client disconnects or ctx is cancelled, then unsubscribes from the
// hub. Returns nil on a clean disconnect.
func (c *Conn) Serve(ctx context.Context) error {
	defer c.hub.Unsubscribe(c.subID)
	defer c.ws.Close()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return c.readLoop(groupCtx) })
	group.Go(func() error { return c.pingLoop(groupCtx) })
	group.Go(func() error { return c.publishLoop(groupCtx) })

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// readLoop watches for Subscribe and RequestFullState client frames;
// both enqueue a one-shot FullState for the next tick boundary.
func (c *Conn) readLoop(ctx context.Context) error {
	c.ws.SetPongHandler(func(string) error {
		select {
		case c.pong <- struct{}{}:
		default:
		}
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return fmt.Errorf("read: %w", err)
			}
			return nil
		}

		var frame ClientFrame
		if jsonErr := json.Unmarshal(data, &frame); jsonErr != nil {
			slog.Warn("broadcast: malformed client frame", "error", jsonErr)
			c.hub.SendError(c.subID, "malformed message")
			continue
		}
		switch frame.Type {
		case "Subscribe", "RequestFullState":
			c.hub.RequestFullState(c.subID)
		default:
			slog.Warn("broadcast: unrecognized client frame type", "type", frame.Type)
			c.hub.SendError(c.subID, "unrecognized message type: "+frame.Type)
		}

		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

func (c *Conn) pingLoop(ctx context.Context) error {
	ticker := channerics.NewTicker(ctx.Done(), pingResolution)
	lastSeen := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.pong:
			lastSeen = time.Now()
		case <-ticker:
			if time.Since(lastSeen) > pongWait {
				return ErrPongDeadlineExceeded
			}
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

func (c *Conn) publishLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame, ok := <-c.out:
			if !ok {
				return nil
			}
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return fmt.Errorf("publish: %w", err)
			}
		}
	}
}
