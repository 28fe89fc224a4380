// Package raceclient maintains one live room connection and translates
// between local typing events and the room protocol.
package raceclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Harsha2k4/typing-racer-prod-bots/internal/models"
)

// State is the connection lifecycle state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateClosed       State = "closed"
	StateErrored      State = "errored"
)

// JoinOptions carry the connection parameters set at join time.
type JoinOptions struct {
	Token      string
	Name       string
	Bots       int
	Difficulty string
}

// Client owns at most one live room connection. Joining a new room tears the
// previous connection down first, and events from a superseded connection are
// never dispatched.
type Client struct {
	baseURL string
	dialer  *websocket.Dialer

	// OnStart fires once per started transition. OnText receives passages
	// the coordinator pushes over the socket. Set before Join.
	OnStart func()
	OnText  func(text string)

	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex
	epoch   uint64
	state   State
	info    string

	players []models.PlayerView
	started bool
	winner  string
}

// New returns a client for a coordinator at baseURL (http(s)://host[:port]).
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		dialer:  websocket.DefaultDialer,
		state:   StateDisconnected,
		info:    "Not connected.",
	}
}

// State returns the connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Info returns the human-readable connection status.
func (c *Client) Info() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.info
}

// Players returns the latest roster snapshot.
func (c *Client) Players() []models.PlayerView {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.PlayerView, len(c.players))
	copy(out, c.players)
	return out
}

// Started reports whether the race is running.
func (c *Client) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

// Winner returns the winner's name, empty until the race concludes.
func (c *Client) Winner() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.winner
}

// Join connects to the room identified by raceCode. Any live connection is
// closed first so that stale sockets never double-deliver events. Join does
// not retry; a failed dial leaves the client errored until the next Join.
func (c *Client) Join(ctx context.Context, raceCode string, opts JoinOptions) error {
	wsURL, err := c.roomURL(raceCode, opts)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.epoch++
	epoch := c.epoch
	c.state = StateConnecting
	c.info = "Connecting..."
	c.players = nil
	c.started = false
	c.winner = ""
	c.mu.Unlock()

	conn, resp, err := c.dialer.DialContext(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		// A newer Join superseded this one while dialing.
		if conn != nil {
			conn.Close()
		}
		return nil
	}
	if err != nil {
		c.state = StateErrored
		c.info = "Connection error."
		return fmt.Errorf("dial race %s: %w", raceCode, err)
	}

	c.conn = conn
	c.state = StateConnected
	c.info = fmt.Sprintf("Connected to race %s", raceCode)
	go c.readPump(epoch, conn)
	return nil
}

// Close tears down the live connection, if any.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.epoch++
	c.state = StateClosed
	c.info = "Disconnected."
}

// StartCountdown asks the coordinator to begin the countdown. A no-op when no
// connection is live; the actual phase change arrives via room:started.
func (c *Client) StartCountdown(seconds int) {
	c.send(models.Envelope{Event: models.EventRoomStart, Data: models.RoomStart{Seconds: seconds}})
}

// PublishMetrics pushes the local racer's live metrics. Metrics are
// high-frequency and self-correcting, so they are dropped rather than
// buffered when the connection is down.
func (c *Client) PublishMetrics(m models.PlayerUpdate) {
	c.send(models.Envelope{Event: models.EventPlayerUpdate, Data: m})
}

// RequestMoreText asks the coordinator for an additional passage chunk,
// delivered through OnText.
func (c *Client) RequestMoreText(words int) {
	c.send(models.Envelope{Event: models.EventTextMore, Data: models.TextMore{Words: words}})
}

func (c *Client) send(env models.Envelope) {
	c.mu.Lock()
	conn := c.conn
	connected := c.state == StateConnected
	c.mu.Unlock()

	if !connected || conn == nil {
		return
	}

	c.writeMu.Lock()
	err := conn.WriteJSON(env)
	c.writeMu.Unlock()
	if err != nil {
		log.Debug().Str("event", env.Event).Err(err).Msg("dropping outbound race event")
	}
}

type inboundEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// readPump dispatches inbound events until the connection dies. Every
// dispatch is gated on the connection epoch, so a pump left over from a
// previous Join can never touch the current session.
func (c *Client) readPump(epoch uint64, conn *websocket.Conn) {
	for {
		var env inboundEnvelope
		if err := conn.ReadJSON(&env); err != nil {
			c.mu.Lock()
			if epoch == c.epoch {
				c.conn = nil
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					c.state = StateClosed
					c.info = "Disconnected."
				} else {
					c.state = StateErrored
					c.info = "Connection error."
				}
			}
			c.mu.Unlock()
			return
		}
		c.dispatch(epoch, env)
	}
}

func (c *Client) dispatch(epoch uint64, env inboundEnvelope) {
	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return
	}

	switch env.Event {
	case models.EventRoomState:
		var state models.RoomState
		if err := json.Unmarshal(env.Data, &state); err != nil {
			c.mu.Unlock()
			return
		}
		// Full replace: simplest way to stay consistent regardless of
		// which intermediate snapshots were coalesced or lost.
		c.players = state.Players
		c.started = state.Started
		c.mu.Unlock()

	case models.EventRoomStarted:
		fire := !c.started
		c.started = true
		onStart := c.OnStart
		c.mu.Unlock()
		if fire && onStart != nil {
			onStart()
		}

	case models.EventRoomWinner:
		var w models.RoomWinner
		if err := json.Unmarshal(env.Data, &w); err != nil {
			c.mu.Unlock()
			return
		}
		c.winner = w.Name
		c.mu.Unlock()

	case models.EventTextNew:
		var t models.TextNew
		if err := json.Unmarshal(env.Data, &t); err != nil {
			c.mu.Unlock()
			return
		}
		onText := c.OnText
		c.mu.Unlock()
		if onText != nil {
			onText(t.Text)
		}

	default:
		// Unknown events are ignored for forward compatibility.
		c.mu.Unlock()
	}
}

func (c *Client) roomURL(raceCode string, opts JoinOptions) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/race/" + url.PathEscape(raceCode)

	q := u.Query()
	if opts.Token != "" {
		q.Set("token", opts.Token)
	}
	if opts.Name != "" {
		q.Set("name", opts.Name)
	}
	if opts.Bots > 0 {
		q.Set("bots", strconv.Itoa(opts.Bots))
	}
	if opts.Difficulty != "" {
		q.Set("difficulty", opts.Difficulty)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
