package bus

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// WriteWait is the timeout for writing to a websocket.
	WriteWait = 10 * time.Second

	// PongWait is the timeout for pong responses.
	PongWait = 60 * time.Second

	// PingPeriod is how often ping frames are sent.
	PingPeriod = (PongWait * 9) / 10

	// MaxMessageSize bounds inbound client frames.
	MaxMessageSize = 512

	clientBuffer = 256
)

// FeedConfig configures a Feed.
type FeedConfig struct {
	ReplayHistory bool
	HistoryCount  int
	// Types selects the events forwarded to clients. Nil forwards alert
	// lifecycle events only.
	Types []EventType
}

// DefaultFeedConfig replays the last 50 alert events to new clients.
func DefaultFeedConfig() FeedConfig {
	return FeedConfig{ReplayHistory: true, HistoryCount: 50}
}

// Feed streams bus events to websocket clients. Mount it on any mux; clients
// may pass ?user=<id> to receive one user's events, ?replay=false to skip
// history and ?count=N to size the replay.
type Feed struct {
	bus      *Bus
	cfg      FeedConfig
	upgrader websocket.Upgrader
	subID    SubscriptionID

	clients   map[*feedClient]bool
	clientsMu sync.RWMutex
	wg        sync.WaitGroup
	done      chan struct{}
	stopOnce  sync.Once
}

type feedClient struct {
	conn   *websocket.Conn
	send   chan []byte
	filter Filter
	once   sync.Once
}

func (c *feedClient) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// NewFeed attaches a feed to b. Call Stop to detach.
func NewFeed(b *Bus, cfg FeedConfig) *Feed {
	if cfg.Types == nil {
		cfg.Types = AlertEvents
	}
	if cfg.HistoryCount <= 0 {
		cfg.HistoryCount = 50
	}
	f := &Feed{
		bus: b,
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*feedClient]bool),
		done:    make(chan struct{}),
	}
	f.subID = b.SubscribeFilter(Filter{Types: cfg.Types}, f.handleBusEvent)
	return f
}

// ClientCount returns the number of connected clients.
func (f *Feed) ClientCount() int {
	f.clientsMu.RLock()
	defer f.clientsMu.RUnlock()
	return len(f.clients)
}

// ServeHTTP upgrades the request and registers the client.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	replay := f.cfg.ReplayHistory && q.Get("replay") != "false"
	count := f.cfg.HistoryCount
	if n, err := strconv.Atoi(q.Get("count")); err == nil && n >= 0 {
		count = n
	}

	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &feedClient{
		conn:   conn,
		send:   make(chan []byte, clientBuffer),
		filter: Filter{Types: f.cfg.Types, UserID: q.Get("user")},
	}

	f.clientsMu.Lock()
	f.clients[client] = true
	total := len(f.clients)
	f.clientsMu.Unlock()
	log.Debug().Int("clients", total).Str("user_filter", client.filter.UserID).Msg("feed client connected")

	if replay {
		for _, event := range f.bus.Replay(client.filter, count) {
			if data, err := json.Marshal(event); err == nil {
				select {
				case client.send <- data:
				default:
				}
			}
		}
	}

	f.wg.Add(2)
	go f.writePump(client)
	go f.readPump(client)
}

func (f *Feed) unregister(c *feedClient) {
	f.clientsMu.Lock()
	if _, ok := f.clients[c]; ok {
		delete(f.clients, c)
		c.close()
	}
	remaining := len(f.clients)
	f.clientsMu.Unlock()
	log.Debug().Int("clients", remaining).Msg("feed client disconnected")
}

func (f *Feed) writePump(c *feedClient) {
	defer f.wg.Done()
	defer c.conn.Close()

	ticker := time.NewTicker(PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-f.done:
			c.conn.SetWriteDeadline(time.Now().Add(WriteWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
			return
		}
	}
}

func (f *Feed) readPump(c *feedClient) {
	defer f.wg.Done()
	defer f.unregister(c)

	c.conn.SetReadLimit(MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(PongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Msg("feed client error")
			}
			return
		}
	}
}

func (f *Feed) handleBusEvent(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal feed event")
		return
	}

	f.clientsMu.RLock()
	defer f.clientsMu.RUnlock()
	for c := range f.clients {
		if !c.filter.Match(event) {
			continue
		}
		select {
		case c.send <- data:
		default:
			// slow client; it catches up from the next event
		}
	}
}

// Stop detaches from the bus and disconnects every client.
func (f *Feed) Stop() {
	f.stopOnce.Do(func() {
		if f.subID != "" {
			_ = f.bus.Unsubscribe(f.subID)
		}
		close(f.done)
		f.clientsMu.Lock()
		for c := range f.clients {
			c.conn.Close()
		}
		f.clientsMu.Unlock()
		f.wg.Wait()
	})
}
