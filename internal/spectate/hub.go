package spectate

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/park285/chesslink/internal/metrics"
	"github.com/park285/chesslink/internal/obslog"
	"github.com/park285/chesslink/internal/session"
)

// Snapshot is the spectator view of the current game.
type Snapshot struct {
	SessionID string   `json:"session_id"`
	White     string   `json:"white"`
	Black     string   `json:"black"`
	FEN       string   `json:"fen"`
	Ply       int      `json:"ply"`
	LastMove  string   `json:"last_move,omitempty"`
	Moves     []string `json:"moves"`
	Status    string   `json:"status"`
	Finished  bool     `json:"finished"`
	Winner    string   `json:"winner,omitempty"`
	Reason    string   `json:"reason,omitempty"`
}

// Msg is the websocket envelope.
type Msg struct {
	T string `json:"t"`
	M any    `json:"m,omitempty"`
}

type client struct {
	id   string
	send chan []byte
}

// Hub fans session events out to websocket spectators. It implements
// session.Hook and never blocks the caller.
type Hub struct {
	logger   *zap.Logger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer

	mu      sync.RWMutex
	clients map[*client]struct{}
	state   Snapshot
}

// NewHub builds a hub. gatherer backs /metrics; nil uses the default gatherer.
func NewHub(logger *zap.Logger, m *metrics.Metrics, gatherer prometheus.Gatherer) *Hub {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Hub{
		logger:   obslog.Or(logger),
		metrics:  m,
		gatherer: gatherer,
		clients:  map[*client]struct{}{},
		state:    Snapshot{Moves: []string{}, Status: "waiting"},
	}
}

func (h *Hub) Started(info session.Info) {
	white, black := info.LocalName, info.PeerName
	if info.OwnColor == nchess.Black {
		white, black = black, white
	}
	h.mu.Lock()
	h.state = Snapshot{
		SessionID: info.ID,
		White:     white,
		Black:     black,
		FEN:       info.StartFEN,
		Moves:     []string{},
		Status:    "playing",
	}
	h.broadcastLocked(Msg{T: "snapshot", M: h.copyState()})
	h.mu.Unlock()
}

func (h *Hub) Committed(ev session.Event) {
	h.mu.Lock()
	h.state.FEN = ev.FEN
	h.state.Ply = ev.Move.Ply
	h.state.LastMove = ev.Move.UCI
	h.state.Moves = append(h.state.Moves, ev.Move.SAN)
	h.state.Status = ev.Status.String()
	h.broadcastLocked(Msg{T: "move", M: map[string]any{
		"uci":    ev.Move.UCI,
		"san":    ev.Move.SAN,
		"ply":    ev.Move.Ply,
		"fen":    ev.FEN,
		"local":  ev.Local,
		"status": ev.Status.String(),
	}})
	h.mu.Unlock()
}

func (h *Hub) Finished(res session.Result) {
	h.mu.Lock()
	h.state.Finished = true
	h.state.Status = res.EndState.String()
	h.state.Winner = colorName(res.Winner)
	h.state.Reason = res.Reason
	h.broadcastLocked(Msg{T: "finished", M: h.copyState()})
	h.mu.Unlock()
}

func (h *Hub) Snapshot() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.copyState()
}

// copyState requires h.mu.
func (h *Hub) copyState() Snapshot {
	s := h.state
	s.Moves = append([]string(nil), h.state.Moves...)
	return s
}

// broadcastLocked queues m for every client. State changes and fan-out share
// h.mu so a joining client sees each event either in its snapshot or live.
func (h *Hub) broadcastLocked(m Msg) {
	data, err := json.Marshal(m)
	if err != nil {
		h.logger.Warn("spectate_encode_failed", zap.Error(err))
		return
	}
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Debug("spectate_client_slow", zap.String("client", c.id))
		}
	}
}

// Router serves /healthz, /state, /metrics and /ws.
func (h *Hub) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/state", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(h.Snapshot())
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	r.Get("/ws", h.ServeWS)
	return r
}

// ServeWS streams the snapshot followed by every later event.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		h.logger.Debug("spectate_accept_failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	c := &client{id: uuid.NewString(), send: make(chan []byte, 32)}
	if err := h.register(c); err != nil {
		h.logger.Warn("spectate_encode_failed", zap.Error(err))
		return
	}
	h.metrics.SpectatorJoined()
	h.logger.Info("spectator_connected", zap.String("client", c.id))
	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		h.metrics.SpectatorLeft()
		h.logger.Info("spectator_disconnected", zap.String("client", c.id))
	}()

	ctx := conn.CloseRead(r.Context())
	ping := time.NewTicker(15 * time.Second)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}
		case <-ping.C:
			if err := conn.Ping(ctx); err != nil {
				return
			}
		}
	}
}

// register queues the current snapshot for c and adds it to the fan-out in
// one critical section.
func (h *Hub) register(c *client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	initial, err := json.Marshal(Msg{T: "snapshot", M: h.copyState()})
	if err != nil {
		return err
	}
	c.send <- initial
	h.clients[c] = struct{}{}
	return nil
}

func colorName(c nchess.Color) string {
	switch c {
	case nchess.White:
		return "white"
	case nchess.Black:
		return "black"
	default:
		return ""
	}
}
