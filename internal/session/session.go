package session

import (
	"errors"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/chesslink/internal/board"
	"github.com/park285/chesslink/internal/metrics"
	"github.com/park285/chesslink/internal/obslog"
	"github.com/park285/chesslink/internal/packet"
	"github.com/park285/chesslink/internal/transport"
)

var (
	ErrNotYourTurn        = errors.New("not your turn")
	ErrGameOver           = errors.New("game is over")
	ErrIllegalMove        = errors.New("illegal move")
	ErrPromotionPending   = errors.New("promotion choice pending")
	ErrNoPromotionPending = errors.New("no promotion pending")
)

// maxPending bounds the receive buffer while waiting for a complete packet.
const maxPending = 4096

const DefaultAckTimeout = 30 * time.Second

type TurnState int

const (
	Normal TurnState = iota
	AwaitingMove
	AwaitingAck
)

func (s TurnState) String() string {
	switch s {
	case Normal:
		return "normal"
	case AwaitingMove:
		return "awaiting_move"
	case AwaitingAck:
		return "awaiting_ack"
	default:
		return "unknown"
	}
}

// Link is the byte stream a session owns. *transport.Conn implements it.
type Link interface {
	Read() transport.ReadResult
	Write(p []byte) error
	Close() error
}

// Info is fixed at bootstrap.
type Info struct {
	ID        string
	Host      bool
	LocalName string
	PeerName  string
	StartFEN  string
	OwnColor  nchess.Color
	Time      *uint32
	Inc       *uint32
	StartedAt time.Time
}

// Event is emitted after every committed move.
type Event struct {
	SessionID string
	Local     bool
	Move      board.Committed
	FEN       string
	Status    packet.EndState
	At        time.Time
}

// Result is emitted once when the game becomes terminal.
type Result struct {
	SessionID string
	EndState  packet.EndState
	Winner    nchess.Color
	Reason    string
	White     string
	Black     string
	StartFEN  string
	FEN       string
	SAN       []string
	At        time.Time
}

// Hook observes a session. Implementations must return quickly.
type Hook interface {
	Committed(Event)
	Finished(Result)
}

type Option func(*Session)

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = obslog.Or(l) }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

func WithHooks(h ...Hook) Option {
	return func(s *Session) { s.hooks = append(s.hooks, h...) }
}

// WithAckTimeout bounds AwaitingAck. Zero waits forever.
func WithAckTimeout(d time.Duration) Option {
	return func(s *Session) { s.ackTimeout = d }
}

func WithPollInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// Session is one end of a game. It is driven by a single goroutine calling
// Tick and the local move methods; it is not safe for concurrent use.
type Session struct {
	info  Info
	link  Link
	board *board.Board
	state TurnState

	rx       []byte
	pending  *board.Candidate
	inFlight *packet.Move
	sentAt   time.Time

	queued *packet.EndState
	result *Result

	offerNext bool
	offerOut  bool
	peerOffer bool

	signal board.Signal
	err    error

	hooks        []Hook
	logger       *zap.Logger
	metrics      *metrics.Metrics
	ackTimeout   time.Duration
	pollInterval time.Duration
	now          func() time.Time
}

// New starts a session over an established link. The initial state is
// Normal when own is to move in b, AwaitingMove otherwise.
func New(link Link, b *board.Board, info Info, opts ...Option) *Session {
	s := configure(opts)
	s.info = info
	s.link = link
	s.board = b
	if s.info.ID == "" {
		s.info.ID = uuid.NewString()
	}
	if s.info.StartedAt.IsZero() {
		s.info.StartedAt = s.now()
	}
	if s.info.StartFEN == "" {
		s.info.StartFEN = b.FEN()
	}
	s.logger = s.logger.With(zap.String("session", s.info.ID))
	if b.Turn() == info.OwnColor {
		s.state = Normal
	} else {
		s.state = AwaitingMove
	}
	return s
}

func configure(opts []Option) *Session {
	s := &Session{
		logger:       obslog.L(),
		ackTimeout:   DefaultAckTimeout,
		pollInterval: time.Second,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) ID() string             { return s.info.ID }
func (s *Session) Info() Info             { return s.info }
func (s *Session) Board() *board.Board    { return s.board }
func (s *Session) OwnColor() nchess.Color { return s.info.OwnColor }
func (s *Session) PeerName() string       { return s.info.PeerName }
func (s *Session) State() TurnState       { return s.state }
func (s *Session) Err() error             { return s.err }
func (s *Session) Terminal() bool         { return s.result != nil }

// InFlight reports the number of unacknowledged moves sent by this side.
func (s *Session) InFlight() int {
	if s.inFlight != nil {
		return 1
	}
	return 0
}

// PromotionPending reports the move waiting for a promotion choice.
func (s *Session) PromotionPending() (board.Candidate, bool) {
	if s.pending == nil {
		return board.Candidate{}, false
	}
	return *s.pending, true
}

// PeerOffersDraw reports whether the peer's last move carried a draw offer.
func (s *Session) PeerOffersDraw() bool { return s.peerOffer }

func (s *Session) Result() (Result, bool) {
	if s.result == nil {
		return Result{}, false
	}
	return *s.result, true
}

// TakeSignal returns the render signal raised since the last call and clears it.
func (s *Session) TakeSignal() board.Signal {
	sig := s.signal
	s.signal = board.Signal{}
	return sig
}

func (s *Session) Close() error {
	return s.link.Close()
}
