package notify

import (
	"context"
	"sync"
	"time"

	nchess "github.com/corentings/chess/v2"
	"go.uber.org/zap"

	"github.com/park285/chesslink/internal/journal"
	"github.com/park285/chesslink/internal/obslog"
	"github.com/park285/chesslink/internal/session"
)

// Payload is posted once per finished game.
type Payload struct {
	SessionID string    `json:"session_id"`
	White     string    `json:"white"`
	Black     string    `json:"black"`
	Result    string    `json:"result"`
	EndState  string    `json:"end_state"`
	Reason    string    `json:"reason"`
	Winner    string    `json:"winner,omitempty"`
	Plies     int       `json:"plies"`
	PGN       string    `json:"pgn"`
	EndedAt   time.Time `json:"ended_at"`
}

// Notifier posts game results to a webhook. It implements session.Hook;
// delivery happens on its own goroutine.
type Notifier struct {
	client  *Client
	logger  *zap.Logger
	dryrun  bool
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewNotifier(client *Client, dryrun bool, logger *zap.Logger) *Notifier {
	return &Notifier{client: client, logger: obslog.Or(logger), dryrun: dryrun, timeout: 30 * time.Second}
}

func (n *Notifier) Committed(session.Event) {}

func (n *Notifier) Finished(res session.Result) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		if err := n.Send(ctx, res); err != nil {
			n.logger.Warn("notify_failed", zap.String("session", res.SessionID), zap.Error(err))
		}
	}()
}

// Send posts res synchronously.
func (n *Notifier) Send(ctx context.Context, res session.Result) error {
	p := Payload{
		SessionID: res.SessionID,
		White:     res.White,
		Black:     res.Black,
		Result:    journal.PGNResult(res),
		EndState:  res.EndState.String(),
		Reason:    res.Reason,
		Plies:     len(res.SAN),
		PGN:       journal.BuildPGN(res),
		EndedAt:   res.At,
	}
	switch res.Winner {
	case nchess.White:
		p.Winner = "white"
	case nchess.Black:
		p.Winner = "black"
	}
	if n.dryrun || n.client == nil {
		n.logger.Info("notify_dryrun", zap.String("session", p.SessionID), zap.String("result", p.Result))
		return nil
	}
	return n.client.PostJSON(ctx, p)
}

// Wait blocks until in-flight deliveries finish.
func (n *Notifier) Wait() { n.wg.Wait() }
