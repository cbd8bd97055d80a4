package journal

import (
	"context"
	"sync"
	"time"

	nchess "github.com/corentings/chess/v2"
	"go.uber.org/zap"

	"github.com/park285/chesslink/internal/obslog"
	"github.com/park285/chesslink/internal/session"
)

// ResultSaver persists a finished game. *Repository implements it.
type ResultSaver interface {
	SaveResult(ctx context.Context, res session.Result) error
}

type job func(ctx context.Context) error

// Recorder journals a session from its hooks on a background goroutine so
// the tick loop never waits on redis or postgres.
type Recorder struct {
	store   *Store
	repo    ResultSaver
	logger  *zap.Logger
	timeout time.Duration

	mu     sync.Mutex
	meta   *Meta
	jobs   chan job
	closed bool
	wg     sync.WaitGroup
}

// NewRecorder starts the worker. repo may be nil.
func NewRecorder(store *Store, repo ResultSaver, logger *zap.Logger) *Recorder {
	r := &Recorder{
		store:   store,
		repo:    repo,
		logger:  obslog.Or(logger),
		timeout: 5 * time.Second,
		jobs:    make(chan job, 256),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for j := range r.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		if err := j(ctx); err != nil {
			r.logger.Warn("journal_write_failed", zap.Error(err))
		}
		cancel()
	}
}

func (r *Recorder) enqueue(j job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.jobs <- j:
	default:
		r.logger.Warn("journal_queue_full")
	}
}

// Started records the session metadata.
func (r *Recorder) Started(info session.Info) {
	meta := &Meta{
		SessionID: info.ID,
		Host:      info.Host,
		LocalName: info.LocalName,
		PeerName:  info.PeerName,
		Color:     colorName(info.OwnColor),
		StartFEN:  info.StartFEN,
		Status:    StatusActive,
		StartedAt: info.StartedAt,
		UpdatedAt: info.StartedAt,
	}
	r.mu.Lock()
	r.meta = meta
	r.mu.Unlock()
	snapshot := *meta
	r.enqueue(func(ctx context.Context) error {
		return r.store.SaveMeta(ctx, &snapshot)
	})
}

func (r *Recorder) Committed(ev session.Event) {
	e := Entry{
		Ply:    ev.Move.Ply,
		UCI:    ev.Move.UCI,
		SAN:    ev.Move.SAN,
		Local:  ev.Local,
		FEN:    ev.FEN,
		Status: ev.Status.String(),
		At:     ev.At,
	}
	r.enqueue(func(ctx context.Context) error {
		return r.store.Append(ctx, ev.SessionID, e)
	})
}

func (r *Recorder) Finished(res session.Result) {
	r.mu.Lock()
	var snapshot *Meta
	if r.meta != nil && r.meta.SessionID == res.SessionID {
		m := *r.meta
		m.Status = StatusFinished
		m.EndState = res.EndState.String()
		m.Winner = colorName(res.Winner)
		m.Reason = res.Reason
		m.UpdatedAt = res.At
		r.meta = &m
		snapshot = &m
	}
	r.mu.Unlock()

	r.enqueue(func(ctx context.Context) error {
		if snapshot != nil {
			if err := r.store.SaveMeta(ctx, snapshot); err != nil {
				return err
			}
		}
		if r.repo != nil {
			return r.repo.SaveResult(ctx, res)
		}
		return nil
	})
}

// Close drains pending writes and stops the worker.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.jobs)
	r.mu.Unlock()
	r.wg.Wait()
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
