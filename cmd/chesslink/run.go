package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/park285/chesslink/internal/board"
	"github.com/park285/chesslink/internal/config"
	"github.com/park285/chesslink/internal/journal"
	"github.com/park285/chesslink/internal/metrics"
	"github.com/park285/chesslink/internal/notify"
	"github.com/park285/chesslink/internal/obslog"
	"github.com/park285/chesslink/internal/packet"
	"github.com/park285/chesslink/internal/session"
	"github.com/park285/chesslink/internal/spectate"
	"github.com/park285/chesslink/internal/transport"
)

// sinks are the optional observers wired from configuration.
type sinks struct {
	logger   *zap.Logger
	metrics  *metrics.Metrics
	recorder *journal.Recorder
	store    *journal.Store
	repo     *journal.Repository
	hub      *spectate.Hub
	server   *http.Server
	notifier *notify.Notifier
}

func openSinks(ctx context.Context, cfg *config.AppConfig) (*sinks, error) {
	logger := obslog.L()
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	sk := &sinks{logger: logger, metrics: metrics.New(reg)}

	if cfg.RedisURL != "" {
		store, err := journal.Open(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("journal: %w", err)
		}
		sk.store = store
		var saver journal.ResultSaver
		if cfg.DatabaseURL != "" {
			repo, err := journal.NewRepository(ctx, cfg.DatabaseURL)
			if err != nil {
				sk.close()
				return nil, fmt.Errorf("results db: %w", err)
			}
			sk.repo = repo
			saver = repo
		}
		sk.recorder = journal.NewRecorder(store, saver, logger)
	}

	if cfg.SpectateAddr != "" {
		sk.hub = spectate.NewHub(logger, sk.metrics, reg)
		sk.server = &http.Server{Addr: cfg.SpectateAddr, Handler: sk.hub.Router(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := sk.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("spectate_server_failed", zap.Error(err))
			}
		}()
		logger.Info("spectate_listening", zap.String("addr", cfg.SpectateAddr))
	}

	if cfg.NotifyURL != "" || cfg.NotifyDryRun {
		var client *notify.Client
		if cfg.NotifyURL != "" {
			client = notify.NewClient(cfg.NotifyURL)
		}
		sk.notifier = notify.NewNotifier(client, cfg.NotifyDryRun, logger)
	}
	return sk, nil
}

func (sk *sinks) options(cfg *config.AppConfig) []session.Option {
	opts := []session.Option{
		session.WithLogger(sk.logger),
		session.WithMetrics(sk.metrics),
		session.WithAckTimeout(cfg.AckTimeout),
		session.WithPollInterval(cfg.PollInterval),
	}
	if sk.recorder != nil {
		opts = append(opts, session.WithHooks(sk.recorder))
	}
	if sk.hub != nil {
		opts = append(opts, session.WithHooks(sk.hub))
	}
	if sk.notifier != nil {
		opts = append(opts, session.WithHooks(sk.notifier))
	}
	return opts
}

func (sk *sinks) started(info session.Info) {
	if sk.recorder != nil {
		sk.recorder.Started(info)
	}
	if sk.hub != nil {
		sk.hub.Started(info)
	}
}

func (sk *sinks) close() {
	if sk.recorder != nil {
		sk.recorder.Close()
	}
	if sk.notifier != nil {
		sk.notifier.Wait()
	}
	if sk.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = sk.server.Shutdown(ctx)
		cancel()
	}
	_ = sk.repo.Close()
	_ = sk.store.Close()
}

func transportOptions(cfg *config.AppConfig) []transport.Option {
	return []transport.Option{
		transport.WithLogger(obslog.L()),
		transport.WithWriteTimeout(cfg.WriteTimeout),
		transport.WithPollInterval(cfg.PollInterval),
	}
}

func runHost(ctx context.Context, cfg *config.AppConfig) error {
	white, err := cfg.Color.White()
	if err != nil {
		return err
	}
	sk, err := openSinks(ctx, cfg)
	if err != nil {
		return err
	}
	defer sk.close()

	fmt.Fprintf(os.Stdout, "waiting for a peer on %s\n", cfg.Addr)
	conn, err := transport.Listen(ctx, cfg.Addr, transportOptions(cfg)...)
	if err != nil {
		return err
	}
	params := session.HostParams{Name: cfg.Name, FEN: cfg.FEN, White: white}
	if cfg.Time > 0 {
		params.Time = packet.Uint32(cfg.Time)
	}
	if cfg.Inc > 0 {
		params.Inc = packet.Uint32(cfg.Inc)
	}
	s, err := session.Host(ctx, conn, params, sk.options(cfg)...)
	if err != nil {
		return err
	}
	defer s.Close()
	sk.started(s.Info())
	return play(ctx, s, cfg.TickInterval, os.Stdin, os.Stdout)
}

func runJoin(ctx context.Context, cfg *config.AppConfig) error {
	sk, err := openSinks(ctx, cfg)
	if err != nil {
		return err
	}
	defer sk.close()

	conn, err := transport.Connect(ctx, cfg.Addr, transportOptions(cfg)...)
	if err != nil {
		return err
	}
	s, err := session.Join(ctx, conn, session.JoinParams{Name: cfg.Name}, sk.options(cfg)...)
	if err != nil {
		return err
	}
	defer s.Close()
	sk.started(s.Info())
	return play(ctx, s, cfg.TickInterval, os.Stdin, os.Stdout)
}

// play drives s at the tick cadence and applies stdin commands between ticks.
// Only this goroutine touches the session.
func play(ctx context.Context, s *session.Session, tick time.Duration, in io.Reader, out io.Writer) error {
	lines := readLines(ctx, in)
	view := board.NewView(s.Board())
	ui := &console{s: s, out: out}
	ui.banner()

	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	reported := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if quit := ui.handle(line); quit {
				return nil
			}
		case <-ticker.C:
			if err := s.Tick(); err != nil {
				return err
			}
			if sig := s.TakeSignal(); sig.Dirty {
				diff := board.ComputeDiff(s.Board(), view, sig.Last)
				view.Apply(diff)
				ui.moved(sig.Last)
			}
			if res, ok := s.Result(); ok && !reported {
				reported = true
				ui.finished(res)
			}
		}
	}
}
