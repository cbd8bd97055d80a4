package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "chesslink"

// Metrics holds the protocol collectors. A nil *Metrics records nothing.
type Metrics struct {
	packetsSent     *prometheus.CounterVec
	packetsReceived *prometheus.CounterVec
	movesRejected   *prometheus.CounterVec
	ackLatency      prometheus.Histogram
	gamesFinished   *prometheus.CounterVec
	fatalErrors     *prometheus.CounterVec
	spectators      prometheus.Gauge
}

// New registers the collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		packetsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_sent_total",
			Help:      "Packets written to the peer",
		}, []string{"kind"}),

		packetsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_received_total",
			Help:      "Packets decoded from the peer",
		}, []string{"kind"}),

		movesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moves_rejected_total",
			Help:      "Moves answered with ok=false, by which side made the move",
		}, []string{"mover"}),

		ackLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ack_latency_seconds",
			Help:      "Time between sending a move and receiving its ack",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),

		gamesFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_finished_total",
			Help:      "Games that reached a terminal state",
		}, []string{"end_state"}),

		fatalErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fatal_errors_total",
			Help:      "Sessions aborted by a fatal link error",
		}, []string{"kind"}),

		spectators: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "spectators",
			Help:      "Connected spectator websockets",
		}),
	}
}

func (m *Metrics) PacketSent(kind string) {
	if m == nil {
		return
	}
	m.packetsSent.WithLabelValues(kind).Inc()
}

func (m *Metrics) PacketReceived(kind string) {
	if m == nil {
		return
	}
	m.packetsReceived.WithLabelValues(kind).Inc()
}

// MoveRejected counts a rejected move; mover is "local" or "remote".
func (m *Metrics) MoveRejected(mover string) {
	if m == nil {
		return
	}
	m.movesRejected.WithLabelValues(mover).Inc()
}

func (m *Metrics) AckLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.ackLatency.Observe(d.Seconds())
}

func (m *Metrics) GameFinished(endState string) {
	if m == nil {
		return
	}
	m.gamesFinished.WithLabelValues(endState).Inc()
}

func (m *Metrics) Fatal(kind string) {
	if m == nil {
		return
	}
	m.fatalErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) SpectatorJoined() {
	if m == nil {
		return
	}
	m.spectators.Inc()
}

func (m *Metrics) SpectatorLeft() {
	if m == nil {
		return
	}
	m.spectators.Dec()
}
