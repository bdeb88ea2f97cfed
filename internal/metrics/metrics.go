// Package metrics exposes Prometheus instrumentation for the calculator
// backend: upsert outcomes, feed fan-out, and connected peers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "calculator"

// Metrics 계산기 백엔드 지표
type Metrics struct {
	// UpsertsTotal 업서트 결과별 횟수. Labels: result (ok, invalid, error)
	UpsertsTotal *prometheus.CounterVec

	// FeedEventsTotal 발행한 피드 이벤트. Labels: type (change, presence_join, ...)
	FeedEventsTotal *prometheus.CounterVec

	// FeedDropsTotal 버퍼가 찬 구독자에게 버린 이벤트 수
	FeedDropsTotal prometheus.Counter

	// Subscribers 현재 WebSocket 구독자 수
	Subscribers prometheus.Gauge

	// TrackedPeers 세션별 접속 피어 수. Labels: session
	TrackedPeers *prometheus.GaugeVec
}

// New reg에 지표를 등록한다 (테스트는 prometheus.NewRegistry 사용)
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		UpsertsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upserts_total",
			Help:      "Calculator state upserts by result",
		}, []string{"result"}),
		FeedEventsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "events_total",
			Help:      "Feed events published by type",
		}, []string{"type"}),
		FeedDropsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "drops_total",
			Help:      "Feed events dropped for slow subscribers",
		}),
		Subscribers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "subscribers",
			Help:      "Currently connected feed subscribers",
		}),
		TrackedPeers: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "presence",
			Name:      "peers",
			Help:      "Peers in the latest presence snapshot by session",
		}, []string{"session"}),
	}
}
