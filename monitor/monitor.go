// monitor/monitor.go
package monitor

import (
	"context"
	"expvar"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/shahank42/hyper-typer/logger"
	"github.com/shahank42/hyper-typer/persistence"
)

type Metrics struct {
	ActiveRooms    prometheus.Gauge
	ActivePlayers  prometheus.Gauge
	RoomsCreated   prometheus.Counter
	RacesStarted   prometheus.Counter
	Requests       prometheus.Counter
	RequestLatency prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Number of live rooms",
		}),
		ActivePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_players",
			Help:      "Number of live player rows across all games",
		}),
		RoomsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_created_total",
			Help:      "Total number of rooms created",
		}),
		RacesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "races_started_total",
			Help:      "Total number of countdowns started",
		}),
		Requests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests handled",
		}),
		RequestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_latency_seconds",
			Help:      "HTTP request handling latency",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		}),
	}

	prometheus.MustRegister(
		m.ActiveRooms,
		m.ActivePlayers,
		m.RoomsCreated,
		m.RacesStarted,
		m.Requests,
		m.RequestLatency,
	)

	return m
}

// Monitor exposes prometheus metrics and keeps the live-entity gauges in
// sync with the store via a periodic cron job.
type Monitor struct {
	metrics      *Metrics
	store        persistence.Store
	cron         *cron.Cron
	startTime    time.Time
	requestCount int64
	mutex        sync.Mutex
}

func NewMonitor(namespace string, store persistence.Store) *Monitor {
	return &Monitor{
		metrics:   NewMetrics(namespace),
		store:     store,
		cron:      cron.New(),
		startTime: time.Now(),
	}
}

// StartServer serves /metrics on addr and starts the gauge refresh job.
func (m *Monitor) StartServer(addr string) {
	serveMux := http.NewServeMux()
	serveMux.Handle("/metrics", promhttp.Handler())

	expvar.Publish("uptime", expvar.Func(func() interface{} {
		return time.Since(m.startTime).Seconds()
	}))
	expvar.Publish("requests", expvar.Func(func() interface{} {
		m.mutex.Lock()
		defer m.mutex.Unlock()
		return m.requestCount
	}))
	serveMux.Handle("/debug/vars", expvar.Handler())

	if _, err := m.cron.AddFunc("@every 15s", m.refreshGauges); err != nil {
		logger.Log.Errorf("Failed to schedule gauge refresh: %v", err)
	}
	m.cron.Start()

	go func() {
		if err := http.ListenAndServe(addr, serveMux); err != nil {
			logger.Log.Errorf("Metrics server stopped: %v", err)
		}
	}()
}

// Stop halts the cron refresher.
func (m *Monitor) Stop() {
	m.cron.Stop()
}

func (m *Monitor) refreshGauges() {
	var rooms, players int64
	err := m.store.Transaction(context.Background(), func(tx persistence.Tx) error {
		var err error
		if rooms, err = tx.CountRooms(); err != nil {
			return err
		}
		players, err = tx.CountPlayers()
		return err
	})
	if err != nil {
		logger.Log.Errorf("Failed to refresh gauges: %v", err)
		return
	}

	m.metrics.ActiveRooms.Set(float64(rooms))
	m.metrics.ActivePlayers.Set(float64(players))
}

func (m *Monitor) IncRoomsCreated() {
	m.metrics.RoomsCreated.Inc()
}

func (m *Monitor) IncRacesStarted() {
	m.metrics.RacesStarted.Inc()
}

func (m *Monitor) IncRequests() {
	m.metrics.Requests.Inc()
	m.mutex.Lock()
	m.requestCount++
	m.mutex.Unlock()
}

func (m *Monitor) ObserveRequestLatency(duration time.Duration) {
	m.metrics.RequestLatency.Observe(duration.Seconds())
}
