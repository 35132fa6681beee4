package game

import "github.com/prometheus/client_golang/prometheus"

// Metrics — игровые метрики ядра.
//
// * ocean_sessions_active — gauge, число живых сессий
// * ocean_players_online — gauge, число подключённых игроков
// * ocean_events_total{type} — counter, обработанные входящие события
// * ocean_treasures_collected_total — counter, собранные сокровища
// * ocean_persist_errors_total — counter, ошибки best-effort записи в БД
type Metrics struct {
	sessionsActive     prometheus.Gauge
	playersOnline      prometheus.Gauge
	eventsTotal        *prometheus.CounterVec
	treasuresCollected prometheus.Counter
	persistErrors      prometheus.Counter
}

// NewMetrics создаёт метрики и регистрирует их в дефолтном регистре.
func NewMetrics() *Metrics {
	m := &Metrics{
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ocean",
			Name:      "sessions_active",
			Help:      "Число живых игровых сессий.",
		}),
		playersOnline: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ocean",
			Name:      "players_online",
			Help:      "Число подключённых игроков.",
		}),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ocean",
			Name:      "events_total",
			Help:      "Обработанные входящие события по типам.",
		}, []string{"type"}),
		treasuresCollected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ocean",
			Name:      "treasures_collected_total",
			Help:      "Успешно собранные сокровища.",
		}),
		persistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ocean",
			Name:      "persist_errors_total",
			Help:      "Ошибки асинхронной записи в долговременное хранилище.",
		}),
	}

	prometheus.MustRegister(
		m.sessionsActive,
		m.playersOnline,
		m.eventsTotal,
		m.treasuresCollected,
		m.persistErrors,
	)
	return m
}

// Все методы nil-безопасны: компоненты могут работать без метрик.

func (m *Metrics) event(eventType string) {
	if m != nil {
		m.eventsTotal.WithLabelValues(eventType).Inc()
	}
}

func (m *Metrics) setCounts(sessions, players int) {
	if m != nil {
		m.sessionsActive.Set(float64(sessions))
		m.playersOnline.Set(float64(players))
	}
}

func (m *Metrics) treasureCollected() {
	if m != nil {
		m.treasuresCollected.Inc()
	}
}

func (m *Metrics) persistError() {
	if m != nil {
		m.persistErrors.Inc()
	}
}
