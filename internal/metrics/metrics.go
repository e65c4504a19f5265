// Package metrics регистрирует prometheus метрики сервиса
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bunker"

var (
	RoomsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rooms_created_total",
		Help:      "Rooms created.",
	})

	RoomJoins = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "room_joins_total",
		Help:      "Room memberships created by join.",
	})

	RoomLeaves = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "room_leaves_total",
		Help:      "Room memberships destroyed by leave.",
	})

	Messages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_total",
		Help:      "Messages persisted, by kind (user, system).",
	}, []string{"kind"})

	Deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pubsub_deliveries_total",
		Help:      "Events handed to subscribed connections, by event kind.",
	}, []string{"event"})

	DeliveryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pubsub_delivery_failures_total",
		Help:      "Events a connection refused (closed or full queue).",
	})

	Connections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ws_connections",
		Help:      "Open websocket connections.",
	})
)

// Handler отдает метрики в формате prometheus
func Handler() http.Handler {
	return promhttp.Handler()
}
