package ws

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	deliveryOK      = "delivered"
	deliveryOffline = "offline"
	deliveryDropped = "dropped"
)

var (
	liveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kralgram_live_connections",
		Help: "Number of registered websocket connections.",
	})

	messagesRouted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kralgram_messages_routed_total",
		Help: "Messages persisted and fanned out.",
	})

	readReceipts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kralgram_read_receipts_total",
		Help: "Read receipts applied to stored messages.",
	})

	deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kralgram_deliveries_total",
		Help: "Delivery attempts by outcome.",
	}, []string{"outcome"})
)
