package itip

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "caldora_itip_messages_total",
		Help: "Total number of iTIP messages processed, by received method and result.",
	}, []string{"method", "result"})

	itemsMutated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "caldora_itip_item_mutations_total",
		Help: "Total number of calendar mutations submitted to a store.",
	}, []string{"operation"})

	itemsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "caldora_itip_items_skipped_total",
		Help: "Total number of items left untouched, by reason.",
	}, []string{"reason"})

	responsesDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "caldora_itip_responses_total",
		Help: "Total number of iTIP responses handed to a transport.",
	}, []string{"method", "scheme", "outcome"})
)

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
