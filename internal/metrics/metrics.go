package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// WebhookRequests counts processed schema requests by type and outcome
	WebhookRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cardissuer",
		Name:      "webhook_requests_total",
		Help:      "Processed schema webhook requests.",
	}, []string{"type", "result"})

	// SettlementRuns counts settlement job runs by outcome
	SettlementRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cardissuer",
		Name:      "settlement_runs_total",
		Help:      "Settlement job runs.",
	}, []string{"result"})

	// OutdatedRollbacks counts authorizations rolled back after their TTL
	OutdatedRollbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cardissuer",
		Name:      "outdated_rollbacks_total",
		Help:      "Authorizations rolled back because presentment never came.",
	})
)

// Handler serves the prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
