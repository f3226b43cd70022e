package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BuysTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dca_buys_total", Help: "Buy orders filled (fully or partially)"},
		[]string{"symbol"},
	)
	SellsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dca_sells_total", Help: "Sell orders filled (fully or partially)"},
		[]string{"symbol"},
	)
	SkipsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dca_skips_total", Help: "Decision cycles skipped, by reason"},
		[]string{"symbol", "reason"},
	)
	OpenLots = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "dca_open_lots", Help: "Open lots currently held"},
		[]string{"symbol"},
	)
	TotalOutlay = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "dca_total_outlay_dollars", Help: "Dollars tied up in open lots"},
	)
	AvailableBalance = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "dca_available_balance_dollars", Help: "Quote currency available to trade"},
	)
)

func init() {
	prometheus.MustRegister(BuysTotal, SellsTotal, SkipsTotal, OpenLots, TotalOutlay, AvailableBalance)
}

// Serve exposes /metrics on addr until the returned server is shut down.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
