// Package metrics exposes the engine's single-writer counters through
// a Prometheus registry. Everything is a CounterFunc or GaugeFunc over
// the existing stats structs; reads are approximate by design, the
// owners never pay for atomics on the hot path.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"matchd/network"
	"matchd/service"
)

type Server struct {
	reg *prometheus.Registry
}

func New() *Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Server{reg: reg}
}

func (s *Server) Handler() http.Handler {
	return promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{})
}

// RegisterProcessor wires one partition's counters, labelled by
// partition id.
func (s *Server) RegisterProcessor(p *service.Processor) {
	labels := prometheus.Labels{"partition": strconv.Itoa(p.ID())}

	counter := func(name, help string, get func() uint64) {
		s.reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   "matchd",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}, func() float64 { return float64(get()) }))
	}
	gauge := func(name, help string, get func() float64) {
		s.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   "matchd",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}, get))
	}

	counter("processor_messages_total", "Input messages processed.",
		func() uint64 { return p.Stats().Messages })
	counter("processor_outputs_total", "Output messages produced.",
		func() uint64 { return p.Stats().Outputs })
	counter("processor_trades_total", "Trades printed.",
		func() uint64 { return p.Stats().Trades })
	counter("processor_output_drops_total", "Outputs dropped on a full queue.",
		func() uint64 { return p.Stats().OutputDrops })

	eng := p.Engine()
	counter("engine_symbol_drops_total", "Orders dropped at the symbol cap.",
		func() uint64 { return eng.Stats().SymbolDrops })
	counter("engine_track_drops_total", "Cancel-tracker insert failures.",
		func() uint64 { return eng.Stats().TrackDrops })

	counter("pool_allocations_total", "Order pool allocations.",
		func() uint64 { return eng.Pool().Stats().Allocations })
	counter("pool_failures_total", "Order pool exhaustion events.",
		func() uint64 { return eng.Pool().Stats().Failures })
	gauge("pool_in_use", "Orders currently allocated.",
		func() float64 { return float64(eng.Pool().InUse()) })
	gauge("pool_peak", "High-water allocated orders.",
		func() float64 { return float64(eng.Pool().Stats().PeakUsage) })
	gauge("books", "Active order books.",
		func() float64 { return float64(len(eng.Books())) })
}

func (s *Server) RegisterIngress(g *network.Ingress) {
	s.reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "matchd",
		Name:      "ingress_routed_total",
		Help:      "Messages routed onto partition queues.",
	}, func() float64 { return float64(g.Routed()) }))
	s.reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "matchd",
		Name:      "ingress_dropped_total",
		Help:      "Messages dropped on full partition queues.",
	}, func() float64 { return float64(g.Dropped()) }))
}

func (s *Server) RegisterRegistry(reg *network.Registry) {
	s.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "matchd",
		Name:      "clients",
		Help:      "Connected clients.",
	}, func() float64 { return float64(reg.Len()) }))
}
