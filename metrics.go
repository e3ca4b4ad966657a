package tessera

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the Prometheus collectors of the renderer, labelled by world.
type Metrics struct {
	ChunksProcessed *prometheus.CounterVec
	RegionsRendered *prometheus.CounterVec
	TaskFailures    *prometheus.CounterVec
	TileWrites      *prometheus.CounterVec
	Rate            *prometheus.GaugeVec
	ETA             *prometheus.GaugeVec
	ActiveJobs      *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ChunksProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tessera",
			Name:      "chunks_processed_total",
			Help:      "Chunks scanned by render jobs.",
		}, []string{"world"}),
		RegionsRendered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tessera",
			Name:      "regions_rendered_total",
			Help:      "Regions whose tiles were written.",
		}, []string{"world"}),
		TaskFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tessera",
			Name:      "task_failures_total",
			Help:      "Scan tasks or tile saves that failed.",
		}, []string{"world"}),
		TileWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tessera",
			Name:      "tile_writes_total",
			Help:      "Native tiles written, per layer.",
		}, []string{"world", "layer"}),
		Rate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tessera",
			Name:      "render_rate_chunks",
			Help:      "Chunks per second over the last samples of the running job, per kind.",
		}, []string{"world", "kind"}),
		ETA: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tessera",
			Name:      "render_eta_seconds",
			Help:      "Estimated seconds until the running job finishes, per kind.",
		}, []string{"world", "kind"}),
		ActiveJobs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tessera",
			Name:      "active_jobs",
			Help:      "Render jobs running, per kind.",
		}, []string{"world", "kind"}),
	}
	if reg != nil {
		reg.MustRegister(m.ChunksProcessed, m.RegionsRendered, m.TaskFailures, m.TileWrites, m.Rate, m.ETA, m.ActiveJobs)
	}
	return m
}
