package metrics

import "github.com/prometheus/client_golang/prometheus"

// PrometheusOptions configures NewPrometheusHook, mirroring
// rocketbitz-libfabric-go/client.PrometheusMetricsOptions.
type PrometheusOptions struct {
	Registerer  prometheus.Registerer
	Namespace   string
	Subsystem   string
	ConstLabels prometheus.Labels
}

var _ Hook = (*PrometheusHook)(nil)

// PrometheusHook implements Hook using Prometheus counters.
type PrometheusHook struct {
	submitOK    prometheus.Counter
	submitError *prometheus.CounterVec
	mprRetry    prometheus.Counter
	tagFallback prometheus.Counter
}

// NewPrometheusHook constructs a Hook backed by Prometheus counters
// and registers them with opts.Registerer (prometheus.DefaultRegisterer
// if nil).
func NewPrometheusHook(opts PrometheusOptions) (*PrometheusHook, error) {
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	h := &PrometheusHook{
		submitOK: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Subsystem:   opts.Subsystem,
			Name:        "nvme_mi_submit_ok_total",
			Help:        "Number of submit exchanges that completed successfully",
			ConstLabels: opts.ConstLabels,
		}),
		submitError: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Subsystem:   opts.Subsystem,
			Name:        "nvme_mi_submit_errors_total",
			Help:        "Number of submit exchanges that failed, by error kind",
			ConstLabels: opts.ConstLabels,
		}, []string{"kind"}),
		mprRetry: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Subsystem:   opts.Subsystem,
			Name:        "nvme_mi_mpr_retries_total",
			Help:        "Number of More Processing Required retries performed",
			ConstLabels: opts.ConstLabels,
		}),
		tagFallback: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Subsystem:   opts.Subsystem,
			Name:        "nvme_mi_tag_alloc_fallback_total",
			Help:        "Number of endpoints that fell back to the generic tag-owner sentinel",
			ConstLabels: opts.ConstLabels,
		}),
	}

	for _, c := range []prometheus.Collector{h.submitOK, h.submitError, h.mprRetry, h.tagFallback} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return h, nil
}

func (h *PrometheusHook) SubmitOK()          { h.submitOK.Inc() }
func (h *PrometheusHook) SubmitError(k string) { h.submitError.WithLabelValues(k).Inc() }
func (h *PrometheusHook) MPRRetry()          { h.mprRetry.Inc() }
func (h *PrometheusHook) TagAllocFallback()  { h.tagFallback.Inc() }
