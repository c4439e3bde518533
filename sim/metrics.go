package sim

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	Loads        prometheus.Counter
	LoadErrors   *prometheus.CounterVec
	PayloadBytes prometheus.Counter
	Images       prometheus.Counter
	ImageBytes   prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Loads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "emumips_loader_loads_total",
			Help: "Total number of executables decoded successfully",
		}),
		LoadErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "emumips_loader_load_errors_total",
			Help: "Total number of rejected executables by error kind",
		}, []string{"kind"}),
		PayloadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "emumips_loader_payload_bytes_total",
			Help: "Total number of segment and section payload bytes allocated",
		}),
		Images: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "emumips_loader_images_total",
			Help: "Total number of process images assembled",
		}),
		ImageBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "emumips_loader_image_bytes_total",
			Help: "Total size of assembled process images",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.Loads,
			m.LoadErrors,
			m.PayloadBytes,
			m.Images,
			m.ImageBytes,
		)
	}
	return m
}

func (m *Metrics) failed(err error) {
	kind := "other"
	if k := KindOf(err); k != 0 {
		kind = k.String()
	}
	m.LoadErrors.WithLabelValues(kind).Inc()
}
