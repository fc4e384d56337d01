package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name:        "opendmp_plugin_build_info",
			Help:        "Build information for the plugin descriptor server",
			ConstLabels: prometheus.Labels{"component": "python-script-processor"},
		},
		[]string{"date", "sha", "version"},
	)

	descriptorsRegistered = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "opendmp_plugin_descriptors_registered",
			Help: "Number of plugin descriptors held by the registry",
		},
	)

	descriptorRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opendmp_plugin_descriptor_requests_total",
			Help: "Descriptor API requests by route and status code",
		},
		[]string{"route", "code"},
	)

	catalogPublishes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opendmp_plugin_catalog_publish_total",
			Help: "Descriptor publications to the catalog by result",
		},
		[]string{"result"},
	)
)

// Register registers all collectors with r. Registering twice with the same
// registry is a no-op; any other registration error panics.
func Register(r prometheus.Registerer) {
	for _, c := range []prometheus.Collector{buildInfo, descriptorsRegistered, descriptorRequests, catalogPublishes} {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) && are.ExistingCollector == c {
				continue
			}
			panic(err)
		}
	}
}

// SetBuildInfo sets the build info metric.
func SetBuildInfo(version, sha, date string) {
	buildInfo.WithLabelValues(date, sha, version).Set(1)
}

// SetDescriptorsRegistered records the registry size.
func SetDescriptorsRegistered(n int) { descriptorsRegistered.Set(float64(n)) }

// RecordRequest counts a descriptor API response.
func RecordRequest(route string, code int) {
	descriptorRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// RecordPublish counts a catalog publication; failures are labelled "error".
func RecordPublish(err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	catalogPublishes.WithLabelValues(result).Inc()
}
