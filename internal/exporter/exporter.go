// Package exporter serves snapshots as Prometheus metrics. Every scrape
// takes a fresh snapshot.
package exporter

import (
	"context"
	"net/http"
	"time"

	"codeberg.org/mutker/hwsnap/internal/errors"
	"codeberg.org/mutker/hwsnap/internal/logger"
	"codeberg.org/mutker/hwsnap/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "hwsnap"

	DefaultScrapeTimeout = 15 * time.Second
	shutdownTimeout      = 5 * time.Second
)

// Source produces snapshots.
type Source interface {
	GetSnapshot(ctx context.Context) telemetry.Snapshot
}

type Collector struct {
	source  Source
	timeout time.Duration

	temperature *prometheus.Desc
	voltage     *prometheus.Desc
	power       *prometheus.Desc
	energy      *prometheus.Desc
	probeErrors *prometheus.Desc
	readings    *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

func NewCollector(source Source, timeout time.Duration) *Collector {
	if timeout <= 0 {
		timeout = DefaultScrapeTimeout
	}

	category := []string{"category"}

	return &Collector{
		source:  source,
		timeout: timeout,
		temperature: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "temperature_celsius"),
			"Resolved temperature per hardware category.", category, nil),
		voltage: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "voltage_volts"),
			"Resolved voltage per hardware category.", category, nil),
		power: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "power_watts"),
			"Resolved power draw per hardware category.", category, nil),
		energy: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "energy_joules_total"),
			"Cumulative energy counter since boot per hardware category.", category, nil),
		probeErrors: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "probe_errors"),
			"Probes that contributed nothing in the last scrape.", []string{"source", "kind"}, nil),
		readings: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "readings"),
			"Normalized readings gathered in the last scrape.", nil, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.temperature
	ch <- c.voltage
	ch <- c.power
	ch <- c.energy
	ch <- c.probeErrors
	ch <- c.readings
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	s := c.source.GetSnapshot(ctx)

	gauges := []struct {
		desc   *prometheus.Desc
		values map[telemetry.Category]*float64
	}{
		{c.temperature, s.Temperature},
		{c.voltage, s.Voltage},
		{c.power, s.Power},
	}
	for _, g := range gauges {
		for _, category := range telemetry.Categories {
			if v := g.values[category]; v != nil {
				ch <- prometheus.MustNewConstMetric(g.desc, prometheus.GaugeValue, *v, string(category))
			}
		}
	}

	for _, category := range telemetry.Categories {
		if e := s.Energy[category]; e != nil {
			ch <- prometheus.MustNewConstMetric(c.energy, prometheus.CounterValue, e.Joules, string(category))
		}
	}

	// a source reports at most one error per round
	for _, e := range s.Errors {
		ch <- prometheus.MustNewConstMetric(c.probeErrors, prometheus.GaugeValue, 1, string(e.Source), string(e.Kind))
	}

	ch <- prometheus.MustNewConstMetric(c.readings, prometheus.GaugeValue, float64(len(s.Readings)))
}

// Handler returns the metrics endpoint for c.
func Handler(c *Collector) (http.Handler, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		return nil, errors.New().Wrap(errors.ErrServeFailed, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return mux, nil
}

// Serve exposes c on addr until ctx is done.
func Serve(ctx context.Context, addr string, c *Collector) error {
	errFactory := errors.New()

	handler, err := Handler(c)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()

	logger.Info().Str("listen", addr).Msg("Serving metrics")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errFactory.Wrap(errors.ErrServeFailed, err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errFactory.Wrap(errors.ErrServeFailed, err).WithData(addr)
	}
}
