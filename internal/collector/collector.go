// Package collector drives the fetch-append cycle: one synchronous
// bootstrap sample at startup, then a fixed-cadence loop until cancelled.
package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"PriceSentry/internal/fetch"
	"PriceSentry/internal/model"
	"PriceSentry/internal/recorder"
	"PriceSentry/internal/store"
)

// DefaultInterval is the fixed collection cadence.
const DefaultInterval = 60 * time.Second

// Operational metrics.
var (
	observationsAppended = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pricesentry_observations_appended_total",
		Help: "Observations durably appended to the log.",
	})
	fetchFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pricesentry_fetch_failures_total",
		Help: "Fetch failures by classified kind.",
	}, []string{"kind"})
	storeWriteFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pricesentry_store_write_failures_total",
		Help: "Observations lost to store write failures.",
	})
	lastPrice = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pricesentry_last_price",
		Help: "Most recently observed price.",
	})
	cycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pricesentry_cycle_duration_seconds",
		Help:    "Duration of collection cycles.",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(
		observationsAppended,
		fetchFailures,
		storeWriteFailures,
		lastPrice,
		cycleDuration,
	)
}

// Collector samples the source and appends observations to the log.
// The tracking identity is pinned by Bootstrap; later fetches may report a
// different name, which is logged but never changes what gets recorded.
type Collector struct {
	Fetcher   fetch.Fetcher
	Log       *store.Store
	Recorder  recorder.Recorder
	SourceURL string
	Now       func() time.Time

	identity string
	logger   *logrus.Entry
}

// New creates a Collector.
func New(fetcher fetch.Fetcher, log *store.Store, rec recorder.Recorder, sourceURL string, logger *logrus.Entry) *Collector {
	return &Collector{
		Fetcher:   fetcher,
		Log:       log,
		Recorder:  rec,
		SourceURL: sourceURL,
		Now:       time.Now,
		logger:    logger.WithField("component", "collector"),
	}
}

// Identity returns the product name pinned by Bootstrap.
func (c *Collector) Identity() string { return c.identity }

// Bootstrap performs the synchronous first sample. On success the reported
// name becomes the process-lifetime identity and observation #1 is durably
// appended. Any failure here is fatal to startup: the caller must not start
// Run or the interactive session.
func (c *Collector) Bootstrap(ctx context.Context) (model.Quote, error) {
	start := time.Now()
	quote, err := c.Fetcher.Fetch(ctx, c.SourceURL)
	if err != nil {
		return model.Quote{}, fmt.Errorf("initial fetch: %w", err)
	}

	c.identity = quote.Name
	obs, err := model.NewObservation(c.Now(), c.identity, quote.Price)
	if err != nil {
		return model.Quote{}, fmt.Errorf("initial observation: %w", err)
	}
	if err := c.Log.Append(obs); err != nil {
		return model.Quote{}, fmt.Errorf("initial append: %w", err)
	}

	observationsAppended.Inc()
	lastPrice.Set(quote.Price.InexactFloat64())
	c.recordCycle(&recorder.CycleEvent{
		Outcome:      recorder.CycleOK,
		ReportedName: quote.Name,
		Price:        quote.Price,
		Duration:     time.Since(start),
	})

	c.logger.WithFields(logrus.Fields{
		"product": c.identity,
		"price":   obs.PriceString(),
	}).Info("tracking started")
	return quote, nil
}

// Run samples on a fixed cadence until ctx is cancelled. Bootstrap already
// took the eager first sample, so the loop waits one full interval before
// its first cycle. Returns only after the loop has fully stopped, so a
// caller that waits on Run is guaranteed no append is in flight.
func (c *Collector) Run(ctx context.Context, interval time.Duration) {
	c.logger.WithField("interval", interval.String()).Info("collector started")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("collector stopped")
			return
		case <-ticker.C:
			c.collect(ctx)
		}
	}
}

// collect runs one cycle. Every failure is non-fatal: report, skip the
// sample, let the next tick try again.
func (c *Collector) collect(ctx context.Context) {
	start := time.Now()
	quote, err := c.Fetcher.Fetch(ctx, c.SourceURL)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		kind := string(fetch.KindOf(err))
		fetchFailures.WithLabelValues(kind).Inc()
		c.recordCycle(&recorder.CycleEvent{
			Outcome:   recorder.CycleFetchFailed,
			ErrorKind: kind,
			Duration:  time.Since(start),
		})
		c.logger.WithError(err).Warn("fetch failed, skipping cycle")
		return
	}

	if quote.Name != c.identity {
		c.logger.WithFields(logrus.Fields{
			"tracked":  c.identity,
			"reported": quote.Name,
		}).Debug("reported name differs from tracked identity")
	}

	obs, err := model.NewObservation(c.Now(), c.identity, quote.Price)
	if err != nil {
		kind := string(fetch.KindInvalidObservation)
		fetchFailures.WithLabelValues(kind).Inc()
		c.recordCycle(&recorder.CycleEvent{
			Outcome:      recorder.CycleFetchFailed,
			ReportedName: quote.Name,
			ErrorKind:    kind,
			Duration:     time.Since(start),
		})
		c.logger.WithError(err).Warn("rejected quote, skipping cycle")
		return
	}

	if err := c.Log.Append(obs); err != nil {
		storeWriteFailures.Inc()
		c.recordCycle(&recorder.CycleEvent{
			Outcome:      recorder.CycleStoreFailed,
			ReportedName: quote.Name,
			Price:        quote.Price,
			Duration:     time.Since(start),
		})
		c.logger.WithError(err).Error("append failed, observation lost")
		return
	}

	observationsAppended.Inc()
	lastPrice.Set(quote.Price.InexactFloat64())
	cycleDuration.Observe(time.Since(start).Seconds())
	c.recordCycle(&recorder.CycleEvent{
		Outcome:      recorder.CycleOK,
		ReportedName: quote.Name,
		Price:        quote.Price,
		Duration:     time.Since(start),
	})
	c.logger.WithFields(logrus.Fields{
		"product": c.identity,
		"price":   obs.PriceString(),
	}).Debug("observation appended")
}

func (c *Collector) recordCycle(evt *recorder.CycleEvent) {
	if err := c.Recorder.RecordCycle(evt); err != nil {
		c.logger.WithError(err).Warn("record cycle failed")
	}
}
