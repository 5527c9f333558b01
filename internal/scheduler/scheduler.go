package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"PriceSentry/internal/collector"
	"PriceSentry/internal/query"
	"PriceSentry/internal/recorder"
	"PriceSentry/internal/store"
)

// DigestWindowDays is the trailing window summarized by the daily digest.
const DigestWindowDays = 7

// Scheduler manages the cron-driven digest over the observation log.
type Scheduler struct {
	Cron      *cron.Cron
	Collector *collector.Collector
	Log       *store.Store
	Recorder  recorder.Recorder
	logger    *logrus.Entry
}

// NewScheduler creates a Scheduler.
func NewScheduler(col *collector.Collector, log *store.Store, rec recorder.Recorder, logger *logrus.Entry) *Scheduler {
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		Collector: col,
		Log:       log,
		Recorder:  rec,
		logger:    logger.WithField("component", "scheduler"),
	}
}

// Register registers the digest task. Cron specs use six fields (with seconds).
func (s *Scheduler) Register(digestCron string) error {
	if _, err := s.Cron.AddFunc(digestCron, s.digestTask); err != nil {
		return fmt.Errorf("register digest task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.logger.Info("scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.Cron.Stop()
	s.logger.Info("scheduler stopped")
}

// RunDigestNow executes the digest task immediately (manual trigger).
func (s *Scheduler) RunDigestNow() {
	s.digestTask()
}

func (s *Scheduler) digestTask() {
	identity := s.Collector.Identity()
	if identity == "" {
		s.logger.Warn("digest skipped, no tracked product yet")
		return
	}

	snap, err := s.Log.Snapshot()
	if err != nil {
		s.logger.WithError(err).Error("digest snapshot failed")
		return
	}

	today := time.Now()
	low, err := query.Evaluate(snap, query.Request{
		Identity: identity, Metric: query.Lowest, WindowDays: DigestWindowDays, Today: today,
	})
	if err != nil {
		s.logger.WithError(err).Warn("digest skipped")
		return
	}
	avg, err := query.Evaluate(snap, query.Request{
		Identity: identity, Metric: query.Average, WindowDays: DigestWindowDays, Today: today,
	})
	if err != nil {
		s.logger.WithError(err).Warn("digest skipped")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"product":     identity,
		"window_days": DigestWindowDays,
		"lowest":      low.Value.StringFixed(2),
		"average":     avg.Value.StringFixed(2),
		"samples":     low.Samples,
	}).Info("daily digest")

	if err := s.Recorder.RecordDigest(&recorder.DigestEvent{
		WindowDays: DigestWindowDays,
		Lowest:     low.Value,
		Average:    avg.Value,
		Samples:    low.Samples,
	}); err != nil {
		s.logger.WithError(err).Warn("record digest failed")
	}
}
