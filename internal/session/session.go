// Package session is the foreground query loop: metric menu, window menu,
// answer, repeat, until the user quits or the context is cancelled.
package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"PriceSentry/internal/model"
	"PriceSentry/internal/query"
)

var queriesServed = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "pricesentry_queries_total",
	Help: "Interactive queries evaluated, by metric.",
}, []string{"metric"})

func init() {
	prometheus.MustRegister(queriesServed)
}

// Snapshotter is the read side of the observation log.
type Snapshotter interface {
	Snapshot() ([]model.PriceObservation, error)
}

// Session drives the interactive loop. Every query takes a fresh snapshot,
// so answers always reflect what the collector has logged so far.
type Session struct {
	Log      Snapshotter
	Identity string
	In       io.Reader
	Out      io.Writer
	Now      func() time.Time

	logger *logrus.Entry
}

// New creates a Session reading selections from in and reporting to out.
func New(log Snapshotter, identity string, in io.Reader, out io.Writer, logger *logrus.Entry) *Session {
	return &Session{
		Log:      log,
		Identity: identity,
		In:       in,
		Out:      out,
		Now:      time.Now,
		logger:   logger.WithField("component", "session"),
	}
}

// Run blocks until the user quits, input ends, or ctx is cancelled. Input
// lines are pumped through a channel so cancellation interrupts a pending
// read instead of hanging on it.
func (s *Session) Run(ctx context.Context) {
	lines := make(chan string)
	go s.pumpLines(ctx, lines)

	for {
		metric, ok := s.chooseMetric(ctx, lines)
		if !ok {
			break
		}
		days, ok := s.chooseWindow(ctx, lines)
		if !ok {
			break
		}
		s.answer(metric, days)
	}
	fmt.Fprintln(s.Out, farewell)
	s.logger.Info("session ended")
}

func (s *Session) pumpLines(ctx context.Context, lines chan<- string) {
	scanner := bufio.NewScanner(s.In)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
	close(lines)
}

// readLine returns the next normalized input line; ok is false on quit
// conditions (cancelled context or exhausted input).
func (s *Session) readLine(ctx context.Context, lines <-chan string) (string, bool) {
	select {
	case line, open := <-lines:
		if !open {
			return "", false
		}
		return strings.ToLower(strings.TrimSpace(line)), true
	case <-ctx.Done():
		return "", false
	}
}

func (s *Session) chooseMetric(ctx context.Context, lines <-chan string) (query.Metric, bool) {
	fmt.Fprint(s.Out, RenderMetricMenu())
	for {
		fmt.Fprint(s.Out, metricPrompt)
		c, ok := s.readLine(ctx, lines)
		if !ok || c == "q" {
			return 0, false
		}
		switch c {
		case "1":
			return query.Lowest, true
		case "2":
			return query.Average, true
		}
		fmt.Fprintln(s.Out, invalidChoice)
	}
}

func (s *Session) chooseWindow(ctx context.Context, lines <-chan string) (int, bool) {
	fmt.Fprint(s.Out, RenderWindowMenu())
	for {
		fmt.Fprint(s.Out, windowPrompt)
		c, ok := s.readLine(ctx, lines)
		if !ok || c == "q" {
			return 0, false
		}
		if n, err := strconv.Atoi(c); err == nil && n >= 1 && n <= len(windows) {
			return windows[n-1].Days, true
		}
		fmt.Fprintln(s.Out, invalidChoice)
	}
}

// answer evaluates one query against a fresh snapshot. Read failures and
// empty windows both come back as "not enough data"; neither ends the loop.
func (s *Session) answer(metric query.Metric, days int) {
	queriesServed.WithLabelValues(metric.String()).Inc()

	snap, err := s.Log.Snapshot()
	if err != nil {
		s.logger.WithError(err).Error("snapshot failed")
		fmt.Fprint(s.Out, noDataLine)
		return
	}

	res, err := query.Evaluate(snap, query.Request{
		Identity:   s.Identity,
		Metric:     metric,
		WindowDays: days,
		Today:      s.Now(),
	})
	if err != nil {
		fmt.Fprint(s.Out, noDataLine)
		return
	}
	fmt.Fprintln(s.Out, RenderResult(metric, days, res.Value))
}
