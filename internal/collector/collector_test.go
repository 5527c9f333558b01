package collector

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceSentry/internal/fetch"
	"PriceSentry/internal/model"
	"PriceSentry/internal/recorder"
	"PriceSentry/internal/store"
)

const testInterval = 5 * time.Millisecond

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// scriptedFetcher replays a fixed sequence of results, repeating the last
// one once the script runs out.
type scriptedFetcher struct {
	mu      sync.Mutex
	quotes  []model.Quote
	errs    []error
	calls   int
}

func (s *scriptedFetcher) Name() string { return "scripted" }

func (s *scriptedFetcher) Fetch(_ context.Context, _ string) (model.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i >= len(s.quotes) {
		i = len(s.quotes) - 1
	}
	if err := s.errs[i]; err != nil {
		return model.Quote{}, err
	}
	return s.quotes[i], nil
}

func (s *scriptedFetcher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// captureRecorder keeps every recorded cycle for inspection.
type captureRecorder struct {
	mu     sync.Mutex
	cycles []recorder.CycleEvent
}

func (c *captureRecorder) RecordCycle(evt *recorder.CycleEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cycles = append(c.cycles, *evt)
	return nil
}

func (c *captureRecorder) RecordDigest(_ *recorder.DigestEvent) error { return nil }
func (c *captureRecorder) Close() error                               { return nil }

func (c *captureRecorder) outcomes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.cycles))
	for i, evt := range c.cycles {
		out[i] = evt.Outcome
	}
	return out
}

func (c *captureRecorder) errorKinds() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, evt := range c.cycles {
		if evt.ErrorKind != "" {
			out = append(out, evt.ErrorKind)
		}
	}
	return out
}

func quote(name, price string) model.Quote {
	return model.Quote{Name: name, Price: decimal.RequireFromString(price)}
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "price_data.csv"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBootstrap_PinsIdentityAndAppends(t *testing.T) {
	log := openStore(t)
	f := &scriptedFetcher{
		quotes: []model.Quote{quote("Ergo Mouse", "19.99")},
		errs:   []error{nil},
	}
	c := New(f, log, recorder.NewNoopRecorder(), "https://example.com/p/1", testLogger())

	q, err := c.Bootstrap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Ergo Mouse", q.Name)
	assert.Equal(t, "Ergo Mouse", c.Identity())

	snap, err := log.Snapshot()
	require.NoError(t, err)
	require.Len(t, snap, 1)
	assert.Equal(t, "Ergo Mouse", snap[0].ProductName)
	assert.Equal(t, "19.99", snap[0].PriceString())
}

func TestBootstrap_FetchFailureIsFatalAndAppendsNothing(t *testing.T) {
	log := openStore(t)
	f := &scriptedFetcher{
		quotes: []model.Quote{{}},
		errs:   []error{&fetch.Error{Kind: fetch.KindNetwork, Detail: "refused"}},
	}
	c := New(f, log, recorder.NewNoopRecorder(), "https://example.com/p/1", testLogger())

	_, err := c.Bootstrap(context.Background())
	require.Error(t, err)
	assert.True(t, fetch.IsKind(err, fetch.KindNetwork))
	assert.Empty(t, c.Identity())

	snap, err := log.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, snap)
}

func TestBootstrap_AppendFailureIsFatal(t *testing.T) {
	log := openStore(t)
	require.NoError(t, log.Close())

	f := &scriptedFetcher{
		quotes: []model.Quote{quote("Ergo Mouse", "19.99")},
		errs:   []error{nil},
	}
	c := New(f, log, recorder.NewNoopRecorder(), "https://example.com/p/1", testLogger())

	_, err := c.Bootstrap(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrWriteFailed))
}

func TestRun_CollectsOnCadenceAndJoins(t *testing.T) {
	log := openStore(t)
	f := &scriptedFetcher{
		quotes: []model.Quote{quote("Ergo Mouse", "19.99")},
		errs:   []error{nil},
	}
	c := New(f, log, recorder.NewNoopRecorder(), "https://example.com/p/1", testLogger())

	_, err := c.Bootstrap(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Run(ctx, testInterval)
	}()

	require.Eventually(t, func() bool {
		snap, err := log.Snapshot()
		return err == nil && len(snap) >= 4
	}, 2*time.Second, testInterval, "expected repeated collection cycles")

	cancel()
	wg.Wait()

	// After the join no further appends may land.
	snap1, err := log.Snapshot()
	require.NoError(t, err)
	time.Sleep(5 * testInterval)
	snap2, err := log.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, len(snap1), len(snap2))
}

func TestRun_CancelBeforeFirstTickJoinsPromptly(t *testing.T) {
	log := openStore(t)
	f := &scriptedFetcher{
		quotes: []model.Quote{quote("Ergo Mouse", "19.99")},
		errs:   []error{nil},
	}
	c := New(f, log, recorder.NewNoopRecorder(), "https://example.com/p/1", testLogger())

	_, err := c.Bootstrap(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Run(ctx, time.Hour)
	}()

	cancel()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not join after cancellation")
	}
	assert.Equal(t, 1, f.callCount(), "no cycle may run once cancelled")
}

func TestRun_ContinuesAfterFetchFailures(t *testing.T) {
	log := openStore(t)
	rec := &captureRecorder{}
	f := &scriptedFetcher{
		quotes: []model.Quote{
			quote("Ergo Mouse", "19.99"), // bootstrap
			{},                           // cycle 1: network error
			{},                           // cycle 2: missing field
			quote("Ergo Mouse", "18.49"), // cycle 3 onward: recovered
		},
		errs: []error{
			nil,
			&fetch.Error{Kind: fetch.KindNetwork, Detail: "timeout"},
			&fetch.Error{Kind: fetch.KindFieldNotFound, Detail: "price field not found"},
			nil,
		},
	}
	c := New(f, log, rec, "https://example.com/p/1", testLogger())

	_, err := c.Bootstrap(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Run(ctx, testInterval)
	}()

	require.Eventually(t, func() bool {
		snap, err := log.Snapshot()
		return err == nil && len(snap) >= 2
	}, 2*time.Second, testInterval, "loop should survive fetch failures and append again")

	cancel()
	wg.Wait()

	outcomes := rec.outcomes()
	assert.Contains(t, outcomes, recorder.CycleFetchFailed)
	assert.Contains(t, outcomes, recorder.CycleOK)
}

func TestRun_RejectedQuoteRecordedAsInvalidObservation(t *testing.T) {
	log := openStore(t)
	rec := &captureRecorder{}
	f := &scriptedFetcher{
		quotes: []model.Quote{
			quote("Ergo Mouse", "19.99"), // bootstrap
			quote("Ergo Mouse", "-1.00"), // cycle 1: rejected before logging
			quote("Ergo Mouse", "18.49"), // cycle 2 onward: recovered
		},
		errs: []error{nil, nil, nil},
	}
	c := New(f, log, rec, "https://example.com/p/1", testLogger())

	_, err := c.Bootstrap(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Run(ctx, testInterval)
	}()

	require.Eventually(t, func() bool {
		snap, err := log.Snapshot()
		return err == nil && len(snap) >= 2
	}, 2*time.Second, testInterval, "loop should survive a rejected quote and append again")

	cancel()
	wg.Wait()

	assert.Contains(t, rec.outcomes(), recorder.CycleFetchFailed)
	assert.Contains(t, rec.errorKinds(), string(fetch.KindInvalidObservation))

	snap, err := log.Snapshot()
	require.NoError(t, err)
	for _, o := range snap {
		assert.False(t, o.Price.IsNegative(), "rejected quotes must never reach the log")
	}
}

func TestRun_ContinuesAfterStoreFailures(t *testing.T) {
	log := openStore(t)
	rec := &captureRecorder{}
	f := &scriptedFetcher{
		quotes: []model.Quote{quote("Ergo Mouse", "19.99")},
		errs:   []error{nil},
	}
	c := New(f, log, rec, "https://example.com/p/1", testLogger())

	_, err := c.Bootstrap(context.Background())
	require.NoError(t, err)

	// Every append from here on fails; the loop must keep cycling.
	require.NoError(t, log.Close())

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Run(ctx, testInterval)
	}()

	before := f.callCount()
	require.Eventually(t, func() bool {
		return f.callCount() >= before+3
	}, 2*time.Second, testInterval, "loop should keep fetching despite store failures")

	cancel()
	wg.Wait()

	assert.Contains(t, rec.outcomes(), recorder.CycleStoreFailed)
}

func TestRun_IdentityStaysPinnedAcrossRename(t *testing.T) {
	log := openStore(t)
	f := &scriptedFetcher{
		quotes: []model.Quote{
			quote("Ergo Mouse", "19.99"),
			quote("Ergo Mouse (2nd Gen)", "18.00"),
		},
		errs: []error{nil, nil},
	}
	c := New(f, log, recorder.NewNoopRecorder(), "https://example.com/p/1", testLogger())

	_, err := c.Bootstrap(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Run(ctx, testInterval)
	}()

	require.Eventually(t, func() bool {
		snap, err := log.Snapshot()
		return err == nil && len(snap) >= 3
	}, 2*time.Second, testInterval)

	cancel()
	wg.Wait()

	snap, err := log.Snapshot()
	require.NoError(t, err)
	for _, o := range snap {
		assert.Equal(t, "Ergo Mouse", o.ProductName, "join key must stay pinned to the bootstrap identity")
	}
}
