// Package store owns the durable observation log: an append-only CSV file
// shared by the collector (writes) and the query side (snapshot reads).
package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"PriceSentry/internal/model"
)

// Failure classes, matched with errors.Is through the wrap chain.
var (
	ErrWriteFailed = errors.New("store: write failed")
	ErrReadFailed  = errors.New("store: read failed")
)

var header = []string{"date", "product_name", "price"}

// Store is the append-only observation log. One mutex guards every append
// and snapshot; it is never held across network or user interaction.
type Store struct {
	mu        sync.Mutex
	path      string
	file      *os.File
	writer    *csv.Writer
	hasHeader bool
	logger    *logrus.Entry
}

// Open opens (or creates) the log at path and keeps an append handle for
// the life of the Store. The header row is written lazily on first append.
func Open(path string, logger *logrus.Entry) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create data dir: %w", ErrWriteFailed, err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open log: %w", ErrWriteFailed, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: stat log: %w", ErrWriteFailed, err)
	}

	s := &Store{
		path:      path,
		file:      f,
		writer:    csv.NewWriter(f),
		hasHeader: info.Size() > 0,
		logger:    logger.WithField("component", "store"),
	}
	s.logger.WithFields(logrus.Fields{"path": path, "existing_bytes": info.Size()}).Info("observation log opened")
	return s, nil
}

// Path returns the location of the log file.
func (s *Store) Path() string { return s.path }

// Append durably writes one observation. Safe to call concurrently with
// Snapshot and other Appends.
func (s *Store) Append(obs model.PriceObservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return fmt.Errorf("%w: log is closed", ErrWriteFailed)
	}
	if !s.hasHeader {
		if err := s.writer.Write(header); err != nil {
			return fmt.Errorf("%w: write header: %w", ErrWriteFailed, err)
		}
		s.hasHeader = true
	}
	if err := s.writer.Write([]string{obs.DateString(), obs.ProductName, obs.PriceString()}); err != nil {
		return fmt.Errorf("%w: write record: %w", ErrWriteFailed, err)
	}
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		return fmt.Errorf("%w: flush record: %w", ErrWriteFailed, err)
	}
	// fsync per append: a crash mid-cycle loses at most the in-flight record.
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("%w: sync log: %w", ErrWriteFailed, err)
	}
	return nil
}

// Snapshot reads every durable observation in append order. A missing file
// counts as an empty log. Malformed rows are skipped, never surfaced.
func (s *Store) Snapshot() ([]model.PriceObservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAll()
}

func (s *Store) readAll() ([]model.PriceObservation, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: open log: %w", ErrReadFailed, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var out []model.PriceObservation
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			s.logger.WithError(err).Warn("skipping unreadable log line")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read log: %w", ErrReadFailed, err)
		}
		obs, ok := parseRecord(rec)
		if !ok {
			continue
		}
		out = append(out, obs)
	}
	return out, nil
}

// parseRecord converts one CSV row, rejecting the header row and anything
// that does not form a whole observation.
func parseRecord(rec []string) (model.PriceObservation, bool) {
	if len(rec) != 3 {
		return model.PriceObservation{}, false
	}
	if rec[0] == header[0] && rec[1] == header[1] && rec[2] == header[2] {
		return model.PriceObservation{}, false
	}
	date, err := time.Parse(model.DateLayout, rec[0])
	if err != nil {
		return model.PriceObservation{}, false
	}
	price, err := decimal.NewFromString(rec[2])
	if err != nil || price.IsNegative() || rec[1] == "" {
		return model.PriceObservation{}, false
	}
	return model.PriceObservation{Date: date, ProductName: rec[1], Price: price}, true
}

// Close flushes and releases the append handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	s.writer.Flush()
	flushErr := s.writer.Error()
	closeErr := s.file.Close()
	s.file = nil
	s.logger.Info("observation log closed")
	if flushErr != nil {
		return fmt.Errorf("%w: final flush: %w", ErrWriteFailed, flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("%w: close log: %w", ErrWriteFailed, closeErr)
	}
	return nil
}
