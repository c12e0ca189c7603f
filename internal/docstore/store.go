// Package docstore keeps a JSON document mirror of pledges and tracking
// links in badger. The relational store is authoritative; the mirror is
// written after it commits and serves fast lookups by pledge id and
// tracking id.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-pledge-backend/internal/domain"
)

// ErrNotFound is returned for a missing document.
var ErrNotFound = errors.New("document not found")

const (
	pledgePrefix   = "pledge/"
	trackingPrefix = "tracking/"

	defaultGCInterval = 5 * time.Minute
)

// Store is a badger-backed document store.
type Store struct {
	db         *badger.DB
	logger     zerolog.Logger
	dir        string
	gcInterval time.Duration

	gcTicker *time.Ticker
	gcStop   chan struct{}
	gcWg     sync.WaitGroup
}

// Option configures a Store.
type Option func(*Store)

// WithDir persists the store under dir. Without it the store is in memory.
func WithDir(dir string) Option { return func(s *Store) { s.dir = dir } }

// WithLogger sets the logger used for store and badger messages.
func WithLogger(lg zerolog.Logger) Option { return func(s *Store) { s.logger = lg } }

// WithGCInterval sets how often the value log is garbage collected; zero
// disables collection.
func WithGCInterval(d time.Duration) Option { return func(s *Store) { s.gcInterval = d } }

// New opens the store.
func New(opts ...Option) (*Store, error) {
	s := &Store{logger: zerolog.Nop(), gcInterval: defaultGCInterval}
	for _, opt := range opts {
		opt(s)
	}

	bopts := badger.DefaultOptions("").WithInMemory(true)
	if s.dir != "" {
		if err := os.MkdirAll(s.dir, 0o755); err != nil {
			return nil, fmt.Errorf("docstore: create dir: %w", err)
		}
		bopts = badger.DefaultOptions(s.dir)
	} else {
		// the value log only exists on disk
		s.gcInterval = 0
	}
	bopts = bopts.WithLogger(badgerLogger{s.logger}).WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("docstore: open: %w", err)
	}
	s.db = db

	if s.gcInterval > 0 {
		s.gcTicker = time.NewTicker(s.gcInterval)
		s.gcStop = make(chan struct{})
		s.gcWg.Add(1)
		go s.gc(s.gcTicker, s.gcStop)
	}
	return s, nil
}

func (s *Store) gc(t *time.Ticker, stop <-chan struct{}) {
	defer s.gcWg.Done()
	for {
		select {
		case <-t.C:
			for {
				err := s.db.RunValueLogGC(0.5)
				if err == nil {
					continue
				}
				if !errors.Is(err, badger.ErrNoRewrite) {
					s.logger.Warn().Err(err).Msg("docstore gc failed")
				}
				break
			}
		case <-stop:
			return
		}
	}
}

// Close stops garbage collection and closes the database.
func (s *Store) Close() error {
	if s.gcTicker != nil {
		s.gcTicker.Stop()
		close(s.gcStop)
		s.gcWg.Wait()
		s.gcTicker = nil
	}
	return s.db.Close()
}

func (s *Store) put(ctx context.Context, key string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), b)
	})
}

func (s *Store) get(ctx context.Context, key string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
}

// PutPledge stores the full pledge document, replacing any earlier one.
func (s *Store) PutPledge(ctx context.Context, p *domain.Pledge) error {
	return s.put(ctx, pledgePrefix+p.PledgeID, p)
}

// GetPledge returns the mirrored pledge.
func (s *Store) GetPledge(ctx context.Context, pledgeID string) (*domain.Pledge, error) {
	var p domain.Pledge
	if err := s.get(ctx, pledgePrefix+pledgeID, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// PutTrackingLink stores a tracking link document keyed by tracking id.
func (s *Store) PutTrackingLink(ctx context.Context, l *domain.TrackingLink) error {
	return s.put(ctx, trackingPrefix+l.TrackingID, l)
}

// GetTrackingLink returns the mirrored tracking link.
func (s *Store) GetTrackingLink(ctx context.Context, trackingID string) (*domain.TrackingLink, error) {
	var l domain.TrackingLink
	if err := s.get(ctx, trackingPrefix+trackingID, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// CountPledges counts mirrored pledge documents.
func (s *Store) CountPledges(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte(pledgePrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}
