package client

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// DefaultBeaconQueue is the queue capacity used when none is given.
const DefaultBeaconQueue = 64

type beaconJob struct {
	path    string
	payload []byte
}

// Beacon sends requests in the background without reporting their outcome
// to the caller. Delivery is at most once: a failed send is logged and
// dropped. A single worker drains a bounded queue.
type Beacon struct {
	client  *Client
	timeout time.Duration
	logger  zerolog.Logger
	queue   chan beaconJob
	stop    chan struct{}
	wg      sync.WaitGroup
	closed  atomic.Bool
	once    sync.Once

	// OnDone, when set, is called by the worker after each send.
	OnDone func(path string, err error)
}

// NewBeacon starts the worker. size <= 0 uses DefaultBeaconQueue.
func NewBeacon(c *Client, size int, timeout time.Duration) *Beacon {
	if size <= 0 {
		size = DefaultBeaconQueue
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b := &Beacon{
		client:  c,
		timeout: timeout,
		logger:  c.logger,
		queue:   make(chan beaconJob, size),
		stop:    make(chan struct{}),
	}
	b.wg.Add(1)
	go b.run()
	return b
}

// Enqueue queues body for path. It returns false when the queue is full,
// the body cannot be encoded, or the beacon is closed.
func (b *Beacon) Enqueue(path string, body any) bool {
	if b.closed.Load() {
		return false
	}
	payload, err := json.Marshal(body)
	if err != nil {
		b.logger.Error().Err(err).Str("path", path).Msg("beacon encode failed")
		return false
	}
	select {
	case b.queue <- beaconJob{path: path, payload: payload}:
		return true
	default:
		return false
	}
}

// Close stops accepting work, sends what is already queued and waits for
// the worker to exit.
func (b *Beacon) Close() {
	b.once.Do(func() {
		b.closed.Store(true)
		close(b.stop)
	})
	b.wg.Wait()
}

func (b *Beacon) run() {
	defer b.wg.Done()
	for {
		select {
		case j := <-b.queue:
			b.send(j)
		case <-b.stop:
			for {
				select {
				case j := <-b.queue:
					b.send(j)
				default:
					return
				}
			}
		}
	}
}

func (b *Beacon) send(j beaconJob) {
	// Detached from any request context so cancellation of the caller does
	// not abort the send.
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	err := b.client.postRaw(ctx, j.path, j.payload, nil)
	if err != nil {
		b.logger.Warn().Err(err).Str("path", j.path).Msg("beacon send failed")
	} else {
		b.logger.Debug().Str("path", j.path).Msg("beacon sent")
	}
	if b.OnDone != nil {
		b.OnDone(j.path, err)
	}
}
