package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmehra2102/storefront/pkg/tracing"
)

type Store interface {
	LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]Event, error)
	MarkSent(ctx context.Context, ids []int64) error
	MarkFailed(ctx context.Context, id int64, errMsg string) error
	ExtendLease(ctx context.Context, relayID string, ids []int64, lease time.Duration) error
}

// Relay polls the outbox and hands leased events to a Publisher. Events a
// crashed relay had leased become eligible again once the lease expires.
type Relay struct {
	log       *slog.Logger
	store     Store
	publisher Publisher
	relayID   string
	batchSize int
	interval  time.Duration
	lease     time.Duration
}

type RelayOption func(*Relay)

func WithBatchSize(n int) RelayOption { return func(r *Relay) { r.batchSize = n } }

func WithInterval(d time.Duration) RelayOption { return func(r *Relay) { r.interval = d } }

func WithLease(d time.Duration) RelayOption { return func(r *Relay) { r.lease = d } }

func NewRelay(log *slog.Logger, store Store, publisher Publisher, relayID string, opts ...RelayOption) *Relay {
	r := &Relay{
		log:       log,
		store:     store,
		publisher: publisher,
		relayID:   relayID,
		batchSize: 100,
		interval:  500 * time.Millisecond,
		lease:     5 * time.Second,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Relay) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("relay stopping", "relay_id", r.relayID)
			return nil
		case <-t.C:
			if _, err := r.Flush(ctx); err != nil {
				r.log.Error("relay flush error", "relay_id", r.relayID, "err", err)
			}
		}
	}
}

// Flush publishes one batch and returns how many events were sent.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	events, err := r.store.LockBatch(ctx, r.relayID, r.batchSize, r.lease)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	ids := make([]int64, 0, len(events))
	deadline := time.Now().Add(r.lease / 2)
	for i, e := range events {
		if time.Now().After(deadline) {
			pending := make([]int64, 0, len(events)-i)
			for _, rest := range events[i:] {
				pending = append(pending, rest.ID)
			}
			if err := r.store.ExtendLease(ctx, r.relayID, pending, r.lease); err != nil {
				r.log.Warn("relay extend lease failed", "relay_id", r.relayID, "err", err)
			}
			deadline = time.Now().Add(r.lease / 2)
		}
		if err := r.publisher.Publish(tracing.ExtractTraceparent(ctx, e.Traceparent), e); err != nil {
			if markErr := r.store.MarkFailed(ctx, e.ID, err.Error()); markErr != nil {
				r.log.Error("relay mark failed error", "event_id", e.ID, "err", markErr)
			}
			continue
		}
		ids = append(ids, e.ID)
	}
	if len(ids) > 0 {
		if err := r.store.MarkSent(ctx, ids); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}
