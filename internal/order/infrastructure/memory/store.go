// Package memory is a process-local order store on go-memdb. Write
// transactions are serialized by memdb, which gives every unit of work the
// per-order and per-product linearizability Postgres provides with row locks.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-memdb"

	inventorydomain "github.com/dmehra2102/storefront/internal/inventory/domain"
	"github.com/dmehra2102/storefront/internal/order/application"
	"github.com/dmehra2102/storefront/internal/order/domain"
	"github.com/dmehra2102/storefront/pkg/outbox"
)

const (
	tableOrders   = "orders"
	tableProducts = "products"
)

type orderRecord struct {
	ID       string
	BuyerID  string
	Snapshot domain.Snapshot
}

func schema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			tableOrders: {
				Name: tableOrders,
				Indexes: map[string]*memdb.IndexSchema{
					"id":    {Name: "id", Unique: true, Indexer: &memdb.StringFieldIndex{Field: "ID"}},
					"buyer": {Name: "buyer", Indexer: &memdb.StringFieldIndex{Field: "BuyerID"}},
				},
			},
			tableProducts: {
				Name: tableProducts,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {Name: "id", Unique: true, Indexer: &memdb.StringFieldIndex{Field: "ID"}},
				},
			},
		},
	}
}

type Store struct {
	db *memdb.MemDB

	mu     sync.Mutex
	events []outbox.Event
	nextID int64
	leases map[int64]time.Time
}

func NewStore() (*Store, error) {
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		return nil, err
	}
	return &Store{db: db, leases: map[int64]time.Time{}}, nil
}

// PutProduct inserts or replaces a product.
func (s *Store) PutProduct(p inventorydomain.Product) error {
	txn := s.db.Txn(true)
	defer txn.Abort()
	if err := txn.Insert(tableProducts, &p); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (s *Store) GetProduct(_ context.Context, id string) (inventorydomain.Product, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()
	return loadProduct(txn, id)
}

func (s *Store) Get(_ context.Context, id string) (*domain.Order, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()
	return loadOrder(txn, id)
}

func (s *Store) ListByBuyer(_ context.Context, buyerID string) ([]*domain.Order, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableOrders, "buyer", buyerID)
	if err != nil {
		return nil, err
	}
	var out []*domain.Order
	for raw := it.Next(); raw != nil; raw = it.Next() {
		o, err := domain.FromSnapshot(raw.(*orderRecord).Snapshot)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt().Before(out[j].CreatedAt()) })
	return out, nil
}

// Events returns the outbox events committed so far.
func (s *Store) Events() []outbox.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]outbox.Event(nil), s.events...)
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx application.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	txn := s.db.Txn(true)
	defer txn.Abort()
	t := &tx{txn: txn}
	if err := fn(ctx, t); err != nil {
		return err
	}

	// Events are numbered while the writer lock is still held, so ids
	// follow commit order.
	if len(t.events) > 0 {
		s.mu.Lock()
		for _, ev := range t.events {
			s.nextID++
			ev.ID = s.nextID
			ev.Status = outbox.StatusPending
			s.events = append(s.events, ev)
		}
		s.mu.Unlock()
	}
	txn.Commit()
	return nil
}

type tx struct {
	txn    *memdb.Txn
	events []outbox.Event
}

func (t *tx) LoadOrder(_ context.Context, id string) (*domain.Order, error) {
	return loadOrder(t.txn, id)
}

func (t *tx) SaveOrder(_ context.Context, o *domain.Order) error {
	raw, err := t.txn.First(tableOrders, "id", o.ID())
	if err != nil {
		return err
	}
	var stored int64
	if raw != nil {
		stored = raw.(*orderRecord).Snapshot.Version
	}
	if (raw == nil && o.Version() != 0) || (raw != nil && stored != o.Version()) {
		return fmt.Errorf("order %s: stored version %d, have %d: %w", o.ID(), stored, o.Version(), domain.ErrConflict)
	}

	snap := o.Snapshot()
	snap.Version++
	if err := t.txn.Insert(tableOrders, &orderRecord{ID: snap.ID, BuyerID: snap.BuyerID, Snapshot: snap}); err != nil {
		return err
	}
	saved, err := domain.FromSnapshot(snap)
	if err != nil {
		return err
	}
	*o = *saved
	return nil
}

func (t *tx) Ledger() domain.StockLedger { return ledger{txn: t.txn} }

func (t *tx) AppendEvent(_ context.Context, ev outbox.Event) error {
	t.events = append(t.events, ev)
	return nil
}

type ledger struct {
	txn *memdb.Txn
}

func (l ledger) Debit(_ context.Context, productID string, amount int) (int, error) {
	return l.adjust(productID, func(p *inventorydomain.Product) (int, error) { return p.Debit(amount) })
}

func (l ledger) Credit(_ context.Context, productID string, amount int) (int, error) {
	return l.adjust(productID, func(p *inventorydomain.Product) (int, error) { return p.Credit(amount) })
}

// adjust applies fn to a copy so the row visible to readers is replaced,
// never mutated in place.
func (l ledger) adjust(productID string, fn func(*inventorydomain.Product) (int, error)) (int, error) {
	p, err := loadProduct(l.txn, productID)
	if err != nil {
		return 0, err
	}
	qty, err := fn(&p)
	if err != nil {
		return qty, err
	}
	if err := l.txn.Insert(tableProducts, &p); err != nil {
		return 0, err
	}
	return qty, nil
}

func loadOrder(txn *memdb.Txn, id string) (*domain.Order, error) {
	raw, err := txn.First(tableOrders, "id", id)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("order %s: %w", id, domain.ErrOrderNotFound)
	}
	return domain.FromSnapshot(raw.(*orderRecord).Snapshot)
}

func loadProduct(txn *memdb.Txn, id string) (inventorydomain.Product, error) {
	raw, err := txn.First(tableProducts, "id", id)
	if err != nil {
		return inventorydomain.Product{}, err
	}
	if raw == nil {
		return inventorydomain.Product{}, fmt.Errorf("product %s: %w", id, inventorydomain.ErrProductNotFound)
	}
	return *raw.(*inventorydomain.Product), nil
}

// The methods below let an outbox.Relay drain the store's events.

func (s *Store) LockBatch(_ context.Context, relayID string, batchSize int, lease time.Duration) ([]outbox.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var out []outbox.Event
	for i := range s.events {
		if len(out) == batchSize {
			break
		}
		ev := &s.events[i]
		eligible := ev.Status == outbox.StatusPending ||
			(ev.Status == outbox.StatusInProgress && now.After(s.leases[ev.ID])) ||
			(ev.Status == outbox.StatusFailed && ev.RetryCount < outbox.MaxRetries)
		if !eligible {
			continue
		}
		ev.Status = outbox.StatusInProgress
		ev.RelayID = relayID
		s.leases[ev.ID] = now.Add(lease)
		out = append(out, *ev)
	}
	return out, nil
}

func (s *Store) MarkSent(_ context.Context, ids []int64) error {
	return s.update(ids, func(ev *outbox.Event) {
		ev.Status = outbox.StatusSent
		delete(s.leases, ev.ID)
	})
}

func (s *Store) MarkFailed(_ context.Context, id int64, errMsg string) error {
	return s.update([]int64{id}, func(ev *outbox.Event) {
		ev.Status = outbox.StatusFailed
		ev.RetryCount++
		ev.LastError = &errMsg
		delete(s.leases, ev.ID)
	})
}

func (s *Store) ExtendLease(_ context.Context, relayID string, ids []int64, lease time.Duration) error {
	until := time.Now().Add(lease)
	return s.update(ids, func(ev *outbox.Event) {
		if ev.RelayID == relayID {
			s.leases[ev.ID] = until
		}
	})
}

func (s *Store) update(ids []int64, fn func(*outbox.Event)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		// ids are assigned sequentially from 1
		if id < 1 || id > int64(len(s.events)) {
			return fmt.Errorf("outbox event %d not found", id)
		}
		fn(&s.events[id-1])
	}
	return nil
}
