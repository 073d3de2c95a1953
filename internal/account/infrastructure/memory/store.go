package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/go-memdb"

	"github.com/dmehra2102/storefront/internal/account/domain"
)

const (
	tableAccounts = "accounts"
	tableFollows  = "follows"
	tableStores   = "stores"
)

type accountRecord struct {
	ID      string
	Account domain.Account
}

type followRecord struct {
	BuyerID  string
	SellerID string
	Follow   domain.Follow
}

type storeRecord struct {
	ID       string
	SellerID string
	Store    domain.Store
}

func schema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			tableAccounts: {
				Name: tableAccounts,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {Name: "id", Unique: true, Indexer: &memdb.StringFieldIndex{Field: "ID"}},
				},
			},
			tableFollows: {
				Name: tableFollows,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {Name: "id", Unique: true, Indexer: &memdb.CompoundIndex{Indexes: []memdb.Indexer{
						&memdb.StringFieldIndex{Field: "BuyerID"},
						&memdb.StringFieldIndex{Field: "SellerID"},
					}}},
					"buyer": {Name: "buyer", Indexer: &memdb.StringFieldIndex{Field: "BuyerID"}},
				},
			},
			tableStores: {
				Name: tableStores,
				Indexes: map[string]*memdb.IndexSchema{
					"id":     {Name: "id", Unique: true, Indexer: &memdb.StringFieldIndex{Field: "ID"}},
					"seller": {Name: "seller", Indexer: &memdb.StringFieldIndex{Field: "SellerID"}},
				},
			},
		},
	}
}

// Store keeps accounts, follows and seller stores in go-memdb.
type Store struct {
	db *memdb.MemDB
}

func NewStore() (*Store, error) {
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) SaveAccount(_ context.Context, a domain.Account) error {
	txn := s.db.Txn(true)
	defer txn.Abort()
	if err := txn.Insert(tableAccounts, &accountRecord{ID: a.Base().ID, Account: a}); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (s *Store) Get(_ context.Context, id string) (domain.Account, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()
	raw, err := txn.First(tableAccounts, "id", id)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("account %s: %w", id, domain.ErrAccountNotFound)
	}
	return raw.(*accountRecord).Account, nil
}

func (s *Store) SaveFollow(_ context.Context, f domain.Follow) error {
	txn := s.db.Txn(true)
	defer txn.Abort()
	existing, err := txn.First(tableFollows, "id", f.BuyerID, f.SellerID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	if err := txn.Insert(tableFollows, &followRecord{BuyerID: f.BuyerID, SellerID: f.SellerID, Follow: f}); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (s *Store) DeleteFollow(_ context.Context, buyerID, sellerID string) error {
	txn := s.db.Txn(true)
	defer txn.Abort()
	if _, err := txn.DeleteAll(tableFollows, "id", buyerID, sellerID); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (s *Store) Following(_ context.Context, buyerID string) ([]domain.Seller, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()
	it, err := txn.Get(tableFollows, "buyer", buyerID)
	if err != nil {
		return nil, err
	}
	var follows []domain.Follow
	for raw := it.Next(); raw != nil; raw = it.Next() {
		follows = append(follows, raw.(*followRecord).Follow)
	}
	sort.Slice(follows, func(i, j int) bool {
		if follows[i].FollowedAt.Equal(follows[j].FollowedAt) {
			return follows[i].SellerID < follows[j].SellerID
		}
		return follows[i].FollowedAt.Before(follows[j].FollowedAt)
	})

	out := make([]domain.Seller, 0, len(follows))
	for _, f := range follows {
		raw, err := txn.First(tableAccounts, "id", f.SellerID)
		if err != nil {
			return nil, err
		}
		if raw == nil {
			continue
		}
		seller, err := domain.AsSeller(raw.(*accountRecord).Account)
		if err != nil {
			return nil, err
		}
		out = append(out, seller)
	}
	return out, nil
}

func (s *Store) SaveStore(_ context.Context, st domain.Store) error {
	txn := s.db.Txn(true)
	defer txn.Abort()
	existing, err := txn.First(tableStores, "id", st.ID)
	if err != nil {
		return err
	}
	if existing != nil && existing.(*storeRecord).SellerID != st.SellerID {
		return fmt.Errorf("%w: store %s belongs to another seller", domain.ErrInvalidStore, st.ID)
	}
	if err := txn.Insert(tableStores, &storeRecord{ID: st.ID, SellerID: st.SellerID, Store: st}); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (s *Store) StoresBySeller(_ context.Context, sellerID string) ([]domain.Store, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()
	it, err := txn.Get(tableStores, "seller", sellerID)
	if err != nil {
		return nil, err
	}
	var out []domain.Store
	for raw := it.Next(); raw != nil; raw = it.Next() {
		out = append(out, raw.(*storeRecord).Store)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
