package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/storefront/internal/account/domain"
)

type memRepo struct {
	accounts map[string]domain.Account
	follows  map[[2]string]domain.Follow
	stores   map[string]domain.Store
}

func newMemRepo(accounts ...domain.Account) *memRepo {
	r := &memRepo{accounts: map[string]domain.Account{}, follows: map[[2]string]domain.Follow{}, stores: map[string]domain.Store{}}
	for _, a := range accounts {
		r.accounts[a.Base().ID] = a
	}
	return r
}

func (r *memRepo) Get(_ context.Context, id string) (domain.Account, error) {
	a, ok := r.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", id, domain.ErrAccountNotFound)
	}
	return a, nil
}

func (r *memRepo) SaveFollow(_ context.Context, f domain.Follow) error {
	key := [2]string{f.BuyerID, f.SellerID}
	if _, ok := r.follows[key]; !ok {
		r.follows[key] = f
	}
	return nil
}

func (r *memRepo) DeleteFollow(_ context.Context, buyerID, sellerID string) error {
	delete(r.follows, [2]string{buyerID, sellerID})
	return nil
}

func (r *memRepo) Following(_ context.Context, buyerID string) ([]domain.Seller, error) {
	var out []domain.Seller
	for key := range r.follows {
		if key[0] == buyerID {
			out = append(out, r.accounts[key[1]].(domain.Seller))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRepo) SaveStore(_ context.Context, st domain.Store) error {
	if prev, ok := r.stores[st.ID]; ok && prev.SellerID != st.SellerID {
		return domain.ErrInvalidStore
	}
	r.stores[st.ID] = st
	return nil
}

func (r *memRepo) StoresBySeller(_ context.Context, sellerID string) ([]domain.Store, error) {
	var out []domain.Store
	for _, st := range r.stores {
		if st.SellerID == sellerID {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func newTestService() (*Service, *memRepo) {
	repo := newMemRepo(
		domain.Buyer{Profile: domain.Profile{ID: "b-1", Name: "Ana"}},
		domain.Seller{Profile: domain.Profile{ID: "s-1", Name: "Pots Inc"}},
		domain.Seller{Profile: domain.Profile{ID: "s-2", Name: "Cups Ltd"}},
	)
	return NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), repo), repo
}

func TestFindBuyer(t *testing.T) {
	svc, _ := newTestService()

	b, err := svc.FindBuyer(context.Background(), "b-1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", b.Name)

	_, err = svc.FindBuyer(context.Background(), "s-1")
	assert.ErrorIs(t, err, domain.ErrRoleMismatch)

	_, err = svc.FindBuyer(context.Background(), "nobody")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestFollow(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	require.NoError(t, svc.Follow(ctx, "b-1", "s-2"))
	require.NoError(t, svc.Follow(ctx, "b-1", "s-1"))
	require.NoError(t, svc.Follow(ctx, "b-1", "s-1"))
	assert.Len(t, repo.follows, 2)

	sellers, err := svc.Following(ctx, "b-1")
	require.NoError(t, err)
	require.Len(t, sellers, 2)
	assert.Equal(t, "s-1", sellers[0].ID)

	require.NoError(t, svc.Unfollow(ctx, "b-1", "s-1"))
	sellers, err = svc.Following(ctx, "b-1")
	require.NoError(t, err)
	assert.Len(t, sellers, 1)
}

func TestFollow_RoleChecks(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	assert.ErrorIs(t, svc.Follow(ctx, "s-1", "s-2"), domain.ErrRoleMismatch)
	assert.ErrorIs(t, svc.Follow(ctx, "b-1", "b-1"), domain.ErrRoleMismatch)
	assert.ErrorIs(t, svc.Follow(ctx, "b-1", "ghost"), domain.ErrAccountNotFound)
	assert.Empty(t, repo.follows)
}

func TestOpenStore(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	require.NoError(t, svc.OpenStore(ctx, domain.Store{ID: "st-1", SellerID: "s-1", Name: "Pots"}))
	require.NoError(t, svc.OpenStore(ctx, domain.Store{ID: "st-2", SellerID: "s-2", Name: "Cups"}))

	assert.ErrorIs(t, svc.OpenStore(ctx, domain.Store{ID: "st-1", SellerID: "s-2", Name: "Stolen"}), domain.ErrInvalidStore)
	assert.ErrorIs(t, svc.OpenStore(ctx, domain.Store{ID: "st-3", SellerID: "b-1", Name: "Buyer shop"}), domain.ErrRoleMismatch)
	assert.ErrorIs(t, svc.OpenStore(ctx, domain.Store{ID: "st-4", SellerID: "s-1"}), domain.ErrInvalidStore)
	assert.ErrorIs(t, svc.OpenStore(ctx, domain.Store{ID: "st-5", SellerID: "ghost", Name: "X"}), domain.ErrAccountNotFound)
	assert.Len(t, repo.stores, 2)

	stores, err := svc.StoresBySeller(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, stores, 1)
	assert.Equal(t, "Pots", stores[0].Name)

	_, err = svc.StoresBySeller(ctx, "b-1")
	assert.ErrorIs(t, err, domain.ErrRoleMismatch)
}
