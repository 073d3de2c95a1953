package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmehra2102/storefront/internal/account/domain"
)

type Service struct {
	log  *slog.Logger
	repo AccountRepository
	now  func() time.Time
}

func NewService(log *slog.Logger, repo AccountRepository) *Service {
	return &Service{log: log, repo: repo, now: time.Now}
}

func (s *Service) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	return s.repo.Get(ctx, id)
}

// FindBuyer resolves id to a Buyer; sellers are rejected with a RoleError.
func (s *Service) FindBuyer(ctx context.Context, id string) (domain.Buyer, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Buyer{}, err
	}
	return domain.AsBuyer(a)
}

// Follow records that buyerID follows sellerID. Following twice is a no-op.
func (s *Service) Follow(ctx context.Context, buyerID, sellerID string) error {
	if _, err := s.FindBuyer(ctx, buyerID); err != nil {
		return fmt.Errorf("follower: %w", err)
	}
	if _, err := s.findSeller(ctx, sellerID); err != nil {
		return fmt.Errorf("followee: %w", err)
	}
	f := domain.Follow{BuyerID: buyerID, SellerID: sellerID, FollowedAt: s.now().UTC()}
	if err := s.repo.SaveFollow(ctx, f); err != nil {
		return err
	}
	s.log.Info("buyer followed seller", "buyer_id", buyerID, "seller_id", sellerID)
	return nil
}

func (s *Service) Unfollow(ctx context.Context, buyerID, sellerID string) error {
	return s.repo.DeleteFollow(ctx, buyerID, sellerID)
}

// OpenStore registers a store owned by the seller named in st.SellerID.
// Saving an existing id again replaces its name and content.
func (s *Service) OpenStore(ctx context.Context, st domain.Store) error {
	if err := st.Validate(); err != nil {
		return err
	}
	if _, err := s.findSeller(ctx, st.SellerID); err != nil {
		return err
	}
	if err := s.repo.SaveStore(ctx, st); err != nil {
		return err
	}
	s.log.Info("store opened", "store_id", st.ID, "seller_id", st.SellerID)
	return nil
}

func (s *Service) StoresBySeller(ctx context.Context, sellerID string) ([]domain.Store, error) {
	if _, err := s.findSeller(ctx, sellerID); err != nil {
		return nil, err
	}
	return s.repo.StoresBySeller(ctx, sellerID)
}

func (s *Service) findSeller(ctx context.Context, id string) (domain.Seller, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Seller{}, err
	}
	return domain.AsSeller(a)
}

func (s *Service) Following(ctx context.Context, buyerID string) ([]domain.Seller, error) {
	if _, err := s.FindBuyer(ctx, buyerID); err != nil {
		return nil, err
	}
	return s.repo.Following(ctx, buyerID)
}
