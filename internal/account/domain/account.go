package domain

import (
	"errors"
	"fmt"
	"time"
)

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrRoleMismatch    = errors.New("account has the wrong role")
	ErrInvalidStore    = errors.New("invalid store")
)

// RoleError is returned when an account exists but cannot act in the
// requested capacity, e.g. a seller id used as an order's buyer.
type RoleError struct {
	AccountID string
	Want      Role
	Got       Role
}

func (e *RoleError) Error() string {
	return fmt.Sprintf("account %s is a %s, expected %s", e.AccountID, e.Got, e.Want)
}

func (e *RoleError) Unwrap() error { return ErrRoleMismatch }

// Profile holds the fields every account carries regardless of role.
type Profile struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	CreatedAt time.Time
}

// Account is either a Buyer or a Seller.
type Account interface {
	Base() Profile
	Role() Role
}

type Buyer struct {
	Profile
	Addresses []string
}

func (b Buyer) Base() Profile { return b.Profile }
func (b Buyer) Role() Role    { return RoleBuyer }

// DefaultAddress is the first saved address, used when an order is created
// without one.
func (b Buyer) DefaultAddress() string {
	if len(b.Addresses) == 0 {
		return ""
	}
	return b.Addresses[0]
}

type Seller struct {
	Profile
	StoreName            string
	SellerType           string
	BusinessRegistration string
	TaxID                string
	Rating               float64
}

func (s Seller) Base() Profile { return s.Profile }
func (s Seller) Role() Role    { return RoleSeller }

// Follow is one row of the buyer→seller relation.
type Follow struct {
	BuyerID    string
	SellerID   string
	FollowedAt time.Time
}

// Store is owned by exactly one seller; products point at stores by id.
type Store struct {
	ID       string
	SellerID string
	Name     string
	Content  string
}

func (s Store) Validate() error {
	switch {
	case s.ID == "":
		return fmt.Errorf("%w: id is required", ErrInvalidStore)
	case s.SellerID == "":
		return fmt.Errorf("%w: seller id is required", ErrInvalidStore)
	case s.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidStore)
	}
	return nil
}

// AsBuyer narrows an account to a Buyer.
func AsBuyer(a Account) (Buyer, error) {
	b, ok := a.(Buyer)
	if !ok {
		return Buyer{}, &RoleError{AccountID: a.Base().ID, Want: RoleBuyer, Got: a.Role()}
	}
	return b, nil
}

// AsSeller narrows an account to a Seller.
func AsSeller(a Account) (Seller, error) {
	s, ok := a.(Seller)
	if !ok {
		return Seller{}, &RoleError{AccountID: a.Base().ID, Want: RoleSeller, Got: a.Role()}
	}
	return s, nil
}
