package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"freelance-marketplace/internal/ledger"
	"freelance-marketplace/internal/models"

	"gorm.io/gorm"
)

// UserService maintains the read-through cache of on-chain user
// records. The ledger is always authoritative; rows here only exist so
// profile lookups don't hit the gateway.
type UserService struct {
	db     *gorm.DB
	ledger ledger.Ledger
}

// NewUserService creates a new UserService
func NewUserService(db *gorm.DB, l ledger.Ledger) *UserService {
	return &UserService{db: db, ledger: l}
}

// Refresh fetches the registration record from the ledger and upserts
// the cache row for the address.
func (s *UserService) Refresh(ctx context.Context, address string) (ledger.User, error) {
	user, err := s.ledger.User(ctx, address)
	if err != nil {
		return ledger.User{}, fmt.Errorf("failed to fetch user %s from ledger: %w", address, err)
	}

	cached := models.User{
		WalletAddress: strings.ToLower(address),
		Name:          user.Name,
		Role:          int(user.Role),
		Reputation:    user.Reputation,
		IsRegistered:  user.IsRegistered,
		LastSyncedAt:  time.Now(),
	}

	var existing models.User
	err = s.db.Where("wallet_address = ?", cached.WalletAddress).First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		if err := s.db.Create(&cached).Error; err != nil {
			return user, fmt.Errorf("failed to cache user: %w", err)
		}
		return user, nil
	}
	if err != nil {
		return user, fmt.Errorf("failed to look up cached user: %w", err)
	}

	err = s.db.Model(&existing).Updates(map[string]interface{}{
		"name":           cached.Name,
		"role":           cached.Role,
		"reputation":     cached.Reputation,
		"is_registered":  cached.IsRegistered,
		"last_synced_at": cached.LastSyncedAt,
	}).Error
	if err != nil {
		return user, fmt.Errorf("failed to update cached user: %w", err)
	}
	return user, nil
}

// GetCached returns the cached user row for an address.
func (s *UserService) GetCached(address string) (*models.User, error) {
	var user models.User
	err := s.db.Where("wallet_address = ?", strings.ToLower(address)).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Profile returns the profile for an address, serving from the cache
// and fetching from the ledger on a miss.
func (s *UserService) Profile(ctx context.Context, address string) (*models.User, error) {
	cached, err := s.GetCached(address)
	if err == nil {
		return cached, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("failed to look up cached user: %w", err)
	}

	if _, err := s.Refresh(ctx, address); err != nil {
		return nil, err
	}
	return s.GetCached(address)
}

// IsArbiter reports whether the address is the platform arbiter. Used
// on login so the unregistered arbiter account can be offered the
// arbiter role.
func (s *UserService) IsArbiter(ctx context.Context, address string) (bool, error) {
	arbiter, err := s.ledger.Arbiter(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to fetch arbiter address: %w", err)
	}
	return strings.EqualFold(arbiter, address), nil
}
