package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Killerbeez7/print-dungeon-backend/pkg/db/models"
)

// Repository exposes user-related persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new user and returns the persisted model.
func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindByEmail retrieves the user matching the provided email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByConnectAccountID resolves the user carrying the given connected
// account pointer. Backed by the index on connect_account_id so webhook-path
// fallbacks stay single-row lookups.
func (r *Repository) FindByConnectAccountID(ctx context.Context, accountID string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("connect_account_id = ?", accountID).
		Limit(1).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SetConnectAccountID stores the forward pointer after account creation.
func (r *Repository) SetConnectAccountID(ctx context.Context, id uuid.UUID, accountID string) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("connect_account_id", accountID).Error
}

// SetStripeCustomerID records the buyer's gateway customer id.
func (r *Repository) SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("stripe_customer_id", customerID).Error
}

// UpdateLastLogin refreshes the user's last_login_at timestamp.
func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", at).Error
}
