package connect

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Killerbeez7/print-dungeon-backend/pkg/cache"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/db/models"
	pkgerrors "github.com/Killerbeez7/print-dungeon-backend/pkg/errors"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/logger"
)

// MetadataUserIDKey is the metadata key stamped on every connected account at
// creation time so webhook events carry their owner with them.
const MetadataUserIDKey = "internal_user_id"

type userLookup interface {
	FindByConnectAccountID(ctx context.Context, accountID string) (*models.User, error)
}

type fallbackObserver interface {
	IncResolverFallback()
}

// Resolver maps a connected account id back to the owning user. Metadata is
// the O(1) fast path; the TTL cache absorbs webhook bursts; the indexed
// reverse query is the last resort and is instrumented because sustained
// fallbacks mean accounts are being created without metadata.
type Resolver struct {
	users    userLookup
	cache    *cache.TTL[string, uuid.UUID]
	logg     *logger.Logger
	observer fallbackObserver
}

// ResolverParams carries the dependencies for NewResolver.
type ResolverParams struct {
	Users    userLookup
	Cache    *cache.TTL[string, uuid.UUID]
	Logger   *logger.Logger
	Observer fallbackObserver
}

// NewResolver builds an account-to-user resolver.
func NewResolver(params ResolverParams) (*Resolver, error) {
	if params.Users == nil {
		return nil, fmt.Errorf("user lookup required")
	}
	if params.Cache == nil {
		return nil, fmt.Errorf("resolver cache required")
	}
	return &Resolver{
		users:    params.Users,
		cache:    params.Cache,
		logg:     params.Logger,
		observer: params.Observer,
	}, nil
}

// ResolveAccountUser returns the internal user owning accountID. The event
// metadata is consulted first, then the cache, then the reverse index.
func (r *Resolver) ResolveAccountUser(ctx context.Context, accountID string, metadata map[string]string) (uuid.UUID, error) {
	if accountID == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}

	if raw, ok := metadata[MetadataUserIDKey]; ok && raw != "" {
		userID, err := uuid.Parse(raw)
		if err == nil {
			r.cache.Set(accountID, userID)
			return userID, nil
		}
		if r.logg != nil {
			r.logg.Warn(r.logg.WithAccountID(ctx, accountID), fmt.Sprintf("malformed %s metadata: %q", MetadataUserIDKey, raw))
		}
	}

	if userID, ok := r.cache.Get(accountID); ok {
		return userID, nil
	}

	// Reverse lookup. Loud on purpose: this path should be rare.
	if r.observer != nil {
		r.observer.IncResolverFallback()
	}
	if r.logg != nil {
		r.logg.Warn(r.logg.WithAccountID(ctx, accountID), "resolving account owner via reverse lookup, metadata missing")
	}

	user, err := r.users.FindByConnectAccountID(ctx, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, pkgerrors.New(pkgerrors.CodeNotFound, "no user mapped to connected account")
		}
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reverse account lookup")
	}

	r.cache.Set(accountID, user.ID)
	return user.ID, nil
}
