package business

import (
	"context"

	"github.com/gbjbuzz/service-esign/service/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// NewIdentityResolver resolves signing identities from the users table.
func NewIdentityResolver(db *gorm.DB) IdentityResolver {
	return &identityResolver{db: db}
}

type identityResolver struct {
	db *gorm.DB
}

func (ir *identityResolver) Resolve(ctx context.Context, userID string) (*Identity, error) {
	user := &models.User{}
	err := ir.db.WithContext(ctx).First(user, "id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(ErrorUnknownIdentity, "user id %s", userID)
		}
		return nil, err
	}

	return &Identity{ID: user.ID, Email: user.Email, SignID: user.SignID}, nil
}

func (ir *identityResolver) ResolveByEmail(ctx context.Context, email string) (*Identity, error) {
	user := &models.User{}
	err := ir.db.WithContext(ctx).First(user, "email = ?", email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(ErrorUnknownIdentity, "email %s", email)
		}
		return nil, err
	}

	return &Identity{ID: user.ID, Email: user.Email, SignID: user.SignID}, nil
}
