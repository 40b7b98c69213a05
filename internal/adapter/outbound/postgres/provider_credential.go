package postgres

import (
	"context"
	"errors"

	"github.com/elevare/server/internal/model"
	"github.com/elevare/server/internal/port/outbound"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// providerCredentialAdapter implements outbound.CredentialDatabasePort.
type providerCredentialAdapter struct {
	db *gorm.DB
}

// NewProviderCredentialAdapter creates a new provider credential database adapter.
func NewProviderCredentialAdapter(db *gorm.DB) outbound.CredentialDatabasePort {
	return &providerCredentialAdapter{db: db}
}

func (a *providerCredentialAdapter) Get(ctx context.Context, userID, provider string) (*model.ProviderCredential, error) {
	var cred model.ProviderCredential
	err := a.db.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userID, provider).
		First(&cred).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cred, nil
}

func (a *providerCredentialAdapter) Upsert(ctx context.Context, cred *model.ProviderCredential) error {
	return a.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "provider"}},
			DoUpdates: clause.AssignmentColumns([]string{"encrypted_key", "key_hint", "updated_at"}),
		}).
		Create(cred).Error
}

func (a *providerCredentialAdapter) Delete(ctx context.Context, userID, provider string) error {
	return a.db.WithContext(ctx).
		Delete(&model.ProviderCredential{}, "user_id = ? AND provider = ?", userID, provider).Error
}

// Compile-time check
var _ outbound.CredentialDatabasePort = (*providerCredentialAdapter)(nil)
