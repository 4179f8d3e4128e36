// internal/services/account_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/tailorly/marketplace-backend/internal/models"
)

// lastSeenResolution bounds how often an authenticated request writes the
// account row.
const lastSeenResolution = 5 * time.Minute

type AccountService struct {
	db  *gorm.DB
	now func() time.Time
}

// Identity is what the identity provider asserts about the caller.
type Identity struct {
	ID       uuid.UUID
	Username string
	Email    string
	Role     string
}

type UpdateAccountRequest struct {
	Role      *string  `json:"role,omitempty" validate:"omitempty,oneof=customer tailor"`
	Latitude  *float64 `json:"latitude,omitempty" validate:"omitempty,min=-90,max=90"`
	Longitude *float64 `json:"longitude,omitempty" validate:"omitempty,min=-180,max=180"`
}

func NewAccountService(db *gorm.DB) *AccountService {
	return &AccountService{db: db, now: time.Now}
}

// Sync upserts the local mirror of an identity. The token's role is used
// when the account is first seen; afterwards the stored role is kept so a
// PATCH /me role change sticks.
func (s *AccountService) Sync(ctx context.Context, id Identity) (*models.Account, error) {
	if id.ID == uuid.Nil || strings.TrimSpace(id.Username) == "" {
		return nil, newError(KindInvalidInput, "auth.invalid_identity", "token is missing user_id or username")
	}

	db := s.db.WithContext(ctx)
	now := s.now().UTC()

	var account models.Account
	err := db.First(&account, "id = ?", id.ID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		role := models.AccountRole(strings.ToLower(id.Role))
		if !role.Valid() {
			role = models.AccountRoleCustomer
		}
		account = models.Account{
			Username:   id.Username,
			Email:      id.Email,
			Role:       role,
			LastSeenAt: &now,
		}
		account.ID = id.ID
		if err := db.Create(&account).Error; err != nil {
			if !errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, fmt.Errorf("failed to create account: %w", err)
			}
			// Created by a concurrent request.
			if err := db.First(&account, "id = ?", id.ID).Error; err != nil {
				return nil, fmt.Errorf("failed to load account: %w", err)
			}
		}
		logrus.WithFields(logrus.Fields{"account_id": account.ID, "role": account.Role}).Info("Account created from identity")
	case err != nil:
		return nil, fmt.Errorf("failed to load account: %w", err)
	default:
		updates := map[string]interface{}{}
		if account.Username != id.Username {
			updates["username"] = id.Username
		}
		if id.Email != "" && account.Email != id.Email {
			updates["email"] = id.Email
		}
		if account.LastSeenAt == nil || now.Sub(*account.LastSeenAt) > lastSeenResolution {
			updates["last_seen_at"] = now
		}
		if len(updates) > 0 {
			if err := db.Model(&account).Updates(updates).Error; err != nil {
				return nil, fmt.Errorf("failed to update account: %w", err)
			}
			if err := db.First(&account, "id = ?", id.ID).Error; err != nil {
				return nil, fmt.Errorf("failed to load account: %w", err)
			}
		}
	}

	if account.IsTailor() {
		if _, err := ensureProvider(db, account.ID); err != nil {
			return nil, err
		}
	}
	return &account, nil
}

// UpdateMe changes the caller's role and location.
func (s *AccountService) UpdateMe(ctx context.Context, account *models.Account, req *UpdateAccountRequest) (*models.Account, error) {
	updates := map[string]interface{}{}

	if req.Role != nil {
		role := models.AccountRole(*req.Role)
		if !role.Valid() {
			return nil, newError(KindInvalidInput, "account.invalid_role", "role must be customer or tailor")
		}
		updates["role"] = role
	}
	if req.Latitude != nil {
		if math.IsNaN(*req.Latitude) || *req.Latitude < -90 || *req.Latitude > 90 {
			return nil, newError(KindInvalidInput, "search.invalid_coordinates", "latitude must be between -90 and 90")
		}
		updates["latitude"] = *req.Latitude
	}
	if req.Longitude != nil {
		if math.IsNaN(*req.Longitude) || *req.Longitude < -180 || *req.Longitude > 180 {
			return nil, newError(KindInvalidInput, "search.invalid_coordinates", "longitude must be between -180 and 180")
		}
		updates["longitude"] = *req.Longitude
	}

	db := s.db.WithContext(ctx)
	if len(updates) > 0 {
		if err := db.Model(account).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update account: %w", err)
		}
	}

	var updated models.Account
	if err := db.First(&updated, "id = ?", account.ID).Error; err != nil {
		return nil, notFoundOr(err, "account.not_found", "account")
	}
	if updated.IsTailor() {
		if _, err := ensureProvider(db, updated.ID); err != nil {
			return nil, err
		}
	}
	return &updated, nil
}

// ensureProvider returns the tailor profile of accountID, creating an empty
// one when missing.
func ensureProvider(db *gorm.DB, accountID uuid.UUID) (*models.Provider, error) {
	var provider models.Provider
	err := db.Where("account_id = ?", accountID).First(&provider).Error
	if err == nil {
		return &provider, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load tailor profile: %w", err)
	}

	provider = models.Provider{AccountID: accountID}
	if err := db.Create(&provider).Error; err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("failed to create tailor profile: %w", err)
		}
		if err := db.Where("account_id = ?", accountID).First(&provider).Error; err != nil {
			return nil, fmt.Errorf("failed to load tailor profile: %w", err)
		}
	}
	logrus.WithField("account_id", accountID).Info("Tailor profile created")
	return &provider, nil
}
