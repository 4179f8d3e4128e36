package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/tailorly/marketplace-backend/internal/models"
)

type accountSuite struct {
	serviceSuite
}

func TestAccountService(t *testing.T) {
	suite.Run(t, new(accountSuite))
}

func (s *accountSuite) providerCount(accountID uuid.UUID) int64 {
	var n int64
	s.Require().NoError(s.db.Model(&models.Provider{}).Where("account_id = ?", accountID).Count(&n).Error)
	return n
}

func (s *accountSuite) TestSyncCreatesAccount() {
	id := uuid.New()
	acc, err := s.accounts.Sync(s.ctx, Identity{ID: id, Username: "meera", Email: "meera@example.com", Role: "TAILOR"})
	s.Require().NoError(err)
	s.Equal(id, acc.ID)
	s.Equal(models.AccountRoleTailor, acc.Role)
	s.Require().NotNil(acc.LastSeenAt)
	s.EqualValues(1, s.providerCount(id))

	// Repeated syncs never duplicate the profile.
	_, err = s.accounts.Sync(s.ctx, Identity{ID: id, Username: "meera", Role: "tailor"})
	s.Require().NoError(err)
	s.EqualValues(1, s.providerCount(id))

	customer, err := s.accounts.Sync(s.ctx, Identity{ID: uuid.New(), Username: "ravi", Role: "admin"})
	s.Require().NoError(err)
	s.Equal(models.AccountRoleCustomer, customer.Role)
	s.EqualValues(0, s.providerCount(customer.ID))
}

func (s *accountSuite) TestSyncRejectsIncompleteIdentity() {
	_, err := s.accounts.Sync(s.ctx, Identity{ID: uuid.Nil, Username: "ravi"})
	s.requireKind(err, KindInvalidInput)

	_, err = s.accounts.Sync(s.ctx, Identity{ID: uuid.New(), Username: "  "})
	s.requireKind(err, KindInvalidInput)
}

func (s *accountSuite) TestStoredRoleWins() {
	acc := s.customer("ravi")
	role := "tailor"
	_, err := s.accounts.UpdateMe(s.ctx, acc, &UpdateAccountRequest{Role: &role})
	s.Require().NoError(err)

	again, err := s.accounts.Sync(s.ctx, Identity{ID: acc.ID, Username: "ravi", Role: "customer"})
	s.Require().NoError(err)
	s.Equal(models.AccountRoleTailor, again.Role)
	s.EqualValues(1, s.providerCount(acc.ID))
}

func (s *accountSuite) TestSyncRefreshesProfileFields() {
	acc := s.customer("ravi")

	updated, err := s.accounts.Sync(s.ctx, Identity{ID: acc.ID, Username: "ravi_k", Email: "ravi@example.com"})
	s.Require().NoError(err)
	s.Equal("ravi_k", updated.Username)
	s.Equal("ravi@example.com", updated.Email)

	// An empty email in the token keeps the stored one.
	updated, err = s.accounts.Sync(s.ctx, Identity{ID: acc.ID, Username: "ravi_k"})
	s.Require().NoError(err)
	s.Equal("ravi@example.com", updated.Email)
}

func (s *accountSuite) TestLastSeenIsThrottled() {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.accounts.now = func() time.Time { return start }
	acc := s.customer("ravi")

	s.accounts.now = func() time.Time { return start.Add(time.Minute) }
	acc, err := s.accounts.Sync(s.ctx, Identity{ID: acc.ID, Username: "ravi"})
	s.Require().NoError(err)
	s.True(acc.LastSeenAt.Equal(start))

	later := start.Add(10 * time.Minute)
	s.accounts.now = func() time.Time { return later }
	acc, err = s.accounts.Sync(s.ctx, Identity{ID: acc.ID, Username: "ravi"})
	s.Require().NoError(err)
	s.True(acc.LastSeenAt.Equal(later))
}

func (s *accountSuite) TestUpdateLocation() {
	acc := s.customer("ravi")
	lat, lng := 12.97, 77.59

	updated, err := s.accounts.UpdateMe(s.ctx, acc, &UpdateAccountRequest{Latitude: &lat, Longitude: &lng})
	s.Require().NoError(err)
	s.True(updated.HasLocation())
	s.Equal(models.AccountRoleCustomer, updated.Role)

	bad := 91.0
	_, err = s.accounts.UpdateMe(s.ctx, acc, &UpdateAccountRequest{Latitude: &bad})
	s.requireKind(err, KindInvalidInput)

	role := "admin"
	_, err = s.accounts.UpdateMe(s.ctx, acc, &UpdateAccountRequest{Role: &role})
	s.requireKind(err, KindInvalidInput)
}
