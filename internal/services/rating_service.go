// internal/services/rating_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tailorly/marketplace-backend/internal/models"
)

// RatingAggregator keeps a provider's avg_rating and total_reviews in step
// with its reviews. It is the only writer of those two columns.
type RatingAggregator struct{}

func NewRatingAggregator() *RatingAggregator {
	return &RatingAggregator{}
}

// OnReviewCreated recomputes the aggregate inside tx, which must be the
// transaction that inserted review.
func (a *RatingAggregator) OnReviewCreated(ctx context.Context, tx *gorm.DB, review *models.Review) error {
	return a.Recompute(ctx, tx, review.ProviderAccountID)
}

// Recompute rebuilds the aggregate for the provider owned by accountID.
func (a *RatingAggregator) Recompute(ctx context.Context, tx *gorm.DB, accountID uuid.UUID) error {
	tx = tx.WithContext(ctx)

	locking := tx
	if tx.Dialector.Name() == "postgres" {
		locking = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var provider models.Provider
	if err := locking.Where("account_id = ?", accountID).First(&provider).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logrus.WithField("account_id", accountID).Warn("Skipping rating update: tailor profile missing")
			return nil
		}
		return fmt.Errorf("failed to lock tailor profile: %w", err)
	}

	var agg struct {
		Total int64
		Count int64
	}
	err := tx.Model(&models.Review{}).
		Select("COALESCE(SUM(rating), 0) AS total, COUNT(*) AS count").
		Where("provider_account_id = ?", accountID).
		Scan(&agg).Error
	if err != nil {
		return fmt.Errorf("failed to aggregate ratings: %w", err)
	}

	err = tx.Model(&models.Provider{}).Where("id = ?", provider.ID).Updates(map[string]interface{}{
		"avg_rating":    AverageRating(agg.Total, agg.Count),
		"total_reviews": agg.Count,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to update tailor rating: %w", err)
	}
	return nil
}

// AverageRating is sum/count rounded half-up to two decimals. The rounding
// is done on integers so 4.005 never becomes 4.00 through float error.
func AverageRating(sum, count int64) float64 {
	if count <= 0 {
		return 0
	}
	hundredths := (sum*200 + count) / (2 * count)
	return float64(hundredths) / 100
}
