// internal/services/review_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/tailorly/marketplace-backend/internal/config"
	"github.com/tailorly/marketplace-backend/internal/database"
	"github.com/tailorly/marketplace-backend/internal/models"
	"github.com/tailorly/marketplace-backend/internal/utils"
)

type ReviewService struct {
	db      *gorm.DB
	ratings *RatingAggregator
	storage MediaStore
	config  *config.Config
}

type CreateReviewRequest struct {
	BookingID string `json:"booking" validate:"required"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment" validate:"max=2000"`
}

type ReviewView struct {
	models.Review
	Customer *models.AccountRef `json:"customer"`
}

func NewReviewService(db *gorm.DB, ratings *RatingAggregator, storage MediaStore, config *config.Config) *ReviewService {
	return &ReviewService{
		db:      db,
		ratings: ratings,
		storage: storage,
		config:  config,
	}
}

// CreateReview records the customer's review of a completed booking and
// refreshes the tailor's rating in the same transaction.
func (s *ReviewService) CreateReview(ctx context.Context, actorID uuid.UUID, req *CreateReviewRequest) (*ReviewView, error) {
	if req.Rating < 1 || req.Rating > 5 {
		return nil, newError(KindInvalidInput, "review.invalid_rating", "rating must be between 1 and 5")
	}

	var review models.Review
	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		var booking models.Booking
		bookingID, err := uuid.Parse(strings.TrimSpace(req.BookingID))
		if err != nil {
			return newError(KindNotFound, "booking.not_found", "booking not found")
		}
		if err := tx.First(&booking, "id = ?", bookingID).Error; err != nil {
			return notFoundOr(err, "booking.not_found", "booking")
		}

		if booking.CustomerID != actorID {
			return newError(KindPermissionDenied, "review.not_owner", "you can only review your own booking")
		}
		if booking.Status != models.BookingStatusCompleted {
			return newError(KindInvalidState, "review.not_completed", "booking must be completed to review")
		}

		var existing int64
		if err := tx.Unscoped().Model(&models.Review{}).Where("booking_id = ?", booking.ID).Count(&existing).Error; err != nil {
			return fmt.Errorf("failed to check existing review: %w", err)
		}
		if existing > 0 {
			return newError(KindConflict, "review.already_exists", "booking already reviewed")
		}

		review = models.Review{
			BookingID:         booking.ID,
			CustomerID:        booking.CustomerID,
			ProviderAccountID: booking.ProviderAccountID,
			Rating:            req.Rating,
			Comment:           strings.TrimSpace(req.Comment),
		}
		if err := tx.Create(&review).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return newError(KindConflict, "review.already_exists", "booking already reviewed")
			}
			return fmt.Errorf("failed to create review: %w", err)
		}

		return s.ratings.OnReviewCreated(ctx, tx, &review)
	})
	if err != nil {
		return nil, err
	}

	return s.loadView(ctx, review.ID)
}

func (s *ReviewService) ListMine(ctx context.Context, actorID uuid.UUID, params utils.PaginationParams) ([]ReviewView, int64, error) {
	return s.list(ctx, s.db.WithContext(ctx).Model(&models.Review{}).Where("customer_id = ?", actorID), params)
}

// ListForTailor returns the public reviews of the tailor with username.
func (s *ReviewService) ListForTailor(ctx context.Context, username string, params utils.PaginationParams) ([]ReviewView, int64, error) {
	var account models.Account
	err := s.db.WithContext(ctx).
		Where("username = ? AND role = ?", username, models.AccountRoleTailor).
		First(&account).Error
	if err != nil {
		return nil, 0, notFoundOr(err, "tailor.not_found", "tailor")
	}
	return s.list(ctx, s.db.WithContext(ctx).Model(&models.Review{}).Where("provider_account_id = ?", account.ID), params)
}

func (s *ReviewService) list(ctx context.Context, query *gorm.DB, params utils.PaginationParams) ([]ReviewView, int64, error) {
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count reviews: %w", err)
	}

	var reviews []models.Review
	err := utils.ApplyPagination(withReviewRelations(query), params).
		Order("created_at DESC").
		Find(&reviews).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch reviews: %w", err)
	}

	views := make([]ReviewView, 0, len(reviews))
	for i := range reviews {
		views = append(views, toReviewView(&reviews[i]))
	}
	return views, total, nil
}

// AddImages appends uploaded images to the customer's own review.
func (s *ReviewService) AddImages(ctx context.Context, reviewID, actorID uuid.UUID, files []*multipart.FileHeader) (*ReviewView, error) {
	if len(files) == 0 {
		return nil, newError(KindInvalidInput, "upload.no_files", "no images were uploaded")
	}

	review, err := s.ownedReview(ctx, reviewID, actorID)
	if err != nil {
		return nil, err
	}

	var count int64
	var maxPosition int
	db := s.db.WithContext(ctx)
	if err := db.Model(&models.ReviewImage{}).Where("review_id = ?", review.ID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to count review images: %w", err)
	}
	if int(count)+len(files) > s.config.Upload.MaxReviewImages {
		return nil, newError(KindInvalidInput, "upload.too_many_images",
			fmt.Sprintf("a review can have at most %d images", s.config.Upload.MaxReviewImages))
	}
	if err := db.Model(&models.ReviewImage{}).Where("review_id = ?", review.ID).
		Select("COALESCE(MAX(position), 0)").Scan(&maxPosition).Error; err != nil {
		return nil, fmt.Errorf("failed to read image positions: %w", err)
	}

	uploads, err := uploadImages(ctx, s.storage, files, DefaultUploadOptions(s.config, "reviews"))
	if err != nil {
		return nil, err
	}

	images := make([]models.ReviewImage, 0, len(uploads))
	for i, up := range uploads {
		images = append(images, models.ReviewImage{
			ReviewID:   review.ID,
			Position:   maxPosition + i + 1,
			URL:        up.URL,
			StorageKey: up.Key,
		})
	}
	if err := db.Create(&images).Error; err != nil {
		discardUploads(ctx, s.storage, uploads)
		return nil, fmt.Errorf("failed to save review images: %w", err)
	}

	return s.loadView(ctx, review.ID)
}

func (s *ReviewService) DeleteImage(ctx context.Context, reviewID, imageID, actorID uuid.UUID) error {
	review, err := s.ownedReview(ctx, reviewID, actorID)
	if err != nil {
		return err
	}

	var image models.ReviewImage
	if err := s.db.WithContext(ctx).Where("id = ? AND review_id = ?", imageID, review.ID).First(&image).Error; err != nil {
		return notFoundOr(err, "image.not_found", "image")
	}
	if err := s.db.WithContext(ctx).Delete(&image).Error; err != nil {
		return fmt.Errorf("failed to delete review image: %w", err)
	}

	if err := s.storage.DeleteFile(ctx, image.StorageKey); err != nil {
		logrus.WithError(err).WithField("key", image.StorageKey).Warn("Failed to delete stored review image")
	}
	return nil
}

func (s *ReviewService) ownedReview(ctx context.Context, reviewID, actorID uuid.UUID) (*models.Review, error) {
	var review models.Review
	if err := s.db.WithContext(ctx).First(&review, "id = ?", reviewID).Error; err != nil {
		return nil, notFoundOr(err, "review.not_found", "review")
	}
	if review.CustomerID != actorID {
		return nil, newError(KindPermissionDenied, "review.not_owner", "you can only change your own review")
	}
	return &review, nil
}

func (s *ReviewService) loadView(ctx context.Context, reviewID uuid.UUID) (*ReviewView, error) {
	var review models.Review
	if err := withReviewRelations(s.db.WithContext(ctx)).First(&review, "id = ?", reviewID).Error; err != nil {
		return nil, notFoundOr(err, "review.not_found", "review")
	}
	view := toReviewView(&review)
	return &view, nil
}

func withReviewRelations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Customer").
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") })
}

func toReviewView(r *models.Review) ReviewView {
	return ReviewView{Review: *r, Customer: r.Customer.Ref()}
}

// uploadImages stores every file or none of them.
func uploadImages(ctx context.Context, store MediaStore, files []*multipart.FileHeader, options UploadOptions) ([]*UploadResult, error) {
	results := make([]*UploadResult, 0, len(files))
	for _, header := range files {
		res, err := uploadOne(ctx, store, header, options)
		if err != nil {
			discardUploads(ctx, store, results)
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

func uploadOne(ctx context.Context, store MediaStore, header *multipart.FileHeader, options UploadOptions) (*UploadResult, error) {
	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer file.Close()
	return store.UploadFile(ctx, file, header, options)
}

func discardUploads(ctx context.Context, store MediaStore, uploads []*UploadResult) {
	for _, up := range uploads {
		if err := store.DeleteFile(ctx, up.Key); err != nil {
			logrus.WithError(err).WithField("key", up.Key).Warn("Failed to discard upload")
		}
	}
}
