// internal/services/provider_service.go
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
)

type ProviderService struct {
	db      *gorm.DB
	storage MediaStore
	config  *config.Config
}

// TailorView is the public projection of a provider profile.
type TailorView struct {
	ID              uuid.UUID               `json:"id"`
	AccountID       uuid.UUID               `json:"user_id"`
	Username        string                  `json:"username"`
	Bio             string                  `json:"bio"`
	YearsExperience int                     `json:"years_experience"`
	AvgRating       float64                 `json:"avg_rating"`
	TotalReviews    int64                   `json:"total_reviews"`
	ProfileImageURL string                  `json:"profile_image_url,omitempty"`
	Specializations []models.Specialization `json:"specializations"`
}

type UpdateProfileRequest struct {
	Bio             *string   `json:"bio,omitempty" validate:"omitempty,max=2000"`
	YearsExperience *int      `json:"years_experience,omitempty" validate:"omitempty,min=0,max=80"`
	Specializations *[]string `json:"specializations,omitempty" validate:"omitempty,dive,max=100"`
}

type ServiceRequest struct {
	Name         *string  `json:"name,omitempty" validate:"omitempty,max=150"`
	Description  *string  `json:"description,omitempty"`
	Price        *float64 `json:"price,omitempty"`
	DurationDays *int     `json:"duration_days,omitempty"`
	IsActive     *bool    `json:"is_active,omitempty"`
}

func NewProviderService(db *gorm.DB, storage MediaStore, config *config.Config) *ProviderService {
	return &ProviderService{
		db:      db,
		storage: storage,
		config:  config,
	}
}

func toTailorView(p *models.Provider) TailorView {
	specs := p.Specializations
	if specs == nil {
		specs = []models.Specialization{}
	}
	return TailorView{
		ID:              p.ID,
		AccountID:       p.AccountID,
		Username:        p.Username(),
		Bio:             p.Bio,
		YearsExperience: p.YearsExperience,
		AvgRating:       p.AvgRating,
		TotalReviews:    p.TotalReviews,
		ProfileImageURL: p.ProfileImageURL,
		Specializations: specs,
	}
}

func withProviderRelations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Account").
		Preload("Specializations", func(db *gorm.DB) *gorm.DB { return db.Order("name ASC") })
}

// myProvider resolves the caller's tailor profile, creating it when the
// account is a tailor without one.
func (s *ProviderService) myProvider(ctx context.Context, actor *models.Account) (*models.Provider, error) {
	if !actor.IsTailor() {
		return nil, newError(KindPermissionDenied, "tailor.only_tailors", "only tailors have a profile")
	}
	return ensureProvider(s.db.WithContext(ctx), actor.ID)
}

func (s *ProviderService) loadTailor(ctx context.Context, providerID uuid.UUID) (*TailorView, error) {
	var provider models.Provider
	if err := withProviderRelations(s.db.WithContext(ctx)).First(&provider, "id = ?", providerID).Error; err != nil {
		return nil, notFoundOr(err, "tailor.not_found", "tailor")
	}
	view := toTailorView(&provider)
	return &view, nil
}

func (s *ProviderService) GetMyProfile(ctx context.Context, actor *models.Account) (*TailorView, error) {
	provider, err := s.myProvider(ctx, actor)
	if err != nil {
		return nil, err
	}
	return s.loadTailor(ctx, provider.ID)
}

// UpdateMyProfile edits bio and experience, and replaces the specialization
// set when one is given. Unknown specialization names are created.
func (s *ProviderService) UpdateMyProfile(ctx context.Context, actor *models.Account, req *UpdateProfileRequest) (*TailorView, error) {
	provider, err := s.myProvider(ctx, actor)
	if err != nil {
		return nil, err
	}

	err = database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		updates := map[string]interface{}{}
		if req.Bio != nil {
			updates["bio"] = strings.TrimSpace(*req.Bio)
		}
		if req.YearsExperience != nil {
			if *req.YearsExperience < 0 {
				return newError(KindInvalidInput, "tailor.invalid_experience", "years_experience cannot be negative")
			}
			updates["years_experience"] = *req.YearsExperience
		}
		if len(updates) > 0 {
			if err := tx.Model(provider).Updates(updates).Error; err != nil {
				return fmt.Errorf("failed to update tailor profile: %w", err)
			}
		}

		if req.Specializations == nil {
			return nil
		}
		specs, err := resolveSpecializations(tx, *req.Specializations)
		if err != nil {
			return err
		}
		assoc := tx.Model(provider).Association("Specializations")
		if len(specs) == 0 {
			if err := assoc.Clear(); err != nil {
				return fmt.Errorf("failed to clear specializations: %w", err)
			}
			return nil
		}
		if err := assoc.Replace(specs); err != nil {
			return fmt.Errorf("failed to set specializations: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.loadTailor(ctx, provider.ID)
}

// resolveSpecializations maps labels to catalogue rows, matching by slug so
// "blouse tailoring" and "Blouse Tailoring" share a row.
func resolveSpecializations(tx *gorm.DB, names []string) ([]models.Specialization, error) {
	seen := map[string]bool{}
	specs := make([]models.Specialization, 0, len(names))

	for _, name := range names {
		name = strings.TrimSpace(name)
		slug := models.Slugify(name)
		if slug == "" || seen[slug] {
			continue
		}
		seen[slug] = true

		var spec models.Specialization
		err := tx.Where("slug = ?", slug).First(&spec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			spec = models.Specialization{Name: name, Slug: slug}
			err = tx.Create(&spec).Error
		}
		if err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, newError(KindConflict, "specialization.conflict", "specialization "+name+" conflicts with an existing one")
			}
			return nil, fmt.Errorf("failed to resolve specialization %s: %w", name, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func (s *ProviderService) UploadProfileImage(ctx context.Context, actor *models.Account, header *multipart.FileHeader) (*TailorView, error) {
	provider, err := s.myProvider(ctx, actor)
	if err != nil {
		return nil, err
	}

	upload, err := uploadOne(ctx, s.storage, header, DefaultUploadOptions(s.config, "profiles"))
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(provider).Update("profile_image_url", upload.URL).Error; err != nil {
		discardUploads(ctx, s.storage, []*UploadResult{upload})
		return nil, fmt.Errorf("failed to update profile image: %w", err)
	}
	return s.loadTailor(ctx, provider.ID)
}

func (s *ProviderService) GetByUsername(ctx context.Context, username string) (*TailorView, error) {
	provider, err := s.providerByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.loadTailor(ctx, provider.ID)
}

func (s *ProviderService) providerByUsername(ctx context.Context, username string) (*models.Provider, error) {
	var provider models.Provider
	err := s.db.WithContext(ctx).
		Joins("JOIN accounts ON accounts.id = providers.account_id AND accounts.deleted_at IS NULL").
		Where("accounts.username = ?", username).
		First(&provider).Error
	if err != nil {
		return nil, notFoundOr(err, "tailor.not_found", "tailor")
	}
	return &provider, nil
}

// ListPublicServices returns a tailor's active services ordered by name.
func (s *ProviderService) ListPublicServices(ctx context.Context, username string) ([]models.Service, error) {
	provider, err := s.providerByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	var services []models.Service
	err = withServiceImages(s.db.WithContext(ctx)).
		Where("provider_id = ? AND is_active = ?", provider.ID, true).
		Order("name ASC").
		Find(&services).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch services: %w", err)
	}
	return services, nil
}

func (s *ProviderService) ListMyServices(ctx context.Context, actor *models.Account) ([]models.Service, error) {
	provider, err := s.myProvider(ctx, actor)
	if err != nil {
		return nil, err
	}

	var services []models.Service
	err = withServiceImages(s.db.WithContext(ctx)).
		Where("provider_id = ?", provider.ID).
		Order("created_at DESC").
		Find(&services).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch services: %w", err)
	}
	return services, nil
}

func (s *ProviderService) GetMyService(ctx context.Context, actor *models.Account, serviceID uuid.UUID) (*models.Service, error) {
	provider, err := s.myProvider(ctx, actor)
	if err != nil {
		return nil, err
	}
	return s.ownedService(ctx, provider.ID, serviceID)
}

func (s *ProviderService) CreateService(ctx context.Context, actor *models.Account, req *ServiceRequest) (*models.Service, error) {
	provider, err := s.myProvider(ctx, actor)
	if err != nil {
		return nil, err
	}
	if req.Name == nil || req.Price == nil || req.DurationDays == nil {
		return nil, newError(KindInvalidInput, "service.missing_fields", "name, price and duration_days are required")
	}

	service := models.Service{
		ProviderID:   provider.ID,
		Name:         strings.TrimSpace(*req.Name),
		Price:        *req.Price,
		DurationDays: *req.DurationDays,
		IsActive:     true,
	}
	if req.Description != nil {
		service.Description = strings.TrimSpace(*req.Description)
	}
	if req.IsActive != nil {
		service.IsActive = *req.IsActive
	}
	if err := validateService(&service); err != nil {
		return nil, err
	}
	if err := s.checkNameFree(ctx, provider.ID, service.Name, uuid.Nil); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Create(&service).Error; err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}
	logrus.WithFields(logrus.Fields{"service_id": service.ID, "provider_id": provider.ID}).Info("Service created")

	return s.ownedService(ctx, provider.ID, service.ID)
}

func (s *ProviderService) UpdateService(ctx context.Context, actor *models.Account, serviceID uuid.UUID, req *ServiceRequest) (*models.Service, error) {
	provider, err := s.myProvider(ctx, actor)
	if err != nil {
		return nil, err
	}
	service, err := s.ownedService(ctx, provider.ID, serviceID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		service.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		service.Description = strings.TrimSpace(*req.Description)
	}
	if req.Price != nil {
		service.Price = *req.Price
	}
	if req.DurationDays != nil {
		service.DurationDays = *req.DurationDays
	}
	if req.IsActive != nil {
		service.IsActive = *req.IsActive
	}
	if err := validateService(service); err != nil {
		return nil, err
	}
	if req.Name != nil {
		if err := s.checkNameFree(ctx, provider.ID, service.Name, service.ID); err != nil {
			return nil, err
		}
	}

	// Select keeps is_active=false from being skipped as a zero value.
	err = s.db.WithContext(ctx).Model(service).
		Select("name", "description", "price", "duration_days", "is_active").
		Updates(service).Error
	if err != nil {
		return nil, fmt.Errorf("failed to update service: %w", err)
	}
	return s.ownedService(ctx, provider.ID, service.ID)
}

// DeleteService soft-deletes so existing bookings keep their reference.
func (s *ProviderService) DeleteService(ctx context.Context, actor *models.Account, serviceID uuid.UUID) error {
	provider, err := s.myProvider(ctx, actor)
	if err != nil {
		return err
	}
	service, err := s.ownedService(ctx, provider.ID, serviceID)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(service).Error; err != nil {
		return fmt.Errorf("failed to delete service: %w", err)
	}
	return nil
}

func (s *ProviderService) AddServiceImages(ctx context.Context, actor *models.Account, serviceID uuid.UUID, files []*multipart.FileHeader) (*models.Service, error) {
	if len(files) == 0 {
		return nil, newError(KindInvalidInput, "upload.no_files", "no images were uploaded")
	}
	provider, err := s.myProvider(ctx, actor)
	if err != nil {
		return nil, err
	}
	service, err := s.ownedService(ctx, provider.ID, serviceID)
	if err != nil {
		return nil, err
	}

	limit := s.config.Upload.MaxServiceImages
	if len(service.Images)+len(files) > limit {
		return nil, newError(KindInvalidInput, "upload.too_many_images",
			fmt.Sprintf("a service can have at most %d images", limit))
	}
	next := 1
	for _, img := range service.Images {
		if img.Position >= next {
			next = img.Position + 1
		}
	}

	uploads, err := uploadImages(ctx, s.storage, files, DefaultUploadOptions(s.config, "services"))
	if err != nil {
		return nil, err
	}
	images := make([]models.ServiceImage, 0, len(uploads))
	for i, up := range uploads {
		images = append(images, models.ServiceImage{
			ServiceID:  service.ID,
			Position:   next + i,
			URL:        up.URL,
			StorageKey: up.Key,
		})
	}
	if err := s.db.WithContext(ctx).Create(&images).Error; err != nil {
		discardUploads(ctx, s.storage, uploads)
		return nil, fmt.Errorf("failed to save service images: %w", err)
	}

	return s.ownedService(ctx, provider.ID, service.ID)
}

func (s *ProviderService) DeleteServiceImage(ctx context.Context, actor *models.Account, serviceID, imageID uuid.UUID) error {
	provider, err := s.myProvider(ctx, actor)
	if err != nil {
		return err
	}
	service, err := s.ownedService(ctx, provider.ID, serviceID)
	if err != nil {
		return err
	}

	var image models.ServiceImage
	if err := s.db.WithContext(ctx).Where("id = ? AND service_id = ?", imageID, service.ID).First(&image).Error; err != nil {
		return notFoundOr(err, "image.not_found", "image")
	}
	if err := s.db.WithContext(ctx).Delete(&image).Error; err != nil {
		return fmt.Errorf("failed to delete service image: %w", err)
	}
	if err := s.storage.DeleteFile(ctx, image.StorageKey); err != nil {
		logrus.WithError(err).WithField("key", image.StorageKey).Warn("Failed to delete stored service image")
	}
	return nil
}

func (s *ProviderService) ListSpecializations(ctx context.Context) ([]models.Specialization, error) {
	var specs []models.Specialization
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&specs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch specializations: %w", err)
	}
	return specs, nil
}

func (s *ProviderService) ownedService(ctx context.Context, providerID, serviceID uuid.UUID) (*models.Service, error) {
	var service models.Service
	err := withServiceImages(s.db.WithContext(ctx)).
		Where("id = ? AND provider_id = ?", serviceID, providerID).
		First(&service).Error
	if err != nil {
		return nil, notFoundOr(err, "service.not_found", "service")
	}
	return &service, nil
}

// checkNameFree enforces name uniqueness among a provider's live services.
func (s *ProviderService) checkNameFree(ctx context.Context, providerID uuid.UUID, name string, except uuid.UUID) error {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Service{}).
		Where("provider_id = ? AND LOWER(name) = ? AND id <> ?", providerID, strings.ToLower(name), except).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("failed to check service name: %w", err)
	}
	if count > 0 {
		return newError(KindConflict, "service.duplicate_name", "you already have a service with that name")
	}
	return nil
}

func validateService(service *models.Service) error {
	switch {
	case service.Name == "":
		return newError(KindInvalidInput, "service.name_required", "name is required")
	case service.Price <= 0:
		return newError(KindInvalidInput, "service.invalid_price", "price must be greater than zero")
	case service.DurationDays <= 0:
		return newError(KindInvalidInput, "service.invalid_duration", "duration_days must be greater than zero")
	}
	return nil
}

func withServiceImages(db *gorm.DB) *gorm.DB {
	return db.Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") })
}
