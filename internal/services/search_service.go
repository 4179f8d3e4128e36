// internal/services/search_service.go
package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/tailorly/marketplace-backend/internal/config"
	"github.com/tailorly/marketplace-backend/internal/geo"
	"github.com/tailorly/marketplace-backend/internal/models"
	"github.com/tailorly/marketplace-backend/internal/utils"
)

type SearchService struct {
	db       *gorm.DB
	strategy geo.Strategy
	cache    *redis.Client
	config   *config.Config
}

// SearchParams is a validated tailor search.
type SearchParams struct {
	Specialization string
	Origin         *geo.Point
	RadiusKm       float64
	Pagination     utils.PaginationParams
}

type MatchedService struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Price        float64   `json:"price"`
	DurationDays int       `json:"duration_days"`
	IsActive     bool      `json:"is_active"`
}

type SearchResult struct {
	TailorView
	DistanceKm     *float64        `json:"distance_km,omitempty"`
	MatchedService *MatchedService `json:"matched_service,omitempty"`
}

type SearchPage struct {
	Results []SearchResult `json:"results"`
	Total   int64          `json:"total"`
	// DistanceMode names the strategy that produced distance_km.
	DistanceMode string `json:"distance_mode,omitempty"`
}

type searchRow struct {
	ID         uuid.UUID
	DistanceKm *float64
}

// NewSearchService wires the strategy chosen at startup. cache may be nil.
func NewSearchService(db *gorm.DB, strategy geo.Strategy, cache *redis.Client, config *config.Config) *SearchService {
	return &SearchService{
		db:       db,
		strategy: strategy,
		cache:    cache,
		config:   config,
	}
}

// ParseSearchParams validates raw query values. lat and lng must be given
// together; a missing or non-positive radius falls back to the default.
func (s *SearchService) ParseSearchParams(specialization, lat, lng, radius string, pagination utils.PaginationParams) (SearchParams, error) {
	params := SearchParams{
		Specialization: strings.TrimSpace(specialization),
		RadiusKm:       s.config.Search.DefaultRadiusKm,
		Pagination:     pagination,
	}

	lat, lng = strings.TrimSpace(lat), strings.TrimSpace(lng)
	if (lat == "") != (lng == "") {
		return params, newError(KindInvalidInput, "search.partial_origin", "lat and lng must be provided together")
	}
	if lat != "" {
		latF, errLat := strconv.ParseFloat(lat, 64)
		lngF, errLng := strconv.ParseFloat(lng, 64)
		if errLat != nil || errLng != nil {
			return params, newError(KindInvalidInput, "search.invalid_coordinates", "invalid lat/lng")
		}
		origin := geo.Point{Lat: latF, Lng: lngF}
		if !origin.Valid() {
			return params, newError(KindInvalidInput, "search.invalid_coordinates", "invalid lat/lng")
		}
		params.Origin = &origin
	}

	if radius = strings.TrimSpace(radius); radius != "" {
		r, err := strconv.ParseFloat(radius, 64)
		if err != nil || math.IsNaN(r) || math.IsInf(r, 0) {
			return params, newError(KindInvalidInput, "search.invalid_radius", "invalid radius_km")
		}
		if r > 0 {
			params.RadiusKm = r
		}
	}
	return params, nil
}

// Search returns tailors matching the specialization filter, nearest first
// when an origin is given and best rated first otherwise.
func (s *SearchService) Search(ctx context.Context, params SearchParams) (*SearchPage, error) {
	key := s.cacheKey(params)
	if page, ok := s.cached(ctx, key); ok {
		return page, nil
	}

	page, err := s.search(ctx, params)
	if err != nil {
		return nil, err
	}

	s.store(ctx, key, page)
	return page, nil
}

func (s *SearchService) search(ctx context.Context, params SearchParams) (*SearchPage, error) {
	db := s.db.WithContext(ctx)

	base := db.Table("providers").
		Joins("JOIN accounts ON accounts.id = providers.account_id").
		Where("providers.deleted_at IS NULL AND accounts.deleted_at IS NULL")

	if params.Specialization != "" {
		filter := strings.ToLower(params.Specialization)
		tagged := db.Table("provider_specializations AS ps").
			Select("ps.provider_id").
			Joins("JOIN specializations AS sp ON sp.id = ps.specialization_id").
			Where("LOWER(sp.slug) = ? OR LOWER(sp.name) LIKE ?", filter, "%"+filter+"%")
		base = base.Where("providers.id IN (?)", tagged)
	}

	if params.Origin != nil {
		box := geo.BoundingBox(*params.Origin, params.RadiusKm)
		base = base.
			Where("accounts.latitude IS NOT NULL AND accounts.longitude IS NOT NULL").
			Where("accounts.latitude BETWEEN ? AND ?", box.MinLat, box.MaxLat).
			Where("accounts.longitude BETWEEN ? AND ?", box.MinLng, box.MaxLng)
	}
	base = base.Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count tailors: %w", err)
	}

	query := base
	if params.Origin != nil {
		expr, args := s.strategy.SQLExpr("accounts.latitude", "accounts.longitude", *params.Origin)
		query = query.
			Select("providers.id AS id, "+expr+" AS distance_km", args...).
			Order("distance_km ASC").
			Order("providers.id ASC")
	} else {
		query = query.
			Select("providers.id AS id").
			Order("providers.avg_rating DESC").
			Order("providers.total_reviews DESC").
			Order("providers.id ASC")
	}

	var rows []searchRow
	if err := utils.ApplyPagination(query, params.Pagination).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to search tailors: %w", err)
	}

	page := &SearchPage{Results: []SearchResult{}, Total: total}
	if params.Origin != nil {
		page.DistanceMode = s.strategy.Name()
	}
	if len(rows) == 0 {
		return page, nil
	}

	ids := make([]uuid.UUID, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}

	var providers []models.Provider
	if err := withProviderRelations(db).Where("id IN ?", ids).Find(&providers).Error; err != nil {
		return nil, fmt.Errorf("failed to load tailors: %w", err)
	}
	byID := make(map[uuid.UUID]*models.Provider, len(providers))
	for i := range providers {
		byID[providers[i].ID] = &providers[i]
	}

	servicesByProvider := map[uuid.UUID][]models.Service{}
	if params.Specialization != "" {
		var services []models.Service
		err := db.Where("provider_id IN ? AND is_active = ?", ids, true).
			Order("name ASC").
			Find(&services).Error
		if err != nil {
			return nil, fmt.Errorf("failed to load services: %w", err)
		}
		for _, svc := range services {
			servicesByProvider[svc.ProviderID] = append(servicesByProvider[svc.ProviderID], svc)
		}
	}

	for _, row := range rows {
		provider, ok := byID[row.ID]
		if !ok {
			continue
		}
		result := SearchResult{TailorView: toTailorView(provider), DistanceKm: row.DistanceKm}
		if params.Specialization != "" {
			result.MatchedService = MatchService(params.Specialization, provider.Specializations, servicesByProvider[row.ID])
		}
		page.Results = append(page.Results, result)
	}
	return page, nil
}

// MatchService picks the first service, in the given order, whose name
// equals or contains a keyword derived from the filter. The keyword is the
// name of the specialization whose slug equals the filter, or the filter
// itself with and without hyphens.
func MatchService(filter string, specs []models.Specialization, services []models.Service) *MatchedService {
	var keywords []string
	for _, spec := range specs {
		if strings.EqualFold(spec.Slug, filter) {
			keywords = []string{strings.ToLower(spec.Name)}
			break
		}
	}
	if keywords == nil {
		lower := strings.ToLower(filter)
		keywords = []string{strings.ReplaceAll(lower, "-", " "), lower}
	}

	for _, svc := range services {
		if !svc.IsActive {
			continue
		}
		name := strings.ToLower(svc.Name)
		for _, kw := range keywords {
			if strings.Contains(name, kw) {
				return &MatchedService{
					ID:           svc.ID,
					Name:         svc.Name,
					Price:        svc.Price,
					DurationDays: svc.DurationDays,
					IsActive:     svc.IsActive,
				}
			}
		}
	}
	return nil
}

func (s *SearchService) cacheKey(params SearchParams) string {
	raw := fmt.Sprintf("%s|%s|%.6f|%d|%d",
		strings.ToLower(params.Specialization), s.strategy.Name(), params.RadiusKm,
		params.Pagination.Page, params.Pagination.Limit)
	if params.Origin != nil {
		raw += fmt.Sprintf("|%.6f,%.6f", params.Origin.Lat, params.Origin.Lng)
	}
	sum := sha256.Sum256([]byte(raw))
	return "search:tailors:" + hex.EncodeToString(sum[:])
}

func (s *SearchService) ttl() time.Duration {
	return time.Duration(s.config.Search.CacheTTLSeconds) * time.Second
}

func (s *SearchService) cached(ctx context.Context, key string) (*SearchPage, bool) {
	if s.cache == nil || s.ttl() <= 0 {
		return nil, false
	}
	data, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logrus.WithError(err).Warn("Search cache read failed")
		}
		return nil, false
	}
	var page SearchPage
	if err := json.Unmarshal(data, &page); err != nil {
		logrus.WithError(err).Warn("Discarding corrupt search cache entry")
		return nil, false
	}
	return &page, true
}

func (s *SearchService) store(ctx context.Context, key string, page *SearchPage) {
	if s.cache == nil || s.ttl() <= 0 {
		return
	}
	data, err := json.Marshal(page)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.ttl()).Err(); err != nil {
		logrus.WithError(err).Warn("Search cache write failed")
	}
}
